package detection

import "fmt"

// EventType tags a classified strike.
type EventType string

const (
	Slap    EventType = "slap"
	LowKick EventType = "low_kick"
)

// Competitor is the participant a detector attributes events to.
type Competitor struct {
	ID     uint32  `json:"id"`
	Name   string  `json:"name"`
	Weight float64 `json:"weight"` // kg
}

// FighterID is the stable key used in events and stats.
func (c Competitor) FighterID() string {
	return fmt.Sprintf("fighter_%d", c.ID)
}

// Event is a classified strike with its estimated physics.
type Event struct {
	EventType      EventType `json:"event_type"`
	LimbName       string    `json:"limb_name"`
	FighterID      string    `json:"fighter_id"`
	CompetitorName string    `json:"competitor_name"`
	Velocity       float64   `json:"velocity"`     // m/s
	Acceleration   float64   `json:"acceleration"` // m/s²
	Force          float64   `json:"force"`        // N
	Timestamp      int64     `json:"timestamp"`    // epoch ms
	Confidence     float64   `json:"confidence"`
}
