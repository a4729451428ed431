// Package stats tracks per-competitor personal bests.
package stats

import (
	"sync"

	"github.com/srg/beathard/internal/detection"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Kind names a tracked metric.
type Kind string

const (
	Force        Kind = "force"
	Velocity     Kind = "velocity"
	Acceleration Kind = "acceleration"
)

// Record holds the running maxima for one competitor.
type Record struct {
	FighterID       string  `json:"fighter_id"`
	CompetitorName  string  `json:"competitor_name"`
	MaxForce        float64 `json:"max_force"`
	MaxVelocity     float64 `json:"max_velocity"`
	MaxAcceleration float64 `json:"max_acceleration"`
	LastUpdated     int64   `json:"last_updated"`
}

// Tracker is safe for concurrent use. Competitors are kept in the order they
// were first seen.
type Tracker struct {
	mu      sync.Mutex
	records *orderedmap.OrderedMap[string, *Record]
}

func NewTracker() *Tracker {
	return &Tracker{records: orderedmap.New[string, *Record]()}
}

// Record folds ev into the competitor's maxima and returns the metrics whose
// previous best was strictly exceeded. An empty result means nothing changed.
func (t *Tracker) Record(ev detection.Event) []Kind {
	_, broken := t.Apply(ev)
	return broken
}

// Apply is Record that also returns the competitor's maxima as they stood
// right after ev, taken under the same lock.
func (t *Tracker) Apply(ev detection.Event) (Record, []Kind) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records.Get(ev.FighterID)
	if !ok {
		rec = &Record{FighterID: ev.FighterID, CompetitorName: ev.CompetitorName}
		t.records.Set(ev.FighterID, rec)
	}

	var broken []Kind
	if ev.Force > rec.MaxForce {
		rec.MaxForce = ev.Force
		broken = append(broken, Force)
	}
	if ev.Velocity > rec.MaxVelocity {
		rec.MaxVelocity = ev.Velocity
		broken = append(broken, Velocity)
	}
	if ev.Acceleration > rec.MaxAcceleration {
		rec.MaxAcceleration = ev.Acceleration
		broken = append(broken, Acceleration)
	}

	if len(broken) > 0 {
		rec.LastUpdated = ev.Timestamp
		if ev.CompetitorName != "" {
			rec.CompetitorName = ev.CompetitorName
		}
	}
	return *rec, broken
}

// Get returns a copy of one competitor's record.
func (t *Tracker) Get(fighterID string) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records.Get(fighterID)
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// All returns copies of every record in first-seen order.
func (t *Tracker) All() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Record, 0, t.records.Len())
	for pair := t.records.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, *pair.Value)
	}
	return out
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.records.Len()
}

// Reset drops every record.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = orderedmap.New[string, *Record]()
}
