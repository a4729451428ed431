// Package broadcast fans session output out to live consumers. Every sink
// implements Publisher.
package broadcast

import (
	"encoding/json"
	"fmt"

	"github.com/srg/beathard/internal/detection"
	"github.com/srg/beathard/internal/stats"
)

// Kind selects the wire shape of a Message.
type Kind int

const (
	KindCombatEvent Kind = iota + 1
	KindNewRecord
	KindStatsReset
	KindBattleConfig
	KindViewChange
)

func (k Kind) String() string {
	switch k {
	case KindCombatEvent:
		return "combat_event"
	case KindNewRecord:
		return "max_stats_update"
	case KindStatsReset:
		return "max_stats_reset"
	case KindBattleConfig:
		return "battle_config"
	case KindViewChange:
		return "view_change"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Topic groups kinds into the channels used by topic based sinks.
func (k Kind) Topic() string {
	switch k {
	case KindCombatEvent:
		return "events"
	case KindNewRecord:
		return "records"
	default:
		return "control"
	}
}

// Message is one published item. Which fields are set depends on Kind.
type Message struct {
	Kind      Kind
	FighterID string
	Event     *detection.Event
	Stats     *stats.Record
	Records   []stats.Kind
	View      string
	Data      any
	Timestamp int64 // epoch ms
}

func CombatEvent(ev detection.Event) Message {
	return Message{Kind: KindCombatEvent, FighterID: ev.FighterID, Event: &ev, Timestamp: ev.Timestamp}
}

// NewRecord carries the competitor's maxima after ev broke the given records.
// The message is stamped with the event's timestamp.
func NewRecord(rec stats.Record, broken []stats.Kind, ev detection.Event) Message {
	return Message{Kind: KindNewRecord, FighterID: rec.FighterID, Event: &ev, Stats: &rec, Records: broken, Timestamp: ev.Timestamp}
}

func StatsReset(ts int64) Message {
	return Message{Kind: KindStatsReset, Timestamp: ts}
}

func BattleConfig(data any, ts int64) Message {
	return Message{Kind: KindBattleConfig, Data: data, Timestamp: ts}
}

func ViewChange(view string, data any, ts int64) Message {
	return Message{Kind: KindViewChange, View: view, Data: data, Timestamp: ts}
}

type combatEventWire struct {
	ViewType  string           `json:"viewType"`
	Data      *detection.Event `json:"data"`
	Timestamp int64            `json:"timestamp"`
}

type newRecordWire struct {
	Type            string           `json:"type"`
	FighterID       string           `json:"fighter_id"`
	Data            *stats.Record    `json:"data"`
	NewRecords      []stats.Kind     `json:"new_records"`
	TriggeringEvent *detection.Event `json:"triggering_event"`
	Timestamp       int64            `json:"timestamp"`
	ViewType        string           `json:"view_type"`
}

type controlWire struct {
	Type      string `json:"type"`
	View      string `json:"view,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// MarshalJSON renders the dashboard wire format for the message kind.
func (m Message) MarshalJSON() ([]byte, error) {
	switch m.Kind {
	case KindCombatEvent:
		if m.Event == nil {
			return nil, fmt.Errorf("broadcast: %s message without event", m.Kind)
		}
		return json.Marshal(combatEventWire{ViewType: "live-combat", Data: m.Event, Timestamp: m.Timestamp})

	case KindNewRecord:
		if m.Stats == nil {
			return nil, fmt.Errorf("broadcast: %s message without stats", m.Kind)
		}
		records := m.Records
		if records == nil {
			records = []stats.Kind{}
		}
		return json.Marshal(newRecordWire{
			Type:            m.Kind.String(),
			FighterID:       m.FighterID,
			Data:            m.Stats,
			NewRecords:      records,
			TriggeringEvent: m.Event,
			Timestamp:       m.Timestamp,
			ViewType:        "stats",
		})

	case KindStatsReset:
		return json.Marshal(controlWire{Type: m.Kind.String(), Timestamp: m.Timestamp})

	case KindBattleConfig:
		return json.Marshal(controlWire{Type: m.Kind.String(), Data: m.Data, Timestamp: m.Timestamp})

	case KindViewChange:
		// view changes always carry data, even when empty
		return json.Marshal(struct {
			Type      string `json:"type"`
			View      string `json:"view"`
			Data      any    `json:"data"`
			Timestamp int64  `json:"timestamp"`
		}{m.Kind.String(), m.View, m.Data, m.Timestamp})

	default:
		return nil, fmt.Errorf("broadcast: unknown message kind %d", int(m.Kind))
	}
}
