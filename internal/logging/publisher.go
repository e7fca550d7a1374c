package logging

import (
	"context"
	"time"
)

// EventType names a structured gameplay event, e.g. "combat.damage".
type EventType string

// Severity orders events for sink filtering.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
)

// EntityKind classifies the subject of an EntityRef.
type EntityKind string

const (
	EntityKindUnknown EntityKind = "unknown"
	EntityKindPlayer  EntityKind = "player"
	EntityKindFighter EntityKind = "fighter"
	EntityKindWorld   EntityKind = "world"
)

// EntityRef identifies one simulation entity in an event.
type EntityRef struct {
	ID   string     `json:"id"`
	Kind EntityKind `json:"kind"`
}

// Event is the structured record published for every observable gameplay
// occurrence. Presentation listeners consume these; the simulation never
// reads them back.
type Event struct {
	Type     EventType   `json:"type"`
	Tick     uint64      `json:"tick"`
	Time     time.Time   `json:"time"`
	Actor    EntityRef   `json:"actor"`
	Targets  []EntityRef `json:"targets,omitempty"`
	Severity Severity    `json:"severity"`
	Category string      `json:"category,omitempty"`
	Payload  any         `json:"payload,omitempty"`
}

const (
	CategoryCombat   = "combat"
	CategorySkill    = "skill"
	CategoryMovement = "movement"
	CategorySystem   = "system"
)

// Publisher receives events emitted by the simulation.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, event Event)

func (f PublisherFunc) Publish(ctx context.Context, event Event) {
	if f == nil {
		return
	}
	f(ctx, event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) {}

// NopPublisher returns a publisher that discards every event.
func NopPublisher() Publisher {
	return nopPublisher{}
}
