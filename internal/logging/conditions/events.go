package conditions

import (
	"context"

	"riposte/server/internal/logging"
)

const (
	// EventApplied is emitted when a condition lands on an actor.
	EventApplied logging.EventType = "condition.applied"
	// EventExpired is emitted when a condition runs out.
	EventExpired logging.EventType = "condition.expired"
	// EventKnockdown is emitted when the knockdown meter crosses its threshold.
	EventKnockdown logging.EventType = "condition.knockdown"
)

// AppliedPayload captures a newly applied condition.
type AppliedPayload struct {
	Condition  string `json:"condition"`
	SourceID   string `json:"sourceId,omitempty"`
	DurationMs int64  `json:"durationMs,omitempty"`
}

// ExpiredPayload captures a condition that has run out.
type ExpiredPayload struct {
	Condition string `json:"condition"`
}

// KnockdownPayload captures a knockdown meter threshold crossing.
type KnockdownPayload struct {
	Meter     float64 `json:"meter"`
	Threshold float64 `json:"threshold"`
}

// Applied publishes EventApplied.
func Applied(ctx context.Context, pub logging.Publisher, tick uint64, actor, target logging.EntityRef, payload AppliedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventApplied,
		Tick:     tick,
		Actor:    actor,
		Targets:  []logging.EntityRef{target},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  payload,
	})
}

// Expired publishes EventExpired.
func Expired(ctx context.Context, pub logging.Publisher, tick uint64, target logging.EntityRef, payload ExpiredPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventExpired,
		Tick:     tick,
		Actor:    target,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryCombat,
		Payload:  payload,
	})
}

// Knockdown publishes EventKnockdown.
func Knockdown(ctx context.Context, pub logging.Publisher, tick uint64, target logging.EntityRef, payload KnockdownPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventKnockdown,
		Tick:     tick,
		Actor:    target,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  payload,
	})
}
