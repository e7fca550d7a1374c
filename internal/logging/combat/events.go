package combat

import (
	"context"
	"time"

	"riposte/server/internal/logging"
)

const (
	// EventExecutionCommitted is emitted when a skill reaches its commit
	// point and enters resolution.
	EventExecutionCommitted logging.EventType = "combat.execution_committed"
	// EventInteractionResolved is emitted once per adjudicated strike.
	EventInteractionResolved logging.EventType = "combat.interaction_resolved"
	// EventDamageApplied is emitted when resolved damage lands on a target.
	EventDamageApplied logging.EventType = "combat.damage_applied"
	// EventDefenseTimeout is emitted when a defensive posture expires unmatched.
	EventDefenseTimeout logging.EventType = "combat.defense_timeout"
	// EventDefeat is emitted when an actor drops to zero health.
	EventDefeat logging.EventType = "combat.defeat"
)

// ExecutionCommittedPayload captures the committed skill execution.
type ExecutionCommittedPayload struct {
	Skill     string  `json:"skill"`
	Offensive bool    `json:"offensive"`
	Speed     float64 `json:"speed,omitempty"`
	Targets   int     `json:"targets,omitempty"`
}

// InteractionResolvedPayload captures one adjudicated attacker/target pair.
type InteractionResolvedPayload struct {
	Skill   string  `json:"skill"`
	Outcome string  `json:"outcome"`
	Damage  float64 `json:"damage"`
}

// DamageAppliedPayload captures the amount dealt to a single target.
type DamageAppliedPayload struct {
	Skill  string  `json:"skill,omitempty"`
	Amount float64 `json:"amount"`
}

// DefenseTimeoutPayload captures an expired defensive posture.
type DefenseTimeoutPayload struct {
	Skill     string `json:"skill"`
	WaitedMs  int64  `json:"waitedMs"`
	ExpiredAt int64  `json:"expiredAt"`
}

// DefeatPayload describes the context for a fatal blow.
type DefeatPayload struct {
	Skill    string `json:"skill,omitempty"`
	SourceID string `json:"sourceId,omitempty"`
}

// ExecutionCommitted publishes EventExecutionCommitted.
func ExecutionCommitted(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ExecutionCommittedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventExecutionCommitted,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  payload,
	})
}

// InteractionResolved publishes EventInteractionResolved for one pair.
func InteractionResolved(ctx context.Context, pub logging.Publisher, tick uint64, actor, target logging.EntityRef, payload InteractionResolvedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventInteractionResolved,
		Tick:     tick,
		Actor:    actor,
		Targets:  []logging.EntityRef{target},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  payload,
	})
}

// DamageApplied publishes EventDamageApplied.
func DamageApplied(ctx context.Context, pub logging.Publisher, tick uint64, actor, target logging.EntityRef, payload DamageAppliedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventDamageApplied,
		Tick:     tick,
		Actor:    actor,
		Targets:  []logging.EntityRef{target},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  payload,
	})
}

// DefenseTimeout publishes EventDefenseTimeout.
func DefenseTimeout(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, skill string, waited time.Duration, expiredAt time.Time) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventDefenseTimeout,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryCombat,
		Payload: DefenseTimeoutPayload{
			Skill:     skill,
			WaitedMs:  waited.Milliseconds(),
			ExpiredAt: expiredAt.UnixMilli(),
		},
	})
}

// Defeat publishes EventDefeat.
func Defeat(ctx context.Context, pub logging.Publisher, tick uint64, actor, target logging.EntityRef, payload DefeatPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventDefeat,
		Tick:     tick,
		Actor:    actor,
		Targets:  []logging.EntityRef{target},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  payload,
	})
}
