package combat

import (
	"time"

	"riposte/server/internal/data"
	"riposte/server/internal/geom"
)

// Execution is the value emitted when an actor's skill reaches its commit
// point. It is consumed exactly once by the resolver and never mutated
// after creation. The skill definition it references is immutable
// configuration data.
type Execution struct {
	ActorID    string
	Skill      *data.SkillDefinition
	Speed      float64
	Damage     float64 // weapon-modified damage at commit time
	CommitTime time.Time
	TargetIDs  []string
}

// Offensive reports whether the execution deals damage outward.
func (e Execution) Offensive() bool {
	return e.Skill.Offensive()
}

// Defensive reports whether the execution postures against offense.
func (e Execution) Defensive() bool {
	return e.Skill.Defensive()
}

// SkillID returns the skill identifier, or "" without a definition.
func (e Execution) SkillID() string {
	if e.Skill == nil {
		return ""
	}
	return e.Skill.ID
}

// Outcome enumerates the result of resolving one offensive strike against
// its opposition, or lack thereof.
type Outcome string

const (
	// OutcomeUnopposed lands with full effect.
	OutcomeUnopposed Outcome = "unopposed"
	// OutcomeBlocked lands through a block posture at a reduced damage
	// fraction, with no rider effects.
	OutcomeBlocked Outcome = "blocked"
	// OutcomeReflected turns the strike back on the attacker via a counter
	// posture; the defender takes nothing.
	OutcomeReflected Outcome = "reflected"
	// OutcomeSimultaneousTrade applies both sides of a mutual offense in
	// full when their speeds tie.
	OutcomeSimultaneousTrade Outcome = "simultaneous_trade"
	// OutcomeSpeedWin is the faster side of a mutual offense; its strike
	// lands in full.
	OutcomeSpeedWin Outcome = "speed_win"
	// OutcomeSpeedLoss is the slower side; its strike is negated.
	OutcomeSpeedLoss Outcome = "speed_loss"
)

// Resolution is the per-strike adjudication record returned by Resolve.
type Resolution struct {
	AttackerID string
	TargetID   string
	SkillID    string
	Outcome    Outcome
	Damage     float64 // damage actually applied (to the attacker for reflects)
}

// Health is the resolver's view of an actor's hit points. The resolver
// never reads or writes the underlying representation.
type Health interface {
	TakeDamage(amount float64, sourceID string)
	IsAlive() bool
}

// Status receives the resolver's non-damage side effects.
type Status interface {
	ApplyStun(duration time.Duration)
	ApplyKnockback(vector geom.Vec2)
	IncrementKnockdownMeter(amount float64)
}

// Combatant is the resolved collaborator handle for one live actor.
// Collaborator fields are wired at actor construction; a nil field is a
// programmer error surfaced as a logged MissingCollaborator skip.
type Combatant struct {
	ID       string
	Position geom.Vec2
	Health   Health
	Status   Status
}

// Roster resolves actor IDs to combatant handles. A false return means the
// actor has left the simulation (stale target).
type Roster interface {
	Combatant(id string) (Combatant, bool)
}
