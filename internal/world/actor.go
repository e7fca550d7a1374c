package world

import (
	"math"

	"riposte/server/internal/data"
	"riposte/server/internal/geom"
	"riposte/server/internal/logging"
	"riposte/server/internal/movement"
	"riposte/server/internal/skill"
)

// Stats is the per-actor attribute block feeding derived modifiers.
type Stats struct {
	Agility float64
}

// SpeedModifier derives the stat component of the speed ordering scalar.
// Ten agility is neutral; each point shifts the modifier by two percent.
func (s Stats) SpeedModifier() float64 {
	if s.Agility <= 0 {
		return 1
	}
	return 1 + (s.Agility-10)*0.02
}

// Actor is one combat participant. Collaborators are wired once at
// construction; nothing is looked up at runtime.
type Actor struct {
	ID       string
	Faction  string
	Kind     logging.EntityKind
	Position geom.Vec2
	Stats    Stats
	Weapon   *data.WeaponDefinition

	Health   *HealthComponent
	Stamina  *StaminaComponent
	Status   *StatusComponent
	Machine  *skill.Machine
	Movement *movement.Arbitrator

	dead bool
}

// Alive reports whether the actor still participates in resolution.
func (a *Actor) Alive() bool {
	return a != nil && !a.dead && a.Health.IsAlive()
}

// HealthComponent owns an actor's hit points. The resolver only ever talks
// to it through the combat.Health interface.
type HealthComponent struct {
	health    float64
	maxHealth float64
}

// NewHealth returns a component at full health.
func NewHealth(max float64) *HealthComponent {
	if max <= 0 {
		max = 1
	}
	return &HealthComponent{health: max, maxHealth: max}
}

// TakeDamage removes health, clamped at zero. Non-finite and non-positive
// amounts are ignored.
func (h *HealthComponent) TakeDamage(amount float64, _ string) {
	if h == nil || amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return
	}
	h.health -= amount
	if h.health < 0 {
		h.health = 0
	}
}

// IsAlive reports whether any health remains.
func (h *HealthComponent) IsAlive() bool {
	return h != nil && h.health > 0
}

// Current returns the current health value.
func (h *HealthComponent) Current() float64 {
	if h == nil {
		return 0
	}
	return h.health
}

// Max returns the maximum health value.
func (h *HealthComponent) Max() float64 {
	if h == nil {
		return 0
	}
	return h.maxHealth
}

// StaminaComponent owns an actor's stamina pool. Skill commits check
// affordability here and deduct on commitment.
type StaminaComponent struct {
	stamina    float64
	maxStamina float64
	regen      float64 // per second
}

// NewStamina returns a full pool regenerating at the given rate.
func NewStamina(max, regenPerSecond float64) *StaminaComponent {
	if max <= 0 {
		max = 1
	}
	return &StaminaComponent{stamina: max, maxStamina: max, regen: regenPerSecond}
}

// CanAfford reports whether the pool covers the amount.
func (s *StaminaComponent) CanAfford(amount float64) bool {
	if s == nil {
		return false
	}
	return amount <= 0 || s.stamina >= amount
}

// Consume deducts the amount, refusing when the pool falls short.
func (s *StaminaComponent) Consume(amount float64) bool {
	if s == nil || amount <= 0 {
		return true
	}
	if s.stamina < amount {
		return false
	}
	s.stamina -= amount
	return true
}

// Regen restores stamina for one tick's delta.
func (s *StaminaComponent) Regen(dt float64) {
	if s == nil || dt <= 0 || s.regen <= 0 {
		return
	}
	s.stamina += s.regen * dt
	if s.stamina > s.maxStamina {
		s.stamina = s.maxStamina
	}
}

// Current returns the current stamina value.
func (s *StaminaComponent) Current() float64 {
	if s == nil {
		return 0
	}
	return s.stamina
}

// Max returns the maximum stamina value.
func (s *StaminaComponent) Max() float64 {
	if s == nil {
		return 0
	}
	return s.maxStamina
}
