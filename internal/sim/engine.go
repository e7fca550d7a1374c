package sim

import (
	"math/rand"
	"time"

	"go.uber.org/zap"

	"riposte/server/internal/logging"
	"riposte/server/internal/telemetry"
)

// Deps carries shared infrastructure dependencies injected into the engine.
type Deps struct {
	Logger  *zap.Logger
	Metrics telemetry.Metrics
	Clock   logging.Clock
	RNG     *rand.Rand
}

// TickContext describes one simulation step.
type TickContext struct {
	Tick  uint64
	Now   time.Time
	Delta float64 // seconds
}

// Engine defines the minimal surface area exposed to non-simulation callers.
type Engine interface {
	Apply([]Command) error
	Step(ctx TickContext)
	Snapshot() Snapshot
}

// EngineCore is the surface the loop wraps.
type EngineCore interface {
	Engine
	Deps() Deps
}

// ActorSnapshot is one actor's broadcast view.
type ActorSnapshot struct {
	ID             string  `json:"id"`
	Faction        string  `json:"faction,omitempty"`
	Kind           string  `json:"kind"`
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	Health         float64 `json:"health"`
	MaxHealth      float64 `json:"maxHealth"`
	Stamina        float64 `json:"stamina"`
	MaxStamina     float64 `json:"maxStamina"`
	SkillState     string  `json:"skillState"`
	ActiveSkill    string  `json:"activeSkill,omitempty"`
	KnockdownMeter float64 `json:"knockdownMeter"`
	Alive          bool    `json:"alive"`
}

// Snapshot is the per-tick world view broadcast to subscribers.
type Snapshot struct {
	Tick       uint64          `json:"tick"`
	ServerTime int64           `json:"serverTime"`
	Actors     []ActorSnapshot `json:"actors"`
}
