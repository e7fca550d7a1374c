package world

import (
	"time"

	"riposte/server/internal/geom"
	"riposte/server/internal/movement"
)

// StatusConfig carries the stun and knockdown tunables.
type StatusConfig struct {
	KnockdownThreshold float64
	KnockdownLock      time.Duration
	MeterDecay         float64 // per second
	TickInterval       time.Duration
}

// StatusHooks connect the component to its actor's state machine and
// movement arbitrator, and to the world's event publishing. The component
// itself stays free of those dependencies.
type StatusHooks struct {
	Interrupt    func()
	ClearLock    func()
	SubmitClaim  func(claim movement.Claim)
	ReleaseClaim func(source movement.SourceKind)
	StunApplied  func(duration time.Duration)
	StunCleared  func()
	KnockedDown  func(meter, threshold float64)
}

// StatusComponent owns the stun countdown and the knockdown meter. All
// waiting is an explicit countdown advanced once per tick.
type StatusComponent struct {
	cfg   StatusConfig
	hooks StatusHooks

	stunRemaining  time.Duration
	knockdownMeter float64
}

// NewStatus returns a clean component.
func NewStatus(cfg StatusConfig, hooks StatusHooks) *StatusComponent {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second / 15
	}
	return &StatusComponent{cfg: cfg, hooks: hooks}
}

// ApplyStun forces the locked state for at least the given duration.
// Overlapping stuns extend to the longer remaining time, never shorten it.
func (c *StatusComponent) ApplyStun(duration time.Duration) {
	if c == nil || duration <= 0 {
		return
	}
	if duration > c.stunRemaining {
		c.stunRemaining = duration
	}
	if c.hooks.Interrupt != nil {
		c.hooks.Interrupt()
	}
	if c.hooks.SubmitClaim != nil {
		c.hooks.SubmitClaim(movement.Claim{Source: movement.SourceStun})
	}
	if c.hooks.StunApplied != nil {
		c.hooks.StunApplied(duration)
	}
}

// ApplyKnockback submits the resolver's displacement as a one-tick
// top-priority movement claim. A zero vector is a no-op; re-invoking with
// zero displacement never moves the actor.
func (c *StatusComponent) ApplyKnockback(vector geom.Vec2) {
	if c == nil || vector.Zero() {
		return
	}
	if c.hooks.SubmitClaim == nil {
		return
	}
	// The claim vector is a velocity; delivering the full displacement in
	// exactly one tick means scaling by the tick rate.
	velocity := vector.Scale(1 / c.cfg.TickInterval.Seconds())
	c.hooks.SubmitClaim(movement.Claim{
		Source:    movement.SourceKnockback,
		Vector:    velocity,
		TicksLeft: 1,
	})
}

// IncrementKnockdownMeter accumulates toward the forced-knockdown
// threshold. Crossing it resets the meter and applies the knockdown lock.
func (c *StatusComponent) IncrementKnockdownMeter(amount float64) {
	if c == nil || amount <= 0 {
		return
	}
	c.knockdownMeter += amount
	if c.knockdownMeter < c.cfg.KnockdownThreshold {
		return
	}
	meter := c.knockdownMeter
	c.knockdownMeter = 0
	if c.hooks.KnockedDown != nil {
		c.hooks.KnockedDown(meter, c.cfg.KnockdownThreshold)
	}
	c.ApplyStun(c.cfg.KnockdownLock)
}

// Advance moves the stun countdown and meter decay forward one tick.
func (c *StatusComponent) Advance(dt time.Duration) {
	if c == nil || dt <= 0 {
		return
	}
	if c.stunRemaining > 0 {
		c.stunRemaining -= dt
		if c.stunRemaining <= 0 {
			c.stunRemaining = 0
			if c.hooks.ReleaseClaim != nil {
				c.hooks.ReleaseClaim(movement.SourceStun)
			}
			if c.hooks.ClearLock != nil {
				c.hooks.ClearLock()
			}
			if c.hooks.StunCleared != nil {
				c.hooks.StunCleared()
			}
		}
	}
	if c.knockdownMeter > 0 && c.cfg.MeterDecay > 0 {
		c.knockdownMeter -= c.cfg.MeterDecay * dt.Seconds()
		if c.knockdownMeter < 0 {
			c.knockdownMeter = 0
		}
	}
}

// Stunned reports whether a stun is in effect.
func (c *StatusComponent) Stunned() bool {
	return c != nil && c.stunRemaining > 0
}

// Meter returns the current knockdown meter value.
func (c *StatusComponent) Meter() float64 {
	if c == nil {
		return 0
	}
	return c.knockdownMeter
}
