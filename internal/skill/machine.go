package skill

import (
	"time"

	"riposte/server/internal/data"
)

// EventKind enumerates the inputs the state machine accepts.
type EventKind string

const (
	// EventStart begins a skill from idle.
	EventStart EventKind = "start"
	// EventExecute releases a charged skill, fires an aimed one, or turns a
	// held defensive posture into its recovery.
	EventExecute EventKind = "execute"
	// EventCancel aborts a pre-commit phase. Stamina already spent stays
	// spent.
	EventCancel EventKind = "cancel"
	// EventInterrupt forces the locked state from anywhere. Interrupts
	// always win, including over committed skills.
	EventInterrupt EventKind = "interrupt"
	// EventClearLock returns a locked actor to idle once the external
	// effect has run out.
	EventClearLock EventKind = "clear_lock"
)

// Event is one input to TryTransition.
type Event struct {
	Kind     EventKind
	Skill    *data.SkillDefinition // required for EventStart
	TargetID string                // optional explicit target
}

// StaminaGate is the affordability check consulted before an actor commits
// to spending.
type StaminaGate interface {
	CanAfford(amount float64) bool
	Consume(amount float64) bool
}

// Hooks carry the machine's outward notifications. The commit hook is the
// single emission point of an execution into resolution; the posture hooks
// keep the resolver's awaiting-defense registry in step with the machine.
type Hooks struct {
	Commit          func(def *data.SkillDefinition, targetID string)
	DefensePosture  func(def *data.SkillDefinition)
	DefenseReleased func(def *data.SkillDefinition, reason string)
}

// Release reasons passed to DefenseReleased.
const (
	DefenseReleaseCancel    = "cancel"
	DefenseReleaseExecute   = "execute"
	DefenseReleaseInterrupt = "interrupt"
)

// Machine is the per-actor skill lifecycle. All waiting is modeled as an
// explicit countdown advanced once per tick; nothing suspends.
type Machine struct {
	state     State
	skill     *data.SkillDefinition
	targetID  string
	countdown time.Duration
	stamina   StaminaGate
	hooks     Hooks
}

// NewMachine returns an idle machine.
func NewMachine(stamina StaminaGate, hooks Hooks) *Machine {
	return &Machine{state: StateIdle, stamina: stamina, hooks: hooks}
}

// State returns the current lifecycle state.
func (m *Machine) State() State {
	if m == nil {
		return StateIdle
	}
	return m.state
}

// Skill returns the in-flight skill definition, or nil when idle or locked.
func (m *Machine) Skill() *data.SkillDefinition {
	if m == nil {
		return nil
	}
	return m.skill
}

// TargetID returns the tracked target of the in-flight skill.
func (m *Machine) TargetID() string {
	if m == nil {
		return ""
	}
	return m.targetID
}

// Countdown returns the remaining time in the current phase.
func (m *Machine) Countdown() time.Duration {
	if m == nil {
		return 0
	}
	return m.countdown
}

// TryTransition applies one input event. Illegal transitions return false
// and leave the machine untouched; no partial state change ever occurs.
func (m *Machine) TryTransition(ev Event) bool {
	if m == nil {
		return false
	}
	switch ev.Kind {
	case EventStart:
		return m.start(ev.Skill, ev.TargetID)
	case EventExecute:
		return m.execute()
	case EventCancel:
		return m.cancel()
	case EventInterrupt:
		m.interrupt()
		return true
	case EventClearLock:
		return m.clearLock()
	}
	return false
}

func (m *Machine) start(def *data.SkillDefinition, targetID string) bool {
	if def == nil || m.state.Busy() {
		return false
	}
	if m.stamina != nil {
		if !m.stamina.CanAfford(def.StaminaCost) {
			return false
		}
		m.stamina.Consume(def.StaminaCost)
	}
	m.skill = def
	m.targetID = targetID

	switch {
	case def.Class == data.SkillClassCharge:
		if def.ChargeTime > 0 {
			m.state = StateCharging
			m.countdown = def.ChargeTime
		} else {
			m.state = StateCharged
			m.countdown = 0
		}
	case def.Class == data.SkillClassRanged:
		m.state = StateAiming
		m.countdown = 0
	case def.Defensive():
		m.state = StateWaitingDefense
		m.countdown = 0
		if m.hooks.DefensePosture != nil {
			m.hooks.DefensePosture(def)
		}
	default:
		m.enterCommitting()
	}
	return true
}

func (m *Machine) execute() bool {
	switch m.state {
	case StateCharged, StateAiming:
		m.enterCommitting()
		return true
	case StateWaitingDefense:
		// Releasing the posture drops the pending defense registration and
		// sends the actor straight into recovery.
		if m.hooks.DefenseReleased != nil {
			m.hooks.DefenseReleased(m.skill, DefenseReleaseExecute)
		}
		m.enterRecovering()
		return true
	}
	return false
}

func (m *Machine) cancel() bool {
	if !m.state.Cancellable() {
		return false
	}
	if m.state == StateWaitingDefense && m.hooks.DefenseReleased != nil {
		m.hooks.DefenseReleased(m.skill, DefenseReleaseCancel)
	}
	m.reset()
	return true
}

func (m *Machine) interrupt() {
	if m.state == StateWaitingDefense && m.hooks.DefenseReleased != nil {
		m.hooks.DefenseReleased(m.skill, DefenseReleaseInterrupt)
	}
	m.skill = nil
	m.targetID = ""
	m.countdown = 0
	m.state = StateLocked
}

func (m *Machine) clearLock() bool {
	if m.state != StateLocked {
		return false
	}
	m.reset()
	return true
}

func (m *Machine) enterCommitting() {
	def := m.skill
	target := m.targetID
	m.state = StateCommitting
	m.countdown = 0
	if def != nil {
		m.countdown = def.CommitTime
	}
	if m.hooks.Commit != nil {
		m.hooks.Commit(def, target)
	}
}

func (m *Machine) enterRecovering() {
	m.state = StateRecovering
	m.countdown = 0
	if m.skill != nil {
		m.countdown = m.skill.RecoverTime
	}
	if m.countdown <= 0 {
		m.reset()
	}
}

func (m *Machine) reset() {
	m.state = StateIdle
	m.skill = nil
	m.targetID = ""
	m.countdown = 0
}

// Advance moves phase countdowns forward by one tick's delta. Phase
// boundaries are polled here; the committing, active, and recovering phases
// run strictly in sequence.
func (m *Machine) Advance(dt time.Duration) {
	if m == nil || dt <= 0 {
		return
	}
	switch m.state {
	case StateCharging:
		m.countdown -= dt
		if m.countdown <= 0 {
			m.state = StateCharged
			m.countdown = 0
		}
	case StateCommitting:
		m.countdown -= dt
		if m.countdown <= 0 {
			m.state = StateActive
			m.countdown = 0
			if m.skill != nil {
				m.countdown = m.skill.ActiveTime
			}
			if m.countdown <= 0 {
				m.enterRecovering()
			}
		}
	case StateActive:
		m.countdown -= dt
		if m.countdown <= 0 {
			m.enterRecovering()
		}
	case StateRecovering:
		m.countdown -= dt
		if m.countdown <= 0 {
			m.reset()
		}
	}
}

// ConsumeDefense is invoked when the resolver matches the held posture
// against incoming offense. The posture is spent and the actor recovers.
func (m *Machine) ConsumeDefense() bool {
	if m == nil || m.state != StateWaitingDefense {
		return false
	}
	m.enterRecovering()
	return true
}

// ExpireDefense is invoked when the defense window times out unmatched. The
// actor reverts to idle with zero effect.
func (m *Machine) ExpireDefense() bool {
	if m == nil || m.state != StateWaitingDefense {
		return false
	}
	m.reset()
	return true
}
