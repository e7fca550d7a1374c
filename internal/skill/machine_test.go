package skill

import (
	"testing"
	"time"

	"riposte/server/internal/data"
)

type gateStub struct {
	budget float64
	spent  float64
}

func (g *gateStub) CanAfford(amount float64) bool {
	return g.budget-g.spent >= amount
}

func (g *gateStub) Consume(amount float64) bool {
	if !g.CanAfford(amount) {
		return false
	}
	g.spent += amount
	return true
}

func instantSkill() *data.SkillDefinition {
	return &data.SkillDefinition{
		ID:          "jab",
		Class:       data.SkillClassInstant,
		StaminaCost: 10,
		CommitTime:  100 * time.Millisecond,
		ActiveTime:  50 * time.Millisecond,
		RecoverTime: 100 * time.Millisecond,
	}
}

func chargeSkill(chargeTime time.Duration) *data.SkillDefinition {
	return &data.SkillDefinition{
		ID:          "overhead",
		Class:       data.SkillClassCharge,
		StaminaCost: 20,
		ChargeTime:  chargeTime,
		CommitTime:  80 * time.Millisecond,
		ActiveTime:  40 * time.Millisecond,
		RecoverTime: 120 * time.Millisecond,
	}
}

func blockSkill() *data.SkillDefinition {
	return &data.SkillDefinition{
		ID:          "guard",
		Class:       data.SkillClassBlock,
		StaminaCost: 5,
		BlockFactor: 0.25,
		RecoverTime: 60 * time.Millisecond,
	}
}

func TestInstantSkillRunsCommitActiveRecoverSequence(t *testing.T) {
	var committed *data.SkillDefinition
	gate := &gateStub{budget: 100}
	m := NewMachine(gate, Hooks{
		Commit: func(def *data.SkillDefinition, _ string) { committed = def },
	})
	def := instantSkill()

	if !m.TryTransition(Event{Kind: EventStart, Skill: def}) {
		t.Fatalf("expected start to succeed from idle")
	}
	if m.State() != StateCommitting {
		t.Fatalf("expected committing state, got %s", m.State())
	}
	if committed != def {
		t.Fatalf("expected commit hook to fire with the started skill")
	}
	if gate.spent != def.StaminaCost {
		t.Fatalf("expected %g stamina spent, got %g", def.StaminaCost, gate.spent)
	}

	m.Advance(100 * time.Millisecond)
	if m.State() != StateActive {
		t.Fatalf("expected active after commit countdown, got %s", m.State())
	}
	m.Advance(50 * time.Millisecond)
	if m.State() != StateRecovering {
		t.Fatalf("expected recovering after active countdown, got %s", m.State())
	}
	m.Advance(100 * time.Millisecond)
	if m.State() != StateIdle {
		t.Fatalf("expected idle after recovery, got %s", m.State())
	}
	if m.Skill() != nil {
		t.Fatalf("expected skill to clear on reset")
	}
}

func TestChargeSkillWaitsForExecute(t *testing.T) {
	committed := 0
	m := NewMachine(&gateStub{budget: 100}, Hooks{
		Commit: func(*data.SkillDefinition, string) { committed++ },
	})
	def := chargeSkill(200 * time.Millisecond)

	if !m.TryTransition(Event{Kind: EventStart, Skill: def}) {
		t.Fatalf("expected charge start to succeed")
	}
	if m.State() != StateCharging {
		t.Fatalf("expected charging state, got %s", m.State())
	}

	m.Advance(100 * time.Millisecond)
	if m.State() != StateCharging {
		t.Fatalf("expected charging to continue mid-countdown, got %s", m.State())
	}
	if m.TryTransition(Event{Kind: EventExecute}) {
		t.Fatalf("expected execute to be rejected while still charging")
	}

	m.Advance(100 * time.Millisecond)
	if m.State() != StateCharged {
		t.Fatalf("expected charged after countdown, got %s", m.State())
	}
	if committed != 0 {
		t.Fatalf("expected no commit while holding a charge")
	}

	// A charged skill holds indefinitely until released.
	m.Advance(time.Second)
	if m.State() != StateCharged {
		t.Fatalf("expected charge to hold, got %s", m.State())
	}

	if !m.TryTransition(Event{Kind: EventExecute}) {
		t.Fatalf("expected execute to release the charge")
	}
	if m.State() != StateCommitting {
		t.Fatalf("expected committing after release, got %s", m.State())
	}
	if committed != 1 {
		t.Fatalf("expected exactly one commit, got %d", committed)
	}
}

func TestZeroChargeTimeStartsCharged(t *testing.T) {
	m := NewMachine(nil, Hooks{})
	if !m.TryTransition(Event{Kind: EventStart, Skill: chargeSkill(0)}) {
		t.Fatalf("expected start to succeed")
	}
	if m.State() != StateCharged {
		t.Fatalf("expected an instant charge to start charged, got %s", m.State())
	}
}

func TestCancelDuringChargeForfeitsStamina(t *testing.T) {
	gate := &gateStub{budget: 100}
	m := NewMachine(gate, Hooks{})
	def := chargeSkill(200 * time.Millisecond)

	m.TryTransition(Event{Kind: EventStart, Skill: def})
	if !m.TryTransition(Event{Kind: EventCancel}) {
		t.Fatalf("expected cancel to succeed while charging")
	}
	if m.State() != StateIdle {
		t.Fatalf("expected idle after cancel, got %s", m.State())
	}
	if gate.spent != def.StaminaCost {
		t.Fatalf("expected spent stamina to stay spent, got %g", gate.spent)
	}
}

func TestStartRejectedWhenBusyOrUnaffordable(t *testing.T) {
	gate := &gateStub{budget: 15}
	m := NewMachine(gate, Hooks{})

	if m.TryTransition(Event{Kind: EventStart, Skill: chargeSkill(time.Second)}) {
		t.Fatalf("expected start to be rejected when stamina is short")
	}
	if m.State() != StateIdle {
		t.Fatalf("expected rejection to leave the machine idle, got %s", m.State())
	}
	if gate.spent != 0 {
		t.Fatalf("expected no stamina spent on rejection, got %g", gate.spent)
	}

	if !m.TryTransition(Event{Kind: EventStart, Skill: instantSkill()}) {
		t.Fatalf("expected affordable start to succeed")
	}
	if m.TryTransition(Event{Kind: EventStart, Skill: instantSkill()}) {
		t.Fatalf("expected start to be rejected while busy")
	}
}

func TestRangedSkillAimsUntilExecute(t *testing.T) {
	m := NewMachine(nil, Hooks{})
	def := &data.SkillDefinition{
		ID:         "bolt",
		Class:      data.SkillClassRanged,
		CommitTime: 50 * time.Millisecond,
	}

	if !m.TryTransition(Event{Kind: EventStart, Skill: def, TargetID: "victim"}) {
		t.Fatalf("expected ranged start to succeed")
	}
	if m.State() != StateAiming {
		t.Fatalf("expected aiming state, got %s", m.State())
	}
	if m.TargetID() != "victim" {
		t.Fatalf("expected tracked target 'victim', got %q", m.TargetID())
	}

	m.Advance(time.Second)
	if m.State() != StateAiming {
		t.Fatalf("expected aim to hold until released, got %s", m.State())
	}

	if !m.TryTransition(Event{Kind: EventExecute}) {
		t.Fatalf("expected execute to fire the aimed skill")
	}
	if m.State() != StateCommitting {
		t.Fatalf("expected committing after release, got %s", m.State())
	}
}

func TestDefensivePostureLifecycle(t *testing.T) {
	postured := 0
	var released []string
	m := NewMachine(nil, Hooks{
		DefensePosture:  func(*data.SkillDefinition) { postured++ },
		DefenseReleased: func(_ *data.SkillDefinition, reason string) { released = append(released, reason) },
	})

	if !m.TryTransition(Event{Kind: EventStart, Skill: blockSkill()}) {
		t.Fatalf("expected block start to succeed")
	}
	if m.State() != StateWaitingDefense {
		t.Fatalf("expected waiting_defense, got %s", m.State())
	}
	if postured != 1 {
		t.Fatalf("expected posture hook to fire once, got %d", postured)
	}

	if !m.ConsumeDefense() {
		t.Fatalf("expected matched posture to be consumable")
	}
	if m.State() != StateRecovering {
		t.Fatalf("expected recovery after the posture is consumed, got %s", m.State())
	}
	if m.ConsumeDefense() {
		t.Fatalf("expected a second consume to be rejected")
	}

	m.Advance(60 * time.Millisecond)
	m.TryTransition(Event{Kind: EventStart, Skill: blockSkill()})
	if !m.ExpireDefense() {
		t.Fatalf("expected unmatched posture to expire")
	}
	if m.State() != StateIdle {
		t.Fatalf("expected idle after expiry, got %s", m.State())
	}

	m.TryTransition(Event{Kind: EventStart, Skill: blockSkill()})
	if !m.TryTransition(Event{Kind: EventExecute}) {
		t.Fatalf("expected execute to release the posture")
	}
	if m.State() != StateRecovering {
		t.Fatalf("expected recovery after release, got %s", m.State())
	}
	if len(released) != 1 || released[0] != DefenseReleaseExecute {
		t.Fatalf("expected one execute release, got %v", released)
	}
}

func TestInterruptAlwaysWinsAndLockClears(t *testing.T) {
	m := NewMachine(nil, Hooks{})
	m.TryTransition(Event{Kind: EventStart, Skill: instantSkill()})
	if m.State() != StateCommitting {
		t.Fatalf("expected committing, got %s", m.State())
	}

	if !m.TryTransition(Event{Kind: EventInterrupt}) {
		t.Fatalf("expected interrupt to succeed over a committed skill")
	}
	if m.State() != StateLocked {
		t.Fatalf("expected locked state, got %s", m.State())
	}
	if m.Skill() != nil {
		t.Fatalf("expected interrupt to clear the in-flight skill")
	}

	if m.TryTransition(Event{Kind: EventStart, Skill: instantSkill()}) {
		t.Fatalf("expected starts to be rejected while locked")
	}
	if m.TryTransition(Event{Kind: EventCancel}) {
		t.Fatalf("expected cancel to be rejected while locked")
	}

	if !m.TryTransition(Event{Kind: EventClearLock}) {
		t.Fatalf("expected clear_lock to release the lock")
	}
	if m.State() != StateIdle {
		t.Fatalf("expected idle after clear_lock, got %s", m.State())
	}
}

func TestIllegalEventsLeaveStateUntouched(t *testing.T) {
	m := NewMachine(nil, Hooks{})

	if m.TryTransition(Event{Kind: EventExecute}) {
		t.Fatalf("expected execute at idle to be rejected")
	}
	if m.TryTransition(Event{Kind: EventCancel}) {
		t.Fatalf("expected cancel at idle to be rejected")
	}
	if m.TryTransition(Event{Kind: EventClearLock}) {
		t.Fatalf("expected clear_lock at idle to be rejected")
	}
	if m.TryTransition(Event{Kind: EventStart}) {
		t.Fatalf("expected start without a skill to be rejected")
	}
	if m.State() != StateIdle {
		t.Fatalf("expected idle throughout, got %s", m.State())
	}

	m.TryTransition(Event{Kind: EventStart, Skill: instantSkill()})
	if m.TryTransition(Event{Kind: EventCancel}) {
		t.Fatalf("expected cancel to be rejected once committed")
	}
	if m.State() != StateCommitting {
		t.Fatalf("expected committing to survive the rejected cancel, got %s", m.State())
	}
}
