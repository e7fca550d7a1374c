package skill

// State is the per-actor skill lifecycle state. Exactly one state is held at
// any instant; an actor can never carry two in-flight executions.
type State string

const (
	// StateIdle accepts new skill starts.
	StateIdle State = "idle"
	// StateCharging holds a charge-type skill until its timer elapses.
	StateCharging State = "charging"
	// StateCharged is a fully charged skill waiting for the execute input.
	StateCharged State = "charged"
	// StateAiming tracks a ranged skill's target until fire or cancel.
	StateAiming State = "aiming"
	// StateCommitting is the irrevocable windup; entering it emits the
	// execution to the resolver.
	StateCommitting State = "committing"
	// StateActive is the skill's effect window.
	StateActive State = "active"
	// StateRecovering is the post-skill lockout before idle.
	StateRecovering State = "recovering"
	// StateWaitingDefense is a held defensive posture awaiting incoming
	// offense, a cancel, or the defense timeout.
	StateWaitingDefense State = "waiting_defense"
	// StateLocked is the externally imposed stun/knockdown lockout.
	StateLocked State = "locked"
)

// Busy reports whether the state rejects new skill starts.
func (s State) Busy() bool {
	return s != StateIdle
}

// Cancellable reports whether an explicit cancel is legal from this state.
// Once committing begins only an external interrupt can abort the skill.
func (s State) Cancellable() bool {
	switch s {
	case StateCharging, StateCharged, StateAiming, StateWaitingDefense:
		return true
	}
	return false
}
