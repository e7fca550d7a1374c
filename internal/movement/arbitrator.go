package movement

import "riposte/server/internal/geom"

// SourceKind identifies who is asking to move the actor.
type SourceKind string

const (
	// SourceInput is raw player or AI movement intent.
	SourceInput SourceKind = "input"
	// SourceSkillPhase is a skill-imposed override, e.g. forced immobility
	// while a skill is active.
	SourceSkillPhase SourceKind = "skill_phase"
	// SourceStatusLock is a status-effect movement lock.
	SourceStatusLock SourceKind = "status_lock"
	// SourceStun is a stun or root.
	SourceStun SourceKind = "stun"
	// SourceDeath pins a dead actor in place.
	SourceDeath SourceKind = "death"
	// SourceKnockback is the resolver's displacement override. It outranks
	// everything for the single tick it lives, then releases control back
	// to normal arbitration.
	SourceKnockback SourceKind = "knockback"
)

// PriorityFor returns the arbitration rank of a claim source. Higher wins.
func PriorityFor(source SourceKind) int {
	switch source {
	case SourceInput:
		return 10
	case SourceSkillPhase:
		return 20
	case SourceStatusLock:
		return 30
	case SourceStun:
		return 40
	case SourceDeath:
		return 50
	case SourceKnockback:
		return 60
	}
	return 0
}

// Claim is one prioritized request to control the actor's net displacement.
type Claim struct {
	Source   SourceKind
	Priority int
	Vector   geom.Vec2
	// TicksLeft bounds the claim's lifetime; 0 means it lives until its
	// owner releases it.
	TicksLeft int

	seq uint64
}

// Arbitrator maintains an actor's simultaneously possible movement claims
// and applies exactly one of them per tick. Lower-priority claims are
// retained, not discarded, so control falls back automatically when a
// higher claim expires.
type Arbitrator struct {
	claims []Claim
	seq    uint64
}

// NewArbitrator returns an arbitrator with no claims.
func NewArbitrator() *Arbitrator {
	return &Arbitrator{}
}

// Submit stages a claim. A second claim from the same source replaces the
// first in place and counts as the more recent of the two.
func (a *Arbitrator) Submit(claim Claim) {
	if a == nil || claim.Source == "" {
		return
	}
	if claim.Priority == 0 {
		claim.Priority = PriorityFor(claim.Source)
	}
	a.seq++
	claim.seq = a.seq
	for i := range a.claims {
		if a.claims[i].Source == claim.Source {
			a.claims[i] = claim
			return
		}
	}
	a.claims = append(a.claims, claim)
}

// Release removes the claim owned by source, if any. Control falls to the
// next-highest surviving claim on the following Resolve without the caller
// resubmitting anything.
func (a *Arbitrator) Release(source SourceKind) {
	if a == nil {
		return
	}
	for i := range a.claims {
		if a.claims[i].Source == source {
			a.claims = append(a.claims[:i], a.claims[i+1:]...)
			return
		}
	}
}

// Has reports whether a claim from source is currently staged.
func (a *Arbitrator) Has(source SourceKind) bool {
	if a == nil {
		return false
	}
	for i := range a.claims {
		if a.claims[i].Source == source {
			return true
		}
	}
	return false
}

// Len reports the number of retained claims.
func (a *Arbitrator) Len() int {
	if a == nil {
		return 0
	}
	return len(a.claims)
}

// Resolve returns the single winning claim for this tick. Highest priority
// wins; a priority tie goes to the most recently submitted claim. The
// false return means no claim is staged and the actor holds still.
func (a *Arbitrator) Resolve() (Claim, bool) {
	if a == nil || len(a.claims) == 0 {
		return Claim{}, false
	}
	best := 0
	for i := 1; i < len(a.claims); i++ {
		candidate := a.claims[i]
		winner := a.claims[best]
		if candidate.Priority > winner.Priority ||
			(candidate.Priority == winner.Priority && candidate.seq > winner.seq) {
			best = i
		}
	}
	return a.claims[best], true
}

// Tick ages bounded claims and drops the ones whose lifetime ran out.
// Called once per simulation tick after the winning vector was applied.
func (a *Arbitrator) Tick() {
	if a == nil {
		return
	}
	kept := a.claims[:0]
	for _, claim := range a.claims {
		if claim.TicksLeft > 0 {
			claim.TicksLeft--
			if claim.TicksLeft == 0 {
				continue
			}
		}
		kept = append(kept, claim)
	}
	a.claims = kept
}
