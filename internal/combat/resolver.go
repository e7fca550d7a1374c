package combat

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"riposte/server/internal/data"
	"riposte/server/internal/geom"
	"riposte/server/internal/logging"
	logcombat "riposte/server/internal/logging/combat"
	"riposte/server/internal/telemetry"
)

const (
	metricBatchesTotal        = "combat_batches_total"
	metricBatchSize           = "combat_batch_size"
	metricStaleTargetsTotal   = "combat_stale_targets_total"
	metricDefenseTimeoutTotal = "combat_defense_timeouts_total"
	metricOutcomePrefix       = "combat_outcome_total_"
)

// Config carries the resolver tunables.
type Config struct {
	// SimultaneityWindow groups independently committed offenses into one
	// resolution batch.
	SimultaneityWindow time.Duration
	// DefenseTimeout bounds how long a defensive posture waits unmatched.
	DefenseTimeout time.Duration
}

// Hooks notify the owning simulation about defense registry changes so the
// actor's state machine stays in step with the resolver.
type Hooks struct {
	DefenseConsumed func(actorID string)
	DefenseExpired  func(actorID string)
}

// Resolver turns a stream of executions into interaction outcomes and side
// effects. Results are deterministic for identical ordered inputs: batches
// are processed in (commit time, actor ID) order and no map iteration order
// leaks into resolution.
type Resolver struct {
	cfg       Config
	roster    Roster
	publisher logging.Publisher
	logger    *zap.Logger
	metrics   telemetry.Metrics
	hooks     Hooks

	pending  []Execution
	defenses []defenseEntry
	tick     uint64
}

type defenseEntry struct {
	exec         Execution
	registeredAt time.Time
	expiresAt    time.Time
}

// NewResolver constructs a resolver bound to the given roster and
// collaborators. Pass telemetry.NopMetrics and logging.NopPublisher when a
// caller has no use for either.
func NewResolver(cfg Config, roster Roster, publisher logging.Publisher, logger *zap.Logger, metrics telemetry.Metrics, hooks Hooks) *Resolver {
	if cfg.SimultaneityWindow <= 0 {
		cfg.SimultaneityWindow = 100 * time.Millisecond
	}
	if cfg.DefenseTimeout <= 0 {
		cfg.DefenseTimeout = 5 * time.Second
	}
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = telemetry.NopMetrics{}
	}
	return &Resolver{
		cfg:       cfg,
		roster:    roster,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		hooks:     hooks,
	}
}

// PendingOffenses reports the number of undrained offensive executions.
func (r *Resolver) PendingOffenses() int {
	if r == nil {
		return 0
	}
	return len(r.pending)
}

// AwaitingDefense reports whether the actor currently holds a registered
// defensive posture.
func (r *Resolver) AwaitingDefense(actorID string) bool {
	if r == nil {
		return false
	}
	for _, entry := range r.defenses {
		if entry.exec.ActorID == actorID {
			return true
		}
	}
	return false
}

// Submit accepts one committed execution. Offensive executions queue for
// the next batch whose window covers their commit time; defensive ones
// register the actor as awaiting defense.
func (r *Resolver) Submit(exec Execution) {
	if r == nil || exec.Skill == nil || exec.ActorID == "" {
		return
	}
	switch {
	case exec.Offensive():
		r.pending = append(r.pending, exec)
	case exec.Defensive():
		r.registerDefense(exec)
	default:
		r.logger.Debug("execution with no combat role dropped",
			zap.String("actor", exec.ActorID),
			zap.String("skill", exec.SkillID()))
	}
}

func (r *Resolver) registerDefense(exec Execution) {
	entry := defenseEntry{
		exec:         exec,
		registeredAt: exec.CommitTime,
		expiresAt:    exec.CommitTime.Add(r.cfg.DefenseTimeout),
	}
	for i := range r.defenses {
		if r.defenses[i].exec.ActorID == exec.ActorID {
			r.defenses[i] = entry
			return
		}
	}
	r.defenses = append(r.defenses, entry)
}

// CancelDefense drops the actor's awaiting-defense registration without
// firing hooks. Called when the posture ends on the actor's side (cancel,
// execute release, interrupt).
func (r *Resolver) CancelDefense(actorID string) {
	if r == nil {
		return
	}
	for i := range r.defenses {
		if r.defenses[i].exec.ActorID == actorID {
			r.defenses = append(r.defenses[:i], r.defenses[i+1:]...)
			return
		}
	}
}

// Resolve runs one resolution pass. It first expires stale defensive
// postures, then drains every batch whose simultaneity window has closed by
// now. Executions committed after a batch's cutoff wait for the next pass;
// there is no queue-jumping.
func (r *Resolver) Resolve(now time.Time, tick uint64) []Resolution {
	if r == nil {
		return nil
	}
	r.tick = tick
	r.expireDefenses(now)

	var resolutions []Resolution
	for len(r.pending) > 0 {
		sort.SliceStable(r.pending, func(i, j int) bool {
			a, b := r.pending[i], r.pending[j]
			if !a.CommitTime.Equal(b.CommitTime) {
				return a.CommitTime.Before(b.CommitTime)
			}
			return a.ActorID < b.ActorID
		})

		cutoff := r.pending[0].CommitTime.Add(r.cfg.SimultaneityWindow)
		if now.Before(cutoff) {
			// The earliest batch is still open; everything waits.
			break
		}
		batchEnd := 1
		for batchEnd < len(r.pending) && !r.pending[batchEnd].CommitTime.After(cutoff) {
			batchEnd++
		}
		batch := r.pending[:batchEnd]
		remainder := make([]Execution, len(r.pending)-batchEnd)
		copy(remainder, r.pending[batchEnd:])
		resolutions = append(resolutions, r.resolveBatch(batch, now)...)
		r.pending = remainder
	}
	return resolutions
}

// resolveBatch adjudicates one closed batch. Every offensive execution in
// the batch yields exactly one resolution per struck target; pair failures
// degrade to no-ops without aborting the rest of the batch.
func (r *Resolver) resolveBatch(batch []Execution, now time.Time) []Resolution {
	r.metrics.Add(metricBatchesTotal, 1)
	r.metrics.Store(metricBatchSize, uint64(len(batch)))

	// Index each actor's execution for mutual-offense lookups. Duplicate
	// submissions from one actor should be impossible (one in-flight
	// execution per actor); keep the first and flag the rest.
	byActor := make(map[string]int, len(batch))
	for i := range batch {
		if _, exists := byActor[batch[i].ActorID]; exists {
			r.logger.Warn("duplicate execution for actor in batch",
				zap.String("actor", batch[i].ActorID),
				zap.String("skill", batch[i].SkillID()))
			continue
		}
		byActor[batch[i].ActorID] = i
	}

	// Strikes already adjudicated as the far side of a mutual pair:
	// key attacker -> target, value the outcome to apply when reached.
	settled := make(map[[2]string]Outcome)

	var resolutions []Resolution
	for i := range batch {
		exec := batch[i]
		if len(exec.TargetIDs) == 0 {
			// A swing at nothing still yields its one outcome.
			resolutions = append(resolutions, r.record(Resolution{
				AttackerID: exec.ActorID,
				SkillID:    exec.SkillID(),
				Outcome:    OutcomeUnopposed,
			}, nil))
			continue
		}
		for _, targetID := range exec.TargetIDs {
			pair := [2]string{exec.ActorID, targetID}
			if outcome, done := settled[pair]; done {
				resolutions = append(resolutions, r.applyStrike(exec, targetID, outcome, now))
				continue
			}
			if res, ok := r.resolveStrike(batch, byActor, settled, exec, targetID, now); ok {
				resolutions = append(resolutions, res)
			}
		}
	}
	return resolutions
}

// resolveStrike classifies one attacker/target pairing and applies its
// effects. A false return means the strike degraded to a documented no-op
// (stale target or missing collaborator).
func (r *Resolver) resolveStrike(batch []Execution, byActor map[string]int, settled map[[2]string]Outcome, exec Execution, targetID string, now time.Time) (Resolution, bool) {
	if _, ok := r.roster.Combatant(targetID); !ok {
		r.metrics.Add(metricStaleTargetsTotal, 1)
		r.logger.Debug("stale target dropped from resolution",
			zap.String("attacker", exec.ActorID),
			zap.String("target", targetID))
		return Resolution{}, false
	}

	// Matched defense wins over every other classification.
	if defense, ok := r.matchDefense(targetID, exec.Skill.Class); ok {
		outcome := matchupOutcome(defense.exec.Skill.Class)
		r.consumeDefense(targetID)
		return r.applyDefendedStrike(exec, defense.exec, targetID, outcome, now), true
	}

	// Mutual offense: the target committed its own offense against the
	// attacker inside this same batch.
	if j, ok := byActor[targetID]; ok {
		other := batch[j]
		if other.Offensive() && targetsActor(other, exec.ActorID) {
			reverse := [2]string{targetID, exec.ActorID}
			switch {
			case SpeedsTied(exec.Speed, other.Speed):
				settled[reverse] = OutcomeSimultaneousTrade
				return r.applyStrike(exec, targetID, OutcomeSimultaneousTrade, now), true
			case exec.Speed > other.Speed:
				settled[reverse] = OutcomeSpeedLoss
				r.recordNegated(other, exec.ActorID)
				return r.applyStrike(exec, targetID, OutcomeSpeedWin, now), true
			default:
				// The reverse strike wins; this one is negated. The
				// winner's outcome is applied when its own entry is
				// reached so batch order stays stable.
				settled[reverse] = OutcomeSpeedWin
				return r.record(Resolution{
					AttackerID: exec.ActorID,
					TargetID:   targetID,
					SkillID:    exec.SkillID(),
					Outcome:    OutcomeSpeedLoss,
				}, nil), true
			}
		}
	}

	return r.applyStrike(exec, targetID, OutcomeUnopposed, now), true
}

// matchDefense returns the target's registered posture when it guards the
// incoming offense class. An incompatible posture is left standing.
func (r *Resolver) matchDefense(targetID string, incoming data.SkillClass) (defenseEntry, bool) {
	for _, entry := range r.defenses {
		if entry.exec.ActorID != targetID {
			continue
		}
		if entry.exec.Skill.GuardsAgainst(incoming) {
			return entry, true
		}
		return defenseEntry{}, false
	}
	return defenseEntry{}, false
}

func (r *Resolver) consumeDefense(actorID string) {
	r.CancelDefense(actorID)
	if r.hooks.DefenseConsumed != nil {
		r.hooks.DefenseConsumed(actorID)
	}
}

// matchupOutcome is the fixed defense-class matchup table.
func matchupOutcome(defenseClass data.SkillClass) Outcome {
	if defenseClass == data.SkillClassCounter {
		return OutcomeReflected
	}
	return OutcomeBlocked
}

func targetsActor(exec Execution, actorID string) bool {
	for _, id := range exec.TargetIDs {
		if id == actorID {
			return true
		}
	}
	return false
}

// applyStrike applies an undefended strike outcome. Speed losses carry no
// effect; everything else lands the attack's full numbers.
func (r *Resolver) applyStrike(exec Execution, targetID string, outcome Outcome, now time.Time) Resolution {
	res := Resolution{
		AttackerID: exec.ActorID,
		TargetID:   targetID,
		SkillID:    exec.SkillID(),
		Outcome:    outcome,
	}
	if outcome == OutcomeSpeedLoss {
		return r.record(res, nil)
	}

	target, ok := r.roster.Combatant(targetID)
	if !ok {
		r.metrics.Add(metricStaleTargetsTotal, 1)
		return r.record(res, nil)
	}
	if target.Health == nil || target.Status == nil {
		r.logMissingCollaborator(targetID)
		return r.record(res, nil)
	}

	res.Damage = exec.Damage
	target.Health.TakeDamage(res.Damage, exec.ActorID)
	if exec.Skill.StunDuration > 0 {
		target.Status.ApplyStun(exec.Skill.StunDuration)
	}
	if exec.Skill.KnockdownGain > 0 {
		target.Status.IncrementKnockdownMeter(exec.Skill.KnockdownGain)
	}
	if exec.Skill.KnockbackForce > 0 {
		if attacker, ok := r.roster.Combatant(exec.ActorID); ok {
			dir := geom.Direction(attacker.Position, target.Position)
			target.Status.ApplyKnockback(dir.Scale(exec.Skill.KnockbackForce))
		}
	}
	return r.record(res, &target)
}

// applyDefendedStrike applies a Blocked or Reflected outcome from the fixed
// matchup table.
func (r *Resolver) applyDefendedStrike(exec, defense Execution, targetID string, outcome Outcome, now time.Time) Resolution {
	res := Resolution{
		AttackerID: exec.ActorID,
		TargetID:   targetID,
		SkillID:    exec.SkillID(),
		Outcome:    outcome,
	}

	switch outcome {
	case OutcomeReflected:
		// The counter turns the strike back: the attacker eats the damage
		// plus the counter skill's own rider effects. The defender takes
		// nothing.
		attacker, ok := r.roster.Combatant(exec.ActorID)
		if !ok {
			r.metrics.Add(metricStaleTargetsTotal, 1)
			return r.record(res, nil)
		}
		if attacker.Health == nil || attacker.Status == nil {
			r.logMissingCollaborator(exec.ActorID)
			return r.record(res, nil)
		}
		res.Damage = exec.Damage
		attacker.Health.TakeDamage(res.Damage, targetID)
		if defense.Skill.StunDuration > 0 {
			attacker.Status.ApplyStun(defense.Skill.StunDuration)
		}
		if defense.Skill.KnockdownGain > 0 {
			attacker.Status.IncrementKnockdownMeter(defense.Skill.KnockdownGain)
		}
		if defense.Skill.KnockbackForce > 0 {
			if defender, ok := r.roster.Combatant(targetID); ok {
				dir := geom.Direction(defender.Position, attacker.Position)
				attacker.Status.ApplyKnockback(dir.Scale(defense.Skill.KnockbackForce))
			}
		}
		return r.record(res, &attacker)

	default:
		// Blocked: a reduced damage fraction gets through, with none of
		// the strike's rider effects.
		target, ok := r.roster.Combatant(targetID)
		if !ok {
			r.metrics.Add(metricStaleTargetsTotal, 1)
			return r.record(res, nil)
		}
		if target.Health == nil {
			r.logMissingCollaborator(targetID)
			return r.record(res, nil)
		}
		res.Damage = exec.Damage * defense.Skill.BlockFactor
		target.Health.TakeDamage(res.Damage, exec.ActorID)
		return r.record(res, &target)
	}
}

// record publishes the resolution's events and bumps outcome counters. The
// struck combatant, when available, supplies post-damage health.
func (r *Resolver) record(res Resolution, struck *Combatant) Resolution {
	r.metrics.Add(metricOutcomePrefix+string(res.Outcome), 1)

	ctx := context.Background()
	attackerRef := logging.EntityRef{ID: res.AttackerID, Kind: logging.EntityKindFighter}
	targetRef := logging.EntityRef{ID: res.TargetID, Kind: logging.EntityKindFighter}
	logcombat.InteractionResolved(ctx, r.publisher, r.tick, attackerRef, targetRef, logcombat.InteractionResolvedPayload{
		Skill:   res.SkillID,
		Outcome: string(res.Outcome),
		Damage:  res.Damage,
	})
	if res.Damage > 0 && struck != nil && struck.Health != nil {
		damagedRef := logging.EntityRef{ID: struck.ID, Kind: logging.EntityKindFighter}
		sourceRef := attackerRef
		if struck.ID == res.AttackerID {
			sourceRef = targetRef
		}
		logcombat.DamageApplied(ctx, r.publisher, r.tick, sourceRef, damagedRef, logcombat.DamageAppliedPayload{
			Skill:  res.SkillID,
			Amount: res.Damage,
		})
		if !struck.Health.IsAlive() {
			logcombat.Defeat(ctx, r.publisher, r.tick, sourceRef, damagedRef, logcombat.DefeatPayload{
				Skill:    res.SkillID,
				SourceID: sourceRef.ID,
			})
		}
	}
	return res
}

func (r *Resolver) recordNegated(exec Execution, winnerID string) {
	r.logger.Debug("mutual offense negated by speed loss",
		zap.String("actor", exec.ActorID),
		zap.String("skill", exec.SkillID()),
		zap.String("winner", winnerID))
}

func (r *Resolver) logMissingCollaborator(actorID string) {
	r.logger.Error("actor missing required collaborator, skipping resolution",
		zap.String("actor", actorID))
}

// expireDefenses reverts timed-out postures in registration order.
func (r *Resolver) expireDefenses(now time.Time) {
	if len(r.defenses) == 0 {
		return
	}
	kept := r.defenses[:0]
	for _, entry := range r.defenses {
		if now.Before(entry.expiresAt) {
			kept = append(kept, entry)
			continue
		}
		r.metrics.Add(metricDefenseTimeoutTotal, 1)
		actorRef := logging.EntityRef{ID: entry.exec.ActorID, Kind: logging.EntityKindFighter}
		logcombat.DefenseTimeout(context.Background(), r.publisher, r.tick, actorRef,
			entry.exec.SkillID(), now.Sub(entry.registeredAt), entry.expiresAt)
		if r.hooks.DefenseExpired != nil {
			r.hooks.DefenseExpired(entry.exec.ActorID)
		}
	}
	r.defenses = kept
}
