package world

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"riposte/server/internal/combat"
	"riposte/server/internal/config"
	"riposte/server/internal/data"
	"riposte/server/internal/geom"
	"riposte/server/internal/logging"
	logcombat "riposte/server/internal/logging/combat"
	logconditions "riposte/server/internal/logging/conditions"
	"riposte/server/internal/movement"
	"riposte/server/internal/sim"
	"riposte/server/internal/skill"
	"riposte/server/internal/telemetry"
)

const metricActorsGauge = "world_actors"

// Config carries the world's arena and combat tunables.
type Config struct {
	Arena        config.ArenaConfig
	Combat       config.CombatConfig
	TickInterval time.Duration
}

// World owns all live actors and drives them through the fixed tick phase
// order: staged commands, condition countdowns, skill lifecycles, combat
// resolution, movement arbitration. Everything runs on the loop goroutine.
type World struct {
	cfg       Config
	deps      sim.Deps
	logger    *zap.Logger
	publisher logging.Publisher
	metrics   telemetry.Metrics
	skills    *data.SkillTable
	weapons   *data.WeaponTable
	resolver  *combat.Resolver

	actors map[string]*Actor
	order  []string
	staged []sim.Command
	tick   uint64
	now    time.Time
	nextID uint64
}

// New constructs a world with an empty roster.
func New(cfg Config, skills *data.SkillTable, weapons *data.WeaponTable, publisher logging.Publisher, deps sim.Deps) *World {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second / 15
	}
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = telemetry.NopMetrics{}
	}
	w := &World{
		cfg:       cfg,
		deps:      deps,
		logger:    deps.Logger,
		publisher: publisher,
		metrics:   deps.Metrics,
		skills:    skills,
		weapons:   weapons,
		actors:    make(map[string]*Actor),
	}
	w.resolver = combat.NewResolver(
		combat.Config{
			SimultaneityWindow: cfg.Combat.SimultaneityWindow,
			DefenseTimeout:     cfg.Combat.DefenseTimeout,
		},
		w,
		publisher,
		deps.Logger,
		deps.Metrics,
		combat.Hooks{
			DefenseConsumed: w.onDefenseConsumed,
			DefenseExpired:  w.onDefenseExpired,
		},
	)
	return w
}

// Deps returns the injected infrastructure dependencies.
func (w *World) Deps() sim.Deps {
	if w == nil {
		return sim.Deps{}
	}
	return w.deps
}

// Resolver exposes the interaction resolver for diagnostics and tests.
func (w *World) Resolver() *combat.Resolver {
	if w == nil {
		return nil
	}
	return w.resolver
}

// Combatant implements combat.Roster. Dead or removed actors read as
// stale so pending strikes against them degrade to no-ops.
func (w *World) Combatant(id string) (combat.Combatant, bool) {
	actor, ok := w.actors[id]
	if !ok || !actor.Alive() {
		return combat.Combatant{}, false
	}
	return combat.Combatant{
		ID:       actor.ID,
		Position: actor.Position,
		Health:   actor.Health,
		Status:   actor.Status,
	}, true
}

// SpawnConfig describes a new actor.
type SpawnConfig struct {
	ID         string // generated when empty
	Faction    string
	Kind       logging.EntityKind
	Position   geom.Vec2
	WeaponID   string
	Stats      Stats
	MaxHealth  float64
	MaxStamina float64
}

// SpawnActor creates an actor with all collaborators wired in. Collaborator
// references are resolved exactly once, here.
func (w *World) SpawnActor(cfg SpawnConfig) (*Actor, error) {
	if w == nil {
		return nil, fmt.Errorf("nil world")
	}
	id := cfg.ID
	if id == "" {
		w.nextID++
		id = fmt.Sprintf("actor-%d", w.nextID)
	}
	if _, exists := w.actors[id]; exists {
		return nil, fmt.Errorf("actor %q already exists", id)
	}
	weapon := w.weapons.Get(cfg.WeaponID)
	if weapon == nil {
		return nil, fmt.Errorf("unknown weapon %q", cfg.WeaponID)
	}
	if cfg.MaxHealth <= 0 {
		cfg.MaxHealth = 100
	}
	if cfg.MaxStamina <= 0 {
		cfg.MaxStamina = 100
	}
	kind := cfg.Kind
	if kind == "" {
		kind = logging.EntityKindFighter
	}

	actor := &Actor{
		ID:       id,
		Faction:  cfg.Faction,
		Kind:     kind,
		Position: w.clampPosition(cfg.Position),
		Stats:    cfg.Stats,
		Weapon:   weapon,
		Health:   NewHealth(cfg.MaxHealth),
		Stamina:  NewStamina(cfg.MaxStamina, w.cfg.Combat.StaminaRegenPerSecond),
		Movement: movement.NewArbitrator(),
	}
	actor.Status = NewStatus(
		StatusConfig{
			KnockdownThreshold: w.cfg.Combat.KnockdownThreshold,
			KnockdownLock:      w.cfg.Combat.KnockdownLock,
			MeterDecay:         w.cfg.Combat.KnockdownMeterDecay,
			TickInterval:       w.cfg.TickInterval,
		},
		StatusHooks{
			Interrupt: func() {
				actor.Machine.TryTransition(skill.Event{Kind: skill.EventInterrupt})
			},
			ClearLock: func() {
				actor.Machine.TryTransition(skill.Event{Kind: skill.EventClearLock})
			},
			SubmitClaim:  func(claim movement.Claim) { actor.Movement.Submit(claim) },
			ReleaseClaim: func(source movement.SourceKind) { actor.Movement.Release(source) },
			StunApplied: func(duration time.Duration) {
				logconditions.Applied(context.Background(), w.publisher, w.tick,
					w.entityRef(id), w.entityRef(id),
					logconditions.AppliedPayload{Condition: "stun", DurationMs: duration.Milliseconds()})
			},
			StunCleared: func() {
				logconditions.Expired(context.Background(), w.publisher, w.tick,
					w.entityRef(id), logconditions.ExpiredPayload{Condition: "stun"})
			},
			KnockedDown: func(meter, threshold float64) {
				logconditions.Knockdown(context.Background(), w.publisher, w.tick,
					w.entityRef(id), logconditions.KnockdownPayload{Meter: meter, Threshold: threshold})
			},
		},
	)
	actor.Machine = skill.NewMachine(actor.Stamina, skill.Hooks{
		Commit: func(def *data.SkillDefinition, targetID string) {
			w.commitExecution(actor, def, targetID)
		},
		DefensePosture: func(def *data.SkillDefinition) {
			w.postureDefense(actor, def)
		},
		DefenseReleased: func(_ *data.SkillDefinition, _ string) {
			w.resolver.CancelDefense(actor.ID)
		},
	})

	w.actors[id] = actor
	w.order = append(w.order, id)
	w.metrics.Store(metricActorsGauge, uint64(len(w.actors)))
	return actor, nil
}

// RemoveActor takes the actor out of the simulation. Pending strikes
// against it become stale targets.
func (w *World) RemoveActor(id string) {
	if w == nil {
		return
	}
	if _, ok := w.actors[id]; !ok {
		return
	}
	delete(w.actors, id)
	for i, oid := range w.order {
		if oid == id {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	w.resolver.CancelDefense(id)
	w.metrics.Store(metricActorsGauge, uint64(len(w.actors)))
}

// Actor returns the live actor for id.
func (w *World) Actor(id string) (*Actor, bool) {
	if w == nil {
		return nil, false
	}
	actor, ok := w.actors[id]
	return actor, ok
}

// Apply stages commands for the next step. Validation happens at step time
// so every transition observes the same clock.
func (w *World) Apply(cmds []sim.Command) error {
	if w == nil || len(cmds) == 0 {
		return nil
	}
	w.staged = append(w.staged, cmds...)
	return nil
}

// Step advances the simulation one tick through the fixed phase order.
func (w *World) Step(ctx sim.TickContext) {
	if w == nil {
		return
	}
	w.tick = ctx.Tick
	w.now = ctx.Now
	dt := ctx.Delta
	dtDur := time.Duration(dt * float64(time.Second))

	w.applyStaged()

	for _, id := range w.order {
		actor := w.actors[id]
		actor.Stamina.Regen(dt)
		actor.Status.Advance(dtDur)
	}

	for _, id := range w.order {
		actor := w.actors[id]
		w.validateAiming(actor)
		actor.Machine.Advance(dtDur)
		w.reconcileSkillClaim(actor)
	}

	w.resolver.Resolve(w.now, w.tick)

	for _, id := range w.order {
		actor := w.actors[id]
		if !actor.dead && !actor.Health.IsAlive() {
			w.markDead(actor)
		}
	}

	for _, id := range w.order {
		actor := w.actors[id]
		if claim, ok := actor.Movement.Resolve(); ok && !claim.Vector.Zero() {
			actor.Position = w.clampPosition(actor.Position.Add(claim.Vector.Scale(dt)))
		}
		actor.Movement.Tick()
	}
}

func (w *World) applyStaged() {
	staged := w.staged
	w.staged = w.staged[:0]
	for _, cmd := range staged {
		actor, ok := w.actors[cmd.ActorID]
		if !ok {
			w.logger.Debug("command for unknown actor dropped", zap.String("actor", cmd.ActorID))
			continue
		}
		if actor.dead {
			continue
		}
		switch cmd.Type {
		case sim.CommandMove:
			w.applyMove(actor, cmd.Move)
		case sim.CommandSkillStart:
			w.applySkillStart(actor, cmd.Skill)
		case sim.CommandSkillExecute:
			actor.Machine.TryTransition(skill.Event{Kind: skill.EventExecute})
		case sim.CommandSkillCancel:
			actor.Machine.TryTransition(skill.Event{Kind: skill.EventCancel})
		case sim.CommandHeartbeat:
			// Connectivity bookkeeping lives in the hub.
		}
	}
}

func (w *World) applyMove(actor *Actor, move *sim.MoveCommand) {
	if move == nil {
		return
	}
	intent := geom.Vec2{X: move.DX, Y: move.DY}
	if intent.Zero() {
		actor.Movement.Release(movement.SourceInput)
		return
	}
	actor.Movement.Submit(movement.Claim{
		Source: movement.SourceInput,
		Vector: intent.Normalized().Scale(w.cfg.Arena.MoveSpeed),
	})
}

func (w *World) applySkillStart(actor *Actor, cmd *sim.SkillCommand) {
	if cmd == nil {
		return
	}
	def := w.skills.Get(cmd.SkillID)
	if def == nil {
		w.logger.Debug("unknown skill requested",
			zap.String("actor", actor.ID), zap.String("skill", cmd.SkillID))
		return
	}
	if def.Class == data.SkillClassRanged && cmd.TargetID == "" {
		w.logger.Debug("ranged skill requires a target",
			zap.String("actor", actor.ID), zap.String("skill", cmd.SkillID))
		return
	}
	if !actor.Machine.TryTransition(skill.Event{Kind: skill.EventStart, Skill: def, TargetID: cmd.TargetID}) {
		// Illegal transition: silent no-op for the caller, state unchanged.
		w.logger.Debug("skill start rejected",
			zap.String("actor", actor.ID),
			zap.String("skill", cmd.SkillID),
			zap.String("state", string(actor.Machine.State())))
	}
}

// validateAiming auto-cancels an aimed skill whose target left the
// simulation, died, or moved out of reach.
func (w *World) validateAiming(actor *Actor) {
	if actor.Machine.State() != skill.StateAiming {
		return
	}
	def := actor.Machine.Skill()
	target, ok := w.actors[actor.Machine.TargetID()]
	if ok && target.Alive() && def != nil {
		if geom.Distance(actor.Position, target.Position) <= w.reach(actor, def) {
			return
		}
	}
	actor.Machine.TryTransition(skill.Event{Kind: skill.EventCancel})
}

// reconcileSkillClaim keeps the machine-driven movement claims in step
// with the machine. Committing and active phases pin the actor in place;
// the locked state holds a status-lock claim for as long as it lasts.
func (w *World) reconcileSkillClaim(actor *Actor) {
	state := actor.Machine.State()
	immobile := state == skill.StateCommitting || state == skill.StateActive
	has := actor.Movement.Has(movement.SourceSkillPhase)
	if immobile && !has {
		actor.Movement.Submit(movement.Claim{Source: movement.SourceSkillPhase})
	} else if !immobile && has {
		actor.Movement.Release(movement.SourceSkillPhase)
	}
	locked := state == skill.StateLocked
	hasLock := actor.Movement.Has(movement.SourceStatusLock)
	if locked && !hasLock {
		actor.Movement.Submit(movement.Claim{Source: movement.SourceStatusLock})
	} else if !locked && hasLock {
		actor.Movement.Release(movement.SourceStatusLock)
	}
}

func (w *World) markDead(actor *Actor) {
	actor.dead = true
	actor.Machine.TryTransition(skill.Event{Kind: skill.EventInterrupt})
	actor.Movement.Submit(movement.Claim{Source: movement.SourceDeath})
	w.resolver.CancelDefense(actor.ID)
}

// commitExecution is the machine's commit hook: it stamps the execution
// with speed, weapon-modified damage, and struck targets, then hands it to
// the resolver.
func (w *World) commitExecution(actor *Actor, def *data.SkillDefinition, targetID string) {
	if def == nil {
		return
	}
	exec := combat.Execution{
		ActorID:    actor.ID,
		Skill:      def,
		Speed:      combat.Speed(def.BaseSpeed, actor.Weapon.SpeedModifier, actor.Stats.SpeedModifier()),
		Damage:     def.Damage * actor.Weapon.DamageModifier,
		CommitTime: w.now,
		TargetIDs:  w.selectTargets(actor, def, targetID),
	}
	w.resolver.Submit(exec)
	logcombat.ExecutionCommitted(context.Background(), w.publisher, w.tick, w.entityRef(actor.ID),
		logcombat.ExecutionCommittedPayload{
			Skill:     def.ID,
			Offensive: true,
			Speed:     exec.Speed,
			Targets:   len(exec.TargetIDs),
		})
}

// postureDefense registers a defensive posture with the resolver.
func (w *World) postureDefense(actor *Actor, def *data.SkillDefinition) {
	if def == nil {
		return
	}
	w.resolver.Submit(combat.Execution{
		ActorID:    actor.ID,
		Skill:      def,
		CommitTime: w.now,
	})
	logcombat.ExecutionCommitted(context.Background(), w.publisher, w.tick, w.entityRef(actor.ID),
		logcombat.ExecutionCommittedPayload{Skill: def.ID, Offensive: false})
}

// selectTargets picks the struck actors in deterministic roster order.
func (w *World) selectTargets(actor *Actor, def *data.SkillDefinition, targetID string) []string {
	if def.AreaRadius > 0 {
		var targets []string
		for _, id := range w.order {
			other := w.actors[id]
			if id == actor.ID || !other.Alive() || !w.hostile(actor, other) {
				continue
			}
			if geom.Distance(actor.Position, other.Position) <= def.AreaRadius {
				targets = append(targets, id)
			}
		}
		return targets
	}
	reach := w.reach(actor, def)
	if targetID != "" {
		target, ok := w.actors[targetID]
		if !ok || !target.Alive() || geom.Distance(actor.Position, target.Position) > reach {
			return nil
		}
		return []string{targetID}
	}
	bestID := ""
	bestDist := 0.0
	for _, id := range w.order {
		other := w.actors[id]
		if id == actor.ID || !other.Alive() || !w.hostile(actor, other) {
			continue
		}
		dist := geom.Distance(actor.Position, other.Position)
		if dist > reach {
			continue
		}
		if bestID == "" || dist < bestDist {
			bestID = id
			bestDist = dist
		}
	}
	if bestID == "" {
		return nil
	}
	return []string{bestID}
}

func (w *World) reach(actor *Actor, def *data.SkillDefinition) float64 {
	return def.Range + actor.Weapon.RangeBonus
}

// hostile treats actors without a faction as hostile to everyone.
func (w *World) hostile(a, b *Actor) bool {
	if a.Faction == "" || b.Faction == "" {
		return true
	}
	return a.Faction != b.Faction
}

func (w *World) onDefenseConsumed(actorID string) {
	if actor, ok := w.actors[actorID]; ok {
		actor.Machine.ConsumeDefense()
	}
}

func (w *World) onDefenseExpired(actorID string) {
	if actor, ok := w.actors[actorID]; ok {
		actor.Machine.ExpireDefense()
	}
}

func (w *World) clampPosition(pos geom.Vec2) geom.Vec2 {
	half := w.cfg.Arena.ActorHalf
	return geom.Vec2{
		X: geom.Clamp(pos.X, half, w.cfg.Arena.Width-half),
		Y: geom.Clamp(pos.Y, half, w.cfg.Arena.Height-half),
	}
}

func (w *World) entityRef(id string) logging.EntityRef {
	kind := logging.EntityKindUnknown
	if actor, ok := w.actors[id]; ok {
		kind = actor.Kind
	}
	return logging.EntityRef{ID: id, Kind: kind}
}

// Snapshot implements sim.Engine.
func (w *World) Snapshot() sim.Snapshot {
	if w == nil {
		return sim.Snapshot{}
	}
	snapshot := sim.Snapshot{
		Tick:       w.tick,
		ServerTime: w.now.UnixMilli(),
		Actors:     make([]sim.ActorSnapshot, 0, len(w.order)),
	}
	for _, id := range w.order {
		actor := w.actors[id]
		entry := sim.ActorSnapshot{
			ID:             actor.ID,
			Faction:        actor.Faction,
			Kind:           string(actor.Kind),
			X:              actor.Position.X,
			Y:              actor.Position.Y,
			Health:         actor.Health.Current(),
			MaxHealth:      actor.Health.Max(),
			Stamina:        actor.Stamina.Current(),
			MaxStamina:     actor.Stamina.Max(),
			SkillState:     string(actor.Machine.State()),
			KnockdownMeter: actor.Status.Meter(),
			Alive:          actor.Alive(),
		}
		if def := actor.Machine.Skill(); def != nil {
			entry.ActiveSkill = def.ID
		}
		snapshot.Actors = append(snapshot.Actors, entry)
	}
	return snapshot
}

var _ sim.EngineCore = (*World)(nil)
var _ combat.Roster = (*World)(nil)
