package world

import (
	"reflect"
	"testing"
	"time"

	"riposte/server/internal/config"
	"riposte/server/internal/data"
	"riposte/server/internal/geom"
	"riposte/server/internal/movement"
	"riposte/server/internal/sim"
	"riposte/server/internal/skill"
)

const testSkillsYAML = `
skills:
  - id: slash
    class: instant
    damage: 10
    base_speed: 10
    stamina_cost: 5
    range: 60
    commit_ms: 100
    active_ms: 100
    recover_ms: 100
  - id: heavy
    class: charge
    damage: 25
    base_speed: 6
    stamina_cost: 10
    range: 60
    charge_ms: 200
    commit_ms: 100
    active_ms: 100
    recover_ms: 200
    stun_ms: 400
    knockback_force: 40
    knockdown_gain: 30
  - id: dagger
    class: ranged
    damage: 8
    base_speed: 14
    range: 200
    commit_ms: 100
    recover_ms: 100
  - id: guard
    class: block
    block_factor: 0.25
    recover_ms: 100
  - id: riposte
    class: counter
    knockdown_gain: 15
    recover_ms: 100
`

const testWeaponsYAML = `
weapons:
  - id: fists
  - id: shortsword
    speed_modifier: 1.1
    damage_modifier: 1.2
    range_bonus: 8
`

func newCombatWorld(t *testing.T) *World {
	t.Helper()
	skills, err := data.ParseSkillTable([]byte(testSkillsYAML))
	if err != nil {
		t.Fatalf("parse skills: %v", err)
	}
	weapons, err := data.ParseWeaponTable([]byte(testWeaponsYAML))
	if err != nil {
		t.Fatalf("parse weapons: %v", err)
	}
	return New(Config{
		Arena: config.ArenaConfig{Width: 800, Height: 600, MoveSpeed: 160, ActorHalf: 14},
		Combat: config.CombatConfig{
			SimultaneityWindow:    100 * time.Millisecond,
			DefenseTimeout:        5 * time.Second,
			KnockdownThreshold:    100,
			KnockdownLock:         2 * time.Second,
			KnockdownMeterDecay:   10,
			StaminaRegenPerSecond: 8,
		},
		TickInterval: 100 * time.Millisecond,
	}, skills, weapons, nil, sim.Deps{})
}

// ticker drives a world at a fixed 100ms timestep.
type ticker struct {
	w    *World
	tick uint64
	now  time.Time
}

func newTicker(w *World) *ticker {
	return &ticker{w: w, now: time.Unix(1000, 0)}
}

func (tk *ticker) step(cmds ...sim.Command) {
	tk.tick++
	tk.now = tk.now.Add(100 * time.Millisecond)
	if len(cmds) > 0 {
		tk.w.Apply(cmds)
	}
	tk.w.Step(sim.TickContext{Tick: tk.tick, Now: tk.now, Delta: 0.1})
}

func spawn(t *testing.T, w *World, id string, x, y float64) *Actor {
	t.Helper()
	actor, err := w.SpawnActor(SpawnConfig{
		ID:       id,
		Position: geom.Vec2{X: x, Y: y},
		WeaponID: "fists",
	})
	if err != nil {
		t.Fatalf("spawn %s: %v", id, err)
	}
	return actor
}

func moveCmd(actorID string, dx, dy float64) sim.Command {
	return sim.Command{ActorID: actorID, Type: sim.CommandMove, Move: &sim.MoveCommand{DX: dx, DY: dy}}
}

func skillCmd(actorID string, kind sim.CommandType, skillID, targetID string) sim.Command {
	return sim.Command{ActorID: actorID, Type: kind, Skill: &sim.SkillCommand{SkillID: skillID, TargetID: targetID}}
}

func TestMoveCommandDrivesAndClampsPosition(t *testing.T) {
	w := newCombatWorld(t)
	tk := newTicker(w)
	a := spawn(t, w, "runner", 100, 100)

	tk.step(moveCmd("runner", 1, 0))
	if a.Position.X != 116 {
		t.Fatalf("expected 16 units of travel per tick, got x=%g", a.Position.X)
	}

	// Movement intent persists until released.
	tk.step()
	tk.step()
	if a.Position.X != 148 {
		t.Fatalf("expected the retained intent to keep moving, got x=%g", a.Position.X)
	}

	tk.step(moveCmd("runner", 0, 0))
	tk.step()
	if a.Position.X != 148 {
		t.Fatalf("expected a zero intent to stop movement, got x=%g", a.Position.X)
	}

	wall := spawn(t, w, "wall", 780, 100)
	tk.step(moveCmd("wall", 1, 0))
	if wall.Position.X != 786 {
		t.Fatalf("expected the arena edge clamp at 786, got x=%g", wall.Position.X)
	}
}

func TestSlashLandsOnNearestEnemy(t *testing.T) {
	w := newCombatWorld(t)
	tk := newTicker(w)
	spawn(t, w, "att", 100, 100)
	near := spawn(t, w, "near", 140, 100)
	far := spawn(t, w, "far", 150, 100)

	tk.step(skillCmd("att", sim.CommandSkillStart, "slash", ""))
	if near.Health.Current() != 100 {
		t.Fatalf("expected the open window to delay damage, got %g", near.Health.Current())
	}

	tk.step()
	if near.Health.Current() != 90 {
		t.Fatalf("expected the nearest enemy to take 10, got %g", near.Health.Current())
	}
	if far.Health.Current() != 100 {
		t.Fatalf("expected the farther enemy untouched, got %g", far.Health.Current())
	}
}

func TestChargedHeavyStunsAndKnocksBack(t *testing.T) {
	w := newCombatWorld(t)
	tk := newTicker(w)
	att := spawn(t, w, "att", 100, 100)
	tgt := spawn(t, w, "tgt", 140, 100)

	tk.step(skillCmd("att", sim.CommandSkillStart, "heavy", ""))
	if att.Machine.State() != skill.StateCharging {
		t.Fatalf("expected charging after start, got %s", att.Machine.State())
	}

	tk.step()
	if att.Machine.State() != skill.StateCharged {
		t.Fatalf("expected charged after the charge countdown, got %s", att.Machine.State())
	}

	tk.step(skillCmd("att", sim.CommandSkillExecute, "", ""))
	if att.Machine.State() != skill.StateCommitting {
		t.Fatalf("expected execute to commit the charge, got %s", att.Machine.State())
	}

	tk.step()
	if tgt.Health.Current() != 75 {
		t.Fatalf("expected 25 damage, got %g remaining", tgt.Health.Current())
	}
	if !tgt.Status.Stunned() {
		t.Fatalf("expected the target stunned")
	}
	if tgt.Machine.State() != skill.StateLocked {
		t.Fatalf("expected the stun to lock the target's machine, got %s", tgt.Machine.State())
	}
	if tgt.Position.X != 180 {
		t.Fatalf("expected a 40-unit knockback within one tick, got x=%g", tgt.Position.X)
	}

	// The knockback claim lives exactly one tick; the stun pins the target
	// through its countdown.
	tk.step()
	if tgt.Position.X != 180 {
		t.Fatalf("expected no further displacement, got x=%g", tgt.Position.X)
	}
	tk.step()
	tk.step()
	tk.step()
	if tgt.Status.Stunned() {
		t.Fatalf("expected the stun to expire")
	}
	if tgt.Machine.State() != skill.StateIdle {
		t.Fatalf("expected the lock to clear to idle, got %s", tgt.Machine.State())
	}
}

func TestLockedMachineHoldsStatusLockClaim(t *testing.T) {
	w := newCombatWorld(t)
	tk := newTicker(w)
	spawn(t, w, "att", 100, 100)
	tgt := spawn(t, w, "tgt", 140, 100)

	tk.step(skillCmd("att", sim.CommandSkillStart, "heavy", ""))
	tk.step()
	tk.step(skillCmd("att", sim.CommandSkillExecute, "", ""))
	tk.step()
	if tgt.Machine.State() != skill.StateLocked {
		t.Fatalf("expected the stun to lock the target, got %s", tgt.Machine.State())
	}

	tk.step(moveCmd("tgt", 1, 0))
	if !tgt.Movement.Has(movement.SourceStatusLock) {
		t.Fatalf("expected a status-lock claim while the machine is locked")
	}
	if tgt.Position.X != 180 {
		t.Fatalf("expected the lock to pin the target at 180, got x=%g", tgt.Position.X)
	}

	tk.step()
	tk.step()
	tk.step()
	if tgt.Machine.State() != skill.StateIdle {
		t.Fatalf("expected the lock to clear to idle, got %s", tgt.Machine.State())
	}
	if tgt.Movement.Has(movement.SourceStatusLock) {
		t.Fatalf("expected the status-lock claim released with the lock")
	}
	if tgt.Position.X != 196 {
		t.Fatalf("expected the retained intent to resume at 196, got x=%g", tgt.Position.X)
	}
}

func TestGuardBlocksIncomingSlash(t *testing.T) {
	w := newCombatWorld(t)
	tk := newTicker(w)
	att := spawn(t, w, "att", 100, 100)
	def := spawn(t, w, "def", 140, 100)

	tk.step(
		skillCmd("att", sim.CommandSkillStart, "slash", ""),
		skillCmd("def", sim.CommandSkillStart, "guard", ""),
	)
	if def.Machine.State() != skill.StateWaitingDefense {
		t.Fatalf("expected the defender posturing, got %s", def.Machine.State())
	}

	tk.step()
	if def.Health.Current() != 97.5 {
		t.Fatalf("expected a quarter of 10 damage through the block, got %g remaining", def.Health.Current())
	}
	if att.Health.Current() != 100 {
		t.Fatalf("expected the attacker untouched, got %g", att.Health.Current())
	}
	if def.Machine.State() != skill.StateRecovering {
		t.Fatalf("expected the consumed posture to recover, got %s", def.Machine.State())
	}
}

func TestAimedSkillAutoCancelsWhenTargetDies(t *testing.T) {
	w := newCombatWorld(t)
	tk := newTicker(w)
	att := spawn(t, w, "att", 100, 100)
	tgt := spawn(t, w, "tgt", 200, 100)

	tk.step(skillCmd("att", sim.CommandSkillStart, "dagger", "tgt"))
	if att.Machine.State() != skill.StateAiming {
		t.Fatalf("expected aiming, got %s", att.Machine.State())
	}

	tgt.Health.TakeDamage(1000, "test")
	tk.step()
	if att.Machine.State() != skill.StateIdle {
		t.Fatalf("expected the aim to auto-cancel on target death, got %s", att.Machine.State())
	}
}

func TestDeadActorIsPinnedAndExcludedFromResolution(t *testing.T) {
	w := newCombatWorld(t)
	tk := newTicker(w)
	spawn(t, w, "att", 100, 100)
	victim := spawn(t, w, "victim", 140, 100)

	victim.Health.TakeDamage(1000, "test")
	tk.step()
	if victim.Alive() {
		t.Fatalf("expected the victim marked dead")
	}
	if victim.Machine.State() != skill.StateLocked {
		t.Fatalf("expected death to interrupt the machine, got %s", victim.Machine.State())
	}

	// Later strikes find no live target and whiff.
	tk.step(skillCmd("att", sim.CommandSkillStart, "slash", ""))
	tk.step()
	if victim.Health.Current() != 0 {
		t.Fatalf("expected no further damage on a dead actor, got %g", victim.Health.Current())
	}

	snap := w.Snapshot()
	if len(snap.Actors) != 2 {
		t.Fatalf("expected both actors in the snapshot, got %d", len(snap.Actors))
	}
	for _, actor := range snap.Actors {
		if actor.ID == "victim" && actor.Alive {
			t.Fatalf("expected the snapshot to report the victim dead")
		}
	}
}

func TestSnapshotPreservesJoinOrder(t *testing.T) {
	w := newCombatWorld(t)
	spawn(t, w, "zed", 100, 100)
	spawn(t, w, "amy", 200, 100)
	spawn(t, w, "mid", 300, 100)

	snap := w.Snapshot()
	want := []string{"zed", "amy", "mid"}
	if len(snap.Actors) != len(want) {
		t.Fatalf("expected %d actors, got %d", len(want), len(snap.Actors))
	}
	for i, id := range want {
		if snap.Actors[i].ID != id {
			t.Fatalf("expected join order %v, got %s at %d", want, snap.Actors[i].ID, i)
		}
	}
}

func TestIdenticalRunsProduceIdenticalSnapshots(t *testing.T) {
	run := func() sim.Snapshot {
		w := newCombatWorld(t)
		tk := newTicker(w)
		spawn(t, w, "a", 100, 100)
		spawn(t, w, "b", 150, 100)

		tk.step(moveCmd("a", 1, 0))
		tk.step(skillCmd("a", sim.CommandSkillStart, "slash", ""))
		tk.step(skillCmd("b", sim.CommandSkillStart, "guard", ""))
		tk.step(moveCmd("b", 0, 1))
		for i := 0; i < 16; i++ {
			tk.step()
		}
		return w.Snapshot()
	}

	first := run()
	for i := 0; i < 5; i++ {
		if again := run(); !reflect.DeepEqual(first, again) {
			t.Fatalf("expected identical snapshots across runs, got\n%+v\nand\n%+v", first, again)
		}
	}
}
