package data

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SkillClass determines how a skill moves through the execution lifecycle
// and which side of an interaction it lands on.
type SkillClass string

const (
	// SkillClassInstant commits immediately from idle.
	SkillClassInstant SkillClass = "instant"
	// SkillClassCharge must hold a charge phase before it can be executed.
	SkillClassCharge SkillClass = "charge"
	// SkillClassRanged requires an aiming phase with a tracked target.
	SkillClassRanged SkillClass = "ranged"
	// SkillClassBlock postures to absorb an incoming offensive skill.
	SkillClassBlock SkillClass = "block"
	// SkillClassCounter postures to reflect an incoming offensive skill.
	SkillClassCounter SkillClass = "counter"
)

// Offensive reports whether the class produces outward damage.
func (c SkillClass) Offensive() bool {
	switch c {
	case SkillClassInstant, SkillClassCharge, SkillClassRanged:
		return true
	}
	return false
}

// Defensive reports whether the class postures against incoming offense.
func (c SkillClass) Defensive() bool {
	return c == SkillClassBlock || c == SkillClassCounter
}

// SkillDefinition is the read-only configuration record for one skill.
// Durations are stored resolved; the YAML file carries milliseconds.
type SkillDefinition struct {
	ID             string
	Name           string
	Class          SkillClass
	Damage         float64
	BaseSpeed      float64
	StaminaCost    float64
	Range          float64
	AreaRadius     float64 // 0 = single target
	ChargeTime     time.Duration
	CommitTime     time.Duration
	ActiveTime     time.Duration
	RecoverTime    time.Duration
	StunDuration   time.Duration
	KnockbackForce float64
	KnockdownGain  float64
	BlockFactor    float64      // defensive: fraction of damage that still lands
	Guards         []SkillClass // defensive: offense classes covered; empty = all
}

// Offensive reports whether the skill deals damage outward.
func (d *SkillDefinition) Offensive() bool {
	if d == nil {
		return false
	}
	return d.Class.Offensive()
}

// Defensive reports whether the skill postures against incoming offense.
func (d *SkillDefinition) Defensive() bool {
	if d == nil {
		return false
	}
	return d.Class.Defensive()
}

// GuardsAgainst reports whether this defensive skill covers the given
// offense class. An empty guard list covers everything.
func (d *SkillDefinition) GuardsAgainst(class SkillClass) bool {
	if d == nil || !d.Defensive() {
		return false
	}
	if len(d.Guards) == 0 {
		return true
	}
	for _, guarded := range d.Guards {
		if guarded == class {
			return true
		}
	}
	return false
}

// SkillTable is the immutable skill lookup, key = skill ID.
type SkillTable struct {
	skills map[string]*SkillDefinition
}

// Get returns the skill definition for id, or nil when unknown.
func (t *SkillTable) Get(id string) *SkillDefinition {
	if t == nil {
		return nil
	}
	return t.skills[id]
}

// Count returns the number of loaded skills.
func (t *SkillTable) Count() int {
	if t == nil {
		return 0
	}
	return len(t.skills)
}

// --- YAML loading ---

type skillEntry struct {
	ID             string   `yaml:"id"`
	Name           string   `yaml:"name"`
	Class          string   `yaml:"class"`
	Damage         float64  `yaml:"damage"`
	BaseSpeed      float64  `yaml:"base_speed"`
	StaminaCost    float64  `yaml:"stamina_cost"`
	Range          float64  `yaml:"range"`
	AreaRadius     float64  `yaml:"area_radius"`
	ChargeMs       int      `yaml:"charge_ms"`
	CommitMs       int      `yaml:"commit_ms"`
	ActiveMs       int      `yaml:"active_ms"`
	RecoverMs      int      `yaml:"recover_ms"`
	StunMs         int      `yaml:"stun_ms"`
	KnockbackForce float64  `yaml:"knockback_force"`
	KnockdownGain  float64  `yaml:"knockdown_gain"`
	BlockFactor    float64  `yaml:"block_factor"`
	Guards         []string `yaml:"guards"`
}

type skillFile struct {
	Skills []skillEntry `yaml:"skills"`
}

// LoadSkillTable reads skill definitions from a YAML file.
func LoadSkillTable(path string) (*SkillTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read skill table: %w", err)
	}
	return ParseSkillTable(raw)
}

// ParseSkillTable decodes skill definitions from YAML bytes.
func ParseSkillTable(raw []byte) (*SkillTable, error) {
	var file skillFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode skill table: %w", err)
	}

	table := &SkillTable{skills: make(map[string]*SkillDefinition, len(file.Skills))}
	for _, entry := range file.Skills {
		if entry.ID == "" {
			return nil, fmt.Errorf("skill entry %q missing id", entry.Name)
		}
		if _, exists := table.skills[entry.ID]; exists {
			return nil, fmt.Errorf("duplicate skill id %q", entry.ID)
		}
		class := SkillClass(entry.Class)
		if !class.Offensive() && !class.Defensive() {
			return nil, fmt.Errorf("skill %q has unknown class %q", entry.ID, entry.Class)
		}
		def := &SkillDefinition{
			ID:             entry.ID,
			Name:           entry.Name,
			Class:          class,
			Damage:         entry.Damage,
			BaseSpeed:      entry.BaseSpeed,
			StaminaCost:    entry.StaminaCost,
			Range:          entry.Range,
			AreaRadius:     entry.AreaRadius,
			ChargeTime:     time.Duration(entry.ChargeMs) * time.Millisecond,
			CommitTime:     time.Duration(entry.CommitMs) * time.Millisecond,
			ActiveTime:     time.Duration(entry.ActiveMs) * time.Millisecond,
			RecoverTime:    time.Duration(entry.RecoverMs) * time.Millisecond,
			StunDuration:   time.Duration(entry.StunMs) * time.Millisecond,
			KnockbackForce: entry.KnockbackForce,
			KnockdownGain:  entry.KnockdownGain,
			BlockFactor:    entry.BlockFactor,
		}
		for _, guard := range entry.Guards {
			guardClass := SkillClass(guard)
			if !guardClass.Offensive() {
				return nil, fmt.Errorf("skill %q guards unknown offense class %q", entry.ID, guard)
			}
			def.Guards = append(def.Guards, guardClass)
		}
		if def.Defensive() && def.Class == SkillClassBlock && def.BlockFactor <= 0 {
			return nil, fmt.Errorf("block skill %q requires a positive block_factor", entry.ID)
		}
		table.skills[entry.ID] = def
	}
	return table, nil
}
