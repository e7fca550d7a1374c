package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// WeaponDefinition is the read-only configuration record for one weapon.
// Modifiers multiply the wielder's skill numbers; 1.0 is neutral.
type WeaponDefinition struct {
	ID             string
	Name           string
	SpeedModifier  float64
	DamageModifier float64
	RangeBonus     float64
}

// WeaponTable is the immutable weapon lookup, key = weapon ID.
type WeaponTable struct {
	weapons map[string]*WeaponDefinition
}

// Get returns the weapon definition for id, or nil when unknown.
func (t *WeaponTable) Get(id string) *WeaponDefinition {
	if t == nil {
		return nil
	}
	return t.weapons[id]
}

// Count returns the number of loaded weapons.
func (t *WeaponTable) Count() int {
	if t == nil {
		return 0
	}
	return len(t.weapons)
}

// --- YAML loading ---

type weaponEntry struct {
	ID             string  `yaml:"id"`
	Name           string  `yaml:"name"`
	SpeedModifier  float64 `yaml:"speed_modifier"`
	DamageModifier float64 `yaml:"damage_modifier"`
	RangeBonus     float64 `yaml:"range_bonus"`
}

type weaponFile struct {
	Weapons []weaponEntry `yaml:"weapons"`
}

// LoadWeaponTable reads weapon definitions from a YAML file.
func LoadWeaponTable(path string) (*WeaponTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read weapon table: %w", err)
	}
	return ParseWeaponTable(raw)
}

// ParseWeaponTable decodes weapon definitions from YAML bytes.
func ParseWeaponTable(raw []byte) (*WeaponTable, error) {
	var file weaponFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode weapon table: %w", err)
	}

	table := &WeaponTable{weapons: make(map[string]*WeaponDefinition, len(file.Weapons))}
	for _, entry := range file.Weapons {
		if entry.ID == "" {
			return nil, fmt.Errorf("weapon entry %q missing id", entry.Name)
		}
		if _, exists := table.weapons[entry.ID]; exists {
			return nil, fmt.Errorf("duplicate weapon id %q", entry.ID)
		}
		def := &WeaponDefinition{
			ID:             entry.ID,
			Name:           entry.Name,
			SpeedModifier:  entry.SpeedModifier,
			DamageModifier: entry.DamageModifier,
			RangeBonus:     entry.RangeBonus,
		}
		if def.SpeedModifier <= 0 {
			def.SpeedModifier = 1
		}
		if def.DamageModifier <= 0 {
			def.DamageModifier = 1
		}
		table.weapons[entry.ID] = def
	}
	return table, nil
}
