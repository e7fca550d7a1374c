package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// Config is the full server configuration. Values come from the TOML file,
// then environment variables override, then validation fills defaults.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Arena   ArenaConfig   `toml:"arena"`
	Combat  CombatConfig  `toml:"combat"`
	Data    DataConfig    `toml:"data"`
	Logging LoggingConfig `toml:"logging"`
}

type ServerConfig struct {
	BindAddress       string        `toml:"bind_address" env:"RIPOSTE_BIND_ADDRESS"`
	TickRate          int           `toml:"tick_rate" env:"RIPOSTE_TICK_RATE"`
	CatchupMaxTicks   int           `toml:"catchup_max_ticks"`
	CommandCapacity   int           `toml:"command_capacity"`
	PerActorLimit     int           `toml:"per_actor_limit"`
	HeartbeatInterval time.Duration `toml:"heartbeat_interval"`
	DisconnectAfter   time.Duration `toml:"disconnect_after"`
}

type ArenaConfig struct {
	Width     float64 `toml:"width"`
	Height    float64 `toml:"height"`
	MoveSpeed float64 `toml:"move_speed"` // units per second under raw input
	ActorHalf float64 `toml:"actor_half"` // collision half-extent
}

// CombatConfig carries the resolver tunables. The simultaneity window and
// defense timeout are deliberately configurable; deployments behind higher
// latency may need to widen both.
type CombatConfig struct {
	SimultaneityWindow    time.Duration `toml:"simultaneity_window" env:"RIPOSTE_SIMULTANEITY_WINDOW"`
	DefenseTimeout        time.Duration `toml:"defense_timeout" env:"RIPOSTE_DEFENSE_TIMEOUT"`
	KnockdownThreshold    float64       `toml:"knockdown_threshold"`
	KnockdownLock         time.Duration `toml:"knockdown_lock"`
	KnockdownMeterDecay   float64       `toml:"knockdown_meter_decay"` // per second
	StaminaRegenPerSecond float64       `toml:"stamina_regen_per_second"`
}

type DataConfig struct {
	SkillsPath  string `toml:"skills_path" env:"RIPOSTE_SKILLS_PATH"`
	WeaponsPath string `toml:"weapons_path" env:"RIPOSTE_WEAPONS_PATH"`
}

type LoggingConfig struct {
	Level       string `toml:"level" env:"RIPOSTE_LOG_LEVEL"`
	Development bool   `toml:"development" env:"RIPOSTE_LOG_DEV"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Server: ServerConfig{
			BindAddress:       ":8080",
			TickRate:          15,
			CatchupMaxTicks:   4,
			CommandCapacity:   1024,
			PerActorLimit:     32,
			HeartbeatInterval: 2 * time.Second,
			DisconnectAfter:   6 * time.Second,
		},
		Arena: ArenaConfig{
			Width:     800,
			Height:    600,
			MoveSpeed: 160,
			ActorHalf: 14,
		},
		Combat: CombatConfig{
			SimultaneityWindow:    100 * time.Millisecond,
			DefenseTimeout:        5 * time.Second,
			KnockdownThreshold:    100,
			KnockdownLock:         2 * time.Second,
			KnockdownMeterDecay:   10,
			StaminaRegenPerSecond: 8,
		},
		Data: DataConfig{
			SkillsPath:  "data/skills.yaml",
			WeaponsPath: "data/weapons.yaml",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the TOML file at path (skipped when path is empty), applies
// environment overrides, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config: %w", err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects unusable values and fills derived defaults.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("nil config")
	}
	if c.Server.TickRate <= 0 {
		return fmt.Errorf("server.tick_rate must be positive, got %d", c.Server.TickRate)
	}
	if c.Server.TickRate > 240 {
		return fmt.Errorf("server.tick_rate %d exceeds the supported maximum of 240", c.Server.TickRate)
	}
	if c.Combat.SimultaneityWindow <= 0 {
		return fmt.Errorf("combat.simultaneity_window must be positive, got %s", c.Combat.SimultaneityWindow)
	}
	if c.Combat.DefenseTimeout <= 0 {
		return fmt.Errorf("combat.defense_timeout must be positive, got %s", c.Combat.DefenseTimeout)
	}
	if c.Combat.KnockdownThreshold <= 0 {
		return fmt.Errorf("combat.knockdown_threshold must be positive, got %g", c.Combat.KnockdownThreshold)
	}
	if c.Arena.Width <= 0 || c.Arena.Height <= 0 {
		return fmt.Errorf("arena dimensions must be positive, got %gx%g", c.Arena.Width, c.Arena.Height)
	}
	if c.Arena.ActorHalf <= 0 {
		c.Arena.ActorHalf = 14
	}
	if c.Server.CommandCapacity <= 0 {
		c.Server.CommandCapacity = 1024
	}
	if c.Server.PerActorLimit <= 0 {
		c.Server.PerActorLimit = 32
	}
	if c.Server.CatchupMaxTicks <= 0 {
		c.Server.CatchupMaxTicks = 4
	}
	return nil
}

// TickInterval returns the duration of one simulation tick.
func (c *Config) TickInterval() time.Duration {
	if c == nil || c.Server.TickRate <= 0 {
		return time.Second / 15
	}
	return time.Second / time.Duration(c.Server.TickRate)
}
