package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	GravityGun GravityGunConfig `yaml:"gravity_gun"`
	Physics    PhysicsConfig    `yaml:"physics"`
	Server     ServerConfig     `yaml:"server"`
	World      WorldConfig      `yaml:"world"`
	Audit      AuditConfig      `yaml:"audit"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type GravityGunConfig struct {
	EntityReachDistance             float64       `yaml:"entity_reach_distance"`
	BlockReachDistance              float64       `yaml:"block_reach_distance"`
	LaunchInitialVelocityMultiplier float64       `yaml:"launch_initial_velocity_multiplier"`
	DefaultPower                    float64       `yaml:"default_power"`
	BlockEntityLifetime             time.Duration `yaml:"block_entity_lifetime"`
}

type PhysicsConfig struct {
	TickRateHz int     `yaml:"tick_rate_hz"`
	Gravity    float64 `yaml:"gravity"`
	QueueSize  int     `yaml:"queue_size"`
}

type ServerConfig struct {
	TickRateHz int `yaml:"tick_rate_hz"`
	InboxSize  int `yaml:"inbox_size"`
}

type WorldConfig struct {
	// Blocks points at an optional YAML block catalog; empty uses the built-in one.
	Blocks string `yaml:"blocks"`
}

type AuditConfig struct {
	Dir string `yaml:"dir"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

func Default() *Config {
	return &Config{
		GravityGun: GravityGunConfig{
			EntityReachDistance:             8,
			BlockReachDistance:              6,
			LaunchInitialVelocityMultiplier: 2,
			DefaultPower:                    1,
			BlockEntityLifetime:             30 * time.Second,
		},
		Physics: PhysicsConfig{
			TickRateHz: 60,
			Gravity:    -9.81,
			QueueSize:  1024,
		},
		Server: ServerConfig{
			TickRateHz: 20,
			InboxSize:  256,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads path over Default(), so keys missing from the file keep their
// default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.GravityGun.EntityReachDistance < 0 {
		return fmt.Errorf("gravity_gun.entity_reach_distance must be >= 0, got %v", c.GravityGun.EntityReachDistance)
	}
	if c.GravityGun.BlockReachDistance < 0 {
		return fmt.Errorf("gravity_gun.block_reach_distance must be >= 0, got %v", c.GravityGun.BlockReachDistance)
	}
	if c.GravityGun.LaunchInitialVelocityMultiplier < 0 {
		return fmt.Errorf("gravity_gun.launch_initial_velocity_multiplier must be >= 0, got %v", c.GravityGun.LaunchInitialVelocityMultiplier)
	}
	if c.GravityGun.DefaultPower < 0 {
		return fmt.Errorf("gravity_gun.default_power must be >= 0, got %v", c.GravityGun.DefaultPower)
	}
	if c.GravityGun.BlockEntityLifetime < 0 {
		return fmt.Errorf("gravity_gun.block_entity_lifetime must be >= 0, got %v", c.GravityGun.BlockEntityLifetime)
	}
	if c.Physics.TickRateHz <= 0 {
		return fmt.Errorf("physics.tick_rate_hz must be > 0, got %d", c.Physics.TickRateHz)
	}
	if c.Server.TickRateHz <= 0 {
		return fmt.Errorf("server.tick_rate_hz must be > 0, got %d", c.Server.TickRateHz)
	}
	if c.Physics.QueueSize <= 0 {
		return fmt.Errorf("physics.queue_size must be > 0, got %d", c.Physics.QueueSize)
	}
	if c.Server.InboxSize <= 0 {
		return fmt.Errorf("server.inbox_size must be > 0, got %d", c.Server.InboxSize)
	}
	return nil
}
