package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for TrustFlow.
type Config struct {
	General      GeneralConfig      `yaml:"general"`
	Server       ServerConfig       `yaml:"server"`
	Graph        GraphConfig        `yaml:"graph"`
	Memory       MemoryConfig       `yaml:"memory"`
	Risk         RiskConfig         `yaml:"risk"`
	Verification VerificationConfig `yaml:"verification"`
	Reasoner     ReasonerConfig     `yaml:"reasoner"`
	EventLog     EventLogConfig     `yaml:"event_log"`
}

type GeneralConfig struct {
	InstanceID  string `yaml:"instance_id"`
	Environment string `yaml:"environment"` // production|staging|development
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"` // json|text
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type GraphConfig struct {
	SnapshotPath      string `yaml:"snapshot_path"`
	SnapshotIntervalS int    `yaml:"snapshot_interval_s"`
	SeedDemo          bool   `yaml:"seed_demo"`
}

type MemoryConfig struct {
	Path               string  `yaml:"path"`
	SuspicionThreshold float64 `yaml:"suspicion_threshold"`
}

type RiskConfig struct {
	FraudThreshold         float64 `yaml:"fraud_threshold"`
	PossibleFraudThreshold float64 `yaml:"possible_fraud_threshold"`
	HighAmountUSD          float64 `yaml:"high_amount_usd"`
	MediumAmountUSD        float64 `yaml:"medium_amount_usd"`
}

type VerificationConfig struct {
	FacialThreshold float64 `yaml:"facial_threshold"`
	TimeoutMs       int     `yaml:"timeout_ms"`
}

type ReasonerConfig struct {
	Remote    bool   `yaml:"remote"`
	Endpoint  string `yaml:"endpoint"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

type EventLogConfig struct {
	Path       string `yaml:"path"`
	BufferSize int    `yaml:"buffer_size"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Apply defaults
	applyDefaults(cfg)

	return cfg, nil
}

// Default returns a configuration with every default applied, for callers
// that run without a config file.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.General.InstanceID == "" {
		cfg.General.InstanceID = "trustflow-1"
	}
	if cfg.General.Environment == "" {
		cfg.General.Environment = "development"
	}
	if cfg.General.LogLevel == "" {
		cfg.General.LogLevel = "info"
	}
	if cfg.General.LogFormat == "" {
		cfg.General.LogFormat = "json"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Graph.SnapshotPath == "" {
		cfg.Graph.SnapshotPath = "data/graph.snapshot"
	}
	if cfg.Graph.SnapshotIntervalS == 0 {
		cfg.Graph.SnapshotIntervalS = 300 // 5 minutes
	}
	if cfg.Memory.Path == "" {
		cfg.Memory.Path = "data/suspicious_accounts.json"
	}
	if cfg.Memory.SuspicionThreshold == 0 {
		cfg.Memory.SuspicionThreshold = 0.3
	}
	if cfg.Risk.FraudThreshold == 0 {
		cfg.Risk.FraudThreshold = 0.75
	}
	if cfg.Risk.PossibleFraudThreshold == 0 {
		cfg.Risk.PossibleFraudThreshold = 0.45
	}
	if cfg.Risk.HighAmountUSD == 0 {
		cfg.Risk.HighAmountUSD = 10_000
	}
	if cfg.Risk.MediumAmountUSD == 0 {
		cfg.Risk.MediumAmountUSD = 3_000
	}
	if cfg.Verification.FacialThreshold == 0 {
		cfg.Verification.FacialThreshold = 0.70
	}
	if cfg.Verification.TimeoutMs == 0 {
		cfg.Verification.TimeoutMs = 3000
	}
	if cfg.Reasoner.TimeoutMs == 0 {
		cfg.Reasoner.TimeoutMs = 5000
	}
	if cfg.EventLog.Path == "" {
		cfg.EventLog.Path = "data/outcome_log.jsonl"
	}
	if cfg.EventLog.BufferSize == 0 {
		cfg.EventLog.BufferSize = 1024
	}
}
