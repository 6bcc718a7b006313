package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Mode values select the collaborator implementations at construction time.
const (
	ModeFixture = "fixture"
	ModeLive    = "live"
)

// Config captures the settings required to boot the orchestrator service.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Collaborators CollaboratorsConfig `yaml:"collaborators"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig controls the HTTP listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// PipelineConfig tunes the orchestration loop.
type PipelineConfig struct {
	AutoRemediateThreshold float64       `yaml:"autoRemediateThreshold"`
	AllowedActions         []string      `yaml:"allowedActions"`
	AnalysisTimeout        time.Duration `yaml:"analysisTimeout"`
	HistoryCapacity        int           `yaml:"historyCapacity"`
	PlaybookPath           string        `yaml:"playbookPath"`
}

// CollaboratorsConfig selects and configures the Collector/Reasoner/Executor
// implementations. Mode is resolved once at startup; core logic never branches
// on it.
type CollaboratorsConfig struct {
	Mode string    `yaml:"mode"`
	AWS  AWSConfig `yaml:"aws"`
}

// AWSConfig configures the live collaborators.
type AWSConfig struct {
	Region      string `yaml:"region"`
	ModelID     string `yaml:"modelID"`
	MaxFindings int    `yaml:"maxFindings"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("OPSGRID_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if cfg.Collaborators.Mode != ModeFixture && cfg.Collaborators.Mode != ModeLive {
		return nil, fmt.Errorf("collaborators.mode must be %q or %q, got %q", ModeFixture, ModeLive, cfg.Collaborators.Mode)
	}
	if cfg.Pipeline.AutoRemediateThreshold < 0 || cfg.Pipeline.AutoRemediateThreshold > 1 {
		return nil, fmt.Errorf("pipeline.autoRemediateThreshold must be within [0,1], got %v", cfg.Pipeline.AutoRemediateThreshold)
	}

	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Pipeline: PipelineConfig{
			AutoRemediateThreshold: 0.8,
			AllowedActions:         []string{"auto_fix"},
			AnalysisTimeout:        20 * time.Second,
			HistoryCapacity:        20,
		},
		Collaborators: CollaboratorsConfig{
			Mode: ModeFixture,
			AWS: AWSConfig{
				Region:      "us-east-1",
				ModelID:     "amazon.nova-pro-v1:0",
				MaxFindings: 25,
			},
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPSGRID_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("OPSGRID_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("OPSGRID_GRACEFUL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.GracefulTimeout = d
		}
	}
	if v := os.Getenv("OPSGRID_AUTO_REMEDIATE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Pipeline.AutoRemediateThreshold = f
		}
	}
	if v := os.Getenv("OPSGRID_ALLOWED_ACTIONS"); v != "" {
		actions := make([]string, 0)
		for _, action := range strings.Split(v, ",") {
			if action = strings.TrimSpace(action); action != "" {
				actions = append(actions, action)
			}
		}
		cfg.Pipeline.AllowedActions = actions
	}
	if v := os.Getenv("OPSGRID_ANALYSIS_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Pipeline.AnalysisTimeout = d
		}
	}
	if v := os.Getenv("OPSGRID_HISTORY_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.HistoryCapacity = n
		}
	}
	if v := os.Getenv("OPSGRID_PLAYBOOK_PATH"); v != "" {
		cfg.Pipeline.PlaybookPath = v
	}
	if v := os.Getenv("OPSGRID_MODE"); v != "" {
		cfg.Collaborators.Mode = strings.ToLower(v)
	}
	if v := os.Getenv("OPSGRID_AWS_REGION"); v != "" {
		cfg.Collaborators.AWS.Region = v
	}
	if v := os.Getenv("OPSGRID_MODEL_ID"); v != "" {
		cfg.Collaborators.AWS.ModelID = v
	}
	if v := os.Getenv("OPSGRID_MAX_FINDINGS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Collaborators.AWS.MaxFindings = n
		}
	}
	if v := os.Getenv("OPSGRID_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("OPSGRID_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
}
