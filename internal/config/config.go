package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultConfig []byte

// AgentConfig defines configuration for a single LLM agent.
type AgentConfig struct {
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// GetModel returns the agent's model, falling back to default if not set.
func (a *AgentConfig) GetModel(defaultModel string) string {
	if a.Model != "" {
		return a.Model
	}
	return defaultModel
}

// AgentsConfig defines all agents in the system.
type AgentsConfig struct {
	Default     AgentConfig `yaml:"default"`     // Default model for all agents
	Simulator   AgentConfig `yaml:"simulator"`   // Derives first-screen tags from a full profile
	Recommender AgentConfig `yaml:"recommender"` // Ranks stories under the prompt being tuned
	Oracle      AgentConfig `yaml:"oracle"`      // Prompt-independent ground-truth ranking
	Optimizer   AgentConfig `yaml:"optimizer"`   // Rewrites the prompt from failure records
	Expander    AgentConfig `yaml:"expander"`    // One-time seed pool expansion
}

// EmbeddingConfig defines embedding model settings.
type EmbeddingConfig struct {
	Model string `yaml:"model" env:"PROMPTTUNER_EMBEDDING_MODEL"`
}

type OpenRouterConfig struct {
	APIKey            string  `yaml:"api_key" env:"PROMPTTUNER_OPENROUTER_API_KEY"`
	ProxyURL          string  `yaml:"proxy_url" env:"PROMPTTUNER_OPENROUTER_PROXY_URL"`
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"PROMPTTUNER_OPENROUTER_RPS"`
	Burst             int     `yaml:"burst"`
}

// PoolConfig controls the one-time seed pool expansion.
type PoolConfig struct {
	TargetSize int `yaml:"target_size" env:"PROMPTTUNER_POOL_TARGET_SIZE"`
}

// SimulateConfig bounds the simulated first-screen tag count.
type SimulateConfig struct {
	MinTags int `yaml:"min_tags"`
	MaxTags int `yaml:"max_tags"`
}

// RecommendConfig controls the recommendation engine.
type RecommendConfig struct {
	PrefilterTopK int `yaml:"prefilter_top_k"`
}

// OracleConfig controls the ground-truth oracle.
type OracleConfig struct {
	PrefilterTopK int `yaml:"prefilter_top_k"`
}

// OptimizeConfig controls the optimization loop termination policy.
type OptimizeConfig struct {
	TargetScore    float64 `yaml:"target_score" env:"PROMPTTUNER_TARGET_SCORE"`
	PlateauEpsilon float64 `yaml:"plateau_epsilon"`
	MaxIterations  int     `yaml:"max_iterations" env:"PROMPTTUNER_MAX_ITERATIONS"`
	TimeBudget     string  `yaml:"time_budget" env:"PROMPTTUNER_TIME_BUDGET"`
	DefaultPrompt  string  `yaml:"default_prompt"`
}

// DefaultTimeBudget bounds a single user's optimization run.
const DefaultTimeBudget = 5 * time.Minute

// GetTimeBudget returns the parsed wall-clock budget for one run.
// Falls back to DefaultTimeBudget if not configured or invalid.
func (o *OptimizeConfig) GetTimeBudget() time.Duration {
	if o.TimeBudget == "" {
		return DefaultTimeBudget
	}
	d, err := time.ParseDuration(o.TimeBudget)
	if err != nil {
		return DefaultTimeBudget
	}
	return d
}

type Config struct {
	Log struct {
		Level string `yaml:"level" env:"PROMPTTUNER_LOG_LEVEL"`
	} `yaml:"log"`
	Server struct {
		ListenPort string `yaml:"listen_port" env:"PROMPTTUNER_SERVER_PORT"`
	} `yaml:"server"`
	OpenRouter OpenRouterConfig `yaml:"openrouter"`
	Agents     AgentsConfig     `yaml:"agents"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Pool       PoolConfig       `yaml:"pool"`
	Simulate   SimulateConfig   `yaml:"simulate"`
	Recommend  RecommendConfig  `yaml:"recommend"`
	Oracle     OracleConfig     `yaml:"oracle"`
	Optimize   OptimizeConfig   `yaml:"optimize"`
	Profiles   struct {
		Path string `yaml:"path" env:"PROMPTTUNER_PROFILES_PATH"`
	} `yaml:"profiles"`
	Database struct {
		Path string `yaml:"path" env:"PROMPTTUNER_DATABASE_PATH"`
	} `yaml:"database"`
}

// Load loads configuration from the specified file path.
// It first loads the embedded default configuration, then merges the user config on top.
// Finally, it overrides values with environment variables.
func Load(path string) (*Config, error) {
	// First, load the embedded default config
	var cfg Config
	if err := yaml.Unmarshal(defaultConfig, &cfg); err != nil {
		return nil, err
	}

	// If a path is specified and the file exists, merge user config on top
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
			// File doesn't exist, just use defaults
			slog.Warn("config file not found, using defaults", "path", path)
		} else {
			// Expand environment variables in user config
			expandedData := []byte(os.ExpandEnv(string(data)))

			// Unmarshal user config on top of defaults (merges non-zero values)
			if err := yaml.Unmarshal(expandedData, &cfg); err != nil {
				return nil, err
			}
			slog.Info("loaded user config", "path", path)
		}
	}

	// Override with environment variables using cleanenv
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadDefault loads the embedded default configuration.
func LoadDefault() (*Config, error) {
	return Load("")
}

// DefaultConfigBytes returns the raw embedded default configuration.
// Useful for generating example config files.
func DefaultConfigBytes() []byte {
	return defaultConfig
}

// Validate checks configuration for required fields and valid ranges.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []error

	// Required fields
	if c.OpenRouter.APIKey == "" {
		errs = append(errs, errors.New("openrouter.api_key is required"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.Embedding.Model == "" {
		errs = append(errs, errors.New("embedding.model is required"))
	}
	if c.Agents.Default.Model == "" {
		errs = append(errs, errors.New("agents.default.model is required"))
	}

	if c.Pool.TargetSize <= 0 {
		errs = append(errs, fmt.Errorf("pool.target_size must be positive, got %d", c.Pool.TargetSize))
	}

	if c.Simulate.MinTags <= 0 {
		errs = append(errs, fmt.Errorf("simulate.min_tags must be positive, got %d", c.Simulate.MinTags))
	}
	if c.Simulate.MaxTags < c.Simulate.MinTags {
		errs = append(errs, fmt.Errorf("simulate.max_tags must be >= simulate.min_tags, got %d < %d",
			c.Simulate.MaxTags, c.Simulate.MinTags))
	}

	if c.Recommend.PrefilterTopK <= 0 {
		errs = append(errs, fmt.Errorf("recommend.prefilter_top_k must be positive, got %d", c.Recommend.PrefilterTopK))
	}
	if c.Oracle.PrefilterTopK <= 0 {
		errs = append(errs, fmt.Errorf("oracle.prefilter_top_k must be positive, got %d", c.Oracle.PrefilterTopK))
	}

	if c.Optimize.TargetScore < 0 || c.Optimize.TargetScore > 1 {
		errs = append(errs, fmt.Errorf("optimize.target_score must be between 0 and 1, got %f", c.Optimize.TargetScore))
	}
	if c.Optimize.PlateauEpsilon < 0 || c.Optimize.PlateauEpsilon > 1 {
		errs = append(errs, fmt.Errorf("optimize.plateau_epsilon must be between 0 and 1, got %f", c.Optimize.PlateauEpsilon))
	}
	if c.Optimize.MaxIterations <= 0 {
		errs = append(errs, fmt.Errorf("optimize.max_iterations must be positive, got %d", c.Optimize.MaxIterations))
	}
	if c.Optimize.TimeBudget != "" {
		if _, err := time.ParseDuration(c.Optimize.TimeBudget); err != nil {
			errs = append(errs, fmt.Errorf("optimize.time_budget is not a valid duration: %q", c.Optimize.TimeBudget))
		}
	}
	if c.Optimize.DefaultPrompt == "" {
		errs = append(errs, errors.New("optimize.default_prompt is required"))
	}

	if c.OpenRouter.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("openrouter.requests_per_second must not be negative, got %f", c.OpenRouter.RequestsPerSecond))
	}

	return errors.Join(errs...)
}
