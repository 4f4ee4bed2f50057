package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Provider describes one generation backend. Lower Priority values are tried first.
type Provider struct {
	Name     string        `yaml:"name" validate:"required"`
	Kind     string        `yaml:"kind" validate:"required,oneof=ollama openai gemini"`
	BaseURL  string        `yaml:"base_url"`
	Model    string        `yaml:"model"`
	APIKey   string        `yaml:"api_key"`
	Priority int           `yaml:"priority"`
	Timeout  time.Duration `yaml:"timeout" validate:"gte=0"`
}

type Config struct {
	HTTP struct {
		Addr      string  `yaml:"addr"`
		RateLimit float64 `yaml:"rate_limit" validate:"gte=0"`
		RateBurst int     `yaml:"rate_burst" validate:"gte=0"`
	} `yaml:"http"`
	Providers  []Provider `yaml:"providers" validate:"min=1,dive"`
	Generation struct {
		Temperature float64 `yaml:"temperature" validate:"gte=0,lte=2"`
		TopP        float64 `yaml:"top_p" validate:"gte=0,lte=1"`
		NumPredict  int     `yaml:"num_predict" validate:"gte=0"`
	} `yaml:"generation"`
	Pipeline struct {
		DailyLimit   int           `yaml:"daily_limit" validate:"gte=0"`
		MinuteLimit  int           `yaml:"minute_limit" validate:"gte=0"`
		CacheTTL     time.Duration `yaml:"cache_ttl" validate:"gte=0"`
		MaxListItems int           `yaml:"max_list_items" validate:"gte=1,lte=10"`
		FallbackPath string        `yaml:"fallback_path"`
	} `yaml:"pipeline"`
	Probe struct {
		Enabled  bool          `yaml:"enabled"`
		Interval time.Duration `yaml:"interval" validate:"gte=0"`
		Timeout  time.Duration `yaml:"timeout" validate:"gte=0"`
	} `yaml:"probe"`
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
	Database struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`
	Log struct {
		Level string `yaml:"level" validate:"oneof=debug info warn warning error"`
	} `yaml:"log"`
}

func Default() Config {
	var cfg Config
	cfg.HTTP.Addr = ":8090"
	cfg.HTTP.RateLimit = 20
	cfg.HTTP.RateBurst = 40
	cfg.Providers = []Provider{{
		Name:     "local",
		Kind:     "ollama",
		BaseURL:  "http://localhost:11434",
		Model:    "llama3",
		Priority: 0,
		Timeout:  30 * time.Second,
	}}
	cfg.Generation.Temperature = 0.7
	cfg.Generation.TopP = 0.9
	cfg.Generation.NumPredict = 1024
	cfg.Pipeline.DailyLimit = 1000
	cfg.Pipeline.MinuteLimit = 15
	cfg.Pipeline.MaxListItems = 4
	cfg.Probe.Enabled = true
	cfg.Probe.Interval = time.Minute
	cfg.Probe.Timeout = 5 * time.Second
	cfg.Log.Level = "info"
	return cfg
}

func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, err
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, err
			}
		}
	}

	applyEnv(&cfg)

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func Validate(cfg Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	seen := make(map[string]bool, len(cfg.Providers))
	for _, p := range cfg.Providers {
		if seen[p.Name] {
			return fmt.Errorf("%w: duplicate provider name %q", ErrInvalidConfig, p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

// applyEnv overrides scalar settings. HI_BASE_URL, HI_MODEL, HI_API_KEY and
// HI_TIMEOUT_MS address the primary (first) provider entry.
func applyEnv(cfg *Config) {
	if v := os.Getenv("HI_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("HI_HTTP_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.HTTP.RateLimit = f
		}
	}
	if len(cfg.Providers) > 0 {
		primary := &cfg.Providers[0]
		if v := os.Getenv("HI_BASE_URL"); v != "" {
			primary.BaseURL = v
		}
		if v := os.Getenv("HI_MODEL"); v != "" {
			primary.Model = v
		}
		if v := os.Getenv("HI_API_KEY"); v != "" {
			primary.APIKey = v
		}
		if v := os.Getenv("HI_TIMEOUT_MS"); v != "" {
			if ms, err := strconv.Atoi(v); err == nil {
				primary.Timeout = time.Duration(ms) * time.Millisecond
			}
		}
	}
	if v := os.Getenv("HI_FALLBACK_BASE_URL"); v != "" {
		cfg.Providers = append(cfg.Providers, Provider{
			Name:     "secondary",
			Kind:     "ollama",
			BaseURL:  v,
			Model:    os.Getenv("HI_FALLBACK_MODEL"),
			Priority: 10,
			Timeout:  30 * time.Second,
		})
	}
	if v := os.Getenv("HI_GEMINI_API_KEY"); v != "" {
		cfg.Providers = append(cfg.Providers, Provider{
			Name:     "gemini",
			Kind:     "gemini",
			Model:    os.Getenv("HI_GEMINI_MODEL"),
			APIKey:   v,
			Priority: 20,
			Timeout:  30 * time.Second,
		})
	}
	if v := os.Getenv("HI_DAILY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.DailyLimit = n
		}
	}
	if v := os.Getenv("HI_MINUTE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.MinuteLimit = n
		}
	}
	if v := os.Getenv("HI_CACHE_TTL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.CacheTTL = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("HI_MAX_LIST_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.MaxListItems = n
		}
	}
	if v := os.Getenv("HI_FALLBACK_PATH"); v != "" {
		cfg.Pipeline.FallbackPath = v
	}
	if v := os.Getenv("HI_PROBE_ENABLED"); v != "" {
		cfg.Probe.Enabled = parseBool(v, cfg.Probe.Enabled)
	}
	if v := os.Getenv("HI_PROBE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Probe.Interval = d
		}
	}
	if v := os.Getenv("HI_REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("HI_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("HI_LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(strings.TrimSpace(v))
	}
}

func parseBool(input string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
