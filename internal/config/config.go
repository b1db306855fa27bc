package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Get returns the environment value for key, or fallback when unset or blank.
func Get(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := Get(key, "")
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("config: %s must not be negative", key)
	}
	return d, nil
}

type Config struct {
	Port               string
	DatabaseURL        string
	RedisURL           string
	ORSAPIKey          string
	LockTTL            time.Duration
	OnTimeGrace        time.Duration
	ScoringWeightsPath string
	LogLevel           string
}

// Load reads server configuration from the environment.
// DATABASE_URL is required; REDIS_URL and ORS_API_KEY are optional.
func Load() (Config, error) {
	cfg := Config{
		Port:               Get("PORT", "8080"),
		DatabaseURL:        Get("DATABASE_URL", ""),
		RedisURL:           Get("REDIS_URL", ""),
		ORSAPIKey:          Get("ORS_API_KEY", ""),
		ScoringWeightsPath: Get("SCORING_WEIGHTS_PATH", ""),
		LogLevel:           Get("LOG_LEVEL", "info"),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("config: DATABASE_URL is required")
	}

	var err error
	if cfg.LockTTL, err = getDuration("LOCK_TTL", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.OnTimeGrace, err = getDuration("ON_TIME_GRACE", 5*time.Minute); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

type weightsFile struct {
	Weights map[string]float64 `yaml:"weights"`
}

// LoadScoringWeights reads preference weights keyed by constraint field,
// e.g. "driver.gender: 2". An empty path yields no overrides.
func LoadScoringWeights(path string) (map[string]float64, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load scoring weights: read %q: %w", path, err)
	}

	var f weightsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("load scoring weights: parse %q: %w", path, err)
	}

	for k, w := range f.Weights {
		if w < 0 {
			return nil, fmt.Errorf("load scoring weights: %s has negative weight %v", k, w)
		}
	}

	return f.Weights, nil
}
