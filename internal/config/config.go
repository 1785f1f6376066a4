// Package config holds the process-wide configuration for the optimizer:
// the storage connection settings, the HTTP ops surface, and the
// priority-window / phase tuning parameters consumed by pkg/priority and
// pkg/phase1-3.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level process configuration.
type Config struct {
	Database DatabaseConfig `json:"database" yaml:"database"`
	API      APIConfig      `json:"api" yaml:"api"`
	Windows  PriorityWindowConfig `json:"windows" yaml:"windows"`
	Phase1   Phase1Params   `json:"phase1" yaml:"phase1"`
	Phase2   Phase2Params   `json:"phase2" yaml:"phase2"`
	Phase3   Phase3Params   `json:"phase3" yaml:"phase3"`

	// Fallbacks records which top-level sections (windows, phase1, phase2,
	// phase3) fell back to their documented defaults because a loaded
	// overlay omitted them entirely. validate-config reports these; the
	// orchestrator's PHASE3_SETTINGS_FALLBACK_USED events come from
	// pkg/priority.LoadWindows instead.
	Fallbacks []string `json:"-" yaml:"-"`
}

// DatabaseConfig holds the Postgres and Redis connection settings.
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`

	RedisHost         string        `yaml:"redis_host"`
	RedisPort         int           `yaml:"redis_port"`
	RedisPassword     string        `yaml:"redis_password"`
	RedisDB           int           `yaml:"redis_db"`
	RedisPoolSize     int           `yaml:"redis_pool_size"`
	RedisMinIdleConns int           `yaml:"redis_min_idle_conns"`
	RedisDialTimeout  time.Duration `yaml:"redis_dial_timeout"`
	RedisReadTimeout  time.Duration `yaml:"redis_read_timeout"`
	RedisWriteTimeout time.Duration `yaml:"redis_write_timeout"`
}

// DSN builds a lib/pq connection string from the configured fields.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		d.Host, d.Port, d.Name, d.User, d.Password, d.SSLMode)
}

// APIConfig holds the ops HTTP surface configuration.
type APIConfig struct {
	Listen      string        `yaml:"listen"`
	MaxBodySize int64         `yaml:"max_body_size"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// WindowSetting is a single priority's preferred start-time window, in
// minutes from midnight. End is nil for an open-ended window (LP).
type WindowSetting struct {
	Start int  `yaml:"start"`
	End   *int `yaml:"end"`
	Grace int  `yaml:"grace"`
	K     int  `yaml:"k"`
	Cap   int  `yaml:"cap"`

	// EOTime/EOEndTime capture the two competing raw shapes seen at
	// ingestion for the EO window only (spec's documented eo_time /
	// eo_end_time ambiguity). LoadWindows resolves these; callers outside
	// pkg/priority should use Start/End.
	EOTime    *int `yaml:"eo_time,omitempty"`
	EOEndTime *int `yaml:"eo_end_time,omitempty"`
}

// PriorityWindowConfig holds the raw, possibly-partial per-priority window
// settings as loaded from the overlay. pkg/priority.LoadWindows resolves
// this into concrete Windows plus any fallback notices.
type PriorityWindowConfig struct {
	EO WindowSetting `yaml:"eo"`
	HP WindowSetting `yaml:"hp"`
	LP WindowSetting `yaml:"lp"`
}

func intPtr(v int) *int { return &v }

// defaultWindows returns the documented priority-window defaults.
func defaultWindows() PriorityWindowConfig {
	return PriorityWindowConfig{
		EO: WindowSetting{Start: 600, End: intPtr(659), Grace: 0, K: 2, Cap: 120},
		HP: WindowSetting{Start: 660, End: intPtr(930), Grace: 0, K: 1, Cap: 90},
		LP: WindowSetting{Start: 660, End: nil, Grace: 0, K: 1, Cap: 60},
	}
}

// Phase1Params tunes the candidate-group generator.
type Phase1Params struct {
	MaxApts                  int  `yaml:"max_apts"`
	AllowFourthIfTravelLEMin int  `yaml:"allow_fourth_if_travel_le_min"`
	NeighborLimit            int  `yaml:"neighbor_limit"`
	NearbySeedMaxMin         int  `yaml:"nearby_seed_max_min"`
	FallbackSeedMaxMin       int  `yaml:"fallback_seed_max_min"`
	MaxGroupsTotal           int  `yaml:"max_groups_total"`
	UseAdjacentZones         bool `yaml:"use_adjacent_zones"`
}

func defaultPhase1Params() Phase1Params {
	return Phase1Params{
		MaxApts:                  3,
		AllowFourthIfTravelLEMin: 5,
		NeighborLimit:            15,
		NearbySeedMaxMin:         12,
		FallbackSeedMaxMin:       20,
		MaxGroupsTotal:           3000,
		UseAdjacentZones:         getEnvBoolOrDefault("CLEANOPT_USE_ADJACENT_ZONES", true),
	}
}

// Phase2Params tunes the group-to-cleaner assigner.
type Phase2Params struct {
	MaxCleanerLoad   int     `yaml:"max_cleaner_load"`
	TravelWeight     float64 `yaml:"travel_weight"`
	LoadWeight       float64 `yaml:"load_weight"`
	PreferenceBonus  float64 `yaml:"preference_bonus"`
	MaxRejectEvents  int     `yaml:"max_reject_events"`
}

func defaultPhase2Params() Phase2Params {
	return Phase2Params{
		MaxCleanerLoad:  6,
		TravelWeight:    2,
		LoadWeight:      5,
		PreferenceBonus: 10,
		MaxRejectEvents: 3,
	}
}

// Phase3Params tunes the per-cleaner scheduler.
type Phase3Params struct {
	MaxPermutationGroupSize int `yaml:"max_permutation_group_size"`
}

func defaultPhase3Params() Phase3Params {
	return Phase3Params{
		MaxPermutationGroupSize: 24,
	}
}

// DefaultConfig returns a default configuration. The database, Redis and
// API fields, and phase1's use_adjacent_zones, are overridable by
// environment variable; the remaining priority-window and phase parameters
// take their documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:            getEnvOrDefault("CLEANOPT_DB_HOST", "localhost"),
			Port:            getEnvIntOrDefault("CLEANOPT_DB_PORT", 5432),
			Name:            getEnvOrDefault("CLEANOPT_DB_NAME", "cleanopt"),
			User:            getEnvOrDefault("CLEANOPT_DB_USER", "cleanopt"),
			Password:        getEnvOrDefault("CLEANOPT_DB_PASSWORD", ""),
			SSLMode:         getEnvOrDefault("CLEANOPT_DB_SSL_MODE", "prefer"),
			MaxOpenConns:    getEnvIntOrDefault("CLEANOPT_DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvIntOrDefault("CLEANOPT_DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDurationOrDefault("CLEANOPT_DB_CONN_MAX_LIFETIME", 5*time.Minute),

			RedisHost:         getEnvOrDefault("CLEANOPT_REDIS_HOST", "localhost"),
			RedisPort:         getEnvIntOrDefault("CLEANOPT_REDIS_PORT", 6379),
			RedisPassword:     getEnvOrDefault("CLEANOPT_REDIS_PASSWORD", ""),
			RedisDB:           getEnvIntOrDefault("CLEANOPT_REDIS_DB", 0),
			RedisPoolSize:     getEnvIntOrDefault("CLEANOPT_REDIS_POOL_SIZE", 10),
			RedisMinIdleConns: getEnvIntOrDefault("CLEANOPT_REDIS_MIN_IDLE_CONNS", 5),
			RedisDialTimeout:  getEnvDurationOrDefault("CLEANOPT_REDIS_DIAL_TIMEOUT", 5*time.Second),
			RedisReadTimeout:  getEnvDurationOrDefault("CLEANOPT_REDIS_READ_TIMEOUT", 3*time.Second),
			RedisWriteTimeout: getEnvDurationOrDefault("CLEANOPT_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		API: APIConfig{
			Listen:      getEnvOrDefault("CLEANOPT_API_LISTEN", "0.0.0.0:8090"),
			MaxBodySize: int64(getEnvIntOrDefault("CLEANOPT_API_MAX_BODY_SIZE", 8*1024*1024)), // 8MB
			ReadTimeout: getEnvDurationOrDefault("CLEANOPT_API_READ_TIMEOUT", 30*time.Second),
		},
		Windows: defaultWindows(),
		Phase1:  defaultPhase1Params(),
		Phase2:  defaultPhase2Params(),
		Phase3:  defaultPhase3Params(),
	}
}

// LoadConfig builds the default configuration and, if overlayPath is
// non-empty, merges a YAML overlay on top of it. Any priority-window or
// phase-param key left unset by the overlay keeps its documented default;
// each of the windows/phase1/phase2/phase3 sections the overlay omits
// entirely is recorded in Fallbacks, so the caller can report
// PHASE3_SETTINGS_FALLBACK_USED.
func LoadConfig(overlayPath string) (*Config, error) {
	cfg := DefaultConfig()
	if overlayPath == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(overlayPath)
	if err != nil {
		return nil, fmt.Errorf("reading config overlay %q: %w", overlayPath, err)
	}

	var overlay struct {
		Windows *PriorityWindowConfig `yaml:"windows"`
		Phase1  *Phase1Params         `yaml:"phase1"`
		Phase2  *Phase2Params         `yaml:"phase2"`
		Phase3  *Phase3Params         `yaml:"phase3"`
	}
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return nil, fmt.Errorf("parsing config overlay %q: %w", overlayPath, err)
	}

	if overlay.Windows != nil {
		cfg.Windows = *overlay.Windows
	} else {
		cfg.Fallbacks = append(cfg.Fallbacks, "windows")
	}
	if overlay.Phase1 != nil {
		cfg.Phase1 = *overlay.Phase1
	} else {
		cfg.Fallbacks = append(cfg.Fallbacks, "phase1")
	}
	if overlay.Phase2 != nil {
		cfg.Phase2 = *overlay.Phase2
	} else {
		cfg.Fallbacks = append(cfg.Fallbacks, "phase2")
	}
	if overlay.Phase3 != nil {
		cfg.Phase3 = *overlay.Phase3
	} else {
		cfg.Fallbacks = append(cfg.Fallbacks, "phase3")
	}

	return cfg, nil
}

// Helper functions to get environment variables with defaults.

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
