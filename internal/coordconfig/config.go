// Package coordconfig implements the layered configuration system from
// spec.md §6.4: repository config < user config < system config <
// built-in defaults, merged with dario.cat/mergo, loaded with
// spf13/viper, decoded with mitchellh/mapstructure custom hooks (the
// teacher's duration-string idiom in pkg/config/config.go), and
// validated with github.com/go-playground/validator/v10.
package coordconfig

import (
	"os"
	"path/filepath"
	"reflect"
	"time"

	"dario.cat/mergo"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/coordhq/coord/internal/coorderrors"
)

// Config is the fully merged, defaulted, validated configuration for
// one invocation of the coordination engine.
type Config struct {
	Coordination     CoordinationConfig     `mapstructure:"coordination" yaml:"coordination"`
	GlobalOperations  GlobalOperationsConfig `mapstructure:"global_operations" yaml:"global_operations"`
	Locks            LocksConfig            `mapstructure:"locks" yaml:"locks"`
	Agent            AgentConfig            `mapstructure:"agent" yaml:"agent"`
	Logging          LoggingConfig          `mapstructure:"logging" yaml:"logging"`
	Metrics          MetricsConfig          `mapstructure:"metrics" yaml:"metrics"`
	Telemetry        TelemetryConfig        `mapstructure:"telemetry" yaml:"telemetry"`
}

// CoordinationConfig holds the options from spec.md §6.4's
// `coordination.*` namespace.
type CoordinationConfig struct {
	EnforceLeases              string        `mapstructure:"enforce_leases" yaml:"enforce_leases" validate:"omitempty,oneof=off warn strict"`
	DefaultTTL                 time.Duration `mapstructure:"default_ttl_secs" yaml:"default_ttl_secs" validate:"omitempty,gt=0"`
	HeartbeatInterval          time.Duration `mapstructure:"heartbeat_interval_secs" yaml:"heartbeat_interval_secs" validate:"omitempty,gt=0"`
	LeaseRenewalThresholdPct   int           `mapstructure:"lease_renewal_threshold_pct" yaml:"lease_renewal_threshold_pct" validate:"omitempty,gte=0,lte=100"`
	StaleThreshold             time.Duration `mapstructure:"stale_threshold_secs" yaml:"stale_threshold_secs" validate:"omitempty,gt=0"`
	MaxIndefiniteLeasesPerAgent int          `mapstructure:"max_indefinite_leases_per_agent" yaml:"max_indefinite_leases_per_agent" validate:"omitempty,gte=0"`
	MaxIndefiniteLeasesPerRepo  int          `mapstructure:"max_indefinite_leases_per_repo" yaml:"max_indefinite_leases_per_repo" validate:"omitempty,gte=0"`
}

// GlobalOperationsConfig holds the `global_operations.*` namespace.
type GlobalOperationsConfig struct {
	RequireMainHistory bool   `mapstructure:"require_main_history" yaml:"require_main_history"`
	CanonicalBranch    string `mapstructure:"canonical_branch" yaml:"canonical_branch"`
}

// LocksConfig holds the `locks.*` namespace.
type LocksConfig struct {
	MaxAge         time.Duration `mapstructure:"max_age_secs" yaml:"max_age_secs" validate:"omitempty,gt=0"`
	EnableMetadata bool          `mapstructure:"enable_metadata" yaml:"enable_metadata"`
}

// AgentConfig holds the `agent.*` namespace.
type AgentConfig struct {
	ID             string        `mapstructure:"id" yaml:"id"`
	Description    string        `mapstructure:"description" yaml:"description,omitempty"`
	DefaultTTL     time.Duration `mapstructure:"default_ttl_secs" yaml:"default_ttl_secs,omitempty" validate:"omitempty,gt=0"`
}

// LoggingConfig mirrors the teacher's logging configuration shape
// (pkg/config/config.go: LoggingConfig), domain-unrelated so unchanged.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"omitempty,oneof=text json"`
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig mirrors the teacher's Prometheus metrics config shape.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port" validate:"omitempty,min=1,max=65535"`
}

// TelemetryConfig mirrors the teacher's OpenTelemetry config shape.
type TelemetryConfig struct {
	Enabled  bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint string  `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure bool    `mapstructure:"insecure" yaml:"insecure"`
	SampleRate float64 `mapstructure:"sample_rate" yaml:"sample_rate" validate:"omitempty,gte=0,lte=1"`
}

// Defaults returns the built-in defaults named throughout spec.md §5/§6.4.
func Defaults() *Config {
	return &Config{
		Coordination: CoordinationConfig{
			EnforceLeases:               "strict",
			DefaultTTL:                  600 * time.Second,
			HeartbeatInterval:           30 * time.Second,
			LeaseRenewalThresholdPct:    10,
			StaleThreshold:              3600 * time.Second,
			MaxIndefiniteLeasesPerAgent: 2,
			MaxIndefiniteLeasesPerRepo:  10,
		},
		GlobalOperations: GlobalOperationsConfig{
			RequireMainHistory: true,
			CanonicalBranch:    "main",
		},
		Locks: LocksConfig{
			MaxAge:         3600 * time.Second,
			EnableMetadata: true,
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
		Telemetry: TelemetryConfig{
			Enabled:    false,
			Endpoint:   "localhost:4317",
			Insecure:   true,
			SampleRate: 1.0,
		},
	}
}

// Layer identifies one of the four configuration sources, strongest
// first, matching spec.md §6.4's precedence: repository < user <
// system < defaults (defaults merge in first, each later layer
// overrides non-zero fields from the one before it).
type Layer struct {
	Path string
}

// Load reads and merges the four layers in precedence order — defaults,
// then system, then user, then repository — and validates the result.
// A missing file at any layer is not an error; an unreadable or
// malformed one is.
//
// mergo.WithOverride treats a layer's zero-value field as "not set in
// this layer" rather than "explicitly set to zero": a repo config that
// writes `max_indefinite_leases_per_repo: 0` does not disable the
// cap, it falls through to whatever the user/system/default layer
// says. This is the same tradeoff the teacher's own ApplyDefaults
// makes and is intentional here too — every field that can
// meaningfully mean "zero" (the TTL/threshold/cap fields above) is
// tagged `validate:"omitempty,..."` for the same reason, so there is
// currently no field where a layer is expected to zero out a lower
// layer's value. A config namespace that needs that someday should use
// a pointer field (mergo treats a non-nil pointer as set even when it
// points at a zero value) rather than relying on WithOverride alone.
func Load(repoConfigPath, userConfigPath, systemConfigPath string) (*Config, error) {
	cfg := Defaults()

	for _, path := range []string{systemConfigPath, userConfigPath, repoConfigPath} {
		if path == "" {
			continue
		}
		layer, err := readLayer(path)
		if err != nil {
			return nil, err
		}
		if layer == nil {
			continue
		}
		if err := mergo.Merge(cfg, layer, mergo.WithOverride); err != nil {
			return nil, coorderrors.NewIOError(path, err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readLayer loads one YAML config file via viper, returning (nil, nil)
// if the file does not exist.
func readLayer(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, coorderrors.NewIOError(path, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, coorderrors.NewIOError(path, err)
	}

	var layer Config
	if err := v.Unmarshal(&layer, viper.DecodeHook(decodeHooks())); err != nil {
		return nil, coorderrors.NewIOError(path, err)
	}
	return &layer, nil
}

// decodeHooks composes the custom mapstructure decode hooks: a
// duration-string hook (the teacher's pkg/config/config.go
// durationDecodeHook, generalized — this module has no byte-size
// fields to decode).
func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(durationDecodeHook())
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			if parsed, err := time.ParseDuration(v); err == nil {
				return parsed, nil
			}
			return time.ParseDuration(v + "s") // bare integers in config mean seconds
		case int:
			return time.Duration(v) * time.Second, nil
		case int64:
			return time.Duration(v) * time.Second, nil
		case float64:
			return time.Duration(v) * time.Second, nil
		default:
			return data, nil
		}
	}
}

var validate = validator.New()

// Validate runs struct-tag validation over cfg, per the teacher's
// go-playground/validator/v10 usage.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return coorderrors.NewPolicyViolationError("invalid configuration: " + err.Error())
	}
	return nil
}

// EnvOverrides applies process-environment overrides following the
// teacher's DITTOFS_* / underscore-for-dot convention, renamed to
// COORD_*.
func EnvOverrides(cfg *Config) {
	if v := os.Getenv("COORD_AGENT_ID"); v != "" {
		cfg.Agent.ID = v
	}
	if v := os.Getenv("COORD_COORDINATION_ENFORCE_LEASES"); v != "" {
		cfg.Coordination.EnforceLeases = v
	}
}

// DefaultUserConfigPath returns $XDG_CONFIG_HOME/coord/config.yaml (or
// ~/.config/coord/config.yaml), the teacher's getConfigDir idiom
// renamed to this module's directory.
func DefaultUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "coord", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "coord-config.yaml")
	}
	return filepath.Join(home, ".config", "coord", "config.yaml")
}

// DefaultSystemConfigPath returns the system-wide config location.
func DefaultSystemConfigPath() string {
	return filepath.Join(string(filepath.Separator), "etc", "coord", "config.yaml")
}

// RepoConfigPath returns the repository-local config path given a
// data root (".coord/config.yaml" in the data plane, per spec.md
// §6.1 — repository config travels with the branch).
func RepoConfigPath(dataRoot string) string {
	return filepath.Join(dataRoot, "config.yaml")
}
