// Package config loads and validates the leaptrust configuration.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/leapstack-labs/leaptrust/pkg/trust"
)

// ConfigError reports an invalid configuration value. It always fails the
// run before any data is touched.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// ValidationConfig holds schema-check thresholds.
type ValidationConfig struct {
	NullThresholdPct       float64 `koanf:"null_threshold_pct"`
	UniquenessThresholdPct float64 `koanf:"uniqueness_threshold_pct"`
	MixedTypeTolerancePct  float64 `koanf:"mixed_type_tolerance_pct"`
	RulesFile              string  `koanf:"rules_file"`
}

// AnomalyConfig holds detection method and thresholds.
type AnomalyConfig struct {
	Method          string  `koanf:"method"`
	IQRMultiplier   float64 `koanf:"iqr_multiplier"`
	ZScoreThreshold float64 `koanf:"zscore_threshold"`
	Contamination   float64 `koanf:"contamination"`
	TreeCount       int     `koanf:"tree_count"`
	Seed            int64   `koanf:"seed"`
	VotePolicy      string  `koanf:"vote_policy"`
}

// TrustConfig holds scoring weights and freshness policy.
type TrustConfig struct {
	Weights                trust.Weights `koanf:"weights"`
	FreshnessThresholdDays int           `koanf:"freshness_threshold_days"`
	DateColumn             string        `koanf:"date_column"`
	ExcludeFields          []string      `koanf:"exclude_fields"`
}

// CleaningConfig holds the cleaning pipeline policy.
type CleaningConfig struct {
	InferenceThresholdPct float64 `koanf:"inference_threshold_pct"`
	RowCap                int     `koanf:"row_cap"`
	CapMultiplier         float64 `koanf:"cap_multiplier"`
}

// StoreConfig selects and configures the snapshot store backend.
type StoreConfig struct {
	Backend       string `koanf:"backend"`
	Path          string `koanf:"path"`
	DSN           string `koanf:"dsn"`
	RetentionDays int    `koanf:"retention_days"`
}

// Config is the full leaptrust configuration.
type Config struct {
	Validation ValidationConfig `koanf:"validation"`
	Anomaly    AnomalyConfig    `koanf:"anomaly"`
	Trust      TrustConfig      `koanf:"trust"`
	Cleaning   CleaningConfig   `koanf:"cleaning"`
	Store      StoreConfig      `koanf:"store"`
	Verbose    bool             `koanf:"verbose"`
	Output     string           `koanf:"output"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"validation.null_threshold_pct":       20.0,
		"validation.uniqueness_threshold_pct": 95.0,
		"validation.mixed_type_tolerance_pct": 5.0,
		"anomaly.method":                      "iqr",
		"anomaly.iqr_multiplier":              1.5,
		"anomaly.zscore_threshold":            3.0,
		"anomaly.contamination":               0.05,
		"anomaly.tree_count":                  100,
		"anomaly.seed":                        42,
		"anomaly.vote_policy":                 "majority",
		"trust.weights.completeness":          0.30,
		"trust.weights.validity":              0.30,
		"trust.weights.anomaly_free":          0.25,
		"trust.weights.freshness":             0.15,
		"trust.freshness_threshold_days":      7,
		"cleaning.inference_threshold_pct":    80.0,
		"cleaning.row_cap":                    1_000_000,
		"cleaning.cap_multiplier":             3.0,
		"store.backend":                       "sqlite",
		"store.path":                          ".leaptrust/trust.db",
		"store.retention_days":                90,
		"verbose":                             false,
		"output":                              "table",
	}
}

// findConfigFile finds the config file to use.
// Priority: explicit path > leaptrust.yaml > leaptrust.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"leaptrust.yaml", "leaptrust.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Load reads configuration from defaults, the config file, LEAPTRUST_
// environment variables, and explicitly-set CLI flags, then validates.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if used := findConfigFile(cfgFile); used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	// LEAPTRUST_STORE__BACKEND -> store.backend
	if err := k.Load(env.Provider("LEAPTRUST_", ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, "LEAPTRUST_"))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			switch key {
			case "method":
				key = "anomaly.method"
			case "date_column":
				key = "trust.date_column"
			case "rules":
				key = "validation.rules_file"
			case "store_path":
				key = "store.path"
			case "backend":
				key = "store.backend"
			case "dsn":
				key = "store.dsn"
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks invariants that must hold before any data is touched.
func (c *Config) Validate() error {
	if err := c.Trust.Weights.Validate(); err != nil {
		return &ConfigError{Field: "trust.weights", Reason: err.Error()}
	}
	for field, v := range map[string]float64{
		"validation.null_threshold_pct":       c.Validation.NullThresholdPct,
		"validation.uniqueness_threshold_pct": c.Validation.UniquenessThresholdPct,
		"validation.mixed_type_tolerance_pct": c.Validation.MixedTypeTolerancePct,
		"anomaly.iqr_multiplier":              c.Anomaly.IQRMultiplier,
		"anomaly.zscore_threshold":            c.Anomaly.ZScoreThreshold,
		"cleaning.cap_multiplier":             c.Cleaning.CapMultiplier,
	} {
		if v < 0 {
			return &ConfigError{Field: field, Reason: fmt.Sprintf("must not be negative, got %g", v)}
		}
	}
	if c.Anomaly.Contamination < 0 || c.Anomaly.Contamination > 0.5 {
		return &ConfigError{Field: "anomaly.contamination", Reason: fmt.Sprintf("must be in [0, 0.5], got %g", c.Anomaly.Contamination)}
	}
	if c.Cleaning.InferenceThresholdPct <= 0 || c.Cleaning.InferenceThresholdPct > 100 {
		return &ConfigError{Field: "cleaning.inference_threshold_pct", Reason: fmt.Sprintf("must be in (0, 100], got %g", c.Cleaning.InferenceThresholdPct)}
	}
	if c.Trust.FreshnessThresholdDays <= 0 {
		return &ConfigError{Field: "trust.freshness_threshold_days", Reason: fmt.Sprintf("must be positive, got %d", c.Trust.FreshnessThresholdDays)}
	}
	switch c.Store.Backend {
	case "sqlite", "postgres":
	default:
		return &ConfigError{Field: "store.backend", Reason: fmt.Sprintf("unknown backend %q", c.Store.Backend)}
	}
	if c.Store.Backend == "postgres" && c.Store.DSN == "" {
		return &ConfigError{Field: "store.dsn", Reason: "required when store.backend is postgres"}
	}
	return nil
}
