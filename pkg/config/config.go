// Package config provides configuration loading and management for neuroqc.
// It handles loading configuration from YAML files and provides default
// values for every metric family's thresholds and search patterns.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"neuroqc/internal/models"
)

// Thresholds holds the tunable classification parameters for one metric
// family. Which parameters a family actually uses depends on its rule
// shape; unused parameters are ignored.
type Thresholds struct {
	// WarnThreshold separates pass from warn. For lower-is-better
	// families this is the smaller of the two thresholds; for
	// higher-is-better families the larger. For the volume families it
	// is the wider IQR multiplier of the warn tier.
	WarnThreshold float64 `yaml:"warnThreshold"`

	// FailThreshold separates warn from fail.
	FailThreshold float64 `yaml:"failThreshold"`

	// IQRMultiplier scales the interquartile range when deriving the
	// acceptable interval for IQR-based families.
	IQRMultiplier float64 `yaml:"iqrMultiplier"`

	// DetectionWarnPct and DetectionFailPct flag tractometry samples
	// carrying too small a share of the cohort's bundles. Zero
	// DetectionFailPct disables the check.
	DetectionWarnPct float64 `yaml:"detectionWarnPct"`
	DetectionFailPct float64 `yaml:"detectionFailPct"`
}

// Config represents the application configuration loaded from YAML.
type Config struct {
	// Thresholds are the per-family classification parameters.
	Thresholds struct {
		FramewiseDisplacement Thresholds `yaml:"framewiseDisplacement"`
		Coverage              Thresholds `yaml:"coverage"`
		StreamlineCount       Thresholds `yaml:"streamlineCount"`
		Tractometry           Thresholds `yaml:"tractometry"`
		CorticalVolume        Thresholds `yaml:"corticalVolume"`
		SubcorticalVolume     Thresholds `yaml:"subcorticalVolume"`
		MetricsInROI          Thresholds `yaml:"metricsInRoi"`
	} `yaml:"thresholds"`

	// SearchPatterns are the glob patterns that match each family's
	// input files inside the analysis directory.
	SearchPatterns struct {
		FramewiseDisplacement string `yaml:"framewiseDisplacement"`
		Coverage              string `yaml:"coverage"`
		StreamlineCount       string `yaml:"streamlineCount"`
		Tractometry           string `yaml:"tractometry"`
		CorticalVolume        string `yaml:"corticalVolume"`
		SubcorticalVolume     string `yaml:"subcorticalVolume"`
		MetricsInROI          string `yaml:"metricsInRoi"`
	} `yaml:"searchPatterns"`

	// Report parameters
	Report struct {
		// FamilyOrder is the presentation order of families in the
		// report. It affects ordering only, never computed statuses.
		// Unknown names are rejected; omitted families are appended in
		// their default order.
		FamilyOrder []string `yaml:"familyOrder"`

		// DataFile is the filename of the machine-readable report dump.
		DataFile string `yaml:"dataFile"`

		// NoColor disables status coloring in the terminal summary.
		NoColor bool `yaml:"noColor"`
	} `yaml:"report"`
}

// DefaultConfig returns a configuration with default values. Thresholds
// and search patterns match the upstream pipeline's conventions.
func DefaultConfig() *Config {
	cfg := &Config{}

	// Fixed-threshold families. Framewise displacement is lower-is-better
	// (thresholds in mm over the per-sample max FD); coverage is
	// higher-is-better (thresholds on the Dice coefficient).
	cfg.Thresholds.FramewiseDisplacement = Thresholds{WarnThreshold: 0.8, FailThreshold: 2.0}
	cfg.Thresholds.Coverage = Thresholds{WarnThreshold: 0.9, FailThreshold: 0.8}

	// IQR families.
	cfg.Thresholds.StreamlineCount = Thresholds{IQRMultiplier: 3}
	cfg.Thresholds.MetricsInROI = Thresholds{IQRMultiplier: 3}
	cfg.Thresholds.CorticalVolume = Thresholds{WarnThreshold: 4.5, IQRMultiplier: 3}
	cfg.Thresholds.SubcorticalVolume = Thresholds{WarnThreshold: 4.5, IQRMultiplier: 3}

	// Tractometry thresholds are percentile tail distances: a sub-metric
	// in the bottom or top failThreshold percent of the cohort is a fail,
	// in the bottom or top warnThreshold percent a warn. The detection
	// percentages flag samples missing too many of the cohort's bundles.
	cfg.Thresholds.Tractometry = Thresholds{
		WarnThreshold:    10,
		FailThreshold:    5,
		DetectionWarnPct: 90,
		DetectionFailPct: 80,
	}

	// Search patterns matching the pipeline's output naming.
	cfg.SearchPatterns.FramewiseDisplacement = "*dwi_eddy_restricted_movement_rms.txt"
	cfg.SearchPatterns.Coverage = "*dice.txt"
	cfg.SearchPatterns.StreamlineCount = "*__sc.txt"
	cfg.SearchPatterns.Tractometry = "*bundles_mean_stats.tsv"
	cfg.SearchPatterns.CorticalVolume = "cortical_*_volume_*.tsv"
	cfg.SearchPatterns.SubcorticalVolume = "*_subcortical_volumes.tsv"
	cfg.SearchPatterns.MetricsInROI = "rois_mean_stats.tsv"

	cfg.Report.DataFile = "neuroqc_report.yaml"

	return cfg
}

// LoadConfig loads configuration from a YAML file, merged over defaults.
// If the file doesn't exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Unmarshaling over the defaults keeps any value the file omits.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the
// specified path.
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}

// ThresholdsFor returns the threshold parameters for the given family.
func (c *Config) ThresholdsFor(f models.Family) Thresholds {
	switch f {
	case models.FramewiseDisplacement:
		return c.Thresholds.FramewiseDisplacement
	case models.Coverage:
		return c.Thresholds.Coverage
	case models.StreamlineCount:
		return c.Thresholds.StreamlineCount
	case models.Tractometry:
		return c.Thresholds.Tractometry
	case models.CorticalVolume:
		return c.Thresholds.CorticalVolume
	case models.SubcorticalVolume:
		return c.Thresholds.SubcorticalVolume
	case models.MetricsInROI:
		return c.Thresholds.MetricsInROI
	default:
		return Thresholds{}
	}
}

// PatternFor returns the file search pattern for the given family.
func (c *Config) PatternFor(f models.Family) string {
	switch f {
	case models.FramewiseDisplacement:
		return c.SearchPatterns.FramewiseDisplacement
	case models.Coverage:
		return c.SearchPatterns.Coverage
	case models.StreamlineCount:
		return c.SearchPatterns.StreamlineCount
	case models.Tractometry:
		return c.SearchPatterns.Tractometry
	case models.CorticalVolume:
		return c.SearchPatterns.CorticalVolume
	case models.SubcorticalVolume:
		return c.SearchPatterns.SubcorticalVolume
	case models.MetricsInROI:
		return c.SearchPatterns.MetricsInROI
	default:
		return ""
	}
}

// FamilyOrder resolves the configured presentation order into family
// values, appending any family the config omitted in default order.
func (c *Config) FamilyOrder() ([]models.Family, error) {
	seen := make(map[models.Family]bool)
	order := make([]models.Family, 0, len(models.AllFamilies()))

	for _, name := range c.Report.FamilyOrder {
		f := models.Family(name)
		if !models.ValidFamily(f) {
			return nil, fmt.Errorf("unknown family %q in report.familyOrder", name)
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		order = append(order, f)
	}

	for _, f := range models.AllFamilies() {
		if !seen[f] {
			order = append(order, f)
		}
	}

	return order, nil
}

// Validate checks that every family's thresholds respect its polarity:
// the warn threshold must always describe a less severe condition than
// the fail threshold.
func (c *Config) Validate() error {
	// Lower-is-better: warn must come before fail on the way up.
	if t := c.Thresholds.FramewiseDisplacement; t.WarnThreshold >= t.FailThreshold {
		return fmt.Errorf("framewise displacement: warnThreshold (%g) must be below failThreshold (%g)",
			t.WarnThreshold, t.FailThreshold)
	}

	// Higher-is-better: warn must sit above fail.
	if t := c.Thresholds.Coverage; t.WarnThreshold <= t.FailThreshold {
		return fmt.Errorf("coverage: warnThreshold (%g) must be above failThreshold (%g)",
			t.WarnThreshold, t.FailThreshold)
	}

	// Percentile tail distances: larger tail is less severe.
	if t := c.Thresholds.Tractometry; t.WarnThreshold <= t.FailThreshold {
		return fmt.Errorf("tractometry: warnThreshold (%g) must be above failThreshold (%g)",
			t.WarnThreshold, t.FailThreshold)
	}

	// Detection percentages are higher-is-better when the check is on.
	if t := c.Thresholds.Tractometry; t.DetectionFailPct > 0 && t.DetectionWarnPct <= t.DetectionFailPct {
		return fmt.Errorf("tractometry: detectionWarnPct (%g) must be above detectionFailPct (%g)",
			t.DetectionWarnPct, t.DetectionFailPct)
	}

	// IQR multipliers must be positive, and for the three-tier volume
	// families the warn multiplier must be wider than the pass one.
	binary := []struct {
		name string
		t    Thresholds
	}{
		{"streamlineCount", c.Thresholds.StreamlineCount},
		{"metricsInRoi", c.Thresholds.MetricsInROI},
	}
	for _, fam := range binary {
		if fam.t.IQRMultiplier <= 0 {
			return fmt.Errorf("%s: iqrMultiplier (%g) must be positive", fam.name, fam.t.IQRMultiplier)
		}
	}

	tiered := []struct {
		name string
		t    Thresholds
	}{
		{"corticalVolume", c.Thresholds.CorticalVolume},
		{"subcorticalVolume", c.Thresholds.SubcorticalVolume},
	}
	for _, fam := range tiered {
		if fam.t.IQRMultiplier <= 0 {
			return fmt.Errorf("%s: iqrMultiplier (%g) must be positive", fam.name, fam.t.IQRMultiplier)
		}
		if fam.t.WarnThreshold <= fam.t.IQRMultiplier {
			return fmt.Errorf("%s: warnThreshold (%g) must be wider than iqrMultiplier (%g)",
				fam.name, fam.t.WarnThreshold, fam.t.IQRMultiplier)
		}
	}

	return nil
}
