// Package models defines the shared data types passed between the loader,
// the classification engine and the report builder.
package models

// Family identifies one category of QC metric with its own rule shape
// and configuration.
type Family string

const (
	// FramewiseDisplacement is subject motion during acquisition, in mm.
	// Classified against fixed lower-is-better thresholds.
	FramewiseDisplacement Family = "framewise_displacement"

	// Coverage is the white matter coverage of a tractogram, measured as
	// the Dice coefficient between the tract density map and the white
	// matter mask. Classified against fixed higher-is-better thresholds.
	Coverage Family = "coverage"

	// StreamlineCount is the number of streamlines in a tractogram.
	// Classified by cohort IQR outlier detection (binary pass/fail).
	StreamlineCount Family = "streamline_count"

	// Tractometry covers per-bundle FA, volume and streamline count.
	// Each sub-metric is classified against percentile-of-cohort cutoffs.
	Tractometry Family = "tractometry"

	// CorticalVolume is the volume of each cortical region.
	// Classified by three-tier cohort IQR bounds per region.
	CorticalVolume Family = "cortical_volume"

	// SubcorticalVolume is the volume of each subcortical region.
	// Same rule as CorticalVolume.
	SubcorticalVolume Family = "subcortical_volume"

	// MetricsInROI is the mean FA inside each region of interest.
	// Classified by cohort IQR outlier detection per ROI (binary).
	MetricsInROI Family = "metrics_in_roi"
)

// AllFamilies returns every known family in the default presentation order.
func AllFamilies() []Family {
	return []Family{
		FramewiseDisplacement,
		Coverage,
		StreamlineCount,
		Tractometry,
		CorticalVolume,
		SubcorticalVolume,
		MetricsInROI,
	}
}

// ValidFamily reports whether f is one of the known metric families.
func ValidFamily(f Family) bool {
	switch f {
	case FramewiseDisplacement, Coverage, StreamlineCount, Tractometry,
		CorticalVolume, SubcorticalVolume, MetricsInROI:
		return true
	default:
		return false
	}
}

// Status is the ordinal QC outcome for a sample on one metric family.
// The order Pass < Warn < Fail is relied on when rolling statuses up.
type Status int

const (
	// Pass means the value is within the acceptable range.
	Pass Status = iota

	// Warn means the value is questionable and should be reviewed.
	Warn

	// Fail means the value is outside the acceptable range.
	Fail
)

// String returns the lowercase report label for the status.
func (s Status) String() string {
	switch s {
	case Pass:
		return "pass"
	case Warn:
		return "warn"
	case Fail:
		return "fail"
	default:
		return "unknown"
	}
}

// MarshalYAML renders the status as its report label in data files.
func (s Status) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}

// Max returns the more severe of the two statuses.
func (s Status) Max(other Status) Status {
	if other > s {
		return other
	}
	return s
}

// MetricRecord is one parsed row of a QC input file: a sample identifier,
// the metric family it belongs to, an optional anatomical label and one or
// more named scalar values. Records are immutable once parsed.
type MetricRecord struct {
	// Sample is the sample identifier, unique within its file.
	Sample string

	// Family is the metric family the record belongs to.
	Family Family

	// Label is the region, bundle or ROI name for per-region families.
	// Empty for scalar families such as coverage.
	Label string

	// Values maps metric column names to their scalar values,
	// e.g. {"dice": 0.93} or {"fa": 0.41, "volume": 812.0}.
	Values map[string]float64
}

// Finding records one value that drove a non-pass classification,
// kept for display and audit in the cohort report.
type Finding struct {
	// Label is the region or bundle the value belongs to, if any.
	Label string `yaml:"label,omitempty"`

	// Column is the metric column name.
	Column string `yaml:"column"`

	// Value is the offending value.
	Value float64 `yaml:"value"`

	// Status is the severity this value was classified at.
	Status Status `yaml:"status"`
}

// ClassifiedSample is the engine's per-sample result: one status per
// metric family present for the sample plus the worst status overall.
// Consumed, never mutated, by the cohort aggregator.
type ClassifiedSample struct {
	// Sample is the sample identifier.
	Sample string `yaml:"sample"`

	// Statuses maps each family present for the sample to its status.
	// A family the sample has no records for simply has no entry.
	Statuses map[Family]Status `yaml:"statuses"`

	// Overall is the most severe status across all families present.
	Overall Status `yaml:"overall"`

	// Findings holds, per family, the values that drove every non-pass
	// classification for the sample.
	Findings map[Family][]Finding `yaml:"findings,omitempty"`
}

// Exclusion records a sample that could not be classified for one family
// because its input was invalid or incomplete. Exclusions are local: the
// sample still participates in every other family.
type Exclusion struct {
	// Sample is the excluded sample identifier.
	Sample string `yaml:"sample"`

	// Family is the family the sample was excluded from.
	Family Family `yaml:"family"`

	// Reason describes why the sample was excluded.
	Reason string `yaml:"reason"`
}
