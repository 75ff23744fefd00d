package classify

import (
	"math"

	"neuroqc/internal/models"
	"neuroqc/pkg/config"
	"neuroqc/pkg/stats"
)

// Metric column names used across the loader and the evaluators.
const (
	// ColMaxFD is the per-sample maximum framewise displacement in mm.
	ColMaxFD = "max_fd"

	// ColDice is the Dice coefficient of the coverage family.
	ColDice = "dice"

	// ColStreamlineCount is the whole-tractogram streamline count.
	ColStreamlineCount = "streamline_count"

	// ColFA is the fractional anisotropy column of tractometry and
	// metrics-in-ROI records.
	ColFA = "fa"

	// ColVolume is the volume column of tractometry and region records.
	ColVolume = "volume"

	// ColStreamlinesCount is the per-bundle streamline count column, as
	// named in the tractometry stats tables.
	ColStreamlinesCount = "streamlines_count"

	// ColBundleDetection is the synthetic percentage-of-bundles-detected
	// value attached to tractometry findings.
	ColBundleDetection = "bundle_detection"
)

// tractometryColumns are the sub-metrics every bundle record must carry.
var tractometryColumns = []string{ColFA, ColVolume, ColStreamlinesCount}

// TieredBounds is the pair of acceptable intervals used by the three-tier
// volume rule: inside Tight is a pass, inside Wide but outside Tight a
// warn, outside Wide a fail.
type TieredBounds struct {
	Tight stats.Bounds `yaml:"tight"`
	Wide  stats.Bounds `yaml:"wide"`
}

// CohortStatistics holds every cohort-derived distribution and interval
// the rule evaluators need, plus descriptive summaries of the scalar
// families for the report. It is computed fresh for each run from the
// full record set and read-only afterwards.
type CohortStatistics struct {
	// StreamlineCount is the acceptable interval for whole-tractogram
	// streamline counts.
	StreamlineCount stats.Bounds `yaml:"streamlineCount"`

	// Cortical and Subcortical map region names to their tiered volume
	// intervals.
	Cortical    map[string]TieredBounds `yaml:"cortical"`
	Subcortical map[string]TieredBounds `yaml:"subcortical"`

	// ROI maps ROI names to the acceptable interval for mean FA.
	ROI map[string]stats.Bounds `yaml:"roi"`

	// Tractometry maps bundle name, then sub-metric column, to the
	// sorted cohort values percentile ranks are taken against.
	Tractometry map[string]map[string][]float64 `yaml:"-"`

	// Summaries holds descriptive statistics of each scalar family's
	// cohort distribution, for report annotations. Families without a
	// single scalar metric (per-region, per-bundle) have no entry.
	Summaries map[models.Family]stats.Summary `yaml:"summaries,omitempty"`
}

// BuildCohortStatistics computes the per-family cohort statistics from
// the full record set. Non-finite and negative values are left out of
// every distribution; they are rejected again at classification time so
// the affected samples end up in the exclusion counts.
func BuildCohortStatistics(records []models.MetricRecord, cfg *config.Config) *CohortStatistics {
	cs := &CohortStatistics{
		Cortical:    make(map[string]TieredBounds),
		Subcortical: make(map[string]TieredBounds),
		ROI:         make(map[string]stats.Bounds),
		Tractometry: make(map[string]map[string][]float64),
	}

	var fd, dice, streamline []float64
	cortical := make(map[string][]float64)
	subcortical := make(map[string][]float64)
	roi := make(map[string][]float64)

	for _, rec := range records {
		switch rec.Family {
		case models.FramewiseDisplacement:
			if v, ok := usableValue(rec, ColMaxFD); ok {
				fd = append(fd, v)
			}
		case models.Coverage:
			if v, ok := usableValue(rec, ColDice); ok {
				dice = append(dice, v)
			}
		case models.StreamlineCount:
			if v, ok := usableValue(rec, ColStreamlineCount); ok {
				streamline = append(streamline, v)
			}
		case models.CorticalVolume:
			if v, ok := usableValue(rec, ColVolume); ok {
				cortical[rec.Label] = append(cortical[rec.Label], v)
			}
		case models.SubcorticalVolume:
			if v, ok := usableValue(rec, ColVolume); ok {
				subcortical[rec.Label] = append(subcortical[rec.Label], v)
			}
		case models.MetricsInROI:
			if v, ok := usableValue(rec, ColFA); ok {
				roi[rec.Label] = append(roi[rec.Label], v)
			}
		case models.Tractometry:
			for _, col := range tractometryColumns {
				if v, ok := usableValue(rec, col); ok {
					if cs.Tractometry[rec.Label] == nil {
						cs.Tractometry[rec.Label] = make(map[string][]float64)
					}
					cs.Tractometry[rec.Label][col] = append(cs.Tractometry[rec.Label][col], v)
				}
			}
		}
	}

	cs.StreamlineCount = stats.ComputeBounds(streamline, cfg.Thresholds.StreamlineCount.IQRMultiplier)

	for region, values := range cortical {
		cs.Cortical[region] = tieredBounds(values, cfg.Thresholds.CorticalVolume)
	}
	for region, values := range subcortical {
		cs.Subcortical[region] = tieredBounds(values, cfg.Thresholds.SubcorticalVolume)
	}
	for name, values := range roi {
		cs.ROI[name] = stats.ComputeBounds(values, cfg.Thresholds.MetricsInROI.IQRMultiplier)
	}

	cs.Summaries = make(map[models.Family]stats.Summary)
	scalar := map[models.Family][]float64{
		models.FramewiseDisplacement: fd,
		models.Coverage:              dice,
		models.StreamlineCount:       streamline,
	}
	for family, values := range scalar {
		if len(values) > 0 {
			cs.Summaries[family] = stats.Summarize(values)
		}
	}

	return cs
}

// tieredBounds derives the pass and warn intervals for one region from
// the same cohort sample: the tight interval uses the family's IQR
// multiplier, the wide one the warn multiplier.
func tieredBounds(values []float64, t config.Thresholds) TieredBounds {
	return TieredBounds{
		Tight: stats.ComputeBounds(values, t.IQRMultiplier),
		Wide:  stats.ComputeBounds(values, t.WarnThreshold),
	}
}

// usableValue returns the named value of a record if it is present,
// finite and non-negative.
func usableValue(rec models.MetricRecord, column string) (float64, bool) {
	v, ok := rec.Values[column]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}
