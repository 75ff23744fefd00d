package classify

import (
	"fmt"
	"math"

	"neuroqc/internal/models"
	"neuroqc/pkg/config"
	"neuroqc/pkg/stats"
)

// evaluator maps one sample's records for a single family, the family's
// thresholds and the precomputed cohort statistics to an ordinal status.
// The returned findings carry the values behind every non-pass result.
// Evaluators are pure functions; an error means the sample is excluded
// from this family only.
type evaluator func(recs []models.MetricRecord, t config.Thresholds, cs *CohortStatistics) (models.Status, []models.Finding, error)

// evaluators binds each family to its rule. The set is closed: adding a
// family means adding an enum value and an entry here.
var evaluators = map[models.Family]evaluator{
	models.FramewiseDisplacement: evalFramewiseDisplacement,
	models.Coverage:              evalCoverage,
	models.StreamlineCount:       evalStreamlineCount,
	models.Tractometry:           evalTractometry,
	models.CorticalVolume:        evalCorticalVolume,
	models.SubcorticalVolume:     evalSubcorticalVolume,
	models.MetricsInROI:          evalMetricsInROI,
}

// evalFramewiseDisplacement applies the lower-is-better fixed thresholds
// to the sample's maximum FD. A value exactly on a threshold takes the
// more severe side: max FD equal to the warn threshold is a warn. Every
// record the sample has is classified and the worst status wins, so a
// duplicate input file cannot hide a bad value.
func evalFramewiseDisplacement(recs []models.MetricRecord, t config.Thresholds, _ *CohortStatistics) (models.Status, []models.Finding, error) {
	status := models.Pass
	var findings []models.Finding

	for _, rec := range recs {
		v, err := requireValue(rec, ColMaxFD)
		if err != nil {
			return models.Pass, nil, err
		}

		var sub models.Status
		switch {
		case v < t.WarnThreshold:
			sub = models.Pass
		case v < t.FailThreshold:
			sub = models.Warn
		default:
			sub = models.Fail
		}

		status = status.Max(sub)
		findings = append(findings, nonPassFinding("", ColMaxFD, v, sub)...)
	}

	return status, findings, nil
}

// evalCoverage applies the higher-is-better fixed thresholds to the Dice
// coefficient. Polarity is inverted relative to framewise displacement:
// a value equal to the warn threshold is a pass, equal to the fail
// threshold a warn. The Dice domain is [0, 1].
func evalCoverage(recs []models.MetricRecord, t config.Thresholds, _ *CohortStatistics) (models.Status, []models.Finding, error) {
	status := models.Pass
	var findings []models.Finding

	for _, rec := range recs {
		v, err := requireValue(rec, ColDice)
		if err != nil {
			return models.Pass, nil, err
		}
		if v > 1 {
			return models.Pass, nil, fmt.Errorf("%w: dice %g outside [0,1]", ErrInvalidValue, v)
		}

		var sub models.Status
		switch {
		case v < t.FailThreshold:
			sub = models.Fail
		case v < t.WarnThreshold:
			sub = models.Warn
		default:
			sub = models.Pass
		}

		status = status.Max(sub)
		findings = append(findings, nonPassFinding("", ColDice, v, sub)...)
	}

	return status, findings, nil
}

// evalStreamlineCount is the binary IQR rule: inside the cohort-derived
// acceptable interval is a pass, outside a fail. There is no warn tier.
func evalStreamlineCount(recs []models.MetricRecord, _ config.Thresholds, cs *CohortStatistics) (models.Status, []models.Finding, error) {
	status := models.Pass
	var findings []models.Finding

	for _, rec := range recs {
		v, err := requireValue(rec, ColStreamlineCount)
		if err != nil {
			return models.Pass, nil, err
		}

		sub := models.Pass
		if !cs.StreamlineCount.Contains(v) {
			sub = models.Fail
		}

		status = status.Max(sub)
		findings = append(findings, nonPassFinding("", ColStreamlineCount, v, sub)...)
	}

	return status, findings, nil
}

// evalTractometry classifies each bundle sub-metric by its percentile
// rank within the bundle's cohort distribution. The rank's distance to
// the nearer tail decides the status: below the fail threshold percent
// is a fail, below the warn threshold a warn, so both abnormally low and
// abnormally high values are flagged. The bundle's status is the most
// severe of its sub-metric statuses, the family's the most severe
// bundle, further raised by the bundle detection rate check.
func evalTractometry(recs []models.MetricRecord, t config.Thresholds, cs *CohortStatistics) (models.Status, []models.Finding, error) {
	status, findings := bundleDetection(recs, t, cs)

	for _, rec := range recs {
		for _, col := range tractometryColumns {
			v, err := requireValue(rec, col)
			if err != nil {
				return models.Pass, nil, fmt.Errorf("bundle %s: %w", rec.Label, err)
			}

			rank := stats.PercentileRank(v, cs.Tractometry[rec.Label][col])
			if math.IsNaN(rank) {
				// No cohort distribution for this bundle; nothing to
				// compare against.
				continue
			}

			tail := math.Min(rank, 100-rank)
			var sub models.Status
			switch {
			case tail < t.FailThreshold:
				sub = models.Fail
			case tail < t.WarnThreshold:
				sub = models.Warn
			default:
				sub = models.Pass
			}

			status = status.Max(sub)
			findings = append(findings, nonPassFinding(rec.Label, col, v, sub)...)
		}
	}

	return status, findings, nil
}

// bundleDetection classifies the share of cohort bundles present for one
// sample. Tractography drops bundles it cannot reconstruct, so a sample
// carrying far fewer bundles than the cohort knows is suspect even when
// every bundle it does carry looks normal. Below the fail percentage of
// detected bundles is a fail, below the warn percentage a warn; a zero
// fail percentage disables the check.
func bundleDetection(recs []models.MetricRecord, t config.Thresholds, cs *CohortStatistics) (models.Status, []models.Finding) {
	total := len(cs.Tractometry)
	if total == 0 || t.DetectionFailPct <= 0 {
		return models.Pass, nil
	}

	seen := make(map[string]bool)
	detected := 0
	for _, rec := range recs {
		if seen[rec.Label] {
			continue
		}
		seen[rec.Label] = true
		if _, ok := cs.Tractometry[rec.Label]; ok {
			detected++
		}
	}

	pct := 100 * float64(detected) / float64(total)
	var status models.Status
	switch {
	case pct < t.DetectionFailPct:
		status = models.Fail
	case pct < t.DetectionWarnPct:
		status = models.Warn
	default:
		status = models.Pass
	}

	return status, nonPassFinding("", ColBundleDetection, pct, status)
}

// evalCorticalVolume applies the three-tier IQR rule to each cortical
// region's volume.
func evalCorticalVolume(recs []models.MetricRecord, _ config.Thresholds, cs *CohortStatistics) (models.Status, []models.Finding, error) {
	return evalTieredVolumes(recs, cs.Cortical)
}

// evalSubcorticalVolume applies the three-tier IQR rule to each
// subcortical region's volume.
func evalSubcorticalVolume(recs []models.MetricRecord, _ config.Thresholds, cs *CohortStatistics) (models.Status, []models.Finding, error) {
	return evalTieredVolumes(recs, cs.Subcortical)
}

// evalTieredVolumes classifies each region volume against its tiered
// cohort intervals: inside the tight interval pass, inside the wide one
// warn, outside fail. The family status is the most severe region.
func evalTieredVolumes(recs []models.MetricRecord, bounds map[string]TieredBounds) (models.Status, []models.Finding, error) {
	status := models.Pass
	var findings []models.Finding

	for _, rec := range recs {
		v, err := requireValue(rec, ColVolume)
		if err != nil {
			return models.Pass, nil, fmt.Errorf("region %s: %w", rec.Label, err)
		}

		tb, ok := bounds[rec.Label]
		if !ok {
			continue
		}

		var sub models.Status
		switch {
		case tb.Tight.Contains(v):
			sub = models.Pass
		case tb.Wide.Contains(v):
			sub = models.Warn
		default:
			sub = models.Fail
		}

		status = status.Max(sub)
		findings = append(findings, nonPassFinding(rec.Label, ColVolume, v, sub)...)
	}

	return status, findings, nil
}

// evalMetricsInROI is the binary IQR rule over mean FA per ROI: an
// outlier in any ROI fails the sample for the family.
func evalMetricsInROI(recs []models.MetricRecord, _ config.Thresholds, cs *CohortStatistics) (models.Status, []models.Finding, error) {
	status := models.Pass
	var findings []models.Finding

	for _, rec := range recs {
		v, err := requireValue(rec, ColFA)
		if err != nil {
			return models.Pass, nil, fmt.Errorf("roi %s: %w", rec.Label, err)
		}

		b, ok := cs.ROI[rec.Label]
		if !ok {
			continue
		}

		sub := models.Pass
		if !b.Contains(v) {
			sub = models.Fail
		}

		status = status.Max(sub)
		findings = append(findings, nonPassFinding(rec.Label, ColFA, v, sub)...)
	}

	return status, findings, nil
}

// requireValue extracts a named value from a record, rejecting missing,
// NaN, infinite and negative values with typed errors.
func requireValue(rec models.MetricRecord, column string) (float64, error) {
	v, ok := rec.Values[column]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingSubmetric, column)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %s is not finite", ErrInvalidValue, column)
	}
	if v < 0 {
		return 0, fmt.Errorf("%w: %s is negative (%g)", ErrInvalidValue, column, v)
	}
	return v, nil
}

// nonPassFinding returns a single-element finding slice for non-pass
// statuses and nil for a pass, so callers can append unconditionally.
func nonPassFinding(label, column string, v float64, status models.Status) []models.Finding {
	if status == models.Pass {
		return nil
	}
	return []models.Finding{{Label: label, Column: column, Value: v, Status: status}}
}
