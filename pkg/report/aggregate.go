// Package report turns the engine's classified samples into the cohort
// report: per-family status counts, ordered flagged-sample lists with the
// values behind them, exclusion notes and annotations. It also renders
// the terminal summary and writes the machine-readable data file.
package report

import (
	"fmt"
	"sort"

	"neuroqc/internal/models"
	"neuroqc/pkg/classify"
	"neuroqc/pkg/stats"
)

// StatusCounts tallies samples per status bucket for one family.
type StatusCounts struct {
	Pass int `yaml:"pass"`
	Warn int `yaml:"warn"`
	Fail int `yaml:"fail"`
}

// Total returns the number of samples counted across all buckets.
func (c StatusCounts) Total() int { return c.Pass + c.Warn + c.Fail }

// FlaggedSample is one non-pass sample with the values that drove the
// classification, for display and audit.
type FlaggedSample struct {
	// Sample is the sample identifier.
	Sample string `yaml:"sample"`

	// Status is the sample's status for the family.
	Status models.Status `yaml:"status"`

	// Values are the driving values behind the status.
	Values []models.Finding `yaml:"values,omitempty"`
}

// FamilyReport is the report section for one metric family.
type FamilyReport struct {
	// Family is the metric family.
	Family models.Family `yaml:"family"`

	// Counts tallies classified samples per status.
	Counts StatusCounts `yaml:"counts"`

	// Flagged lists every warn and fail sample, ordered by severity
	// (fail first) then sample identifier.
	Flagged []FlaggedSample `yaml:"flagged,omitempty"`

	// Excluded lists samples left out of this family's classification
	// because of invalid or missing values.
	Excluded []models.Exclusion `yaml:"excluded,omitempty"`

	// Summary holds descriptive statistics of the family's metric across
	// the cohort. Only scalar families carry one.
	Summary *stats.Summary `yaml:"summary,omitempty"`

	// Annotations carry report-level notes such as bounds that could
	// not be estimated from too small a cohort.
	Annotations []string `yaml:"annotations,omitempty"`
}

// CohortReport is the terminal artifact of a run.
type CohortReport struct {
	// TotalSamples is the number of distinct samples classified.
	TotalSamples int `yaml:"totalSamples"`

	// Families are the per-family sections, in presentation order.
	Families []FamilyReport `yaml:"families"`
}

// Aggregate builds the cohort report from the engine's result. The order
// argument controls presentation only. An empty cohort yields a report
// with all-zero counts; every classified sample lands in exactly one
// bucket per family it has a status for.
func Aggregate(result classify.Result, order []models.Family) CohortReport {
	report := CohortReport{TotalSamples: len(result.Samples)}

	exclusions := make(map[models.Family][]models.Exclusion)
	for _, ex := range result.Exclusions {
		exclusions[ex.Family] = append(exclusions[ex.Family], ex)
	}

	for _, family := range order {
		fr := FamilyReport{Family: family, Excluded: exclusions[family]}

		for _, sample := range result.Samples {
			status, ok := sample.Statuses[family]
			if !ok {
				continue
			}

			switch status {
			case models.Pass:
				fr.Counts.Pass++
			case models.Warn:
				fr.Counts.Warn++
			case models.Fail:
				fr.Counts.Fail++
			}

			if status != models.Pass {
				fr.Flagged = append(fr.Flagged, FlaggedSample{
					Sample: sample.Sample,
					Status: status,
					Values: sample.Findings[family],
				})
			}
		}

		// Severity first (fail before warn), then sample identifier.
		sort.SliceStable(fr.Flagged, func(i, j int) bool {
			if fr.Flagged[i].Status != fr.Flagged[j].Status {
				return fr.Flagged[i].Status > fr.Flagged[j].Status
			}
			return fr.Flagged[i].Sample < fr.Flagged[j].Sample
		})

		fr.Annotations = annotations(family, result.Stats)
		if result.Stats != nil {
			if s, ok := result.Stats.Summaries[family]; ok {
				fr.Summary = &s
			}
		}
		report.Families = append(report.Families, fr)
	}

	return report
}

// annotations derives the per-family report notes from the cohort
// statistics, mainly flagging IQR bounds that degraded to a no-op
// because the cohort was too small.
func annotations(family models.Family, cs *classify.CohortStatistics) []string {
	if cs == nil {
		return nil
	}

	switch family {
	case models.StreamlineCount:
		if cs.StreamlineCount.Degenerate && cs.StreamlineCount.N > 0 {
			return []string{degenerateNote(cs.StreamlineCount.N)}
		}
	case models.CorticalVolume:
		return tieredAnnotations(cs.Cortical)
	case models.SubcorticalVolume:
		return tieredAnnotations(cs.Subcortical)
	case models.MetricsInROI:
		degenerate := 0
		for _, b := range cs.ROI {
			if b.Degenerate {
				degenerate++
			}
		}
		if degenerate > 0 {
			return []string{fmt.Sprintf(
				"bounds not estimated for %d of %d ROIs - insufficient samples", degenerate, len(cs.ROI))}
		}
	}

	return nil
}

func tieredAnnotations(bounds map[string]classify.TieredBounds) []string {
	degenerate := 0
	for _, tb := range bounds {
		if tb.Tight.Degenerate {
			degenerate++
		}
	}
	if degenerate == 0 {
		return nil
	}
	return []string{fmt.Sprintf(
		"bounds not estimated for %d of %d regions - insufficient samples", degenerate, len(bounds))}
}

func degenerateNote(n int) string {
	return fmt.Sprintf("bounds not estimated - insufficient samples (n=%d, need %d)", n, stats.MinCohortSize)
}
