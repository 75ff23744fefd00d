// Package classify is the metric classification engine: it derives
// cohort statistics from the full record set, applies each family's rule
// to every sample and rolls the per-family statuses up into per-sample
// results. The computation is pure and synchronous; given the same
// records and configuration the output is identical regardless of the
// order records are supplied in.
package classify

import (
	"sort"

	"neuroqc/internal/models"
	"neuroqc/pkg/config"
)

// Result is the engine's output for one run: every classified sample,
// every local exclusion and the cohort statistics the IQR and percentile
// rules were evaluated against.
type Result struct {
	// Samples are the classified samples, ordered by sample identifier.
	Samples []models.ClassifiedSample

	// Exclusions are the samples excluded from single families because
	// of invalid or incomplete input. They are ordered by family, then
	// sample identifier.
	Exclusions []models.Exclusion

	// Stats are the cohort statistics of the run.
	Stats *CohortStatistics
}

// ClassifyCohort runs the full engine over one run's records: cohort
// statistics first, then per-sample classification. Errors are local by
// design; a bad value in one sample never aborts the others.
func ClassifyCohort(records []models.MetricRecord, cfg *config.Config) Result {
	cs := BuildCohortStatistics(records, cfg)

	bySample := make(map[string][]models.MetricRecord)
	for _, rec := range records {
		bySample[rec.Sample] = append(bySample[rec.Sample], rec)
	}

	sampleIDs := make([]string, 0, len(bySample))
	for id := range bySample {
		sampleIDs = append(sampleIDs, id)
	}
	sort.Strings(sampleIDs)

	result := Result{Stats: cs}
	for _, id := range sampleIDs {
		classified, exclusions := ClassifySample(id, bySample[id], cs, cfg)
		result.Samples = append(result.Samples, classified)
		result.Exclusions = append(result.Exclusions, exclusions...)
	}

	sort.Slice(result.Exclusions, func(i, j int) bool {
		a, b := result.Exclusions[i], result.Exclusions[j]
		if a.Family != b.Family {
			return a.Family < b.Family
		}
		return a.Sample < b.Sample
	})

	return result
}

// ClassifySample classifies all records belonging to one sample,
// dispatching each family's records to its rule evaluator with the
// precomputed cohort statistics. The overall status is the most severe
// per-family status; a family the sample has no records for gets no
// entry (absence is not a failure). An evaluator error excludes the
// sample from that family only.
func ClassifySample(sampleID string, records []models.MetricRecord, cs *CohortStatistics, cfg *config.Config) (models.ClassifiedSample, []models.Exclusion) {
	byFamily := make(map[models.Family][]models.MetricRecord)
	for _, rec := range records {
		if rec.Sample != sampleID || !models.ValidFamily(rec.Family) {
			continue
		}
		byFamily[rec.Family] = append(byFamily[rec.Family], rec)
	}

	classified := models.ClassifiedSample{
		Sample:   sampleID,
		Statuses: make(map[models.Family]models.Status),
		Findings: make(map[models.Family][]models.Finding),
	}
	var exclusions []models.Exclusion

	// Families are visited in their canonical order and each group is
	// sorted by label so the result is independent of input order.
	for _, family := range models.AllFamilies() {
		group, ok := byFamily[family]
		if !ok {
			continue
		}
		sort.SliceStable(group, func(i, j int) bool { return group[i].Label < group[j].Label })

		status, findings, err := evaluators[family](group, cfg.ThresholdsFor(family), cs)
		if err != nil {
			exclusions = append(exclusions, models.Exclusion{
				Sample: sampleID,
				Family: family,
				Reason: err.Error(),
			})
			continue
		}

		classified.Statuses[family] = status
		classified.Overall = classified.Overall.Max(status)
		if len(findings) > 0 {
			classified.Findings[family] = findings
		}
	}

	if len(classified.Findings) == 0 {
		classified.Findings = nil
	}

	return classified, exclusions
}
