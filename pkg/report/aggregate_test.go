package report

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"strings"
	"testing"

	"neuroqc/internal/models"
	"neuroqc/pkg/classify"
	"neuroqc/pkg/config"
)

func defaultOrder(t *testing.T, cfg *config.Config) []models.Family {
	t.Helper()
	order, err := cfg.FamilyOrder()
	if err != nil {
		t.Fatalf("Failed to resolve family order: %v", err)
	}
	return order
}

func diceRecord(sample string, dice float64) models.MetricRecord {
	return models.MetricRecord{
		Sample: sample,
		Family: models.Coverage,
		Values: map[string]float64{classify.ColDice: dice},
	}
}

func findFamily(t *testing.T, rep CohortReport, family models.Family) FamilyReport {
	t.Helper()
	for _, fr := range rep.Families {
		if fr.Family == family {
			return fr
		}
	}
	t.Fatalf("Family %s not in report", family)
	return FamilyReport{}
}

// TestAggregateEmptyCohort verifies an empty run produces an all-zero
// report rather than an error.
func TestAggregateEmptyCohort(t *testing.T) {
	cfg := config.DefaultConfig()
	result := classify.ClassifyCohort(nil, cfg)
	rep := Aggregate(result, defaultOrder(t, cfg))

	if rep.TotalSamples != 0 {
		t.Errorf("Expected 0 samples, got %d", rep.TotalSamples)
	}
	if len(rep.Families) != len(models.AllFamilies()) {
		t.Errorf("Expected a section per family, got %d", len(rep.Families))
	}
	for _, fr := range rep.Families {
		if fr.Counts.Total() != 0 || len(fr.Flagged) != 0 {
			t.Errorf("Expected all-zero section for %s, got %+v", fr.Family, fr)
		}
	}
}

// TestAggregateCounts verifies every classified sample lands in exactly
// one status bucket for each family it has a status for.
func TestAggregateCounts(t *testing.T) {
	cfg := config.DefaultConfig()

	records := []models.MetricRecord{
		diceRecord("sub-01", 0.95),
		diceRecord("sub-02", 0.92),
		diceRecord("sub-03", 0.85),
		diceRecord("sub-04", 0.5),
		diceRecord("sub-05", 0.6),
	}

	result := classify.ClassifyCohort(records, cfg)
	rep := Aggregate(result, defaultOrder(t, cfg))

	fr := findFamily(t, rep, models.Coverage)
	if fr.Counts.Pass != 2 || fr.Counts.Warn != 1 || fr.Counts.Fail != 2 {
		t.Errorf("Expected counts 2/1/2, got %+v", fr.Counts)
	}
	if fr.Counts.Total() != len(records) {
		t.Errorf("Counts must cover every classified sample: %+v", fr.Counts)
	}
}

// TestAggregateFlaggedOrdering verifies the flagged list is ordered by
// severity first, then sample identifier.
func TestAggregateFlaggedOrdering(t *testing.T) {
	cfg := config.DefaultConfig()

	records := []models.MetricRecord{
		diceRecord("sub-d", 0.85), // warn
		diceRecord("sub-a", 0.5),  // fail
		diceRecord("sub-c", 0.6),  // fail
		diceRecord("sub-b", 0.85), // warn
		diceRecord("sub-e", 0.95), // pass
	}

	result := classify.ClassifyCohort(records, cfg)
	rep := Aggregate(result, defaultOrder(t, cfg))

	fr := findFamily(t, rep, models.Coverage)
	var got []string
	for _, fs := range fr.Flagged {
		got = append(got, fmt.Sprintf("%s:%s", fs.Sample, fs.Status))
	}

	want := []string{"sub-a:fail", "sub-c:fail", "sub-b:warn", "sub-d:warn"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Expected flagged order %v, got %v", want, got)
	}

	// Each flagged sample carries the value that drove it.
	if len(fr.Flagged[0].Values) != 1 || fr.Flagged[0].Values[0].Value != 0.5 {
		t.Errorf("Expected driving value 0.5 for sub-a, got %+v", fr.Flagged[0].Values)
	}
}

// TestAggregateExclusions verifies excluded samples are reported per
// family and kept out of the status counts.
func TestAggregateExclusions(t *testing.T) {
	cfg := config.DefaultConfig()

	records := []models.MetricRecord{
		diceRecord("sub-01", 0.95),
		diceRecord("sub-02", 1.5), // invalid, excluded
	}

	result := classify.ClassifyCohort(records, cfg)
	rep := Aggregate(result, defaultOrder(t, cfg))

	fr := findFamily(t, rep, models.Coverage)
	if fr.Counts.Total() != 1 {
		t.Errorf("Excluded sample should not be counted: %+v", fr.Counts)
	}
	if len(fr.Excluded) != 1 || fr.Excluded[0].Sample != "sub-02" {
		t.Errorf("Expected sub-02 in exclusions, got %+v", fr.Excluded)
	}
}

// TestAggregateCohortSummary verifies the scalar families carry their
// descriptive cohort statistics into the report.
func TestAggregateCohortSummary(t *testing.T) {
	cfg := config.DefaultConfig()

	records := []models.MetricRecord{
		diceRecord("sub-01", 0.90),
		diceRecord("sub-02", 0.92),
		diceRecord("sub-03", 0.94),
		diceRecord("sub-04", 0.96),
	}

	result := classify.ClassifyCohort(records, cfg)
	rep := Aggregate(result, defaultOrder(t, cfg))

	fr := findFamily(t, rep, models.Coverage)
	if fr.Summary == nil {
		t.Fatal("Expected a cohort summary for the coverage family")
	}
	if fr.Summary.N != 4 {
		t.Errorf("Expected summary over 4 values, got %d", fr.Summary.N)
	}
	if math.Abs(fr.Summary.Mean-0.93) > 1e-9 || math.Abs(fr.Summary.Median-0.93) > 1e-9 {
		t.Errorf("Unexpected summary statistics: %+v", fr.Summary)
	}
	if fr.Summary.Min != 0.90 || fr.Summary.Max != 0.96 {
		t.Errorf("Unexpected summary extremes: %+v", fr.Summary)
	}

	// Per-region and per-bundle families have no single scalar metric.
	if findFamily(t, rep, models.Tractometry).Summary != nil {
		t.Error("Expected no summary for tractometry")
	}
}

// TestAggregateDegenerateAnnotation verifies the insufficient-samples
// annotation appears when IQR bounds could not be estimated.
func TestAggregateDegenerateAnnotation(t *testing.T) {
	cfg := config.DefaultConfig()

	records := []models.MetricRecord{
		{Sample: "sub-01", Family: models.StreamlineCount, Values: map[string]float64{classify.ColStreamlineCount: 100}},
		{Sample: "sub-02", Family: models.StreamlineCount, Values: map[string]float64{classify.ColStreamlineCount: 200}},
	}

	result := classify.ClassifyCohort(records, cfg)
	rep := Aggregate(result, defaultOrder(t, cfg))

	fr := findFamily(t, rep, models.StreamlineCount)
	if len(fr.Annotations) != 1 || !strings.Contains(fr.Annotations[0], "bounds not estimated") {
		t.Errorf("Expected degenerate-bounds annotation, got %+v", fr.Annotations)
	}
}

// TestAggregatePresentationOrder verifies the order argument controls
// section order without touching the computed content.
func TestAggregatePresentationOrder(t *testing.T) {
	cfg := config.DefaultConfig()
	result := classify.ClassifyCohort([]models.MetricRecord{diceRecord("sub-01", 0.95)}, cfg)

	order := []models.Family{models.Coverage, models.FramewiseDisplacement}
	rep := Aggregate(result, order)

	if len(rep.Families) != 2 {
		t.Fatalf("Expected 2 sections, got %d", len(rep.Families))
	}
	if rep.Families[0].Family != models.Coverage {
		t.Errorf("Expected coverage first, got %s", rep.Families[0].Family)
	}
	if rep.Families[0].Counts.Pass != 1 {
		t.Errorf("Reordering must not change counts: %+v", rep.Families[0].Counts)
	}
}

// TestRenderSummary is a smoke test for the terminal renderer.
func TestRenderSummary(t *testing.T) {
	cfg := config.DefaultConfig()

	records := []models.MetricRecord{
		diceRecord("sub-01", 0.95),
		diceRecord("sub-02", 0.5),
	}
	result := classify.ClassifyCohort(records, cfg)
	rep := Aggregate(result, defaultOrder(t, cfg))

	var buf bytes.Buffer
	Renderer{NoColor: true}.Render(&buf, rep)
	out := buf.String()

	if !strings.Contains(out, "coverage") {
		t.Error("Summary should mention the coverage family")
	}
	if !strings.Contains(out, "sub-02") {
		t.Error("Summary should list the flagged sample")
	}
	if !strings.Contains(out, "Cohort: 2 samples") {
		t.Errorf("Summary header missing: %q", out)
	}
}

// TestWriteDataFile verifies the YAML data file is written and contains
// the report.
func TestWriteDataFile(t *testing.T) {
	cfg := config.DefaultConfig()
	result := classify.ClassifyCohort([]models.MetricRecord{diceRecord("sub-01", 0.5)}, cfg)
	rep := Aggregate(result, defaultOrder(t, cfg))

	path := t.TempDir() + "/report.yaml"
	if err := WriteDataFile(rep, result.Samples, path); err != nil {
		t.Fatalf("WriteDataFile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read data file: %v", err)
	}
	if !strings.Contains(string(data), "coverage") || !strings.Contains(string(data), "sub-01") {
		t.Errorf("Data file missing expected content: %q", data)
	}
}
