package loader

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"neuroqc/internal/models"
	"neuroqc/pkg/classify"
	"neuroqc/pkg/config"
)

// Result is the loader's output: every record parsed plus warnings for
// anything skipped along the way.
type Result struct {
	// Records are the parsed metric records, in file order.
	Records []models.MetricRecord

	// Warnings describe files or rows that could not be parsed.
	Warnings []string
}

// LoadAll discovers and parses every QC metric file under root.
func LoadAll(root string, cfg *config.Config) (Result, error) {
	files, err := Discover(root, cfg)
	if err != nil {
		return Result{}, err
	}

	var result Result
	for _, family := range models.AllFamilies() {
		for _, path := range files[family] {
			records, warnings, err := ParseFile(family, path, cfg.PatternFor(family))
			if err != nil {
				result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", path, err))
				continue
			}
			result.Records = append(result.Records, records...)
			result.Warnings = append(result.Warnings, warnings...)
		}
	}

	return result, nil
}

// ParseFile parses one discovered file into metric records using the
// family's format. The pattern is needed for the scalar formats whose
// sample identifier comes from the filename.
func ParseFile(family models.Family, path, pattern string) ([]models.MetricRecord, []string, error) {
	switch family {
	case models.FramewiseDisplacement:
		return parseFDFile(path, pattern)
	case models.Coverage:
		return parseScalarFile(path, pattern, family, classify.ColDice)
	case models.StreamlineCount:
		return parseScalarFile(path, pattern, family, classify.ColStreamlineCount)
	case models.Tractometry:
		return parseLongTSV(path, family, "bundle", classify.ColFA, classify.ColVolume, classify.ColStreamlinesCount)
	case models.MetricsInROI:
		return parseLongTSV(path, family, "roi", classify.ColFA)
	case models.CorticalVolume, models.SubcorticalVolume:
		return parseWideVolumeTSV(path, family)
	default:
		return nil, nil, fmt.Errorf("no parser for family %s", family)
	}
}

// parseFDFile reads a framewise displacement series (whitespace-separated
// columns, FD in the second column) and reduces it to the per-sample
// maximum the classification rule consumes.
func parseFDFile(path, pattern string) ([]models.MetricRecord, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("error reading FD file: %w", err)
	}

	maxFD := 0.0
	parsed := false
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			continue
		}
		if !parsed || v > maxFD {
			maxFD = v
		}
		parsed = true
	}

	if !parsed {
		return nil, []string{fmt.Sprintf("%s: no FD values found", path)}, nil
	}

	sample := sampleFromFilename(filepath.Base(path), pattern)
	return []models.MetricRecord{{
		Sample: sample,
		Family: models.FramewiseDisplacement,
		Values: map[string]float64{classify.ColMaxFD: maxFD},
	}}, nil, nil
}

// parseScalarFile reads a single-value file (one number on the first
// non-empty line) such as a Dice coefficient or streamline count.
func parseScalarFile(path, pattern string, family models.Family, column string) ([]models.MetricRecord, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("error reading %s file: %w", family, err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return nil, []string{fmt.Sprintf("%s: unparseable value %q", path, line)}, nil
		}

		sample := sampleFromFilename(filepath.Base(path), pattern)
		return []models.MetricRecord{{
			Sample: sample,
			Family: family,
			Values: map[string]float64{column: v},
		}}, nil, nil
	}

	return nil, []string{fmt.Sprintf("%s: empty file", path)}, nil
}

// parseLongTSV reads a long-format stats table: a header row, a "sample"
// column, a label column (bundle or ROI) and one column per metric. Rows
// missing a metric simply omit it from the record's values so the
// engine's missing-sub-metric handling can report it per sample.
func parseLongTSV(path string, family models.Family, labelColumn string, metricColumns ...string) ([]models.MetricRecord, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("error opening %s file: %w", family, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("error parsing %s file: %w", family, err)
	}
	if len(rows) < 2 {
		return nil, []string{fmt.Sprintf("%s: no data rows", path)}, nil
	}

	col := headerIndex(rows[0])
	labelIdx, ok := col[labelColumn]
	if !ok {
		return nil, nil, fmt.Errorf("%s: missing %q column", path, labelColumn)
	}
	sampleIdx, ok := col["sample"]
	if !ok {
		sampleIdx = -1
	}

	var records []models.MetricRecord
	var warnings []string
	for i, row := range rows[1:] {
		sample := cell(row, sampleIdx)
		if sample == "" {
			warnings = append(warnings, fmt.Sprintf("%s: row %d has no sample", path, i+2))
			continue
		}

		label := cell(row, labelIdx)
		if label == "" {
			label = "unnamed"
		}

		values := make(map[string]float64)
		for _, metric := range metricColumns {
			idx, ok := col[metric]
			if !ok {
				continue
			}
			raw := cell(row, idx)
			if raw == "" {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("%s: row %d: unparseable %s %q", path, i+2, metric, raw))
				continue
			}
			values[metric] = v
		}

		records = append(records, models.MetricRecord{
			Sample: sample,
			Family: family,
			Label:  label,
			Values: values,
		})
	}

	return records, warnings, nil
}

// parseWideVolumeTSV reads a wide-format region volume table: a header
// row of "Sample" plus one column per region, one row per sample. Each
// cell becomes its own record so regions classify independently. Left
// and right hemisphere files end up as separate records for the same
// sample and merge naturally in the engine.
func parseWideVolumeTSV(path string, family models.Family) ([]models.MetricRecord, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("error opening %s file: %w", family, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("error parsing %s file: %w", family, err)
	}
	if len(rows) < 2 {
		return nil, []string{fmt.Sprintf("%s: no data rows", path)}, nil
	}

	regions := rows[0][1:]

	var records []models.MetricRecord
	var warnings []string
	for i, row := range rows[1:] {
		if len(row) < 2 {
			continue
		}
		sample := strings.TrimSpace(row[0])
		if sample == "" {
			warnings = append(warnings, fmt.Sprintf("%s: row %d has no sample", path, i+2))
			continue
		}

		for j, region := range regions {
			raw := cell(row, j+1)
			if raw == "" {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("%s: row %d: unparseable volume %q for %s", path, i+2, raw, region))
				continue
			}
			records = append(records, models.MetricRecord{
				Sample: sample,
				Family: family,
				Label:  region,
				Values: map[string]float64{classify.ColVolume: v},
			})
		}
	}

	return records, warnings, nil
}

// headerIndex maps trimmed, lowercased header names to column indexes.
func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return idx
}

// cell returns the trimmed cell at index i, tolerating short rows.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
