package report

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"neuroqc/internal/models"
)

// DataFile is the machine-readable dump written next to the terminal
// summary: the full cohort report plus every classified sample for
// drill-down.
type DataFile struct {
	Report  CohortReport              `yaml:"report"`
	Samples []models.ClassifiedSample `yaml:"samples"`
}

// WriteDataFile writes the report and the classified samples as YAML.
func WriteDataFile(report CohortReport, samples []models.ClassifiedSample, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating report directory: %w", err)
	}

	data, err := yaml.Marshal(DataFile{Report: report, Samples: samples})
	if err != nil {
		return fmt.Errorf("error marshaling report: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing report file: %w", err)
	}

	return nil
}
