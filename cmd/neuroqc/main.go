package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"neuroqc/pkg/classify"
	"neuroqc/pkg/config"
	"neuroqc/pkg/loader"
	"neuroqc/pkg/report"
)

func main() {
	// Parse command line arguments
	inputDir := flag.String("input", "", "Analysis directory containing the pipeline's QC metric files")
	configPath := flag.String("config", "neuroqc.yaml", "Configuration file (YAML)")
	outputPath := flag.String("output", "", "Report data file path (default: <input>/<report.dataFile from config>)")
	noColor := flag.Bool("no-color", false, "Disable status coloring in the terminal summary")
	writeConfig := flag.String("write-config", "", "Write a default configuration file to this path and exit")
	flag.Parse()

	if *writeConfig != "" {
		if err := config.CreateDefaultConfigFile(*writeConfig); err != nil {
			log.Fatalf("Failed to write default config: %v", err)
		}
		fmt.Printf("Default configuration written to: %s\n", *writeConfig)
		return
	}

	// Validate inputs
	if *inputDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *noColor {
		cfg.Report.NoColor = true
	}

	order, err := cfg.FamilyOrder()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	dataFilePath := *outputPath
	if dataFilePath == "" {
		dataFilePath = filepath.Join(*inputDir, cfg.Report.DataFile)
	}

	fmt.Println("================================")
	fmt.Println("NEUROQC - NEUROIMAGING PIPELINE QC REPORT")
	fmt.Println("================================")

	// Discover and parse the QC metric files
	fmt.Printf("Scanning %s for QC metric files...\n", *inputDir)
	loaded, err := loader.LoadAll(*inputDir, cfg)
	if err != nil {
		log.Fatalf("Failed to load QC metric files: %v", err)
	}
	for _, warning := range loaded.Warnings {
		log.Printf("Warning: %s", warning)
	}
	fmt.Printf("Parsed %d metric records\n", len(loaded.Records))

	// Classify the cohort and build the report
	result := classify.ClassifyCohort(loaded.Records, cfg)
	cohortReport := report.Aggregate(result, order)

	fmt.Println()
	renderer := report.Renderer{NoColor: cfg.Report.NoColor}
	renderer.Render(os.Stdout, cohortReport)

	// Write the machine-readable report data file
	if err := report.WriteDataFile(cohortReport, result.Samples, dataFilePath); err != nil {
		log.Fatalf("Failed to write report data file: %v", err)
	}
	fmt.Printf("\nReport data written to: %s\n", dataFilePath)
}
