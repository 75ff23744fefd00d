// Package loader finds QC metric files in an analysis directory and
// parses them into the engine's structured records. Each metric family
// has a glob-style search pattern and a file format of its own; parsing
// is tolerant, skipping malformed rows with a warning rather than
// aborting the run.
package loader

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"neuroqc/internal/models"
	"neuroqc/pkg/config"
)

// Discover walks the analysis directory and buckets every file whose
// base name matches a family's search pattern. A file can feed several
// families if patterns overlap. Paths are returned sorted so downstream
// processing is deterministic.
func Discover(root string, cfg *config.Config) (map[models.Family][]string, error) {
	found := make(map[models.Family][]string)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		base := filepath.Base(path)
		for _, family := range models.AllFamilies() {
			pattern := cfg.PatternFor(family)
			if pattern == "" {
				continue
			}
			match, err := filepath.Match(pattern, base)
			if err != nil {
				return fmt.Errorf("bad search pattern %q for %s: %w", pattern, family, err)
			}
			if match {
				found[family] = append(found[family], path)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error scanning %s: %w", root, err)
	}

	for _, paths := range found {
		sort.Strings(paths)
	}

	return found, nil
}

// sampleFromFilename derives the sample identifier from a scalar metric
// file's name by stripping the search pattern's suffix and any trailing
// underscores, e.g. "sub-1019__dice.txt" with pattern "*dice.txt"
// becomes "sub-1019". Falls back to the extension-less base name when
// the pattern does not apply.
func sampleFromFilename(filename, pattern string) string {
	suffix := strings.TrimPrefix(pattern, "*")
	if suffix != pattern && !strings.ContainsAny(suffix, "*?[") && strings.HasSuffix(filename, suffix) {
		name := strings.TrimRight(filename[:len(filename)-len(suffix)], "_")
		if name != "" {
			return name
		}
	}
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}
