package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"neuroqc/internal/models"
)

// Status colors matching the pipeline's HTML report conventions.
var (
	passStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#2ecc71"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#f39c12"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#e74c3c"))
	dimStyle  = lipgloss.NewStyle().Faint(true)
)

// Renderer writes the human-readable cohort summary.
type Renderer struct {
	// NoColor disables status coloring.
	NoColor bool
}

// Render writes the cohort summary table followed by the flagged-sample
// details for every family that has any.
func (r Renderer) Render(w io.Writer, report CohortReport) {
	fmt.Fprintf(w, "Cohort: %d samples\n\n", report.TotalSamples)

	// Summary table: one row per family.
	fmt.Fprintf(w, "%-24s %6s %6s %6s %9s\n", "family", "pass", "warn", "fail", "excluded")
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 55))
	for _, fr := range report.Families {
		fmt.Fprintf(w, "%-24s %6s %6s %6s %9d\n",
			fr.Family,
			r.count(fr.Counts.Pass, passStyle),
			r.count(fr.Counts.Warn, warnStyle),
			r.count(fr.Counts.Fail, failStyle),
			len(fr.Excluded))
	}

	for _, fr := range report.Families {
		if len(fr.Flagged) == 0 && len(fr.Excluded) == 0 && len(fr.Annotations) == 0 {
			continue
		}

		fmt.Fprintf(w, "\n%s\n", fr.Family)
		if s := fr.Summary; s != nil {
			fmt.Fprintf(w, "  %s\n", r.dim(fmt.Sprintf(
				"cohort: n=%d mean=%.4g sd=%.4g median=%.4g range=[%.4g, %.4g]",
				s.N, s.Mean, s.StdDev, s.Median, s.Min, s.Max)))
		}
		for _, note := range fr.Annotations {
			fmt.Fprintf(w, "  %s\n", r.dim("note: "+note))
		}
		for _, fs := range fr.Flagged {
			fmt.Fprintf(w, "  %s  %s%s\n", r.status(fs.Status), fs.Sample, formatValues(fs.Values))
		}
		for _, ex := range fr.Excluded {
			fmt.Fprintf(w, "  %s  %s (%s)\n", r.dim("skip"), ex.Sample, ex.Reason)
		}
	}
}

// status renders a fixed-width colored status label.
func (r Renderer) status(s models.Status) string {
	label := fmt.Sprintf("%-4s", s)
	if r.NoColor {
		return label
	}
	switch s {
	case models.Warn:
		return warnStyle.Render(label)
	case models.Fail:
		return failStyle.Render(label)
	default:
		return passStyle.Render(label)
	}
}

func (r Renderer) count(n int, style lipgloss.Style) string {
	s := fmt.Sprintf("%d", n)
	if r.NoColor || n == 0 {
		return s
	}
	return style.Render(s)
}

func (r Renderer) dim(s string) string {
	if r.NoColor {
		return s
	}
	return dimStyle.Render(s)
}

// formatValues renders the driving values of a flagged sample, limited
// to the first few so wide region families stay readable.
func formatValues(values []models.Finding) string {
	if len(values) == 0 {
		return ""
	}

	const maxShown = 4
	parts := make([]string, 0, maxShown+1)
	for i, v := range values {
		if i == maxShown {
			parts = append(parts, fmt.Sprintf("+%d more", len(values)-maxShown))
			break
		}
		name := v.Column
		if v.Label != "" {
			name = v.Label + "/" + v.Column
		}
		parts = append(parts, fmt.Sprintf("%s=%g", name, v.Value))
	}

	return "  (" + strings.Join(parts, ", ") + ")"
}
