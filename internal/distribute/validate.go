package distribute

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/Lllllllleong/coursecreator/internal/models"
)

const (
	probeLength = 50

	// MinCoverage is the share of source bytes the assignments must carry.
	MinCoverage = 0.8
)

// Report describes how well a distribution follows its source.
type Report struct {
	Ordered    bool     `json:"ordered" yaml:"ordered"`
	Coverage   float64  `json:"coverage" yaml:"coverage"`
	Violations []string `json:"violations,omitempty" yaml:"violations,omitempty"`
}

// Valid reports whether no violation was found.
func (r Report) Valid() bool {
	return len(r.Violations) == 0
}

// Inspect locates the start of each assignment in original and checks that
// the locations never move backwards. It also computes byte coverage.
func Inspect(assignments []models.ModuleContentAssignment, original string) Report {
	report := Report{Ordered: true}

	searchFrom, covered := 0, 0
	for _, a := range assignments {
		covered += len(a.Content)

		p := probe(a.Content)
		if p == "" {
			continue
		}
		if idx := strings.Index(original[searchFrom:], p); idx >= 0 {
			searchFrom += idx
			continue
		}

		report.Ordered = false
		if strings.Contains(original, p) {
			report.Violations = append(report.Violations,
				fmt.Sprintf("module %d starts before module %d", a.ModuleIndex+1, a.ModuleIndex))
		} else {
			report.Violations = append(report.Violations,
				fmt.Sprintf("module %d content not found in source", a.ModuleIndex+1))
		}
	}

	if len(original) > 0 {
		report.Coverage = float64(covered) / float64(len(original))
		if report.Coverage < MinCoverage {
			report.Violations = append(report.Violations,
				fmt.Sprintf("coverage %.2f below %.2f", report.Coverage, MinCoverage))
		}
	}
	return report
}

// Validate runs Inspect and logs the outcome. A false result is a quality
// signal only.
func Validate(assignments []models.ModuleContentAssignment, original string) bool {
	report := Inspect(assignments, original)
	if !report.Valid() {
		slog.Warn("Content distribution failed validation.",
			"modules", len(assignments),
			"coverage", report.Coverage,
			"violations", report.Violations,
		)
		return false
	}
	slog.Debug("Content distribution validated.", "modules", len(assignments), "coverage", report.Coverage)
	return true
}

// probe is the first line of content, cut to probeLength bytes on a rune
// boundary.
func probe(content string) string {
	if nl := strings.IndexByte(content, '\n'); nl >= 0 {
		content = content[:nl]
	}
	if len(content) <= probeLength {
		return content
	}
	cut := probeLength
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut]
}
