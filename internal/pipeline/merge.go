package pipeline

import (
	"errors"
	"log/slog"
	"sort"

	"github.com/Lllllllleong/coursecreator/internal/models"
	"github.com/Lllllllleong/coursecreator/internal/repair"
)

// ErrNoSuccessfulChunks is returned by Merge when there is nothing to merge.
// Callers fall back to offline insight extraction.
var ErrNoSuccessfulChunks = errors.New("no chunks were processed successfully")

// Merge folds the successful chunk results into one analysis. List fields are
// unioned in chunk order with exact duplicates removed; scalar fields and
// scope options take the first non-empty value. It fails only when no chunk
// succeeded.
func Merge(results []models.ChunkResult, operation string) (models.ParsedAnalysis, error) {
	ordered := make([]models.ChunkResult, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ChunkNumber < ordered[j].ChunkNumber
	})

	var parts []models.ParsedAnalysis
	for _, res := range ordered {
		if !res.Processed {
			continue
		}
		part := res.Result
		if part == nil {
			parsed := repair.Parse(res.Raw)
			if parsed.Fallback {
				slog.Warn("Successful chunk has no usable analysis.", "operation", operation, "chunkNumber", res.ChunkNumber)
				parsed = models.ParsedAnalysis{}
			}
			part = &parsed
		}
		parts = append(parts, *part)
	}

	if len(parts) == 0 {
		return models.ParsedAnalysis{}, ErrNoSuccessfulChunks
	}

	merged := mergeAnalyses(parts)
	merged.Stamp()
	merged.ChunkProcessingInfo = &models.ChunkProcessingInfo{
		TotalChunks:         len(results),
		SuccessfulChunks:    len(parts),
		FailedChunks:        len(results) - len(parts),
		ProcessingTimestamp: merged.Timestamp,
	}

	slog.Info("Merged chunk results.",
		"operation", operation,
		"totalChunks", len(results),
		"successfulChunks", len(parts),
		"keyClaims", len(merged.SourceAnalysis.KeyClaims),
		"keyTerms", len(merged.SourceAnalysis.KeyTerms),
	)
	return merged, nil
}

func mergeAnalyses(parts []models.ParsedAnalysis) models.ParsedAnalysis {
	var out models.ParsedAnalysis
	sa, cb, cg := &out.SourceAnalysis, &out.CourseBlueprint, &out.ContentGaps

	for _, p := range parts {
		sa.KeyClaims = append(sa.KeyClaims, p.SourceAnalysis.KeyClaims...)
		sa.KeyTerms = append(sa.KeyTerms, p.SourceAnalysis.KeyTerms...)
		sa.Frameworks = append(sa.Frameworks, p.SourceAnalysis.Frameworks...)
		sa.Examples = append(sa.Examples, p.SourceAnalysis.Examples...)
		cb.Prerequisites = append(cb.Prerequisites, p.CourseBlueprint.Prerequisites...)
		cb.LearningOutcomes = append(cb.LearningOutcomes, p.CourseBlueprint.LearningOutcomes...)
		cb.Syllabus = append(cb.Syllabus, p.CourseBlueprint.Syllabus...)
		cg.MissingConcepts = append(cg.MissingConcepts, p.ContentGaps.MissingConcepts...)
		cg.NeedsVerification = append(cg.NeedsVerification, p.ContentGaps.NeedsVerification...)
		cg.SuggestedAdditions = append(cg.SuggestedAdditions, p.ContentGaps.SuggestedAdditions...)

		firstNonEmpty(&sa.AuthorVoice, p.SourceAnalysis.AuthorVoice)
		firstNonEmpty(&cb.TargetAudience, p.CourseBlueprint.TargetAudience)

		if out.ScopeOptions.Lite.IsZero() {
			out.ScopeOptions.Lite = p.ScopeOptions.Lite
		}
		if out.ScopeOptions.Core.IsZero() {
			out.ScopeOptions.Core = p.ScopeOptions.Core
		}
		if out.ScopeOptions.DeepDive == nil && p.ScopeOptions.DeepDive != nil {
			deep := *p.ScopeOptions.DeepDive
			out.ScopeOptions.DeepDive = &deep
		}

		for k, v := range p.Extra {
			// The merged result carries its own provenance.
			if models.ProvenanceKeys[k] {
				continue
			}
			if out.Extra == nil {
				out.Extra = make(map[string]any)
			}
			if _, exists := out.Extra[k]; !exists {
				out.Extra[k] = v
			}
		}
	}

	for _, list := range []*[]string{
		&sa.KeyClaims, &sa.KeyTerms, &sa.Frameworks, &sa.Examples,
		&cb.Prerequisites, &cb.LearningOutcomes, &cb.Syllabus,
		&cg.MissingConcepts, &cg.NeedsVerification, &cg.SuggestedAdditions,
	} {
		*list = dedupe(*list)
	}
	out.Normalize()
	return out
}

func firstNonEmpty(dst *string, v string) {
	if *dst == "" && v != "" {
		*dst = v
	}
}

// dedupe removes exact duplicates, keeping first occurrences in order.
func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
