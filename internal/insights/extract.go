// Package insights derives lightweight content signals from source text
// without a model call. They back the fallback analysis and lessons used when
// the model pipeline is unavailable.
package insights

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	maxKeyTerms = 10
	maxConcepts = 10
	maxExamples = 5
	maxSections = 8

	minTermFrequency = 3
	maxConceptLength = 60
	maxExampleLength = 300
)

var (
	wordRegex     = regexp.MustCompile(`[\p{L}\p{N}']+`)
	conceptRegex  = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\b`)
	exampleRegex  = regexp.MustCompile(`(?i)\b(example|for instance|such as|like|including)\b`)
	sectionRegex  = regexp.MustCompile(`^(\d+\.|[*-]|#)`)
	sentenceRegex = regexp.MustCompile(`[.!?]+(\s+|$)`)
)

var stopWords = map[string]bool{
	"that": true, "this": true, "with": true, "from": true, "have": true, "there": true,
	"their": true, "they": true, "were": true, "which": true, "will": true, "would": true,
	"what": true, "when": true, "where": true, "been": true, "into": true, "also": true,
	"than": true, "then": true, "them": true, "these": true, "those": true, "about": true,
	"your": true, "more": true, "some": true, "such": true, "each": true, "only": true,
}

// Insights are heuristic signals extracted from text.
type Insights struct {
	KeyTerms      []string `json:"keyTerms" yaml:"keyTerms"`
	Concepts      []string `json:"concepts" yaml:"concepts"`
	Examples      []string `json:"examples" yaml:"examples"`
	Sections      []string `json:"sections" yaml:"sections"`
	WordCount     int      `json:"wordCount" yaml:"wordCount"`
	SentenceCount int      `json:"sentenceCount" yaml:"sentenceCount"`
}

// Extract computes Insights for content. It is deterministic.
func Extract(content string) Insights {
	sentences := splitSentences(content)
	return Insights{
		KeyTerms:      keyTerms(content),
		Concepts:      concepts(content),
		Examples:      examples(sentences),
		Sections:      sections(content),
		WordCount:     len(strings.Fields(content)),
		SentenceCount: len(sentences),
	}
}

func keyTerms(content string) []string {
	counts := make(map[string]int)
	for _, w := range wordRegex.FindAllString(strings.ToLower(content), -1) {
		w = strings.Trim(w, "'")
		if utf8.RuneCountInString(w) <= 3 || stopWords[w] {
			continue
		}
		counts[w]++
	}

	terms := make([]string, 0, len(counts))
	for w, n := range counts {
		if n >= minTermFrequency {
			terms = append(terms, w)
		}
	}
	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > maxKeyTerms {
		terms = terms[:maxKeyTerms]
	}
	return terms
}

// concepts matches capitalized word runs line by line so a heading does not
// join the paragraph after it.
func concepts(content string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, line := range strings.Split(content, "\n") {
		for _, m := range conceptRegex.FindAllString(line, -1) {
			m = strings.Join(strings.Fields(m), " ")
			if len(m) <= 3 || len(m) > maxConceptLength || seen[m] {
				continue
			}
			seen[m] = true
			out = append(out, m)
			if len(out) == maxConcepts {
				return out
			}
		}
	}
	return out
}

func examples(sentences []string) []string {
	out := []string{}
	for _, s := range sentences {
		if !exampleRegex.MatchString(s) || len(s) > maxExampleLength {
			continue
		}
		out = append(out, s)
		if len(out) == maxExamples {
			break
		}
	}
	return out
}

func sections(content string) []string {
	out := []string{}
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !sectionRegex.MatchString(line) {
			continue
		}
		out = append(out, line)
		if len(out) == maxSections {
			break
		}
	}
	return out
}

func splitSentences(content string) []string {
	var out []string
	for _, s := range sentenceRegex.Split(content, -1) {
		s = strings.Join(strings.Fields(s), " ")
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
