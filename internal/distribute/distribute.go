// Package distribute partitions source text across course modules in
// document order.
package distribute

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/Lllllllleong/coursecreator/internal/models"
)

const (
	// MinSectionLength is the shortest paragraph counted as a natural section.
	MinSectionLength = 100

	// wordBoundaryWindow is the trailing share of a percentage slice in which a
	// cut is moved back to the preceding space.
	wordBoundaryWindow = 0.2
)

// Strategy names reported in logs and by the CLI.
const (
	StrategyNatural    = "natural"
	StrategyPercentage = "percentage"
)

var ErrInvalidModuleCount = errors.New("module count must be greater than zero")

var blankLineRegex = regexp.MustCompile(`\n\s*\n`)

// NaturalSections splits content on blank lines and keeps the trimmed
// paragraphs of at least MinSectionLength bytes.
func NaturalSections(content string) []string {
	var sections []string
	for _, part := range blankLineRegex.Split(content, -1) {
		part = strings.TrimSpace(part)
		if len(part) >= MinSectionLength {
			sections = append(sections, part)
		}
	}
	return sections
}

// Distribute assigns content to moduleCount modules. When there are at least
// as many natural sections as modules, whole sections are handed out in
// contiguous blocks with any remainder going to the last module. Otherwise
// each module gets a proportional character range, and the last module always
// runs to the end of content.
func Distribute(content string, moduleCount int) ([]models.ModuleContentAssignment, string, error) {
	if moduleCount <= 0 {
		return nil, "", fmt.Errorf("%w: got %d", ErrInvalidModuleCount, moduleCount)
	}

	if sections := NaturalSections(content); len(sections) >= moduleCount {
		blocks := sectionBlocks(len(sections), moduleCount)
		out := make([]models.ModuleContentAssignment, moduleCount)
		for i, b := range blocks {
			out[i] = assignment(i, moduleCount, strings.Join(sections[b[0]:b[1]], "\n\n"))
		}
		return out, StrategyNatural, nil
	}

	ranges := percentageRanges(content, moduleCount)
	out := make([]models.ModuleContentAssignment, moduleCount)
	for i, r := range ranges {
		out[i] = assignment(i, moduleCount, strings.TrimSpace(content[r[0]:r[1]]))
	}
	return out, StrategyPercentage, nil
}

// sectionBlocks returns [from, to) section indices per module. Blocks use
// ceiling division; when that would leave a trailing module empty they fall
// back to floor division so every module gets at least one section.
func sectionBlocks(sectionCount, moduleCount int) [][2]int {
	per := (sectionCount + moduleCount - 1) / moduleCount
	if (moduleCount-1)*per >= sectionCount {
		per = sectionCount / moduleCount
	}

	blocks := make([][2]int, moduleCount)
	for i := range blocks {
		from, to := i*per, (i+1)*per
		if i == moduleCount-1 {
			to = sectionCount
		}
		blocks[i] = [2]int{from, to}
	}
	return blocks
}

// percentageRanges splits [0, len(content)) into moduleCount contiguous byte
// ranges of roughly equal size.
func percentageRanges(content string, moduleCount int) [][2]int {
	total := len(content)
	ranges := make([][2]int, moduleCount)

	start := 0
	for i := 0; i < moduleCount; i++ {
		end := (i + 1) * total / moduleCount
		if i == moduleCount-1 {
			ranges[i] = [2]int{start, total}
			break
		}
		if end < start {
			end = start
		}
		for end > start && end < total && !utf8.RuneStart(content[end]) {
			end--
		}

		slice := content[start:end]
		if sp := strings.LastIndexByte(slice, ' '); sp > 0 {
			if float64(sp) >= float64(len(slice))*(1-wordBoundaryWindow) {
				end = start + sp
			}
		}

		ranges[i] = [2]int{start, end}
		start = end
	}
	return ranges
}

func assignment(index, moduleCount int, content string) models.ModuleContentAssignment {
	return models.ModuleContentAssignment{
		ModuleIndex:   index,
		Content:       content,
		WordCount:     len(strings.Fields(content)),
		PositionLabel: positionLabel(index, moduleCount),
	}
}

func positionLabel(index, moduleCount int) string {
	var where string
	switch {
	case moduleCount == 1:
		where = "complete source"
	case index == 0:
		where = "opening section"
	case index == moduleCount-1:
		where = "closing section"
	default:
		where = "middle section"
	}
	return fmt.Sprintf("%s (module %d of %d)", where, index+1, moduleCount)
}
