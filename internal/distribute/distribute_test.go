package distribute

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/Lllllllleong/coursecreator/internal/models"
)

func paragraphs(n int) []string {
	out := make([]string, n)
	for i := range out {
		body := fmt.Sprintf("Paragraph %d. ", i+1) + strings.Repeat(fmt.Sprintf("Sentence about topic %d. ", i+1), 6)
		out[i] = strings.TrimSpace(body)
	}
	return out
}

func TestDistribute_NaturalSectionsInOrder(t *testing.T) {
	paras := paragraphs(6)
	content := strings.Join(paras, "\n\n")

	got, strategy, err := Distribute(content, 3)
	if err != nil {
		t.Fatalf("Distribute() error = %v", err)
	}
	if strategy != StrategyNatural {
		t.Fatalf("strategy = %q, want %q", strategy, StrategyNatural)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 assignments, got %d", len(got))
	}
	for i, a := range got {
		if a.ModuleIndex != i {
			t.Errorf("assignment %d has moduleIndex %d", i, a.ModuleIndex)
		}
		want := paras[2*i] + "\n\n" + paras[2*i+1]
		if a.Content != want {
			t.Errorf("module %d content = %q, want paragraphs %d-%d", i, a.Content, 2*i+1, 2*i+2)
		}
		if a.WordCount != len(strings.Fields(want)) {
			t.Errorf("module %d wordCount = %d", i, a.WordCount)
		}
		if a.PositionLabel == "" {
			t.Errorf("module %d has no position label", i)
		}
	}

	var joined []string
	for _, a := range got {
		joined = append(joined, a.Content)
	}
	if strings.Join(joined, "\n\n") != content {
		t.Fatal("concatenated assignments do not reproduce the source")
	}
	if !Validate(got, content) {
		t.Fatalf("Validate() = false, report %+v", Inspect(got, content))
	}
}

func TestDistribute_SkipsShortParagraphs(t *testing.T) {
	paras := paragraphs(3)
	content := paras[0] + "\n\nshort\n\n" + paras[1] + "\n  \n" + paras[2]

	sections := NaturalSections(content)
	if !reflect.DeepEqual(sections, paras) {
		t.Fatalf("NaturalSections() = %#v", sections)
	}
}

func TestSectionBlocks(t *testing.T) {
	cases := []struct {
		sections, modules int
		want              [][2]int
	}{
		{6, 3, [][2]int{{0, 2}, {2, 4}, {4, 6}}},
		{7, 3, [][2]int{{0, 3}, {3, 6}, {6, 7}}},
		{4, 3, [][2]int{{0, 1}, {1, 2}, {2, 4}}},
		{3, 3, [][2]int{{0, 1}, {1, 2}, {2, 3}}},
		{5, 1, [][2]int{{0, 5}}},
	}
	for _, tc := range cases {
		if got := sectionBlocks(tc.sections, tc.modules); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("sectionBlocks(%d, %d) = %v, want %v", tc.sections, tc.modules, got, tc.want)
		}
	}
}

func TestDistribute_PercentageBoundaries(t *testing.T) {
	content := strings.Repeat("wordy ", 1500)
	if len(content) != 9000 {
		t.Fatalf("test content is %d bytes", len(content))
	}

	ranges := percentageRanges(content, 3)
	near := func(got, want int) bool { return got <= want && want-got <= 50 }
	if !near(ranges[0][1], 3000) || !near(ranges[1][1], 6000) {
		t.Fatalf("boundaries = %d, %d; want about 3000 and 6000", ranges[0][1], ranges[1][1])
	}
	if ranges[2][1] != 9000 {
		t.Fatalf("last module ends at %d, want 9000", ranges[2][1])
	}
	for i := 1; i < len(ranges); i++ {
		if ranges[i][0] != ranges[i-1][1] {
			t.Fatalf("range %d starts at %d, previous ends at %d", i, ranges[i][0], ranges[i-1][1])
		}
	}

	got, strategy, err := Distribute(content, 3)
	if err != nil {
		t.Fatalf("Distribute() error = %v", err)
	}
	if strategy != StrategyPercentage {
		t.Fatalf("strategy = %q, want %q", strategy, StrategyPercentage)
	}
	if !Validate(got, content) {
		t.Fatalf("Validate() = false, report %+v", Inspect(got, content))
	}
}

func TestDistribute_PercentageLastModuleReachesEnd(t *testing.T) {
	content := strings.Repeat("x", 1000) + " tail-marker"

	for modules := 1; modules <= 7; modules++ {
		ranges := percentageRanges(content, modules)
		if last := ranges[len(ranges)-1]; last[1] != len(content) {
			t.Fatalf("%d modules: last range ends at %d, want %d", modules, last[1], len(content))
		}
		got, _, err := Distribute(content, modules)
		if err != nil {
			t.Fatalf("Distribute() error = %v", err)
		}
		if !strings.HasSuffix(got[len(got)-1].Content, "tail-marker") {
			t.Fatalf("%d modules: last module lost the tail", modules)
		}
	}
}

func TestDistribute_PercentageKeepsRunesWhole(t *testing.T) {
	content := strings.Repeat("é", 1001)

	got, _, err := Distribute(content, 4)
	if err != nil {
		t.Fatalf("Distribute() error = %v", err)
	}
	total := 0
	for i, a := range got {
		if !utf8.ValidString(a.Content) {
			t.Fatalf("module %d splits a rune", i)
		}
		total += len(a.Content)
	}
	if total != len(content) {
		t.Fatalf("assignments carry %d bytes, want %d", total, len(content))
	}
}

func TestDistribute_InvalidModuleCount(t *testing.T) {
	if _, _, err := Distribute("text", 0); !errors.Is(err, ErrInvalidModuleCount) {
		t.Fatalf("Distribute() error = %v, want ErrInvalidModuleCount", err)
	}
}

func TestInspect_DetectsOutOfOrder(t *testing.T) {
	paras := paragraphs(4)
	content := strings.Join(paras, "\n\n")
	assignments := []models.ModuleContentAssignment{
		{ModuleIndex: 0, Content: paras[2] + "\n\n" + paras[3]},
		{ModuleIndex: 1, Content: paras[0] + "\n\n" + paras[1]},
	}

	report := Inspect(assignments, content)
	if report.Ordered || report.Valid() {
		t.Fatalf("Inspect() = %+v, want an ordering violation", report)
	}
	if Validate(assignments, content) {
		t.Fatal("Validate() = true for swapped modules")
	}
}

func TestInspect_ReportsMissingContentAndCoverage(t *testing.T) {
	content := strings.Repeat("source text ", 100)
	assignments := []models.ModuleContentAssignment{
		{ModuleIndex: 0, Content: "something that is not in the source"},
	}

	report := Inspect(assignments, content)
	if report.Ordered {
		t.Fatal("missing content should break ordering")
	}
	if len(report.Violations) != 2 {
		t.Fatalf("violations = %v, want missing content and low coverage", report.Violations)
	}
	if report.Coverage >= MinCoverage {
		t.Fatalf("coverage = %.2f, want below %.2f", report.Coverage, MinCoverage)
	}
}
