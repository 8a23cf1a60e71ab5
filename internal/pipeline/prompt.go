package pipeline

import (
	"fmt"
	"strings"

	"github.com/Lllllllleong/coursecreator/internal/models"
)

// AnalysisShape describes the JSON object every analysis request must return.
const AnalysisShape = `Return ONLY a JSON object with exactly this structure:
{
  "sourceAnalysis": {"keyClaims": [string], "keyTerms": [string], "frameworks": [string], "examples": [string], "authorVoice": string},
  "courseBlueprint": {"targetAudience": string, "prerequisites": [string], "learningOutcomes": [string], "syllabus": [string]},
  "contentGaps": {"missingConcepts": [string], "needsVerification": [string], "suggestedAdditions": [string]},
  "scopeOptions": {
    "lite": {"duration": string, "modules": number, "focus": string},
    "core": {"duration": string, "modules": number, "focus": string},
    "deepDive": {"duration": string, "modules": number, "focus": string}
  }
}
Do not wrap the JSON in markdown and do not add any commentary.`

// Position returns where a chunk sits in its document.
func Position(chunkNumber, totalChunks int) string {
	switch {
	case totalChunks <= 1:
		return "entire document"
	case chunkNumber == 1:
		return "beginning"
	case chunkNumber == totalChunks:
		return "end"
	default:
		return "middle"
	}
}

// BuildChunkPrompt builds the request for one chunk of a larger document.
func BuildChunkPrompt(operation string, chunk models.Chunk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s.\n", operation)
	fmt.Fprintf(&b, "You are reading part %d of %d (%s of the document, characters %d-%d).\n",
		chunk.ChunkNumber, chunk.TotalChunks, Position(chunk.ChunkNumber, chunk.TotalChunks),
		chunk.StartIndex, chunk.EndIndex)
	if !chunk.IsComplete {
		b.WriteString("The document continues after this part, so report only what this part supports and leave fields empty when it says nothing about them.\n")
	}
	b.WriteString("\n")
	b.WriteString(AnalysisShape)
	b.WriteString("\n\n--- SOURCE PART START ---\n")
	b.WriteString(chunk.Content)
	b.WriteString("\n--- SOURCE PART END ---\n")
	return b.String()
}

// BuildDocumentPrompt builds the request for a document that fits in one call.
func BuildDocumentPrompt(operation, content string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s.\n\n", operation)
	b.WriteString(AnalysisShape)
	b.WriteString("\n\n--- SOURCE START ---\n")
	b.WriteString(content)
	b.WriteString("\n--- SOURCE END ---\n")
	return b.String()
}
