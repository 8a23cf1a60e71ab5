package gcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"github.com/Lllllllleong/coursecreator/internal/llm"
)

const defaultGeminiModel = "gemini-1.5-pro"

// ErrRefusal is returned when a model answers with a refusal instead of content.
var ErrRefusal = errors.New("model response indicates refusal")

// --- Analyzer Model Prompts ---
const AnalyzerSystemPrompt = "You are an instructional designer. You read source material and describe what a course built from it should teach. You always answer with a single valid JSON object and nothing else."

// --- Lesson Model Prompts ---
const LessonSystemPrompt = "You are an instructional designer writing one lesson of a multi-module course. Use only the source excerpt you are given. You always answer with a single valid JSON object and nothing else."
const LessonUserPrompt = `Write the lesson for module %d of %d, titled %q. The excerpt below is the %s.

Return ONLY a JSON object with exactly this structure:
{"title": string, "objectives": [string], "content": string, "keyTakeaways": [string], "activities": [string]}

"content" is the lesson body in markdown. Keep claims faithful to the excerpt.

--- EXCERPT START ---
%s
--- EXCERPT END ---`

// --- Source Extractor Model Prompts ---
const SourceExtractorSystemPrompt = "You are a document parser. Your task is to read a PDF document and reproduce its teaching content as markdown. Accuracy and information preservation are of utmost importance."
const SourceExtractorUserPrompt = `You will be provided with a PDF document.

Text: Reproduce all body text as markdown, keeping paragraph breaks.
Headings: Keep the document's heading structure using markdown headings.
Lists and tables: Keep them as markdown lists and tables.
Images: Replace each image with a short description of what it shows.
Headers and footers: Drop page numbers, running headers and publisher boilerplate.

Return ONLY the markdown.`

// refusalPhrases mark an answer that declined the task.
var refusalPhrases = []string{
	"i am unable to",
	"i cannot fulfill",
	"i cannot answer",
	"i cannot provide",
	"as a large language model",
}

// VertexClient holds all pre-configured generative models for our app.
type VertexClient struct {
	AnalyzerModel        *genai.GenerativeModel
	LessonModel          *genai.GenerativeModel
	SourceExtractorModel *genai.GenerativeModel
	baseClient           *genai.Client
}

// NewVertexClient creates a new client holding all necessary models.
func NewVertexClient(ctx context.Context, projectID, region, modelName string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}
	if modelName == "" {
		modelName = defaultGeminiModel
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	analyzerModel := baseClient.GenerativeModel(modelName)
	analyzerModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(AnalyzerSystemPrompt)},
	}
	analyzerModel.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.3),
	}

	lessonModel := baseClient.GenerativeModel(modelName)
	lessonModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(LessonSystemPrompt)},
	}
	lessonModel.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.5),
	}

	extractorModel := baseClient.GenerativeModel(modelName)
	extractorModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(SourceExtractorSystemPrompt)},
	}
	extractorModel.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr[float32](0.0),
	}

	return &VertexClient{
		AnalyzerModel:        analyzerModel,
		LessonModel:          lessonModel,
		SourceExtractorModel: extractorModel,
		baseClient:           baseClient,
	}, nil
}

// Requester adapts a model to llm.RequestFunc.
func Requester(model *genai.GenerativeModel) llm.RequestFunc {
	return func(ctx context.Context, prompt string) (string, error) {
		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return "", fmt.Errorf("gemini generation failed: %w", err)
		}
		return nonEmptyText(resp)
	}
}

// ExtractPDF converts the PDF at fileURI (a gs:// URI) to markdown.
func (c *VertexClient) ExtractPDF(ctx context.Context, fileURI string) (string, error) {
	pdfPart := genai.FileData{MIMEType: "application/pdf", FileURI: fileURI}
	resp, err := c.SourceExtractorModel.GenerateContent(ctx, pdfPart, genai.Text(SourceExtractorUserPrompt))
	if err != nil {
		return "", fmt.Errorf("gemini extraction failed for %s: %w", fileURI, err)
	}
	return extractedText(resp)
}

// nonEmptyText is used for structured responses, which may quote refusal
// phrases from the source material.
func nonEmptyText(resp *genai.GenerateContentResponse) (string, error) {
	text := strings.TrimSpace(ResponseText(resp))
	if text == "" {
		return "", llm.ErrEmptyResponse
	}
	return text, nil
}

// extractedText also rejects free-text refusals.
func extractedText(resp *genai.GenerateContentResponse) (string, error) {
	text, err := nonEmptyText(resp)
	if err != nil {
		return "", err
	}
	if IsRefusal(text) {
		return "", ErrRefusal
	}
	return text, nil
}

// ResponseText concatenates the text parts of the first candidate.
func ResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String()
}

// IsRefusal reports whether text contains a known refusal phrase.
func IsRefusal(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}
