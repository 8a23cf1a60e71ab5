package models

import "time"

// Course statuses, in lifecycle order.
const (
	StatusReceived  = "RECEIVED"
	StatusIngested  = "INGESTED"
	StatusAnalyzing = "ANALYZING"
	StatusAnalyzed  = "ANALYZED"
	StatusBuilding  = "BUILDING"
	StatusComplete  = "COMPLETE"
	StatusFailed    = "FAILED"
)

// Course is the Firestore record for one course being generated from an
// uploaded source file.
type Course struct {
	SourceHash          string          `firestore:"sourceHash,omitempty"`
	OriginalFilename    string          `firestore:"originalFilename,omitempty"`
	SourceURI           string          `firestore:"sourceUri,omitempty"`
	SourceChars         int             `firestore:"sourceChars,omitempty"`
	PageCount           int             `firestore:"pageCount,omitempty"`
	ModuleCount         int             `firestore:"moduleCount,omitempty"`
	Status              string          `firestore:"status,omitempty"`
	ErrorDetails        string          `firestore:"errorDetails,omitempty"`
	Analysis            *ParsedAnalysis `firestore:"analysis,omitempty"`
	AnalysisURI         string          `firestore:"analysisUri,omitempty"`
	Modules             []Module        `firestore:"modules,omitempty"`
	WorkflowExecutionID string          `firestore:"workflowExecutionId,omitempty"`
	CreatedAt           time.Time       `firestore:"createdAt,omitempty"`
	UpdatedAt           time.Time       `firestore:"updatedAt,omitempty"`
}

// Module is one generated course module with its lesson.
type Module struct {
	Index      int                     `json:"index" firestore:"index"`
	Title      string                  `json:"title" firestore:"title"`
	Assignment ModuleContentAssignment `json:"assignment" firestore:"assignment"`
	Lesson     Lesson                  `json:"lesson" firestore:"lesson"`
}

// Lesson is the lesson object generated for a module.
type Lesson struct {
	Title        string   `json:"title" firestore:"title"`
	Objectives   []string `json:"objectives" firestore:"objectives"`
	Content      string   `json:"content" firestore:"content"`
	KeyTakeaways []string `json:"keyTakeaways" firestore:"keyTakeaways"`
	Activities   []string `json:"activities" firestore:"activities"`
	Fallback     bool     `json:"fallback,omitempty" firestore:"fallback,omitempty"`
	Error        string   `json:"error,omitempty" firestore:"error,omitempty"`
}
