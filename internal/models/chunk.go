package models

// Chunk is a bounded, position-tracked piece of source text sized for one
// upstream request. StartIndex and EndIndex are byte offsets into the source.
type Chunk struct {
	ID          string `json:"id"`
	Content     string `json:"content"`
	StartIndex  int    `json:"startIndex"`
	EndIndex    int    `json:"endIndex"`
	Size        int    `json:"size"`
	ChunkNumber int    `json:"chunkNumber"`
	TotalChunks int    `json:"totalChunks"`
	IsComplete  bool   `json:"isComplete"`
}

// ChunkResult is the outcome of one chunk request. It is consumed once by the
// merger and never persisted.
type ChunkResult struct {
	ChunkID     string          `json:"chunkId"`
	ChunkNumber int             `json:"chunkNumber"`
	Processed   bool            `json:"processed"`
	Result      *ParsedAnalysis `json:"result"`
	Raw         string          `json:"-"`
	Error       string          `json:"error,omitempty"`
	Timestamp   string          `json:"timestamp"`
}

// ModuleContentAssignment is the slice of source text given to one course module.
type ModuleContentAssignment struct {
	ModuleIndex   int    `json:"moduleIndex" firestore:"moduleIndex"`
	Content       string `json:"content" firestore:"content"`
	WordCount     int    `json:"wordCount" firestore:"wordCount"`
	PositionLabel string `json:"positionLabel" firestore:"positionLabel"`
}
