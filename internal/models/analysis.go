package models

import (
	"encoding/json"
	"time"
)

// ParsedAnalysis is the structured course analysis produced from model output.
// Every path that consumes raw model output returns a value whose required
// sections are present; list fields are never nil after Normalize.
type ParsedAnalysis struct {
	SourceAnalysis  SourceAnalysis  `json:"sourceAnalysis" firestore:"sourceAnalysis"`
	CourseBlueprint CourseBlueprint `json:"courseBlueprint" firestore:"courseBlueprint"`
	ContentGaps     ContentGaps     `json:"contentGaps" firestore:"contentGaps"`
	ScopeOptions    ScopeOptions    `json:"scopeOptions" firestore:"scopeOptions"`

	// Provenance
	Fallback            bool                 `json:"fallback,omitempty" firestore:"fallback,omitempty"`
	Error               string               `json:"error,omitempty" firestore:"error,omitempty"`
	Timestamp           string               `json:"timestamp,omitempty" firestore:"timestamp,omitempty"`
	RawResponse         string               `json:"rawResponse,omitempty" firestore:"rawResponse,omitempty"`
	ChunkProcessingInfo *ChunkProcessingInfo `json:"chunkProcessingInfo,omitempty" firestore:"chunkProcessingInfo,omitempty"`

	// Extra holds top-level keys from the model output that are not part of
	// the canonical shape. They are written back out by MarshalJSON.
	Extra map[string]any `json:"-" firestore:"extra,omitempty"`
}

// ProvenanceKeys are the top-level keys that describe how an analysis was
// produced rather than what it says.
var ProvenanceKeys = map[string]bool{
	"fallback":            true,
	"error":               true,
	"timestamp":           true,
	"rawResponse":         true,
	"chunkProcessingInfo": true,
}

type SourceAnalysis struct {
	KeyClaims   []string `json:"keyClaims" firestore:"keyClaims"`
	KeyTerms    []string `json:"keyTerms" firestore:"keyTerms"`
	Frameworks  []string `json:"frameworks" firestore:"frameworks"`
	Examples    []string `json:"examples" firestore:"examples"`
	AuthorVoice string   `json:"authorVoice" firestore:"authorVoice"`
}

type CourseBlueprint struct {
	TargetAudience   string   `json:"targetAudience" firestore:"targetAudience"`
	Prerequisites    []string `json:"prerequisites" firestore:"prerequisites"`
	LearningOutcomes []string `json:"learningOutcomes" firestore:"learningOutcomes"`
	Syllabus         []string `json:"syllabus" firestore:"syllabus"`
}

type ContentGaps struct {
	MissingConcepts    []string `json:"missingConcepts" firestore:"missingConcepts"`
	NeedsVerification  []string `json:"needsVerification" firestore:"needsVerification"`
	SuggestedAdditions []string `json:"suggestedAdditions" firestore:"suggestedAdditions"`
}

// ScopeOptions lists the course sizes offered to the author. DeepDive is optional.
type ScopeOptions struct {
	Lite     ScopeOption  `json:"lite" firestore:"lite"`
	Core     ScopeOption  `json:"core" firestore:"core"`
	DeepDive *ScopeOption `json:"deepDive,omitempty" firestore:"deepDive,omitempty"`
}

type ScopeOption struct {
	Duration string `json:"duration" firestore:"duration"`
	Modules  int    `json:"modules" firestore:"modules"`
	Focus    string `json:"focus" firestore:"focus"`
}

// IsZero reports whether no field of the option was set.
func (o ScopeOption) IsZero() bool {
	return o.Duration == "" && o.Modules == 0 && o.Focus == ""
}

// ChunkProcessingInfo records how a merged analysis was assembled.
type ChunkProcessingInfo struct {
	TotalChunks         int    `json:"totalChunks" firestore:"totalChunks"`
	SuccessfulChunks    int    `json:"successfulChunks" firestore:"successfulChunks"`
	FailedChunks        int    `json:"failedChunks" firestore:"failedChunks"`
	ProcessingTimestamp string `json:"processingTimestamp" firestore:"processingTimestamp"`
}

// Normalize replaces nil lists with empty ones so the encoded form always
// carries every required field.
func (a *ParsedAnalysis) Normalize() {
	for _, list := range []*[]string{
		&a.SourceAnalysis.KeyClaims,
		&a.SourceAnalysis.KeyTerms,
		&a.SourceAnalysis.Frameworks,
		&a.SourceAnalysis.Examples,
		&a.CourseBlueprint.Prerequisites,
		&a.CourseBlueprint.LearningOutcomes,
		&a.CourseBlueprint.Syllabus,
		&a.ContentGaps.MissingConcepts,
		&a.ContentGaps.NeedsVerification,
		&a.ContentGaps.SuggestedAdditions,
	} {
		if *list == nil {
			*list = []string{}
		}
	}
}

// Stamp sets Timestamp to now in RFC 3339 (UTC).
func (a *ParsedAnalysis) Stamp() {
	a.Timestamp = time.Now().UTC().Format(time.RFC3339)
}

// parsedAnalysisAlias drops the methods so json.Marshal does not recurse.
type parsedAnalysisAlias ParsedAnalysis

// MarshalJSON encodes the canonical fields and then any extra top-level keys
// that do not collide with them.
func (a ParsedAnalysis) MarshalJSON() ([]byte, error) {
	a.Normalize()
	base, err := json.Marshal(parsedAnalysisAlias(a))
	if err != nil {
		return nil, err
	}
	if len(a.Extra) == 0 {
		return base, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range a.Extra {
		if _, exists := merged[k]; exists {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		merged[k] = raw
	}
	return json.Marshal(merged)
}
