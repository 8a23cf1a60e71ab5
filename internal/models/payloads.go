package models

// These structs define the JSON payloads for HTTP requests and responses
// between the Cloud Workflow and the course generation functions.

// CourseAnalyzerRequest is the input for the course-analyzer function.
type CourseAnalyzerRequest struct {
	CourseID    string `json:"courseId"`
	SourceURI   string `json:"sourceUri"`
	ExecutionID string `json:"executionId"`
}

// CourseAnalyzerResponse is the output of the course-analyzer function.
type CourseAnalyzerResponse struct {
	Status           string `json:"status"`
	Fallback         bool   `json:"fallback"`
	TotalChunks      int    `json:"totalChunks"`
	SuccessfulChunks int    `json:"successfulChunks"`
	AnalysisURI      string `json:"analysisUri"`
}

// ModuleBuilderRequest is the input for the module-builder function.
type ModuleBuilderRequest struct {
	CourseID    string `json:"courseId"`
	SourceURI   string `json:"sourceUri"`
	ModuleCount int    `json:"moduleCount"`
	ExecutionID string `json:"executionId"`
}

// ModuleBuilderResponse is the output of the module-builder function.
type ModuleBuilderResponse struct {
	Status             string `json:"status"`
	ModuleCount        int    `json:"moduleCount"`
	FallbackLessons    int    `json:"fallbackLessons"`
	DistributionValid  bool   `json:"distributionValid"`
	DistributionDetail string `json:"distributionDetail,omitempty"`
}

// WorkflowArgument is the argument passed to the course generation workflow.
type WorkflowArgument struct {
	CourseID    string `json:"courseId"`
	SourceURI   string `json:"sourceUri"`
	ModuleCount int    `json:"moduleCount"`
}
