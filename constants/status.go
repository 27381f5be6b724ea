package constants

// DocumentStatus is the canonical status for rows in documents.
type DocumentStatus string

// Stable values (store these exact strings in DB).
const (
	StatusPending    DocumentStatus = "pending"    // uploaded, not yet extracted
	StatusProcessing DocumentStatus = "processing" // extraction in flight
	StatusCompleted  DocumentStatus = "completed"  // terminal success
	StatusFailed     DocumentStatus = "failed"     // terminal failure
)

// Usage-log actions written by the pipeline.
const (
	ActionExtractionStarted   = "extraction_started"
	ActionExtractionCompleted = "extraction_completed"
)

// Error-log types written by the pipeline.
const (
	ErrorTypeOpenAIAPI  = "openai_api_error"
	ErrorTypeParse      = "parse_error"
	ErrorTypeExtraction = "extraction_error"
)
