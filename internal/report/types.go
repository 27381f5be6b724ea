// Package report defines the structured extraction contract for breast
// radiology reports: the wire types, the JSON Schema the model reply must
// satisfy, and the repair/validation steps applied to raw model output.
package report

// Confidence levels for the BI-RADS extraction.
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// Finding assessments.
const (
	AssessmentBenign         = "benign"
	AssessmentProbablyBenign = "probably_benign"
	AssessmentSuspicious     = "suspicious"
	AssessmentHighlyMalig    = "highly_suggestive_malignancy"
	AssessmentIncomplete     = "incomplete"
	AssessmentUnknown        = "unknown"
)

// RadiologyExtraction is the fixed-shape record extracted from one report.
// Every populated field carries evidence: verbatim quotes from the source
// document supporting the extraction.
type RadiologyExtraction struct {
	Summary         string           `json:"summary"`
	Birads          Birads           `json:"birads"`
	BreastDensity   BreastDensity    `json:"breast_density"`
	Exam            Exam             `json:"exam"`
	Comparison      Comparison       `json:"comparison"`
	Findings        []Finding        `json:"findings"`
	Recommendations []Recommendation `json:"recommendations"`
	RedFlags        []string         `json:"red_flags"`
}

// Birads holds the BI-RADS category (0-6) with the model's confidence.
type Birads struct {
	Value      *int     `json:"value"`
	Confidence string   `json:"confidence"` // low | medium | high
	Evidence   []string `json:"evidence"`
}

// BreastDensity holds the ACR density category.
type BreastDensity struct {
	Value    *string  `json:"value"` // A | B | C | D
	Evidence []string `json:"evidence"`
}

// Exam describes the examination type and laterality.
type Exam struct {
	Type       *string  `json:"type"`
	Laterality *string  `json:"laterality"` // left | right | bilateral
	Evidence   []string `json:"evidence"`
}

// Comparison references a prior study if the report mentions one.
type Comparison struct {
	PriorExamDate *string  `json:"prior_exam_date"`
	Evidence      []string `json:"evidence"`
}

// Finding is a single documented finding.
type Finding struct {
	Laterality  string   `json:"laterality"` // left | right | bilateral | unknown
	Location    *string  `json:"location"`
	Description string   `json:"description"`
	Assessment  string   `json:"assessment"`
	Evidence    []string `json:"evidence"`
}

// Recommendation is a single recommended action.
type Recommendation struct {
	Action    string   `json:"action"`
	Timeframe *string  `json:"timeframe"`
	Evidence  []string `json:"evidence"`
}
