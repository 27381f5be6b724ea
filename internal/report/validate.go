package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ParseError signals that a model reply could not be parsed or does not
// satisfy the extraction contract. Raw carries the unmodified reply for
// audit logging; it is never silently discarded.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse extraction: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseExtraction turns a raw model reply into a validated extraction.
// Steps: strip incidental markdown fencing, parse as JSON, validate against
// the schema, then check the evidence invariant (every populated field
// carries a non-empty evidence array). No semantic repair is attempted:
// coercing an invalid enum value would corrupt clinical data, so any
// violation is a hard ParseError.
//
// The cleaned JSON bytes are returned alongside the struct for persistence.
func ParseExtraction(content string) (*RadiologyExtraction, []byte, error) {
	clean := []byte(StripMarkdownFence(content))

	if err := ValidateJSONAgainstSchema(ExtractionJSONSchema(), clean); err != nil {
		return nil, nil, &ParseError{Raw: content, Err: err}
	}

	var x RadiologyExtraction
	if err := json.Unmarshal(clean, &x); err != nil {
		return nil, nil, &ParseError{Raw: content, Err: fmt.Errorf("unmarshal extraction: %w", err)}
	}

	if missing := missingEvidence(&x); len(missing) > 0 {
		return nil, nil, &ParseError{
			Raw: content,
			Err: fmt.Errorf("populated fields missing evidence: %s", strings.Join(missing, ", ")),
		}
	}

	return &x, clean, nil
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// missingEvidence lists the populated fields whose evidence array is empty.
func missingEvidence(x *RadiologyExtraction) []string {
	var missing []string
	if x.Birads.Value != nil && len(x.Birads.Evidence) == 0 {
		missing = append(missing, "birads")
	}
	if x.BreastDensity.Value != nil && len(x.BreastDensity.Evidence) == 0 {
		missing = append(missing, "breast_density")
	}
	if (x.Exam.Type != nil || x.Exam.Laterality != nil) && len(x.Exam.Evidence) == 0 {
		missing = append(missing, "exam")
	}
	if x.Comparison.PriorExamDate != nil && len(x.Comparison.Evidence) == 0 {
		missing = append(missing, "comparison")
	}
	for i, f := range x.Findings {
		if len(f.Evidence) == 0 {
			missing = append(missing, fmt.Sprintf("findings[%d]", i))
		}
	}
	for i, r := range x.Recommendations {
		if len(r.Evidence) == 0 {
			missing = append(missing, fmt.Sprintf("recommendations[%d]", i))
		}
	}
	return missing
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// CheckEvidence verifies the stricter half of the evidence contract: each
// quote should appear verbatim in the source text. Whitespace is collapsed
// on both sides before comparison since models routinely reflow quotes.
// Violations are returned for logging, not failure — rejecting an otherwise
// valid extraction over quote reflow would discard clinically usable output.
func CheckEvidence(x *RadiologyExtraction, source string) []string {
	norm := func(s string) string {
		return whitespaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
	}
	src := norm(source)

	var violations []string
	check := func(field string, evidence []string) {
		for i, q := range evidence {
			if q == "" {
				continue
			}
			if !strings.Contains(src, norm(q)) {
				violations = append(violations, fmt.Sprintf("%s.evidence[%d] not found in source", field, i))
			}
		}
	}

	check("birads", x.Birads.Evidence)
	check("breast_density", x.BreastDensity.Evidence)
	check("exam", x.Exam.Evidence)
	check("comparison", x.Comparison.Evidence)
	for i, f := range x.Findings {
		check(fmt.Sprintf("findings[%d]", i), f.Evidence)
	}
	for i, r := range x.Recommendations {
		check(fmt.Sprintf("recommendations[%d]", i), r.Evidence)
	}
	return violations
}
