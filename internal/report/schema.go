package report

// ExtractionJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. We embed it in the extraction prompt and use it locally to
// validate the model's reply: required keys present, enums constrained to
// the allowed literal sets, the list fields are arrays.
func ExtractionJSONSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"summary": map[string]any{"type": "string"},
			"birads": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"value":      map[string]any{"type": []string{"integer", "null"}, "minimum": 0, "maximum": 6},
					"confidence": map[string]any{"enum": []any{ConfidenceLow, ConfidenceMedium, ConfidenceHigh}},
					"evidence":   evidenceProp(),
				},
				"required": []string{"value", "confidence", "evidence"},
			},
			"breast_density": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"value":    map[string]any{"enum": []any{"A", "B", "C", "D", nil}},
					"evidence": evidenceProp(),
				},
				"required": []string{"value", "evidence"},
			},
			"exam": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"type":       map[string]any{"type": []string{"string", "null"}},
					"laterality": map[string]any{"enum": []any{"left", "right", "bilateral", nil}},
					"evidence":   evidenceProp(),
				},
				"required": []string{"type", "laterality", "evidence"},
			},
			"comparison": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"prior_exam_date": map[string]any{"type": []string{"string", "null"}},
					"evidence":        evidenceProp(),
				},
				"required": []string{"prior_exam_date", "evidence"},
			},
			"findings": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"laterality":  map[string]any{"enum": []any{"left", "right", "bilateral", "unknown"}},
						"location":    map[string]any{"type": []string{"string", "null"}},
						"description": map[string]any{"type": "string"},
						"assessment": map[string]any{"enum": []any{
							AssessmentBenign, AssessmentProbablyBenign, AssessmentSuspicious,
							AssessmentHighlyMalig, AssessmentIncomplete, AssessmentUnknown,
						}},
						"evidence": evidenceProp(),
					},
					"required": []string{"laterality", "description", "assessment", "evidence"},
				},
			},
			"recommendations": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"action":    map[string]any{"type": "string"},
						"timeframe": map[string]any{"type": []string{"string", "null"}},
						"evidence":  evidenceProp(),
					},
					"required": []string{"action", "evidence"},
				},
			},
			"red_flags": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required": []string{
			"summary", "birads", "breast_density", "exam", "comparison",
			"findings", "recommendations", "red_flags",
		},
	}
}

func evidenceProp() map[string]any {
	return map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string"},
	}
}
