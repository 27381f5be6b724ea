package llm

import (
	"strings"
	"unicode/utf8"
)

// ExtractionSystemPrompt enumerates the exact JSON shape and field
// semantics the model must return for a radiology report.
const ExtractionSystemPrompt = `You are a specialized medical AI assistant trained to extract structured data from breast radiology reports. Your task is to parse the provided radiology report and extract information into a specific JSON structure.

IMPORTANT: You must respond ONLY with a valid JSON object matching the exact structure below. Do not include any other text, markdown, or explanation.

Extract the following information:

1. **summary**: A concise 2-3 sentence summary of the key findings in plain language suitable for a surgeon.

2. **birads**:
   - value: The BI-RADS category (0-6) or null if not found
   - confidence: Your confidence level in this extraction ('low', 'medium', 'high')
   - evidence: Array of exact quotes from the document supporting this

3. **breast_density**:
   - value: ACR density category ('A', 'B', 'C', 'D') or null
   - evidence: Array of exact quotes

4. **exam**:
   - type: Type of examination (e.g., "Mammogram", "Ultrasound", "MRI")
   - laterality: 'left', 'right', 'bilateral', or null
   - evidence: Array of exact quotes

5. **comparison**:
   - prior_exam_date: Date of comparison study if mentioned (format: YYYY-MM-DD if possible)
   - evidence: Array of exact quotes

6. **findings**: Array of findings, each with:
   - laterality: 'left', 'right', 'bilateral', or 'unknown'
   - location: Anatomical location (e.g., "upper outer quadrant", "2 o'clock")
   - description: Brief description of the finding
   - assessment: 'benign', 'probably_benign', 'suspicious', 'highly_suggestive_malignancy', 'incomplete', or 'unknown'
   - evidence: Array of exact quotes

7. **recommendations**: Array of recommendations, each with:
   - action: The recommended action
   - timeframe: When it should occur (e.g., "6 months", "immediately")
   - evidence: Array of exact quotes

8. **red_flags**: Array of any urgent findings requiring immediate attention

Respond with this exact JSON structure:
{
  "summary": "string",
  "birads": { "value": number|null, "confidence": "low"|"medium"|"high", "evidence": ["string"] },
  "breast_density": { "value": "A"|"B"|"C"|"D"|null, "evidence": ["string"] },
  "exam": { "type": "string"|null, "laterality": "left"|"right"|"bilateral"|null, "evidence": ["string"] },
  "comparison": { "prior_exam_date": "string"|null, "evidence": ["string"] },
  "findings": [{ "laterality": "string", "location": "string"|null, "description": "string", "assessment": "string", "evidence": ["string"] }],
  "recommendations": [{ "action": "string", "timeframe": "string"|null, "evidence": ["string"] }],
  "red_flags": ["string"]
}`

// truncationMarker is appended when the document text exceeds the limit.
const truncationMarker = "\n…(truncated)"

// BuildExtractionPrompts composes the two-message extraction request: the
// fixed system instruction plus a user message embedding the document text
// verbatim. Nothing upstream bounds the input, so the text is truncated
// from the end at maxChars to keep token cost bounded; maxChars <= 0
// disables truncation.
func BuildExtractionPrompts(text string, maxChars int) (system, user string) {
	if maxChars > 0 && len(text) > maxChars {
		cut := maxChars
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + truncationMarker
	}

	var b strings.Builder
	b.WriteString("Please extract the structured data from this radiology report:\n\n")
	b.WriteString(text)
	return ExtractionSystemPrompt, b.String()
}
