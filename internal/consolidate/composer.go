// Package consolidate composes a cross-report narrative: it renders each
// stored extraction into a deterministic text block, then asks the model to
// synthesize a single consolidated report from those blocks only.
package consolidate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/RaphaelThineyUE/radiology-insight/internal/llm"
	"github.com/RaphaelThineyUE/radiology-insight/internal/report"
)

const consolidationSystemPrompt = `You are a medical AI assistant specializing in radiology report analysis. Your task is to create a consolidated report that:

1. ONLY uses information from the provided extraction data - do not add any information that is not present
2. Synthesizes findings across multiple reports to identify patterns or changes over time
3. Provides AI-suggested recommendations based ONLY on the data provided
4. Highlights any concerning trends or urgent findings
5. Uses clear, professional medical language

CRITICAL: All content in your report must be directly traceable to the extraction data provided. Do not fabricate or assume any medical information.`

// ReportInput is one prior extraction to fold into the consolidated report.
type ReportInput struct {
	Filename   string                      `json:"filename"`
	Date       string                      `json:"date"`
	Extraction *report.RadiologyExtraction `json:"extraction"`
}

// Composer builds consolidation prompts and runs them through the model.
type Composer struct {
	chat llm.ChatClient
	log  *slog.Logger
}

func NewComposer(chat llm.ChatClient, log *slog.Logger) *Composer {
	if log == nil {
		log = slog.Default()
	}
	return &Composer{chat: chat, log: log}
}

// Consolidate renders the inputs and returns the model's narrative report.
func (c *Composer) Consolidate(ctx context.Context, patientName string, inputs []ReportInput, apiKey string) (string, error) {
	if len(inputs) == 0 {
		return "", fmt.Errorf("no extractions to consolidate")
	}

	blocks := make([]string, len(inputs))
	for i, in := range inputs {
		blocks[i] = RenderBlock(i+1, in)
	}

	userPrompt := fmt.Sprintf(`Patient: %s

Please create a consolidated report for the following %d radiology report extraction(s):

%s

Create a structured consolidated report with the following sections:
1. **Patient Overview**: Brief summary of all reports analyzed
2. **BI-RADS History**: Track BI-RADS scores across reports (if multiple)
3. **Key Findings Summary**: Consolidated view of all significant findings
4. **Trend Analysis**: Any changes or patterns observed across reports (if applicable)
5. **Consolidated Recommendations**: Based ONLY on the recommendations from the reports
6. **AI-Suggested Follow-up**: Additional suggestions based on the data patterns (clearly marked as AI suggestions)
7. **Urgent Attention Items**: Any red flags or concerning findings that need immediate attention

Remember: Only include information that is present in the extraction data provided.`,
		patientName, len(inputs), strings.Join(blocks, "\n\n"))

	c.log.Info("consolidate.start", "patient", patientName, "reports", len(inputs))

	out, err := c.chat.Complete(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: consolidationSystemPrompt},
			{Role: "user", Content: userPrompt},
		},
		APIKey: apiKey,
	})
	if err != nil {
		return "", fmt.Errorf("consolidation completion: %w", err)
	}

	c.log.Info("consolidate.ok", "patient", patientName, "report_chars", len(out))
	return out, nil
}

// RenderBlock renders one extraction as the fixed text block fed to the
// model. Rendering is deterministic: same input, same block.
func RenderBlock(n int, in ReportInput) string {
	data := in.Extraction

	findingLines := make([]string, len(data.Findings))
	for i, f := range data.Findings {
		loc := "unspecified location"
		if f.Location != nil && *f.Location != "" {
			loc = *f.Location
		}
		findingLines[i] = fmt.Sprintf("- %s %s: %s (%s)", f.Laterality, loc, f.Description, f.Assessment)
	}
	findingsText := strings.Join(findingLines, "\n")
	if findingsText == "" {
		findingsText = "No findings documented"
	}

	recLines := make([]string, len(data.Recommendations))
	for i, r := range data.Recommendations {
		line := "- " + r.Action
		if r.Timeframe != nil && *r.Timeframe != "" {
			line += fmt.Sprintf(" (%s)", *r.Timeframe)
		}
		recLines[i] = line
	}
	recsText := strings.Join(recLines, "\n")
	if recsText == "" {
		recsText = "No recommendations documented"
	}

	birads := "Not specified"
	if data.Birads.Value != nil {
		birads = fmt.Sprintf("%d", *data.Birads.Value)
	}
	density := "Not specified"
	if data.BreastDensity.Value != nil && *data.BreastDensity.Value != "" {
		density = *data.BreastDensity.Value
	}
	examType := "Unknown"
	if data.Exam.Type != nil && *data.Exam.Type != "" {
		examType = *data.Exam.Type
	}
	laterality := "Not specified"
	if data.Exam.Laterality != nil && *data.Exam.Laterality != "" {
		laterality = *data.Exam.Laterality
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n=== Report %d: %s (%s) ===\n", n, in.Filename, displayDate(in.Date))
	fmt.Fprintf(&b, "Summary: %s\n", data.Summary)
	fmt.Fprintf(&b, "BI-RADS: %s (Confidence: %s)\n", birads, data.Birads.Confidence)
	fmt.Fprintf(&b, "Breast Density: %s\n", density)
	fmt.Fprintf(&b, "Exam Type: %s, Laterality: %s\n", examType, laterality)
	if data.Comparison.PriorExamDate != nil && *data.Comparison.PriorExamDate != "" {
		fmt.Fprintf(&b, "Prior Exam: %s", *data.Comparison.PriorExamDate)
	}
	b.WriteString("\n\nFindings:\n")
	b.WriteString(findingsText)
	b.WriteString("\n\nRecommendations:\n")
	b.WriteString(recsText)
	b.WriteString("\n\n")
	if len(data.RedFlags) > 0 {
		fmt.Fprintf(&b, "RED FLAGS: %s", strings.Join(data.RedFlags, "; "))
	}
	b.WriteString("\n")
	return b.String()
}

// displayDate renders the report date for the prompt. Accepts RFC 3339 or a
// bare date; anything else passes through unchanged.
func displayDate(s string) string {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("1/2/2006")
		}
	}
	return s
}
