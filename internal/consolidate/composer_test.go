package consolidate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RaphaelThineyUE/radiology-insight/internal/llm"
	"github.com/RaphaelThineyUE/radiology-insight/internal/report"
)

type stubChat struct {
	reply string
	err   error
	got   llm.ChatRequest
}

func (s *stubChat) Complete(_ context.Context, req llm.ChatRequest) (string, error) {
	s.got = req
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func intPtr(v int) *int       { return &v }
func strPtr(s string) *string { return &s }

func sampleInput() ReportInput {
	return ReportInput{
		Filename: "mammo_2024.pdf",
		Date:     "2024-03-15",
		Extraction: &report.RadiologyExtraction{
			Summary: "Suspicious left breast mass.",
			Birads: report.Birads{
				Value:      intPtr(4),
				Confidence: "high",
				Evidence:   []string{"BI-RADS 4"},
			},
			BreastDensity: report.BreastDensity{Value: strPtr("C")},
			Exam: report.Exam{
				Type:       strPtr("Mammogram"),
				Laterality: strPtr("left"),
			},
			Findings: []report.Finding{
				{
					Laterality:  "left",
					Location:    strPtr("upper outer quadrant"),
					Description: "irregular mass",
					Assessment:  "suspicious",
				},
			},
			Recommendations: []report.Recommendation{
				{Action: "Core biopsy", Timeframe: strPtr("immediately")},
			},
			RedFlags: []string{"suspicious mass"},
		},
	}
}

func TestRenderBlock(t *testing.T) {
	block := RenderBlock(1, sampleInput())

	assert.Contains(t, block, "=== Report 1: mammo_2024.pdf (3/15/2024) ===")
	assert.Contains(t, block, "Summary: Suspicious left breast mass.")
	assert.Contains(t, block, "BI-RADS: 4 (Confidence: high)")
	assert.Contains(t, block, "Breast Density: C")
	assert.Contains(t, block, "Exam Type: Mammogram, Laterality: left")
	assert.Contains(t, block, "- left upper outer quadrant: irregular mass (suspicious)")
	assert.Contains(t, block, "- Core biopsy (immediately)")
	assert.Contains(t, block, "RED FLAGS: suspicious mass")
	assert.NotContains(t, block, "Prior Exam:")
}

func TestRenderBlockDefaults(t *testing.T) {
	in := ReportInput{
		Filename:   "empty.pdf",
		Date:       "not-a-date",
		Extraction: &report.RadiologyExtraction{Summary: "Unremarkable."},
	}
	block := RenderBlock(2, in)

	assert.Contains(t, block, "=== Report 2: empty.pdf (not-a-date) ===")
	assert.Contains(t, block, "BI-RADS: Not specified")
	assert.Contains(t, block, "Breast Density: Not specified")
	assert.Contains(t, block, "Exam Type: Unknown, Laterality: Not specified")
	assert.Contains(t, block, "No findings documented")
	assert.Contains(t, block, "No recommendations documented")
	assert.NotContains(t, block, "RED FLAGS")
}

func TestRenderBlockDeterministic(t *testing.T) {
	in := sampleInput()
	assert.Equal(t, RenderBlock(1, in), RenderBlock(1, in))
}

func TestConsolidate(t *testing.T) {
	chat := &stubChat{reply: "## Patient Overview\nOne report analyzed."}
	c := NewComposer(chat, nil)

	out, err := c.Consolidate(context.Background(), "Jane Doe", []ReportInput{sampleInput()}, "sk-test")
	require.NoError(t, err)
	assert.Contains(t, out, "Patient Overview")

	require.Len(t, chat.got.Messages, 2)
	assert.Equal(t, "system", chat.got.Messages[0].Role)
	assert.Contains(t, chat.got.Messages[0].Content, "directly traceable to the extraction data")
	assert.Contains(t, chat.got.Messages[1].Content, "Patient: Jane Doe")
	assert.Contains(t, chat.got.Messages[1].Content, "1 radiology report extraction(s)")
	assert.Contains(t, chat.got.Messages[1].Content, "**Urgent Attention Items**")
	assert.Equal(t, "sk-test", chat.got.APIKey)
}

func TestConsolidateEmptyInput(t *testing.T) {
	c := NewComposer(&stubChat{}, nil)
	_, err := c.Consolidate(context.Background(), "Jane Doe", nil, "sk-test")
	assert.Error(t, err)
}
