package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSections_WellFormed(t *testing.T) {
	content := `FIVE WHYS:
1. Why did this happen? Missing guard rail.
2. Why was it missing? Removed during maintenance.

CORRECTIVE ACTIONS (Immediate - next 24-48 hours):
- Reinstall guard rail
- Cordon off the area

PREVENTIVE ACTIONS (Long-term - next 30-90 days):
- Add guard rail checks to the maintenance checklist`

	s := ParseSections(content)

	assert.Equal(t, "1. Why did this happen? Missing guard rail.\n2. Why was it missing? Removed during maintenance.", s.FiveWhys)
	assert.Equal(t, "- Reinstall guard rail\n- Cordon off the area", s.CorrectiveAction)
	assert.Equal(t, "- Add guard rail checks to the maintenance checklist", s.PreventiveAction)
}

func TestParseSections_CaseInsensitiveDecoratedHeaders(t *testing.T) {
	content := `**Five Whys:**
answer one

## corrective actions
fix it

## preventive actions
prevent it`

	s := ParseSections(content)

	assert.Equal(t, "answer one", s.FiveWhys)
	assert.Equal(t, "fix it", s.CorrectiveAction)
	assert.Equal(t, "prevent it", s.PreventiveAction)
}

func TestParseSections_MissingHeaderFallsBack(t *testing.T) {
	content := "Here is my analysis: the worker slipped because the floor was wet."

	s := ParseSections(content)

	assert.Equal(t, content, s.FiveWhys)
	assert.Equal(t, FallbackNote, s.CorrectiveAction)
	assert.Equal(t, FallbackNote, s.PreventiveAction)
}

func TestParseSections_OutOfOrderHeadersFallBack(t *testing.T) {
	content := `PREVENTIVE ACTIONS:
prevent

FIVE WHYS:
why

CORRECTIVE ACTIONS:
fix`

	s := ParseSections(content)

	assert.Equal(t, content, s.FiveWhys)
	assert.Equal(t, FallbackNote, s.CorrectiveAction)
}

func TestParseSections_MockResponseParses(t *testing.T) {
	s := ParseSections(mockResponse().Content)

	assert.Contains(t, s.FiveWhys, "1. Why did this incident occur?")
	assert.Contains(t, s.CorrectiveAction, "Issue replacement hard hat")
	assert.Contains(t, s.PreventiveAction, "PPE check stations")
}
