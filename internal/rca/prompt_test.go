package rca

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/marcusj/safetrack/internal/model"
)

func promptIncident() *model.Incident {
	loc := "Warehouse B, aisle 4"
	return &model.Incident{
		Title:               "Forklift near miss",
		Description:         "Forklift reversed without spotter",
		Severity:            model.SeverityHigh,
		LocationDescription: &loc,
		ReportedAt:          time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}
}

func TestBuildPrompt_ContainsContextAndHeaders(t *testing.T) {
	analyses := []model.ImageAnalysis{
		{Processed: true, Tags: "Forklift, Warehouse"},
	}

	prompt := BuildPrompt(model.CategoryVehicleIncident, promptIncident(), analyses, "Dana Smith", "WORKER")

	assert.Contains(t, prompt, "INCIDENT DETAILS:")
	assert.Contains(t, prompt, "- Title: Forklift near miss")
	assert.Contains(t, prompt, "- Severity: high")
	assert.Contains(t, prompt, "- Location: Warehouse B, aisle 4")
	assert.Contains(t, prompt, "- Reported by: Dana Smith (WORKER)")
	assert.Contains(t, prompt, "- Image Analysis Tags: Forklift, Warehouse")

	assert.Contains(t, prompt, "FIVE WHYS:")
	assert.Contains(t, prompt, "CORRECTIVE ACTIONS (Immediate - next 24-48 hours):")
	assert.Contains(t, prompt, "PREVENTIVE ACTIONS (Long-term - next 30-90 days):")
	assert.Contains(t, prompt, "vehicle/mobile equipment incident")
}

func TestBuildPrompt_Placeholders(t *testing.T) {
	inc := promptIncident()
	inc.LocationDescription = nil

	prompt := BuildPrompt(model.CategoryGeneralSafety, inc, nil, "Dana Smith", "WORKER")

	assert.Contains(t, prompt, "- Location: Location not specified")
	assert.Contains(t, prompt, "- Image Analysis Tags: No image analysis available")
}

func TestBuildPrompt_FailedAnalysesExcluded(t *testing.T) {
	analyses := []model.ImageAnalysis{
		{Processed: false, Tags: "Fire"},
	}

	prompt := BuildPrompt(model.CategoryGeneralSafety, promptIncident(), analyses, "Dana Smith", "WORKER")

	assert.Contains(t, prompt, "No image analysis available")
}

func TestBuildPrompt_UnknownCategoryFallsBack(t *testing.T) {
	prompt := BuildPrompt("bogus", promptIncident(), nil, "Dana Smith", "WORKER")

	assert.Contains(t, prompt, "systematic investigation principles")
}

func TestTemplates_EveryCategoryHasAllSections(t *testing.T) {
	categories := []string{
		model.CategoryPPEViolation, model.CategoryEquipmentMalfunction,
		model.CategorySlipTripFall, model.CategoryLiftingInjury,
		model.CategoryChemicalExposure, model.CategoryElectricalIncident,
		model.CategoryVehicleIncident, model.CategoryFireExplosion,
		model.CategoryConfinedSpace, model.CategoryGeneralSafety,
	}

	assert.Len(t, templates, len(categories))

	for _, cat := range categories {
		tpl, ok := templates[cat]
		assert.True(t, ok, "missing template for %s", cat)
		for _, header := range []string{"FIVE WHYS:", "CORRECTIVE ACTIONS", "PREVENTIVE ACTIONS"} {
			assert.True(t, strings.Contains(tpl, header), "%s template missing %q", cat, header)
		}
	}
}
