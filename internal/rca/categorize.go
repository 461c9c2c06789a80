// Package rca categorizes incidents, builds generation prompts and scores
// suggestion similarity for the root-cause-analysis workflow.
package rca

import (
	"strings"

	"github.com/marcusj/safetrack/internal/model"
)

// Per-category keyword lists for categorization. Checked in priority order;
// the first matching category wins.
var (
	ppeKeywords = []string{
		"hard hat", "helmet", "safety vest", "safety glasses", "gloves", "boots",
		"harness", "ppe", "personal protective equipment", "no helmet", "no hard hat",
		"missing vest", "not wearing", "forgot", "left behind", "without protection",
	}
	ppeImageTags = []string{
		"hard hat", "helmet", "safety vest", "protective equipment", "safety gear",
	}

	equipmentKeywords = []string{
		"malfunction", "broken", "defective", "failure", "not working",
		"machine", "equipment", "tool", "crane", "forklift", "excavator",
		"bulldozer", "drill", "saw", "grinder", "compressor", "generator",
		"conveyor", "pump", "motor", "engine", "hydraulic", "mechanical",
	}

	fallKeywords = []string{
		"slip", "slipped", "trip", "tripped", "fall", "fell", "falling",
		"wet floor", "spill", "leak", "slippery", "stumble", "ice",
		"ladder", "stairs", "platform", "elevation", "height", "dropped",
	}

	liftingKeywords = []string{
		"lifting", "lifted", "carrying", "moving", "heavy", "strain",
		"back injury", "pulled muscle", "herniated", "manual handling",
		"repetitive", "ergonomic", "posture", "overexertion", "twist",
	}

	chemicalKeywords = []string{
		"chemical", "toxic", "hazardous material", "spill", "leak", "fumes",
		"vapor", "gas", "acid", "base", "solvent", "paint", "adhesive",
		"exposure", "inhaled", "skin contact", "eye contact", "msds", "sds",
	}

	electricalKeywords = []string{
		"electrical", "electric", "shock", "electrocuted", "voltage", "current",
		"wire", "cable", "outlet", "panel", "breaker", "short circuit",
		"arc flash", "ground fault", "lockout", "tagout", "loto",
	}

	vehicleKeywords = []string{
		"vehicle", "truck", "car", "forklift", "crane", "excavator", "bulldozer",
		"collision", "accident", "crash", "hit", "struck", "backed into",
		"mobile equipment", "heavy machinery", "operator", "driving",
	}

	fireKeywords = []string{
		"fire", "flame", "burn", "burned", "explosion", "blast", "ignition",
		"combustible", "flammable", "smoke", "heat", "hot work", "welding",
		"cutting", "grinding", "spark", "overheating",
	}

	confinedSpaceKeywords = []string{
		"confined space", "tank", "vessel", "pit", "trench", "sewer",
		"tunnel", "vault", "silo", "oxygen", "ventilation", "atmosphere",
		"entry permit", "attendant", "rescue",
	}
)

// Categorize assigns an incident category from its title, description and
// the safety tags of processed image analyses. Falls back to general safety
// when nothing matches.
func Categorize(incident *model.Incident, analyses []model.ImageAnalysis) string {
	text := strings.ToLower(incident.Title + " " + incident.Description)
	tags := processedTags(analyses)
	joinedTags := strings.Join(tags, " ")

	switch {
	case containsAny(text, ppeKeywords) || containsAny(joinedTags, ppeImageTags):
		return model.CategoryPPEViolation
	case containsAny(text, equipmentKeywords) || tagsContain(tags, "machinery", "equipment", "tool"):
		return model.CategoryEquipmentMalfunction
	case containsAny(text, fallKeywords) || tagsContain(tags, "ladder", "stairs", "platform"):
		return model.CategorySlipTripFall
	case containsAny(text, liftingKeywords):
		return model.CategoryLiftingInjury
	case containsAny(text, chemicalKeywords):
		return model.CategoryChemicalExposure
	case containsAny(text, electricalKeywords) || tagsContain(tags, "electrical", "wire", "cable"):
		return model.CategoryElectricalIncident
	case containsAny(text, vehicleKeywords) || tagsContain(tags, "vehicle", "truck", "forklift"):
		return model.CategoryVehicleIncident
	case containsAny(text, fireKeywords) || tagsContain(tags, "fire", "welding", "cutting"):
		return model.CategoryFireExplosion
	case containsAny(text, confinedSpaceKeywords):
		return model.CategoryConfinedSpace
	default:
		return model.CategoryGeneralSafety
	}
}

// Confidence scores how strongly the inputs support the assigned category.
// Match counts map onto fixed tiers rather than a continuous scale.
func Confidence(incident *model.Incident, category string, analyses []model.ImageAnalysis) float64 {
	text := strings.ToLower(incident.Title + " " + incident.Description)
	tags := processedTags(analyses)

	var matches int
	switch category {
	case model.CategoryPPEViolation:
		matches = countMatches(text, []string{
			"hard hat", "helmet", "safety vest", "safety glasses", "gloves", "boots",
			"ppe", "personal protective equipment", "no helmet", "not wearing",
		}) + countTagMatches(tags, "hard hat", "helmet", "safety vest")
	case model.CategoryEquipmentMalfunction:
		matches = countMatches(text, []string{"malfunction", "broken", "equipment", "machine", "tool", "crane", "forklift"}) +
			countTagMatches(tags, "machinery", "equipment")
	case model.CategorySlipTripFall:
		matches = countMatches(text, []string{"slip", "trip", "fall", "ladder", "stairs", "wet floor", "height"}) +
			countTagMatches(tags, "ladder", "stairs")
	case model.CategoryLiftingInjury:
		matches = countMatches(text, []string{"lifting", "carrying", "heavy", "back injury", "strain", "manual handling"})
	case model.CategoryChemicalExposure:
		matches = countMatches(text, []string{"chemical", "toxic", "spill", "fumes", "exposure", "hazardous"})
	case model.CategoryElectricalIncident:
		matches = countMatches(text, []string{"electrical", "shock", "voltage", "wire", "cable", "arc flash"}) +
			countTagMatches(tags, "electrical", "wire")
	case model.CategoryVehicleIncident:
		matches = countMatches(text, []string{"vehicle", "truck", "forklift", "collision", "accident", "struck"}) +
			countTagMatches(tags, "vehicle", "forklift")
	case model.CategoryFireExplosion:
		matches = countMatches(text, []string{"fire", "burn", "explosion", "welding", "spark", "heat"}) +
			countTagMatches(tags, "fire", "welding")
	case model.CategoryConfinedSpace:
		matches = countMatches(text, []string{"confined space", "tank", "pit", "trench", "ventilation", "atmosphere"})
	default:
		// General safety is the fallback category, always low confidence.
		matches = 1
	}

	switch {
	case matches >= 3:
		return 0.9
	case matches == 2:
		return 0.7
	case matches == 1:
		return 0.5
	default:
		return 0.3
	}
}

// processedTags collects the comma-separated safety tags of processed
// analyses, lowercased and trimmed. Failed analyses contribute nothing.
func processedTags(analyses []model.ImageAnalysis) []string {
	var tags []string
	for _, a := range analyses {
		if !a.Processed {
			continue
		}
		for _, t := range strings.Split(a.Tags, ",") {
			if t = strings.TrimSpace(strings.ToLower(t)); t != "" {
				tags = append(tags, t)
			}
		}
	}
	return tags
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func tagsContain(tags []string, substrings ...string) bool {
	for _, tag := range tags {
		for _, s := range substrings {
			if strings.Contains(tag, s) {
				return true
			}
		}
	}
	return false
}

func countMatches(text string, keywords []string) int {
	var n int
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			n++
		}
	}
	return n
}

func countTagMatches(tags []string, substrings ...string) int {
	var n int
	for _, tag := range tags {
		for _, s := range substrings {
			if strings.Contains(tag, s) {
				n++
				break
			}
		}
	}
	return n
}
