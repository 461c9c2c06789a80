package vision

import "strings"

// safetyKeywords drives the relevance filter over raw labels. Matching is
// bidirectional substring so "Hard hat" matches the keyword "hard hat" and
// the label "Hat" matches "hard hat" as well.
var safetyKeywords = []string{
	// PPE and safety equipment
	"hard hat", "helmet", "safety vest", "safety glasses", "gloves", "boots",
	"harness", "safety gear", "protective equipment", "high visibility",

	// Construction and industrial
	"construction", "building", "scaffold", "ladder", "crane", "excavator",
	"machinery", "equipment", "tool", "industrial", "factory", "warehouse",
	"construction site", "work site",

	// Hazards
	"hazard", "danger", "warning", "caution", "spill", "leak", "fire",
	"electrical", "chemical", "toxic", "slippery", "wet floor", "falling",
	"sharp", "broken", "damaged", "unsafe", "risk",

	// Infrastructure
	"barrier", "fence", "sign", "cone", "tape", "rope", "guard rail",
	"safety barrier", "warning sign", "caution tape",

	// Workplace areas
	"workplace", "office", "floor", "ceiling", "wall", "door", "window",
	"stairs", "ramp", "platform", "walkway", "entrance", "exit",

	// Vehicles and transport
	"vehicle", "truck", "forklift", "cart", "conveyor", "transport",

	// General safety
	"safety", "security", "protection", "emergency", "first aid",
	"evacuation", "procedure", "compliance", "regulation",
}

// FilterSafetyLabels keeps labels that match a safety keyword with score
// above 0.6, deduplicated, capped at 10 tags. Input order (descending score
// from the backend) is preserved.
func FilterSafetyLabels(labels []Label) []string {
	seen := make(map[string]struct{})
	var tags []string

	for _, l := range labels {
		if l.Score <= 0.6 {
			continue
		}
		if !matchesSafetyKeyword(l.Description) {
			continue
		}
		if _, ok := seen[l.Description]; ok {
			continue
		}
		seen[l.Description] = struct{}{}
		tags = append(tags, l.Description)
		if len(tags) == 10 {
			break
		}
	}

	return tags
}

func matchesSafetyKeyword(description string) bool {
	d := strings.ToLower(description)
	for _, kw := range safetyKeywords {
		if strings.Contains(d, kw) || strings.Contains(kw, d) {
			return true
		}
	}
	return false
}
