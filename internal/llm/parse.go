package llm

import "strings"

// Section headers the parser looks for in generated output. Matching is
// case-insensitive substring per line, so decorated headers like
// "**FIVE WHYS:**" still split correctly.
const (
	headerFiveWhys   = "FIVE WHYS"
	headerCorrective = "CORRECTIVE ACTIONS"
	headerPreventive = "PREVENTIVE ACTIONS"
)

// FallbackNote fills action sections when the output cannot be split.
const FallbackNote = "Please review and format the AI-generated response"

// Sections is generated RCA text split into its three parts.
type Sections struct {
	FiveWhys         string
	CorrectiveAction string
	PreventiveAction string
}

// ParseSections splits generated content on the three expected headers. When
// any header is missing the full content lands in FiveWhys and the action
// sections carry FallbackNote, so a malformed response still reaches review
// instead of being dropped.
func ParseSections(content string) Sections {
	lines := strings.Split(content, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}

	fiveWhysStart := indexOfHeader(lines, headerFiveWhys)
	correctiveStart := indexOfHeader(lines, headerCorrective)
	preventiveStart := indexOfHeader(lines, headerPreventive)

	outOfOrder := correctiveStart <= fiveWhysStart || preventiveStart <= correctiveStart
	if fiveWhysStart == -1 || correctiveStart == -1 || preventiveStart == -1 || outOfOrder {
		return Sections{
			FiveWhys:         content,
			CorrectiveAction: FallbackNote,
			PreventiveAction: FallbackNote,
		}
	}

	return Sections{
		FiveWhys:         joinNonBlank(lines[fiveWhysStart+1 : correctiveStart]),
		CorrectiveAction: joinNonBlank(lines[correctiveStart+1 : preventiveStart]),
		PreventiveAction: joinNonBlank(lines[preventiveStart+1:]),
	}
}

func indexOfHeader(lines []string, header string) int {
	for i, l := range lines {
		if strings.Contains(strings.ToUpper(l), header) {
			return i
		}
	}
	return -1
}

func joinNonBlank(lines []string) string {
	var kept []string
	for _, l := range lines {
		if l != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}
