package parser

import (
	"strings"

	"github.com/hugo-lorenzo-mato/council/internal/core"
)

// ExtractPlan returns the parsed <plan> block from text, or ok=false when no
// <plan> block is found or it contains no edits. Callers treat ok=false as
// a parse error and retry the Planning phase (bounded).
func ExtractPlan(text string) (*core.Plan, bool) {
	raw, found := ExtractSection(text, "plan")
	if !found {
		return nil, false
	}

	var edits []core.PlannedEdit
	for _, attrText := range findAllTags(raw, "edit") {
		attrs := ParseAttrs(attrText)
		path := strings.TrimSpace(attrs["path"])
		if path == "" {
			continue
		}
		body, _ := extractEditBody(raw, attrText)
		edits = append(edits, core.PlannedEdit{
			Path:        path,
			Description: strings.TrimSpace(body),
		})
	}

	plan := &core.Plan{Edits: edits, Raw: raw}
	if plan.Empty() {
		return nil, false
	}
	return plan, true
}

// extractEditBody returns the text between the matching "<edit ...>" and
// "</edit>" for the edit whose attribute text is attrText.
func extractEditBody(raw, attrText string) (string, bool) {
	openTag := "<edit" + attrText + ">"
	idx := strings.Index(raw, openTag)
	if idx < 0 {
		// Self-closing edit (no description body).
		return "", false
	}
	bodyStart := idx + len(openTag)
	closeIdx := strings.Index(raw[bodyStart:], "</edit>")
	if closeIdx < 0 {
		return "", false
	}
	return stripCDATA(raw[bodyStart : bodyStart+closeIdx]), true
}
