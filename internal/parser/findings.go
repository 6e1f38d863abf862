package parser

import (
	"strings"

	"github.com/hugo-lorenzo-mato/council/internal/core"
)

// Warning is a non-fatal note produced while parsing, e.g. a coerced
// severity tag. Callers surface these as events.WarningEvent.
type Warning struct {
	Message string
}

// ExtractFindings scans text for every "<finding ...>" element and builds a
// Finding from its attributes. A "severity" value outside P0..P3 is coerced
// to P2 and recorded both on the Finding (CoercedFrom) and as a returned
// Warning.
func ExtractFindings(text string) ([]core.Finding, []Warning) {
	var findings []core.Finding
	var warnings []Warning

	for _, attrText := range findAllTags(text, "finding") {
		attrs := ParseAttrs(attrText)

		severity := core.Severity(attrs["severity"])
		coercedFrom := ""
		if !core.ValidSeverity(severity) {
			coercedFrom = attrs["severity"]
			severity = core.SeverityP2
			warnings = append(warnings, Warning{
				Message: "finding has unrecognized severity " + quoteOrEmpty(coercedFrom) + ", coerced to P2",
			})
		}

		findings = append(findings, core.Finding{
			Severity:    severity,
			Title:       attrs["title"],
			File:        attrs["file"],
			Symbol:      attrs["symbol"],
			Impact:      attrs["impact"],
			Fix:         attrs["fix"],
			CoercedFrom: coercedFrom,
		})
	}

	return findings, warnings
}

func quoteOrEmpty(s string) string {
	if s == "" {
		return "(empty)"
	}
	return "\"" + s + "\""
}

// findAllTags returns the attribute text of every "<name ...>" occurrence in
// text, in order of appearance, whether self-closing ("<name .../>") or the
// opening half of a paired tag. Overlapping/nested occurrences of the same
// name are each reported once, left to right.
func findAllTags(text, name string) []string {
	var out []string
	prefix := "<" + name

	pos := 0
	for {
		idx := strings.Index(text[pos:], prefix)
		if idx < 0 {
			break
		}
		idx += pos

		after := idx + len(prefix)
		if after < len(text) {
			c := text[after]
			if c != ' ' && c != '\t' && c != '\n' && c != '\r' && c != '>' && c != '/' {
				pos = idx + 1
				continue
			}
		}

		gt := strings.IndexByte(text[after:], '>')
		if gt < 0 {
			break
		}
		tagEnd := after + gt
		attrEnd := tagEnd
		if attrEnd > after && text[attrEnd-1] == '/' {
			attrEnd--
		}
		out = append(out, text[after:attrEnd])
		pos = tagEnd + 1
	}

	return out
}
