package parser

import (
	"testing"

	"github.com/hugo-lorenzo-mato/council/internal/core"
)

func TestExtractFindings_Basic(t *testing.T) {
	t.Parallel()
	text := `<finding severity="P0" title="null deref" file="a.go" symbol="Foo" impact="crash" fix="add nil check"/>`
	findings, warnings := ExtractFindings(text)
	if len(warnings) != 0 {
		t.Errorf("expected no warnings, got %v", warnings)
	}
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	f := findings[0]
	if f.Severity != core.SeverityP0 {
		t.Errorf("Severity = %q", f.Severity)
	}
	if f.Title != "null deref" || f.File != "a.go" || f.Symbol != "Foo" {
		t.Errorf("unexpected finding: %+v", f)
	}
	if f.CoercedFrom != "" {
		t.Errorf("expected no coercion, got %q", f.CoercedFrom)
	}
}

func TestExtractFindings_CoercesUnknownSeverity(t *testing.T) {
	t.Parallel()
	text := `<finding severity="CRITICAL" title="x"/>`
	findings, warnings := ExtractFindings(text)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	if findings[0].Severity != core.SeverityP2 {
		t.Errorf("expected coercion to P2, got %q", findings[0].Severity)
	}
	if findings[0].CoercedFrom != "CRITICAL" {
		t.Errorf("CoercedFrom = %q, want CRITICAL", findings[0].CoercedFrom)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(warnings))
	}
}

func TestExtractFindings_Multiple(t *testing.T) {
	t.Parallel()
	text := `
<finding severity="P1" title="first"/>
<finding severity="P3" title="second"/>
`
	findings, _ := ExtractFindings(text)
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(findings))
	}
	if findings[0].Title != "first" || findings[1].Title != "second" {
		t.Errorf("unexpected order: %+v", findings)
	}
}

func TestExtractFindings_None(t *testing.T) {
	t.Parallel()
	findings, warnings := ExtractFindings("no findings here")
	if len(findings) != 0 || len(warnings) != 0 {
		t.Errorf("expected empty results, got findings=%v warnings=%v", findings, warnings)
	}
}

func TestExtractFindings_EmptySeverityCoerced(t *testing.T) {
	t.Parallel()
	findings, warnings := ExtractFindings(`<finding title="no severity attr"/>`)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	if findings[0].Severity != core.SeverityP2 {
		t.Errorf("expected P2, got %q", findings[0].Severity)
	}
	if len(warnings) != 1 {
		t.Errorf("expected 1 warning for missing severity")
	}
}
