package parser

import "testing"

func TestExtractSection_Basic(t *testing.T) {
	t.Parallel()
	text := "preamble <plan>hello</plan> postamble"
	got, ok := ExtractSection(text, "plan")
	if !ok {
		t.Fatal("expected ok=true")
	}
	if got != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
}

func TestExtractSection_NotFound(t *testing.T) {
	t.Parallel()
	_, ok := ExtractSection("no tags here", "plan")
	if ok {
		t.Error("expected ok=false")
	}
}

func TestExtractSection_WithAttributes(t *testing.T) {
	t.Parallel()
	text := `<patch version="1" mode='strict'>body</patch>`
	got, ok := ExtractSection(text, "patch")
	if !ok {
		t.Fatal("expected ok=true")
	}
	if got != "body" {
		t.Errorf("got %q, want %q", got, "body")
	}
}

func TestExtractSection_StripsCDATAPreservesWhitespace(t *testing.T) {
	t.Parallel()
	text := "<patch><![CDATA[\n  line one\n  line two  \n]]></patch>"
	got, ok := ExtractSection(text, "patch")
	if !ok {
		t.Fatal("expected ok=true")
	}
	want := "\n  line one\n  line two  \n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtractSection_CDATAContainingTagLikeBytes(t *testing.T) {
	t.Parallel()
	// The whole point of CDATA here: content with "</patch>"-looking text
	// inside it must not prematurely close the section.
	text := "<patch><![CDATA[*** Update File: a</b>.txt]]></patch>"
	got, ok := ExtractSection(text, "patch")
	if !ok {
		t.Fatal("expected ok=true")
	}
	if got != "*** Update File: a</b>.txt" {
		t.Errorf("got %q", got)
	}
}

func TestExtractSection_DoesNotMatchLongerTagName(t *testing.T) {
	t.Parallel()
	text := "<findings>not a finding</findings>"
	_, ok := ExtractSection(text, "find")
	if ok {
		t.Error("expected ok=false: \"find\" must not match \"findings\"")
	}
}

func TestExtractSection_SelfClosingHasNoPayload(t *testing.T) {
	t.Parallel()
	text := "<plan/> trailing <plan>real</plan>"
	got, ok := ExtractSection(text, "plan")
	if !ok {
		t.Fatal("expected ok=true")
	}
	if got != "real" {
		t.Errorf("got %q, want %q", got, "real")
	}
}

func TestExtractSection_UnclosedTagFails(t *testing.T) {
	t.Parallel()
	_, ok := ExtractSection("<plan>no closing tag", "plan")
	if ok {
		t.Error("expected ok=false for unclosed tag")
	}
}

func TestParseAttrs_QuotedValuesWithSpaces(t *testing.T) {
	t.Parallel()
	attrs := ParseAttrs(`title="has a space" file='b c.go'`)
	if attrs["title"] != "has a space" {
		t.Errorf("title = %q", attrs["title"])
	}
	if attrs["file"] != "b c.go" {
		t.Errorf("file = %q", attrs["file"])
	}
}

func TestParseAttrs_DuplicateLastWins(t *testing.T) {
	t.Parallel()
	attrs := ParseAttrs(`severity="P0" severity="P1"`)
	if attrs["severity"] != "P1" {
		t.Errorf("severity = %q, want P1", attrs["severity"])
	}
}

func TestParseAttrs_Empty(t *testing.T) {
	t.Parallel()
	attrs := ParseAttrs("   ")
	if len(attrs) != 0 {
		t.Errorf("expected no attrs, got %v", attrs)
	}
}

func TestParseAttrs_UnquotedValue(t *testing.T) {
	t.Parallel()
	attrs := ParseAttrs(`severity=P0 file=a.go`)
	if attrs["severity"] != "P0" {
		t.Errorf("severity = %q", attrs["severity"])
	}
	if attrs["file"] != "a.go" {
		t.Errorf("file = %q", attrs["file"])
	}
}
