package parser

import "testing"

func TestExtractPlan_Basic(t *testing.T) {
	t.Parallel()
	text := `<plan><edit path="a.go">fix the nil check</edit><edit path="b.go">add test</edit></plan>`
	plan, ok := ExtractPlan(text)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if len(plan.Edits) != 2 {
		t.Fatalf("expected 2 edits, got %d", len(plan.Edits))
	}
	if plan.Edits[0].Path != "a.go" || plan.Edits[0].Description != "fix the nil check" {
		t.Errorf("unexpected edit[0]: %+v", plan.Edits[0])
	}
	if plan.Edits[1].Path != "b.go" {
		t.Errorf("unexpected edit[1]: %+v", plan.Edits[1])
	}
}

func TestExtractPlan_NoPlanBlock(t *testing.T) {
	t.Parallel()
	_, ok := ExtractPlan("no plan here")
	if ok {
		t.Error("expected ok=false")
	}
}

func TestExtractPlan_EmptyPlanIsNotOK(t *testing.T) {
	t.Parallel()
	_, ok := ExtractPlan("<plan></plan>")
	if ok {
		t.Error("expected ok=false for a plan with no edits")
	}
}

func TestExtractPlan_SkipsEditsWithoutPath(t *testing.T) {
	t.Parallel()
	text := `<plan><edit>no path attr</edit><edit path="a.go">has path</edit></plan>`
	plan, ok := ExtractPlan(text)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if len(plan.Edits) != 1 {
		t.Fatalf("expected 1 edit, got %d", len(plan.Edits))
	}
	if plan.Edits[0].Path != "a.go" {
		t.Errorf("unexpected edit: %+v", plan.Edits[0])
	}
}

func TestExtractPlan_CDATABodyPreserved(t *testing.T) {
	t.Parallel()
	text := `<plan><edit path="a.go"><![CDATA[multi
line description]]></edit></plan>`
	plan, ok := ExtractPlan(text)
	if !ok {
		t.Fatal("expected ok=true")
	}
	want := "multi\nline description"
	if plan.Edits[0].Description != want {
		t.Errorf("got %q, want %q", plan.Edits[0].Description, want)
	}
}
