package workspace

import (
	"strings"
	"testing"
	"time"

	"github.com/rowanvale/draftforge/internal/canvas"
)

func TestNormalizeEntry_Defaults(t *testing.T) {
	e := NormalizeEntry(NotebookEntry{})
	if e.ID == "" {
		t.Error("identity not assigned")
	}
	if e.Title != "Notebook Entry" {
		t.Errorf("title = %q", e.Title)
	}
	if e.CreatedAt.IsZero() || e.UpdatedAt.IsZero() {
		t.Error("timestamps not stamped")
	}
	if e.Canvas.Viewport.Zoom != 1 {
		t.Errorf("viewport zoom = %v, want 1", e.Canvas.Viewport.Zoom)
	}
}

func TestNormalizeEntry_LegacyMigration(t *testing.T) {
	e := NormalizeEntry(NotebookEntry{
		ID:            "note-1",
		LegacyContent: "<p>old body</p>",
		UpdatedAt:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	})
	if len(e.Canvas.Blocks) != 1 {
		t.Fatalf("blocks = %d, want 1 synthetic", len(e.Canvas.Blocks))
	}
	b := e.Canvas.Blocks[0]
	if b.Content != "<p>old body</p>" {
		t.Errorf("content = %q", b.Content)
	}
	if b.X != 0 || b.Y != 0 || b.W != canvas.DefaultBlockWidth || b.H != canvas.DefaultBlockHeight {
		t.Errorf("geometry = (%v,%v,%v,%v)", b.X, b.Y, b.W, b.H)
	}
	if e.LegacyContent != "" {
		t.Error("legacy body not cleared after migration")
	}
}

func TestNormalizeEntry_LegacyIgnoredWhenBlocksExist(t *testing.T) {
	e := NormalizeEntry(NotebookEntry{
		Canvas:        canvas.Canvas{Blocks: []canvas.Block{{ID: "a", Content: "modern"}}},
		LegacyContent: "stale",
	})
	if len(e.Canvas.Blocks) != 1 || e.Canvas.Blocks[0].ID != "a" {
		t.Fatalf("blocks = %+v", e.Canvas.Blocks)
	}
	if e.LegacyContent != "" {
		t.Error("legacy body survived")
	}
}

func testEntry(blocks ...canvas.Block) *NotebookEntry {
	e := NewNotebookEntry()
	e.ID = "note-1"
	b, a := canvas.ComputeAreas(blocks)
	e.Canvas.Blocks = b
	e.Canvas.Areas = a
	return &e
}

func TestAreaText_ReadingOrder(t *testing.T) {
	// Same row ordered by X, rows ordered by Y.
	e := testEntry(
		canvas.Block{ID: "right", X: 400, Y: 0, Content: " second "},
		canvas.Block{ID: "below", X: 0, Y: 500, Content: "third"},
		canvas.Block{ID: "left", X: 0, Y: 0, Content: "first"},
	)
	if len(e.Canvas.Areas) != 1 {
		t.Fatalf("areas = %d, want 1", len(e.Canvas.Areas))
	}
	got := AreaText(e, e.Canvas.Areas[0].ID)
	want := "first\n\nsecond\n\nthird"
	if got != want {
		t.Errorf("AreaText = %q, want %q", got, want)
	}
}

func TestAreaText_UnknownArea(t *testing.T) {
	e := testEntry(canvas.Block{ID: "a", Content: "text"})
	if got := AreaText(e, "nope"); got != "" {
		t.Errorf("AreaText for unknown area = %q, want empty", got)
	}
}

func TestBuildAreaSummaries_StatusAndPreview(t *testing.T) {
	long := strings.Repeat("word ", 40)
	e := testEntry(canvas.Block{ID: "a", Content: long})
	areaID := e.Canvas.Areas[0].ID

	summaries := BuildAreaSummaries(e, nil, nil)
	if len(summaries) != 1 {
		t.Fatalf("summaries = %d, want 1", len(summaries))
	}
	s := summaries[0]
	if s.Status != StatusIdle {
		t.Errorf("status = %q, want idle", s.Status)
	}
	if n := len([]rune(s.Preview)); n > 90 {
		t.Errorf("preview length = %d, want <= 90", n)
	}
	if strings.Contains(s.Preview, "\n") {
		t.Error("preview contains raw newlines")
	}
	if s.ID != areaID {
		t.Errorf("summary id = %q, want %q", s.ID, areaID)
	}
}

func TestBuildAreaSummaries_LatestRunWins(t *testing.T) {
	e := testEntry(canvas.Block{ID: "a", Content: "text"})
	areaID := e.Canvas.Areas[0].ID

	older := RunRecord{
		ID: "run-old", NoteID: "note-1", AreaID: areaID,
		Status: RunFailed, UpdatedAt: time.Now().Add(-time.Hour),
	}
	newer := RunRecord{
		ID: "run-new", NoteID: "note-1", AreaID: areaID,
		Status: RunSpecing, UpdatedAt: time.Now(),
	}

	summaries := BuildAreaSummaries(e, []RunRecord{older, newer}, nil)
	s := summaries[0]
	if s.RunID != "run-new" {
		t.Errorf("run id = %q, want run-new", s.RunID)
	}
	if s.Status != string(RunSpecing) {
		t.Errorf("status = %q, want specing", s.Status)
	}
}

func TestBuildAreaSummaries_LinkedProjectFallback(t *testing.T) {
	e := testEntry(canvas.Block{ID: "a", Content: "text"})
	areaID := e.Canvas.Areas[0].ID

	projects := []Project{{ID: "proj-1", NoteID: "note-1", AreaID: areaID}}
	summaries := BuildAreaSummaries(e, nil, projects)
	s := summaries[0]
	if s.Status != string(RunReady) {
		t.Errorf("status = %q, want ready for linked project", s.Status)
	}
	if s.ProjectID != "proj-1" {
		t.Errorf("project id = %q, want proj-1", s.ProjectID)
	}
}

func TestRunStatus_Lifecycle(t *testing.T) {
	active := []RunStatus{RunQueued, RunThreading, RunSpecing, RunPlanning}
	for _, s := range active {
		if !s.Active() || s.Terminal() {
			t.Errorf("%s: active=%v terminal=%v", s, s.Active(), s.Terminal())
		}
	}
	terminal := []RunStatus{RunReady, RunFailed}
	for _, s := range terminal {
		if s.Active() || !s.Terminal() {
			t.Errorf("%s: active=%v terminal=%v", s, s.Active(), s.Terminal())
		}
	}
}
