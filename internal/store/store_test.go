package store

import (
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/rowanvale/draftforge/internal/apperr"
	"github.com/rowanvale/draftforge/internal/canvas"
	"github.com/rowanvale/draftforge/internal/workspace"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// seedNote creates a note holding one content block and returns the note and
// its single area.
func seedNote(t *testing.T, s *Store, workspaceID, content string) (workspace.NotebookEntry, workspace.AreaSummary) {
	t.Helper()
	result, err := s.SavePatches(workspaceID, "", []canvas.Patch{
		{Op: canvas.OpUpsertBlock, Block: &canvas.Block{ID: "seed-block", Content: content}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.AreaSummaries) != 1 {
		t.Fatalf("areas = %d, want 1", len(result.AreaSummaries))
	}
	return result.Note, result.AreaSummaries[0]
}

func TestRecord_LazyCreate(t *testing.T) {
	s := testStore(t)

	rec, err := s.Record("ws-1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Workspace.ID != "ws-1" || rec.Workspace.Version != 1 {
		t.Errorf("workspace = %+v", rec.Workspace)
	}
	if rec.Workspace.Notebooks == nil || rec.Runs == nil || rec.ShipJobs == nil {
		t.Error("collections not initialized")
	}
}

func TestRecord_DeepCopy(t *testing.T) {
	s := testStore(t)
	seedNote(t, s, "ws-1", "original")

	rec, err := s.Record("ws-1")
	if err != nil {
		t.Fatal(err)
	}
	rec.Workspace.Notebooks[0].Title = "mutated by caller"

	again, err := s.Record("ws-1")
	if err != nil {
		t.Fatal(err)
	}
	if again.Workspace.Notebooks[0].Title == "mutated by caller" {
		t.Error("caller mutation leaked into store state")
	}
}

func TestSavePatches_CreatesAndTargets(t *testing.T) {
	s := testStore(t)

	// Empty noteID creates a note.
	first, err := s.SavePatches("ws-1", "", []canvas.Patch{
		{Op: canvas.OpUpsertBlock, Block: &canvas.Block{Content: "alpha"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if first.Note.ID == "" {
		t.Fatal("note identity missing")
	}

	// Empty noteID again targets the most recent note.
	second, err := s.SavePatches("ws-1", "", []canvas.Patch{
		{Op: canvas.OpUpsertBlock, Block: &canvas.Block{Content: "beta", X: 5000}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if second.Note.ID != first.Note.ID {
		t.Errorf("targeted %q, want existing %q", second.Note.ID, first.Note.ID)
	}
	if len(second.Note.Canvas.Blocks) != 2 {
		t.Errorf("blocks = %d, want 2", len(second.Note.Canvas.Blocks))
	}
	if len(second.AreaSummaries) != 2 {
		t.Errorf("areas = %d, want 2", len(second.AreaSummaries))
	}

	// Unknown explicit noteID creates a note with that identity.
	third, err := s.SavePatches("ws-1", "custom-note", []canvas.Patch{
		{Op: canvas.OpUpsertBlock, Block: &canvas.Block{Content: "gamma"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if third.Note.ID != "custom-note" {
		t.Errorf("note id = %q, want custom-note", third.Note.ID)
	}
	if len(third.Workspace.Notebooks) != 2 {
		t.Errorf("notebooks = %d, want 2", len(third.Workspace.Notebooks))
	}
	if third.Workspace.Notebooks[0].ID != "custom-note" {
		t.Error("new note not most recent")
	}
}

func TestPersistenceAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	s1, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	note, _ := seedNote(t, s1, "ws-1", "persisted text")

	s2, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	got, err := s2.NoteByID("ws-1", note.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("note lost across instances")
	}
	if got.Canvas.Blocks[0].Content != "persisted text" {
		t.Errorf("content = %q", got.Canvas.Blocks[0].Content)
	}
	if len(got.Canvas.Areas) != 1 {
		t.Errorf("areas not recomputed on load: %d", len(got.Canvas.Areas))
	}
}

func TestCreateRun_NoteNotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.CreateRun("ws-1", "missing-note", "area")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateRun_FreshThenActiveDedup(t *testing.T) {
	s := testStore(t)
	note, area := seedNote(t, s, "ws-1", "some idea")

	first, err := s.CreateRun("ws-1", note.ID, area.ID)
	if err != nil {
		t.Fatal(err)
	}
	if first.AlreadyActive || first.Skipped {
		t.Fatalf("first run flags = %+v", first)
	}
	if first.Run.Status != workspace.RunQueued {
		t.Errorf("status = %q, want queued", first.Run.Status)
	}
	if first.Run.ContentHash == "" {
		t.Error("fingerprint not recorded")
	}

	second, err := s.CreateRun("ws-1", note.ID, area.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !second.AlreadyActive {
		t.Fatal("second enqueue did not dedup against active run")
	}
	if second.Run.ID != first.Run.ID {
		t.Errorf("dedup returned run %q, want %q", second.Run.ID, first.Run.ID)
	}
}

func TestCreateRun_ConcurrentEnqueueSingleRun(t *testing.T) {
	s := testStore(t)
	note, area := seedNote(t, s, "ws-1", "contended idea")

	const attempts = 8
	var wg sync.WaitGroup
	fresh := make(chan string, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := s.CreateRun("ws-1", note.ID, area.ID)
			if err != nil {
				t.Error(err)
				return
			}
			if !result.AlreadyActive && !result.Skipped {
				fresh <- result.Run.ID
			}
		}()
	}
	wg.Wait()
	close(fresh)

	var created []string
	for id := range fresh {
		created = append(created, id)
	}
	if len(created) != 1 {
		t.Errorf("fresh runs = %d, want exactly 1", len(created))
	}
}

func TestCreateRun_SkipsUnchangedFingerprint(t *testing.T) {
	s := testStore(t)
	note, area := seedNote(t, s, "ws-1", "stable idea")

	first, err := s.CreateRun("ws-1", note.ID, area.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.UpdateRunStatus("ws-1", first.Run.ID, workspace.RunReady, nil); err != nil {
		t.Fatal(err)
	}

	// Same text, so the ready run is a valid cache hit.
	again, err := s.CreateRun("ws-1", note.ID, area.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !again.Skipped {
		t.Fatal("unchanged fingerprint did not skip")
	}
	if again.Run.ID != first.Run.ID {
		t.Errorf("skip returned %q, want ready run %q", again.Run.ID, first.Run.ID)
	}
}

func TestCreateRun_ReenqueuesAfterEdit(t *testing.T) {
	s := testStore(t)
	note, area := seedNote(t, s, "ws-1", "first draft")

	first, err := s.CreateRun("ws-1", note.ID, area.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.UpdateRunStatus("ws-1", first.Run.ID, workspace.RunReady, nil); err != nil {
		t.Fatal(err)
	}

	// Edit the block; the fingerprint changes and a fresh run is due.
	if _, err := s.SavePatches("ws-1", note.ID, []canvas.Patch{
		{Op: canvas.OpUpsertBlock, Block: &canvas.Block{ID: "seed-block", Content: "second draft"}},
	}); err != nil {
		t.Fatal(err)
	}

	again, err := s.CreateRun("ws-1", note.ID, area.ID)
	if err != nil {
		t.Fatal(err)
	}
	if again.Skipped || again.AlreadyActive {
		t.Fatalf("flags = %+v, want fresh run after edit", again)
	}
	if again.Run.ID == first.Run.ID {
		t.Error("expected a new run identity")
	}
	if again.Run.ContentHash == first.Run.ContentHash {
		t.Error("fingerprint did not change with content")
	}
}

func TestCreateRun_FailedRunDoesNotBlockRetry(t *testing.T) {
	s := testStore(t)
	note, area := seedNote(t, s, "ws-1", "flaky idea")

	first, err := s.CreateRun("ws-1", note.ID, area.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.FailRun("ws-1", first.Run.ID, "boom"); err != nil {
		t.Fatal(err)
	}

	again, err := s.CreateRun("ws-1", note.ID, area.ID)
	if err != nil {
		t.Fatal(err)
	}
	if again.Skipped || again.AlreadyActive {
		t.Fatalf("flags = %+v, failed run must not cache", again)
	}
}

func TestUpdateRunStatus_MissingRun(t *testing.T) {
	s := testStore(t)
	run, err := s.UpdateRunStatus("ws-1", "missing", workspace.RunReady, nil)
	if err != nil {
		t.Fatal(err)
	}
	if run != nil {
		t.Errorf("run = %+v, want nil", run)
	}
}

func TestFailRun_TruncatesError(t *testing.T) {
	s := testStore(t)
	note, area := seedNote(t, s, "ws-1", "idea")
	created, err := s.CreateRun("ws-1", note.ID, area.ID)
	if err != nil {
		t.Fatal(err)
	}

	long := strings.Repeat("x", 600)
	run, err := s.FailRun("ws-1", created.Run.ID, long)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != workspace.RunFailed {
		t.Errorf("status = %q", run.Status)
	}
	if len([]rune(run.Error)) != 500 {
		t.Errorf("error length = %d, want 500", len([]rune(run.Error)))
	}
}

func TestFinalizeRun_CommitsProjectAndIdeas(t *testing.T) {
	s := testStore(t)
	note, area := seedNote(t, s, "ws-1", "build a thing")
	created, err := s.CreateRun("ws-1", note.ID, area.ID)
	if err != nil {
		t.Fatal(err)
	}

	ideas := []workspace.ExtractedIdea{{ID: "i1", Title: "Thing"}}
	result, err := s.FinalizeRun("ws-1", created.Run.ID, ideas, workspace.Project{Name: "Thing"})
	if err != nil {
		t.Fatal(err)
	}
	if result == nil {
		t.Fatal("finalize returned nil for live run")
	}
	if result.Run.Status != workspace.RunReady || result.Run.ProjectID == "" {
		t.Errorf("run = %+v", result.Run)
	}
	if len(result.Workspace.Projects) != 1 {
		t.Fatalf("projects = %d, want 1", len(result.Workspace.Projects))
	}
	p := result.Workspace.Projects[0]
	if p.NoteID != note.ID || p.AreaID != area.ID {
		t.Errorf("placement = (%q,%q)", p.NoteID, p.AreaID)
	}
	if p.ShipStatus != workspace.ShipIdle {
		t.Errorf("ship status = %q, want idle", p.ShipStatus)
	}
	if len(result.Workspace.ExtractedIdeas) != 1 {
		t.Errorf("ideas = %d, want 1", len(result.Workspace.ExtractedIdeas))
	}
}

func TestFinalizeRun_CarriesForwardRepositoryAndShipFields(t *testing.T) {
	s := testStore(t)
	note, area := seedNote(t, s, "ws-1", "evolving idea")

	first, err := s.CreateRun("ws-1", note.ID, area.ID)
	if err != nil {
		t.Fatal(err)
	}
	firstResult, err := s.FinalizeRun("ws-1", first.Run.ID, nil, workspace.Project{Name: "V1"})
	if err != nil {
		t.Fatal(err)
	}
	projectID := firstResult.Run.ProjectID

	if _, err := s.UpdateProjectRepository("ws-1", projectID, "octo/widgets"); err != nil {
		t.Fatal(err)
	}

	// Regenerate for the same (note, area) pair.
	if _, err := s.SavePatches("ws-1", note.ID, []canvas.Patch{
		{Op: canvas.OpUpsertBlock, Block: &canvas.Block{ID: "seed-block", Content: "evolved idea"}},
	}); err != nil {
		t.Fatal(err)
	}
	second, err := s.CreateRun("ws-1", note.ID, area.ID)
	if err != nil {
		t.Fatal(err)
	}
	secondResult, err := s.FinalizeRun("ws-1", second.Run.ID, nil, workspace.Project{Name: "V2"})
	if err != nil {
		t.Fatal(err)
	}

	if len(secondResult.Workspace.Projects) != 1 {
		t.Fatalf("projects = %d, want 1 after replacement", len(secondResult.Workspace.Projects))
	}
	p := secondResult.Workspace.Projects[0]
	if p.Name != "V2" {
		t.Errorf("name = %q, want V2", p.Name)
	}
	if p.ID == projectID {
		t.Error("replacement reused old project identity")
	}
	if p.Repository != "octo/widgets" {
		t.Errorf("repository = %q, want carried forward", p.Repository)
	}
}

func TestFinalizeRun_MissingRun(t *testing.T) {
	s := testStore(t)
	result, err := s.FinalizeRun("ws-1", "missing", nil, workspace.Project{Name: "X"})
	if err != nil {
		t.Fatal(err)
	}
	if result != nil {
		t.Errorf("result = %+v, want nil", result)
	}
}

func TestAreaTextForRun(t *testing.T) {
	s := testStore(t)
	note, area := seedNote(t, s, "ws-1", "  padded text  ")
	created, err := s.CreateRun("ws-1", note.ID, area.ID)
	if err != nil {
		t.Fatal(err)
	}

	payload, err := s.AreaTextForRun("ws-1", created.Run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if payload == nil {
		t.Fatal("payload nil for live run")
	}
	if payload.Text != "padded text" {
		t.Errorf("text = %q", payload.Text)
	}

	missing, err := s.AreaTextForRun("ws-1", "missing")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Error("payload for missing run should be nil")
	}
}

func TestTwoAreasRunIndependently(t *testing.T) {
	s := testStore(t)

	result, err := s.SavePatches("ws-1", "", []canvas.Patch{
		{Op: canvas.OpUpsertBlock, Block: &canvas.Block{ID: "near", Content: "first cluster"}},
		{Op: canvas.OpUpsertBlock, Block: &canvas.Block{ID: "far", Content: "second cluster", X: 5000}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.AreaSummaries) != 2 {
		t.Fatalf("areas = %d, want 2", len(result.AreaSummaries))
	}

	noteID := result.Note.ID
	first, err := s.CreateRun("ws-1", noteID, result.AreaSummaries[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.CreateRun("ws-1", noteID, result.AreaSummaries[1].ID)
	if err != nil {
		t.Fatal(err)
	}
	if second.AlreadyActive || second.Skipped {
		t.Fatalf("flags = %+v, other area's active run must not block", second)
	}
	if first.Run.ID == second.Run.ID {
		t.Error("areas shared a run")
	}
}

func TestUpdateProjectRepository_Missing(t *testing.T) {
	s := testStore(t)
	p, err := s.UpdateProjectRepository("ws-1", "missing", "octo/x")
	if err != nil {
		t.Fatal(err)
	}
	if p != nil {
		t.Errorf("project = %+v, want nil", p)
	}
}

func TestCorruptDocumentStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.file, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec, err := s.Record("ws-1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Workspace.ID != "ws-1" {
		t.Errorf("workspace = %+v", rec.Workspace)
	}
}
