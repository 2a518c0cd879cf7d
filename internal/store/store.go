// Package store persists every workspace in a single JSON document and
// serializes access to it. Each public operation is an atomic
// read-modify-write: load the document, mutate in memory, persist, and return
// deep copies only. An in-process mutex orders operations within this
// process; a directory-based advisory lock with staleness recovery extends
// the exclusion across processes sharing the data directory.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rowanvale/draftforge/internal/apperr"
	"github.com/rowanvale/draftforge/internal/canvas"
	"github.com/rowanvale/draftforge/internal/fingerprint"
	"github.com/rowanvale/draftforge/internal/workspace"
)

const (
	documentFile = "workspaces.json"
	lockDir      = "workspaces.lock"

	// runErrorLimit bounds stored error messages so a chatty collaborator
	// cannot grow the document without bound.
	runErrorLimit = 500
)

// Store is the workspace persistence layer.
type Store struct {
	dir  string
	file string
	mu   sync.Mutex
	lock *dirLock
}

// New creates a store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("store: resolve dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("store: create dir: %w", err)
	}
	return &Store{
		dir:  abs,
		file: filepath.Join(abs, documentFile),
		lock: newDirLock(filepath.Join(abs, lockDir)),
	}, nil
}

// update runs fn inside the full locking discipline. The advisory lock
// straddles the entire load-mutate-save cycle so a failed acquisition never
// begins a write, and an fn error discards the in-memory mutation entirely.
func (s *Store) update(workspaceID string, fn func(doc *document, rec *Record) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.acquire(); err != nil {
		return err
	}
	defer s.lock.release()

	doc := s.load()
	rec := doc.ensureRecord(workspaceID)
	if err := fn(doc, rec); err != nil {
		return err
	}
	return s.save(doc)
}

// Record returns a deep copy of the workspace's record, creating the
// workspace lazily on first access.
func (s *Store) Record(workspaceID string) (*Record, error) {
	var out *Record
	err := s.update(workspaceID, func(_ *document, rec *Record) error {
		out = deepCopy(rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SaveResult is the outcome of applying a patch batch.
type SaveResult struct {
	Note          workspace.NotebookEntry
	Workspace     workspace.Workspace
	AreaSummaries []workspace.AreaSummary
}

// SavePatches applies a patch batch to the given note (or the most recent
// note when noteID is empty, creating one if none exists), recomputes areas,
// and returns the updated snapshot.
func (s *Store) SavePatches(workspaceID, noteID string, patches []canvas.Patch) (*SaveResult, error) {
	var out SaveResult
	err := s.update(workspaceID, func(_ *document, rec *Record) error {
		note := getOrCreateNote(rec, noteID)
		note.Canvas = canvas.Apply(note.Canvas, patches)
		note.UpdatedAt = time.Now()
		rec.Workspace.Touch()

		out = SaveResult{
			Note:          deepCopy(*note),
			Workspace:     deepCopy(*rec.Workspace),
			AreaSummaries: workspace.BuildAreaSummaries(note, rec.Runs, rec.Workspace.Projects),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// getOrCreateNote resolves the target note: the requested one, else the most
// recent, else a fresh entry prepended to the workspace.
func getOrCreateNote(rec *Record, noteID string) *workspace.NotebookEntry {
	targetID := noteID
	if targetID == "" && len(rec.Workspace.Notebooks) > 0 {
		targetID = rec.Workspace.Notebooks[0].ID
	}
	if targetID != "" {
		for i := range rec.Workspace.Notebooks {
			if rec.Workspace.Notebooks[i].ID == targetID {
				return &rec.Workspace.Notebooks[i]
			}
		}
	}

	note := workspace.NewNotebookEntry()
	if targetID != "" {
		note.ID = targetID
	}
	rec.Workspace.Notebooks = append([]workspace.NotebookEntry{note}, rec.Workspace.Notebooks...)
	return &rec.Workspace.Notebooks[0]
}

// NoteByID returns a deep copy of the note, or nil when absent.
func (s *Store) NoteByID(workspaceID, noteID string) (*workspace.NotebookEntry, error) {
	rec, err := s.Record(workspaceID)
	if err != nil {
		return nil, err
	}
	for i := range rec.Workspace.Notebooks {
		if rec.Workspace.Notebooks[i].ID == noteID {
			return &rec.Workspace.Notebooks[i], nil
		}
	}
	return nil, nil
}

// LatestNote returns a deep copy of the most recent note, or nil when the
// workspace has none.
func (s *Store) LatestNote(workspaceID string) (*workspace.NotebookEntry, error) {
	rec, err := s.Record(workspaceID)
	if err != nil {
		return nil, err
	}
	if len(rec.Workspace.Notebooks) == 0 {
		return nil, nil
	}
	return &rec.Workspace.Notebooks[0], nil
}

// AreaSummaries projects the most recent note's areas, or an empty slice when
// the workspace has no notes.
func (s *Store) AreaSummaries(workspaceID string) ([]workspace.AreaSummary, error) {
	rec, err := s.Record(workspaceID)
	if err != nil {
		return nil, err
	}
	if len(rec.Workspace.Notebooks) == 0 {
		return []workspace.AreaSummary{}, nil
	}
	note := &rec.Workspace.Notebooks[0]
	return workspace.BuildAreaSummaries(note, rec.Runs, rec.Workspace.Projects), nil
}

// RunResult is the scheduling decision for an enqueue request.
type RunResult struct {
	Run           workspace.RunRecord
	AlreadyActive bool
	Skipped       bool
	Workspace     workspace.Workspace
}

// CreateRun decides whether (noteID, areaID) needs a new generation run.
// An active run for the pair is returned with AlreadyActive set; a ready run
// whose fingerprint matches the area's current text is returned with Skipped
// set; otherwise a fresh queued run is prepended to the history. The whole
// decision plus insert happens under the store lock, which is what actually
// upholds the at-most-one-active-run-per-area invariant.
func (s *Store) CreateRun(workspaceID, noteID, areaID string) (*RunResult, error) {
	var out RunResult
	err := s.update(workspaceID, func(_ *document, rec *Record) error {
		var note *workspace.NotebookEntry
		for i := range rec.Workspace.Notebooks {
			if rec.Workspace.Notebooks[i].ID == noteID {
				note = &rec.Workspace.Notebooks[i]
				break
			}
		}
		if note == nil {
			return fmt.Errorf("store: note %s: %w", noteID, apperr.ErrNotFound)
		}

		contentHash := fingerprint.Sum(workspace.AreaText(note, areaID))

		for i := range rec.Runs {
			run := &rec.Runs[i]
			if run.NoteID == noteID && run.AreaID == areaID && run.Status.Active() {
				out = RunResult{
					Run:           deepCopy(*run),
					AlreadyActive: true,
					Workspace:     deepCopy(*rec.Workspace),
				}
				return nil
			}
		}

		// Runs are newest-first, so the first ready hit is the most recent.
		for i := range rec.Runs {
			run := &rec.Runs[i]
			if run.NoteID != noteID || run.AreaID != areaID || run.Status != workspace.RunReady {
				continue
			}
			if run.ContentHash == contentHash {
				out = RunResult{
					Run:       deepCopy(*run),
					Skipped:   true,
					Workspace: deepCopy(*rec.Workspace),
				}
				return nil
			}
			break
		}

		now := time.Now()
		run := workspace.RunRecord{
			ID:          uuid.NewString(),
			NoteID:      noteID,
			AreaID:      areaID,
			ContentHash: contentHash,
			Status:      workspace.RunQueued,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		rec.Runs = append([]workspace.RunRecord{run}, rec.Runs...)
		rec.Workspace.Touch()

		out = RunResult{
			Run:       deepCopy(run),
			Workspace: deepCopy(*rec.Workspace),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RunExtras are optional fields set alongside a status transition.
type RunExtras struct {
	Error     *string
	ProjectID *string
}

// UpdateRunStatus advances a run and stamps it. Returns nil (no error) when
// the run does not exist; callers treat that as "raced out of existence".
func (s *Store) UpdateRunStatus(workspaceID, runID string, status workspace.RunStatus, extras *RunExtras) (*workspace.RunRecord, error) {
	var out *workspace.RunRecord
	err := s.update(workspaceID, func(_ *document, rec *Record) error {
		run := findRun(rec, runID)
		if run == nil {
			return nil
		}

		run.Status = status
		run.UpdatedAt = time.Now()
		if extras != nil {
			if extras.Error != nil {
				run.Error = *extras.Error
			}
			if extras.ProjectID != nil {
				run.ProjectID = *extras.ProjectID
			}
		}

		rec.Workspace.Touch()
		out = deepCopy(run)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FailRun marks the run failed with a truncated error message.
func (s *Store) FailRun(workspaceID, runID, message string) (*workspace.RunRecord, error) {
	truncated := truncate(message, runErrorLimit)
	return s.UpdateRunStatus(workspaceID, runID, workspace.RunFailed, &RunExtras{Error: &truncated})
}

// FinalizeResult is the outcome of committing a run's generation output.
type FinalizeResult struct {
	Run       workspace.RunRecord
	Workspace workspace.Workspace
}

// FinalizeRun commits the generation output: the project is attached to the
// run's (note, area) pair, replacing any prior project for that pair while
// carrying forward its repository and shipping fields; the workspace's
// extracted ideas are replaced wholesale; the run turns ready with a pointer
// to the committed project. Returns nil when the run no longer exists.
func (s *Store) FinalizeRun(workspaceID, runID string, ideas []workspace.ExtractedIdea, project workspace.Project) (*FinalizeResult, error) {
	var out *FinalizeResult
	err := s.update(workspaceID, func(_ *document, rec *Record) error {
		run := findRun(rec, runID)
		if run == nil {
			return nil
		}

		if project.ID == "" {
			project.ID = uuid.NewString()
		}
		project.NoteID = run.NoteID
		project.AreaID = run.AreaID
		if project.ShipStatus == "" {
			project.ShipStatus = workspace.ShipIdle
		}

		var prior *workspace.Project
		for i := range rec.Workspace.Projects {
			p := &rec.Workspace.Projects[i]
			if p.NoteID == run.NoteID && p.AreaID == run.AreaID {
				prior = p
				break
			}
		}
		if prior != nil {
			project.Repository = prior.Repository
			project.ShipStatus = prior.ShipStatus
			project.ShipJobID = prior.ShipJobID
			project.ShipUpdatedAt = prior.ShipUpdatedAt
			project.LatestPrototypeURL = prior.LatestPrototypeURL
			project.LatestPrototypeSummary = prior.LatestPrototypeSummary
			project.LatestPullRequestURL = prior.LatestPullRequestURL
		}

		if ideas == nil {
			ideas = []workspace.ExtractedIdea{}
		}
		rec.Workspace.ExtractedIdeas = ideas

		kept := []workspace.Project{project}
		for _, existing := range rec.Workspace.Projects {
			samePair := existing.NoteID == project.NoteID && existing.AreaID == project.AreaID
			if !samePair && existing.ID != project.ID {
				kept = append(kept, existing)
			}
		}
		rec.Workspace.Projects = kept

		run.Status = workspace.RunReady
		run.ProjectID = project.ID
		run.UpdatedAt = time.Now()
		rec.Workspace.Touch()

		out = &FinalizeResult{
			Run:       deepCopy(*run),
			Workspace: deepCopy(*rec.Workspace),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RunByID returns deep copies of the run (nil when absent) and the workspace.
func (s *Store) RunByID(workspaceID, runID string) (*workspace.RunRecord, *workspace.Workspace, error) {
	rec, err := s.Record(workspaceID)
	if err != nil {
		return nil, nil, err
	}
	for i := range rec.Runs {
		if rec.Runs[i].ID == runID {
			return &rec.Runs[i], rec.Workspace, nil
		}
	}
	return nil, rec.Workspace, nil
}

// ActiveRun returns the workspace's currently active run, or nil.
func (s *Store) ActiveRun(workspaceID string) (*workspace.RunRecord, error) {
	rec, err := s.Record(workspaceID)
	if err != nil {
		return nil, err
	}
	for i := range rec.Runs {
		if rec.Runs[i].Status.Active() {
			return &rec.Runs[i], nil
		}
	}
	return nil, nil
}

// AreaPayload pairs a run with its area's current text.
type AreaPayload struct {
	Run  workspace.RunRecord
	Text string
}

// AreaTextForRun resolves the current text of the run's area. Returns nil
// when the run or its owning note no longer exists.
func (s *Store) AreaTextForRun(workspaceID, runID string) (*AreaPayload, error) {
	rec, err := s.Record(workspaceID)
	if err != nil {
		return nil, err
	}
	var run *workspace.RunRecord
	for i := range rec.Runs {
		if rec.Runs[i].ID == runID {
			run = &rec.Runs[i]
			break
		}
	}
	if run == nil {
		return nil, nil
	}
	for i := range rec.Workspace.Notebooks {
		note := &rec.Workspace.Notebooks[i]
		if note.ID == run.NoteID {
			return &AreaPayload{Run: *run, Text: workspace.AreaText(note, run.AreaID)}, nil
		}
	}
	return nil, nil
}

// UpdateProjectRepository sets (or clears) the project's linked repository.
// Returns nil when the project does not exist.
func (s *Store) UpdateProjectRepository(workspaceID, projectID, repository string) (*workspace.Project, error) {
	var out *workspace.Project
	err := s.update(workspaceID, func(_ *document, rec *Record) error {
		for i := range rec.Workspace.Projects {
			p := &rec.Workspace.Projects[i]
			if p.ID != projectID {
				continue
			}
			p.Repository = strings.TrimSpace(repository)
			rec.Workspace.Touch()
			out = deepCopy(p)
			return nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func findRun(rec *Record, runID string) *workspace.RunRecord {
	for i := range rec.Runs {
		if rec.Runs[i].ID == runID {
			return &rec.Runs[i]
		}
	}
	return nil
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
