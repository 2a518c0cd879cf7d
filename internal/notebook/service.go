// Package notebook is the application service tying the store, the run
// processor, and the canvas patch protocol together behind one API used by
// both the HTTP handlers and the MCP tool surface.
package notebook

import (
	"github.com/rowanvale/draftforge/internal/canvas"
	"github.com/rowanvale/draftforge/internal/runner"
	"github.com/rowanvale/draftforge/internal/store"
	"github.com/rowanvale/draftforge/internal/workspace"
)

// Service exposes the workspace operations.
type Service struct {
	store     *store.Store
	processor *runner.Processor
}

// NewService wires the service.
func NewService(st *store.Store, processor *runner.Processor) *Service {
	return &Service{store: st, processor: processor}
}

// Snapshot is the full client-facing view of a workspace.
type Snapshot struct {
	Workspace     workspace.Workspace
	ActiveRun     *workspace.RunRecord
	LatestNoteID  string
	AreaSummaries []workspace.AreaSummary
}

// Latest returns the workspace snapshot, creating the workspace lazily.
func (s *Service) Latest(workspaceID string) (*Snapshot, error) {
	rec, err := s.store.Record(workspaceID)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Workspace:     *rec.Workspace,
		AreaSummaries: []workspace.AreaSummary{},
	}
	for i := range rec.Runs {
		if rec.Runs[i].Status.Active() {
			snap.ActiveRun = &rec.Runs[i]
			break
		}
	}
	if len(rec.Workspace.Notebooks) > 0 {
		note := &rec.Workspace.Notebooks[0]
		snap.LatestNoteID = note.ID
		snap.AreaSummaries = workspace.BuildAreaSummaries(note, rec.Runs, rec.Workspace.Projects)
	}
	return snap, nil
}

// SavePatches compacts the incoming batch and applies it to the target note.
// Compaction is semantics-preserving, so applying the reduced batch yields
// the same canvas as the raw one.
func (s *Service) SavePatches(workspaceID, noteID string, patches []canvas.Patch) (*store.SaveResult, error) {
	return s.store.SavePatches(workspaceID, noteID, canvas.Compact(patches))
}

// EnqueueRun schedules a generation run for (noteID, areaID) and starts
// background processing only when a fresh run was actually created.
func (s *Service) EnqueueRun(workspaceID, noteID, areaID string) (*store.RunResult, error) {
	result, err := s.store.CreateRun(workspaceID, noteID, areaID)
	if err != nil {
		return nil, err
	}
	if !result.AlreadyActive && !result.Skipped {
		s.processor.Start(workspaceID, result.Run.ID)
	}
	return result, nil
}

// Run returns the run (nil when absent) plus the workspace snapshot clients
// poll alongside it.
func (s *Service) Run(workspaceID, runID string) (*workspace.RunRecord, *workspace.Workspace, error) {
	return s.store.RunByID(workspaceID, runID)
}

// NoteByID returns the note, or nil when absent.
func (s *Service) NoteByID(workspaceID, noteID string) (*workspace.NotebookEntry, error) {
	return s.store.NoteByID(workspaceID, noteID)
}

// AreaSummaries projects the latest note's areas.
func (s *Service) AreaSummaries(workspaceID string) ([]workspace.AreaSummary, error) {
	return s.store.AreaSummaries(workspaceID)
}

// SetProjectRepository links (or clears) the project's repository. Returns
// nil when the project does not exist.
func (s *Service) SetProjectRepository(workspaceID, projectID, repository string) (*workspace.Project, error) {
	return s.store.UpdateProjectRepository(workspaceID, projectID, repository)
}

// StartShip queues a shipping attempt for the project. Progress past queued
// is recorded by the external shipping agent through the store.
func (s *Service) StartShip(workspaceID, projectID string, issueIDs []string) (*store.ShipResult, error) {
	return s.store.CreateShipJob(workspaceID, projectID, issueIDs)
}

// ShipJob returns the ship job, or nil when absent.
func (s *Service) ShipJob(workspaceID, jobID string) (*workspace.ShipJobRecord, error) {
	return s.store.ShipJobByID(workspaceID, jobID)
}
