package api

import (
	"github.com/rowanvale/draftforge/internal/canvas"
	"github.com/rowanvale/draftforge/internal/workspace"
)

// NoteSaveRequest is the request body for applying canvas patches.
type NoteSaveRequest struct {
	NoteID  string         `json:"noteId,omitempty"`
	Patches []canvas.Patch `json:"patches" validate:"required"`
}

// NoteSaveResponse is returned after a patch batch is applied.
type NoteSaveResponse struct {
	WorkspaceID   string                  `json:"workspaceId" validate:"required"`
	Note          workspace.NotebookEntry `json:"note" validate:"required"`
	Workspace     workspace.Workspace     `json:"workspace" validate:"required"`
	AreaSummaries []workspace.AreaSummary `json:"areaSummaries" validate:"required"`
}

// WorkspaceLatestResponse is the full workspace snapshot clients load first.
type WorkspaceLatestResponse struct {
	WorkspaceID   string                  `json:"workspaceId" validate:"required"`
	Workspace     workspace.Workspace     `json:"workspace" validate:"required"`
	ActiveRun     *workspace.RunRecord    `json:"activeRun"`
	LatestNoteID  string                  `json:"latestNoteId,omitempty"`
	AreaSummaries []workspace.AreaSummary `json:"areaSummaries" validate:"required"`
}

// RunCreateRequest is the request body for scheduling a generation run.
type RunCreateRequest struct {
	NoteID string `json:"noteId" validate:"required"`
	AreaID string `json:"areaId" validate:"required"`
}

// RunCreateResponse is the scheduling decision returned to the client.
type RunCreateResponse struct {
	WorkspaceID   string              `json:"workspaceId" validate:"required"`
	Run           workspace.RunRecord `json:"run" validate:"required"`
	AlreadyActive bool                `json:"alreadyActive"`
	Skipped       bool                `json:"skipped"`
	Workspace     workspace.Workspace `json:"workspace" validate:"required"`
}

// RunResponse is the polled state of one run.
type RunResponse struct {
	WorkspaceID string              `json:"workspaceId" validate:"required"`
	Run         workspace.RunRecord `json:"run" validate:"required"`
	Workspace   workspace.Workspace `json:"workspace" validate:"required"`
}

// RepositoryRequest is the request body for linking a project repository.
type RepositoryRequest struct {
	Repository string `json:"repository"`
}

// ProjectResponse wraps an updated project.
type ProjectResponse struct {
	WorkspaceID string            `json:"workspaceId" validate:"required"`
	Project     workspace.Project `json:"project" validate:"required"`
}

// ShipStartRequest is the request body for queueing a ship job.
type ShipStartRequest struct {
	ProjectID string   `json:"projectId" validate:"required"`
	IssueIDs  []string `json:"issueIds,omitempty"`
}

// ShipStartResponse is the queueing decision returned to the client.
type ShipStartResponse struct {
	WorkspaceID   string                  `json:"workspaceId" validate:"required"`
	Job           workspace.ShipJobRecord `json:"job" validate:"required"`
	AlreadyActive bool                    `json:"alreadyActive"`
	Project       workspace.Project       `json:"project" validate:"required"`
}

// ShipJobResponse is the polled state of one ship job.
type ShipJobResponse struct {
	WorkspaceID string                  `json:"workspaceId" validate:"required"`
	Job         workspace.ShipJobRecord `json:"job" validate:"required"`
}
