package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rowanvale/draftforge/internal/apperr"
	"github.com/rowanvale/draftforge/internal/notebook"
)

// Handler holds API route handlers.
type Handler struct {
	svc *notebook.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *notebook.Service) *Handler {
	return &Handler{svc: svc}
}

// WorkspaceLatest handles GET /api/workspace/latest.
//
//	@Summary		Get the full workspace snapshot
//	@Tags			workspace
//	@Produce		json
//	@Success		200	{object}	WorkspaceLatestResponse
//	@Security		BearerAuth
//	@Router			/workspace/latest [get]
func (h *Handler) WorkspaceLatest(w http.ResponseWriter, r *http.Request) {
	workspaceID := WorkspaceID(r)
	snap, err := h.svc.Latest(workspaceID)
	if err != nil {
		slog.Error("workspace latest failed", slog.String("workspace", workspaceID), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, WorkspaceLatestResponse{
		WorkspaceID:   workspaceID,
		Workspace:     snap.Workspace,
		ActiveRun:     snap.ActiveRun,
		LatestNoteID:  snap.LatestNoteID,
		AreaSummaries: snap.AreaSummaries,
	})
}

// SaveNote handles POST /api/workspace/note.
//
//	@Summary		Apply canvas patches to a note
//	@Tags			workspace
//	@Accept			json
//	@Produce		json
//	@Param			body	body		NoteSaveRequest	true	"Patches to apply"
//	@Success		200		{object}	NoteSaveResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/workspace/note [post]
func (h *Handler) SaveNote(w http.ResponseWriter, r *http.Request) {
	workspaceID := WorkspaceID(r)
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)

	var req NoteSaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if len(req.Patches) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("patches are required"))
		return
	}

	result, err := h.svc.SavePatches(workspaceID, req.NoteID, req.Patches)
	if err != nil {
		slog.Error("save note failed", slog.String("workspace", workspaceID), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, NoteSaveResponse{
		WorkspaceID:   workspaceID,
		Note:          result.Note,
		Workspace:     result.Workspace,
		AreaSummaries: result.AreaSummaries,
	})
}

// CreateRun handles POST /api/runs.
//
//	@Summary		Schedule a generation run for an area
//	@Tags			runs
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RunCreateRequest	true	"Target note and area"
//	@Success		200		{object}	RunCreateResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/runs [post]
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	workspaceID := WorkspaceID(r)

	var req RunCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.NoteID == "" || req.AreaID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("noteId and areaId are required"))
		return
	}

	result, err := h.svc.EnqueueRun(workspaceID, req.NoteID, req.AreaID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("note not found"))
		} else {
			slog.Error("create run failed", slog.String("workspace", workspaceID), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, RunCreateResponse{
		WorkspaceID:   workspaceID,
		Run:           result.Run,
		AlreadyActive: result.AlreadyActive,
		Skipped:       result.Skipped,
		Workspace:     result.Workspace,
	})
}

// GetRun handles GET /api/runs/{id}.
//
//	@Summary		Poll a run's current state
//	@Tags			runs
//	@Produce		json
//	@Param			id	path		string	true	"Run ID"
//	@Success		200	{object}	RunResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/runs/{id} [get]
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	workspaceID := WorkspaceID(r)
	id := chi.URLParam(r, "id")

	run, ws, err := h.svc.Run(workspaceID, id)
	if err != nil {
		slog.Error("get run failed", slog.String("workspace", workspaceID), slog.String("run", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if run == nil {
		writeJSON(w, http.StatusNotFound, errorBody("run not found"))
		return
	}
	writeJSON(w, http.StatusOK, RunResponse{
		WorkspaceID: workspaceID,
		Run:         *run,
		Workspace:   *ws,
	})
}

// SetRepository handles PUT /api/projects/{id}/repository.
//
//	@Summary		Link or clear a project's repository
//	@Tags			projects
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Project ID"
//	@Param			body	body		RepositoryRequest	true	"Repository full name"
//	@Success		200		{object}	ProjectResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects/{id}/repository [put]
func (h *Handler) SetRepository(w http.ResponseWriter, r *http.Request) {
	workspaceID := WorkspaceID(r)
	id := chi.URLParam(r, "id")

	var req RepositoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	project, err := h.svc.SetProjectRepository(workspaceID, id, req.Repository)
	if err != nil {
		slog.Error("set repository failed", slog.String("workspace", workspaceID), slog.String("project", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if project == nil {
		writeJSON(w, http.StatusNotFound, errorBody("project not found"))
		return
	}
	writeJSON(w, http.StatusOK, ProjectResponse{WorkspaceID: workspaceID, Project: *project})
}

// StartShip handles POST /api/ship/start.
//
//	@Summary		Queue a ship job for a project
//	@Tags			ship
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ShipStartRequest	true	"Target project and issue selection"
//	@Success		200		{object}	ShipStartResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/ship/start [post]
func (h *Handler) StartShip(w http.ResponseWriter, r *http.Request) {
	workspaceID := WorkspaceID(r)

	var req ShipStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.ProjectID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("projectId is required"))
		return
	}

	result, err := h.svc.StartShip(workspaceID, req.ProjectID, req.IssueIDs)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("project not found"))
		} else {
			slog.Error("start ship failed", slog.String("workspace", workspaceID), slog.String("project", req.ProjectID), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, ShipStartResponse{
		WorkspaceID:   workspaceID,
		Job:           result.Job,
		AlreadyActive: result.AlreadyActive,
		Project:       result.Project,
	})
}

// GetShipJob handles GET /api/ship/jobs/{id}.
//
//	@Summary		Poll a ship job's current state
//	@Tags			ship
//	@Produce		json
//	@Param			id	path		string	true	"Ship job ID"
//	@Success		200	{object}	ShipJobResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/ship/jobs/{id} [get]
func (h *Handler) GetShipJob(w http.ResponseWriter, r *http.Request) {
	workspaceID := WorkspaceID(r)
	id := chi.URLParam(r, "id")

	job, err := h.svc.ShipJob(workspaceID, id)
	if err != nil {
		slog.Error("get ship job failed", slog.String("workspace", workspaceID), slog.String("job", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if job == nil {
		writeJSON(w, http.StatusNotFound, errorBody("ship job not found"))
		return
	}
	writeJSON(w, http.StatusOK, ShipJobResponse{WorkspaceID: workspaceID, Job: *job})
}
