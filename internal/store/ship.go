package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rowanvale/draftforge/internal/apperr"
	"github.com/rowanvale/draftforge/internal/workspace"
)

const (
	// shipLogCap bounds a job's log, newest-first.
	shipLogCap = 80
	// shipDefaultIssueLimit caps the issues selected when a request names none.
	shipDefaultIssueLimit = 6
)

// ShipResult is the scheduling decision for a ship request.
type ShipResult struct {
	Job           workspace.ShipJobRecord
	AlreadyActive bool
	Project       workspace.Project
}

// CreateShipJob queues a shipping attempt for the project. An active job for
// the project is returned with AlreadyActive set. When issueIDs is empty the
// job targets the project's first generated issues, capped.
func (s *Store) CreateShipJob(workspaceID, projectID string, issueIDs []string) (*ShipResult, error) {
	var out ShipResult
	err := s.update(workspaceID, func(_ *document, rec *Record) error {
		var project *workspace.Project
		for i := range rec.Workspace.Projects {
			if rec.Workspace.Projects[i].ID == projectID {
				project = &rec.Workspace.Projects[i]
				break
			}
		}
		if project == nil {
			return fmt.Errorf("store: project %s: %w", projectID, apperr.ErrNotFound)
		}

		for i := range rec.ShipJobs {
			job := &rec.ShipJobs[i]
			if job.ProjectID == projectID && job.Status.Active() {
				out = ShipResult{
					Job:           deepCopy(*job),
					AlreadyActive: true,
					Project:       deepCopy(*project),
				}
				return nil
			}
		}

		selected := issueIDs
		if len(selected) == 0 {
			for _, issue := range project.GeneratedIssues {
				selected = append(selected, issue.ID)
				if len(selected) == shipDefaultIssueLimit {
					break
				}
			}
		}
		if selected == nil {
			selected = []string{}
		}

		now := time.Now()
		job := workspace.ShipJobRecord{
			ID:        uuid.NewString(),
			ProjectID: projectID,
			IssueIDs:  selected,
			Status:    workspace.ShipQueued,
			CreatedAt: now,
			UpdatedAt: now,
			Logs: []workspace.ShipJobLog{{
				ID:      uuid.NewString(),
				At:      now,
				Level:   "info",
				Message: "Ship job queued",
			}},
		}
		rec.ShipJobs = append([]workspace.ShipJobRecord{job}, rec.ShipJobs...)

		project.ShipStatus = workspace.ShipQueued
		project.ShipJobID = job.ID
		project.ShipUpdatedAt = now
		rec.Workspace.Touch()

		out = ShipResult{
			Job:     deepCopy(job),
			Project: deepCopy(*project),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ShipExtras are optional fields set alongside a ship status transition.
type ShipExtras struct {
	Log            *string
	Error          *string
	BranchName     *string
	PullRequestURL *string
	PrototypeURL   *string
	Summary        *string
}

// UpdateShipJob advances a ship job, appends any log line, and mirrors the
// transition onto the owning project's ship fields. Returns nil when the job
// no longer exists.
func (s *Store) UpdateShipJob(workspaceID, jobID string, status workspace.ShipStatus, extras *ShipExtras) (*workspace.ShipJobRecord, error) {
	var out *workspace.ShipJobRecord
	err := s.update(workspaceID, func(_ *document, rec *Record) error {
		job := findShipJob(rec, jobID)
		if job == nil {
			return nil
		}

		now := time.Now()
		prior := job.Status
		job.Status = status
		job.UpdatedAt = now
		if prior == workspace.ShipQueued && status.Active() && status != workspace.ShipQueued && job.StartedAt.IsZero() {
			job.StartedAt = now
		}
		if !status.Active() && job.CompletedAt.IsZero() {
			job.CompletedAt = now
		}

		if extras != nil {
			if extras.Error != nil {
				job.Error = truncate(*extras.Error, runErrorLimit)
			}
			if extras.BranchName != nil {
				job.BranchName = *extras.BranchName
			}
			if extras.PullRequestURL != nil {
				job.PullRequestURL = *extras.PullRequestURL
			}
			if extras.PrototypeURL != nil {
				job.PrototypeURL = *extras.PrototypeURL
			}
			if extras.Summary != nil {
				job.Summary = *extras.Summary
			}
			if extras.Log != nil {
				appendShipLog(job, *extras.Log)
			}
		}

		for i := range rec.Workspace.Projects {
			p := &rec.Workspace.Projects[i]
			if p.ID != job.ProjectID {
				continue
			}
			p.ShipStatus = status
			p.ShipJobID = job.ID
			p.ShipUpdatedAt = now
			if job.PrototypeURL != "" {
				p.LatestPrototypeURL = job.PrototypeURL
			}
			if job.Summary != "" {
				p.LatestPrototypeSummary = job.Summary
			}
			if job.PullRequestURL != "" {
				p.LatestPullRequestURL = job.PullRequestURL
			}
			break
		}

		rec.Workspace.Touch()
		out = deepCopy(job)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FailShipJob marks the job failed with a truncated error message and a log
// line.
func (s *Store) FailShipJob(workspaceID, jobID, message string) (*workspace.ShipJobRecord, error) {
	truncated := truncate(message, runErrorLimit)
	return s.UpdateShipJob(workspaceID, jobID, workspace.ShipFailed, &ShipExtras{
		Error: &truncated,
		Log:   &truncated,
	})
}

// AppendShipLog records a progress line without changing the job's status.
// Returns nil when the job no longer exists.
func (s *Store) AppendShipLog(workspaceID, jobID, message string) (*workspace.ShipJobRecord, error) {
	var out *workspace.ShipJobRecord
	err := s.update(workspaceID, func(_ *document, rec *Record) error {
		job := findShipJob(rec, jobID)
		if job == nil {
			return nil
		}
		appendShipLog(job, message)
		job.UpdatedAt = time.Now()
		out = deepCopy(job)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ShipJobByID returns a deep copy of the job, or nil when absent.
func (s *Store) ShipJobByID(workspaceID, jobID string) (*workspace.ShipJobRecord, error) {
	rec, err := s.Record(workspaceID)
	if err != nil {
		return nil, err
	}
	for i := range rec.ShipJobs {
		if rec.ShipJobs[i].ID == jobID {
			return &rec.ShipJobs[i], nil
		}
	}
	return nil, nil
}

// ShipContext is everything the shipping collaborator needs about a job.
type ShipContext struct {
	Job     workspace.ShipJobRecord
	Project workspace.Project
	Issues  []workspace.GeneratedIssue
}

// ShipJobContext resolves the job together with its project and the issues
// the job targets. Returns nil when the job or project no longer exists.
func (s *Store) ShipJobContext(workspaceID, jobID string) (*ShipContext, error) {
	rec, err := s.Record(workspaceID)
	if err != nil {
		return nil, err
	}

	var job *workspace.ShipJobRecord
	for i := range rec.ShipJobs {
		if rec.ShipJobs[i].ID == jobID {
			job = &rec.ShipJobs[i]
			break
		}
	}
	if job == nil {
		return nil, nil
	}

	var project *workspace.Project
	for i := range rec.Workspace.Projects {
		if rec.Workspace.Projects[i].ID == job.ProjectID {
			project = &rec.Workspace.Projects[i]
			break
		}
	}
	if project == nil {
		return nil, nil
	}

	wanted := make(map[string]bool, len(job.IssueIDs))
	for _, id := range job.IssueIDs {
		wanted[id] = true
	}
	issues := []workspace.GeneratedIssue{}
	for _, issue := range project.GeneratedIssues {
		if wanted[issue.ID] {
			issues = append(issues, issue)
		}
	}

	return &ShipContext{Job: *job, Project: *project, Issues: issues}, nil
}

func findShipJob(rec *Record, jobID string) *workspace.ShipJobRecord {
	for i := range rec.ShipJobs {
		if rec.ShipJobs[i].ID == jobID {
			return &rec.ShipJobs[i]
		}
	}
	return nil
}

// appendShipLog prepends a log line, keeping the newest shipLogCap entries.
func appendShipLog(job *workspace.ShipJobRecord, message string) {
	line := workspace.ShipJobLog{
		ID:      uuid.NewString(),
		At:      time.Now(),
		Level:   "info",
		Message: message,
	}
	job.Logs = append([]workspace.ShipJobLog{line}, job.Logs...)
	if len(job.Logs) > shipLogCap {
		job.Logs = job.Logs[:shipLogCap]
	}
}
