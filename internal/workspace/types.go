// Package workspace defines the domain aggregates: the per-user workspace,
// its notebook entries, generation runs, projects, and ship jobs.
package workspace

import (
	"time"

	"github.com/rowanvale/draftforge/internal/canvas"
)

// RunStatus is one stage of the generation pipeline. Transitions only ever
// move forward through queued → threading → specing → planning → ready, or
// jump to failed from any non-terminal stage.
type RunStatus string

const (
	RunQueued    RunStatus = "queued"
	RunThreading RunStatus = "threading"
	RunSpecing   RunStatus = "specing"
	RunPlanning  RunStatus = "planning"
	RunReady     RunStatus = "ready"
	RunFailed    RunStatus = "failed"
)

// Active reports whether the run still occupies its area's single
// concurrent-run slot.
func (s RunStatus) Active() bool {
	switch s {
	case RunQueued, RunThreading, RunSpecing, RunPlanning:
		return true
	}
	return false
}

// Terminal reports whether the run can never transition again.
func (s RunStatus) Terminal() bool {
	return s == RunReady || s == RunFailed
}

// ShipStatus is the lifecycle of a ship job. The agent that advances ship
// jobs is an external collaborator; this package only records its progress.
type ShipStatus string

const (
	ShipIdle         ShipStatus = "idle"
	ShipQueued       ShipStatus = "queued"
	ShipPlanning     ShipStatus = "planning"
	ShipScaffolding  ShipStatus = "scaffolding"
	ShipImplementing ShipStatus = "implementing"
	ShipTesting      ShipStatus = "testing"
	ShipPublishing   ShipStatus = "publishing"
	ShipReady        ShipStatus = "ready"
	ShipFailed       ShipStatus = "failed"
	ShipCanceled     ShipStatus = "canceled"
)

// Active reports whether the ship job occupies its project's single
// concurrent-job slot.
func (s ShipStatus) Active() bool {
	switch s {
	case ShipQueued, ShipPlanning, ShipScaffolding, ShipImplementing, ShipTesting, ShipPublishing:
		return true
	}
	return false
}

// Workspace is the root aggregate for one anonymous user session. Notebooks
// are ordered most-recent-first.
type Workspace struct {
	ID             string          `json:"id"`
	Version        int             `json:"version"`
	Notebooks      []NotebookEntry `json:"notebooks"`
	ExtractedIdeas []ExtractedIdea `json:"extractedIdeas"`
	Projects       []Project       `json:"projects"`
	LastUpdated    time.Time       `json:"lastUpdated"`
}

// Touch stamps the workspace's last-modified time.
func (w *Workspace) Touch() {
	w.LastUpdated = time.Now()
}

// NotebookEntry is one freeform canvas owned by its workspace.
//
// LegacyContent carries the flat rich-text body of pre-canvas entries; it is
// migrated into a single synthetic block on load and never written back.
type NotebookEntry struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Canvas        canvas.Canvas `json:"canvas"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
	LegacyContent string        `json:"content,omitempty"`
}

// ExtractedIdea is one distinct idea pulled out of an area's notes.
type ExtractedIdea struct {
	ID          string `json:"id"`
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	TaskCount   int    `json:"taskCount,omitempty"`
	NeedsInput  bool   `json:"needsInput,omitempty"`
}

// SpecItem is one requirement inside a spec section.
type SpecItem struct {
	ID                     string `json:"id"`
	Title                  string `json:"title"`
	Description            string `json:"description"`
	Status                 string `json:"status"`
	LinkedNote             int    `json:"linkedNote,omitempty"`
	Inferred               bool   `json:"inferred,omitempty"`
	NotExplicitlyMentioned bool   `json:"notExplicitlyMentioned,omitempty"`
}

// SpecSection groups requirements under a heading.
type SpecSection struct {
	ID    string     `json:"id"`
	Title string     `json:"title"`
	Icon  string     `json:"icon"`
	Items []SpecItem `json:"items"`
}

// Task is one unit of work inside a milestone.
type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Badge       string `json:"badge"`
	Time        string `json:"time,omitempty"`
	Status      string `json:"status,omitempty"`
	Priority    string `json:"priority,omitempty"`
}

// Milestone is a time-boxed group of tasks.
type Milestone struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Time     string `json:"time"`
	Priority string `json:"priority,omitempty"`
	Tasks    []Task `json:"tasks"`
}

// GeneratedIssue is a GitHub-issue-shaped work item produced by a run.
type GeneratedIssue struct {
	ID          string   `json:"id"`
	Number      int      `json:"number,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// SourceNote records where a project's content came from.
type SourceNote struct {
	Title      string   `json:"title"`
	Date       string   `json:"date"`
	RecordedBy string   `json:"recordedBy"`
	Highlights []string `json:"highlights"`
	AINote     string   `json:"aiNote,omitempty"`
}

// PRItem is a pull request tracked against a project.
type PRItem struct {
	ID        string    `json:"id"`
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	Agent     string    `json:"agent"`
	UpdatedAt time.Time `json:"updatedAt"`
	Summary   string    `json:"summary,omitempty"`
}

// Project is the generated specification and plan for one area's content.
// A successful run for the same (note, area) pair replaces the project while
// carrying forward Repository and the ship-related fields.
type Project struct {
	ID                      string           `json:"id"`
	Name                    string           `json:"name"`
	NoteID                  string           `json:"noteId,omitempty"`
	AreaID                  string           `json:"areaId,omitempty"`
	SourceNote              *SourceNote      `json:"sourceNote,omitempty"`
	SpecSections            []SpecSection    `json:"specSections"`
	Milestones              []Milestone      `json:"milestones"`
	GeneratedIssues         []GeneratedIssue `json:"generatedIssues"`
	PRItems                 []PRItem         `json:"prItems"`
	Repository              string           `json:"repository,omitempty"`
	ShipStatus              ShipStatus       `json:"shipStatus,omitempty"`
	ShipJobID               string           `json:"shipJobId,omitempty"`
	ShipUpdatedAt           time.Time        `json:"shipUpdatedAt,omitzero"`
	LatestPrototypeURL      string           `json:"latestPrototypeUrl,omitempty"`
	LatestPrototypeSummary  string           `json:"latestPrototypeSummary,omitempty"`
	LatestPullRequestURL    string           `json:"latestPullRequestUrl,omitempty"`
}

// RunRecord is one attempt to turn an area's text into a project. Runs are
// append-only history: superseding work creates a new record, it never
// rewrites a terminal one.
type RunRecord struct {
	ID          string    `json:"id"`
	NoteID      string    `json:"noteId"`
	AreaID      string    `json:"areaId"`
	ContentHash string    `json:"contentHash"`
	Status      RunStatus `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Error       string    `json:"error,omitempty"`
	ProjectID   string    `json:"projectId,omitempty"`
}

// ShipJobLog is one line of a ship job's progress log.
type ShipJobLog struct {
	ID      string    `json:"id"`
	At      time.Time `json:"at"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// ShipJobRecord tracks one shipping attempt for a project.
type ShipJobRecord struct {
	ID             string       `json:"id"`
	ProjectID      string       `json:"projectId"`
	IssueIDs       []string     `json:"issueIds"`
	Status         ShipStatus   `json:"status"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
	StartedAt      time.Time    `json:"startedAt,omitzero"`
	CompletedAt    time.Time    `json:"completedAt,omitzero"`
	Error          string       `json:"error,omitempty"`
	BranchName     string       `json:"branchName,omitempty"`
	PullRequestURL string       `json:"pullRequestUrl,omitempty"`
	PrototypeURL   string       `json:"prototypeUrl,omitempty"`
	Summary        string       `json:"summary,omitempty"`
	Logs           []ShipJobLog `json:"logs"`
}

// AreaSummary is a read-only projection combining an area with its most
// recent run and any linked project. It is never persisted.
type AreaSummary struct {
	ID        string       `json:"id"`
	BlockIDs  []string     `json:"blockIds"`
	Centroid  canvas.Point `json:"centroid"`
	Preview   string       `json:"preview"`
	Status    string       `json:"status"`
	RunID     string       `json:"runId,omitempty"`
	ProjectID string       `json:"projectId,omitempty"`
}

// StatusIdle is the AreaSummary status for areas with no run and no project.
const StatusIdle = "idle"
