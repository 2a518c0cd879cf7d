package store

import (
	"encoding/json"
	"time"

	"github.com/rowanvale/draftforge/internal/canvas"
	"github.com/rowanvale/draftforge/internal/workspace"
)

// GitHubAuth is the persisted GitHub connection for a workspace. It is a
// side record for the external GitHub collaborator, stored alongside the
// workspace but not part of the canvas/run core.
type GitHubAuth struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType,omitempty"`
	Scope       string    `json:"scope,omitempty"`
	Login       string    `json:"login,omitempty"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// OAuthState is a short-lived anti-forgery token for the OAuth redirect dance.
type OAuthState struct {
	Value      string    `json:"value"`
	RedirectTo string    `json:"redirectTo,omitempty"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Record is the persistence unit for one workspace: the aggregate itself plus
// its append-only run history and collaborator side records.
type Record struct {
	Workspace  *workspace.Workspace      `json:"workspace"`
	Runs       []workspace.RunRecord     `json:"runs"`
	ShipJobs   []workspace.ShipJobRecord `json:"shipJobs"`
	GitHubAuth *GitHubAuth               `json:"githubAuth,omitempty"`
	OAuthState *OAuthState               `json:"githubOAuthState,omitempty"`
}

// document is the whole persisted file: a map from workspace identity to its
// record.
type document struct {
	Workspaces map[string]*Record `json:"workspaces"`
}

func newDocument() *document {
	return &document{Workspaces: map[string]*Record{}}
}

// ensureRecord returns the record for workspaceID, lazily creating and always
// re-normalizing it. Persisted area data is only a cache of the clustering
// function over blocks, so clustering is re-derived on every load.
func (d *document) ensureRecord(workspaceID string) *Record {
	rec, ok := d.Workspaces[workspaceID]
	if !ok || rec == nil {
		rec = &Record{Workspace: workspace.New(workspaceID)}
		d.Workspaces[workspaceID] = rec
	}
	normalizeRecord(workspaceID, rec)
	return rec
}

func normalizeRecord(workspaceID string, rec *Record) {
	if rec.Workspace == nil {
		rec.Workspace = workspace.New(workspaceID)
	}
	ws := rec.Workspace
	if ws.ID == "" {
		ws.ID = workspaceID
	}
	if ws.Version == 0 {
		ws.Version = 1
	}
	if ws.Notebooks == nil {
		ws.Notebooks = []workspace.NotebookEntry{}
	}
	for i, entry := range ws.Notebooks {
		normalized := workspace.NormalizeEntry(entry)
		blocks, areas := canvas.ComputeAreas(normalized.Canvas.Blocks)
		normalized.Canvas.Blocks = blocks
		normalized.Canvas.Areas = areas
		ws.Notebooks[i] = normalized
	}
	if ws.ExtractedIdeas == nil {
		ws.ExtractedIdeas = []workspace.ExtractedIdea{}
	}
	if ws.Projects == nil {
		ws.Projects = []workspace.Project{}
	}

	if rec.Runs == nil {
		rec.Runs = []workspace.RunRecord{}
	}
	if rec.ShipJobs == nil {
		rec.ShipJobs = []workspace.ShipJobRecord{}
	}
	if rec.OAuthState != nil && (rec.OAuthState.Value == "" || rec.OAuthState.ExpiresAt.IsZero()) {
		rec.OAuthState = nil
	}
	if rec.GitHubAuth != nil && rec.GitHubAuth.AccessToken == "" {
		rec.GitHubAuth = nil
	}
}

// deepCopy returns a JSON round-trip clone so callers never alias mutable
// store-internal state.
func deepCopy[T any](v T) T {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}
