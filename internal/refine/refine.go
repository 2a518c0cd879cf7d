// Package refine turns an area's raw notes into structured project ideas and
// a full project draft. The primary engine calls an OpenAI-compatible chat
// model; a deterministic fallback covers deployments without an API key.
package refine

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rowanvale/draftforge/internal/workspace"
)

// Result is a refinement outcome: the distinct ideas found in the notes plus
// a draft specification for the primary one.
type Result struct {
	Ideas   []workspace.ExtractedIdea `json:"ideas"`
	Project ProjectDraft              `json:"project"`
}

// ProjectDraft is a project before the store assigns identity and placement.
type ProjectDraft struct {
	Name            string                     `json:"name"`
	SourceNote      *workspace.SourceNote      `json:"sourceNote"`
	SpecSections    []workspace.SpecSection    `json:"specSections"`
	Milestones      []workspace.Milestone      `json:"milestones"`
	GeneratedIssues []workspace.GeneratedIssue `json:"generatedIssues"`
}

// Refiner produces a Result from note text.
type Refiner interface {
	Refine(ctx context.Context, content string) (*Result, error)
}

// New returns the OpenAI-backed engine when apiKey is set, otherwise the
// deterministic fallback.
func New(apiKey, baseURL, model string, timeout time.Duration) Refiner {
	if apiKey == "" {
		return Fallback{}
	}
	return newEngine(apiKey, baseURL, model, timeout)
}

// ToProject converts a draft into a storable project with a fresh identity.
func ToProject(result *Result) workspace.Project {
	draft := result.Project
	return workspace.Project{
		ID:              uuid.NewString(),
		Name:            draft.Name,
		SourceNote:      draft.SourceNote,
		SpecSections:    draft.SpecSections,
		Milestones:      draft.Milestones,
		GeneratedIssues: draft.GeneratedIssues,
		PRItems:         []workspace.PRItem{},
	}
}

// sanitize fills the optional parts of a model response so downstream code
// never sees nil collections or a missing source note.
func sanitize(r *Result) {
	if r.Project.SpecSections == nil {
		r.Project.SpecSections = []workspace.SpecSection{}
	}
	if r.Project.Milestones == nil {
		r.Project.Milestones = []workspace.Milestone{}
	}
	if r.Project.GeneratedIssues == nil {
		r.Project.GeneratedIssues = []workspace.GeneratedIssue{}
	}
	if r.Project.SourceNote == nil {
		r.Project.SourceNote = &workspace.SourceNote{
			Title:      "Refined from notes",
			Date:       time.Now().Format("2006-01-02"),
			RecordedBy: "User",
			Highlights: []string{},
		}
	}
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// StripHTML flattens markup into plain text: tags become spaces and runs of
// whitespace collapse.
func StripHTML(content string) string {
	plain := tagPattern.ReplaceAllString(content, " ")
	return strings.Join(strings.Fields(plain), " ")
}
