package refine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rowanvale/draftforge/internal/workspace"
)

// Fallback produces a deterministic draft from the notes alone. It keeps the
// run pipeline fully functional in deployments without a model API key.
type Fallback struct{}

// Refine derives a project name from the first sentence of the notes and
// fills the rest of the draft with a fixed weekend-MVP skeleton.
func (Fallback) Refine(_ context.Context, content string) (*Result, error) {
	plain := StripHTML(content)
	if plain == "" {
		return nil, errors.New("refine: content is required")
	}

	name := projectName(plain)

	highlight := plain
	if len([]rune(highlight)) > 240 {
		highlight = string([]rune(highlight)[:240])
	}

	result := &Result{
		Ideas: []workspace.ExtractedIdea{
			{
				ID:          "idea-primary",
				Category:    "PRODUCT",
				Title:       name,
				Description: "Primary idea extracted from notebook notes.",
				Status:      "4 tasks",
				TaskCount:   4,
			},
			{
				ID:          "idea-open",
				Category:    "OPS",
				Title:       "Unresolved Questions",
				Description: "Follow-ups and open decisions extracted from notes.",
				Status:      "Needs Input",
				NeedsInput:  true,
			},
		},
		Project: ProjectDraft{
			Name: name,
			SourceNote: &workspace.SourceNote{
				Title:      "Notebook Capture",
				Date:       time.Now().Format("Jan 2, 2006"),
				RecordedBy: "You",
				Highlights: []string{highlight},
				AINote:     "Fallback mode generated this spec because no model API key is configured.",
			},
			SpecSections: []workspace.SpecSection{
				{
					ID:    "functional",
					Title: "FUNCTIONAL REQUIREMENTS",
					Icon:  "blue",
					Items: []workspace.SpecItem{
						{
							ID:          "REQ-101",
							Title:       "Core User Flow",
							Description: "The solution must deliver the primary user flow described in notebook notes from start to finish.",
							Status:      "verified",
						},
						{
							ID:          "REQ-102",
							Title:       "Primary Integration",
							Description: "Integrations mentioned in notes must be implemented with a minimal happy-path first.",
							Status:      "pending",
						},
					},
				},
				{
					ID:    "constraints",
					Title: "TECHNICAL CONSTRAINTS",
					Icon:  "orange",
					Items: []workspace.SpecItem{
						{
							ID:          "CON-201",
							Title:       "MVP Timebox",
							Description: "Scope is constrained to a weekend-friendly MVP with no more than two milestones.",
							Status:      "verified",
						},
					},
				},
				{
					ID:    "risks",
					Title: "RISKS & ASSUMPTIONS",
					Icon:  "red",
					Items: []workspace.SpecItem{
						{
							ID:                     "RSK-301",
							Title:                  "Unclear Requirements",
							Description:            "Some requirements are implied and may need confirmation before implementation starts.",
							Status:                 "pending",
							Inferred:               true,
							NotExplicitlyMentioned: true,
						},
					},
				},
			},
			Milestones: []workspace.Milestone{
				{
					ID:       "ms-1",
					Title:    "Milestone 1: Foundation",
					Time:     "Saturday • 4h est.",
					Priority: "HIGH PRIORITY",
					Tasks: []workspace.Task{
						{
							ID:          "FE-101",
							Title:       "Scaffold App",
							Description: "Set up project structure and base tooling for implementation.",
							Icon:        "terminal",
							Badge:       "AI",
							Time:        "1.5h",
						},
						{
							ID:          "BE-201",
							Title:       "Define Data Shape",
							Description: "Map notebook requirements into data models and API interfaces.",
							Icon:        "database",
							Badge:       "AI",
							Time:        "1.5h",
						},
					},
				},
				{
					ID:    "ms-2",
					Title: "Milestone 2: User Flow",
					Time:  "Sunday • 3h est.",
					Tasks: []workspace.Task{
						{
							ID:          "FE-102",
							Title:       "Build Primary Flow UI",
							Description: "Implement core interaction flow and user-facing screens.",
							Icon:        "login",
							Badge:       "AG",
							Status:      "ready",
						},
					},
				},
			},
			GeneratedIssues: []workspace.GeneratedIssue{
				{
					ID:          "issue-1",
					Number:      1,
					Title:       "Initialize MVP workspace",
					Description: "Create baseline structure and essential dependencies.",
					Tags:        []string{"enhancement", "P1"},
				},
				{
					ID:          "issue-2",
					Number:      2,
					Title:       "Implement core flow",
					Description: "Ship the notebook-defined happy path end to end.",
					Tags:        []string{"product"},
				},
			},
		},
	}
	return result, nil
}

// projectName takes the first sentence of the notes, capped at 50 runes.
func projectName(plain string) string {
	for _, sentence := range strings.FieldsFunc(plain, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	}) {
		s := strings.TrimSpace(sentence)
		if s == "" {
			continue
		}
		runes := []rune(s)
		if len(runes) > 50 {
			s = string(runes[:50])
		}
		return s
	}
	return "Notebook Project"
}
