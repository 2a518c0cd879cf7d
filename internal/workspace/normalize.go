package workspace

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rowanvale/draftforge/internal/canvas"
)

const previewLimit = 90

// New returns an empty workspace for the given identity.
func New(id string) *Workspace {
	return &Workspace{
		ID:             id,
		Version:        1,
		Notebooks:      []NotebookEntry{},
		ExtractedIdeas: []ExtractedIdea{},
		Projects:       []Project{},
		LastUpdated:    time.Now(),
	}
}

// NewNotebookEntry returns an empty notebook entry with a fresh identity.
func NewNotebookEntry() NotebookEntry {
	now := time.Now()
	return NotebookEntry{
		ID:        uuid.NewString(),
		Title:     "Notebook Entry",
		Canvas:    canvas.DefaultCanvas(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NormalizeEntry coerces a persisted entry into the canvas shape. Legacy
// entries that stored a flat text body become a single synthetic block at the
// origin. Clustering is NOT run here; callers recompute areas after
// normalizing, since persisted area data is never trusted as ground truth.
func NormalizeEntry(e NotebookEntry) NotebookEntry {
	now := time.Now()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Title == "" {
		e.Title = "Notebook Entry"
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = now
	}

	if len(e.Canvas.Blocks) == 0 && strings.TrimSpace(e.LegacyContent) != "" {
		e.Canvas.Blocks = []canvas.Block{{
			ID:        uuid.NewString(),
			X:         0,
			Y:         0,
			W:         canvas.DefaultBlockWidth,
			H:         canvas.DefaultBlockHeight,
			Content:   e.LegacyContent,
			UpdatedAt: e.UpdatedAt,
		}}
	}
	e.LegacyContent = ""

	e.Canvas.Viewport = canvas.NormalizeViewport(e.Canvas.Viewport)
	return e
}

// AreaText derives the area's content deterministically: the trimmed text of
// every non-empty member block in reading order (ascending Y, then X),
// joined with blank lines.
func AreaText(e *NotebookEntry, areaID string) string {
	var members []canvas.Block
	for _, b := range e.Canvas.Blocks {
		if b.AreaID == areaID && !b.Empty() {
			members = append(members, b)
		}
	}
	sort.SliceStable(members, func(i, j int) bool {
		if members[i].Y == members[j].Y {
			return members[i].X < members[j].X
		}
		return members[i].Y < members[j].Y
	})

	parts := make([]string, len(members))
	for i, b := range members {
		parts[i] = strings.TrimSpace(b.Content)
	}
	return strings.Join(parts, "\n\n")
}

// BuildAreaSummaries projects each of the note's areas together with its most
// recent run and any already-linked project.
func BuildAreaSummaries(e *NotebookEntry, runs []RunRecord, projects []Project) []AreaSummary {
	summaries := make([]AreaSummary, 0, len(e.Canvas.Areas))

	for _, area := range e.Canvas.Areas {
		var latest *RunRecord
		for i := range runs {
			run := &runs[i]
			if run.NoteID != e.ID || run.AreaID != area.ID {
				continue
			}
			if latest == nil || run.UpdatedAt.After(latest.UpdatedAt) {
				latest = run
			}
		}

		var linked *Project
		for i := range projects {
			if projects[i].NoteID == e.ID && projects[i].AreaID == area.ID {
				linked = &projects[i]
				break
			}
		}

		summary := AreaSummary{
			ID:       area.ID,
			BlockIDs: area.BlockIDs,
			Centroid: area.Centroid,
			Preview:  preview(AreaText(e, area.ID)),
			Status:   StatusIdle,
		}
		switch {
		case latest != nil:
			summary.Status = string(latest.Status)
			summary.RunID = latest.ID
			summary.ProjectID = latest.ProjectID
		case linked != nil:
			summary.Status = string(RunReady)
		}
		if summary.ProjectID == "" && linked != nil {
			summary.ProjectID = linked.ID
		}

		summaries = append(summaries, summary)
	}

	return summaries
}

// preview collapses whitespace and caps the text at previewLimit runes.
func preview(text string) string {
	collapsed := strings.Join(strings.Fields(text), " ")
	runes := []rune(collapsed)
	if len(runes) > previewLimit {
		return string(runes[:previewLimit])
	}
	return collapsed
}
