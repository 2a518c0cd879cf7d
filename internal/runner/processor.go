// Package runner drives queued generation runs through their staged pipeline.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rowanvale/draftforge/internal/refine"
	"github.com/rowanvale/draftforge/internal/store"
	"github.com/rowanvale/draftforge/internal/workspace"
)

// Stage pacing keeps transitions visible to polling clients instead of
// collapsing into one instantaneous jump.
const (
	threadingPause = 350 * time.Millisecond
	specingPause   = 300 * time.Millisecond
	planningPause  = 200 * time.Millisecond
)

// Processor advances runs from queued to a terminal state. Each run is
// processed by its own goroutine, fire-and-forget; the enqueueing request
// never waits on it.
type Processor struct {
	store   *store.Store
	refiner refine.Refiner
	logger  *slog.Logger
	notify  func(workspace.RunRecord)

	// Pause is the stage delay hook. Tests replace it to run the pipeline
	// at full speed.
	Pause func(time.Duration)
}

// New creates a processor. notify (optional) is invoked after every persisted
// run transition.
func New(st *store.Store, refiner refine.Refiner, logger *slog.Logger, notify func(workspace.RunRecord)) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		store:   st,
		refiner: refiner,
		logger:  logger,
		notify:  notify,
		Pause:   time.Sleep,
	}
}

// Start kicks off background processing for the run and returns immediately.
func (p *Processor) Start(workspaceID, runID string) {
	go p.process(workspaceID, runID)
}

func (p *Processor) process(workspaceID, runID string) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("runner: panic", slog.String("run", runID), slog.Any("panic", r))
			p.fail(workspaceID, runID, fmt.Sprintf("unexpected run failure: %v", r))
		}
	}()

	run, err := p.store.UpdateRunStatus(workspaceID, runID, workspace.RunThreading, nil)
	if err != nil {
		p.logger.Error("runner: threading transition failed", slog.String("run", runID), slog.String("error", err.Error()))
		return
	}
	if run == nil {
		// The run raced out of existence; nothing to report.
		return
	}
	p.emit(run)
	p.Pause(threadingPause)

	payload, err := p.store.AreaTextForRun(workspaceID, runID)
	if err != nil {
		p.fail(workspaceID, runID, err.Error())
		return
	}
	if payload == nil {
		p.fail(workspaceID, runID, "Source area not found")
		return
	}
	if strings.TrimSpace(payload.Text) == "" {
		p.fail(workspaceID, runID, "Area contains no text to refine")
		return
	}

	if run, err = p.store.UpdateRunStatus(workspaceID, runID, workspace.RunSpecing, nil); err != nil {
		p.logger.Error("runner: specing transition failed", slog.String("run", runID), slog.String("error", err.Error()))
		return
	}
	p.emit(run)

	refined, err := p.refiner.Refine(context.Background(), payload.Text)
	if err != nil {
		p.fail(workspaceID, runID, err.Error())
		return
	}
	p.Pause(specingPause)

	if run, err = p.store.UpdateRunStatus(workspaceID, runID, workspace.RunPlanning, nil); err != nil {
		p.logger.Error("runner: planning transition failed", slog.String("run", runID), slog.String("error", err.Error()))
		return
	}
	p.emit(run)

	result, err := p.store.FinalizeRun(workspaceID, runID, refined.Ideas, refine.ToProject(refined))
	if err != nil {
		p.fail(workspaceID, runID, err.Error())
		return
	}
	p.Pause(planningPause)

	if result == nil {
		p.fail(workspaceID, runID, "Run finalization failed")
		return
	}
	p.emit(&result.Run)
	p.logger.Info("runner: run ready",
		slog.String("run", runID),
		slog.String("project", result.Run.ProjectID))
}

func (p *Processor) fail(workspaceID, runID, message string) {
	run, err := p.store.FailRun(workspaceID, runID, message)
	if err != nil {
		p.logger.Error("runner: fail transition failed", slog.String("run", runID), slog.String("error", err.Error()))
		return
	}
	p.emit(run)
	p.logger.Warn("runner: run failed", slog.String("run", runID), slog.String("reason", message))
}

func (p *Processor) emit(run *workspace.RunRecord) {
	if run != nil && p.notify != nil {
		p.notify(*run)
	}
}
