// Package workflow drives the multi-stage project migration wizard. The
// Orchestrator sequences stages, owns the shared Context and tracks the
// per-row asynchronous suggestion, apply and audit tasks.
package workflow

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/gerunddev/ngmigrate/internal/gateway"
	"github.com/gerunddev/ngmigrate/internal/log"
)

// Journal entry kinds.
const (
	RecordStage  = "stage"
	RecordUpload = "upload"
	RecordApply  = "apply"
	RecordCreate = "create"
)

// Recorder persists what a run did. Recording failures are logged and
// never fail the action.
type Recorder interface {
	RecordRun(runID, variant, projectID string) error
	RecordEntry(runID, kind, key, detail, backup string) error
}

// Config holds configuration for an orchestrator.
type Config struct {
	Variant            string // Defaults to VariantFix
	SuggestConcurrency int    // Parallel requests in RequestAllSuggestions (default: 4)
	EventBufferSize    int    // Size of event channel buffer (default: 1000)
}

// Deps holds dependencies for an orchestrator.
type Deps struct {
	Gateway  gateway.Gateway
	Session  *Session // Shared selection; a new one is created when nil
	Recorder Recorder // Optional
}

// Orchestrator is the composition root of one wizard run and the only
// writer of its Context.
type Orchestrator struct {
	cfg     Config
	deps    Deps
	variant Variant

	mu          sync.Mutex // guards seq, runID and runRecorded
	seq         *Sequencer
	runID       string
	runRecorded bool

	wctx *Context
	// rows serializes settling a tracker entry with updating its row, so a
	// newer Begin cannot interleave between the two.
	rows        sync.Mutex
	suggestions *Tracker[string, gateway.SuggestResponse]
	applies     *Tracker[string, gateway.WriteResult]
	auditFixes  *Tracker[string, gateway.AuditFix]
	plans       *Tracker[string, gateway.MigrationPlan]

	events   chan Event
	eventsMu sync.Mutex
	closed   bool
}

// New creates an orchestrator for the configured variant. A project already
// selected in the session is carried over.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if deps.Gateway == nil {
		return nil, errors.New("workflow: gateway is required")
	}
	if cfg.Variant == "" {
		cfg.Variant = VariantFix
	}
	if cfg.SuggestConcurrency <= 0 {
		cfg.SuggestConcurrency = 4
	}
	bufferSize := cfg.EventBufferSize
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	if deps.Session == nil {
		deps.Session = NewSession()
	}

	v, err := LookupVariant(cfg.Variant)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		cfg:         cfg,
		deps:        deps,
		variant:     v,
		seq:         NewSequencer(v),
		runID:       newRunID(),
		wctx:        NewContext(),
		suggestions: NewTracker[string, gateway.SuggestResponse](),
		applies:     NewTracker[string, gateway.WriteResult](),
		auditFixes:  NewTracker[string, gateway.AuditFix](),
		plans:       NewTracker[string, gateway.MigrationPlan](),
		events:      make(chan Event, bufferSize),
	}

	o.auditFixes.OnChange(func(key string, st TaskState[gateway.AuditFix]) {
		o.emit(NewKeyEvent(EventAuditFixChanged, key, string(st.Status)))
	})

	if path, src, ok := deps.Session.Selected(); ok {
		id := path
		if src.Kind == gateway.SourceGit && src.GitURL != "" {
			id = src.GitURL
		}
		if _, err := o.wctx.SetProject(Project{ID: id, Path: path, Source: src}); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// Events returns the channel for receiving workflow events.
// The channel is closed by Close.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

// Close closes the event channel. Actions still running afterwards stop emitting.
func (o *Orchestrator) Close() {
	o.eventsMu.Lock()
	defer o.eventsMu.Unlock()
	if !o.closed {
		o.closed = true
		close(o.events)
	}
}

func (o *Orchestrator) emit(event Event) {
	o.eventsMu.Lock()
	defer o.eventsMu.Unlock()

	if o.closed {
		return
	}
	select {
	case o.events <- event:
	default:
		// Channel full, log and drop
		log.Warn("event channel full, dropping event", "type", event.Type)
	}
}

func newRunID() string {
	return uuid.NewString()
}

// Variant returns the variant this orchestrator runs.
func (o *Orchestrator) Variant() Variant {
	return o.variant
}

// Session returns the shared session.
func (o *Orchestrator) Session() *Session {
	return o.deps.Session
}

// RunID identifies the current run in the journal.
func (o *Orchestrator) RunID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.runID
}

// Current returns the active stage.
func (o *Orchestrator) Current() Stage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.seq.Current()
}

// CanAdvance reports whether the active stage's guard holds.
func (o *Orchestrator) CanAdvance() bool {
	state := o.wctx.State()
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.seq.CanAdvance(state)
}

// Advance moves to the next stage. A failing guard leaves the stage
// unchanged and emits a rejection notice.
func (o *Orchestrator) Advance() error {
	state := o.wctx.State()

	o.mu.Lock()
	before := o.seq.Index()
	err := o.seq.Advance(state)
	stage := o.seq.Current()
	o.mu.Unlock()

	if err != nil {
		return o.fail("advance", err)
	}
	if stage.Index != before {
		o.stageChanged(stage)
	}
	return nil
}

// Retreat moves to the previous stage without discarding collected data.
func (o *Orchestrator) Retreat() {
	o.mu.Lock()
	moved := o.seq.Retreat()
	stage := o.seq.Current()
	o.mu.Unlock()

	if moved {
		o.stageChanged(stage)
	}
}

func (o *Orchestrator) stageChanged(stage Stage) {
	log.Debug("stage changed", "variant", o.variant.Name, "stage", stage.Title)
	o.record(RecordStage, fmt.Sprintf("%d", stage.Index), stage.Title, "")
	e := NewEvent(EventStageChanged, stage.Title)
	e.Stage = stage.Index
	o.emit(e)
}

// Snapshot is everything a front-end needs to render the wizard.
type Snapshot struct {
	State
	Variant        Variant
	RunID          string
	Stage          Stage
	CanAdvance     bool
	SuggestPending map[string]bool
	ApplyPending   map[string]bool
	AuditPending   map[string]bool
	PlanPending    bool
}

// Snapshot returns a consistent copy of the wizard state.
func (o *Orchestrator) Snapshot() Snapshot {
	state := o.wctx.State()

	o.mu.Lock()
	snap := Snapshot{
		State:      state,
		Variant:    o.variant,
		RunID:      o.runID,
		Stage:      o.seq.Current(),
		CanAdvance: o.seq.CanAdvance(state),
	}
	o.mu.Unlock()

	snap.SuggestPending = pendingKeys(o.suggestions)
	snap.ApplyPending = pendingKeys(o.applies)
	snap.AuditPending = pendingKeys(o.auditFixes)
	snap.PlanPending = len(pendingKeys(o.plans)) > 0
	return snap
}

func pendingKeys[V any](t *Tracker[string, V]) map[string]bool {
	out := make(map[string]bool)
	for _, k := range t.Keys() {
		if t.Pending(k) {
			out[k] = true
		}
	}
	return out
}

// setProject stores p and, when its identity changed, forgets every task
// started for the previous project. Selecting the analyzed project again
// keeps it as it is.
func (o *Orchestrator) setProject(p Project) error {
	changed, err := o.wctx.SetProject(p)
	if errors.Is(err, ErrProjectReadOnly) {
		log.Debug("project already analyzed, keeping it", "project", p.ID)
		return nil
	}
	if err != nil {
		return err
	}
	if changed {
		o.suggestions.Reset()
		o.applies.Reset()
		o.auditFixes.Reset()
		o.plans.Reset()
		log.Debug("project changed", "project", p.ID)
	}
	o.emit(NewEvent(EventProjectChanged, p.DisplayName()))
	return nil
}

// requireUpload returns the current project if it lives on the backend.
func (o *Orchestrator) requireUpload() (Project, error) {
	p, ok := o.wctx.Project()
	if !ok || p.Path == "" {
		return Project{}, invalid("project", "no project selected")
	}
	if p.Source.Kind != gateway.SourceUpload {
		return Project{}, invalid("project", "%s is not an uploaded project", p.DisplayName())
	}
	return p, nil
}

// stillCurrent reports whether p is still the selected project.
func (o *Orchestrator) stillCurrent(p Project) bool {
	cur, ok := o.wctx.Project()
	return ok && cur.ID == p.ID
}

// fail logs err, turns it into an error notice and returns it.
func (o *Orchestrator) fail(op string, err error) error {
	log.Warn("action failed", "op", op, "run", o.RunID(), "error", err)
	o.emit(NewErrorNotice(noticeText(err), err))
	return err
}

// noticeText renders err for a transient notification.
func noticeText(err error) string {
	var (
		domainErr     *gateway.DomainError
		validationErr *ValidationError
		guardErr      *GuardRejectedError
	)

	prefix := ""
	if errors.Is(err, ErrAnalysisFailed) {
		prefix = "Could not analyze the project: "
	}

	switch {
	case errors.Is(err, gateway.ErrAITimeout):
		return prefix + "The AI service took too long to answer. Try again."
	case errors.Is(err, gateway.ErrTimeout):
		return prefix + "The backend did not answer in time."
	case errors.As(err, &domainErr):
		return prefix + domainErr.Message
	case errors.As(err, &validationErr):
		return validationErr.Message
	case errors.As(err, &guardErr):
		return fmt.Sprintf("Finish %q before continuing.", guardErr.Stage)
	case errors.Is(err, ErrApplyInFlight):
		return "This fix is already being applied."
	}
	return prefix + err.Error()
}

// record writes a journal entry, opening the run on first use.
func (o *Orchestrator) record(kind, key, detail, backup string) {
	rec := o.deps.Recorder
	if rec == nil {
		return
	}

	o.mu.Lock()
	runID := o.runID
	first := !o.runRecorded
	o.runRecorded = true
	o.mu.Unlock()

	if first {
		projectID := ""
		if p, ok := o.wctx.Project(); ok {
			projectID = p.ID
		}
		if err := rec.RecordRun(runID, o.variant.Name, projectID); err != nil {
			log.Warn("failed to record run", "run", runID, "error", err)
		}
	}
	if err := rec.RecordEntry(runID, kind, key, detail, backup); err != nil {
		log.Warn("failed to record journal entry", "run", runID, "kind", kind, "error", err)
	}
}
