package workflow

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/gerunddev/ngmigrate/internal/gateway"
)

// Project is the project a run operates on.
type Project struct {
	ID           string // Identity: backend path for uploads, the Git URL for Git sources
	Path         string // Backend project path sent to analysis calls
	Source       gateway.Source
	Version      string
	Dependencies map[string]string
	Analyzed     bool
	Placeholder  bool // Metadata was substituted rather than fetched
}

// DisplayName returns the identity to show for the project. Git projects
// without a URL fall back to the raw project path.
func (p Project) DisplayName() string {
	if p.Source.Kind == gateway.SourceGit && p.Source.GitURL != "" {
		return p.Source.GitURL
	}
	if p.Path != "" {
		return p.Path
	}
	return p.ID
}

func (p Project) clone() Project {
	p.Dependencies = maps.Clone(p.Dependencies)
	return p
}

// Warning is one detected deprecated or incompatible code pattern.
type Warning struct {
	Key         string
	FilePath    string
	FileName    string
	Description string
}

// SuggestionStatus is the lifecycle state of a Suggestion row.
type SuggestionStatus string

const (
	StatusIdle    SuggestionStatus = "idle"
	StatusPending SuggestionStatus = "pending"
	StatusReady   SuggestionStatus = "ready"
	StatusApplied SuggestionStatus = "applied"
	StatusError   SuggestionStatus = "error"
)

// ApplyRecord is one successful backend write of a proposal.
type ApplyRecord struct {
	Message string
	Backup  string
	At      time.Time
}

// Suggestion is the AI proposal for one warning.
type Suggestion struct {
	Key             string
	FileName        string
	FilePath        string
	OriginalCode    string
	ProposedCode    string
	Explanation     string
	SuggestedPrompt string
	Status          SuggestionStatus
	Err             string
	Applies         []ApplyRecord
}

// Applied reports whether any proposal for this warning was written.
func (s Suggestion) Applied() bool {
	return len(s.Applies) > 0
}

func (s Suggestion) clone() Suggestion {
	s.Applies = slices.Clone(s.Applies)
	return s
}

// AlertItem is a vulnerability alert with its run-unique key.
type AlertItem struct {
	Key string
	gateway.Alert
}

// Plan is the framework migration plan, without its file list.
type Plan struct {
	Structure    string
	Notes        string
	Dependencies []gateway.PlanDependency
}

// State is a read-only copy of the context.
type State struct {
	Project     *Project
	Warnings    []Warning
	Scanned     bool
	Suggestions map[string]Suggestion
	Alerts      []AlertItem
	Audited     bool
	AuditFixes  map[string]gateway.AuditFix
	Files       []gateway.MigrationFile
	Plan        *Plan
}

// Context holds the state shared across stages. Only the orchestrator
// mutates it, through the setters below.
type Context struct {
	mu sync.Mutex

	project     *Project
	warnings    []Warning
	warningIdx  map[string]int
	scanned     bool
	suggestions map[string]*Suggestion
	alerts      []AlertItem
	alertIdx    map[string]int
	audited     bool
	fixes       map[string]gateway.AuditFix
	files       []gateway.MigrationFile
	plan        *Plan
}

// NewContext creates an empty context.
func NewContext() *Context {
	c := &Context{}
	c.clearLocked()
	return c
}

func (c *Context) clearLocked() {
	c.warnings = nil
	c.warningIdx = make(map[string]int)
	c.scanned = false
	c.suggestions = make(map[string]*Suggestion)
	c.alerts = nil
	c.alertIdx = make(map[string]int)
	c.audited = false
	c.fixes = make(map[string]gateway.AuditFix)
	c.files = nil
	c.plan = nil
}

// SetProject replaces the project. A different identity clears every
// collection derived from the previous project and reports changed.
// Overwriting an analyzed project with the same identity fails.
func (c *Context) SetProject(p Project) (changed bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.project != nil && c.project.ID == p.ID {
		if c.project.Analyzed {
			return false, ErrProjectReadOnly
		}
		np := p.clone()
		c.project = &np
		return false, nil
	}

	np := p.clone()
	c.project = &np
	c.clearLocked()
	return true, nil
}

// Project returns a copy of the current project.
func (c *Context) Project() (Project, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.project == nil {
		return Project{}, false
	}
	return c.project.clone(), true
}

// AppendWarnings adds warnings whose key is not yet known, keeping order,
// and marks the project as scanned. It returns how many were added.
func (c *Context) AppendWarnings(ws []Warning) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	added := 0
	for _, w := range ws {
		if _, ok := c.warningIdx[w.Key]; ok {
			continue
		}
		c.warningIdx[w.Key] = len(c.warnings)
		c.warnings = append(c.warnings, w)
		added++
	}
	c.scanned = true
	return added
}

// Warning returns the warning with the given key.
func (c *Context) Warning(key string) (Warning, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.warningIdx[key]
	if !ok {
		return Warning{}, false
	}
	return c.warnings[i], true
}

// Warnings returns the warnings in scan order.
func (c *Context) Warnings() []Warning {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.warnings)
}

// UpsertSuggestion creates the suggestion for key on first use and applies
// mutate to it. Keys without a warning are rejected. The apply history never
// shrinks and an applied suggestion never falls back to idle.
func (c *Context) UpsertSuggestion(key string, mutate func(*Suggestion)) (Suggestion, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.warningIdx[key]; !ok {
		return Suggestion{}, ErrUnknownKey
	}

	s, ok := c.suggestions[key]
	if !ok {
		w := c.warnings[c.warningIdx[key]]
		s = &Suggestion{Key: key, FileName: w.FileName, FilePath: w.FilePath, Status: StatusIdle}
		c.suggestions[key] = s
	}

	history := s.Applies
	mutate(s)
	s.Key = key
	if len(s.Applies) < len(history) {
		s.Applies = history
	}
	if s.Status == StatusIdle && len(s.Applies) > 0 {
		s.Status = StatusApplied
	}
	return s.clone(), nil
}

// Suggestion returns the suggestion for key.
func (c *Context) Suggestion(key string) (Suggestion, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.suggestions[key]
	if !ok {
		return Suggestion{}, false
	}
	return s.clone(), true
}

// SetAlerts replaces the audit alerts and marks the project as audited.
// Fixes for alerts that are no longer reported are dropped.
func (c *Context) SetAlerts(alerts []AlertItem) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.alerts = slices.Clone(alerts)
	c.alertIdx = make(map[string]int, len(alerts))
	for i, a := range c.alerts {
		c.alertIdx[a.Key] = i
	}
	for key := range c.fixes {
		if _, ok := c.alertIdx[key]; !ok {
			delete(c.fixes, key)
		}
	}
	c.audited = true
}

// Alert returns the alert with the given key.
func (c *Context) Alert(key string) (AlertItem, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.alertIdx[key]
	if !ok {
		return AlertItem{}, false
	}
	return c.alerts[i], true
}

// SetAuditFix stores the remediation for one alert.
func (c *Context) SetAuditFix(key string, fix gateway.AuditFix) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.alertIdx[key]; !ok {
		return ErrUnknownKey
	}
	c.fixes[key] = fix
	return nil
}

// SetFiles replaces the generated file list.
func (c *Context) SetFiles(files []gateway.MigrationFile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files = slices.Clone(files)
}

// SetMigrationPlan stores the plan metadata.
func (c *Context) SetMigrationPlan(p Plan) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p.Dependencies = slices.Clone(p.Dependencies)
	c.plan = &p
}

// Reset drops the project and everything collected for it.
func (c *Context) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.project = nil
	c.clearLocked()
}

// State returns a deep copy of the context.
func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := State{
		Warnings:    slices.Clone(c.warnings),
		Scanned:     c.scanned,
		Suggestions: make(map[string]Suggestion, len(c.suggestions)),
		Alerts:      slices.Clone(c.alerts),
		Audited:     c.audited,
		AuditFixes:  maps.Clone(c.fixes),
		Files:       slices.Clone(c.files),
	}
	if c.project != nil {
		p := c.project.clone()
		s.Project = &p
	}
	for k, v := range c.suggestions {
		s.Suggestions[k] = v.clone()
	}
	if c.plan != nil {
		p := *c.plan
		p.Dependencies = slices.Clone(p.Dependencies)
		s.Plan = &p
	}
	return s
}
