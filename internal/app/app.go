// Package app provides the application orchestration for ngmigrate.
// It connects config, the backend gateway, the replay journal and the
// workflow orchestrator to the TUI, handling the full lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gerunddev/ngmigrate/internal/config"
	"github.com/gerunddev/ngmigrate/internal/gateway"
	"github.com/gerunddev/ngmigrate/internal/journal"
	"github.com/gerunddev/ngmigrate/internal/log"
	"github.com/gerunddev/ngmigrate/internal/tui"
	"github.com/gerunddev/ngmigrate/internal/workflow"
)

// logFileName is the log file kept in the state directory while the TUI runs.
const logFileName = "ngmigrate.log"

// App orchestrates one wizard run and the TUI.
type App struct {
	cfg  *config.Config
	opts Config

	gateway gateway.Gateway
	journal *journal.Journal
	session *workflow.Session
	logFile *os.File

	// For testing: allow injecting a fake gateway
	gatewayOverride gateway.Gateway
}

// Config holds the per-invocation options for creating a new App.
type Config struct {
	// Variant selects the wizard. If empty, uses default_variant from config.
	Variant string

	// At most one of UploadPath, GitURL and ProjectPath selects the project.
	UploadPath  string
	GitURL      string
	ProjectPath string // "projects/<id>/<folder>", "<id>/<folder>" or "<id>"

	// ProjectName is the default name offered when creating a project.
	ProjectName string

	// NoJournal disables the replay journal for this run.
	NoJournal bool
}

// New creates a new App from the standard configuration.
func New(cfg Config) (*App, error) {
	appConfig, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewWithConfig(appConfig, cfg)
}

// NewWithConfig creates a new App from an already loaded configuration.
func NewWithConfig(appConfig *config.Config, cfg Config) (*App, error) {
	if appConfig == nil {
		return nil, errors.New("config is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Variant == "" {
		cfg.Variant = appConfig.DefaultVariant
	}
	if _, err := workflow.LookupVariant(cfg.Variant); err != nil {
		return nil, err
	}
	if !log.SetLevelName(appConfig.LogLevel) {
		log.Warn("unknown log level, keeping default", "level", appConfig.LogLevel)
	}

	return &App{
		cfg:     appConfig,
		opts:    cfg,
		session: workflow.NewSession(),
	}, nil
}

func (c Config) validate() error {
	n := 0
	for _, s := range []string{c.UploadPath, c.GitURL, c.ProjectPath} {
		if s != "" {
			n++
		}
	}
	if n > 1 {
		return errors.New("only one of --upload, --git and --project may be given")
	}
	if c.UploadPath != "" && !strings.HasSuffix(strings.ToLower(c.UploadPath), ".zip") {
		return fmt.Errorf("upload must be a .zip archive: %s", c.UploadPath)
	}
	return nil
}

// SetGateway allows injecting a fake gateway for testing.
func (a *App) SetGateway(g gateway.Gateway) {
	a.gatewayOverride = g
}

// Run starts the wizard with the TUI and blocks until the user quits.
func (a *App) Run(ctx context.Context) error {
	if err := a.redirectLog(); err != nil {
		return err
	}

	orch, err := a.prepare()
	if err != nil {
		a.cleanup()
		return err
	}
	defer a.cleanup()
	defer orch.Close()

	err = tui.Run(ctx, orch, tui.Options{
		UploadPath:  a.opts.UploadPath,
		Range:       gateway.LineRange{From: a.cfg.Warnings.From, To: a.cfg.Warnings.To},
		ProjectName: a.opts.ProjectName,
	})
	if err != nil {
		log.Error("wizard exited with error", "run", orch.RunID(), "error", err)
	}
	return err
}

// Projects lists the projects previously uploaded to the backend.
func (a *App) Projects(ctx context.Context) ([]gateway.ProjectEntry, error) {
	if err := a.initGateway(); err != nil {
		return nil, err
	}
	return a.gateway.ListProjects(ctx)
}

// Runs lists journaled runs, newest first. limit <= 0 lists all.
func (a *App) Runs(limit int) ([]*journal.Run, error) {
	j, err := a.openJournal()
	if err != nil {
		return nil, err
	}
	defer a.cleanup()
	return j.ListRuns(limit)
}

// RunEntries returns a journaled run and its entries in recording order.
func (a *App) RunEntries(runID string) (*journal.Run, []*journal.Entry, error) {
	j, err := a.openJournal()
	if err != nil {
		return nil, nil, err
	}
	defer a.cleanup()

	run, err := j.GetRun(runID)
	if err != nil {
		return nil, nil, err
	}
	entries, err := j.Entries(runID)
	if err != nil {
		return nil, nil, err
	}
	return run, entries, nil
}

// prepare initializes dependencies and creates the orchestrator with the
// project selected on the command line.
func (a *App) prepare() (*workflow.Orchestrator, error) {
	if err := a.initDependencies(); err != nil {
		return nil, err
	}
	orch, err := a.newOrchestrator()
	if err != nil {
		return nil, err
	}
	if err := a.selectInitial(orch); err != nil {
		orch.Close()
		return nil, err
	}
	return orch, nil
}

// initDependencies initializes the gateway and, unless disabled, the journal.
// A journal that cannot be opened only disables recording.
func (a *App) initDependencies() error {
	if err := a.initGateway(); err != nil {
		return err
	}
	if a.opts.NoJournal || a.cfg.JournalPath == "" {
		return nil
	}
	if _, err := a.openJournal(); err != nil {
		log.Warn("journal disabled", "path", a.cfg.JournalPath, "error", err)
	}
	return nil
}

func (a *App) initGateway() error {
	if a.gateway != nil {
		return nil
	}
	if a.gatewayOverride != nil {
		a.gateway = a.gatewayOverride
		return nil
	}

	client, err := gateway.NewClient(gateway.ClientConfig{
		BaseURL:          a.cfg.APIBaseURL,
		FastTimeout:      a.cfg.Timeouts.Fast.Std(),
		AITimeout:        a.cfg.Timeouts.AI.Std(),
		FrameworkTimeout: a.cfg.Timeouts.FrameworkMigration.Std(),
		FileCacheSize:    a.cfg.FileCacheSize,
	})
	if err != nil {
		return fmt.Errorf("failed to create backend client: %w", err)
	}
	a.gateway = client
	return nil
}

func (a *App) openJournal() (*journal.Journal, error) {
	if a.journal != nil {
		return a.journal, nil
	}
	if a.cfg.JournalPath == "" {
		return nil, errors.New("journal is disabled (journal_path is empty)")
	}
	j, err := journal.New(a.cfg.JournalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	a.journal = j
	return j, nil
}

func (a *App) newOrchestrator() (*workflow.Orchestrator, error) {
	deps := workflow.Deps{
		Gateway: a.gateway,
		Session: a.session,
	}
	// Only set when open, so the interface never holds a nil *Journal.
	if a.journal != nil {
		deps.Recorder = a.journal
	}

	return workflow.New(workflow.Config{
		Variant:            a.opts.Variant,
		SuggestConcurrency: a.cfg.SuggestConcurrency,
	}, deps)
}

// selectInitial makes the project given on the command line current.
func (a *App) selectInitial(orch *workflow.Orchestrator) error {
	switch {
	case a.opts.GitURL != "":
		return orch.SelectSource(gateway.Source{Kind: gateway.SourceGit, GitURL: a.opts.GitURL})
	case a.opts.ProjectPath != "":
		entry, err := ParseProjectPath(a.opts.ProjectPath)
		if err != nil {
			return err
		}
		return orch.OpenProject(entry)
	case a.opts.UploadPath != "":
		if _, err := os.Stat(a.opts.UploadPath); err != nil {
			return fmt.Errorf("cannot read archive: %w", err)
		}
		return orch.SelectSource(gateway.Source{Kind: gateway.SourceUpload})
	}
	return nil
}

// ParseProjectPath parses a backend project path as printed by the projects
// command into a project entry.
func ParseProjectPath(path string) (gateway.ProjectEntry, error) {
	p := strings.Trim(strings.TrimSpace(path), "/")
	p = strings.TrimPrefix(p, "projects/")
	if p == "" || p == "projects" {
		return gateway.ProjectEntry{}, fmt.Errorf("invalid project path %q", path)
	}
	id, folder, _ := strings.Cut(p, "/")
	return gateway.ProjectEntry{ID: id, OriginalFolder: folder}, nil
}

// redirectLog sends log output to a file in the state directory so it does
// not tear the alternate screen.
func (a *App) redirectLog() error {
	dir := a.cfg.StateDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, logFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	a.logFile = f
	log.SetOutput(f)
	return nil
}

// cleanup releases resources.
func (a *App) cleanup() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			log.Warn("failed to close journal", "error", err)
		}
		a.journal = nil
	}
	if a.logFile != nil {
		log.SetOutput(os.Stderr)
		if err := a.logFile.Close(); err != nil {
			log.CloseError("log file", err)
		}
		a.logFile = nil
	}
}
