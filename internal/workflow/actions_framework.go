package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/gerunddev/ngmigrate/internal/gateway"
	"github.com/gerunddev/ngmigrate/internal/log"
)

// RequestMigrationPlan asks the AI service to re-scaffold the current
// project for the target framework. The plan's files become the context's
// file list. A failure leaves earlier analysis untouched.
func (o *Orchestrator) RequestMigrationPlan(ctx context.Context) (*gateway.MigrationPlan, error) {
	const op = "request migration plan"

	p, ok := o.wctx.Project()
	if !ok || p.Path == "" {
		return nil, o.fail(op, invalid("project", "no project selected"))
	}

	src := p.Source
	plan, applied, err := o.plans.Do(ctx, p.ID, func(ctx context.Context) (gateway.MigrationPlan, error) {
		plan, err := o.deps.Gateway.FrameworkMigration(ctx, gateway.FrameworkMigrationRequest{
			ProjectPath:   p.Path,
			ProjectSource: &src,
		})
		if err != nil {
			return gateway.MigrationPlan{}, err
		}
		return *plan, nil
	})
	if err != nil {
		if !applied {
			return nil, ErrSuperseded
		}
		return nil, o.fail(op, err)
	}

	o.rows.Lock()
	defer o.rows.Unlock()
	if !applied || !o.stillCurrent(p) {
		return nil, ErrSuperseded
	}
	o.wctx.SetFiles(plan.FileList)
	o.wctx.SetMigrationPlan(Plan{
		Structure:    plan.ProjectStructure,
		Notes:        plan.MigrationNotes,
		Dependencies: plan.Dependencies,
	})
	o.emit(NewEvent(EventPlanReady, fmt.Sprintf("%d files", len(plan.FileList))))
	return &plan, nil
}

// PreviewProject is the framework variant's preview action: analyze (or
// substitute placeholders for Git sources) and then request the migration
// plan. A failed plan is reported but the analysis result stands.
func (o *Orchestrator) PreviewProject(ctx context.Context) error {
	if _, err := o.AnalyzeProject(ctx); err != nil {
		return err
	}
	if _, err := o.RequestMigrationPlan(ctx); err != nil {
		log.Debug("preview finished without a plan", "error", err)
		return err
	}
	return nil
}

// CreateProject scaffolds a new project named name from files.
func (o *Orchestrator) CreateProject(ctx context.Context, files []gateway.MigrationFile, name string) (*gateway.WriteResult, error) {
	const op = "create project"

	name = strings.TrimSpace(name)
	if len(files) == 0 {
		return nil, o.fail(op, invalid("files", "there are no files to create"))
	}
	if name == "" {
		return nil, o.fail(op, invalid("name", "project name is required"))
	}

	res, err := o.deps.Gateway.CreateProject(ctx, name, files)
	if err != nil {
		return nil, o.fail(op, err)
	}

	o.record(RecordCreate, name, fmt.Sprintf("%d files", len(files)), res.Backup)
	msg := fmt.Sprintf("Created %s: %s", name, res.Message)
	if res.Backup != "" {
		msg += " (backup: " + res.Backup + ")"
	}
	o.emit(NewEvent(EventProjectCreated, msg))
	o.emit(NewNotice(msg))
	return res, nil
}
