package workflow

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/gerunddev/ngmigrate/internal/gateway"
	"github.com/gerunddev/ngmigrate/internal/log"
)

// gitURL accepts clone URLs over HTTP(S) or SSH and GitHub repository pages.
var gitURL = regexp.MustCompile(`^https?://.+\.git$|^git@.+:.+\.git$|^https://github\.com/.+/.+$`)

// Placeholder metadata for projects whose analysis is skipped.
const placeholderVersion = "Unknown"

// ValidGitURL reports whether s looks like a Git repository reference.
func ValidGitURL(s string) bool {
	return gitURL.MatchString(s)
}

// SelectSource records where the project comes from. A Git source becomes
// the project immediately; an upload source waits for UploadProject.
func (o *Orchestrator) SelectSource(src gateway.Source) error {
	const op = "select source"

	switch src.Kind {
	case gateway.SourceUpload:
		if p, ok := o.wctx.Project(); ok && p.Source.Kind == gateway.SourceUpload {
			return nil
		}
		src = gateway.Source{Kind: gateway.SourceUpload}
		if err := o.setProject(Project{Source: src}); err != nil {
			return o.fail(op, err)
		}
		// Nothing is uploaded yet; drop any Git selection from the session.
		o.deps.Session.Select("", src)
		return nil

	case gateway.SourceGit:
		url := strings.TrimSpace(src.GitURL)
		if url == "" {
			return o.fail(op, invalid("gitUrl", "Git URL is required"))
		}
		if !ValidGitURL(url) {
			return o.fail(op, invalid("gitUrl", "%q is not a Git repository URL", url))
		}
		if p, ok := o.wctx.Project(); ok && p.ID == url {
			return nil
		}

		src = gateway.Source{Kind: gateway.SourceGit, GitURL: url}
		if err := o.setProject(Project{ID: url, Path: url, Source: src}); err != nil {
			return o.fail(op, err)
		}
		o.deps.Session.Select(url, src)
		return nil
	}
	return o.fail(op, invalid("source", "unknown source kind %q", src.Kind))
}

// UploadProject streams an archive to the backend and makes the resulting
// backend path the current project. Real byte progress and a cosmetic
// estimate are both emitted as EventUploadProgress.
func (o *Orchestrator) UploadProject(ctx context.Context, fileName string, r io.Reader, size int64) (*gateway.UploadResult, error) {
	const op = "upload"

	if strings.TrimSpace(fileName) == "" {
		return nil, o.fail(op, invalid("file", "archive name is required"))
	}

	est := NewEstimatedProgress()
	estCtx, stopEstimate := context.WithCancel(ctx)
	estDone := make(chan struct{})
	go func() {
		defer close(estDone)
		est.Run(estCtx, func(v float64) {
			o.emit(Event{Type: EventUploadProgress, Estimate: v})
		})
	}()

	res, err := o.deps.Gateway.UploadProject(ctx, fileName, r, size, o.uploadProgress())
	stopEstimate()
	<-estDone
	if err != nil {
		return nil, o.fail(op, err)
	}

	src := gateway.Source{Kind: gateway.SourceUpload}
	if err := o.setProject(Project{ID: res.ProjectPath, Path: res.ProjectPath, Source: src}); err != nil {
		return nil, o.fail(op, err)
	}
	o.deps.Session.Select(res.ProjectPath, src)

	est.Finish()
	o.emit(Event{Type: EventUploadProgress, Estimate: est.Value()})
	o.record(RecordUpload, res.ProjectPath, fileName, "")
	o.emit(NewNotice(fmt.Sprintf("Uploaded %s", fileName)))
	log.Info("project uploaded", "file", fileName, "path", res.ProjectPath)
	return res, nil
}

// uploadProgress emits real transfer progress at most once per percent.
func (o *Orchestrator) uploadProgress() gateway.ProgressFunc {
	var last int64
	return func(sent, total int64) {
		step := total / 100
		if total <= 0 {
			step = 256 << 10
		}
		if sent != total && sent-last < step {
			return
		}
		last = sent

		msg := humanize.Bytes(uint64(sent))
		if total > 0 {
			msg += " / " + humanize.Bytes(uint64(total))
		}
		o.emit(Event{Type: EventUploadProgress, Sent: sent, Total: total, Message: msg})
	}
}

// AnalyzeProject fetches the project's framework version and dependencies.
// Git projects skip the fetch and continue with placeholder metadata.
// Analyzing an analyzed project returns it unchanged.
func (o *Orchestrator) AnalyzeProject(ctx context.Context) (Project, error) {
	const op = "analyze"

	p, ok := o.wctx.Project()
	if !ok || p.Path == "" {
		return Project{}, o.fail(op, invalid("project", "no project selected"))
	}
	if p.Analyzed {
		return p, nil
	}

	if p.Source.Kind == gateway.SourceGit {
		p.Version = placeholderVersion
		p.Dependencies = map[string]string{}
		p.Analyzed = true
		p.Placeholder = true
		if err := o.setProject(p); err != nil {
			return Project{}, o.fail(op, err)
		}
		return p, nil
	}

	info, err := o.deps.Gateway.ProjectInfo(ctx, p.Path)
	if err != nil {
		return Project{}, o.fail(op, fmt.Errorf("%w: %w", ErrAnalysisFailed, err))
	}
	if !o.stillCurrent(p) {
		return Project{}, ErrSuperseded
	}

	p.Version = info.Version
	p.Dependencies = info.Dependencies
	p.Analyzed = true
	if err := o.setProject(p); err != nil {
		return Project{}, o.fail(op, err)
	}
	o.emit(NewNotice(fmt.Sprintf("Detected version %s with %d dependencies", p.Version, len(p.Dependencies))))
	return p, nil
}

// ListProjects returns the projects already uploaded to the backend.
func (o *Orchestrator) ListProjects(ctx context.Context) ([]gateway.ProjectEntry, error) {
	entries, err := o.deps.Gateway.ListProjects(ctx)
	if err != nil {
		return nil, o.fail("list projects", err)
	}
	return entries, nil
}

// OpenProject makes a previously uploaded project current.
func (o *Orchestrator) OpenProject(entry gateway.ProjectEntry) error {
	const op = "open project"

	if entry.ID == "" {
		return o.fail(op, invalid("project", "project id is required"))
	}
	path := entry.Path()
	if p, ok := o.wctx.Project(); ok && p.ID == path {
		return nil
	}

	src := gateway.Source{Kind: gateway.SourceUpload}
	if err := o.setProject(Project{ID: path, Path: path, Source: src}); err != nil {
		return o.fail(op, err)
	}
	o.deps.Session.Select(path, src)
	return nil
}

// NewProject clears the session and starts a fresh run at the first stage.
func (o *Orchestrator) NewProject() {
	o.deps.Session.Reset()
	o.wctx.Reset()
	o.suggestions.Reset()
	o.applies.Reset()
	o.auditFixes.Reset()
	o.plans.Reset()

	o.mu.Lock()
	o.seq.Reset()
	o.runID = newRunID()
	o.runRecorded = false
	stage := o.seq.Current()
	o.mu.Unlock()

	o.emit(NewEvent(EventProjectChanged, ""))
	e := NewEvent(EventStageChanged, stage.Title)
	e.Stage = stage.Index
	o.emit(e)
}
