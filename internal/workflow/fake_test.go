package workflow

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/gerunddev/ngmigrate/internal/gateway"
)

// fakeGateway is an in-memory Gateway. Hooks override the canned responses.
type fakeGateway struct {
	mu sync.Mutex

	uploadPath string
	info       *gateway.ProjectInfo
	infoErr    error
	warnings   []gateway.RawWarning
	alerts     []gateway.Alert
	files      map[string]string
	projects   []gateway.ProjectEntry
	plan       *gateway.MigrationPlan
	planErr    error
	applyErr   error
	createErr  error

	suggestHook func(ctx context.Context, req gateway.SuggestRequest) (*gateway.SuggestResponse, error)
	auditHook   func(ctx context.Context, a gateway.Alert) (*gateway.AuditFix, error)
	applyGate   chan struct{}

	infoCalls    int
	warningCalls int
	fileCalls    int
	suggestCalls []gateway.SuggestRequest
	applyCalls   []applyCall
	createCalls  int
	planCalls    []gateway.FrameworkMigrationRequest
}

type applyCall struct {
	filePath string
	code     string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		uploadPath: "projects/abc/shop",
		info:       &gateway.ProjectInfo{Version: "15.2.0", Dependencies: map[string]string{"@angular/core": "^15.2.0"}},
		files:      map[string]string{},
	}
}

func (f *fakeGateway) UploadProject(_ context.Context, _ string, r io.Reader, size int64, progress gateway.ProgressFunc) (*gateway.UploadResult, error) {
	n, err := io.Copy(io.Discard, r)
	if err != nil {
		return nil, err
	}
	if progress != nil {
		progress(n, size)
	}
	return &gateway.UploadResult{Message: "Project uploaded", ProjectPath: f.uploadPath}, nil
}

func (f *fakeGateway) ListProjects(context.Context) ([]gateway.ProjectEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.projects, nil
}

func (f *fakeGateway) ProjectInfo(context.Context, string) (*gateway.ProjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.infoCalls++
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	info := *f.info
	return &info, nil
}

func (f *fakeGateway) Warnings(context.Context, string, gateway.LineRange) ([]gateway.RawWarning, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.warningCalls++
	return f.warnings, nil
}

func (f *fakeGateway) Audit(context.Context, string) ([]gateway.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alerts, nil
}

func (f *fakeGateway) FileContent(_ context.Context, _ string, file string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fileCalls++
	if code, ok := f.files[file]; ok {
		return code, nil
	}
	return "// " + file, nil
}

func (f *fakeGateway) ApplySuggestion(ctx context.Context, filePath, code string) (*gateway.WriteResult, error) {
	f.mu.Lock()
	gate := f.applyGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.applyErr != nil {
		return nil, f.applyErr
	}
	f.applyCalls = append(f.applyCalls, applyCall{filePath: filePath, code: code})
	return &gateway.WriteResult{Message: "Written", Backup: fmt.Sprintf("backups/%d.bak", len(f.applyCalls))}, nil
}

func (f *fakeGateway) Suggest(ctx context.Context, req gateway.SuggestRequest) (*gateway.SuggestResponse, error) {
	f.mu.Lock()
	f.suggestCalls = append(f.suggestCalls, req)
	hook := f.suggestHook
	f.mu.Unlock()

	if hook != nil {
		return hook(ctx, req)
	}
	return &gateway.SuggestResponse{
		CodeUpdated:     "fixed(" + req.Code + ")",
		Explanation:     "explained",
		SuggestedPrompt: "Keep the public API unchanged.",
	}, nil
}

func (f *fakeGateway) AuditSuggestion(ctx context.Context, a gateway.Alert) (*gateway.AuditFix, error) {
	f.mu.Lock()
	hook := f.auditHook
	f.mu.Unlock()

	if hook != nil {
		return hook(ctx, a)
	}
	return &gateway.AuditFix{Fix: "npm install " + a.Module + "@latest", Explanation: a.Recommendation}, nil
}

func (f *fakeGateway) FrameworkMigration(_ context.Context, req gateway.FrameworkMigrationRequest) (*gateway.MigrationPlan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.planCalls = append(f.planCalls, req)
	if f.planErr != nil {
		return nil, f.planErr
	}
	if f.plan == nil {
		return &gateway.MigrationPlan{FileList: []gateway.MigrationFile{}}, nil
	}
	plan := *f.plan
	return &plan, nil
}

func (f *fakeGateway) CreateProject(context.Context, string, []gateway.MigrationFile) (*gateway.WriteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &gateway.WriteResult{Message: "Project created", Backup: "backups/demo.bak"}, nil
}

func (f *fakeGateway) applyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.applyCalls)
}

// fakeRecorder collects journal writes.
type fakeRecorder struct {
	mu      sync.Mutex
	runs    []string
	entries []recordedEntry
}

type recordedEntry struct {
	runID, kind, key, detail, backup string
}

func (r *fakeRecorder) RecordRun(runID, variant, projectID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, runID+"|"+variant+"|"+projectID)
	return nil
}

func (r *fakeRecorder) RecordEntry(runID, kind, key, detail, backup string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, recordedEntry{runID, kind, key, detail, backup})
	return nil
}

func (r *fakeRecorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.entries {
		out = append(out, e.kind)
	}
	return out
}

// newTestOrchestrator creates an orchestrator over a fake gateway.
func newTestOrchestrator(t *testing.T, variant string, gw *fakeGateway) *Orchestrator {
	t.Helper()
	o, err := New(Config{Variant: variant}, Deps{Gateway: gw})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(o.Close)
	return o
}

// uploadAndScan drives a fix orchestrator to a scanned project.
func uploadAndScan(t *testing.T, o *Orchestrator, gw *fakeGateway, raws ...gateway.RawWarning) []Warning {
	t.Helper()
	gw.warnings = raws

	ctx := context.Background()
	if _, err := o.UploadProject(ctx, "shop.zip", strings.NewReader("zip"), 3); err != nil {
		t.Fatalf("UploadProject: %v", err)
	}
	if _, err := o.AnalyzeProject(ctx); err != nil {
		t.Fatalf("AnalyzeProject: %v", err)
	}
	ws, err := o.ScanWarnings(ctx, gateway.LineRange{})
	if err != nil {
		t.Fatalf("ScanWarnings: %v", err)
	}
	return ws
}

// drainEvents returns the events buffered so far.
func drainEvents(o *Orchestrator) []Event {
	var out []Event
	for {
		select {
		case e, ok := <-o.Events():
			if !ok {
				return out
			}
			out = append(out, e)
		default:
			return out
		}
	}
}

func errorNotices(events []Event) []Event {
	var out []Event
	for _, e := range events {
		if e.Type == EventNotice && e.Level == NoticeError {
			out = append(out, e)
		}
	}
	return out
}

func line(s string) gateway.RawWarning {
	return gateway.RawWarning{Line: s}
}
