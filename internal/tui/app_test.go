package tui

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gerunddev/ngmigrate/internal/gateway"
	"github.com/gerunddev/ngmigrate/internal/gateway/gatewaytest"
	"github.com/gerunddev/ngmigrate/internal/workflow"
)

// newTestModel creates a model over an orchestrator talking to a fake backend.
func newTestModel(t *testing.T, variant string, opts Options) (Model, *workflow.Orchestrator, *gatewaytest.Backend) {
	t.Helper()
	b := gatewaytest.New(t)
	c, err := gateway.NewClient(gateway.ClientConfig{BaseURL: b.URL()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	o, err := workflow.New(workflow.Config{Variant: variant}, workflow.Deps{Gateway: c})
	if err != nil {
		t.Fatalf("workflow.New: %v", err)
	}
	t.Cleanup(o.Close)

	m := NewModel(o, opts)
	t.Cleanup(m.Close)
	m = updateModel(m, tea.WindowSizeMsg{Width: 120, Height: 40})
	return m, o, b
}

// Helper to update and cast the model
func updateModel(m Model, msg tea.Msg) Model {
	updated, _ := m.Update(msg)
	return updated.(Model)
}

// press sends a key ("enter", "esc" or runes) to the model.
func press(m Model, k string) (Model, tea.Cmd) {
	var msg tea.KeyMsg
	switch k {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+u":
		msg = tea.KeyMsg{Type: tea.KeyCtrlU}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	updated, cmd := m.Update(msg)
	return updated.(Model), cmd
}

// runAction executes an action command and feeds its result back.
func runAction(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected an action command")
	}
	msg := cmd()
	if _, ok := msg.(actionDoneMsg); !ok {
		t.Fatalf("expected actionDoneMsg, got %T", msg)
	}
	return pump(updateModel(m, msg))
}

// pump feeds every buffered workflow event to the model.
func pump(m Model) Model {
	for {
		select {
		case e, ok := <-m.orch.Events():
			if !ok {
				return m
			}
			m.handleEvent(e)
		default:
			return m
		}
	}
}

func writeArchive(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shop.zip")
	if err := os.WriteFile(path, []byte("PK\x03\x04"), 0644); err != nil {
		t.Fatalf("failed to write archive: %v", err)
	}
	return path
}

func TestNewModel(t *testing.T) {
	m, _, _ := newTestModel(t, workflow.VariantFix, Options{})

	if m.quitting {
		t.Error("expected quitting to be false initially")
	}
	if m.detail == nil {
		t.Error("expected detail panel to be initialized")
	}
	if m.header.Title != "Upgrade and fix" {
		t.Errorf("unexpected header title %q", m.header.Title)
	}
	if len(m.header.Stages) != 5 || m.header.Current != 0 {
		t.Errorf("unexpected stages %v at %d", m.header.Stages, m.header.Current)
	}
	if len(m.rows) != 0 {
		t.Errorf("expected no rows, got %d", len(m.rows))
	}
}

func TestModel_Init(t *testing.T) {
	m, _, _ := newTestModel(t, workflow.VariantFix, Options{})
	if m.Init() == nil {
		t.Error("expected init command")
	}
}

func TestModel_WindowSizeMsg(t *testing.T) {
	m, _, _ := newTestModel(t, workflow.VariantFix, Options{})

	if m.width != 120 || m.height != 40 {
		t.Errorf("unexpected size %dx%d", m.width, m.height)
	}
	if !m.initialized {
		t.Error("expected initialized to be true after WindowSizeMsg")
	}
}

func TestModel_QuitKey(t *testing.T) {
	m, _, _ := newTestModel(t, workflow.VariantFix, Options{})

	m, cmd := press(m, "q")
	if !m.quitting {
		t.Error("expected quitting to be true after 'q' key")
	}
	if cmd == nil {
		t.Error("expected quit command to be returned")
	}
	if m.ctx.Err() == nil {
		t.Error("expected running actions to be cancelled")
	}
	if m.View() != "Goodbye!\n" {
		t.Errorf("unexpected view %q", m.View())
	}
}

func TestModel_AdvanceRejected(t *testing.T) {
	m, _, _ := newTestModel(t, workflow.VariantFix, Options{})

	m, _ = press(m, "n")
	m = pump(m)

	if m.snap.Stage.Index != 0 {
		t.Errorf("expected to stay on the first stage, got %d", m.snap.Stage.Index)
	}
	if !m.noticeError || !strings.Contains(m.notice, "Upload") {
		t.Errorf("expected rejection notice, got %q (error=%v)", m.notice, m.noticeError)
	}
}

func TestModel_UploadWithoutArchive(t *testing.T) {
	m, _, _ := newTestModel(t, workflow.VariantFix, Options{})

	m, cmd := press(m, "enter")
	if cmd != nil {
		t.Error("expected no command without an archive")
	}
	if !strings.Contains(m.notice, "--upload") {
		t.Errorf("expected usage notice, got %q", m.notice)
	}
}

func TestModel_FixWorkflow(t *testing.T) {
	m, _, b := newTestModel(t, workflow.VariantFix, Options{UploadPath: writeArchive(t)})
	b.SetWarnings("[src/app/foo.ts] Uses deprecated NgModule")

	// Upload
	m, cmd := press(m, "enter")
	if m.busy != 1 {
		t.Errorf("expected busy while uploading, got %d", m.busy)
	}
	m = runAction(t, m, cmd)
	if m.busy != 0 {
		t.Errorf("expected idle after upload, got %d", m.busy)
	}
	if m.snap.Project == nil || m.snap.Project.Path != "projects/upload-1/shop" {
		t.Fatalf("expected uploaded project, got %+v", m.snap.Project)
	}
	if m.header.Project != "projects/upload-1/shop" {
		t.Errorf("header not updated: %q", m.header.Project)
	}

	// Analyze
	m, _ = press(m, "n")
	m, cmd = press(m, "enter")
	m = runAction(t, m, cmd)
	if !m.snap.Project.Analyzed {
		t.Fatal("expected analyzed project")
	}
	if !strings.Contains(m.detail.Content(), "15.2.0") {
		t.Errorf("expected version in project summary, got %q", m.detail.Content())
	}

	// Scan
	m, _ = press(m, "n")
	m, cmd = press(m, "enter")
	m = runAction(t, m, cmd)
	if len(m.rows) != 1 || !strings.Contains(m.rows[0].label, "foo.ts") {
		t.Fatalf("unexpected rows %+v", m.rows)
	}

	// Suggest
	m, cmd = press(m, "s")
	m = runAction(t, m, cmd)
	if m.rows[0].status != string(workflow.StatusReady) {
		t.Errorf("expected ready row, got %q", m.rows[0].status)
	}
	if !strings.Contains(m.detail.Content(), "Proposed") {
		t.Errorf("expected proposal in detail, got %q", m.detail.Content())
	}

	// Apply
	m, cmd = press(m, "a")
	m = runAction(t, m, cmd)
	if m.rows[0].status != string(workflow.StatusApplied) {
		t.Errorf("expected applied row, got %q", m.rows[0].status)
	}
	if n := len(b.Calls(gatewaytest.RouteApply)); n != 1 {
		t.Errorf("expected 1 apply call, got %d", n)
	}
	if !strings.Contains(m.detail.Content(), "backups/1.bak") {
		t.Errorf("expected backup in detail, got %q", m.detail.Content())
	}
}

func TestModel_Refine(t *testing.T) {
	m, o, b := newTestModel(t, workflow.VariantFix, Options{})
	b.SetWarnings("[src/app/foo.ts] Uses deprecated NgModule")

	ctx := context.Background()
	if _, err := o.UploadProject(ctx, "shop.zip", strings.NewReader("PK"), 2); err != nil {
		t.Fatalf("UploadProject: %v", err)
	}
	ws, err := o.ScanWarnings(ctx, gateway.LineRange{})
	if err != nil {
		t.Fatalf("ScanWarnings: %v", err)
	}
	if _, err := o.RequestSuggestion(ctx, ws[0].Key); err != nil {
		t.Fatalf("RequestSuggestion: %v", err)
	}
	m = pump(m)

	m, _ = press(m, "r")
	if m.mode != inputRefine {
		t.Fatalf("expected refine input, got mode %d", m.mode)
	}
	if m.input.Value() != "Keep the public API unchanged." {
		t.Errorf("expected input prefilled with the suggested prompt, got %q", m.input.Value())
	}

	// Keys go to the input, not to the key map.
	m, _ = press(m, "ctrl+u")
	m, _ = press(m, "keep imports")
	if m.input.Value() != "keep imports" {
		t.Errorf("unexpected input %q", m.input.Value())
	}
	if m.quitting {
		t.Error("typing must not trigger key bindings")
	}

	m, cmd := press(m, "enter")
	if m.mode != inputNone {
		t.Error("expected input closed after enter")
	}
	m = runAction(t, m, cmd)

	calls := b.Calls(gatewaytest.RouteSuggest)
	last := string(calls[len(calls)-1].Body)
	if !strings.Contains(last, `"prompt":"keep imports"`) {
		t.Errorf("expected prompt sent, got %s", last)
	}
}

func TestModel_InputEscCancels(t *testing.T) {
	m, o, b := newTestModel(t, workflow.VariantFix, Options{})
	b.SetWarnings("[a.ts] one")

	ctx := context.Background()
	if _, err := o.UploadProject(ctx, "shop.zip", strings.NewReader("PK"), 2); err != nil {
		t.Fatalf("UploadProject: %v", err)
	}
	if _, err := o.ScanWarnings(ctx, gateway.LineRange{}); err != nil {
		t.Fatalf("ScanWarnings: %v", err)
	}
	m = pump(m)

	m, _ = press(m, "r")
	m, _ = press(m, "abc")
	m, cmd := press(m, "esc")
	if m.mode != inputNone || cmd != nil {
		t.Error("expected esc to close the input without an action")
	}
	if m.input.Value() != "" {
		t.Errorf("expected input cleared, got %q", m.input.Value())
	}
}

func TestModel_AuditWorkflow(t *testing.T) {
	m, o, b := newTestModel(t, workflow.VariantAudit, Options{})
	b.SetAlerts(gateway.Alert{Module: "lodash", VulnerableVersions: "<4.17.21", Severity: "high", Recommendation: "Upgrade"})

	if _, err := o.UploadProject(context.Background(), "shop.zip", strings.NewReader("PK"), 2); err != nil {
		t.Fatalf("UploadProject: %v", err)
	}
	m = pump(m)

	m, _ = press(m, "n")
	if m.snap.Stage.Title != "Audit" {
		t.Fatalf("expected Audit stage, got %q", m.snap.Stage.Title)
	}
	m, cmd := press(m, "enter")
	m = runAction(t, m, cmd)
	if len(m.rows) != 1 || !strings.Contains(m.rows[0].label, "lodash") {
		t.Fatalf("unexpected rows %+v", m.rows)
	}

	m, cmd = press(m, "s")
	m = runAction(t, m, cmd)
	if !strings.Contains(m.detail.Content(), "npm install lodash@latest") {
		t.Errorf("expected fix in detail, got %q", m.detail.Content())
	}
	if m.rows[0].status != string(workflow.StatusReady) {
		t.Errorf("expected ready badge, got %q", m.rows[0].status)
	}
}

func TestModel_FrameworkWorkflow(t *testing.T) {
	m, o, b := newTestModel(t, workflow.VariantFramework, Options{ProjectName: "shop-react"})
	b.SetPlan(gateway.MigrationPlan{
		ProjectStructure: "src/",
		FileList: []gateway.MigrationFile{
			{FilePath: "src/main.tsx", FileName: "main.tsx", Content: "render(<App />)"},
			{FilePath: "src/App.tsx", FileName: "App.tsx", Content: "export function App() {}"},
		},
	})

	if err := o.SelectSource(gateway.Source{Kind: gateway.SourceGit, GitURL: "https://github.com/acme/shop"}); err != nil {
		t.Fatalf("SelectSource: %v", err)
	}
	m = pump(m)

	m, _ = press(m, "n")
	m, cmd := press(m, "enter")
	m = runAction(t, m, cmd)
	if len(m.rows) != 2 {
		t.Fatalf("expected 2 file rows, got %d", len(m.rows))
	}
	if !strings.Contains(m.detail.Content(), "render(<App />)") {
		t.Errorf("expected first file in detail, got %q", m.detail.Content())
	}

	m, _ = press(m, "j")
	if m.cursor != 1 || !strings.Contains(m.detail.Content(), "export function App") {
		t.Errorf("expected second file selected, got cursor %d", m.cursor)
	}

	m, _ = press(m, "n")
	m, _ = press(m, "enter")
	if m.mode != inputName || m.input.Value() != "shop-react" {
		t.Fatalf("expected name input with default, got mode %d value %q", m.mode, m.input.Value())
	}
	m, cmd = press(m, "enter")
	m = runAction(t, m, cmd)

	if n := len(b.Calls(gatewaytest.RouteCreate)); n != 1 {
		t.Errorf("expected 1 create call, got %d", n)
	}
	if !strings.Contains(m.notice, "Created shop-react") {
		t.Errorf("expected creation notice, got %q", m.notice)
	}
}

func TestModel_UploadProgress(t *testing.T) {
	m, _, _ := newTestModel(t, workflow.VariantFix, Options{})

	m.handleEvent(workflow.Event{Type: workflow.EventUploadProgress, Sent: 50, Total: 100, Message: "50 B / 100 B"})
	if !m.uploading {
		t.Fatal("expected upload in progress")
	}
	if view := m.progressView(); !strings.Contains(view, "50%") || !strings.Contains(view, "50 B / 100 B") {
		t.Errorf("unexpected progress view %q", view)
	}

	m.handleEvent(workflow.Event{Type: workflow.EventUploadProgress, Estimate: 100})
	if m.uploading {
		t.Error("expected progress hidden once finished")
	}
}

func TestModel_View(t *testing.T) {
	m, _, _ := newTestModel(t, workflow.VariantFix, Options{})
	m.setNotice("Uploaded shop.zip", false)

	view := m.View()
	for _, want := range []string{"Upgrade and fix", "1 Upload", "Scan the project", "Uploaded shop.zip"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q", want)
		}
	}
}

func TestModel_ViewBeforeSize(t *testing.T) {
	b := gatewaytest.New(t)
	c, err := gateway.NewClient(gateway.ClientConfig{BaseURL: b.URL()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	o, err := workflow.New(workflow.Config{}, workflow.Deps{Gateway: c})
	if err != nil {
		t.Fatalf("workflow.New: %v", err)
	}
	defer o.Close()

	m := NewModel(o, Options{})
	defer m.Close()
	if m.View() != "Initializing..." {
		t.Errorf("unexpected view %q", m.View())
	}
}

func TestModel_HelpToggle(t *testing.T) {
	m, _, _ := newTestModel(t, workflow.VariantFix, Options{})

	m, _ = press(m, "?")
	if !m.help.ShowAll {
		t.Error("expected full help")
	}
	m, _ = press(m, "?")
	if m.help.ShowAll {
		t.Error("expected short help")
	}
}
