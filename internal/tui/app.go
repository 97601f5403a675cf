package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gerunddev/ngmigrate/internal/gateway"
	"github.com/gerunddev/ngmigrate/internal/log"
	"github.com/gerunddev/ngmigrate/internal/workflow"
)

// Options configures what the wizard does on its own.
type Options struct {
	UploadPath  string            // Archive uploaded by the upload stage
	Range       gateway.LineRange // Line filter for warning scans
	ProjectName string            // Default name for a created project
}

// inputMode says what the text input is collecting.
type inputMode int

const (
	inputNone inputMode = iota
	inputRefine
	inputName
)

// Model is the main Bubble Tea model for the wizard.
type Model struct {
	orch *workflow.Orchestrator
	opts Options

	ctx    context.Context
	cancel context.CancelFunc

	header  Header
	detail  *DetailPanel
	help    help.Model
	spinner spinner.Model
	input   textinput.Model
	keys    KeyMap

	snap   workflow.Snapshot
	rows   []row
	cursor int
	busy   int // stage actions in flight
	mode   inputMode

	notice      string
	noticeError bool

	uploading  bool
	sent       int64
	total      int64
	estimate   float64
	uploadText string

	quitting    bool
	initialized bool
	width       int
	height      int
}

// NewModel creates a TUI model driving orch.
func NewModel(orch *workflow.Orchestrator, opts Options) Model {
	ctx, cancel := context.WithCancel(context.Background())

	detail := NewDetailPanel("Project")
	in := textinput.New()
	in.CharLimit = 500

	m := Model{
		orch:    orch,
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
		header:  NewHeader(),
		detail:  &detail,
		help:    help.New(),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(statusPendingStyle)),
		input:   in,
		keys:    DefaultKeyMap(),
	}
	m.refresh()
	return m
}

// EventMsg wraps a workflow event for Bubble Tea.
type EventMsg struct {
	Event workflow.Event
}

// EventsClosedMsg signals that the event channel has closed.
type EventsClosedMsg struct{}

// actionDoneMsg reports the end of an action started by the model.
type actionDoneMsg struct {
	op  string
	err error
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.listenForEvents(), m.spinner.Tick}
	if m.opts.UploadPath != "" && m.snap.Project == nil {
		cmds = append(cmds, m.uploadCmd())
	}
	return tea.Batch(cmds...)
}

// listenForEvents returns a command that listens for workflow events.
func (m Model) listenForEvents() tea.Cmd {
	events := m.orch.Events()
	return func() tea.Msg {
		event, ok := <-events
		if !ok {
			return EventsClosedMsg{}
		}
		return EventMsg{Event: event}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.initialized = true
		return m, nil

	case tea.KeyMsg:
		if m.mode != inputNone {
			return m.handleInput(msg)
		}
		return m.handleKey(msg)

	case EventMsg:
		m.handleEvent(msg.Event)
		return m, m.listenForEvents()

	case EventsClosedMsg:
		return m, nil

	case actionDoneMsg:
		if m.busy > 0 {
			m.busy--
		}
		// Failures were already reported as error notices.
		if msg.err != nil && !errors.Is(msg.err, workflow.ErrSuperseded) {
			log.Debug("action finished with error", "op", msg.op, "error", msg.err)
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.header.Status = m.statusText()
		return m, cmd
	}

	if m.mode != inputNone {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// handleKey handles keys while no input is open.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		m.cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.updateLayout()

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
			m.refresh()
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.rows)-1 {
			m.cursor++
			m.refresh()
		}

	case key.Matches(msg, m.keys.ScrollUp):
		m.detail.ScrollUp(5)

	case key.Matches(msg, m.keys.ScrollDown):
		m.detail.ScrollDown(5)

	case key.Matches(msg, m.keys.Next):
		// A rejection is reported through a notice event.
		_ = m.orch.Advance()
		m.refresh()

	case key.Matches(msg, m.keys.Back):
		m.orch.Retreat()
		m.refresh()

	case key.Matches(msg, m.keys.NewProject):
		m.orch.NewProject()
		m.cursor = 0
		m.refresh()

	case key.Matches(msg, m.keys.Run):
		return m.runStage()

	case key.Matches(msg, m.keys.Suggest):
		return m.suggestSelected()

	case key.Matches(msg, m.keys.SuggestAll):
		if m.snap.Variant.Name != workflow.VariantFix {
			return m, nil
		}
		return m.start("suggest all", func(ctx context.Context) error {
			_, err := m.orch.RequestAllSuggestions(ctx)
			return err
		})

	case key.Matches(msg, m.keys.Apply):
		if k := m.selectedKey(); k != "" && m.snap.Variant.Name == workflow.VariantFix {
			return m.start("apply", func(ctx context.Context) error {
				_, err := m.orch.ApplyFix(ctx, k)
				return err
			})
		}

	case key.Matches(msg, m.keys.Refine):
		if k := m.selectedKey(); k != "" && m.snap.Variant.Name == workflow.VariantFix {
			return m.openInput(inputRefine, "Instruction for the AI", m.snap.Suggestions[k].SuggestedPrompt)
		}
	}
	return m, nil
}

// handleInput handles keys while the text input is open.
func (m Model) handleInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.closeInput()
		return m, nil

	case tea.KeyEnter:
		value := m.input.Value()
		mode := m.mode
		m.closeInput()

		switch mode {
		case inputRefine:
			k := m.selectedKey()
			return m.start("refine", func(ctx context.Context) error {
				_, err := m.orch.RefineSuggestion(ctx, k, value)
				return err
			})
		case inputName:
			files := m.snap.Files
			return m.start("create project", func(ctx context.Context) error {
				_, err := m.orch.CreateProject(ctx, files, value)
				return err
			})
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) openInput(mode inputMode, placeholder, value string) (tea.Model, tea.Cmd) {
	m.mode = mode
	m.input.Placeholder = placeholder
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m, m.input.Focus()
}

func (m *Model) closeInput() {
	m.mode = inputNone
	m.input.Blur()
	m.input.Reset()
}

// runStage starts the active stage's action.
func (m Model) runStage() (tea.Model, tea.Cmd) {
	stage := m.snap.Stage

	switch stage.Title {
	case "Upload", "Select Source":
		if m.opts.UploadPath == "" {
			m.setNotice("Start ngmigrate with --upload <zip>, --git <url> or --project <path>.", false)
			return m, nil
		}
		m.busy++
		return m, m.uploadCmd()

	case "Analyze":
		return m.start("analyze", func(ctx context.Context) error {
			_, err := m.orch.AnalyzeProject(ctx)
			return err
		})

	case "Scan":
		rng := m.opts.Range
		return m.start("scan", func(ctx context.Context) error {
			_, err := m.orch.ScanWarnings(ctx, rng)
			return err
		})

	case "Suggest":
		return m.suggestSelected()

	case "Apply":
		k := m.selectedKey()
		if k == "" {
			return m, nil
		}
		return m.start("apply", func(ctx context.Context) error {
			_, err := m.orch.ApplyFix(ctx, k)
			return err
		})

	case "Audit":
		return m.start("audit", func(ctx context.Context) error {
			_, err := m.orch.AuditDependencies(ctx)
			return err
		})

	case "Preview":
		return m.start("preview", m.orch.PreviewProject)

	case "Create Project":
		return m.openInput(inputName, "Project name", m.opts.ProjectName)
	}
	return m, nil
}

// suggestSelected requests a suggestion (fix) or a remediation (audit) for the selected row.
func (m Model) suggestSelected() (tea.Model, tea.Cmd) {
	k := m.selectedKey()
	if k == "" {
		return m, nil
	}
	switch m.snap.Variant.Name {
	case workflow.VariantFix:
		return m.start("suggest", func(ctx context.Context) error {
			_, err := m.orch.RequestSuggestion(ctx, k)
			return err
		})
	case workflow.VariantAudit:
		return m.start("audit suggestion", func(ctx context.Context) error {
			_, err := m.orch.RequestAuditSuggestion(ctx, k)
			return err
		})
	}
	return m, nil
}

// start runs fn as a command and reports its end with actionDoneMsg.
func (m Model) start(op string, fn func(context.Context) error) (tea.Model, tea.Cmd) {
	m.busy++
	ctx := m.ctx
	return m, func() tea.Msg {
		return actionDoneMsg{op: op, err: fn(ctx)}
	}
}

// uploadCmd uploads the archive given in the options.
func (m Model) uploadCmd() tea.Cmd {
	path := m.opts.UploadPath
	orch := m.orch
	ctx := m.ctx
	return func() tea.Msg {
		f, err := os.Open(path)
		if err != nil {
			return actionDoneMsg{op: "upload", err: fmt.Errorf("failed to open archive: %w", err)}
		}
		defer func() {
			if err := f.Close(); err != nil {
				log.CloseError("archive", err)
			}
		}()

		size := int64(-1)
		if info, err := f.Stat(); err == nil {
			size = info.Size()
		}
		_, err = orch.UploadProject(ctx, filepath.Base(path), f, size)
		return actionDoneMsg{op: "upload", err: err}
	}
}

// handleEvent applies a workflow event to the view.
func (m *Model) handleEvent(e workflow.Event) {
	switch e.Type {
	case workflow.EventUploadProgress:
		m.uploading = true
		if e.Total != 0 || e.Sent != 0 {
			m.sent, m.total = e.Sent, e.Total
			m.uploadText = e.Message
		}
		if e.Estimate > 0 {
			m.estimate = e.Estimate
		}
		if m.estimate >= 100 {
			m.uploading = false
		}

	case workflow.EventNotice:
		m.setNotice(e.Message, e.Level == workflow.NoticeError)

	case workflow.EventProjectChanged:
		m.cursor = 0
	}
	m.refresh()
}

func (m *Model) setNotice(msg string, isErr bool) {
	m.notice = msg
	m.noticeError = isErr
}

// refresh re-reads the orchestrator snapshot.
func (m *Model) refresh() {
	m.snap = m.orch.Snapshot()
	m.rows = rowsFor(m.snap)
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}

	titles := make([]string, len(m.snap.Variant.Stages))
	for i, s := range m.snap.Variant.Stages {
		titles[i] = s.Title
	}
	m.header.Title = m.snap.Variant.Title
	m.header.SetStages(titles, m.snap.Stage.Index)
	m.header.Project = ""
	if m.snap.Project != nil {
		m.header.Project = m.snap.Project.DisplayName()
	}
	m.header.Status = m.statusText()

	title, content := detailFor(m.snap, m.selectedKey())
	m.detail.Title = title
	m.detail.SetContent(content)
}

func (m Model) statusText() string {
	if m.busy > 0 {
		return m.spinner.View() + headerLabelStyle.Render(" working")
	}
	return ""
}

func (m Model) selectedKey() string {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return ""
	}
	return m.rows[m.cursor].key
}

// updateLayout updates component sizes based on window size.
func (m *Model) updateLayout() {
	m.header.SetWidth(m.width)
	m.help.Width = m.width

	// Header (4) + notice, input and progress lines + help
	reserved := 8
	if m.help.ShowAll {
		reserved += 4
	}
	bodyHeight := m.height - reserved
	if bodyHeight < 8 {
		bodyHeight = 8
	}

	m.detail.SetSize(m.width-m.listWidth(), bodyHeight)
	m.detail.Focused = true
	m.input.Width = m.width - 30
}

func (m Model) listWidth() int {
	w := m.width * 2 / 5
	if w < 30 {
		w = 30
	}
	return w
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}
	if !m.initialized {
		return "Initializing..."
	}

	var s strings.Builder
	s.WriteString(m.header.View())
	s.WriteString("\n")

	body := lipgloss.JoinHorizontal(lipgloss.Top, m.listView(), m.detail.View())
	s.WriteString(body)
	s.WriteString("\n")

	if m.uploading {
		s.WriteString(m.progressView())
		s.WriteString("\n")
	}
	if m.mode != inputNone {
		s.WriteString(inputLabelStyle.Render("› ") + m.input.View())
		s.WriteString("\n")
	}
	if m.notice != "" {
		style := noticeInfoStyle
		if m.noticeError {
			style = noticeErrorStyle
		}
		s.WriteString(style.Render(truncate(m.notice, m.width)))
		s.WriteString("\n")
	}
	s.WriteString(m.help.View(m.keys))

	return lipgloss.NewStyle().MaxWidth(m.width).Render(s.String())
}

// listView renders the item list with the cursor and row badges.
func (m Model) listView() string {
	width := m.listWidth() - 4
	height := m.detail.height - 2

	var s strings.Builder
	if len(m.rows) == 0 {
		s.WriteString(emptyStateStyle.Render(m.emptyText()))
	}

	start := 0
	if m.cursor >= height {
		start = m.cursor - height + 1
	}
	for i := start; i < len(m.rows) && i < start+height; i++ {
		r := m.rows[i]
		cursor := "  "
		if i == m.cursor {
			cursor = cursorStyle.Render("> ")
		}
		badge := renderBadge(r.status)
		if r.pending {
			badge = m.spinner.View()
		}
		label := truncate(r.label, width-lipgloss.Width(badge)-3)
		if i == m.cursor {
			label = selectedStyle.Render(label)
		} else {
			label = normalStyle.Render(label)
		}
		s.WriteString(cursor + badge + " " + label + "\n")
	}

	return panelStyle.Width(m.listWidth() - 2).Height(m.detail.height).Render(s.String())
}

func (m Model) emptyText() string {
	switch m.snap.Variant.Name {
	case workflow.VariantAudit:
		if m.snap.Audited {
			return "No vulnerable dependencies."
		}
		return "Run the audit to list alerts."
	case workflow.VariantFramework:
		return "Preview the migration to list files."
	}
	if m.snap.Scanned {
		return "No warnings."
	}
	return "Scan the project to list warnings."
}

// progressView renders the upload progress bar.
func (m Model) progressView() string {
	const barWidth = 30
	frac := m.estimate / 100
	if m.total > 0 {
		frac = float64(m.sent) / float64(m.total)
	}
	if frac > 1 {
		frac = 1
	}
	filled := int(frac * barWidth)
	bar := progressFillStyle.Render(strings.Repeat("█", filled)) +
		progressEmptyStyle.Render(strings.Repeat("░", barWidth-filled))
	return fmt.Sprintf("Uploading %s %3.0f%%  %s", bar, frac*100, m.uploadText)
}

// Close releases the model's context. Actions still running are cancelled.
func (m Model) Close() {
	m.cancel()
}

// Run starts the TUI for orch and blocks until the user quits or ctx is done.
func Run(ctx context.Context, orch *workflow.Orchestrator, opts Options) error {
	m := NewModel(orch, opts)
	defer m.Close()
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
