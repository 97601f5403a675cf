package tui

import "github.com/charmbracelet/lipgloss"

// Monokai Pro color palette
var (
	colorForeground = lipgloss.Color("#fcfcfa")
	colorYellow     = lipgloss.Color("#ffd866")
	colorOrange     = lipgloss.Color("#fc9867")
	colorRed        = lipgloss.Color("#ff6188")
	colorMagenta    = lipgloss.Color("#ab9df2")
	colorGreen      = lipgloss.Color("#a9dc76")
	colorCyan       = lipgloss.Color("#78dce8")
	colorGray       = lipgloss.Color("#727072")
	colorDimGray    = lipgloss.Color("#5b595c")
)

// Panel styles
var (
	headerStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorDimGray).
			Padding(0, 1)

	headerLabelStyle = lipgloss.NewStyle().
				Foreground(colorGray)

	headerValueStyle = lipgloss.NewStyle().
				Foreground(colorForeground).
				Bold(true)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorDimGray).
			Padding(0, 1)

	panelTitleStyle = lipgloss.NewStyle().
			Foreground(colorMagenta).
			Bold(true)

	panelFocusedStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(colorYellow).
				Padding(0, 1)

	scrollIndicatorStyle = lipgloss.NewStyle().
				Foreground(colorGray).
				Italic(true)
)

// Stage step styles
var (
	stepDoneStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	stepCurrentStyle = lipgloss.NewStyle().
				Foreground(colorYellow).
				Bold(true)

	stepTodoStyle = lipgloss.NewStyle().
			Foreground(colorDimGray)
)

// Row status styles
var (
	statusPendingStyle = lipgloss.NewStyle().
				Foreground(colorOrange).
				Bold(true)

	statusReadyStyle = lipgloss.NewStyle().
				Foreground(colorCyan).
				Bold(true)

	statusAppliedStyle = lipgloss.NewStyle().
				Foreground(colorGreen).
				Bold(true)

	statusErrorStyle = lipgloss.NewStyle().
				Foreground(colorRed).
				Bold(true)

	statusIdleStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	cursorStyle = lipgloss.NewStyle().
			Foreground(colorYellow).
			Bold(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(colorForeground).
			Bold(true)

	normalStyle = lipgloss.NewStyle().
			Foreground(colorForeground)

	emptyStateStyle = lipgloss.NewStyle().
			Foreground(colorGray).
			Italic(true)
)

// Severity styles for audit alerts
var severityStyles = map[string]lipgloss.Style{
	"critical": lipgloss.NewStyle().Foreground(colorRed).Bold(true),
	"high":     lipgloss.NewStyle().Foreground(colorRed),
	"moderate": lipgloss.NewStyle().Foreground(colorOrange),
	"low":      lipgloss.NewStyle().Foreground(colorYellow),
}

// Notification and content styles
var (
	noticeInfoStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	noticeErrorStyle = lipgloss.NewStyle().
				Foreground(colorRed).
				Bold(true)

	sectionDividerStyle = lipgloss.NewStyle().
				Foreground(colorDimGray)

	codeAddedStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	explanationStyle = lipgloss.NewStyle().
				Foreground(colorCyan).
				Italic(true)

	progressFillStyle = lipgloss.NewStyle().
				Foreground(colorGreen)

	progressEmptyStyle = lipgloss.NewStyle().
				Foreground(colorDimGray)

	inputLabelStyle = lipgloss.NewStyle().
			Foreground(colorMagenta).
			Bold(true)
)
