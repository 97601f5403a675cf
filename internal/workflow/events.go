package workflow

// EventType represents the type of a workflow event.
type EventType string

const (
	// EventStageChanged is emitted after Advance, Retreat or NewProject moved the wizard.
	EventStageChanged EventType = "stage_changed"
	// EventProjectChanged is emitted when the project or its metadata changed.
	EventProjectChanged EventType = "project_changed"
	// EventUploadProgress carries real byte counts or a cosmetic estimate.
	EventUploadProgress EventType = "upload_progress"
	// EventWarningsScanned is emitted after a warning scan was stored.
	EventWarningsScanned EventType = "warnings_scanned"
	// EventSuggestionChanged is emitted when a suggestion row changed.
	EventSuggestionChanged EventType = "suggestion_changed"
	// EventApplied is emitted after a proposal was written to the project.
	EventApplied EventType = "applied"
	// EventAlertsAudited is emitted after an audit was stored.
	EventAlertsAudited EventType = "alerts_audited"
	// EventAuditFixChanged is emitted when an audit remediation changed.
	EventAuditFixChanged EventType = "audit_fix_changed"
	// EventPlanReady is emitted when a framework migration plan arrived.
	EventPlanReady EventType = "plan_ready"
	// EventProjectCreated is emitted after a new project was scaffolded.
	EventProjectCreated EventType = "project_created"
	// EventNotice is a transient user notification.
	EventNotice EventType = "notice"
)

// NoticeLevel is the severity of an EventNotice.
type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeError NoticeLevel = "error"
)

// Event represents an event emitted by the orchestrator.
type Event struct {
	Type     EventType
	Key      string // Warning or alert key for row events
	Message  string
	Level    NoticeLevel // For EventNotice
	Err      error       // For error notices
	Stage    int         // For EventStageChanged
	Sent     int64       // For real upload progress
	Total    int64       // -1 when unknown
	Estimate float64     // For cosmetic upload progress, 0-100
}

// NewEvent creates a new event with the given type and message.
func NewEvent(t EventType, msg string) Event {
	return Event{Type: t, Message: msg}
}

// NewKeyEvent creates a row event.
func NewKeyEvent(t EventType, key, msg string) Event {
	return Event{Type: t, Key: key, Message: msg}
}

// NewNotice creates an informational notice.
func NewNotice(msg string) Event {
	return Event{Type: EventNotice, Level: NoticeInfo, Message: msg}
}

// NewErrorNotice creates an error notice.
func NewErrorNotice(msg string, err error) Event {
	return Event{Type: EventNotice, Level: NoticeError, Message: msg, Err: err}
}
