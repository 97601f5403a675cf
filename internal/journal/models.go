package journal

import "time"

// Run is one pass through a wizard, from its first recorded action until
// the user starts a new project.
type Run struct {
	ID         string
	Variant    string
	ProjectID  string
	StartedAt  time.Time
	EntryCount int
}

// Entry is one recorded action of a run.
type Entry struct {
	ID        string
	RunID     string
	Kind      string // stage, upload, apply or create
	Key       string // Stage index, warning key, project path or project name
	Detail    string
	Backup    string // Backend backup reference for writes
	CreatedAt time.Time
}
