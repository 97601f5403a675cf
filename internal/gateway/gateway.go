// Package gateway is the typed request/response boundary to the remote
// project-analysis and AI service.
//
// Every operation is a single request/response pair. Calls fall into three
// latency classes: fast calls (upload, info, warnings, audit, file fetch,
// apply, create), AI calls (suggest, audit-suggestion) and the framework
// migration plan, which may take tens of seconds. Response bodies are
// validated against the operation's schema; a mismatch is reported as a
// DomainError rather than surfacing zero-valued fields.
package gateway

import (
	"context"
	"io"
)

// Gateway is the contract with the backend.
type Gateway interface {
	UploadProject(ctx context.Context, fileName string, r io.Reader, size int64, progress ProgressFunc) (*UploadResult, error)
	ListProjects(ctx context.Context) ([]ProjectEntry, error)
	ProjectInfo(ctx context.Context, path string) (*ProjectInfo, error)
	Warnings(ctx context.Context, path string, rng LineRange) ([]RawWarning, error)
	Audit(ctx context.Context, path string) ([]Alert, error)
	FileContent(ctx context.Context, path, file string) (string, error)
	ApplySuggestion(ctx context.Context, filePath, code string) (*WriteResult, error)
	Suggest(ctx context.Context, req SuggestRequest) (*SuggestResponse, error)
	AuditSuggestion(ctx context.Context, alert Alert) (*AuditFix, error)
	FrameworkMigration(ctx context.Context, req FrameworkMigrationRequest) (*MigrationPlan, error)
	CreateProject(ctx context.Context, name string, files []MigrationFile) (*WriteResult, error)
}

var _ Gateway = (*Client)(nil)
