package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SourceKind identifies where a project came from.
type SourceKind string

const (
	// SourceUpload is a zip archive uploaded to the backend.
	SourceUpload SourceKind = "upload"
	// SourceGit is a remote Git repository reference.
	SourceGit SourceKind = "git"
)

// Source describes the origin of a project.
type Source struct {
	Kind   SourceKind `json:"type"`
	GitURL string     `json:"gitUrl,omitempty"`
}

// UploadResult is the response of POST /project/upload.
type UploadResult struct {
	Message     string `json:"message"`
	ProjectPath string `json:"projectPath"`
}

// ProjectEntry is one element of GET /project/list.
type ProjectEntry struct {
	ID             string `json:"id"`
	OriginalFolder string `json:"originalFolder"`
}

// Path returns the backend path of the entry's project root.
func (p ProjectEntry) Path() string {
	if p.OriginalFolder == "" {
		return "projects/" + p.ID
	}
	return "projects/" + p.ID + "/" + p.OriginalFolder
}

// ProjectInfo is the response of GET /project/info.
type ProjectInfo struct {
	Version      string            `json:"version"`
	Dependencies map[string]string `json:"dependencies"`
}

// LineRange is the optional line filter for a warning scan. Zero means unbounded.
type LineRange struct {
	From int
	To   int
}

// RawWarning is one element of the warnings array. The backend sends either
// plain "[file] description" strings or structured objects; exactly one of
// Line or (FilePath, Description) is set.
type RawWarning struct {
	Line        string
	FilePath    string
	Description string
}

// Structured reports whether the warning arrived as an object.
func (w RawWarning) Structured() bool {
	return w.Line == "" && (w.FilePath != "" || w.Description != "")
}

// UnmarshalJSON implements json.Unmarshaler.
func (w *RawWarning) UnmarshalJSON(data []byte) error {
	var line string
	if err := json.Unmarshal(data, &line); err == nil {
		*w = RawWarning{Line: line}
		return nil
	}

	var obj struct {
		FilePath    string `json:"filePath"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("warning must be a string or an object: %w", err)
	}
	*w = RawWarning{FilePath: obj.FilePath, Description: obj.Description}
	return nil
}

// Alert is one vulnerability reported by POST /project/audit.
type Alert struct {
	Module             string `json:"module"`
	VulnerableVersions string `json:"vulnerable_versions"`
	Severity           string `json:"severity"`
	Recommendation     string `json:"recommendation"`
	Title              string `json:"title"`
}

// WriteResult is the response of the two backend write operations
// (apply-suggestion and create-project).
type WriteResult struct {
	Message string `json:"message"`
	Backup  string `json:"backup"`
}

// SuggestRequest is the body of POST /ai/suggest.
type SuggestRequest struct {
	FileName string `json:"fileName"`
	Code     string `json:"code"`
	Warning  string `json:"warning"`
	Prompt   string `json:"prompt,omitempty"`
}

// SuggestResponse is the response of POST /ai/suggest.
type SuggestResponse struct {
	CodeUpdated     string `json:"codeUpdated"`
	Explanation     string `json:"explanation,omitempty"`
	SuggestedPrompt string `json:"suggestedPrompt,omitempty"`
}

// AuditFix is the response of POST /ai/audit-suggestion.
type AuditFix struct {
	Fix         string `json:"fix"`
	Explanation string `json:"explanation"`
}

// MigrationFile is one generated file of a framework migration plan.
type MigrationFile struct {
	FilePath string `json:"filePath"`
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
	Content  string `json:"content"`
}

// FrameworkMigrationRequest is the body of POST /ai/framework-migration.
type FrameworkMigrationRequest struct {
	ProjectPath   string  `json:"projectPath"`
	ProjectSource *Source `json:"projectSource,omitempty"`
}

// PlanDependency is a dependency proposed by a framework migration plan.
type PlanDependency struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// UnmarshalJSON accepts either {"name","version"} objects or "name@version" strings.
func (d *PlanDependency) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		name, version := s, ""
		// Skip a leading "@" so scoped packages keep their scope.
		if i := strings.LastIndex(s, "@"); i > 0 {
			name, version = s[:i], s[i+1:]
		}
		*d = PlanDependency{Name: name, Version: version}
		return nil
	}

	type plain PlanDependency
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("dependency must be a string or an object: %w", err)
	}
	*d = PlanDependency(p)
	return nil
}

// MigrationPlan is the response of POST /ai/framework-migration.
type MigrationPlan struct {
	ProjectStructure string           `json:"projectStructure"`
	FileList         []MigrationFile  `json:"fileList"`
	MigrationNotes   string           `json:"migrationNotes,omitempty"`
	Dependencies     []PlanDependency `json:"dependencies,omitempty"`
}

// ProgressFunc receives upload progress in bytes. total is -1 when unknown.
type ProgressFunc func(sent, total int64)
