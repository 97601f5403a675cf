package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gerunddev/ngmigrate/internal/log"
)

// callClass selects the request budget for an operation.
type callClass int

const (
	classFast callClass = iota
	classAI
	classFramework
)

// Default budgets, used when ClientConfig leaves a timeout at zero.
const (
	DefaultFastTimeout      = 15 * time.Second
	DefaultAITimeout        = 45 * time.Second
	DefaultFrameworkTimeout = 60 * time.Second
	defaultFileCacheSize    = 128
	maxErrorBodyLen         = 300
)

// ClientConfig holds configuration for the HTTP gateway client.
type ClientConfig struct {
	BaseURL          string // e.g. http://localhost:4000/api
	FastTimeout      time.Duration
	AITimeout        time.Duration
	FrameworkTimeout time.Duration
	FileCacheSize    int          // Entries kept by the file-content cache
	HTTPClient       *http.Client // Optional; must not set its own Timeout
}

// fileKey identifies a cached /project/file response.
type fileKey struct {
	path string
	file string
}

// Client talks to the backend over HTTP/JSON.
type Client struct {
	baseURL    string
	httpClient *http.Client
	budgets    map[callClass]time.Duration
	files      *lru.Cache[fileKey, string]
}

// NewClient creates a new gateway client.
func NewClient(cfg ClientConfig) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", cfg.BaseURL)
	}

	size := cfg.FileCacheSize
	if size <= 0 {
		size = defaultFileCacheSize
	}
	files, err := lru.New[fileKey, string](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create file cache: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		baseURL:    base,
		httpClient: httpClient,
		budgets: map[callClass]time.Duration{
			classFast:      orDefault(cfg.FastTimeout, DefaultFastTimeout),
			classAI:        orDefault(cfg.AITimeout, DefaultAITimeout),
			classFramework: orDefault(cfg.FrameworkTimeout, DefaultFrameworkTimeout),
		},
		files: files,
	}, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

// UploadProject streams a project archive as the multipart field "project".
func (c *Client) UploadProject(ctx context.Context, fileName string, r io.Reader, size int64, progress ProgressFunc) (*UploadResult, error) {
	const op = "upload"

	body, contentType := multipartBody(fileName, r, size, progress)
	defer body.Close()

	data, err := c.do(ctx, classFast, op, http.MethodPost, "/project/upload", nil, body, contentType)
	if err != nil {
		return nil, err
	}

	var res struct {
		Message     string  `json:"message"`
		ProjectPath *string `json:"projectPath"`
	}
	if err := decode(op, data, &res); err != nil {
		return nil, err
	}
	if res.ProjectPath == nil || strings.TrimSpace(*res.ProjectPath) == "" {
		return nil, malformed(op, "missing projectPath")
	}
	return &UploadResult{Message: res.Message, ProjectPath: *res.ProjectPath}, nil
}

// ListProjects returns the projects previously uploaded to the backend.
func (c *Client) ListProjects(ctx context.Context) ([]ProjectEntry, error) {
	const op = "list projects"

	data, err := c.do(ctx, classFast, op, http.MethodGet, "/project/list", nil, nil, "")
	if err != nil {
		return nil, err
	}

	var entries []ProjectEntry
	if err := decode(op, data, &entries); err != nil {
		return nil, err
	}
	for i, e := range entries {
		if e.ID == "" {
			return nil, malformed(op, "entry %d has no id", i)
		}
	}
	return entries, nil
}

// ProjectInfo fetches the detected framework version and dependency map.
func (c *Client) ProjectInfo(ctx context.Context, projectPath string) (*ProjectInfo, error) {
	const op = "project info"

	data, err := c.do(ctx, classFast, op, http.MethodGet, "/project/info",
		url.Values{"path": {projectPath}}, nil, "")
	if err != nil {
		return nil, err
	}

	var res struct {
		Version      *string           `json:"version"`
		Dependencies map[string]string `json:"dependencies"`
	}
	if err := decode(op, data, &res); err != nil {
		return nil, err
	}
	if res.Version == nil {
		return nil, malformed(op, "missing version")
	}
	if res.Dependencies == nil {
		res.Dependencies = map[string]string{}
	}
	return &ProjectInfo{Version: *res.Version, Dependencies: res.Dependencies}, nil
}

// Warnings runs the backend warning scanner, optionally restricted to a line range.
func (c *Client) Warnings(ctx context.Context, projectPath string, rng LineRange) ([]RawWarning, error) {
	const op = "scan warnings"

	q := url.Values{"path": {projectPath}}
	if rng.From > 0 {
		q.Set("from", strconv.Itoa(rng.From))
	}
	if rng.To > 0 {
		q.Set("to", strconv.Itoa(rng.To))
	}

	data, err := c.do(ctx, classFast, op, http.MethodGet, "/project/warnings", q, nil, "")
	if err != nil {
		return nil, err
	}

	var res struct {
		Warnings *[]RawWarning `json:"warnings"`
	}
	if err := decode(op, data, &res); err != nil {
		return nil, err
	}
	if res.Warnings == nil {
		return nil, malformed(op, "missing warnings")
	}
	return *res.Warnings, nil
}

// Audit runs the dependency auditor.
func (c *Client) Audit(ctx context.Context, projectPath string) ([]Alert, error) {
	const op = "audit"

	body, err := jsonBody(map[string]string{"path": projectPath})
	if err != nil {
		return nil, err
	}
	data, err := c.do(ctx, classFast, op, http.MethodPost, "/project/audit", nil, body, "application/json")
	if err != nil {
		return nil, err
	}

	var res struct {
		Alerts *[]Alert `json:"alerts"`
	}
	if err := decode(op, data, &res); err != nil {
		return nil, err
	}
	if res.Alerts == nil {
		return nil, malformed(op, "missing alerts")
	}
	for i, a := range *res.Alerts {
		if a.Module == "" {
			return nil, malformed(op, "alert %d has no module", i)
		}
	}
	return *res.Alerts, nil
}

// FileContent fetches the source of one file. Responses are cached until the
// file is written through ApplySuggestion.
func (c *Client) FileContent(ctx context.Context, projectPath, file string) (string, error) {
	const op = "fetch file"

	key := fileKey{path: projectPath, file: file}
	if code, ok := c.files.Get(key); ok {
		log.Debug("file cache hit", "path", projectPath, "file", file)
		return code, nil
	}

	data, err := c.do(ctx, classFast, op, http.MethodGet, "/project/file",
		url.Values{"path": {projectPath}, "file": {file}}, nil, "")
	if err != nil {
		return "", err
	}

	var res struct {
		Code *string `json:"code"`
	}
	if err := decode(op, data, &res); err != nil {
		return "", err
	}
	if res.Code == nil {
		return "", malformed(op, "missing code")
	}

	c.files.Add(key, *res.Code)
	return *res.Code, nil
}

// ApplySuggestion overwrites a file on the backend. The backend backs the
// file up first. Each call writes again; nothing is deduplicated here.
func (c *Client) ApplySuggestion(ctx context.Context, filePath, code string) (*WriteResult, error) {
	const op = "apply suggestion"

	body, err := jsonBody(map[string]string{"filePath": filePath, "codeUpdated": code})
	if err != nil {
		return nil, err
	}
	data, err := c.do(ctx, classFast, op, http.MethodPost, "/project/apply-suggestion", nil, body, "application/json")
	if err != nil {
		return nil, err
	}

	res, err := decodeWrite(op, data)
	if err != nil {
		return nil, err
	}
	c.invalidate(filePath)
	return res, nil
}

// Suggest asks the AI service for a fix of one warning.
func (c *Client) Suggest(ctx context.Context, req SuggestRequest) (*SuggestResponse, error) {
	const op = "suggest"

	body, err := jsonBody(req)
	if err != nil {
		return nil, err
	}
	data, err := c.do(ctx, classAI, op, http.MethodPost, "/ai/suggest", nil, body, "application/json")
	if err != nil {
		return nil, err
	}

	var res struct {
		CodeUpdated     *string `json:"codeUpdated"`
		Explanation     string  `json:"explanation"`
		SuggestedPrompt string  `json:"suggestedPrompt"`
	}
	if err := decode(op, data, &res); err != nil {
		return nil, err
	}
	if res.CodeUpdated == nil {
		return nil, malformed(op, "missing codeUpdated")
	}
	return &SuggestResponse{
		CodeUpdated:     *res.CodeUpdated,
		Explanation:     res.Explanation,
		SuggestedPrompt: res.SuggestedPrompt,
	}, nil
}

// AuditSuggestion asks the AI service how to remediate one vulnerability.
func (c *Client) AuditSuggestion(ctx context.Context, alert Alert) (*AuditFix, error) {
	const op = "audit suggestion"

	body, err := jsonBody(alert)
	if err != nil {
		return nil, err
	}
	data, err := c.do(ctx, classAI, op, http.MethodPost, "/ai/audit-suggestion", nil, body, "application/json")
	if err != nil {
		return nil, err
	}

	var res struct {
		Fix         *string `json:"fix"`
		Explanation string  `json:"explanation"`
	}
	if err := decode(op, data, &res); err != nil {
		return nil, err
	}
	if res.Fix == nil {
		return nil, malformed(op, "missing fix")
	}
	return &AuditFix{Fix: *res.Fix, Explanation: res.Explanation}, nil
}

// FrameworkMigration asks the AI service for a complete re-scaffolding plan.
func (c *Client) FrameworkMigration(ctx context.Context, req FrameworkMigrationRequest) (*MigrationPlan, error) {
	const op = "framework migration"

	body, err := jsonBody(req)
	if err != nil {
		return nil, err
	}
	data, err := c.do(ctx, classFramework, op, http.MethodPost, "/ai/framework-migration", nil, body, "application/json")
	if err != nil {
		return nil, err
	}

	var res struct {
		ProjectStructure string           `json:"projectStructure"`
		FileList         *[]MigrationFile `json:"fileList"`
		MigrationNotes   string           `json:"migrationNotes"`
		Dependencies     []PlanDependency `json:"dependencies"`
	}
	if err := decode(op, data, &res); err != nil {
		return nil, err
	}
	if res.FileList == nil {
		return nil, malformed(op, "missing fileList")
	}
	for i, f := range *res.FileList {
		if f.FilePath == "" || f.FileName == "" {
			return nil, malformed(op, "file %d lacks filePath or fileName", i)
		}
	}
	return &MigrationPlan{
		ProjectStructure: res.ProjectStructure,
		FileList:         *res.FileList,
		MigrationNotes:   res.MigrationNotes,
		Dependencies:     res.Dependencies,
	}, nil
}

// CreateProject scaffolds a new project from a list of generated files.
func (c *Client) CreateProject(ctx context.Context, name string, files []MigrationFile) (*WriteResult, error) {
	const op = "create project"

	body, err := jsonBody(struct {
		ProjectName string          `json:"projectName"`
		FileList    []MigrationFile `json:"fileList"`
	}{name, files})
	if err != nil {
		return nil, err
	}
	data, err := c.do(ctx, classFast, op, http.MethodPost, "/project/create-project", nil, body, "application/json")
	if err != nil {
		return nil, err
	}
	return decodeWrite(op, data)
}

// do performs one request under the budget of its call class and returns
// the body of a 2xx response.
func (c *Client) do(ctx context.Context, class callClass, op, method, route string, query url.Values, body io.Reader, contentType string) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.budgets[class])
	defer cancel()

	target := c.baseURL + route
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(callCtx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classify(ctx, callCtx, op, class, err)
	}
	defer func() { log.CloseError("response body", resp.Body.Close()) }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(ctx, callCtx, op, class, err)
	}

	log.Debug("backend call",
		"op", op,
		"status", resp.StatusCode,
		"elapsed", time.Since(started).Round(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &DomainError{Op: op, Status: resp.StatusCode, Message: errorMessage(resp.StatusCode, data)}
	}
	return data, nil
}

// classify turns a transport failure into a TransportError, flagging budget
// overruns as timeouts. A cancelled parent context is not a timeout.
func classify(parent, callCtx context.Context, op string, class callClass, err error) error {
	if parent.Err() != nil {
		return &TransportError{Op: op, AI: class != classFast, Err: parent.Err()}
	}

	timeout := errors.Is(callCtx.Err(), context.DeadlineExceeded)
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		timeout = true
	}
	return &TransportError{Op: op, Timeout: timeout, AI: class != classFast, Err: err}
}

// invalidate drops cached file contents that a write to filePath made stale.
func (c *Client) invalidate(filePath string) {
	target := path.Clean(filePath)
	for _, key := range c.files.Keys() {
		if path.Join(key.path, key.file) == target || path.Clean(key.file) == target {
			c.files.Remove(key)
		}
	}
}

func decode(op string, data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return malformed(op, "%v", err)
	}
	return nil
}

func decodeWrite(op string, data []byte) (*WriteResult, error) {
	var res struct {
		Message *string `json:"message"`
		Backup  string  `json:"backup"`
	}
	if err := decode(op, data, &res); err != nil {
		return nil, err
	}
	if res.Message == nil {
		return nil, malformed(op, "missing message")
	}
	return &WriteResult{Message: *res.Message, Backup: res.Backup}, nil
}

func jsonBody(v interface{}) (io.Reader, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return bytes.NewReader(data), nil
}

// errorMessage extracts the server-supplied message from an error body.
func errorMessage(status int, data []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return http.StatusText(status)
	}
	if len(text) > maxErrorBodyLen {
		text = text[:maxErrorBodyLen] + "..."
	}
	return text
}
