// Package gatewaytest provides an in-process fake of the analysis/AI backend
// for tests. It serves the same routes as the real service under /api and
// records every call so tests can assert on what was sent.
package gatewaytest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gerunddev/ngmigrate/internal/gateway"
)

// Routes served by the fake backend, relative to URL().
const (
	RouteUpload          = "/project/upload"
	RouteList            = "/project/list"
	RouteInfo            = "/project/info"
	RouteWarnings        = "/project/warnings"
	RouteAudit           = "/project/audit"
	RouteFile            = "/project/file"
	RouteApply           = "/project/apply-suggestion"
	RouteCreate          = "/project/create-project"
	RouteSuggest         = "/ai/suggest"
	RouteAuditSuggestion = "/ai/audit-suggestion"
	RouteFramework       = "/ai/framework-migration"
)

// Call is one recorded request.
type Call struct {
	Method string
	Route  string
	Query  map[string]string
	Body   []byte // JSON body; for uploads, the uploaded archive bytes
}

// failure is a canned error response for a route.
type failure struct {
	status  int
	message string
}

// Backend is a fake backend server.
type Backend struct {
	server *httptest.Server

	mu          sync.Mutex
	calls       []Call
	uploads     int
	writes      int
	info        gateway.ProjectInfo
	warnings    []interface{}
	alerts      []gateway.Alert
	files       map[string]string
	projects    []gateway.ProjectEntry
	plan        gateway.MigrationPlan
	suggestFunc func(gateway.SuggestRequest) gateway.SuggestResponse
	failures    map[string]failure
	delays      map[string]time.Duration
	raw         map[string]string
}

// New starts a fake backend that is shut down when the test ends.
func New(t testing.TB) *Backend {
	t.Helper()

	b := &Backend{
		info:     gateway.ProjectInfo{Version: "15.2.0", Dependencies: map[string]string{"@angular/core": "^15.2.0"}},
		files:    map[string]string{},
		failures: map[string]failure{},
		delays:   map[string]time.Duration{},
		raw:      map[string]string{},
		suggestFunc: func(req gateway.SuggestRequest) gateway.SuggestResponse {
			return gateway.SuggestResponse{
				CodeUpdated:     "// fixed: " + req.Warning + "\n" + req.Code,
				Explanation:     "Rewrote the flagged construct.",
				SuggestedPrompt: "Keep the public API unchanged.",
			}
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Route("/api", func(r chi.Router) {
		r.Use(b.intercept)
		r.Post(RouteUpload, b.handleUpload)
		r.Get(RouteList, b.handleList)
		r.Get(RouteInfo, b.handleInfo)
		r.Get(RouteWarnings, b.handleWarnings)
		r.Post(RouteAudit, b.handleAudit)
		r.Get(RouteFile, b.handleFile)
		r.Post(RouteApply, b.handleWrite)
		r.Post(RouteCreate, b.handleWrite)
		r.Post(RouteSuggest, b.handleSuggest)
		r.Post(RouteAuditSuggestion, b.handleAuditSuggestion)
		r.Post(RouteFramework, b.handleFramework)
	})

	b.server = httptest.NewServer(r)
	t.Cleanup(b.server.Close)
	return b
}

// URL returns the API base URL (including the /api prefix).
func (b *Backend) URL() string {
	return b.server.URL + "/api"
}

// SetInfo sets the /project/info response.
func (b *Backend) SetInfo(info gateway.ProjectInfo) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.info = info
}

// SetWarnings sets the /project/warnings items. Items may be strings or
// map[string]string{"filePath": ..., "description": ...}.
func (b *Backend) SetWarnings(items ...interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.warnings = items
}

// SetAlerts sets the /project/audit alerts.
func (b *Backend) SetAlerts(alerts ...gateway.Alert) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.alerts = alerts
}

// SetFile sets the code returned for (path, file).
func (b *Backend) SetFile(path, file, code string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.files[path+"|"+file] = code
}

// SetProjects sets the /project/list response.
func (b *Backend) SetProjects(projects ...gateway.ProjectEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.projects = projects
}

// SetPlan sets the /ai/framework-migration response.
func (b *Backend) SetPlan(plan gateway.MigrationPlan) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.plan = plan
}

// OnSuggest replaces the /ai/suggest responder.
func (b *Backend) OnSuggest(fn func(gateway.SuggestRequest) gateway.SuggestResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.suggestFunc = fn
}

// Fail makes route answer with status and a {"message"} body.
func (b *Backend) Fail(route string, status int, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[route] = failure{status: status, message: message}
}

// Raw makes route answer 200 with a literal body, bypassing the schema.
func (b *Backend) Raw(route, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.raw[route] = body
}

// Delay holds responses on route for d.
func (b *Backend) Delay(route string, d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delays[route] = d
}

// Calls returns the recorded calls for route, or all calls when route is "".
func (b *Backend) Calls(route string) []Call {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Call
	for _, c := range b.calls {
		if route == "" || c.Route == route {
			out = append(out, c)
		}
	}
	return out
}

// intercept records the call and applies canned failures and delays.
func (b *Backend) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := strings.TrimPrefix(r.URL.Path, "/api")

		var body []byte
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
			body, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(strings.NewReader(string(body)))
		}

		query := map[string]string{}
		for k, v := range r.URL.Query() {
			query[k] = v[0]
		}

		b.mu.Lock()
		b.calls = append(b.calls, Call{Method: r.Method, Route: route, Query: query, Body: body})
		fail, failing := b.failures[route]
		delay := b.delays[route]
		raw, hasRaw := b.raw[route]
		b.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if failing {
			writeJSON(w, fail.status, map[string]string{"message": fail.message})
			return
		}
		if hasRaw {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, raw)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("project")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "missing project file"})
		return
	}
	defer file.Close()
	data, _ := io.ReadAll(file)

	b.mu.Lock()
	b.uploads++
	n := b.uploads
	// Keep the archive bytes on the recorded call for assertions.
	for i := len(b.calls) - 1; i >= 0; i-- {
		if b.calls[i].Route == RouteUpload && b.calls[i].Body == nil {
			b.calls[i].Body = data
			break
		}
	}
	b.mu.Unlock()

	name := strings.TrimSuffix(header.Filename, ".zip")
	writeJSON(w, http.StatusOK, map[string]string{
		"message":     "Project uploaded",
		"projectPath": fmt.Sprintf("projects/upload-%d/%s", n, name),
	})
}

func (b *Backend) handleList(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	projects := append([]gateway.ProjectEntry{}, b.projects...)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, projects)
}

func (b *Backend) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("path") == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "path is required"})
		return
	}
	b.mu.Lock()
	info := b.info
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, info)
}

func (b *Backend) handleWarnings(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	items := append([]interface{}{}, b.warnings...)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{"warnings": items})
}

func (b *Backend) handleAudit(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	alerts := append([]gateway.Alert{}, b.alerts...)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{"alerts": alerts})
}

func (b *Backend) handleFile(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	b.mu.Lock()
	code, ok := b.files[q.Get("path")+"|"+q.Get("file")]
	b.mu.Unlock()
	if !ok {
		code = "// " + q.Get("file")
	}
	writeJSON(w, http.StatusOK, map[string]string{"code": code})
}

func (b *Backend) handleWrite(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	b.writes++
	n := b.writes
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Written",
		"backup":  fmt.Sprintf("backups/%d.bak", n),
	})
}

func (b *Backend) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var req gateway.SuggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}
	b.mu.Lock()
	fn := b.suggestFunc
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, fn(req))
}

func (b *Backend) handleAuditSuggestion(w http.ResponseWriter, r *http.Request) {
	var alert gateway.Alert
	if err := json.NewDecoder(r.Body).Decode(&alert); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}
	writeJSON(w, http.StatusOK, gateway.AuditFix{
		Fix:         "npm install " + alert.Module + "@latest",
		Explanation: alert.Recommendation,
	})
}

func (b *Backend) handleFramework(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	plan := b.plan
	b.mu.Unlock()
	if plan.FileList == nil {
		plan.FileList = []gateway.MigrationFile{}
	}
	writeJSON(w, http.StatusOK, plan)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
