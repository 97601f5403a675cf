package workflow

import (
	"errors"
	"testing"

	"github.com/gerunddev/ngmigrate/internal/gateway"
)

func TestContext_ProjectChangeClearsDependents(t *testing.T) {
	c := NewContext()
	if _, err := c.SetProject(Project{ID: "projects/a", Path: "projects/a"}); err != nil {
		t.Fatalf("SetProject: %v", err)
	}
	c.AppendWarnings([]Warning{{Key: "w1", FileName: "a.ts"}})
	if _, err := c.UpsertSuggestion("w1", func(s *Suggestion) { s.Status = StatusReady }); err != nil {
		t.Fatalf("UpsertSuggestion: %v", err)
	}
	c.SetAlerts([]AlertItem{{Key: "a1"}})
	c.SetFiles([]gateway.MigrationFile{{FilePath: "src/main.tsx"}})
	c.SetMigrationPlan(Plan{Structure: "src/"})

	changed, err := c.SetProject(Project{ID: "projects/b", Path: "projects/b"})
	if err != nil {
		t.Fatalf("SetProject: %v", err)
	}
	if !changed {
		t.Error("expected identity change to be reported")
	}

	s := c.State()
	if len(s.Warnings) != 0 || len(s.Suggestions) != 0 || len(s.Alerts) != 0 || len(s.Files) != 0 || s.Plan != nil {
		t.Errorf("expected dependents cleared, got %+v", s)
	}
	if s.Scanned || s.Audited {
		t.Error("expected scan and audit flags cleared")
	}
}

func TestContext_SameIdentityKeepsDependents(t *testing.T) {
	c := NewContext()
	_, _ = c.SetProject(Project{ID: "p", Path: "p"})
	c.AppendWarnings([]Warning{{Key: "w1"}})

	changed, err := c.SetProject(Project{ID: "p", Path: "p", Version: "15.0.0", Analyzed: true})
	if err != nil {
		t.Fatalf("SetProject: %v", err)
	}
	if changed {
		t.Error("same identity must not report a change")
	}
	if len(c.Warnings()) != 1 {
		t.Error("warnings should survive a metadata update")
	}

	if _, err := c.SetProject(Project{ID: "p", Path: "p", Version: "16.0.0"}); !errors.Is(err, ErrProjectReadOnly) {
		t.Errorf("expected ErrProjectReadOnly, got %v", err)
	}
	p, _ := c.Project()
	if p.Version != "15.0.0" {
		t.Errorf("analyzed project was modified: %+v", p)
	}
}

func TestContext_AppendWarningsDeduplicates(t *testing.T) {
	c := NewContext()
	ws := []Warning{{Key: "a"}, {Key: "b"}}

	if n := c.AppendWarnings(ws); n != 2 {
		t.Errorf("expected 2 added, got %d", n)
	}
	if n := c.AppendWarnings(append(ws, Warning{Key: "c"})); n != 1 {
		t.Errorf("expected 1 added on re-scan, got %d", n)
	}

	got := c.Warnings()
	if len(got) != 3 || got[0].Key != "a" || got[2].Key != "c" {
		t.Errorf("unexpected warnings %+v", got)
	}
}

func TestContext_UpsertSuggestion(t *testing.T) {
	c := NewContext()
	c.AppendWarnings([]Warning{{Key: "w1", FileName: "foo.ts", FilePath: "src/foo.ts"}})

	if _, err := c.UpsertSuggestion("orphan", func(*Suggestion) {}); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("expected ErrUnknownKey, got %v", err)
	}

	s, err := c.UpsertSuggestion("w1", func(s *Suggestion) {
		s.ProposedCode = "x"
		s.Key = "tampered"
	})
	if err != nil {
		t.Fatalf("UpsertSuggestion: %v", err)
	}
	if s.Key != "w1" || s.FileName != "foo.ts" || s.FilePath != "src/foo.ts" {
		t.Errorf("unexpected suggestion %+v", s)
	}
	if s.Status != StatusIdle {
		t.Errorf("expected new suggestion to start idle, got %s", s.Status)
	}
}

func TestContext_AppliedNeverRegresses(t *testing.T) {
	c := NewContext()
	c.AppendWarnings([]Warning{{Key: "w1"}})

	_, _ = c.UpsertSuggestion("w1", func(s *Suggestion) {
		s.Status = StatusApplied
		s.Applies = append(s.Applies, ApplyRecord{Backup: "b1"})
	})

	s, _ := c.UpsertSuggestion("w1", func(s *Suggestion) {
		s.Status = StatusIdle
		s.Applies = nil
	})
	if s.Status != StatusApplied {
		t.Errorf("expected applied status to stick, got %s", s.Status)
	}
	if len(s.Applies) != 1 || s.Applies[0].Backup != "b1" {
		t.Errorf("apply history lost: %+v", s.Applies)
	}

	s, _ = c.UpsertSuggestion("w1", func(s *Suggestion) {
		s.Status = StatusReady
		s.ProposedCode = "new proposal"
	})
	if !s.Applied() || s.Status != StatusReady {
		t.Errorf("expected a new proposal that remembers the apply, got %+v", s)
	}
}

func TestContext_StateIsACopy(t *testing.T) {
	c := NewContext()
	_, _ = c.SetProject(Project{ID: "p", Dependencies: map[string]string{"rxjs": "7"}})
	c.AppendWarnings([]Warning{{Key: "w1"}})
	_, _ = c.UpsertSuggestion("w1", func(s *Suggestion) {
		s.Applies = []ApplyRecord{{Backup: "b"}}
	})

	s := c.State()
	s.Project.Dependencies["rxjs"] = "6"
	s.Warnings[0].Key = "changed"
	sug := s.Suggestions["w1"]
	sug.Applies[0].Backup = "changed"

	p, _ := c.Project()
	if p.Dependencies["rxjs"] != "7" {
		t.Error("project dependencies leaked through State")
	}
	if c.Warnings()[0].Key != "w1" {
		t.Error("warnings leaked through State")
	}
	got, _ := c.Suggestion("w1")
	if got.Applies[0].Backup != "b" {
		t.Error("apply history leaked through State")
	}
}

func TestContext_AuditFixes(t *testing.T) {
	c := NewContext()
	c.SetAlerts([]AlertItem{{Key: "a1"}, {Key: "a2"}})

	if err := c.SetAuditFix("zz", gateway.AuditFix{}); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("expected ErrUnknownKey, got %v", err)
	}
	if err := c.SetAuditFix("a1", gateway.AuditFix{Fix: "npm i"}); err != nil {
		t.Fatalf("SetAuditFix: %v", err)
	}
	if err := c.SetAuditFix("a2", gateway.AuditFix{Fix: "npm i"}); err != nil {
		t.Fatalf("SetAuditFix: %v", err)
	}

	c.SetAlerts([]AlertItem{{Key: "a2"}})
	fixes := c.State().AuditFixes
	if _, ok := fixes["a1"]; ok {
		t.Error("fix for a dropped alert should be removed")
	}
	if _, ok := fixes["a2"]; !ok {
		t.Error("fix for a kept alert should survive")
	}
}

func TestProject_DisplayName(t *testing.T) {
	tests := []struct {
		name    string
		project Project
		want    string
	}{
		{"git with url", Project{ID: "https://github.com/a/b", Path: "https://github.com/a/b", Source: gateway.Source{Kind: gateway.SourceGit, GitURL: "https://github.com/a/b"}}, "https://github.com/a/b"},
		{"git without url", Project{Path: "projects/abc/shop", Source: gateway.Source{Kind: gateway.SourceGit}}, "projects/abc/shop"},
		{"upload", Project{ID: "projects/abc/shop", Path: "projects/abc/shop", Source: gateway.Source{Kind: gateway.SourceUpload}}, "projects/abc/shop"},
		{"id only", Project{ID: "x"}, "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.project.DisplayName(); got != tt.want {
				t.Errorf("DisplayName() = %q, want %q", got, tt.want)
			}
		})
	}
}
