package workflow

import (
	"fmt"

	"github.com/gerunddev/ngmigrate/internal/gateway"
)

// GuardFunc reports whether the wizard may move past a stage.
type GuardFunc func(State) bool

// guards is the fixed registry of predicates a variant may reference by name.
var guards = map[string]GuardFunc{
	"always": func(State) bool { return true },
	"project_selected": func(s State) bool {
		return s.Project != nil && s.Project.ID != ""
	},
	"project_uploaded": func(s State) bool {
		return s.Project != nil && s.Project.Path != "" && s.Project.Source.Kind == gateway.SourceUpload
	},
	"project_analyzed": func(s State) bool {
		return s.Project != nil && s.Project.Analyzed
	},
	"warnings_scanned": func(s State) bool {
		return s.Scanned
	},
	"alerts_audited": func(s State) bool {
		return s.Audited
	},
	"source_selected": func(s State) bool {
		if s.Project == nil {
			return false
		}
		switch s.Project.Source.Kind {
		case gateway.SourceGit:
			return s.Project.Source.GitURL != ""
		case gateway.SourceUpload:
			return s.Project.Path != ""
		}
		return false
	},
	"files_ready": func(s State) bool {
		return len(s.Files) > 0
	},
}

// Stage is one step of a wizard variant.
type Stage struct {
	Index int
	Title string
	Guard string
	check GuardFunc
}

// Allowed evaluates the stage's guard against s.
func (st Stage) Allowed(s State) bool {
	if st.check == nil {
		return false
	}
	return st.check(s)
}

func newStage(index int, title, guard string) (Stage, error) {
	fn, ok := guards[guard]
	if !ok {
		return Stage{}, fmt.Errorf("stage %q: unknown guard %q", title, guard)
	}
	return Stage{Index: index, Title: title, Guard: guard, check: fn}, nil
}

// Sequencer walks a fixed stage list. Index stays in [0, N-1].
// It is not safe for concurrent use; the orchestrator serializes access.
type Sequencer struct {
	stages []Stage
	index  int
}

// NewSequencer creates a sequencer positioned at the first stage of v.
func NewSequencer(v Variant) *Sequencer {
	return &Sequencer{stages: v.Stages}
}

// Current returns the active stage.
func (s *Sequencer) Current() Stage {
	return s.stages[s.index]
}

// Index returns the active stage index.
func (s *Sequencer) Index() int {
	return s.index
}

// Terminal reports whether the active stage is the last one.
func (s *Sequencer) Terminal() bool {
	return s.index == len(s.stages)-1
}

// CanAdvance reports whether Advance would move forward given state.
func (s *Sequencer) CanAdvance(state State) bool {
	return !s.Terminal() && s.Current().Allowed(state)
}

// Advance moves one stage forward. It returns a *GuardRejectedError and
// leaves the index unchanged when the active stage's guard does not hold.
// Advancing from the terminal stage is a no-op.
func (s *Sequencer) Advance(state State) error {
	if s.Terminal() {
		return nil
	}
	cur := s.Current()
	if !cur.Allowed(state) {
		return &GuardRejectedError{Stage: cur.Title, Guard: cur.Guard}
	}
	s.index++
	return nil
}

// Retreat moves one stage back, floored at the first stage. It reports
// whether the index changed. Collected data is kept.
func (s *Sequencer) Retreat() bool {
	if s.index == 0 {
		return false
	}
	s.index--
	return true
}

// Reset returns to the first stage.
func (s *Sequencer) Reset() {
	s.index = 0
}
