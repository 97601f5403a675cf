package workflow

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gerunddev/ngmigrate/internal/gateway"
	"github.com/gerunddev/ngmigrate/internal/log"
)

// fileRef is the file a warning points at, relative to the project root.
func fileRef(w Warning) string {
	if w.FilePath != "" {
		return w.FilePath
	}
	if w.FileName != UnknownFile {
		return w.FileName
	}
	return ""
}

// ScanWarnings runs the backend scanner over the current project, optionally
// restricted to a line range, and returns every warning collected so far.
// Warnings already known from an earlier scan are not duplicated.
func (o *Orchestrator) ScanWarnings(ctx context.Context, rng gateway.LineRange) ([]Warning, error) {
	const op = "scan warnings"

	p, err := o.requireUpload()
	if err != nil {
		return nil, o.fail(op, err)
	}

	raws, err := o.deps.Gateway.Warnings(ctx, p.Path, rng)
	if err != nil {
		return nil, o.fail(op, err)
	}
	if !o.stillCurrent(p) {
		return nil, ErrSuperseded
	}

	added := o.wctx.AppendWarnings(ParseWarnings(raws))
	warnings := o.wctx.Warnings()
	o.emit(NewEvent(EventWarningsScanned, fmt.Sprintf("%d warnings", len(warnings))))
	log.Debug("warnings scanned", "project", p.ID, "received", len(raws), "added", added)
	return warnings, nil
}

// updateSuggestion mutates a suggestion row and announces the change.
func (o *Orchestrator) updateSuggestion(key string, mutate func(*Suggestion)) (Suggestion, error) {
	s, err := o.wctx.UpsertSuggestion(key, mutate)
	if err != nil {
		return Suggestion{}, err
	}
	o.emit(NewKeyEvent(EventSuggestionChanged, key, string(s.Status)))
	return s, nil
}

// RequestSuggestion fetches the warning's file and asks the AI service for a
// fix. A second request for the same key supersedes the first; the earlier
// response is discarded and its caller gets ErrSuperseded.
func (o *Orchestrator) RequestSuggestion(ctx context.Context, key string) (Suggestion, error) {
	const op = "request suggestion"

	p, err := o.requireUpload()
	if err != nil {
		return Suggestion{}, o.fail(op, err)
	}
	w, ok := o.wctx.Warning(key)
	if !ok {
		return Suggestion{}, o.fail(op, invalid("key", "no warning %q", key))
	}
	file := fileRef(w)
	if file == "" {
		return Suggestion{}, o.fail(op, invalid("key", "warning %q does not name a file", w.Description))
	}

	o.rows.Lock()
	tk := o.suggestions.Begin(key)
	_, err = o.updateSuggestion(key, func(s *Suggestion) {
		s.Status = StatusPending
		s.Err = ""
	})
	o.rows.Unlock()
	if err != nil {
		return Suggestion{}, o.fail(op, err)
	}

	code, err := o.deps.Gateway.FileContent(ctx, p.Path, file)
	if err != nil {
		return o.suggestionFailed(op, tk, err)
	}
	if !o.suggestions.Current(tk) {
		// A newer request owns the row; skip the AI call.
		cur, _ := o.wctx.Suggestion(key)
		return cur, ErrSuperseded
	}
	res, err := o.deps.Gateway.Suggest(ctx, gateway.SuggestRequest{
		FileName: w.FileName,
		Code:     code,
		Warning:  w.Description,
	})
	if err != nil {
		return o.suggestionFailed(op, tk, err)
	}

	o.rows.Lock()
	defer o.rows.Unlock()
	if !o.suggestions.Resolve(tk, *res) {
		log.Debug("discarding superseded suggestion", "key", key, "generation", tk.Generation)
		cur, _ := o.wctx.Suggestion(key)
		return cur, ErrSuperseded
	}
	s, err := o.updateSuggestion(key, func(s *Suggestion) {
		s.OriginalCode = code
		s.ProposedCode = res.CodeUpdated
		s.Explanation = res.Explanation
		s.SuggestedPrompt = res.SuggestedPrompt
		s.Status = StatusReady
		s.Err = ""
	})
	if err != nil {
		return Suggestion{}, ErrSuperseded
	}
	return s, nil
}

// suggestionFailed settles a failed suggestion task. Only the latest task
// may mark the row as failed and notify.
func (o *Orchestrator) suggestionFailed(op string, tk Ticket[string], err error) (Suggestion, error) {
	o.rows.Lock()
	settled := o.suggestions.Fail(tk, err)
	var s Suggestion
	if settled {
		s, _ = o.updateSuggestion(tk.Key, func(s *Suggestion) {
			s.Status = StatusError
			s.Err = err.Error()
		})
	} else {
		s, _ = o.wctx.Suggestion(tk.Key)
	}
	o.rows.Unlock()

	if !settled {
		return s, ErrSuperseded
	}
	return s, o.fail(op, err)
}

// RefineSuggestion asks again with an extra instruction. The proposal is
// replaced; the row's status is kept.
func (o *Orchestrator) RefineSuggestion(ctx context.Context, key, prompt string) (Suggestion, error) {
	const op = "refine suggestion"

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Suggestion{}, o.fail(op, invalid("prompt", "enter an instruction for the AI"))
	}
	p, err := o.requireUpload()
	if err != nil {
		return Suggestion{}, o.fail(op, err)
	}
	w, ok := o.wctx.Warning(key)
	if !ok {
		return Suggestion{}, o.fail(op, invalid("key", "no warning %q", key))
	}
	cur, ok := o.wctx.Suggestion(key)
	if !ok || cur.ProposedCode == "" {
		return Suggestion{}, o.fail(op, invalid("key", "request a suggestion first"))
	}

	code := cur.OriginalCode
	if code == "" {
		code, err = o.deps.Gateway.FileContent(ctx, p.Path, fileRef(w))
		if err != nil {
			return Suggestion{}, o.fail(op, err)
		}
	}

	o.rows.Lock()
	tk := o.suggestions.Begin(key)
	o.rows.Unlock()

	res, err := o.deps.Gateway.Suggest(ctx, gateway.SuggestRequest{
		FileName: w.FileName,
		Code:     code,
		Warning:  w.Description,
		Prompt:   prompt,
	})
	if err != nil {
		return o.refineFailed(op, tk, err)
	}

	o.rows.Lock()
	defer o.rows.Unlock()
	if !o.suggestions.Resolve(tk, *res) {
		cur, _ = o.wctx.Suggestion(key)
		return cur, ErrSuperseded
	}
	s, err := o.updateSuggestion(key, func(s *Suggestion) {
		s.ProposedCode = res.CodeUpdated
		s.Explanation = res.Explanation
		s.SuggestedPrompt = res.SuggestedPrompt
		s.Err = ""
		// A request superseded by this refinement left the row pending.
		if s.Status == StatusPending {
			s.Status = StatusReady
		}
	})
	if err != nil {
		return Suggestion{}, ErrSuperseded
	}
	return s, nil
}

// refineFailed settles a failed refinement. The row keeps its status unless
// a request superseded by this refinement left it pending.
func (o *Orchestrator) refineFailed(op string, tk Ticket[string], err error) (Suggestion, error) {
	o.rows.Lock()
	settled := o.suggestions.Fail(tk, err)
	var s Suggestion
	if settled {
		s, _ = o.updateSuggestion(tk.Key, func(s *Suggestion) {
			if s.Status == StatusPending {
				s.Status = StatusError
			}
			s.Err = err.Error()
		})
	} else {
		s, _ = o.wctx.Suggestion(tk.Key)
	}
	o.rows.Unlock()

	if !settled {
		return s, ErrSuperseded
	}
	return s, o.fail(op, err)
}

// ApplyFix writes the current proposal to the project. The backend backs
// the file up and writes on every call, so a second apply while the first is
// pending is rejected with ErrApplyInFlight. Sequential applies each write.
func (o *Orchestrator) ApplyFix(ctx context.Context, key string) (*gateway.WriteResult, error) {
	const op = "apply fix"

	p, err := o.requireUpload()
	if err != nil {
		return nil, o.fail(op, err)
	}
	w, ok := o.wctx.Warning(key)
	if !ok {
		return nil, o.fail(op, invalid("key", "no warning %q", key))
	}
	s, ok := o.wctx.Suggestion(key)
	if !ok || s.ProposedCode == "" {
		return nil, o.fail(op, invalid("key", "there is no proposed code to apply"))
	}

	tk, ok := o.applies.TryBegin(key)
	if !ok {
		return nil, o.fail(op, ErrApplyInFlight)
	}

	target := path.Join(p.Path, fileRef(w))
	res, err := o.deps.Gateway.ApplySuggestion(ctx, target, s.ProposedCode)
	if err != nil {
		o.rows.Lock()
		settled := o.applies.Fail(tk, err)
		if settled {
			_, _ = o.updateSuggestion(key, func(s *Suggestion) {
				s.Status = StatusError
				s.Err = err.Error()
			})
		}
		o.rows.Unlock()
		if !settled {
			return nil, ErrSuperseded
		}
		return nil, o.fail(op, err)
	}

	o.rows.Lock()
	settled := o.applies.Resolve(tk, *res)
	if settled {
		_, err = o.updateSuggestion(key, func(s *Suggestion) {
			s.Status = StatusApplied
			s.Err = ""
			s.Applies = append(s.Applies, ApplyRecord{Message: res.Message, Backup: res.Backup, At: time.Now()})
		})
	}
	o.rows.Unlock()

	// The write happened either way; journal it.
	o.record(RecordApply, key, target, res.Backup)
	if !settled || err != nil {
		return res, ErrSuperseded
	}

	o.emit(NewKeyEvent(EventApplied, key, res.Message))
	o.emit(NewNotice(fmt.Sprintf("Applied fix to %s", w.FileName)))
	return res, nil
}

// RequestAllSuggestions requests a suggestion for every warning that has no
// proposal yet, running at most SuggestConcurrency requests at once. Each row
// is tracked independently; the returned error joins the individual failures.
func (o *Orchestrator) RequestAllSuggestions(ctx context.Context) (int, error) {
	const op = "request all suggestions"

	if _, err := o.requireUpload(); err != nil {
		return 0, o.fail(op, err)
	}

	var keys []string
	for _, w := range o.wctx.Warnings() {
		if fileRef(w) == "" || o.suggestions.Pending(w.Key) {
			continue
		}
		if s, ok := o.wctx.Suggestion(w.Key); ok && (s.Status == StatusReady || s.Status == StatusApplied) {
			continue
		}
		keys = append(keys, w.Key)
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(o.cfg.SuggestConcurrency)
	for _, key := range keys {
		g.Go(func() error {
			if _, err := o.RequestSuggestion(ctx, key); err != nil && !errors.Is(err, ErrSuperseded) {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return len(keys), errors.Join(errs...)
}
