package workflow

import (
	"context"
	"fmt"

	"github.com/gerunddev/ngmigrate/internal/gateway"
)

// AuditDependencies runs the dependency auditor over the current project.
func (o *Orchestrator) AuditDependencies(ctx context.Context) ([]AlertItem, error) {
	const op = "audit dependencies"

	p, err := o.requireUpload()
	if err != nil {
		return nil, o.fail(op, err)
	}

	alerts, err := o.deps.Gateway.Audit(ctx, p.Path)
	if err != nil {
		return nil, o.fail(op, err)
	}
	if !o.stillCurrent(p) {
		return nil, ErrSuperseded
	}

	items := alertItems(alerts)
	o.wctx.SetAlerts(items)
	o.emit(NewEvent(EventAlertsAudited, fmt.Sprintf("%d alerts", len(items))))
	if len(items) == 0 {
		o.emit(NewNotice("No vulnerable dependencies found"))
	}
	return items, nil
}

// RequestAuditSuggestion asks the AI service how to remediate one alert,
// with the same supersede rules as RequestSuggestion.
func (o *Orchestrator) RequestAuditSuggestion(ctx context.Context, key string) (gateway.AuditFix, error) {
	const op = "request audit suggestion"

	a, ok := o.wctx.Alert(key)
	if !ok {
		return gateway.AuditFix{}, o.fail(op, invalid("key", "no alert %q", key))
	}

	o.rows.Lock()
	tk := o.auditFixes.Begin(key)
	o.rows.Unlock()

	fix, err := o.deps.Gateway.AuditSuggestion(ctx, a.Alert)
	if err != nil {
		if !o.auditFixes.Fail(tk, err) {
			return gateway.AuditFix{}, ErrSuperseded
		}
		return gateway.AuditFix{}, o.fail(op, err)
	}

	// The fix is stored before the task settles so the ready event never
	// precedes it.
	o.rows.Lock()
	defer o.rows.Unlock()
	if !o.auditFixes.Current(tk) {
		return gateway.AuditFix{}, ErrSuperseded
	}
	if err := o.wctx.SetAuditFix(key, *fix); err != nil {
		// The alerts were replaced while the request was in flight.
		o.auditFixes.Fail(tk, ErrSuperseded)
		return gateway.AuditFix{}, ErrSuperseded
	}
	o.auditFixes.Resolve(tk, *fix)
	return *fix, nil
}
