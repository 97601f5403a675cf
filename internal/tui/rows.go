package tui

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/gerunddev/ngmigrate/internal/workflow"
)

// row is one selectable line of the item list.
type row struct {
	key     string
	label   string
	status  string
	pending bool
}

// rowsFor returns the item list of the snapshot's variant: warnings for the
// fix wizard, alerts for the audit wizard and generated files for the
// framework wizard.
func rowsFor(snap workflow.Snapshot) []row {
	switch snap.Variant.Name {
	case workflow.VariantAudit:
		rows := make([]row, len(snap.Alerts))
		for i, a := range snap.Alerts {
			status := ""
			if _, ok := snap.AuditFixes[a.Key]; ok {
				status = string(workflow.StatusReady)
			}
			rows[i] = row{
				key:     a.Key,
				label:   fmt.Sprintf("%s %s", a.Module, a.VulnerableVersions),
				status:  status,
				pending: snap.AuditPending[a.Key],
			}
		}
		return rows

	case workflow.VariantFramework:
		rows := make([]row, len(snap.Files))
		for i, f := range snap.Files {
			path := f.FilePath
			if path == "" {
				path = f.FileName
			}
			rows[i] = row{key: path, label: path, pending: snap.PlanPending}
		}
		return rows
	}

	rows := make([]row, len(snap.Warnings))
	for i, w := range snap.Warnings {
		s := snap.Suggestions[w.Key]
		rows[i] = row{
			key:     w.Key,
			label:   w.FileName + "  " + w.Description,
			status:  string(s.Status),
			pending: snap.SuggestPending[w.Key] || snap.ApplyPending[w.Key],
		}
	}
	return rows
}

// renderBadge renders a row's status.
func renderBadge(status string) string {
	switch workflow.SuggestionStatus(status) {
	case workflow.StatusPending:
		return statusPendingStyle.Render("[pending]")
	case workflow.StatusReady:
		return statusReadyStyle.Render("[ready]")
	case workflow.StatusApplied:
		return statusAppliedStyle.Render("[applied]")
	case workflow.StatusError:
		return statusErrorStyle.Render("[error]")
	}
	return statusIdleStyle.Render("[ ]")
}

// detailFor renders the full content of the selected row, or the project
// summary when nothing is selected.
func detailFor(snap workflow.Snapshot, key string) (string, string) {
	if key == "" {
		return "Project", projectSummary(snap)
	}

	switch snap.Variant.Name {
	case workflow.VariantAudit:
		for _, a := range snap.Alerts {
			if a.Key == key {
				return "Alert", alertDetail(a, snap)
			}
		}

	case workflow.VariantFramework:
		for _, f := range snap.Files {
			if f.FilePath == key || f.FileName == key {
				return f.FileName, f.Content
			}
		}

	default:
		for _, w := range snap.Warnings {
			if w.Key == key {
				return "Suggestion", suggestionDetail(w, snap.Suggestions[key])
			}
		}
	}
	return "Project", projectSummary(snap)
}

func projectSummary(snap workflow.Snapshot) string {
	p := snap.Project
	if p == nil || p.Path == "" {
		return emptyStateStyle.Render("No project selected.")
	}

	var s strings.Builder
	fmt.Fprintf(&s, "Path:    %s\n", p.Path)
	if !p.Analyzed {
		s.WriteString(emptyStateStyle.Render("Not analyzed yet."))
		return s.String()
	}
	fmt.Fprintf(&s, "Version: %s\n", p.Version)
	if len(p.Dependencies) > 0 {
		s.WriteString("\n" + sectionDividerStyle.Render("─── Dependencies ───") + "\n")
		for _, name := range slices.Sorted(maps.Keys(p.Dependencies)) {
			fmt.Fprintf(&s, "%s %s\n", name, p.Dependencies[name])
		}
	}
	if snap.Plan != nil {
		s.WriteString("\n" + sectionDividerStyle.Render("─── Structure ───") + "\n")
		s.WriteString(snap.Plan.Structure + "\n")
		if snap.Plan.Notes != "" {
			s.WriteString("\n" + explanationStyle.Render(snap.Plan.Notes) + "\n")
		}
		for _, d := range snap.Plan.Dependencies {
			fmt.Fprintf(&s, "+ %s %s\n", d.Name, d.Version)
		}
	}
	return s.String()
}

func suggestionDetail(w workflow.Warning, s workflow.Suggestion) string {
	var b strings.Builder
	b.WriteString(w.Description + "\n")
	if w.FilePath != "" {
		b.WriteString(emptyStateStyle.Render(w.FilePath) + "\n")
	}

	if s.Err != "" {
		b.WriteString("\n" + noticeErrorStyle.Render(s.Err) + "\n")
	}
	if s.ProposedCode == "" {
		b.WriteString("\n" + emptyStateStyle.Render("Press s to request a suggestion."))
		return b.String()
	}

	if s.Explanation != "" {
		b.WriteString("\n" + explanationStyle.Render(s.Explanation) + "\n")
	}
	b.WriteString("\n" + sectionDividerStyle.Render("─── Proposed ───") + "\n")
	b.WriteString(diffLines(s.OriginalCode, s.ProposedCode))
	if s.SuggestedPrompt != "" {
		b.WriteString("\n" + emptyStateStyle.Render("Try: "+s.SuggestedPrompt) + "\n")
	}

	for _, a := range s.Applies {
		line := fmt.Sprintf("Applied %s", humanize.Time(a.At))
		if a.Backup != "" {
			line += " (backup: " + a.Backup + ")"
		}
		b.WriteString(statusAppliedStyle.Render(line) + "\n")
	}
	return b.String()
}

// diffLines marks proposed lines that do not occur in the original.
func diffLines(original, proposed string) string {
	seen := make(map[string]bool)
	for _, l := range strings.Split(original, "\n") {
		seen[l] = true
	}
	var b strings.Builder
	for _, l := range strings.Split(proposed, "\n") {
		if seen[l] {
			b.WriteString("  " + l + "\n")
			continue
		}
		b.WriteString(codeAddedStyle.Render("+ "+l) + "\n")
	}
	return b.String()
}

func alertDetail(a workflow.AlertItem, snap workflow.Snapshot) string {
	var b strings.Builder
	sev := a.Severity
	if style, ok := severityStyles[strings.ToLower(sev)]; ok {
		sev = style.Render(sev)
	}
	fmt.Fprintf(&b, "%s %s\n", a.Module, sev)
	if a.Title != "" {
		b.WriteString(a.Title + "\n")
	}
	fmt.Fprintf(&b, "Vulnerable: %s\n", a.VulnerableVersions)
	if a.Recommendation != "" {
		b.WriteString(explanationStyle.Render(a.Recommendation) + "\n")
	}

	fix, ok := snap.AuditFixes[a.Key]
	if !ok {
		b.WriteString("\n" + emptyStateStyle.Render("Press s to ask for a fix."))
		return b.String()
	}
	b.WriteString("\n" + sectionDividerStyle.Render("─── Fix ───") + "\n")
	b.WriteString(codeAddedStyle.Render(fix.Fix) + "\n")
	if fix.Explanation != "" {
		b.WriteString("\n" + fix.Explanation + "\n")
	}
	return b.String()
}
