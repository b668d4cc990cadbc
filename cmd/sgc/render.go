package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/hylla/sgc/internal/adapters/storage/sqlite"
	"github.com/hylla/sgc/internal/app"
	"github.com/hylla/sgc/internal/domain"
	"github.com/hylla/sgc/internal/impact"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

func printTitle(w io.Writer, title string) {
	_, _ = fmt.Fprintln(w, titleStyle.Render(title))
}

func printTable(w io.Writer, t *table.Table) {
	_, _ = fmt.Fprintln(w, t.Render())
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}

func renderProcesses(w io.Writer, processes []domain.Process) {
	if len(processes) == 0 {
		_, _ = fmt.Fprintln(w, mutedStyle.Render("no processes"))
		return
	}
	t := newTable("ID", "Description", "Kind", "State", "Deadline", "Units")
	for _, p := range processes {
		t.Row(p.ID, p.Description, string(p.Kind), string(p.State), formatDate(p.Deadline), strconv.Itoa(len(p.UnitIDs)))
	}
	printTable(w, t)
}

func renderProcess(w io.Writer, p domain.Process, subs []domain.Subprocess, tree *domain.UnitTree) {
	printTitle(w, p.Description)
	_, _ = fmt.Fprintf(w, "id: %s\nkind: %s\nstate: %s\ndeadline: %s\nstarted: %s\nfinished: %s\n",
		p.ID, p.Kind, p.State, formatDate(p.Deadline), formatTime(p.StartedAt), formatTime(p.FinishedAt))
	if len(subs) == 0 {
		return
	}
	renderSubprocesses(w, subs, tree)
}

func renderSubprocesses(w io.Writer, subs []domain.Subprocess, tree *domain.UnitTree) {
	t := newTable("Subprocess", "Unit", "State", "Location", "Stage 1", "Stage 2")
	for _, sub := range subs {
		stage2 := "-"
		if sub.Stage2Deadline != nil {
			stage2 = formatDate(*sub.Stage2Deadline)
		}
		t.Row(sub.ID, unitCode(tree, sub.UnitID), string(sub.State), unitCode(tree, sub.LocationUnitID), formatDate(sub.Stage1Deadline), stage2)
	}
	printTable(w, t)
}

func renderSubprocess(w io.Writer, sub domain.Subprocess, tree *domain.UnitTree) {
	_, _ = fmt.Fprintf(w, "subprocess %s: %s (unit %s, at %s, version %d)\n",
		sub.ID, sub.State, unitCode(tree, sub.UnitID), unitCode(tree, sub.LocationUnitID), sub.Version)
}

func unitCode(tree *domain.UnitTree, id string) string {
	if tree == nil || id == "" {
		return id
	}
	if unit, ok := tree.Unit(id); ok {
		return unit.Code
	}
	return id
}

func renderMapContents(w io.Writer, contents app.MapContents) {
	printTitle(w, "Cadastro")
	if len(contents.Activities) == 0 {
		_, _ = fmt.Fprintln(w, mutedStyle.Render("no activities"))
	} else {
		t := newTable("Activity", "Description", "Knowledge")
		for _, a := range contents.Activities {
			knowledge := make([]string, 0, len(a.Knowledge))
			for _, k := range a.Knowledge {
				knowledge = append(knowledge, k.Description)
			}
			t.Row(a.ID, a.Description, strings.Join(knowledge, "\n"))
		}
		printTable(w, t)
	}

	printTitle(w, "Competencies")
	if len(contents.Competencies) == 0 {
		_, _ = fmt.Fprintln(w, mutedStyle.Render("no competencies"))
	} else {
		descriptions := make(map[string]string, len(contents.Activities))
		for _, a := range contents.Activities {
			descriptions[a.ID] = a.Description
		}
		linked := make(map[string][]string, len(contents.Competencies))
		for _, link := range contents.Links {
			linked[link.CompetencyID] = append(linked[link.CompetencyID], descriptions[link.ActivityID])
		}
		t := newTable("Competency", "Description", "Activities")
		for _, c := range contents.Competencies {
			t.Row(c.ID, c.Description, strings.Join(linked[c.ID], "\n"))
		}
		printTable(w, t)
	}
	if s := strings.TrimSpace(contents.Map.Suggestions); s != "" {
		printTitle(w, "Suggestions")
		_, _ = fmt.Fprintln(w, s)
	}
}

func renderImpacts(w io.Writer, report impact.Report) {
	_, _ = fmt.Fprintln(w, report.Summary())
	if !report.HasImpacts {
		return
	}
	changes := newTable("Change", "Activity", "Competencies")
	for _, item := range report.Inserted {
		changes.Row("inserted", item.Description, "")
	}
	for _, item := range report.Removed {
		changes.Row("removed", item.Description, strings.Join(item.Competencies, "\n"))
	}
	for _, item := range report.Altered {
		changes.Row("altered", item.PreviousDescription+" -> "+item.Description, strings.Join(item.Competencies, "\n"))
	}
	printTable(w, changes)
	if report.TotalImpactedCompetencies() > 0 {
		t := newTable("Competency", "Impact", "Reasons")
		for _, c := range report.Competencies {
			reasons := make([]string, 0, len(c.Reasons))
			for _, r := range c.Reasons {
				reasons = append(reasons, r.Text)
			}
			t.Row(c.Description, string(c.Kind), strings.Join(reasons, "\n"))
		}
		printTable(w, t)
	}
}

func renderHistory(w io.Writer, movements []domain.Movement, analyses []domain.Analysis, tree *domain.UnitTree) {
	printTitle(w, "Movements")
	if len(movements) == 0 {
		_, _ = fmt.Fprintln(w, mutedStyle.Render("no movements"))
	} else {
		t := newTable("When", "From", "To", "Description", "By")
		for _, m := range movements {
			t.Row(m.OccurredAt.Format(time.RFC3339), unitCode(tree, m.OriginUnitID), unitCode(tree, m.DestinationUnitID), m.Description, m.PerformedBy)
		}
		printTable(w, t)
	}
	printTitle(w, "Analyses")
	if len(analyses) == 0 {
		_, _ = fmt.Fprintln(w, mutedStyle.Render("no analyses"))
		return
	}
	t := newTable("When", "Stage", "Action", "Unit", "Analyst", "Notes")
	for _, a := range analyses {
		notes := strings.TrimSpace(strings.Join([]string{a.Reason, a.Observations, a.ImpactSummary}, "\n"))
		t.Row(a.CreatedAt.Format(time.RFC3339), string(a.Stage), string(a.Action), unitCode(tree, a.UnitID), a.AnalystID, notes)
	}
	printTable(w, t)
}

func renderOutbox(w io.Writer, messages []sqlite.OutboxMessage) {
	if len(messages) == 0 {
		_, _ = fmt.Fprintln(w, mutedStyle.Render("outbox empty"))
		return
	}
	t := newTable("ID", "To", "Subject", "Queued")
	for _, m := range messages {
		t.Row(strconv.FormatInt(m.ID, 10), m.Recipient, m.Subject, m.CreatedAt.Format(time.RFC3339))
	}
	printTable(w, t)
}
