package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ldi/tt/internal/db"
	"github.com/ldi/tt/internal/reconcile"
	"github.com/ldi/tt/internal/ui/components"
	"github.com/ldi/tt/pkg/models"
)

const ghUnavailableBanner = "GitHub CLI (gh) is not available. Please install and authenticate."

type scanFinishedMsg struct {
	result *reconcile.ScanResult
	err    error
}

func scanCmd(session *reconcile.Session) tea.Cmd {
	return func() tea.Msg {
		result, err := session.Scan(context.Background(), "")
		return scanFinishedMsg{result: result, err: err}
	}
}

type linkAppliedMsg struct {
	item reconcile.Classified
	task *models.Task
	err  error
}

func applyCmd(session *reconcile.Session, item reconcile.Classified) tea.Cmd {
	return func() tea.Msg {
		task, err := session.Apply(context.Background(), item)
		return linkAppliedMsg{item: item, task: task, err: err}
	}
}

func (a App) handleScanFinished(msg scanFinishedMsg) (tea.Model, tea.Cmd) {
	a.scanning = false
	if msg.err != nil {
		a.inboxMsg = errorStyle.Render("Error: " + msg.err.Error())
		return a, nil
	}
	if msg.result.Degraded {
		a.degraded = true
		a.items = nil
		a.body.Reset()
		a.logger.Warn("pr scan degraded", "reason", msg.result.Reason)
		return a, nil
	}

	a.degraded = false
	a.items = msg.result.Actionable()
	a.inboxCursor = 0
	if len(a.items) == 0 {
		a.inboxMsg = dimStyle.Render("No unlinked PRs found.")
		a.body.Reset()
	} else {
		a.inboxMsg = fmt.Sprintf("Found %d unlinked PRs", len(a.items))
		a.body.SetBody(a.items[0].Candidate.Body)
	}
	return a, nil
}

func (a App) handleLinkApplied(msg linkAppliedMsg) (tea.Model, tea.Cmd) {
	label := fmt.Sprintf("PR #%d to %s", msg.item.Candidate.Number, msg.item.Code)

	if errors.Is(msg.err, db.ErrInvalidTransition) {
		// Someone else claimed the task or the PR since the scan.
		a.applyLog.Add(components.ApplyResult{Label: label, Success: false}, 10)
		a.inboxMsg = warnStyle.Render("PR already handled, re-scanning...")
		a.scanning = true
		return a, scanCmd(a.session)
	}
	if msg.err != nil {
		a.applyLog.Add(components.ApplyResult{Label: label, Success: false}, 10)
		a.inboxMsg = errorStyle.Render("Error: " + msg.err.Error())
		return a, nil
	}

	a.applyLog.Add(components.ApplyResult{Label: label, Success: true}, 10)
	a.inboxMsg = okStyle.Render(fmt.Sprintf("✓ Attached PR #%d to %s",
		msg.item.Candidate.Number, msg.task.Code))
	a = a.removeInboxItem(msg.item.Key())
	return a, nil
}

func (a App) updateInbox(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "q":
			a.view = viewMenu
			return a, nil

		case "up", "k":
			if a.inboxCursor > 0 {
				a.inboxCursor--
				a.body.SetBody(a.items[a.inboxCursor].Candidate.Body)
			}

		case "down", "j":
			if a.inboxCursor < len(a.items)-1 {
				a.inboxCursor++
				a.body.SetBody(a.items[a.inboxCursor].Candidate.Body)
			}

		case "r":
			a.inboxMsg = ""
			a.degraded = false
			a.scanning = true
			return a, scanCmd(a.session)

		case "a", "enter":
			if item, ok := a.selectedInboxItem(); ok {
				return a, applyCmd(a.session, item)
			}

		case "i":
			if item, ok := a.selectedInboxItem(); ok {
				a.session.Ignore(item.Key())
				a = a.removeInboxItem(item.Key())
				a.inboxMsg = dimStyle.Render("PR ignored (only for this session)")
			}

		case "pgup", "pgdown", "ctrl+u", "ctrl+d":
			cmd := a.body.Update(msg)
			return a, cmd
		}
	}

	return a, nil
}

func (a App) selectedInboxItem() (reconcile.Classified, bool) {
	if len(a.items) == 0 || a.inboxCursor < 0 || a.inboxCursor >= len(a.items) {
		return reconcile.Classified{}, false
	}
	return a.items[a.inboxCursor], true
}

func (a App) removeInboxItem(key string) App {
	items := make([]reconcile.Classified, 0, len(a.items))
	for _, item := range a.items {
		if item.Key() != key {
			items = append(items, item)
		}
	}
	a.items = items
	if a.inboxCursor >= len(a.items) {
		a.inboxCursor = len(a.items) - 1
	}
	if a.inboxCursor < 0 {
		a.inboxCursor = 0
	}
	if len(a.items) == 0 {
		a.body.Reset()
	} else {
		a.body.SetBody(a.items[a.inboxCursor].Candidate.Body)
	}
	return a
}

func (a App) viewInbox() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("PR Inbox"))
	s.WriteString("\n\n")

	switch {
	case a.scanning:
		s.WriteString(dimStyle.Render("  Scanning for PRs..."))
		s.WriteString("\n")

	case a.degraded:
		s.WriteString("  " + warnStyle.Render(ghUnavailableBanner))
		s.WriteString("\n")

	case len(a.items) == 0:
		s.WriteString(dimStyle.Render("  No unlinked PRs found."))
		s.WriteString("\n")

	default:
		s.WriteString(headerStyle.Render(fmt.Sprintf("  %-8s %-6s %-24s %s",
			"Task ID", "PR #", "Branch", "Title")))
		s.WriteString("\n")

		for i, item := range a.items {
			cursor := "  "
			if i == a.inboxCursor {
				cursor = "> "
			}

			action := ""
			if item.Action == reconcile.ActionImport {
				action = dimStyle.Render(" (new)")
			}

			s.WriteString(fmt.Sprintf("%s%-8s %-6s %-24s %s%s",
				cursor,
				item.Code,
				fmt.Sprintf("#%d", item.Candidate.Number),
				truncate(item.Candidate.Branch, 24),
				truncate(item.Candidate.Title, 50),
				action))
			s.WriteString("\n")
		}

		s.WriteString("\n")
		s.WriteString(a.body.View())
		s.WriteString("\n")
	}

	if a.inboxMsg != "" {
		s.WriteString("\n  " + a.inboxMsg + "\n")
	}

	if len(a.applyLog.Attached) > 0 || len(a.applyLog.Failed) > 0 {
		s.WriteString("\n" + a.applyLog.View() + "\n")
	}

	s.WriteString("\n(j/k navigate, a/enter attach, i ignore, r re-scan, esc to go back)\n")

	return s.String()
}
