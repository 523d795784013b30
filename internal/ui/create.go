package ui

import (
	"context"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ldi/tt/internal/db"
	"github.com/ldi/tt/pkg/models"
)

var codeStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")).Padding(0, 2)

type taskAllocatedMsg struct {
	task   *models.Task
	copied bool
	err    error
}

// allocateCmd reserves the next task number and puts the code on the
// clipboard. Clipboard failure is not an error; the code is still shown.
func allocateCmd(database *db.DB) tea.Cmd {
	return func() tea.Msg {
		task, err := database.AllocateTask(context.Background())
		if err != nil {
			return taskAllocatedMsg{err: err}
		}
		copied := clipboard.WriteAll(task.Code) == nil
		return taskAllocatedMsg{task: task, copied: copied}
	}
}

func (a App) handleTaskAllocated(msg taskAllocatedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		a.createErr = msg.err.Error()
		return a, nil
	}
	a.createdCode = msg.task.Code
	a.createErr = ""
	if msg.copied {
		a.createMsg = "✓ Copied to clipboard"
	} else {
		a.createMsg = "⚠ Could not copy to clipboard"
	}
	return a, nil
}

func (a App) updateCreate(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "q":
			a.view = viewMenu
			return a, nil

		case "enter", "g":
			return a, allocateCmd(a.database)
		}
	}

	return a, nil
}

func (a App) viewCreate() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("Create Task"))
	s.WriteString("\n\n")

	if a.createErr != "" {
		s.WriteString(errorStyle.Render("  Error: " + a.createErr))
		s.WriteString("\n")
	} else if a.createdCode != "" {
		s.WriteString(codeStyle.Render(a.createdCode))
		s.WriteString("\n\n")
		if strings.HasPrefix(a.createMsg, "✓") {
			s.WriteString("  " + okStyle.Render(a.createMsg))
		} else {
			s.WriteString("  " + warnStyle.Render(a.createMsg))
		}
		s.WriteString("\n")
		s.WriteString(dimStyle.Render("  You can now use this ID in your branch name."))
		s.WriteString("\n")
	} else {
		s.WriteString(dimStyle.Render("  Generating..."))
		s.WriteString("\n")
	}

	s.WriteString("\n(press enter or 'g' to generate another, esc to go back)\n")

	return s.String()
}
