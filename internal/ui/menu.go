package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	logoStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	itemStyle         = lipgloss.NewStyle().PaddingLeft(2)
	selectedItemStyle = lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("12")).Bold(true)
)

const logo = `
   █████    █████
  ░░███    ░░███
 ███████  ███████
░░░███░  ░░░███░
  ░███     ░███
  ░███ ███ ░███ ███
  ░░█████  ░░█████
   ░░░░░    ░░░░░
`

var menuChoices = []string{"Create Task", "Tasks", "PR Inbox", "Quit"}

func (a App) updateMenu(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q":
			a.quitting = true
			return a, tea.Quit

		case "up", "k":
			if a.menuCursor > 0 {
				a.menuCursor--
			}

		case "down", "j":
			if a.menuCursor < len(menuChoices)-1 {
				a.menuCursor++
			}

		case "enter":
			return a.selectMenuItem()
		}
	}

	return a, nil
}

func (a App) selectMenuItem() (tea.Model, tea.Cmd) {
	switch menuChoices[a.menuCursor] {
	case "Create Task":
		a.view = viewCreate
		a.createdCode = ""
		a.createMsg = ""
		a.createErr = ""
		return a, allocateCmd(a.database)

	case "Tasks":
		a.view = viewTasks
		a.taskCursor = 0
		a.tasksMsg = ""
		a.tasksLoading = true
		return a, loadTasksCmd(a.database)

	case "PR Inbox":
		a.view = viewInbox
		a.inboxCursor = 0
		a.inboxMsg = ""
		a.degraded = false
		a.scanning = true
		a.items = nil
		return a, scanCmd(a.session)

	default: // Quit
		a.quitting = true
		return a, tea.Quit
	}
}

func (a App) viewMenu() string {
	var s strings.Builder

	s.WriteString(logoStyle.Render(logo))
	s.WriteString("\n\n")

	for i, choice := range menuChoices {
		if a.menuCursor == i {
			s.WriteString(selectedItemStyle.Render(fmt.Sprintf("> %s", choice)))
		} else {
			s.WriteString(itemStyle.Render(fmt.Sprintf("  %s", choice)))
		}
		s.WriteString("\n")
	}

	s.WriteString("\n(use arrow keys or j/k to navigate, enter to select, q to quit)\n")

	return s.String()
}
