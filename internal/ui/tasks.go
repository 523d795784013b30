package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ldi/tt/internal/db"
	"github.com/ldi/tt/internal/reconcile"
	"github.com/ldi/tt/pkg/models"
)

const createdAtLayout = "2006-01-02 03:04PM"

type tasksLoadedMsg struct {
	tasks []*models.Task
	err   error
}

func loadTasksCmd(database *db.DB) tea.Cmd {
	return func() tea.Msg {
		tasks, err := database.ListTasks(context.Background())
		return tasksLoadedMsg{tasks: tasks, err: err}
	}
}

type taskDeletedMsg struct {
	code string
	err  error
}

func deleteTaskCmd(database *db.DB, code string) tea.Cmd {
	return func() tea.Msg {
		err := database.DeleteTask(context.Background(), code)
		return taskDeletedMsg{code: code, err: err}
	}
}

type prOpenedMsg struct {
	code string
	err  error
}

func openPRCmd(session *reconcile.Session, code string) tea.Cmd {
	return func() tea.Msg {
		err := session.OpenPR(context.Background(), code)
		return prOpenedMsg{code: code, err: err}
	}
}

func (a App) handleTasksLoaded(msg tasksLoadedMsg) (tea.Model, tea.Cmd) {
	a.tasksLoading = false
	if msg.err != nil {
		a.tasksMsg = errorStyle.Render("Error: " + msg.err.Error())
		return a, nil
	}
	a.tasks = msg.tasks
	if a.taskCursor >= len(a.tasks) {
		a.taskCursor = len(a.tasks) - 1
	}
	if a.taskCursor < 0 {
		a.taskCursor = 0
	}
	return a, nil
}

func (a App) handleTaskDeleted(msg taskDeletedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		a.tasksMsg = errorStyle.Render("Error: " + msg.err.Error())
		return a, nil
	}
	a.tasksMsg = okStyle.Render(fmt.Sprintf("✓ Deleted %s", msg.code))
	a.tasksLoading = true
	return a, loadTasksCmd(a.database)
}

func (a App) handlePROpened(msg prOpenedMsg) (tea.Model, tea.Cmd) {
	if errors.Is(msg.err, db.ErrNotFound) {
		a.tasksMsg = warnStyle.Render(fmt.Sprintf("No PR linked to %s", msg.code))
	} else if msg.err != nil {
		a.tasksMsg = errorStyle.Render("Error: " + msg.err.Error())
	}
	return a, nil
}

func (a App) updateTasks(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "q":
			a.view = viewMenu
			return a, nil

		case "up", "k":
			if a.taskCursor > 0 {
				a.taskCursor--
			}

		case "down", "j":
			if a.taskCursor < len(a.tasks)-1 {
				a.taskCursor++
			}

		case "r":
			a.tasksMsg = ""
			a.tasksLoading = true
			return a, loadTasksCmd(a.database)

		case "d":
			if task := a.selectedTask(); task != nil {
				return a, deleteTaskCmd(a.database, task.Code)
			}

		case "o":
			if task := a.selectedTask(); task != nil {
				return a, openPRCmd(a.session, task.Code)
			}
		}
	}

	return a, nil
}

func (a App) selectedTask() *models.Task {
	if len(a.tasks) == 0 {
		return nil
	}
	if a.taskCursor < 0 || a.taskCursor >= len(a.tasks) {
		return nil
	}
	return a.tasks[a.taskCursor]
}

func (a App) viewTasks() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("Tasks"))
	s.WriteString("\n\n")

	if a.tasksLoading {
		s.WriteString(dimStyle.Render("  Loading..."))
		s.WriteString("\n")
	} else if len(a.tasks) == 0 {
		s.WriteString(dimStyle.Render("  No tasks yet"))
		s.WriteString("\n")
	} else {
		s.WriteString(headerStyle.Render(fmt.Sprintf("  %-8s %-8s %-19s %-8s %s",
			"ID", "Status", "Created", "PR", "Title")))
		s.WriteString("\n")

		for i, task := range a.tasks {
			cursor := "  "
			if i == a.taskCursor {
				cursor = "> "
			}

			status := string(task.Status)
			styledStatus := openStyle.Render(fmt.Sprintf("%-8s", status))
			if task.Status == models.TaskStatusLinked {
				styledStatus = linkedStyle.Render(fmt.Sprintf("%-8s", status))
			}

			pr := "-"
			title := "-"
			if task.Link != nil {
				pr = fmt.Sprintf("#%d", task.Link.Number)
				title = truncate(task.Link.Title, 60)
			}

			s.WriteString(fmt.Sprintf("%s%-8s %s %-19s %-8s %s",
				cursor,
				task.Code,
				styledStatus,
				task.CreatedAt.Local().Format(createdAtLayout),
				pr,
				title))
			s.WriteString("\n")
		}
	}

	if a.tasksMsg != "" {
		s.WriteString("\n  " + a.tasksMsg + "\n")
	}

	s.WriteString("\n(j/k navigate, d delete, o open PR, r refresh, esc to go back)\n")

	return s.String()
}
