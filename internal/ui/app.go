package ui

import (
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ldi/tt/internal/db"
	"github.com/ldi/tt/internal/reconcile"
	"github.com/ldi/tt/internal/ui/components"
	"github.com/ldi/tt/pkg/models"
)

type view int

const (
	viewMenu view = iota
	viewCreate
	viewTasks
	viewInbox
)

const bodyViewHeight = 8

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 2)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	linkedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	openStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
)

// App is the root model for the interactive terminal application. All
// registry and reconciliation state lives behind the store and the session;
// the App only renders it and forwards key presses.
type App struct {
	database *db.DB
	session  *reconcile.Session
	logger   *slog.Logger

	view     view
	width    int
	height   int
	quitting bool

	menuCursor int

	createdCode string
	createMsg   string
	createErr   string

	tasks        []*models.Task
	taskCursor   int
	tasksMsg     string
	tasksLoading bool

	items       []reconcile.Classified
	inboxCursor int
	scanning    bool
	degraded    bool
	inboxMsg    string
	body        *components.BodyView
	applyLog    *components.ApplyLog
}

func NewApp(database *db.DB, session *reconcile.Session, logger *slog.Logger) App {
	if logger == nil {
		logger = slog.Default()
	}
	return App{
		database: database,
		session:  session,
		logger:   logger,
		body:     components.NewBodyView(0, bodyViewHeight),
		applyLog: components.NewApplyLog(0),
	}
}

func (a App) Init() tea.Cmd {
	return nil
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		bodyWidth := msg.Width - 4
		if bodyWidth < 0 {
			bodyWidth = 0
		}
		a.body.SetSize(bodyWidth, bodyViewHeight)
		a.applyLog.Width = bodyWidth
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			a.quitting = true
			return a, tea.Quit
		}

	case taskAllocatedMsg:
		return a.handleTaskAllocated(msg)

	case tasksLoadedMsg:
		return a.handleTasksLoaded(msg)

	case taskDeletedMsg:
		return a.handleTaskDeleted(msg)

	case prOpenedMsg:
		return a.handlePROpened(msg)

	case scanFinishedMsg:
		return a.handleScanFinished(msg)

	case linkAppliedMsg:
		return a.handleLinkApplied(msg)
	}

	switch a.view {
	case viewCreate:
		return a.updateCreate(msg)
	case viewTasks:
		return a.updateTasks(msg)
	case viewInbox:
		return a.updateInbox(msg)
	default:
		return a.updateMenu(msg)
	}
}

func (a App) View() string {
	if a.quitting {
		return ""
	}

	switch a.view {
	case viewCreate:
		return a.viewCreate()
	case viewTasks:
		return a.viewTasks()
	case viewInbox:
		return a.viewInbox()
	default:
		return a.viewMenu()
	}
}

// Run starts the interactive terminal application and blocks until the
// user quits.
func Run(database *db.DB, session *reconcile.Session, logger *slog.Logger) error {
	p := tea.NewProgram(NewApp(database, session, logger), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
