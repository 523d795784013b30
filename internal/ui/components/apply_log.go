package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	attachedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("42")).
			Padding(0, 1)

	failedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("196")).
			Padding(0, 1)

	applyHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("252")).
				Padding(0, 1)

	subTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	placeholderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Italic(true).
				Padding(0, 1)
)

// ApplyResult is one attach attempt made during the current session.
type ApplyResult struct {
	Label   string
	Success bool
}

// ApplyLog keeps a bounded history of attach attempts, split into attached
// and failed boxes. It lives and dies with the session, like the ignore set.
type ApplyLog struct {
	Attached []ApplyResult
	Failed   []ApplyResult
	Width    int
	Title    string
}

func NewApplyLog(width int) *ApplyLog {
	return &ApplyLog{
		Attached: make([]ApplyResult, 0),
		Failed:   make([]ApplyResult, 0),
		Width:    width,
		Title:    "This Session",
	}
}

func (a *ApplyLog) Add(res ApplyResult, limit int) {
	if res.Success {
		a.Attached = appendWithLimit(a.Attached, res, limit)
	} else {
		a.Failed = appendWithLimit(a.Failed, res, limit)
	}
}

func appendWithLimit(slice []ApplyResult, res ApplyResult, limit int) []ApplyResult {
	slice = append(slice, res)
	if limit > 0 && len(slice) > limit {
		return slice[len(slice)-limit:]
	}
	return slice
}

func (a *ApplyLog) View() string {
	var boxes []string

	if len(a.Attached) > 0 {
		boxes = append(boxes, a.renderBox("Attached", a.Attached, attachedStyle, "✓"))
	}

	if len(a.Failed) > 0 {
		boxes = append(boxes, a.renderBox("Failed", a.Failed, failedStyle, "✗"))
	}

	var content string
	if len(boxes) == 0 {
		content = placeholderStyle.Render("Nothing applied yet")
	} else {
		content = strings.Join(boxes, "\n")
	}

	result := content
	if a.Title != "" {
		result = applyHeaderStyle.Render(a.Title) + "\n" + content
	}
	return result
}

func (a *ApplyLog) renderBox(title string, results []ApplyResult, style lipgloss.Style, icon string) string {
	boxWidth := a.Width

	subTitle := subTitleStyle.Foreground(style.GetForeground()).Render(title)

	innerWidth := boxWidth - 4
	if innerWidth < 0 {
		innerWidth = 0
	}

	var lines []string
	labelWidth := innerWidth - 2
	if labelWidth < 0 {
		labelWidth = 0
	}

	for _, r := range results {
		wrapped := lipgloss.NewStyle().Width(labelWidth).Render(r.Label)
		labelLines := strings.Split(wrapped, "\n")
		for i, line := range labelLines {
			if i == 0 {
				lines = append(lines, fmt.Sprintf("%s %s", icon, line))
			} else {
				lines = append(lines, fmt.Sprintf("  %s", line))
			}
		}
	}

	body := strings.Join(lines, "\n")
	return style.Width(boxWidth).Render(subTitle + "\n" + body)
}
