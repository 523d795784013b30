package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	bodyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	emptyBodyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)

	scrollbarTrackStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("236"))

	scrollbarHandleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("241"))
)

// BodyView renders a pull request description in a scrollable viewport.
// The description is shown verbatim, exactly as it was snapshotted.
type BodyView struct {
	viewport viewport.Model
	body     string
	ready    bool
	width    int
	height   int
}

// NewBodyView creates a new BodyView.
func NewBodyView(width, height int) *BodyView {
	return &BodyView{
		viewport: viewport.New(width, height),
		width:    width,
		height:   height,
	}
}

func (b *BodyView) SetSize(width, height int) {
	b.width = width
	b.height = height
	vpWidth := width
	if width > 0 {
		vpWidth = width - 1
	}
	if !b.ready {
		b.viewport = viewport.New(vpWidth, height)
		b.viewport.HighPerformanceRendering = false
		b.ready = true
	} else {
		b.viewport.Width = vpWidth
		b.viewport.Height = height
	}
	b.updateContent()
}

// SetBody replaces the displayed description and scrolls back to the top.
func (b *BodyView) SetBody(body string) {
	b.body = body
	b.updateContent()
	b.viewport.GotoTop()
}

func (b *BodyView) Reset() {
	b.body = ""
	b.updateContent()
}

func (b *BodyView) updateContent() {
	width := b.viewport.Width
	content := b.body
	style := bodyStyle
	if content == "" {
		content = "(no description)"
		style = emptyBodyStyle
	}
	if width > 0 {
		content = style.Copy().Width(width).Render(content)
	} else {
		content = style.Render(content)
	}
	b.viewport.SetContent(content)
}

func (b *BodyView) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	b.viewport, cmd = b.viewport.Update(msg)
	return cmd
}

func (b *BodyView) View() string {
	if !b.ready {
		return ""
	}

	if b.viewport.TotalLineCount() <= b.viewport.Height {
		return b.viewport.View()
	}

	h := b.viewport.Height
	percent := b.viewport.ScrollPercent()

	handlePos := int(float64(h-1) * percent)

	var sb strings.Builder
	for i := 0; i < h; i++ {
		if i == handlePos {
			sb.WriteString(scrollbarHandleStyle.Render("┃"))
		} else {
			sb.WriteString(scrollbarTrackStyle.Render("│"))
		}
		if i < h-1 {
			sb.WriteString("\n")
		}
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, b.viewport.View(), sb.String())
}

func (b *BodyView) Height() int {
	return b.viewport.Height
}
