// # cmd/pylens/ui.go
package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			MarginLeft(2).
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true).
			Render

	docStyle = lipgloss.NewStyle().Margin(1, 2)

	smellStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	securityStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

const maxScanLines = 200

type item struct {
	title, desc string
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.title + i.desc }

type model struct {
	list          list.Model
	lastUpdate    time.Time
	fileCount     int
	totalSmells   int
	totalSecurity int
}

type scanMsg struct {
	path          string
	when          time.Time
	smells        int
	security      int
	severity      string
	failed        bool
	removed       bool
	fileCount     int
	totalSmells   int
	totalSecurity int
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v-4)
	case scanMsg:
		m.fileCount = msg.fileCount
		m.totalSmells = msg.totalSmells
		m.totalSecurity = msg.totalSecurity
		m.lastUpdate = msg.when

		// Leave the visible list alone while the user is filtering.
		if m.list.FilterState() != list.Filtering {
			items := append([]list.Item{scanItem(msg)}, m.list.Items()...)
			if len(items) > maxScanLines {
				items = items[:maxScanLines]
			}
			m.list.SetItems(items)
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func scanItem(msg scanMsg) item {
	ts := msg.when.Format("15:04:05")
	switch {
	case msg.failed:
		return item{title: msg.path, desc: ts + " | parse failed"}
	case msg.removed:
		return item{title: msg.path, desc: ts + " | removed"}
	}

	desc := fmt.Sprintf("%s | %d smells | %d security", ts, msg.smells, msg.security)
	if msg.severity != "" {
		desc += " | " + msg.severity
	}
	return item{title: msg.path, desc: desc}
}

func (m model) View() string {
	status := statusStyle.Render(fmt.Sprintf("Last update: %v | %d files tracked",
		m.lastUpdate.Format("15:04:05"), m.fileCount))

	var summary string
	if m.totalSmells == 0 && m.totalSecurity == 0 {
		summary = successStyle.Render("✅ No findings")
	} else {
		summary = fmt.Sprintf("⚠️  %s | %s",
			smellStyle.Render(fmt.Sprintf("%d Smells", m.totalSmells)),
			securityStyle.Render(fmt.Sprintf("%d Security", m.totalSecurity)))
	}

	header := fmt.Sprintf("%s\n%s | %s\n", titleStyle("Python Code Monitor"), status, summary)
	return docStyle.Render(header + "\n" + m.list.View())
}

func initialModel() model {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Recent Scans"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)

	return model{
		list:       l,
		lastUpdate: time.Now(),
	}
}
