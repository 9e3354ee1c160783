package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sfclink/internal/core/ports"
	"sfclink/internal/shared/util"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
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
)

type item struct {
	title, desc string
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.title + i.desc }

type updateMsg ports.WatchUpdate

type watchDoneMsg struct {
	err error
}

type model struct {
	root       string
	list       list.Model
	spinner    spinner.Model
	waiting    bool
	builds     int
	last       ports.WatchUpdate
	lastUpdate time.Time
	err        error
}

func initialModel(root string) model {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Link Errors"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)

	s := spinner.New()
	s.Spinner = spinner.Dot

	return model{
		root:    root,
		list:    l,
		spinner: s,
		waiting: true,
	}
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || (msg.String() == "q" && m.list.FilterState() != list.Filtering) {
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v-4)
	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case updateMsg:
		m.waiting = false
		m.builds++
		m.last = ports.WatchUpdate(msg)
		m.lastUpdate = time.Now()

		items := []list.Item{}
		if msg.Err != nil {
			items = append(items, item{title: m.root, desc: displayError(msg.Err)})
		}
		for _, name := range util.SortedKeys(msg.Result.Failures) {
			for _, err := range msg.Result.Failures[name] {
				items = append(items, item{title: name, desc: displayError(err)})
			}
		}
		cmd := m.list.SetItems(items)
		return m, cmd
	case watchDoneMsg:
		m.err = msg.err
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m model) View() string {
	if m.waiting {
		return docStyle.Render(fmt.Sprintf("%s\n%s Linking %s...", titleStyle("sfclink"), m.spinner.View(), m.root))
	}

	res := m.last.Result
	status := statusStyle.Render(fmt.Sprintf("Last build: %v | %d builds | %d files | %s",
		m.lastUpdate.Format("15:04:05"), m.builds, res.Files, res.Duration.Round(time.Millisecond)))

	var summary string
	switch {
	case m.last.Err != nil:
		summary = failureStyle.Render("Build failed")
	case res.Failed():
		summary = failureStyle.Render(fmt.Sprintf("%d modules, %d failed", res.Modules, len(res.Failures)))
	default:
		summary = successStyle.Render(fmt.Sprintf("Successfully compiled: %d modules", res.Modules))
	}

	if len(res.Cycles) > 0 {
		summary += statusStyle.Render(fmt.Sprintf(" | %d import cycles", len(res.Cycles)))
	}

	header := fmt.Sprintf("%s\n%s | %s\n", titleStyle("sfclink "+m.root), status, summary)
	if len(m.last.Changed) > 0 {
		header += statusStyle.Render("changed: "+strings.Join(m.last.Changed, ", ")) + "\n"
	}
	return docStyle.Render(header + "\n" + m.list.View())
}

// runDashboard runs watch mode behind the terminal UI until the user quits
// or ctx is done.
func runDashboard(ctx context.Context, svc ports.BuildService, root string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(initialModel(root), tea.WithAltScreen(), tea.WithContext(ctx))
	go func() {
		err := svc.Watch(ctx, func(u ports.WatchUpdate) {
			p.Send(updateMsg(u))
		})
		p.Send(watchDoneMsg{err: err})
	}()

	final, err := p.Run()
	stopped := ctx.Err() != nil
	cancel()
	if err != nil && !stopped {
		return err
	}
	if m, ok := final.(model); ok && m.err != nil {
		return m.err
	}
	return nil
}
