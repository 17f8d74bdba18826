// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"strings"

	"github.com/apimgr/torsentry/src/client/api"
	"github.com/apimgr/torsentry/src/client/tui"
	"github.com/apimgr/torsentry/src/common/theme"
	tea "github.com/charmbracelet/bubbletea"
)

// tuiModel is the interactive dashboard's state: a single screen showing
// the daemon's bootstrap status and its managed hidden services, refreshed
// on demand.
type tuiModel struct {
	styles         tui.TUIStyles
	layout         tui.LayoutConfig
	status         *api.TorStatus
	services       []api.HiddenService
	lastError      error
	isLoading      bool
	isQuitting     bool
	terminalWidth  int
	terminalHeight int
}

type tuiRefreshDoneMsg struct {
	status   *api.TorStatus
	services []api.HiddenService
	err      error
}

func createInitialTUIModel() tuiModel {
	themeMode := "auto"
	if cfg.TUI.Theme != "" {
		themeMode = cfg.TUI.Theme
	}
	return tuiModel{
		styles: tui.TUIStylesFromPalette(theme.GetColorPalette(themeMode)),
		layout: tui.LayoutStandard.Config(),
	}
}

func (m tuiModel) Init() tea.Cmd {
	return refreshTUI()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.isQuitting = true
			return m, tea.Quit
		case "r":
			if !m.isLoading {
				m.isLoading = true
				return m, refreshTUI()
			}
		}

	case tea.WindowSizeMsg:
		m.terminalWidth = msg.Width
		m.terminalHeight = msg.Height
		m.layout = tui.GetLayoutMode(msg.Width, msg.Height).Config()

	case tuiRefreshDoneMsg:
		m.isLoading = false
		m.status = msg.status
		m.services = msg.services
		m.lastError = msg.err
	}

	return m, nil
}

func (m tuiModel) View() string {
	if m.isQuitting {
		return ""
	}

	var b strings.Builder
	if m.layout.ShowHeader {
		b.WriteString(m.styles.Title.Render("torsentry") + "\n\n")
	}

	if m.isLoading {
		b.WriteString("refreshing...\n\n")
	} else if m.lastError != nil {
		b.WriteString(m.styles.Error.Render("error: "+m.lastError.Error()) + "\n\n")
	} else if m.status != nil {
		b.WriteString(fmt.Sprintf("bootstrap: %d%%\n\n", m.status.BootstrapPercent))
	}

	b.WriteString(fmt.Sprintf("hidden services (%d):\n", len(m.services)))
	for _, s := range m.services {
		b.WriteString(fmt.Sprintf("  %s  %s\n", s.Name, s.OnionAddress))
	}
	b.WriteString("\n")

	if m.layout.ShowFooter {
		b.WriteString(m.styles.Muted.Render("q: quit | r: refresh"))
	}

	return b.String()
}

func refreshTUI() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := requestContext()
		defer cancel()

		status, err := client.TorStatus(ctx)
		if err != nil {
			return tuiRefreshDoneMsg{err: err}
		}
		services, err := client.HiddenServicesList(ctx)
		if err != nil {
			return tuiRefreshDoneMsg{status: status, err: err}
		}
		return tuiRefreshDoneMsg{status: status, services: services}
	}
}

// RunInteractiveTUI runs the interactive dashboard.
func RunInteractiveTUI() error {
	program := tea.NewProgram(createInitialTUIModel(), tea.WithAltScreen())
	_, err := program.Run()
	return err
}
