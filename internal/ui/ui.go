package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/wdx/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ConfirmView ViewState = iota
	RunView
	ResultView
)

const previewLimit = 10

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	engine       *tasks.DiscoveryEngine
	opts         tasks.RunOpts
	width        int
	height       int
	progressChan chan tasks.ProgressUpdate
	progress     tasks.ProgressUpdate
	result       *tasks.RunResult
	err          error
	help         help.Model
	keys         keyMap
}

type progressUpdateMsg tasks.ProgressUpdate

type runCompleteMsg struct {
	result *tasks.RunResult
	err    error
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, engine *tasks.DiscoveryEngine, opts tasks.RunOpts) *Model {
	return &Model{
		ctx:    ctx,
		view:   ConfirmView,
		engine: engine,
		opts:   opts,
		help:   help.New(),
		keys:   newKeyMap(),
	}
}

// Init implements tea.Model. The confirm view waits for input, so there is no
// startup command.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case RunView:
			return m.handleRunKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case progressUpdateMsg:
		m.progress = tasks.ProgressUpdate(msg)
		return m, m.waitForProgress()

	case runCompleteMsg:
		m.result = msg.result
		m.err = msg.err
		m.view = ResultView
		m.progressChan = nil
		return m, nil
	}

	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case ConfirmView:
		return m.renderConfirm()
	case RunView:
		return m.renderRun()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "n":
		return m, tea.Quit
	case "d":
		m.opts.DryRun = true
		m.view = RunView
		return m, m.startRun()
	case "y":
		m.view = RunView
		return m, m.startRun()
	}
	return m, nil
}

func (m *Model) handleRunKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		m.view = ConfirmView
		m.result = nil
		m.err = nil
		m.progress = tasks.ProgressUpdate{}
		return m, nil
	}
	return m, nil
}

func (m *Model) startRun() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	progressChan := m.progressChan

	go func() {
		result, err := m.engine.Run(m.ctx, progressChan, m.opts)
		m.result = result
		m.err = err
		close(progressChan)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	return func() tea.Msg {
		if m.progressChan == nil {
			return runCompleteMsg{result: m.result, err: m.err}
		}

		update, ok := <-m.progressChan
		if !ok {
			return runCompleteMsg{result: m.result, err: m.err}
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render("Generate Weekly Discoveries?")
	days := int(m.opts.Window.Hours() / 24)
	if days == 0 {
		days = 7
	}
	info := fmt.Sprintf(
		"\nWindow: last %d days\nRelated per artist: %d\nArtist cap: %d\nWorkers: %d\n",
		days, m.opts.MaxRelatedPerArtist, m.opts.MaxArtists, m.opts.Workers,
	)

	helpKeys := []key.Binding{m.keys.yes, m.keys.dry, m.keys.no, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderRun() string {
	title := styles.title.Render("Generating Playlist")

	phase := m.progress.Phase.String() + "..."
	if m.progress.Total > 0 {
		phase = fmt.Sprintf("%s (%d/%d)", m.progress.Phase, m.progress.Current, m.progress.Total)
	}

	return fmt.Sprintf("%s\n\n%s\n%s", title, phase, styles.help.Render(m.progress.Message))
}

func (m *Model) renderResult() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Run failed: %v\n\nPress r to retry, q to quit", m.err))
	}

	if m.result == nil {
		return styles.err.Render("No result available\n\nPress r to retry, q to quit")
	}

	title := styles.ok.Render("✓ Playlist Generated!")
	if m.result.Target == nil {
		title = styles.ok.Render("✓ Dry Run Complete")
	}

	info := fmt.Sprintf(
		"\nSeeds: %d\nArtists scanned: %d\nReleases in window: %d\nTracks: %d",
		len(m.result.Set.Seeds),
		len(m.result.Set.Artists),
		m.result.ReleaseCount,
		len(m.result.Set.Tracks),
	)
	if m.result.Target != nil {
		info = fmt.Sprintf("\nPlaylist: %s\nURL: %s%s", m.result.Target.Name, m.result.Target.URL, info)
	}

	preview := "\n\nPreview:"
	limit := previewLimit
	if len(m.result.Set.Tracks) < limit {
		limit = len(m.result.Set.Tracks)
	}
	for _, track := range m.result.Set.Tracks[:limit] {
		preview += fmt.Sprintf("\n  • %s", track.Title)
	}
	if rest := len(m.result.Set.Tracks) - limit; rest > 0 {
		preview += styles.help.Render(fmt.Sprintf("\n  … and %d more", rest))
	}

	var skipped string
	if len(m.result.Skipped) > 0 {
		skipped = fmt.Sprintf("\n\n%s", styles.warn.Render(fmt.Sprintf("Skipped %d artists:", len(m.result.Skipped))))
		for _, failure := range m.result.Skipped {
			skipped += fmt.Sprintf("\n  • %s", failure.Artist.Name)
		}
	}

	helpKeys := []key.Binding{m.keys.restart, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s%s%s%s\n\n%s", title, info, preview, skipped, helpView)
}
