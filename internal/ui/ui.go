package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/songvert/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	TransferView ViewState = iota
	ResultView
)

const (
	progressBuffer = 100
	logLines       = 8
)

// Job is the work the TUI monitors. It must only send on progress and must not close it.
type Job func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*tasks.ConvertResult, error)

// Model represents the TUI application state.
type Model struct {
	ctx           context.Context
	cancel        context.CancelFunc
	job           Job
	title         string
	view          ViewState
	width         int
	height        int
	spinner       spinner.Model
	bar           progress.Model
	progressChan  chan tasks.ProgressUpdate
	done          chan runComplete
	progress      tasks.ProgressUpdate
	log           []string
	trackList     list.Model
	unmatchedOnly bool
	result        *tasks.ConvertResult
	err           error
	help          help.Model
	keys          keyMap
}

// NewModel creates a TUI model that will run job when initialized.
func NewModel(ctx context.Context, title string, job Job) *Model {
	ctx, cancel := context.WithCancel(ctx)
	return &Model{
		ctx:     ctx,
		cancel:  cancel,
		job:     job,
		title:   title,
		view:    TransferView,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.title.UnsetMarginBottom())),
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(60)),
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Run starts the TUI, blocks until the user quits and returns the job's result.
func Run(ctx context.Context, title string, job Job) (*tasks.ConvertResult, error) {
	m := NewModel(ctx, title, job)
	defer m.cancel()

	final, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil {
		return nil, fmt.Errorf("TUI error: %w", err)
	}
	fm := final.(*Model)
	return fm.result, fm.err
}

// Result returns the job's result once the model reached [ResultView].
func (m *Model) Result() (*tasks.ConvertResult, error) { return m.result, m.err }

// Init starts the spinner and the job.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.start())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = min(max(msg.Width-4, 10), 80)
		if m.view == ResultView {
			m.trackList.SetSize(m.listWidth(), m.listHeight())
		}
		return m, nil

	case spinner.TickMsg:
		if m.view != TransferView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch m.view {
		case TransferView:
			return m.handleTransferKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		switch msg.kind {
		case MsgProgressUpdate:
			update := msg.data.(tasks.ProgressUpdate)
			m.progress = update
			m.appendLog(update.Message)
			return m, m.waitForProgress()
		case MsgRunComplete:
			done := msg.data.(runComplete)
			m.result, m.err = done.result, done.err
			m.view = ResultView
			if m.result != nil {
				m.trackList = list.New(trackItems(m.result.Outcomes, false), list.NewDefaultDelegate(), 0, 0)
				m.trackList.Title = m.result.Playlist.Name
				m.trackList.SetSize(m.listWidth(), m.listHeight())
			}
			return m, nil
		}
	}

	if m.view == ResultView && m.result != nil {
		var cmd tea.Cmd
		m.trackList, cmd = m.trackList.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case TransferView:
		return m.renderTransfer()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleTransferKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		m.cancel()
		return m, tea.Quit
	case key.Matches(msg, m.keys.cancel):
		m.cancel()
		m.appendLog("Cancelling, waiting for in-flight lookups...")
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.result != nil && m.trackList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.trackList, cmd = m.trackList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.unmatch) && m.result != nil:
		m.unmatchedOnly = !m.unmatchedOnly
		return m, m.trackList.SetItems(trackItems(m.result.Outcomes, m.unmatchedOnly))
	}

	if m.result == nil {
		return m, nil
	}
	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

// start runs the job in the background. The progress channel is closed when the job returns, after
// which the result is delivered through done.
func (m *Model) start() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, progressBuffer)
	m.done = make(chan runComplete, 1)

	go func(progress chan tasks.ProgressUpdate, done chan<- runComplete) {
		result, err := m.job(m.ctx, progress)
		close(progress)
		done <- runComplete{result: result, err: err}
	}(m.progressChan, m.done)

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.done
	return func() tea.Msg {
		update, ok := <-progress
		if !ok {
			r := <-done
			return runCompleteMsg(r.result, r.err)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) appendLog(line string) {
	if line == "" {
		return
	}
	m.log = append(m.log, line)
	if len(m.log) > logLines {
		m.log = m.log[len(m.log)-logLines:]
	}
}

func (m *Model) listWidth() int  { return max(m.width-4, 40) }
func (m *Model) listHeight() int { return max(m.height-10, 10) }

func (m *Model) percent() float64 {
	if m.progress.Total <= 0 {
		return 0
	}
	return min(float64(m.progress.Step)/float64(m.progress.Total), 1)
}

func (m *Model) renderTransfer() string {
	title := styles.title.Render(m.title)

	var phase string
	switch m.progress.Phase {
	case tasks.LoadSource:
		phase = "Loading source..."
	case tasks.Resolve:
		phase = fmt.Sprintf("Resolving tracks (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.Download:
		phase = fmt.Sprintf("Downloading (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.Record:
		phase = "Recording run..."
	default:
		phase = "Processing..."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s %s\n\n%s\n\n", title, m.spinner.View(), phase, m.bar.ViewAs(m.percent()))
	for _, line := range m.log {
		b.WriteString(styles.help.Render(line) + "\n")
	}
	b.WriteString("\n" + m.help.ShortHelpView([]key.Binding{m.keys.cancel, m.keys.quit}))
	return b.String()
}

func (m *Model) renderResult() string {
	if m.result == nil {
		return styles.err.Render(fmt.Sprintf("Conversion failed: %v\n\nPress q to quit", m.err))
	}

	r := m.result
	title := styles.ok.Render(fmt.Sprintf("✓ %s: matched %d of %d lookups (%.1f%%)", m.title, r.Matched, r.Attempted(), r.MatchPercentage))

	var stats []string
	for _, src := range r.Targets {
		if s := r.Stats[src]; s != nil {
			stats = append(stats, fmt.Sprintf("%s %s %s %s", src.Label(),
				styles.ok.Render(fmt.Sprintf("✓%d", s.Matched)),
				styles.warn.Render(fmt.Sprintf("✗%d", s.NoMatch)),
				styles.err.Render(fmt.Sprintf("!%d", s.Failed))))
		}
	}

	header := title + "\n" + strings.Join(stats, "  ")
	if m.err != nil {
		header += "\n" + styles.warn.Render(fmt.Sprintf("Stopped early: %v", m.err))
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.up, m.keys.down, m.keys.filter, m.keys.unmatch, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s\n\n%s", header, m.trackList.View(), helpView)
}
