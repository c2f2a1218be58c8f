package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/wledui/internal/board"
	"github.com/muurk/wledui/internal/dashboard"
	"github.com/muurk/wledui/internal/discovery"
	"github.com/muurk/wledui/internal/wled"
)

// testTimeout bounds a single "test IP" probe
const testTimeout = 5 * time.Second

const (
	focusRange = iota
	focusTestIP
)

// discoveryKeyMap defines key bindings for the discovery form
type discoveryKeyMap struct {
	Next   key.Binding
	Submit key.Binding
	Back   key.Binding
	Quit   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k discoveryKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Submit, k.Back, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k discoveryKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Next, k.Submit},
		{k.Back, k.Quit},
	}
}

// scanningKeyMap defines key bindings while a sweep or test is running
type scanningKeyMap struct {
	Cancel key.Binding
	Quit   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (s scanningKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{s.Cancel, s.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (s scanningKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{s.Cancel, s.Quit},
	}
}

// DiscoveryModel is the screen for sweeping a network range or testing a
// single address.
type DiscoveryModel struct {
	ctrl *dashboard.Controller
	opts Options

	// Form state
	RangeInput textinput.Model
	IPInput    textinput.Model
	Focus      int

	// Sweep state
	Scanning      bool
	Testing       bool
	Progress      discovery.Progress
	ScanStartTime time.Time
	Status        string
	Err           error
	HasBoards     bool
	progress      <-chan discovery.Progress
	cancel        context.CancelFunc

	// UI state
	Width        int
	Height       int
	Spinner      spinner.Model
	ProgressBar  progress.Model
	Help         help.Model
	Keys         discoveryKeyMap
	ScanningKeys scanningKeyMap
}

// NewDiscoveryModel creates the discovery screen with the remembered range
// and test address prefilled.
func NewDiscoveryModel(ctrl *dashboard.Controller, opts Options) DiscoveryModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	rangeInput := textinput.New()
	rangeInput.Placeholder = "192.168.1 (empty sweeps the common ranges)"
	rangeInput.CharLimit = 15
	rangeInput.Width = 44
	rangeInput.SetValue(opts.Range)
	rangeInput.Focus()

	ipInput := textinput.New()
	ipInput.Placeholder = "192.168.1.40"
	ipInput.CharLimit = 15 // Max length for IPv4 address
	ipInput.Width = 44
	ipInput.SetValue(opts.TestIP)

	progressBar := progress.New(progress.WithDefaultGradient())
	progressBar.Width = 40

	keys := discoveryKeyMap{
		Next: key.NewBinding(
			key.WithKeys("tab", "shift+tab", "up", "down"),
			key.WithHelp("tab", "switch field"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "scan / test"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "boards"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}

	scanningKeys := scanningKeyMap{
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}

	return DiscoveryModel{
		ctrl:         ctrl,
		opts:         opts,
		RangeInput:   rangeInput,
		IPInput:      ipInput,
		Focus:        focusRange,
		Spinner:      s,
		ProgressBar:  progressBar,
		Help:         help.New(),
		Keys:         keys,
		ScanningKeys: scanningKeys,
	}
}

// Init starts the cursor blinking in the focused field
func (m DiscoveryModel) Init() tea.Cmd {
	return textinput.Blink
}

// Busy reports whether a sweep or test is in flight
func (m DiscoveryModel) Busy() bool {
	return m.Scanning || m.Testing
}

// Update handles messages and updates the model
func (m DiscoveryModel) Update(msg tea.Msg) (DiscoveryModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.Busy() {
			return m.updateBusy(msg)
		}
		return m.updateForm(msg)

	case progressMsg:
		m.Progress = discovery.Progress(msg)
		return m, waitForProgress(m.progress)

	case discoveryDoneMsg:
		return m.finishScan(msg)

	case testDoneMsg:
		return m.finishTest(msg)

	case spinner.TickMsg:
		if !m.Busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// updateBusy handles keys while a sweep or test runs
func (m DiscoveryModel) updateBusy(msg tea.KeyMsg) (DiscoveryModel, tea.Cmd) {
	if key.Matches(msg, m.ScanningKeys.Cancel) {
		m.Stop()
	}
	return m, nil
}

// updateForm handles keys while the form is editable
func (m DiscoveryModel) updateForm(msg tea.KeyMsg) (DiscoveryModel, tea.Cmd) {
	switch {
	case key.Matches(msg, m.Keys.Next):
		m.setFocus(1 - m.Focus)
		return m, textinput.Blink

	case key.Matches(msg, m.Keys.Submit):
		if m.Focus == focusTestIP {
			return m.startTest()
		}
		return m.startScan()

	case key.Matches(msg, m.Keys.Back):
		if m.HasBoards {
			return m, func() tea.Msg { return showBoardsMsg{} }
		}
		return m, nil
	}

	var cmd tea.Cmd
	if m.Focus == focusTestIP {
		m.IPInput, cmd = m.IPInput.Update(msg)
	} else {
		m.RangeInput, cmd = m.RangeInput.Update(msg)
	}
	return m, cmd
}

func (m *DiscoveryModel) setFocus(f int) {
	m.Focus = f
	if f == focusTestIP {
		m.RangeInput.Blur()
		m.IPInput.Focus()
	} else {
		m.IPInput.Blur()
		m.RangeInput.Focus()
	}
}

// startScan validates the range field and begins a sweep
func (m DiscoveryModel) startScan() (DiscoveryModel, tea.Cmd) {
	m.Err = nil
	m.Status = ""

	base := strings.TrimSpace(m.RangeInput.Value())
	if base != "" {
		normalized, err := discovery.NormalizeRange(base)
		if err != nil {
			m.Err = err
			return m, nil
		}
		base = normalized
		m.RangeInput.SetValue(base)
		if m.opts.RememberRange != nil {
			m.opts.RememberRange(base)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan discovery.Progress, 1)

	m.Scanning = true
	m.ScanStartTime = time.Now()
	m.Progress = discovery.Progress{Range: base}
	m.progress = ch
	m.cancel = cancel

	return m, tea.Batch(
		discoverCmd(ctx, m.ctrl, base, ch),
		waitForProgress(ch),
		m.Spinner.Tick,
	)
}

func (m DiscoveryModel) finishScan(msg discoveryDoneMsg) (DiscoveryModel, tea.Cmd) {
	m.Scanning = false
	m.progress = nil
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}

	switch {
	case errors.Is(msg.err, context.Canceled):
		m.Status = "Scan canceled"
		return m, nil
	case msg.err != nil:
		m.Err = msg.err
		return m, nil
	case len(msg.found) == 0:
		m.Status = "No boards found"
		return m, nil
	}

	m.Status = fmt.Sprintf("Found %d %s", len(msg.found), plural(len(msg.found), "board", "boards"))
	return m, func() tea.Msg { return showBoardsMsg{} }
}

// startTest validates the address field and probes it
func (m DiscoveryModel) startTest() (DiscoveryModel, tea.Cmd) {
	m.Err = nil
	m.Status = ""

	ip := strings.TrimSpace(m.IPInput.Value())
	if err := board.ValidateIPv4(ip); err != nil {
		m.Err = err
		return m, nil
	}
	if m.opts.RememberTestIP != nil {
		m.opts.RememberTestIP(ip)
	}

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	m.Testing = true
	m.ScanStartTime = time.Now()
	m.cancel = cancel

	return m, tea.Batch(testIPCmd(ctx, m.ctrl, ip), m.Spinner.Tick)
}

func (m DiscoveryModel) finishTest(msg testDoneMsg) (DiscoveryModel, tea.Cmd) {
	m.Testing = false
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if msg.err != nil {
		m.Err = msg.err
		return m, nil
	}
	m.Status = fmt.Sprintf("Added %s (%s)", msg.board.Name, msg.board.Address())
	return m, func() tea.Msg { return showBoardsMsg{} }
}

// Stop cancels a running sweep or test. The result arrives later as a
// canceled done message.
func (m *DiscoveryModel) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
}

// View renders the discovery screen
func (m DiscoveryModel) View() string {
	width := ContentWidth(m.Width)

	var content, helpText string
	if m.Busy() {
		content = m.renderBusy(width)
		helpText = m.Help.View(m.ScanningKeys)
	} else {
		content = m.renderForm()
		helpText = m.Help.View(m.Keys)
	}

	return RenderApplicationContainer(content, helpText, m.Width, m.Height)
}

// renderBusy renders the centered progress display
func (m DiscoveryModel) renderBusy(width int) string {
	elapsed := int(time.Since(m.ScanStartTime).Seconds())

	if m.Testing {
		content := lipgloss.JoinVertical(lipgloss.Center,
			"",
			TitleStyle.Render(fmt.Sprintf("%s TESTING %s", m.Spinner.View(), strings.TrimSpace(m.IPInput.Value()))),
			"",
			SubtitleStyle.Render(fmt.Sprintf("Elapsed: %ds", elapsed)),
			"",
		)
		return lipgloss.Place(width, 0, lipgloss.Center, lipgloss.Top, content)
	}

	p := m.Progress
	var fraction float64
	if p.Total > 0 {
		fraction = float64(p.Checked) / float64(p.Total)
	}

	target := "common ranges"
	if p.Range != "" {
		target = p.Range + ".x"
	}

	content := lipgloss.JoinVertical(lipgloss.Center,
		"",
		TitleStyle.Render(m.Spinner.View()+" SEARCHING FOR WLED BOARDS"),
		"",
		SubtitleStyle.Render("Scanning "+target),
		"",
		m.ProgressBar.ViewAs(fraction),
		"",
		LabelStyle.Render(fmt.Sprintf("Checked %d/%d • Found %d • Elapsed %ds", p.Checked, p.Total, p.Found, elapsed)),
		"",
	)
	return lipgloss.Place(width, 0, lipgloss.Center, lipgloss.Top, content)
}

// renderForm renders the range and test address fields
func (m DiscoveryModel) renderForm() string {
	var b strings.Builder

	b.WriteString(RenderTitle("Find WLED boards"))
	b.WriteString("\n")
	b.WriteString(RenderSubtitle("Sweep a /24 range, or test a single address"))
	b.WriteString("\n\n")

	b.WriteString(m.fieldLabel("Network range", focusRange))
	b.WriteString(m.RangeInput.View())
	b.WriteString("\n\n")
	b.WriteString(m.fieldLabel("Test IP      ", focusTestIP))
	b.WriteString(m.IPInput.View())
	b.WriteString("\n\n")

	switch {
	case m.Err != nil:
		b.WriteString(RenderError(wled.ShortMessage(m.Err)))
		b.WriteString("\n")
		if hint := hintFor(m.Err); hint != "" {
			b.WriteString(LabelStyle.Render(hint))
			b.WriteString("\n")
		}
	case m.Status == "No boards found" || m.Status == "Scan canceled":
		b.WriteString(WarningStyle.Render("⚠ " + m.Status))
		b.WriteString("\n")
	case m.Status != "":
		b.WriteString(RenderSuccess(m.Status))
		b.WriteString("\n")
	}

	return b.String()
}

func (m DiscoveryModel) fieldLabel(label string, field int) string {
	if m.Focus == field {
		return FocusedInputStyle.Render("→ "+label) + " "
	}
	return BlurredInputStyle.Render("  "+label) + " "
}

// hintFor returns troubleshooting advice for board failures only
func hintFor(err error) string {
	var devErr *wled.DeviceError
	if !errors.As(err, &devErr) || wled.IsValidationError(err) || wled.IsCanceled(err) {
		return ""
	}
	return wled.TroubleshootingHint(err)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
