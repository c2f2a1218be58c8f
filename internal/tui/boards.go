package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/wledui/internal/board"
	"github.com/muurk/wledui/internal/dashboard"
	"github.com/muurk/wledui/internal/store"
	"github.com/muurk/wledui/internal/ui"
	"github.com/muurk/wledui/internal/wled"
)

// brightnessStep is roughly 10% of the 0..255 range
const brightnessStep = 26

type boardsMode int

const (
	modeList boardsMode = iota
	modeAdd
	modeConfirmRemove
)

const (
	fieldName = iota
	fieldIP
	fieldPort
)

// boardsKeyMap defines key bindings for the board list
type boardsKeyMap struct {
	Up       key.Binding
	Down     key.Binding
	Power    key.Binding
	Brighter key.Binding
	Dimmer   key.Binding
	SyncSend key.Binding
	SyncRecv key.Binding
	Refresh  key.Binding
	Add      key.Binding
	Remove   key.Binding
	Discover key.Binding
	Help     key.Binding
	Quit     key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k boardsKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Power, k.Brighter, k.Dimmer, k.Refresh, k.Discover, k.Help, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k boardsKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Power},
		{k.Brighter, k.Dimmer},
		{k.SyncSend, k.SyncRecv},
		{k.Refresh, k.Add, k.Remove},
		{k.Discover, k.Help, k.Quit},
	}
}

// formKeyMap defines key bindings for the add-board form
type formKeyMap struct {
	Next   key.Binding
	Submit key.Binding
	Cancel key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k formKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Submit, k.Cancel}
}

// FullHelp returns keybindings for the expanded help view
func (k formKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Next, k.Submit, k.Cancel},
	}
}

// confirmKeyMap defines key bindings for the remove confirmation
type confirmKeyMap struct {
	Yes key.Binding
	No  key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k confirmKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Yes, k.No}
}

// FullHelp returns keybindings for the expanded help view
func (k confirmKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Yes, k.No},
	}
}

// boardItem wraps a Board for use with bubbles/list
type boardItem struct {
	board board.Board
}

// FilterValue implements list.Item
func (i boardItem) FilterValue() string {
	return i.board.Name + " " + i.board.IP
}

// boardDelegate renders a board as a two-line row
type boardDelegate struct {
	bar progress.Model
}

func newBoardDelegate() boardDelegate {
	bar := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	bar.Width = 12
	return boardDelegate{bar: bar}
}

func (d boardDelegate) Height() int { return 2 }

func (d boardDelegate) Spacing() int { return 1 }

func (d boardDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d boardDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	bi, ok := item.(boardItem)
	if !ok {
		return
	}
	b := bi.board
	selected := index == m.Index()

	marker := OnlineMarkerStyle.Render("●")
	nameStyle := RowStyle
	if !b.IsOnline {
		marker = OfflineMarkerStyle.Render("○")
		nameStyle = OfflineRowStyle
	}

	prefix := "  "
	if selected {
		prefix = SelectedRowStyle.Render("→ ")
		nameStyle = SelectedRowStyle
	}

	name := b.Name
	if name == "" {
		name = b.IP
	}

	power := ui.PowerLabel(b)
	bar := ""
	if b.IsOnline && b.On() {
		bar = d.bar.ViewAs(float64(b.Brightness()) / 255)
	}

	line1 := fmt.Sprintf("%s%s %s %-9s %s", prefix, marker, nameStyle.Render(fmt.Sprintf("%-24s", name)), power, bar)

	details := []string{b.Address(), "sync " + ui.SyncLabel(b)}
	if b.Info != nil {
		if b.Info.Ver != "" {
			details = append(details, "v"+b.Info.Ver)
		}
		if b.Info.LEDs.Count > 0 {
			details = append(details, fmt.Sprintf("%d LEDs", b.Info.LEDs.Count))
		}
	}
	if b.Manual {
		details = append(details, "manual")
	}
	if !b.IsOnline && !b.LastSeen.IsZero() {
		details = append(details, "seen "+b.LastSeen.Format("15:04:05"))
	}
	line2 := "    " + LabelStyle.Render(strings.Join(details, " • "))

	fmt.Fprint(w, line1+"\n"+line2)
}

// BoardsModel is the main dashboard screen listing every saved board
type BoardsModel struct {
	ctrl *dashboard.Controller

	// Store snapshot
	Boards      []board.Board
	Loading     bool
	LastRefresh time.Time
	StoreErr    string

	// Interaction state
	List          list.Model
	Status        string
	Err           error
	ErrBoard      string
	mode          boardsMode
	AddInputs     []textinput.Model
	addFocus      int
	FieldErrs     board.FieldErrors
	pendingRemove board.Board

	// UI state
	Width       int
	Height      int
	Spinner     spinner.Model
	Help        help.Model
	Keys        boardsKeyMap
	FormKeys    formKeyMap
	ConfirmKeys confirmKeyMap
}

// NewBoardsModel creates the board list screen
func NewBoardsModel(ctrl *dashboard.Controller) BoardsModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	l := list.New([]list.Item{}, newBoardDelegate(), MinTerminalWidth-4, 12)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.DisableQuitKeybindings()

	keys := boardsKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "move down"),
		),
		Power: key.NewBinding(
			key.WithKeys("p", " "),
			key.WithHelp("p", "power"),
		),
		Brighter: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "brighter"),
		),
		Dimmer: key.NewBinding(
			key.WithKeys("-", "_"),
			key.WithHelp("-", "dimmer"),
		),
		SyncSend: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "toggle sync send"),
		),
		SyncRecv: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "toggle sync receive"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Add: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "add by address"),
		),
		Remove: key.NewBinding(
			key.WithKeys("x", "delete"),
			key.WithHelp("x", "remove"),
		),
		Discover: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "discover"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
	}

	formKeys := formKeyMap{
		Next: key.NewBinding(
			key.WithKeys("tab", "shift+tab"),
			key.WithHelp("tab", "next field"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "add"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
	}

	confirmKeys := confirmKeyMap{
		Yes: key.NewBinding(
			key.WithKeys("y", "enter"),
			key.WithHelp("y", "remove"),
		),
		No: key.NewBinding(
			key.WithKeys("n", "esc"),
			key.WithHelp("n", "keep"),
		),
	}

	return BoardsModel{
		ctrl:        ctrl,
		List:        l,
		Spinner:     s,
		Help:        help.New(),
		Keys:        keys,
		FormKeys:    formKeys,
		ConfirmKeys: confirmKeys,
	}
}

// Init starts nothing; the board list is driven by store updates
func (m BoardsModel) Init() tea.Cmd {
	return nil
}

// SetSize fits the list to the terminal
func (m *BoardsModel) SetSize(width, height int) {
	m.Width = width
	m.Height = height
	m.List.SetWidth(ContentWidth(width))
	listHeight := height - 14
	if listHeight < 3 {
		listHeight = 3
	}
	m.List.SetHeight(listHeight)
}

// SetState replaces the rendered boards with a store snapshot, keeping the
// cursor on the same board when it still exists.
func (m *BoardsModel) SetState(st store.State) tea.Cmd {
	selectedID := ""
	if b, ok := m.Selected(); ok {
		selectedID = b.ID
	}

	startedLoading := st.Loading && !m.Loading
	m.Boards = st.Boards
	m.Loading = st.Loading
	m.LastRefresh = st.LastRefresh
	m.StoreErr = st.Error

	items := make([]list.Item, len(st.Boards))
	for i, b := range st.Boards {
		items[i] = boardItem{board: b}
	}
	cmd := m.List.SetItems(items)

	if i := board.Index(st.Boards, selectedID); i >= 0 {
		m.List.Select(i)
	} else if n := len(items); n > 0 && m.List.Index() >= n {
		m.List.Select(n - 1)
	}

	if startedLoading {
		return tea.Batch(cmd, m.Spinner.Tick)
	}
	return cmd
}

// Selected returns the board under the cursor
func (m BoardsModel) Selected() (board.Board, bool) {
	if item, ok := m.List.SelectedItem().(boardItem); ok {
		return item.board, true
	}
	return board.Board{}, false
}

// Editing reports whether the screen is capturing text input
func (m BoardsModel) Editing() bool {
	return m.mode != modeList
}

// Update handles messages and updates the model
func (m BoardsModel) Update(msg tea.Msg) (BoardsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch m.mode {
		case modeAdd:
			return m.updateAdd(msg)
		case modeConfirmRemove:
			return m.updateConfirm(msg)
		}
		return m.updateList(msg)

	case commandDoneMsg:
		if msg.err != nil {
			m.Err = msg.err
			m.ErrBoard = msg.name
			m.Status = ""
		} else {
			m.clearMessages()
			m.Status = fmt.Sprintf("%s: %s", msg.name, msg.action)
		}
		return m, nil

	case refreshDoneMsg:
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			m.Err = msg.err
		} else {
			online, offline := board.Counts(m.Boards)
			m.Status = fmt.Sprintf("Refreshed: %d online, %d offline", online, offline)
		}
		return m, nil

	case addDoneMsg:
		var fe board.FieldErrors
		switch {
		case errors.As(msg.err, &fe):
			m.FieldErrs = fe
			return m, nil
		case msg.err != nil:
			m.Err = msg.err
		default:
			m.Status = fmt.Sprintf("Added %s (%s)", msg.board.Name, msg.board.Address())
		}
		m.mode = modeList
		return m, nil

	case removeDoneMsg:
		if msg.err != nil {
			m.Err = msg.err
		} else {
			m.Status = "Removed " + msg.name
		}
		return m, nil

	case spinner.TickMsg:
		if !m.Loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// updateList handles keys on the board list
func (m BoardsModel) updateList(msg tea.KeyMsg) (BoardsModel, tea.Cmd) {
	switch {
	case key.Matches(msg, m.Keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.Keys.Help):
		m.Help.ShowAll = !m.Help.ShowAll
		return m, nil

	case key.Matches(msg, m.Keys.Discover):
		return m, func() tea.Msg { return showDiscoveryMsg{} }

	case key.Matches(msg, m.Keys.Refresh):
		if m.Loading {
			return m, nil
		}
		m.clearMessages()
		return m, refreshCmd(m.ctrl)

	case key.Matches(msg, m.Keys.Add):
		m.clearMessages()
		m.startAdd()
		return m, textinput.Blink
	}

	b, ok := m.Selected()
	if !ok {
		var cmd tea.Cmd
		m.List, cmd = m.List.Update(msg)
		return m, cmd
	}
	id := b.ID

	switch {
	case key.Matches(msg, m.Keys.Power):
		on := !b.On()
		m.clearMessages()
		return m, commandCmd(b.Name, "power "+onOff(on), func(ctx context.Context) error {
			return m.ctrl.TogglePower(ctx, id, on)
		})

	case key.Matches(msg, m.Keys.Brighter), key.Matches(msg, m.Keys.Dimmer):
		step := brightnessStep
		if key.Matches(msg, m.Keys.Dimmer) {
			step = -step
		}
		bri := wled.ClampBrightness(b.Brightness() + step)
		m.clearMessages()
		return m, commandCmd(b.Name, fmt.Sprintf("brightness %d%%", (bri*100+127)/255), func(ctx context.Context) error {
			return m.ctrl.SetBrightness(ctx, id, bri)
		})

	case key.Matches(msg, m.Keys.SyncSend):
		send := !b.SyncEmit
		m.clearMessages()
		return m, commandCmd(b.Name, "sync send "+onOff(send), func(ctx context.Context) error {
			return m.ctrl.SetSync(ctx, id, b.SyncReceive, send)
		})

	case key.Matches(msg, m.Keys.SyncRecv):
		receive := !b.SyncReceive
		m.clearMessages()
		return m, commandCmd(b.Name, "sync receive "+onOff(receive), func(ctx context.Context) error {
			return m.ctrl.SetSync(ctx, id, receive, b.SyncEmit)
		})

	case key.Matches(msg, m.Keys.Remove):
		m.clearMessages()
		m.pendingRemove = b
		m.mode = modeConfirmRemove
		return m, nil
	}

	var cmd tea.Cmd
	m.List, cmd = m.List.Update(msg)
	return m, cmd
}

// updateConfirm handles the remove confirmation
func (m BoardsModel) updateConfirm(msg tea.KeyMsg) (BoardsModel, tea.Cmd) {
	switch {
	case key.Matches(msg, m.ConfirmKeys.Yes):
		m.mode = modeList
		return m, removeCmd(m.ctrl, m.pendingRemove)
	case key.Matches(msg, m.ConfirmKeys.No):
		m.mode = modeList
		m.pendingRemove = board.Board{}
	}
	return m, nil
}

func (m *BoardsModel) startAdd() {
	name := textinput.New()
	name.Placeholder = "Living room"
	name.CharLimit = 32
	name.Width = 32

	ip := textinput.New()
	ip.Placeholder = "192.168.1.40"
	ip.CharLimit = 15
	ip.Width = 32

	port := textinput.New()
	port.Placeholder = "80"
	port.CharLimit = 5
	port.Width = 32

	m.AddInputs = []textinput.Model{name, ip, port}
	m.FieldErrs = nil
	m.mode = modeAdd
	m.focusField(fieldName)
}

func (m *BoardsModel) focusField(f int) {
	m.addFocus = f
	for i := range m.AddInputs {
		if i == f {
			m.AddInputs[i].Focus()
		} else {
			m.AddInputs[i].Blur()
		}
	}
}

// updateAdd handles keys in the add-board form
func (m BoardsModel) updateAdd(msg tea.KeyMsg) (BoardsModel, tea.Cmd) {
	switch {
	case key.Matches(msg, m.FormKeys.Cancel):
		m.mode = modeList
		m.FieldErrs = nil
		return m, nil

	case key.Matches(msg, m.FormKeys.Next):
		n := len(m.AddInputs)
		if msg.String() == "shift+tab" {
			m.focusField((m.addFocus + n - 1) % n)
		} else {
			m.focusField((m.addFocus + 1) % n)
		}
		return m, textinput.Blink

	case key.Matches(msg, m.FormKeys.Submit):
		in := board.ManualInput{
			Name: m.AddInputs[fieldName].Value(),
			IP:   m.AddInputs[fieldIP].Value(),
			Port: m.AddInputs[fieldPort].Value(),
		}
		if fe := board.ValidateManual(in); fe != nil {
			m.FieldErrs = fe
			return m, nil
		}
		m.FieldErrs = nil
		return m, addManualCmd(m.ctrl, in)
	}

	var cmd tea.Cmd
	m.AddInputs[m.addFocus], cmd = m.AddInputs[m.addFocus].Update(msg)
	return m, cmd
}

func (m *BoardsModel) clearMessages() {
	m.Err = nil
	m.ErrBoard = ""
	m.Status = ""
}

// View renders the board screen
func (m BoardsModel) View() string {
	var content, helpText string
	switch m.mode {
	case modeAdd:
		content = m.renderAddForm()
		helpText = m.Help.View(m.FormKeys)
	case modeConfirmRemove:
		content = m.renderConfirm()
		helpText = m.Help.View(m.ConfirmKeys)
	default:
		content = m.renderList()
		helpText = m.Help.View(m.Keys)
	}
	return RenderApplicationContainer(content, helpText, m.Width, m.Height)
}

func (m BoardsModel) renderSummary() string {
	online, offline := board.Counts(m.Boards)
	parts := []string{
		fmt.Sprintf("%d %s", len(m.Boards), plural(len(m.Boards), "board", "boards")),
		OnlineMarkerStyle.Render(fmt.Sprintf("%d online", online)),
		OfflineMarkerStyle.Render(fmt.Sprintf("%d offline", offline)),
	}
	if !m.LastRefresh.IsZero() {
		parts = append(parts, "refreshed "+m.LastRefresh.Format("15:04:05"))
	}
	summary := strings.Join(parts, LabelStyle.Render(" • "))
	if m.Loading {
		summary += "  " + m.Spinner.View() + LabelStyle.Render(" updating")
	}
	return summary
}

func (m BoardsModel) renderList() string {
	var b strings.Builder

	b.WriteString(RenderTitle("Boards"))
	b.WriteString("\n")
	b.WriteString(m.renderSummary())
	b.WriteString("\n\n")

	if m.StoreErr != "" {
		b.WriteString(RenderError(m.StoreErr))
		b.WriteString("\n\n")
	}

	if len(m.Boards) == 0 {
		b.WriteString(WarningStyle.Render("⚠ No boards yet"))
		b.WriteString("\n\n")
		b.WriteString(LabelStyle.Render("  Press d to scan your network, or a to add a board by address."))
		b.WriteString("\n")
	} else {
		b.WriteString(m.List.View())
		b.WriteString("\n")
	}

	b.WriteString(m.renderMessage())
	return b.String()
}

func (m BoardsModel) renderMessage() string {
	switch {
	case m.Err != nil && m.ErrBoard != "":
		return "\n" + RenderError(m.ErrBoard+": "+wled.ShortMessage(m.Err)) + "\n"
	case m.Err != nil:
		return "\n" + RenderError(wled.ShortMessage(m.Err)) + "\n"
	case m.Status != "":
		return "\n" + RenderSuccess(m.Status) + "\n"
	}
	return ""
}

func (m BoardsModel) renderAddForm() string {
	var b strings.Builder

	b.WriteString(RenderTitle("Add a board"))
	b.WriteString("\n")
	b.WriteString(RenderSubtitle("Boards added by address keep their name across refreshes"))
	b.WriteString("\n\n")

	labels := []string{"Name", "IP  ", "Port"}
	keys := []string{"name", "ip", "port"}
	for i, input := range m.AddInputs {
		label := BlurredInputStyle.Render("  " + labels[i])
		if i == m.addFocus {
			label = FocusedInputStyle.Render("→ " + labels[i])
		}
		b.WriteString(label + " " + input.View())
		b.WriteString("\n")
		if msg, ok := m.FieldErrs[keys[i]]; ok {
			b.WriteString("       " + ErrorStyle.Render(msg))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(m.renderMessage())
	return b.String()
}

func (m BoardsModel) renderConfirm() string {
	b := m.pendingRemove
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(WarningColor).
		Padding(1, 2).
		Render(lipgloss.JoinVertical(lipgloss.Left,
			WarningStyle.Render("⚠ Remove board"),
			"",
			fmt.Sprintf("%s (%s)", b.Name, b.Address()),
			"",
			LabelStyle.Render("It will reappear if a later scan finds it."),
		))
	return "\n" + box + "\n"
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
