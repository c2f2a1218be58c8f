package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/muurk/wledui/internal/dashboard"
	"github.com/muurk/wledui/internal/logging"
	"github.com/muurk/wledui/internal/store"
)

// Screen represents the current active screen in the application
type Screen string

const (
	ScreenDiscovery Screen = "discovery"
	ScreenBoards    Screen = "boards"
)

// Options carries the remembered form values and the callbacks that save
// new ones.
type Options struct {
	Range          string
	TestIP         string
	AutoDiscover   bool
	RememberRange  func(string)
	RememberTestIP func(string)
}

// AppModel is the top-level coordinator model that manages screen transitions
type AppModel struct {
	CurrentScreen Screen

	ctrl   *dashboard.Controller
	opts   Options
	states chan store.State

	// Screen models
	Discovery DiscoveryModel
	Boards    BoardsModel

	// UI state
	Width  int
	Height int
}

// NewAppModel creates the application. It opens on the board list when
// boards are saved, otherwise on discovery.
func NewAppModel(ctrl *dashboard.Controller, opts Options) AppModel {
	ctrl.Boards()

	m := AppModel{
		ctrl:      ctrl,
		opts:      opts,
		states:    make(chan store.State, 1),
		Discovery: NewDiscoveryModel(ctrl, opts),
		Boards:    NewBoardsModel(ctrl),
	}
	m.Boards.SetState(ctrl.Store().State())
	m.Discovery.HasBoards = len(m.Boards.Boards) > 0

	if m.Discovery.HasBoards {
		m.CurrentScreen = ScreenBoards
	} else {
		m.CurrentScreen = ScreenDiscovery
	}
	return m
}

// Subscribe feeds store updates into the model. Call the returned function
// once the program exits.
func (m AppModel) Subscribe() func() {
	return m.ctrl.Store().Subscribe(func(st store.State) {
		latest(m.states, st)
	})
}

// Init initializes the application
func (m AppModel) Init() tea.Cmd {
	cmds := []tea.Cmd{waitForState(m.states)}
	switch m.CurrentScreen {
	case ScreenDiscovery:
		cmds = append(cmds, m.Discovery.Init())
		if m.opts.AutoDiscover {
			cmds = append(cmds, func() tea.Msg { return autoDiscoverMsg{} })
		}
	case ScreenBoards:
		cmds = append(cmds, m.Boards.Init())
	}
	return tea.Batch(cmds...)
}

type autoDiscoverMsg struct{}

// Update handles all messages and routes them to the appropriate screen
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Discovery.Width = msg.Width
		m.Discovery.Height = msg.Height
		m.Boards.SetSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		// Global quit handler
		if msg.String() == "ctrl+c" {
			m.Discovery.Stop()
			return m, tea.Quit
		}

	case stateMsg:
		cmd = m.Boards.SetState(store.State(msg))
		m.Discovery.HasBoards = len(m.Boards.Boards) > 0
		return m, tea.Batch(cmd, waitForState(m.states))

	case showBoardsMsg:
		m.CurrentScreen = ScreenBoards
		return m, m.Boards.Init()

	case showDiscoveryMsg:
		m.CurrentScreen = ScreenDiscovery
		return m, m.Discovery.Init()

	case autoDiscoverMsg:
		m.Discovery, cmd = m.Discovery.startScan()
		return m, cmd

	case progressMsg, discoveryDoneMsg, testDoneMsg:
		m.Discovery, cmd = m.Discovery.Update(msg)
		return m, cmd

	case commandDoneMsg, refreshDoneMsg, addDoneMsg, removeDoneMsg:
		m.Boards, cmd = m.Boards.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		var c1, c2 tea.Cmd
		m.Discovery, c1 = m.Discovery.Update(msg)
		m.Boards, c2 = m.Boards.Update(msg)
		return m, tea.Batch(c1, c2)
	}

	// Route to current screen
	switch m.CurrentScreen {
	case ScreenDiscovery:
		m.Discovery, cmd = m.Discovery.Update(msg)
	case ScreenBoards:
		m.Boards, cmd = m.Boards.Update(msg)
	}
	return m, cmd
}

// View renders the current screen
// Each screen handles its own container using RenderApplicationContainer()
func (m AppModel) View() string {
	switch m.CurrentScreen {
	case ScreenDiscovery:
		return m.Discovery.View()
	case ScreenBoards:
		return m.Boards.View()
	default:
		return "Unknown screen"
	}
}

// Run starts the full-screen dashboard and blocks until the user quits or
// ctx is canceled. Boards are refreshed in the background while it runs.
func Run(ctx context.Context, ctrl *dashboard.Controller, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := NewAppModel(ctrl, opts)
	unsubscribe := m.Subscribe()
	defer unsubscribe()

	go func() {
		if err := ctrl.Run(ctx); err != nil {
			logging.Error("Auto-refresh stopped", zap.Error(err))
		}
	}()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	ctrl.CancelDiscovery()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
