package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/wledui/internal/board"
	"github.com/muurk/wledui/internal/discovery"
	"github.com/muurk/wledui/internal/tui"
	"github.com/muurk/wledui/internal/ui"
	"github.com/muurk/wledui/internal/urls"
)

// Command flags
var (
	scanAll     bool
	browseWait  time.Duration
	addName     string
	addPort     string
	removeYes   bool
	jsonOutput  bool
	showCached  bool
	syncSend    string
	syncReceive string
)

func init() {
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(browseCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(powerCmd)
	rootCmd.AddCommand(brightnessCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(serveCmd)
}

func runDashboard(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	return tui.Run(cmd.Context(), a.ctrl, tui.Options{
		Range:          a.reg.LastNetworkRange(),
		TestIP:         a.reg.LastTestIP(),
		AutoDiscover:   a.prefs.AutoDiscover,
		RememberRange:  a.rememberRange,
		RememberTestIP: a.rememberTestIP,
	})
}

// scanCmd sweeps a network range for boards
var scanCmd = &cobra.Command{
	Use:   "scan [range]",
	Short: "Scan a network range for WLED boards",
	Long: `Probe every address in a /24 range for the WLED JSON API.

Up to 24 addresses are probed at once. Boards found are merged into the
saved list; boards already known keep their ID and any name you gave them.

Without a range the last scanned range is used. --all sweeps the common
home ranges (192.168.1, 192.168.4, 192.168.0, 10.0.0, 172.16.0) in turn.`,
	Example: `  # Scan the last used range
  wledui scan

  # Scan a specific range (trailing dot optional)
  wledui scan 192.168.1

  # Scan all common ranges
  wledui scan --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().BoolVar(&scanAll, "all", false, "Sweep the common home network ranges")
}

func runScan(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	base := ""
	if !scanAll {
		base = a.reg.LastNetworkRange()
		if len(args) == 1 {
			base = args[0]
		}
		if base, err = discovery.NormalizeRange(base); err != nil {
			return err
		}
		a.rememberRange(base)
	}

	out := cmd.OutOrStdout()
	target := base + ".1-254"
	if base == "" {
		target = fmt.Sprintf("%d common ranges", len(discovery.DefaultRanges))
	}
	params := []ui.Param{
		{Key: "Range", Value: target},
		{Key: "Timeout", Value: a.scanner.Timeout.String()},
		{Key: "In flight", Value: fmt.Sprintf("%d", a.prefs.MaxInFlight)},
	}
	fmt.Fprintln(out, ui.NewHeader("Network scan", cmd.CommandPath()+" "+base, params).SetWidth(ui.GetTerminalWidth()).Render())
	fmt.Fprintln(out)

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	progress := ui.NewSweepProgress(out)
	start := time.Now()
	found, err := a.ctrl.Discover(ctx, base, progress.Update)
	progress.Done()

	if ctx.Err() != nil {
		fmt.Fprintln(out, ui.RenderWarning("Scan canceled", []ui.Param{
			{Key: "Elapsed", Value: time.Since(start).Round(time.Millisecond).String()},
		}))
		return nil
	}
	if err != nil {
		fmt.Fprintln(out, ui.RenderFailure("Scan failed", err, nil))
		return shown(err)
	}

	if len(found) == 0 {
		fmt.Fprintln(out, ui.RenderWarning("No boards found", []ui.Param{
			{Key: "Range", Value: target},
			{Key: "Tip", Value: "check the range, or add a board with 'wledui add <ip>'"},
			{Key: "Setup guide", Value: urls.GettingStarted},
		}))
		return nil
	}

	fmt.Fprintln(out, ui.RenderSuccess(fmt.Sprintf("Found %d board(s)", len(found)), []ui.Param{
		{Key: "Saved boards", Value: fmt.Sprintf("%d", len(a.store.Boards()))},
		{Key: "Duration", Value: time.Since(start).Round(time.Millisecond).String()},
	}))
	fmt.Fprintln(out)
	fmt.Fprintln(out, ui.RenderBoardTable(board.Sorted(found)))
	return nil
}

// browseCmd finds boards over mDNS
var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Find WLED boards advertised over mDNS",
	Long: `Listen for _wled._tcp mDNS advertisements and confirm each board over
its JSON API. Faster than a sweep where multicast works; boards on other
subnets or behind client isolation will not show up.`,
	Example: `  # Listen for 3 seconds (default)
  wledui browse

  # Listen longer on a busy network
  wledui browse --wait 10s`,
	Args: cobra.NoArgs,
	RunE: runBrowse,
}

func init() {
	browseCmd.Flags().DurationVar(&browseWait, "wait", 3*time.Second, "How long to listen for advertisements")
}

func runBrowse(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	ui.PrintPleaseWait(out, "Listening for WLED boards", browseWait.String())
	found, err := a.scanner.Browse(ctx, browseWait)
	if err != nil {
		fmt.Fprintln(out, ui.RenderFailure("Browse failed", err, []string{
			"Multicast may be blocked on this network",
			"Try 'wledui scan' instead",
		}))
		return shown(err)
	}

	if len(found) == 0 {
		fmt.Fprintln(out, ui.RenderWarning("No boards answered", []ui.Param{
			{Key: "Waited", Value: browseWait.String()},
			{Key: "Tip", Value: "try 'wledui scan' for a full sweep"},
		}))
		return nil
	}

	a.store.Replace(board.Merge(a.store.Boards(), found))
	fmt.Fprintln(out, ui.RenderBoardTable(board.Sorted(found)))
	return nil
}

// testCmd probes one address and saves the board if it answers
var testCmd = &cobra.Command{
	Use:   "test <ip>",
	Short: "Test a single address and save the board if found",
	Example: `  wledui test 192.168.1.40`,
	Args:    cobra.ExactArgs(1),
	RunE:    runTest,
}

func runTest(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ip := args[0]
	runner := ui.NewRunner(ui.RunnerConfig{
		Title:   "Board test",
		Command: cmd.CommandPath() + " " + ip,
		Params:  []ui.Param{{Key: "Address", Value: ip}},
		Output:  cmd.OutOrStdout(),
	})
	return shown(runner.Run(cmd.Context(), func(ctx context.Context) ([]ui.Param, error) {
		b, err := a.ctrl.AddByIP(ctx, ip)
		if err != nil {
			return nil, err
		}
		a.rememberTestIP(ip)
		return append([]ui.Param{{Key: "Name", Value: b.Name}}, ui.BoardDetails(b)...), nil
	}))
}

// addCmd saves a board by address
var addCmd = &cobra.Command{
	Use:   "add <ip>",
	Short: "Add a board by address",
	Long: `Add a board by address.

With --name the board is saved even if it is not reachable right now, and
keeps that name across refreshes. Without --name the board must answer so
its own name can be used.`,
	Example: `  # Probe and save
  wledui add 192.168.1.40

  # Save by hand, on a non-standard port
  wledui add 192.168.1.41 --name "Porch" --port 8080`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVar(&addName, "name", "", "Board name (saves without probing first)")
	addCmd.Flags().StringVar(&addPort, "port", "", "HTTP port (default 80)")
}

func runAdd(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ip := args[0]
	runner := ui.NewRunner(ui.RunnerConfig{
		Title:   "Add board",
		Command: cmd.CommandPath() + " " + ip,
		Params: []ui.Param{
			{Key: "Address", Value: ip},
			{Key: "Name", Value: orDefault(addName, "(from board)")},
		},
		Output: cmd.OutOrStdout(),
	})
	return shown(runner.Run(cmd.Context(), func(ctx context.Context) ([]ui.Param, error) {
		var (
			b   board.Board
			err error
		)
		if addName == "" && addPort == "" {
			b, err = a.ctrl.AddByIP(ctx, ip)
		} else {
			b, err = a.ctrl.AddManual(ctx, board.ManualInput{Name: addName, IP: ip, Port: addPort})
		}
		if err != nil {
			return nil, err
		}
		return append([]ui.Param{{Key: "Name", Value: b.Name}}, ui.BoardDetails(b)...), nil
	}))
}

// removeCmd forgets a saved board
var removeCmd = &cobra.Command{
	Use:     "remove <board>",
	Aliases: []string{"rm"},
	Short:   "Remove a saved board",
	Long: `Remove a board from the saved list. The board itself is not touched and
will reappear if a later scan finds it.

<board> is a board ID, IP address or name.`,
	Example: `  wledui remove "Living room"
  wledui remove 192.168.1.40 --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runRemove,
}

func init() {
	removeCmd.Flags().BoolVarP(&removeYes, "yes", "y", false, "Skip the confirmation prompt")
}

func runRemove(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	b, err := resolveBoard(a.store.Boards(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !removeYes {
		warnings := []string{
			fmt.Sprintf("%s (%s) will be removed from the saved list", b.Name, b.Address()),
		}
		if b.Manual {
			warnings = append(warnings, "It was added by hand; a scan will re-add it under the board's own name")
		}
		if !ui.Confirm(cmd.InOrStdin(), out, "Remove board", warnings, "Remove it?") {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	if err := a.ctrl.Remove(b.ID); err != nil {
		return err
	}
	fmt.Fprintln(out, ui.RenderSuccess("Board removed", []ui.Param{
		{Key: "Name", Value: b.Name},
		{Key: "Address", Value: b.Address()},
	}))
	return nil
}

// listCmd prints the saved boards
var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List saved boards",
	Long: `List saved boards as last seen. Use 'wledui refresh' to re-query them
first.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the board list as JSON")
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	boards := a.store.Boards()
	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(out, boards)
	}

	printBoards(out, boards, a.prefs.MaxBoardsDisplay)
	return nil
}

// showCmd prints everything known about one board
var showCmd = &cobra.Command{
	Use:   "show <board>",
	Short: "Show one board's details",
	Long: `Re-query one board and print its details. If the board does not answer,
the last known details are shown.

<board> is a board ID, IP address or name.`,
	Example: `  wledui show "Living room"
  wledui show 192.168.1.40 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the board as JSON")
	showCmd.Flags().BoolVar(&showCached, "cached", false, "Do not re-query the board")
}

func runShow(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	b, err := resolveBoard(a.store.Boards(), args[0])
	if err != nil {
		return err
	}

	var refreshErr error
	if !showCached {
		var fresh board.Board
		fresh, refreshErr = a.ctrl.Refresh(cmd.Context(), b.ID)
		if refreshErr == nil {
			b = fresh
		} else if latest, ok := a.store.Find(b.ID); ok {
			b = latest
		}
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(out, b)
	}

	if refreshErr != nil {
		details := append([]ui.Param{{Key: "Error", Value: refreshErr.Error()}}, ui.BoardDetails(b)...)
		fmt.Fprintln(out, ui.RenderWarning(b.Name+" is not responding", details))
		return nil
	}
	fmt.Fprintln(out, ui.RenderSuccess(b.Name, ui.BoardDetails(b)))
	return nil
}

// powerCmd switches a board on or off
var powerCmd = &cobra.Command{
	Use:   "power <board> <on|off|toggle>",
	Short: "Switch a board on or off",
	Example: `  wledui power "Living room" on
  wledui power 192.168.1.40 toggle`,
	Args: cobra.ExactArgs(2),
	RunE: runPower,
}

func runPower(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	b, err := resolveBoard(a.store.Boards(), args[0])
	if err != nil {
		return err
	}

	var on bool
	if args[1] == "toggle" {
		on = !b.On()
	} else if on, err = parseOnOff(args[1]); err != nil {
		return err
	}

	return runBoardCommand(cmd, b, "Power", onOffLabel(on), func(ctx context.Context) error {
		return a.ctrl.TogglePower(ctx, b.ID, on)
	})
}

// brightnessCmd sets a board's brightness
var brightnessCmd = &cobra.Command{
	Use:     "brightness <board> <0-255|N%>",
	Aliases: []string{"bri"},
	Short:   "Set a board's brightness",
	Example: `  wledui brightness "Living room" 128
  wledui bri 192.168.1.40 40%`,
	Args: cobra.ExactArgs(2),
	RunE: runBrightness,
}

func runBrightness(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	b, err := resolveBoard(a.store.Boards(), args[0])
	if err != nil {
		return err
	}
	bri, err := parseBrightness(args[1])
	if err != nil {
		return err
	}

	value := fmt.Sprintf("%d (%d%%)", bri, (bri*100+127)/255)
	return runBoardCommand(cmd, b, "Brightness", value, func(ctx context.Context) error {
		return a.ctrl.SetBrightness(ctx, b.ID, bri)
	})
}

// syncCmd sets a board's UDP sync flags
var syncCmd = &cobra.Command{
	Use:   "sync <board>",
	Short: "Set a board's UDP sync send/receive flags",
	Long: `Set whether a board broadcasts its state to other boards (send) and
whether it follows broadcasts from them (receive). A flag left unset keeps
the board's current value.

See ` + urls.UDPSync + ` for how WLED sync works.`,
	Example: `  # Make one board the leader
  wledui sync "Living room" --send on --receive off

  # Let another follow it
  wledui sync Porch --receive on`,
	Args: cobra.ExactArgs(1),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncSend, "send", "", "Broadcast changes to other boards (on/off)")
	syncCmd.Flags().StringVar(&syncReceive, "receive", "", "Follow broadcasts from other boards (on/off)")
}

func runSync(cmd *cobra.Command, args []string) error {
	if syncSend == "" && syncReceive == "" {
		return fmt.Errorf("nothing to change: pass --send and/or --receive")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	b, err := resolveBoard(a.store.Boards(), args[0])
	if err != nil {
		return err
	}

	send, receive := b.SyncEmit, b.SyncReceive
	if syncSend != "" {
		if send, err = parseOnOff(syncSend); err != nil {
			return fmt.Errorf("--send: %w", err)
		}
	}
	if syncReceive != "" {
		if receive, err = parseOnOff(syncReceive); err != nil {
			return fmt.Errorf("--receive: %w", err)
		}
	}

	value := fmt.Sprintf("send %s, receive %s", onOffLabel(send), onOffLabel(receive))
	return runBoardCommand(cmd, b, "Sync", value, func(ctx context.Context) error {
		return a.ctrl.SetSync(ctx, b.ID, receive, send)
	})
}

// refreshCmd re-queries every saved board
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Re-query every saved board",
	Args:  cobra.NoArgs,
	RunE:  runRefresh,
}

func runRefresh(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	out := cmd.OutOrStdout()
	if len(a.store.Boards()) > 0 {
		ui.PrintPleaseWait(out, fmt.Sprintf("Refreshing %d board(s)", len(a.store.Boards())), "")
	}
	if err := a.ctrl.RefreshAll(ctx); err != nil {
		return err
	}
	printBoards(out, a.store.Boards(), a.prefs.MaxBoardsDisplay)
	return nil
}

// runBoardCommand wraps a control command in the standard header and
// result box.
func runBoardCommand(cmd *cobra.Command, b board.Board, setting, value string, fn func(ctx context.Context) error) error {
	runner := ui.NewRunner(ui.RunnerConfig{
		Title:   setting,
		Command: cmd.CommandPath(),
		Params: []ui.Param{
			{Key: "Board", Value: b.Name},
			{Key: "Address", Value: b.Address()},
			{Key: setting, Value: value},
		},
		Output: cmd.OutOrStdout(),
	})
	return shown(runner.Run(cmd.Context(), func(ctx context.Context) ([]ui.Param, error) {
		if err := fn(ctx); err != nil {
			return nil, err
		}
		return []ui.Param{{Key: setting, Value: value}}, nil
	}))
}

func printBoards(out io.Writer, boards []board.Board, max int) {
	hidden := 0
	if max > 0 && len(boards) > max {
		hidden = len(boards) - max
		boards = boards[:max]
	}
	fmt.Fprintln(out, ui.RenderBoardTable(boards))
	if hidden > 0 {
		fmt.Fprintf(out, "  ... and %d more (raise max_boards_display in the config file)\n", hidden)
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func onOffLabel(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
