package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/wledui/internal/board"
)

// StatusLabel renders a board's online state with its marker.
func StatusLabel(b board.Board) string {
	if b.IsOnline {
		return OnlineStyle.Render(OnlineMarker + " online")
	}
	return OfflineStyle.Render(OfflineMarker + " offline")
}

// PowerLabel describes a board's power and brightness, e.g. "on 50%".
func PowerLabel(b board.Board) string {
	if b.State == nil {
		return "-"
	}
	if !b.On() {
		return "off"
	}
	return fmt.Sprintf("on %d%%", b.BrightnessPercent())
}

// SyncLabel describes the UDP sync flags, e.g. "send+recv".
func SyncLabel(b board.Board) string {
	var parts []string
	if b.SyncEmit {
		parts = append(parts, "send")
	}
	if b.SyncReceive {
		parts = append(parts, "recv")
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, "+")
}

// RenderBoardTable renders boards as aligned columns, in the order given.
func RenderBoardTable(boards []board.Board) string {
	if len(boards) == 0 {
		return ProgressNoteStyle.Render("  No boards saved. Run 'wledui scan' or 'wledui add <ip>'.")
	}

	headers := []string{"NAME", "ADDRESS", "STATUS", "POWER", "SYNC", "ID"}
	rows := make([][]string, len(boards))
	for i, b := range boards {
		rows[i] = []string{b.Name, b.Address(), StatusLabel(b), PowerLabel(b), SyncLabel(b), b.ID}
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	for i, h := range headers {
		b.WriteString("  ")
		b.WriteString(TableHeaderStyle.Render(pad(h, widths[i])))
	}
	b.WriteString("\n")
	for _, row := range rows {
		for i, cell := range row {
			b.WriteString("  ")
			b.WriteString(pad(cell, widths[i]))
		}
		b.WriteString("\n")
	}

	online, offline := board.Counts(boards)
	b.WriteString("\n")
	b.WriteString(ProgressNoteStyle.Render(fmt.Sprintf("  %d online, %d offline", online, offline)))
	return b.String()
}

func pad(s string, width int) string {
	if gap := width - lipgloss.Width(s); gap > 0 {
		return s + strings.Repeat(" ", gap)
	}
	return s
}

// BoardDetails lists everything known about a board for the show command.
func BoardDetails(b board.Board) []Param {
	details := []Param{
		{Key: "ID", Value: b.ID},
		{Key: "Address", Value: b.Address()},
		{Key: "Status", Value: StatusLabel(b)},
		{Key: "Power", Value: PowerLabel(b)},
		{Key: "Sync", Value: SyncLabel(b)},
	}
	if !b.LastSeen.IsZero() {
		details = append(details, Param{Key: "Last seen", Value: b.LastSeen.Format(time.DateTime)})
	}
	if b.Manual {
		details = append(details, Param{Key: "Added", Value: "manually"})
	}
	if info := b.Info; info != nil {
		details = append(details,
			Param{Key: "Firmware", Value: info.Ver},
			Param{Key: "LEDs", Value: fmt.Sprintf("%d", info.LEDs.Count)},
		)
		if info.Arch != "" {
			details = append(details, Param{Key: "Chip", Value: info.Arch})
		}
		if info.MAC != "" {
			details = append(details, Param{Key: "MAC", Value: info.MAC})
		}
		if info.WiFi.Signal > 0 {
			details = append(details, Param{Key: "WiFi signal", Value: fmt.Sprintf("%d%% (%d dBm)", info.WiFi.Signal, info.WiFi.RSSI)})
		}
		if info.Uptime > 0 {
			details = append(details, Param{Key: "Uptime", Value: (time.Duration(info.Uptime) * time.Second).String()})
		}
	}
	return details
}
