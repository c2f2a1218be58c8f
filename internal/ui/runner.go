package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// RunnerConfig holds configuration for a one-shot command
type RunnerConfig struct {
	Title   string    // Command title (e.g., "Board test")
	Command string    // Full command (e.g., "wledui test 192.168.1.40")
	Params  []Param   // Parameters to display in header
	Output  io.Writer // Output writer (default: os.Stdout)
	Quiet   bool      // Skip the header and success box, print failures only
}

// Runner orchestrates header, operation and result box for a command.
type Runner struct {
	config RunnerConfig
	header *Header
	output io.Writer
	width  int
}

// NewRunner creates a new runner for a command
func NewRunner(config RunnerConfig) *Runner {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	width := GetTerminalWidth()
	return &Runner{
		config: config,
		header: NewHeader(config.Title, config.Command, config.Params).SetWidth(width),
		output: config.Output,
		width:  width,
	}
}

// Operation performs the command's work and returns the details to show on
// success.
type Operation func(ctx context.Context) ([]Param, error)

// Run prints the header, executes op and prints the result.
func (r *Runner) Run(ctx context.Context, op Operation) error {
	if !r.config.Quiet {
		_, _ = fmt.Fprintln(r.output, r.header.Render())
		_, _ = fmt.Fprintln(r.output)
	}

	start := time.Now()
	details, err := op(ctx)
	duration := time.Since(start).Round(time.Millisecond)

	if err != nil {
		result := NewFailureResult(r.config.Title+" failed", err, nil)
		result.AddDetail("Duration", duration.String())
		_, _ = fmt.Fprintln(r.output, result.SetWidth(r.width).Render())
		return err
	}

	if !r.config.Quiet {
		details = append(details, Param{Key: "Duration", Value: duration.String()})
		result := NewSuccessResult(r.config.Title+" complete", details)
		_, _ = fmt.Fprintln(r.output, result.SetWidth(r.width).Render())
	}
	return nil
}

// Width returns the terminal width the runner renders at.
func (r *Runner) Width() int {
	return r.width
}

// Output returns the writer the runner prints to.
func (r *Runner) Output() io.Writer {
	return r.output
}

// PrintPleaseWait prints a styled "please wait" message for long-running
// operations, e.g. "Scanning 5 ranges" with the hint "about 30 seconds".
func PrintPleaseWait(w io.Writer, message string, durationHint string) {
	style := lipgloss.NewStyle().
		Foreground(PrimaryColor).
		Bold(true).
		PaddingLeft(2)

	hintStyle := lipgloss.NewStyle().
		Foreground(MutedColor).
		Italic(true)

	line := style.Render("⏳ " + message)
	if durationHint != "" {
		line += " " + hintStyle.Render("("+durationHint+")")
	}
	line += style.Render("...")

	_, _ = fmt.Fprintln(w, line)
	_, _ = fmt.Fprintln(w)
}
