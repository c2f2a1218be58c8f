package ui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/wledui/internal/discovery"
)

// SweepProgress renders a discovery sweep as a bar with counters. On a
// terminal each update redraws the same line; elsewhere only the final line
// of each range is written.
type SweepProgress struct {
	Width int
	Live  bool

	out     io.Writer
	bar     progress.Model
	last    discovery.Progress
	started bool
}

// NewSweepProgress creates a progress display writing to out.
func NewSweepProgress(out io.Writer) *SweepProgress {
	p := &SweepProgress{out: out, Live: IsTerminal()}
	p.SetWidth(GetTerminalWidth())
	return p
}

// SetWidth sets the terminal width for responsive rendering
func (p *SweepProgress) SetWidth(width int) *SweepProgress {
	p.Width = width
	barWidth := width - 36 // Leave room for percentage and counters
	if barWidth < 20 {
		barWidth = 20
	}
	if barWidth > 50 {
		barWidth = 50
	}
	p.bar = progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(barWidth),
	)
	return p
}

// Update records a progress report and redraws. It is safe to pass directly
// as a discovery.ProgressFunc.
func (p *SweepProgress) Update(pr discovery.Progress) {
	if p.started && pr.Range != p.last.Range {
		p.finishLine()
	}
	p.started = true
	p.last = pr

	if p.Live {
		_, _ = fmt.Fprint(p.out, "\r"+p.Render())
	} else if pr.Total > 0 && pr.Checked == pr.Total {
		_, _ = fmt.Fprintln(p.out, p.Render())
		p.started = false
	}
}

// Done terminates the current progress line.
func (p *SweepProgress) Done() {
	if p.started {
		p.finishLine()
	}
	p.started = false
}

func (p *SweepProgress) finishLine() {
	if p.Live {
		_, _ = fmt.Fprintln(p.out)
	} else {
		_, _ = fmt.Fprintln(p.out, p.Render())
	}
}

// Percent returns the fraction of the current range checked.
func (p *SweepProgress) Percent() float64 {
	if p.last.Total == 0 {
		return 0
	}
	return float64(p.last.Checked) / float64(p.last.Total)
}

// Render returns the styled progress line for the last report.
func (p *SweepProgress) Render() string {
	counters := fmt.Sprintf("%3.0f%%  [%d/%d]  found %d",
		p.Percent()*100, p.last.Checked, p.last.Total, p.last.Found)
	label := ProgressLabelStyle.Render(fmt.Sprintf("%s.x", p.last.Range))

	return lipgloss.JoinHorizontal(lipgloss.Top,
		label, "  ",
		p.bar.ViewAs(p.Percent()), "  ",
		ProgressNoteStyle.Render(counters),
	)
}

// String implements fmt.Stringer
func (p *SweepProgress) String() string {
	return p.Render()
}
