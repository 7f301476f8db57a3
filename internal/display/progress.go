package display

import (
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/quocvuong92/ollama-ctl/internal/api"
)

// ProgressPrinter renders pull and push progress. On a terminal the current
// line is redrawn in place at most every 100ms; otherwise only status
// changes are printed, one per line.
type ProgressPrinter struct {
	w           io.Writer
	interactive bool
	limiter     *rate.Limiter
	lastStatus  string
	lastDigest  string
	lineWidth   int
}

// NewProgressPrinter creates a printer writing to w
func NewProgressPrinter(w io.Writer) *ProgressPrinter {
	return &ProgressPrinter{
		w:           w,
		interactive: IsTerminal(w),
		limiter:     rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
	}
}

// Update renders one progress event
func (p *ProgressPrinter) Update(ev api.Progress) {
	changed := ev.Status != p.lastStatus || ev.Digest != p.lastDigest
	p.lastStatus, p.lastDigest = ev.Status, ev.Digest

	if !p.interactive {
		if changed {
			fmt.Fprintln(p.w, progressLine(ev))
		}
		return
	}

	if !changed && !p.limiter.Allow() {
		return
	}
	if changed && p.lineWidth > 0 {
		fmt.Fprintln(p.w)
		p.lineWidth = 0
	}
	line := progressLine(ev)
	pad := ""
	if n := p.lineWidth - len(line); n > 0 {
		pad = strings.Repeat(" ", n)
	}
	fmt.Fprint(p.w, "\r"+line+pad)
	p.lineWidth = len(line)
}

// Finish ends the current line
func (p *ProgressPrinter) Finish() {
	if p.interactive && p.lineWidth > 0 {
		fmt.Fprintln(p.w)
		p.lineWidth = 0
	}
}

func progressLine(ev api.Progress) string {
	var sb strings.Builder
	sb.WriteString(ev.Status)
	if ev.Digest != "" && !strings.Contains(ev.Status, ShortDigest(ev.Digest)) {
		sb.WriteString(" ")
		sb.WriteString(ShortDigest(ev.Digest))
	}
	if ev.Total > 0 {
		pct := float64(ev.Completed) / float64(ev.Total) * 100
		fmt.Fprintf(&sb, " %3.0f%% (%s/%s)", pct, FormatBytes(ev.Completed), FormatBytes(ev.Total))
	}
	return sb.String()
}
