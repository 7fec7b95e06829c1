package cli

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/otpkeeper/internal/models"
	"github.com/dmitrijs2005/otpkeeper/internal/session"
)

// Printer serializes terminal output from the REPL and the session
// workers. It is the controller's Listener: logout notices are always
// printed, codes and the countdown only while live.
type Printer struct {
	mu   sync.Mutex
	w    io.Writer
	live bool
}

func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

func (p *Printer) Println(a ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, a...)
}

func (p *Printer) Printf(format string, a ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format, a...)
}

// Writer is for prompts written by the input helpers.
func (p *Printer) Writer() io.Writer {
	return lockedWriter{p}
}

// SetLive switches streaming of codes and countdown on or off.
func (p *Printer) SetLive(on bool) {
	p.mu.Lock()
	p.live = on
	p.mu.Unlock()
}

func (p *Printer) CodesRefreshed(views []models.CodeView) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.live {
		return
	}
	writeCodes(p.w, views)
}

func (p *Printer) Countdown(sessionLeft time.Duration, remaining map[models.AccountID]int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.live {
		return
	}
	if next, ok := nextRefresh(remaining); ok {
		fmt.Fprintf(p.w, "logout in %s, new codes in %ds\n", formatClock(sessionLeft), next)
		return
	}
	fmt.Fprintf(p.w, "logout in %s\n", formatClock(sessionLeft))
}

func (p *Printer) LoggedOut(reason session.Reason, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.live = false

	switch reason {
	case session.ReasonExpired:
		fmt.Fprintln(p.w, "Session expired. Log in again to see your codes.")
	case session.ReasonError:
		fmt.Fprintln(p.w, "Logged out:", err)
	case session.ReasonLogout:
		fmt.Fprintln(p.w, "Logged out.")
	}
}

type lockedWriter struct{ p *Printer }

func (l lockedWriter) Write(b []byte) (int, error) {
	l.p.mu.Lock()
	defer l.p.mu.Unlock()
	return l.p.w.Write(b)
}

func writeCodes(w io.Writer, views []models.CodeView) {
	if len(views) == 0 {
		fmt.Fprintln(w, "No accounts yet. Use 'add' to create one.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCODE\tLEFT\tID")
	for _, v := range views {
		fmt.Fprintf(tw, "%s\t%s\t%ds\t%s\n", v.Name, v.Display(), v.Remaining, v.ID)
	}
	tw.Flush()
}

// nextRefresh is the smallest per-account countdown.
func nextRefresh(remaining map[models.AccountID]int) (int, bool) {
	if len(remaining) == 0 {
		return 0, false
	}
	vals := make([]int, 0, len(remaining))
	for _, v := range remaining {
		vals = append(vals, v)
	}
	sort.Ints(vals)
	return vals[0], true
}

// formatClock renders d as M:SS, truncated to whole seconds.
func formatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
