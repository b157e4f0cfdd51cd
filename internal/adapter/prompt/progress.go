package prompt

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
)

// Spinner reports one database at a time with an indeterminate progress bar
// and prints an OK/FAIL line when it finishes.
type Spinner struct {
	out      io.Writer
	interval time.Duration

	mu      sync.Mutex
	bar     *progressbar.ProgressBar
	stop    chan struct{}
	done    chan struct{}
	started time.Time
}

func NewSpinner(out io.Writer) *Spinner {
	return &Spinner{
		out:      out,
		interval: 100 * time.Millisecond,
	}
}

func (s *Spinner) Start(database, action string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.halt()

	s.bar = progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(s.out),
		progressbar.OptionSetDescription(fmt.Sprintf("%s %s", action, database)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionThrottle(s.interval),
		progressbar.OptionClearOnFinish(),
	)
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.started = time.Now()

	go s.spin(s.bar, s.stop, s.done)
}

func (s *Spinner) spin(bar *progressbar.ProgressBar, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			_ = bar.Add(1)
		}
	}
}

// halt stops the running bar, if any. Callers hold s.mu.
func (s *Spinner) halt() {
	if s.bar == nil {
		return
	}
	close(s.stop)
	<-s.done
	_ = s.bar.Finish()
	s.bar = nil
}

func (s *Spinner) Finish(database string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elapsed := time.Since(s.started).Round(time.Millisecond)
	s.halt()

	if err != nil {
		failColor.Fprint(s.out, "[FAIL] ")
		fmt.Fprintf(s.out, "%s (%s)\n", database, elapsed)
		return
	}
	okColor.Fprint(s.out, "[OK] ")
	fmt.Fprintf(s.out, "%s (%s)\n", database, elapsed)
}
