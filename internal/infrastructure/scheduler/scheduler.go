package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrorHandler receives the error of a failed job run.
type ErrorHandler func(name string, err error)

// Scheduler runs named jobs on six-field (seconds first) cron specs. A job
// still running when its next tick fires is skipped for that tick.
type Scheduler struct {
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	onError ErrorHandler

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

func New(onError ErrorHandler) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		ctx:     ctx,
		cancel:  cancel,
		onError: onError,
		entries: make(map[string]cron.EntryID),
	}
}

func (s *Scheduler) AddJob(name, spec string, job func(context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("job %q already scheduled", name)
	}

	id, err := s.cron.AddFunc(spec, func() {
		if err := job(s.ctx); err != nil && s.onError != nil {
			s.onError(name, err)
		}
	})
	if err != nil {
		return err
	}

	s.entries[name] = id
	return nil
}

// NextRun reports when the named job fires next. It is zero before Start
// and for unknown names.
func (s *Scheduler) NextRun(name string) time.Time {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels the context handed to running jobs and waits for them to
// return.
func (s *Scheduler) Stop() {
	s.cancel()
	ctx := s.cron.Stop()
	<-ctx.Done()
}
