package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// SyncJob re-runs extraction and export. Jobs must be safe to invoke
// repeatedly; overlapping runs are prevented by the scheduler.
type SyncJob func(ctx context.Context) error

// ExportSyncScheduler periodically refreshes the library from the
// non-interactive sources. Only sources that never need a human in the
// loop belong here; the browser-driven Kindle sync stays manual.
type ExportSyncScheduler struct {
	schedule string
	job      SyncJob

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.Mutex
	isRunning  bool
	jobRunning bool
	cancelFunc context.CancelFunc
}

func NewExportSyncScheduler(schedule string, job SyncJob) *ExportSyncScheduler {
	return &ExportSyncScheduler{
		schedule: schedule,
		job:      job,
		cron:     cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
	}
}

// Start begins the scheduler.
func (s *ExportSyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	entryID, err := s.cron.AddFunc(s.schedule, s.runJob)
	if err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	log.Printf("export sync scheduler: started with schedule %q, next run %v",
		s.schedule, s.nextRunLocked())

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop stops the scheduler and waits for a running job to complete.
func (s *ExportSyncScheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	cancel := s.cancelFunc
	s.cancelFunc = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	log.Printf("export sync scheduler: stopped")
}

// IsRunning reports whether the scheduler is active.
func (s *ExportSyncScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// NextRunTime returns when the next sync will occur, nil when stopped.
func (s *ExportSyncScheduler) NextRunTime() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return nil
	}
	return s.nextRunLocked()
}

func (s *ExportSyncScheduler) nextRunLocked() *time.Time {
	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

// RunNow triggers an immediate sync, skipped if one is already running.
func (s *ExportSyncScheduler) RunNow() {
	go s.runJob()
}

func (s *ExportSyncScheduler) runJob() {
	s.mu.Lock()
	if s.jobRunning {
		s.mu.Unlock()
		log.Printf("export sync: previous run still in progress, skipping")
		return
	}
	s.jobRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.jobRunning = false
		s.mu.Unlock()
	}()

	log.Printf("export sync: starting")
	start := time.Now()

	if err := s.job(context.Background()); err != nil {
		log.Printf("export sync: failed after %v: %v", time.Since(start).Round(time.Millisecond), err)
		return
	}
	log.Printf("export sync: completed in %v", time.Since(start).Round(time.Millisecond))
}
