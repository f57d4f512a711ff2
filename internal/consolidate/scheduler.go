package consolidate

import (
	"context"
	"log"
	"time"

	rcron "github.com/robfig/cron/v3"
)

// Scheduler runs consolidation for all users on a cron schedule. A single
// standard 5-field expression covers the nightly case; the zero value of
// Scheduler is not usable, construct with NewScheduler.
type Scheduler struct {
	consolidator *Consolidator
	schedule     string
	cron         *rcron.Cron
}

func NewScheduler(c *Consolidator, schedule string) *Scheduler {
	return &Scheduler{consolidator: c, schedule: schedule}
}

// Start registers the consolidation job and begins the cron loop. The job
// runs with a generous timeout so a slow LLM cannot wedge the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron = rcron.New()
	_, err := s.cron.AddFunc(s.schedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
		if err := s.consolidator.RunAll(runCtx); err != nil {
			log.Printf("[scheduler] consolidation run failed: %v", err)
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("[scheduler] consolidation scheduled at %q", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop halts the cron loop, waiting briefly for a running job to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		log.Printf("[scheduler] stop timeout waiting for running job")
	}
}
