package app

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Scheduler fires a job once a day at a fixed wall-clock time
type Scheduler struct {
	hour     int
	minute   int
	loc      *time.Location
	job      func(ctx context.Context)
	now      func() time.Time
	done     chan struct{}
	stopOnce sync.Once
	log      logrus.FieldLogger
}

// NewScheduler creates a daily scheduler; loc nil means UTC
func NewScheduler(hour, minute int, loc *time.Location, job func(ctx context.Context), log logrus.FieldLogger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		hour:   hour,
		minute: minute,
		loc:    loc,
		job:    job,
		now:    time.Now,
		done:   make(chan struct{}),
		log:    log,
	}
}

// NextRun returns the first hour:minute in loc strictly after now
func NextRun(now time.Time, hour, minute int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, loc)
	}
	return next
}

// Start blocks running the job daily until Stop is called or ctx ends.
// Runs never overlap: the next trigger is computed after the job returns.
func (s *Scheduler) Start(ctx context.Context) {
	s.log.WithFields(logrus.Fields{
		"hour":     s.hour,
		"minute":   s.minute,
		"timezone": s.loc.String(),
	}).Info("Daily scheduler started")

	for {
		next := NextRun(s.now(), s.hour, s.minute, s.loc)
		s.log.WithField("next_run", next.Format(time.RFC3339)).Debug("Next scheduled run")

		timer := time.NewTimer(time.Until(next))
		select {
		case <-timer.C:
			s.job(ctx)
		case <-s.done:
			timer.Stop()
			s.log.Info("Daily scheduler stopped")
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// Stop stops the scheduling loop
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
}
