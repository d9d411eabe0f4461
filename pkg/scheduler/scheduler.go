package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kodanda10/iConnect-sub000/internal/dates"
)

// DayLock guards a job against running on more than one instance per day.
// Release hands a failed day back; Finish keeps a done day taken.
type DayLock interface {
	Acquire(ctx context.Context, day dates.Date) (bool, error)
	Release(ctx context.Context, day dates.Date) error
	Finish(ctx context.Context, day dates.Date) error
}

// Job is the work run once per civil day.
type Job func(ctx context.Context) error

// Scheduler runs a job once per civil day at or after hour:minute in loc.
// A failed run is retried on the next tick. While another instance holds the
// day, this one keeps asking so it can take over if that run fails.
type Scheduler struct {
	job      Job
	lock     DayLock
	clock    dates.Clock
	loc      *time.Location
	hour     int
	minute   int
	interval time.Duration
	lastRun  dates.Date
}

func NewScheduler(job Job, lock DayLock, clock dates.Clock, loc *time.Location, hour, minute int, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		job:      job,
		lock:     lock,
		clock:    clock,
		loc:      loc,
		hour:     hour,
		minute:   minute,
		interval: interval,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logrus.WithField("at", time.Date(0, 1, 1, s.hour, s.minute, 0, 0, s.loc).Format("15:04 MST")).Info("daily scheduler started")

	s.tick(ctx)
	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-ctx.Done():
			logrus.Info("daily scheduler stopped")
			return
		}
	}
}

// tick runs the job if today's run is due and not yet done. It reports
// whether the job ran.
func (s *Scheduler) tick(ctx context.Context) bool {
	now := s.clock.Now()
	today := dates.Today(s.clock, s.loc)

	if s.lastRun == today {
		return false
	}
	if now.Before(dates.At(today, s.hour, s.minute, s.loc)) {
		return false
	}

	log := logrus.WithField("date", today.String())

	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, today)
		if err != nil {
			log.Errorf("daily run lock unavailable: %v", err)
			return false
		}
		if !acquired {
			log.Debug("daily run held by another instance")
			return false
		}
	}

	if err := s.job(ctx); err != nil {
		log.Errorf("daily run failed: %v", err)
		if s.lock != nil {
			if err := s.lock.Release(ctx, today); err != nil {
				log.Warnf("failed to release daily run lock: %v", err)
			}
		}
		return true
	}

	if s.lock != nil {
		if err := s.lock.Finish(ctx, today); err != nil {
			log.Warnf("failed to mark daily run done: %v", err)
		}
	}
	s.lastRun = today
	return true
}
