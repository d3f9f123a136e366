package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/i474232898/knmi-hourly/internal/knmi"
)

// Runner is the part of knmi.Service the scheduler drives.
type Runner interface {
	Run(ctx context.Context, stations knmi.StationRange, periods []string) (*knmi.Summary, error)
}

// Scheduler periodically rebuilds every station dataset.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    Runner
	stations  knmi.StationRange
	periods   []string
	interval  time.Duration
	immediate bool
}

// New creates a new Scheduler. With immediate set the first run starts as
// soon as the scheduler does, otherwise after one interval.
func New(runner Runner, stations knmi.StationRange, periods []string, interval time.Duration, immediate bool) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		runner:    runner,
		stations:  stations,
		periods:   periods,
		interval:  interval,
		immediate: immediate,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	interval := s.interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	job := s.scheduler.Every(interval).SingletonMode()
	if !s.immediate {
		job = job.WaitForSchedule()
	}
	if _, err := job.Do(s.runOnce); err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) runOnce() {
	log.Info("scheduler: running archive fetch job")

	summary, err := s.runner.Run(context.Background(), s.stations, s.periods)
	switch {
	case errors.Is(err, knmi.ErrRunInProgress):
		log.Info("scheduler: a run is already in progress; skipping")
		return
	case err != nil && summary == nil:
		log.WithError(err).Error("scheduler: fetch run failed")
		return
	case err != nil:
		log.WithError(err).Warn("scheduler: fetch run completed with merge failures")
	}

	log.WithFields(log.Fields{
		"run":      summary.RunID,
		"failures": len(summary.Failures()),
	}).Info("scheduler: completed archive fetch job")
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
