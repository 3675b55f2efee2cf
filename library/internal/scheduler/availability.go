package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type repairFunc func(ctx context.Context) (int64, error)

// AvailabilityRepair periodically recomputes availability for every book.
type AvailabilityRepair struct {
	repair   repairFunc
	schedule string
	timeout  time.Duration
	log      *zap.Logger

	cron    *cron.Cron
	entryID cron.EntryID
	mu      sync.Mutex
	running bool
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSchedule accepts five-field cron specs and descriptors like @hourly.
func ValidateSchedule(schedule string) error {
	_, err := parser.Parse(schedule)
	return err
}

func NewAvailabilityRepair(repair repairFunc, schedule string, log *zap.Logger) *AvailabilityRepair {
	log = log.Named("scheduler")
	cl := cronLogger{log.Sugar()}
	return &AvailabilityRepair{
		repair:   repair,
		schedule: schedule,
		timeout:  time.Minute,
		log:      log,
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
}

// Start schedules the job and stops it once ctx is done. An empty schedule
// leaves the job disabled.
func (s *AvailabilityRepair) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	if s.schedule == "" {
		s.log.Info("availability repair disabled")
		return nil
	}
	id, err := s.cron.AddFunc(s.schedule, func() {
		s.run(ctx)
	})
	if err != nil {
		return errors.Wrapf(err, "invalid schedule %q", s.schedule)
	}
	s.entryID = id
	s.cron.Start()
	s.running = true
	s.log.Info("availability repair scheduled",
		zap.String("schedule", s.schedule),
		zap.Time("next", s.cron.Entry(id).Next))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop waits for a running repair to finish.
func (s *AvailabilityRepair) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.cron.Remove(s.entryID)
	s.running = false
	s.log.Info("availability repair stopped")
}

// RunNow repairs synchronously, outside the schedule.
func (s *AvailabilityRepair) RunNow(ctx context.Context) (int64, error) {
	return s.repair(ctx)
}

// run is cancelled together with the context given to Start, so shutdown does
// not wait out the timeout.
func (s *AvailabilityRepair) run(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	n, err := s.repair(ctx)
	if err != nil {
		s.log.Error("availability repair", zap.Error(err))
		return
	}
	s.log.Info("availability repaired", zap.Int64("changed", n))
}

type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
