package service

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/iliyamo/cinema-scheduler/internal/config"
	"github.com/iliyamo/cinema-scheduler/internal/logger"
	"github.com/iliyamo/cinema-scheduler/internal/store"
)

// ExpirySweeper periodically moves expired holds to EXPIRED.  Correctness
// never depends on it: availability checks already ignore expired holds.
// It keeps the tickets table and the unique seat key tidy.
type ExpirySweeper struct {
	store    store.ReservationStore
	clock    Clock
	log      *logger.Logger
	interval time.Duration
	batch    int

	scheduler gocron.Scheduler
}

// NewExpirySweeper constructs a sweeper; call Start to schedule it.
func NewExpirySweeper(st store.ReservationStore, cfg config.SweeperConfig, clock Clock, log *logger.Logger) *ExpirySweeper {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 500
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	return &ExpirySweeper{store: st, clock: clock, log: log, interval: cfg.Interval, batch: cfg.BatchSize}
}

// Sweep expires holds whose expiry is at or before now, in bounded
// batches until a batch comes back short.
func (s *ExpirySweeper) Sweep(ctx context.Context) (int64, error) {
	now := s.clock.Now()
	started := time.Now()
	var total int64
	for {
		n, err := s.store.ExpireHolds(ctx, now, s.batch)
		if err != nil {
			return total, storeErr("expire holds", err)
		}
		total += n
		if n < int64(s.batch) {
			break
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
	if total > 0 {
		s.log.LogSweep(total, time.Since(started))
	}
	return total, nil
}

// Start schedules Sweep every interval, first run immediately.  Runs never
// overlap.
func (s *ExpirySweeper) Start() error {
	sch, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return err
	}
	_, err = sch.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(s.run),
		gocron.WithName("expire-holds"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = sch.Shutdown()
		return err
	}
	sch.Start()
	s.scheduler = sch
	return nil
}

func (s *ExpirySweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()
	if _, err := s.Sweep(ctx); err != nil {
		s.log.WithError(err).Error("hold sweep failed")
	}
}

// Stop waits for a running sweep and stops the schedule.
func (s *ExpirySweeper) Stop() error {
	sch := s.scheduler
	if sch == nil {
		return nil
	}
	s.scheduler = nil
	return sch.Shutdown()
}
