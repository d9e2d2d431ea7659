// Package service holds the scheduling and reservation logic.  Services
// validate input, read the clock once per operation and run every write
// inside a single store transaction.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/cinema-scheduler/internal/config"
	"github.com/iliyamo/cinema-scheduler/internal/logger"
	"github.com/iliyamo/cinema-scheduler/internal/model"
	"github.com/iliyamo/cinema-scheduler/internal/schedule"
	"github.com/iliyamo/cinema-scheduler/internal/store"
)

// SchedulingService places screenings into halls.
type SchedulingService struct {
	store store.ScheduleStore
	cfg   config.SchedulingConfig
	clock Clock
	log   *logger.Logger
}

// NewSchedulingService constructs a SchedulingService.
func NewSchedulingService(st store.ScheduleStore, cfg config.SchedulingConfig, clock Clock, log *logger.Logger) *SchedulingService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &SchedulingService{store: st, cfg: cfg, clock: clock, log: log}
}

// Location is the time zone business days are computed in.
func (s *SchedulingService) Location() *time.Location { return s.cfg.Location }

// ScheduleInput is a request to place a movie in a hall.
type ScheduleInput struct {
	HallID   uint64
	MovieID  uint64
	StartsAt time.Time
	// AllowPast skips the start-in-the-past check (imports, back-office fixes).
	AllowPast bool
}

// ScheduleOutcome holds exactly one of Screening or Conflict.
type ScheduleOutcome struct {
	Screening *model.Screening
	Conflict  *ScheduleConflict
}

// businessDay is one calendar day of a hall in the configured zone.
type businessDay struct {
	from, to    time.Time // [midnight, next midnight)
	open        time.Time
	latestStart time.Time
}

func (s *SchedulingService) day(t time.Time) businessDay {
	loc := s.cfg.Location
	y, m, d := t.In(loc).Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return businessDay{
		from:        midnight,
		to:          midnight.AddDate(0, 0, 1),
		open:        time.Date(y, m, d, s.cfg.OpenHour, 0, 0, 0, loc),
		latestStart: time.Date(y, m, d, s.cfg.LatestStartHour, 0, 0, 0, loc),
	}
}

// Schedule creates a screening when the requested slot is free, or
// returns a ScheduleConflict with alternative starts when it is not.
// Errors are ValidationError, RuleViolation, ErrHallNotFound,
// ErrMovieNotFound, ErrScheduleRace or StoreError.
func (s *SchedulingService) Schedule(ctx context.Context, in ScheduleInput) (ScheduleOutcome, error) {
	switch {
	case in.HallID == 0:
		return ScheduleOutcome{}, invalid("hall_id", "is required")
	case in.MovieID == 0:
		return ScheduleOutcome{}, invalid("movie_id", "is required")
	case in.StartsAt.IsZero():
		return ScheduleOutcome{}, invalid("starts_at", "is required")
	}

	now := s.clock.Now()
	if !in.AllowPast && in.StartsAt.Before(now) {
		return ScheduleOutcome{}, violation(RuleStartInPast, "cannot schedule a screening in the past")
	}

	movie, err := s.store.MovieByID(ctx, in.MovieID)
	if err != nil {
		return ScheduleOutcome{}, storeErr("load movie", notFound(err, ErrMovieNotFound))
	}
	if movie.DurationMin == 0 {
		return ScheduleOutcome{}, invalid("movie_id", "movie has no running time")
	}
	if !movie.IsActive {
		return ScheduleOutcome{}, violation(RuleMovieInactive, "movie %q is not active", movie.Title)
	}
	hall, err := s.store.HallByID(ctx, in.HallID)
	if err != nil {
		return ScheduleOutcome{}, storeErr("load hall", notFound(err, ErrHallNotFound))
	}

	start := in.StartsAt.In(s.cfg.Location)
	day := s.day(start)
	if start.Before(day.open) || start.After(day.latestStart) {
		return ScheduleOutcome{}, violation(RuleOutsideHours,
			"screenings may start between %02d:00 and %02d:00", s.cfg.OpenHour, s.cfg.LatestStartHour)
	}
	occupied := schedule.Occupied(start, movie.Duration(), s.cfg.CleaningBuffer)
	if occupied.End.After(day.latestStart.Add(s.cfg.CleaningBuffer)) {
		return ScheduleOutcome{}, violation(RuleRunsPastClosing,
			"a %d minute movie starting at %s runs past closing", movie.DurationMin, start.Format("15:04"))
	}

	existing, err := s.store.ActiveScreenings(ctx, hall.ID, day.from, day.to)
	if err != nil {
		return ScheduleOutcome{}, storeErr("load day schedule", err)
	}
	if c := s.conflict(occupied, existing, movie, day); c != nil {
		s.log.LogScheduleConflict(hall.ID, start, c.Conflicting.ID, len(c.Suggestions))
		return ScheduleOutcome{Conflict: c}, nil
	}

	var out ScheduleOutcome
	err = s.store.WithScheduleTx(ctx, func(tx store.ScheduleTx) error {
		if err := tx.LockHall(ctx, hall.ID); err != nil {
			return notFound(err, ErrHallNotFound)
		}
		// re-read under the hall lock; the pre-check above may be stale
		fresh, err := tx.ActiveScreenings(ctx, hall.ID, day.from, day.to)
		if err != nil {
			return err
		}
		if c := s.conflict(occupied, fresh, movie, day); c != nil {
			out.Conflict = c
			return nil
		}
		sc := &model.Screening{HallID: hall.ID, MovieID: movie.ID, StartsAt: in.StartsAt.UTC()}
		if err := tx.InsertScreening(ctx, sc); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return ErrScheduleRace
			}
			return err
		}
		out.Screening = sc
		return nil
	})
	if err != nil {
		return ScheduleOutcome{}, storeErr("schedule screening", err)
	}
	if out.Conflict != nil {
		s.log.LogScheduleConflict(hall.ID, start, out.Conflict.Conflicting.ID, len(out.Conflict.Suggestions))
		return out, nil
	}
	s.log.LogScreeningScheduled(out.Screening.ID, hall.ID, movie.ID, out.Screening.StartsAt)
	return out, nil
}

// conflict returns nil when occupied is free in existing.
func (s *SchedulingService) conflict(occupied schedule.Interval, existing []model.ScheduledScreening, movie *model.Movie, day businessDay) *ScheduleConflict {
	busy := s.busy(existing)
	idx := schedule.FirstOverlap(occupied, busy)
	if idx < 0 {
		return nil
	}
	return &ScheduleConflict{
		Conflicting: existing[idx],
		Suggestions: s.suggest(busy, movie, day),
	}
}

func (s *SchedulingService) busy(existing []model.ScheduledScreening) []schedule.Interval {
	busy := make([]schedule.Interval, len(existing))
	for i, e := range existing {
		busy[i] = schedule.Occupied(e.StartsAt.In(s.cfg.Location), e.Duration(), s.cfg.CleaningBuffer)
	}
	return busy
}

func (s *SchedulingService) suggest(busy []schedule.Interval, movie *model.Movie, day businessDay) []time.Time {
	return schedule.FindSlots(schedule.SlotQuery{
		DayOpen:     day.open,
		LatestStart: day.latestStart,
		Busy:        busy,
		Block:       movie.Duration() + s.cfg.CleaningBuffer,
		Granularity: s.cfg.Granularity,
		LateSlack:   s.cfg.LateSlack,
		Max:         s.cfg.MaxSuggestions,
	})
}

// FreeSlots proposes starts for the movie in the hall on the given day
// without requesting a particular one.
func (s *SchedulingService) FreeSlots(ctx context.Context, hallID, movieID uint64, date time.Time) ([]time.Time, error) {
	if hallID == 0 {
		return nil, invalid("hall_id", "is required")
	}
	if movieID == 0 {
		return nil, invalid("movie_id", "is required")
	}
	movie, err := s.store.MovieByID(ctx, movieID)
	if err != nil {
		return nil, storeErr("load movie", notFound(err, ErrMovieNotFound))
	}
	if movie.DurationMin == 0 {
		return nil, invalid("movie_id", "movie has no running time")
	}
	if _, err := s.store.HallByID(ctx, hallID); err != nil {
		return nil, storeErr("load hall", notFound(err, ErrHallNotFound))
	}
	day := s.day(date)
	existing, err := s.store.ActiveScreenings(ctx, hallID, day.from, day.to)
	if err != nil {
		return nil, storeErr("load day schedule", err)
	}
	return s.suggest(s.busy(existing), movie, day), nil
}

// DayEntry is one active screening with the interval it occupies.
type DayEntry struct {
	Screening model.ScheduledScreening
	Occupied  schedule.Interval
}

// DaySchedule lists the hall's active screenings on the given day.
func (s *SchedulingService) DaySchedule(ctx context.Context, hallID uint64, date time.Time) ([]DayEntry, error) {
	if hallID == 0 {
		return nil, invalid("hall_id", "is required")
	}
	if _, err := s.store.HallByID(ctx, hallID); err != nil {
		return nil, storeErr("load hall", notFound(err, ErrHallNotFound))
	}
	day := s.day(date)
	existing, err := s.store.ActiveScreenings(ctx, hallID, day.from, day.to)
	if err != nil {
		return nil, storeErr("load day schedule", err)
	}
	busy := s.busy(existing)
	out := make([]DayEntry, len(existing))
	for i := range existing {
		out[i] = DayEntry{Screening: existing[i], Occupied: busy[i]}
	}
	return out, nil
}
