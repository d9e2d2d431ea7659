package service

import (
	"context"

	"github.com/iliyamo/cinema-scheduler/internal/model"
)

// SeatMap is the seat availability of one screening at read time.
type SeatMap struct {
	Screening   model.ScreeningDetail
	Unavailable []model.SeatKey
	Available   int
}

// SeatMap reports which seats of the screening are taken.  A HELD ticket
// counts only while its expiry is in the future, so expired holds show as
// free even if the sweeper has not run yet.
func (s *ReservationService) SeatMap(ctx context.Context, screeningID uint64) (SeatMap, error) {
	if screeningID == 0 {
		return SeatMap{}, invalid("screening_id", "is required")
	}
	sc, err := s.store.ScreeningDetail(ctx, screeningID)
	if err != nil {
		return SeatMap{}, storeErr("load screening", notFound(err, ErrScreeningNotFound))
	}
	now := s.clock.Now()
	taken, err := s.store.UnavailableSeats(ctx, screeningID, now)
	if err != nil {
		return SeatMap{}, storeErr("load seat availability", err)
	}
	free := sc.Hall().Capacity() - len(taken)
	if free < 0 {
		free = 0
	}
	return SeatMap{Screening: *sc, Unavailable: taken, Available: free}, nil
}
