package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/cinema-scheduler/internal/model"
	"github.com/iliyamo/cinema-scheduler/internal/store"
)

var (
	ErrHallNotFound      = errors.New("hall not found")
	ErrMovieNotFound     = errors.New("movie not found")
	ErrScreeningNotFound = errors.New("screening not found")
	ErrTicketNotFound    = errors.New("ticket not found")
	ErrForbidden         = errors.New("forbidden")

	// ErrScheduleRace means another request took the slot between the
	// overlap check and the insert.  The caller may retry.
	ErrScheduleRace = errors.New("screening slot taken concurrently, retry")
)

// ValidationError reports malformed input.  Nothing was written.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Rule names carried by RuleViolation.
const (
	RuleStartInPast       = "start_in_past"
	RuleOutsideHours      = "outside_business_hours"
	RuleRunsPastClosing   = "runs_past_closing"
	RuleMovieInactive     = "movie_inactive"
	RuleScreeningStarted  = "screening_started"
	RuleScreeningCanceled = "screening_cancelled"
	RuleRefundWindow      = "refund_window_closed"
	RuleNotSold           = "ticket_not_sold"
)

// RuleViolation reports well-formed input that breaks a business rule.
type RuleViolation struct {
	Rule    string
	Message string
}

func (e *RuleViolation) Error() string { return e.Message }

func violation(rule, format string, args ...any) error {
	return &RuleViolation{Rule: rule, Message: fmt.Sprintf(format, args...)}
}

// ScheduleConflict is returned, not raised, when a requested start
// overlaps an active screening.  Suggestions are free alternative starts
// for the same movie on the same day, sorted ascending.
type ScheduleConflict struct {
	Conflicting model.ScheduledScreening
	Suggestions []time.Time
}

// SeatConflict is returned, not raised, when some requested seats are not
// available.  No hold was created.
type SeatConflict struct {
	Seats []model.SeatKey
}

// ReservationLostError means a payment arrived for seats whose holds are
// gone (expired, released or cancelled).  The caller has to refund or
// re-offer; no ticket was sold.
type ReservationLostError struct {
	OrderToken string
	Missing    []model.SeatKey
}

func (e *ReservationLostError) Error() string {
	keys := make([]string, len(e.Missing))
	for i, k := range e.Missing {
		keys[i] = k.String()
	}
	return fmt.Sprintf("reservation lost for order %s: seats %s no longer held", e.OrderToken, strings.Join(keys, ","))
}

// StoreError wraps a failure of the underlying store.  The transaction was
// rolled back; the operation may be retried.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *StoreError) Unwrap() error { return e.Err }

// storeErr passes domain errors through and wraps anything else.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		ve *ValidationError
		rv *RuleViolation
		rl *ReservationLostError
		se *StoreError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &rv), errors.As(err, &rl), errors.As(err, &se):
		return err
	case errors.Is(err, ErrHallNotFound), errors.Is(err, ErrMovieNotFound),
		errors.Is(err, ErrScreeningNotFound), errors.Is(err, ErrTicketNotFound),
		errors.Is(err, ErrForbidden), errors.Is(err, ErrScheduleRace):
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// notFound maps store.ErrNotFound to the given domain sentinel.
func notFound(err, sentinel error) error {
	if errors.Is(err, store.ErrNotFound) {
		return sentinel
	}
	return err
}
