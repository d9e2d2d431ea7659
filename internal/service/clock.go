package service

import "time"

// Clock is the wall-clock source.  Every operation reads it once.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now in UTC, truncated to the millisecond the
// store keeps.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC().Truncate(time.Millisecond) }
