package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/smallbiznis/shelterbill/pkg/dates"
)

var (
	ErrInvalidRange       = errors.New("invalid_range")
	ErrInvalidDate        = errors.New("invalid_date")
	ErrInvalidGranularity = errors.New("invalid_granularity")
	ErrInvalidFormat      = errors.New("invalid_format")
	ErrInvalidPreset      = errors.New("invalid_preset")
)

// InvalidRangeError reports a start after the end or a span longer than MaxDays.
type InvalidRangeError struct {
	Start   time.Time
	End     time.Time
	MaxDays int
}

func (e *InvalidRangeError) Error() string {
	if e.MaxDays > 0 {
		return fmt.Sprintf("%s: %s..%s exceeds %d days", ErrInvalidRange, dates.Format(e.Start), dates.Format(e.End), e.MaxDays)
	}
	return fmt.Sprintf("%s: %s is after %s", ErrInvalidRange, dates.Format(e.Start), dates.Format(e.End))
}

func (e *InvalidRangeError) Unwrap() error { return ErrInvalidRange }
