package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/smallbiznis/shelterbill/pkg/dates"
)

var (
	ErrInvalidActionName = errors.New("invalid_action_name")
	ErrInvalidCurrency   = errors.New("invalid_currency")
	ErrInvalidPrice      = errors.New("invalid_price")
	ErrInvalidDate       = errors.New("invalid_date")
	ErrInvalidID         = errors.New("invalid_id")
	ErrInvalidRange      = errors.New("invalid_range")
	ErrOverlap           = errors.New("version_overlap")
	ErrNotFound          = errors.New("not_found")
	ErrNoOpenVersion     = errors.New("no_open_version")
	ErrVersionInUse      = errors.New("version_in_use")
)

// OverlapError names the existing version an insert would collide with.
// Conflict is nil when the store rejected the write without telling us which row.
type OverlapError struct {
	ActionCode string
	ValidFrom  time.Time
	ValidTo    *time.Time
	Conflict   *ActionVersion
}

func (e *OverlapError) Error() string {
	if e.Conflict == nil {
		return fmt.Sprintf("%s: %s overlaps an existing version", ErrOverlap, e.ActionCode)
	}
	return fmt.Sprintf("%s: %s [%s, %s] overlaps version %s [%s, %s]",
		ErrOverlap, e.ActionCode,
		dates.Format(e.ValidFrom), formatBound(e.ValidTo),
		e.Conflict.ID, dates.Format(e.Conflict.ValidFrom), formatBound(e.Conflict.ValidTo),
	)
}

func (e *OverlapError) Unwrap() error { return ErrOverlap }

// InvalidRangeError reports an interval whose end precedes its start.
type InvalidRangeError struct {
	From time.Time
	To   time.Time
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("%s: %s is after %s", ErrInvalidRange, dates.Format(e.From), dates.Format(e.To))
}

func (e *InvalidRangeError) Unwrap() error { return ErrInvalidRange }

func formatBound(t *time.Time) string {
	if t == nil {
		return "open"
	}
	return dates.Format(*t)
}
