package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/shelterbill/pkg/dates"
)

// BillingSnapshot is the price captured when a service record is created.
// It is stored inline on the record and never re-resolved.
type BillingSnapshot struct {
	ResolvedVersionID snowflake.ID `json:"resolved_version_id" gorm:"not null;index"`
	UnitPrice         int64        `json:"unit_price" gorm:"not null"`
	ProcedureFee      int64        `json:"procedure_fee" gorm:"not null"`
	Currency          string       `json:"currency" gorm:"type:varchar(3);not null"`
	Unit              string       `json:"unit" gorm:"type:varchar(64)"`
	ComputedAmount    int64        `json:"computed_amount" gorm:"not null"`
}

var ErrNoPriceForDate = errors.New("no_price_for_date")

// NoPriceForDateMessage is shown to staff when a record cannot be priced.
const NoPriceForDateMessage = "no price configured for this action on the selected date"

type NoPriceForDateError struct {
	Action string
	Date   time.Time
}

func (e *NoPriceForDateError) Error() string {
	return fmt.Sprintf("%s: %s on %s", NoPriceForDateMessage, e.Action, dates.Format(e.Date))
}

func (e *NoPriceForDateError) Unwrap() error { return ErrNoPriceForDate }
