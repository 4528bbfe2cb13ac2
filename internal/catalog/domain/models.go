package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/shelterbill/pkg/dates"
)

// BillableAction groups the price versions of one medical action. Its row is
// also the lock taken by catalog writers for that action.
type BillableAction struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	Code      string       `json:"code" gorm:"type:varchar(191);not null;uniqueIndex:ux_billable_actions_code"`
	Name      string       `json:"name" gorm:"type:varchar(255);not null"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
}

func (BillableAction) TableName() string { return "billable_actions" }

// ActionVersion is one effective-dated price definition. Both bounds are
// inclusive calendar dates; a nil ValidTo means open-ended.
type ActionVersion struct {
	ID           snowflake.ID `json:"id" gorm:"primaryKey"`
	ActionCode   string       `json:"action_code" gorm:"type:varchar(191);not null;uniqueIndex:ux_action_versions_code_from,priority:1"`
	ActionName   string       `json:"action_name" gorm:"type:varchar(255);not null"`
	ValidFrom    time.Time    `json:"valid_from" gorm:"type:date;not null;uniqueIndex:ux_action_versions_code_from,priority:2"`
	ValidTo      *time.Time   `json:"valid_to,omitempty" gorm:"type:date"`
	CostPrice    int64        `json:"cost_price" gorm:"not null"`
	SellingPrice int64        `json:"selling_price" gorm:"not null"`
	ProcedureFee int64        `json:"procedure_fee" gorm:"not null"`
	Currency     string       `json:"currency" gorm:"type:varchar(3);not null"`
	Unit         string       `json:"unit" gorm:"type:varchar(64)"`
	CreatedAt    time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt    time.Time    `json:"updated_at" gorm:"not null"`
}

func (ActionVersion) TableName() string { return "action_versions" }

// IsOpen reports whether the version has no end date.
func (v ActionVersion) IsOpen() bool {
	return v.ValidTo == nil
}

// Covers reports whether day falls inside [ValidFrom, ValidTo].
func (v ActionVersion) Covers(day time.Time) bool {
	day = dates.Of(day)
	if day.Before(dates.Of(v.ValidFrom)) {
		return false
	}
	return v.ValidTo == nil || !day.After(dates.Of(*v.ValidTo))
}

// Overlaps reports whether [from, to] intersects the version's interval.
// A nil bound stands for +infinity.
func (v ActionVersion) Overlaps(from time.Time, to *time.Time) bool {
	if to != nil && dates.Of(*to).Before(dates.Of(v.ValidFrom)) {
		return false
	}
	if v.ValidTo != nil && dates.Of(from).After(dates.Of(*v.ValidTo)) {
		return false
	}
	return true
}

// ActionCode derives the grouping key of an action from its display name,
// so "Rabies Vaccine" and "rabies vaccine" share one price history.
func ActionCode(name string) (string, error) {
	code := slug.Make(strings.TrimSpace(name))
	if code == "" {
		return "", ErrInvalidActionName
	}
	return code, nil
}
