package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Service interface {
	// ResolveAndSnapshot prices quantity (thousandths) of the action on onDate
	// inside tx, the caller's transaction.
	ResolveAndSnapshot(ctx context.Context, tx *gorm.DB, actionName string, onDate time.Time, quantity int64) (*BillingSnapshot, error)
}
