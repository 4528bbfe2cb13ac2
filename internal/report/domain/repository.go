package domain

import (
	"context"
	"time"

	recorddomain "github.com/smallbiznis/shelterbill/internal/record/domain"
	"gorm.io/gorm"
)

type ScanFilter struct {
	Start     time.Time
	End       time.Time
	SubjectID string
}

type Repository interface {
	// ScanRecords returns live records in [Start, End] ordered by service date then id.
	ScanRecords(ctx context.Context, db *gorm.DB, filter ScanFilter) ([]recorddomain.ServiceRecord, error)
}
