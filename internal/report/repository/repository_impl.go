package repository

import (
	"context"

	recorddomain "github.com/smallbiznis/shelterbill/internal/record/domain"
	reportdomain "github.com/smallbiznis/shelterbill/internal/report/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() reportdomain.Repository {
	return &repo{}
}

func (r *repo) ScanRecords(ctx context.Context, db *gorm.DB, filter reportdomain.ScanFilter) ([]recorddomain.ServiceRecord, error) {
	var items []recorddomain.ServiceRecord
	stmt := db.WithContext(ctx).
		Model(&recorddomain.ServiceRecord{}).
		Where("service_date >= ? AND service_date <= ?", filter.Start, filter.End)
	if filter.SubjectID != "" {
		stmt = stmt.Where("subject_id = ?", filter.SubjectID)
	}
	if err := stmt.Order("service_date ASC").Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
