package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// ListFilter narrows a record listing. Zero values mean "no constraint".
type ListFilter struct {
	SubjectID string
	From      *time.Time
	To        *time.Time
	AfterID   snowflake.ID
	Limit     int
}

// NonBillingUpdate carries the only columns a record may change after creation.
type NonBillingUpdate struct {
	Symptoms  *string
	Notes     *string
	Metadata  map[string]any
	UpdatedAt time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *ServiceRecord) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ServiceRecord, error)
	FindByIdempotencyKey(ctx context.Context, db *gorm.DB, key string) (*ServiceRecord, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*ServiceRecord, error)
	UpdateNonBilling(ctx context.Context, db *gorm.DB, id snowflake.ID, update NonBillingUpdate) error
	SoftDelete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
}
