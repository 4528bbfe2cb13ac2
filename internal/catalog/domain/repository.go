package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// EnsureAction inserts the action row when missing and leaves existing rows untouched.
	EnsureAction(ctx context.Context, db *gorm.DB, action *BillableAction) error
	FindActionByCode(ctx context.Context, db *gorm.DB, code string) (*BillableAction, error)
	// LockActionByCode loads the action row FOR UPDATE.
	LockActionByCode(ctx context.Context, db *gorm.DB, code string) (*BillableAction, error)
	// ShareLockActionByCode loads the action row FOR SHARE so writers wait for the caller's commit.
	ShareLockActionByCode(ctx context.Context, db *gorm.DB, code string) (*BillableAction, error)

	InsertVersion(ctx context.Context, db *gorm.DB, version *ActionVersion) error
	FindVersionByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ActionVersion, error)
	ListVersions(ctx context.Context, db *gorm.DB, code string) ([]ActionVersion, error)
	ListCoveringOn(ctx context.Context, db *gorm.DB, day time.Time) ([]ActionVersion, error)
	CloseVersion(ctx context.Context, db *gorm.DB, id snowflake.ID, validTo time.Time, updatedAt time.Time) error
	DeleteVersion(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	// CountSnapshotReferences counts service records, deleted ones included, whose snapshot came from id.
	CountSnapshotReferences(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
}
