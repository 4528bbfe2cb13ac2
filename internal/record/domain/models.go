package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/smallbiznis/shelterbill/internal/billing/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ServiceRecord is one medical action performed on a subject. The action is
// referenced by code; the price lives in the embedded snapshot.
type ServiceRecord struct {
	ID             snowflake.ID                  `json:"id" gorm:"primaryKey"`
	SubjectID      string                        `json:"subject_id" gorm:"type:varchar(191);not null;index:ix_service_records_subject_date,priority:1"`
	ServiceDate    time.Time                     `json:"service_date" gorm:"type:date;not null;index:ix_service_records_subject_date,priority:2;index:ix_service_records_service_date"`
	ActionCode     string                        `json:"action_code" gorm:"type:varchar(191);not null;index"`
	ActionName     string                        `json:"action_name" gorm:"type:varchar(255);not null"`
	Quantity       int64                         `json:"quantity" gorm:"not null"`
	Symptoms       string                        `json:"symptoms" gorm:"type:text"`
	Notes          string                        `json:"notes" gorm:"type:text"`
	Metadata       datatypes.JSONMap             `json:"metadata,omitempty"`
	IdempotencyKey *string                       `json:"idempotency_key,omitempty" gorm:"type:varchar(191);uniqueIndex:ux_service_records_idempotency_key"`
	Billing        billingdomain.BillingSnapshot `json:"billing" gorm:"embedded;embeddedPrefix:billing_"`
	CreatedAt      time.Time                     `json:"created_at" gorm:"not null"`
	UpdatedAt      time.Time                     `json:"updated_at" gorm:"not null"`
	DeletedAt      gorm.DeletedAt                `json:"-" gorm:"index"`
}

func (ServiceRecord) TableName() string { return "service_records" }
