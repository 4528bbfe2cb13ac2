package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Service interface {
	AddVersion(ctx context.Context, req AddVersionRequest) (*VersionResponse, error)
	CloseOpenVersion(ctx context.Context, req CloseVersionRequest) (*VersionResponse, error)
	Resolve(ctx context.Context, actionName string, onDate time.Time) (*VersionResponse, error)
	ListActiveOn(ctx context.Context, onDate time.Time) ([]VersionResponse, error)
	ListVersions(ctx context.Context, actionName string) ([]VersionResponse, error)
	GetVersion(ctx context.Context, id string) (*VersionResponse, error)
	RemoveVersion(ctx context.Context, id string) error
}

// Resolver looks up the version in effect on a date using the caller's
// transaction, so the read commits or rolls back with the caller's writes.
type Resolver interface {
	ResolveTx(ctx context.Context, tx *gorm.DB, actionName string, onDate time.Time) (*ActionVersion, error)
}

type AddVersionRequest struct {
	ActionName   string          `json:"action_name"`
	ValidFrom    string          `json:"valid_from"`
	ValidTo      *string         `json:"valid_to"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	ProcedureFee decimal.Decimal `json:"procedure_fee"`
	Currency     string          `json:"currency"`
	Unit         string          `json:"unit"`
}

type CloseVersionRequest struct {
	ActionName string `json:"action_name"`
	ValidTo    string `json:"valid_to"`
}

type VersionResponse struct {
	ID           string    `json:"id"`
	ActionCode   string    `json:"action_code"`
	ActionName   string    `json:"action_name"`
	ValidFrom    string    `json:"valid_from"`
	ValidTo      *string   `json:"valid_to"`
	CostPrice    string    `json:"cost_price"`
	SellingPrice string    `json:"selling_price"`
	ProcedureFee string    `json:"procedure_fee"`
	Currency     string    `json:"currency"`
	Unit         string    `json:"unit,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
