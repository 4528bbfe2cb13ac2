package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/shelterbill/pkg/db/pagination"
)

type Service interface {
	CreateRecord(ctx context.Context, req CreateRecordRequest) (*Response, error)
	UpdateNonBillingFields(ctx context.Context, id string, req UpdateRecordRequest) (*Response, error)
	Delete(ctx context.Context, id string) error
	GetRecord(ctx context.Context, id string) (*Response, error)
	ListRecords(ctx context.Context, req ListRecordsRequest) (*ListRecordsResponse, error)
}

type CreateRecordRequest struct {
	SubjectID      string          `json:"subject_id"`
	ServiceDate    string          `json:"service_date"`
	ActionName     string          `json:"action_name"`
	Quantity       decimal.Decimal `json:"quantity"`
	Symptoms       string          `json:"symptoms"`
	Notes          string          `json:"notes"`
	Metadata       map[string]any  `json:"metadata"`
	IdempotencyKey string          `json:"-"`
}

// UpdateRecordRequest lists the editable fields; nil leaves a field unchanged.
type UpdateRecordRequest struct {
	Symptoms *string        `json:"symptoms"`
	Notes    *string        `json:"notes"`
	Metadata map[string]any `json:"metadata"`
}

type ListRecordsRequest struct {
	SubjectID string `form:"subject_id"`
	From      string `form:"from"`
	To        string `form:"to"`
	pagination.Pagination
}

type BillingResponse struct {
	ResolvedVersionID string `json:"resolved_version_id"`
	UnitPrice         string `json:"unit_price"`
	ProcedureFee      string `json:"procedure_fee"`
	Currency          string `json:"currency"`
	Unit              string `json:"unit,omitempty"`
	ComputedAmount    string `json:"computed_amount"`
	ComputedMinor     int64  `json:"computed_amount_minor"`
}

type Response struct {
	ID          string          `json:"id"`
	SubjectID   string          `json:"subject_id"`
	ServiceDate string          `json:"service_date"`
	ActionCode  string          `json:"action_code"`
	ActionName  string          `json:"action_name"`
	Quantity    string          `json:"quantity"`
	Symptoms    string          `json:"symptoms,omitempty"`
	Notes       string          `json:"notes,omitempty"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
	Billing     BillingResponse `json:"billing"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type ListRecordsResponse struct {
	Records  []Response           `json:"records"`
	PageInfo *pagination.PageInfo `json:"page_info"`
}

var (
	ErrInvalidID              = errors.New("invalid_id")
	ErrInvalidSubject         = errors.New("invalid_subject")
	ErrInvalidServiceDate     = errors.New("invalid_service_date")
	ErrInvalidQuantity        = errors.New("invalid_quantity")
	ErrInvalidRange           = errors.New("invalid_range")
	ErrNotFound               = errors.New("not_found")
	ErrBillingFieldsImmutable = errors.New("billing_fields_immutable")
	ErrIdempotencyKeyReused   = errors.New("idempotency_key_reused")
)
