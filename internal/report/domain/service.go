package domain

import "context"

type Service interface {
	Generate(ctx context.Context, req Request) (*Result, error)
	Export(ctx context.Context, req Request) (*Export, error)
}
