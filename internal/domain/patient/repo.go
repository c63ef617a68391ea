package patient

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("patient not found")
	// ErrValidation marks a record rejected before it reaches the store.
	ErrValidation = errors.New("invalid patient")
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id string) (*Patient, error)
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
	ListByCase(ctx context.Context, caseID string) ([]*Patient, error)
}
