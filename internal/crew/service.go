package crew

import (
	"context"
	"fmt"

	"github.com/sealine-erp/sealine-erp/internal/shared"
)

// Service handles seafarer record rules.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// List returns a page of seafarer records.
func (s *Service) List(ctx context.Context, page, perPage int, search string) ([]Seafarer, shared.Pagination, error) {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * perPage
	records, total, err := s.repo.List(ctx, perPage, offset, search)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return records, shared.NewPagination(page, perPage, total), nil
}

// Get returns one seafarer record.
func (s *Service) Get(ctx context.Context, id int64) (Seafarer, error) {
	return s.repo.Get(ctx, id)
}

// Create registers a new seafarer.
func (s *Service) Create(ctx context.Context, input Seafarer) (Seafarer, error) {
	if input.FullName == "" || input.Rank == "" {
		return Seafarer{}, fmt.Errorf("%w: full name and rank are required", ErrValidation)
	}
	id, err := s.repo.Insert(ctx, input)
	if err != nil {
		return Seafarer{}, err
	}
	return s.repo.Get(ctx, id)
}

// Update rewrites a seafarer record.
func (s *Service) Update(ctx context.Context, input Seafarer) (Seafarer, error) {
	if input.FullName == "" || input.Rank == "" {
		return Seafarer{}, fmt.Errorf("%w: full name and rank are required", ErrValidation)
	}
	if err := s.repo.Update(ctx, input); err != nil {
		return Seafarer{}, err
	}
	return s.repo.Get(ctx, input.ID)
}
