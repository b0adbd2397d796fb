package postgres

import (
	"context"
	"errors"
	"fmt"

	"ride-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CollectionPointRepo implements ports.CollectionPointRepository.
type CollectionPointRepo struct {
	pool Pool
}

// NewCollectionPointRepo creates a new CollectionPointRepo.
func NewCollectionPointRepo(pool Pool) *CollectionPointRepo {
	return &CollectionPointRepo{pool: pool}
}

// GetByID fetches a collection point.
func (r *CollectionPointRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.CollectionPoint, error) {
	p := &domain.CollectionPoint{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, active, created_at FROM collection_points WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Active, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get collection point: %w", err)
	}
	return p, nil
}
