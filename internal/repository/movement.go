package repository

import (
	"context"

	"gorm.io/gorm"

	"example.com/backstage/services/skip/internal/db"
	"example.com/backstage/services/skip/internal/model"
)

// MovementRepository defines the interface for the append-only movement log.
// No update or delete is ever issued against this table; it is the canonical
// audit trail.
type MovementRepository interface {
	Create(ctx context.Context, movement *model.Movement) error
	FindByID(ctx context.Context, movementID string) (*model.Movement, error)
	ListBySkip(ctx context.Context, skipID string) ([]model.Movement, error)
}

// movementRepository implements MovementRepository
type movementRepository struct {
	db *gorm.DB
}

// NewMovementRepository creates a new movement repository
func NewMovementRepository(conn *gorm.DB) MovementRepository {
	return &movementRepository{db: conn}
}

// Create appends a movement record
func (r *movementRepository) Create(ctx context.Context, movement *model.Movement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

// FindByID finds a movement by its movement id
func (r *movementRepository) FindByID(ctx context.Context, movementID string) (*model.Movement, error) {
	var movement model.Movement
	err := r.db.WithContext(ctx).Where("movement_id = ?", movementID).First(&movement).Error
	if err != nil {
		if db.IsRecordNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &movement, nil
}

// ListBySkip returns a skip's movement history ordered by timestamp, with
// the monotonic row id breaking ties.
func (r *movementRepository) ListBySkip(ctx context.Context, skipID string) ([]model.Movement, error) {
	var movements []model.Movement
	err := r.db.WithContext(ctx).
		Where("skip_id = ?", skipID).
		Order(`"when" ASC, id ASC`).
		Find(&movements).Error
	return movements, err
}
