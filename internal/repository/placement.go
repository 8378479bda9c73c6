package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"example.com/backstage/services/skip/internal/db"
	"example.com/backstage/services/skip/internal/model"
)

// PlacementRepository defines the interface for the placement ledger
type PlacementRepository interface {
	Active(ctx context.Context, skipID string) (*model.Placement, error)
	CloseActive(ctx context.Context, skipID string, when time.Time) error
	Open(ctx context.Context, skipID string, zoneID *string, when time.Time) (*model.Placement, error)
	CountOpen(ctx context.Context, skipID string) (int64, error)
	ListBySkip(ctx context.Context, skipID string) ([]model.Placement, error)
}

// placementRepository implements PlacementRepository
type placementRepository struct {
	db *gorm.DB
}

// NewPlacementRepository creates a new placement repository
func NewPlacementRepository(conn *gorm.DB) PlacementRepository {
	return &placementRepository{db: conn}
}

// Active returns the open placement for a skip, or ErrNotFound if none
func (r *placementRepository) Active(ctx context.Context, skipID string) (*model.Placement, error) {
	var placement model.Placement
	err := r.db.WithContext(ctx).
		Where("skip_id = ? AND removed_at IS NULL", skipID).
		Order("placed_at DESC").
		First(&placement).Error
	if err != nil {
		if db.IsRecordNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &placement, nil
}

// CloseActive closes any open placement for a skip. Closing a skip with no
// open placement is a no-op, so the call is idempotent.
func (r *placementRepository) CloseActive(ctx context.Context, skipID string, when time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Placement{}).
		Where("skip_id = ? AND removed_at IS NULL", skipID).
		Update("removed_at", when).Error
}

// Open inserts a new open placement. A nil zone is a no-op: a collection
// clears the skip's location and leaves nothing open.
func (r *placementRepository) Open(ctx context.Context, skipID string, zoneID *string, when time.Time) (*model.Placement, error) {
	if zoneID == nil {
		return nil, nil
	}

	placement := &model.Placement{
		PlacementID: uuid.New().String(),
		SkipID:      skipID,
		ZoneID:      *zoneID,
		PlacedAt:    when,
	}
	if err := r.db.WithContext(ctx).Create(placement).Error; err != nil {
		return nil, err
	}
	return placement, nil
}

// CountOpen counts open placements for a skip
func (r *placementRepository) CountOpen(ctx context.Context, skipID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Placement{}).
		Where("skip_id = ? AND removed_at IS NULL", skipID).
		Count(&count).Error
	return count, err
}

// ListBySkip returns the full placement interval history for a skip
func (r *placementRepository) ListBySkip(ctx context.Context, skipID string) ([]model.Placement, error) {
	var placements []model.Placement
	err := r.db.WithContext(ctx).
		Where("skip_id = ?", skipID).
		Order("placed_at ASC, id ASC").
		Find(&placements).Error
	return placements, err
}
