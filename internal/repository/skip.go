package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"example.com/backstage/services/skip/internal/db"
	"example.com/backstage/services/skip/internal/model"
)

// SkipRepository defines the interface for skip registry access
type SkipRepository interface {
	FindByCode(ctx context.Context, code string) (*model.Skip, error)
	FindByID(ctx context.Context, skipID string) (*model.Skip, error)
	EnsureByCode(ctx context.Context, code string, ownerOrgID *string) (*model.Skip, error)
	Create(ctx context.Context, skip *model.Skip) error
	UpdateState(ctx context.Context, skip *model.Skip, status model.SkipStatus, zoneID *string) error
}

// skipRepository implements SkipRepository
type skipRepository struct {
	db *gorm.DB
}

// NewSkipRepository creates a new skip repository
func NewSkipRepository(conn *gorm.DB) SkipRepository {
	return &skipRepository{db: conn}
}

// FindByCode finds a skip by its QR code
func (r *skipRepository) FindByCode(ctx context.Context, code string) (*model.Skip, error) {
	var skip model.Skip
	err := r.db.WithContext(ctx).Where("qr_code = ?", code).First(&skip).Error
	if err != nil {
		if db.IsRecordNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &skip, nil
}

// FindByID finds a skip by its skip id
func (r *skipRepository) FindByID(ctx context.Context, skipID string) (*model.Skip, error) {
	var skip model.Skip
	err := r.db.WithContext(ctx).Where("skip_id = ?", skipID).First(&skip).Error
	if err != nil {
		if db.IsRecordNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &skip, nil
}

// EnsureByCode returns the skip registered for a code, creating it in stock
// on first sighting. A duplicate-create race resolves to the existing row so
// re-scans never error.
func (r *skipRepository) EnsureByCode(ctx context.Context, code string, ownerOrgID *string) (*model.Skip, error) {
	skip, err := r.FindByCode(ctx, code)
	if err == nil {
		return skip, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	skip = &model.Skip{
		SkipID:     uuid.New().String(),
		QRCode:     code,
		OwnerOrgID: ownerOrgID,
		Status:     model.StatusInStock,
	}
	if err := r.Create(ctx, skip); err != nil {
		if db.IsDuplicateKeyError(err) {
			return r.FindByCode(ctx, code)
		}
		return nil, err
	}
	return skip, nil
}

// Create creates a new skip
func (r *skipRepository) Create(ctx context.Context, skip *model.Skip) error {
	return r.db.WithContext(ctx).Create(skip).Error
}

// UpdateState transitions the skip's status and zone under an optimistic
// lock_version guard. ErrStaleVersion means a concurrent command won.
func (r *skipRepository) UpdateState(ctx context.Context, skip *model.Skip, status model.SkipStatus, zoneID *string) error {
	res := r.db.WithContext(ctx).Model(&model.Skip{}).
		Where("skip_id = ? AND lock_version = ?", skip.SkipID, skip.LockVersion).
		Updates(map[string]interface{}{
			"status":       status,
			"zone_id":      zoneID,
			"lock_version": skip.LockVersion + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleVersion
	}

	skip.Status = status
	skip.ZoneID = zoneID
	skip.LockVersion++
	return nil
}
