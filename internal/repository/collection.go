package repository

import (
	"context"

	"gorm.io/gorm"

	"example.com/backstage/services/skip/internal/db"
	"example.com/backstage/services/skip/internal/model"
)

// WeightRepository defines the interface for collection weights
type WeightRepository interface {
	Create(ctx context.Context, weight *model.Weight) error
	FindByMovement(ctx context.Context, movementID string) (*model.Weight, error)
}

// TransferRepository defines the interface for collection transfers
type TransferRepository interface {
	Create(ctx context.Context, transfer *model.Transfer) error
	FindByMovement(ctx context.Context, movementID string) (*model.Transfer, error)
}

// NoteRepository defines the interface for waste transfer notes
type NoteRepository interface {
	Create(ctx context.Context, note *model.WasteTransferNote) error
	FindByID(ctx context.Context, noteID string) (*model.WasteTransferNote, error)
	FindByTransfer(ctx context.Context, transferID string) (*model.WasteTransferNote, error)
}

type weightRepository struct {
	db *gorm.DB
}

// NewWeightRepository creates a new weight repository
func NewWeightRepository(conn *gorm.DB) WeightRepository {
	return &weightRepository{db: conn}
}

func (r *weightRepository) Create(ctx context.Context, weight *model.Weight) error {
	return r.db.WithContext(ctx).Create(weight).Error
}

func (r *weightRepository) FindByMovement(ctx context.Context, movementID string) (*model.Weight, error) {
	var weight model.Weight
	err := r.db.WithContext(ctx).Where("movement_id = ?", movementID).First(&weight).Error
	if err != nil {
		if db.IsRecordNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &weight, nil
}

type transferRepository struct {
	db *gorm.DB
}

// NewTransferRepository creates a new transfer repository
func NewTransferRepository(conn *gorm.DB) TransferRepository {
	return &transferRepository{db: conn}
}

func (r *transferRepository) Create(ctx context.Context, transfer *model.Transfer) error {
	return r.db.WithContext(ctx).Create(transfer).Error
}

func (r *transferRepository) FindByMovement(ctx context.Context, movementID string) (*model.Transfer, error) {
	var transfer model.Transfer
	err := r.db.WithContext(ctx).Where("movement_id = ?", movementID).First(&transfer).Error
	if err != nil {
		if db.IsRecordNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &transfer, nil
}

type noteRepository struct {
	db *gorm.DB
}

// NewNoteRepository creates a new waste transfer note repository
func NewNoteRepository(conn *gorm.DB) NoteRepository {
	return &noteRepository{db: conn}
}

func (r *noteRepository) Create(ctx context.Context, note *model.WasteTransferNote) error {
	return r.db.WithContext(ctx).Create(note).Error
}

func (r *noteRepository) FindByID(ctx context.Context, noteID string) (*model.WasteTransferNote, error) {
	var note model.WasteTransferNote
	err := r.db.WithContext(ctx).Where("note_id = ?", noteID).First(&note).Error
	if err != nil {
		if db.IsRecordNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &note, nil
}

func (r *noteRepository) FindByTransfer(ctx context.Context, transferID string) (*model.WasteTransferNote, error) {
	var note model.WasteTransferNote
	err := r.db.WithContext(ctx).Where("transfer_id = ?", transferID).First(&note).Error
	if err != nil {
		if db.IsRecordNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &note, nil
}
