package repository

import "gorm.io/gorm"

// Repositories bundles the data access layer. Lifecycle commands rebind the
// bundle to a transaction handle so every write in a command shares one
// transaction.
type Repositories struct {
	Skips      SkipRepository
	Placements PlacementRepository
	Movements  MovementRepository
	Weights    WeightRepository
	Transfers  TransferRepository
	Notes      NoteRepository
}

// New creates a repository bundle over a database handle
func New(conn *gorm.DB) *Repositories {
	return &Repositories{
		Skips:      NewSkipRepository(conn),
		Placements: NewPlacementRepository(conn),
		Movements:  NewMovementRepository(conn),
		Weights:    NewWeightRepository(conn),
		Transfers:  NewTransferRepository(conn),
		Notes:      NewNoteRepository(conn),
	}
}

// WithTx rebinds the bundle to a transaction handle
func (r *Repositories) WithTx(tx *gorm.DB) *Repositories {
	return New(tx)
}
