package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"example.com/backstage/services/skip/internal/cache"
	"example.com/backstage/services/skip/internal/messaging"
	"example.com/backstage/services/skip/internal/model"
	"example.com/backstage/services/skip/internal/repository"
	"example.com/backstage/services/skip/internal/search"
)

// Operator identifies who executed a lifecycle command in the field
type Operator struct {
	DriverName string `json:"driver_name"`
	VehicleReg string `json:"vehicle_reg"`
}

// DestinationInput carries the transfer destination supplied with a
// collection. Absent fields fall back to the configured defaults.
type DestinationInput struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Address     string `json:"address"`
	SiteID      string `json:"site_id"`
	CommodityID string `json:"commodity_id"`
}

// TransferDefaults holds fallback destination metadata used when a
// collection request omits it
type TransferDefaults struct {
	DestinationName string
	DestinationType model.DestinationType
	SiteID          string
	CommodityID     string
	ProducerName    string
	CarrierCompany  string
}

// SkipSummary is the scan response for a skip
type SkipSummary struct {
	ID     string           `json:"id"`
	QRCode string           `json:"qr_code"`
	Status model.SkipStatus `json:"status"`
	ZoneID *string          `json:"zone_id"`
}

// CollectionResult bundles everything a collection produced
type CollectionResult struct {
	Movement *model.Movement          `json:"movement"`
	Weight   *model.Weight            `json:"weight"`
	Transfer *model.Transfer          `json:"transfer"`
	Note     *model.WasteTransferNote `json:"note"`
	Payload  WTNPayload               `json:"wtn"`
}

// LifecycleService is the state machine governing skip status. Every command
// runs in one database transaction: movement first, then placement close and
// open, then for collections weight, transfer and note. Commands against the
// same skip are serialized by the optimistic lock_version guard on the skip
// row; a loser retries once and then fails its status precondition.
type LifecycleService struct {
	db        *gorm.DB
	repos     *repository.Repositories
	cache     cache.Client
	indexer   search.Indexer
	publisher messaging.ServiceBusClient
	defaults  TransferDefaults
}

// NewLifecycleService creates a new lifecycle service
func NewLifecycleService(
	conn *gorm.DB,
	repos *repository.Repositories,
	cacheClient cache.Client,
	indexer search.Indexer,
	publisher messaging.ServiceBusClient,
	defaults TransferDefaults,
) *LifecycleService {
	return &LifecycleService{
		db:        conn,
		repos:     repos,
		cache:     cacheClient,
		indexer:   indexer,
		publisher: publisher,
		defaults:  defaults,
	}
}

// Scan resolves a QR code to a skip summary
func (s *LifecycleService) Scan(ctx context.Context, code string) (*SkipSummary, error) {
	if skip, err := s.cache.GetSkip(ctx, code); err == nil && skip != nil {
		return summarize(skip), nil
	}

	skip, err := s.repos.Skips.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Resource: "skip", Key: code}
		}
		return nil, &PersistenceError{Err: err}
	}

	if err := s.cache.SetSkip(ctx, skip); err != nil {
		log.Debug().Err(err).Str("qr_code", code).Msg("Failed to cache skip")
	}
	return summarize(skip), nil
}

// Ensure registers a skip for a code, returning the existing row on a
// re-scan of a known code
func (s *LifecycleService) Ensure(ctx context.Context, code string, ownerOrgID *string) (*model.Skip, error) {
	skip, err := s.repos.Skips.EnsureByCode(ctx, code, ownerOrgID)
	if err != nil {
		return nil, &PersistenceError{Err: err}
	}
	return skip, nil
}

// History returns the movement log for a skip
func (s *LifecycleService) History(ctx context.Context, code string) ([]model.Movement, error) {
	skip, err := s.repos.Skips.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Resource: "skip", Key: code}
		}
		return nil, &PersistenceError{Err: err}
	}

	movements, err := s.repos.Movements.ListBySkip(ctx, skip.SkipID)
	if err != nil {
		return nil, &PersistenceError{Err: err}
	}
	return movements, nil
}

// Note returns a stored waste transfer note by id
func (s *LifecycleService) Note(ctx context.Context, noteID string) (*model.WasteTransferNote, error) {
	note, err := s.repos.Notes.FindByID(ctx, noteID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Resource: "waste transfer note", Key: noteID}
		}
		return nil, &PersistenceError{Err: err}
	}
	return note, nil
}

// DeliverEmpty places an empty skip at a zone. Delivery is the idempotent
// entry point of the lifecycle and carries no status precondition.
func (s *LifecycleService) DeliverEmpty(ctx context.Context, code, toZoneID string, op Operator, note string) (*model.Movement, *model.Placement, error) {
	var movement *model.Movement
	var placement *model.Placement

	err := s.runCommand(ctx, code, func(ctx context.Context, repos *repository.Repositories, skip *model.Skip) error {
		when := time.Now().UTC()
		movement = newMovement(skip, model.DeliverEmpty, skip.ZoneID, &toZoneID, when, op, note)

		if err := repos.Movements.Create(ctx, movement); err != nil {
			return err
		}
		if err := repos.Placements.CloseActive(ctx, skip.SkipID, when); err != nil {
			return err
		}
		var err error
		if placement, err = repos.Placements.Open(ctx, skip.SkipID, &toZoneID, when); err != nil {
			return err
		}
		return repos.Skips.UpdateState(ctx, skip, model.StatusDeployed, &toZoneID)
	})
	if err != nil {
		return nil, nil, err
	}

	s.afterCommand(ctx, code, movement)
	return movement, placement, nil
}

// RelocateEmpty moves a deployed skip to another zone. A relocate to the
// zone the skip already occupies still closes and reopens the placement so
// the ledger stays a faithful interval log.
func (s *LifecycleService) RelocateEmpty(ctx context.Context, code, toZoneID string, op Operator, note string) (*model.Movement, *model.Placement, error) {
	var movement *model.Movement
	var placement *model.Placement

	err := s.runCommand(ctx, code, func(ctx context.Context, repos *repository.Repositories, skip *model.Skip) error {
		if skip.Status != model.StatusDeployed {
			return &PreconditionError{Command: model.RelocateEmpty, Required: "deployed", Actual: skip.Status}
		}

		when := time.Now().UTC()
		movement = newMovement(skip, model.RelocateEmpty, skip.ZoneID, &toZoneID, when, op, note)

		if err := repos.Movements.Create(ctx, movement); err != nil {
			return err
		}
		if err := repos.Placements.CloseActive(ctx, skip.SkipID, when); err != nil {
			return err
		}
		var err error
		if placement, err = repos.Placements.Open(ctx, skip.SkipID, &toZoneID, when); err != nil {
			return err
		}
		return repos.Skips.UpdateState(ctx, skip, model.StatusDeployed, &toZoneID)
	})
	if err != nil {
		return nil, nil, err
	}

	s.afterCommand(ctx, code, movement)
	return movement, placement, nil
}

// CollectFull collects a full skip from its zone, records the weighing and
// transfer, and issues the waste transfer note, all in one transaction.
func (s *LifecycleService) CollectFull(ctx context.Context, code string, dest DestinationInput, weight WeightInput, op Operator, note string) (*CollectionResult, error) {
	// Weight inputs are validated before the first write so a rejected
	// command leaves no movement behind.
	netKg, err := ComputeNet(weight.GrossKg, weight.TareKg, weight.NetKg)
	if err != nil {
		return nil, err
	}

	var result *CollectionResult

	err = s.runCommand(ctx, code, func(ctx context.Context, repos *repository.Repositories, skip *model.Skip) error {
		if skip.Status != model.StatusDeployed {
			return &PreconditionError{Command: model.CollectFull, Required: "deployed", Actual: skip.Status}
		}

		active, err := repos.Placements.Active(ctx, skip.SkipID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return &PreconditionError{Command: model.CollectFull, Required: "deployed on a site", Actual: skip.Status}
			}
			return err
		}

		when := time.Now().UTC()
		movement := newMovement(skip, model.CollectFull, &active.ZoneID, nil, when, op, note)

		if err := repos.Movements.Create(ctx, movement); err != nil {
			return err
		}
		if err := repos.Placements.CloseActive(ctx, skip.SkipID, when); err != nil {
			return err
		}
		if err := repos.Skips.UpdateState(ctx, skip, model.StatusInTransit, nil); err != nil {
			return err
		}

		w := &model.Weight{
			WeightID:   uuid.New().String(),
			MovementID: movement.MovementID,
			Source:     model.ParseWeightSource(weight.Source),
			GrossKg:    weight.GrossKg,
			TareKg:     weight.TareKg,
			NetKg:      netKg,
		}
		if err := repos.Weights.Create(ctx, w); err != nil {
			return err
		}

		transfer := s.newTransfer(movement.MovementID, dest)
		if err := repos.Transfers.Create(ctx, transfer); err != nil {
			return err
		}

		wtn := s.newNote(skip, transfer, netKg, op)
		payload := BuildWTNPayload(skip, movement, w, transfer, wtn, s.defaults.CarrierCompany)
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		wtn.Payload = raw
		if err := repos.Notes.Create(ctx, wtn); err != nil {
			return err
		}

		result = &CollectionResult{
			Movement: movement,
			Weight:   w,
			Transfer: transfer,
			Note:     wtn,
			Payload:  payload,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCommand(ctx, code, result.Movement)
	s.publishNote(ctx, result)
	return result, nil
}

// ReturnEmpty places an emptied skip back at a zone after processing
func (s *LifecycleService) ReturnEmpty(ctx context.Context, code, toZoneID string, op Operator, note string) (*model.Movement, *model.Placement, error) {
	var movement *model.Movement
	var placement *model.Placement

	err := s.runCommand(ctx, code, func(ctx context.Context, repos *repository.Repositories, skip *model.Skip) error {
		if skip.Status == model.StatusDeployed {
			return &PreconditionError{Command: model.ReturnEmpty, Required: "not deployed (already deployed)", Actual: skip.Status}
		}

		when := time.Now().UTC()
		movement = newMovement(skip, model.ReturnEmpty, skip.ZoneID, &toZoneID, when, op, note)

		if err := repos.Movements.Create(ctx, movement); err != nil {
			return err
		}
		if err := repos.Placements.CloseActive(ctx, skip.SkipID, when); err != nil {
			return err
		}
		var err error
		if placement, err = repos.Placements.Open(ctx, skip.SkipID, &toZoneID, when); err != nil {
			return err
		}
		return repos.Skips.UpdateState(ctx, skip, model.StatusDeployed, &toZoneID)
	})
	if err != nil {
		return nil, nil, err
	}

	s.afterCommand(ctx, code, movement)
	return movement, placement, nil
}

// runCommand executes one lifecycle command in a transaction, loading the
// skip fresh inside it. A stale lock_version aborts the transaction and the
// command restarts once from the top, where the precondition check sees the
// winner's final state.
func (s *LifecycleService) runCommand(ctx context.Context, code string, fn func(ctx context.Context, repos *repository.Repositories, skip *model.Skip) error) error {
	var lastErr error

	for attempt := 0; attempt < 2; attempt++ {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			repos := s.repos.WithTx(tx)

			skip, err := repos.Skips.FindByCode(ctx, code)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return &NotFoundError{Resource: "skip", Key: code}
				}
				return err
			}
			return fn(ctx, repos, skip)
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, repository.ErrStaleVersion) {
			lastErr = err
			continue
		}
		return classify(err)
	}

	return &PersistenceError{Err: lastErr}
}

// afterCommand performs the best-effort side work that follows a committed
// command: cache invalidation and search indexing. Failures are logged, not
// surfaced; the command has already committed.
func (s *LifecycleService) afterCommand(ctx context.Context, code string, movement *model.Movement) {
	if err := s.cache.DeleteSkip(ctx, code); err != nil {
		log.Warn().Err(err).Str("qr_code", code).Msg("Failed to invalidate skip cache")
	}

	doc, err := json.Marshal(map[string]interface{}{
		"movement_id":  movement.MovementID,
		"skip_id":      movement.SkipID,
		"qr_code":      code,
		"type":         movement.Type,
		"from_zone_id": movement.FromZoneID,
		"to_zone_id":   movement.ToZoneID,
		"when":         movement.When,
		"driver_name":  movement.DriverName,
		"vehicle_reg":  movement.VehicleReg,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to marshal movement document")
		return
	}
	if err := s.indexer.IndexDocument(ctx, movement.MovementID, doc); err != nil {
		log.Warn().Err(err).Str("movement_id", movement.MovementID).Msg("Failed to index movement")
	}
}

// publishNote hands the WTN payload to the document gateway queue
func (s *LifecycleService) publishNote(ctx context.Context, result *CollectionResult) {
	if err := s.publisher.SendMessage(ctx, result.Payload, result.Note.NoteID); err != nil {
		log.Warn().Err(err).Str("wtn_id", result.Note.NoteID).Msg("Failed to publish waste transfer note")
	}
}

func (s *LifecycleService) newTransfer(movementID string, dest DestinationInput) *model.Transfer {
	transfer := &model.Transfer{
		TransferID:         uuid.New().String(),
		MovementID:         movementID,
		DestinationType:    s.defaults.DestinationType,
		DestinationName:    s.defaults.DestinationName,
		DestinationAddress: dest.Address,
		SiteID:             s.defaults.SiteID,
		CommodityID:        s.defaults.CommodityID,
	}
	if dest.Type != "" {
		transfer.DestinationType = model.ParseDestinationType(dest.Type)
	}
	if dest.Name != "" {
		transfer.DestinationName = dest.Name
	}
	if dest.SiteID != "" {
		transfer.SiteID = dest.SiteID
	}
	if dest.CommodityID != "" {
		transfer.CommodityID = dest.CommodityID
	}
	return transfer
}

func (s *LifecycleService) newNote(skip *model.Skip, transfer *model.Transfer, netKg float64, op Operator) *model.WasteTransferNote {
	producer := s.defaults.ProducerName
	if producer == "" && skip.OwnerOrgID != nil {
		producer = *skip.OwnerOrgID
	}

	// The carrier on record is the operator who hauled the load; the
	// configured company name only fills the payload's transporter section
	// and stands in when no operator was supplied.
	carrier := op.DriverName
	if carrier == "" {
		carrier = s.defaults.CarrierCompany
	}

	note := &model.WasteTransferNote{
		NoteID:          uuid.New().String(),
		TransferID:      transfer.TransferID,
		QuantityKg:      netKg,
		ProducerName:    producer,
		CarrierName:     carrier,
		DestinationName: transfer.DestinationName,
	}
	note.Description = noteDescription(skip, transfer)
	return note
}

func newMovement(skip *model.Skip, movementType model.MovementType, fromZone, toZone *string, when time.Time, op Operator, note string) *model.Movement {
	return &model.Movement{
		MovementID: uuid.New().String(),
		SkipID:     skip.SkipID,
		Type:       movementType,
		FromZoneID: fromZone,
		ToZoneID:   toZone,
		When:       when,
		DriverName: op.DriverName,
		VehicleReg: op.VehicleReg,
		Note:       note,
	}
}

func summarize(skip *model.Skip) *SkipSummary {
	return &SkipSummary{
		ID:     skip.SkipID,
		QRCode: skip.QRCode,
		Status: skip.Status,
		ZoneID: skip.ZoneID,
	}
}

// classify keeps domain rejections typed and folds everything else into a
// PersistenceError, since past the first write only storage can fail.
func classify(err error) error {
	var nf *NotFoundError
	var pe *PreconditionError
	var ve *ValidationError
	if errors.As(err, &nf) || errors.As(err, &pe) || errors.As(err, &ve) {
		return err
	}
	return &PersistenceError{Err: err}
}
