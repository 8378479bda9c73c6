package model

import (
	"time"

	"gorm.io/gorm"
)

// SkipStatus defines the lifecycle status of a skip
type SkipStatus string

const (
	// StatusInStock represents a skip held in stock, not placed anywhere
	StatusInStock SkipStatus = "in_stock"
	// StatusDeployed represents a skip placed at a zone
	StatusDeployed SkipStatus = "deployed"
	// StatusInTransit represents a collected skip en route to processing
	StatusInTransit SkipStatus = "in_transit"
	// StatusProcessing is reserved for the disposal workflow
	StatusProcessing SkipStatus = "processing"
)

// MovementType defines the type of lifecycle movement
type MovementType string

const (
	// DeliverEmpty records an empty skip delivered to a zone
	DeliverEmpty MovementType = "deliver_empty"
	// RelocateEmpty records an empty skip moved between zones
	RelocateEmpty MovementType = "relocate_empty"
	// CollectFull records a full skip collected from a zone
	CollectFull MovementType = "collect_full"
	// ReturnEmpty records an emptied skip returned to a zone
	ReturnEmpty MovementType = "return_empty"
)

// WeightSource defines where a collection weight reading came from
type WeightSource string

const (
	SourceLoadCell    WeightSource = "load_cell"
	SourceWeighbridge WeightSource = "weighbridge"
	SourceEstimate    WeightSource = "estimate"
)

// DestinationType defines the kind of facility waste is transferred to
type DestinationType string

const (
	DestinationRecycling       DestinationType = "recycling"
	DestinationLandfill        DestinationType = "landfill"
	DestinationSortation       DestinationType = "sortation"
	DestinationTransferStation DestinationType = "transfer_station"
	DestinationHazardous       DestinationType = "hazardous"
)

// Skip represents a waste container tracked by its QR code.
// Status, zone and lock_version are mutated only by the lifecycle service.
type Skip struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	SkipID      string         `gorm:"uniqueIndex" json:"skip_id"`
	QRCode      string         `gorm:"column:qr_code;uniqueIndex" json:"qr_code"`
	OwnerOrgID  *string        `json:"owner_org_id"`
	ZoneID      *string        `json:"zone_id"`
	Status      SkipStatus     `json:"status"`
	LockVersion int64          `json:"lock_version"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at"`
}

// Movement represents one executed lifecycle command. Rows are append-only:
// they are never updated or deleted, and the monotonic id breaks timestamp
// ties when reconstructing history.
type Movement struct {
	ID         uint         `gorm:"primaryKey" json:"id"`
	MovementID string       `gorm:"uniqueIndex" json:"movement_id"`
	SkipID     string       `gorm:"index" json:"skip_id"`
	Type       MovementType `json:"type"`
	FromZoneID *string      `json:"from_zone_id"`
	ToZoneID   *string      `json:"to_zone_id"`
	When       time.Time    `gorm:"index" json:"when"`
	DriverName string       `json:"driver_name"`
	VehicleReg string       `json:"vehicle_reg"`
	Note       string       `json:"note"`
	CreatedAt  time.Time    `json:"created_at"`
}

// Placement represents an interval during which a skip occupies a zone.
// Invariant: at most one placement per skip has a null removed_at.
type Placement struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	PlacementID string     `gorm:"uniqueIndex" json:"placement_id"`
	SkipID      string     `gorm:"index" json:"skip_id"`
	ZoneID      string     `json:"zone_id"`
	PlacedAt    time.Time  `json:"placed_at"`
	RemovedAt   *time.Time `gorm:"index" json:"removed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Weight records the weighing of one collection movement. NetKg is always
// populated at creation and never negative.
type Weight struct {
	ID         uint         `gorm:"primaryKey" json:"id"`
	WeightID   string       `gorm:"uniqueIndex" json:"weight_id"`
	MovementID string       `gorm:"uniqueIndex" json:"movement_id"`
	Source     WeightSource `json:"source"`
	GrossKg    *float64     `json:"gross_kg"`
	TareKg     *float64     `json:"tare_kg"`
	NetKg      float64      `json:"net_kg"`
	CreatedAt  time.Time    `json:"created_at"`
}

// Transfer records the destination of one collection movement.
type Transfer struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	TransferID         string          `gorm:"uniqueIndex" json:"transfer_id"`
	MovementID         string          `gorm:"uniqueIndex" json:"movement_id"`
	DestinationType    DestinationType `json:"destination_type"`
	DestinationName    string          `json:"destination_name"`
	DestinationAddress string          `json:"destination_address"`
	SiteID             string          `json:"site_id"`
	CommodityID        string          `json:"commodity_id"`
	CreatedAt          time.Time       `json:"created_at"`
}

// WasteTransferNote is the regulatory record for one transfer. One note per
// transfer, immutable once created. Payload keeps the full render context so
// the document gateway contract survives schema changes.
type WasteTransferNote struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	NoteID          string    `gorm:"uniqueIndex" json:"note_id"`
	TransferID      string    `gorm:"uniqueIndex" json:"transfer_id"`
	Description     string    `json:"description"`
	QuantityKg      float64   `json:"quantity_kg"`
	ProducerName    string    `json:"producer_name"`
	CarrierName     string    `json:"carrier_name"`
	DestinationName string    `json:"destination_name"`
	Payload         []byte    `gorm:"type:jsonb" json:"payload"`
	CreatedAt       time.Time `json:"created_at"`
}

// ParseWeightSource converts a string to a WeightSource
func ParseWeightSource(s string) WeightSource {
	switch s {
	case "load_cell":
		return SourceLoadCell
	case "weighbridge":
		return SourceWeighbridge
	case "estimate":
		return SourceEstimate
	default:
		return SourceWeighbridge
	}
}

// ParseDestinationType converts a string to a DestinationType
func ParseDestinationType(s string) DestinationType {
	switch s {
	case "recycling":
		return DestinationRecycling
	case "landfill":
		return DestinationLandfill
	case "sortation":
		return DestinationSortation
	case "transfer_station":
		return DestinationTransferStation
	case "hazardous":
		return DestinationHazardous
	default:
		return DestinationRecycling
	}
}

// String returns a string representation of SkipStatus
func (s SkipStatus) String() string {
	return string(s)
}

// String returns a string representation of MovementType
func (t MovementType) String() string {
	return string(t)
}
