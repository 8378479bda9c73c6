package service

import (
	"fmt"
	"time"

	"example.com/backstage/services/skip/internal/model"
)

// WTNPayload is the structured content of a waste transfer note. Its three
// sections mirror the parts of the printed form (originator, transporter,
// receiver) and the shape is the external contract consumed by the document
// gateway; field changes here are breaking changes for the renderer.
type WTNPayload struct {
	NoteID      string         `json:"wtn_id"`
	Description string         `json:"description"`
	Originator  WTNOriginator  `json:"originator"`
	Transporter WTNTransporter `json:"transporter"`
	Receiver    WTNReceiver    `json:"receiver"`
}

// WTNOriginator is part 1: who produced the waste and where it was loaded
type WTNOriginator struct {
	QuantityKg  float64 `json:"quantity_kg"`
	WasteType   string  `json:"waste_type"`
	LoadedAt    string  `json:"loaded_at"`
	Location    string  `json:"location"`
	Destination string  `json:"destination"`
	Name        string  `json:"name"`
}

// WTNTransporter is part 2: who carries the waste and with what vehicle
type WTNTransporter struct {
	Destination string `json:"destination"`
	CompanyName string `json:"company_name"`
	Name        string `json:"name"`
	VehicleReg  string `json:"vehicle_reg"`
}

// WTNReceiver is part 3: the approved location accepting the waste
type WTNReceiver struct {
	QuantityKg float64 `json:"quantity_kg"`
	Location   string  `json:"location"`
	Name       string  `json:"name"`
}

// BuildWTNPayload assembles the note payload from the collection records.
// company is the carrier's company name and may be empty.
func BuildWTNPayload(skip *model.Skip, movement *model.Movement, weight *model.Weight, transfer *model.Transfer, note *model.WasteTransferNote, company string) WTNPayload {
	fromZone := ""
	if movement.FromZoneID != nil {
		fromZone = *movement.FromZoneID
	}

	return WTNPayload{
		NoteID:      note.NoteID,
		Description: note.Description,
		Originator: WTNOriginator{
			QuantityKg:  weight.NetKg,
			WasteType:   transfer.CommodityID,
			LoadedAt:    movement.When.UTC().Format(time.RFC3339),
			Location:    fromZone,
			Destination: transfer.DestinationName,
			Name:        note.ProducerName,
		},
		Transporter: WTNTransporter{
			Destination: transfer.DestinationName,
			CompanyName: company,
			Name:        movement.DriverName,
			VehicleReg:  movement.VehicleReg,
		},
		Receiver: WTNReceiver{
			QuantityKg: weight.NetKg,
			Location:   transfer.DestinationAddress,
			Name:       transfer.DestinationName,
		},
	}
}

func noteDescription(skip *model.Skip, transfer *model.Transfer) string {
	return fmt.Sprintf("Collection of skip %s to %s", skip.QRCode, transfer.DestinationName)
}
