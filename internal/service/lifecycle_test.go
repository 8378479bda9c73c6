package service

import (
	"context"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"example.com/backstage/services/skip/config"
	"example.com/backstage/services/skip/internal/cache"
	"example.com/backstage/services/skip/internal/db"
	"example.com/backstage/services/skip/internal/messaging"
	"example.com/backstage/services/skip/internal/model"
	"example.com/backstage/services/skip/internal/repository"
	"example.com/backstage/services/skip/internal/search"
)

func newTestService(t *testing.T) (*LifecycleService, *repository.Repositories) {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	// One connection keeps the in-memory database shared across the pool
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Migrate(conn))

	repos := repository.New(conn)

	indexer, err := search.NewIndexer(config.Config{})
	require.NoError(t, err)
	publisher, err := messaging.NewServiceBusClient(config.Config{}, "test")
	require.NoError(t, err)

	svc := NewLifecycleService(conn, repos, cache.NewDisabledClient(), indexer, publisher, TransferDefaults{
		DestinationName: "ECO MRF",
		DestinationType: model.DestinationRecycling,
		SiteID:          "SITE-DEV",
		CommodityID:     "COM-DEV",
		CarrierCompany:  "Haulage Ltd",
	})
	return svc, repos
}

func deployed(t *testing.T, svc *LifecycleService, code, zone string) {
	t.Helper()
	_, err := svc.Ensure(context.Background(), code, nil)
	require.NoError(t, err)
	_, _, err = svc.DeliverEmpty(context.Background(), code, zone, Operator{DriverName: "pat"}, "")
	require.NoError(t, err)
}

func TestDeliverEmptyDeploysSkip(t *testing.T) {
	svc, repos := newTestService(t)
	ctx := context.Background()

	_, err := svc.Ensure(ctx, "QR-1", nil)
	require.NoError(t, err)

	movement, placement, err := svc.DeliverEmpty(ctx, "QR-1", "zone-a", Operator{DriverName: "pat", VehicleReg: "KAA 123"}, "first drop")
	require.NoError(t, err)
	require.Equal(t, model.DeliverEmpty, movement.Type)
	require.Equal(t, "zone-a", *movement.ToZoneID)
	require.Nil(t, movement.FromZoneID)

	skip, err := repos.Skips.FindByCode(ctx, "QR-1")
	require.NoError(t, err)
	require.Equal(t, model.StatusDeployed, skip.Status)
	require.Equal(t, "zone-a", *skip.ZoneID)

	active, err := repos.Placements.Active(ctx, skip.SkipID)
	require.NoError(t, err)
	require.Equal(t, "zone-a", active.ZoneID)
	require.Equal(t, placement.PlacementID, active.PlacementID)
}

func TestDeliverEmptyUnknownCode(t *testing.T) {
	svc, _ := newTestService(t)

	_, _, err := svc.DeliverEmpty(context.Background(), "QR-missing", "zone-a", Operator{}, "")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestRelocateEmptyMovesPlacement(t *testing.T) {
	svc, repos := newTestService(t)
	ctx := context.Background()
	deployed(t, svc, "QR-2", "zone-a")

	movement, _, err := svc.RelocateEmpty(ctx, "QR-2", "zone-b", Operator{DriverName: "pat"}, "")
	require.NoError(t, err)
	require.Equal(t, "zone-a", *movement.FromZoneID)
	require.Equal(t, "zone-b", *movement.ToZoneID)

	skip, err := repos.Skips.FindByCode(ctx, "QR-2")
	require.NoError(t, err)
	require.Equal(t, model.StatusDeployed, skip.Status)
	require.Equal(t, "zone-b", *skip.ZoneID)

	// The old interval is closed, the new one open
	placements, err := repos.Placements.ListBySkip(ctx, skip.SkipID)
	require.NoError(t, err)
	require.Len(t, placements, 2)
	require.NotNil(t, placements[0].RemovedAt)
	require.Nil(t, placements[1].RemovedAt)

	open, err := repos.Placements.CountOpen(ctx, skip.SkipID)
	require.NoError(t, err)
	require.EqualValues(t, 1, open)
}

func TestRelocateEmptySameZoneClosesAndReopens(t *testing.T) {
	svc, repos := newTestService(t)
	ctx := context.Background()
	deployed(t, svc, "QR-2b", "zone-a")

	// Relocating to the zone already occupied still closes the interval
	// and opens a fresh one
	movement, _, err := svc.RelocateEmpty(ctx, "QR-2b", "zone-a", Operator{DriverName: "pat"}, "")
	require.NoError(t, err)
	require.Equal(t, "zone-a", *movement.FromZoneID)
	require.Equal(t, "zone-a", *movement.ToZoneID)

	skip, err := repos.Skips.FindByCode(ctx, "QR-2b")
	require.NoError(t, err)

	placements, err := repos.Placements.ListBySkip(ctx, skip.SkipID)
	require.NoError(t, err)
	require.Len(t, placements, 2)
	require.NotNil(t, placements[0].RemovedAt)
	require.Nil(t, placements[1].RemovedAt)
	require.Equal(t, "zone-a", placements[1].ZoneID)

	open, err := repos.Placements.CountOpen(ctx, skip.SkipID)
	require.NoError(t, err)
	require.EqualValues(t, 1, open)
}

func TestRelocateEmptyRequiresDeployed(t *testing.T) {
	svc, repos := newTestService(t)
	ctx := context.Background()

	skip, err := svc.Ensure(ctx, "QR-3", nil)
	require.NoError(t, err)

	_, _, err = svc.RelocateEmpty(ctx, "QR-3", "zone-b", Operator{}, "")
	var pe *PreconditionError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, model.RelocateEmpty, pe.Command)

	// A rejected command writes nothing
	movements, err := repos.Movements.ListBySkip(ctx, skip.SkipID)
	require.NoError(t, err)
	require.Empty(t, movements)
}

func TestCollectFullRecordsEverything(t *testing.T) {
	svc, repos := newTestService(t)
	ctx := context.Background()
	deployed(t, svc, "QR-4", "zone-a")

	result, err := svc.CollectFull(ctx, "QR-4",
		DestinationInput{},
		WeightInput{GrossKg: f(1200), TareKg: f(400), Source: "weighbridge"},
		Operator{DriverName: "pat", VehicleReg: "KAA 123"}, "")
	require.NoError(t, err)

	require.Equal(t, model.CollectFull, result.Movement.Type)
	require.Equal(t, "zone-a", *result.Movement.FromZoneID)
	require.Nil(t, result.Movement.ToZoneID)

	require.Equal(t, 800.0, result.Weight.NetKg)
	require.Equal(t, model.SourceWeighbridge, result.Weight.Source)

	// Destination falls back to the configured defaults
	require.Equal(t, "ECO MRF", result.Transfer.DestinationName)
	require.Equal(t, model.DestinationRecycling, result.Transfer.DestinationType)
	require.Equal(t, "SITE-DEV", result.Transfer.SiteID)

	require.Equal(t, 800.0, result.Note.QuantityKg)
	require.NotEmpty(t, result.Note.Payload)
	require.Equal(t, result.Note.NoteID, result.Payload.NoteID)
	require.Equal(t, 800.0, result.Payload.Originator.QuantityKg)
	require.Equal(t, "KAA 123", result.Payload.Transporter.VehicleReg)

	skip, err := repos.Skips.FindByCode(ctx, "QR-4")
	require.NoError(t, err)
	require.Equal(t, model.StatusInTransit, skip.Status)
	require.Nil(t, skip.ZoneID)

	open, err := repos.Placements.CountOpen(ctx, skip.SkipID)
	require.NoError(t, err)
	require.EqualValues(t, 0, open)

	// Everything landed: one weight and one transfer per movement, one note
	// per transfer
	movement, err := repos.Movements.FindByID(ctx, result.Movement.MovementID)
	require.NoError(t, err)
	weight, err := repos.Weights.FindByMovement(ctx, movement.MovementID)
	require.NoError(t, err)
	require.Equal(t, result.Weight.WeightID, weight.WeightID)
	transfer, err := repos.Transfers.FindByMovement(ctx, movement.MovementID)
	require.NoError(t, err)
	note, err := repos.Notes.FindByTransfer(ctx, transfer.TransferID)
	require.NoError(t, err)
	require.Equal(t, result.Note.NoteID, note.NoteID)
}

func TestCollectFullRequiresDeployed(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Ensure(ctx, "QR-5", nil)
	require.NoError(t, err)

	_, err = svc.CollectFull(ctx, "QR-5", DestinationInput{}, WeightInput{NetKg: f(100)}, Operator{}, "")
	var pe *PreconditionError
	require.ErrorAs(t, err, &pe)
}

func TestCollectFullMissingWeights(t *testing.T) {
	svc, repos := newTestService(t)
	ctx := context.Background()
	deployed(t, svc, "QR-6", "zone-a")

	_, err := svc.CollectFull(ctx, "QR-6", DestinationInput{}, WeightInput{GrossKg: f(900)}, Operator{}, "")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)

	// The rejected collection left no movement behind the delivery
	skip, err := repos.Skips.FindByCode(ctx, "QR-6")
	require.NoError(t, err)
	require.Equal(t, model.StatusDeployed, skip.Status)

	movements, err := repos.Movements.ListBySkip(ctx, skip.SkipID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
}

func TestRelocateEmptyRejectedInTransit(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	deployed(t, svc, "QR-15", "zone-a")

	_, err := svc.CollectFull(ctx, "QR-15", DestinationInput{}, WeightInput{NetKg: f(100)}, Operator{}, "")
	require.NoError(t, err)

	_, _, err = svc.RelocateEmpty(ctx, "QR-15", "zone-b", Operator{}, "")
	var pe *PreconditionError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, model.StatusInTransit, pe.Actual)
}

func TestCollectFullCarrierFromOperator(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	deployed(t, svc, "QR-17", "zone-a")

	// The operator is the carrier of record; the configured company name
	// lands only in the payload's transporter section
	result, err := svc.CollectFull(ctx, "QR-17", DestinationInput{}, WeightInput{NetKg: f(500)}, Operator{DriverName: "pat", VehicleReg: "KAA 123"}, "")
	require.NoError(t, err)
	require.Equal(t, "pat", result.Note.CarrierName)
	require.Equal(t, "Haulage Ltd", result.Payload.Transporter.CompanyName)
	require.Equal(t, "pat", result.Payload.Transporter.Name)
}

func TestCollectFullClampsTareAboveGross(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	deployed(t, svc, "QR-16", "zone-a")

	result, err := svc.CollectFull(ctx, "QR-16", DestinationInput{}, WeightInput{GrossKg: f(1000), TareKg: f(1200)}, Operator{}, "")
	require.NoError(t, err)
	require.Equal(t, 0.0, result.Weight.NetKg)
	require.Equal(t, 0.0, result.Note.QuantityKg)
}

func TestReturnEmptyRedeploysSkip(t *testing.T) {
	svc, repos := newTestService(t)
	ctx := context.Background()
	deployed(t, svc, "QR-7", "zone-a")

	_, err := svc.CollectFull(ctx, "QR-7", DestinationInput{}, WeightInput{NetKg: f(500)}, Operator{}, "")
	require.NoError(t, err)

	movement, placement, err := svc.ReturnEmpty(ctx, "QR-7", "zone-c", Operator{DriverName: "pat"}, "")
	require.NoError(t, err)
	require.Equal(t, "zone-c", *movement.ToZoneID)
	require.Equal(t, "zone-c", placement.ZoneID)
	require.Nil(t, placement.RemovedAt)

	skip, err := repos.Skips.FindByCode(ctx, "QR-7")
	require.NoError(t, err)
	require.Equal(t, model.StatusDeployed, skip.Status)
	require.Equal(t, "zone-c", *skip.ZoneID)

	open, err := repos.Placements.CountOpen(ctx, skip.SkipID)
	require.NoError(t, err)
	require.EqualValues(t, 1, open)
}

func TestReturnEmptyRejectedWhileDeployed(t *testing.T) {
	svc, _ := newTestService(t)
	deployed(t, svc, "QR-8", "zone-a")

	_, _, err := svc.ReturnEmpty(context.Background(), "QR-8", "zone-b", Operator{}, "")
	var pe *PreconditionError
	require.ErrorAs(t, err, &pe)
}

func TestScan(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	deployed(t, svc, "QR-9", "zone-a")

	summary, err := svc.Scan(ctx, "QR-9")
	require.NoError(t, err)
	require.Equal(t, "QR-9", summary.QRCode)
	require.Equal(t, model.StatusDeployed, summary.Status)
	require.Equal(t, "zone-a", *summary.ZoneID)

	_, err = svc.Scan(ctx, "QR-unknown")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestEnsureIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Ensure(ctx, "QR-10", nil)
	require.NoError(t, err)
	require.Equal(t, model.StatusInStock, first.Status)

	second, err := svc.Ensure(ctx, "QR-10", nil)
	require.NoError(t, err)
	require.Equal(t, first.SkipID, second.SkipID)
}

func TestHistoryOrdered(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	deployed(t, svc, "QR-11", "zone-a")

	_, _, err := svc.RelocateEmpty(ctx, "QR-11", "zone-b", Operator{}, "")
	require.NoError(t, err)
	_, err = svc.CollectFull(ctx, "QR-11", DestinationInput{}, WeightInput{NetKg: f(300)}, Operator{}, "")
	require.NoError(t, err)
	_, _, err = svc.ReturnEmpty(ctx, "QR-11", "zone-a", Operator{}, "")
	require.NoError(t, err)

	movements, err := svc.History(ctx, "QR-11")
	require.NoError(t, err)
	require.Len(t, movements, 4)
	require.Equal(t, model.DeliverEmpty, movements[0].Type)
	require.Equal(t, model.RelocateEmpty, movements[1].Type)
	require.Equal(t, model.CollectFull, movements[2].Type)
	require.Equal(t, model.ReturnEmpty, movements[3].Type)
}

func TestNoteLookup(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	deployed(t, svc, "QR-12", "zone-a")

	result, err := svc.CollectFull(ctx, "QR-12", DestinationInput{
		Type: "landfill",
		Name: "North Tip",
	}, WeightInput{NetKg: f(250)}, Operator{}, "")
	require.NoError(t, err)

	note, err := svc.Note(ctx, result.Note.NoteID)
	require.NoError(t, err)
	require.Equal(t, "North Tip", note.DestinationName)
	require.Equal(t, 250.0, note.QuantityKg)
	// No operator supplied: the configured company stands in as carrier
	require.Equal(t, "Haulage Ltd", note.CarrierName)

	_, err = svc.Note(ctx, "nope")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestConcurrentCollectOnlyOneWins(t *testing.T) {
	svc, repos := newTestService(t)
	ctx := context.Background()
	deployed(t, svc, "QR-13", "zone-a")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CollectFull(ctx, "QR-13", DestinationInput{}, WeightInput{NetKg: f(400)}, Operator{}, "")
		}(i)
	}
	wg.Wait()

	var successes, conflicts int
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		var pe *PreconditionError
		require.ErrorAs(t, err, &pe)
		conflicts++
	}
	require.Equal(t, 1, successes)
	require.Equal(t, 1, conflicts)

	// Exactly one collection was recorded
	skip, err := repos.Skips.FindByCode(ctx, "QR-13")
	require.NoError(t, err)
	require.Equal(t, model.StatusInTransit, skip.Status)

	movements, err := repos.Movements.ListBySkip(ctx, skip.SkipID)
	require.NoError(t, err)
	require.Len(t, movements, 2)

	open, err := repos.Placements.CountOpen(ctx, skip.SkipID)
	require.NoError(t, err)
	require.EqualValues(t, 0, open)
}

func TestOpenPlacementInvariant(t *testing.T) {
	svc, repos := newTestService(t)
	ctx := context.Background()
	deployed(t, svc, "QR-14", "zone-a")

	zones := []string{"zone-b", "zone-c", "zone-d"}
	for _, zone := range zones {
		_, _, err := svc.RelocateEmpty(ctx, "QR-14", zone, Operator{}, "")
		require.NoError(t, err)
	}
	_, err := svc.CollectFull(ctx, "QR-14", DestinationInput{}, WeightInput{NetKg: f(100)}, Operator{}, "")
	require.NoError(t, err)
	_, _, err = svc.ReturnEmpty(ctx, "QR-14", "zone-a", Operator{}, "")
	require.NoError(t, err)

	skip, err := repos.Skips.FindByCode(ctx, "QR-14")
	require.NoError(t, err)

	open, err := repos.Placements.CountOpen(ctx, skip.SkipID)
	require.NoError(t, err)
	require.EqualValues(t, 1, open)
}
