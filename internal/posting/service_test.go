package posting

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-wms/meridian/internal/costing"
	"github.com/meridian-wms/meridian/internal/documents"
	"github.com/meridian-wms/meridian/internal/ledger"
	"github.com/meridian-wms/meridian/internal/locks"
	"github.com/meridian-wms/meridian/internal/masterdata/items"
	"github.com/meridian-wms/meridian/internal/reservations"
	"github.com/meridian-wms/meridian/internal/shared"
)

type periodKey struct {
	year  int
	month int
}

// memoryStore is an in-memory Store/Tx. RunInTx snapshots mutable state and
// restores it when fn errors, mirroring a rollback.
type memoryStore struct {
	docs          map[int64]documents.Document
	items         map[int64]ItemInfo
	entries       []ledger.Entry
	holds         map[string]reservations.Holds
	canPost       map[[2]int64]bool
	lockedDocs    map[int64]bool
	lockedPeriods map[periodKey]bool
	audits        []shared.AuditLog
	lockedScopes  []string
	failInsert    bool
	nextEntryID   int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		docs:          make(map[int64]documents.Document),
		items:         make(map[int64]ItemInfo),
		holds:         make(map[string]reservations.Holds),
		canPost:       make(map[[2]int64]bool),
		lockedDocs:    make(map[int64]bool),
		lockedPeriods: make(map[periodKey]bool),
	}
}

func (s *memoryStore) RunInTx(ctx context.Context, fn func(Tx) error) error {
	docsCopy := make(map[int64]documents.Document, len(s.docs))
	for k, v := range s.docs {
		docsCopy[k] = v
	}
	entriesCopy := append([]ledger.Entry(nil), s.entries...)
	auditsCopy := append([]shared.AuditLog(nil), s.audits...)

	if err := fn(s); err != nil {
		s.docs = docsCopy
		s.entries = entriesCopy
		s.audits = auditsCopy
		return err
	}
	return nil
}

func (s *memoryStore) GetDocumentForUpdate(ctx context.Context, scope shared.Scope, id int64) (documents.Document, error) {
	doc, ok := s.docs[id]
	if !ok || doc.Scope != scope {
		return documents.Document{}, documents.ErrNotFound
	}
	return doc, nil
}

func (s *memoryStore) SetStatus(ctx context.Context, id int64, from, to documents.Status, actorID int64) error {
	doc, ok := s.docs[id]
	if !ok || doc.Status != from {
		return documents.ErrInvalidTransition
	}
	doc.Status = to
	if to == documents.StatusPosted {
		doc.PostedBy = actorID
	}
	s.docs[id] = doc
	return nil
}

func (s *memoryStore) GetItem(ctx context.Context, itemID int64) (ItemInfo, error) {
	info, ok := s.items[itemID]
	if !ok {
		return ItemInfo{}, shared.ErrNotFound
	}
	return info, nil
}

func matches(e ledger.Entry, key ledger.StockKey) bool {
	if e.Scope != key.Scope || e.WarehouseID != key.WarehouseID ||
		e.LocationID != key.LocationID || e.ItemID != key.ItemID {
		return false
	}
	if key.LotID != 0 && e.LotID != key.LotID {
		return false
	}
	if key.SerialID != 0 && e.SerialID != key.SerialID {
		return false
	}
	return true
}

func (s *memoryStore) LockStockKey(ctx context.Context, key ledger.StockKey) error {
	s.lockedScopes = append(s.lockedScopes, key.CacheKey())
	return nil
}

func (s *memoryStore) OnHand(ctx context.Context, key ledger.StockKey) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, e := range s.entries {
		if matches(e, key) {
			total = total.Add(e.SignedQty())
		}
	}
	return total, nil
}

func (s *memoryStore) Holds(ctx context.Context, key ledger.StockKey) (reservations.Holds, error) {
	return s.holds[key.CacheKey()], nil
}

func (s *memoryStore) Layers(ctx context.Context, key ledger.StockKey) ([]costing.Layer, decimal.Decimal, error) {
	var layers []costing.Layer
	consumed := decimal.Zero
	for _, e := range s.entries {
		if !matches(e, key) {
			continue
		}
		if e.Direction == ledger.DirectionIn {
			layers = append(layers, costing.Layer{Date: e.TxnDate, Qty: e.Qty, UnitCost: e.Cost})
		} else {
			consumed = consumed.Add(e.Qty)
		}
	}
	return layers, consumed, nil
}

func (s *memoryStore) InsertEntries(ctx context.Context, entries []ledger.Entry) error {
	if s.failInsert {
		return errors.New("insert failed")
	}
	for i := range entries {
		s.nextEntryID++
		entries[i].ID = s.nextEntryID
		s.entries = append(s.entries, entries[i])
	}
	return nil
}

func (s *memoryStore) HasPostPermission(ctx context.Context, actorID, warehouseID int64) (bool, error) {
	return s.canPost[[2]int64{actorID, warehouseID}], nil
}

func (s *memoryStore) PeriodStatus(ctx context.Context, scope shared.Scope, date time.Time) (locks.PeriodStatus, error) {
	if s.lockedPeriods[periodKey{date.Year(), int(date.Month())}] {
		return locks.PeriodLocked, nil
	}
	return locks.PeriodOpen, nil
}

func (s *memoryStore) DocumentLocked(ctx context.Context, id int64) (bool, error) {
	return s.lockedDocs[id], nil
}

func (s *memoryStore) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	s.audits = append(s.audits, log)
	return nil
}

// Record lets the store double as the out-of-tx denial audit sink.
func (s *memoryStore) Record(ctx context.Context, log shared.AuditLog) error {
	s.audits = append(s.audits, log)
	return nil
}

const (
	actorID     = int64(7)
	warehouseA  = int64(1)
	warehouseB  = int64(2)
	locationA   = int64(10)
	locationB   = int64(20)
	itemPlain   = int64(1)
	itemLot     = int64(2)
	itemAverage = int64(3)
)

func testScope() shared.Scope {
	return shared.Scope{CompanyID: 1, BranchID: 1}
}

func testCtx() context.Context {
	return shared.ContextWithActor(context.Background(), actorID)
}

func newFixture(policy NegativeStockPolicy) (*Service, *memoryStore) {
	store := newMemoryStore()
	store.items[itemPlain] = ItemInfo{CostMethod: items.CostMethodFIFO}
	store.items[itemLot] = ItemInfo{TrackLot: true, CostMethod: items.CostMethodFIFO}
	store.items[itemAverage] = ItemInfo{CostMethod: items.CostMethodWeightedAverage}
	store.canPost[[2]int64{actorID, warehouseA}] = true
	store.canPost[[2]int64{actorID, warehouseB}] = true
	svc := NewService(slog.Default(), store, policy, store, nil, nil)
	return svc, store
}

func docDate() time.Time {
	return time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
}

func addDoc(store *memoryStore, doc documents.Document) documents.Document {
	if doc.ID == 0 {
		doc.ID = int64(len(store.docs) + 1)
	}
	if doc.Status == "" {
		doc.Status = documents.StatusDraft
	}
	doc.Scope = testScope()
	if doc.DocDate.IsZero() {
		doc.DocDate = docDate()
	}
	if doc.Number == "" {
		doc.Number = documents.FormatNumber(doc.Type, "MAIN", doc.DocDate.Year(), doc.ID)
	}
	store.docs[doc.ID] = doc
	return doc
}

func seedStock(store *memoryStore, itemID int64, qty, unitCost decimal.Decimal) {
	store.nextEntryID++
	store.entries = append(store.entries, ledger.Entry{
		ID: store.nextEntryID,
		StockKey: ledger.StockKey{
			Scope: testScope(), WarehouseID: warehouseA, LocationID: locationA, ItemID: itemID,
		},
		TxnDate:   docDate().AddDate(0, -1, 0),
		Qty:       qty,
		Direction: ledger.DirectionIn,
		Cost:      unitCost,
	})
}

func dec(v string) decimal.Decimal {
	d, _ := decimal.NewFromString(v)
	return d
}

func hasAudit(store *memoryStore, action string) bool {
	for _, a := range store.audits {
		if a.Action == action {
			return true
		}
	}
	return false
}

func TestPostGoodsReceipt(t *testing.T) {
	svc, store := newFixture(PolicyForbid)
	doc := addDoc(store, documents.Document{
		Type:        documents.TypeGoodsReceipt,
		WarehouseID: warehouseA,
		Lines: []documents.Line{
			{ItemID: itemPlain, LocationID: locationA, Qty: dec("5"), UnitCost: dec("10")},
		},
	})

	result, err := svc.Post(testCtx(), testScope(), doc.ID, PostOptions{})
	require.NoError(t, err)
	require.Equal(t, ResultPosted, result.Status)
	require.Len(t, result.Entries, 1)
	require.Equal(t, ledger.DirectionIn, result.Entries[0].Direction)
	require.Equal(t, documents.StatusPosted, store.docs[doc.ID].Status)

	onHand, err := store.OnHand(context.Background(), result.Entries[0].StockKey)
	require.NoError(t, err)
	require.True(t, onHand.Equal(dec("5")))
	require.True(t, hasAudit(store, shared.AuditActionPost))
}

func TestPostShipmentDecreasesOnHand(t *testing.T) {
	svc, store := newFixture(PolicyForbid)
	seedStock(store, itemPlain, dec("10"), dec("4"))
	doc := addDoc(store, documents.Document{
		Type:        documents.TypeShipment,
		WarehouseID: warehouseA,
		Lines: []documents.Line{
			{ItemID: itemPlain, LocationID: locationA, Qty: dec("4")},
		},
	})

	result, err := svc.Post(testCtx(), testScope(), doc.ID, PostOptions{})
	require.NoError(t, err)
	require.Equal(t, ResultPosted, result.Status)

	onHand, _ := store.OnHand(context.Background(), result.Entries[0].StockKey)
	require.True(t, onHand.Equal(dec("6")))
}

func TestPostTransferIsNetZero(t *testing.T) {
	svc, store := newFixture(PolicyForbid)
	seedStock(store, itemPlain, dec("10"), dec("4"))
	doc := addDoc(store, documents.Document{
		Type:            documents.TypeTransfer,
		WarehouseID:     warehouseA,
		DestWarehouseID: warehouseB,
		Lines: []documents.Line{
			{ItemID: itemPlain, LocationID: locationA, DestLocationID: locationB, Qty: dec("3")},
		},
	})

	result, err := svc.Post(testCtx(), testScope(), doc.ID, PostOptions{})
	require.NoError(t, err)
	require.Len(t, result.Entries, 2)

	out, in := result.Entries[0], result.Entries[1]
	require.Equal(t, ledger.DirectionOut, out.Direction)
	require.Equal(t, ledger.DirectionIn, in.Direction)
	require.True(t, out.Qty.Equal(in.Qty))
	require.True(t, out.Cost.Equal(in.Cost), "transfer must move value unchanged")
	require.Equal(t, warehouseB, in.WarehouseID)
	require.Equal(t, locationB, in.LocationID)

	net := decimal.Zero
	for _, e := range result.Entries {
		net = net.Add(e.SignedQty())
	}
	require.True(t, net.IsZero())
}

func TestNegativeStockPolicyMatrix(t *testing.T) {
	t.Run("forbid", func(t *testing.T) {
		svc, store := newFixture(PolicyForbid)
		seedStock(store, itemPlain, dec("2"), dec("4"))
		doc := addDoc(store, documents.Document{
			Type:        documents.TypeShipment,
			WarehouseID: warehouseA,
			Lines:       []documents.Line{{ItemID: itemPlain, LocationID: locationA, Qty: dec("5")}},
		})

		_, err := svc.Post(testCtx(), testScope(), doc.ID, PostOptions{})
		require.ErrorIs(t, err, ErrNegativeStock)
		require.Equal(t, documents.StatusDraft, store.docs[doc.ID].Status)
		require.Len(t, store.entries, 1, "only the seed entry remains")
		require.True(t, hasAudit(store, shared.AuditActionPostDenied))
	})

	t.Run("warn", func(t *testing.T) {
		svc, store := newFixture(PolicyWarn)
		seedStock(store, itemPlain, dec("2"), dec("4"))
		doc := addDoc(store, documents.Document{
			Type:        documents.TypeShipment,
			WarehouseID: warehouseA,
			Lines:       []documents.Line{{ItemID: itemPlain, LocationID: locationA, Qty: dec("5")}},
		})

		result, err := svc.Post(testCtx(), testScope(), doc.ID, PostOptions{})
		require.NoError(t, err)
		require.Equal(t, ResultPosted, result.Status)
		require.NotEmpty(t, result.Warnings)
		require.True(t, hasAudit(store, shared.AuditActionNegativeWarn))

		onHand, _ := store.OnHand(context.Background(), result.Entries[0].StockKey)
		require.True(t, onHand.Equal(dec("-3")))
	})

	t.Run("allow", func(t *testing.T) {
		svc, store := newFixture(PolicyAllow)
		seedStock(store, itemPlain, dec("2"), dec("4"))
		doc := addDoc(store, documents.Document{
			Type:        documents.TypeShipment,
			WarehouseID: warehouseA,
			Lines:       []documents.Line{{ItemID: itemPlain, LocationID: locationA, Qty: dec("5")}},
		})

		result, err := svc.Post(testCtx(), testScope(), doc.ID, PostOptions{})
		require.NoError(t, err)
		require.Empty(t, result.Warnings)
		require.False(t, hasAudit(store, shared.AuditActionNegativeWarn))
	})
}

func TestReservedStockBlocksShipment(t *testing.T) {
	svc, store := newFixture(PolicyForbid)
	seedStock(store, itemPlain, dec("10"), dec("4"))
	key := ledger.StockKey{Scope: testScope(), WarehouseID: warehouseA, LocationID: locationA, ItemID: itemPlain}
	store.holds[key.CacheKey()] = reservations.Holds{Reserved: dec("6")}

	doc := addDoc(store, documents.Document{
		Type:        documents.TypeShipment,
		WarehouseID: warehouseA,
		Lines:       []documents.Line{{ItemID: itemPlain, LocationID: locationA, Qty: dec("5")}},
	})

	_, err := svc.Post(testCtx(), testScope(), doc.ID, PostOptions{})
	require.ErrorIs(t, err, ErrNegativeStock, "only 4 available after reservation")
}

func TestBlockedStockBlocksShipment(t *testing.T) {
	svc, store := newFixture(PolicyForbid)
	seedStock(store, itemPlain, dec("10"), dec("4"))
	key := ledger.StockKey{Scope: testScope(), WarehouseID: warehouseA, LocationID: locationA, ItemID: itemPlain}
	store.holds[key.CacheKey()] = reservations.Holds{Blocked: dec("8")}

	doc := addDoc(store, documents.Document{
		Type:        documents.TypeShipment,
		WarehouseID: warehouseA,
		Lines:       []documents.Line{{ItemID: itemPlain, LocationID: locationA, Qty: dec("3")}},
	})

	_, err := svc.Post(testCtx(), testScope(), doc.ID, PostOptions{})
	require.ErrorIs(t, err, ErrNegativeStock)
}

func TestLockedPeriodRefusesPost(t *testing.T) {
	svc, store := newFixture(PolicyForbid)
	store.lockedPeriods[periodKey{2026, 2}] = true
	doc := addDoc(store, documents.Document{
		Type:        documents.TypeGoodsReceipt,
		WarehouseID: warehouseA,
		Lines:       []documents.Line{{ItemID: itemPlain, LocationID: locationA, Qty: dec("5"), UnitCost: dec("10")}},
	})

	_, err := svc.Post(testCtx(), testScope(), doc.ID, PostOptions{})
	require.ErrorIs(t, err, locks.ErrPeriodLocked)
	require.Empty(t, store.entries)
	require.True(t, hasAudit(store, shared.AuditActionPostDenied))
}

func TestLockedDocumentRefusesPost(t *testing.T) {
	svc, store := newFixture(PolicyForbid)
	doc := addDoc(store, documents.Document{
		Type:        documents.TypeGoodsReceipt,
		WarehouseID: warehouseA,
		Lines:       []documents.Line{{ItemID: itemPlain, LocationID: locationA, Qty: dec("5"), UnitCost: dec("10")}},
	})
	store.lockedDocs[doc.ID] = true

	_, err := svc.Post(testCtx(), testScope(), doc.ID, PostOptions{})
	require.ErrorIs(t, err, locks.ErrDocumentLocked)
	require.Empty(t, store.entries)
}

func TestPermissionDenied(t *testing.T) {
	svc, store := newFixture(PolicyForbid)
	store.canPost[[2]int64{actorID, warehouseA}] = false
	doc := addDoc(store, documents.Document{
		Type:        documents.TypeGoodsReceipt,
		WarehouseID: warehouseA,
		Lines:       []documents.Line{{ItemID: itemPlain, LocationID: locationA, Qty: dec("5"), UnitCost: dec("10")}},
	})

	_, err := svc.Post(testCtx(), testScope(), doc.ID, PostOptions{})
	require.ErrorIs(t, err, ErrPermissionDenied)
	require.True(t, hasAudit(store, shared.AuditActionPostDenied))
}

func TestTransferRequiresPermissionOnBothWarehouses(t *testing.T) {
	svc, store := newFixture(PolicyForbid)
	seedStock(store, itemPlain, dec("10"), dec("4"))
	store.canPost[[2]int64{actorID, warehouseB}] = false
	doc := addDoc(store, documents.Document{
		Type:            documents.TypeTransfer,
		WarehouseID:     warehouseA,
		DestWarehouseID: warehouseB,
		Lines: []documents.Line{
			{ItemID: itemPlain, LocationID: locationA, DestLocationID: locationB, Qty: dec("1")},
		},
	})

	_, err := svc.Post(testCtx(), testScope(), doc.ID, PostOptions{})
	require.ErrorIs(t, err, ErrPermissionDenied)
}

func TestLotRequiredForTrackedItem(t *testing.T) {
	svc, store := newFixture(PolicyForbid)
	doc := addDoc(store, documents.Document{
		Type:        documents.TypeGoodsReceipt,
		WarehouseID: warehouseA,
		Lines:       []documents.Line{{ItemID: itemLot, LocationID: locationA, Qty: dec("5"), UnitCost: dec("10")}},
	})

	_, err := svc.Post(testCtx(), testScope(), doc.ID, PostOptions{})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, 1, vErr.Line)
	require.Empty(t, store.entries)
}

func TestFIFOCostOnShipment(t *testing.T) {
	svc, store := newFixture(PolicyForbid)
	seedStock(store, itemPlain, dec("5"), dec("10"))
	seedStock(store, itemPlain, dec("10"), dec("12"))
	doc := addDoc(store, documents.Document{
		Type:        documents.TypeShipment,
		WarehouseID: warehouseA,
		Lines:       []documents.Line{{ItemID: itemPlain, LocationID: locationA, Qty: dec("6")}},
	})

	result, err := svc.Post(testCtx(), testScope(), doc.ID, PostOptions{})
	require.NoError(t, err)
	// 5@10 + 1@12 = 62 over 6 units
	require.True(t, result.Entries[0].Cost.Equal(dec("10.333333")), "got %s", result.Entries[0].Cost)
}

func TestWeightedAverageCostOnShipment(t *testing.T) {
	svc, store := newFixture(PolicyForbid)
	seedStock(store, itemAverage, dec("4"), dec("10"))
	seedStock(store, itemAverage, dec("6"), dec("14"))
	doc := addDoc(store, documents.Document{
		Type:        documents.TypeShipment,
		WarehouseID: warehouseA,
		Lines:       []documents.Line{{ItemID: itemAverage, LocationID: locationA, Qty: dec("5")}},
	})

	result, err := svc.Post(testCtx(), testScope(), doc.ID, PostOptions{})
	require.NoError(t, err)
	require.True(t, result.Entries[0].Cost.Equal(dec("12.4")), "got %s", result.Entries[0].Cost)
}

func TestLandedCostAllocation(t *testing.T) {
	svc, store := newFixture(PolicyForbid)
	doc := addDoc(store, documents.Document{
		Type:        documents.TypeGoodsReceipt,
		WarehouseID: warehouseA,
		LandedCost:  dec("30"),
		Lines: []documents.Line{
			{ItemID: itemPlain, LocationID: locationA, Qty: dec("2"), UnitCost: dec("10")},
			{ItemID: itemPlain, LocationID: locationA, Qty: dec("4"), UnitCost: dec("10")},
		},
	})

	result, err := svc.Post(testCtx(), testScope(), doc.ID, PostOptions{})
	require.NoError(t, err)
	require.Len(t, result.Entries, 2)
	// shares 10 and 20, per unit +5 on both lines
	require.True(t, result.Entries[0].Cost.Equal(dec("15")), "got %s", result.Entries[0].Cost)
	require.True(t, result.Entries[1].Cost.Equal(dec("15")), "got %s", result.Entries[1].Cost)

	totalValue := decimal.Zero
	for _, e := range result.Entries {
		totalValue = totalValue.Add(e.Cost.Mul(e.Qty))
	}
	require.True(t, totalValue.Equal(dec("90")), "60 goods + 30 landed")
}

func TestCountWithinToleranceAdjusts(t *testing.T) {
	svc, store := newFixture(PolicyForbid)
	seedStock(store, itemPlain, dec("10"), dec("4"))
	doc := addDoc(store, documents.Document{
		Type:         documents.TypeCount,
		WarehouseID:  warehouseA,
		ToleranceQty: dec("3"),
		Lines:        []documents.Line{{ItemID: itemPlain, LocationID: locationA, CountedQty: dec("8")}},
	})

	result, err := svc.Post(testCtx(), testScope(), doc.ID, PostOptions{})
	require.NoError(t, err)
	require.Equal(t, ResultPosted, result.Status)
	require.Len(t, result.Entries, 1)
	require.Equal(t, ledger.DirectionOut, result.Entries[0].Direction)
	require.True(t, result.Entries[0].Qty.Equal(dec("2")))

	onHand, _ := store.OnHand(context.Background(), result.Entries[0].StockKey)
	require.True(t, onHand.Equal(dec("8")))
}

func TestCountExceedingToleranceRoutesToApproval(t *testing.T) {
	svc, store := newFixture(PolicyForbid)
	seedStock(store, itemPlain, dec("10"), dec("4"))
	doc := addDoc(store, documents.Document{
		Type:         documents.TypeCount,
		WarehouseID:  warehouseA,
		ToleranceQty: dec("1"),
		Lines:        []documents.Line{{ItemID: itemPlain, LocationID: locationA, CountedQty: dec("4")}},
	})

	result, err := svc.Post(testCtx(), testScope(), doc.ID, PostOptions{})
	require.NoError(t, err, "tolerance routing is an outcome, not an error")
	require.Equal(t, ResultPendingApproval, result.Status)
	require.Empty(t, result.Entries)
	require.Len(t, store.entries, 1, "no ledger writes on routing")
	require.Equal(t, documents.StatusPendingApproval, store.docs[doc.ID].Status)
}

func TestApprovePostsPendingCount(t *testing.T) {
	svc, store := newFixture(PolicyForbid)
	seedStock(store, itemPlain, dec("10"), dec("4"))
	doc := addDoc(store, documents.Document{
		Type:         documents.TypeCount,
		WarehouseID:  warehouseA,
		ToleranceQty: dec("1"),
		Lines:        []documents.Line{{ItemID: itemPlain, LocationID: locationA, CountedQty: dec("4")}},
		Status:       documents.StatusPendingApproval,
	})

	result, err := svc.Approve(testCtx(), testScope(), doc.ID, PostOptions{})
	require.NoError(t, err)
	require.Equal(t, ResultPosted, result.Status)
	require.Len(t, result.Entries, 1)
	require.True(t, result.Entries[0].Qty.Equal(dec("6")))
	require.Equal(t, documents.StatusPosted, store.docs[doc.ID].Status)
	require.True(t, hasAudit(store, shared.AuditActionApprove))
}

func TestRejectWritesNothing(t *testing.T) {
	svc, store := newFixture(PolicyForbid)
	seedStock(store, itemPlain, dec("10"), dec("4"))
	doc := addDoc(store, documents.Document{
		Type:         documents.TypeCount,
		WarehouseID:  warehouseA,
		ToleranceQty: dec("1"),
		Lines:        []documents.Line{{ItemID: itemPlain, LocationID: locationA, CountedQty: dec("4")}},
		Status:       documents.StatusPendingApproval,
	})

	rejected, err := svc.Reject(testCtx(), testScope(), doc.ID, "recount ordered")
	require.NoError(t, err)
	require.Equal(t, documents.StatusRejected, rejected.Status)
	require.Len(t, store.entries, 1, "seed only")
	require.True(t, hasAudit(store, shared.AuditActionReject))
}

func TestRepostFinalDocumentFails(t *testing.T) {
	svc, store := newFixture(PolicyForbid)
	doc := addDoc(store, documents.Document{
		Type:        documents.TypeGoodsReceipt,
		WarehouseID: warehouseA,
		Lines:       []documents.Line{{ItemID: itemPlain, LocationID: locationA, Qty: dec("5"), UnitCost: dec("10")}},
	})

	_, err := svc.Post(testCtx(), testScope(), doc.ID, PostOptions{})
	require.NoError(t, err)

	_, err = svc.Post(testCtx(), testScope(), doc.ID, PostOptions{})
	require.ErrorIs(t, err, ErrAlreadyFinal)
	require.Len(t, store.entries, 1, "no duplicate entries")
}

func TestPostPendingDocumentFails(t *testing.T) {
	svc, store := newFixture(PolicyForbid)
	doc := addDoc(store, documents.Document{
		Type:        documents.TypeGoodsReceipt,
		WarehouseID: warehouseA,
		Lines:       []documents.Line{{ItemID: itemPlain, LocationID: locationA, Qty: dec("5"), UnitCost: dec("10")}},
		Status:      documents.StatusPendingApproval,
	})

	_, err := svc.Post(testCtx(), testScope(), doc.ID, PostOptions{})
	require.ErrorIs(t, err, ErrPendingApproval)
}

func TestApproveRequiresPending(t *testing.T) {
	svc, store := newFixture(PolicyForbid)
	doc := addDoc(store, documents.Document{
		Type:        documents.TypeGoodsReceipt,
		WarehouseID: warehouseA,
		Lines:       []documents.Line{{ItemID: itemPlain, LocationID: locationA, Qty: dec("5"), UnitCost: dec("10")}},
	})

	_, err := svc.Approve(testCtx(), testScope(), doc.ID, PostOptions{})
	require.ErrorIs(t, err, ErrNotPending)
}

func TestPostIsAtomicOnInsertFailure(t *testing.T) {
	svc, store := newFixture(PolicyForbid)
	doc := addDoc(store, documents.Document{
		Type:        documents.TypeGoodsReceipt,
		WarehouseID: warehouseA,
		Lines:       []documents.Line{{ItemID: itemPlain, LocationID: locationA, Qty: dec("5"), UnitCost: dec("10")}},
	})
	store.failInsert = true

	_, err := svc.Post(testCtx(), testScope(), doc.ID, PostOptions{})
	require.Error(t, err)
	require.Empty(t, store.entries)
	require.Equal(t, documents.StatusDraft, store.docs[doc.ID].Status)
	require.False(t, hasAudit(store, shared.AuditActionPost), "audit rolls back with the tx")
}

func TestFIFOShortfallPricedAtWeightedAverage(t *testing.T) {
	svc, store := newFixture(PolicyAllow)
	seedStock(store, itemPlain, dec("2"), dec("10"))
	doc := addDoc(store, documents.Document{
		Type:        documents.TypeShipment,
		WarehouseID: warehouseA,
		Lines:       []documents.Line{{ItemID: itemPlain, LocationID: locationA, Qty: dec("5")}},
	})

	result, err := svc.Post(testCtx(), testScope(), doc.ID, PostOptions{})
	require.NoError(t, err)
	// 2@10 from layers + 3@10 (WA of the single layer) = 50 over 5 units
	require.True(t, result.Entries[0].Cost.Equal(dec("10")), "got %s", result.Entries[0].Cost)
}

func TestMultiLineShipmentCannotDrainSharedStock(t *testing.T) {
	svc, store := newFixture(PolicyForbid)
	seedStock(store, itemPlain, dec("5"), dec("10"))
	doc := addDoc(store, documents.Document{
		Type:        documents.TypeShipment,
		WarehouseID: warehouseA,
		Lines: []documents.Line{
			{ItemID: itemPlain, LocationID: locationA, Qty: dec("3")},
			{ItemID: itemPlain, LocationID: locationA, Qty: dec("3")},
		},
	})

	_, err := svc.Post(testCtx(), testScope(), doc.ID, PostOptions{})
	require.ErrorIs(t, err, ErrNegativeStock, "second line must see the first line's outflow")
	require.Equal(t, documents.StatusDraft, store.docs[doc.ID].Status)
	require.Len(t, store.entries, 1, "only the seed entry remains")
}

func TestMultiLineShipmentWithinStockPosts(t *testing.T) {
	svc, store := newFixture(PolicyForbid)
	seedStock(store, itemPlain, dec("6"), dec("10"))
	doc := addDoc(store, documents.Document{
		Type:        documents.TypeShipment,
		WarehouseID: warehouseA,
		Lines: []documents.Line{
			{ItemID: itemPlain, LocationID: locationA, Qty: dec("3")},
			{ItemID: itemPlain, LocationID: locationA, Qty: dec("3")},
		},
	})

	result, err := svc.Post(testCtx(), testScope(), doc.ID, PostOptions{})
	require.NoError(t, err)
	require.Equal(t, ResultPosted, result.Status)

	onHand, _ := store.OnHand(context.Background(), result.Entries[0].StockKey)
	require.True(t, onHand.IsZero())
}

func TestFIFOConsumptionCarriesAcrossLines(t *testing.T) {
	svc, store := newFixture(PolicyForbid)
	seedStock(store, itemPlain, dec("5"), dec("10"))
	seedStock(store, itemPlain, dec("5"), dec("20"))
	doc := addDoc(store, documents.Document{
		Type:        documents.TypeShipment,
		WarehouseID: warehouseA,
		Lines: []documents.Line{
			{ItemID: itemPlain, LocationID: locationA, Qty: dec("5")},
			{ItemID: itemPlain, LocationID: locationA, Qty: dec("5")},
		},
	})

	result, err := svc.Post(testCtx(), testScope(), doc.ID, PostOptions{})
	require.NoError(t, err)
	require.Len(t, result.Entries, 2)
	// line 1 empties the 10-cost layer, so line 2 prices from the 20-cost layer
	require.True(t, result.Entries[0].Cost.Equal(dec("10")), "got %s", result.Entries[0].Cost)
	require.True(t, result.Entries[1].Cost.Equal(dec("20")), "got %s", result.Entries[1].Cost)
}

func TestPostLocksEveryStockScope(t *testing.T) {
	svc, store := newFixture(PolicyForbid)
	seedStock(store, itemPlain, dec("10"), dec("4"))
	doc := addDoc(store, documents.Document{
		Type:            documents.TypeTransfer,
		WarehouseID:     warehouseA,
		DestWarehouseID: warehouseB,
		Lines: []documents.Line{
			{ItemID: itemPlain, LocationID: locationA, DestLocationID: locationB, Qty: dec("3")},
		},
	})

	_, err := svc.Post(testCtx(), testScope(), doc.ID, PostOptions{})
	require.NoError(t, err)

	source := ledger.StockKey{Scope: testScope(), WarehouseID: warehouseA, LocationID: locationA, ItemID: itemPlain}
	dest := ledger.StockKey{Scope: testScope(), WarehouseID: warehouseB, LocationID: locationB, ItemID: itemPlain}
	require.Contains(t, store.lockedScopes, source.CacheKey())
	require.Contains(t, store.lockedScopes, dest.CacheKey())
	require.True(t, sort.StringsAreSorted(store.lockedScopes), "locks must be taken in sorted order")
}
