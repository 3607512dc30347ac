package documents

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-wms/meridian/internal/shared"
)

type seriesKey struct {
	scope   shared.Scope
	docType DocType
	series  string
	year    int
}

type memoryRepo struct {
	docs     map[int64]Document
	counters map[seriesKey]int64
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{docs: make(map[int64]Document), counters: make(map[seriesKey]int64)}
}

func (r *memoryRepo) Create(ctx context.Context, doc Document) (Document, error) {
	key := seriesKey{doc.Scope, doc.Type, doc.Series, doc.DocDate.Year()}
	r.counters[key]++
	doc.Number = FormatNumber(doc.Type, doc.Series, doc.DocDate.Year(), r.counters[key])
	r.nextID++
	doc.ID = r.nextID
	r.docs[doc.ID] = doc
	return doc, nil
}

func (r *memoryRepo) Get(ctx context.Context, scope shared.Scope, id int64) (Document, error) {
	doc, ok := r.docs[id]
	if !ok || doc.Scope != scope {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

func (r *memoryRepo) List(ctx context.Context, scope shared.Scope, docType DocType, status Status, limit, offset int) ([]Document, error) {
	var out []Document
	for _, doc := range r.docs {
		if doc.Scope != scope {
			continue
		}
		if docType != "" && doc.Type != docType {
			continue
		}
		if status != "" && doc.Status != status {
			continue
		}
		out = append(out, doc)
	}
	return out, nil
}

func (r *memoryRepo) UpdateHeader(ctx context.Context, doc Document) error {
	current, ok := r.docs[doc.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Status != StatusDraft {
		return ErrNotDraft
	}
	current.DocDate = doc.DocDate
	current.WarehouseID = doc.WarehouseID
	current.DestWarehouseID = doc.DestWarehouseID
	current.LandedCost = doc.LandedCost
	current.ToleranceQty = doc.ToleranceQty
	current.Note = doc.Note
	r.docs[doc.ID] = current
	return nil
}

func (r *memoryRepo) ReplaceLines(ctx context.Context, documentID int64, lines []Line) error {
	doc, ok := r.docs[documentID]
	if !ok {
		return ErrNotFound
	}
	doc.Lines = lines
	r.docs[documentID] = doc
	return nil
}

type itemFlags struct{ lot, serial bool }

type memoryItems struct {
	flags map[int64]itemFlags
}

func (m *memoryItems) TrackingFlags(ctx context.Context, scope shared.Scope, itemID int64) (bool, bool, error) {
	f := m.flags[itemID]
	return f.lot, f.serial, nil
}

func testCtx() context.Context {
	return shared.ContextWithActor(context.Background(), 3)
}

func testScope() shared.Scope {
	return shared.Scope{CompanyID: 1, BranchID: 1}
}

func draftGRN() Document {
	return Document{
		Scope:       testScope(),
		Type:        TypeGoodsReceipt,
		Series:      "main",
		DocDate:     time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC),
		WarehouseID: 1,
		Lines: []Line{
			{ItemID: 1, LocationID: 1, Qty: decimal.NewFromInt(5), UnitCost: decimal.NewFromInt(10)},
		},
	}
}

func newTestService() (*Service, *memoryRepo, *memoryItems) {
	repo := newMemoryRepo()
	items := &memoryItems{flags: map[int64]itemFlags{1: {}, 2: {lot: true}, 3: {serial: true}}}
	return NewService(repo, items), repo, items
}

func TestCreateAllocatesSequentialNumbers(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := testCtx()

	first, err := svc.Create(ctx, draftGRN())
	require.NoError(t, err)
	require.Equal(t, "GRN-MAIN-2026-000001", first.Number)
	require.Equal(t, StatusDraft, first.Status)

	second, err := svc.Create(ctx, draftGRN())
	require.NoError(t, err)
	require.Equal(t, "GRN-MAIN-2026-000002", second.Number)
}

func TestNumberSeriesIndependentPerTypeAndYear(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := testCtx()

	grn, err := svc.Create(ctx, draftGRN())
	require.NoError(t, err)

	ship := draftGRN()
	ship.Type = TypeShipment
	ship.Lines[0].UnitCost = decimal.Zero
	shipped, err := svc.Create(ctx, ship)
	require.NoError(t, err)

	nextYear := draftGRN()
	nextYear.DocDate = time.Date(2027, 1, 5, 0, 0, 0, 0, time.UTC)
	future, err := svc.Create(ctx, nextYear)
	require.NoError(t, err)

	require.Equal(t, "GRN-MAIN-2026-000001", grn.Number)
	require.Equal(t, "SHIP-MAIN-2026-000001", shipped.Number)
	require.Equal(t, "GRN-MAIN-2027-000001", future.Number)
}

func TestCreateRejectsEmptyLines(t *testing.T) {
	svc, _, _ := newTestService()
	doc := draftGRN()
	doc.Lines = nil
	_, err := svc.Create(testCtx(), doc)
	require.ErrorIs(t, err, ErrNoLines)
}

func TestCreateEnforcesLotDiscipline(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := testCtx()

	doc := draftGRN()
	doc.Lines[0].ItemID = 2
	_, err := svc.Create(ctx, doc)
	require.Error(t, err, "lot-tracked item without lot must fail")

	doc.Lines[0].LotID = 11
	_, err = svc.Create(ctx, doc)
	require.NoError(t, err)

	plain := draftGRN()
	plain.Lines[0].LotID = 11
	_, err = svc.Create(ctx, plain)
	require.Error(t, err, "lot on untracked item must fail")
}

func TestCreateEnforcesSerialDiscipline(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := testCtx()

	doc := draftGRN()
	doc.Lines[0].ItemID = 3
	doc.Lines[0].Qty = decimal.NewFromInt(1)
	_, err := svc.Create(ctx, doc)
	require.Error(t, err, "serial-tracked item without serial must fail")

	doc.Lines[0].SerialID = 77
	_, err = svc.Create(ctx, doc)
	require.NoError(t, err)
}

func TestUpdateOnlyWhileDraft(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := testCtx()

	doc, err := svc.Create(ctx, draftGRN())
	require.NoError(t, err)

	doc.Note = "updated"
	updated, err := svc.Update(ctx, doc)
	require.NoError(t, err)
	require.Equal(t, "updated", updated.Note)

	posted := repo.docs[doc.ID]
	posted.Status = StatusPosted
	repo.docs[doc.ID] = posted

	_, err = svc.Update(ctx, doc)
	require.ErrorIs(t, err, ErrNotDraft)
}

func TestUpdateKeepsNumberAndType(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := testCtx()

	doc, err := svc.Create(ctx, draftGRN())
	require.NoError(t, err)

	tampered := doc
	tampered.Type = TypeShipment
	tampered.Number = "SHIP-MAIN-2026-999999"
	updated, err := svc.Update(ctx, tampered)
	require.NoError(t, err)
	require.Equal(t, TypeGoodsReceipt, updated.Type)
	require.Equal(t, doc.Number, updated.Number)
}
