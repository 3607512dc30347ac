package posting

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-wms/meridian/internal/costing"
	"github.com/meridian-wms/meridian/internal/documents"
	"github.com/meridian-wms/meridian/internal/ledger"
	"github.com/meridian-wms/meridian/internal/locks"
	"github.com/meridian-wms/meridian/internal/masterdata/items"
	"github.com/meridian-wms/meridian/internal/reservations"
	"github.com/meridian-wms/meridian/internal/shared"
)

// Tx is the posting engine's view of one repeatable-read transaction. The
// document row is locked FOR UPDATE, so same-document posts serialise;
// LockStockKey serialises different documents touching the same stock scope.
type Tx interface {
	GetDocumentForUpdate(ctx context.Context, scope shared.Scope, id int64) (documents.Document, error)
	SetStatus(ctx context.Context, id int64, from, to documents.Status, actorID int64) error
	GetItem(ctx context.Context, itemID int64) (ItemInfo, error)
	LockStockKey(ctx context.Context, key ledger.StockKey) error
	OnHand(ctx context.Context, key ledger.StockKey) (decimal.Decimal, error)
	Holds(ctx context.Context, key ledger.StockKey) (reservations.Holds, error)
	Layers(ctx context.Context, key ledger.StockKey) ([]costing.Layer, decimal.Decimal, error)
	InsertEntries(ctx context.Context, entries []ledger.Entry) error
	HasPostPermission(ctx context.Context, actorID, warehouseID int64) (bool, error)
	PeriodStatus(ctx context.Context, scope shared.Scope, date time.Time) (locks.PeriodStatus, error)
	DocumentLocked(ctx context.Context, id int64) (bool, error)
	RecordAudit(ctx context.Context, log shared.AuditLog) error
}

// Store runs posting transactions.
type Store interface {
	RunInTx(ctx context.Context, fn func(Tx) error) error
}

// AuditPort records audit entries outside the posting transaction. Denials
// must survive the rollback, so they are written through here.
type AuditPort interface {
	Record(ctx context.Context, entry shared.AuditLog) error
}

// InvalidatorPort drops cached on-hand balances after a successful post.
type InvalidatorPort interface {
	Invalidate(ctx context.Context, keys []ledger.StockKey) error
}

// IdempotencyPort dedupes retried post requests.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service is the posting engine.
type Service struct {
	logger      *slog.Logger
	store       Store
	policy      NegativeStockPolicy
	audit       AuditPort
	invalidator InvalidatorPort
	idempotency IdempotencyPort
}

// NewService builds the engine with the configured default policy.
func NewService(logger *slog.Logger, store Store, policy NegativeStockPolicy, audit AuditPort, invalidator InvalidatorPort, idempotency IdempotencyPort) *Service {
	return &Service{
		logger:      logger,
		store:       store,
		policy:      policy,
		audit:       audit,
		invalidator: invalidator,
		idempotency: idempotency,
	}
}

// PostOptions tunes one post attempt.
type PostOptions struct {
	// IdempotencyKey, when set, dedupes retried requests.
	IdempotencyKey string
	// Policy overrides the configured negative-stock policy for this call.
	Policy NegativeStockPolicy
}

const idempotencyModule = "posting"

// Post attempts DRAFT -> POSTED. A COUNT whose line delta exceeds the
// document tolerance routes to PENDING_APPROVAL instead, with zero ledger
// writes; that outcome is reported in the result, not as an error.
func (s *Service) Post(ctx context.Context, scope shared.Scope, docID int64, opts PostOptions) (Result, error) {
	actorID, err := shared.ActorFromContext(ctx)
	if err != nil {
		return Result{}, err
	}
	policy := s.policy
	if opts.Policy != "" {
		policy = opts.Policy
	}
	if opts.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, opts.IdempotencyKey, idempotencyModule); err != nil {
			return Result{}, err
		}
	}

	var result Result
	err = s.store.RunInTx(ctx, func(tx Tx) error {
		doc, err := tx.GetDocumentForUpdate(ctx, scope, docID)
		if err != nil {
			return err
		}
		switch doc.Status {
		case documents.StatusDraft:
		case documents.StatusPendingApproval:
			return ErrPendingApproval
		default:
			return ErrAlreadyFinal
		}
		if err := s.checkGates(ctx, tx, doc, actorID); err != nil {
			return err
		}
		if err := lockStockScopes(ctx, tx, doc); err != nil {
			return err
		}

		if doc.Type == documents.TypeCount {
			exceeded, err := s.toleranceExceeded(ctx, tx, doc)
			if err != nil {
				return err
			}
			if exceeded {
				if err := tx.SetStatus(ctx, doc.ID, documents.StatusDraft, documents.StatusPendingApproval, 0); err != nil {
					return err
				}
				if err := tx.RecordAudit(ctx, auditEntry(actorID, shared.AuditActionPost, doc, map[string]any{
					"result": string(ResultPendingApproval),
					"reason": "count delta exceeds tolerance",
				})); err != nil {
					return err
				}
				doc.Status = documents.StatusPendingApproval
				result = Result{Status: ResultPendingApproval, Document: doc}
				return nil
			}
		}

		entries, warnings, err := s.buildEntries(ctx, tx, doc, actorID, policy)
		if err != nil {
			return err
		}
		if err := tx.InsertEntries(ctx, entries); err != nil {
			return err
		}
		if err := tx.SetStatus(ctx, doc.ID, documents.StatusDraft, documents.StatusPosted, actorID); err != nil {
			return err
		}
		if err := tx.RecordAudit(ctx, auditEntry(actorID, shared.AuditActionPost, doc, map[string]any{
			"result":  string(ResultPosted),
			"entries": len(entries),
		})); err != nil {
			return err
		}
		doc.Status = documents.StatusPosted
		result = Result{Status: ResultPosted, Document: doc, Entries: entries, Warnings: warnings}
		return nil
	})
	if err != nil {
		if opts.IdempotencyKey != "" && s.idempotency != nil {
			_ = s.idempotency.Delete(ctx, opts.IdempotencyKey)
		}
		s.auditDenial(ctx, actorID, docID, err)
		return Result{}, err
	}
	s.invalidate(ctx, result.Entries)
	return result, nil
}

// Approve posts a PENDING_APPROVAL document. Tolerance routing does not apply
// a second time; the approver has accepted the deltas.
func (s *Service) Approve(ctx context.Context, scope shared.Scope, docID int64, opts PostOptions) (Result, error) {
	actorID, err := shared.ActorFromContext(ctx)
	if err != nil {
		return Result{}, err
	}
	policy := s.policy
	if opts.Policy != "" {
		policy = opts.Policy
	}

	var result Result
	err = s.store.RunInTx(ctx, func(tx Tx) error {
		doc, err := tx.GetDocumentForUpdate(ctx, scope, docID)
		if err != nil {
			return err
		}
		if doc.Status != documents.StatusPendingApproval {
			if doc.Status.Final() {
				return ErrAlreadyFinal
			}
			return ErrNotPending
		}
		if err := s.checkGates(ctx, tx, doc, actorID); err != nil {
			return err
		}
		if err := lockStockScopes(ctx, tx, doc); err != nil {
			return err
		}
		entries, warnings, err := s.buildEntries(ctx, tx, doc, actorID, policy)
		if err != nil {
			return err
		}
		if err := tx.InsertEntries(ctx, entries); err != nil {
			return err
		}
		if err := tx.SetStatus(ctx, doc.ID, documents.StatusPendingApproval, documents.StatusPosted, actorID); err != nil {
			return err
		}
		if err := tx.RecordAudit(ctx, auditEntry(actorID, shared.AuditActionApprove, doc, map[string]any{
			"entries": len(entries),
		})); err != nil {
			return err
		}
		doc.Status = documents.StatusPosted
		result = Result{Status: ResultPosted, Document: doc, Entries: entries, Warnings: warnings}
		return nil
	})
	if err != nil {
		s.auditDenial(ctx, actorID, docID, err)
		return Result{}, err
	}
	s.invalidate(ctx, result.Entries)
	return result, nil
}

// Reject moves PENDING_APPROVAL to REJECTED with zero ledger writes.
func (s *Service) Reject(ctx context.Context, scope shared.Scope, docID int64, reason string) (documents.Document, error) {
	actorID, err := shared.ActorFromContext(ctx)
	if err != nil {
		return documents.Document{}, err
	}
	var doc documents.Document
	err = s.store.RunInTx(ctx, func(tx Tx) error {
		var err error
		doc, err = tx.GetDocumentForUpdate(ctx, scope, docID)
		if err != nil {
			return err
		}
		if doc.Status != documents.StatusPendingApproval {
			if doc.Status.Final() {
				return ErrAlreadyFinal
			}
			return ErrNotPending
		}
		if err := tx.SetStatus(ctx, doc.ID, documents.StatusPendingApproval, documents.StatusRejected, 0); err != nil {
			return err
		}
		if err := tx.RecordAudit(ctx, auditEntry(actorID, shared.AuditActionReject, doc, map[string]any{
			"reason": reason,
		})); err != nil {
			return err
		}
		doc.Status = documents.StatusRejected
		return nil
	})
	if err != nil {
		return documents.Document{}, err
	}
	return doc, nil
}

// checkGates verifies locks and permissions before any movement work.
func (s *Service) checkGates(ctx context.Context, tx Tx, doc documents.Document, actorID int64) error {
	locked, err := tx.DocumentLocked(ctx, doc.ID)
	if err != nil {
		return err
	}
	if locked {
		return locks.ErrDocumentLocked
	}
	status, err := tx.PeriodStatus(ctx, doc.Scope, doc.DocDate)
	if err != nil {
		return err
	}
	if status == locks.PeriodLocked {
		return locks.ErrPeriodLocked
	}
	warehouses := []int64{doc.WarehouseID}
	if doc.Type == documents.TypeTransfer {
		warehouses = append(warehouses, doc.DestWarehouseID)
	}
	for _, warehouseID := range warehouses {
		ok, err := tx.HasPostPermission(ctx, actorID, warehouseID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrPermissionDenied
		}
	}
	return nil
}

// stockKeyFor builds the source stock key for one document line.
func stockKeyFor(doc documents.Document, line documents.Line) ledger.StockKey {
	return ledger.StockKey{
		Scope:       doc.Scope,
		WarehouseID: doc.WarehouseID,
		LocationID:  line.LocationID,
		ItemID:      line.ItemID,
		LotID:       line.LotID,
		SerialID:    line.SerialID,
	}
}

// lockStockScopes locks every stock scope the document touches before any
// balance read. The document row lock does not stop two different documents
// from draining the same scope: repeatable read lets both aggregate the same
// on-hand and both commit outflow. Keys are locked in sorted order so
// concurrent documents with overlapping scopes cannot deadlock.
func lockStockScopes(ctx context.Context, tx Tx, doc documents.Document) error {
	keys := make(map[string]ledger.StockKey, len(doc.Lines))
	for _, line := range doc.Lines {
		key := stockKeyFor(doc, line)
		keys[key.CacheKey()] = key
		if doc.Type == documents.TypeTransfer {
			dest := key
			dest.WarehouseID = doc.DestWarehouseID
			dest.LocationID = line.DestLocationID
			keys[dest.CacheKey()] = dest
		}
	}
	ordered := make([]string, 0, len(keys))
	for k := range keys {
		ordered = append(ordered, k)
	}
	sort.Strings(ordered)
	for _, k := range ordered {
		if err := tx.LockStockKey(ctx, keys[k]); err != nil {
			return err
		}
	}
	return nil
}

// docFlows accumulates the document's own pending movements per stock key.
// Entries are only inserted after the whole document is built, so later lines
// must see earlier lines' outflow here rather than in the ledger.
type docFlows struct {
	net      map[string]decimal.Decimal
	consumed map[string]decimal.Decimal
}

func newDocFlows() *docFlows {
	return &docFlows{
		net:      make(map[string]decimal.Decimal),
		consumed: make(map[string]decimal.Decimal),
	}
}

func (f *docFlows) netFor(key ledger.StockKey) decimal.Decimal {
	return f.net[key.CacheKey()]
}

func (f *docFlows) consumedFor(key ledger.StockKey) decimal.Decimal {
	return f.consumed[key.CacheKey()]
}

func (f *docFlows) in(key ledger.StockKey, qty decimal.Decimal) {
	k := key.CacheKey()
	f.net[k] = f.net[k].Add(qty)
}

func (f *docFlows) out(key ledger.StockKey, qty decimal.Decimal) {
	k := key.CacheKey()
	f.net[k] = f.net[k].Sub(qty)
	f.consumed[k] = f.consumed[k].Add(qty)
}

// buildEntries produces the ledger entries for the document under the given
// policy. No writes happen here; the caller inserts the batch.
func (s *Service) buildEntries(ctx context.Context, tx Tx, doc documents.Document, actorID int64, policy NegativeStockPolicy) ([]ledger.Entry, []string, error) {
	if len(doc.Lines) == 0 {
		return nil, nil, documents.ErrNoLines
	}

	var landedShares []decimal.Decimal
	if doc.Type == documents.TypeGoodsReceipt && !doc.LandedCost.IsZero() {
		qtys := make([]decimal.Decimal, len(doc.Lines))
		for i, line := range doc.Lines {
			qtys[i] = line.Qty
		}
		landedShares = costing.AllocateLanded(doc.LandedCost, qtys)
	}

	flows := newDocFlows()
	var entries []ledger.Entry
	var warnings []string
	for i, line := range doc.Lines {
		lineNo := i + 1
		item, err := tx.GetItem(ctx, line.ItemID)
		if err != nil {
			return nil, nil, err
		}
		if err := checkTracking(item, line, lineNo); err != nil {
			return nil, nil, err
		}

		key := stockKeyFor(doc, line)

		switch doc.Type {
		case documents.TypeGoodsReceipt:
			unitCost := line.UnitCost
			if landedShares != nil && line.Qty.IsPositive() {
				unitCost = unitCost.Add(landedShares[i].DivRound(line.Qty, 6))
			}
			entries = append(entries, inEntry(key, doc, line.Qty, unitCost))
			flows.in(key, line.Qty)

		case documents.TypeShipment:
			unitCost, lineWarnings, err := s.priceOut(ctx, tx, flows, key, line.Qty, item.CostMethod, policy, doc, actorID, lineNo)
			if err != nil {
				return nil, nil, err
			}
			warnings = append(warnings, lineWarnings...)
			entries = append(entries, outEntry(key, doc, line.Qty, unitCost))
			flows.out(key, line.Qty)

		case documents.TypeTransfer:
			unitCost, lineWarnings, err := s.priceOut(ctx, tx, flows, key, line.Qty, item.CostMethod, policy, doc, actorID, lineNo)
			if err != nil {
				return nil, nil, err
			}
			warnings = append(warnings, lineWarnings...)
			destKey := key
			destKey.WarehouseID = doc.DestWarehouseID
			destKey.LocationID = line.DestLocationID
			entries = append(entries,
				outEntry(key, doc, line.Qty, unitCost),
				inEntry(destKey, doc, line.Qty, unitCost))
			flows.out(key, line.Qty)
			flows.in(destKey, line.Qty)

		case documents.TypeCount:
			onHand, err := tx.OnHand(ctx, key)
			if err != nil {
				return nil, nil, err
			}
			onHand = onHand.Add(flows.netFor(key))
			delta := line.CountedQty.Sub(onHand)
			switch {
			case delta.IsPositive():
				layers, _, err := tx.Layers(ctx, key)
				if err != nil {
					return nil, nil, err
				}
				entries = append(entries, inEntry(key, doc, delta, costing.WeightedAverage(layers)))
				flows.in(key, delta)
			case delta.IsNegative():
				qty := delta.Neg()
				unitCost, lineWarnings, err := s.priceOut(ctx, tx, flows, key, qty, item.CostMethod, policy, doc, actorID, lineNo)
				if err != nil {
					return nil, nil, err
				}
				warnings = append(warnings, lineWarnings...)
				entries = append(entries, outEntry(key, doc, qty, unitCost))
				flows.out(key, qty)
			}
		}
	}
	return entries, warnings, nil
}

// priceOut runs the availability gate and prices an outbound movement. Both
// the gate and FIFO consumption account for the document's own earlier lines
// through flows.
func (s *Service) priceOut(ctx context.Context, tx Tx, flows *docFlows, key ledger.StockKey, qty decimal.Decimal, method items.CostMethod, policy NegativeStockPolicy, doc documents.Document, actorID int64, lineNo int) (decimal.Decimal, []string, error) {
	onHand, err := tx.OnHand(ctx, key)
	if err != nil {
		return decimal.Zero, nil, err
	}
	holds, err := tx.Holds(ctx, key)
	if err != nil {
		return decimal.Zero, nil, err
	}
	available := onHand.Add(flows.netFor(key)).Sub(holds.Total())

	var warnings []string
	if qty.GreaterThan(available) {
		switch policy {
		case PolicyForbid:
			return decimal.Zero, nil, ErrNegativeStock
		case PolicyWarn:
			warnings = append(warnings, "line "+strconv.Itoa(lineNo)+": available "+available.String()+" below requested "+qty.String())
			if err := tx.RecordAudit(ctx, auditEntry(actorID, shared.AuditActionNegativeWarn, doc, map[string]any{
				"line":      lineNo,
				"item_id":   key.ItemID,
				"requested": qty.String(),
				"available": available.String(),
			})); err != nil {
				return decimal.Zero, nil, err
			}
		}
	}

	layers, consumed, err := tx.Layers(ctx, key)
	if err != nil {
		return decimal.Zero, nil, err
	}
	consumed = consumed.Add(flows.consumedFor(key))
	if method == items.CostMethodWeightedAverage {
		return costing.WeightedAverage(layers), warnings, nil
	}

	total, err := costing.FIFOCost(layers, consumed, qty)
	if errors.Is(err, costing.ErrInsufficientLayers) {
		// Layers cannot shortfall when the availability gate passed, so this
		// only happens under WARN or ALLOW. Price what the layers cover and
		// the remainder at their weighted average.
		layerQty := decimal.Zero
		for _, l := range layers {
			layerQty = layerQty.Add(l.Qty)
		}
		remainderFrom := layerQty.Sub(consumed)
		if remainderFrom.IsNegative() {
			remainderFrom = decimal.Zero
		}
		priced := decimal.Zero
		if remainderFrom.IsPositive() {
			priced, err = costing.FIFOCost(layers, consumed, remainderFrom)
			if err != nil {
				return decimal.Zero, nil, err
			}
		}
		shortfall := qty.Sub(remainderFrom)
		total = priced.Add(shortfall.Mul(costing.WeightedAverage(layers)))
	} else if err != nil {
		return decimal.Zero, nil, err
	}
	return total.DivRound(qty, 6), warnings, nil
}

func checkTracking(item ItemInfo, line documents.Line, lineNo int) error {
	switch {
	case item.TrackLot && line.LotID == 0:
		return &ValidationError{Line: lineNo, Reason: "lot required for lot-tracked item"}
	case !item.TrackLot && line.LotID != 0:
		return &ValidationError{Line: lineNo, Reason: "item is not lot-tracked"}
	case item.TrackSerial && line.SerialID == 0:
		return &ValidationError{Line: lineNo, Reason: "serial required for serial-tracked item"}
	case !item.TrackSerial && line.SerialID != 0:
		return &ValidationError{Line: lineNo, Reason: "item is not serial-tracked"}
	}
	return nil
}

// toleranceExceeded reports whether any count line's delta magnitude exceeds
// the document tolerance.
func (s *Service) toleranceExceeded(ctx context.Context, tx Tx, doc documents.Document) (bool, error) {
	for _, line := range doc.Lines {
		onHand, err := tx.OnHand(ctx, stockKeyFor(doc, line))
		if err != nil {
			return false, err
		}
		if line.CountedQty.Sub(onHand).Abs().GreaterThan(doc.ToleranceQty) {
			return true, nil
		}
	}
	return false, nil
}

func inEntry(key ledger.StockKey, doc documents.Document, qty, unitCost decimal.Decimal) ledger.Entry {
	return ledger.Entry{StockKey: key, TxnDate: doc.DocDate, Qty: qty, Direction: ledger.DirectionIn, Cost: unitCost, DocID: doc.ID}
}

func outEntry(key ledger.StockKey, doc documents.Document, qty, unitCost decimal.Decimal) ledger.Entry {
	return ledger.Entry{StockKey: key, TxnDate: doc.DocDate, Qty: qty, Direction: ledger.DirectionOut, Cost: unitCost, DocID: doc.ID}
}

func auditEntry(actorID int64, action string, doc documents.Document, detail map[string]any) shared.AuditLog {
	if detail == nil {
		detail = map[string]any{}
	}
	detail["number"] = doc.Number
	detail["type"] = string(doc.Type)
	return shared.AuditLog{
		ActorID:    actorID,
		Action:     action,
		EntityType: "document",
		EntityID:   strconv.FormatInt(doc.ID, 10),
		Detail:     detail,
		At:         time.Now().UTC(),
	}
}

// auditDenial records refusal causes that roll the transaction back.
func (s *Service) auditDenial(ctx context.Context, actorID, docID int64, cause error) {
	var vErr *ValidationError
	denial := errors.Is(cause, locks.ErrPeriodLocked) ||
		errors.Is(cause, locks.ErrDocumentLocked) ||
		errors.Is(cause, ErrPermissionDenied) ||
		errors.Is(cause, ErrNegativeStock) ||
		errors.As(cause, &vErr)
	if !denial || s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:    actorID,
		Action:     shared.AuditActionPostDenied,
		EntityType: "document",
		EntityID:   strconv.FormatInt(docID, 10),
		Detail:     map[string]any{"reason": cause.Error()},
		At:         time.Now().UTC(),
	})
	if err != nil {
		s.logger.Error("audit denial failed", slog.Any("error", err))
	}
}

func (s *Service) invalidate(ctx context.Context, entries []ledger.Entry) {
	if s.invalidator == nil || len(entries) == 0 {
		return
	}
	keys := make([]ledger.StockKey, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.StockKey)
	}
	if err := s.invalidator.Invalidate(ctx, keys); err != nil {
		s.logger.Warn("on-hand cache invalidation failed", slog.Any("error", err))
	}
}
