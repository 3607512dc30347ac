// Package ledger owns the append-only stock ledger, the single source of
// truth for inventory. On-hand balances are read-time aggregations over the
// ledger, never separately maintained counters, so they cannot drift.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-wms/meridian/internal/shared"
)

// Direction marks an entry as inbound or outbound.
type Direction string

const (
	// DirectionIn adds quantity to the scope.
	DirectionIn Direction = "IN"
	// DirectionOut removes quantity from the scope.
	DirectionOut Direction = "OUT"
)

// StockKey identifies one balance scope. LotID and SerialID are zero for
// untracked items; a zero lot/serial in a query aggregates across all of them.
type StockKey struct {
	Scope       shared.Scope
	WarehouseID int64
	LocationID  int64
	ItemID      int64
	LotID       int64
	SerialID    int64
}

// Validate checks the mandatory scope fields.
func (k StockKey) Validate() error {
	if err := k.Scope.Validate(); err != nil {
		return err
	}
	if k.WarehouseID <= 0 || k.LocationID <= 0 || k.ItemID <= 0 {
		return errors.New("ledger: warehouse, location and item required")
	}
	return nil
}

// CacheKey returns the redis key for this scope's on-hand balance.
func (k StockKey) CacheKey() string {
	return fmt.Sprintf("onhand:%d:%d:%d:%d:%d:%d:%d",
		k.Scope.CompanyID, k.Scope.BranchID, k.WarehouseID, k.LocationID, k.ItemID, k.LotID, k.SerialID)
}

// Entry is one immutable signed movement record. Qty is always positive;
// Direction carries the sign. Cost is the per-unit cost attached by the
// posting engine. Entries are created only inside a posting transaction and
// never updated or deleted afterwards.
type Entry struct {
	ID int64
	StockKey
	TxnDate   time.Time
	Qty       decimal.Decimal
	Direction Direction
	Cost      decimal.Decimal
	DocID     int64
	CreatedAt time.Time
}

// SignedQty returns the quantity with its direction applied.
func (e Entry) SignedQty() decimal.Decimal {
	if e.Direction == DirectionOut {
		return e.Qty.Neg()
	}
	return e.Qty
}

// CardFilter narrows stock card listings.
type CardFilter struct {
	Scope       shared.Scope
	WarehouseID int64
	LocationID  int64
	ItemID      int64
	From        time.Time
	To          time.Time
	Limit       int
}

// Snapshot is one materialised balance row written by the nightly job.
type Snapshot struct {
	StockKey
	Qty    decimal.Decimal
	AsOf   time.Time
}
