// Package lots is the lot/serial registry: batch and unit identities for
// tracked items, plus First-Expire-First-Out lot selection.
package lots

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Lot is the batch identity of a lot-tracked item, unique per (item, lot_no).
type Lot struct {
	ID         int64     `json:"id"`
	ItemID     int64     `json:"item_id"`
	LotNo      string    `json:"lot_no"`
	ExpiryDate time.Time `json:"expiry_date"`
	CreatedAt  time.Time `json:"created_at"`
}

// Serial is the unit identity of a serial-tracked item, unique per
// (item, serial_no). Serial quantity is always exactly one.
type Serial struct {
	ID        int64     `json:"id"`
	ItemID    int64     `json:"item_id"`
	SerialNo  string    `json:"serial_no"`
	CreatedAt time.Time `json:"created_at"`
}

// LotBalance pairs a lot with its current on-hand at one warehouse.
type LotBalance struct {
	Lot    Lot
	OnHand decimal.Decimal
}

// ErrNoEligibleLot indicates FEFO found no lot with positive on-hand.
var ErrNoEligibleLot = errors.New("lots: no lot with positive on-hand")

// ErrDuplicate indicates the lot/serial number already exists for the item.
var ErrDuplicate = errors.New("lots: duplicate number for item")
