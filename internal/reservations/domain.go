// Package reservations manages soft holds (reservations) and hard exclusions
// (blocks) on stock. Neither ever writes to the stock ledger or changes
// on-hand; they only reduce what the posting engine may ship.
package reservations

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-wms/meridian/internal/ledger"
)

// Reservation holds quantity aside for a purpose without moving it.
// The sum of active reservations never exceeds on-hand.
type Reservation struct {
	ID int64 `json:"id"`
	ledger.StockKey
	Qty       decimal.Decimal `json:"qty"`
	Note      string          `json:"note"`
	CreatedBy int64           `json:"created_by"`
	CreatedAt time.Time       `json:"created_at"`
}

// Block excludes quantity from shipment (damage, QA hold). Independent of
// reservations; both reduce available-to-ship.
type Block struct {
	ID int64 `json:"id"`
	ledger.StockKey
	Qty       decimal.Decimal `json:"qty"`
	Reason    string          `json:"reason"`
	CreatedBy int64           `json:"created_by"`
	CreatedAt time.Time       `json:"created_at"`
}

// Holds summarises active reservation and block quantities for one scope.
type Holds struct {
	Reserved decimal.Decimal
	Blocked  decimal.Decimal
}

// Total returns the combined held quantity.
func (h Holds) Total() decimal.Decimal {
	return h.Reserved.Add(h.Blocked)
}

var (
	// ErrInvalidQuantity indicates a non-positive hold quantity.
	ErrInvalidQuantity = errors.New("reservations: quantity must be positive")
	// ErrExceedsOnHand indicates the reservation would exceed current on-hand.
	ErrExceedsOnHand = errors.New("reservations: reserved quantity exceeds on-hand")
	// ErrNotFound indicates the hold does not exist or was already released.
	ErrNotFound = errors.New("reservations: hold not found")
)
