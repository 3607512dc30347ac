// Package documents manages stock document lifecycle up to the point of
// posting. Documents are editable while DRAFT; the posting engine owns the
// transition into POSTED.
package documents

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-wms/meridian/internal/shared"
)

// DocType enumerates stock document types.
type DocType string

const (
	TypeGoodsReceipt DocType = "GRN"
	TypeShipment     DocType = "SHIP"
	TypeTransfer     DocType = "TRF"
	TypeCount        DocType = "COUNT"
)

// Valid reports whether the document type is known.
func (t DocType) Valid() bool {
	switch t {
	case TypeGoodsReceipt, TypeShipment, TypeTransfer, TypeCount:
		return true
	}
	return false
}

// Status enumerates document lifecycle states.
type Status string

const (
	StatusDraft           Status = "DRAFT"
	StatusPendingApproval Status = "PENDING_APPROVAL"
	StatusPosted          Status = "POSTED"
	StatusRejected        Status = "REJECTED"
)

// Final reports whether the status admits no further transition.
func (s Status) Final() bool {
	return s == StatusPosted || s == StatusRejected
}

// CanTransition reports whether from may move to to. POSTED and REJECTED are
// terminal; REJECTED documents are not revived, a new draft is cut instead.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusDraft:
		return to == StatusPosted || to == StatusPendingApproval
	case StatusPendingApproval:
		return to == StatusPosted || to == StatusRejected
	default:
		return false
	}
}

// Document is a stock document header. GRN receives into WarehouseID, SHIP
// issues from it, TRF moves from WarehouseID to DestWarehouseID, COUNT adjusts
// WarehouseID toward counted quantities.
type Document struct {
	ID              int64           `json:"id"`
	Scope           shared.Scope    `json:"scope"`
	Type            DocType         `json:"type"`
	Series          string          `json:"series"`
	Number          string          `json:"number"`
	DocDate         time.Time       `json:"doc_date"`
	Status          Status          `json:"status"`
	WarehouseID     int64           `json:"warehouse_id"`
	DestWarehouseID int64           `json:"dest_warehouse_id,omitempty"`
	LandedCost      decimal.Decimal `json:"landed_cost"`
	ToleranceQty    decimal.Decimal `json:"tolerance_qty"`
	ExternalRef     uuid.UUID       `json:"external_ref"`
	Note            string          `json:"note"`
	CreatedBy       int64           `json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	PostedBy        int64           `json:"posted_by,omitempty"`
	PostedAt        *time.Time      `json:"posted_at,omitempty"`
	Lines           []Line          `json:"lines"`
}

// Line is one document line. UnitCost applies to receipts, CountedQty to
// counts; LotID and SerialID are set per the item's tracking flags.
type Line struct {
	ID             int64           `json:"id"`
	DocumentID     int64           `json:"document_id"`
	LineNo         int             `json:"line_no"`
	ItemID         int64           `json:"item_id"`
	LocationID     int64           `json:"location_id"`
	DestLocationID int64           `json:"dest_location_id,omitempty"`
	LotID          int64           `json:"lot_id,omitempty"`
	SerialID       int64           `json:"serial_id,omitempty"`
	Qty            decimal.Decimal `json:"qty"`
	UnitCost       decimal.Decimal `json:"unit_cost"`
	CountedQty     decimal.Decimal `json:"counted_qty"`
}

var (
	// ErrNotFound indicates the document does not exist in scope.
	ErrNotFound = errors.New("documents: not found")
	// ErrNotDraft indicates a mutation on a non-DRAFT document.
	ErrNotDraft = errors.New("documents: document is not a draft")
	// ErrNoLines indicates a document without lines where lines are required.
	ErrNoLines = errors.New("documents: document has no lines")
	// ErrInvalidTransition indicates a forbidden status change.
	ErrInvalidTransition = errors.New("documents: invalid status transition")
)

// FormatNumber renders a document number from its series counter. Numbers are
// unique per company, branch, type, series and year.
func FormatNumber(docType DocType, series string, year int, seq int64) string {
	return fmt.Sprintf("%s-%s-%d-%06d", docType, series, year, seq)
}

// ValidateHeader checks type-specific header constraints.
func ValidateHeader(doc Document) error {
	if err := doc.Scope.Validate(); err != nil {
		return err
	}
	if !doc.Type.Valid() {
		return fmt.Errorf("documents: unknown type %q", doc.Type)
	}
	if doc.WarehouseID <= 0 {
		return errors.New("documents: warehouse required")
	}
	if doc.DocDate.IsZero() {
		return errors.New("documents: document date required")
	}
	switch doc.Type {
	case TypeTransfer:
		if doc.DestWarehouseID <= 0 {
			return errors.New("documents: transfer requires destination warehouse")
		}
	default:
		if doc.DestWarehouseID != 0 {
			return errors.New("documents: destination warehouse only valid on transfers")
		}
	}
	if doc.LandedCost.IsNegative() {
		return errors.New("documents: landed cost cannot be negative")
	}
	if !doc.LandedCost.IsZero() && doc.Type != TypeGoodsReceipt {
		return errors.New("documents: landed cost only valid on receipts")
	}
	if doc.ToleranceQty.IsNegative() {
		return errors.New("documents: tolerance cannot be negative")
	}
	return nil
}

// ValidateLine checks type-specific line constraints.
func ValidateLine(docType DocType, line Line) error {
	if line.ItemID <= 0 {
		return errors.New("documents: line item required")
	}
	if line.LocationID <= 0 {
		return errors.New("documents: line location required")
	}
	switch docType {
	case TypeCount:
		if line.CountedQty.IsNegative() {
			return errors.New("documents: counted quantity cannot be negative")
		}
	default:
		if !line.Qty.IsPositive() {
			return errors.New("documents: line quantity must be positive")
		}
	}
	if docType == TypeTransfer && line.DestLocationID <= 0 {
		return errors.New("documents: transfer line requires destination location")
	}
	if docType != TypeTransfer && line.DestLocationID != 0 {
		return errors.New("documents: destination location only valid on transfers")
	}
	if line.UnitCost.IsNegative() {
		return errors.New("documents: unit cost cannot be negative")
	}
	if docType == TypeGoodsReceipt && line.UnitCost.IsZero() {
		return errors.New("documents: receipt line requires unit cost")
	}
	if line.SerialID != 0 && !line.Qty.IsZero() && !line.Qty.Equal(decimal.NewFromInt(1)) {
		return errors.New("documents: serial-tracked line quantity must be 1")
	}
	return nil
}
