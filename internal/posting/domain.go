// Package posting turns draft documents into ledger entries. All effects of a
// post (entries, status flip, audit) commit atomically or not at all.
package posting

import (
	"errors"
	"fmt"

	"github.com/meridian-wms/meridian/internal/documents"
	"github.com/meridian-wms/meridian/internal/ledger"
	"github.com/meridian-wms/meridian/internal/masterdata/items"
)

// NegativeStockPolicy decides what happens when an outbound movement exceeds
// available quantity (on-hand minus reservations and blocks).
type NegativeStockPolicy string

const (
	PolicyForbid NegativeStockPolicy = "FORBID"
	PolicyWarn   NegativeStockPolicy = "WARN"
	PolicyAllow  NegativeStockPolicy = "ALLOW"
)

// ParsePolicy validates a policy string from config or request.
func ParsePolicy(raw string) (NegativeStockPolicy, error) {
	switch p := NegativeStockPolicy(raw); p {
	case PolicyForbid, PolicyWarn, PolicyAllow:
		return p, nil
	}
	return "", fmt.Errorf("posting: unknown negative stock policy %q", raw)
}

// ResultStatus is the outcome of a post attempt that did not error.
type ResultStatus string

const (
	// ResultPosted means ledger entries were written and the document is POSTED.
	ResultPosted ResultStatus = "POSTED"
	// ResultPendingApproval means the document was routed to approval with no
	// ledger writes. This is a normal outcome, not an error.
	ResultPendingApproval ResultStatus = "PENDING_APPROVAL"
)

// Result reports the outcome of Post or Approve.
type Result struct {
	Status   ResultStatus      `json:"status"`
	Document documents.Document `json:"document"`
	Entries  []ledger.Entry    `json:"entries,omitempty"`
	Warnings []string          `json:"warnings,omitempty"`
}

// ItemInfo is what the engine needs to know about an item while posting.
type ItemInfo struct {
	TrackLot    bool
	TrackSerial bool
	CostMethod  items.CostMethod
}

var (
	// ErrNegativeStock indicates an outbound line exceeds available quantity
	// under the FORBID policy.
	ErrNegativeStock = errors.New("posting: insufficient available stock")
	// ErrAlreadyFinal indicates the document is POSTED or REJECTED.
	ErrAlreadyFinal = errors.New("posting: document already final")
	// ErrPendingApproval indicates Post was called on a document awaiting
	// approval; use Approve or Reject instead.
	ErrPendingApproval = errors.New("posting: document is pending approval")
	// ErrNotPending indicates Approve/Reject on a document not awaiting approval.
	ErrNotPending = errors.New("posting: document is not pending approval")
	// ErrPermissionDenied indicates the actor lacks the post capability on an
	// involved warehouse.
	ErrPermissionDenied = errors.New("posting: permission denied")
)

// ValidationError reports a line-level posting failure.
type ValidationError struct {
	Line   int
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("posting: line %d: %s", e.Line, e.Reason)
}
