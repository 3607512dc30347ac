// Package locks manages period locks and per-document locks. Posting a
// document whose date falls in a locked period, or a document that is itself
// locked, is refused unless the actor carries the override permission.
package locks

import (
	"errors"
	"fmt"
	"time"

	"github.com/meridian-wms/meridian/internal/shared"
)

// PeriodStatus enumerates period lifecycle states.
type PeriodStatus string

const (
	PeriodOpen   PeriodStatus = "OPEN"
	PeriodLocked PeriodStatus = "LOCKED"
)

// Period is one calendar month of one company/branch scope.
type Period struct {
	ID       int64        `json:"id"`
	Scope    shared.Scope `json:"scope"`
	Year     int          `json:"year"`
	Month    int          `json:"month"`
	Status   PeriodStatus `json:"status"`
	LockedBy int64        `json:"locked_by,omitempty"`
	LockedAt *time.Time   `json:"locked_at,omitempty"`
}

// Contains reports whether the date falls inside the period.
func (p Period) Contains(date time.Time) bool {
	return date.Year() == p.Year && int(date.Month()) == p.Month
}

// DocLock pins one document against posting regardless of period state.
type DocLock struct {
	ID         int64     `json:"id"`
	DocumentID int64     `json:"document_id"`
	Reason     string    `json:"reason"`
	LockedBy   int64     `json:"locked_by"`
	LockedAt   time.Time `json:"locked_at"`
}

var (
	// ErrPeriodLocked indicates the document date falls in a locked period.
	ErrPeriodLocked = errors.New("locks: period is locked")
	// ErrDocumentLocked indicates the document carries an active lock.
	ErrDocumentLocked = errors.New("locks: document is locked")
	// ErrAlreadyLocked indicates a redundant lock request.
	ErrAlreadyLocked = errors.New("locks: already locked")
	// ErrNotLocked indicates an unlock of something not locked.
	ErrNotLocked = errors.New("locks: not locked")
)

// ValidatePeriodTransition checks a period status change. Reopening a locked
// period requires the override flag.
func ValidatePeriodTransition(from, to PeriodStatus, override bool) error {
	switch {
	case from == to:
		if to == PeriodLocked {
			return ErrAlreadyLocked
		}
		return ErrNotLocked
	case from == PeriodOpen && to == PeriodLocked:
		return nil
	case from == PeriodLocked && to == PeriodOpen:
		if !override {
			return fmt.Errorf("locks: reopening a locked period requires override")
		}
		return nil
	default:
		return fmt.Errorf("locks: invalid transition %s -> %s", from, to)
	}
}
