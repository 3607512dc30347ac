package locks

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/meridian-wms/meridian/internal/shared"
)

// RepositoryPort abstracts lock persistence for the service.
type RepositoryPort interface {
	GetPeriod(ctx context.Context, scope shared.Scope, year, month int) (Period, error)
	SetPeriodStatus(ctx context.Context, scope shared.Scope, year, month int, status PeriodStatus, actorID int64) error
	LockDocument(ctx context.Context, lock DocLock) (DocLock, error)
	UnlockDocument(ctx context.Context, documentID int64) error
	PeriodStatus(ctx context.Context, scope shared.Scope, date time.Time) (PeriodStatus, error)
	DocumentLock(ctx context.Context, documentID int64) (bool, error)
}

// AuditPort records lock events.
type AuditPort interface {
	Record(ctx context.Context, entry shared.AuditLog) error
}

// Service coordinates period and document lock transitions.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// LockPeriod closes a period against posting.
func (s *Service) LockPeriod(ctx context.Context, scope shared.Scope, year, month int) (Period, error) {
	return s.transitionPeriod(ctx, scope, year, month, PeriodLocked, false)
}

// ReopenPeriod reopens a locked period. Caller must have established the
// override permission; the flag is threaded through explicitly.
func (s *Service) ReopenPeriod(ctx context.Context, scope shared.Scope, year, month int, override bool) (Period, error) {
	return s.transitionPeriod(ctx, scope, year, month, PeriodOpen, override)
}

func (s *Service) transitionPeriod(ctx context.Context, scope shared.Scope, year, month int, to PeriodStatus, override bool) (Period, error) {
	if err := scope.Validate(); err != nil {
		return Period{}, err
	}
	if year < 2000 || year > 2200 || month < 1 || month > 12 {
		return Period{}, errors.New("locks: invalid period")
	}
	actorID, err := shared.ActorFromContext(ctx)
	if err != nil {
		return Period{}, err
	}
	period, err := s.repo.GetPeriod(ctx, scope, year, month)
	if err != nil {
		return Period{}, err
	}
	if err := ValidatePeriodTransition(period.Status, to, override); err != nil {
		return Period{}, err
	}
	if err := s.repo.SetPeriodStatus(ctx, scope, year, month, to, actorID); err != nil {
		return Period{}, err
	}
	period.Status = to
	period.LockedBy = actorID
	action := shared.AuditActionLock
	if to == PeriodOpen {
		action = shared.AuditActionUnlock
	}
	s.recordAudit(ctx, actorID, action, "period", period.ID, map[string]any{
		"year": year, "month": month, "override": override,
	})
	return period, nil
}

// GetPeriod reads a period, implicit OPEN when never touched.
func (s *Service) GetPeriod(ctx context.Context, scope shared.Scope, year, month int) (Period, error) {
	if err := scope.Validate(); err != nil {
		return Period{}, err
	}
	return s.repo.GetPeriod(ctx, scope, year, month)
}

// LockDocument pins one document against posting.
func (s *Service) LockDocument(ctx context.Context, documentID int64, reason string) (DocLock, error) {
	if documentID <= 0 {
		return DocLock{}, errors.New("locks: document required")
	}
	actorID, err := shared.ActorFromContext(ctx)
	if err != nil {
		return DocLock{}, err
	}
	lock, err := s.repo.LockDocument(ctx, DocLock{DocumentID: documentID, Reason: reason, LockedBy: actorID})
	if err != nil {
		return DocLock{}, err
	}
	s.recordAudit(ctx, actorID, shared.AuditActionLock, "document", documentID, map[string]any{"reason": reason})
	return lock, nil
}

// UnlockDocument lifts an active document lock.
func (s *Service) UnlockDocument(ctx context.Context, documentID int64) error {
	actorID, err := shared.ActorFromContext(ctx)
	if err != nil {
		return err
	}
	if err := s.repo.UnlockDocument(ctx, documentID); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, shared.AuditActionUnlock, "document", documentID, nil)
	return nil
}

// CheckPostable verifies neither the document's period nor the document itself
// blocks posting. The posting engine repeats these checks inside its
// transaction via PeriodStatusFor and DocumentLocked.
func (s *Service) CheckPostable(ctx context.Context, scope shared.Scope, documentID int64, docDate time.Time) error {
	status, err := s.repo.PeriodStatus(ctx, scope, docDate)
	if err != nil {
		return err
	}
	if status == PeriodLocked {
		return ErrPeriodLocked
	}
	locked, err := s.repo.DocumentLock(ctx, documentID)
	if err != nil {
		return err
	}
	if locked {
		return ErrDocumentLocked
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, entityType string, entityID int64, detail map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   strconv.FormatInt(entityID, 10),
		Detail:     detail,
		At:         time.Now().UTC(),
	})
}
