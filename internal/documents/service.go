package documents

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/meridian-wms/meridian/internal/shared"
)

// RepositoryPort abstracts document persistence for the service.
type RepositoryPort interface {
	Create(ctx context.Context, doc Document) (Document, error)
	Get(ctx context.Context, scope shared.Scope, id int64) (Document, error)
	List(ctx context.Context, scope shared.Scope, docType DocType, status Status, limit, offset int) ([]Document, error)
	UpdateHeader(ctx context.Context, doc Document) error
	ReplaceLines(ctx context.Context, documentID int64, lines []Line) error
}

// ItemPort answers tracking and costing questions about items.
type ItemPort interface {
	TrackingFlags(ctx context.Context, scope shared.Scope, itemID int64) (trackLot, trackSerial bool, err error)
}

// Service manages draft documents. Status transitions beyond DRAFT belong to
// the posting engine.
type Service struct {
	repo  RepositoryPort
	items ItemPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, items ItemPort) *Service {
	return &Service{repo: repo, items: items}
}

// Create validates and stores a new draft, allocating its number.
func (s *Service) Create(ctx context.Context, doc Document) (Document, error) {
	actorID, err := shared.ActorFromContext(ctx)
	if err != nil {
		return Document{}, err
	}
	doc.Status = StatusDraft
	doc.Series = normalizeSeries(doc.Series)
	if err := ValidateHeader(doc); err != nil {
		return Document{}, err
	}
	if err := s.validateLines(ctx, doc); err != nil {
		return Document{}, err
	}
	if doc.ExternalRef == uuid.Nil {
		doc.ExternalRef = uuid.New()
	}
	doc.CreatedBy = actorID
	return s.repo.Create(ctx, doc)
}

// Get loads a document in scope.
func (s *Service) Get(ctx context.Context, scope shared.Scope, id int64) (Document, error) {
	if err := scope.Validate(); err != nil {
		return Document{}, err
	}
	return s.repo.Get(ctx, scope, id)
}

// List returns document headers.
func (s *Service) List(ctx context.Context, scope shared.Scope, docType DocType, status Status, limit, offset int) ([]Document, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if docType != "" && !docType.Valid() {
		return nil, fmt.Errorf("documents: unknown type %q", docType)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.List(ctx, scope, docType, status, limit, offset)
}

// Update rewrites header and lines of a draft. Type, series and number are
// immutable after creation.
func (s *Service) Update(ctx context.Context, doc Document) (Document, error) {
	current, err := s.repo.Get(ctx, doc.Scope, doc.ID)
	if err != nil {
		return Document{}, err
	}
	if current.Status != StatusDraft {
		return Document{}, ErrNotDraft
	}
	doc.Type = current.Type
	doc.Series = current.Series
	doc.Number = current.Number
	if err := ValidateHeader(doc); err != nil {
		return Document{}, err
	}
	if err := s.validateLines(ctx, doc); err != nil {
		return Document{}, err
	}
	if err := s.repo.UpdateHeader(ctx, doc); err != nil {
		return Document{}, err
	}
	if err := s.repo.ReplaceLines(ctx, doc.ID, doc.Lines); err != nil {
		return Document{}, err
	}
	return s.repo.Get(ctx, doc.Scope, doc.ID)
}

func (s *Service) validateLines(ctx context.Context, doc Document) error {
	if len(doc.Lines) == 0 {
		return ErrNoLines
	}
	for i, line := range doc.Lines {
		if err := ValidateLine(doc.Type, line); err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
		if s.items == nil {
			continue
		}
		trackLot, trackSerial, err := s.items.TrackingFlags(ctx, doc.Scope, line.ItemID)
		if err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
		if trackLot && line.LotID == 0 {
			return fmt.Errorf("line %d: lot-tracked item requires a lot", i+1)
		}
		if !trackLot && line.LotID != 0 {
			return fmt.Errorf("line %d: item is not lot-tracked", i+1)
		}
		if trackSerial && line.SerialID == 0 {
			return fmt.Errorf("line %d: serial-tracked item requires a serial", i+1)
		}
		if !trackSerial && line.SerialID != 0 {
			return fmt.Errorf("line %d: item is not serial-tracked", i+1)
		}
	}
	return nil
}

func normalizeSeries(series string) string {
	series = strings.ToUpper(strings.TrimSpace(series))
	if series == "" {
		return "MAIN"
	}
	return series
}
