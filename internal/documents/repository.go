package documents

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-wms/meridian/internal/platform/db"
	"github.com/meridian-wms/meridian/internal/shared"
)

// Repository persists documents and allocates numbers from doc_series.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// NextNumber bumps the series counter and returns the allocated sequence.
// Upsert keeps the row creation race-free; the row update serialises
// concurrent allocations on the counter row.
func NextNumber(ctx context.Context, tx pgx.Tx, scope shared.Scope, docType DocType, series string, year int) (int64, error) {
	var seq int64
	err := tx.QueryRow(ctx, `INSERT INTO doc_series (company_id, branch_id, doc_type, series, year, counter)
VALUES ($1,$2,$3,$4,$5,1)
ON CONFLICT (company_id, branch_id, doc_type, series, year)
DO UPDATE SET counter = doc_series.counter + 1
RETURNING counter`,
		scope.CompanyID, scope.BranchID, docType, series, year).Scan(&seq)
	return seq, err
}

// Create inserts a document with its lines and an allocated number in one
// transaction.
func (r *Repository) Create(ctx context.Context, doc Document) (Document, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		year := doc.DocDate.Year()
		seq, err := NextNumber(ctx, tx, doc.Scope, doc.Type, doc.Series, year)
		if err != nil {
			return err
		}
		doc.Number = FormatNumber(doc.Type, doc.Series, year, seq)
		now := time.Now().UTC()
		doc.CreatedAt = now
		doc.UpdatedAt = now

		err = tx.QueryRow(ctx, `INSERT INTO documents
  (company_id, branch_id, doc_type, series, number, doc_date, status, warehouse_id, dest_warehouse_id,
   landed_cost, tolerance_qty, external_ref, note, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$15) RETURNING id`,
			doc.Scope.CompanyID, doc.Scope.BranchID, doc.Type, doc.Series, doc.Number, doc.DocDate,
			doc.Status, doc.WarehouseID, nullID(doc.DestWarehouseID), doc.LandedCost, doc.ToleranceQty,
			doc.ExternalRef, doc.Note, doc.CreatedBy, now).Scan(&doc.ID)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return errors.New("documents: number collision, retry")
			}
			return err
		}
		return insertLines(ctx, tx, doc.ID, doc.Lines)
	})
	if err != nil {
		return Document{}, err
	}
	return r.Get(ctx, doc.Scope, doc.ID)
}

// ReplaceLines swaps a draft's lines inside one transaction.
func (r *Repository) ReplaceLines(ctx context.Context, documentID int64, lines []Line) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM document_lines WHERE document_id=$1`, documentID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE documents SET updated_at=NOW() WHERE id=$1`, documentID); err != nil {
			return err
		}
		return insertLines(ctx, tx, documentID, lines)
	})
}

func insertLines(ctx context.Context, tx pgx.Tx, documentID int64, lines []Line) error {
	for i, line := range lines {
		_, err := tx.Exec(ctx, `INSERT INTO document_lines
  (document_id, line_no, item_id, location_id, dest_location_id, lot_id, serial_id, qty, unit_cost, counted_qty)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			documentID, i+1, line.ItemID, line.LocationID, nullID(line.DestLocationID),
			nullID(line.LotID), nullID(line.SerialID), line.Qty, line.UnitCost, line.CountedQty)
		if err != nil {
			return err
		}
	}
	return nil
}

const docColumns = `id, company_id, branch_id, doc_type, series, number, doc_date, status, warehouse_id,
COALESCE(dest_warehouse_id, 0), landed_cost, tolerance_qty, external_ref, note, created_by, created_at,
updated_at, COALESCE(posted_by, 0), posted_at`

func scanDocument(row pgx.Row) (Document, error) {
	var doc Document
	err := row.Scan(&doc.ID, &doc.Scope.CompanyID, &doc.Scope.BranchID, &doc.Type, &doc.Series,
		&doc.Number, &doc.DocDate, &doc.Status, &doc.WarehouseID, &doc.DestWarehouseID,
		&doc.LandedCost, &doc.ToleranceQty, &doc.ExternalRef, &doc.Note, &doc.CreatedBy,
		&doc.CreatedAt, &doc.UpdatedAt, &doc.PostedBy, &doc.PostedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Get loads a document with lines, scoped.
func (r *Repository) Get(ctx context.Context, scope shared.Scope, id int64) (Document, error) {
	doc, err := scanDocument(r.pool.QueryRow(ctx, `SELECT `+docColumns+` FROM documents
WHERE id=$1 AND company_id=$2 AND branch_id=$3`, id, scope.CompanyID, scope.BranchID))
	if err != nil {
		return Document{}, err
	}
	doc.Lines, err = r.loadLines(ctx, doc.ID)
	return doc, err
}

func (r *Repository) loadLines(ctx context.Context, documentID int64) ([]Line, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, document_id, line_no, item_id, location_id,
COALESCE(dest_location_id, 0), COALESCE(lot_id, 0), COALESCE(serial_id, 0), qty, unit_cost, counted_qty
FROM document_lines WHERE document_id=$1 ORDER BY line_no`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.DocumentID, &line.LineNo, &line.ItemID, &line.LocationID,
			&line.DestLocationID, &line.LotID, &line.SerialID, &line.Qty, &line.UnitCost, &line.CountedQty); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// List returns document headers of a scope filtered by type and status.
func (r *Repository) List(ctx context.Context, scope shared.Scope, docType DocType, status Status, limit, offset int) ([]Document, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+docColumns+` FROM documents
WHERE company_id=$1 AND branch_id=$2
  AND ($3 = '' OR doc_type = $3)
  AND ($4 = '' OR status = $4)
ORDER BY doc_date DESC, id DESC
LIMIT $5 OFFSET $6`,
		scope.CompanyID, scope.BranchID, string(docType), string(status), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// UpdateHeader rewrites mutable header fields of a draft.
func (r *Repository) UpdateHeader(ctx context.Context, doc Document) error {
	tag, err := r.pool.Exec(ctx, `UPDATE documents SET
  doc_date=$2, warehouse_id=$3, dest_warehouse_id=$4, landed_cost=$5, tolerance_qty=$6, note=$7, updated_at=NOW()
WHERE id=$1 AND status='DRAFT'`,
		doc.ID, doc.DocDate, doc.WarehouseID, nullID(doc.DestWarehouseID), doc.LandedCost, doc.ToleranceQty, doc.Note)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotDraft
	}
	return nil
}

// SetStatus records a status transition checked by the caller.
func (r *Repository) SetStatus(ctx context.Context, id int64, from, to Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE documents SET status=$3, updated_at=NOW() WHERE id=$1 AND status=$2`, id, from, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
