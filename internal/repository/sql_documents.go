package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/legal-docs/constants"
	"github.com/joseph-ayodele/legal-docs/internal/common"
	"github.com/joseph-ayodele/legal-docs/internal/entity"
)

type rowScanner interface {
	Scan(dest ...any) error
}

type sqlDocumentRepo struct {
	db      *sql.DB
	dialect string
	logger  *slog.Logger
}

func NewSQLDocumentRepository(db *sql.DB, dialectName string, logger *slog.Logger) DocumentRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &sqlDocumentRepo{db: db, dialect: dialectName, logger: logger}
}

func (r *sqlDocumentRepo) Create(ctx context.Context, doc *entity.Document) error {
	q, args := entsql.Dialect(r.dialect).
		Insert(documentsTable).
		Columns(documentColumns...).
		Values(
			doc.ID, doc.FileName, doc.OriginalName, doc.FileType, doc.FileSize, doc.UploadedAt.UTC(),
			string(doc.Status), strArg(doc.ExtractedText), strArg(doc.ProcessingError),
			strArg(doc.DocumentType), strArg(doc.Category), floatArg(doc.Confidence),
		).
		Query()
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		r.logger.Error("failed to create document", "document_id", doc.ID, "error", err)
		return fmt.Errorf("%w: create document: %v", common.ErrDatabase, err)
	}
	return nil
}

func (r *sqlDocumentRepo) Get(ctx context.Context, id string) (*entity.Document, error) {
	q, args := r.selectDocuments().Where(entsql.EQ("id", id)).Query()
	doc, err := scanDocument(r.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundError(common.ErrDocumentNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get document: %v", common.ErrDatabase, err)
	}
	return doc, nil
}

func (r *sqlDocumentRepo) List(ctx context.Context) ([]*entity.Document, error) {
	q, args := r.selectDocuments().OrderBy(entsql.Desc("uploaded_at"), entsql.Asc("id")).Query()
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list documents: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	out := make([]*entity.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan document: %v", common.ErrDatabase, err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list documents: %v", common.ErrDatabase, err)
	}
	return out, nil
}

func (r *sqlDocumentRepo) Update(ctx context.Context, id string, u entity.DocumentUpdate) (*entity.Document, error) {
	var doc *entity.Document
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		sel := r.selectDocuments().Where(entsql.EQ("id", id))
		if r.dialect == dialect.Postgres {
			sel.ForUpdate()
		}
		q, args := sel.Query()
		cur, err := scanDocument(tx.QueryRowContext(ctx, q, args...))
		if errors.Is(err, sql.ErrNoRows) {
			return common.NotFoundError(common.ErrDocumentNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("%w: load document: %v", common.ErrDatabase, err)
		}
		if u.Status != nil && !constants.CanTransition(cur.Status, *u.Status) {
			return common.InvalidTransitionError(string(cur.Status), string(*u.Status))
		}

		u.Apply(cur)
		uq, uargs := entsql.Dialect(r.dialect).
			Update(documentsTable).
			Set("status", string(cur.Status)).
			Set("extracted_text", strArg(cur.ExtractedText)).
			Set("processing_error", strArg(cur.ProcessingError)).
			Set("document_type", strArg(cur.DocumentType)).
			Set("category", strArg(cur.Category)).
			Set("confidence", floatArg(cur.Confidence)).
			Where(entsql.EQ("id", id)).
			Query()
		if _, err := tx.ExecContext(ctx, uq, uargs...); err != nil {
			return fmt.Errorf("%w: update document: %v", common.ErrDatabase, err)
		}
		doc = cur
		return nil
	})
	if err != nil {
		r.logger.Debug("document update rejected", "document_id", id, "error", err)
		return nil, err
	}
	return doc, nil
}

func (r *sqlDocumentRepo) Delete(ctx context.Context, id string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		fq, fargs := entsql.Dialect(r.dialect).Delete(factsTable).Where(entsql.EQ("document_id", id)).Query()
		if _, err := tx.ExecContext(ctx, fq, fargs...); err != nil {
			return fmt.Errorf("%w: delete facts: %v", common.ErrDatabase, err)
		}
		dq, dargs := entsql.Dialect(r.dialect).Delete(documentsTable).Where(entsql.EQ("id", id)).Query()
		res, err := tx.ExecContext(ctx, dq, dargs...)
		if err != nil {
			return fmt.Errorf("%w: delete document: %v", common.ErrDatabase, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return common.NotFoundError(common.ErrDocumentNotFound, id)
		}
		return nil
	})
}

func (r *sqlDocumentRepo) selectDocuments() *entsql.Selector {
	return entsql.Dialect(r.dialect).Select(documentColumns...).From(entsql.Table(documentsTable))
}

func scanDocument(row rowScanner) (*entity.Document, error) {
	var (
		d                             entity.Document
		status                        string
		text, perr, docType, category sql.NullString
		confidence                    sql.NullFloat64
	)
	if err := row.Scan(
		&d.ID, &d.FileName, &d.OriginalName, &d.FileType, &d.FileSize, &d.UploadedAt,
		&status, &text, &perr, &docType, &category, &confidence,
	); err != nil {
		return nil, err
	}
	d.Status = constants.DocumentStatus(status)
	d.ExtractedText = nullString(text)
	d.ProcessingError = nullString(perr)
	d.DocumentType = nullString(docType)
	d.Category = nullString(category)
	if confidence.Valid {
		c := confidence.Float64
		d.Confidence = &c
	}
	return &d, nil
}

func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", common.ErrDatabase, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", common.ErrDatabase, err)
	}
	return nil
}

func strArg(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func floatArg(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
