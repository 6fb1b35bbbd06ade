package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/legal-docs/internal/common"
	"github.com/joseph-ayodele/legal-docs/internal/entity"
)

type sqlFactRepo struct {
	db      *sql.DB
	dialect string
	logger  *slog.Logger
}

func NewSQLFactRepository(db *sql.DB, dialectName string, logger *slog.Logger) FactRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &sqlFactRepo{db: db, dialect: dialectName, logger: logger}
}

func (r *sqlFactRepo) Save(ctx context.Context, rec *entity.FactRecord) error {
	fields, extra, err := encodeFacts(rec)
	if err != nil {
		return err
	}
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		dq, dargs := entsql.Dialect(r.dialect).Delete(factsTable).Where(entsql.EQ("document_id", rec.DocumentID)).Query()
		if _, err := tx.ExecContext(ctx, dq, dargs...); err != nil {
			return fmt.Errorf("%w: replace facts: %v", common.ErrDatabase, err)
		}
		iq, iargs := entsql.Dialect(r.dialect).
			Insert(factsTable).
			Columns(factColumns...).
			Values(rec.ID, fields, extra, rec.ExtractedAt.UTC(), rec.UpdatedAt.UTC(), rec.DocumentID).
			Query()
		if _, err := tx.ExecContext(ctx, iq, iargs...); err != nil {
			r.logger.Error("failed to save facts", "document_id", rec.DocumentID, "error", err)
			return fmt.Errorf("%w: insert facts: %v", common.ErrDatabase, err)
		}
		return nil
	})
}

func (r *sqlFactRepo) Get(ctx context.Context, id string) (*entity.FactRecord, error) {
	return r.getWhere(ctx, entsql.EQ("id", id), id)
}

func (r *sqlFactRepo) GetByDocument(ctx context.Context, documentID string) (*entity.FactRecord, error) {
	return r.getWhere(ctx, entsql.EQ("document_id", documentID), documentID)
}

func (r *sqlFactRepo) getWhere(ctx context.Context, p *entsql.Predicate, key string) (*entity.FactRecord, error) {
	q, args := r.selectFacts().Where(p).Query()
	rec, err := scanFacts(r.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundError(common.ErrFactRecordNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get facts: %v", common.ErrDatabase, err)
	}
	return rec, nil
}

func (r *sqlFactRepo) List(ctx context.Context) ([]*entity.FactRecord, error) {
	q, args := r.selectFacts().OrderBy(entsql.Asc("extracted_at"), entsql.Asc("id")).Query()
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list facts: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	out := make([]*entity.FactRecord, 0)
	for rows.Next() {
		rec, err := scanFacts(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan facts: %v", common.ErrDatabase, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *sqlFactRepo) Patch(ctx context.Context, id string, patch map[string]any) (*entity.FactRecord, error) {
	var rec *entity.FactRecord
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		sel := r.selectFacts().Where(entsql.EQ("id", id))
		if r.dialect == dialect.Postgres {
			sel.ForUpdate()
		}
		q, args := sel.Query()
		cur, err := scanFacts(tx.QueryRowContext(ctx, q, args...))
		if errors.Is(err, sql.ErrNoRows) {
			return common.NotFoundError(common.ErrFactRecordNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("%w: load facts: %v", common.ErrDatabase, err)
		}
		if err := cur.ApplyPatch(patch); err != nil {
			return common.InvalidInputError(err.Error())
		}
		cur.UpdatedAt = time.Now().UTC()

		fields, extra, err := encodeFacts(cur)
		if err != nil {
			return err
		}
		uq, uargs := entsql.Dialect(r.dialect).
			Update(factsTable).
			Set("fields", fields).
			Set("additional_info", extra).
			Set("updated_at", cur.UpdatedAt).
			Where(entsql.EQ("id", id)).
			Query()
		if _, err := tx.ExecContext(ctx, uq, uargs...); err != nil {
			return fmt.Errorf("%w: update facts: %v", common.ErrDatabase, err)
		}
		rec = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *sqlFactRepo) DeleteByDocument(ctx context.Context, documentID string) error {
	q, args := entsql.Dialect(r.dialect).Delete(factsTable).Where(entsql.EQ("document_id", documentID)).Query()
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("%w: delete facts: %v", common.ErrDatabase, err)
	}
	return nil
}

func (r *sqlFactRepo) selectFacts() *entsql.Selector {
	return entsql.Dialect(r.dialect).Select(factColumns...).From(entsql.Table(factsTable))
}

// encodeFacts renders the JSON column values. A record without additional
// info stores NULL.
func encodeFacts(rec *entity.FactRecord) (string, any, error) {
	fields, err := json.Marshal(rec.Facts.Map())
	if err != nil {
		return "", nil, fmt.Errorf("encode facts: %w", err)
	}
	if len(rec.AdditionalInfo) == 0 {
		return string(fields), nil, nil
	}
	extra, err := json.Marshal(rec.AdditionalInfo)
	if err != nil {
		return "", nil, fmt.Errorf("encode additional info: %w", err)
	}
	return string(fields), string(extra), nil
}

func scanFacts(row rowScanner) (*entity.FactRecord, error) {
	var (
		rec    entity.FactRecord
		fields []byte
		extra  []byte
	)
	if err := row.Scan(&rec.ID, &fields, &extra, &rec.ExtractedAt, &rec.UpdatedAt, &rec.DocumentID); err != nil {
		return nil, err
	}
	var m map[string]string
	if err := json.Unmarshal(fields, &m); err != nil {
		return nil, fmt.Errorf("decode facts: %w", err)
	}
	rec.Facts = entity.FactsFromMap(m)
	if len(extra) > 0 {
		if err := json.Unmarshal(extra, &rec.AdditionalInfo); err != nil {
			return nil, fmt.Errorf("decode additional info: %w", err)
		}
	}
	return &rec, nil
}
