package repository

import (
	"context"

	"github.com/joseph-ayodele/legal-docs/internal/entity"
)

// DocumentRepository stores uploaded documents. Update enforces the status
// lifecycle atomically: a status change that constants.CanTransition rejects
// fails with common.ErrInvalidTransition and writes nothing.
type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.Document) error
	Get(ctx context.Context, id string) (*entity.Document, error)
	List(ctx context.Context) ([]*entity.Document, error)
	Update(ctx context.Context, id string, u entity.DocumentUpdate) (*entity.Document, error)
	// Delete removes the document and its fact record.
	Delete(ctx context.Context, id string) error
}

// FactRepository stores at most one fact record per document.
type FactRepository interface {
	// Save replaces any record the document already has.
	Save(ctx context.Context, rec *entity.FactRecord) error
	Get(ctx context.Context, id string) (*entity.FactRecord, error)
	GetByDocument(ctx context.Context, documentID string) (*entity.FactRecord, error)
	List(ctx context.Context) ([]*entity.FactRecord, error)
	// Patch applies a partial update and returns the stored result.
	Patch(ctx context.Context, id string, patch map[string]any) (*entity.FactRecord, error)
	DeleteByDocument(ctx context.Context, documentID string) error
}
