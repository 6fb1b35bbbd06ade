package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/legal-docs/constants"
	"github.com/joseph-ayodele/legal-docs/internal/common"
	"github.com/joseph-ayodele/legal-docs/internal/entity"
	"github.com/joseph-ayodele/legal-docs/internal/repository"
	"github.com/joseph-ayodele/legal-docs/internal/storage"
)

// FileStore receives a copy of every ingested file.
type FileStore interface {
	Save(originalName string, r io.Reader) (storage.StoredFile, error)
	Delete(name string) error
}

// Result is the per-file ingest outcome.
type Result struct {
	SourcePath   string
	DocumentID   string
	Deduplicated bool
	SHA256       string
	FileType     string
	Err          string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// Ingestor turns files on the local filesystem into uploaded documents.
// Identical content ingested twice by the same Ingestor maps to the first
// document as long as that document still exists.
type Ingestor struct {
	docs   repository.DocumentRepository
	files  FileStore
	logger *slog.Logger

	mu   sync.Mutex
	seen map[string]string // sha256 -> document id
}

func NewIngestor(docs repository.DocumentRepository, files FileStore, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{docs: docs, files: files, logger: logger, seen: make(map[string]string)}
}

// IngestPath copies one file into the store and records it as uploaded.
func (i *Ingestor) IngestPath(ctx context.Context, path string) (Result, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Result{SourcePath: path}, fmt.Errorf("abs path: %w", err)
	}
	out := Result{SourcePath: abs, FileType: constants.NormalizeExt(filepath.Ext(abs))}
	if !constants.IsAllowedExt(out.FileType) {
		return out, common.UnsupportedFileTypeError(out.FileType)
	}

	f, err := os.Open(abs)
	if err != nil {
		return out, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()

	stored, err := i.files.Save(filepath.Base(abs), f)
	if err != nil {
		return out, err
	}
	out.SHA256 = stored.SHA256

	i.mu.Lock()
	defer i.mu.Unlock()

	if id, ok := i.seen[stored.SHA256]; ok {
		if _, err := i.docs.Get(ctx, id); err == nil {
			if err := i.files.Delete(stored.Name); err != nil {
				i.logger.Warn("ingest.dedup.cleanup_failed", "name", stored.Name, "error", err)
			}
			out.DocumentID, out.Deduplicated = id, true
			i.logger.Info("ingest.path.dedup", "path", abs, "document_id", id)
			return out, nil
		}
		delete(i.seen, stored.SHA256)
	}

	doc := &entity.Document{
		ID:           uuid.NewString(),
		FileName:     stored.Name,
		OriginalName: filepath.Base(abs),
		FileType:     stored.Ext,
		FileSize:     stored.Size,
		UploadedAt:   time.Now().UTC(),
		Status:       constants.StatusUploaded,
	}
	if err := i.docs.Create(ctx, doc); err != nil {
		_ = i.files.Delete(stored.Name)
		return out, err
	}
	i.seen[stored.SHA256] = doc.ID
	out.DocumentID = doc.ID
	i.logger.Info("ingest.path.ok", "path", abs, "document_id", doc.ID, "size", stored.Size)
	return out, nil
}

// Consume ingests every path received until ctx ends or paths closes and
// hands each new document to enqueue.
func (i *Ingestor) Consume(ctx context.Context, paths <-chan string, enqueue func(ctx context.Context, documentID string) error) {
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-paths:
			if !ok {
				return
			}
			r, err := i.IngestPath(ctx, p)
			if err != nil {
				i.logger.Error("ingest.path.failed", "path", p, "error", err)
				continue
			}
			if r.Deduplicated {
				continue
			}
			if err := enqueue(ctx, r.DocumentID); err != nil {
				i.logger.Warn("ingest.enqueue.failed", "document_id", r.DocumentID, "error", err)
			}
		}
	}
}

// IsHidden reports whether the base name starts with a dot.
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
