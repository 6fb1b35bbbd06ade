package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/legal-docs/constants"
	"github.com/joseph-ayodele/legal-docs/internal/common"
	"github.com/joseph-ayodele/legal-docs/internal/entity"
	"github.com/joseph-ayodele/legal-docs/internal/repository"
)

var errInterrupted = errors.New("processing was interrupted by a restart")

// TextExtractor turns a stored file into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, path, fileType string) (string, error)
}

// Classifier never fails; it degrades to a default classification.
type Classifier interface {
	Classify(ctx context.Context, text string) entity.Classification
}

type FactExtractor interface {
	ExtractFacts(ctx context.Context, text string) (entity.FactRecord, error)
}

// FileLocator resolves a document's stored file name to a path.
type FileLocator interface {
	Path(name string) (string, error)
}

// Runner executes calls to external services on a bounded pool.
type Runner interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

type Deps struct {
	Documents  repository.DocumentRepository
	Facts      repository.FactRepository
	Files      FileLocator
	Text       TextExtractor
	Classifier Classifier
	Extractor  FactExtractor
	Pool       Runner
}

// Processor runs one processing attempt per call: text extraction, then
// classification and fact extraction side by side, then persistence.
type Processor struct {
	docs       repository.DocumentRepository
	facts      repository.FactRepository
	files      FileLocator
	text       TextExtractor
	classifier Classifier
	extractor  FactExtractor
	pool       Runner
	logger     *slog.Logger
	now        func() time.Time
	failWait   time.Duration
}

func NewProcessor(deps Deps, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		docs:       deps.Documents,
		facts:      deps.Facts,
		files:      deps.Files,
		text:       deps.Text,
		classifier: deps.Classifier,
		extractor:  deps.Extractor,
		pool:       deps.Pool,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
		failWait:   10 * time.Second,
	}
}

// ProcessDocument moves the document into processing and finishes in
// processed or error. If the document cannot enter processing (unknown id, or
// an attempt is already running) nothing is written and the error is
// returned. Once processing has started every failure, panics included, is
// recorded on the document and any partial fact record is removed.
func (p *Processor) ProcessDocument(ctx context.Context, documentID string) (err error) {
	start := time.Now()
	log := p.logger.With("document_id", documentID)
	ctx = common.WithLogger(common.WithDocumentID(ctx, documentID), log)

	processing := constants.StatusProcessing
	doc, err := p.docs.Update(ctx, documentID, entity.DocumentUpdate{
		Status:     &processing,
		ClearError: true,
		ClearText:  true,
	})
	if err != nil {
		log.Warn("pipeline.process.rejected", "error", err)
		return fmt.Errorf("start processing: %w", err)
	}
	log.Info("pipeline.process.start", "file_type", doc.FileType)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processing panicked: %v", r)
		}
		if err != nil {
			p.fail(ctx, log, documentID, err)
			return
		}
		log.Info("pipeline.process.ok", "elapsed_ms", time.Since(start).Milliseconds())
	}()

	if err := p.facts.DeleteByDocument(ctx, documentID); err != nil {
		return fmt.Errorf("clear previous facts: %w", err)
	}

	text, err := p.extractText(ctx, doc)
	if err != nil {
		return err
	}

	cls, rec, err := p.analyze(ctx, text)
	if err != nil {
		return err
	}

	now := p.now()
	rec.ID = uuid.NewString()
	rec.DocumentID = documentID
	rec.ExtractedAt = now
	rec.UpdatedAt = now
	if err := p.facts.Save(ctx, &rec); err != nil {
		return fmt.Errorf("save facts: %w", err)
	}

	processed := constants.StatusProcessed
	if _, err := p.docs.Update(ctx, documentID, entity.DocumentUpdate{
		Status:         &processed,
		ExtractedText:  &text,
		Classification: &cls,
	}); err != nil {
		return fmt.Errorf("finish processing: %w", err)
	}
	log.Info("pipeline.process.classified",
		"type", cls.Type,
		"category", cls.Category,
		"confidence", cls.Confidence,
		"facts", rec.Count(),
	)
	return nil
}

func (p *Processor) extractText(ctx context.Context, doc *entity.Document) (string, error) {
	path, err := p.files.Path(doc.FileName)
	if err != nil {
		return "", err
	}
	var text string
	err = p.pool.Do(ctx, func(ctx context.Context) error {
		t, err := p.text.Extract(ctx, path, doc.FileType)
		text = t
		return err
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// analyze classifies and extracts concurrently. Only fact extraction can
// fail the attempt.
func (p *Processor) analyze(ctx context.Context, text string) (entity.Classification, entity.FactRecord, error) {
	var (
		cls = entity.DefaultClassification()
		rec entity.FactRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var got entity.Classification
		err := p.pool.Do(gctx, func(ctx context.Context) error {
			got = p.classifier.Classify(ctx, text)
			return nil
		})
		if err != nil {
			p.logger.Warn("pipeline.classify.skipped", "error", err)
			return nil
		}
		cls = got
		return nil
	})
	g.Go(func() error {
		return p.pool.Do(gctx, func(ctx context.Context) error {
			r, err := p.extractor.ExtractFacts(ctx, text)
			rec = r
			return err
		})
	})
	if err := g.Wait(); err != nil {
		return entity.Classification{}, entity.FactRecord{}, err
	}
	return cls, rec, nil
}

// fail records cause on the document. It runs on a detached context so a
// timed-out attempt still leaves the error behind.
func (p *Processor) fail(ctx context.Context, log *slog.Logger, documentID string, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.failWait)
	defer cancel()

	log.Error("pipeline.process.failed", "error", cause)
	if err := p.facts.DeleteByDocument(ctx, documentID); err != nil {
		log.Error("pipeline.process.cleanup_failed", "error", err)
	}
	msg := cause.Error()
	failed := constants.StatusError
	if _, err := p.docs.Update(ctx, documentID, entity.DocumentUpdate{
		Status:          &failed,
		ProcessingError: &msg,
	}); err != nil {
		log.Error("pipeline.process.record_failed", "error", err)
	}
}

// RecoverInterrupted marks documents left in processing by a previous run
// as failed so they can be reprocessed. It returns the ids of documents still
// waiting in the uploaded state, which the caller should queue again.
func (p *Processor) RecoverInterrupted(ctx context.Context) ([]string, error) {
	docs, err := p.docs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	var pending []string
	recovered := 0
	for _, d := range docs {
		switch d.Status {
		case constants.StatusUploaded:
			pending = append(pending, d.ID)
		case constants.StatusProcessing:
			p.fail(ctx, p.logger.With("document_id", d.ID), d.ID, errInterrupted)
			recovered++
		}
	}
	if recovered > 0 || len(pending) > 0 {
		p.logger.Info("pipeline.recover.ok", "interrupted", recovered, "pending", len(pending))
	}
	return pending, nil
}
