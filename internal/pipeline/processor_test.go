package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/legal-docs/constants"
	"github.com/joseph-ayodele/legal-docs/internal/analysis"
	"github.com/joseph-ayodele/legal-docs/internal/common"
	"github.com/joseph-ayodele/legal-docs/internal/entity"
	"github.com/joseph-ayodele/legal-docs/internal/llm"
	"github.com/joseph-ayodele/legal-docs/internal/repository"
	"github.com/joseph-ayodele/legal-docs/internal/testutil"
	"github.com/joseph-ayodele/legal-docs/internal/workpool"
)

const (
	classifyReply = `{"type":"motion","category":"civil","confidence":0.91}`
	factsReply    = `{"caseNumber":"24-CV-100","court":"Hennepin County","judgeName":"Hon. Baker"}`
)

type dirLocator string

func (d dirLocator) Path(name string) (string, error) { return filepath.Join(string(d), name), nil }

type textFunc func(ctx context.Context, path, fileType string) (string, error)

func (f textFunc) Extract(ctx context.Context, path, fileType string) (string, error) {
	return f(ctx, path, fileType)
}

type harness struct {
	proc  *Processor
	store *repository.MemoryStore
	doc   *entity.Document
}

func newHarness(t *testing.T, text TextExtractor, classifyAI, factsAI llm.Completer) *harness {
	t.Helper()
	pool, err := workpool.New("test", workpool.Config{Capacity: 2}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Release(time.Second) })

	store := repository.NewMemoryStore()
	doc := &entity.Document{
		ID:           "doc-1",
		FileName:     "stored.pdf",
		OriginalName: "motion.pdf",
		FileType:     "pdf",
		FileSize:     10,
		UploadedAt:   time.Now().UTC(),
		Status:       constants.StatusUploaded,
	}
	require.NoError(t, store.Documents().Create(context.Background(), doc))

	proc := NewProcessor(Deps{
		Documents:  store.Documents(),
		Facts:      store.Facts(),
		Files:      dirLocator(t.TempDir()),
		Text:       text,
		Classifier: analysis.NewClassifier(classifyAI, "", nil),
		Extractor:  analysis.NewFactExtractor(factsAI, "", nil),
		Pool:       pool,
	}, nil)
	return &harness{proc: proc, store: store, doc: doc}
}

func okText(text string) TextExtractor {
	return textFunc(func(context.Context, string, string) (string, error) { return text, nil })
}

func (h *harness) load(t *testing.T) (*entity.Document, *entity.FactRecord) {
	t.Helper()
	doc, err := h.store.Documents().Get(context.Background(), h.doc.ID)
	require.NoError(t, err)
	rec, err := h.store.Facts().GetByDocument(context.Background(), h.doc.ID)
	if err != nil {
		require.True(t, common.IsNotFound(err))
		return doc, nil
	}
	return doc, rec
}

func TestProcessDocument_Success(t *testing.T) {
	h := newHarness(t, okText("MOTION TO DISMISS"), testutil.Reply(classifyReply), testutil.Reply(factsReply))

	require.NoError(t, h.proc.ProcessDocument(context.Background(), h.doc.ID))

	doc, rec := h.load(t)
	assert.Equal(t, constants.StatusProcessed, doc.Status)
	require.NotNil(t, doc.ExtractedText)
	assert.Equal(t, "MOTION TO DISMISS", *doc.ExtractedText)
	assert.Nil(t, doc.ProcessingError)
	require.NotNil(t, doc.DocumentType)
	assert.Equal(t, "motion", *doc.DocumentType)
	assert.InDelta(t, 0.91, *doc.Confidence, 1e-9)

	require.NotNil(t, rec)
	assert.Equal(t, h.doc.ID, rec.DocumentID)
	v, _ := rec.Get("caseNumber")
	assert.Equal(t, "24-CV-100", v)
	assert.Equal(t, "Hon. Baker", rec.AdditionalInfo["judgeName"])
}

func TestProcessDocument_ClassifierFailureDoesNotBlock(t *testing.T) {
	h := newHarness(t, okText("text"), testutil.Fail(llm.ErrNoContent), testutil.Reply(factsReply))

	require.NoError(t, h.proc.ProcessDocument(context.Background(), h.doc.ID))

	doc, rec := h.load(t)
	assert.Equal(t, constants.StatusProcessed, doc.Status)
	assert.Equal(t, "unknown", *doc.DocumentType)
	assert.Equal(t, "general", *doc.Category)
	assert.Equal(t, 0.0, *doc.Confidence)
	assert.NotNil(t, rec)
}

func TestProcessDocument_Failures(t *testing.T) {
	tests := []struct {
		name    string
		text    TextExtractor
		facts   llm.Completer
		wantErr error
		wantMsg string
	}{
		{
			name:    "empty ai content",
			text:    okText("text"),
			facts:   testutil.Fail(llm.ErrNoContent),
			wantErr: common.ErrExtractionService,
			wantMsg: "no response from AI service",
		},
		{
			name:    "malformed ai content",
			text:    okText("text"),
			facts:   testutil.Reply("not json"),
			wantErr: common.ErrMalformedResponse,
		},
		{
			name: "text extraction",
			text: textFunc(func(_ context.Context, path, _ string) (string, error) {
				return "", common.ExtractionFailureError(path, errors.New("pdftotext exploded"))
			}),
			facts:   testutil.Reply(factsReply),
			wantErr: common.ErrExtractionFailure,
			wantMsg: "stored.pdf",
		},
		{
			name: "panic",
			text: textFunc(func(context.Context, string, string) (string, error) {
				panic("engine crashed")
			}),
			facts:   testutil.Reply(factsReply),
			wantMsg: "engine crashed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.text, testutil.Reply(classifyReply), tt.facts)

			err := h.proc.ProcessDocument(context.Background(), h.doc.ID)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}

			doc, rec := h.load(t)
			assert.Equal(t, constants.StatusError, doc.Status)
			require.NotNil(t, doc.ProcessingError)
			assert.Equal(t, err.Error(), *doc.ProcessingError)
			if tt.wantMsg != "" {
				assert.Contains(t, *doc.ProcessingError, tt.wantMsg)
			}
			assert.Nil(t, rec)
		})
	}
}

func TestProcessDocument_ReprocessReplacesFacts(t *testing.T) {
	h := newHarness(t, okText("text"), testutil.Reply(classifyReply), testutil.Reply(factsReply))
	ctx := context.Background()

	require.NoError(t, h.proc.ProcessDocument(ctx, h.doc.ID))
	_, first := h.load(t)
	require.NotNil(t, first)

	require.NoError(t, h.proc.ProcessDocument(ctx, h.doc.ID))
	doc, second := h.load(t)
	require.NotNil(t, second)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, constants.StatusProcessed, doc.Status)

	all, err := h.store.Facts().List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestProcessDocument_RecoversFromError(t *testing.T) {
	calls := 0
	text := textFunc(func(context.Context, string, string) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("transient")
		}
		return "recovered", nil
	})
	h := newHarness(t, text, testutil.Reply(classifyReply), testutil.Reply(factsReply))

	require.Error(t, h.proc.ProcessDocument(context.Background(), h.doc.ID))
	require.NoError(t, h.proc.ProcessDocument(context.Background(), h.doc.ID))

	doc, rec := h.load(t)
	assert.Equal(t, constants.StatusProcessed, doc.Status)
	assert.Nil(t, doc.ProcessingError)
	assert.NotNil(t, rec)
}

func TestProcessDocument_Rejected(t *testing.T) {
	h := newHarness(t, okText("text"), testutil.Reply(classifyReply), testutil.Reply(factsReply))
	ctx := context.Background()

	processing := constants.StatusProcessing
	_, err := h.store.Documents().Update(ctx, h.doc.ID, entity.DocumentUpdate{Status: &processing})
	require.NoError(t, err)

	err = h.proc.ProcessDocument(ctx, h.doc.ID)
	assert.ErrorIs(t, err, common.ErrInvalidTransition)
	doc, _ := h.load(t)
	assert.Equal(t, constants.StatusProcessing, doc.Status)

	err = h.proc.ProcessDocument(ctx, "missing")
	assert.True(t, common.IsNotFound(err))
}

func TestRecoverInterrupted(t *testing.T) {
	h := newHarness(t, okText("text"), testutil.Reply(classifyReply), testutil.Reply(factsReply))
	ctx := context.Background()

	stuck := *h.doc
	stuck.ID = "doc-stuck"
	stuck.Status = constants.StatusProcessing
	require.NoError(t, h.store.Documents().Create(ctx, &stuck))

	pending, err := h.proc.RecoverInterrupted(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{h.doc.ID}, pending)

	doc, err := h.store.Documents().Get(ctx, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusError, doc.Status)
	require.NotNil(t, doc.ProcessingError)
	assert.Contains(t, *doc.ProcessingError, "interrupted")

	require.NoError(t, h.proc.ProcessDocument(ctx, stuck.ID))
}
