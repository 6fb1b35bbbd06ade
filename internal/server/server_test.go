package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/legal-docs/constants"
	"github.com/joseph-ayodele/legal-docs/internal/async"
	"github.com/joseph-ayodele/legal-docs/internal/clarify"
	"github.com/joseph-ayodele/legal-docs/internal/entity"
	"github.com/joseph-ayodele/legal-docs/internal/export"
	"github.com/joseph-ayodele/legal-docs/internal/repository"
	"github.com/joseph-ayodele/legal-docs/internal/storage"
	"github.com/joseph-ayodele/legal-docs/internal/templates"
)

type fakeQueue struct {
	mu   sync.Mutex
	jobs []async.Job
	err  error
}

func (q *fakeQueue) Enqueue(_ context.Context, job async.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *fakeQueue) Shutdown(context.Context) {}

func (q *fakeQueue) queued() []async.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]async.Job(nil), q.jobs...)
}

type stubClarifier struct {
	questions []string
	gotType   string
	gotConf   float64
}

func (s *stubClarifier) GenerateQuestions(_ context.Context, documentType string, confidence float64, _ any) ([]string, error) {
	s.gotType, s.gotConf = documentType, confidence
	return s.questions, nil
}

type testServer struct {
	e       *echo.Echo
	store   *repository.MemoryStore
	queue   *fakeQueue
	clarify *stubClarifier
	health  error
	files   *storage.LocalStore
}

// failingDocuments fails Create for one original file name and every Delete
// when deleteErr is set.
type failingDocuments struct {
	repository.DocumentRepository
	createFailsFor string
	deleteErr      error
}

func (f *failingDocuments) Create(ctx context.Context, doc *entity.Document) error {
	if doc.OriginalName == f.createFailsFor {
		return errors.New("disk full")
	}
	return f.DocumentRepository.Create(ctx, doc)
}

func (f *failingDocuments) Delete(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.DocumentRepository.Delete(ctx, id)
}

func newTestServer(t *testing.T, opts ...func(*Dependencies)) *testServer {
	t.Helper()
	files, err := storage.NewLocalStore(t.TempDir(), 1<<20, nil)
	require.NoError(t, err)
	catalog, err := templates.NewCatalog()
	require.NoError(t, err)

	ts := &testServer{
		store:   repository.NewMemoryStore(),
		queue:   &fakeQueue{},
		clarify: &stubClarifier{questions: []string{"What is the jurisdiction?", "Who is the judge?"}},
	}
	deps := &Dependencies{
		Documents: ts.store.Documents(),
		Facts:     ts.store.Facts(),
		Files:     files,
		Queue:     ts.queue,
		Catalog:   catalog,
		Generator: templates.NewGenerator(catalog, templates.AttorneyProfile{Name: "Jane Counsel"}),
		Clarifier: ts.clarify,
		Exporter:  export.NewService(ts.store.Documents(), ts.store.Facts(), nil),
		Health:    func(context.Context) error { return ts.health },
		Version:   "test",
	}
	for _, o := range opts {
		o(deps)
	}
	ts.files = files
	ts.e = New(deps)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = httptest.NewRequest(method, path, bytes.NewReader(raw))
		r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	ts.e.ServeHTTP(w, r)
	return w
}

func (ts *testServer) upload(t *testing.T, names ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, n := range names {
		part, err := mw.CreateFormFile("files", n)
		require.NoError(t, err)
		_, err = part.Write([]byte("content of " + n))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/api/documents", &buf)
	r.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	w := httptest.NewRecorder()
	ts.e.ServeHTTP(w, r)
	return w
}

// seed stores a processed document with a fact record.
func (ts *testServer) seed(t *testing.T) (*entity.Document, *entity.FactRecord) {
	t.Helper()
	ctx := context.Background()
	typ, cat, conf := "motion", "civil", 0.9
	doc := &entity.Document{
		ID:           "doc-1",
		FileName:     "stored.pdf",
		OriginalName: "motion.pdf",
		FileType:     "pdf",
		FileSize:     100,
		UploadedAt:   time.Now().UTC(),
		Status:       constants.StatusProcessed,
		DocumentType: &typ,
		Category:     &cat,
		Confidence:   &conf,
	}
	require.NoError(t, ts.store.Documents().Create(ctx, doc))

	rec := &entity.FactRecord{
		ID:          "facts-1",
		DocumentID:  doc.ID,
		Facts:       entity.FactsFromMap(map[string]string{"caseNumber": "24-CV-100", "court": "Hennepin County"}),
		ExtractedAt: time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	require.NoError(t, ts.store.Facts().Save(ctx, rec))
	return doc, rec
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestUpload_CreatesAndQueuesDocuments(t *testing.T) {
	ts := newTestServer(t)

	w := ts.upload(t, "Motion.PDF", "scan.png")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decode(t, w)
	docs := body["documents"].([]any)
	require.Len(t, docs, 2)
	first := docs[0].(map[string]any)
	assert.Equal(t, "Motion.PDF", first["originalName"])
	assert.Equal(t, "pdf", first["fileType"])
	assert.Equal(t, "uploaded", first["status"])

	jobs := ts.queue.queued()
	require.Len(t, jobs, 2)
	assert.Equal(t, first["id"], jobs[0].DocumentID)
	assert.NotEmpty(t, jobs[0].TraceID)

	list := decode(t, ts.do(t, http.MethodGet, "/api/documents", nil))
	assert.Len(t, list["documents"], 2)
}

func TestUpload_RejectsUnsupportedTypeBeforeStoring(t *testing.T) {
	ts := newTestServer(t)

	w := ts.upload(t, "ok.pdf", "notes.txt")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "UNSUPPORTED_FILE_TYPE", decode(t, w)["code"])

	docs, err := ts.store.Documents().List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Empty(t, ts.queue.queued())
}

func TestUpload_NoFiles(t *testing.T) {
	ts := newTestServer(t)
	w := ts.upload(t)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpload_QueueFailureStillCreates(t *testing.T) {
	ts := newTestServer(t)
	ts.queue.err = async.ErrQueueClosed

	w := ts.upload(t, "a.docx")
	require.Equal(t, http.StatusCreated, w.Code)
	docs, err := ts.store.Documents().List(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestUpload_PartialFailureReportsCreatedDocuments(t *testing.T) {
	ts := newTestServer(t, func(d *Dependencies) {
		d.Documents = &failingDocuments{DocumentRepository: d.Documents, createFailsFor: "b.pdf"}
	})

	w := ts.upload(t, "a.pdf", "b.pdf", "c.png")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decode(t, w)
	created := body["documents"].([]any)
	require.Len(t, created, 2)
	assert.Equal(t, "a.pdf", created[0].(map[string]any)["originalName"])
	assert.Equal(t, "c.png", created[1].(map[string]any)["originalName"])

	failed := body["failed"].([]any)
	require.Len(t, failed, 1)
	assert.Equal(t, "b.pdf", failed[0].(map[string]any)["fileName"])
	assert.Equal(t, "INTERNAL_ERROR", failed[0].(map[string]any)["code"])
	assert.Len(t, ts.queue.queued(), 2)
}

func TestUpload_AllFailed(t *testing.T) {
	ts := newTestServer(t, func(d *Dependencies) {
		d.Documents = &failingDocuments{DocumentRepository: d.Documents, createFailsFor: "only.pdf"}
	})

	w := ts.upload(t, "only.pdf")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, ts.queue.queued())
}

func TestDeleteDocument_KeepsFileWhenRecordDeleteFails(t *testing.T) {
	ts := newTestServer(t, func(d *Dependencies) {
		d.Documents = &failingDocuments{DocumentRepository: d.Documents, deleteErr: errors.New("db down")}
	})

	w := ts.upload(t, "keep.pdf")
	require.Equal(t, http.StatusCreated, w.Code)
	doc := decode(t, w)["documents"].([]any)[0].(map[string]any)

	w = ts.do(t, http.MethodDelete, "/api/documents/"+doc["id"].(string), nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	stored, err := ts.files.Path(doc["fileName"].(string))
	require.NoError(t, err)
	assert.FileExists(t, stored)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/documents/"+doc["id"].(string), nil).Code)
}

func TestGetDocument_NotFound(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/api/documents/missing", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode(t, w)["code"])
}

func TestDeleteDocument_RemovesFacts(t *testing.T) {
	ts := newTestServer(t)
	doc, _ := ts.seed(t)

	w := ts.do(t, http.MethodDelete, "/api/documents/"+doc.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/documents/"+doc.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/documents/"+doc.ID+"/facts", nil).Code)
}

func TestFacts_GetAndPatch(t *testing.T) {
	ts := newTestServer(t)
	doc, rec := ts.seed(t)

	w := ts.do(t, http.MethodGet, "/api/documents/"+doc.ID+"/extracted-info", nil)
	require.Equal(t, http.StatusOK, w.Code)
	facts := decode(t, w)["facts"].(map[string]any)
	assert.Equal(t, "24-CV-100", facts["caseNumber"])

	w = ts.do(t, http.MethodPatch, "/api/facts/"+rec.ID, map[string]any{"judgeName": "Hon. Baker", "court": nil})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	facts = decode(t, w)["facts"].(map[string]any)
	assert.Equal(t, "Hon. Baker", facts["judgeName"])
	assert.Equal(t, "24-CV-100", facts["caseNumber"])
	assert.Nil(t, facts["court"])

	w = ts.do(t, http.MethodPatch, "/api/facts/"+rec.ID, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPatch, "/api/facts/nope", map[string]any{"court": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReprocess(t *testing.T) {
	ts := newTestServer(t)
	doc, _ := ts.seed(t)

	w := ts.do(t, http.MethodPost, "/api/documents/"+doc.ID+"/reprocess", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, ts.queue.queued(), 1)

	ts.queue.err = async.ErrAlreadyQueued
	w = ts.do(t, http.MethodPost, "/api/documents/"+doc.ID+"/reprocess", nil)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ALREADY_QUEUED", decode(t, w)["code"])
}

func TestGenerate(t *testing.T) {
	ts := newTestServer(t)
	doc, rec := ts.seed(t)

	for name, body := range map[string]map[string]any{
		"by facts id":    {"templateId": "motion-to-dismiss", "factsId": rec.ID},
		"by document id": {"templateId": "motion-to-dismiss", "extractedInfoId": doc.ID},
	} {
		t.Run(name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/api/documents/generate", body)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			out := decode(t, w)
			text := out["document"].(string)
			assert.Contains(t, text, "Hennepin County")
			assert.Contains(t, text, "Jane Counsel")
			assert.NotContains(t, text, "{{")

			validation := out["validation"].(map[string]any)
			assert.Equal(t, false, validation["isValid"])
			assert.Contains(t, validation["missingFields"], "petitionerName")
			assert.NotContains(t, validation["missingFields"], "attorneyName")
		})
	}
}

func TestGenerate_Errors(t *testing.T) {
	ts := newTestServer(t)
	_, rec := ts.seed(t)

	w := ts.do(t, http.MethodPost, "/api/documents/generate", map[string]any{"factsId": rec.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/api/documents/generate", map[string]any{"templateId": "nope", "factsId": rec.ID})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodPost, "/api/documents/generate", map[string]any{"templateId": "motion-to-dismiss", "factsId": "nope"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTemplates(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/templates?type=motion", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode(t, w)["templates"].([]any)
	require.NotEmpty(t, list)
	for _, item := range list {
		assert.Equal(t, "motion", item.(map[string]any)["type"])
	}

	w = ts.do(t, http.MethodGet, "/api/templates/motion-to-dismiss", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Motion to Dismiss", decode(t, w)["template"].(map[string]any)["name"])

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/templates/nope", nil).Code)
}

func TestClarificationFlow(t *testing.T) {
	ts := newTestServer(t)
	doc, rec := ts.seed(t)
	base := "/api/documents/" + doc.ID + "/clarifications"

	w := ts.do(t, http.MethodPost, base+"/questions", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decode(t, w)
	assert.Len(t, out["questions"], 2)
	assert.EqualValues(t, clarify.QuestionCount(0.9), out["questionCount"])
	assert.Contains(t, out["suggestions"], "What is the jurisdiction?")
	assert.Equal(t, "motion", ts.clarify.gotType)
	assert.InDelta(t, 0.9, ts.clarify.gotConf, 1e-9)

	w = ts.do(t, http.MethodPost, base+"/answers", map[string]any{"question": "Who is the judge?", "answer": "Hon. Baker"})
	require.Equal(t, http.StatusOK, w.Code)
	w = ts.do(t, http.MethodPost, base+"/answers", map[string]any{
		"answers": []map[string]string{{"question": "What is the jurisdiction?", "answer": "State"}},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["history"], 2)

	w = ts.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["pending"], 2)

	w = ts.do(t, http.MethodPost, base+"/save", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 2, decode(t, w)["saved"])

	stored, err := ts.store.Facts().Get(context.Background(), rec.ID)
	require.NoError(t, err)
	saved := stored.AdditionalInfo[clarify.HistoryKey].([]any)
	require.Len(t, saved, 2)
	assert.Equal(t, "Hon. Baker", saved[0].(map[string]any)["answer"])

	// session ends on save
	w = ts.do(t, http.MethodPost, base+"/save", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClarifyAnswers_Validation(t *testing.T) {
	ts := newTestServer(t)
	doc, _ := ts.seed(t)

	w := ts.do(t, http.MethodPost, "/api/documents/"+doc.ID+"/clarifications/answers", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/api/documents/missing/clarifications/answers", map[string]any{"question": "q", "answer": "a"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSuggestions(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/clarifications/suggestions?question=Which+jurisdiction%3F", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"Federal", "State", "County"}, decode(t, w)["suggestions"])

	w = ts.do(t, http.MethodGet, "/api/clarifications/suggestions", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportDocuments(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t)

	w := ts.do(t, http.MethodGet, "/api/export/documents.xlsx", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxMIME, w.Header().Get(echo.HeaderContentType))
	assert.True(t, strings.HasPrefix(w.Header().Get(echo.HeaderContentDisposition), "attachment;"))
	assert.NotZero(t, w.Body.Len())
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])

	ts.health = errors.New("db down")
	w = ts.do(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "degraded", decode(t, w)["status"])
}

func TestToAPIError_UnknownErrorIsGeneric(t *testing.T) {
	out := toAPIError(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, out.Status)
	assert.Equal(t, "An unexpected error occurred", out.Message)
	assert.Equal(t, "boom", out.Details)
}
