package repository

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/joseph-ayodele/legal-docs/constants"
	"github.com/joseph-ayodele/legal-docs/internal/common"
	"github.com/joseph-ayodele/legal-docs/internal/entity"
)

// MemoryStore keeps documents and facts in process memory. Both
// repositories share one lock so document deletes cascade atomically.
type MemoryStore struct {
	mu    sync.RWMutex
	docs  map[string]*entity.Document
	facts map[string]*entity.FactRecord // by record id
	byDoc map[string]string             // document id -> record id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:  make(map[string]*entity.Document),
		facts: make(map[string]*entity.FactRecord),
		byDoc: make(map[string]string),
	}
}

func (m *MemoryStore) Documents() DocumentRepository { return memoryDocuments{m} }
func (m *MemoryStore) Facts() FactRepository         { return memoryFacts{m} }

type memoryDocuments struct{ s *MemoryStore }

func (r memoryDocuments) Create(_ context.Context, doc *entity.Document) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, dup := r.s.docs[doc.ID]; dup {
		return common.NewAppError("CONFLICT", "document "+doc.ID+" already exists", common.ErrDatabase)
	}
	r.s.docs[doc.ID] = cloneDocument(doc)
	return nil
}

func (r memoryDocuments) Get(_ context.Context, id string) (*entity.Document, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	d, ok := r.s.docs[id]
	if !ok {
		return nil, common.NotFoundError(common.ErrDocumentNotFound, id)
	}
	return cloneDocument(d), nil
}

func (r memoryDocuments) List(_ context.Context) ([]*entity.Document, error) {
	r.s.mu.RLock()
	out := make([]*entity.Document, 0, len(r.s.docs))
	for _, d := range r.s.docs {
		out = append(out, cloneDocument(d))
	}
	r.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].UploadedAt.After(out[j].UploadedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r memoryDocuments) Update(_ context.Context, id string, u entity.DocumentUpdate) (*entity.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.docs[id]
	if !ok {
		return nil, common.NotFoundError(common.ErrDocumentNotFound, id)
	}
	if u.Status != nil && !constants.CanTransition(d.Status, *u.Status) {
		return nil, common.InvalidTransitionError(string(d.Status), string(*u.Status))
	}
	u.Apply(d)
	return cloneDocument(d), nil
}

func (r memoryDocuments) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.docs[id]; !ok {
		return common.NotFoundError(common.ErrDocumentNotFound, id)
	}
	delete(r.s.docs, id)
	r.s.dropFactsLocked(id)
	return nil
}

type memoryFacts struct{ s *MemoryStore }

func (r memoryFacts) Save(_ context.Context, rec *entity.FactRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.docs[rec.DocumentID]; !ok {
		return common.NotFoundError(common.ErrDocumentNotFound, rec.DocumentID)
	}
	r.s.dropFactsLocked(rec.DocumentID)
	c, err := cloneFacts(rec)
	if err != nil {
		return err
	}
	r.s.facts[rec.ID] = c
	r.s.byDoc[rec.DocumentID] = rec.ID
	return nil
}

func (r memoryFacts) Get(_ context.Context, id string) (*entity.FactRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rec, ok := r.s.facts[id]
	if !ok {
		return nil, common.NotFoundError(common.ErrFactRecordNotFound, id)
	}
	return cloneFacts(rec)
}

func (r memoryFacts) GetByDocument(_ context.Context, documentID string) (*entity.FactRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.byDoc[documentID]
	if !ok {
		return nil, common.NotFoundError(common.ErrFactRecordNotFound, documentID)
	}
	return cloneFacts(r.s.facts[id])
}

func (r memoryFacts) List(_ context.Context) ([]*entity.FactRecord, error) {
	r.s.mu.RLock()
	out := make([]*entity.FactRecord, 0, len(r.s.facts))
	for _, rec := range r.s.facts {
		c, err := cloneFacts(rec)
		if err != nil {
			r.s.mu.RUnlock()
			return nil, err
		}
		out = append(out, c)
	}
	r.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].ExtractedAt.Equal(out[j].ExtractedAt) {
			return out[i].ExtractedAt.Before(out[j].ExtractedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r memoryFacts) Patch(_ context.Context, id string, patch map[string]any) (*entity.FactRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.facts[id]
	if !ok {
		return nil, common.NotFoundError(common.ErrFactRecordNotFound, id)
	}
	next, err := cloneFacts(cur)
	if err != nil {
		return nil, err
	}
	if err := next.ApplyPatch(patch); err != nil {
		return nil, common.InvalidInputError(err.Error())
	}
	next.UpdatedAt = time.Now().UTC()
	if next, err = cloneFacts(next); err != nil {
		return nil, err
	}
	r.s.facts[id] = next
	return cloneFacts(next)
}

func (r memoryFacts) DeleteByDocument(_ context.Context, documentID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.dropFactsLocked(documentID)
	return nil
}

func (m *MemoryStore) dropFactsLocked(documentID string) {
	if id, ok := m.byDoc[documentID]; ok {
		delete(m.facts, id)
		delete(m.byDoc, documentID)
	}
}

func cloneDocument(d *entity.Document) *entity.Document {
	c := *d
	c.ExtractedText = clonePtr(d.ExtractedText)
	c.ProcessingError = clonePtr(d.ProcessingError)
	c.DocumentType = clonePtr(d.DocumentType)
	c.Category = clonePtr(d.Category)
	c.Confidence = clonePtr(d.Confidence)
	return &c
}

// cloneFacts copies a record and pushes its additional info through JSON so
// the memory store hands back the same shapes the SQL store does.
func cloneFacts(rec *entity.FactRecord) (*entity.FactRecord, error) {
	c := *rec
	c.Facts = entity.FactsFromMap(rec.Facts.Map())
	c.AdditionalInfo = nil
	if len(rec.AdditionalInfo) > 0 {
		b, err := json.Marshal(rec.AdditionalInfo)
		if err != nil {
			return nil, common.InvalidInputError("additional info is not JSON encodable: " + err.Error())
		}
		if err := json.Unmarshal(b, &c.AdditionalInfo); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
