package clarify

import (
	"sync"

	"github.com/joseph-ayodele/legal-docs/internal/entity"
)

// Session is the append-only question/answer history of one extraction session.
type Session struct {
	mu        sync.Mutex
	history   []entity.QA
	questions []string
}

func NewSession() *Session {
	return &Session{}
}

// AddQA appends a pair; duplicates are kept.
func (s *Session) AddQA(question, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, entity.QA{Question: question, Answer: answer})
}

// History returns the pairs in insertion order.
func (s *Session) History() []entity.QA {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.QA, len(s.history))
	copy(out, s.history)
	return out
}

// SetPending records the latest generated questions.
func (s *Session) SetPending(questions []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions = append([]string(nil), questions...)
}

// Pending returns the latest generated questions.
func (s *Session) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.questions...)
}

// Sessions holds one session per document for the lifetime of the process.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessions() *Sessions {
	return &Sessions{sessions: make(map[string]*Session)}
}

// Get returns the document's session, creating it on first use.
func (s *Sessions) Get(documentID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[documentID]
	if !ok {
		sess = NewSession()
		s.sessions[documentID] = sess
	}
	return sess
}

// Drop forgets a document's session.
func (s *Sessions) Drop(documentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, documentID)
}

// HistoryKey is where a saved history lives in a fact record's additional info.
const HistoryKey = "clarifications"

// SaveTo appends the session history to the record's additional info.
// It reports how many pairs the record now holds.
func SaveTo(rec *entity.FactRecord, history []entity.QA) int {
	var saved []any
	if prev, ok := rec.AdditionalInfo[HistoryKey].([]any); ok {
		saved = prev
	}
	for _, qa := range history {
		saved = append(saved, map[string]any{"question": qa.Question, "answer": qa.Answer})
	}
	if rec.AdditionalInfo == nil {
		rec.AdditionalInfo = make(map[string]any)
	}
	rec.AdditionalInfo[HistoryKey] = saved
	return len(saved)
}
