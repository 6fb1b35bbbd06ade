package clarify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/legal-docs/internal/entity"
	"github.com/joseph-ayodele/legal-docs/internal/testutil"
)

func TestQuestionCount(t *testing.T) {
	tests := []struct {
		confidence float64
		want       int
	}{
		{0, 3},
		{0.5, 3},
		{0.85, 3},
		{0.8500001, 1},
		{0.99, 1},
		{1, 1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.confidence), func(t *testing.T) {
			assert.Equal(t, tt.want, QuestionCount(tt.confidence))
		})
	}
}

func TestGenerateQuestions(t *testing.T) {
	ai := testutil.Reply("1. What is the filing date?\n\n   \n2. Which county?\n3. Who represents the respondent?\n")
	e := NewEngine(ai, "gpt-4o-mini", nil)

	qs, err := e.GenerateQuestions(context.Background(), "petition", 0.4, map[string]string{"court": "Ramsey"})

	require.NoError(t, err)
	assert.Equal(t, []string{"1. What is the filing date?", "2. Which county?", "3. Who represents the respondent?"}, qs)
	calls := ai.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].User, "Generate 3 clarifying questions")
	assert.Equal(t, float32(0.3), calls[0].Temperature)
	assert.Equal(t, "gpt-4o-mini", calls[0].Model)
}

func TestGenerateQuestions_HighConfidenceAsksOne(t *testing.T) {
	ai := testutil.Reply("Is the respondent's address current?")
	e := NewEngine(ai, "", nil)

	qs, err := e.GenerateQuestions(context.Background(), "motion", 0.9, nil)

	require.NoError(t, err)
	assert.Len(t, qs, 1)
	assert.Contains(t, ai.Calls()[0].User, "Generate 1 clarifying questions")
}

func TestGenerateQuestions_ServiceError(t *testing.T) {
	e := NewEngine(testutil.Fail(errors.New("timeout")), "", nil)
	_, err := e.GenerateQuestions(context.Background(), "motion", 0.2, nil)
	assert.Error(t, err)
}

func TestSuggestAnswers(t *testing.T) {
	assert.Equal(t, []string{"Federal", "State", "County"}, SuggestAnswers("Which JURISDICTION applies?"))
	assert.Equal(t, []string{"Today", "Next Week", "Custom Date"}, SuggestAnswers("What filing date should be used?"))
	assert.Nil(t, SuggestAnswers("What is the petitioner's phone number?"))
}

func TestSession_HistoryKeepsOrderAndDuplicates(t *testing.T) {
	s := NewSession()
	s.AddQA("Which county?", "Hennepin")
	s.AddQA("Which county?", "Hennepin")
	s.AddQA("Filing date?", "Today")

	h := s.History()
	require.Len(t, h, 3)
	assert.Equal(t, entity.QA{Question: "Filing date?", Answer: "Today"}, h[2])

	h[0].Answer = "mutated"
	assert.Equal(t, "Hennepin", s.History()[0].Answer)
}

func TestSession_ConcurrentAppends(t *testing.T) {
	s := NewSession()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.AddQA(fmt.Sprintf("q%d", i), "a")
		}(i)
	}
	wg.Wait()
	assert.Len(t, s.History(), 50)
}

func TestSessions_GetIsStable(t *testing.T) {
	reg := NewSessions()
	a := reg.Get("doc-1")
	a.AddQA("q", "a")
	assert.Same(t, a, reg.Get("doc-1"))
	reg.Drop("doc-1")
	assert.Empty(t, reg.Get("doc-1").History())
}

func TestSaveTo(t *testing.T) {
	rec := &entity.FactRecord{}
	n := SaveTo(rec, []entity.QA{{Question: "Which county?", Answer: "Ramsey"}})
	assert.Equal(t, 1, n)
	n = SaveTo(rec, []entity.QA{{Question: "Filing date?", Answer: "Today"}})
	assert.Equal(t, 2, n)

	saved, ok := rec.AdditionalInfo[HistoryKey].([]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"question": "Which county?", "answer": "Ramsey"}, saved[0])
}
