package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/flipdeck/internal/collection"
	"github.com/conorfennell/flipdeck/internal/domain"
	"github.com/conorfennell/flipdeck/internal/quiz"
	"github.com/conorfennell/flipdeck/internal/srs"
	"github.com/conorfennell/flipdeck/internal/storage"
	"github.com/conorfennell/flipdeck/internal/study"
)

type testEnv struct {
	server *Server
	db     *storage.DB
	cards  *collection.Store
	states *srs.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "web.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cards := collection.New()
	states := srs.NewMemoryStore()
	gen := quiz.NewGenerator(quiz.WithRand(rand.New(rand.NewSource(7))))

	srv := NewServer(db, cards, study.NewService(states, cards, log), gen, log, Config{})
	srv.now = func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) }
	return &testEnv{server: srv, db: db, cards: cards, states: states}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.server.App().Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// seed adds a category with n quizzable cards and returns their ids.
func (e *testEnv) seed(t *testing.T, n int) (string, []string) {
	t.Helper()
	cat := decode[domain.Category](t, e.do(t, http.MethodPost, "/api/categories", map[string]any{"name": "Spanish"}))
	var ids []string
	for i := 0; i < n; i++ {
		resp := e.do(t, http.MethodPost, "/api/flashcards", map[string]any{
			"front":      "front " + string(rune('a'+i)),
			"back":       "back " + string(rune('a'+i)),
			"categoryId": cat.ID,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		ids = append(ids, decode[domain.Flashcard](t, resp).ID)
	}
	return cat.ID, ids
}

func TestCollectionsEndpoints(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, e.states.Save(ctx, map[string]srs.State{
		"c1":    srs.DefaultState(),
		"stale": srs.DefaultState(),
	}))

	resp := e.do(t, http.MethodPut, "/api/collections", map[string]any{"categories": []any{}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	payload := domain.Collection{
		Categories: []domain.Category{{ID: "cat", Name: "Spanish", CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}},
		Flashcards: []domain.Flashcard{{ID: "c1", Front: "uno", Back: "one", CategoryID: "cat"}},
	}
	resp = e.do(t, http.MethodPut, "/api/collections", payload)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode[domain.Collection](t, e.do(t, http.MethodGet, "/api/collections", nil))
	assert.Equal(t, payload, got)

	stored, err := e.db.GetCollections()
	require.NoError(t, err)
	assert.Equal(t, payload, stored)

	states, err := e.states.Load(ctx)
	require.NoError(t, err)
	assert.Contains(t, states, "c1")
	assert.NotContains(t, states, "stale")
}

func TestCategoryAndFlashcardEndpoints(t *testing.T) {
	e := newTestEnv(t)
	catID, ids := e.seed(t, 1)

	resp := e.do(t, http.MethodPost, "/api/categories", map[string]any{"name": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = e.do(t, http.MethodPatch, "/api/flashcards/"+ids[0], map[string]any{"back": "updated"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "updated", decode[domain.Flashcard](t, resp).Back)

	resp = e.do(t, http.MethodPost, "/api/categories/"+catID+"/lock", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]bool{"locked": true}, decode[map[string]bool](t, resp))

	resp = e.do(t, http.MethodPost, "/api/flashcards", map[string]any{"front": "f", "back": "b", "categoryId": catID})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp = e.do(t, http.MethodDelete, "/api/flashcards/"+ids[0], nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/api/categories/"+catID+"/lock", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/api/flashcards/"+ids[0]+"/learned", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[domain.Flashcard](t, resp).Learned)

	resp = e.do(t, http.MethodDelete, "/api/flashcards/"+ids[0], nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = e.do(t, http.MethodDelete, "/api/flashcards/"+ids[0], nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = e.do(t, http.MethodDelete, "/api/categories/"+catID, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "last category")

	stored, err := e.db.GetCollections()
	require.NoError(t, err)
	assert.Len(t, stored.Categories, 1)
	assert.Empty(t, stored.Flashcards)
}

func TestDeleteCategoryForgetsMovedCards(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	keepID, _ := e.seed(t, 0)
	doomedID, ids := e.seed(t, 2)

	for _, id := range ids {
		resp := e.do(t, http.MethodPost, "/api/study/"+id+"/answer", map[string]any{"correct": true})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp := e.do(t, http.MethodDelete, "/api/categories/"+doomedID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]int{"movedFlashcards": 2}, decode[map[string]int](t, resp))

	card, ok := e.cards.Flashcard(ids[0])
	require.True(t, ok)
	assert.Equal(t, keepID, card.CategoryID)

	states, err := e.states.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, states)
}

func TestStudyAnswerGraduates(t *testing.T) {
	e := newTestEnv(t)
	_, ids := e.seed(t, 1)

	type answerResponse struct {
		Result  study.Result `json:"result"`
		Learned bool         `json:"learned"`
	}

	var last answerResponse
	for i := 0; i < 5; i++ {
		resp := e.do(t, http.MethodPost, "/api/study/"+ids[0]+"/answer", map[string]any{"correct": true})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		last = decode[answerResponse](t, resp)
		if i < 4 {
			assert.False(t, last.Learned, "answer %d", i+1)
		}
	}
	assert.True(t, last.Result.Graduated)
	assert.True(t, last.Learned)
	assert.Equal(t, 7, last.Result.State.Interval)

	stored, err := e.db.GetCollections()
	require.NoError(t, err)
	assert.True(t, stored.Flashcards[0].Learned)

	resp := e.do(t, http.MethodPost, "/api/study/"+ids[0]+"/answer", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = e.do(t, http.MethodPost, "/api/study/missing/answer", map[string]any{"correct": true})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStudyAnswerLockedCategoryLeavesScheduleUntouched(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	catID, ids := e.seed(t, 2)
	stored := srs.State{Interval: 5, EaseFactor: srs.MinEaseFactor, Repetition: 4}
	require.NoError(t, e.states.Save(ctx, map[string]srs.State{ids[0]: stored}))
	_, err := e.cards.ToggleCategoryLock(catID)
	require.NoError(t, err)

	for _, correct := range []bool{true, false} {
		resp := e.do(t, http.MethodPost, "/api/study/"+ids[0]+"/answer", map[string]any{"correct": correct})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	}
	resp := e.do(t, http.MethodPost, "/api/study/"+ids[1]+"/answer", map[string]any{"correct": false})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	states, err := e.states.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]srs.State{ids[0]: stored}, states)

	card, _ := e.cards.Flashcard(ids[0])
	assert.False(t, card.Learned)
	assert.Equal(t, study.Tally{}, decode[study.Tally](t, e.do(t, http.MethodGet, "/api/study/tally", nil)))
}

func TestStudyTally(t *testing.T) {
	e := newTestEnv(t)
	_, ids := e.seed(t, 2)

	e.do(t, http.MethodPost, "/api/study/"+ids[0]+"/answer", map[string]any{"correct": true})
	resp := e.do(t, http.MethodPost, "/api/study/"+ids[1]+"/answer", map[string]any{"correct": false})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, study.Tally{Correct: 1, Incorrect: 1}, decode[studyAnswerResponse](t, resp).Tally)

	assert.Equal(t, study.Tally{Correct: 1, Incorrect: 1}, decode[study.Tally](t, e.do(t, http.MethodGet, "/api/study/tally", nil)))
	assert.Equal(t, study.Tally{}, decode[study.Tally](t, e.do(t, http.MethodDelete, "/api/study/tally", nil)))
	assert.Equal(t, study.Tally{}, decode[study.Tally](t, e.do(t, http.MethodGet, "/api/study/tally", nil)))
}

func TestListFlashcards(t *testing.T) {
	e := newTestEnv(t)
	catID, ids := e.seed(t, 3)
	otherID, _ := e.seed(t, 1)
	e.do(t, http.MethodPost, "/api/flashcards/"+ids[0]+"/learned", nil)

	tests := []struct {
		query string
		want  int
	}{
		{"", 4},
		{"?learned=true", 1},
		{"?learned=false", 3},
		{"?categoryId=" + catID, 3},
		{"?categoryId=" + otherID + "&learned=true", 0},
		{"?categoryId=" + catID + "&learned=false", 2},
	}
	for _, tt := range tests {
		t.Run("query"+tt.query, func(t *testing.T) {
			resp := e.do(t, http.MethodGet, "/api/flashcards"+tt.query, nil)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Len(t, decode[[]domain.Flashcard](t, resp), tt.want)
		})
	}

	resp := e.do(t, http.MethodGet, "/api/flashcards?learned=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = e.do(t, http.MethodGet, "/api/flashcards?categoryId=missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestQuizAttemptEndpoints(t *testing.T) {
	e := newTestEnv(t)

	invalid := []map[string]any{
		{"totalQuestions": 0, "correctAnswers": 0},
		{"totalQuestions": 5, "correctAnswers": 6},
		{"totalQuestions": 5, "correctAnswers": -1},
		{"totalQuestions": 2.5, "correctAnswers": 1},
		{"correctAnswers": 1},
	}
	for _, body := range invalid {
		resp := e.do(t, http.MethodPost, "/api/quiz-attempts", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "%v", body)
	}

	resp := e.do(t, http.MethodPost, "/api/quiz-attempts", map[string]any{
		"totalQuestions": 5, "correctAnswers": 3, "submittedAt": "2024-03-09T08:00:00Z",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	type summaryResponse struct {
		RangeDays int                       `json:"rangeDays"`
		Data      []domain.DailyQuizSummary `json:"data"`
	}
	tests := []struct {
		query string
		want  int
	}{
		{"", 7},
		{"?days=3", 7},
		{"?days=14", 14},
		{"?days=90", 30},
		{"?days=abc", 7},
	}
	for _, tt := range tests {
		t.Run("days"+tt.query, func(t *testing.T) {
			got := decode[summaryResponse](t, e.do(t, http.MethodGet, "/api/quiz-attempts"+tt.query, nil))
			assert.Equal(t, tt.want, got.RangeDays)
			require.Len(t, got.Data, tt.want)
			assert.Equal(t, "2024-03-10", got.Data[tt.want-1].Date)
			assert.Equal(t, domain.DailyQuizSummary{Date: "2024-03-09", AttemptCount: 1, TotalQuestions: 5, CorrectAnswers: 3}, got.Data[tt.want-2])
		})
	}
}

func TestClampRange(t *testing.T) {
	assert.Equal(t, 7, ClampRange(-1))
	assert.Equal(t, 10, ClampRange(10))
	assert.Equal(t, 30, ClampRange(31))
}

// currentCorrectOption reads the correct option straight from the stored
// session; the API never exposes it while the quiz is running.
func (e *testEnv) currentCorrectOption(t *testing.T, id string) string {
	t.Helper()
	e.server.sessionsMu.Lock()
	qs := e.server.sessions[id]
	e.server.sessionsMu.Unlock()
	require.NotNil(t, qs)
	q, ok := qs.session.CurrentQuestion()
	require.True(t, ok)
	return q.CorrectOptionID
}

func TestQuizSessionFlow(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t, 6)

	resp := e.do(t, http.MethodPost, "/api/quiz/sessions", map[string]any{"questionCount": 3})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	view := decode[sessionView](t, resp)
	require.Equal(t, quiz.InProgress, view.Status)
	require.Equal(t, 3, view.TotalQuestions)
	require.NotNil(t, view.Question)
	assert.Len(t, view.Question.Options, quiz.OptionsPerQuestion)

	base := "/api/quiz/sessions/" + view.ID

	// Advancing without an answer is a no-op.
	view = decode[sessionView](t, e.do(t, http.MethodPost, base+"/next", nil))
	assert.Equal(t, 0, view.CurrentIndex)

	var wrongQuestion string
	for i := 0; i < 3; i++ {
		correct := e.currentCorrectOption(t, view.ID)
		choice := correct
		if i == 1 {
			for _, o := range view.Question.Options {
				if o.ID != correct {
					choice = o.ID
					break
				}
			}
			wrongQuestion = view.Question.ID
		}
		view = decode[sessionView](t, e.do(t, http.MethodPost, base+"/select", map[string]any{"optionId": choice}))
		assert.Equal(t, choice, view.Question.SelectedOptionID)
		view = decode[sessionView](t, e.do(t, http.MethodPost, base+"/next", nil))
	}

	assert.Equal(t, quiz.Completed, view.Status)
	require.NotNil(t, view.Score)
	assert.Equal(t, quiz.Score{Correct: 2, Total: 3}, *view.Score)
	require.Len(t, view.Review, 3)
	for _, r := range view.Review {
		assert.NotEmpty(t, r.CorrectOptionID)
		assert.Equal(t, r.ID != wrongQuestion, r.Correct, "question %s", r.ID)
	}

	// A repeated advance must not record a second attempt.
	e.do(t, http.MethodPost, base+"/next", nil)
	summary, err := e.db.QuizAttemptSummary(7, e.server.now())
	require.NoError(t, err)
	assert.Equal(t, domain.DailyQuizSummary{Date: "2024-03-10", AttemptCount: 1, TotalQuestions: 3, CorrectAnswers: 2}, summary[6])

	view = decode[sessionView](t, e.do(t, http.MethodPost, base+"/start", map[string]any{"questionCount": 4}))
	assert.Equal(t, quiz.InProgress, view.Status)
	assert.Equal(t, 0, view.CurrentIndex)
	assert.Equal(t, 4, view.QuestionCount)
	assert.Equal(t, 4, view.TotalQuestions)
	assert.Empty(t, view.Review)

	view = decode[sessionView](t, e.do(t, http.MethodPost, base+"/reset", nil))
	assert.Equal(t, quiz.Idle, view.Status)
	assert.Nil(t, view.Question)

	resp = e.do(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = e.do(t, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestQuizSessionHidesCorrectOptionUntilCompleted(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t, 5)

	view := decode[sessionView](t, e.do(t, http.MethodPost, "/api/quiz/sessions", map[string]any{"questionCount": 2}))
	base := "/api/quiz/sessions/" + view.ID

	for i := 0; i < 2; i++ {
		resp := e.do(t, http.MethodPost, base+"/select", map[string]any{"optionId": view.Question.Options[0].ID})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		resp.Body.Close()
		assert.NotContains(t, string(raw), "correctOptionId")
		assert.NotContains(t, string(raw), "isCorrect")

		view = decode[sessionView](t, e.do(t, http.MethodPost, base+"/next", nil))
	}
	require.Equal(t, quiz.Completed, view.Status)
	assert.Len(t, view.Review, 2)
}

func TestQuizSessionExpires(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t, 4)
	start := e.server.now()

	first := decode[sessionView](t, e.do(t, http.MethodPost, "/api/quiz/sessions", nil))
	e.server.now = func() time.Time { return start.Add(DefaultSessionTTL / 2) }
	second := decode[sessionView](t, e.do(t, http.MethodPost, "/api/quiz/sessions", nil))

	// Touching the first session keeps it alive past its original deadline.
	resp := e.do(t, http.MethodGet, "/api/quiz/sessions/"+first.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	e.server.now = func() time.Time { return start.Add(DefaultSessionTTL + time.Minute) }
	resp = e.do(t, http.MethodGet, "/api/quiz/sessions/"+first.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	e.server.now = func() time.Time { return start.Add(3 * DefaultSessionTTL) }
	resp = e.do(t, http.MethodGet, "/api/quiz/sessions/"+second.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	e.server.sessionsMu.Lock()
	defer e.server.sessionsMu.Unlock()
	assert.Empty(t, e.server.sessions)
}

func TestQuizSessionTooFewFlashcards(t *testing.T) {
	e := newTestEnv(t)
	catID, _ := e.seed(t, 3)

	resp := e.do(t, http.MethodPost, "/api/quiz/sessions", nil)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, quiz.ErrTooFewFlashcards.Error(), body["error"])

	resp = e.do(t, http.MethodPost, "/api/quiz/sessions", map[string]any{"categoryId": "missing"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	e.seed(t, 4)
	resp = e.do(t, http.MethodPost, "/api/quiz/sessions", map[string]any{"categoryId": catID})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestProgressAndCategories(t *testing.T) {
	e := newTestEnv(t)
	_, ids := e.seed(t, 4)
	e.do(t, http.MethodPost, "/api/flashcards/"+ids[0]+"/learned", nil)

	stats := decode[collection.Stats](t, e.do(t, http.MethodGet, "/api/progress", nil))
	assert.Equal(t, collection.Stats{Total: 4, Learned: 1, Unlearned: 3, LearnedPercentage: 25, UnlearnedPercentage: 75}, stats)

	type categoriesResponse struct {
		Categories []domain.Category                   `json:"categories"`
		Paths      map[string]collection.CategoryMeta `json:"paths"`
	}
	cats := decode[categoriesResponse](t, e.do(t, http.MethodGet, "/api/categories", nil))
	require.Len(t, cats.Categories, 1)
	assert.Equal(t, "Spanish", cats.Paths[cats.Categories[0].ID].Path)
}

func TestHydrate(t *testing.T) {
	e := newTestEnv(t)
	require.NoError(t, e.db.ReplaceCollections(domain.Collection{
		Categories: []domain.Category{{ID: "cat", Name: "Stored"}},
		Flashcards: []domain.Flashcard{{ID: "c1", Front: "f", Back: "b", CategoryID: "cat"}},
	}))

	require.NoError(t, e.server.Hydrate())
	_, ok := e.cards.Flashcard("c1")
	assert.True(t, ok)
}
