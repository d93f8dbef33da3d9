package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quiz-rooms-service/internal/app"
	"quiz-rooms-service/internal/domain"
	"quiz-rooms-service/internal/infra/memory"
)

const (
	testRoomID = "room-1"
	testQuizID = "quiz-1"
)

type gameFixture struct {
	rooms  *memory.RoomRepository
	states *memory.GameStateStore
	start  time.Time
	now    time.Time
}

// newGameFixture builds a service over in-memory stores with a room whose
// first question started at fx.start and a controllable clock.
func newGameFixture(t *testing.T, timeLimit int) (*app.GameService, *gameFixture) {
	t.Helper()
	fx := &gameFixture{
		rooms:  memory.NewRoomRepository(),
		states: memory.NewGameStateStore(),
		start:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	fx.now = fx.start

	ctx := context.Background()
	if err := fx.rooms.Create(ctx, &domain.Room{
		ID:     testRoomID,
		Code:   "ABC123",
		HostID: "host-1",
		QuizID: testQuizID,
		Status: domain.RoomInProgress,
	}); err != nil {
		t.Fatalf("create room: %v", err)
	}
	if err := fx.states.SetGameState(ctx, testRoomID, domain.GameState{
		QuestionStartTime: fx.start.UnixMilli(),
		TimeLimit:         timeLimit,
		CurrentQuestion:   0,
	}); err != nil {
		t.Fatalf("seed game state: %v", err)
	}

	quizzes := memory.NewQuizRepository(memory.NewStaticQuizLoader(map[string]domain.Quiz{
		testQuizID: {
			ID: testQuizID,
			Questions: []domain.Question{
				{
					Prompt:        "Pick the right option",
					Options:       []string{"A", "B", "C", "D"},
					CorrectAnswer: 1,
				},
				{
					Prompt:        "Pick it again",
					Options:       []string{"E", "F", "G", "H"},
					CorrectAnswer: 3,
				},
			},
		},
	}), 5*time.Minute)

	service := app.NewGameServiceWithClock(fx.rooms, quizzes, fx.states, app.DefaultScoring, func() time.Time {
		return fx.now
	})
	return service, fx
}

// correctPosition resolves where the stored correct option landed in the
// player's shuffled view.
func correctPosition(t *testing.T, service *app.GameService, playerID string, questionIndex int) int {
	t.Helper()
	questions, err := service.PlayerQuestions(context.Background(), playerID, testRoomID)
	if err != nil {
		t.Fatalf("player questions: %v", err)
	}
	return questions[questionIndex].CorrectAnswer
}

func TestSubmitAnswerScoresWithSpeedBonus(t *testing.T) {
	service, fx := newGameFixture(t, 30)
	fx.now = fx.start.Add(5200 * time.Millisecond)

	answer := correctPosition(t, service, "player-x", 0)
	result, err := service.SubmitAnswer(context.Background(), "player-x", testRoomID, 0, answer)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !result.IsCorrect {
		t.Fatalf("expected correct answer")
	}
	// 1000 + floor(500 * (1 - 5.2/30)) = 1413
	if result.Points != 1413 {
		t.Fatalf("expected 1413 points, got %d", result.Points)
	}
	if result.TimeToAnswer != 5200 {
		t.Fatalf("expected 5200ms elapsed, got %d", result.TimeToAnswer)
	}
	if result.CorrectAnswer != answer {
		t.Fatalf("expected relocated correct index %d, got %d", answer, result.CorrectAnswer)
	}
}

func TestSubmitAnswerInstantAndBoundary(t *testing.T) {
	service, fx := newGameFixture(t, 30)

	// Instant answer: full speed bonus.
	answer := correctPosition(t, service, "player-a", 0)
	result, err := service.SubmitAnswer(context.Background(), "player-a", testRoomID, 0, answer)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Points != 1500 {
		t.Fatalf("expected 1500 points at t=0, got %d", result.Points)
	}

	// At the limit: base only.
	fx.now = fx.start.Add(30 * time.Second)
	answer = correctPosition(t, service, "player-b", 0)
	result, err = service.SubmitAnswer(context.Background(), "player-b", testRoomID, 0, answer)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Points != 1000 {
		t.Fatalf("expected 1000 points at the boundary, got %d", result.Points)
	}
}

func TestSubmitAnswerIncorrectScoresZero(t *testing.T) {
	service, fx := newGameFixture(t, 30)
	fx.now = fx.start.Add(2 * time.Second)

	correct := correctPosition(t, service, "player-y", 0)
	wrong := (correct + 1) % 4
	result, err := service.SubmitAnswer(context.Background(), "player-y", testRoomID, 0, wrong)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.IsCorrect || result.Points != 0 {
		t.Fatalf("expected incorrect answer worth 0, got %+v", result)
	}
	// The correct index is still revealed post-validation.
	if result.CorrectAnswer != correct {
		t.Fatalf("expected relocated correct index %d, got %d", correct, result.CorrectAnswer)
	}
}

func TestSubmitAnswerRejectsAfterGrace(t *testing.T) {
	service, fx := newGameFixture(t, 30)
	// 30s limit + 2s grace: 32s is the last accepted instant.
	fx.now = fx.start.Add(33 * time.Second)

	_, err := service.SubmitAnswer(context.Background(), "player-x", testRoomID, 0, 0)
	if !errors.Is(err, domain.ErrTooLate) {
		t.Fatalf("expected ErrTooLate, got %v", err)
	}
}

func TestSubmitAnswerWithinGraceScoresBaseOnly(t *testing.T) {
	service, fx := newGameFixture(t, 30)
	fx.now = fx.start.Add(31 * time.Second)

	answer := correctPosition(t, service, "player-x", 0)
	result, err := service.SubmitAnswer(context.Background(), "player-x", testRoomID, 0, answer)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Points != 1000 {
		t.Fatalf("expected base points inside the grace window, got %d", result.Points)
	}
}

func TestSubmitAnswerDuplicateRejected(t *testing.T) {
	service, fx := newGameFixture(t, 30)
	fx.now = fx.start.Add(time.Second)

	answer := correctPosition(t, service, "player-x", 0)
	first, err := service.SubmitAnswer(context.Background(), "player-x", testRoomID, 0, answer)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}

	_, err = service.SubmitAnswer(context.Background(), "player-x", testRoomID, 0, answer)
	if !errors.Is(err, domain.ErrAlreadyAnswered) {
		t.Fatalf("expected ErrAlreadyAnswered, got %v", err)
	}

	// The duplicate must not have touched the leaderboard.
	board, err := service.Leaderboard(context.Background(), testRoomID)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(board) != 1 || board[0].Score != first.Points || board[0].CorrectAnswers != 1 {
		t.Fatalf("expected single scoring event, got %+v", board)
	}
}

func TestSubmitAnswerConcurrentScoresOnce(t *testing.T) {
	service, fx := newGameFixture(t, 30)
	fx.now = fx.start.Add(time.Second)

	answer := correctPosition(t, service, "player-x", 0)
	const attempts = 8
	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = service.SubmitAnswer(context.Background(), "player-x", testRoomID, 0, answer)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, domain.ErrAlreadyAnswered) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one accepted submission, got %d", succeeded)
	}

	board, _ := service.Leaderboard(context.Background(), testRoomID)
	if len(board) != 1 || board[0].CorrectAnswers != 1 {
		t.Fatalf("expected one leaderboard increment, got %+v", board)
	}
}

func TestSubmitAnswerPreconditions(t *testing.T) {
	service, _ := newGameFixture(t, 30)
	ctx := context.Background()

	if _, err := service.SubmitAnswer(ctx, "", testRoomID, 0, 0); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if _, err := service.SubmitAnswer(ctx, "player-x", "missing-room", 0, 0); !errors.Is(err, domain.ErrGameStateNotFound) {
		t.Fatalf("expected ErrGameStateNotFound, got %v", err)
	}
	if _, err := service.SubmitAnswer(ctx, "player-x", testRoomID, 99, 0); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected ErrQuestionNotFound, got %v", err)
	}
}

func TestStreakResetsOnIncorrectAnswer(t *testing.T) {
	service, fx := newGameFixture(t, 30)
	ctx := context.Background()
	fx.now = fx.start.Add(time.Second)

	// Correct on question 0.
	if _, err := service.SubmitAnswer(ctx, "player-x", testRoomID, 0, correctPosition(t, service, "player-x", 0)); err != nil {
		t.Fatalf("submit q0: %v", err)
	}

	// Host advances; wrong on question 1.
	if err := fx.states.SetGameState(ctx, testRoomID, domain.GameState{
		QuestionStartTime: fx.now.UnixMilli(),
		TimeLimit:         30,
		CurrentQuestion:   1,
	}); err != nil {
		t.Fatalf("advance: %v", err)
	}
	correct := correctPosition(t, service, "player-x", 1)
	if _, err := service.SubmitAnswer(ctx, "player-x", testRoomID, 1, (correct+1)%4); err != nil {
		t.Fatalf("submit q1: %v", err)
	}

	board, err := service.Leaderboard(ctx, testRoomID)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	entry := board[0]
	if entry.Streak != 0 {
		t.Fatalf("expected streak reset, got %d", entry.Streak)
	}
	if entry.CorrectAnswers != 1 {
		t.Fatalf("expected 1 correct answer, got %d", entry.CorrectAnswers)
	}
	if entry.Score < 1000 {
		t.Fatalf("score must not decrease, got %d", entry.Score)
	}
}

func TestPlayerQuestionsDeterministic(t *testing.T) {
	service, _ := newGameFixture(t, 30)
	ctx := context.Background()

	first, err := service.PlayerQuestions(ctx, "player-x", testRoomID)
	if err != nil {
		t.Fatalf("player questions: %v", err)
	}
	second, err := service.PlayerQuestions(ctx, "player-x", testRoomID)
	if err != nil {
		t.Fatalf("player questions again: %v", err)
	}
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("expected both calls to return 2 questions")
	}
	for i := range first {
		if first[i].CorrectAnswer != second[i].CorrectAnswer {
			t.Fatalf("correct index diverged on question %d", i)
		}
		for j := range first[i].Options {
			if first[i].Options[j] != second[i].Options[j] {
				t.Fatalf("option order diverged on question %d", i)
			}
		}
	}
}

func TestPlayerQuestionsRelocateCorrectOption(t *testing.T) {
	service, _ := newGameFixture(t, 30)

	for _, player := range []string{"player-x", "player-y", "player-z"} {
		questions, err := service.PlayerQuestions(context.Background(), player, testRoomID)
		if err != nil {
			t.Fatalf("player questions: %v", err)
		}
		// Stored correct options are "B" (q0) and "H" (q1).
		if got := questions[0].Options[questions[0].CorrectAnswer]; got != "B" {
			t.Fatalf("player %s: relocated index points at %q, want B", player, got)
		}
		if got := questions[1].Options[questions[1].CorrectAnswer]; got != "H" {
			t.Fatalf("player %s: relocated index points at %q, want H", player, got)
		}
	}
}

func TestPlayerQuestionsRequiresAuthAndRoom(t *testing.T) {
	service, _ := newGameFixture(t, 30)
	ctx := context.Background()

	if _, err := service.PlayerQuestions(ctx, "", testRoomID); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if _, err := service.PlayerQuestions(ctx, "player-x", "missing-room"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}
