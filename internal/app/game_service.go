package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"quiz-rooms-service/internal/domain"
	"quiz-rooms-service/internal/game"
)

// ScoringConfig carries the tuning constants for the scoring formula.
type ScoringConfig struct {
	GracePeriod   time.Duration
	BasePoints    int
	SpeedBonusMax int
}

// DefaultScoring matches the values the game has always shipped with.
var DefaultScoring = ScoringConfig{
	GracePeriod:   2 * time.Second,
	BasePoints:    1000,
	SpeedBonusMax: 500,
}

// GameService is the server-side authority for answer validation, scoring and
// per-player question variants. Clients are trusted for nothing beyond their
// verified identity: timing uses the server clock, correctness is checked
// against the durable answer key, and scores are always computed here.
type GameService struct {
	rooms   RoomRepository
	quizzes QuizRepository
	states  GameStateRepository
	scoring ScoringConfig
	now     func() time.Time
}

func NewGameService(rooms RoomRepository, quizzes QuizRepository, states GameStateRepository, scoring ScoringConfig) *GameService {
	return &GameService{
		rooms:   rooms,
		quizzes: quizzes,
		states:  states,
		scoring: scoring,
		now:     time.Now,
	}
}

// NewGameServiceWithClock is test-only for deterministic timing.
func NewGameServiceWithClock(rooms RoomRepository, quizzes QuizRepository, states GameStateRepository, scoring ScoringConfig, now func() time.Time) *GameService {
	s := NewGameService(rooms, quizzes, states, scoring)
	s.now = now
	return s
}

// SubmitAnswer validates and scores a submission for (roomID, questionIndex).
// answer is the option index in the caller's shuffled view. The returned
// CorrectAnswer is the relocated per-player index, revealed only after
// validation. ErrTooLate and ErrAlreadyAnswered are terminal for the question.
func (s *GameService) SubmitAnswer(ctx context.Context, callerID, roomID string, questionIndex, answer int) (domain.AnswerResult, error) {
	if callerID == "" {
		return domain.AnswerResult{}, domain.ErrUnauthenticated
	}

	state, err := s.states.GetGameState(ctx, roomID)
	if err != nil {
		return domain.AnswerResult{}, err
	}

	serverTime := s.now().UnixMilli()
	elapsed := serverTime - state.QuestionStartTime
	if elapsed > int64(state.TimeLimit)*1000+s.scoring.GracePeriod.Milliseconds() {
		return domain.AnswerResult{}, domain.ErrTooLate
	}

	taken, err := s.states.HasAnswer(ctx, roomID, questionIndex, callerID)
	if err != nil {
		return domain.AnswerResult{}, fmt.Errorf("check answer record: %w", err)
	}
	if taken {
		return domain.AnswerResult{}, domain.ErrAlreadyAnswered
	}

	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	quiz, err := s.quizzes.GetQuiz(ctx, room.QuizID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	if questionIndex < 0 || questionIndex >= len(quiz.Questions) {
		return domain.AnswerResult{}, domain.ErrQuestionNotFound
	}
	question := quiz.Questions[questionIndex]

	// The caller answered positionally against their private option order, so
	// the stored correct index is relocated through the same permutation.
	perm := playerPermutation(quiz, callerID, roomID, questionIndex)
	relocated := relocateIndex(perm, question.CorrectAnswer)

	isCorrect := answer == relocated
	points := 0
	if isCorrect {
		points = s.scoring.BasePoints + speedBonus(s.scoring.SpeedBonusMax, elapsed, state.TimeLimit)
	}

	rec := domain.AnswerRecord{
		Answer:       answer,
		IsCorrect:    isCorrect,
		Points:       points,
		Timestamp:    serverTime,
		TimeToAnswer: elapsed,
	}
	// The write is the real duplicate guard: the store commits the record and
	// the leaderboard update atomically, or rejects the whole submission.
	if _, err := s.states.ApplyAnswer(ctx, roomID, questionIndex, callerID, rec); err != nil {
		return domain.AnswerResult{}, err
	}

	log.Printf("answer validated room=%s question=%d player=%s correct=%v points=%d elapsed=%dms",
		roomID, questionIndex, callerID, isCorrect, points, elapsed)

	return domain.AnswerResult{
		IsCorrect:     isCorrect,
		Points:        points,
		CorrectAnswer: relocated,
		TimeToAnswer:  elapsed,
	}, nil
}

// PlayerQuestions returns the quiz in the caller's deterministic shuffled
// view. Calling this twice for the same (player, room) yields byte-identical
// output; nothing is persisted.
func (s *GameService) PlayerQuestions(ctx context.Context, callerID, roomID string) ([]domain.PlayerQuestion, error) {
	if callerID == "" {
		return nil, domain.ErrUnauthenticated
	}

	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	quiz, err := s.quizzes.GetQuiz(ctx, room.QuizID)
	if err != nil {
		return nil, err
	}
	if len(quiz.Questions) == 0 {
		return nil, domain.ErrQuizNotFound
	}

	rng := game.NewRand(game.Seed(callerID, roomID))
	out := make([]domain.PlayerQuestion, 0, len(quiz.Questions))
	for i, q := range quiz.Questions {
		perm := rng.Perm(len(q.Options))
		options := make([]string, len(perm))
		for pos, orig := range perm {
			options[pos] = q.Options[orig]
		}
		out = append(out, domain.PlayerQuestion{
			Index:         i,
			Prompt:        q.Prompt,
			Options:       options,
			CorrectAnswer: relocateIndex(perm, q.CorrectAnswer),
			Explanation:   q.Explanation,
		})
	}
	return out, nil
}

// Leaderboard returns the room's current standings ordered by score.
func (s *GameService) Leaderboard(ctx context.Context, roomID string) ([]domain.LeaderboardEntry, error) {
	return s.states.Leaderboard(ctx, roomID)
}

// playerPermutation replays the caller's generator up to questionIndex. The
// generator is sequential across questions, so earlier shuffles must be drawn
// even though only the last one is returned.
func playerPermutation(quiz domain.Quiz, playerID, roomID string, questionIndex int) []int {
	rng := game.NewRand(game.Seed(playerID, roomID))
	var perm []int
	for i := 0; i <= questionIndex; i++ {
		perm = rng.Perm(len(quiz.Questions[i].Options))
	}
	return perm
}

// relocateIndex returns the position at which the original index appears in perm.
func relocateIndex(perm []int, original int) int {
	for pos, orig := range perm {
		if orig == original {
			return pos
		}
	}
	return -1
}

// speedBonus decays linearly from max (instant answer) to 0 (answer at the
// time-limit boundary). Answers inside the grace window score no bonus.
func speedBonus(max int, elapsedMs int64, timeLimitSeconds int) int {
	limit := float64(timeLimitSeconds) * 1000
	frac := 1 - float64(elapsedMs)/limit
	if frac < 0 {
		frac = 0
	}
	return int(float64(max) * frac)
}
