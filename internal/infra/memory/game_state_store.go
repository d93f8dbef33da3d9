package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"quiz-rooms-service/internal/domain"
)

// GameStateStore is an in-memory implementation of app.GameStateRepository,
// used in tests and for running without Redis. One mutex stands in for the
// per-key atomicity the Redis scripts provide.
type GameStateStore struct {
	mu          sync.Mutex
	states      map[string]domain.GameState
	answers     map[string]map[int]map[string]domain.AnswerRecord
	leaderboard map[string]map[string]domain.LeaderboardEntry
	ended       map[string]time.Time
}

func NewGameStateStore() *GameStateStore {
	return &GameStateStore{
		states:      make(map[string]domain.GameState),
		answers:     make(map[string]map[int]map[string]domain.AnswerRecord),
		leaderboard: make(map[string]map[string]domain.LeaderboardEntry),
		ended:       make(map[string]time.Time),
	}
}

func (s *GameStateStore) SetGameState(_ context.Context, roomID string, state domain.GameState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[roomID] = state
	return nil
}

func (s *GameStateStore) GetGameState(_ context.Context, roomID string) (domain.GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[roomID]
	if !ok {
		return domain.GameState{}, domain.ErrGameStateNotFound
	}
	return state, nil
}

func (s *GameStateStore) HasAnswer(_ context.Context, roomID string, questionIndex int, playerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.answers[roomID][questionIndex][playerID]
	return ok, nil
}

func (s *GameStateStore) ApplyAnswer(_ context.Context, roomID string, questionIndex int, playerID string, rec domain.AnswerRecord) (domain.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byQuestion, ok := s.answers[roomID]
	if !ok {
		byQuestion = make(map[int]map[string]domain.AnswerRecord)
		s.answers[roomID] = byQuestion
	}
	byPlayer, ok := byQuestion[questionIndex]
	if !ok {
		byPlayer = make(map[string]domain.AnswerRecord)
		byQuestion[questionIndex] = byPlayer
	}
	if _, exists := byPlayer[playerID]; exists {
		return domain.LeaderboardEntry{}, domain.ErrAlreadyAnswered
	}
	byPlayer[playerID] = rec

	board, ok := s.leaderboard[roomID]
	if !ok {
		board = make(map[string]domain.LeaderboardEntry)
		s.leaderboard[roomID] = board
	}
	entry := board[playerID]
	entry.PlayerID = playerID
	entry.Score += rec.Points
	if rec.IsCorrect {
		entry.CorrectAnswers++
		entry.Streak++
	} else {
		entry.Streak = 0
	}
	entry.LastAnswerTime = rec.Timestamp
	board[playerID] = entry
	return entry, nil
}

func (s *GameStateStore) Leaderboard(_ context.Context, roomID string) ([]domain.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedLeaderboard(s.leaderboard[roomID]), nil
}

func (s *GameStateStore) MarkEnded(_ context.Context, roomID string, endedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended[roomID] = endedAt
	return nil
}

func (s *GameStateStore) ListEndedBefore(_ context.Context, cutoff time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for roomID, endedAt := range s.ended {
		if endedAt.Before(cutoff) {
			ids = append(ids, roomID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *GameStateStore) Snapshot(_ context.Context, roomID string) (*domain.GameState, []domain.LeaderboardEntry, map[int]map[string]domain.AnswerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var state *domain.GameState
	if st, ok := s.states[roomID]; ok {
		copied := st
		state = &copied
	}

	var answers map[int]map[string]domain.AnswerRecord
	if byQuestion, ok := s.answers[roomID]; ok {
		answers = make(map[int]map[string]domain.AnswerRecord, len(byQuestion))
		for q, byPlayer := range byQuestion {
			answers[q] = make(map[string]domain.AnswerRecord, len(byPlayer))
			for player, rec := range byPlayer {
				answers[q][player] = rec
			}
		}
	}

	return state, sortedLeaderboard(s.leaderboard[roomID]), answers, nil
}

func (s *GameStateStore) Purge(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, roomID)
	delete(s.answers, roomID)
	delete(s.leaderboard, roomID)
	delete(s.ended, roomID)
	return nil
}

// sortedLeaderboard orders by score descending, earlier answer first on ties,
// then player ID for stability.
func sortedLeaderboard(board map[string]domain.LeaderboardEntry) []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, 0, len(board))
	for _, entry := range board {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		if entries[i].LastAnswerTime != entries[j].LastAnswerTime {
			return entries[i].LastAnswerTime < entries[j].LastAnswerTime
		}
		return entries[i].PlayerID < entries[j].PlayerID
	})
	return entries
}
