package app

import (
	"context"
	"time"

	"quiz-rooms-service/internal/domain"
)

// RoomRepository persists durable room records.
type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	GetByID(ctx context.Context, id string) (domain.Room, error)
	GetByCode(ctx context.Context, code string) (domain.Room, error)
	Update(ctx context.Context, room *domain.Room) error
	UpdateStatus(ctx context.Context, id string, status domain.RoomStatus) error
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// GameStateRepository is the ephemeral store for fast-changing game state.
// ApplyAnswer must be atomic: the existence check, the answer record write and
// the leaderboard update commit as one unit or not at all.
type GameStateRepository interface {
	SetGameState(ctx context.Context, roomID string, state domain.GameState) error
	GetGameState(ctx context.Context, roomID string) (domain.GameState, error)
	HasAnswer(ctx context.Context, roomID string, questionIndex int, playerID string) (bool, error)
	ApplyAnswer(ctx context.Context, roomID string, questionIndex int, playerID string, rec domain.AnswerRecord) (domain.LeaderboardEntry, error)
	Leaderboard(ctx context.Context, roomID string) ([]domain.LeaderboardEntry, error)
	MarkEnded(ctx context.Context, roomID string, endedAt time.Time) error
	ListEndedBefore(ctx context.Context, cutoff time.Time) ([]string, error)
	Snapshot(ctx context.Context, roomID string) (*domain.GameState, []domain.LeaderboardEntry, map[int]map[string]domain.AnswerRecord, error)
	Purge(ctx context.Context, roomID string) error
}

// CounterStore increments a fixed-window counter atomically. The first
// increment of a window starts it; resetAt reports when the window expires.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)
}

// ArchiveSink receives cold-storage snapshots of archived rooms.
type ArchiveSink interface {
	Archive(ctx context.Context, snapshot domain.ArchivedRoom) error
}

// PasswordHasher hashes and verifies private-room passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) (bool, error)
}
