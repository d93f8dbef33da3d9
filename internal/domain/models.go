package domain

import "time"

// RoomStatus is the room lifecycle state. Transitions are monotonic:
// waiting -> in-progress -> finished -> archived, no regressions.
type RoomStatus string

const (
	RoomWaiting    RoomStatus = "waiting"
	RoomInProgress RoomStatus = "in-progress"
	RoomFinished   RoomStatus = "finished"
	RoomArchived   RoomStatus = "archived"
)

var statusRank = map[RoomStatus]int{
	RoomWaiting:    0,
	RoomInProgress: 1,
	RoomFinished:   2,
	RoomArchived:   3,
}

// CanTransition reports whether moving to next advances the lifecycle by exactly one step.
func (s RoomStatus) CanTransition(next RoomStatus) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	return to == from+1
}

// RoomSettings is configured by the host at room creation.
type RoomSettings struct {
	MaxPlayers      int    `json:"maxPlayers"`
	TimePerQuestion int    `json:"timePerQuestion"` // seconds
	IsPrivate       bool   `json:"isPrivate"`
	PasswordHash    string `json:"passwordHash,omitempty"`
	ShowLeaderboard bool   `json:"showLeaderboard"`
	AllowLateJoin   bool   `json:"allowLateJoin"`
}

// RoomPlayer is a durable membership record inside a room.
type RoomPlayer struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Room is the durable room record. Exactly one HostID per room.
type Room struct {
	ID        string       `json:"id"`
	Code      string       `json:"code"`
	HostID    string       `json:"hostId"`
	QuizID    string       `json:"quizId"`
	Settings  RoomSettings `json:"settings"`
	Status    RoomStatus   `json:"status"`
	Players   []RoomPlayer `json:"players"`
	CreatedAt time.Time    `json:"createdAt"`
	StartedAt *time.Time   `json:"startedAt,omitempty"`
	EndedAt   *time.Time   `json:"endedAt,omitempty"`
}

// GameState is the fast-changing per-room state held in the ephemeral store.
// Written only by the scoring engine and host advance actions, never by players.
type GameState struct {
	QuestionStartTime int64 `json:"questionStartTime"` // unix millis, server clock
	TimeLimit         int   `json:"timeLimit"`         // seconds
	CurrentQuestion   int   `json:"currentQuestionIndex"`
}

// AnswerRecord is the at-most-once submission record per (room, question, player).
type AnswerRecord struct {
	Answer       int   `json:"answer"` // index in the caller's shuffled option view
	IsCorrect    bool  `json:"isCorrect"`
	Points       int   `json:"points"`
	Timestamp    int64 `json:"timestamp"`    // unix millis, server clock
	TimeToAnswer int64 `json:"timeToAnswer"` // millis since question start
}

// LeaderboardEntry accumulates a player's results for a room.
// Score and CorrectAnswers are monotonically non-decreasing; Streak resets on
// an incorrect answer. Mutated only by the scoring engine via atomic updates.
type LeaderboardEntry struct {
	PlayerID       string `json:"playerId"`
	Score          int    `json:"score"`
	CorrectAnswers int    `json:"correctAnswers"`
	Streak         int    `json:"streak"`
	LastAnswerTime int64  `json:"lastAnswerTime"` // unix millis
}

// AnswerResult is returned to the submitting client after server-side validation.
// CorrectAnswer is the relocated per-player option index, revealed only post-validation.
type AnswerResult struct {
	IsCorrect     bool  `json:"isCorrect"`
	Points        int   `json:"points"`
	CorrectAnswer int   `json:"correctAnswer"`
	TimeToAnswer  int64 `json:"timeToAnswer"`
}

// Question models an MCQ question. CorrectAnswer indexes into Options and is
// never serialized to clients in its stored form.
type Question struct {
	Prompt        string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Explanation   string   `json:"explanation,omitempty"`
}

// Quiz is an ordered question bank.
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// PlayerQuestion is one question in a player's deterministic shuffled view.
// CorrectAnswer is the relocated index; it is only meaningful positionally for
// this player and reveals nothing about other players' views.
type PlayerQuestion struct {
	Index         int      `json:"index"`
	Prompt        string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Explanation   string   `json:"explanation,omitempty"`
}

// ChatMessage is relayed between players in a room.
type ChatMessage struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Text       string `json:"text"`
	SentAt     int64  `json:"sentAt"` // unix millis
}

// ArchivedRoom is the cold-storage snapshot written by the archival sweep.
type ArchivedRoom struct {
	RoomID      string                          `json:"roomId"`
	Room        Room                            `json:"room"`
	GameState   *GameState                      `json:"gameState,omitempty"`
	Leaderboard []LeaderboardEntry              `json:"leaderboard,omitempty"`
	Answers     map[int]map[string]AnswerRecord `json:"answers,omitempty"`
	ArchivedAt  time.Time                       `json:"archivedAt"`
}
