package app

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"quiz-rooms-service/internal/domain"
)

const roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const (
	defaultMaxPlayers      = 4
	defaultTimePerQuestion = 30
)

// RoomService owns the durable room lifecycle: creation, membership and the
// monotonic waiting -> in-progress -> finished transitions. Game state writes
// happen only here (host actions) and in the scoring engine.
type RoomService struct {
	rooms   RoomRepository
	quizzes QuizRepository
	states  GameStateRepository
	hasher  PasswordHasher
	now     func() time.Time
	newID   func() string
}

func NewRoomService(rooms RoomRepository, quizzes QuizRepository, states GameStateRepository, hasher PasswordHasher) *RoomService {
	return &RoomService{
		rooms:   rooms,
		quizzes: quizzes,
		states:  states,
		hasher:  hasher,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// NewRoomServiceWithClock is test-only for deterministic timestamps and IDs.
func NewRoomServiceWithClock(rooms RoomRepository, quizzes QuizRepository, states GameStateRepository, hasher PasswordHasher, now func() time.Time, newID func() string) *RoomService {
	s := NewRoomService(rooms, quizzes, states, hasher)
	s.now = now
	s.newID = newID
	return s
}

// CreateRoom creates a room hosted by hostID for the given quiz. Private rooms
// store only the argon2id hash of the password.
func (s *RoomService) CreateRoom(ctx context.Context, hostID, hostName, quizID string, settings domain.RoomSettings, password string) (domain.Room, error) {
	if hostID == "" {
		return domain.Room{}, domain.ErrUnauthenticated
	}
	if _, err := s.quizzes.GetQuiz(ctx, quizID); err != nil {
		return domain.Room{}, err
	}

	if settings.MaxPlayers <= 0 {
		settings.MaxPlayers = defaultMaxPlayers
	}
	if settings.TimePerQuestion <= 0 {
		settings.TimePerQuestion = defaultTimePerQuestion
	}
	if settings.IsPrivate && password != "" {
		hash, err := s.hasher.Hash(password)
		if err != nil {
			return domain.Room{}, fmt.Errorf("hash room password: %w", err)
		}
		settings.PasswordHash = hash
	}

	now := s.now()
	room := domain.Room{
		ID:       s.newID(),
		Code:     newRoomCode(),
		HostID:   hostID,
		QuizID:   quizID,
		Settings: settings,
		Status:   domain.RoomWaiting,
		Players: []domain.RoomPlayer{
			{ID: hostID, Name: hostName, JoinedAt: now},
		},
		CreatedAt: now,
	}
	if err := s.rooms.Create(ctx, &room); err != nil {
		return domain.Room{}, fmt.Errorf("create room: %w", err)
	}
	return room, nil
}

// JoinRoom adds callerID to the room identified by its join code. A player
// already in the room rejoins without further checks.
func (s *RoomService) JoinRoom(ctx context.Context, callerID, name, code, password string) (domain.Room, error) {
	if callerID == "" {
		return domain.Room{}, domain.ErrUnauthenticated
	}
	room, err := s.rooms.GetByCode(ctx, code)
	if err != nil {
		return domain.Room{}, err
	}

	for _, p := range room.Players {
		if p.ID == callerID {
			return room, nil
		}
	}

	switch room.Status {
	case domain.RoomWaiting:
	case domain.RoomInProgress:
		if !room.Settings.AllowLateJoin {
			return domain.Room{}, domain.ErrLateJoinDisabled
		}
	default:
		return domain.Room{}, domain.ErrRoomNotFound
	}

	if room.Settings.IsPrivate && room.Settings.PasswordHash != "" {
		match, err := s.hasher.Compare(room.Settings.PasswordHash, password)
		if err != nil {
			return domain.Room{}, fmt.Errorf("compare room password: %w", err)
		}
		if !match {
			return domain.Room{}, domain.ErrWrongPassword
		}
	}
	if len(room.Players) >= room.Settings.MaxPlayers {
		return domain.Room{}, domain.ErrRoomFull
	}

	room.Players = append(room.Players, domain.RoomPlayer{ID: callerID, Name: name, JoinedAt: s.now()})
	if err := s.rooms.Update(ctx, &room); err != nil {
		return domain.Room{}, fmt.Errorf("update room: %w", err)
	}
	return room, nil
}

// LeaveRoom removes callerID from the room's membership.
func (s *RoomService) LeaveRoom(ctx context.Context, callerID, roomID string) error {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return err
	}
	players := room.Players[:0]
	for _, p := range room.Players {
		if p.ID != callerID {
			players = append(players, p)
		}
	}
	room.Players = players
	return s.rooms.Update(ctx, &room)
}

// StartGame transitions the room to in-progress and seeds the ephemeral game
// state with the first question and a server-side start timestamp. Host only.
func (s *RoomService) StartGame(ctx context.Context, callerID, roomID string) (domain.GameState, error) {
	room, err := s.hostRoom(ctx, callerID, roomID)
	if err != nil {
		return domain.GameState{}, err
	}
	if !room.Status.CanTransition(domain.RoomInProgress) {
		return domain.GameState{}, domain.ErrInvalidTransition
	}

	now := s.now()
	room.Status = domain.RoomInProgress
	room.StartedAt = &now
	if err := s.rooms.Update(ctx, &room); err != nil {
		return domain.GameState{}, fmt.Errorf("update room: %w", err)
	}

	state := domain.GameState{
		QuestionStartTime: now.UnixMilli(),
		TimeLimit:         room.Settings.TimePerQuestion,
		CurrentQuestion:   0,
	}
	if err := s.states.SetGameState(ctx, roomID, state); err != nil {
		return domain.GameState{}, fmt.Errorf("seed game state: %w", err)
	}
	return state, nil
}

// AdvanceQuestion moves the room to the next question, restarting the server
// clock. Returns ErrQuestionNotFound past the last question. Host only.
func (s *RoomService) AdvanceQuestion(ctx context.Context, callerID, roomID string) (domain.GameState, error) {
	room, err := s.hostRoom(ctx, callerID, roomID)
	if err != nil {
		return domain.GameState{}, err
	}
	if room.Status != domain.RoomInProgress {
		return domain.GameState{}, domain.ErrInvalidTransition
	}

	state, err := s.states.GetGameState(ctx, roomID)
	if err != nil {
		return domain.GameState{}, err
	}
	quiz, err := s.quizzes.GetQuiz(ctx, room.QuizID)
	if err != nil {
		return domain.GameState{}, err
	}
	next := state.CurrentQuestion + 1
	if next >= len(quiz.Questions) {
		return domain.GameState{}, domain.ErrQuestionNotFound
	}

	state = domain.GameState{
		QuestionStartTime: s.now().UnixMilli(),
		TimeLimit:         room.Settings.TimePerQuestion,
		CurrentQuestion:   next,
	}
	if err := s.states.SetGameState(ctx, roomID, state); err != nil {
		return domain.GameState{}, fmt.Errorf("advance game state: %w", err)
	}
	return state, nil
}

// FinishGame transitions the room to finished and records it in the ended
// index so the archival sweep can find it later. Host only.
func (s *RoomService) FinishGame(ctx context.Context, callerID, roomID string) (domain.Room, error) {
	room, err := s.hostRoom(ctx, callerID, roomID)
	if err != nil {
		return domain.Room{}, err
	}
	if !room.Status.CanTransition(domain.RoomFinished) {
		return domain.Room{}, domain.ErrInvalidTransition
	}

	now := s.now()
	room.Status = domain.RoomFinished
	room.EndedAt = &now
	if err := s.rooms.Update(ctx, &room); err != nil {
		return domain.Room{}, fmt.Errorf("update room: %w", err)
	}
	if err := s.states.MarkEnded(ctx, roomID, now); err != nil {
		return domain.Room{}, fmt.Errorf("mark room ended: %w", err)
	}
	return room, nil
}

// GetRoom loads a room by ID.
func (s *RoomService) GetRoom(ctx context.Context, roomID string) (domain.Room, error) {
	return s.rooms.GetByID(ctx, roomID)
}

func (s *RoomService) hostRoom(ctx context.Context, callerID, roomID string) (domain.Room, error) {
	if callerID == "" {
		return domain.Room{}, domain.ErrUnauthenticated
	}
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return domain.Room{}, err
	}
	if room.HostID != callerID {
		return domain.Room{}, domain.ErrNotHost
	}
	return room, nil
}

func newRoomCode() string {
	code := make([]byte, 6)
	for i := range code {
		code[i] = roomCodeAlphabet[rand.Intn(len(roomCodeAlphabet))]
	}
	return string(code)
}
