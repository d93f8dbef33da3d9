package domain

import "errors"

var (
	// ErrUnauthenticated is returned when a request carries no verified caller identity.
	ErrUnauthenticated = errors.New("caller is not authenticated")
	// ErrRoomNotFound is returned when a room ID or join code resolves to nothing.
	ErrRoomNotFound = errors.New("room not found")
	// ErrGameStateNotFound indicates the room has no live game state (not started or already archived).
	ErrGameStateNotFound = errors.New("game state not found")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates a question index is out of range for the quiz.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrTooLate is returned when an answer arrives after the time limit plus grace period.
	// Terminal for that question; clients must not resubmit.
	ErrTooLate = errors.New("answer submitted too late")
	// ErrAlreadyAnswered is returned on a duplicate submission for the same question.
	// Terminal for that question; clients must not resubmit.
	ErrAlreadyAnswered = errors.New("answer already submitted")
	// ErrRateLimited is returned when a caller exceeds the per-action request budget.
	ErrRateLimited = errors.New("too many requests")
	// ErrWrongPassword is returned when a private room's password does not match.
	ErrWrongPassword = errors.New("wrong room password")
	// ErrRoomFull is returned when a room has reached its player capacity.
	ErrRoomFull = errors.New("room is full")
	// ErrLateJoinDisabled is returned when joining an in-progress room that forbids late joins.
	ErrLateJoinDisabled = errors.New("room does not allow late joins")
	// ErrNotHost is returned when a non-host caller attempts a host-only action.
	ErrNotHost = errors.New("caller is not the room host")
	// ErrInvalidTransition is returned when a room status change would regress the lifecycle.
	ErrInvalidTransition = errors.New("invalid room status transition")
)
