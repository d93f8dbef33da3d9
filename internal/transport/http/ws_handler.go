package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"quiz-rooms-service/internal/app"
	"quiz-rooms-service/internal/domain"
)

// TokenVerifier resolves a bearer token to a verified caller identity.
type TokenVerifier interface {
	Verify(token string) (uid, name string, err error)
}

// WSHandler wires websocket connections into the room and game use cases.
// It owns the per-connection state machine: the client's optimistic state is
// provisional and every server-confirmed event overwrites it.
type WSHandler struct {
	rooms    *app.RoomService
	games    *app.GameService
	hub      *app.RoomHub
	limiter  *app.RateLimiter
	verifier TokenVerifier
	upgrader websocket.Upgrader
}

func NewWSHandler(rooms *app.RoomService, games *app.GameService, hub *app.RoomHub, limiter *app.RateLimiter, verifier TokenVerifier) *WSHandler {
	return &WSHandler{
		rooms:    rooms,
		games:    games,
		hub:      hub,
		limiter:  limiter,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type answerPayload struct {
	QuestionIndex int `json:"questionIndex"`
	Answer        int `json:"answer"`
}

type chatPayload struct {
	Text string `json:"text"`
}

type joinedPayload struct {
	Room    domain.Room          `json:"room"`
	Present map[string]string    `json:"present"`
	Chat    []domain.ChatMessage `json:"chat,omitempty"`
}

type questionEvent struct {
	Index     int   `json:"index"`
	StartedAt int64 `json:"startedAt"` // server clock; clients derive the countdown from this
	TimeLimit int   `json:"timeLimit"`
}

// ServeWS upgrades the connection and runs the room session for one player.
// Required query params: roomId, token.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("roomId")
	if roomID == "" {
		http.Error(w, "missing roomId", http.StatusBadRequest)
		return
	}
	uid, name, err := h.verifier.Verify(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	room, err := h.rooms.GetRoom(r.Context(), roomID)
	if err != nil {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	h.hub.Join(roomID, uid, name)
	defer h.hub.Leave(roomID, uid)

	updates, cancel := h.hub.Subscribe(roomID)
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case event, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: event.Type, Payload: event.Payload}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "joined", Payload: joinedPayload{
		Room:    room,
		Present: h.hub.Present(roomID),
		Chat:    h.hub.ChatHistory(roomID),
	}}
	h.hub.Broadcast(roomID, app.RoomEvent{Type: "playerJoined", Payload: map[string]string{"playerId": uid, "name": name}})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.dispatch(r.Context(), send, roomID, uid, name, inbound)
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) dispatch(ctx context.Context, send chan outboundMessage[any], roomID, uid, name string, inbound inboundMessage) {
	switch inbound.Type {
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			sendError(send, "invalid", "invalid answer payload")
			return
		}
		if decision := h.limiter.Check(ctx, "submitAnswer", uid); !decision.Allowed {
			sendError(send, "resource_exhausted", "too many requests, slow down")
			return
		}
		result, err := h.games.SubmitAnswer(ctx, uid, roomID, payload.QuestionIndex, payload.Answer)
		if err != nil {
			sendServiceError(send, err)
			return
		}
		send <- outboundMessage[any]{Type: "answerResult", Payload: result}
		h.broadcastLeaderboard(ctx, roomID)

	case "chat":
		var payload chatPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.Text == "" {
			sendError(send, "invalid", "invalid chat payload")
			return
		}
		if decision := h.limiter.Check(ctx, "chat", uid); !decision.Allowed {
			sendError(send, "resource_exhausted", "too many requests, slow down")
			return
		}
		h.hub.Chat(roomID, domain.ChatMessage{
			PlayerID:   uid,
			PlayerName: name,
			Text:       payload.Text,
			SentAt:     nowMillis(),
		})

	case "questions":
		questions, err := h.games.PlayerQuestions(ctx, uid, roomID)
		if err != nil {
			sendServiceError(send, err)
			return
		}
		send <- outboundMessage[any]{Type: "questions", Payload: questions}

	case "start":
		state, err := h.rooms.StartGame(ctx, uid, roomID)
		if err != nil {
			sendServiceError(send, err)
			return
		}
		h.hub.Broadcast(roomID, app.RoomEvent{Type: "question", Payload: questionEvent{
			Index:     state.CurrentQuestion,
			StartedAt: state.QuestionStartTime,
			TimeLimit: state.TimeLimit,
		}})

	case "advance":
		state, err := h.rooms.AdvanceQuestion(ctx, uid, roomID)
		if err != nil {
			sendServiceError(send, err)
			return
		}
		h.hub.Broadcast(roomID, app.RoomEvent{Type: "question", Payload: questionEvent{
			Index:     state.CurrentQuestion,
			StartedAt: state.QuestionStartTime,
			TimeLimit: state.TimeLimit,
		}})

	case "finish":
		if _, err := h.rooms.FinishGame(ctx, uid, roomID); err != nil {
			sendServiceError(send, err)
			return
		}
		leaderboard, err := h.games.Leaderboard(ctx, roomID)
		if err != nil {
			leaderboard = nil
		}
		h.hub.Broadcast(roomID, app.RoomEvent{Type: "roomFinished", Payload: leaderboard})

	default:
		sendError(send, "invalid", "unsupported message type")
	}
}

func (h *WSHandler) broadcastLeaderboard(ctx context.Context, roomID string) {
	leaderboard, err := h.games.Leaderboard(ctx, roomID)
	if err != nil {
		log.Printf("load leaderboard for %s: %v", roomID, err)
		return
	}
	h.hub.Broadcast(roomID, app.RoomEvent{Type: "leaderboard", Payload: leaderboard})
}

func sendError(send chan outboundMessage[any], code, message string) {
	send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Code: code, Message: message}}
}

func sendServiceError(send chan outboundMessage[any], err error) {
	sendError(send, errorCode(err), err.Error())
}

// errorCode maps domain errors onto the wire-level taxonomy.
func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, domain.ErrRoomNotFound),
		errors.Is(err, domain.ErrGameStateNotFound),
		errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrQuestionNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrTooLate):
		return "deadline_exceeded"
	case errors.Is(err, domain.ErrAlreadyAnswered):
		return "already_exists"
	case errors.Is(err, domain.ErrRateLimited):
		return "resource_exhausted"
	case errors.Is(err, domain.ErrWrongPassword),
		errors.Is(err, domain.ErrRoomFull),
		errors.Is(err, domain.ErrLateJoinDisabled),
		errors.Is(err, domain.ErrNotHost),
		errors.Is(err, domain.ErrInvalidTransition):
		return "failed_precondition"
	default:
		return "internal"
	}
}
