package http

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"quiz-rooms-service/internal/app"
	"quiz-rooms-service/internal/domain"
)

// RoomsHandler exposes room creation and joining over plain HTTP. Gameplay
// happens on the websocket; these endpoints only bootstrap membership.
type RoomsHandler struct {
	rooms    *app.RoomService
	limiter  *app.RateLimiter
	verifier TokenVerifier
}

func NewRoomsHandler(rooms *app.RoomService, limiter *app.RateLimiter, verifier TokenVerifier) *RoomsHandler {
	return &RoomsHandler{rooms: rooms, limiter: limiter, verifier: verifier}
}

type createRoomRequest struct {
	QuizID   string              `json:"quizId"`
	Settings domain.RoomSettings `json:"settings"`
	Password string              `json:"password,omitempty"`
}

type joinRoomRequest struct {
	Code     string `json:"code"`
	Password string `json:"password,omitempty"`
}

// CreateRoom handles POST /rooms.
func (h *RoomsHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	uid, name, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	if decision := h.limiter.Check(r.Context(), "createRoom", uid); !decision.Allowed {
		writeError(w, domain.ErrRateLimited)
		return
	}

	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	room, err := h.rooms.CreateRoom(r.Context(), uid, name, req.QuizID, req.Settings, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

// JoinRoom handles POST /rooms/join.
func (h *RoomsHandler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	uid, name, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	if decision := h.limiter.Check(r.Context(), "joinRoom", uid); !decision.Allowed {
		writeError(w, domain.ErrRateLimited)
		return
	}

	var req joinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	room, err := h.rooms.JoinRoom(r.Context(), uid, name, req.Code, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (h *RoomsHandler) authenticate(w http.ResponseWriter, r *http.Request) (uid, name string, ok bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	uid, name, err := h.verifier.Verify(token)
	if err != nil {
		writeError(w, domain.ErrUnauthenticated)
		return "", "", false
	}
	return uid, name, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := errorCode(err)
	status := http.StatusInternalServerError
	switch code {
	case "unauthenticated":
		status = http.StatusUnauthorized
	case "not_found":
		status = http.StatusNotFound
	case "deadline_exceeded":
		status = http.StatusRequestTimeout
	case "already_exists":
		status = http.StatusConflict
	case "resource_exhausted":
		status = http.StatusTooManyRequests
	case "failed_precondition":
		status = http.StatusForbidden
	}
	writeJSON(w, status, errorPayload{Code: code, Message: err.Error()})
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
