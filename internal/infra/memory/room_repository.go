package memory

import (
	"context"
	"sync"

	"quiz-rooms-service/internal/domain"
)

// RoomRepository is an in-memory implementation of app.RoomRepository.
type RoomRepository struct {
	mu     sync.RWMutex
	rooms  map[string]domain.Room
	byCode map[string]string // join code -> room ID
}

func NewRoomRepository() *RoomRepository {
	return &RoomRepository{
		rooms:  make(map[string]domain.Room),
		byCode: make(map[string]string),
	}
}

func (r *RoomRepository) Create(_ context.Context, room *domain.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[room.ID] = *room
	r.byCode[room.Code] = room.ID
	return nil
}

func (r *RoomRepository) GetByID(_ context.Context, id string) (domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[id]
	if !ok {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	return room, nil
}

func (r *RoomRepository) GetByCode(_ context.Context, code string) (domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byCode[code]
	if !ok {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	return r.rooms[id], nil
}

func (r *RoomRepository) Update(_ context.Context, room *domain.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[room.ID]; !ok {
		return domain.ErrRoomNotFound
	}
	r.rooms[room.ID] = *room
	return nil
}

func (r *RoomRepository) UpdateStatus(_ context.Context, id string, status domain.RoomStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok {
		return domain.ErrRoomNotFound
	}
	room.Status = status
	r.rooms[id] = room
	return nil
}

// ArchiveStore is an in-memory implementation of app.ArchiveSink.
type ArchiveStore struct {
	mu       sync.Mutex
	archived map[string]domain.ArchivedRoom
}

func NewArchiveStore() *ArchiveStore {
	return &ArchiveStore{archived: make(map[string]domain.ArchivedRoom)}
}

func (s *ArchiveStore) Archive(_ context.Context, snapshot domain.ArchivedRoom) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archived[snapshot.RoomID] = snapshot
	return nil
}

// Get returns the archived snapshot for a room, if present.
func (s *ArchiveStore) Get(roomID string) (domain.ArchivedRoom, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot, ok := s.archived[roomID]
	return snapshot, ok
}

// Count returns how many rooms have been archived.
func (s *ArchiveStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.archived)
}
