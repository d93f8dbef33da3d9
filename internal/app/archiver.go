package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"quiz-rooms-service/internal/domain"
)

// DefaultRetention is how long a finished room stays in the ephemeral store
// before the sweep moves it to cold storage.
const DefaultRetention = 7 * 24 * time.Hour

// Archiver migrates finished rooms older than the retention threshold from
// the ephemeral store into durable cold storage. Archival is best-effort
// housekeeping: per-room failures are logged and skipped, never aborting the
// sweep, and a second run over the same data finds nothing left to do.
type Archiver struct {
	states    GameStateRepository
	rooms     RoomRepository
	sink      ArchiveSink
	retention time.Duration
	now       func() time.Time
}

func NewArchiver(states GameStateRepository, rooms RoomRepository, sink ArchiveSink, retention time.Duration) *Archiver {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Archiver{
		states:    states,
		rooms:     rooms,
		sink:      sink,
		retention: retention,
		now:       time.Now,
	}
}

// NewArchiverWithClock is test-only for deterministic cutoffs.
func NewArchiverWithClock(states GameStateRepository, rooms RoomRepository, sink ArchiveSink, retention time.Duration, now func() time.Time) *Archiver {
	a := NewArchiver(states, rooms, sink, retention)
	a.now = now
	return a
}

// ArchiveCompletedRooms runs one sweep and returns the number of rooms archived.
func (a *Archiver) ArchiveCompletedRooms(ctx context.Context) (int, error) {
	cutoff := a.now().Add(-a.retention)
	roomIDs, err := a.states.ListEndedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list ended rooms: %w", err)
	}

	archived := 0
	for _, roomID := range roomIDs {
		if err := a.archiveRoom(ctx, roomID); err != nil {
			log.Printf("archive room %s failed, skipping: %v", roomID, err)
			continue
		}
		archived++
	}
	if archived > 0 {
		log.Printf("archived %d completed rooms (cutoff %s)", archived, cutoff.Format(time.RFC3339))
	}
	return archived, nil
}

// Run sweeps on a fixed interval until ctx is canceled.
func (a *Archiver) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	log.Printf("room archival sweep every %s", interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.ArchiveCompletedRooms(ctx); err != nil {
				log.Printf("archival sweep failed: %v", err)
			}
		}
	}
}

func (a *Archiver) archiveRoom(ctx context.Context, roomID string) error {
	snapshot := domain.ArchivedRoom{
		RoomID:     roomID,
		ArchivedAt: a.now(),
	}

	room, err := a.rooms.GetByID(ctx, roomID)
	switch {
	case err == nil:
		snapshot.Room = room
	case errors.Is(err, domain.ErrRoomNotFound):
		// Ephemeral leftovers without a durable record still get archived.
		log.Printf("archiving room %s with no durable record", roomID)
	default:
		return fmt.Errorf("load room: %w", err)
	}

	state, leaderboard, answers, err := a.states.Snapshot(ctx, roomID)
	if err != nil {
		return fmt.Errorf("snapshot ephemeral state: %w", err)
	}
	snapshot.GameState = state
	snapshot.Leaderboard = leaderboard
	snapshot.Answers = answers

	if err := a.sink.Archive(ctx, snapshot); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}
	if err := a.states.Purge(ctx, roomID); err != nil {
		return fmt.Errorf("purge ephemeral state: %w", err)
	}
	if snapshot.Room.ID != "" {
		if err := a.rooms.UpdateStatus(ctx, roomID, domain.RoomArchived); err != nil {
			// The copy and purge already succeeded; the status flip is cosmetic.
			log.Printf("mark room %s archived: %v", roomID, err)
		}
	}
	return nil
}
