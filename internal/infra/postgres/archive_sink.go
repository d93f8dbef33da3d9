package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"quiz-rooms-service/internal/domain"
)

type archivedRoomRow struct {
	bun.BaseModel `bun:"table:archived_rooms"`

	RoomID     string          `bun:"room_id,pk"`
	Data       json.RawMessage `bun:"data,type:jsonb"`
	ArchivedAt time.Time       `bun:"archived_at"`
}

// ArchiveSink writes cold-storage room snapshots to Postgres. Re-archiving
// the same room overwrites the previous snapshot, keeping the sweep idempotent.
type ArchiveSink struct {
	db *bun.DB
}

func NewArchiveSink(db *bun.DB) *ArchiveSink {
	return &ArchiveSink{db: db}
}

func (s *ArchiveSink) Archive(ctx context.Context, snapshot domain.ArchivedRoom) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal archive snapshot: %w", err)
	}
	row := &archivedRoomRow{
		RoomID:     snapshot.RoomID,
		Data:       data,
		ArchivedAt: snapshot.ArchivedAt,
	}
	_, err = s.db.NewInsert().Model(row).
		On("CONFLICT (room_id) DO UPDATE").
		Set("data = EXCLUDED.data").
		Set("archived_at = EXCLUDED.archived_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert archived room: %w", err)
	}
	return nil
}
