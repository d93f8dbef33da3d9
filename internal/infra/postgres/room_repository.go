package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"quiz-rooms-service/internal/domain"
)

type roomRow struct {
	bun.BaseModel `bun:"table:rooms"`

	ID        string          `bun:"id,pk"`
	Code      string          `bun:"code"`
	HostID    string          `bun:"host_id"`
	QuizID    string          `bun:"quiz_id"`
	Status    string          `bun:"status"`
	Settings  json.RawMessage `bun:"settings,type:jsonb"`
	Players   json.RawMessage `bun:"players,type:jsonb"`
	CreatedAt time.Time       `bun:"created_at"`
	StartedAt *time.Time      `bun:"started_at"`
	EndedAt   *time.Time      `bun:"ended_at"`
}

// RoomRepository persists rooms in Postgres via bun.
type RoomRepository struct {
	db *bun.DB
}

func NewRoomRepository(db *bun.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

func (r *RoomRepository) Create(ctx context.Context, room *domain.Room) error {
	row, err := toRow(room)
	if err != nil {
		return err
	}
	if _, err := r.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	return nil
}

func (r *RoomRepository) GetByID(ctx context.Context, id string) (domain.Room, error) {
	row := new(roomRow)
	err := r.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	if err != nil {
		return domain.Room{}, fmt.Errorf("select room: %w", err)
	}
	return fromRow(row)
}

func (r *RoomRepository) GetByCode(ctx context.Context, code string) (domain.Room, error) {
	row := new(roomRow)
	err := r.db.NewSelect().Model(row).Where("code = ?", code).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	if err != nil {
		return domain.Room{}, fmt.Errorf("select room by code: %w", err)
	}
	return fromRow(row)
}

func (r *RoomRepository) Update(ctx context.Context, room *domain.Room) error {
	row, err := toRow(room)
	if err != nil {
		return err
	}
	res, err := r.db.NewUpdate().Model(row).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("update room: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

func (r *RoomRepository) UpdateStatus(ctx context.Context, id string, status domain.RoomStatus) error {
	res, err := r.db.NewUpdate().Model((*roomRow)(nil)).
		Set("status = ?", string(status)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update room status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

func toRow(room *domain.Room) (*roomRow, error) {
	settings, err := json.Marshal(room.Settings)
	if err != nil {
		return nil, fmt.Errorf("marshal settings: %w", err)
	}
	players, err := json.Marshal(room.Players)
	if err != nil {
		return nil, fmt.Errorf("marshal players: %w", err)
	}
	return &roomRow{
		ID:        room.ID,
		Code:      room.Code,
		HostID:    room.HostID,
		QuizID:    room.QuizID,
		Status:    string(room.Status),
		Settings:  settings,
		Players:   players,
		CreatedAt: room.CreatedAt,
		StartedAt: room.StartedAt,
		EndedAt:   room.EndedAt,
	}, nil
}

func fromRow(row *roomRow) (domain.Room, error) {
	room := domain.Room{
		ID:        row.ID,
		Code:      row.Code,
		HostID:    row.HostID,
		QuizID:    row.QuizID,
		Status:    domain.RoomStatus(row.Status),
		CreatedAt: row.CreatedAt,
		StartedAt: row.StartedAt,
		EndedAt:   row.EndedAt,
	}
	if len(row.Settings) > 0 {
		if err := json.Unmarshal(row.Settings, &room.Settings); err != nil {
			return domain.Room{}, fmt.Errorf("unmarshal settings: %w", err)
		}
	}
	if len(row.Players) > 0 {
		if err := json.Unmarshal(row.Players, &room.Players); err != nil {
			return domain.Room{}, fmt.Errorf("unmarshal players: %w", err)
		}
	}
	return room, nil
}
