package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"quiz-rooms-service/internal/domain"
)

func TestGameStateRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()
	store := NewGameStateStore(newClient(mr))
	ctx := context.Background()

	if _, err := store.GetGameState(ctx, "room-1"); !errors.Is(err, domain.ErrGameStateNotFound) {
		t.Fatalf("missing state err = %v, want ErrGameStateNotFound", err)
	}

	want := domain.GameState{QuestionStartTime: 1717243200000, TimeLimit: 30, CurrentQuestion: 3}
	if err := store.SetGameState(ctx, "room-1", want); err != nil {
		t.Fatalf("set state: %v", err)
	}
	got, err := store.GetGameState(ctx, "room-1")
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if got != want {
		t.Fatalf("state = %+v, want %+v", got, want)
	}
}

func TestApplyAnswerIsAtomicPerPlayer(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()
	store := NewGameStateStore(newClient(mr))
	ctx := context.Background()

	rec := domain.AnswerRecord{Answer: 2, IsCorrect: true, Points: 1300, Timestamp: 5000, TimeToAnswer: 4000}
	entry, err := store.ApplyAnswer(ctx, "room-1", 0, "p1", rec)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if entry.Score != 1300 || entry.CorrectAnswers != 1 || entry.Streak != 1 {
		t.Fatalf("entry = %+v", entry)
	}

	if _, err := store.ApplyAnswer(ctx, "room-1", 0, "p1", rec); !errors.Is(err, domain.ErrAlreadyAnswered) {
		t.Fatalf("duplicate err = %v, want ErrAlreadyAnswered", err)
	}

	has, err := store.HasAnswer(ctx, "room-1", 0, "p1")
	if err != nil || !has {
		t.Fatalf("HasAnswer = %v, %v", has, err)
	}

	// A wrong answer on the next question scores nothing and resets the streak.
	entry, err = store.ApplyAnswer(ctx, "room-1", 1, "p1", domain.AnswerRecord{
		Answer: 0, IsCorrect: false, Points: 0, Timestamp: 9000,
	})
	if err != nil {
		t.Fatalf("apply wrong answer: %v", err)
	}
	if entry.Score != 1300 || entry.CorrectAnswers != 1 || entry.Streak != 0 {
		t.Fatalf("entry after miss = %+v", entry)
	}
}

func TestLeaderboardOrdering(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()
	store := NewGameStateStore(newClient(mr))
	ctx := context.Background()

	answers := []struct {
		player string
		rec    domain.AnswerRecord
	}{
		{"p1", domain.AnswerRecord{IsCorrect: true, Points: 1000, Timestamp: 3000}},
		{"p2", domain.AnswerRecord{IsCorrect: true, Points: 1450, Timestamp: 2000}},
		{"p3", domain.AnswerRecord{IsCorrect: true, Points: 1000, Timestamp: 1000}},
	}
	for _, a := range answers {
		if _, err := store.ApplyAnswer(ctx, "room-1", 0, a.player, a.rec); err != nil {
			t.Fatalf("apply %s: %v", a.player, err)
		}
	}

	board, err := store.Leaderboard(ctx, "room-1")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	want := []string{"p2", "p3", "p1"}
	for i, id := range want {
		if board[i].PlayerID != id {
			t.Fatalf("board[%d] = %s, want %s (full: %+v)", i, board[i].PlayerID, id, board)
		}
	}
}

func TestEndedIndexAndPurge(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()
	store := NewGameStateStore(newClient(mr))
	ctx := context.Background()

	endedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := store.MarkEnded(ctx, "room-old", endedAt); err != nil {
		t.Fatalf("mark ended: %v", err)
	}
	if err := store.MarkEnded(ctx, "room-new", endedAt.Add(48*time.Hour)); err != nil {
		t.Fatalf("mark ended: %v", err)
	}

	ended, err := store.ListEndedBefore(ctx, endedAt.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("list ended: %v", err)
	}
	if len(ended) != 1 || ended[0] != "room-old" {
		t.Fatalf("ended = %v, want [room-old]", ended)
	}

	// The cutoff is exclusive: a room ended exactly at the cutoff stays.
	ended, err = store.ListEndedBefore(ctx, endedAt)
	if err != nil {
		t.Fatalf("list ended: %v", err)
	}
	if len(ended) != 0 {
		t.Fatalf("cutoff must be exclusive, got %v", ended)
	}

	if err := store.SetGameState(ctx, "room-old", domain.GameState{TimeLimit: 30}); err != nil {
		t.Fatalf("set state: %v", err)
	}
	if _, err := store.ApplyAnswer(ctx, "room-old", 0, "p1", domain.AnswerRecord{IsCorrect: true, Points: 1000}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if err := store.Purge(ctx, "room-old"); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if _, err := store.GetGameState(ctx, "room-old"); !errors.Is(err, domain.ErrGameStateNotFound) {
		t.Fatalf("state after purge err = %v, want ErrGameStateNotFound", err)
	}
	board, err := store.Leaderboard(ctx, "room-old")
	if err != nil || len(board) != 0 {
		t.Fatalf("leaderboard after purge = %v, %v", board, err)
	}
	ended, err = store.ListEndedBefore(ctx, endedAt.Add(24*time.Hour))
	if err != nil || len(ended) != 0 {
		t.Fatalf("ended index after purge = %v, %v", ended, err)
	}
}

func TestSnapshotCollectsEverything(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()
	store := NewGameStateStore(newClient(mr))
	ctx := context.Background()

	state := domain.GameState{QuestionStartTime: 7000, TimeLimit: 20, CurrentQuestion: 1}
	if err := store.SetGameState(ctx, "room-1", state); err != nil {
		t.Fatalf("set state: %v", err)
	}
	if _, err := store.ApplyAnswer(ctx, "room-1", 0, "p1", domain.AnswerRecord{Answer: 1, IsCorrect: true, Points: 1100, Timestamp: 8000}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, err := store.ApplyAnswer(ctx, "room-1", 1, "p1", domain.AnswerRecord{Answer: 0, IsCorrect: false, Timestamp: 9000}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	got, board, answers, err := store.Snapshot(ctx, "room-1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if got == nil || *got != state {
		t.Fatalf("snapshot state = %+v, want %+v", got, state)
	}
	if len(board) != 1 || board[0].Score != 1100 {
		t.Fatalf("snapshot board = %+v", board)
	}
	if len(answers) != 2 || answers[0]["p1"].Points != 1100 || answers[1]["p1"].IsCorrect {
		t.Fatalf("snapshot answers = %+v", answers)
	}
}
