package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-rooms-service/internal/domain"
)

// GameStateStore implements app.GameStateRepository on Redis.
//
// Key layout per room:
//
//	room:{id}:state       hash  questionStartTime, timeLimit, currentQuestion
//	room:{id}:answers:{q} hash  playerID -> answer record JSON
//	room:{id}:lb:{player} hash  score, correctAnswers, streak, lastAnswerTime
//	room:{id}:players     set   players with leaderboard entries
//	room:{id}:questions   set   question indices with answers
//	rooms:ended           zset  roomID scored by endedAt unix millis
//
// The answer write and leaderboard update commit in one Lua script so two
// concurrent submissions from the same player cannot race past the duplicate
// check, and a submission never leaves a partial record.
type GameStateStore struct {
	client *redis.Client
}

func NewGameStateStore(client *redis.Client) *GameStateStore {
	return &GameStateStore{client: client}
}

var applyAnswerScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
redis.call('SADD', KEYS[3], ARGV[1])
redis.call('SADD', KEYS[4], ARGV[6])
local score = redis.call('HINCRBY', KEYS[2], 'score', ARGV[3])
local correct
if ARGV[4] == '1' then
  correct = redis.call('HINCRBY', KEYS[2], 'correctAnswers', 1)
  redis.call('HINCRBY', KEYS[2], 'streak', 1)
else
  correct = tonumber(redis.call('HGET', KEYS[2], 'correctAnswers') or '0')
  redis.call('HSET', KEYS[2], 'streak', 0)
end
redis.call('HSET', KEYS[2], 'lastAnswerTime', ARGV[5])
local streak = tonumber(redis.call('HGET', KEYS[2], 'streak') or '0')
return {1, score, correct, streak}
`)

func (s *GameStateStore) SetGameState(ctx context.Context, roomID string, state domain.GameState) error {
	return s.client.HSet(ctx, s.stateKey(roomID),
		"questionStartTime", state.QuestionStartTime,
		"timeLimit", state.TimeLimit,
		"currentQuestion", state.CurrentQuestion,
	).Err()
}

func (s *GameStateStore) GetGameState(ctx context.Context, roomID string) (domain.GameState, error) {
	fields, err := s.client.HGetAll(ctx, s.stateKey(roomID)).Result()
	if err != nil {
		return domain.GameState{}, fmt.Errorf("get game state: %w", err)
	}
	if len(fields) == 0 {
		return domain.GameState{}, domain.ErrGameStateNotFound
	}
	start, _ := strconv.ParseInt(fields["questionStartTime"], 10, 64)
	limit, _ := strconv.Atoi(fields["timeLimit"])
	current, _ := strconv.Atoi(fields["currentQuestion"])
	return domain.GameState{
		QuestionStartTime: start,
		TimeLimit:         limit,
		CurrentQuestion:   current,
	}, nil
}

func (s *GameStateStore) HasAnswer(ctx context.Context, roomID string, questionIndex int, playerID string) (bool, error) {
	return s.client.HExists(ctx, s.answersKey(roomID, questionIndex), playerID).Result()
}

func (s *GameStateStore) ApplyAnswer(ctx context.Context, roomID string, questionIndex int, playerID string, rec domain.AnswerRecord) (domain.LeaderboardEntry, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return domain.LeaderboardEntry{}, fmt.Errorf("marshal answer record: %w", err)
	}

	correct := "0"
	if rec.IsCorrect {
		correct = "1"
	}
	keys := []string{
		s.answersKey(roomID, questionIndex),
		s.leaderboardKey(roomID, playerID),
		s.playersKey(roomID),
		s.questionsKey(roomID),
	}
	result, err := applyAnswerScript.Run(ctx, s.client, keys,
		playerID, string(payload), rec.Points, correct, rec.Timestamp, questionIndex,
	).Result()
	if err != nil {
		return domain.LeaderboardEntry{}, fmt.Errorf("apply answer: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) < 4 {
		// A bare 0 means the record already existed.
		return domain.LeaderboardEntry{}, domain.ErrAlreadyAnswered
	}
	return domain.LeaderboardEntry{
		PlayerID:       playerID,
		Score:          int(toInt64(values[1])),
		CorrectAnswers: int(toInt64(values[2])),
		Streak:         int(toInt64(values[3])),
		LastAnswerTime: rec.Timestamp,
	}, nil
}

func (s *GameStateStore) Leaderboard(ctx context.Context, roomID string) ([]domain.LeaderboardEntry, error) {
	players, err := s.client.SMembers(ctx, s.playersKey(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	entries := make([]domain.LeaderboardEntry, 0, len(players))
	for _, playerID := range players {
		entry, err := s.leaderboardEntry(ctx, roomID, playerID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	sortLeaderboard(entries)
	return entries, nil
}

func (s *GameStateStore) MarkEnded(ctx context.Context, roomID string, endedAt time.Time) error {
	return s.client.ZAdd(ctx, endedKey, redis.Z{
		Score:  float64(endedAt.UnixMilli()),
		Member: roomID,
	}).Err()
}

func (s *GameStateStore) ListEndedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	return s.client.ZRangeByScore(ctx, endedKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.UnixMilli(), 10),
	}).Result()
}

func (s *GameStateStore) Snapshot(ctx context.Context, roomID string) (*domain.GameState, []domain.LeaderboardEntry, map[int]map[string]domain.AnswerRecord, error) {
	var state *domain.GameState
	if st, err := s.GetGameState(ctx, roomID); err == nil {
		state = &st
	} else if err != domain.ErrGameStateNotFound {
		return nil, nil, nil, err
	}

	leaderboard, err := s.Leaderboard(ctx, roomID)
	if err != nil {
		return nil, nil, nil, err
	}

	questionIndices, err := s.client.SMembers(ctx, s.questionsKey(roomID)).Result()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("list answered questions: %w", err)
	}
	var answers map[int]map[string]domain.AnswerRecord
	if len(questionIndices) > 0 {
		answers = make(map[int]map[string]domain.AnswerRecord, len(questionIndices))
		for _, raw := range questionIndices {
			q, err := strconv.Atoi(raw)
			if err != nil {
				continue
			}
			fields, err := s.client.HGetAll(ctx, s.answersKey(roomID, q)).Result()
			if err != nil {
				return nil, nil, nil, fmt.Errorf("load answers for question %d: %w", q, err)
			}
			byPlayer := make(map[string]domain.AnswerRecord, len(fields))
			for playerID, payload := range fields {
				var rec domain.AnswerRecord
				if err := json.Unmarshal([]byte(payload), &rec); err != nil {
					continue
				}
				byPlayer[playerID] = rec
			}
			answers[q] = byPlayer
		}
	}
	return state, leaderboard, answers, nil
}

func (s *GameStateStore) Purge(ctx context.Context, roomID string) error {
	players, err := s.client.SMembers(ctx, s.playersKey(roomID)).Result()
	if err != nil {
		return fmt.Errorf("list players: %w", err)
	}
	questionIndices, err := s.client.SMembers(ctx, s.questionsKey(roomID)).Result()
	if err != nil {
		return fmt.Errorf("list answered questions: %w", err)
	}

	keys := []string{s.stateKey(roomID), s.playersKey(roomID), s.questionsKey(roomID)}
	for _, playerID := range players {
		keys = append(keys, s.leaderboardKey(roomID, playerID))
	}
	for _, raw := range questionIndices {
		if q, err := strconv.Atoi(raw); err == nil {
			keys = append(keys, s.answersKey(roomID, q))
		}
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, keys...)
	pipe.ZRem(ctx, endedKey, roomID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("purge room keys: %w", err)
	}
	return nil
}

func (s *GameStateStore) leaderboardEntry(ctx context.Context, roomID, playerID string) (domain.LeaderboardEntry, error) {
	fields, err := s.client.HGetAll(ctx, s.leaderboardKey(roomID, playerID)).Result()
	if err != nil {
		return domain.LeaderboardEntry{}, fmt.Errorf("load leaderboard entry: %w", err)
	}
	score, _ := strconv.Atoi(fields["score"])
	correct, _ := strconv.Atoi(fields["correctAnswers"])
	streak, _ := strconv.Atoi(fields["streak"])
	last, _ := strconv.ParseInt(fields["lastAnswerTime"], 10, 64)
	return domain.LeaderboardEntry{
		PlayerID:       playerID,
		Score:          score,
		CorrectAnswers: correct,
		Streak:         streak,
		LastAnswerTime: last,
	}, nil
}

const endedKey = "rooms:ended"

func (s *GameStateStore) stateKey(roomID string) string {
	return "room:" + roomID + ":state"
}

func (s *GameStateStore) answersKey(roomID string, questionIndex int) string {
	return "room:" + roomID + ":answers:" + strconv.Itoa(questionIndex)
}

func (s *GameStateStore) leaderboardKey(roomID, playerID string) string {
	return "room:" + roomID + ":lb:" + playerID
}

func (s *GameStateStore) playersKey(roomID string) string {
	return "room:" + roomID + ":players"
}

func (s *GameStateStore) questionsKey(roomID string) string {
	return "room:" + roomID + ":questions"
}

func sortLeaderboard(entries []domain.LeaderboardEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		if entries[i].LastAnswerTime != entries[j].LastAnswerTime {
			return entries[i].LastAnswerTime < entries[j].LastAnswerTime
		}
		return entries[i].PlayerID < entries[j].PlayerID
	})
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case string:
		parsed, _ := strconv.ParseInt(n, 10, 64)
		return parsed
	default:
		return 0
	}
}
