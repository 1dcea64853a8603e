package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"raffle/internal/constants"
)

const redisPageSize = 500

// RedisStore appends records to a stream with XADD. Stream entries are
// immutable and the store never trims the stream.
type RedisStore struct {
	client *redis.Client
	stream string
}

func NewRedisStore(client *redis.Client, stream string) *RedisStore {
	if stream == "" {
		stream = constants.DefaultAuditStream
	}
	return &RedisStore{client: client, stream: stream}
}

func (s *RedisStore) Name() string {
	return constants.AuditBackendRedis
}

func (s *RedisStore) Append(ctx context.Context, rec Record) (string, error) {
	if rec.DrawID == "" {
		rec.DrawID = uuid.New().String()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return "", persistenceError(s.Name(), fmt.Errorf("failed to encode audit record: %w", err))
	}

	id, err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"draw_id":  rec.DrawID,
			"event_id": rec.EventID,
			"ts":       strconv.FormatInt(rec.Timestamp, 10),
			"record":   string(data),
		},
	}).Result()
	if err != nil {
		return "", persistenceError(s.Name(), fmt.Errorf("failed to append to stream %s: %w", s.stream, err))
	}

	return fmt.Sprintf("redis:%s/%s", s.stream, id), nil
}

// List walks the stream from the newest entry backwards.
func (s *RedisStore) List(ctx context.Context, eventID string, limit int) ([]Record, error) {
	limit = listLimit(limit)
	records := make([]Record, 0, limit)

	end := "+"
	for len(records) < limit {
		msgs, err := s.client.XRevRangeN(ctx, s.stream, end, "-", redisPageSize).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read stream %s: %w", s.stream, err)
		}
		if len(msgs) == 0 {
			break
		}

		for _, msg := range msgs {
			if eventID != "" && msg.Values["event_id"] != eventID {
				continue
			}
			raw, _ := msg.Values["record"].(string)
			var rec Record
			if err := json.Unmarshal([]byte(raw), &rec); err != nil {
				return nil, fmt.Errorf("failed to decode stream entry %s: %w", msg.ID, err)
			}
			records = append(records, rec)
			if len(records) == limit {
				break
			}
		}

		if len(msgs) < redisPageSize {
			break
		}
		end = "(" + msgs[len(msgs)-1].ID
	}

	return records, nil
}
