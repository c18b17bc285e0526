package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"elderpass/internal/checkin"
)

// Redis is a list-backed queue variant. Unlike Memory it survives process
// restarts, at the cost of making Enqueue fallible. Entries are JSON-encoded
// events; RPUSH/LRANGE/LPOP keep the same FIFO drain protocol as Memory.
type Redis struct {
	client *redis.Client
	key    string
}

// NewRedisClient connects to redis with short timeouts.
func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
}

// NewRedis builds a queue over the given client and list key.
func NewRedis(client *redis.Client, key string) *Redis {
	if key == "" {
		key = "elderpass:submissions"
	}
	return &Redis{client: client, key: key}
}

// Enqueue appends at the tail of the list.
func (q *Redis) Enqueue(ctx context.Context, evt checkin.Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", evt.EntryID, err)
	}
	return q.client.RPush(ctx, q.key, body).Err()
}

// Snapshot reads the whole list without mutating it.
func (q *Redis) Snapshot(ctx context.Context) ([]checkin.Event, error) {
	raw, err := q.client.LRange(ctx, q.key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	events := make([]checkin.Event, 0, len(raw))
	for _, body := range raw {
		var evt checkin.Event
		if err := json.Unmarshal([]byte(body), &evt); err != nil {
			return nil, fmt.Errorf("decode queued event: %w", err)
		}
		events = append(events, evt)
	}
	return events, nil
}

// RemoveFront pops the head of the list.
func (q *Redis) RemoveFront(ctx context.Context) error {
	err := q.client.LPop(ctx, q.key).Err()
	if err == redis.Nil {
		return nil
	}
	return err
}

// Len reports the list length.
func (q *Redis) Len(ctx context.Context) (int, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	return int(n), err
}
