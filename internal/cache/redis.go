package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "elicit:priority:"

// Redis is a PriorityCache shared by every server instance pointing at the
// same Redis. Entries carry no TTL; the digest check invalidates them.
type Redis struct {
	client *goredis.Client
}

// NewRedis connects to addr and verifies the connection.
func NewRedis(ctx context.Context, addr string) (*Redis, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return &Redis{client: client}, nil
}

func redisKey(projectID int64) string {
	return redisKeyPrefix + strconv.FormatInt(projectID, 10)
}

func (r *Redis) Get(ctx context.Context, projectID int64) (Entry, bool, error) {
	data, err := r.client.Get(ctx, redisKey(projectID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("reading priority cache: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		// A corrupt entry is a miss; the next Put overwrites it.
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (r *Redis) Put(ctx context.Context, projectID int64, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, redisKey(projectID), data, 0).Err(); err != nil {
		return fmt.Errorf("writing priority cache: %w", err)
	}
	return nil
}

func (r *Redis) Invalidate(ctx context.Context, projectID int64) error {
	if err := r.client.Del(ctx, redisKey(projectID)).Err(); err != nil {
		return fmt.Errorf("invalidating priority cache: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
