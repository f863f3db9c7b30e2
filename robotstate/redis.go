package robotstate

import (
	"context"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, fleet string) *RedisStore {
	return &RedisStore{client: client, prefix: "fleetadapter:" + fleet}
}

func (r *RedisStore) robotKey(name string) string {
	return fmt.Sprintf("%s:robot:%s", r.prefix, name)
}

func (r *RedisStore) allRobotsKey() string {
	return r.prefix + ":robots"
}

// Timestamps keep sub-second precision in the cache.
var encMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}

// Encode and Decode are the cache's value codec.
func Encode(s *Snapshot) ([]byte, error) { return encMode.Marshal(s) }

func Decode(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *RedisStore) Put(ctx context.Context, s *Snapshot) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}
	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.robotKey(s.Name), data, 0)
	pipe.SAdd(ctx, r.allRobotsKey(), s.Name)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisStore) Get(ctx context.Context, name string) (*Snapshot, error) {
	data, err := r.client.Get(ctx, r.robotKey(name)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

func (r *RedisStore) Names(ctx context.Context) ([]string, error) {
	return r.client.SMembers(ctx, r.allRobotsKey()).Result()
}

func (r *RedisStore) Flush(ctx context.Context) error {
	names, err := r.Names(ctx)
	if err != nil {
		return err
	}
	pipe := r.client.Pipeline()
	for _, n := range names {
		pipe.Del(ctx, r.robotKey(n))
	}
	pipe.Del(ctx, r.allRobotsKey())
	_, err = pipe.Exec(ctx)
	return err
}
