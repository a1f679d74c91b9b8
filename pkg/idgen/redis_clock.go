package idgen

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Clock abstracts the time source for the ID generator. Now returns
// milliseconds.
type Clock interface {
	Now() int64
}

// SystemClock reads the local system time.
type SystemClock struct{}

func (s *SystemClock) Now() int64 {
	return time.Now().UnixMilli()
}

// RedisClock reads time from Redis so that every process assigning IDs
// against the same Redis sees one clock. It degrades to the system
// clock when Redis is unreachable rather than blocking ID assignment.
type RedisClock struct {
	client *redis.Client
	ctx    context.Context
}

func NewRedisClock(client *redis.Client) *RedisClock {
	return &RedisClock{
		client: client,
		ctx:    context.Background(),
	}
}

func (r *RedisClock) Now() int64 {
	res, err := r.client.Time(r.ctx).Result()
	if err != nil {
		return time.Now().UnixMilli()
	}
	return res.Unix()*1000 + int64(res.Nanosecond())/1000000
}
