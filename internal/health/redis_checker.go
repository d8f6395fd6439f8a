package health

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisChecker pings the Redis server that holds shared session records.
type RedisChecker struct {
	client redis.UniversalClient
	addr   string
}

// NewRedisChecker creates a checker for client. addr is reported in details.
func NewRedisChecker(client redis.UniversalClient, addr string) *RedisChecker {
	return &RedisChecker{client: client, addr: addr}
}

// Name returns the name of this health check.
func (c *RedisChecker) Name() string {
	return "session-redis"
}

// Check pings Redis. A failed ping is degraded, not unhealthy: sessions still
// work in memory, they just are not shared.
func (c *RedisChecker) Check(ctx context.Context) *Result {
	start := time.Now()
	err := c.client.Ping(ctx).Err()
	latency := time.Since(start)

	if err != nil {
		return Degraded("session record store unreachable").
			WithLatency(latency).
			WithDetail("addr", c.addr).
			WithDetail("error", err.Error())
	}
	return Healthy("session record store reachable").
		WithLatency(latency).
		WithDetail("addr", c.addr)
}
