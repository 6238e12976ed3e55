package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// HealthCheck probes the rate-limit counter store for the /health
// endpoint. Redis being down degrades throttling, not transfers, but it
// is still worth surfacing.
type HealthCheck struct {
	client *goredis.Client
}

func NewHealthCheck(client *goredis.Client) *HealthCheck {
	return &HealthCheck{client: client}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return h.client.Ping(ctx).Err()
}

func (h *HealthCheck) Name() string { return "redis" }
