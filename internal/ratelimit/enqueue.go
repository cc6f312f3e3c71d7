package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/storyforge/storyforge/internal/config"
)

const keyEnqueueOrg = "generation:enqueue:org:%s"

// EnqueueLimiter caps how often one org can start generation batches. When
// disabled by config it admits everything.
type EnqueueLimiter struct {
	enabled bool
	bucket  *TokenBucket
	rate    float64
	burst   int
}

func NewEnqueueLimiter(cfg config.Config) (*EnqueueLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.EnqueueRate <= 0 || limitCfg.EnqueueBurst <= 0 {
		return nil, errors.New("enqueue rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &EnqueueLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    limitCfg.EnqueueRate,
		burst:   limitCfg.EnqueueBurst,
	}, nil
}

func (l *EnqueueLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *EnqueueLimiter) AllowOrg(ctx context.Context, orgID string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyEnqueueOrg, strings.TrimSpace(orgID)), l.rate, l.burst)
}
