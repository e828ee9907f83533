package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/landonhauser7-sys/Everguardio-sub000/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const (
	keyDealIngestAgent = "deal:ingest:agent:%s"
	keyDealSplitLock   = "deal:split:lock:%s"
)

// DealIngestLimiter throttles deal writes per agent and serializes
// split replacement per deal across instances. A nil limiter (rate
// limiting disabled) allows everything.
type DealIngestLimiter struct {
	enabled bool

	bucket *TokenBucket
	locker *Locker

	agentRate  float64
	agentBurst int
	lockTTL    time.Duration
}

func NewDealIngestLimiter(cfg config.Config) (*DealIngestLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.DealAgentRate <= 0 || limitCfg.DealAgentBurst <= 0 {
		return nil, errors.New("deal agent rate limit must be positive")
	}
	if limitCfg.LockTTLSeconds <= 0 {
		return nil, errors.New("lock ttl must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &DealIngestLimiter{
		enabled:    true,
		bucket:     NewTokenBucket(client),
		locker:     NewLocker(client),
		agentRate:  limitCfg.DealAgentRate,
		agentBurst: limitCfg.DealAgentBurst,
		lockTTL:    time.Duration(limitCfg.LockTTLSeconds) * time.Second,
	}, nil
}

func (l *DealIngestLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// AllowAgent rate-limits deal submissions for one writing agent.
func (l *DealIngestLimiter) AllowAgent(ctx context.Context, agentID string) (Result, error) {
	if !l.Enabled() {
		return Result{Allowed: true}, nil
	}
	key := fmt.Sprintf(keyDealIngestAgent, strings.TrimSpace(agentID))
	return l.bucket.Allow(ctx, key, l.agentRate, l.agentBurst)
}

// TryLockDeal guards split replacement so two amendments of the same
// deal cannot interleave their delete-then-insert batches.
func (l *DealIngestLimiter) TryLockDeal(ctx context.Context, dealID string) (string, bool, error) {
	if !l.Enabled() {
		return "", true, nil
	}
	key := fmt.Sprintf(keyDealSplitLock, strings.TrimSpace(dealID))
	return l.locker.TryLock(ctx, key, l.lockTTL)
}

func (l *DealIngestLimiter) ReleaseDeal(ctx context.Context, dealID, token string) error {
	if !l.Enabled() {
		return nil
	}
	key := fmt.Sprintf(keyDealSplitLock, strings.TrimSpace(dealID))
	return l.locker.Release(ctx, key, token)
}
