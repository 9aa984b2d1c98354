package core

import (
	"context"
	"errors"
	"log"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	// AuthOutcomePrefix prefixes the per-outcome counters.
	AuthOutcomePrefix = "auth:outcome:"
	// OutcomeSuccess is the outcome recorded for a successful authentication.
	OutcomeSuccess = "OK"
)

// AuthOutcomeKey returns the Redis counter key for an outcome code.
func AuthOutcomeKey(outcome string) string {
	return AuthOutcomePrefix + outcome
}

// AuthMetricsClient is the subset of go-redis used for counters.
type AuthMetricsClient interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// AuthMetrics counts authentication outcomes in Redis so that all API
// processes share one set of totals.
type AuthMetrics struct {
	redis AuthMetricsClient
}

func NewAuthMetrics(client AuthMetricsClient) *AuthMetrics {
	return &AuthMetrics{redis: client}
}

// Record increments the counter of outcome.
func (m *AuthMetrics) Record(ctx context.Context, outcome string) error {
	return m.redis.Incr(ctx, AuthOutcomeKey(outcome)).Err()
}

// RecordOutcome is Record for the middleware; failures are logged and dropped.
func (m *AuthMetrics) RecordOutcome(ctx context.Context, outcome string) {
	if err := m.Record(ctx, outcome); err != nil {
		log.Printf("[metrics] record auth outcome %s: %v", outcome, err)
	}
}

// Overview returns the counter of every known outcome, zero when never seen.
func (m *AuthMetrics) Overview(ctx context.Context) (map[string]int64, error) {
	outcomes := []string{OutcomeSuccess}
	for _, e := range AllAuthErrors() {
		outcomes = append(outcomes, e.Code())
	}
	res := make(map[string]int64, len(outcomes))
	for _, o := range outcomes {
		val, err := m.redis.Get(ctx, AuthOutcomeKey(o)).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				res[o] = 0
				continue
			}
			return nil, err
		}
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return nil, err
		}
		res[o] = n
	}
	return res, nil
}
