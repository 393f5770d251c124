package caching

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwashb22/saas-analytics-pipeline/internal/models"
)

const keyPrefix = "saas-pipeline"

// CacheService caches pipeline outputs that the serve mode reads repeatedly:
// the latest simulation summary and per-run status. A cache miss is reported
// as a nil/empty value, not an error.
type CacheService interface {
	GetSummary(ctx context.Context) (*models.SimulationSummary, error)
	SetSummary(ctx context.Context, summary *models.SimulationSummary, ttl time.Duration) error

	GetRunStatus(ctx context.Context, runID string) (string, error)
	SetRunStatus(ctx context.Context, runID, status string, ttl time.Duration) error

	InvalidateSummary(ctx context.Context) error

	Ping(ctx context.Context) error
}

type redisCacheService struct {
	client *redis.Client
}

// NewRedisCacheService connects a Redis-backed cache. The address may carry a
// redis:// scheme prefix, which is stripped.
func NewRedisCacheService(addr, password string, db int) CacheService {
	parsedAddr := strings.TrimPrefix(strings.TrimPrefix(addr, "rediss://"), "redis://")

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Printf("WARN: Redis ping failed on initialization: %v (address: %s)", err, parsedAddr)
	}

	return &redisCacheService{client: client}
}

func (r *redisCacheService) GetSummary(ctx context.Context) (*models.SimulationSummary, error) {
	data, err := r.client.Get(ctx, summaryKey()).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var summary models.SimulationSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to decode cached summary: %w", err)
	}
	return &summary, nil
}

func (r *redisCacheService) SetSummary(ctx context.Context, summary *models.SimulationSummary, ttl time.Duration) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	return r.client.Set(ctx, summaryKey(), data, ttl).Err()
}

func (r *redisCacheService) GetRunStatus(ctx context.Context, runID string) (string, error) {
	status, err := r.client.Get(ctx, runKey(runID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return status, err
}

func (r *redisCacheService) SetRunStatus(ctx context.Context, runID, status string, ttl time.Duration) error {
	return r.client.Set(ctx, runKey(runID), status, ttl).Err()
}

func (r *redisCacheService) InvalidateSummary(ctx context.Context) error {
	return r.client.Del(ctx, summaryKey()).Err()
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func summaryKey() string {
	return fmt.Sprintf("%s:summary:latest", keyPrefix)
}

func runKey(runID string) string {
	return fmt.Sprintf("%s:run:%s", keyPrefix, runID)
}
