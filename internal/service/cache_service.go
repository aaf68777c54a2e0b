package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/study-planner/internal/dto"
	"github.com/noah-isme/study-planner/internal/scheduler"
	appErrors "github.com/noah-isme/study-planner/pkg/errors"
)

const planCachePrefix = "planner:plan"

// CacheRepository abstracts persistence for cached plans.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService stores finished plans so an unchanged task set over the same
// window is not solved twice.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 30 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// PlanKey identifies a plan by owner, window (dates and calendar mode),
// strategy and a digest of the task contents and every option that shapes
// the result, so a changed task or option never reuses a stale plan.
func PlanKey(ownerID int64, w scheduler.Window, req SolveRequest, opts scheduler.ModelOptions, tasks []scheduler.Task) string {
	h := sha256.New()
	for _, t := range tasks {
		deadline := "-"
		if t.Deadline != nil {
			deadline = t.Deadline.Format("2006-01-02")
		}
		fmt.Fprintf(h, "%d|%s|%s|%d|%s\n", t.ID, t.Name, t.SubjectName, t.EstimatedMinutes, deadline)
	}
	fmt.Fprintf(h, "seed=%d runs=%d limit=%s unimproved=%d max=%d\n",
		req.Config.Seed, req.Runs, req.Config.TimeLimit, req.Config.UnimprovedMoveLimit, req.Config.MaxMoves)
	fmt.Fprintf(h, "chunk=%d/%d capacity=%d/%d\n",
		opts.Chunk.Cap, opts.Chunk.MinChunk, opts.Capacity.SoftMinutes, opts.Capacity.HardMinutes)
	fmt.Fprintf(h, "greedy=%d/%d", req.Greedy.DailyMinutes, req.Greedy.UrgentMinutes)
	return fmt.Sprintf("%s:%d:%s:%s:%s:%s:%s",
		planCachePrefix,
		ownerID,
		w.Start.Format("20060102"),
		w.End.Format("20060102"),
		w.Mode,
		req.Strategy,
		hex.EncodeToString(h.Sum(nil))[:16],
	)
}

// OwnerPattern matches every cached plan of an owner.
func OwnerPattern(ownerID int64) string {
	return planCachePrefix + ":" + strconv.FormatInt(ownerID, 10) + ":*"
}

// GetPlan returns the cached plan stored under key, reporting whether it hit.
func (s *CacheService) GetPlan(ctx context.Context, key string) (*dto.SchedulePlan, bool, error) {
	var plan dto.SchedulePlan
	hit, err := s.get(ctx, key, &plan)
	if err != nil || !hit {
		return nil, false, err
	}
	return &plan, true, nil
}

// StorePlan caches plan under key with the default TTL.
func (s *CacheService) StorePlan(ctx context.Context, key string, plan *dto.SchedulePlan) error {
	if !s.Enabled() || plan == nil {
		return nil
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, plan, s.defaultTTL)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// InvalidateOwner drops every cached plan of an owner.
func (s *CacheService) InvalidateOwner(ctx context.Context, ownerID int64) error {
	if !s.Enabled() {
		return nil
	}
	pattern := OwnerPattern(ownerID)
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		return err
	}
	return nil
}

func (s *CacheService) get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	duration := time.Since(start)
	if err != nil {
		s.metrics.RecordCacheOperation(false, duration)
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return false, nil
		}
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	s.metrics.RecordCacheOperation(true, duration)
	return true, nil
}
