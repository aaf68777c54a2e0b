package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/study-planner/internal/dto"
	"github.com/noah-isme/study-planner/internal/models"
	"github.com/noah-isme/study-planner/internal/scheduler"
	appErrors "github.com/noah-isme/study-planner/pkg/errors"
)

const requestDateLayout = "2006-01-02"

type taskFeeder interface {
	ListPlannableByOwner(ctx context.Context, ownerID int64, includeCompleted bool) ([]models.Task, error)
}

type solveSubmitter interface {
	Submit(ctx context.Context, key string, req SolveRequest) (*SolveHandle, error)
}

// PlannerConfig holds the defaults applied to every planning request.
type PlannerConfig struct {
	Strategy            scheduler.Strategy
	TimeLimit           time.Duration
	UnimprovedMoveLimit int64
	Runs                int
	Seed                int64
	Capacity            scheduler.Capacity
	ChunkCapMinutes     int
	GreedyDailyMinutes  int
	// WaitTimeout bounds how long a request waits for its solve.
	WaitTimeout time.Duration
	// FeedSource labels task feed metrics.
	FeedSource string
}

// PlannerService turns an owner's tasks into a day-by-day study plan.
type PlannerService struct {
	feeder    taskFeeder
	solver    solveSubmitter
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	cfg       PlannerConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewPlannerService constructs the planner service.
func NewPlannerService(
	feeder taskFeeder,
	solver solveSubmitter,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	cfg PlannerConfig,
	logger *zap.Logger,
) *PlannerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Strategy.Valid() {
		cfg.Strategy = scheduler.StrategySearch
	}
	if cfg.TimeLimit <= 0 {
		cfg.TimeLimit = scheduler.DefaultTimeLimit
	}
	if cfg.Runs <= 0 {
		cfg.Runs = 1
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = 2*cfg.TimeLimit + time.Minute
	}
	if cfg.FeedSource == "" {
		cfg.FeedSource = "tasks"
	}
	return &PlannerService{
		feeder:    feeder,
		solver:    solver,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateStudyPlan plans the owner's tasks over an explicit date range.
func (s *PlannerService) CreateStudyPlan(ctx context.Context, req dto.StudyPlanRequest) (*dto.SchedulePlan, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid study plan payload")
	}
	start, err := time.Parse(requestDateLayout, req.StartDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid start date")
	}
	end, err := time.Parse(requestDateLayout, req.EndDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid end date")
	}
	window, err := scheduler.CustomWindow(start, end)
	if err != nil {
		return nil, windowError(err)
	}
	return s.planOwner(ctx, req.OwnerID, window, req.Options)
}

// CreateStudyPlanForDate plans the study period containing the given date.
func (s *PlannerService) CreateStudyPlanForDate(ctx context.Context, req dto.StudyPlanForDateRequest) (*dto.SchedulePlan, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid study plan payload")
	}
	date, err := time.Parse(requestDateLayout, req.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
	}
	return s.planOwner(ctx, req.OwnerID, scheduler.StudyWindow(date), req.Options)
}

// CreateSemesterPlan plans the weekday semester containing year/month.
func (s *PlannerService) CreateSemesterPlan(ctx context.Context, req dto.SemesterPlanRequest) (*dto.SchedulePlan, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid semester plan payload")
	}
	window, err := scheduler.SemesterWindow(req.Year, req.Month)
	if err != nil {
		return nil, windowError(err)
	}
	return s.planOwner(ctx, req.OwnerID, window, req.Options)
}

func (s *PlannerService) planOwner(ctx context.Context, ownerID int64, window scheduler.Window, opts dto.PlanOptions) (*dto.SchedulePlan, error) {
	start := time.Now()
	tasks, err := s.feeder.ListPlannableByOwner(ctx, ownerID, opts.IncludeCompleted)
	s.metrics.ObserveTaskFeed(s.cfg.FeedSource, time.Since(start))
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tasks")
	}
	return s.PlanTasks(ctx, ownerID, tasks, window, opts)
}

// InvalidateOwner drops the owner's cached plans, e.g. after its tasks changed.
func (s *PlannerService) InvalidateOwner(ctx context.Context, ownerID int64) error {
	return s.cache.InvalidateOwner(ctx, ownerID)
}

// PlanTasks plans an already loaded task set. Tasks without a positive
// estimate are skipped, as are completed ones unless opts.IncludeCompleted.
func (s *PlannerService) PlanTasks(ctx context.Context, ownerID int64, tasks []models.Task, window scheduler.Window, opts dto.PlanOptions) (*dto.SchedulePlan, error) {
	if err := s.validator.Struct(opts); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid plan options")
	}
	if window.End.Before(window.Start) {
		return nil, appErrors.Clone(appErrors.ErrInvalidWindow, "planning window ends before it starts")
	}

	strategy := s.cfg.Strategy
	if opts.Strategy != "" {
		strategy = scheduler.Strategy(opts.Strategy)
	}
	seed := s.cfg.Seed
	if opts.Seed != nil {
		seed = *opts.Seed
	}
	runs := s.cfg.Runs
	if opts.Runs > 0 {
		runs = opts.Runs
	}

	input := toSchedulerTasks(tasks, opts.IncludeCompleted)
	modelOpts := scheduler.ModelOptions{
		Chunk:    scheduler.ChunkOptions{Cap: s.cfg.ChunkCapMinutes},
		Capacity: s.cfg.Capacity,
	}
	req := SolveRequest{
		Strategy: strategy,
		Runs:     runs,
		Config: scheduler.SolverConfig{
			TimeLimit:           s.timeLimit(opts),
			UnimprovedMoveLimit: s.cfg.UnimprovedMoveLimit,
			Seed:                seed,
			Logger:              s.logger,
		},
		Greedy: scheduler.GreedyOptions{DailyMinutes: s.dailyMinutes(opts)},
	}

	key := PlanKey(ownerID, window, req, modelOpts, input)
	if !opts.SkipCache {
		cached, hit, err := s.cache.GetPlan(ctx, key)
		if err == nil && hit {
			s.logger.Info("plan served from cache", zap.Int64("owner_id", ownerID), zap.String("plan_id", cached.ID))
			return cached, nil
		}
	}

	req.Model = scheduler.BuildModel(input, window, modelOpts)
	handle, err := s.solver.Submit(ctx, strconv.FormatInt(ownerID, 10), req)
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.WaitTimeout)
	defer cancel()
	plan, err := handle.Wait(waitCtx)
	if err != nil {
		s.logger.Warn("plan not produced", zap.Int64("owner_id", ownerID), zap.String("solve_id", handle.ID.String()), zap.Error(err))
		return nil, appErrors.FromError(err)
	}

	result := toSchedulePlan(ownerID, handle.ID.String(), plan, s.now().UTC())
	if !opts.SkipCache {
		_ = s.cache.StorePlan(ctx, key, result)
	}
	s.logger.Info("plan created",
		zap.Int64("owner_id", ownerID),
		zap.String("plan_id", result.ID),
		zap.String("strategy", result.Strategy),
		zap.Int("tasks", result.TotalTasksConsidered),
		zap.Int("planned", result.PlannedTaskCount),
		zap.Int("warnings", len(result.Warnings)),
	)
	return result, nil
}

func (s *PlannerService) timeLimit(opts dto.PlanOptions) time.Duration {
	if opts.TimeLimitSeconds > 0 {
		return time.Duration(opts.TimeLimitSeconds) * time.Second
	}
	return s.cfg.TimeLimit
}

func (s *PlannerService) dailyMinutes(opts dto.PlanOptions) int {
	if opts.DailyMinutes > 0 {
		return opts.DailyMinutes
	}
	return s.cfg.GreedyDailyMinutes
}

func windowError(err error) error {
	if errors.Is(err, scheduler.ErrInvalidWindow) {
		return appErrors.Wrap(err, appErrors.ErrInvalidWindow.Code, appErrors.ErrInvalidWindow.Status, err.Error())
	}
	return appErrors.FromError(err)
}

func toSchedulerTasks(tasks []models.Task, includeCompleted bool) []scheduler.Task {
	out := make([]scheduler.Task, 0, len(tasks))
	for _, t := range tasks {
		if !t.Plannable() || (t.Completed && !includeCompleted) {
			continue
		}
		out = append(out, scheduler.Task{
			ID:               t.ID,
			Name:             t.Name,
			SubjectName:      t.SubjectName,
			EstimatedMinutes: *t.EstimatedMinutes,
			Deadline:         t.Deadline,
		})
	}
	return out
}

func toSchedulePlan(ownerID int64, id string, plan scheduler.Plan, generatedAt time.Time) *dto.SchedulePlan {
	out := &dto.SchedulePlan{
		ID:                   id,
		OwnerID:              ownerID,
		StartDate:            plan.Window.Start.Format(requestDateLayout),
		EndDate:              plan.Window.End.Format(requestDateLayout),
		Strategy:             string(plan.Strategy),
		PlannedDays:          make([]dto.PlannedDay, 0, len(plan.Days)),
		Warnings:             make([]dto.PlanWarning, 0, len(plan.Warnings)),
		TotalTasksConsidered: plan.TotalTasksConsidered,
		PlannedTaskCount:     plan.PlannedTaskCount,
		Message:              plan.Message,
		GeneratedAt:          generatedAt,
	}
	for _, day := range plan.Days {
		pd := dto.PlannedDay{
			Date:         day.Date.Format(requestDateLayout),
			TotalMinutes: day.TotalMinutes,
			Tasks:        make([]dto.PlannedTask, 0, len(day.Tasks)),
		}
		for _, t := range day.Tasks {
			pt := dto.PlannedTask{
				TaskID:           t.TaskID,
				TaskName:         t.TaskName,
				SubjectName:      t.SubjectName,
				MinutesToday:     t.MinutesToday,
				MinutesRemaining: t.MinutesRemaining,
				Part:             t.PartNumber,
				Parts:            t.PartCount,
			}
			if t.Deadline != nil {
				deadline := t.Deadline.Format(requestDateLayout)
				pt.Deadline = &deadline
			}
			pd.Tasks = append(pd.Tasks, pt)
		}
		out.PlannedDays = append(out.PlannedDays, pd)
	}
	for _, w := range plan.Warnings {
		out.Warnings = append(out.Warnings, dto.PlanWarning{
			TaskID:                  w.TaskID,
			TaskName:                w.TaskName,
			Kind:                    string(w.Kind),
			Message:                 w.Message,
			RecommendedDailyMinutes: w.RecommendedDailyMinutes,
		})
	}
	if plan.Strategy == scheduler.StrategySearch {
		out.Score = &dto.PlanScore{
			Hard:     plan.Score.Hard,
			Medium:   plan.Score.Medium,
			Soft:     plan.Score.Soft,
			Feasible: plan.Score.Feasible(),
		}
		out.Stats = &dto.PlanStats{
			Moves:         plan.Stats.Moves,
			Improvements:  plan.Stats.Improvements,
			Perturbations: plan.Stats.Perturbations,
			ElapsedMs:     plan.Stats.Elapsed.Milliseconds(),
			Termination:   plan.Stats.Termination,
			Seed:          plan.Seed,
		}
	}
	return out
}
