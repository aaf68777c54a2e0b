package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/study-planner/internal/dto"
	"github.com/noah-isme/study-planner/internal/repository"
	"github.com/noah-isme/study-planner/internal/scheduler"
	"github.com/noah-isme/study-planner/internal/service"
	"github.com/noah-isme/study-planner/pkg/cache"
	"github.com/noah-isme/study-planner/pkg/config"
	"github.com/noah-isme/study-planner/pkg/database"
	"github.com/noah-isme/study-planner/pkg/logger"
	"github.com/noah-isme/study-planner/pkg/storage"
)

var (
	flagTasks            string
	flagDB               bool
	flagOwner            int64
	flagStrategy         string
	flagSeed             int64
	flagTimeLimit        time.Duration
	flagRuns             int
	flagDailyMinutes     int
	flagIncludeCompleted bool
	flagFormat           string
	flagOut              string
	flagArchiveDir       string
	flagArchiveTTL       time.Duration
	flagWatch            bool
	flagMetricsAddr      string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "planner",
		Short: "Build day-by-day study plans from task deadlines and estimates",
		Long: `planner splits each task into study sessions of at most three hours and
searches for a day assignment that keeps every deadline, keeps a task's
sessions on consecutive days and spreads the daily workload.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&flagTasks, "tasks", "", "YAML task file")
	rootCmd.PersistentFlags().BoolVar(&flagDB, "db", false, "Read tasks from PostgreSQL (DB_* settings)")
	rootCmd.PersistentFlags().Int64Var(&flagOwner, "owner", 1, "Owner whose tasks are planned")
	rootCmd.PersistentFlags().StringVar(&flagStrategy, "strategy", "", "Planning strategy: search or greedy")
	rootCmd.PersistentFlags().Int64Var(&flagSeed, "seed", 0, "Search seed (defaults to PLANNER_SEED)")
	rootCmd.PersistentFlags().DurationVar(&flagTimeLimit, "time-limit", 0, "Search time limit (defaults to PLANNER_TIME_LIMIT)")
	rootCmd.PersistentFlags().IntVar(&flagRuns, "runs", 0, "Independent search runs; the best plan wins")
	rootCmd.PersistentFlags().IntVar(&flagDailyMinutes, "daily-minutes", 0, "Daily budget of the greedy strategy")
	rootCmd.PersistentFlags().BoolVar(&flagIncludeCompleted, "include-completed", false, "Plan completed tasks too")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "Output format: json, csv or pdf")
	rootCmd.PersistentFlags().StringVarP(&flagOut, "out", "o", "", "Output file (stdout when empty)")
	rootCmd.PersistentFlags().StringVar(&flagArchiveDir, "archive-dir", "", "Also archive rendered plans below this directory")
	rootCmd.PersistentFlags().DurationVar(&flagArchiveTTL, "archive-ttl", 0, "Remove archived plans older than this")
	rootCmd.PersistentFlags().BoolVar(&flagWatch, "watch", false, "Re-plan whenever the task file changes")
	rootCmd.PersistentFlags().StringVar(&flagMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	rootCmd.AddCommand(planCmd())
	rootCmd.AddCommand(studyCmd())
	rootCmd.AddCommand(semesterCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func planCmd() *cobra.Command {
	var start, end string
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Plan every day between --start and --end",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, func(ctx context.Context, a *app, opts dto.PlanOptions) (*dto.SchedulePlan, error) {
				return a.planner.CreateStudyPlan(ctx, dto.StudyPlanRequest{OwnerID: flagOwner, StartDate: start, EndDate: end, Options: opts})
			})
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "First day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "Last day (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func studyCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "study",
		Short: "Plan the study period containing --date",
		RunE: func(cmd *cobra.Command, args []string) error {
			if date == "" {
				date = time.Now().Format("2006-01-02")
			}
			return execute(cmd, func(ctx context.Context, a *app, opts dto.PlanOptions) (*dto.SchedulePlan, error) {
				return a.planner.CreateStudyPlanForDate(ctx, dto.StudyPlanForDateRequest{OwnerID: flagOwner, Date: date, Options: opts})
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Any day of the period (defaults to today)")
	return cmd
}

func semesterCmd() *cobra.Command {
	var year, month int
	cmd := &cobra.Command{
		Use:   "semester",
		Short: "Plan the weekday-only semester containing --year/--month",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, func(ctx context.Context, a *app, opts dto.PlanOptions) (*dto.SchedulePlan, error) {
				return a.planner.CreateSemesterPlan(ctx, dto.SemesterPlanRequest{OwnerID: flagOwner, Year: year, Month: month, Options: opts})
			})
		},
	}
	now := time.Now()
	cmd.Flags().IntVar(&year, "year", now.Year(), "Semester year")
	cmd.Flags().IntVar(&month, "month", int(now.Month()), "Any month of the semester (1-6 or 9-12)")
	return cmd
}

type planFunc func(ctx context.Context, a *app, opts dto.PlanOptions) (*dto.SchedulePlan, error)

func execute(cmd *cobra.Command, run planFunc) error {
	format := service.ExportFormat(strings.ToLower(flagFormat))
	if format != "json" && format != service.ExportCSV && format != service.ExportPDF {
		return fmt.Errorf("unknown format %q", flagFormat)
	}
	if flagWatch && flagTasks == "" {
		return errors.New("--watch requires --tasks")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	opts := dto.PlanOptions{
		Strategy:         flagStrategy,
		Runs:             flagRuns,
		DailyMinutes:     flagDailyMinutes,
		IncludeCompleted: flagIncludeCompleted,
	}
	if cmd.Flags().Changed("seed") {
		seed := flagSeed
		opts.Seed = &seed
	}
	if flagTimeLimit > 0 {
		opts.TimeLimitSeconds = int(flagTimeLimit.Round(time.Second) / time.Second)
		if opts.TimeLimitSeconds < 1 {
			opts.TimeLimitSeconds = 1
		}
	}

	once := func() error {
		plan, err := run(ctx, a, opts)
		if err != nil {
			return err
		}
		return a.emit(plan, format)
	}
	if err := once(); err != nil {
		return err
	}
	if !flagWatch {
		return nil
	}
	return watchFile(ctx, flagTasks, a.logger, func() {
		if err := a.planner.InvalidateOwner(ctx, flagOwner); err != nil {
			a.logger.Warn("plan cache invalidation failed", zap.Error(err))
		}
		if err := once(); err != nil {
			a.logger.Warn("re-plan failed", zap.Error(err))
		}
	})
}

// app wires the planner for one CLI invocation.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *service.MetricsService
	manager  *service.SolverManager
	planner  *service.PlannerService
	exporter *service.PlanExportService
	closers  []func()
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a := &app{cfg: cfg, logger: logr, metrics: service.NewMetricsService()}
	a.closers = append(a.closers, func() { _ = logr.Sync() })
	if err := a.wire(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg := a.cfg

	var plans *service.CacheService
	if cfg.Planner.CacheEnabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			a.logger.Warn("plan cache disabled", zap.Error(err))
		} else {
			repo := repository.NewCacheRepository(client, a.logger)
			a.closers = append(a.closers, func() { _ = repo.Close() })
			plans = service.NewCacheService(repo, a.metrics, cfg.Planner.CacheTTL, a.logger, true)
		}
	}

	a.manager = service.NewSolverManager(service.SolverManagerConfig{Workers: cfg.Planner.Workers}, a.metrics, a.logger)
	a.manager.Start(ctx)
	a.closers = append(a.closers, a.manager.Stop)

	plannerCfg := service.PlannerConfig{
		Strategy:            scheduler.Strategy(cfg.Planner.Strategy),
		TimeLimit:           cfg.Planner.TimeLimit,
		UnimprovedMoveLimit: cfg.Planner.UnimprovedMoveLimit,
		Runs:                cfg.Planner.Runs,
		Seed:                cfg.Planner.Seed,
		Capacity: scheduler.Capacity{
			SoftMinutes: cfg.Planner.SoftCapacityMinutes,
			HardMinutes: cfg.Planner.HardCapacityMinutes,
		},
		ChunkCapMinutes:    cfg.Planner.ChunkCapMinutes,
		GreedyDailyMinutes: cfg.Planner.GreedyDailyMinutes,
		WaitTimeout:        cfg.Planner.WaitTimeout,
	}
	switch {
	case flagTasks != "":
		plannerCfg.FeedSource = "file"
		a.planner = service.NewPlannerService(repository.NewTaskFileRepository(flagTasks), a.manager, plans, a.metrics, nil, plannerCfg, a.logger)
	case flagDB:
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		plannerCfg.FeedSource = "postgres"
		a.planner = service.NewPlannerService(repository.NewTaskRepository(db), a.manager, plans, a.metrics, nil, plannerCfg, a.logger)
	default:
		return errors.New("either --tasks or --db is required")
	}

	if flagArchiveDir != "" {
		store, err := storage.NewLocalStorage(flagArchiveDir)
		if err != nil {
			return err
		}
		a.exporter = service.NewPlanExportService(store, a.logger, nil, nil)
	} else {
		a.exporter = service.NewPlanExportService(nil, a.logger, nil, nil)
	}

	addr := flagMetricsAddr
	if addr == "" && cfg.Metrics.Enabled {
		addr = cfg.Metrics.Addr
	}
	if addr != "" {
		a.serveMetrics(addr)
	}
	return nil
}

func (a *app) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		a.logger.Info("metrics server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	a.closers = append(a.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
}

// emit writes plan to --out (or stdout) and archives it when configured.
func (a *app) emit(plan *dto.SchedulePlan, format service.ExportFormat) error {
	var (
		payload []byte
		err     error
	)
	if format == "json" {
		payload, err = json.MarshalIndent(plan, "", "  ")
		payload = append(payload, '\n')
	} else {
		payload, err = a.exporter.ExportPlan(plan, format)
	}
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if flagOut != "" {
		f, err := os.Create(flagOut)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close() //nolint:errcheck
		out = f
	}
	if _, err := out.Write(payload); err != nil {
		return fmt.Errorf("write plan: %w", err)
	}

	if flagArchiveDir != "" && format != "json" {
		if _, err := a.exporter.Archive(plan, format); err != nil {
			return err
		}
		if pruned, err := a.exporter.Prune(flagArchiveTTL); err != nil {
			a.logger.Warn("archive cleanup failed", zap.Error(err))
		} else if len(pruned) > 0 {
			a.logger.Info("archived plans removed", zap.Int("count", len(pruned)))
		}
	}
	a.logger.Info("plan written",
		zap.String("plan_id", plan.ID),
		zap.String("format", string(format)),
		zap.Int("warnings", len(plan.Warnings)),
	)
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
