package config

import (
	"errors"
	"io/fs"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env string

	Database DatabaseConfig
	Redis    RedisConfig
	Log      LogConfig
	Planner  PlannerConfig
	Metrics  MetricsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type LogConfig struct {
	Level  string
	Format string
}

// PlannerConfig tunes the scheduling engine and the solve worker pool.
type PlannerConfig struct {
	Strategy            string
	TimeLimit           time.Duration
	UnimprovedMoveLimit int64
	Runs                int
	Seed                int64
	Workers             int
	SoftCapacityMinutes int
	HardCapacityMinutes int
	ChunkCapMinutes     int
	GreedyDailyMinutes  int
	WaitTimeout         time.Duration
	CacheEnabled        bool
	CacheTTL            time.Duration
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
	Addr    string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	workers := v.GetInt("PLANNER_WORKERS")
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	cfg.Planner = PlannerConfig{
		Strategy:            v.GetString("PLANNER_STRATEGY"),
		TimeLimit:           parseDuration(v.GetString("PLANNER_TIME_LIMIT"), 300*time.Second),
		UnimprovedMoveLimit: v.GetInt64("PLANNER_UNIMPROVED_MOVE_LIMIT"),
		Runs:                v.GetInt("PLANNER_RUNS"),
		Seed:                v.GetInt64("PLANNER_SEED"),
		Workers:             workers,
		SoftCapacityMinutes: v.GetInt("PLANNER_SOFT_CAPACITY_MINUTES"),
		HardCapacityMinutes: v.GetInt("PLANNER_HARD_CAPACITY_MINUTES"),
		ChunkCapMinutes:     v.GetInt("PLANNER_CHUNK_CAP_MINUTES"),
		GreedyDailyMinutes:  v.GetInt("PLANNER_GREEDY_DAILY_MINUTES"),
		WaitTimeout:         parseDuration(v.GetString("PLANNER_WAIT_TIMEOUT"), 10*time.Minute),
		CacheEnabled:        v.GetBool("PLANNER_CACHE_ENABLED"),
		CacheTTL:            parseDuration(v.GetString("PLANNER_CACHE_TTL"), 30*time.Minute),
	}

	cfg.Metrics = MetricsConfig{
		Enabled: v.GetBool("ENABLE_METRICS"),
		Addr:    v.GetString("METRICS_ADDR"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "study_planner")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("PLANNER_STRATEGY", "search")
	v.SetDefault("PLANNER_TIME_LIMIT", "300s")
	v.SetDefault("PLANNER_UNIMPROVED_MOVE_LIMIT", 50000)
	v.SetDefault("PLANNER_RUNS", 1)
	v.SetDefault("PLANNER_SEED", 0)
	v.SetDefault("PLANNER_WORKERS", 0)
	v.SetDefault("PLANNER_SOFT_CAPACITY_MINUTES", 180)
	v.SetDefault("PLANNER_HARD_CAPACITY_MINUTES", 300)
	v.SetDefault("PLANNER_CHUNK_CAP_MINUTES", 180)
	v.SetDefault("PLANNER_GREEDY_DAILY_MINUTES", 180)
	v.SetDefault("PLANNER_WAIT_TIMEOUT", "10m")
	v.SetDefault("PLANNER_CACHE_ENABLED", false)
	v.SetDefault("PLANNER_CACHE_TTL", "30m")

	v.SetDefault("ENABLE_METRICS", false)
	v.SetDefault("METRICS_ADDR", ":9090")
}

// isMissingFile reports a missing .env file; with SetConfigFile viper returns
// the raw fs error instead of ConfigFileNotFoundError.
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}
