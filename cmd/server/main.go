package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/admission-seat-allocation/internal/allocation"
	"github.com/iliyamo/admission-seat-allocation/internal/cache"
	"github.com/iliyamo/admission-seat-allocation/internal/config"
	"github.com/iliyamo/admission-seat-allocation/internal/database"
	"github.com/iliyamo/admission-seat-allocation/internal/handler"
	"github.com/iliyamo/admission-seat-allocation/internal/logger"
	"github.com/iliyamo/admission-seat-allocation/internal/middleware"
	"github.com/iliyamo/admission-seat-allocation/internal/queue"
	"github.com/iliyamo/admission-seat-allocation/internal/redisstore"
	"github.com/iliyamo/admission-seat-allocation/internal/repository"
	"github.com/iliyamo/admission-seat-allocation/internal/router"
	queue_publisher "github.com/iliyamo/admission-seat-allocation/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := config.Load()
	allocCfg := config.LoadAllocationConfig()
	queueCfg := config.LoadQueueConfig()

	zl, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		zl.Fatal("database", zap.Error(err))
	}
	defer db.Close()

	rdb, err := config.NewRedisClient(config.LoadRedisConfig())
	if err != nil {
		if allocCfg.Store == config.StoreRedis {
			zl.Fatal("redis is required by ALLOCATION_STORE=redis", zap.Error(err))
		}
		zl.Warn("redis unavailable; caching and rate limiting disabled", zap.Error(err))
	} else {
		defer rdb.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	refRepo := repository.NewReferenceRepo(db)
	store, err := buildStore(ctx, allocCfg, db, rdb, refRepo, zl)
	if err != nil {
		zl.Fatal("allocation store", zap.Error(err))
	}

	svc := allocation.NewService(
		cache.NewReference(refRepo, rdb, allocCfg.RefDataCacheTTL, zl.Named("refdata")),
		store,
		allocation.Options{
			MaxConcessionPct: allocCfg.MaxConcessionPct,
			EnrollmentPrefix: allocCfg.EnrollmentPrefix,
			Publisher:        queue_publisher.NewPublisher(queueCfg.URL, zl.Named("publisher")),
			Logger:           zl.Named("allocation"),
		},
	)

	if queueCfg.ConsumerEnabled {
		consumer := &queue.Consumer{URL: queueCfg.URL, Dir: queueCfg.LogDir, Log: zl.Named("consumer")}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zl.Error("allocation consumer stopped", zap.Error(err))
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(requestLogger(zl.Named("http"))))

	checks := map[string]handler.Check{"mysql": db.PingContext}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	router.RegisterRoutes(e, checks)
	router.RegisterAllocation(e,
		handler.NewAllocationHandler(svc, zl.Named("handler")),
		cfg.JWTSecret,
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, zl.Named("ratelimit")),
		middleware.NewRedisCache(config.LoadCacheConfig(), rdb, zl.Named("respcache")),
	)

	addr := ":" + cfg.Port
	go func() {
		zl.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("store", allocCfg.Store))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zl.Error("shutdown", zap.Error(err))
	}
}

// buildStore returns the allocation store selected by ALLOCATION_STORE.
// The Redis store is warmed from MySQL so it starts from the same seat
// pools and counters.
func buildStore(ctx context.Context, cfg config.AllocationConfig, db *sql.DB, rdb *redis.Client, ref *repository.ReferenceRepo, zl *zap.Logger) (allocation.Store, error) {
	if cfg.Store != config.StoreRedis {
		return repository.NewStore(db), nil
	}
	pools, err := ref.ListSeatPools(ctx)
	if err != nil {
		return nil, err
	}
	counters, err := ref.ListSequenceCounters(ctx)
	if err != nil {
		return nil, err
	}
	s := redisstore.New(rdb, redisstore.Options{ClaimTTL: cfg.ClaimTTL, Logger: zl.Named("redisstore")})
	if err := s.Warm(ctx, pools, counters); err != nil {
		return nil, err
	}
	zl.Info("redis store warmed", zap.Int("pools", len(pools)), zap.Int("counters", len(counters)))
	return s, nil
}

func requestLogger(zl *zap.Logger) echomw.RequestLoggerConfig {
	return echomw.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				zl.Error("request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			zl.Info("request", fields...)
			return nil
		},
	}
}
