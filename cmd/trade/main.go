// TradeService 主程序
// 功能：利率互换交易生命周期管理，包括录入、修改、终止、取消、检索与结算指令维护
// 架构：基于 DDD + Gin + GORM + Transactional Outbox + Kafka
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	pkgconfig "github.com/wyfcoding/pkg/config"
	"github.com/wyfcoding/pkg/messagequeue/outbox"
	refdomain "github.com/wyfcoding/swaptrading/internal/referencedata/domain"
	refmysql "github.com/wyfcoding/swaptrading/internal/referencedata/infrastructure/persistence/mysql"
	refredis "github.com/wyfcoding/swaptrading/internal/referencedata/infrastructure/persistence/redis"
	refhttp "github.com/wyfcoding/swaptrading/internal/referencedata/interfaces/http"
	"github.com/wyfcoding/swaptrading/internal/trade/application"
	"github.com/wyfcoding/swaptrading/internal/trade/domain"
	"github.com/wyfcoding/swaptrading/internal/trade/infrastructure/messaging"
	trademysql "github.com/wyfcoding/swaptrading/internal/trade/infrastructure/persistence/mysql"
	traderedis "github.com/wyfcoding/swaptrading/internal/trade/infrastructure/persistence/redis"
	"github.com/wyfcoding/swaptrading/internal/trade/infrastructure/snowflake"
	httphandler "github.com/wyfcoding/swaptrading/internal/trade/interfaces/http"
	usermysql "github.com/wyfcoding/swaptrading/internal/user/infrastructure/persistence/mysql"
	"github.com/wyfcoding/swaptrading/pkg/cache"
	"github.com/wyfcoding/swaptrading/pkg/config"
	"github.com/wyfcoding/swaptrading/pkg/db"
	"github.com/wyfcoding/swaptrading/pkg/logger"
	"github.com/wyfcoding/swaptrading/pkg/metrics"
	"github.com/wyfcoding/swaptrading/pkg/middleware"
	"github.com/wyfcoding/swaptrading/pkg/mq"
	"github.com/wyfcoding/swaptrading/pkg/ratelimit"
	"gorm.io/gorm"
)

const sequenceName = "trade"

func main() {
	configPath := flag.String("config", "configs/trade/config.toml", "path to config file")
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger.Init(logger.Config{
		Service:    cfg.ServiceName,
		Module:     "trade",
		Level:      cfg.Logger.Level,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	logger.Info(ctx, "Starting TradeService",
		"service", cfg.ServiceName,
		"version", cfg.Version,
		"environment", cfg.Environment,
	)

	// 3. 初始化数据库
	database, err := db.Init(db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	})
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize database", "error", err)
	}
	defer database.Close()

	if cfg.Database.AutoMigrate {
		if err := migrate(database.DB); err != nil {
			logger.Fatal(ctx, "Failed to migrate database", "error", err)
		}
		logger.Info(ctx, "Database schema migrated")
	}

	// 4. 交易编号序列与 Redis（可选）：参考数据缓存、交易编号序列、分布式限流
	var (
		refs        refdomain.Gateway = refmysql.NewGateway(database.DB)
		sequence    domain.IDSequence = trademysql.NewSequence(database.DB, sequenceName, cfg.Trade.IDSequenceStart)
		rateLimiter ratelimit.RateLimiter
	)
	if cfg.Trade.IDSequence == "snowflake" || cfg.Trade.IDSequence == "sonyflake" {
		sequence, err = snowflake.NewSequence(pkgconfig.SnowflakeConfig{
			Type:      cfg.Trade.IDSequence,
			StartTime: cfg.Trade.IDEpoch,
			MachineID: cfg.Trade.MachineID,
		})
		if err != nil {
			logger.Fatal(ctx, "Failed to initialize trade id generator", "error", err)
		}
	}
	if cfg.Redis.Enabled {
		redisCache, err := cache.New(cache.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			MaxPoolSize:  cfg.Redis.MaxPoolSize,
			ConnTimeout:  cfg.Redis.ConnTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			logger.Fatal(ctx, "Failed to initialize Redis", "error", err)
		}
		defer redisCache.Close()

		refs = refredis.NewCachedGateway(refs, redisCache, time.Duration(cfg.Trade.ReferenceCacheTTL)*time.Second)
		if cfg.Trade.IDSequence == "redis" {
			sequence = traderedis.NewSequence(redisCache, "trade:id:"+sequenceName, cfg.Trade.IDSequenceStart)
		}
		rateLimiter = ratelimit.NewRedisRateLimiter(redisCache.GetClient())
	} else {
		rateLimiter = ratelimit.NewLocalRateLimiter()
	}

	// 5. 初始化指标
	registry := prometheus.NewRegistry()
	metricsInstance := metrics.New(cfg.ServiceName)
	if err := metricsInstance.Register(registry); err != nil {
		logger.Fatal(ctx, "Failed to register metrics", "error", err)
	}
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)
		metrics.StartHTTPServer(metricsServer)
	}

	// 6. 初始化应用服务
	svc := application.NewTradeService(application.Deps{
		Trades:   trademysql.NewTradeRepository(database.DB),
		Infos:    trademysql.NewAdditionalInfoRepository(database.DB),
		Refs:     refs,
		Users:    usermysql.NewUserRepository(database.DB),
		Sequence: sequence,
		Tx:       db.NewTransactor(database.DB),
		Events:   messaging.NewOutboxEventPublisher(database.DB, outbox.NewManager(database.DB, logger.Get()), cfg.Kafka.Topic),
		Metrics:  metricsInstance,
		Logger:   logger.Get(),
	})

	// 7. 启动 Outbox 投递
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := mq.NewProducer(mq.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			MaxRetries:   cfg.Kafka.MaxRetries,
			RetryBackoff: cfg.Kafka.RetryBackoff,
		})
		if err != nil {
			logger.Fatal(ctx, "Failed to initialize Kafka producer", "error", err)
		}
		defer producer.Close()

		relay := messaging.NewOutboxRelay(database.DB, producer, messaging.RelayConfig{
			BatchSize:       cfg.Trade.OutboxBatchSize,
			Interval:        time.Duration(cfg.Trade.OutboxInterval) * time.Millisecond,
			MaxRetries:      cfg.Kafka.MaxRetries,
			RetryBackoff:    time.Duration(cfg.Kafka.RetryBackoff) * time.Millisecond,
			MaxAttempts:     cfg.Trade.OutboxMaxAttempts,
			Retention:       time.Duration(cfg.Trade.OutboxRetentionHours) * time.Hour,
			CleanupInterval: time.Duration(cfg.Trade.OutboxCleanupInterval) * time.Second,
		}, metricsInstance, logger.Get())
		go relay.Run(ctx)
	} else {
		logger.Warn(ctx, "Kafka brokers not configured, trade events stay in the outbox")
	}

	// 8. 启动 HTTP 服务器
	httpServer := createHTTPServer(cfg, svc, refs, rateLimiter, metricsInstance)
	go func() {
		logger.Info(ctx, "Starting HTTP server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(ctx, "HTTP server error", "error", err)
		}
	}()

	// 9. 优雅关停
	<-ctx.Done()
	logger.Info(context.Background(), "Shutting down TradeService")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "HTTP server shutdown error", "error", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error(shutdownCtx, "Metrics server shutdown error", "error", err)
		}
	}

	logger.Info(shutdownCtx, "TradeService stopped")
}

// migrate 建表顺序：参考数据、用户、交易、Outbox
func migrate(gdb *gorm.DB) error {
	for _, fn := range []func(*gorm.DB) error{
		refmysql.AutoMigrate,
		usermysql.AutoMigrate,
		trademysql.AutoMigrate,
		messaging.AutoMigrate,
	} {
		if err := fn(gdb); err != nil {
			return err
		}
	}
	return nil
}

// createHTTPServer 创建 HTTP 服务器
func createHTTPServer(cfg *config.Config, svc *application.TradeService, refs refdomain.Gateway, limiter ratelimit.RateLimiter, recorder middleware.HTTPRecorder) *http.Server {
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.GinRecoveryMiddleware())
	router.Use(middleware.GinLoggingMiddleware())
	router.Use(middleware.GinCORSMiddleware())
	router.Use(middleware.GinMetricsMiddleware(recorder))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimitMiddleware(limiter, ratelimit.PerSecond(cfg.RateLimit.QPS, cfg.RateLimit.Burst)))
	}

	httphandler.NewTradeHandler(svc, logger.Get()).RegisterRoutes(router)
	refhttp.NewReferenceDataHandler(refs).RegisterRoutes(router)

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}
}
