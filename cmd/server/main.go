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

	"go.uber.org/zap"

	"smart-campus/backend/config"
	"smart-campus/backend/internal/api/handler"
	"smart-campus/backend/internal/api/router"
	"smart-campus/backend/internal/repository"
	"smart-campus/backend/internal/service"
	"smart-campus/backend/pkg/database"
	"smart-campus/backend/pkg/jwt"
	applogger "smart-campus/backend/pkg/logger"
	"smart-campus/backend/pkg/mq"
	"smart-campus/backend/pkg/redis"
	"smart-campus/backend/pkg/validate"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（默认查找 ./config/config.yaml）")
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.Int("max_sections", cfg.Scheduler.MaxSections),
	)

	if err := validate.Register(); err != nil {
		logger.Fatal("注册校验规则失败", zap.Error(err))
	}

	// 3. 连接数据库
	db, err := database.NewDB(&cfg.Database, applogger.IsDebug(&cfg.Log), logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	logger.Info("数据库连接成功")

	// 3.1 执行数据库迁移
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	probes := map[string]handler.Probe{"db": sqlDB.PingContext}

	// 4. 连接 Redis（可选：连接失败时降级为进程内锁、不缓存、不限流）
	deps := service.TimetableDeps{}
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = redis.NewClient(&cfg.Redis, logger)
		if err != nil {
			logger.Warn("Redis 连接失败，学期锁退化为进程内实现", zap.Error(err))
			rdb = nil
		}
	}
	if rdb != nil {
		deps.Locker = service.NewRedisLocker(rdb, cfg.Scheduler.LockTTL, logger)
		deps.Cache = service.NewRedisCache(rdb, cfg.Scheduler.ViewCacheTTL)
		probes["redis"] = rdb.Ping
	}

	// 5. 连接 RabbitMQ（可选：失败时不发布排课事件）
	var publisher *mq.Publisher
	if cfg.MQ.Enabled {
		publisher, err = mq.NewPublisher(&cfg.MQ, logger)
		if err != nil {
			logger.Warn("RabbitMQ 连接失败，排课事件将不会发布", zap.Error(err))
			publisher = nil
		}
	}
	deps.Events = service.NewMQPublisher(publisher)

	// 6. 初始化 JWT 管理器
	jwtMgr := jwt.NewManager(&cfg.Auth)

	// 7. 依赖注入: Repository → Service → Handler
	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, deps, logger)
	h := handler.NewHandler(svc, probes)

	// 8. 初始化路由
	engine := router.Setup(cfg, h, jwtMgr, rdb, logger)

	// 9. 启动 HTTP 服务器（优雅关闭）；写超时需覆盖排课求解时限
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Scheduler.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 10. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Warn("关闭 RabbitMQ 连接异常", zap.Error(err))
		}
	}
	if rdb != nil {
		rdb.Close()
	}
	sqlDB.Close()

	logger.Info("服务器已关闭")
}
