package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Gpstrackergsm/gps-saas-platform/internal/api/handlers"
	"github.com/Gpstrackergsm/gps-saas-platform/internal/config"
	"github.com/Gpstrackergsm/gps-saas-platform/internal/repository"
	"github.com/Gpstrackergsm/gps-saas-platform/internal/service"
	"github.com/Gpstrackergsm/gps-saas-platform/internal/tcp"
	"github.com/Gpstrackergsm/gps-saas-platform/pkg/ws"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger := initLogger(cfg.Debug)
	defer logger.Sync()

	logger.Info("Starting GPS platform",
		zap.String("http_port", cfg.ServerPort),
		zap.String("tcp_port", cfg.TCPPort))

	// 创建 context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 连接数据库
	db, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect database", zap.Error(err))
	}
	defer db.Close()

	// 执行数据库迁移
	if err := db.Migrate(ctx); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}
	logger.Info("Database migrated successfully")

	// 创建 Repository
	userRepo := repository.NewUserRepository(db)
	deviceRepo := repository.NewDeviceRepository(db)
	posRepo := repository.NewPositionRepository(db)
	rawLogRepo := repository.NewRawLogRepository(db)

	// 创建 WebSocket Hub
	wsHub := ws.NewHub(logger)
	go wsHub.Run()

	// 存活监控：超时无报文的设备标记离线
	liveness := service.NewLiveness(logger, deviceRepo, wsHub, cfg.OfflineTimeout, cfg.OfflineSweepInterval)
	go liveness.Run(ctx)

	// 摄取管线，TCP 与模拟入口共用
	tracker := service.NewTracker(logger, posRepo, deviceRepo, rawLogRepo, wsHub, liveness)

	// 启动设备接入 TCP 服务
	tcpServer := tcp.NewServer(":"+cfg.TCPPort, logger, tracker)
	go func() {
		if err := tcpServer.ListenAndServe(ctx); err != nil {
			logger.Fatal("TCP server failed", zap.Error(err))
		}
	}()

	// 创建 HTTP 处理器
	handler := handlers.NewHandler(
		logger,
		userRepo,
		deviceRepo,
		posRepo,
		tracker,
		wsHub,
		cfg.JWTSecret,
	)

	// 设置 Gin 模式
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// 注册路由
	handler.RegisterRoutes(router)

	// 启动 HTTP 服务器
	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", server.Addr))

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancel()

	// 优雅关闭
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// initLogger 初始化日志
func initLogger(debug bool) *zap.Logger {
	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}

	logger, _ := config.Build()
	return logger
}

// corsMiddleware CORS 中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
