package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/ordertrail/potrack/internal/blob"
	"github.com/ordertrail/potrack/internal/config"
	"github.com/ordertrail/potrack/internal/handler"
	"github.com/ordertrail/potrack/internal/ledger"
	"github.com/ordertrail/potrack/internal/middleware"
	"github.com/ordertrail/potrack/internal/service"
	"go.uber.org/zap"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting potrack service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("storage_driver", cfg.Storage.Driver),
	)

	// 初始化快照存储
	blobs, err := initBlobStore(cfg)
	if err != nil {
		zapLogger.Fatal("Failed to init blob store", zap.Error(err))
	}

	// 恢复台账
	store := ledger.NewStore(blobs, zapLogger)
	store.Load(context.Background())

	// 初始化服务与处理器
	orderSvc := service.NewOrderService(store, zapLogger)
	reportSvc := service.NewReportService(store, zapLogger)
	handlers := handler.NewHandlers(orderSvc, reportSvc)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	registerRoutes(router, handlers)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initBlobStore(cfg *config.Config) (blob.Store, error) {
	switch cfg.Storage.Driver {
	case "", "file":
		return blob.NewFileStore(cfg.Storage.DataDir)
	case "redis":
		store := blob.NewRedisStore(blob.RedisOptions{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err := store.Ping(context.Background()); err != nil {
			return nil, fmt.Errorf("redis unreachable: %w", err)
		}
		return store, nil
	case "minio":
		return blob.NewMinIOStore(context.Background(), blob.MinIOOptions{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			Bucket:    cfg.MinIO.Bucket,
			UseSSL:    cfg.MinIO.UseSSL,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func registerRoutes(r *gin.Engine, h *handler.Handlers) {
	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": Version})
	})

	api := r.Group("/api/v1")
	{
		pos := api.Group("/purchase-orders")
		{
			pos.GET("", h.PO.ListPOs)
			pos.POST("", h.PO.CreatePO)
			pos.GET("/:id", h.PO.GetPO)
			pos.PUT("/:id", h.PO.UpdatePO)
			pos.POST("/:id/cancel", h.PO.CancelPO)
			pos.POST("/:id/revise", h.PO.RevisePO)
			pos.GET("/:id/dispatches", h.Dispatch.ListByPO)
		}

		dispatches := api.Group("/dispatches")
		{
			dispatches.POST("", h.Dispatch.CreateDispatch)
			dispatches.GET("/:id", h.Dispatch.GetDispatch)
			dispatches.PUT("/:id", h.Dispatch.UpdateDispatch)
		}

		api.GET("/materials", h.Material.ListMaterials)

		reports := api.Group("/reports")
		{
			reports.GET("/dispatches", h.Report.GetReport)
			reports.GET("/dispatches/export", h.Report.ExportReport)
			reports.GET("/date-filter", h.Report.GetDateFilter)
			reports.PUT("/date-filter", h.Report.SetDateFilter)
		}
	}
}
