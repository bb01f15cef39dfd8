package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/th1vairam/mHealthTools/internal/cache"
	"github.com/th1vairam/mHealthTools/internal/config"
	"github.com/th1vairam/mHealthTools/internal/consumer"
	"github.com/th1vairam/mHealthTools/internal/database"
	"github.com/th1vairam/mHealthTools/internal/httpapi"
	"github.com/th1vairam/mHealthTools/internal/logger"
	"github.com/th1vairam/mHealthTools/internal/mqttclient"
	"github.com/th1vairam/mHealthTools/internal/redisstream"
	"github.com/th1vairam/mHealthTools/internal/repository"
	"github.com/th1vairam/mHealthTools/internal/service"
)

func main() {
	cfg := config.Load()

	zapLogger, err := logger.New(cfg.Log.Level, cfg.Log.Format, "mhealth-assay")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting mhealth-assay service",
		zap.String("http_addr", cfg.HTTP.Addr),
		zap.Bool("mqtt_enabled", cfg.MQTT.Enabled),
		zap.String("stream", cfg.Stream.Name),
	)

	// 数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	// Redis（缓存 + 录制流）
	redisClient := redisstream.NewClient(&cfg.Redis)
	if err := redisstream.Ping(context.Background(), redisClient); err != nil {
		zapLogger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer redisstream.Close(redisClient)

	// 组件装配
	repo := repository.NewFeatureRepository(db, zapLogger)
	cacheManager := cache.NewManager(redisClient, cfg.Redis.CacheTTL, zapLogger)

	var studyClient *service.StudyClient
	if cfg.Study.BaseURL != "" {
		studyClient = service.NewStudyClient(&cfg.Study, zapLogger)
	}

	assayService := service.NewAssayService(cfg, repo, cacheManager, studyClient, zapLogger)

	router := httpapi.NewRouter(zapLogger)
	router.RegisterAssayRoutes(httpapi.NewAssayHandler(assayService, zapLogger))
	srv := service.NewServer(cfg.HTTP.Addr, router, zapLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 录制流 worker
	streamConsumer := consumer.NewStreamConsumer(cfg, redisClient, assayService, zapLogger)
	go func() {
		if err := streamConsumer.Start(ctx); err != nil {
			zapLogger.Error("Stream consumer stopped", zap.Error(err))
		}
	}()

	// MQTT 入口（可选：纯 HTTP 部署不接 broker）
	var mqttConsumer *consumer.MQTTConsumer
	if cfg.MQTT.Enabled {
		mqttClient, err := mqttclient.NewClient(&cfg.MQTT, zapLogger)
		if err != nil {
			zapLogger.Fatal("Failed to connect to MQTT broker", zap.Error(err))
		}
		defer mqttClient.Disconnect()

		mqttConsumer = consumer.NewMQTTConsumer(cfg, mqttClient, redisClient, zapLogger)
		if err := mqttConsumer.Start(ctx); err != nil {
			zapLogger.Fatal("Failed to start MQTT consumer", zap.Error(err))
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		zapLogger.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		zapLogger.Error("HTTP server stopped unexpectedly", zap.Error(err))
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		zapLogger.Error("Error during HTTP shutdown", zap.Error(err))
	}
	if mqttConsumer != nil {
		if err := mqttConsumer.Stop(shutdownCtx); err != nil {
			zapLogger.Error("Error stopping MQTT consumer", zap.Error(err))
		}
	}

	zapLogger.Info("Service stopped")
}
