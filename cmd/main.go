package main

import (
	"log"

	"backend/config"
	"backend/routes"
	"backend/services"
	"backend/utils"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	zl, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zl.Sync()
	logger := zl.Sugar()

	config.InitDB(cfg)
	utils.InitS3() // no-op unless S3_BUCKET is set

	hub := services.NewRealtimeHub()
	logSvc := services.NewLogService(config.DB)
	conv := services.NewConversationService(services.NewGeminiService(), logSvc, hub, logger)

	r := routes.SetupRouter(conv, logSvc, hub)
	logger.Infof("protein tracker listening on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatalf("server error: %v", err)
	}
}
