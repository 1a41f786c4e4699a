package main

import (
	"context"

	"giftcard-core/internal/adapter/api"
	"giftcard-core/internal/adapter/store"
	"giftcard-core/internal/bootstrap"
	"giftcard-core/internal/config"
	"giftcard-core/internal/domain/repository"
	"giftcard-core/internal/logging"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logging.Init(cfg.LogLevel, cfg.LogFormat)
	ctx := context.Background()

	pipeline, err := bootstrap.NewPipeline(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build pipeline")
	}

	// Redis for per-client generation quota
	var limiter repository.UsageLimiter
	if cfg.RedisAddr != "" && cfg.DailyGenerationLimit > 0 {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		limiter = store.NewRedisLimiter(rdb, cfg.DailyGenerationLimit)
		log.Info().Str("redis", cfg.RedisAddr).Int("daily_limit", cfg.DailyGenerationLimit).Msg("generation quota enabled")
	}

	app := fiber.New(fiber.Config{
		AppName: "Gift Card Studio",
	})
	handler := api.NewCardHandler(pipeline, limiter)
	api.SetupRouter(app, handler, cfg.CORSOrigins)

	log.Info().
		Str("port", cfg.Port).
		Str("text_backend", cfg.Text.Backend).
		Str("model", cfg.Text.Model).
		Str("image_generator", string(cfg.Image.Kind)).
		Msg("gift card service starting")
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
