package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"facestudio/internal/adapter/repo"
	"facestudio/internal/http/handlers"
	httpapi "facestudio/internal/http/httpapi"
	"facestudio/internal/infra"
	"facestudio/internal/infra/geoip"
	"facestudio/internal/infra/settings"
	"facestudio/internal/middleware"
	"facestudio/internal/photo"
	"facestudio/internal/providers/coze"
	"facestudio/internal/templates"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()
	sqlRunner := infra.NewSQLRunner(dbpool, logger)

	settingsStore := settings.NewStore(sqlRunner)
	cozeConfig := coze.NewConfigCache(coze.ConfigCacheOptions{
		Store:  settingsStore,
		TTL:    cfg.CozeConfigTTL,
		Logger: &logger,
	})
	cozeLogger := logger.With().Str("component", "coze").Logger()
	cozeClient, err := coze.NewClient(coze.Options{
		BaseURL: cfg.CozeBaseURL,
		Config:  cozeConfig,
		Logger:  &cozeLogger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build coze client")
	}

	var notifier photo.Notifier = photo.LogNotifier{Logger: &logger}
	redisClient, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, photo events are logged only")
	} else if redisClient != nil {
		defer redisClient.Close()
		notifier = photo.NewRedisNotifier(redisClient)
	}

	templateRepo := repo.NewTemplateRepository(sqlRunner)
	queueLogger := logger.With().Str("component", "photo").Logger()
	queue := photo.NewQueue(photo.QueueOptions{
		Templates: templateRepo,
		Matcher:   templates.NewMatcher(templateRepo, &queueLogger),
		Swapper:   cozeClient,
		Analyzer:  cozeClient,
		Notifier:  notifier,
		AsyncSwap: cfg.CozeSwapAsync,
		Logger:    &queueLogger,
	})

	var countryLookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	} else if resolver != nil {
		defer resolver.Close()
		countryLookup = resolver.CountryCode
	}

	app := handlers.NewApp(handlers.AppOptions{
		Logger:     &logger,
		Analyzer:   cozeClient,
		Photos:     queue,
		Settings:   settingsStore,
		CozeConfig: cozeConfig,
		DB:         dbpool,
	})
	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		Logger:          logger,
		JWTSecret:       cfg.JWTSecret,
		CORSOrigins:     cfg.CORSOrigins,
		DefaultLocale:   cfg.DefaultLocale,
		CountryLookup:   countryLookup,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})

	server := infra.NewHTTPServer(cfg, router, logger)

	go func() {
		logger.Info().Msgf("API listening on %s", server.Addr())
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if err := queue.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("photo queue did not drain")
	}
	logger.Info().Msg("server stopped")
}
