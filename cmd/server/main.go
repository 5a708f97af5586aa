package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"amenity/internal/assets"
	"amenity/internal/cache"
	"amenity/internal/config"
	"amenity/internal/env"
	"amenity/internal/events"
	"amenity/internal/logging"
	"amenity/internal/storage"
	"amenity/internal/web"
	"amenity/internal/workflow"
	"amenity/pkg/graceful"
	"amenity/pkg/kafkaclient"
	"amenity/pkg/location"
	"amenity/pkg/overpass"
)

func main() {
	env.LoadEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init("amenity-server", cfg.Env)

	ctx, cancel := graceful.Context(context.Background())
	defer cancel()

	httpClient := &http.Client{Timeout: cfg.Search.HTTPTimeout}
	overpassOpts := []overpass.Option{
		overpass.WithHTTPClient(httpClient),
		overpass.WithEndpoint(cfg.Search.OverpassURL),
		overpass.WithUserAgent(cfg.Search.UserAgent),
		overpass.WithMaxConcurrent(cfg.Search.OverpassConcurrency),
	}
	if cfg.Redis.Enabled() {
		rc, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, overpass responses will not be cached")
		} else {
			defer rc.Close()
			overpassOpts = append(overpassOpts, overpass.WithCache(rc, cfg.Redis.TTL))
		}
	}
	places := overpass.NewClient(overpassOpts...)

	var docs workflow.DocumentSource = assets.EmbeddedDocument{Name: cfg.Search.DocumentName}
	var ctrlOpts []workflow.Option

	if cfg.MinIO.Enabled() {
		s3, err := storage.NewS3Service(cfg.MinIO)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create MinIO client")
		}
		if err := s3.EnsureBucket(ctx); err != nil {
			log.Fatal().Err(err).Str("bucket", cfg.MinIO.Bucket).Msg("failed to create export bucket")
		}
		ctrlOpts = append(ctrlOpts, workflow.WithArchive(s3))
		if cfg.MinIO.DocumentObject != "" {
			docs = s3
		}
	}

	var history web.History
	if cfg.Database.Enabled() {
		searchLog, err := storage.NewSearchLog(ctx, cfg.Database.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize search log")
		}
		defer searchLog.Close()
		ctrlOpts = append(ctrlOpts, workflow.WithRecorders(searchLog))
		history = searchLog
	}

	if cfg.Kafka.Enabled() {
		producer := kafkaclient.NewKafkaProducer(cfg.Kafka.SearchTopic, cfg.Kafka.Broker)
		defer func() {
			if err := producer.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close kafka producer")
			}
		}()
		ctrlOpts = append(ctrlOpts, workflow.WithRecorders(events.NewSearchPublisher(producer)))
		log.Info().Str("broker", cfg.Kafka.Broker).Str("topic", cfg.Kafka.SearchTopic).Msg("publishing search events")
	}

	ctrl := workflow.NewController(places, docs, workflow.Options{
		DefaultRadiusMeters:  cfg.Search.DefaultRadiusMeters,
		AccuracyCircle:       cfg.Search.AccuracyCircle,
		AccuracyRadiusMeters: cfg.Search.AccuracyRadiusMeters,
	}, ctrlOpts...)

	sessions := workflow.NewSessionStore(cfg.Sessions.TTL)
	go sessions.Run(ctx, cfg.Sessions.SweepPeriod)

	tmpl, err := assets.Templates()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse templates")
	}

	handler := web.NewHandler(web.Config{
		Controller:    ctrl,
		Sessions:      sessions,
		Templates:     tmpl,
		Static:        assets.Static(),
		Geocoder:      location.NewNominatim(cfg.Search.NominatimURL, cfg.Search.UserAgent, httpClient),
		History:       history,
		DefaultRadius: cfg.Search.DefaultRadiusMeters,
		SecureCookie:  cfg.Env == "production",
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Search.HTTPTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("starting http server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server exited")
}
