package main

import (
	"context"

	"github.com/rs/zerolog/log"

	"amenity/internal/config"
	"amenity/internal/env"
	"amenity/internal/keys"
	"amenity/internal/logging"
	"amenity/internal/models"
	"amenity/internal/service"
	"amenity/internal/storage"
	"amenity/pkg/graceful"
	"amenity/pkg/kafkaclient"
)

func main() {
	env.LoadEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init("amenity-exportwatcher", cfg.Env)

	ctx, cancel := graceful.Context(context.Background())
	defer cancel()

	broker := env.MustGetEnv("KAFKA_BROKER")
	log.Info().Str("broker", broker).Str("topic", cfg.Kafka.ExportTopic).Str("group", cfg.Kafka.GroupID).Msg("connecting to kafka")

	consumer, err := kafkaclient.NewKafkaConsumer(cfg.Kafka.ExportTopic, cfg.Kafka.GroupID, broker)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create kafka consumer")
	}

	s3, err := storage.NewS3Service(cfg.MinIO)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create MinIO client")
	}

	consumer.StartConsuming(ctx)
	iterator := service.NewIterator(consumer.NewIterator(), s3.LoadExport,
		service.WithKeyFilter[[]models.AmenityRecord](keys.IsExport))

	for obj := range iterator.Objects(ctx) {
		named := 0
		for _, r := range obj.Data {
			if r.Name != models.UnknownName {
				named++
			}
		}
		log.Info().
			Str("bucket", obj.Event.S3.Bucket.Name).
			Str("key", obj.Key).
			Int("rows", len(obj.Data)).
			Int("named", named).
			Msg("export archived")
	}

	consumer.Stop()
	log.Info().Msg("export watcher exited")
}
