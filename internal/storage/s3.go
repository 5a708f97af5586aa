package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"

	"amenity/internal/config"
	"amenity/internal/export"
	"amenity/internal/models"
	"amenity/internal/workflow"
)

// S3Service is a client for S3-compatible storage. It archives CSV exports
// and can serve the downloadable document from the same bucket.
type S3Service struct {
	client         *minio.Client
	bucket         string
	documentObject string
}

var (
	_ workflow.Archive        = (*S3Service)(nil)
	_ workflow.DocumentSource = (*S3Service)(nil)
)

// NewS3Service initializes and returns a new S3 storage service.
func NewS3Service(cfg config.MinIOConfig) (*S3Service, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("missing one or more required settings: MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY")
	}

	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	log.Info().Str("endpoint", cfg.Endpoint).Str("bucket", cfg.Bucket).Msg("connected to MinIO")
	return &S3Service{client: minioClient, bucket: cfg.Bucket, documentObject: cfg.DocumentObject}, nil
}

func (s *S3Service) CreateBucket(ctx context.Context, bucketName string, location string) (bool, error) {
	exists, err := s.client.BucketExists(ctx, bucketName)
	if err != nil {
		return false, fmt.Errorf("error checking bucket existence: %w", err)
	}
	if !exists {
		err = s.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: location})
		if err != nil {
			return false, err
		}
	}
	return true, nil
}

// EnsureBucket creates the exports bucket if needed.
func (s *S3Service) EnsureBucket(ctx context.Context) error {
	_, err := s.CreateBucket(ctx, s.bucket, "")
	return err
}

// PutExport stores an export under key. It will not overwrite an object
// that already exists.
func (s *S3Service) PutExport(ctx context.Context, key, contentType string, data []byte) error {
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		log.Debug().Str("key", key).Msg("export already archived, skipping write")
		return nil
	}
	if minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return fmt.Errorf("failed to check for existing object: %w", err)
	}

	_, err = s.client.PutObject(
		ctx,
		s.bucket,
		key,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return fmt.Errorf("failed to store object in S3: %w", err)
	}

	log.Info().Str("bucket", s.bucket).Str("key", key).Int("bytes", len(data)).Msg("archived export")
	return nil
}

// GetObject reads a whole object.
func (s *S3Service) GetObject(ctx context.Context, bucketName, objectKey string) ([]byte, error) {
	object, err := s.client.GetObject(ctx, bucketName, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s/%s: %w", bucketName, objectKey, err)
	}
	return data, nil
}

// LoadExport reads an archived CSV export back into records.
func (s *S3Service) LoadExport(ctx context.Context, bucketName, objectKey string) ([]models.AmenityRecord, error) {
	object, err := s.client.GetObject(ctx, bucketName, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}
	defer object.Close()

	records, err := export.DecodeCSV(object)
	if err != nil {
		return nil, fmt.Errorf("failed to decode export %s/%s: %w", bucketName, objectKey, err)
	}
	return records, nil
}

// Document serves the configured document object as the downloadable PDF.
func (s *S3Service) Document(ctx context.Context) (workflow.File, error) {
	if s.documentObject == "" {
		return workflow.File{}, fmt.Errorf("no document object configured")
	}
	data, err := s.GetObject(ctx, s.bucket, s.documentObject)
	if err != nil {
		return workflow.File{}, err
	}
	name := s.documentObject
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return workflow.File{Name: name, ContentType: "application/pdf", Data: data}, nil
}
