package minio

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"chatviewer/internal/app/transcript"
	"chatviewer/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// MinioProvider stores the transcript of a channel as a single JSON object.
// It implements transcript.Persister.
type MinioProvider struct {
	client *minio.Client
	bucket string
	object string
	logger *zap.Logger
}

func ObjectName(channelID string) string {
	return "transcripts/" + channelID + ".json"
}

func NewMinioProvider(cfg *config.Config, logger *zap.Logger) (*MinioProvider, error) {
	minioURL := cfg.MinioURL
	if !strings.HasPrefix(minioURL, "http://") && !strings.HasPrefix(minioURL, "https://") {
		minioURL = "https://" + minioURL
	}

	u, err := url.Parse(minioURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse minio URL: %w", err)
	}
	secure := u.Scheme == "https"

	logger.Info("Initializing MinIO", zap.String("endpoint", u.Host), zap.Bool("secure", secure))

	tr := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: false},
	}

	client, err := minio.New(u.Host, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.MinioUser, cfg.MinioPassword, ""),
		Secure:    secure,
		Transport: tr,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	provider := &MinioProvider{
		client: client,
		bucket: cfg.MinioBucket,
		object: ObjectName(cfg.ChannelID),
		logger: logger,
	}

	if err := provider.ensureBucket(context.Background()); err != nil {
		return nil, err
	}

	return provider, nil
}

func (m *MinioProvider) ensureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		m.logger.Info("Created MinIO bucket", zap.String("bucket", m.bucket))
	}
	return nil
}

func (m *MinioProvider) Save(ctx context.Context, records []transcript.MessageRecord) error {
	data, err := transcript.EncodeDocument(records)
	if err != nil {
		return fmt.Errorf("failed to encode transcript: %w", err)
	}

	_, err = m.client.PutObject(ctx, m.bucket, m.object, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to upload transcript: %w", err)
	}

	m.logger.Debug("Transcript uploaded",
		zap.String("object_name", m.object),
		zap.Int("records", len(records)),
		zap.Int("bytes", len(data)),
	)
	return nil
}

// Load returns no records when the snapshot object does not exist yet.
func (m *MinioProvider) Load(ctx context.Context) ([]transcript.MessageRecord, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, m.object, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get transcript object: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read transcript object: %w", err)
	}
	return transcript.DecodeDocument(data)
}

func (m *MinioProvider) Ping(ctx context.Context) error {
	_, err := m.client.BucketExists(ctx, m.bucket)
	return err
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchBucket"
}
