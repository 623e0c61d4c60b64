// Package archive stores the raw files uploaded for bulk import in
// S3-compatible object storage.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/septivank/meter-field-ops/internal/config"
	"go.uber.org/zap"
)

// putter is the subset of *s3.Client used for uploads
type putter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store uploads import files. A Store without a client skips every upload.
type Store struct {
	client putter
	bucket string
	now    func() time.Time
	logger *zap.Logger
}

// NewStore builds an S3 client from cfg. An unconfigured archive yields a
// Store that skips uploads.
func NewStore(ctx context.Context, cfg config.ArchiveConfig, logger *zap.Logger) (*Store, error) {
	s := &Store{bucket: cfg.Bucket, now: time.Now, logger: logger}
	if !cfg.Configured() {
		logger.Info("archive storage not configured, uploads will not be archived")
		return s, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to configure archive client: %w", err)
	}

	s.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return s, nil
}

// Key returns the object key used for an upload of table
func (s *Store) Key(table, jobID, filename string) string {
	return fmt.Sprintf("imports/%s/%s_%s_%s", table, s.now().Format("20060102_150405"), jobID, path.Base(filename))
}

// Put uploads data and returns its object key. It returns an empty key when
// archiving is disabled.
func (s *Store) Put(ctx context.Context, table, jobID, filename string, data []byte) (string, error) {
	if s == nil || s.client == nil {
		return "", nil
	}

	key := s.Key(table, jobID, filename)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive %s upload: %w", table, err)
	}

	s.logger.Info("import file archived",
		zap.String("bucket", s.bucket),
		zap.String("key", key),
		zap.Int("bytes", len(data)),
	)
	return key, nil
}
