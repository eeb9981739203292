// Package s3 copies backup artifacts to S3-compatible object storage.
package s3

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
	"github.com/supporttools/GoSQLRestore/pkg/config"
	"github.com/supporttools/GoSQLRestore/pkg/metrics"
)

// uploadTimeout bounds a single PutObject call
const uploadTimeout = 5 * time.Minute

// putObjectAPI is the subset of the S3 client used here
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Client uploads artifacts to a bucket
type Client struct {
	api    putObjectAPI
	cfg    config.S3Config
	logger *logrus.Logger
}

// NewClient creates a new S3 client from configuration
func NewClient(ctx context.Context, cfg config.S3Config, logger *logrus.Logger) (*Client, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("S3 storage is not enabled in configuration")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	sdkOptions := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey, cfg.SecretKey, "",
		)),
		awsconfig.WithRegion(cfg.Region),
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, sdkOptions...)
	if err != nil {
		return nil, fmt.Errorf("AWS SDK config initialization error: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return newClientWithAPI(s3Client, cfg, logger), nil
}

func newClientWithAPI(api putObjectAPI, cfg config.S3Config, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{api: api, cfg: cfg, logger: logger}
}

// ObjectKey returns "<prefix>/<database>/<filename>"
func ObjectKey(prefix, database, filename string) string {
	prefix = strings.Trim(prefix, "/")
	key := database + "/" + filename
	if prefix != "" {
		key = prefix + "/" + key
	}
	return key
}

// Upload copies the artifact at path to the bucket and returns its key
func (c *Client) Upload(ctx context.Context, path, database string) (string, error) {
	startTime := time.Now()
	objectKey := ObjectKey(c.cfg.Prefix, database, filepath.Base(path))

	file, err := os.Open(path)
	if err != nil {
		metrics.S3UploadCount.WithLabelValues(database, metrics.StatusError).Inc()
		return "", fmt.Errorf("failed to open backup file for S3 upload: %w", err)
	}
	defer file.Close()

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	_, err = c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(objectKey),
		Body:   file,
	})
	if err != nil {
		metrics.S3UploadCount.WithLabelValues(database, metrics.StatusError).Inc()

		entry := c.logger.WithError(err).WithField("key", objectKey)
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			entry = entry.WithField("url", urlErr.URL)
		}
		entry.Debug("S3 upload failed")

		return "", fmt.Errorf("failed to upload backup to S3: %w", err)
	}

	metrics.S3UploadDuration.WithLabelValues(database).Observe(time.Since(startTime).Seconds())
	metrics.S3UploadCount.WithLabelValues(database, metrics.StatusSuccess).Inc()
	if info, err := file.Stat(); err == nil {
		metrics.BackupSize.WithLabelValues(database, "s3").Set(float64(info.Size()))
	}

	c.logger.WithFields(logrus.Fields{
		"bucket": c.cfg.Bucket,
		"key":    objectKey,
	}).Info("Uploaded backup to S3")
	return objectKey, nil
}
