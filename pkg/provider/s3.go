package provider

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/marmos91/assetflow/internal/logger"
	"github.com/marmos91/assetflow/internal/telemetry"
	"github.com/marmos91/assetflow/pkg/metrics"
)

// S3Config configures the S3 provider. Endpoint is optional; when set
// it points the client at an S3-compatible service such as MinIO.
type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region" validate:"required"`
	AccessKeyID     string `mapstructure:"access_key_id" validate:"required"`
	SecretAccessKey string `mapstructure:"secret_access_key" validate:"required"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`

	IncomingBucket string `mapstructure:"incoming_bucket" validate:"required"`
	PublicBucket   string `mapstructure:"public_bucket" validate:"required"`
	ProductBucket  string `mapstructure:"product_bucket" validate:"required"`
}

// ApplyDefaults fills zero values with production defaults.
func (c *S3Config) ApplyDefaults() {
	if c.Region == "" {
		c.Region = "us-east-1"
	}
	if c.IncomingBucket == "" {
		c.IncomingBucket = "incoming-files"
	}
	if c.PublicBucket == "" {
		c.PublicBucket = "public-files"
	}
	if c.ProductBucket == "" {
		c.ProductBucket = "product-files"
	}
	if c.Endpoint != "" {
		// Custom endpoints are MinIO-style deployments and need path
		// addressing; virtual-host addressing assumes AWS DNS.
		c.ForcePathStyle = true
	}
}

// S3 moves blobs between S3-compatible storage and local temp files.
type S3 struct {
	client *s3.Client
	cfg    S3Config
}

// NewS3Client creates an S3 client from configuration parameters.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"", // session token (empty for static credentials)
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = &cfg.Endpoint
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return client, nil
}

// NewS3 builds the provider and verifies the incoming bucket is
// reachable so misconfiguration fails at startup, not mid-job.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	cfg.ApplyDefaults()

	client, err := NewS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}

	p := &S3{client: client, cfg: cfg}
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.IncomingBucket),
	}); err != nil {
		return nil, fmt.Errorf("cannot access bucket %q: %w", cfg.IncomingBucket, err)
	}
	return p, nil
}

func (p *S3) GetFile(ctx context.Context, key string, fn func(path string) error) error {
	path, err := p.download(ctx, key)
	if err != nil {
		return err
	}
	defer os.Remove(path)
	return fn(path)
}

func (p *S3) GetFileTemp(ctx context.Context, key string) (string, error) {
	return p.download(ctx, key)
}

func (p *S3) StoreImage(ctx context.Context, srcPath, destKey string) error {
	return p.upload(ctx, p.cfg.PublicBucket, srcPath, destKey)
}

func (p *S3) StoreProductFile(ctx context.Context, srcPath, destKey string) error {
	return p.upload(ctx, p.cfg.ProductBucket, srcPath, destKey)
}

func (p *S3) download(ctx context.Context, key string) (string, error) {
	start := time.Now()
	ctx, span := telemetry.StartStorageSpan(ctx, "download", p.cfg.IncomingBucket, key,
		telemetry.Region(p.cfg.Region),
	)
	defer span.End()

	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.cfg.IncomingBucket),
		Key:    aws.String(key),
	})
	if err != nil {
		metrics.StorageOpError("download")
		telemetry.RecordError(ctx, err)
		return "", fmt.Errorf("download %q from %q: %w", key, p.cfg.IncomingBucket, err)
	}
	defer out.Body.Close()

	tmp, err := os.CreateTemp("", "asset-*"+filepath.Ext(key))
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	n, err := io.Copy(tmp, out.Body)
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		metrics.StorageOpError("download")
		telemetry.RecordError(ctx, err)
		return "", fmt.Errorf("copy %q to temp file: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}

	span.SetAttributes(telemetry.FileSize(n))
	metrics.StorageOpDuration("download", time.Since(start))
	logger.Debug("file downloaded",
		logger.KeyBucket, p.cfg.IncomingBucket,
		logger.KeyKey, key,
		logger.KeySize, n,
		logger.KeyPath, tmp.Name(),
	)
	return tmp.Name(), nil
}

func (p *S3) upload(ctx context.Context, bucket, srcPath, destKey string) error {
	start := time.Now()
	ctx, span := telemetry.StartStorageSpan(ctx, "upload", bucket, destKey,
		telemetry.Region(p.cfg.Region),
	)
	defer span.End()

	f, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open upload source %q: %w", srcPath, err)
	}
	defer f.Close()

	contentType := mime.TypeByExtension(filepath.Ext(destKey))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	span.SetAttributes(telemetry.MimeType(contentType))

	if _, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(destKey),
		Body:        f,
		ContentType: aws.String(contentType),
	}); err != nil {
		metrics.StorageOpError("upload")
		telemetry.RecordError(ctx, err)
		return fmt.Errorf("upload %q to %q: %w", destKey, bucket, err)
	}

	metrics.StorageOpDuration("upload", time.Since(start))
	logger.Debug("file uploaded",
		logger.KeyBucket, bucket,
		logger.KeyKey, destKey,
	)
	return nil
}
