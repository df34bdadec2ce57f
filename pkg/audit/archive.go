package audit

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/platinummonkey/iam/pkg/observability"
)

// S3Config configures the rotated-file archive
type S3Config struct {
	Bucket       string
	Prefix       string
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// ObjectPutter is the subset of the S3 client the archiver needs
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewS3Client creates an S3 client from cfg
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		// Static credentials (MinIO or explicit keys)
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// S3Archiver uploads rotated audit files in the background
type S3Archiver struct {
	client ObjectPutter
	bucket string
	prefix string
	logger *observability.Logger

	queue chan string
	wg    sync.WaitGroup
	once  sync.Once
}

// NewS3Archiver creates an archiver. Call Start before Enqueue.
func NewS3Archiver(client ObjectPutter, cfg S3Config, logger *observability.Logger) *S3Archiver {
	return &S3Archiver{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		logger: logger.WithField("component", "audit_archiver"),
		queue:  make(chan string, 64),
	}
}

// Start runs the upload worker until Close
func (a *S3Archiver) Start(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer observability.RecoverPanic(a.logger, "audit archiver")

		for file := range a.queue {
			if err := a.Upload(ctx, file); err != nil {
				a.logger.WithError(err).WithField("file", file).Error("Audit archive upload failed")
			}
		}
	}()
}

// Enqueue schedules file for upload without blocking. It has the
// RotatingFileConfig.OnRotate signature.
func (a *S3Archiver) Enqueue(file string) {
	select {
	case a.queue <- file:
	default:
		a.logger.WithField("file", file).Warn("Audit archive queue full, file left on disk")
	}
}

// Upload copies one file to the bucket under prefix/<basename>
func (a *S3Archiver) Upload(ctx context.Context, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", file, err)
	}
	defer f.Close()

	key := path.Join(a.prefix, filepath.Base(file))
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("text/plain"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to s3://%s/%s: %w", file, a.bucket, key, err)
	}

	a.logger.WithField("key", key).Info("Audit log archived")
	return nil
}

// Close drains the queue and waits for the worker
func (a *S3Archiver) Close(ctx context.Context) error {
	a.once.Do(func() { close(a.queue) })

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
