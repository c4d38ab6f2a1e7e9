package export

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/MKBarhoumi/tripcraft-sub000/internal/config"
)

// Seams for tests: the AWS SDK calls are reached through these vars so
// unit tests can stub them without network access.
var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// Uploader pushes rendered documents to object storage and hands out
// short-lived download links. It speaks to AWS S3 directly or to
// MinIO/self-hosted endpoints via the endpoint override.
type Uploader struct {
	cfg config.ExportConfig
}

// NewUploader creates an uploader from the export configuration.
func NewUploader(cfg config.ExportConfig) *Uploader {
	return &Uploader{cfg: cfg}
}

// Enabled reports whether object storage is configured at all.
func (u *Uploader) Enabled() bool {
	return u.cfg.UploadsEnabled()
}

// StorageKey builds the object key for one export run. Keys are
// namespaced per user and trip so bucket policies can scope access.
func StorageKey(userID, tripID string) string {
	return fmt.Sprintf("exports/%s/%s/%s.pdf", userID, tripID, uuid.New())
}

func (u *Uploader) client(ctx context.Context) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(u.cfg.S3Region),
	}
	if u.cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(u.cfg.S3AccessKey, u.cfg.S3SecretKey, "")))
	}

	cfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load storage credentials: %w", err)
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if u.cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(u.cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Upload stores a rendered PDF under key.
func (u *Uploader) Upload(ctx context.Context, key string, data []byte) error {
	if !u.Enabled() {
		return fmt.Errorf("export storage is not configured")
	}

	client, err := u.client(ctx)
	if err != nil {
		return err
	}

	contentType := "application/pdf"
	_, err = putObject(client, ctx, &s3.PutObjectInput{
		Bucket:      &u.cfg.S3Bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload export: %w", err)
	}
	return nil
}

// PresignDownload returns a time-limited GET link for an uploaded
// export.
func (u *Uploader) PresignDownload(ctx context.Context, key string) (string, error) {
	if !u.Enabled() {
		return "", fmt.Errorf("export storage is not configured")
	}

	client, err := u.client(ctx)
	if err != nil {
		return "", err
	}

	expiry := time.Duration(u.cfg.PresignExpiryMin) * time.Minute
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}

	req, err := presignGetObject(newS3PresignClient(client), ctx, &s3.GetObjectInput{
		Bucket: &u.cfg.S3Bucket,
		Key:    &key,
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign download: %w", err)
	}

	return req.URL, nil
}
