package r2

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "github.com/HaiFongPan/dermascan-cli/internal/config"
)

// Client wraps the S3 client used to keep uploaded images in an R2 bucket
type Client struct {
	s3Client *s3.Client
	config   *appconfig.R2Config
}

// NewClient creates a new R2 client from configuration
func NewClient(ctx context.Context, cfg *appconfig.R2Config) (*Client, error) {
	if err := appconfig.ValidateR2Config(cfg); err != nil {
		return nil, err
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.AccessKeySecret,
			"",
		)),
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(Endpoint(cfg))
	})

	return &Client{
		s3Client: s3Client,
		config:   cfg,
	}, nil
}

// Endpoint returns the S3 API endpoint for the account. An explicit
// endpoint other than "auto" wins.
func Endpoint(cfg *appconfig.R2Config) string {
	if cfg.Endpoint != "" && cfg.Endpoint != "auto" {
		return cfg.Endpoint
	}
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
}

// GetS3Client returns the underlying S3 client
func (c *Client) GetS3Client() *s3.Client {
	return c.s3Client
}

// GetBucketName returns the configured bucket name
func (c *Client) GetBucketName() string {
	return c.config.BucketName
}

// GetPrefix returns the key prefix uploads are stored under
func (c *Client) GetPrefix() string {
	return c.config.Prefix
}
