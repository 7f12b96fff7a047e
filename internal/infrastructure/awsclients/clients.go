// Package awsclients builds the AWS service clients shared by every Lambda
// entry point. Clients are created once per container and reused on warm starts.
package awsclients

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"compact-connect-backend/internal/config"
)

const loadTimeout = 30 * time.Second

// LoadConfig resolves credentials and region for the configured environment.
func LoadConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	loadCtx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()

	opts := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(cfg.Region),
	}
	if cfg.MaxRetries > 0 {
		// attempts include the first try
		opts = append(opts, awsConfig.WithRetryMaxAttempts(cfg.MaxRetries+1))
	}

	awsCfg, err := awsConfig.LoadDefaultConfig(loadCtx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return awsCfg, nil
}

// NewHTTPClient returns the keep-alive client shared by all service clients.
func NewHTTPClient(cfg *config.Config) *http.Client {
	timeout := 15 * time.Second
	if cfg.Environment == config.Development {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

func NewDynamoDB(awsCfg aws.Config, httpClient *http.Client) *dynamodb.Client {
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		o.HTTPClient = httpClient
		o.RetryMode = aws.RetryModeAdaptive
	})
}

func NewEventBridge(awsCfg aws.Config, httpClient *http.Client) *eventbridge.Client {
	return eventbridge.NewFromConfig(awsCfg, func(o *eventbridge.Options) {
		o.HTTPClient = httpClient
	})
}

func NewSES(awsCfg aws.Config, httpClient *http.Client) *sesv2.Client {
	return sesv2.NewFromConfig(awsCfg, func(o *sesv2.Options) {
		o.HTTPClient = httpClient
	})
}

// NewS3Presign returns a presign client. Presigning is local and never
// calls S3.
func NewS3Presign(awsCfg aws.Config, httpClient *http.Client) *s3.PresignClient {
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.HTTPClient = httpClient
	})
	return s3.NewPresignClient(client)
}
