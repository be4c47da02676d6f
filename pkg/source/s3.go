package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config holds configuration for S3Fetcher.
type S3Config struct {
	Region   string
	Endpoint string // Optional custom endpoint (MinIO, LocalStack)
}

// S3Fetcher reads s3://bucket/key documents.
type S3Fetcher struct {
	client *s3.Client
}

func NewS3Fetcher(ctx context.Context, cfg S3Config) (*S3Fetcher, error) {
	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Fetcher{client: client}, nil
}

func (s *S3Fetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, key, err := bucketKey(uri)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
		}
		return nil, fmt.Errorf("s3 get failed for %s: %w", uri, err)
	}
	defer func() { _ = out.Body.Close() }()
	return readLimited(out.Body)
}
