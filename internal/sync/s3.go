package sync

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds the settings for an S3 export destination.
type S3Config struct {
	Bucket   string
	Key      string
	Region   string
	Endpoint string // optional, for S3-compatible stores
}

// S3Destination uploads each snapshot to a fixed object key.
type S3Destination struct {
	client *s3.Client
	bucket string
	key    string
}

// NewS3Destination builds a destination from the ambient AWS credential
// chain. A non-empty Endpoint switches the client to path-style
// addressing for S3-compatible stores.
func NewS3Destination(ctx context.Context, cfg S3Config) (*S3Destination, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Destination{client: client, bucket: cfg.Bucket, key: cfg.Key}, nil
}

// Write uploads the snapshot, replacing the previous object.
func (d *S3Destination) Write(ctx context.Context, data []byte) error {
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(d.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("put object s3://%s/%s: %w", d.bucket, d.key, err)
	}
	return nil
}
