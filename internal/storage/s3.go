package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	appconfig "interaction-backend/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"
)

const uploadURLExpiry = 5 * time.Minute

// PresignedUpload is a one-shot upload target for a client
type PresignedUpload struct {
	UploadURL string
	ObjectURL string
	ExpiresIn int
}

// S3Store stores photos and message attachments in a single bucket
type S3Store struct {
	client *s3.Client
	bucket string
	public string
}

// NewS3Store creates an S3 store from the AWS section of the config.
// Static keys and a custom endpoint are optional; the default chain is used otherwise.
func NewS3Store(ctx context.Context, cfg appconfig.AWSConfig) (*S3Store, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		o.EndpointOptions.DisableHTTPS = cfg.DisableSSL
	})

	public := fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.S3Bucket, cfg.Region)
	if cfg.Endpoint != "" {
		public = fmt.Sprintf("%s/%s", cfg.Endpoint, cfg.S3Bucket)
	}

	return &S3Store{
		client: client,
		bucket: cfg.S3Bucket,
		public: public,
	}, nil
}

// PresignUpload generates a pre-signed PUT URL for the given key
func (s *S3Store) PresignUpload(ctx context.Context, key, contentType string) (*PresignedUpload, error) {
	presignClient := s3.NewPresignClient(s.client)
	request, err := presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = uploadURLExpiry
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate pre-signed URL: %w", err)
	}

	return &PresignedUpload{
		UploadURL: request.URL,
		ObjectURL: fmt.Sprintf("%s/%s", s.public, key),
		ExpiresIn: int(uploadURLExpiry.Seconds()),
	}, nil
}

// Delete removes stored objects. Missing objects are not an error.
func (s *S3Store) Delete(ctx context.Context, keys ...string) error {
	var errs []error
	for _, key := range keys {
		if key == "" {
			continue
		}
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err == nil {
			continue
		}
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			log.Debug().Str("key", key).Msg("Object already gone")
			continue
		}
		errs = append(errs, fmt.Errorf("failed to delete %s: %w", key, err))
	}
	return errors.Join(errs...)
}
