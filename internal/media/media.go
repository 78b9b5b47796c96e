// Package media resolves playable URLs for audio tracks.
package media

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ladyboss/academy/internal/model"
)

var ErrNoMedia = errors.New("track has no media key")

// DefaultURLTTL is how long a presigned stream URL stays valid.
const DefaultURLTTL = 15 * time.Minute

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	TTL       time.Duration
}

func (c S3Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// presigner is satisfied by *s3.PresignClient.
type presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3URLs presigns GET URLs for track media keys.
type S3URLs struct {
	client presigner
	bucket string
	ttl    time.Duration
}

func NewS3URLs(cfg S3Config) (*S3URLs, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("media storage not configured")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := s3.Options{
		Region:       region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultURLTTL
	}
	return &S3URLs{
		client: s3.NewPresignClient(s3.New(opts)),
		bucket: cfg.Bucket,
		ttl:    ttl,
	}, nil
}

// StreamURL returns a presigned URL for the track's media.
func (u *S3URLs) StreamURL(ctx context.Context, track model.ContentItem) (string, error) {
	if track.MediaKey == "" {
		return "", ErrNoMedia
	}
	req, err := u.client.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(track.MediaKey),
	}, s3.WithPresignExpires(u.ttl))
	if err != nil {
		return "", fmt.Errorf("presign media url: %w", err)
	}
	return req.URL, nil
}

// StaticURLs joins media keys onto a public base URL. It is used when no
// bucket credentials are configured.
type StaticURLs struct {
	BaseURL string
}

func (s StaticURLs) StreamURL(_ context.Context, track model.ContentItem) (string, error) {
	if track.MediaKey == "" {
		return "", ErrNoMedia
	}
	if strings.HasPrefix(track.MediaKey, "http://") || strings.HasPrefix(track.MediaKey, "https://") {
		return track.MediaKey, nil
	}
	u, err := url.JoinPath(s.BaseURL, track.MediaKey)
	if err != nil {
		return "", fmt.Errorf("join media url: %w", err)
	}
	return u, nil
}
