// Package blob stores incident media in an S3-compatible bucket. Uploads go
// directly from the client to the bucket via presigned PUT URLs; the API never
// proxies file bytes.
package blob

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/marcusj/safetrack/internal/config"
	"github.com/marcusj/safetrack/internal/platform"
)

// Limits enforced when issuing presigned uploads.
const (
	MaxImageBytes = 10 << 20
	MaxAudioBytes = 50 << 20
)

// UploadTicket is a presigned upload grant. The client PUTs the file to
// UploadURL and then references FinalURL when creating the incident.
type UploadTicket struct {
	UploadURL string    `json:"upload_url"`
	FinalURL  string    `json:"final_url"`
	Key       string    `json:"key"`
	MaxBytes  int64     `json:"max_bytes"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store wraps the S3 API for incident media.
type Store struct {
	logger        zerolog.Logger
	client        *s3.Client
	presign       *s3.PresignClient
	bucket        string
	presignExpiry time.Duration
	publicBaseURL string
}

// NewStore creates a Store from config. Works against AWS S3 or any
// path-style compatible endpoint such as MinIO or Ceph RGW.
func NewStore(logger zerolog.Logger, cfg *config.Config) *Store {
	opts := s3.Options{
		Region:       cfg.S3Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.S3Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.S3Endpoint)
	}
	client := s3.New(opts)

	return &Store{
		logger:        logger.With().Str("component", "blob-store").Logger(),
		client:        client,
		presign:       s3.NewPresignClient(client),
		bucket:        cfg.S3Bucket,
		presignExpiry: cfg.S3PresignExpiry,
		publicBaseURL: strings.TrimSuffix(cfg.S3PublicBaseURL, "/"),
	}
}

// PresignedUploadURL issues an upload ticket for a new object. kind is
// "image" or "audio" and selects the key prefix and size limit; ext is the
// file extension without the dot.
func (s *Store) PresignedUploadURL(ctx context.Context, kind, ext, ownerID string) (*UploadTicket, error) {
	var maxBytes int64
	switch kind {
	case "image":
		maxBytes = MaxImageBytes
	case "audio":
		maxBytes = MaxAudioBytes
	default:
		return nil, fmt.Errorf("presign upload: unsupported kind %q", kind)
	}

	key := fmt.Sprintf("%ss/%s/%s.%s", kind, ownerID, platform.NewID(), ext)

	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.presignExpiry))
	if err != nil {
		return nil, fmt.Errorf("presign upload for %s: %w", key, err)
	}

	s.logger.Debug().Str("key", key).Str("kind", kind).Msg("issued presigned upload")

	return &UploadTicket{
		UploadURL: req.URL,
		FinalURL:  s.objectURL(key),
		Key:       key,
		MaxBytes:  maxBytes,
		ExpiresAt: time.Now().Add(s.presignExpiry),
	}, nil
}

// PresignedDownloadURL issues a time-limited GET URL for a stored object.
func (s *Store) PresignedDownloadURL(ctx context.Context, objectURL string) (string, error) {
	key, err := s.keyFromURL(objectURL)
	if err != nil {
		return "", err
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.presignExpiry))
	if err != nil {
		return "", fmt.Errorf("presign download for %s: %w", key, err)
	}
	return req.URL, nil
}

// Exists reports whether the object behind a stored URL is present in the
// bucket. Used to verify client uploads before attaching URLs to incidents.
func (s *Store) Exists(ctx context.Context, objectURL string) (bool, error) {
	key, err := s.keyFromURL(objectURL)
	if err != nil {
		return false, err
	}
	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "404") {
			return false, nil
		}
		return false, fmt.Errorf("head object %s: %w", key, err)
	}
	return true, nil
}

// DownloadBytes fetches an object's content. Used by the enrichment pipeline
// when the vision backend needs raw image bytes.
func (s *Store) DownloadBytes(ctx context.Context, objectURL string) ([]byte, error) {
	key, err := s.keyFromURL(objectURL)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return data, nil
}

// objectURL builds the stable URL stored on incidents for a bucket key.
func (s *Store) objectURL(key string) string {
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + key
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key)
}

// keyFromURL recovers the bucket key from a stored object URL. Accepts both
// the public base URL form and the s3:// form.
func (s *Store) keyFromURL(objectURL string) (string, error) {
	if s.publicBaseURL != "" && strings.HasPrefix(objectURL, s.publicBaseURL+"/") {
		return strings.TrimPrefix(objectURL, s.publicBaseURL+"/"), nil
	}
	u, err := url.Parse(objectURL)
	if err != nil {
		return "", fmt.Errorf("parse object URL %q: %w", objectURL, err)
	}
	if u.Scheme == "s3" {
		if u.Host != s.bucket {
			return "", fmt.Errorf("object URL %q is not in bucket %s", objectURL, s.bucket)
		}
		return strings.TrimPrefix(u.Path, "/"), nil
	}
	// Path-style endpoint URL: /<bucket>/<key>.
	path := strings.TrimPrefix(u.Path, "/")
	if rest, ok := strings.CutPrefix(path, s.bucket+"/"); ok {
		return rest, nil
	}
	return "", fmt.Errorf("cannot derive bucket key from URL %q", objectURL)
}
