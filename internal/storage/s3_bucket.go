package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/cors"
	"github.com/minio/minio-go/v7/pkg/credentials"

	perrors "git.home.luguber.info/inful/packler/internal/errors"
)

// S3Config holds connection settings for an S3-compatible endpoint.
type S3Config struct {
	Endpoint  string // host[:port] or URL; an https:// scheme implies TLS
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    *bool // overrides the scheme when set
}

// S3Bucket uploads objects to an S3-compatible bucket.
type S3Bucket struct {
	client     *minio.Client
	bucketName string
}

// NewS3Bucket creates a client for the configured bucket. Credentials are
// optional; without them requests are sent anonymously.
func NewS3Bucket(cfg S3Config) (*S3Bucket, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, perrors.BucketNotConfigured()
	}
	host, secure, err := parseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	if cfg.UseSSL != nil {
		secure = *cfg.UseSSL
	}

	var creds *credentials.Credentials
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access != "" && secret != "" {
		creds = credentials.NewStaticV4(access, secret, "")
	} else {
		creds = credentials.NewStatic("", "", "", credentials.SignatureAnonymous)
	}

	client, err := minio.New(host, &minio.Options{
		Creds:  creds,
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, perrors.Wrap(err, perrors.CategoryConfig, perrors.SeverityFatal, "init s3 client").
			WithContext("endpoint", cfg.Endpoint)
	}

	return &S3Bucket{client: client, bucketName: bucket}, nil
}

func (s *S3Bucket) Name() string { return s.bucketName }

// PutObject uploads r as a public-read object.
func (s *S3Bucket) PutObject(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucketName, key, r, size, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{"x-amz-acl": "public-read"},
	})
	if err != nil {
		if !retryableUpload(err) {
			return perrors.UploadRejected(key, err)
		}
		return perrors.UploadFailed(key, err)
	}
	return nil
}

// retryableUpload reports whether a PutObject failure may succeed on retry:
// server errors, throttling, and failures without an S3 response.
func retryableUpload(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	status := minio.ToErrorResponse(err).StatusCode
	switch {
	case status == 0:
		return true
	case status == http.StatusTooManyRequests, status >= http.StatusInternalServerError:
		return true
	}
	return false
}

// SetCORS replaces the bucket CORS configuration.
func (s *S3Bucket) SetCORS(ctx context.Context, rule CORSRule) error {
	cfg := cors.NewConfig([]cors.Rule{{
		AllowedOrigin: rule.AllowedOrigins,
		AllowedHeader: rule.AllowedHeaders,
		AllowedMethod: rule.AllowedMethods,
		ExposeHeader:  rule.ExposeHeaders,
		MaxAgeSeconds: rule.MaxAgeSeconds,
	}})
	if err := s.client.SetBucketCors(ctx, s.bucketName, cfg); err != nil {
		return perrors.CORSFailed(s.bucketName, err)
	}
	return nil
}

// parseEndpoint splits an endpoint into the host minio expects and whether
// TLS is implied. Bare hosts default to TLS.
func parseEndpoint(endpoint string) (host string, secure bool, err error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", false, perrors.ConfigRequired("bucket.endpoint")
	}
	if !strings.Contains(endpoint, "://") {
		return strings.TrimSuffix(endpoint, "/"), true, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, perrors.ValidationFailed("bucket.endpoint", err.Error())
	}
	switch u.Scheme {
	case "https":
		secure = true
	case "http":
		secure = false
	default:
		return "", false, perrors.ValidationFailed("bucket.endpoint", fmt.Sprintf("unsupported scheme %q", u.Scheme))
	}
	if u.Host == "" {
		return "", false, perrors.ValidationFailed("bucket.endpoint", "missing host")
	}
	return u.Host, secure, nil
}
