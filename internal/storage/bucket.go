// Package storage provides the object-storage targets assets are deployed to.
package storage

import (
	"context"
	"io"
	"net/url"
	"strings"

	"git.home.luguber.info/inful/packler/internal/config"
	perrors "git.home.luguber.info/inful/packler/internal/errors"
)

// Bucket is the narrow object-storage contract used by deploy. It only ever
// creates objects.
type Bucket interface {
	// Name identifies the bucket in logs.
	Name() string

	// PutObject uploads size bytes from r under key as a public-read object.
	PutObject(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// SetCORS replaces the bucket CORS configuration with a single rule.
	SetCORS(ctx context.Context, rule CORSRule) error
}

// CORSRule is the single cross-origin rule pushed to the bucket.
type CORSRule struct {
	AllowedOrigins []string
	AllowedHeaders []string
	AllowedMethods []string
	ExposeHeaders  []string
	MaxAgeSeconds  int
}

// AssetCORSRule returns the rule used for served assets: GET and HEAD from the
// given origins, any request header, and the Etag header exposed.
func AssetCORSRule(origins []string, maxAge int) CORSRule {
	return CORSRule{
		AllowedOrigins: append([]string(nil), origins...),
		AllowedHeaders: []string{"*"},
		AllowedMethods: []string{"GET", "HEAD"},
		ExposeHeaders:  []string{"Etag"},
		MaxAgeSeconds:  maxAge,
	}
}

// Open returns the Bucket described by cfg. Endpoints with a file:// scheme
// resolve to a local directory bucket; everything else is S3-compatible.
func Open(cfg *config.BucketConfig) (Bucket, error) {
	if cfg == nil || cfg.Name == "" {
		return nil, perrors.BucketNotConfigured()
	}
	if strings.HasPrefix(cfg.Endpoint, "file://") {
		u, err := url.Parse(cfg.Endpoint)
		if err != nil {
			return nil, perrors.ValidationFailed("bucket.endpoint", err.Error())
		}
		return NewDirBucket(cfg.Name, u.Path)
	}
	return NewS3Bucket(S3Config{
		Endpoint:  cfg.Endpoint,
		Region:    cfg.Region,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Bucket:    cfg.Name,
		UseSSL:    cfg.UseSSL,
	})
}
