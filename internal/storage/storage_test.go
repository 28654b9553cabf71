package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/minio/minio-go/v7"

	"git.home.luguber.info/inful/packler/internal/config"
	perrors "git.home.luguber.info/inful/packler/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssetCORSRule(t *testing.T) {
	origins := []string{"https://example.com"}
	rule := AssetCORSRule(origins, config.DefaultCORSMaxAge)

	assert.Equal(t, []string{"https://example.com"}, rule.AllowedOrigins)
	assert.Equal(t, []string{"*"}, rule.AllowedHeaders)
	assert.Equal(t, []string{"GET", "HEAD"}, rule.AllowedMethods)
	assert.Equal(t, []string{"Etag"}, rule.ExposeHeaders)
	assert.Equal(t, 30000, rule.MaxAgeSeconds)

	origins[0] = "mutated"
	assert.Equal(t, "https://example.com", rule.AllowedOrigins[0])
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		host     string
		secure   bool
		wantErr  bool
	}{
		{"https://s3.fr-par.scw.cloud", "s3.fr-par.scw.cloud", true, false},
		{"http://localhost:9000", "localhost:9000", false, false},
		{"s3.example.com/", "s3.example.com", true, false},
		{"ftp://example.com", "", false, true},
		{"https://", "", false, true},
		{"", "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			host, secure, err := parseEndpoint(tt.endpoint)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.host, host)
			assert.Equal(t, tt.secure, secure)
		})
	}
}

func TestOpen(t *testing.T) {
	_, err := Open(nil)
	require.Error(t, err)
	assert.True(t, perrors.IsCategory(err, perrors.CategoryConfig))

	insecure := false
	b, err := Open(&config.BucketConfig{
		Name:      "assets",
		Endpoint:  "https://s3.fr-par.scw.cloud",
		Region:    "fr-par",
		AccessKey: "id",
		SecretKey: "secret",
		UseSSL:    &insecure,
	})
	require.NoError(t, err)
	s3b, ok := b.(*S3Bucket)
	require.True(t, ok)
	assert.Equal(t, "assets", s3b.Name())
	assert.Equal(t, "http", s3b.client.EndpointURL().Scheme)

	dir := t.TempDir()
	b, err = Open(&config.BucketConfig{Name: "local", Endpoint: "file://" + dir})
	require.NoError(t, err)
	_, ok = b.(*DirBucket)
	assert.True(t, ok)
}

func TestDirBucket(t *testing.T) {
	base := filepath.Join(t.TempDir(), "bucket")
	b, err := NewDirBucket("local", base)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, b.PutObject(ctx, "images/logo-0011223344556677.png", strings.NewReader("png"), 3, "image/png"))
	data, err := os.ReadFile(filepath.Join(base, "images", "logo-0011223344556677.png"))
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	err = b.PutObject(ctx, "../escape", strings.NewReader("x"), 1, "text/plain")
	require.Error(t, err)
	assert.True(t, perrors.IsCategory(err, perrors.CategoryValidation))

	require.NoError(t, b.SetCORS(ctx, AssetCORSRule([]string{"*"}, config.DevCORSMaxAge)))
	raw, err := os.ReadFile(filepath.Join(base, corsFileName))
	require.NoError(t, err)
	var rule CORSRule
	require.NoError(t, json.Unmarshal(raw, &rule))
	assert.Equal(t, 360, rule.MaxAgeSeconds)
}

func TestMemoryBucket(t *testing.T) {
	b := NewMemoryBucket("mem")
	ctx := context.Background()

	require.NoError(t, b.PutObject(ctx, "css/main.css", strings.NewReader("a{}"), 3, "text/css"))
	obj, ok := b.Object("css/main.css")
	require.True(t, ok)
	assert.Equal(t, "a{}", string(obj.Data))
	assert.Equal(t, "text/css", obj.ContentType)

	b.FailKeys["images/flaky.png"] = 1
	err := b.PutObject(ctx, "images/flaky.png", strings.NewReader("x"), 1, "image/png")
	require.Error(t, err)
	assert.True(t, perrors.IsRetryable(err))
	require.NoError(t, b.PutObject(ctx, "images/flaky.png", strings.NewReader("x"), 1, "image/png"))

	b.RejectKeys["images/denied.png"] = true
	err = b.PutObject(ctx, "images/denied.png", strings.NewReader("x"), 1, "image/png")
	require.Error(t, err)
	assert.False(t, perrors.IsRetryable(err))

	b.FailKeys["images/broken.png"] = 0
	require.Error(t, b.PutObject(ctx, "images/broken.png", strings.NewReader("x"), 1, "image/png"))
	require.Error(t, b.PutObject(ctx, "images/broken.png", strings.NewReader("x"), 1, "image/png"))

	assert.Equal(t, []string{"css/main.css", "images/flaky.png"}, b.Keys())
	assert.Equal(t, 6, b.Calls().Put)

	_, ok = b.CORS()
	assert.False(t, ok)
	require.NoError(t, b.SetCORS(ctx, AssetCORSRule([]string{"https://a"}, 10)))
	rule, ok := b.CORS()
	require.True(t, ok)
	assert.Equal(t, 10, rule.MaxAgeSeconds)

	b.FailCORS = true
	require.Error(t, b.SetCORS(ctx, rule))
	assert.Equal(t, 2, b.Calls().SetCORS)
}

func TestRetryableUpload(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"access denied", minio.ErrorResponse{StatusCode: http.StatusForbidden, Code: "AccessDenied"}, false},
		{"no such bucket", minio.ErrorResponse{StatusCode: http.StatusNotFound, Code: "NoSuchBucket"}, false},
		{"throttled", minio.ErrorResponse{StatusCode: http.StatusTooManyRequests, Code: "SlowDown"}, true},
		{"unavailable", minio.ErrorResponse{StatusCode: http.StatusServiceUnavailable}, true},
		{"network", errors.New("dial tcp: connection refused"), true},
		{"cancelled", fmt.Errorf("put: %w", context.Canceled), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retryableUpload(tt.err))
		})
	}
}

func TestS3Bucket_AccessDeniedIsNotRetryable(t *testing.T) {
	var puts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			puts.Add(1)
		}
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusForbidden)
		_, _ = fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>`+
			`<Error><Code>AccessDenied</Code><Message>Access Denied</Message></Error>`)
	}))
	defer srv.Close()

	b, err := NewS3Bucket(S3Config{Endpoint: srv.URL, Region: "us-east-1", Bucket: "assets"})
	require.NoError(t, err)

	err = b.PutObject(context.Background(), "css/main-1.css", strings.NewReader("a{}"), 3, "text/css")
	require.Error(t, err)
	assert.True(t, perrors.IsCategory(err, perrors.CategoryUpload))
	assert.False(t, perrors.IsRetryable(err))
	assert.Equal(t, int32(1), puts.Load())
}
