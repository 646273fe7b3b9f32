package storage

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
)

var (
	ErrNotFound     = errors.New("storage: object not found")
	ErrInvalidKey   = errors.New("storage: invalid key")
	ErrAccessDenied = errors.New("storage: access denied")
)

type UploadOptions struct {
	ContentType     string
	ContentEncoding string
}

type Storage interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, opts UploadOptions) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// ObjectURL is the public URL of key, built from the configured template.
	ObjectURL(key string) string
	HealthCheck(ctx context.Context) error
}

type Config struct {
	Endpoint          string
	AccessKey         string
	SecretKey         string
	Bucket            string
	Region            string
	ObjectURLTemplate string
}

// ObjectURL substitutes the query-escaped key for the first {} in template.
func ObjectURL(template, key string) string {
	return strings.Replace(template, "{}", url.QueryEscape(key), 1)
}

// endpointHost splits an endpoint URL such as http://localhost:4566 into the
// host form minio expects and whether TLS is used. A bare host defaults to
// TLS.
func endpointHost(endpoint string) (string, bool) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return strings.TrimSuffix(endpoint, "/"), true
	}
	return u.Host, u.Scheme != "http"
}
