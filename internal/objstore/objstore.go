// Package objstore is the S3-compatible object store client used both to
// read source files from a bucket and to upload lake output. It wraps
// minio-go; credentials are used only to build the client.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrNotFound is returned when the bucket or key does not exist.
var ErrNotFound = errors.New("objstore: object not found")

// Config holds connection settings. Endpoint may carry a scheme
// ("https://minio:9000"); a scheme overrides Secure.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Secure    bool
}

// Object is an opened object. *minio.Object satisfies it.
type Object interface {
	io.ReadCloser
	io.ReaderAt
	io.Seeker
}

// Uploader stores a local file as an object. *Client satisfies it.
type Uploader interface {
	Upload(ctx context.Context, bucket, key, path, contentType string) (int64, error)
}

var _ Uploader = (*Client)(nil)

// Client talks to one endpoint.
type Client struct {
	mc *minio.Client
}

// New builds a client. It does not dial; the first request does.
func New(cfg Config) (*Client, error) {
	host, secure, err := ParseEndpoint(cfg.Endpoint, cfg.Secure)
	if err != nil {
		return nil, err
	}
	mc, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("objstore: new client: %w", err)
	}
	return &Client{mc: mc}, nil
}

// ParseEndpoint splits an endpoint into the host[:port] minio expects and
// the TLS flag.
func ParseEndpoint(endpoint string, secure bool) (string, bool, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", false, fmt.Errorf("objstore: endpoint is required")
	}
	if !strings.Contains(endpoint, "://") {
		return strings.TrimSuffix(endpoint, "/"), secure, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("objstore: parse endpoint %q: %w", endpoint, err)
	}
	switch u.Scheme {
	case "http":
		secure = false
	case "https":
		secure = true
	default:
		return "", false, fmt.Errorf("objstore: unsupported endpoint scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("objstore: endpoint %q has no host", endpoint)
	}
	return u.Host, secure, nil
}

// Open returns a random-access handle on bucket/key. The object is stat'ed
// up front so a missing key fails here rather than on first read.
func (c *Client) Open(ctx context.Context, bucket, key string) (Object, error) {
	obj, err := c.mc.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classify(err, bucket, key)
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, classify(err, bucket, key)
	}
	return obj, nil
}

// Upload puts the local file at path to bucket/key and returns the number
// of bytes stored.
func (c *Client) Upload(ctx context.Context, bucket, key, path, contentType string) (int64, error) {
	info, err := c.mc.FPutObject(ctx, bucket, key, path, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return 0, classify(err, bucket, key)
	}
	return info.Size, nil
}

func classify(err error, bucket, key string) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%w: s3://%s/%s", ErrNotFound, bucket, key)
	}
	return fmt.Errorf("objstore: s3://%s/%s: %w", bucket, key, err)
}
