// Package bucket implements a data source backed by an object in an
// S3-compatible bucket.
package bucket

import (
	"context"
	"errors"
	"io"
	"path"

	"github.com/YogovAI/Product-Development-Yogov/internal/etlerr"
	"github.com/YogovAI/Product-Development-Yogov/internal/objstore"
)

// Opener opens objects; *objstore.Client implements it.
type Opener interface {
	Open(ctx context.Context, bucket, key string) (objstore.Object, error)
}

// Object is a single bucket/key source.
type Object struct {
	client Opener
	bucket string
	key    string
}

// New returns a source reading key from bucket through client.
func New(client Opener, bucket, key string) *Object {
	return &Object{client: client, bucket: bucket, key: key}
}

// Name returns the key's base name.
func (o *Object) Name() string { return path.Base(o.key) }

// Open returns the object handle, which also implements
// datasource.Seekable.
func (o *Object) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	obj, err := o.client.Open(ctx, o.bucket, o.key)
	if err != nil {
		if errors.Is(err, objstore.ErrNotFound) {
			return nil, etlerr.Wrap(etlerr.SourceNotFound, "source", err)
		}
		return nil, etlerr.Wrap(etlerr.SourceRead, "source", err)
	}
	return obj, nil
}
