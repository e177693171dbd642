package filesvc

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/option"

	"github.com/trezcool/skolar/core"
)

const gcsPublicHost = "https://storage.googleapis.com"

type gcsStorage struct {
	client     *storage.Client
	bucketBase string
}

var _ core.FileStorage = (*gcsStorage)(nil) // interface compliance check

// NewGCSStorage maps every app bucket to the "<bucketBase>-<bucket>" GCS bucket.
// The buckets must exist and be publicly readable.
func NewGCSStorage(ctx context.Context, conf core.StorageConfig) (*gcsStorage, error) {
	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	if conf.GCSCredsFile != "" {
		opts = append(opts, option.WithCredentialsFile(conf.GCSCredsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "creating storage client")
	}
	return &gcsStorage{client: client, bucketBase: conf.GCSBucketBase}, nil
}

func (s *gcsStorage) bucketName(bucket string) string {
	if s.bucketBase == "" {
		return bucket
	}
	return s.bucketBase + "-" + bucket
}

func (s *gcsStorage) Upload(ctx context.Context, bucket, name string, r io.Reader, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucketName(bucket)).Object(name).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return errors.Wrapf(err, "writing %s/%s", bucket, name)
	}
	return errors.Wrapf(w.Close(), "closing %s/%s", bucket, name)
}

func (s *gcsStorage) PublicURL(bucket, name string) string {
	return fmt.Sprintf("%s/%s/%s", gcsPublicHost, s.bucketName(bucket), url.PathEscape(name))
}

// Remove ignores objects that are already gone.
func (s *gcsStorage) Remove(ctx context.Context, bucket string, names ...string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	bkt := s.client.Bucket(s.bucketName(bucket))
	for _, name := range names {
		if err := bkt.Object(name).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
			return errors.Wrapf(err, "deleting %s/%s", bucket, name)
		}
	}
	return nil
}

func (s *gcsStorage) Close() error {
	return s.client.Close()
}
