package filesvc

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/trezcool/skolar/core"
)

// diskStorage keeps objects under <root>/<bucket>/<name>; the API serves root at publicBaseURL.
type diskStorage struct {
	root          string
	publicBaseURL string
}

var _ core.FileStorage = (*diskStorage)(nil) // interface compliance check

func NewDiskStorage(conf core.StorageConfig) (*diskStorage, error) {
	if err := os.MkdirAll(conf.DiskRoot, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating %s", conf.DiskRoot)
	}
	return &diskStorage{root: conf.DiskRoot, publicBaseURL: conf.PublicBaseURL}, nil
}

func (s *diskStorage) Root() string {
	return s.root
}

func (s *diskStorage) path(bucket, name string) string {
	return filepath.Join(s.root, filepath.Base(bucket), filepath.Base(name))
}

func (s *diskStorage) Upload(ctx context.Context, bucket, name string, r io.Reader, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fp := s.path(bucket, name)
	if err := os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return errors.Wrapf(err, "creating bucket %s", bucket)
	}
	f, err := os.Create(fp)
	if err != nil {
		return errors.Wrapf(err, "creating %s", fp)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(fp)
		return errors.Wrapf(err, "writing %s", fp)
	}
	return errors.Wrapf(f.Close(), "closing %s", fp)
}

func (s *diskStorage) PublicURL(bucket, name string) string {
	return s.publicBaseURL + "/" + url.PathEscape(bucket) + "/" + url.PathEscape(name)
}

func (s *diskStorage) Remove(ctx context.Context, bucket string, names ...string) error {
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := os.Remove(s.path(bucket, name)); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "removing %s/%s", bucket, name)
		}
	}
	return nil
}
