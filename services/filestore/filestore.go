// Package filesvc implements core.FileStorage over GCS, the local disk and memory.
package filesvc

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/skolar/core"
)

// New returns the backend selected by conf.Backend.
func New(ctx context.Context, conf core.StorageConfig) (core.FileStorage, error) {
	switch conf.Backend {
	case "gcs":
		return NewGCSStorage(ctx, conf)
	case "disk", "":
		return NewDiskStorage(conf)
	case "memory":
		return NewMemoryStorage(), nil
	default:
		return nil, errors.Errorf("unknown storage backend %q", conf.Backend)
	}
}
