package filesvc

import (
	"context"
	"io"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/skolar/core"
)

const memoryBaseURL = "https://files.test"

// MemoryStorage is the test backend.
type MemoryStorage struct {
	mu      sync.Mutex
	objects map[string]map[string][]byte // {bucket: {name: content}}

	// FailUploads makes every Upload fail, to exercise cleanup paths.
	FailUploads bool
}

var _ core.FileStorage = (*MemoryStorage)(nil) // interface compliance check

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string]map[string][]byte)}
}

func (s *MemoryStorage) Upload(ctx context.Context, bucket, name string, r io.Reader, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.FailUploads {
		return errors.New("upload failed")
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "reading upload")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.objects[bucket] == nil {
		s.objects[bucket] = make(map[string][]byte)
	}
	s.objects[bucket][name] = content
	return nil
}

func (s *MemoryStorage) PublicURL(bucket, name string) string {
	return memoryBaseURL + "/" + bucket + "/" + name
}

func (s *MemoryStorage) Remove(_ context.Context, bucket string, names ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range names {
		delete(s.objects[bucket], name)
	}
	return nil
}

// Object returns the content stored under bucket/name.
func (s *MemoryStorage) Object(bucket, name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.objects[bucket][name]
	return content, ok
}

// Names lists the objects of bucket, sorted.
func (s *MemoryStorage) Names(bucket string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.objects[bucket]))
	for name := range s.objects[bucket] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
