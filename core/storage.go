package core

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Buckets
const (
	BucketAttachments   = "attachments"
	BucketVideos        = "videos"
	BucketCoverImages   = "cover_image"
	BucketProfileImages = "profile-images"
)

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// FileStorage stores public objects grouped in buckets.
type FileStorage interface {
	Upload(ctx context.Context, bucket, name string, r io.Reader, contentType string) error
	PublicURL(bucket, name string) string
	Remove(ctx context.Context, bucket string, names ...string) error
}

// File is an upload received from a client.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Content     io.Reader
}

// SanitizeFilename replaces every char outside [a-zA-Z0-9.-] with "_".
func SanitizeFilename(name string) string {
	return unsafeFilenameChars.ReplaceAllString(filepath.Base(name), "_")
}

// TimestampedName returns "<unix millis>-<sanitized name>".
func TimestampedName(now time.Time, name string) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), SanitizeFilename(name))
}

// RandomImageName returns "<unix millis>_<random>.<ext>", keeping the extension of name.
func RandomImageName(now time.Time, name string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if ext == "" || unsafeFilenameChars.MatchString(ext) {
		ext = "bin"
	}
	return fmt.Sprintf("%d_%s.%s", now.UnixMilli(), randomString(8), ext)
}

// ObjectName returns the last path segment of a public object URL.
func ObjectName(objectURL string) string {
	p := objectURL
	if u, err := url.Parse(objectURL); err == nil && u.Path != "" {
		p = u.Path
	}
	p = strings.TrimRight(p, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		p = p[i+1:]
	}
	if unescaped, err := url.PathUnescape(p); err == nil {
		return unescaped
	}
	return p
}

const randomChars = "abcdefghijklmnopqrstuvwxyz0123456789"

func randomString(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = randomChars[rand.Intn(len(randomChars))]
	}
	return string(b)
}
