package core

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "week_1.pdf", SanitizeFilename("week 1.pdf"))
	assert.Equal(t, "r_sum_-v2.docx", SanitizeFilename("résumé-v2.docx"))
	assert.Equal(t, "passwd", SanitizeFilename("../../etc/passwd"))
}

func TestTimestampedName(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	assert.Equal(t, "1700000000123-my_slides.pdf", TimestampedName(now, "my slides.pdf"))
}

func TestRandomImageName(t *testing.T) {
	now := time.UnixMilli(42)
	assert.Regexp(t, regexp.MustCompile(`^42_[a-z0-9]{8}\.png$`), RandomImageName(now, "Me.PNG"))
	assert.Regexp(t, regexp.MustCompile(`^42_[a-z0-9]{8}\.bin$`), RandomImageName(now, "noext"))
}

func TestObjectName(t *testing.T) {
	tests := map[string]string{
		"https://storage.googleapis.com/attachments/1-a.pdf": "1-a.pdf",
		"http://localhost:8080/media/attachments/1-a%20b.pdf": "1-a b.pdf",
		"attachments/1-a.pdf":                                 "1-a.pdf",
		"1-a.pdf":                                             "1-a.pdf",
	}
	for in, want := range tests {
		assert.Equal(t, want, ObjectName(in), in)
	}
}
