package storage

import (
	"context"
	"path"
	"strings"
)

// UploadRequest carries one file received by the proxy.
type UploadRequest struct {
	Name        string
	ContentType string
	Size        int64
	Data        []byte
}

// Outcome describes a stored object.
type Outcome struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	Key  string `json:"key"`
}

// Uploader writes objects with long-lived storage credentials held by the server.
type Uploader interface {
	Upload(ctx context.Context, req UploadRequest) (*Outcome, error)
	Backend() string
}

// unreserved matches the characters encodeURIComponent leaves alone besides alphanumerics.
const unreserved = "-_.!~*'()"

// SanitizeKey turns a file name into a storage key: the base name is
// percent-encoded like encodeURIComponent and every '%' becomes '_', so the
// key never double-encodes on the way to the bucket.
func SanitizeKey(name string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return ""
	}
	return strings.ReplaceAll(encodeURIComponent(base), "%", "_")
}

func encodeURIComponent(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAlnum(c) || strings.IndexByte(unreserved, c) >= 0 {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0F])
	}
	return b.String()
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
