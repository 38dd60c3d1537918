package validation

import (
	"fmt"
	"mime"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"

	apperrors "github.com/anime-shed/plant-inspector-go/internal/errors"
)

// genericTypes are declared content types that say nothing about the payload.
var genericTypes = map[string]bool{
	"":                         true,
	"application/octet-stream": true,
	"binary/octet-stream":      true,
}

// UploadValidator checks uploaded files before they reach object storage.
type UploadValidator struct {
	maxSize         int64
	allowedPrefixes []string
}

// NewUploadValidator accepts any file up to maxSize bytes.
func NewUploadValidator(maxSize int64) *UploadValidator {
	return &UploadValidator{maxSize: maxSize}
}

// NewUploadValidatorWithOptions additionally restricts uploads to media types
// with one of the given prefixes, judged on the sniffed bytes.
// An empty prefix list allows every type.
func NewUploadValidatorWithOptions(maxSize int64, prefixes []string) *UploadValidator {
	return &UploadValidator{
		maxSize:         maxSize,
		allowedPrefixes: prefixes,
	}
}

// Validate returns the effective content type of the file. The declared type
// is trusted unless it is missing or generic, in which case the bytes are sniffed.
func (v *UploadValidator) Validate(name, declaredType string, data []byte) (string, error) {
	if strings.TrimSpace(name) == "" || len(data) == 0 {
		return "", apperrors.NewInputError("no file selected", nil)
	}
	if v.maxSize > 0 && int64(len(data)) > v.maxSize {
		return "", apperrors.NewInputError(
			fmt.Sprintf("file is %s, limit is %s",
				humanize.IBytes(uint64(len(data))), humanize.IBytes(uint64(v.maxSize))),
			nil,
		)
	}

	contentType := baseType(declaredType)
	if genericTypes[contentType] {
		contentType = DetectContentType(data)
	}

	if len(v.allowedPrefixes) > 0 {
		// Checked against the bytes, not the declared type.
		if sniffed := DetectContentType(data); !v.isTypeAllowed(sniffed) {
			return "", apperrors.NewInputError(fmt.Sprintf("file type %s not allowed", sniffed), nil)
		}
	}
	return contentType, nil
}

func (v *UploadValidator) isTypeAllowed(contentType string) bool {
	for _, prefix := range v.allowedPrefixes {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return false
}

// DetectContentType sniffs the media type of data without parameters.
func DetectContentType(data []byte) string {
	return baseType(mimetype.Detect(data).String())
}

// IsImage reports whether data looks like an image.
func IsImage(data []byte) bool {
	return strings.HasPrefix(DetectContentType(data), "image/")
}

func baseType(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		return mediaType
	}
	return strings.ToLower(contentType)
}
