// Package blob stores receipt attachments in an object store.
package blob

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("object not found")
	ErrUnsupportedType = errors.New("unsupported receipt type")
	ErrTooLarge        = errors.New("receipt exceeds size limit")
)

// Store is the object storage boundary: put bytes, hand out a time-limited
// URL, delete.
type Store interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

// Accepted receipt content types and the extension used for their keys.
var extensions = map[string]string{
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"image/webp":      "webp",
	"image/gif":       "gif",
	"application/pdf": "pdf",
}

// DetectType sniffs the first bytes of a file and returns its content type
// and key extension.
func DetectType(head []byte) (contentType, ext string, err error) {
	ct := http.DetectContentType(head)
	ext, ok := extensions[ct]
	if !ok {
		return "", "", ErrUnsupportedType
	}
	return ct, ext, nil
}

// NewKey builds an object key under the owner's prefix.
func NewKey(ownerID, ext string) string {
	return ownerID + "/" + uuid.NewString() + "." + ext
}

// LimitReader reads at most max bytes from r and fails with ErrTooLarge if
// r holds more.
func LimitReader(r io.Reader, max int64) io.Reader {
	return &limitedReader{r: r, left: max}
}

type limitedReader struct {
	r    io.Reader
	left int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.left < 0 {
		return 0, ErrTooLarge
	}
	// read one byte past the limit to tell "exactly max" from "more"
	if int64(len(p)) > l.left+1 {
		p = p[:l.left+1]
	}
	n, err := l.r.Read(p)
	l.left -= int64(n)
	if l.left < 0 {
		return 0, ErrTooLarge
	}
	return n, err
}
