package blob

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// LocalStore writes objects below a directory and signs download URLs with
// HMAC so they expire like cloud signed URLs. Handler serves them.
type LocalStore struct {
	dir     string
	baseURL string
	secret  []byte
	now     func() time.Time
}

// NewLocalStore creates dir if needed. baseURL is the public prefix the
// Handler is mounted on, e.g. "http://localhost:8081/files".
func NewLocalStore(dir, baseURL, secret string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	return &LocalStore{
		dir:     dir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		secret:  []byte(secret),
		now:     time.Now,
	}, nil
}

func (s *LocalStore) path(key string) (string, error) {
	clean := path.Clean("/" + key)[1:]
	if clean == "" || clean != key || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.dir, filepath.FromSlash(clean)), nil
}

func (s *LocalStore) Put(ctx context.Context, key, contentType string, r io.Reader) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create object directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close object: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("commit object: %w", err)
	}
	return nil
}

func (s *LocalStore) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	p, err := s.path(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
		return "", ErrNotFound
	} else if err != nil {
		return "", fmt.Errorf("stat object: %w", err)
	}
	expires := strconv.FormatInt(s.now().Add(ttl).Unix(), 10)
	q := url.Values{"expires": {expires}, "sig": {s.sign(key, expires)}}
	return s.baseURL + "/" + key + "?" + q.Encode(), nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	} else if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (s *LocalStore) sign(key, expires string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(key + "\n" + expires))
	return hex.EncodeToString(mac.Sum(nil))
}

// Handler serves signed URLs produced by SignedURL. Mount it with the
// prefix stripped, e.g. http.StripPrefix("/files", store.Handler()).
func (s *LocalStore) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/")
		expires := r.URL.Query().Get("expires")
		sig := r.URL.Query().Get("sig")

		exp, err := strconv.ParseInt(expires, 10, 64)
		if err != nil || s.now().Unix() > exp {
			http.Error(w, "link expired", http.StatusForbidden)
			return
		}
		if !hmac.Equal([]byte(sig), []byte(s.sign(key, expires))) {
			http.Error(w, "invalid signature", http.StatusForbidden)
			return
		}
		p, err := s.path(key)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "private, max-age=60")
		http.ServeFile(w, r, p)
	})
}

var _ Store = (*LocalStore)(nil)
