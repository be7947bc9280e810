// Package blob is the file-backed attachment store. It persists raw
// attachment payloads under random keys and hands back byte access; all
// metadata lives in the attachments table.
package blob

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Store keeps attachment payloads as files under a single directory.
type Store struct {
	dir string
}

// NewStore creates the backing directory if needed.
func NewStore(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("blob store dir is empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create blob dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func newKey() (string, error) {
	b := make([]byte, 18)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "blob_" + base64.RawURLEncoding.EncodeToString(b), nil
}

// Save writes the payload with a hard size cap and returns its key and size.
// Writes go to a temp file first so a failed save leaves nothing behind.
func (s *Store) Save(r io.Reader, maxBytes int64) (string, int64, error) {
	if r == nil {
		return "", 0, fmt.Errorf("missing payload")
	}
	if maxBytes <= 0 {
		maxBytes = 10 << 20 // 10 MiB
	}

	key, err := newKey()
	if err != nil {
		return "", 0, err
	}
	path := s.path(key)

	f, err := os.OpenFile(path+".tmp", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	limited := &io.LimitedReader{R: r, N: maxBytes + 1}
	n, err := io.Copy(f, limited)
	if err != nil {
		_ = os.Remove(path + ".tmp")
		return "", 0, err
	}
	if n > maxBytes {
		_ = os.Remove(path + ".tmp")
		return "", 0, fmt.Errorf("payload too large (max %d bytes)", maxBytes)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(path + ".tmp")
		return "", 0, err
	}
	if err := os.Rename(path+".tmp", path); err != nil {
		_ = os.Remove(path + ".tmp")
		return "", 0, err
	}

	return key, n, nil
}

// Fetch reads the payload, failing if it exceeds maxBytes (0 = no cap).
func (s *Store) Fetch(key string, maxBytes int64) ([]byte, error) {
	path, err := s.safePath(key)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob %s not found", key)
		}
		return nil, err
	}
	if maxBytes > 0 && int64(len(b)) > maxBytes {
		return nil, fmt.Errorf("blob %s exceeds %d bytes", key, maxBytes)
	}
	return b, nil
}

// DataURL returns the payload as a base64 data URL for inline media blocks.
func (s *Store) DataURL(key, mimeType string, maxBytes int64) (string, error) {
	b, err := s.Fetch(key, maxBytes)
	if err != nil {
		return "", err
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(b), nil
}

// Delete removes the payload. Deleting a missing blob is not an error.
func (s *Store) Delete(key string) error {
	path, err := s.safePath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Exists reports whether the payload is present.
func (s *Store) Exists(key string) bool {
	path, err := s.safePath(key)
	if err != nil {
		return false
	}
	_, statErr := os.Stat(path)
	return statErr == nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+".data")
}

func (s *Store) safePath(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, "/\\") || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return s.path(key), nil
}
