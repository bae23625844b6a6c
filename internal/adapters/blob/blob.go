// Package blob stores transient audio recordings on the local filesystem.
// Blobs live as long as their session and are removed by the retention sweeper.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/okian/oratora/internal/domain/model"
)

// PromptKey names the recording of one rapid-fire prompt (1-based index).
func PromptKey(sessionID string, promptIndex int) string {
	return sessionID + "_prompt_" + strconv.Itoa(promptIndex) + ".wav"
}

// RecordingKey names the single recording of a conductor or triple-step session.
func RecordingKey(sessionID string, game model.GameType) string {
	return sessionID + "_" + strings.ReplaceAll(string(game), "-", "_") + ".webm"
}

// ContentType guesses the audio MIME type from a key's extension.
func ContentType(key string) string {
	switch filepath.Ext(key) {
	case ".wav":
		return "audio/wav"
	case ".webm":
		return "audio/webm"
	case ".ogg":
		return "audio/ogg"
	case ".mp3":
		return "audio/mpeg"
	default:
		return "application/octet-stream"
	}
}

// Option applies a configuration option to the FileStore.
type Option func(*FileStore)

// WithMaxBytes rejects blobs larger than n bytes. Zero disables the limit.
func WithMaxBytes(n int64) Option {
	return func(s *FileStore) {
		if n >= 0 {
			s.maxBytes = n
		}
	}
}

// FileStore keeps one file per key in a flat directory.
type FileStore struct {
	dir      string
	maxBytes int64
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string, opts ...Option) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: empty directory", ErrInvalidKey)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("blob: create dir: %w", err)
	}
	s := &FileStore{dir: dir}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the root directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.dir, key), nil
}

// Put writes data under key, replacing any previous blob. The write goes
// through a temporary file so readers never observe a partial blob.
func (s *FileStore) Put(_ context.Context, key string, data []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("blob: create temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("blob: write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("blob: close %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("blob: rename %s: %w", key, err)
	}
	return nil
}

// Open returns the blob for reading. The caller closes it.
func (s *FileStore) Open(_ context.Context, key string) (*os.File, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p) //nolint:gosec // key is validated to a base name inside dir
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("blob: open %s: %w", key, err)
	}
	return f, nil
}

// Read returns the whole blob.
func (s *FileStore) Read(ctx context.Context, key string) ([]byte, error) {
	f, err := s.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("blob: read %s: %w", key, err)
	}
	return data, nil
}

// Delete removes key. A missing blob is not an error.
func (s *FileStore) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("blob: delete %s: %w", key, err)
	}
	return nil
}

// DeleteOlderThan removes every blob last modified before cutoff, including
// abandoned temporary files, and returns how many were removed.
func (s *FileStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("blob: list: %w", err)
	}
	removed := 0
	var errs []error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
