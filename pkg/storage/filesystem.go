package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalStorage persists uploaded files on disk under a base directory.
// Callers only ever see relative URLs of the form "/uploads/<folder>/<name>".
type LocalStorage struct {
	baseDir   string
	urlPrefix string
}

// NewLocalStorage ensures the base directory exists and returns a handle.
func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./uploads"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir, urlPrefix: "/uploads"}, nil
}

// Upload writes the given bytes under folder with a random name preserving
// the original extension and returns the relative URL.
func (s *LocalStorage) Upload(data []byte, folder, originalName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	name := uuid.NewString() + ext
	dir := filepath.Join(s.baseDir, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("prepare upload directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write upload file: %w", err)
	}
	return strings.Join([]string{s.urlPrefix, folder, name}, "/"), nil
}

// Delete removes a stored file referenced by its relative URL. A missing
// file or a URL outside the store reports false without an error.
func (s *LocalStorage) Delete(fileURL string) (bool, error) {
	rel, ok := s.relativePath(fileURL)
	if !ok {
		return false, nil
	}
	if err := os.Remove(filepath.Join(s.baseDir, rel)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("delete upload file: %w", err)
	}
	return true, nil
}

// Open returns a read-only handle for the file behind a relative URL.
func (s *LocalStorage) Open(fileURL string) (*os.File, error) {
	rel, ok := s.relativePath(fileURL)
	if !ok {
		return nil, fmt.Errorf("url outside storage: %s", fileURL)
	}
	file, err := os.Open(filepath.Join(s.baseDir, rel))
	if err != nil {
		return nil, fmt.Errorf("open upload file: %w", err)
	}
	return file, nil
}

// Validate checks size and extension constraints for an upload.
func Validate(size int64, filename string, maxBytes int64, allowedExtensions []string) bool {
	if size <= 0 || size > maxBytes {
		return false
	}
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range allowedExtensions {
		if ext == strings.ToLower(strings.TrimSpace(allowed)) {
			return true
		}
	}
	return false
}

func (s *LocalStorage) relativePath(fileURL string) (string, bool) {
	trimmed := strings.TrimPrefix(fileURL, s.urlPrefix+"/")
	if trimmed == fileURL || trimmed == "" {
		return "", false
	}
	clean := filepath.Clean(trimmed)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", false
	}
	return clean, true
}
