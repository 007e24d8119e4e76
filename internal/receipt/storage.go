package receipt

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ImageStore defines the interface for saving exported receipt images
type ImageStore interface {
	// Save stores an image of a receipt and returns its path relative to the store
	Save(receiptID, name string, data []byte) (string, error)

	// Get retrieves an image by relative path
	Get(path string) ([]byte, error)
}

// LocalStorage implements ImageStore on the local filesystem, one directory per receipt
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new LocalStorage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
	}, nil
}

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)
	repeatedDot = regexp.MustCompile(`\.{2,}`)
)

// sanitizeFilename keeps a name usable as a single path element
func sanitizeFilename(name, fallback string) string {
	name = unsafeChars.ReplaceAllString(strings.TrimSpace(name), "_")
	name = repeatedDot.ReplaceAllString(name, ".")
	name = strings.Trim(name, "._")

	// Truncate to a reasonable length
	if len(name) > 64 {
		name = name[:64]
	}
	if name == "" {
		name = fallback
	}
	return name
}

// Save writes an image under <base>/<receiptID>/<name>
func (l *LocalStorage) Save(receiptID, name string, data []byte) (string, error) {
	dir := sanitizeFilename(receiptID, "receipt")
	if err := os.MkdirAll(filepath.Join(l.basePath, dir), 0755); err != nil {
		return "", fmt.Errorf("creating receipt directory: %w", err)
	}

	rel := filepath.Join(dir, sanitizeFilename(name, "image"))
	if err := os.WriteFile(filepath.Join(l.basePath, rel), data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return rel, nil
}

// Get retrieves an image from local storage
func (l *LocalStorage) Get(path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(l.basePath, path))
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}
