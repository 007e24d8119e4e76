package receipt

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Source delivers already-fetched receipts
type Source interface {
	// List returns the receipt summaries available from the source
	List() ([]Summary, error)

	// Detail returns the detail of one listed receipt
	Detail(receiptID string) (*Detail, error)
}

// DirSource reads exported receipt bundles (*.json) from a directory
type DirSource struct {
	dir     string
	bundles map[string]*Bundle
}

// NewDirSource creates a DirSource for dir
func NewDirSource(dir string) (*DirSource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("opening receipt directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}
	return &DirSource{dir: dir, bundles: map[string]*Bundle{}}, nil
}

// List reads every bundle in the directory, in filename order
func (d *DirSource) List() ([]Summary, error) {
	paths, err := filepath.Glob(filepath.Join(d.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("listing bundles: %w", err)
	}
	sort.Strings(paths)

	summaries := make([]Summary, 0, len(paths))
	for _, path := range paths {
		b, err := readBundleFile(path)
		if err != nil {
			return nil, err
		}
		if _, dup := d.bundles[b.Summary.ReceiptID]; dup {
			continue
		}
		d.bundles[b.Summary.ReceiptID] = b
		summaries = append(summaries, b.Summary)
	}
	return summaries, nil
}

// Detail decodes the payload of a listed receipt
func (d *DirSource) Detail(receiptID string) (*Detail, error) {
	b, ok := d.bundles[receiptID]
	if !ok {
		return nil, fmt.Errorf("receipt not found: %s", receiptID)
	}
	return b.Detail()
}

func readBundleFile(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening bundle: %w", err)
	}
	defer f.Close()

	b, err := ReadBundle(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	return b, nil
}
