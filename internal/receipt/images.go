package receipt

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	_ "golang.org/x/image/bmp" // Receipt logos are embedded as BMP
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

// ToPNG converts an embedded receipt image to PNG. PNG input is returned as-is.
func ToPNG(data []byte) ([]byte, error) {
	if bytes.HasPrefix(data, pngMagic) {
		return data, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportImages saves every embedded image of a receipt as PNG. Images that
// cannot be decoded are saved with their original bytes and name.
func ExportImages(store ImageStore, detail *Detail) ([]string, error) {
	names := make([]string, 0, len(detail.Images))
	for name := range detail.Images {
		names = append(names, name)
	}
	sort.Strings(names)

	saved := make([]string, 0, len(names))
	for _, name := range names {
		data := detail.Images[name]
		filename := name

		pngData, err := ToPNG(data)
		if err != nil {
			slog.Warn("Saving receipt image unconverted",
				"receipt_id", detail.ReceiptID,
				"image", name,
				"error", err,
			)
		} else {
			data = pngData
			filename = strings.TrimSuffix(name, filepath.Ext(name)) + ".png"
		}

		path, err := store.Save(detail.ReceiptID, filename, data)
		if err != nil {
			return saved, fmt.Errorf("saving image %s: %w", name, err)
		}
		saved = append(saved, path)
	}
	return saved, nil
}
