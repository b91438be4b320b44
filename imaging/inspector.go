// Package imaging implements C1: header-only image inspection (format,
// mime, dimensions) with an optional SHA-256 of the full file, used by the
// view-image tool and by @path prompt enrichment in contextinject.
package imaging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Info is the result of inspecting one image file.
type Info struct {
	Format string
	Mime   string
	Width  int
	Height int
	Bytes  int64
	SHA256 string
}

var mimeByFormat = map[string]string{
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"webp": "image/webp",
}

// Inspect decodes path's header to recover format and dimensions. When
// withHash is true, the file is opened a second time and read in full to
// compute a SHA-256 digest; if that read fails, Inspect returns the error
// and no Info.
func Inspect(path string, withHash bool) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat image: %w", err)
	}

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w", err)
	}

	info := &Info{
		Format: format,
		Mime:   mimeByFormat[format],
		Width:  cfg.Width,
		Height: cfg.Height,
		Bytes:  stat.Size(),
	}
	if info.Mime == "" {
		info.Mime = "application/octet-stream"
	}

	if withHash {
		sum, err := hashFile(path)
		if err != nil {
			return nil, err
		}
		info.SHA256 = sum
	}
	return info, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open image for hash: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash image: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
