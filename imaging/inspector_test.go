package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestPNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 0, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func TestInspectPNGDimensionsAndMime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.png")
	writeTestPNG(t, path, 12, 8)

	info, err := Inspect(path, false)
	require.NoError(t, err)
	assert.Equal(t, "png", info.Format)
	assert.Equal(t, "image/png", info.Mime)
	assert.Equal(t, 12, info.Width)
	assert.Equal(t, 8, info.Height)
	assert.Empty(t, info.SHA256)
}

func TestInspectWithHashPopulatesDigest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.png")
	writeTestPNG(t, path, 4, 4)

	info, err := Inspect(path, true)
	require.NoError(t, err)
	assert.Len(t, info.SHA256, 64)
}

func TestInspectRejectsNonImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "not-an-image.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	_, err := Inspect(path, false)
	require.Error(t, err)
}
