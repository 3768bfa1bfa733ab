package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{255, 0, 0, 255})
		}
	}
	return img
}

func createTestJPEG(t *testing.T, w, h int) []byte {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, solid(w, h), &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func createTestPNG(t *testing.T, w, h int) []byte {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(w, h)))
	return buf.Bytes()
}

func TestFitDownscalesLandscape(t *testing.T) {
	out, err := Fit(createTestJPEG(t, 1600, 800), MaxWidth, MaxHeight)
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 800, cfg.Width)
	assert.Equal(t, 400, cfg.Height)
}

func TestFitDownscalesPortraitPNG(t *testing.T) {
	out, err := Fit(createTestPNG(t, 300, 1200), MaxWidth, MaxHeight)
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 150, cfg.Width)
	assert.Equal(t, 600, cfg.Height)
}

func TestFitSmallImageUnchanged(t *testing.T) {
	data := createTestJPEG(t, 100, 50)
	out, err := Fit(data, MaxWidth, MaxHeight)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestFitRejectsGarbage(t *testing.T) {
	_, err := Fit([]byte("this is not an image"), MaxWidth, MaxHeight)
	assert.Error(t, err)
}

func TestResizable(t *testing.T) {
	assert.True(t, Resizable("image/jpeg"))
	assert.True(t, Resizable("image/png"))
	assert.False(t, Resizable("image/gif"))
	assert.False(t, Resizable("video/mp4"))
}
