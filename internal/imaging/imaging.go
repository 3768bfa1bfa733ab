// Package imaging shrinks uploaded item photos before they are stored.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

// Default bounds for item photos.
const (
	MaxWidth  = 800
	MaxHeight = 600
)

// JPEGQuality is the compression quality for JPEG output.
const JPEGQuality = 85

// Resizable reports whether Fit can re-encode images of this MIME type.
func Resizable(mime string) bool {
	switch mime {
	case "image/jpeg", "image/jpg", "image/png":
		return true
	}
	return false
}

// Fit decodes a JPEG or PNG image and, if it is larger than maxW x maxH,
// scales it down preserving the aspect ratio. The output keeps the input
// format. Images already within bounds are returned unchanged.
func Fit(data []byte, maxW, maxH int) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	scaled, changed := limit(img, maxW, maxH)
	if !changed {
		return data, nil
	}

	var buf bytes.Buffer
	switch format {
	case "png":
		err = png.Encode(&buf, scaled)
	default:
		err = jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: JPEGQuality})
	}
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

// limit resizes img to fit inside maxW x maxH using Catmull-Rom
// interpolation. It never upscales.
func limit(img image.Image, maxW, maxH int) (image.Image, bool) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxW && h <= maxH {
		return img, false
	}

	scale := min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst, true
}
