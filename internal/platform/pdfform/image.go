package pdfform

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"

	_ "image/gif"
	_ "image/jpeg"

	"golang.org/x/image/draw"
)

// ErrInvalidImage indicates uploaded bytes are not a decodable raster image.
var ErrInvalidImage = errors.New("invalid image")

// maxImageDimension caps either side of an ingested image; larger uploads
// are downscaled preserving aspect ratio.
const maxImageDimension = 800

// Ingest normalizes an uploaded raster image (PNG, JPEG or GIF) into a
// PNG data URL suitable for storing as a signature/image field value.
func Ingest(data []byte) (string, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return "", fmt.Errorf("%w: degenerate dimensions %dx%d", ErrInvalidImage, w, h)
	}

	if w > maxImageDimension || h > maxImageDimension {
		scale := float64(maxImageDimension) / float64(w)
		if h > w {
			scale = float64(maxImageDimension) / float64(h)
		}
		nw := int(float64(w) * scale)
		nh := int(float64(h) * scale)
		if nw < 1 {
			nw = 1
		}
		if nh < 1 {
			nh = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
		src = dst
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		return "", fmt.Errorf("%w: re-encode: %v", ErrInvalidImage, err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
