package frame

import (
	"fmt"
	"image"
	"os"

	"golang.org/x/image/bmp"

	"github.com/born-ml/tilenet/internal/errs"
)

// LoadGray decodes a BMP file into gray, top row first.
func LoadGray(path string) (*image.Gray, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("frame: %w", err)
	}
	defer f.Close()

	img, err := bmp.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("frame: decode %s: %w: %w", path, errs.ErrMalformedInput, err)
	}
	return toGray(img), nil
}

// SaveGray writes img as an 8-bit BMP.
func SaveGray(path string, img *image.Gray) error {
	return save(path, img)
}

// SaveRGB565 writes f as a 24-bit BMP.
func SaveRGB565(path string, f *Frame) error {
	return save(path, f.RGBA())
}

func save(path string, img image.Image) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("frame: %w", err)
	}
	if err := bmp.Encode(out, img); err != nil {
		_ = out.Close()
		return fmt.Errorf("frame: encode %s: %w", path, err)
	}
	return out.Close()
}
