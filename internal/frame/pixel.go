package frame

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/born-ml/tilenet/internal/errs"
)

// Frame geometry of the video-in core.
const (
	Width  = 240
	Height = 240
	// RowPitch is the distance between rows in video memory, in pixels.
	RowPitch = 512
	// InputSide is the side length of the network input.
	InputSide = 28
)

// Frame is an RGB565 image, row-major without padding.
type Frame struct {
	Width, Height int
	Pix           []uint16
}

// NewFrame allocates a black frame.
func NewFrame(width, height int) *Frame {
	return &Frame{Width: width, Height: height, Pix: make([]uint16, width*height)}
}

// At returns the pixel at (x, y).
func (f *Frame) At(x, y int) uint16 {
	return f.Pix[y*f.Width+x]
}

// expand565 returns the 8-bit expansions of the three channels.
func expand565(p uint16) (r, g, b uint8) {
	r5 := uint8(p>>11) & 0x1f
	g6 := uint8(p>>5) & 0x3f
	b5 := uint8(p) & 0x1f
	return r5<<3 | r5>>2, g6<<2 | g6>>4, b5<<3 | b5>>2
}

// GrayFromRGB565 expands each channel to 8 bits and averages them.
func GrayFromRGB565(p uint16) uint8 {
	r, g, b := expand565(p)
	return uint8((int(r) + int(g) + int(b)) / 3)
}

// Gray converts the frame to 8-bit gray.
func (f *Frame) Gray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		row := f.Pix[y*f.Width : (y+1)*f.Width]
		out := img.Pix[y*img.Stride : y*img.Stride+f.Width]
		for x, p := range row {
			out[x] = GrayFromRGB565(p)
		}
	}
	return img
}

// RGBA converts the frame to 8-bit color.
func (f *Frame) RGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			r, g, b := expand565(f.At(x, y))
			img.SetRGBA(x, y, color.RGBA{R: r, G: g, B: b, A: 0xff})
		}
	}
	return img
}

// Downscale shrinks src to width x height. Each destination pixel is the
// truncated mean of the source block
// [x*W/width, (x+1)*W/width) x [y*H/height, (y+1)*H/height).
func Downscale(src *image.Gray, width, height int) (*image.Gray, error) {
	b := src.Bounds()
	if width <= 0 || height <= 0 || width > b.Dx() || height > b.Dy() {
		return nil, fmt.Errorf("frame: downscale %dx%d to %dx%d: %w",
			b.Dx(), b.Dy(), width, height, errs.ErrInvalidArgument)
	}

	dst := image.NewGray(image.Rect(0, 0, width, height))
	for dy := 0; dy < height; dy++ {
		y0, y1 := dy*b.Dy()/height, (dy+1)*b.Dy()/height
		for dx := 0; dx < width; dx++ {
			x0, x1 := dx*b.Dx()/width, (dx+1)*b.Dx()/width
			sum, count := 0, 0
			for y := y0; y < y1; y++ {
				row := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
				for x := x0; x < x1; x++ {
					sum += int(row[x])
					count++
				}
			}
			dst.Pix[dy*dst.Stride+dx] = uint8(sum / count)
		}
	}
	return dst, nil
}

// ToInput converts img to side x side gray bytes, row-major. Larger images
// are block-averaged down; smaller ones are rejected.
func ToInput(img image.Image, side int) ([]byte, error) {
	gray := toGray(img)
	b := gray.Bounds()
	if b.Dx() != side || b.Dy() != side {
		var err error
		if gray, err = Downscale(gray, side, side); err != nil {
			return nil, err
		}
	}
	out := make([]byte, side*side)
	for y := 0; y < side; y++ {
		copy(out[y*side:(y+1)*side], gray.Pix[y*gray.Stride:])
	}
	return out, nil
}

// toGray returns img as a gray image with origin (0, 0).
func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g
}
