package asset

import (
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Pixels is tightly packed 8-bit RGBA, row-major from the top-left corner.
type Pixels struct {
	Data   []byte
	Width  uint32
	Height uint32
}

// LoadTexture decodes a PNG, JPEG, BMP, TIFF or WebP file. See DecodeTexture
// for maxSize.
func LoadTexture(path string, maxSize uint32) (*Pixels, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open texture")
	}
	defer f.Close()
	px, err := DecodeTexture(f, maxSize)
	return px, errors.Wrapf(err, "load %s", path)
}

// DecodeTexture converts any registered image format to RGBA. Images whose
// larger side exceeds maxSize are scaled down to fit, keeping the aspect
// ratio. A maxSize of zero disables scaling.
func DecodeTexture(r io.Reader, maxSize uint32) (*Pixels, error) {
	src, format, err := image.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, "decode image")
	}
	b := src.Bounds()
	if b.Empty() {
		return nil, errors.Errorf("%s image is empty", format)
	}

	w, h := fit(b.Dx(), b.Dy(), int(maxSize))
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(rgba, rgba.Bounds(), src, b.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(rgba, rgba.Bounds(), src, b, draw.Src, nil)
	}
	return &Pixels{Data: rgba.Pix, Width: uint32(w), Height: uint32(h)}, nil
}

func fit(w, h, limit int) (int, int) {
	if limit <= 0 || (w <= limit && h <= limit) {
		return w, h
	}
	if w >= h {
		return limit, max(1, h*limit/w)
	}
	return max(1, w*limit/h), limit
}

// Checkerboard is the texture used when no image is given.
func Checkerboard(size, cell int) *Pixels {
	light := color.RGBA{R: 230, G: 230, B: 230, A: 255}
	dark := color.RGBA{R: 40, G: 40, B: 60, A: 255}
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := light
			if (x/cell+y/cell)%2 == 1 {
				c = dark
			}
			img.SetRGBA(x, y, c)
		}
	}
	return &Pixels{Data: img.Pix, Width: uint32(size), Height: uint32(size)}
}
