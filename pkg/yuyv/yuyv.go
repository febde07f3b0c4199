// Package yuyv converts packed YUYV 4:2:2 frames (Y0 U Y1 V, two pixels per
// four bytes) to RGB using the BT.601 studio-range coefficients.
package yuyv

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// ErrShortBuffer is returned when the source holds fewer bytes than the
// requested dimensions need.
var ErrShortBuffer = errors.New("yuyv: source shorter than width*height*2")

// ErrOddWidth is returned for widths that do not fill whole pixel pairs.
var ErrOddWidth = errors.New("yuyv: width must be even")

// RGB is one 8-bit output pixel.
type RGB struct {
	R, G, B uint8
}

// FrameSize returns the number of bytes a width x height YUYV frame occupies.
func FrameSize(width, height int) int {
	return width * height * 2
}

func validate(src []byte, width, height int) error {
	if width < 0 || height < 0 {
		return fmt.Errorf("yuyv: invalid dimensions %dx%d", width, height)
	}
	if width%2 != 0 {
		return ErrOddWidth
	}
	if len(src) < FrameSize(width, height) {
		return fmt.Errorf("%w: have %d, need %d", ErrShortBuffer, len(src), FrameSize(width, height))
	}
	return nil
}

// Convert returns width*height RGB pixels decoded from src. Bytes past the
// frame are ignored.
func Convert(src []byte, width, height int) ([]RGB, error) {
	if err := validate(src, width, height); err != nil {
		return nil, err
	}

	out := make([]RGB, width*height)
	n := FrameSize(width, height)
	for i, o := 0, 0; i < n; i, o = i+4, o+2 {
		u, v := src[i+1], src[i+3]
		out[o] = PixelRGB(src[i], u, v)
		out[o+1] = PixelRGB(src[i+2], u, v)
	}
	return out, nil
}

// PixelRGB converts one sample triple. Each channel is computed in floating
// point, truncated toward zero and only then clamped to 0..255.
func PixelRGB(y, u, v uint8) RGB {
	c := 1.164 * float64(int(y)-16)
	d := float64(int(u) - 128)
	e := float64(int(v) - 128)

	return RGB{
		R: clamp(int(c + 1.596*e)),
		G: clamp(int(c - 0.392*d - 0.813*e)),
		B: clamp(int(c + 2.017*d)),
	}
}

func clamp(x int) uint8 {
	switch {
	case x < 0:
		return 0
	case x > 255:
		return 255
	default:
		return uint8(x)
	}
}

// Gray returns the luma samples of src, one byte per pixel, ignoring chroma.
func Gray(src []byte, width, height int) ([]byte, error) {
	if err := validate(src, width, height); err != nil {
		return nil, err
	}

	out := make([]byte, width*height)
	for i := range out {
		out[i] = src[i*2]
	}
	return out, nil
}

// ToRGBA converts src into an image for renderers and encoders.
func ToRGBA(src []byte, width, height int) (*image.RGBA, error) {
	if err := validate(src, width, height); err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	n := FrameSize(width, height)
	for i, p := 0, 0; i < n; i, p = i+4, p+8 {
		u, v := src[i+1], src[i+3]
		a := PixelRGB(src[i], u, v)
		b := PixelRGB(src[i+2], u, v)
		copy(img.Pix[p:p+8], []uint8{a.R, a.G, a.B, 0xff, b.R, b.G, b.B, 0xff})
	}
	return img, nil
}

// ToGray converts src into a grayscale image from luma alone.
func ToGray(src []byte, width, height int) (*image.Gray, error) {
	pix, err := Gray(src, width, height)
	if err != nil {
		return nil, err
	}
	return &image.Gray{Pix: pix, Stride: width, Rect: image.Rect(0, 0, width, height)}, nil
}

// Color returns p as a color.Color.
func (p RGB) Color() color.RGBA {
	return color.RGBA{R: p.R, G: p.G, B: p.B, A: 0xff}
}
