package cv

import (
	"image"
	"time"
)

// Frame is a single captured screen image. Frames are immutable: the pixel
// buffer is owned by the capture that produced it and must not be modified
// or retained across polls.
type Frame struct {
	Pix        *image.RGBA
	CapturedAt time.Time
}

// NewFrame wraps a freshly captured pixel buffer with a capture timestamp.
func NewFrame(pix *image.RGBA) *Frame {
	return &Frame{Pix: pix, CapturedAt: time.Now()}
}

// Bounds returns the frame's pixel bounds.
func (f *Frame) Bounds() image.Rectangle {
	return f.Pix.Bounds()
}

// Gray converts the frame to a single-channel luminance plane. The result is
// a new buffer; the frame itself is untouched.
func (f *Frame) Gray() *image.Gray {
	return ToGray(f.Pix)
}

// ToGray converts an RGBA image to a single-channel grayscale plane using the
// integer luminance formula. Matching on the gray plane touches a third of
// the bytes per comparison, which is where the documented grayscale speedup
// comes from.
func ToGray(img *image.RGBA) *image.Gray {
	bounds := img.Bounds()
	gray := image.NewGray(bounds)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		srcRow := (y - img.Rect.Min.Y) * img.Stride
		dstRow := (y - bounds.Min.Y) * gray.Stride
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			idx := srcRow + (x-img.Rect.Min.X)*4
			r := int(img.Pix[idx])
			g := int(img.Pix[idx+1])
			b := int(img.Pix[idx+2])
			gray.Pix[dstRow+(x-bounds.Min.X)] = uint8((r*299 + g*587 + b*114) / 1000)
		}
	}

	return gray
}
