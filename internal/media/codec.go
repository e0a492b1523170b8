package media

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
)

// DefaultQuality is the JPEG quality used when none is configured.
const DefaultQuality = 50

// Encoder compresses captured frames into the bytes sent over the wire.
type Encoder interface {
	Encode(img image.Image) ([]byte, error)
}

// Decoder turns a reassembled frame back into pixels.
type Decoder interface {
	Decode(data []byte) (image.Image, error)
}

// JPEG implements Encoder and Decoder. The encode buffer is reused, so the
// returned slice is only valid until the next Encode.
type JPEG struct {
	Quality int

	buf bytes.Buffer
}

// NewJPEG returns a JPEG codec; quality outside 1..100 falls back to
// DefaultQuality.
func NewJPEG(quality int) *JPEG {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	return &JPEG{Quality: quality}
}

func (j *JPEG) Encode(img image.Image) ([]byte, error) {
	j.buf.Reset()
	if err := jpeg.Encode(&j.buf, img, &jpeg.Options{Quality: j.Quality}); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	return j.buf.Bytes(), nil
}

func (j *JPEG) Decode(data []byte) (image.Image, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("jpeg decode: %w", err)
	}
	return img, nil
}

// Resize scales src to width x height with nearest-neighbour sampling. The
// source is returned unchanged when it already has that size or when either
// target dimension is not positive.
func Resize(src *image.RGBA, width, height int) *image.RGBA {
	sb := src.Bounds()
	sw, sh := sb.Dx(), sb.Dy()
	if width <= 0 || height <= 0 || (sw == width && sh == height) {
		return src
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		sy := sb.Min.Y + y*sh/height
		srow := src.Pix[src.PixOffset(sb.Min.X, sy):]
		drow := dst.Pix[dst.PixOffset(0, y):]
		for x := 0; x < width; x++ {
			si := (x * sw / width) * 4
			copy(drow[x*4:x*4+4], srow[si:si+4])
		}
	}
	return dst
}
