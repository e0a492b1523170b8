package media

import (
	"image"

	"github.com/1ureka/rdstream/internal/util"
)

// Painter displays a decoded frame.
type Painter interface {
	Paint(img image.Image) error
}

// Renderer receives each completed frame from the client loop. frame aliases
// the reassembly buffer and must not be retained past the call.
type Renderer interface {
	Render(frame []byte, width, height int) error
}

// DecodeRenderer decodes frames and hands the pixels to a Painter.
type DecodeRenderer struct {
	dec     Decoder
	painter Painter
}

func NewDecodeRenderer(dec Decoder, painter Painter) *DecodeRenderer {
	return &DecodeRenderer{dec: dec, painter: painter}
}

func (r *DecodeRenderer) Render(frame []byte, width, height int) error {
	img, err := r.dec.Decode(frame)
	if err != nil {
		return err
	}
	return r.painter.Paint(img)
}

// LogPainter paints nothing; it logs frame sizes at debug level.
type LogPainter struct {
	Frames int
}

func (p *LogPainter) Paint(img image.Image) error {
	p.Frames++
	b := img.Bounds()
	util.LogDebug("frame %d: %dx%d", p.Frames, b.Dx(), b.Dy())
	return nil
}

// Renderers fans one frame out to several renderers. The first error is
// returned after all have run.
type Renderers []Renderer

func (rs Renderers) Render(frame []byte, width, height int) error {
	var first error
	for _, r := range rs {
		if err := r.Render(frame, width, height); err != nil && first == nil {
			first = err
		}
	}
	return first
}
