// Package media holds the collaborators around the streaming core: screen
// capture, JPEG coding, painting and input injection.
package media

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/kbinani/screenshot"
)

// Capturer produces one pixel buffer per call.
type Capturer interface {
	Capture() (*image.RGBA, error)
	Bounds() image.Rectangle
}

// ScreenCapturer grabs a physical display.
type ScreenCapturer struct {
	display int
	bounds  image.Rectangle
}

// NewScreenCapturer returns a capturer for the given display index.
func NewScreenCapturer(display int) (*ScreenCapturer, error) {
	n := screenshot.NumActiveDisplays()
	if display < 0 || display >= n {
		return nil, fmt.Errorf("display %d not available (%d active)", display, n)
	}
	return &ScreenCapturer{
		display: display,
		bounds:  screenshot.GetDisplayBounds(display),
	}, nil
}

// Bounds returns the display rectangle at construction time.
func (c *ScreenCapturer) Bounds() image.Rectangle {
	return c.bounds
}

func (c *ScreenCapturer) Capture() (*image.RGBA, error) {
	img, err := screenshot.CaptureRect(c.bounds)
	if err != nil {
		return nil, fmt.Errorf("capture display %d: %w", c.display, err)
	}
	return img, nil
}

// PatternCapturer renders a moving test pattern. It stands in for a screen on
// headless hosts and in tests.
type PatternCapturer struct {
	mu    sync.Mutex
	rect  image.Rectangle
	frame int
}

// NewPatternCapturer returns a pattern source of the given size.
func NewPatternCapturer(width, height int) *PatternCapturer {
	return &PatternCapturer{rect: image.Rect(0, 0, width, height)}
}

func (c *PatternCapturer) Bounds() image.Rectangle {
	return c.rect
}

// Capture draws diagonal colour bands shifted by one step per frame.
func (c *PatternCapturer) Capture() (*image.RGBA, error) {
	c.mu.Lock()
	shift := c.frame
	c.frame++
	c.mu.Unlock()

	img := image.NewRGBA(c.rect)
	w, h := c.rect.Dx(), c.rect.Dy()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			band := uint8((x + y + shift*8) / 32 % 8)
			img.SetRGBA(x, y, color.RGBA{
				R: band * 32,
				G: uint8(x * 255 / max(w, 1)),
				B: uint8(y * 255 / max(h, 1)),
				A: 0xff,
			})
		}
	}
	return img, nil
}
