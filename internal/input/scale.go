// Package input carries pointer and keyboard events from the client window to
// the host screen: scaling, encoding, receiving and dispatching.
package input

// Size is a width/height pair in pixels.
type Size struct {
	Width  int
	Height int
}

// Known reports whether both dimensions are positive.
func (s Size) Known() bool {
	return s.Width > 0 && s.Height > 0
}

// scale maps v from a space of extent from to a space of extent to with
// integer truncation. An unknown source extent leaves v unchanged.
func scale(v, from, to int) int {
	if from <= 0 {
		return v
	}
	return int(int64(v) * int64(to) / int64(from))
}

// Rescale maps (x, y) from space src to space dst.
func Rescale(x, y int, src, dst Size) (int, int) {
	return scale(x, src.Width, dst.Width), scale(y, src.Height, dst.Height)
}
