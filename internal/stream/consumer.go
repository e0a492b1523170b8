package stream

import (
	"errors"

	"github.com/1ureka/rdstream/internal/protocol"
	"github.com/1ureka/rdstream/internal/util"
)

// MaxDimension bounds announced resolutions so a bogus header cannot force a
// huge allocation.
const MaxDimension = 8192

// bytesPerPixel sizes the reassembly buffer as width*height*4.
const bytesPerPixel = 4

// Status is the outcome of ingesting one datagram.
type Status int

const (
	StatusPending Status = iota
	StatusReady
	StatusDropped
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusReady:
		return "ready"
	case StatusDropped:
		return "dropped"
	}
	return "unknown"
}

// DropReason explains a StatusDropped result.
type DropReason int

const (
	DropNone DropReason = iota
	DropMalformed
	DropOutOfBounds
	DropStale
)

func (r DropReason) String() string {
	switch r {
	case DropNone:
		return "none"
	case DropMalformed:
		return "malformed"
	case DropOutOfBounds:
		return "out of bounds"
	case DropStale:
		return "stale"
	}
	return "unknown"
}

// Result describes what Ingest did with a datagram.
type Result struct {
	Status Status
	Reason DropReason
	Err    error // decode error for DropMalformed

	// Set when Status is StatusReady. Frame aliases the reassembly buffer and
	// is only valid until the next Ingest.
	Frame  []byte
	Width  int
	Height int
	// Missing counts frame bytes no fragment wrote since the previous
	// completion. Completion does not wait for them.
	Missing int
}

// Consumer reassembles fragments into frames. It is not safe for concurrent
// use; the client loop owns it.
type Consumer struct {
	layout protocol.Layout

	buf           []byte
	width, height uint32

	seq     uint32
	haveSeq bool

	covered int // bytes written since the last completion or reset
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer)

// WithConsumerLayout selects the fragment header layout.
func WithConsumerLayout(l protocol.Layout) ConsumerOption {
	return func(c *Consumer) { c.layout = l }
}

// NewConsumer creates a Consumer with no resolution and an empty buffer.
func NewConsumer(opts ...ConsumerOption) *Consumer {
	c := &Consumer{layout: protocol.LayoutPlain}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolution returns the resolution of the most recent fragment, or 0x0
// before any fragment was accepted.
func (c *Consumer) Resolution() (width, height int) {
	return int(c.width), int(c.height)
}

// Capacity returns the reassembly buffer size in bytes.
func (c *Consumer) Capacity() int {
	return len(c.buf)
}

// Ingest processes one datagram.
func (c *Consumer) Ingest(datagram []byte) Result {
	h, payload, err := protocol.DecodeFragment(c.layout, datagram)
	if err != nil {
		return c.drop(DropMalformed, err)
	}
	util.Stats.AddRecv(len(datagram))

	if h.Width == 0 || h.Height == 0 || h.Width > MaxDimension || h.Height > MaxDimension {
		return c.drop(DropMalformed, errors.New("resolution out of range"))
	}

	// Stale fragments are dropped before they can touch the buffer.
	sequenced := c.layout == protocol.LayoutSequenced
	if sequenced && c.haveSeq && int32(h.Seq-c.seq) < 0 {
		return c.drop(DropStale, nil)
	}

	if h.Width != c.width || h.Height != c.height {
		c.resize(h.Width, h.Height)
	}

	if sequenced && (!c.haveSeq || h.Seq != c.seq) {
		c.seq, c.haveSeq = h.Seq, true
		c.covered = 0
	}

	if h.End() > uint64(len(c.buf)) {
		return c.drop(DropOutOfBounds, nil)
	}
	copy(c.buf[h.Offset:], payload)
	c.covered += len(payload)

	if !h.Completes() {
		return Result{Status: StatusPending}
	}

	res := Result{
		Status:  StatusReady,
		Frame:   c.buf[:h.TotalSize],
		Width:   int(h.Width),
		Height:  int(h.Height),
		Missing: max(int(h.TotalSize)-c.covered, 0),
	}
	c.covered = 0

	util.Stats.FramesReady.Add(1)
	if res.Missing > 0 {
		util.Stats.IncompleteSeen.Add(1)
	}
	return res
}

// resize abandons any partial frame and allocates for the new resolution.
func (c *Consumer) resize(width, height uint32) {
	c.width, c.height = width, height
	c.buf = make([]byte, int(width)*int(height)*bytesPerPixel)
	c.covered = 0
}

func (c *Consumer) drop(reason DropReason, err error) Result {
	switch reason {
	case DropMalformed:
		util.Stats.Malformed.Add(1)
	case DropOutOfBounds:
		util.Stats.OutOfBounds.Add(1)
	case DropStale:
		util.Stats.Stale.Add(1)
	}
	return Result{Status: StatusDropped, Reason: reason, Err: err}
}
