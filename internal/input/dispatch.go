package input

import (
	"context"
	"fmt"

	"github.com/1ureka/rdstream/internal/protocol"
	"github.com/1ureka/rdstream/internal/util"
)

// Button identifies a mouse button.
type Button int

const (
	ButtonLeft Button = iota
	ButtonRight
)

func (b Button) String() string {
	if b == ButtonRight {
		return "right"
	}
	return "left"
}

// Injector performs OS-level input on the host. Implementations need not be
// goroutine-safe; the Dispatcher is their only caller.
type Injector interface {
	MoveCursor(x, y int) error
	MouseButton(b Button, down bool) error
	Key(code int, down bool) error
}

// Dispatcher rescales stream-space events to screen space and drives the
// Injector.
type Dispatcher struct {
	injector Injector
	stream   func() Size
	screen   Size
}

// NewDispatcher creates a Dispatcher. stream reports the resolution frames
// are sent at; screen is the real display size.
func NewDispatcher(injector Injector, stream func() Size, screen Size) *Dispatcher {
	return &Dispatcher{injector: injector, stream: stream, screen: screen}
}

// Dispatch applies one event: Move repositions, *Down repositions then
// presses, *Up releases in place, Key* presses or releases the code.
func (d *Dispatcher) Dispatch(ev protocol.InputEvent) error {
	x, y := Rescale(int(ev.X), int(ev.Y), d.stream(), d.screen)

	switch ev.Type {
	case protocol.EventMove:
		return d.injector.MoveCursor(x, y)
	case protocol.EventLeftDown:
		return d.press(x, y, ButtonLeft)
	case protocol.EventLeftUp:
		return d.injector.MouseButton(ButtonLeft, false)
	case protocol.EventRightDown:
		return d.press(x, y, ButtonRight)
	case protocol.EventRightUp:
		return d.injector.MouseButton(ButtonRight, false)
	case protocol.EventKeyDown:
		return d.injector.Key(int(ev.Key), true)
	case protocol.EventKeyUp:
		return d.injector.Key(int(ev.Key), false)
	}
	return fmt.Errorf("unknown event type %d", int32(ev.Type))
}

func (d *Dispatcher) press(x, y int, b Button) error {
	if err := d.injector.MoveCursor(x, y); err != nil {
		return err
	}
	return d.injector.MouseButton(b, true)
}

// Run dispatches events until ctx is cancelled or events is closed.
func (d *Dispatcher) Run(ctx context.Context, events <-chan protocol.InputEvent) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := d.Dispatch(ev); err != nil {
				util.LogDebug("dispatch %s: %v", ev.Type, err)
			}
		case <-ctx.Done():
			return
		}
	}
}
