// Package protocol defines the wire format shared by host and client: frame
// fragments flowing host→client and input events flowing client→host.
// Every integer is 32-bit little-endian with no padding.
package protocol

import "fmt"

// Header and packet sizes.
const (
	// FragmentHeaderSize is Offset(4) + DataLen(4) + TotalSize(4) + Width(4) + Height(4).
	FragmentHeaderSize = 20
	// SequencedHeaderSize appends Seq(4) to the plain header.
	SequencedHeaderSize = FragmentHeaderSize + 4
	// InputEventSize is Type(4) + X(4) + Y(4) + Key(4).
	InputEventSize = 16
)

// MaxChunkSize keeps header+payload below the 64 KiB UDP datagram limit.
const MaxChunkSize = 60000

// FragmentHeader precedes DataLen payload bytes in every stream datagram.
type FragmentHeader struct {
	Offset    uint32
	DataLen   uint32
	TotalSize uint32
	Width     uint32
	Height    uint32
	Seq       uint32 // only on the wire with LayoutSequenced
}

// End returns Offset+DataLen without wrapping.
func (h FragmentHeader) End() uint64 {
	return uint64(h.Offset) + uint64(h.DataLen)
}

// Completes reports whether this fragment reaches the end of its frame.
func (h FragmentHeader) Completes() bool {
	return h.End() >= uint64(h.TotalSize)
}

// EventType identifies an input event.
type EventType int32

const (
	EventMove      EventType = 1
	EventLeftDown  EventType = 2
	EventLeftUp    EventType = 3
	EventRightDown EventType = 4
	EventRightUp   EventType = 5
	EventKeyDown   EventType = 6
	EventKeyUp     EventType = 7
)

var eventNames = map[EventType]string{
	EventMove:      "move",
	EventLeftDown:  "leftdown",
	EventLeftUp:    "leftup",
	EventRightDown: "rightdown",
	EventRightUp:   "rightup",
	EventKeyDown:   "keydown",
	EventKeyUp:     "keyup",
}

// Valid reports whether t is one of the defined event types.
func (t EventType) Valid() bool {
	_, ok := eventNames[t]
	return ok
}

func (t EventType) String() string {
	if name, ok := eventNames[t]; ok {
		return name
	}
	return fmt.Sprintf("EventType(%d)", int32(t))
}

// IsPointer reports whether the event carries coordinates.
func (t EventType) IsPointer() bool {
	return t >= EventMove && t <= EventRightUp
}

// ParseEventType maps a lowercase name ("move", "keydown", ...) back to its type.
func ParseEventType(name string) (EventType, bool) {
	for t, n := range eventNames {
		if n == name {
			return t, true
		}
	}
	return 0, false
}

// InputEvent is one pointer or keyboard event. For pointer events X and Y are
// in the sender's coordinate space; for key events Key is a virtual key code.
type InputEvent struct {
	Type EventType
	X    int32
	Y    int32
	Key  int32
}
