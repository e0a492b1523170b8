package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrMalformedPacket is returned for datagrams too short for their layout.
var ErrMalformedPacket = errors.New("malformed packet")

// Layout selects the fragment header variant. Both ends must agree.
type Layout uint8

const (
	// LayoutPlain is the canonical 20-byte header.
	LayoutPlain Layout = iota
	// LayoutSequenced adds a frame sequence number after the plain header.
	LayoutSequenced
)

// HeaderSize returns the encoded header size for the layout.
func (l Layout) HeaderSize() int {
	if l == LayoutSequenced {
		return SequencedHeaderSize
	}
	return FragmentHeaderSize
}

func (l Layout) String() string {
	if l == LayoutSequenced {
		return "sequenced"
	}
	return "plain"
}

// PutHeader writes h into buf, which must hold at least HeaderSize bytes.
func (l Layout) PutHeader(buf []byte, h FragmentHeader) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Offset)
	binary.LittleEndian.PutUint32(buf[4:8], h.DataLen)
	binary.LittleEndian.PutUint32(buf[8:12], h.TotalSize)
	binary.LittleEndian.PutUint32(buf[12:16], h.Width)
	binary.LittleEndian.PutUint32(buf[16:20], h.Height)
	if l == LayoutSequenced {
		binary.LittleEndian.PutUint32(buf[20:24], h.Seq)
	}
}

// DecodeHeader reads a header from the front of data.
func (l Layout) DecodeHeader(data []byte) (FragmentHeader, error) {
	if len(data) < l.HeaderSize() {
		return FragmentHeader{}, fmt.Errorf("%w: %d bytes (need at least %d)", ErrMalformedPacket, len(data), l.HeaderSize())
	}
	h := FragmentHeader{
		Offset:    binary.LittleEndian.Uint32(data[0:4]),
		DataLen:   binary.LittleEndian.Uint32(data[4:8]),
		TotalSize: binary.LittleEndian.Uint32(data[8:12]),
		Width:     binary.LittleEndian.Uint32(data[12:16]),
		Height:    binary.LittleEndian.Uint32(data[16:20]),
	}
	if l == LayoutSequenced {
		h.Seq = binary.LittleEndian.Uint32(data[20:24])
	}
	return h, nil
}

// EncodeFragmentHeader serializes h in the plain 20-byte layout.
func EncodeFragmentHeader(h FragmentHeader) []byte {
	buf := make([]byte, FragmentHeaderSize)
	LayoutPlain.PutHeader(buf, h)
	return buf
}

// DecodeFragmentHeader parses the plain 20-byte layout.
func DecodeFragmentHeader(data []byte) (FragmentHeader, error) {
	return LayoutPlain.DecodeHeader(data)
}

// EncodeFragment builds a full datagram: header followed by payload.
// h.DataLen is taken from len(payload).
func EncodeFragment(l Layout, h FragmentHeader, payload []byte) []byte {
	h.DataLen = uint32(len(payload))
	buf := make([]byte, l.HeaderSize()+len(payload))
	l.PutHeader(buf, h)
	copy(buf[l.HeaderSize():], payload)
	return buf
}

// DecodeFragment splits a datagram into its header and payload. The payload
// aliases data.
func DecodeFragment(l Layout, data []byte) (FragmentHeader, []byte, error) {
	h, err := l.DecodeHeader(data)
	if err != nil {
		return FragmentHeader{}, nil, err
	}
	body := data[l.HeaderSize():]
	if uint64(len(body)) < uint64(h.DataLen) {
		return FragmentHeader{}, nil, fmt.Errorf("%w: payload %d bytes, header claims %d", ErrMalformedPacket, len(body), h.DataLen)
	}
	return h, body[:h.DataLen], nil
}

// EncodeInputEvent serializes ev into its fixed 16-byte form.
func EncodeInputEvent(ev InputEvent) []byte {
	buf := make([]byte, InputEventSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(ev.Type))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(ev.X))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(ev.Y))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(ev.Key))
	return buf
}

// DecodeInputEvent parses the first 16 bytes of data.
func DecodeInputEvent(data []byte) (InputEvent, error) {
	if len(data) < InputEventSize {
		return InputEvent{}, fmt.Errorf("%w: %d bytes (need %d)", ErrMalformedPacket, len(data), InputEventSize)
	}
	return InputEvent{
		Type: EventType(int32(binary.LittleEndian.Uint32(data[0:4]))),
		X:    int32(binary.LittleEndian.Uint32(data[4:8])),
		Y:    int32(binary.LittleEndian.Uint32(data[8:12])),
		Key:  int32(binary.LittleEndian.Uint32(data[12:16])),
	}, nil
}
