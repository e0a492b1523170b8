package protocol

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFragmentHeaderLayout pins the byte layout so host and client agree
// regardless of platform.
func TestFragmentHeaderLayout(t *testing.T) {
	h := FragmentHeader{Offset: 0x01020304, DataLen: 60000, TotalSize: 0xAABBCCDD, Width: 2340, Height: 1080}

	got := EncodeFragmentHeader(h)
	want := []byte{
		0x04, 0x03, 0x02, 0x01,
		0x60, 0xEA, 0x00, 0x00,
		0xDD, 0xCC, 0xBB, 0xAA,
		0x24, 0x09, 0x00, 0x00,
		0x38, 0x04, 0x00, 0x00,
	}
	require.Len(t, got, FragmentHeaderSize)
	assert.Equal(t, want, got)

	decoded, err := DecodeFragmentHeader(got)
	require.NoError(t, err)
	assert.Equal(t, h, decoded)
}

func TestSequencedLayout(t *testing.T) {
	h := FragmentHeader{Offset: 100, DataLen: 4, TotalSize: 104, Width: 800, Height: 600, Seq: 0xFEEDBEEF}

	data := EncodeFragment(LayoutSequenced, h, []byte("tail"))
	require.Len(t, data, SequencedHeaderSize+4)
	assert.Equal(t, []byte{0xEF, 0xBE, 0xED, 0xFE}, data[20:24])

	decoded, payload, err := DecodeFragment(LayoutSequenced, data)
	require.NoError(t, err)
	assert.Equal(t, h, decoded)
	assert.Equal(t, []byte("tail"), payload)

	// The plain decoder ignores the trailer and sees the sequence bytes as payload.
	plain, err := DecodeFragmentHeader(data)
	require.NoError(t, err)
	assert.Zero(t, plain.Seq)
}

func TestDecodeFragmentTooShort(t *testing.T) {
	testCases := []struct {
		name   string
		layout Layout
		data   []byte
	}{
		{"empty", LayoutPlain, []byte{}},
		{"1 byte", LayoutPlain, []byte{0x01}},
		{"19 bytes", LayoutPlain, make([]byte, 19)},
		{"sequenced 20 bytes", LayoutSequenced, make([]byte, 20)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := DecodeFragment(tc.layout, tc.data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedPacket))
		})
	}
}

func TestDecodeFragmentTruncatedPayload(t *testing.T) {
	data := EncodeFragment(LayoutPlain, FragmentHeader{TotalSize: 10}, []byte("0123456789"))

	_, _, err := DecodeFragment(LayoutPlain, data[:len(data)-1])
	assert.ErrorIs(t, err, ErrMalformedPacket)
}

func TestDecodeFragmentPayloadAliasesDatagram(t *testing.T) {
	data := EncodeFragment(LayoutPlain, FragmentHeader{TotalSize: 5}, []byte("hello"))

	h, payload, err := DecodeFragment(LayoutPlain, data)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), h.DataLen)

	data[FragmentHeaderSize] = 'j'
	assert.Equal(t, "jello", string(payload))
}

func TestFragmentHeaderCompletes(t *testing.T) {
	testCases := []struct {
		name string
		h    FragmentHeader
		want bool
	}{
		{"first of three", FragmentHeader{Offset: 0, DataLen: 100, TotalSize: 250}, false},
		{"last of three", FragmentHeader{Offset: 200, DataLen: 50, TotalSize: 250}, true},
		{"single", FragmentHeader{Offset: 0, DataLen: 300, TotalSize: 300}, true},
		{"no wraparound", FragmentHeader{Offset: 0xFFFFFFFF, DataLen: 2, TotalSize: 0xFFFFFFFF}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.h.Completes())
		})
	}
}

func TestInputEventLayout(t *testing.T) {
	ev := InputEvent{Type: EventLeftDown, X: 800, Y: -1, Key: 0x41}

	got := EncodeInputEvent(ev)
	want := []byte{
		0x02, 0x00, 0x00, 0x00,
		0x20, 0x03, 0x00, 0x00,
		0xFF, 0xFF, 0xFF, 0xFF,
		0x41, 0x00, 0x00, 0x00,
	}
	assert.Equal(t, want, got)

	decoded, err := DecodeInputEvent(got)
	require.NoError(t, err)
	assert.Equal(t, ev, decoded)
}

func TestDecodeInputEventTooShort(t *testing.T) {
	_, err := DecodeInputEvent(bytes.Repeat([]byte{0x01}, InputEventSize-1))
	assert.ErrorIs(t, err, ErrMalformedPacket)
}

func TestEventTypeNames(t *testing.T) {
	for typ := EventMove; typ <= EventKeyUp; typ++ {
		require.True(t, typ.Valid(), "type %d", typ)

		parsed, ok := ParseEventType(typ.String())
		require.True(t, ok)
		assert.Equal(t, typ, parsed)
	}

	assert.False(t, EventType(0).Valid())
	assert.False(t, EventType(8).Valid())
	assert.Equal(t, "EventType(42)", EventType(42).String())
	assert.True(t, EventRightUp.IsPointer())
	assert.False(t, EventKeyDown.IsPointer())
}
