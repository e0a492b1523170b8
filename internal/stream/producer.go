// Package stream fragments encoded frames into paced datagrams on the host and
// reassembles them on the client. Delivery is fire-and-forget: nothing is
// acknowledged, and the next frame supersedes whatever the last one left behind.
package stream

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/1ureka/rdstream/internal/protocol"
	"github.com/1ureka/rdstream/internal/session"
	"github.com/1ureka/rdstream/internal/util"
)

const tracerName = "github.com/1ureka/rdstream/internal/stream"

// ErrNoSession is returned by Send when no client has been admitted.
var ErrNoSession = errors.New("no active session")

// DefaultPacing is the pause after every full-size chunk.
const DefaultPacing = time.Millisecond

// Producer splits frames into fragments and writes them to the session's
// stream address. It is used from a single capture loop.
type Producer struct {
	conn      net.PacketConn
	layout    protocol.Layout
	chunkSize int
	pacing    atomic.Int64 // nanoseconds
	seq       uint32
	sleep     func(context.Context, time.Duration) error
	tracer    trace.Tracer

	buf []byte
}

// ProducerOption configures a Producer.
type ProducerOption func(*Producer)

// WithChunkSize overrides protocol.MaxChunkSize.
func WithChunkSize(n int) ProducerOption {
	return func(p *Producer) {
		if n > 0 {
			p.chunkSize = n
		}
	}
}

// WithPacing sets the delay inserted after each full-size chunk.
func WithPacing(d time.Duration) ProducerOption {
	return func(p *Producer) { p.SetPacing(d) }
}

// WithLayout selects the fragment header layout.
func WithLayout(l protocol.Layout) ProducerOption {
	return func(p *Producer) { p.layout = l }
}

// WithTracer replaces the global OpenTelemetry tracer.
func WithTracer(t trace.Tracer) ProducerOption {
	return func(p *Producer) { p.tracer = t }
}

// withSleep replaces the pacing sleep in tests.
func withSleep(fn func(context.Context, time.Duration) error) ProducerOption {
	return func(p *Producer) { p.sleep = fn }
}

// NewProducer creates a Producer writing to conn.
func NewProducer(conn net.PacketConn, opts ...ProducerOption) *Producer {
	p := &Producer{
		conn:      conn,
		layout:    protocol.LayoutPlain,
		chunkSize: protocol.MaxChunkSize,
		sleep:     sleepCtx,
		tracer:    otel.Tracer(tracerName),
	}
	p.pacing.Store(int64(DefaultPacing))
	for _, opt := range opts {
		opt(p)
	}
	p.buf = make([]byte, p.layout.HeaderSize()+p.chunkSize)
	return p
}

// SetPacing changes the inter-chunk delay. Safe to call from any goroutine.
func (p *Producer) SetPacing(d time.Duration) {
	if d < 0 {
		d = 0
	}
	p.pacing.Store(int64(d))
}

// Pacing returns the current inter-chunk delay.
func (p *Producer) Pacing() time.Duration {
	return time.Duration(p.pacing.Load())
}

// Send transmits frame as consecutive fragments to sess.Stream and returns the
// number of datagrams written. An empty frame sends nothing.
func (p *Producer) Send(ctx context.Context, frame []byte, width, height int, sess *session.Session) (int, error) {
	if sess == nil {
		return 0, ErrNoSession
	}
	if uint64(len(frame)) > math.MaxUint32 {
		return 0, fmt.Errorf("frame of %d bytes exceeds the wire limit", len(frame))
	}

	p.seq++
	ctx, span := p.tracer.Start(ctx, "stream.send_frame", trace.WithAttributes(
		attribute.Int("frame.size", len(frame)),
		attribute.Int("frame.width", width),
		attribute.Int("frame.height", height),
		attribute.Int64("frame.seq", int64(p.seq)),
	))
	defer span.End()

	total := uint32(len(frame))
	hs := p.layout.HeaderSize()
	sent, written := 0, 0

	for offset := 0; offset < len(frame); {
		chunkLen := min(len(frame)-offset, p.chunkSize)

		p.layout.PutHeader(p.buf, protocol.FragmentHeader{
			Offset:    uint32(offset),
			DataLen:   uint32(chunkLen),
			TotalSize: total,
			Width:     uint32(width),
			Height:    uint32(height),
			Seq:       p.seq,
		})
		n := copy(p.buf[hs:], frame[offset:offset+chunkLen])

		if _, err := p.conn.WriteTo(p.buf[:hs+n], sess.Stream); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "write fragment")
			return sent, fmt.Errorf("send fragment at offset %d: %w", offset, err)
		}
		sent++
		written += hs + n
		offset += chunkLen

		if chunkLen == p.chunkSize && offset < len(frame) {
			if err := p.sleep(ctx, p.Pacing()); err != nil {
				return sent, err
			}
		}
	}

	span.SetAttributes(attribute.Int("frame.fragments", sent))
	util.Stats.AddFrameSent(sent, written)
	return sent, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
