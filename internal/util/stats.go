package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide stream/input counter set.
var Stats = &stats{}

type stats struct {
	FramesSent     atomic.Int64 // frames fully handed to the socket
	FragmentsSent  atomic.Int64
	BytesSent      atomic.Int64 // datagram bytes including headers
	FramesReady    atomic.Int64 // frames signaled complete by the consumer
	IncompleteSeen atomic.Int64 // completed frames with bytes never written
	FragmentsRecv  atomic.Int64
	BytesRecv      atomic.Int64
	Malformed      atomic.Int64
	OutOfBounds    atomic.Int64
	Stale          atomic.Int64
	EventsSent     atomic.Int64
	EventsRecv     atomic.Int64
	EventsDropped  atomic.Int64 // dispatch queue full or unauthenticated
	Handshakes     atomic.Int64
}

func (s *stats) AddFrameSent(fragments, bytes int) {
	s.FramesSent.Add(1)
	s.FragmentsSent.Add(int64(fragments))
	s.BytesSent.Add(int64(bytes))
}

func (s *stats) AddRecv(n int) {
	s.FragmentsRecv.Add(1)
	s.BytesRecv.Add(int64(n))
}

// ──────────────────────────────────────────────────────────────────────────────
// Prometheus export
// ──────────────────────────────────────────────────────────────────────────────

// RegisterMetrics exposes every counter of Stats on reg under the
// "rdstream" namespace.
func RegisterMetrics(reg prometheus.Registerer) error {
	counters := []struct {
		name string
		help string
		v    *atomic.Int64
	}{
		{"frames_sent_total", "Frames fragmented and sent by the host", &Stats.FramesSent},
		{"fragments_sent_total", "Fragment datagrams sent by the host", &Stats.FragmentsSent},
		{"bytes_sent_total", "Datagram bytes sent including headers", &Stats.BytesSent},
		{"frames_ready_total", "Frames signaled complete by the client", &Stats.FramesReady},
		{"frames_incomplete_total", "Completed frames that had unwritten ranges", &Stats.IncompleteSeen},
		{"fragments_received_total", "Fragment datagrams received by the client", &Stats.FragmentsRecv},
		{"bytes_received_total", "Datagram bytes received by the client", &Stats.BytesRecv},
		{"dropped_malformed_total", "Datagrams dropped as malformed", &Stats.Malformed},
		{"dropped_out_of_bounds_total", "Fragments dropped for overflowing the reassembly buffer", &Stats.OutOfBounds},
		{"dropped_stale_total", "Fragments dropped for belonging to an older frame", &Stats.Stale},
		{"input_events_sent_total", "Input events sent by the client", &Stats.EventsSent},
		{"input_events_received_total", "Input events accepted by the host", &Stats.EventsRecv},
		{"input_events_dropped_total", "Input events ignored by the host", &Stats.EventsDropped},
		{"handshakes_total", "Successful session handshakes", &Stats.Handshakes},
	}

	for _, c := range counters {
		v := c.v
		err := reg.Register(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "rdstream",
			Name:      c.name,
			Help:      c.help,
		}, func() float64 { return float64(v.Load()) }))
		if err != nil {
			return fmt.Errorf("register %s: %w", c.name, err)
		}
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter launches a goroutine that logs stream statistics
// every interval. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		secs := interval.Seconds()
		var prevSent, prevRecv, prevOut, prevIn int64
		for {
			select {
			case <-ticker.C:
				sent := Stats.BytesSent.Load()
				recv := Stats.BytesRecv.Load()
				out := Stats.FramesSent.Load()
				in := Stats.FramesReady.Load()

				if sent != prevSent || recv != prevRecv {
					pterm.DefaultLogger.Info(formatStats(
						float64(sent-prevSent)/secs,
						float64(recv-prevRecv)/secs,
						float64(out-prevOut)/secs,
						float64(in-prevIn)/secs,
						Stats.Malformed.Load()+Stats.OutOfBounds.Load()+Stats.Stale.Load(),
					))
				}

				prevSent, prevRecv, prevOut, prevIn = sent, recv, out, in

			case <-ctx.Done():
				return
			}
		}
	}()
}

// formatBytes renders b in a fixed eight-column field ("99.0   B",
// " 1.5 KiB"). Anything above 99 moves up a unit so the number keeps four
// columns.
func formatBytes(b float64) string {
	units := [...]string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}
	i := 0
	for ; b > 99 && i < len(units)-1; i++ {
		b /= 1024
	}
	return fmt.Sprintf("%4.1f %3s", b, units[i])
}

// formatStats returns a formatted string of the current rates for display in the logger.
func formatStats(outS, inS, outFPS, inFPS float64, dropped int64) string {
	return fmt.Sprintf("Out: %s/s %4.1f fps | In: %s/s %4.1f fps | Dropped: %d",
		formatBytes(outS),
		outFPS,
		formatBytes(inS),
		inFPS,
		dropped,
	)
}
