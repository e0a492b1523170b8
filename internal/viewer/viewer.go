// Package viewer is the client's display: a browser page fed over a
// WebSocket with completed frames, which reports pointer and keyboard input
// back to the client loop.
package viewer

import (
	_ "embed"
	"encoding/json"
	"math"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/1ureka/rdstream/internal/input"
	"github.com/1ureka/rdstream/internal/protocol"
	"github.com/1ureka/rdstream/internal/util"
)

//go:embed index.html
var indexHTML []byte

const (
	viewerQueue = 4   // outgoing messages per viewer; older frames are dropped
	eventQueue  = 256 // UI events waiting for the client loop
)

// Event is one UI action in viewer coordinates. Window is the displayed
// image size the coordinates refer to.
type Event struct {
	Type   protocol.EventType
	X, Y   int
	Key    int
	Window input.Size
}

// inbound is the JSON the page sends.
type inbound struct {
	Type   string `json:"type"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Key    int    `json:"key"`
	Width  int    `json:"w"`
	Height int    `json:"h"`
}

// resolution is the JSON text message announcing a new stream size.
type resolution struct {
	Type   string `json:"type"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type outbound struct {
	kind int // websocket.TextMessage or websocket.BinaryMessage
	data []byte
}

type peer struct {
	conn *websocket.Conn
	send chan outbound
}

// Viewer fans frames out to every connected page. Render is called from the
// client loop; pages connect and disconnect at any time.
type Viewer struct {
	upgrader websocket.Upgrader
	events   chan Event

	mu    sync.Mutex
	peers map[*peer]struct{}
	size  input.Size
	last  []byte
}

func New() *Viewer {
	return &Viewer{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		events: make(chan Event, eventQueue),
		peers:  make(map[*peer]struct{}),
	}
}

// Handler serves the page at / and the socket at /ws.
func (v *Viewer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(indexHTML)
	})
	r.Get("/ws", v.handleWS)
	return r
}

// Events returns UI input from all pages.
func (v *Viewer) Events() <-chan Event {
	return v.events
}

// Peers returns the number of connected pages.
func (v *Viewer) Peers() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.peers)
}

// Render copies frame and queues it for every page, preceded by a resolution
// message when the size changed.
func (v *Viewer) Render(frame []byte, width, height int) error {
	data := make([]byte, len(frame))
	copy(data, frame)

	v.mu.Lock()
	defer v.mu.Unlock()

	size := input.Size{Width: width, Height: height}
	if size != v.size {
		v.size = size
		msg := resolutionMessage(size)
		for p := range v.peers {
			p.enqueue(outbound{websocket.TextMessage, msg})
		}
	}
	v.last = data
	for p := range v.peers {
		p.enqueue(outbound{websocket.BinaryMessage, data})
	}
	return nil
}

func resolutionMessage(s input.Size) []byte {
	msg, _ := json.Marshal(resolution{Type: "resolution", Width: s.Width, Height: s.Height})
	return msg
}

// enqueue never blocks. Frames are dropped when the page falls behind; a
// resolution update evicts one queued frame to make room.
func (p *peer) enqueue(m outbound) {
	for {
		select {
		case p.send <- m:
			return
		default:
		}
		if m.kind == websocket.BinaryMessage {
			util.LogDebug("viewer slow, dropping frame")
			return
		}
		select {
		case <-p.send:
		default:
		}
	}
}

func (v *Viewer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := v.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	p := &peer{conn: conn, send: make(chan outbound, viewerQueue)}

	v.mu.Lock()
	v.peers[p] = struct{}{}
	if v.size.Known() {
		p.enqueue(outbound{websocket.TextMessage, resolutionMessage(v.size)})
		if v.last != nil {
			p.enqueue(outbound{websocket.BinaryMessage, v.last})
		}
	}
	v.mu.Unlock()
	util.LogInfo("viewer connected from %s", conn.RemoteAddr())

	done := make(chan struct{})
	go p.writeLoop(done)
	v.readLoop(p)

	v.mu.Lock()
	delete(v.peers, p)
	v.mu.Unlock()
	close(done)
	conn.Close()
	util.LogInfo("viewer %s disconnected", conn.RemoteAddr())
}

func (p *peer) writeLoop(done <-chan struct{}) {
	for {
		select {
		case m := <-p.send:
			if err := p.conn.WriteMessage(m.kind, m.data); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// readLoop turns page messages into Events until the socket closes.
func (v *Viewer) readLoop(p *peer) {
	for {
		var msg inbound
		if err := p.conn.ReadJSON(&msg); err != nil {
			return
		}
		t, ok := protocol.ParseEventType(msg.Type)
		if !ok {
			util.LogDebug("viewer sent unknown event %q", msg.Type)
			continue
		}

		ev := Event{
			Type:   t,
			X:      msg.X,
			Y:      msg.Y,
			Key:    msg.Key,
			Window: input.Size{Width: msg.Width, Height: msg.Height},
		}
		if t.IsPointer() {
			v.mu.Lock()
			stream := v.size
			v.mu.Unlock()

			var inside bool
			ev.X, ev.Y, ev.Window, inside = letterbox(msg.X, msg.Y, ev.Window, stream)
			// Presses in the bands are ignored; releases are clamped so no
			// button stays down on the host.
			if !inside && t != protocol.EventLeftUp && t != protocol.EventRightUp {
				continue
			}
		}
		select {
		case v.events <- ev:
		default:
			util.Stats.EventsDropped.Add(1)
		}
	}
}

// letterbox maps a point in the page's element box onto the image drawn
// inside it with object-fit: contain. It returns the point relative to the
// image, clamped to it, the displayed image size, and whether the point was
// on the image. An unknown stream or box leaves the point unchanged.
func letterbox(x, y int, box, stream input.Size) (int, int, input.Size, bool) {
	if !box.Known() || !stream.Known() {
		return x, y, box, true
	}

	scale := math.Min(float64(box.Width)/float64(stream.Width), float64(box.Height)/float64(stream.Height))
	w := float64(stream.Width) * scale
	h := float64(stream.Height) * scale
	fx := float64(x) - (float64(box.Width)-w)/2
	fy := float64(y) - (float64(box.Height)-h)/2

	inside := fx >= 0 && fy >= 0 && fx < w && fy < h
	fx = math.Min(math.Max(fx, 0), w-1)
	fy = math.Min(math.Max(fy, 0), h-1)

	shown := input.Size{Width: int(math.Round(w)), Height: int(math.Round(h))}
	return int(fx), int(fy), shown, inside
}
