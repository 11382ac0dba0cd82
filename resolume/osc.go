package resolume

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/hypebeast/go-osc/osc"
)

// OSCSender sends fire-and-forget OSC messages to Resolume over UDP
type OSCSender struct {
	host   string
	port   int
	client *osc.Client
}

func NewOSCSender(host string, port int) *OSCSender {
	return &OSCSender{
		host:   host,
		port:   port,
		client: osc.NewClient(host, port),
	}
}

// Send sends a message with a single argument. Go ints and float64s are narrowed to the
// 32-bit OSC types Resolume expects; a nil value sends a message with no arguments.
func (s *OSCSender) Send(address string, value any) error {
	msg := osc.NewMessage(address)
	if value != nil {
		msg.Append(normalizeArg(value))
	}
	if err := s.client.Send(msg); err != nil {
		return fmt.Errorf("failed to send OSC message to %s:%d: %w", s.host, s.port, err)
	}
	return nil
}

func normalizeArg(v any) any {
	switch x := v.(type) {
	case int:
		return clampInt32(int64(x))
	case int64:
		return clampInt32(x)
	case float64:
		return float32(x)
	}
	return v
}

// clampInt32 narrows v to int32, saturating instead of wrapping
func clampInt32(v int64) int32 {
	return int32(min(max(v, math.MinInt32), math.MaxInt32))
}

// decodeArgs splits OSC arguments into the typed arrays the tracker consumes.
// Booleans become ints, int64s saturate at the int32 range; blobs and timetags are ignored.
func decodeArgs(args []any) (floats []float32, ints []int32, strs []string) {
	for _, a := range args {
		switch v := a.(type) {
		case float32:
			floats = append(floats, v)
		case float64:
			floats = append(floats, float32(v))
		case int32:
			ints = append(ints, v)
		case int64:
			if v < math.MinInt32 || v > math.MaxInt32 {
				log.Debugf("Clamping out of range int64 argument %d", v)
			}
			ints = append(ints, clampInt32(v))
		case bool:
			if v {
				ints = append(ints, 1)
			} else {
				ints = append(ints, 0)
			}
		case string:
			strs = append(strs, v)
		}
	}
	return floats, ints, strs
}

// Listener receives Resolume's OSC output on a UDP socket and feeds it to a Tracker.
// Packets are parsed and handed over on the read goroutine, so arrival order is kept.
type Listener struct {
	addr    string
	tracker *Tracker

	mu   sync.Mutex
	conn net.PacketConn
	done chan struct{}
}

func NewListener(addr string, tracker *Tracker) *Listener {
	return &Listener{addr: addr, tracker: tracker}
}

// Start binds the socket and begins reading in the background
func (l *Listener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn != nil {
		log.Debugf("OSC listener already running on %s", l.conn.LocalAddr())
		return nil
	}
	conn, err := net.ListenPacket("udp", l.addr)
	if err != nil {
		return fmt.Errorf("failed to start OSC listener on %s: %w", l.addr, err)
	}
	l.conn = conn
	l.done = make(chan struct{})
	go l.readLoop(conn, l.done)

	log.Infof("OSC listener started on %s", conn.LocalAddr())
	return nil
}

// Run starts the listener and blocks until ctx is done
func (l *Listener) Run(ctx context.Context) error {
	if err := l.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	return l.Close()
}

// Addr returns the bound address, or nil before Start
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

func (l *Listener) Close() error {
	l.mu.Lock()
	conn, done := l.conn, l.done
	l.conn = nil
	l.mu.Unlock()

	if conn == nil {
		return nil
	}
	err := conn.Close()
	<-done
	log.Debug("OSC listener closed")
	return err
}

func (l *Listener) readLoop(conn net.PacketConn, done chan struct{}) {
	defer close(done)
	buf := make([]byte, 65535)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Errorf("OSC listener read error: %v", err)
			return
		}
		packet, err := osc.ParsePacket(string(buf[:n]))
		if err != nil {
			log.Debugf("Ignoring malformed OSC packet: %v", err)
			continue
		}
		l.Dispatch(packet)
	}
}

// Dispatch hands every message in a packet to the tracker, flattening bundles in order.
// It satisfies osc.Dispatcher.
func (l *Listener) Dispatch(packet osc.Packet) {
	switch p := packet.(type) {
	case *osc.Message:
		floats, ints, strs := decodeArgs(p.Arguments)
		log.Debugf("Received OSC message: %s %v", p.Address, p.Arguments)
		l.tracker.ProcessMessage(p.Address, floats, ints, strs)
	case *osc.Bundle:
		for _, m := range p.Messages {
			l.Dispatch(m)
		}
		for _, b := range p.Bundles {
			l.Dispatch(b)
		}
	}
}

var _ osc.Dispatcher = (*Listener)(nil)
