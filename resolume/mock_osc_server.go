package resolume

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hypebeast/go-osc/osc"
	"github.com/zenibako/resolume-golang/messages"
)

// ReceivedMessage captures details about received OSC messages for testing
type ReceivedMessage struct {
	Address   string
	Arguments []any
	Timestamp time.Time
}

// safeDispatcher wraps an OSC dispatcher with thread-safe dispatch
type safeDispatcher struct {
	dispatcher osc.Dispatcher
	mu         *sync.Mutex
}

func (s *safeDispatcher) Dispatch(packet osc.Packet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatcher.Dispatch(packet)
}

// MockResolumeServer simulates the Resolume OSC input for testing.
// It answers "?" queries from its value table and echoes every other message back
// to the feedback target, the way Resolume reports the result of a command.
type MockResolumeServer struct {
	host       string
	port       int
	server     *osc.Server
	conn       net.PacketConn
	feedback   *osc.Client
	values     map[string]any
	received   []ReceivedMessage
	echo       bool
	replyDelay time.Duration

	mu           sync.RWMutex
	dispatcherMu sync.Mutex
	isRunning    bool
}

// NewMockResolumeServer creates a mock server. Port 0 picks a free port on Start.
func NewMockResolumeServer(host string, port int) *MockResolumeServer {
	return &MockResolumeServer{
		host:     host,
		port:     port,
		values:   make(map[string]any),
		received: make([]ReceivedMessage, 0),
		echo:     true,
	}
}

// Start starts the mock OSC server
func (m *MockResolumeServer) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isRunning {
		return fmt.Errorf("mock server already running")
	}

	conn, err := net.ListenPacket("udp", fmt.Sprintf("%s:%d", m.host, m.port))
	if err != nil {
		return fmt.Errorf("failed to start mock server: %w", err)
	}
	m.conn = conn
	m.port = conn.LocalAddr().(*net.UDPAddr).Port

	d := osc.NewStandardDispatcher()
	_ = d.AddMsgHandler("*", m.handleMessage)

	m.server = &osc.Server{
		Addr: conn.LocalAddr().String(),
		Dispatcher: &safeDispatcher{
			dispatcher: d,
			mu:         &m.dispatcherMu,
		},
	}
	server := m.server
	go func() {
		if err := server.Serve(conn); err != nil && !strings.Contains(err.Error(), "use of closed network connection") {
			log.Errorf("Mock OSC server error: %v", err)
		}
	}()

	m.isRunning = true
	log.Infof("Mock Resolume OSC server started on %s", conn.LocalAddr())
	return nil
}

// Stop stops the mock OSC server
func (m *MockResolumeServer) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.isRunning {
		return nil
	}
	m.isRunning = false
	m.server = nil
	log.Info("Mock Resolume OSC server stopped")
	return m.conn.Close()
}

// Port returns the port the server listens on
func (m *MockResolumeServer) Port() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.port
}

// SetFeedbackTarget sets where replies and echoes are sent, normally the tracker's listener
func (m *MockResolumeServer) SetFeedbackTarget(host string, port int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feedback = osc.NewClient(host, port)
}

// SetEcho controls whether non-query messages are echoed back as feedback
func (m *MockResolumeServer) SetEcho(echo bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.echo = echo
}

// SetReplyDelay delays every reply, to exercise query timeouts
func (m *MockResolumeServer) SetReplyDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replyDelay = d
}

// SetValue sets the value reported when address is queried
func (m *MockResolumeServer) SetValue(address string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[address] = value
}

// Broadcast sends a message to the feedback target as if Resolume had changed state
func (m *MockResolumeServer) Broadcast(address string, args ...any) error {
	m.mu.RLock()
	client := m.feedback
	m.mu.RUnlock()

	if client == nil {
		return fmt.Errorf("no feedback target set")
	}
	msg := osc.NewMessage(address)
	for _, arg := range args {
		msg.Append(arg)
	}
	return client.Send(msg)
}

func (m *MockResolumeServer) handleMessage(msg *osc.Message) {
	m.captureMessage(msg)

	m.mu.RLock()
	value, known := m.values[msg.Address]
	echo := m.echo
	delay := m.replyDelay
	m.mu.RUnlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	if isQuery(msg) {
		if !known {
			log.Debugf("Mock server has no value for %s", msg.Address)
			return
		}
		if err := m.Broadcast(msg.Address, value); err != nil {
			log.Errorf("Failed to send mock reply: %v", err)
		}
		return
	}

	if len(msg.Arguments) > 0 {
		m.SetValue(msg.Address, msg.Arguments[0])
	}
	if echo {
		if err := m.Broadcast(msg.Address, msg.Arguments...); err != nil {
			log.Errorf("Failed to echo mock message: %v", err)
		}
	}
}

func isQuery(msg *osc.Message) bool {
	if len(msg.Arguments) != 1 {
		return false
	}
	s, ok := msg.Arguments[0].(string)
	return ok && s == messages.QueryMarker
}

// captureMessage records a received message for testing verification
func (m *MockResolumeServer) captureMessage(msg *osc.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.received = append(m.received, ReceivedMessage{
		Address:   msg.Address,
		Arguments: append([]any{}, msg.Arguments...),
		Timestamp: time.Now(),
	})
}

// GetReceivedMessages returns all captured messages for testing
func (m *MockResolumeServer) GetReceivedMessages() []ReceivedMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ReceivedMessage, len(m.received))
	copy(out, m.received)
	return out
}

// ClearReceivedMessages clears the captured messages
func (m *MockResolumeServer) ClearReceivedMessages() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received = make([]ReceivedMessage, 0)
}

// GetMessagesForAddress returns messages whose address contains addressPattern
func (m *MockResolumeServer) GetMessagesForAddress(addressPattern string) []ReceivedMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []ReceivedMessage
	for _, msg := range m.received {
		if strings.Contains(msg.Address, addressPattern) {
			matches = append(matches, msg)
		}
	}
	return matches
}
