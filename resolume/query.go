package resolume

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/zenibako/resolume-golang/messages"
)

var (
	// ErrQueryTimeout means no reply arrived at the queried address in time
	ErrQueryTimeout = errors.New("timeout waiting for reply from Resolume")

	// ErrMissingPayload means a reply arrived but not with the requested type
	ErrMissingPayload = errors.New("reply has no value of the requested type")

	// ErrNoSender means the tracker was built without an outbound sender
	ErrNoSender = errors.New("no outbound sender configured")
)

// DefaultQueryTimeout bounds a query when the caller passes no timeout
const DefaultQueryTimeout = 250 * time.Millisecond

// Reply is the payload of the message that answered a query
type Reply struct {
	Floats  []float32
	Ints    []int32
	Strings []string
}

type pendingQuery struct {
	reply    Reply
	received bool
	done     chan struct{}
}

// correlator matches inbound messages to outstanding queries by address.
// There is one slot per address: a second query for an address that is still
// pending takes over the slot and the first one times out.
type correlator struct {
	mu      sync.Mutex
	pending map[string]*pendingQuery
}

func newCorrelator() *correlator {
	return &correlator{pending: make(map[string]*pendingQuery)}
}

func (c *correlator) register(address string) *pendingQuery {
	p := &pendingQuery{done: make(chan struct{})}
	c.mu.Lock()
	if _, exists := c.pending[address]; exists {
		log.Warn("Replacing outstanding query for address", "address", address)
	}
	c.pending[address] = p
	c.mu.Unlock()
	return p
}

// release removes the entry only if it still belongs to p
func (c *correlator) release(address string, p *pendingQuery) {
	c.mu.Lock()
	if c.pending[address] == p {
		delete(c.pending, address)
	}
	c.mu.Unlock()
}

// offer hands an inbound message to a waiting query. It returns true when the
// message was consumed as a reply and must not be routed into the tree.
func (c *correlator) offer(msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pending[msg.Address]
	if !ok || p.received {
		return false
	}
	p.reply = Reply{
		Floats:  slices.Clone(msg.Floats),
		Ints:    slices.Clone(msg.Ints),
		Strings: slices.Clone(msg.Strings),
	}
	p.received = true
	close(p.done)
	log.Debugf("Reply received for %s", msg.Address)
	return true
}

func (c *correlator) outstanding() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func newQueryRetryPolicy(retries int) retrypolicy.RetryPolicy[Reply] {
	return retrypolicy.NewBuilder[Reply]().
		HandleErrors(ErrQueryTimeout).
		WithMaxRetries(retries).
		WithDelay(100 * time.Millisecond).
		Build()
}

// Query asks Resolume for the current value at address by sending the "?" marker
// and waiting for the next message on that address. A timeout <= 0 uses the
// tracker's default. Only timeouts are retried, up to the configured retry count.
func (t *Tracker) Query(ctx context.Context, address string, timeout time.Duration) (Reply, error) {
	if t.sender == nil {
		return Reply{}, ErrNoSender
	}
	if timeout <= 0 {
		timeout = t.queryTimeout
	}

	var lastErr error
	reply, err := failsafe.With(t.retryPolicy).WithContext(ctx).Get(func() (Reply, error) {
		r, err := t.queryOnce(ctx, address, timeout)
		lastErr = err
		return r, err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Reply{}, ctxErr
		}
		if lastErr != nil {
			return Reply{}, lastErr
		}
		return Reply{}, err
	}
	return reply, nil
}

func (t *Tracker) queryOnce(ctx context.Context, address string, timeout time.Duration) (Reply, error) {
	p := t.queries.register(address)
	defer t.queries.release(address, p)

	startTime := time.Now()
	if err := t.sender.Send(address, messages.QueryMarker); err != nil {
		t.metrics.queryResult("send_error")
		return Reply{}, fmt.Errorf("failed to send query for %s: %w", address, err)
	}
	log.Debugf("Query sent to %s", address)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.done:
		log.Debugf("Reply received for %s in %v", address, time.Since(startTime))
		t.metrics.queryResult("ok")
		return p.reply, nil
	case <-timer.C:
		log.Debugf("Timeout waiting for reply for %s after %v", address, timeout)
		t.metrics.queryResult("timeout")
		return Reply{}, fmt.Errorf("%w: %s after %v", ErrQueryTimeout, address, timeout)
	case <-ctx.Done():
		t.metrics.queryResult("canceled")
		return Reply{}, ctx.Err()
	}
}

// QueryInt queries address and returns the first int of the reply
func (t *Tracker) QueryInt(ctx context.Context, address string, timeout time.Duration) (int32, error) {
	reply, err := t.Query(ctx, address, timeout)
	if err != nil {
		return 0, err
	}
	if len(reply.Ints) == 0 {
		return 0, fmt.Errorf("%w: expected int from %s", ErrMissingPayload, address)
	}
	return reply.Ints[0], nil
}

// QueryFloat queries address and returns the first float of the reply
func (t *Tracker) QueryFloat(ctx context.Context, address string, timeout time.Duration) (float32, error) {
	reply, err := t.Query(ctx, address, timeout)
	if err != nil {
		return 0, err
	}
	if len(reply.Floats) == 0 {
		return 0, fmt.Errorf("%w: expected float from %s", ErrMissingPayload, address)
	}
	return reply.Floats[0], nil
}

// QueryString queries address and returns the first string of the reply
func (t *Tracker) QueryString(ctx context.Context, address string, timeout time.Duration) (string, error) {
	reply, err := t.Query(ctx, address, timeout)
	if err != nil {
		return "", err
	}
	if len(reply.Strings) == 0 {
		return "", fmt.Errorf("%w: expected string from %s", ErrMissingPayload, address)
	}
	return reply.Strings[0], nil
}

// QueryClipExists asks Resolume for the clip name; an empty slot has an empty name.
// Any query failure reports the clip as missing.
func (t *Tracker) QueryClipExists(ctx context.Context, column, layer int) bool {
	name, err := t.QueryString(ctx, t.address.Clip(layer, column, messages.EndpointName), 0)
	if err != nil {
		log.Debug("Clip existence query failed", "layer", layer, "column", column, "error", err)
		return false
	}
	return name != ""
}
