package resolume

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/zenibako/resolume-golang/messages"
)

// Sender delivers outbound OSC messages to Resolume. Delivery is fire-and-forget.
type Sender interface {
	Send(address string, value any) error
}

// Tracker mirrors the Resolume composition from the inbound OSC stream.
//
// ProcessMessage only enqueues; a single worker goroutine started by Start applies
// messages in arrival order. Accessors read the live tree under a read lock and may
// see state that is a few messages behind.
type Tracker struct {
	mu     sync.RWMutex
	tree   *tree
	router *router

	queue   *ingestQueue
	queries *correlator
	sender  Sender
	address *messages.OSCAddressBuilder
	metrics *Metrics

	now            func() time.Time
	playingWindow  time.Duration
	existThreshold int
	queryTimeout   time.Duration
	queryRetries   int
	retryPolicy    retrypolicy.RetryPolicy[Reply]

	runMu   sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

// Option configures a Tracker
type Option func(*Tracker)

// WithClock replaces time.Now, mostly for tests of the playing window
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithPlayingWindow sets how recent a transport heartbeat must be for a clip to count as playing
func WithPlayingWindow(d time.Duration) Option {
	return func(t *Tracker) { t.playingWindow = d }
}

// WithExistThreshold sets how many properties a clip needs before it counts as existing
func WithExistThreshold(n int) Option {
	return func(t *Tracker) { t.existThreshold = n }
}

// WithQueryTimeout sets the default query timeout
func WithQueryTimeout(d time.Duration) Option {
	return func(t *Tracker) { t.queryTimeout = d }
}

// WithQueryRetries sets how many times a timed-out query is re-sent (default 0)
func WithQueryRetries(n int) Option {
	return func(t *Tracker) { t.queryRetries = n }
}

// WithMetrics records ingestion and query counters
func WithMetrics(m *Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

// NewTracker creates a tracker. sender may be nil, in which case queries and commands fail.
func NewTracker(sender Sender, opts ...Option) *Tracker {
	t := &Tracker{
		tree:           newTree(),
		queue:          newIngestQueue(),
		queries:        newCorrelator(),
		sender:         sender,
		address:        messages.NewOSCAddressBuilder(""),
		now:            time.Now,
		playingWindow:  DefaultPlayingWindow,
		existThreshold: DefaultExistThreshold,
		queryTimeout:   DefaultQueryTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.retryPolicy = newQueryRetryPolicy(t.queryRetries)
	t.router = &router{
		tree:         t.tree,
		now:          t.now,
		metrics:      t.metrics,
		onDeckChange: t.clearLocked,
	}
	return t
}

// Start launches the worker goroutine. It stops when ctx is done or Close is called.
func (t *Tracker) Start(ctx context.Context) error {
	t.runMu.Lock()
	defer t.runMu.Unlock()

	if t.cancel != nil {
		select {
		case <-t.stopped:
			// The previous worker ended with its parent context
			t.cancel()
		default:
			return fmt.Errorf("tracker already running")
		}
	}
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.stopped = make(chan struct{})
	go t.run(ctx)
	log.Debug("Tracker worker started")
	return nil
}

// Close stops the worker and waits for it to exit
func (t *Tracker) Close() {
	t.runMu.Lock()
	defer t.runMu.Unlock()

	if t.cancel == nil {
		return
	}
	t.cancel()
	<-t.stopped
	t.cancel = nil
	log.Debug("Tracker worker stopped")
}

// ProcessMessage enqueues a decoded inbound message. It is safe to call from the transport goroutine.
func (t *Tracker) ProcessMessage(address string, floats []float32, ints []int32, strings []string) {
	t.metrics.received()
	n := t.queue.push(queueItem{msg: Message{
		Address: address,
		Floats:  floats,
		Ints:    ints,
		Strings: strings,
	}})
	t.metrics.setQueueDepth(n)
}

// enqueueControl runs fn on the worker after everything queued before it
func (t *Tracker) enqueueControl(fn func(*tree)) {
	t.queue.push(queueItem{control: fn})
}

// Flush waits until the worker has handled every message queued before the call.
// It returns early if the queue is cleared.
func (t *Tracker) Flush(ctx context.Context) error {
	done := make(chan struct{})
	t.queue.push(queueItem{control: func(*tree) {}, done: done})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Clear drops every tracked entity and all selection state, and discards queued messages
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clearLocked()
}

func (t *Tracker) clearLocked() {
	dropped := t.queue.drain()
	t.tree.reset()
	t.metrics.setQueueDepth(0)
	log.Debug("Cleared tracked state", "discarded", dropped)
}

// SetCurrentDeck overrides the current deck, clearing the tree if a different deck was active
func (t *Tracker) SetCurrentDeck(deck int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sel := &t.tree.selection
	if sel.deckInitialized && deck != sel.currentDeck {
		log.Infof("Manually changing deck from %d to %d - clearing all data", sel.currentDeck, deck)
		t.clearLocked()
	}
	sel.currentDeck = deck
	sel.deckInitialized = true
}

// DoesClipExist reports whether the clip at column in layer has been populated by Resolume
func (t *Tracker) DoesClipExist(column, layer int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tree.clip(column, layer).Exists(t.existThreshold)
}

// IsClipPlaying reports whether the clip is receiving transport heartbeats
func (t *Tracker) IsClipPlaying(column, layer int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tree.clip(column, layer).IsPlaying(t.now(), t.playingWindow)
}

// IsClipConnected reports whether column is the last connected clip of layer
func (t *Tracker) IsClipConnected(column, layer int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	l := t.tree.layer(layer)
	return l != nil && column > 0 && l.ConnectedClip == column
}

func (t *Tracker) IsColumnConnected(column int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return column > 0 && t.tree.selection.connectedColumn == column
}

// DoesLayerExist reports whether any data has been received for the layer
func (t *Tracker) DoesLayerExist(layer int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tree.layer(layer).Populated()
}

// LayerCount returns the highest layer id seen
func (t *Tracker) LayerCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.tree.layers)
}

// ColumnCount returns the highest clip index seen in any layer
func (t *Tracker) ColumnCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tree.columnCount()
}

func (t *Tracker) SelectedLayer() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tree.selection.selectedLayer
}

func (t *Tracker) SelectedColumn() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tree.selection.selectedColumn
}

func (t *Tracker) ConnectedColumn() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tree.selection.connectedColumn
}

// SelectedClip returns the layer and column of the selected clip, zero when none
func (t *Tracker) SelectedClip() (layer, column int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tree.selection.selectedClipLayer, t.tree.selection.selectedClip
}

func (t *Tracker) CurrentDeck() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tree.selection.currentDeck
}

func (t *Tracker) DeckInitialized() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tree.selection.deckInitialized
}

// ClipName returns the last reported name of a clip, or "" when unknown
func (t *Tracker) ClipName(column, layer int) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if c := t.tree.clip(column, layer); c != nil {
		return c.Name
	}
	return ""
}

// ClipProperty returns a clip property by its path below the clip, e.g. "transport/position"
func (t *Tracker) ClipProperty(column, layer int, key string) (PropertyValue, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if c := t.tree.clip(column, layer); c != nil {
		return c.Properties.Value(key)
	}
	return PropertyValue{}, false
}

// LayerProperty returns a layer property by its path below the layer, e.g. "video/opacity"
func (t *Tracker) LayerProperty(layer int, key string) (PropertyValue, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if l := t.tree.layer(layer); l != nil {
		return l.Properties.Value(key)
	}
	return PropertyValue{}, false
}

// LayerEffectProperty returns a property of a named effect on a layer
func (t *Tracker) LayerEffectProperty(layer int, effect, key string) (PropertyValue, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	l := t.tree.layer(layer)
	if l == nil {
		return PropertyValue{}, false
	}
	if e := findEffect(l.Effects, effect); e != nil {
		return e.Properties.Value(key)
	}
	return PropertyValue{}, false
}

// CompositionProperty returns a composition-level property such as "tempocontroller/tempo"
func (t *Tracker) CompositionProperty(key string) (PropertyValue, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tree.composition.Value(key)
}

func (t *Tracker) TempoControllerPlaying() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tree.composition.Int(messages.EndpointTempoPlay, 0) == 1
}

// SelectedEffects returns a copy of the effect chain of the most recently selected clip or layer
func (t *Tracker) SelectedEffects() []EffectSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return snapshotEffects(t.tree.selectedEffects())
}

// PendingQueries returns how many queries are waiting for a reply
func (t *Tracker) PendingQueries() int {
	return t.queries.outstanding()
}
