package resolume

import (
	"time"

	"github.com/zenibako/resolume-golang/messages"
)

// Defaults for the heuristic predicates. Both are observations about how Resolume
// reports state, not protocol guarantees.
const (
	// A clip counts as existing once more than this many properties have been reported
	DefaultExistThreshold = 3

	// A clip counts as playing while transport/position heartbeats arrive within this window
	DefaultPlayingWindow = 100 * time.Millisecond

	// Layer and clip ids above this are treated as corrupt and dropped
	MaxEntityID = 512
)

// Effect is a video effect on a layer or clip. ID is an assignment-order ordinal.
type Effect struct {
	ID         int
	Name       string
	Properties PropertyDictionary
}

// Clip is one cell of the clip grid; ID is its 1-based column within the layer
type Clip struct {
	ID         int
	Name       string
	Properties PropertyDictionary
	Effects    []*Effect

	lastPosition   float32
	lastPositionAt time.Time
}

// Layer holds clips indexed by id-1 and its own effect chain
type Layer struct {
	ID            int
	Properties    PropertyDictionary
	Effects       []*Effect
	Clips         []*Clip
	ConnectedClip int
}

func newEffect(id int, name string) *Effect {
	return &Effect{ID: id, Name: name, Properties: NewPropertyDictionary()}
}

func newClip(id int) *Clip {
	return &Clip{ID: id, Properties: NewPropertyDictionary()}
}

func newLayer(id int) *Layer {
	return &Layer{ID: id, Properties: NewPropertyDictionary()}
}

// getOrCreateEffect finds an effect by name, appending a new one when absent
func getOrCreateEffect(effects *[]*Effect, name string) *Effect {
	for _, e := range *effects {
		if e.Name == name {
			return e
		}
	}
	e := newEffect(len(*effects)+1, name)
	*effects = append(*effects, e)
	return e
}

func findEffect(effects []*Effect, name string) *Effect {
	for _, e := range effects {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// Exists reports whether Resolume has populated this clip with real data.
// Resolume sends a handful of properties for every slot, so the count is the only signal.
func (c *Clip) Exists(threshold int) bool {
	return c != nil && c.Properties.Len() > threshold
}

// IsPlaying reports whether a positive transport position was reported within window of now
func (c *Clip) IsPlaying(now time.Time, window time.Duration) bool {
	if c == nil || c.lastPositionAt.IsZero() {
		return false
	}
	return now.Sub(c.lastPositionAt) <= window && c.lastPosition > 0
}

// recordHeartbeat notes a transport/position update
func (c *Clip) recordHeartbeat(position float32, at time.Time) {
	c.lastPosition = position
	c.lastPositionAt = at
}

func (c *Clip) expireHeartbeat() {
	c.lastPositionAt = time.Time{}
}

// setProperty stores a clip property and tracks the playing heartbeat.
// A string name goes to Name only and does not count toward Exists.
func (c *Clip) setProperty(key string, floats []float32, ints []int32, strs []string, now time.Time) bool {
	if key == messages.EndpointName && len(strs) > 0 && len(floats) == 0 && len(ints) == 0 {
		c.Name = strs[0]
		return true
	}
	if !c.Properties.SetFromMessage(key, floats, ints, strs) {
		return false
	}
	if key == messages.EndpointTransportPosition {
		c.recordHeartbeat(c.Properties.Float(key, 0), now)
	}
	return true
}

// clip returns the clip at a 1-based id without creating it
func (l *Layer) clip(id int) *Clip {
	if id < 1 || id > len(l.Clips) {
		return nil
	}
	return l.Clips[id-1]
}

// getOrCreateClip grows the clip slice to id, filling gaps with empty clips
func (l *Layer) getOrCreateClip(id int) *Clip {
	if id < 1 {
		return nil
	}
	for len(l.Clips) < id {
		l.Clips = append(l.Clips, newClip(len(l.Clips)+1))
	}
	return l.Clips[id-1]
}

// Populated reports whether any data has been routed into this layer
func (l *Layer) Populated() bool {
	if l == nil {
		return false
	}
	if l.Properties.Len() > 0 || len(l.Effects) > 0 {
		return true
	}
	for _, c := range l.Clips {
		if c.Name != "" || c.Properties.Len() > 0 || len(c.Effects) > 0 {
			return true
		}
	}
	return false
}

// ExpireHeartbeatsExcept drops the playing state of every clip but keep.
// Resolume may still send a few positions for a clip that was just replaced.
func (l *Layer) ExpireHeartbeatsExcept(keep int) {
	for _, c := range l.Clips {
		if c.ID != keep {
			c.expireHeartbeat()
		}
	}
}

// tree is the mutable entity state. It is only written by the worker goroutine.
type tree struct {
	layers      []*Layer
	composition PropertyDictionary
	selection   selection
}

func newTree() *tree {
	return &tree{composition: NewPropertyDictionary()}
}

func (t *tree) layer(id int) *Layer {
	if id < 1 || id > len(t.layers) {
		return nil
	}
	return t.layers[id-1]
}

func (t *tree) getOrCreateLayer(id int) *Layer {
	if id < 1 {
		return nil
	}
	for len(t.layers) < id {
		t.layers = append(t.layers, newLayer(len(t.layers)+1))
	}
	return t.layers[id-1]
}

func (t *tree) clip(column, layer int) *Clip {
	l := t.layer(layer)
	if l == nil {
		return nil
	}
	return l.clip(column)
}

// columnCount is the highest clip index addressed in any layer
func (t *tree) columnCount() int {
	maxClips := 0
	for _, l := range t.layers {
		if len(l.Clips) > maxClips {
			maxClips = len(l.Clips)
		}
	}
	return maxClips
}

// reset drops every node and all selection state but keeps the deck identity
func (t *tree) reset() {
	t.layers = nil
	t.composition.Clear()
	deck, initialized := t.selection.currentDeck, t.selection.deckInitialized
	t.selection = selection{currentDeck: deck, deckInitialized: initialized}
}
