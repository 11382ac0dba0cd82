package resolume

import (
	"strings"

	"github.com/charmbracelet/log"
	"github.com/zenibako/resolume-golang/messages"
)

type selectionKind int

const (
	selectionNone selectionKind = iota
	selectionLayer
	selectionClip
)

// selection holds the global select/connect scalars. Only one entity of each kind
// can be selected or connected at a time, so scalars replace per-node flags.
type selection struct {
	selectedColumn    int
	connectedColumn   int
	selectedLayer     int
	selectedClipLayer int
	selectedClip      int
	last              selectionKind

	currentDeck     int
	deckInitialized bool
}

// asserts reports whether a select/connect payload means "on".
// An empty payload counts as on; Resolume sends 0 when something is deselected.
func asserts(floats []float32, ints []int32, strs []string) bool {
	switch {
	case len(floats) > 0:
		return floats[0] != 0
	case len(ints) > 0:
		return ints[0] != 0
	case len(strs) > 0:
		s := strings.ToLower(strings.TrimSpace(strs[0]))
		return s != "" && s != "0" && s != "false"
	}
	return true
}

func isVerb(segment string) bool {
	return segment == messages.EndpointSelect || segment == messages.EndpointConnect
}

// applySelection handles the recognized select/connect shapes and every deck address.
// It returns false when the message is not one of them, or is a layer or clip
// select/connect that does not assert, and should be routed into the tree.
func (r *router) applySelection(parts []string, msg Message) bool {
	on := asserts(msg.Floats, msg.Ints, msg.Strings)
	sel := &r.tree.selection

	switch {
	case parts[0] == messages.SegmentDecks:
		if len(parts) != 3 || parts[2] != messages.EndpointSelect {
			r.drop(msg, dropUnhandled)
			return true
		}
		deck, ok := r.parseID(parts[1], msg)
		if !ok {
			return true
		}
		if !on {
			r.drop(msg, dropNotAsserted)
			return true
		}
		if !sel.deckInitialized || deck != sel.currentDeck {
			log.Info("Deck changed, clearing tracked state", "from", sel.currentDeck, "to", deck)
			r.onDeckChange()
			sel.currentDeck = deck
			sel.deckInitialized = true
			r.metrics.deckChanged()
		}
		return true

	case parts[0] == messages.SegmentColumns && len(parts) == 3 && isVerb(parts[2]):
		column, ok := r.parseID(parts[1], msg)
		if !ok {
			return true
		}
		if !on {
			r.drop(msg, dropNotAsserted)
			return true
		}
		if parts[2] == messages.EndpointSelect {
			sel.selectedColumn = column
			return true
		}
		sel.connectedColumn = column
		for _, l := range r.tree.layers {
			l.ConnectedClip = column
		}
		return true

	case parts[0] == messages.SegmentLayers && len(parts) == 3 && parts[2] == messages.EndpointSelect:
		layer, ok := r.parseID(parts[1], msg)
		if !ok {
			return true
		}
		// A deselect is an ordinary layer property
		if !on {
			return false
		}
		sel.selectedLayer = layer
		sel.last = selectionLayer
		return true

	case parts[0] == messages.SegmentLayers && len(parts) == 5 && parts[2] == messages.SegmentClips && isVerb(parts[4]):
		layer, ok := r.parseID(parts[1], msg)
		if !ok {
			return true
		}
		clip, ok := r.parseID(parts[3], msg)
		if !ok {
			return true
		}
		if !on {
			return false
		}
		if parts[4] == messages.EndpointSelect {
			sel.selectedClipLayer = layer
			sel.selectedClip = clip
			sel.last = selectionClip
			return true
		}
		// Playing state comes from the transport heartbeat, not from this message
		if l := r.tree.layer(layer); l != nil {
			l.ConnectedClip = clip
		}
		return true
	}
	return false
}

// selectedEffects returns the effect chain of the most recently selected clip or layer,
// falling back to whichever one is selected.
func (t *tree) selectedEffects() []*Effect {
	sel := t.selection
	clipEffects := func() ([]*Effect, bool) {
		if sel.selectedClipLayer <= 0 || sel.selectedClip <= 0 {
			return nil, false
		}
		c := t.clip(sel.selectedClip, sel.selectedClipLayer)
		if c == nil {
			return nil, false
		}
		return c.Effects, true
	}
	layerEffects := func() ([]*Effect, bool) {
		l := t.layer(sel.selectedLayer)
		if l == nil {
			return nil, false
		}
		return l.Effects, true
	}

	switch sel.last {
	case selectionClip:
		if e, ok := clipEffects(); ok {
			return e
		}
	case selectionLayer:
		if e, ok := layerEffects(); ok {
			return e
		}
	}
	if e, ok := clipEffects(); ok {
		return e
	}
	e, _ := layerEffects()
	return e
}
