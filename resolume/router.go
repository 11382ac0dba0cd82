package resolume

import (
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/zenibako/resolume-golang/messages"
)

// Message is a decoded inbound OSC message. Resolume sends single-valued messages,
// so only the first element of the first non-empty array is used.
type Message struct {
	Address string
	Floats  []float32
	Ints    []int32
	Strings []string
}

// Reasons a message is dropped, used as the metrics label
const (
	dropRoot        = "root"
	dropMalformedID = "malformed_id"
	dropIDCeiling   = "id_ceiling"
	dropUnhandled   = "unhandled"
	dropNotAsserted = "not_asserted"
	dropEmpty       = "empty_payload"
)

var rootSegment = strings.TrimPrefix(messages.Root, "/")

// router applies inbound messages to the tree. It runs on the worker goroutine only.
type router struct {
	tree         *tree
	now          func() time.Time
	metrics      *Metrics
	onDeckChange func()
}

func (r *router) drop(msg Message, reason string) {
	log.Debug("Dropped message", "address", msg.Address, "reason", reason)
	r.metrics.dropped(reason)
}

// parseID parses a 1-based layer/clip/column/deck id segment
func (r *router) parseID(segment string, msg Message) (int, bool) {
	id, err := strconv.Atoi(segment)
	if err != nil || id < 1 {
		r.drop(msg, dropMalformedID)
		return 0, false
	}
	if id > MaxEntityID {
		log.Warn("Ignoring message with id above ceiling", "address", msg.Address, "id", id, "max", MaxEntityID)
		r.metrics.dropped(dropIDCeiling)
		return 0, false
	}
	return id, true
}

// route dispatches one message to the selection state or the entity tree
func (r *router) route(msg Message) {
	parts := messages.SplitPath(msg.Address)
	if len(parts) < 2 || parts[0] != rootSegment {
		r.drop(msg, dropRoot)
		return
	}
	parts = parts[1:]

	if r.applySelection(parts, msg) {
		return
	}

	var stored bool
	switch parts[0] {
	case messages.SegmentLayers:
		if len(parts) < 2 {
			r.drop(msg, dropUnhandled)
			return
		}
		id, ok := r.parseID(parts[1], msg)
		if !ok {
			return
		}
		stored = r.routeLayer(r.tree.getOrCreateLayer(id), parts[2:], msg)
	case messages.SegmentColumns, messages.SegmentDecks,
		messages.SegmentSelectedLayer, messages.SegmentSelectedClip, messages.SegmentSelectedColumn:
		r.drop(msg, dropUnhandled)
	default:
		stored = r.store(&r.tree.composition, strings.Join(parts, "/"), msg)
	}
	if stored {
		r.metrics.routed()
	}
}

func (r *router) routeLayer(layer *Layer, rest []string, msg Message) bool {
	if len(rest) > 0 && rest[0] == messages.SegmentClips {
		if len(rest) < 2 {
			r.drop(msg, dropUnhandled)
			return false
		}
		// Non-numeric clip segments (e.g. clips/selected) are sub-addresses we do not model
		id, ok := r.parseID(rest[1], msg)
		if !ok {
			return false
		}
		return r.routeClip(layer.getOrCreateClip(id), rest[2:], msg)
	}
	if name, remainder, ok := effectPath(rest); ok {
		return r.store(&getOrCreateEffect(&layer.Effects, name).Properties, remainder, msg)
	}
	return r.store(&layer.Properties, strings.Join(rest, "/"), msg)
}

func (r *router) routeClip(clip *Clip, rest []string, msg Message) bool {
	if name, remainder, ok := effectPath(rest); ok {
		return r.store(&getOrCreateEffect(&clip.Effects, name).Properties, remainder, msg)
	}
	if !clip.setProperty(strings.Join(rest, "/"), msg.Floats, msg.Ints, msg.Strings, r.now()) {
		r.drop(msg, dropEmpty)
		return false
	}
	return true
}

func (r *router) store(d *PropertyDictionary, key string, msg Message) bool {
	if !d.SetFromMessage(key, msg.Floats, msg.Ints, msg.Strings) {
		r.drop(msg, dropEmpty)
		return false
	}
	return true
}

// effectPath matches video/effects/<name>/... and returns the effect name and the joined remainder
func effectPath(rest []string) (string, string, bool) {
	if len(rest) < 3 || rest[0] != messages.SegmentVideo || rest[1] != messages.SegmentEffects {
		return "", "", false
	}
	return rest[2], strings.Join(rest[3:], "/"), true
}
