package resolume

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/zenibako/resolume-golang/messages"
)

// Outbound control messages. These only tell Resolume what to do; the tracked state
// changes when Resolume echoes the result back.

func (t *Tracker) send(address string, value any) error {
	if t.sender == nil {
		return ErrNoSender
	}
	log.Debugf("Sending %s %v", address, value)
	if err := t.sender.Send(address, value); err != nil {
		return fmt.Errorf("failed to send %s: %w", address, err)
	}
	return nil
}

// TriggerClip connects the clip at column in layer. Heartbeats of the layer's other
// clips are expired so a replaced clip stops reporting as playing right away.
func (t *Tracker) TriggerClip(column, layer int, velocity float32) error {
	if velocity <= 0 {
		velocity = 1
	}
	if err := t.send(t.address.Clip(layer, column, messages.EndpointConnect), velocity); err != nil {
		return err
	}
	t.enqueueControl(func(tr *tree) {
		if l := tr.layer(layer); l != nil {
			l.ExpireHeartbeatsExcept(column)
		}
	})
	return nil
}

func (t *Tracker) SelectClip(column, layer int) error {
	return t.send(t.address.Clip(layer, column, messages.EndpointSelect), int32(1))
}

func (t *Tracker) SelectLayer(layer int) error {
	return t.send(t.address.Layer(layer, messages.EndpointSelect), int32(1))
}

func (t *Tracker) SelectColumn(column int) error {
	return t.send(t.address.Column(column, messages.EndpointSelect), int32(1))
}

// ConnectColumn triggers every clip in a column
func (t *Tracker) ConnectColumn(column int) error {
	return t.send(t.address.Column(column, messages.EndpointConnect), int32(1))
}

func (t *Tracker) SelectDeck(deck int) error {
	if deck < 1 {
		return fmt.Errorf("invalid deck %d", deck)
	}
	return t.send(t.address.Deck(deck, messages.EndpointSelect), int32(1))
}

// NextDeck selects the deck after the current one
func (t *Tracker) NextDeck() error {
	return t.SelectDeck(t.CurrentDeck() + 1)
}

// PreviousDeck selects the deck before the current one. It does nothing on deck 1.
func (t *Tracker) PreviousDeck() error {
	deck := t.CurrentDeck()
	if deck <= 1 {
		return nil
	}
	return t.SelectDeck(deck - 1)
}

// SetSelectedLayerOpacity sets the opacity of the selected layer, clamped to [0, 1]
func (t *Tracker) SetSelectedLayerOpacity(opacity float32) error {
	return t.send(messages.AddrSelectedLayerOpacity, min(max(opacity, 0), 1))
}

// OpacityFromStrip maps a touch strip position in [0, 1] to an opacity. The bottom
// and top quarters are dead zones pinned to 0 and 1.
func OpacityFromStrip(position float32) float32 {
	switch {
	case position <= 0.25:
		return 0
	case position >= 0.75:
		return 1
	}
	return (position - 0.25) / 0.5
}
