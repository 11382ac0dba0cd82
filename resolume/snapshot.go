package resolume

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Snapshot is a point-in-time copy of the tracked state.
// The caller can serialize it to JSON or any other format.
type Snapshot struct {
	Deck            int              `json:"deck"`
	DeckInitialized bool             `json:"deckInitialized"`
	SelectedLayer   int              `json:"selectedLayer,omitempty"`
	SelectedColumn  int              `json:"selectedColumn,omitempty"`
	ConnectedColumn int              `json:"connectedColumn,omitempty"`
	SelectedClip    *ClipRef         `json:"selectedClip,omitempty"`
	Composition     map[string]any   `json:"composition,omitempty"`
	Layers          []LayerSnapshot  `json:"layers"`
	SelectedEffects []EffectSnapshot `json:"selectedEffects,omitempty"`
}

type ClipRef struct {
	Layer  int `json:"layer"`
	Column int `json:"column"`
}

type LayerSnapshot struct {
	ID            int              `json:"id"`
	ConnectedClip int              `json:"connectedClip,omitempty"`
	Properties    map[string]any   `json:"properties,omitempty"`
	Effects       []EffectSnapshot `json:"effects,omitempty"`
	Clips         []ClipSnapshot   `json:"clips,omitempty"`
}

type ClipSnapshot struct {
	ID         int              `json:"id"`
	Name       string           `json:"name,omitempty"`
	Exists     bool             `json:"exists"`
	Playing    bool             `json:"playing"`
	Properties map[string]any   `json:"properties,omitempty"`
	Effects    []EffectSnapshot `json:"effects,omitempty"`
}

type EffectSnapshot struct {
	ID         int            `json:"id"`
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties,omitempty"`
}

func snapshotProperties(d *PropertyDictionary) map[string]any {
	if d.Len() == 0 {
		return nil
	}
	out := make(map[string]any, d.Len())
	for k, v := range d.values {
		out[k] = v.Any()
	}
	return out
}

func snapshotEffects(effects []*Effect) []EffectSnapshot {
	if len(effects) == 0 {
		return nil
	}
	out := make([]EffectSnapshot, 0, len(effects))
	for _, e := range effects {
		out = append(out, EffectSnapshot{
			ID:         e.ID,
			Name:       e.Name,
			Properties: snapshotProperties(&e.Properties),
		})
	}
	return out
}

// Snapshot copies the current tree and selection state
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := t.now()
	sel := t.tree.selection
	s := Snapshot{
		Deck:            sel.currentDeck,
		DeckInitialized: sel.deckInitialized,
		SelectedLayer:   sel.selectedLayer,
		SelectedColumn:  sel.selectedColumn,
		ConnectedColumn: sel.connectedColumn,
		Composition:     snapshotProperties(&t.tree.composition),
		Layers:          make([]LayerSnapshot, 0, len(t.tree.layers)),
		SelectedEffects: snapshotEffects(t.tree.selectedEffects()),
	}
	if sel.selectedClip > 0 {
		s.SelectedClip = &ClipRef{Layer: sel.selectedClipLayer, Column: sel.selectedClip}
	}

	for _, l := range t.tree.layers {
		ls := LayerSnapshot{
			ID:            l.ID,
			ConnectedClip: l.ConnectedClip,
			Properties:    snapshotProperties(&l.Properties),
			Effects:       snapshotEffects(l.Effects),
		}
		for _, c := range l.Clips {
			ls.Clips = append(ls.Clips, ClipSnapshot{
				ID:         c.ID,
				Name:       c.Name,
				Exists:     c.Exists(t.existThreshold),
				Playing:    c.IsPlaying(now, t.playingWindow),
				Properties: snapshotProperties(&c.Properties),
				Effects:    snapshotEffects(c.Effects),
			})
		}
		s.Layers = append(s.Layers, ls)
	}
	return s
}

// ToJSON converts the current snapshot to JSON
func (t *Tracker) ToJSON(indent bool) (string, error) {
	data := t.Snapshot()
	var result []byte
	var err error

	if indent {
		result, err = json.MarshalIndent(data, "", "  ")
	} else {
		result, err = json.Marshal(data)
	}

	if err != nil {
		return "", fmt.Errorf("failed to marshal tracker snapshot: %w", err)
	}

	return string(result), nil
}

// Print writes a human readable dump of the tree. Only clips that exist are listed.
func (t *Tracker) Print(w io.Writer) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := t.now()
	sel := t.tree.selection
	var b strings.Builder

	fmt.Fprintf(&b, "Deck %d", sel.currentDeck)
	if !sel.deckInitialized {
		b.WriteString(" (not initialized)")
	}
	b.WriteByte('\n')
	fmt.Fprintf(&b, "Selected layer %d, column %d, connected column %d\n",
		sel.selectedLayer, sel.selectedColumn, sel.connectedColumn)
	printProperties(&b, "  ", &t.tree.composition)

	for _, l := range t.tree.layers {
		fmt.Fprintf(&b, "Layer %d", l.ID)
		if l.ID == sel.selectedLayer {
			b.WriteString(" [selected]")
		}
		b.WriteByte('\n')
		printProperties(&b, "    ", &l.Properties)
		printEffects(&b, "    ", l.Effects)

		for _, c := range l.Clips {
			if !c.Exists(t.existThreshold) {
				continue
			}
			fmt.Fprintf(&b, "  Clip %d %q", c.ID, c.Name)
			if c.IsPlaying(now, t.playingWindow) {
				b.WriteString(" [playing]")
			}
			if l.ConnectedClip == c.ID {
				b.WriteString(" [connected]")
			}
			if sel.selectedClipLayer == l.ID && sel.selectedClip == c.ID {
				b.WriteString(" [selected]")
			}
			b.WriteByte('\n')
			printProperties(&b, "      ", &c.Properties)
			printEffects(&b, "      ", c.Effects)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func printProperties(b *strings.Builder, indent string, d *PropertyDictionary) {
	for _, k := range d.Keys() {
		fmt.Fprintf(b, "%s%s = %s\n", indent, k, d.AsString(k))
	}
}

func printEffects(b *strings.Builder, indent string, effects []*Effect) {
	for _, e := range effects {
		fmt.Fprintf(b, "%sEffect %d %s\n", indent, e.ID, e.Name)
		printProperties(b, indent+"  ", &e.Properties)
	}
}
