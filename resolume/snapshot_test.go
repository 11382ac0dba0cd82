package resolume

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func populatedTracker(t *testing.T) *Tracker {
	t.Helper()
	clock := newFakeClock()
	tr := NewTracker(nil, WithClock(clock.Now), WithExistThreshold(0))
	apply(tr, imsg("/composition/decks/1/select", 1))
	apply(tr,
		fmsg("/composition/tempocontroller/tempo", 128),
		fmsg("/composition/layers/1/video/opacity", 0.8),
		fmsg("/composition/layers/1/video/effects/blur/amount", 0.3),
		smsg("/composition/layers/1/clips/1/name", "Intro"),
		fmsg("/composition/layers/1/clips/1/transport/position", 0.2),
		smsg("/composition/layers/1/clips/2/name", "Empty"),
		imsg("/composition/layers/1/select", 1),
		imsg("/composition/layers/1/clips/1/connect", 1),
		imsg("/composition/layers/1/clips/1/select", 1),
	)
	return tr
}

func TestSnapshot(t *testing.T) {
	tr := populatedTracker(t)
	s := tr.Snapshot()

	if s.Deck != 1 || !s.DeckInitialized {
		t.Errorf("Deck = %d (%v), want 1", s.Deck, s.DeckInitialized)
	}
	if s.SelectedLayer != 1 {
		t.Errorf("SelectedLayer = %d, want 1", s.SelectedLayer)
	}
	if s.SelectedClip == nil || *s.SelectedClip != (ClipRef{Layer: 1, Column: 1}) {
		t.Errorf("SelectedClip = %+v", s.SelectedClip)
	}
	if s.Composition["tempocontroller/tempo"] != float32(128) {
		t.Errorf("Composition = %v", s.Composition)
	}
	if len(s.Layers) != 1 {
		t.Fatalf("Expected 1 layer, got %d", len(s.Layers))
	}

	layer := s.Layers[0]
	if layer.ConnectedClip != 1 || layer.Properties["video/opacity"] != float32(0.8) {
		t.Errorf("Layer = %+v", layer)
	}
	if len(layer.Clips) != 2 {
		t.Fatalf("Expected 2 clips, got %d", len(layer.Clips))
	}
	intro := layer.Clips[0]
	if intro.Name != "Intro" || !intro.Exists || !intro.Playing {
		t.Errorf("Clip 1 = %+v", intro)
	}
	if layer.Clips[1].Playing {
		t.Errorf("Clip 2 has no heartbeat and should not play")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	tr := populatedTracker(t)
	s := tr.Snapshot()
	s.Layers[0].Properties["video/opacity"] = float32(0)

	if v, _ := tr.LayerProperty(1, "video/opacity"); v != FloatValue(0.8) {
		t.Errorf("Mutating a snapshot changed the tracker: %v", v)
	}
}

func TestToJSON(t *testing.T) {
	tr := populatedTracker(t)

	for _, indent := range []bool{false, true} {
		out, err := tr.ToJSON(indent)
		if err != nil {
			t.Fatalf("ToJSON(%v) failed: %v", indent, err)
		}
		if indent != strings.Contains(out, "\n  ") {
			t.Errorf("ToJSON(%v) indentation mismatch", indent)
		}

		var decoded Snapshot
		if err := json.Unmarshal([]byte(out), &decoded); err != nil {
			t.Fatalf("ToJSON output is not valid JSON: %v", err)
		}
		if len(decoded.Layers) != 1 || decoded.Layers[0].Clips[0].Name != "Intro" {
			t.Errorf("Decoded snapshot lost data: %+v", decoded)
		}
	}
}

func TestPrint(t *testing.T) {
	tr := populatedTracker(t)

	var buf bytes.Buffer
	if err := tr.Print(&buf); err != nil {
		t.Fatalf("Print failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Deck 1\n",
		"tempocontroller/tempo = 128 (float)",
		"Layer 1 [selected]",
		"Effect 1 blur",
		`Clip 1 "Intro" [playing] [connected] [selected]`,
		"transport/position = 0.2 (float)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Print output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintSkipsMissingClips(t *testing.T) {
	tr := NewTracker(nil)
	apply(tr, smsg("/composition/layers/1/clips/3/name", "Sparse"))

	var buf bytes.Buffer
	if err := tr.Print(&buf); err != nil {
		t.Fatalf("Print failed: %v", err)
	}
	if strings.Contains(buf.String(), "Clip") {
		t.Errorf("Clips below the exist threshold should not be printed:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "(not initialized)") {
		t.Errorf("Expected uninitialized deck marker:\n%s", buf.String())
	}
}
