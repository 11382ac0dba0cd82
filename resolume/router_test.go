package resolume

import (
	"reflect"
	"testing"
)

func fmsg(address string, v float32) Message { return Message{Address: address, Floats: []float32{v}} }
func imsg(address string, v int32) Message   { return Message{Address: address, Ints: []int32{v}} }
func smsg(address string, v string) Message  { return Message{Address: address, Strings: []string{v}} }

// apply enqueues msgs and runs the worker step on the calling goroutine until the queue is empty
func apply(tr *Tracker, msgs ...Message) {
	for _, m := range msgs {
		tr.ProcessMessage(m.Address, m.Floats, m.Ints, m.Strings)
	}
	for tr.step() {
	}
}

func TestRouterLazyGrowth(t *testing.T) {
	tr := NewTracker(nil)
	apply(tr, smsg("/composition/layers/3/clips/5/name", "Intro"))

	if got := tr.LayerCount(); got != 3 {
		t.Errorf("LayerCount() = %d, want 3", got)
	}
	if got := tr.ColumnCount(); got != 5 {
		t.Errorf("ColumnCount() = %d, want 5", got)
	}
	if got := tr.ClipName(5, 3); got != "Intro" {
		t.Errorf("ClipName(5, 3) = %q, want Intro", got)
	}
	if v, ok := tr.ClipProperty(5, 3, "name"); ok {
		t.Errorf("Name should not be stored as a property, got %v", v)
	}

	// Gap fillers exist as nodes but carry no data
	if tr.DoesLayerExist(1) {
		t.Errorf("Layer 1 was only created to fill a gap and should not report as existing")
	}
	if !tr.DoesLayerExist(3) {
		t.Errorf("Layer 3 received data and should exist")
	}
	if tr.ClipName(2, 3) != "" {
		t.Errorf("Gap clip should have no name")
	}
}

func TestRouterOutOfOrderIDs(t *testing.T) {
	tr := NewTracker(nil)
	apply(tr,
		fmsg("/composition/layers/2/video/opacity", 0.5),
		fmsg("/composition/layers/1/video/opacity", 0.25),
		smsg("/composition/layers/1/clips/4/name", "B"),
		smsg("/composition/layers/1/clips/2/name", "A"),
	)

	tests := []struct {
		layer int
		want  float32
	}{
		{1, 0.25},
		{2, 0.5},
	}
	for _, tt := range tests {
		v, ok := tr.LayerProperty(tt.layer, "video/opacity")
		if !ok || v != FloatValue(tt.want) {
			t.Errorf("layer %d opacity = %v %v, want %v", tt.layer, v, ok, tt.want)
		}
	}
	if tr.ClipName(2, 1) != "A" || tr.ClipName(4, 1) != "B" {
		t.Errorf("Clip names not stored at their own ids: %q %q", tr.ClipName(2, 1), tr.ClipName(4, 1))
	}
}

func TestRouterIdempotent(t *testing.T) {
	msgs := []Message{
		smsg("/composition/layers/1/clips/1/name", "A"),
		fmsg("/composition/layers/1/video/effects/blur/amount", 0.3),
		imsg("/composition/layers/1/select", 1),
		imsg("/composition/columns/2/connect", 1),
		imsg("/composition/layers/1/clips/1/select", 1),
	}

	once := NewTracker(nil)
	apply(once, msgs...)
	twice := NewTracker(nil)
	apply(twice, msgs...)
	apply(twice, msgs...)

	if !reflect.DeepEqual(once.Snapshot(), twice.Snapshot()) {
		t.Errorf("Reapplying the same messages changed state:\nonce:  %+v\ntwice: %+v", once.Snapshot(), twice.Snapshot())
	}
}

func TestRouterEffects(t *testing.T) {
	tr := NewTracker(nil)
	apply(tr,
		fmsg("/composition/layers/1/video/effects/blur/amount", 0.3),
		imsg("/composition/layers/1/video/effects/blur/bypassed", 0),
		fmsg("/composition/layers/1/video/effects/transform/scale", 1.5),
		fmsg("/composition/layers/1/clips/2/video/effects/hue/shift", 0.1),
	)

	if v, ok := tr.LayerEffectProperty(1, "blur", "amount"); !ok || v != FloatValue(0.3) {
		t.Errorf("blur amount = %v %v", v, ok)
	}
	if v, ok := tr.LayerEffectProperty(1, "blur", "bypassed"); !ok || v != IntValue(0) {
		t.Errorf("blur bypassed = %v %v", v, ok)
	}
	if _, ok := tr.LayerProperty(1, "video/effects/blur/amount"); ok {
		t.Errorf("Effect property leaked into layer properties")
	}

	s := tr.Snapshot()
	effects := s.Layers[0].Effects
	if len(effects) != 2 {
		t.Fatalf("Expected 2 layer effects, got %d", len(effects))
	}
	if effects[0].Name != "blur" || effects[0].ID != 1 || effects[1].Name != "transform" || effects[1].ID != 2 {
		t.Errorf("Effects not numbered in creation order: %+v", effects)
	}

	clipEffects := s.Layers[0].Clips[1].Effects
	if len(clipEffects) != 1 || clipEffects[0].Name != "hue" {
		t.Errorf("Expected clip effect hue, got %+v", clipEffects)
	}
}

func TestRouterCompositionProperties(t *testing.T) {
	tr := NewTracker(nil)
	apply(tr,
		fmsg("/composition/tempocontroller/tempo", 128),
		imsg("/composition/tempocontroller/play", 1),
		fmsg("/composition/master", 0.8),
	)

	if v, ok := tr.CompositionProperty("tempocontroller/tempo"); !ok || v != FloatValue(128) {
		t.Errorf("tempo = %v %v", v, ok)
	}
	if !tr.TempoControllerPlaying() {
		t.Errorf("Expected tempo controller to be playing")
	}
	if tr.LayerCount() != 0 {
		t.Errorf("Composition properties must not create layers")
	}

	apply(tr, imsg("/composition/tempocontroller/play", 0))
	if tr.TempoControllerPlaying() {
		t.Errorf("Expected tempo controller to be stopped")
	}
}

func TestRouterDropsMalformed(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{"wrong root", fmsg("/layers/1/video/opacity", 1)},
		{"no leading slash", fmsg("composition/layers/1/video/opacity", 1)},
		{"root only", fmsg("/composition", 1)},
		{"non numeric layer", fmsg("/composition/layers/x/video/opacity", 1)},
		{"zero layer", fmsg("/composition/layers/0/video/opacity", 1)},
		{"negative layer", fmsg("/composition/layers/-1/video/opacity", 1)},
		{"layer above ceiling", fmsg("/composition/layers/513/video/opacity", 1)},
		{"layers without id", fmsg("/composition/layers", 1)},
		{"column property", smsg("/composition/columns/1/name", "Column 1")},
		{"selected layer alias", fmsg("/composition/selectedlayer/video/opacity", 1)},
		{"selected clip alias", smsg("/composition/selectedclip/name", "A")},
		{"deck name", smsg("/composition/decks/1/name", "Deck 1")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(nil)
			apply(tr, tt.msg)
			s := tr.Snapshot()
			if len(s.Layers) != 0 || len(s.Composition) != 0 {
				t.Errorf("Expected %s to be dropped, got %+v", tt.msg.Address, s)
			}
		})
	}
}

func TestRouterDropsClipWithBadID(t *testing.T) {
	tests := []struct {
		name    string
		address string
	}{
		{"non numeric clip", "/composition/layers/1/clips/selected/name"},
		{"zero clip", "/composition/layers/1/clips/0/name"},
		{"clip above ceiling", "/composition/layers/1/clips/600/name"},
		{"clips without id", "/composition/layers/1/clips"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(nil)
			apply(tr, smsg(tt.address, "A"))
			if tr.ColumnCount() != 0 {
				t.Errorf("Expected no clips, got ColumnCount %d", tr.ColumnCount())
			}
			if tr.DoesLayerExist(1) {
				t.Errorf("Dropped clip message should not populate the layer")
			}
		})
	}
}

func TestRouterEmptyPayloadStoresNothing(t *testing.T) {
	tr := NewTracker(nil)
	apply(tr, Message{Address: "/composition/layers/1/video/opacity"})

	if _, ok := tr.LayerProperty(1, "video/opacity"); ok {
		t.Errorf("Empty payload should not store a property")
	}
}

func TestRouterEmptyRemainderKey(t *testing.T) {
	tr := NewTracker(nil)
	apply(tr, fmsg("/composition/layers/2", 1))

	if v, ok := tr.LayerProperty(2, ""); !ok || v != FloatValue(1) {
		t.Errorf("Expected value under empty key, got %v %v", v, ok)
	}
}

func TestRouterVerbsInOtherShapesAreProperties(t *testing.T) {
	tr := NewTracker(nil)
	apply(tr,
		imsg("/composition/layers/1/clips/2/connected", 3),
		imsg("/composition/layers/1/selected", 1),
		imsg("/composition/layers/1/video/effects/blur/select", 1),
	)

	if v, ok := tr.ClipProperty(2, 1, "connected"); !ok || v != IntValue(3) {
		t.Errorf("clip connected property = %v %v", v, ok)
	}
	if v, ok := tr.LayerProperty(1, "selected"); !ok || v != IntValue(1) {
		t.Errorf("layer selected property = %v %v", v, ok)
	}
	if v, ok := tr.LayerEffectProperty(1, "blur", "select"); !ok || v != IntValue(1) {
		t.Errorf("effect select property = %v %v", v, ok)
	}
	if tr.SelectedLayer() != 0 {
		t.Errorf("Property writes must not change selection, got layer %d", tr.SelectedLayer())
	}
}

func TestClipExistsThreshold(t *testing.T) {
	tr := NewTracker(nil)
	apply(tr,
		smsg("/composition/layers/1/clips/1/name", "Intro"),
		fmsg("/composition/layers/1/clips/1/transport/position", 0.2),
		fmsg("/composition/layers/1/clips/1/video/opacity", 1),
		imsg("/composition/layers/1/clips/1/thumbnail", 1),
	)
	if tr.DoesClipExist(1, 1) {
		t.Errorf("Name plus 3 properties should not exist at the default threshold")
	}

	apply(tr, fmsg("/composition/layers/1/clips/1/speed", 1))
	if !tr.DoesClipExist(1, 1) {
		t.Errorf("Name plus 4 properties should exist")
	}

	lenient := NewTracker(nil, WithExistThreshold(0))
	apply(lenient, smsg("/composition/layers/1/clips/1/name", "A"))
	if lenient.DoesClipExist(1, 1) {
		t.Errorf("A name alone is not a property, even at threshold 0")
	}
	apply(lenient, fmsg("/composition/layers/1/clips/1/speed", 1))
	if !lenient.DoesClipExist(1, 1) {
		t.Errorf("Clip with 1 property should exist at threshold 0")
	}
}

func TestClipNameWithNonStringPayload(t *testing.T) {
	tr := NewTracker(nil)
	apply(tr, imsg("/composition/layers/1/clips/1/name", 7))

	if tr.ClipName(1, 1) != "" {
		t.Errorf("Non-string name should not set the clip name, got %q", tr.ClipName(1, 1))
	}
	if v, ok := tr.ClipProperty(1, 1, "name"); !ok || v != IntValue(7) {
		t.Errorf("Non-string name should be stored as a property, got %v %v", v, ok)
	}
}

func TestAccessorsTolerateUnknownIDs(t *testing.T) {
	tr := NewTracker(nil)

	if tr.DoesClipExist(3, 7) || tr.IsClipPlaying(3, 7) || tr.IsClipConnected(3, 7) {
		t.Errorf("Unknown clip should report false")
	}
	if tr.IsColumnConnected(0) || tr.IsColumnConnected(4) {
		t.Errorf("Unknown column should report false")
	}
	if tr.DoesLayerExist(-1) || tr.DoesLayerExist(0) || tr.DoesLayerExist(9) {
		t.Errorf("Unknown layer should report false")
	}
	if tr.ClipName(1, 1) != "" {
		t.Errorf("Unknown clip should have no name")
	}
	if _, ok := tr.LayerEffectProperty(1, "blur", "amount"); ok {
		t.Errorf("Unknown layer effect should report missing")
	}
	if tr.SelectedEffects() != nil {
		t.Errorf("Expected no selected effects")
	}
}
