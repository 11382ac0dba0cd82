package messages

import (
	"strconv"
	"strings"
)

// OSC address constants for the Resolume composition address space

// Root segment every Resolume composition address starts with
const Root = "/composition"

// Top-level segments below the root
const (
	SegmentLayers         = "layers"
	SegmentClips          = "clips"
	SegmentColumns        = "columns"
	SegmentDecks          = "decks"
	SegmentSelectedLayer  = "selectedlayer"
	SegmentSelectedClip   = "selectedclip"
	SegmentSelectedColumn = "selectedcolumn"
	SegmentVideo          = "video"
	SegmentEffects        = "effects"
)

// Verbs and well-known endpoints
const (
	EndpointSelect  = "select"
	EndpointConnect = "connect"
	EndpointName    = "name"

	// Resolume resends this float while a clip plays
	EndpointTransportPosition = "transport/position"

	// Tempo controller play state, stored on the composition
	EndpointTempoPlay = "tempocontroller/play"
)

// QueryMarker is the payload that asks Resolume to report the current value of an address
const QueryMarker = "?"

// AddrSelectedLayerOpacity sets the opacity of whichever layer is selected
const AddrSelectedLayerOpacity = "/composition/selectedlayer/video/opacity"

// OSCAddressBuilder builds composition addresses for layers, clips, columns and decks
type OSCAddressBuilder struct {
	root string
}

// NewOSCAddressBuilder creates a new address builder. An empty root uses /composition.
func NewOSCAddressBuilder(root string) *OSCAddressBuilder {
	if root == "" {
		root = Root
	}
	return &OSCAddressBuilder{
		root: strings.TrimSuffix(root, "/"),
	}
}

func (b *OSCAddressBuilder) join(parts ...string) string {
	var sb strings.Builder
	sb.WriteString(b.root)
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p == "" {
			continue
		}
		sb.WriteByte('/')
		sb.WriteString(p)
	}
	return sb.String()
}

// Deck builds /composition/decks/<deck>/<endpoint>
func (b *OSCAddressBuilder) Deck(deck int, endpoint string) string {
	return b.join(SegmentDecks, strconv.Itoa(deck), endpoint)
}

// Column builds /composition/columns/<column>/<endpoint>
func (b *OSCAddressBuilder) Column(column int, endpoint string) string {
	return b.join(SegmentColumns, strconv.Itoa(column), endpoint)
}

// Layer builds /composition/layers/<layer>/<endpoint>
func (b *OSCAddressBuilder) Layer(layer int, endpoint string) string {
	return b.join(SegmentLayers, strconv.Itoa(layer), endpoint)
}

// Clip builds /composition/layers/<layer>/clips/<clip>/<endpoint>
func (b *OSCAddressBuilder) Clip(layer, clip int, endpoint string) string {
	return b.join(SegmentLayers, strconv.Itoa(layer), SegmentClips, strconv.Itoa(clip), endpoint)
}

// LayerEffect builds /composition/layers/<layer>/video/effects/<effect>/<endpoint>
func (b *OSCAddressBuilder) LayerEffect(layer int, effect, endpoint string) string {
	return b.join(SegmentLayers, strconv.Itoa(layer), SegmentVideo, SegmentEffects, effect, endpoint)
}

// ClipEffect builds /composition/layers/<layer>/clips/<clip>/video/effects/<effect>/<endpoint>
func (b *OSCAddressBuilder) ClipEffect(layer, clip int, effect, endpoint string) string {
	return b.join(SegmentLayers, strconv.Itoa(layer), SegmentClips, strconv.Itoa(clip),
		SegmentVideo, SegmentEffects, effect, endpoint)
}

// Composition builds /composition/<path>
func (b *OSCAddressBuilder) Composition(path string) string {
	return b.join(path)
}

// Root returns the root segment the builder prefixes every address with
func (b *OSCAddressBuilder) Root() string {
	return b.root
}

// SplitPath splits an OSC address into its non-empty segments
func SplitPath(address string) []string {
	if address == "" || address[0] != '/' {
		return nil
	}
	raw := strings.Split(address[1:], "/")
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
