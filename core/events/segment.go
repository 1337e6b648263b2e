package events

import "github.com/koscakluka/ema-playback/core/segments"

const (
	// KindSegmentBuffered identifies a segment leaving the buffering pipeline.
	KindSegmentBuffered Kind = "segment-buffered"
	// KindSegmentStarted identifies the start of audible output for a segment.
	KindSegmentStarted Kind = "segment-started"
)

// Mechanism names the step of the fallback cascade that produced audio.
type Mechanism string

const (
	MechanismBuffered Mechanism = "buffered"
	MechanismLive     Mechanism = "live"
	MechanismLocal    Mechanism = "local"
)

// SegmentBuffered reports which provider will serve a segment. A local
// provider means remote synthesis was unavailable for it.
type SegmentBuffered struct {
	Base
	Index     int
	SegmentID string
	Provider  segments.Provider
}

// NewSegmentBuffered creates a segment buffered event.
func NewSegmentBuffered(index int, segmentID string, provider segments.Provider) SegmentBuffered {
	return SegmentBuffered{
		Base:      NewBase(KindSegmentBuffered),
		Index:     index,
		SegmentID: segmentID,
		Provider:  provider,
	}
}

// SegmentStarted reports which mechanism is rendering a segment.
type SegmentStarted struct {
	Base
	Index     int
	SegmentID string
	Mechanism Mechanism
}

// NewSegmentStarted creates a segment started event.
func NewSegmentStarted(index int, segmentID string, mechanism Mechanism) SegmentStarted {
	return SegmentStarted{
		Base:      NewBase(KindSegmentStarted),
		Index:     index,
		SegmentID: segmentID,
		Mechanism: mechanism,
	}
}
