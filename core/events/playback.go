package events

const (
	// KindPlay identifies the transition into the playing state.
	KindPlay Kind = "play"
	// KindPause identifies the transition into the paused state.
	KindPause Kind = "pause"
	// KindEnd identifies completion of the final segment of a run.
	KindEnd Kind = "end"
)

// Play marks a session starting or resuming playback.
type Play struct {
	Base
	Index     int
	SegmentID string
}

// NewPlay creates a play event for the segment at index.
func NewPlay(index int, segmentID string) Play {
	return Play{Base: NewBase(KindPlay), Index: index, SegmentID: segmentID}
}

// Pause marks a session pausing playback.
type Pause struct {
	Base
	Index int
}

// NewPause creates a pause event.
func NewPause(index int) Pause {
	return Pause{Base: NewBase(KindPause), Index: index}
}

// End marks the end of a playback run.
type End struct {
	Base
	TotalSegments int
}

// NewEnd creates an end event.
func NewEnd(totalSegments int) End {
	return End{Base: NewBase(KindEnd), TotalSegments: totalSegments}
}
