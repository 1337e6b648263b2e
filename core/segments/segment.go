package segments

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/koscakluka/ema-playback/core/audio"
)

// Segment is one narrated unit of a generated script.
type Segment struct {
	ID        string  `json:"id" yaml:"id"`
	Text      string  `json:"text" yaml:"text"`
	ApproxSec float64 `json:"approxSec,omitempty" yaml:"approx_sec,omitempty"`
	Mood      string  `json:"mood,omitempty" yaml:"mood,omitempty"`
	Voice     string  `json:"voice,omitempty" yaml:"voice,omitempty"`
	SFX       string  `json:"sfx,omitempty" yaml:"sfx,omitempty"`
}

// Provider identifies where a segment's audio will come from.
type Provider string

const (
	ProviderRemote Provider = "remote"
	ProviderLocal  Provider = "local"
	ProviderNone   Provider = "none"
)

// Playable is a segment augmented with buffering state. It is owned by a
// single session and must only be mutated from that session's loop.
type Playable struct {
	Segment

	Provider Provider
	Buffered bool

	audio    *audio.Resource
	inFlight context.CancelFunc
}

// FromScript converts script segments into playable segments awaiting
// buffering. Segments without an id get a generated one.
func FromScript(script []Segment) ([]*Playable, error) {
	playables := make([]*Playable, 0, len(script))
	seen := make(map[string]struct{}, len(script))
	for i, segment := range script {
		if strings.TrimSpace(segment.ID) == "" {
			segment.ID = uuid.NewString()
		}
		if _, ok := seen[segment.ID]; ok {
			return nil, fmt.Errorf("segment %d: duplicate id %q", i, segment.ID)
		}
		seen[segment.ID] = struct{}{}

		playables = append(playables, &Playable{Segment: segment, Provider: ProviderNone})
	}
	return playables, nil
}

// Audio returns the stored remote audio, or nil.
func (p *Playable) Audio() *audio.Resource { return p.audio }

// HasAudio reports whether buffered remote audio is available for playback.
func (p *Playable) HasAudio() bool {
	return p.Provider == ProviderRemote && p.audio.Usable()
}

// BeginBuffering records the cancel func of an in-flight buffering request.
func (p *Playable) BeginBuffering(cancel context.CancelFunc) {
	p.inFlight = cancel
}

func (p *Playable) InFlight() bool { return p.inFlight != nil }

// AbortBuffering cancels an in-flight buffering request, if any.
func (p *Playable) AbortBuffering() {
	if p.inFlight != nil {
		p.inFlight()
		p.inFlight = nil
	}
}

// CompleteRemote stores remote audio. A nil or unusable resource degrades the
// segment to the local engine.
func (p *Playable) CompleteRemote(resource *audio.Resource) {
	if !resource.Usable() {
		resource.Release()
		p.CompleteLocal()
		return
	}

	p.finishBuffering()
	p.audio.Release()
	p.audio = resource
	p.Provider = ProviderRemote
	p.Buffered = true
}

// CompleteLocal marks the segment as served by the local engine.
func (p *Playable) CompleteLocal() {
	p.finishBuffering()
	p.audio.Release()
	p.audio = nil
	p.Provider = ProviderLocal
	p.Buffered = true
}

// Release frees stored audio and cancels buffering. Provider and Buffered are
// left untouched so snapshots taken after disposal still describe the run.
func (p *Playable) Release() {
	p.AbortBuffering()
	p.audio.Release()
	p.audio = nil
}

func (p *Playable) finishBuffering() {
	if p.inFlight != nil {
		p.inFlight()
		p.inFlight = nil
	}
}
