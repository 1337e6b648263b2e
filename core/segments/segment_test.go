package segments

import (
	"context"
	"testing"

	"github.com/koscakluka/ema-playback/core/audio"
)

func TestFromScriptStartsUnbuffered(t *testing.T) {
	playables, err := FromScript([]Segment{{ID: "a", Text: "one"}, {Text: "two"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(playables) != 2 {
		t.Fatalf("expected 2 playables, got %d", len(playables))
	}
	for i, p := range playables {
		if p.Provider != ProviderNone || p.Buffered || p.Audio() != nil {
			t.Fatalf("expected segment %d to start unbuffered, got %+v", i, p.Info())
		}
	}
	if playables[1].ID == "" {
		t.Fatalf("expected a generated id for segment without one")
	}
}

func TestFromScriptRejectsDuplicateIDs(t *testing.T) {
	if _, err := FromScript([]Segment{{ID: "a", Text: "one"}, {ID: "a", Text: "two"}}); err == nil {
		t.Fatalf("expected duplicate ids to be rejected")
	}
}

func TestCompleteRemoteStoresAudio(t *testing.T) {
	p := &Playable{Segment: Segment{ID: "a", Text: "one"}, Provider: ProviderNone}
	cancelled := false
	p.BeginBuffering(func() { cancelled = true })

	resource := audio.NewResource([]byte{1, 2}, audio.MimeTypePCM, audio.GetDefaultEncodingInfo())
	p.CompleteRemote(resource)

	if p.Provider != ProviderRemote || !p.Buffered || !p.HasAudio() {
		t.Fatalf("expected remote buffered segment, got %+v", p.Info())
	}
	if p.InFlight() {
		t.Fatalf("expected buffering to be finished")
	}
	if !cancelled {
		t.Fatalf("expected in-flight context to be released")
	}
}

func TestCompleteRemoteWithoutAudioDegradesToLocal(t *testing.T) {
	p := &Playable{Segment: Segment{ID: "a", Text: "one"}, Provider: ProviderNone}
	p.CompleteRemote(nil)

	if p.Provider != ProviderLocal || !p.Buffered || p.Audio() != nil {
		t.Fatalf("expected local buffered segment, got %+v", p.Info())
	}

	empty := audio.NewResource(nil, audio.MimeTypePCM, audio.EncodingInfo{})
	p.CompleteRemote(empty)
	if p.Provider != ProviderLocal {
		t.Fatalf("expected empty audio to degrade to local, got %q", p.Provider)
	}
	if !empty.Released() {
		t.Fatalf("expected rejected resource to be released")
	}
}

func TestReleaseFreesAudioAndCancelsBuffering(t *testing.T) {
	resource := audio.NewResource([]byte{1, 2}, audio.MimeTypePCM, audio.GetDefaultEncodingInfo())
	p := &Playable{Segment: Segment{ID: "a", Text: "one"}, Provider: ProviderNone}
	p.CompleteRemote(resource)

	ctx, cancel := context.WithCancel(context.Background())
	p.BeginBuffering(cancel)
	p.Release()

	if !resource.Released() {
		t.Fatalf("expected stored resource to be released")
	}
	if ctx.Err() == nil {
		t.Fatalf("expected in-flight buffering to be cancelled")
	}
	if p.HasAudio() {
		t.Fatalf("expected no playable audio after release")
	}
}

func TestInfoCopiesSegmentFields(t *testing.T) {
	p := &Playable{Segment: Segment{ID: "a", Text: "one", ApproxSec: 2.5, Mood: "calm"}, Provider: ProviderLocal, Buffered: true}
	info := p.Info()

	if info.ID != "a" || info.Text != "one" || info.ApproxSec != 2.5 || info.Mood != "calm" {
		t.Fatalf("expected segment fields to be copied, got %+v", info)
	}
	if info.Provider != ProviderLocal || !info.Buffered || info.HasAudio {
		t.Fatalf("expected buffering fields to be copied, got %+v", info)
	}
}
