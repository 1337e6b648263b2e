package audio

import (
	"sync"

	"github.com/google/uuid"
)

const (
	MimeTypeWAV = "audio/wav"
	MimeTypePCM = "audio/pcm"
)

// Resource is an owned handle to synthesized audio.
//
// The owner releases it once it is no longer needed; a released resource keeps
// its metadata but no longer exposes any audio.
type Resource struct {
	ID       string
	MimeType string
	Encoding EncodingInfo

	mu       sync.Mutex
	data     []byte
	released bool
}

func NewResource(data []byte, mimeType string, encoding EncodingInfo) *Resource {
	return &Resource{
		ID:       uuid.NewString(),
		MimeType: mimeType,
		Encoding: encoding,
		data:     data,
	}
}

// Data returns the audio payload, or nil once the resource has been released.
func (r *Resource) Data() []byte {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data
}

func (r *Resource) Len() int { return len(r.Data()) }

func (r *Resource) Release() {
	if r == nil {
		return
	}

	r.mu.Lock()
	r.data = nil
	r.released = true
	r.mu.Unlock()
}

func (r *Resource) Released() bool {
	if r == nil {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.released
}

// Usable reports whether the resource still holds audio that can be played.
func (r *Resource) Usable() bool {
	return r != nil && !r.Released() && r.Len() > 0
}
