package segments

import "github.com/jinzhu/copier"

// Info is a read-only view of a playable segment for presentation layers.
type Info struct {
	ID        string
	Text      string
	ApproxSec float64
	Mood      string
	Voice     string
	SFX       string
	Provider  Provider
	Buffered  bool
	HasAudio  bool
}

func (p *Playable) Info() Info {
	var info Info
	// copier only fails on mismatched kinds, which these types cannot produce
	_ = copier.Copy(&info, &p.Segment)
	info.Provider = p.Provider
	info.Buffered = p.Buffered
	info.HasAudio = p.HasAudio()
	return info
}

// Infos snapshots a slice of playable segments.
func Infos(playables []*Playable) []Info {
	infos := make([]Info, len(playables))
	for i, p := range playables {
		infos[i] = p.Info()
	}
	return infos
}
