// Package scripts holds the contract between a session and the service that
// writes its narration.
package scripts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/koscakluka/ema-playback/core/segments"
)

var (
	ErrNoSegments       = errors.New("script has no segments")
	ErrEmptySegmentText = errors.New("script segment has empty text")
	ErrMissingScript    = errors.New("script generator returned no script")
)

// Request describes the session a script is generated for. Generators are
// free to ignore fields they have no use for.
type Request struct {
	Topic           string            `json:"topic" yaml:"topic"`
	Goal            string            `json:"goal,omitempty" yaml:"goal,omitempty"`
	Mood            string            `json:"mood,omitempty" yaml:"mood,omitempty"`
	Language        string            `json:"language,omitempty" yaml:"language,omitempty"`
	DurationMinutes float64           `json:"durationMinutes,omitempty" yaml:"duration_minutes,omitempty"`
	Notes           map[string]string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Script is an ordered list of segments to be narrated.
type Script struct {
	Title    string             `json:"title" yaml:"title"`
	Segments []segments.Segment `json:"segments" yaml:"segments"`
	Metadata map[string]string  `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Generator produces the script for a session.
type Generator interface {
	GenerateScript(ctx context.Context, req Request) (*Script, error)
}

// GeneratorFunc adapts a function to [Generator].
type GeneratorFunc func(ctx context.Context, req Request) (*Script, error)

func (f GeneratorFunc) GenerateScript(ctx context.Context, req Request) (*Script, error) {
	return f(ctx, req)
}

// Validate rejects scripts that cannot be played as a whole. There is no
// partial acceptance: one empty segment invalidates the script.
func Validate(script *Script) error {
	if script == nil {
		return ErrMissingScript
	}
	if len(script.Segments) == 0 {
		return ErrNoSegments
	}
	for i, segment := range script.Segments {
		if strings.TrimSpace(segment.Text) == "" {
			return fmt.Errorf("segment %d (%s): %w", i, segment.ID, ErrEmptySegmentText)
		}
	}
	return nil
}

// TotalApproxDuration sums the estimated segment durations in seconds.
func (s *Script) TotalApproxDuration() float64 {
	total := 0.0
	for _, segment := range s.Segments {
		total += segment.ApproxSec
	}
	return total
}
