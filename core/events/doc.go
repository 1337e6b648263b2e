// Package events defines the typed session event contract.
//
// Kinds:
//
//   - state-change: full session state snapshot after every mutation. The
//     event type lives in the session package next to the state it carries.
//   - play, pause, end: playback lifecycle milestones.
//   - error: initialization failure, or a playback request that cannot be
//     honoured.
//   - segment-buffered: a segment left the buffering pipeline, with the
//     provider that will serve it.
//   - segment-started: audible output began for a segment, with the
//     mechanism of the fallback cascade that produced it.
//
// Listeners subscribed to [KindAny] receive every kind.
package events
