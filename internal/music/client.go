package music

import (
	"context"
)

// Track represents a single addressable piece of media from the remote catalog.
// ID is the catalog's stable identifier and survives title changes.
// An empty ThumbnailURL is omitted from JSON, so a stored "thumbnail": ""
// is written back without the key.
type Track struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	SourceURL    string `json:"url"`
	ThumbnailURL string `json:"thumbnail,omitempty"`
}

// FileName returns the sanitized cache file name for the track
func (t Track) FileName() string {
	return Sanitize(t.Title + " - " + t.ID + ".mp3")
}

// SameTrack reports whether two tracks share the same catalog identity
func SameTrack(a, b *Track) bool {
	if a == nil || b == nil {
		return false
	}
	return a.ID == b.ID
}

// PlayState represents the current playback state of the session
type PlayState int

const (
	StateStopped PlayState = iota // Nothing loaded
	StatePlaying                  // Audio is playing
	StatePaused                   // Audio is loaded but paused
)

// String returns a human-readable representation of the PlayState
func (s PlayState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Engine is the audio output primitive driven by the playback session.
// Implementations play one file at a time.
type Engine interface {
	// LoadAndPlay starts playing the file at path, replacing anything loaded.
	// onFinish is called once if playback reaches the end of the file on its
	// own. It is not called when playback is stopped or replaced.
	LoadAndPlay(ctx context.Context, path string, onFinish func()) error

	// Pause pauses the loaded audio
	Pause(ctx context.Context) error

	// Resume resumes paused audio
	Resume(ctx context.Context) error

	// Stop unloads the current audio. Stopping an idle engine is a no-op.
	Stop(ctx context.Context) error

	// SetVolume sets the output volume in the range [0,1]
	SetVolume(ctx context.Context, volume float64) error

	// IsBusy reports whether audio is currently loaded
	IsBusy() bool
}
