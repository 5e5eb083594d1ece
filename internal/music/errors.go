package music

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the cache, playlist and player packages.
// Wrap them with fmt.Errorf("...: %w", Err...) and test with errors.Is.
var (
	// ErrNotFound is returned when a playlist name or index lookup fails
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when creating a playlist that exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidState is returned for a playback transition from the wrong state
	ErrInvalidState = errors.New("invalid playback state")

	// ErrEmptyPlaylist is returned when navigating a playlist with no items
	ErrEmptyPlaylist = errors.New("playlist is empty")

	// ErrIndexOutOfRange is returned for an index outside the playlist
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrEndOfPlaylist signals that sequential playback reached the last item
	ErrEndOfPlaylist = errors.New("end of playlist")

	// ErrFetch is matched by every *FetchError
	ErrFetch = errors.New("fetch failed")

	// ErrDownloadFailed is returned to the caller of a play request whose
	// track could not be materialized in the cache
	ErrDownloadFailed = errors.New("download failed")

	// ErrPlayback is returned when the engine cannot load a file
	ErrPlayback = errors.New("playback failed")

	// ErrCorruptPersistence marks a playlist or history file that could not be parsed
	ErrCorruptPersistence = errors.New("corrupt persistence")

	// ErrSuperseded is returned to a play request replaced by a newer one
	// before its download completed
	ErrSuperseded = errors.New("superseded by a newer request")
)

// FetchError describes a failed download or conversion for a track.
type FetchError struct {
	TrackID string // Catalog id of the track
	Err     error  // Underlying cause, may be nil
}

// Error returns the error message.
func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch %s: no audio file produced", e.TrackID)
	}
	return fmt.Sprintf("fetch %s: %v", e.TrackID, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrFetch) hold for any *FetchError.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetch
}
