// Package player composes the cache, playlist store and playback engine into
// a single playback session driven by one owning goroutine.
package player

import (
	"fmt"
	"math/rand/v2"

	"github.com/jfmyers9/luna/internal/music"
)

// PlaylistStore is the subset of playlist.Store the player needs
type PlaylistStore interface {
	Get(name string) ([]music.Track, error)
	Add(name string, track music.Track) error
	Remove(name string, indices []int) ([]music.Track, error)
	Shuffle(name string, rng *rand.Rand) ([]music.Track, error)
	SortAlphabetical(name string) ([]music.Track, error)
}

// Sequencer tracks the open playlist and the current index within it.
// It is not safe for concurrent use; the Orchestrator owns it.
type Sequencer struct {
	store PlaylistStore
	rng   *rand.Rand

	name  string
	items []music.Track
	index int
}

// NewSequencer returns a Sequencer with no playlist open.
// A nil rng shuffles with the global source.
func NewSequencer(store PlaylistStore, rng *rand.Rand) *Sequencer {
	return &Sequencer{store: store, rng: rng, index: -1}
}

// Open loads a playlist snapshot and resets the index
func (q *Sequencer) Open(name string) error {
	items, err := q.store.Get(name)
	if err != nil {
		return err
	}
	q.name = name
	q.items = items
	q.index = -1
	return nil
}

// Playlist returns the open playlist name, empty if none
func (q *Sequencer) Playlist() string {
	return q.name
}

// Index returns the current index, -1 if none
func (q *Sequencer) Index() int {
	return q.index
}

// Items returns a copy of the snapshot
func (q *Sequencer) Items() []music.Track {
	out := make([]music.Track, len(q.items))
	copy(out, q.items)
	return out
}

// Len returns the number of items in the snapshot
func (q *Sequencer) Len() int {
	return len(q.items)
}

// Next moves forward one item, wrapping to the start
func (q *Sequencer) Next() (music.Track, int, error) {
	n := len(q.items)
	if n == 0 {
		return music.Track{}, -1, music.ErrEmptyPlaylist
	}
	q.index = (q.index + 1) % n
	return q.items[q.index], q.index, nil
}

// Prev moves back one item, wrapping to the end. With no current index the
// last item is selected.
func (q *Sequencer) Prev() (music.Track, int, error) {
	n := len(q.items)
	if n == 0 {
		return music.Track{}, -1, music.ErrEmptyPlaylist
	}
	if q.index < 0 {
		q.index = n - 1
	} else {
		q.index = (q.index - 1 + n) % n
	}
	return q.items[q.index], q.index, nil
}

// PlayFromIndex selects item i
func (q *Sequencer) PlayFromIndex(i int) (music.Track, error) {
	if i < 0 || i >= len(q.items) {
		return music.Track{}, fmt.Errorf("index %d of %d: %w", i, len(q.items), music.ErrIndexOutOfRange)
	}
	q.index = i
	return q.items[i], nil
}

// AdvanceSequential moves to the following item without wrapping.
// ErrEndOfPlaylist is returned after the last item; the index is unchanged.
func (q *Sequencer) AdvanceSequential() (music.Track, int, error) {
	next := q.index + 1
	if next >= len(q.items) {
		return music.Track{}, q.index, music.ErrEndOfPlaylist
	}
	q.index = next
	return q.items[next], next, nil
}

// Shuffle permutes the open playlist through the store and re-locates playing
func (q *Sequencer) Shuffle(playing *music.Track) error {
	if q.name == "" {
		return fmt.Errorf("no playlist open: %w", music.ErrInvalidState)
	}
	items, err := q.store.Shuffle(q.name, q.rng)
	if err != nil {
		return err
	}
	q.replace(items, playing)
	return nil
}

// SortAlphabetical sorts the open playlist through the store and
// re-locates playing
func (q *Sequencer) SortAlphabetical(playing *music.Track) error {
	if q.name == "" {
		return fmt.Errorf("no playlist open: %w", music.ErrInvalidState)
	}
	items, err := q.store.SortAlphabetical(q.name)
	if err != nil {
		return err
	}
	q.replace(items, playing)
	return nil
}

// Refresh reloads the snapshot after the playlist changed elsewhere
func (q *Sequencer) Refresh(playing *music.Track) error {
	if q.name == "" {
		return nil
	}
	items, err := q.store.Get(q.name)
	if err != nil {
		q.name = ""
		q.items = nil
		q.index = -1
		return err
	}
	q.replace(items, playing)
	return nil
}

func (q *Sequencer) replace(items []music.Track, playing *music.Track) {
	prev := q.index
	q.items = items
	q.relocate(playing, prev)
}

// relocate points the index at playing, searching near prev
func (q *Sequencer) relocate(playing *music.Track, prev int) {
	q.index = locate(q.items, playing, prev)
}

// locate finds playing by id. With duplicates the occurrence nearest to
// the previous index wins. Returns -1 when absent.
func locate(items []music.Track, playing *music.Track, prev int) int {
	if playing == nil {
		return -1
	}
	best := -1
	for i := range items {
		if items[i].ID != playing.ID {
			continue
		}
		if best < 0 || abs(i-prev) < abs(best-prev) {
			best = i
		}
	}
	return best
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
