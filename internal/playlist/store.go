// Package playlist persists named, ordered collections of tracks in a single
// JSON file keyed by playlist name.
package playlist

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/jfmyers9/luna/internal/music"
	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
)

// Store holds all playlists in memory and writes the whole set to disk after
// every mutation. Mutations on one playlist are serialized; different
// playlists may be mutated concurrently.
type Store struct {
	filePath string
	logger   zerolog.Logger

	mu        sync.RWMutex // guards playlists and locks
	playlists map[string][]music.Track
	locks     map[string]*sync.Mutex

	fileMu sync.Mutex // serializes writes of filePath
}

// NewStore creates a Store backed by filePath and loads its contents.
// A missing or corrupt file yields an empty store.
func NewStore(filePath string, logger zerolog.Logger) *Store {
	s := &Store{
		filePath:  filePath,
		logger:    logger.With().Str("component", "playlists").Logger(),
		playlists: make(map[string][]music.Track),
		locks:     make(map[string]*sync.Mutex),
	}
	s.Load()
	return s
}

// Load replaces the in-memory playlists with the file contents.
// Read or parse failures are logged and leave the store empty. A corrupt
// file is moved aside to <file>.corrupt so the next save does not destroy it.
func (s *Store) Load() {
	loaded, err := s.read()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.playlists = make(map[string][]music.Track)
		if errors.Is(err, music.ErrCorruptPersistence) {
			s.logger.Warn().Err(err).Str("file", s.filePath).Msg("Playlist file is corrupt, starting empty")
			if renameErr := os.Rename(s.filePath, s.filePath+".corrupt"); renameErr != nil {
				s.logger.Debug().Err(renameErr).Msg("Failed to move corrupt playlist file aside")
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn().Err(err).Str("file", s.filePath).Msg("Failed to read playlist file, starting empty")
		}
		return
	}

	s.playlists = loaded
}

func (s *Store) read() (map[string][]music.Track, error) {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return nil, err
	}

	var loaded map[string][]music.Track
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("%w: %v", music.ErrCorruptPersistence, err)
	}
	if loaded == nil {
		loaded = make(map[string][]music.Track)
	}
	for name, items := range loaded {
		if items == nil {
			loaded[name] = []music.Track{}
		}
	}
	return loaded, nil
}

// Save writes every playlist to disk
func (s *Store) Save() error {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()

	// Snapshot under fileMu so concurrent saves always write the newest state last
	s.mu.RLock()
	data, err := json.MarshalIndent(s.playlists, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode playlists: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create playlist directory: %w", err)
	}

	// Write atomically via temp file + rename
	tmpPath := s.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write playlists: %w", err)
	}
	if err := os.Rename(tmpPath, s.filePath); err != nil {
		return fmt.Errorf("failed to replace playlist file: %w", err)
	}
	return nil
}

// lockFor returns the mutation lock for a playlist name
func (s *Store) lockFor(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	return l
}

// mutate runs fn on a copy of the named playlist, stores the result and
// persists it. fn returning an error aborts without persisting.
func (s *Store) mutate(name string, fn func(items []music.Track) ([]music.Track, error)) error {
	l := s.lockFor(name)
	l.Lock()
	defer l.Unlock()

	s.mu.RLock()
	items, ok := s.playlists[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("playlist %q: %w", name, music.ErrNotFound)
	}

	updated, err := fn(copyTracks(items))
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.playlists[name] = updated
	s.mu.Unlock()

	if err := s.Save(); err != nil {
		s.mu.Lock()
		s.playlists[name] = items
		s.mu.Unlock()
		return err
	}
	return nil
}

// Create adds an empty playlist
func (s *Store) Create(name string) error {
	l := s.lockFor(name)
	l.Lock()
	defer l.Unlock()

	s.mu.Lock()
	if _, ok := s.playlists[name]; ok {
		s.mu.Unlock()
		return fmt.Errorf("playlist %q: %w", name, music.ErrAlreadyExists)
	}
	s.playlists[name] = []music.Track{}
	s.mu.Unlock()

	if err := s.Save(); err != nil {
		s.mu.Lock()
		delete(s.playlists, name)
		s.mu.Unlock()
		return err
	}
	return nil
}

// Delete removes a playlist
func (s *Store) Delete(name string) error {
	l := s.lockFor(name)
	l.Lock()
	defer l.Unlock()

	s.mu.Lock()
	items, ok := s.playlists[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("playlist %q: %w", name, music.ErrNotFound)
	}
	delete(s.playlists, name)
	s.mu.Unlock()

	if err := s.Save(); err != nil {
		s.mu.Lock()
		s.playlists[name] = items
		s.mu.Unlock()
		return err
	}
	return nil
}

// Add appends a track to a playlist
func (s *Store) Add(name string, track music.Track) error {
	return s.mutate(name, func(items []music.Track) ([]music.Track, error) {
		return append(items, track), nil
	})
}

// Remove deletes the tracks at the given zero-based indices and returns them
// in ascending index order. Indices are validated before anything is removed.
func (s *Store) Remove(name string, indices []int) ([]music.Track, error) {
	var removed []music.Track
	err := s.mutate(name, func(items []music.Track) ([]music.Track, error) {
		unique := make(map[int]struct{}, len(indices))
		for _, idx := range indices {
			if idx < 0 || idx >= len(items) {
				return nil, fmt.Errorf("index %d of playlist %q: %w", idx, name, music.ErrIndexOutOfRange)
			}
			unique[idx] = struct{}{}
		}

		desc := make([]int, 0, len(unique))
		for idx := range unique {
			desc = append(desc, idx)
		}
		sort.Sort(sort.Reverse(sort.IntSlice(desc)))

		removed = make([]music.Track, len(desc))
		for i, idx := range desc {
			removed[len(desc)-1-i] = items[idx]
			items = append(items[:idx], items[idx+1:]...)
		}
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// Shuffle randomly permutes a playlist and returns the new order.
// A nil rng uses the global source.
func (s *Store) Shuffle(name string, rng *rand.Rand) ([]music.Track, error) {
	var result []music.Track
	err := s.mutate(name, func(items []music.Track) ([]music.Track, error) {
		swap := func(i, j int) { items[i], items[j] = items[j], items[i] }
		if rng != nil {
			rng.Shuffle(len(items), swap)
		} else {
			rand.Shuffle(len(items), swap)
		}
		result = copyTracks(items)
		return items, nil
	})
	return result, err
}

// SortAlphabetical stable-sorts a playlist by case-folded title and returns
// the new order
func (s *Store) SortAlphabetical(name string) ([]music.Track, error) {
	fold := cases.Fold()
	var result []music.Track
	err := s.mutate(name, func(items []music.Track) ([]music.Track, error) {
		keys := make(map[string]string, len(items))
		for _, t := range items {
			keys[t.Title] = fold.String(t.Title)
		}
		sort.SliceStable(items, func(i, j int) bool {
			return keys[items[i].Title] < keys[items[j].Title]
		})
		result = copyTracks(items)
		return items, nil
	})
	return result, err
}

// List returns playlist names in sorted order
func (s *Store) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.playlists))
	for name := range s.playlists {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns a copy of a playlist's tracks
func (s *Store) Get(name string) ([]music.Track, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items, ok := s.playlists[name]
	if !ok {
		return nil, fmt.Errorf("playlist %q: %w", name, music.ErrNotFound)
	}
	return copyTracks(items), nil
}

// AllTracks returns every track of every playlist. Used to pin cache entries.
func (s *Store) AllTracks() []music.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []music.Track
	for _, items := range s.playlists {
		all = append(all, items...)
	}
	return all
}

func copyTracks(items []music.Track) []music.Track {
	out := make([]music.Track, len(items))
	copy(out, items)
	return out
}
