// Package cache maintains the on-disk audio cache. Files are named from the
// track title and id so a cached track is found without any index, and
// unpinned files are evicted least-recently-used first.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jfmyers9/luna/internal/music"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// DefaultMaxUnpinned is the number of unpinned files kept after eviction
const DefaultMaxUnpinned = 5

// Fetcher downloads and converts a track's audio into the cache directory.
// It returns the path of the produced file. The path may be inaccurate when
// the downloader renamed the output; the store then scans for the file.
type Fetcher interface {
	Fetch(ctx context.Context, sourceURL string, track music.Track) (string, error)
}

// PinSource lists the tracks whose cache files must never be evicted
type PinSource interface {
	AllTracks() []music.Track
}

// Entry describes one cached audio file
type Entry struct {
	TrackID    string
	Name       string
	Path       string
	Size       int64
	LastAccess time.Time
	Pinned     bool
}

// Store is the audio cache rooted at a single flat directory
type Store struct {
	dir         string
	fetcher     Fetcher
	pins        PinSource
	maxUnpinned int
	logger      zerolog.Logger

	group  singleflight.Group
	now    func() time.Time
	remove func(path string) error
}

// NewStore creates the cache directory if needed and returns a Store.
// maxUnpinned <= 0 uses DefaultMaxUnpinned. pins may be nil.
func NewStore(dir string, fetcher Fetcher, pins PinSource, maxUnpinned int, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	if maxUnpinned <= 0 {
		maxUnpinned = DefaultMaxUnpinned
	}
	return &Store{
		dir:         dir,
		fetcher:     fetcher,
		pins:        pins,
		maxUnpinned: maxUnpinned,
		logger:      logger.With().Str("component", "cache").Logger(),
		now:         time.Now,
		remove:      os.Remove,
	}, nil
}

// Dir returns the cache root
func (s *Store) Dir() string {
	return s.dir
}

// Resolve returns the deterministic cache path for a track. No I/O.
func (s *Store) Resolve(track music.Track) string {
	return filepath.Join(s.dir, track.FileName())
}

// Cached returns the track's path if it is already in the cache.
// It never downloads.
func (s *Store) Cached(track music.Track) (string, bool) {
	path := s.Resolve(track)
	if !s.hit(path) {
		return "", false
	}
	return path, true
}

// Fetch returns the local path of the track's audio, downloading it on a
// miss. Concurrent calls for the same track share one download. The context
// of the first caller governs a shared download.
func (s *Store) Fetch(ctx context.Context, track music.Track) (string, error) {
	path := s.Resolve(track)
	if s.hit(path) {
		s.logger.Debug().Str("track_id", track.ID).Msg("Cache hit")
		return path, nil
	}

	v, err, _ := s.group.Do(track.ID, func() (any, error) {
		// Another caller may have finished the download meanwhile
		if s.hit(path) {
			return path, nil
		}
		if err := s.download(ctx, track, path); err != nil {
			return "", err
		}
		if _, err := s.Evict(); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to evict cache entries")
		}
		return path, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// hit reports whether path holds usable audio and refreshes its access time.
// An empty leftover file is removed.
func (s *Store) hit(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	if info.Size() == 0 {
		_ = os.Remove(path)
		return false
	}

	now := s.now()
	if err := os.Chtimes(path, now, now); err != nil {
		s.logger.Debug().Err(err).Str("path", path).Msg("Failed to refresh access time")
	}
	return true
}

func (s *Store) download(ctx context.Context, track music.Track, dest string) error {
	log := s.logger.With().Str("track_id", track.ID).Logger()
	log.Info().Str("title", track.Title).Msg("Downloading track")

	produced, err := s.fetcher.Fetch(ctx, track.SourceURL, track)
	if err != nil {
		return &music.FetchError{TrackID: track.ID, Err: err}
	}

	src := produced
	if src == "" || !fileExists(src) {
		log.Debug().Str("reported", produced).Msg("Fetcher output missing, scanning cache directory")
		src = s.scan(track.ID)
	}
	if src == "" {
		return &music.FetchError{TrackID: track.ID}
	}

	info, err := os.Stat(src)
	if err != nil {
		return &music.FetchError{TrackID: track.ID, Err: err}
	}
	if info.Size() == 0 {
		_ = os.Remove(src)
		return &music.FetchError{TrackID: track.ID, Err: errors.New("produced file is empty")}
	}

	if err := normalize(src, dest); err != nil {
		return &music.FetchError{TrackID: track.ID, Err: err}
	}

	// Downloaders may stamp the upload date; eviction needs the fetch time
	now := s.now()
	_ = os.Chtimes(dest, now, now)

	log.Info().Str("path", dest).Msg("Track cached")
	return nil
}

// scan looks once through the cache directory for an mp3 whose name
// contains the track id. The newest candidate wins.
func (s *Store) scan(trackID string) string {
	if trackID == "" {
		return ""
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Failed to scan cache directory")
		return ""
	}

	var best string
	var bestTime time.Time
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || !strings.HasSuffix(name, ".mp3") || !strings.Contains(name, trackID) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if best == "" || info.ModTime().After(bestTime) {
			best = filepath.Join(s.dir, name)
			bestTime = info.ModTime()
		}
	}
	return best
}

// normalize moves src to dst, copying when a rename is not possible
func normalize(src, dst string) error {
	if src == dst {
		return nil
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("failed to move %s into cache: %w", src, err)
	}
	_ = os.Remove(src)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

// Entries lists the cached audio files, most recently used first
func (s *Store) Entries() ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}

	names, ids := s.pinned()
	var entries []Entry
	for _, e := range dirEntries {
		name := e.Name()
		if !e.Type().IsRegular() || !strings.HasSuffix(name, ".mp3") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		id := trackIDFromName(name)
		_, byName := names[name]
		_, byID := ids[id]
		entries = append(entries, Entry{
			TrackID:    id,
			Name:       name,
			Path:       filepath.Join(s.dir, name),
			Size:       info.Size(),
			LastAccess: info.ModTime(),
			Pinned:     byName || (id != "" && byID),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastAccess.After(entries[j].LastAccess)
	})
	return entries, nil
}

// Evict deletes the least recently used unpinned files until at most
// maxUnpinned remain. Files that cannot be deleted are skipped and retried
// on the next pass. Returns the number of files deleted.
func (s *Store) Evict() (int, error) {
	entries, err := s.Entries()
	if err != nil {
		return 0, err
	}

	var unpinned []Entry
	for _, e := range entries {
		if !e.Pinned {
			unpinned = append(unpinned, e)
		}
	}

	excess := len(unpinned) - s.maxUnpinned
	if excess <= 0 {
		return 0, nil
	}

	sort.SliceStable(unpinned, func(i, j int) bool {
		return unpinned[i].LastAccess.Before(unpinned[j].LastAccess)
	})

	removed := 0
	for _, e := range unpinned {
		if removed >= excess {
			break
		}
		if err := s.remove(e.Path); err != nil {
			s.logger.Debug().Err(err).Str("path", e.Path).Msg("Skipping cache file that could not be removed")
			continue
		}
		s.logger.Debug().Str("path", e.Path).Msg("Evicted cache file")
		removed++
	}
	return removed, nil
}

// pinned returns the file names and track ids referenced by any playlist
func (s *Store) pinned() (names, ids map[string]struct{}) {
	names = make(map[string]struct{})
	ids = make(map[string]struct{})
	if s.pins == nil {
		return names, ids
	}
	for _, t := range s.pins.AllTracks() {
		names[t.FileName()] = struct{}{}
		ids[t.ID] = struct{}{}
	}
	return names, ids
}

// trackIDFromName recovers the id from "<title> - <id>.mp3"
func trackIDFromName(name string) string {
	base := strings.TrimSuffix(name, ".mp3")
	if i := strings.LastIndex(base, " - "); i >= 0 {
		return base[i+3:]
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
