package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jfmyers9/luna/internal/music"
	"github.com/rs/zerolog"
)

// fakeFetcher writes a file into dir on each call. name overrides the
// produced file name; reported overrides the returned path.
type fakeFetcher struct {
	dir      string
	calls    atomic.Int32
	content  string
	name     func(music.Track) string
	reported func(music.Track, string) string
	err      error
	gate     chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context, sourceURL string, track music.Track) (string, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return "", f.err
	}

	name := track.Title + " - " + track.ID + ".mp3"
	if f.name != nil {
		name = f.name(track)
	}
	path := filepath.Join(f.dir, name)
	content := f.content
	if content == "" && f.name == nil {
		content = "audio"
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", err
	}
	if f.reported != nil {
		return f.reported(track, path), nil
	}
	return path, nil
}

type pinList []music.Track

func (p pinList) AllTracks() []music.Track { return p }

func createTestCache(t *testing.T, f *fakeFetcher, pins PinSource, max int) *Store {
	t.Helper()
	dir := t.TempDir()
	f.dir = dir
	s, err := NewStore(dir, f, pins, max, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return s
}

func tr(id, title string) music.Track {
	return music.Track{ID: id, Title: title, SourceURL: "https://example.com/" + id}
}

func TestResolve(t *testing.T) {
	s := createTestCache(t, &fakeFetcher{}, nil, 0)
	got := s.Resolve(tr("abc123", "AC/DC: Back in Black"))
	want := filepath.Join(s.Dir(), "ACDC Back in Black - abc123.mp3")
	if got != want {
		t.Errorf("Resolve() = %q, want %q", got, want)
	}
}

func TestFetchIsIdempotent(t *testing.T) {
	f := &fakeFetcher{}
	s := createTestCache(t, f, nil, 0)
	track := tr("a1", "Song")

	first, err := s.Fetch(context.Background(), track)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	second, err := s.Fetch(context.Background(), track)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if first != second || first != s.Resolve(track) {
		t.Errorf("paths = %q, %q, want %q", first, second, s.Resolve(track))
	}
	if n := f.calls.Load(); n != 1 {
		t.Errorf("fetcher called %d times, want 1", n)
	}
}

func TestFetchNormalizesName(t *testing.T) {
	f := &fakeFetcher{}
	s := createTestCache(t, f, nil, 0)
	track := tr("q9", "What? Yes!")

	path, err := s.Fetch(context.Background(), track)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if filepath.Base(path) != "What Yes - q9.mp3" {
		t.Errorf("Fetch() path = %q", path)
	}
	if _, err := os.Stat(filepath.Join(s.Dir(), "What? Yes! - q9.mp3")); !os.IsNotExist(err) {
		t.Errorf("raw download was not moved, stat err = %v", err)
	}
}

func TestFetchScansWhenReportedPathMissing(t *testing.T) {
	f := &fakeFetcher{
		name:     func(t music.Track) string { return "renamed_by_tool [" + t.ID + "].mp3" },
		reported: func(music.Track, string) string { return "/nonexistent/file.mp3" },
		content:  "audio",
	}
	s := createTestCache(t, f, nil, 0)
	track := tr("zz7", "Title")

	path, err := s.Fetch(context.Background(), track)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if path != s.Resolve(track) {
		t.Errorf("Fetch() = %q, want %q", path, s.Resolve(track))
	}
}

func TestFetchZeroByteResult(t *testing.T) {
	f := &fakeFetcher{name: func(t music.Track) string { return t.Title + " - " + t.ID + ".mp3" }}
	s := createTestCache(t, f, nil, 0)
	track := tr("e0", "Empty")

	_, err := s.Fetch(context.Background(), track)
	if !errors.Is(err, music.ErrFetch) {
		t.Fatalf("Fetch() error = %v, want ErrFetch", err)
	}
	var fe *music.FetchError
	if !errors.As(err, &fe) || fe.TrackID != "e0" {
		t.Errorf("Fetch() error = %#v, want *FetchError for e0", err)
	}

	entries, _ := s.Entries()
	if len(entries) != 0 {
		t.Errorf("Entries() = %+v, want none", entries)
	}
}

func TestFetchNothingProduced(t *testing.T) {
	f := &fakeFetcher{
		reported: func(_ music.Track, path string) string {
			_ = os.Remove(path)
			return path
		},
	}
	s := createTestCache(t, f, nil, 0)

	if _, err := s.Fetch(context.Background(), tr("gone", "Gone")); !errors.Is(err, music.ErrFetch) {
		t.Errorf("Fetch() error = %v, want ErrFetch", err)
	}
}

func TestFetchFetcherError(t *testing.T) {
	cause := errors.New("network down")
	f := &fakeFetcher{err: cause}
	s := createTestCache(t, f, nil, 0)

	_, err := s.Fetch(context.Background(), tr("x", "X"))
	if !errors.Is(err, music.ErrFetch) || !errors.Is(err, cause) {
		t.Errorf("Fetch() error = %v, want ErrFetch wrapping cause", err)
	}
}

func TestFetchSharesConcurrentDownloads(t *testing.T) {
	f := &fakeFetcher{gate: make(chan struct{})}
	s := createTestCache(t, f, nil, 0)
	track := tr("c1", "Concurrent")

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Fetch(context.Background(), track)
			errs <- err
		}()
	}

	// Let the callers pile up on the shared download before releasing it
	time.Sleep(50 * time.Millisecond)
	close(f.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Fetch() error = %v", err)
		}
	}
	if n := f.calls.Load(); n != 1 {
		t.Errorf("fetcher called %d times, want 1", n)
	}
}

func TestFetchHitRefreshesAccessTime(t *testing.T) {
	f := &fakeFetcher{}
	s := createTestCache(t, f, nil, 0)
	track := tr("h1", "Hit")

	path, _ := s.Fetch(context.Background(), track)
	old := time.Now().Add(-time.Hour)
	_ = os.Chtimes(path, old, old)

	if _, err := s.Fetch(context.Background(), track); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	info, _ := os.Stat(path)
	if !info.ModTime().After(old.Add(time.Minute)) {
		t.Errorf("mtime = %v, want refreshed", info.ModTime())
	}
}

func TestEvictKeepsBoundAndPins(t *testing.T) {
	pinned := tr("p1", "Pinned")
	f := &fakeFetcher{}
	s := createTestCache(t, f, pinList{pinned}, 2)

	// Seed files with increasing age so eviction order is deterministic
	base := time.Now().Add(-time.Hour)
	seed := []music.Track{pinned, tr("u1", "One"), tr("u2", "Two"), tr("u3", "Three")}
	for i, track := range seed {
		path := s.Resolve(track)
		if err := os.WriteFile(path, []byte("audio"), 0644); err != nil {
			t.Fatal(err)
		}
		at := base.Add(time.Duration(i) * time.Minute)
		_ = os.Chtimes(path, at, at)
	}

	n, err := s.Evict()
	if err != nil {
		t.Fatalf("Evict() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Evict() removed %d, want 1", n)
	}

	for _, c := range []struct {
		track music.Track
		want  bool
	}{
		{pinned, true},
		{tr("u1", "One"), false},
		{tr("u2", "Two"), true},
		{tr("u3", "Three"), true},
	} {
		if got := fileExists(s.Resolve(c.track)); got != c.want {
			t.Errorf("%s present = %v, want %v", c.track.ID, got, c.want)
		}
	}
}

func TestFetchEvictsAfterDownload(t *testing.T) {
	f := &fakeFetcher{}
	s := createTestCache(t, f, nil, 1)

	first, _ := s.Fetch(context.Background(), tr("a", "A"))
	old := time.Now().Add(-time.Hour)
	_ = os.Chtimes(first, old, old)

	second, err := s.Fetch(context.Background(), tr("b", "B"))
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if fileExists(first) {
		t.Error("older unpinned entry survived eviction")
	}
	if !fileExists(second) {
		t.Error("fresh download was evicted")
	}
}

func TestEntries(t *testing.T) {
	pinned := tr("p", "Kept")
	s := createTestCache(t, &fakeFetcher{}, pinList{pinned}, 0)
	_ = os.WriteFile(s.Resolve(pinned), []byte("x"), 0644)
	_ = os.WriteFile(filepath.Join(s.Dir(), "notes.txt"), []byte("x"), 0644)

	entries, err := s.Entries()
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Entries() = %+v, want 1 entry", entries)
	}
	if !entries[0].Pinned || entries[0].TrackID != "p" {
		t.Errorf("entry = %+v, want pinned track p", entries[0])
	}
}

// seedAged writes a cache file for each track, oldest first
func seedAged(t *testing.T, s *Store, tracks ...music.Track) {
	t.Helper()
	base := time.Now().Add(-time.Hour)
	for i, track := range tracks {
		path := s.Resolve(track)
		if err := os.WriteFile(path, []byte("audio"), 0644); err != nil {
			t.Fatal(err)
		}
		at := base.Add(time.Duration(i) * time.Minute)
		if err := os.Chtimes(path, at, at); err != nil {
			t.Fatal(err)
		}
	}
}

func TestEvictSkipsUndeletableFiles(t *testing.T) {
	s := createTestCache(t, &fakeFetcher{}, nil, 2)
	seedAged(t, s, tr("u1", "One"), tr("u2", "Two"), tr("u3", "Three"), tr("u4", "Four"))

	locked := s.Resolve(tr("u1", "One"))
	s.remove = func(path string) error {
		if path == locked {
			return errors.New("file in use")
		}
		return os.Remove(path)
	}

	n, err := s.Evict()
	if err != nil {
		t.Fatalf("Evict() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Evict() removed %d, want 2", n)
	}
	for _, c := range []struct {
		track music.Track
		want  bool
	}{
		{tr("u1", "One"), true},
		{tr("u2", "Two"), false},
		{tr("u3", "Three"), false},
		{tr("u4", "Four"), true},
	} {
		if got := fileExists(s.Resolve(c.track)); got != c.want {
			t.Errorf("%s present = %v, want %v", c.track.ID, got, c.want)
		}
	}

	// Once the file is released the next pass removes it first
	s.remove = os.Remove
	if err := os.WriteFile(s.Resolve(tr("u5", "Five")), []byte("audio"), 0644); err != nil {
		t.Fatal(err)
	}
	n, err = s.Evict()
	if err != nil {
		t.Fatalf("Evict() retry error = %v", err)
	}
	if n != 1 || fileExists(locked) {
		t.Errorf("Evict() retry removed %d, u1 present = %v; want 1 and false", n, fileExists(locked))
	}
}

func TestEvictDefaultBound(t *testing.T) {
	s := createTestCache(t, &fakeFetcher{}, nil, 0)

	var seed []music.Track
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		seed = append(seed, tr(id, "Track "+id))
	}
	seedAged(t, s, seed...)

	n, err := s.Evict()
	if err != nil {
		t.Fatalf("Evict() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Evict() removed %d, want 2", n)
	}

	entries, err := s.Entries()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 5 {
		t.Fatalf("%d entries remain, want 5", len(entries))
	}
	for _, track := range seed[:2] {
		if fileExists(s.Resolve(track)) {
			t.Errorf("oldest entry %s survived eviction", track.ID)
		}
	}
}
