package player

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jfmyers9/luna/internal/music"
	"github.com/jfmyers9/luna/internal/playlist"
	"github.com/rs/zerolog"
)

// fakeEngine records calls and lets tests end the loaded track
type fakeEngine struct {
	mu       sync.Mutex
	loads    []string
	current  string
	onFinish func()
	paused   bool
	volume   float64
	fail     map[string]error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{fail: make(map[string]error), volume: 1}
}

func (e *fakeEngine) LoadAndPlay(ctx context.Context, path string, onFinish func()) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.fail[path]; err != nil {
		return err
	}
	e.loads = append(e.loads, path)
	e.current = path
	e.onFinish = onFinish
	e.paused = false
	return nil
}

func (e *fakeEngine) Pause(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = true
	return nil
}

func (e *fakeEngine) Resume(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = false
	return nil
}

func (e *fakeEngine) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = ""
	e.onFinish = nil
	return nil
}

func (e *fakeEngine) SetVolume(ctx context.Context, v float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volume = v
	return nil
}

func (e *fakeEngine) IsBusy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current != ""
}

// Finish simulates the loaded track reaching its end
func (e *fakeEngine) Finish() {
	e.mu.Lock()
	fn := e.onFinish
	e.onFinish = nil
	e.current = ""
	e.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (e *fakeEngine) Loads() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.loads))
	copy(out, e.loads)
	return out
}

// fakeCache serves pre-seeded paths and can hold downloads at a gate
type fakeCache struct {
	mu      sync.Mutex
	paths   map[string]string
	gates   map[string]chan struct{}
	fails   map[string]error
	fetches map[string]int
	started chan string
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		paths:   make(map[string]string),
		gates:   make(map[string]chan struct{}),
		fails:   make(map[string]error),
		fetches: make(map[string]int),
		started: make(chan string, 16),
	}
}

func (c *fakeCache) seed(track music.Track) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	path := filepath.Join("/cache", track.FileName())
	c.paths[track.ID] = path
	return path
}

func (c *fakeCache) gate(id string) chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan struct{})
	c.gates[id] = ch
	return ch
}

func (c *fakeCache) Cached(track music.Track) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	path, ok := c.paths[track.ID]
	return path, ok
}

func (c *fakeCache) Fetch(ctx context.Context, track music.Track) (string, error) {
	c.mu.Lock()
	c.fetches[track.ID]++
	gate := c.gates[track.ID]
	failure := c.fails[track.ID]
	c.mu.Unlock()

	c.started <- track.ID
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if failure != nil {
		return "", &music.FetchError{TrackID: track.ID, Err: failure}
	}
	return c.seed(track), nil
}

func (c *fakeCache) Fetches(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetches[id]
}

type fakeRecorder struct {
	mu     sync.Mutex
	titles []string
}

func (r *fakeRecorder) Append(title, url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.titles = append(r.titles, title)
}

func (r *fakeRecorder) Titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.titles...)
}

type testPlayer struct {
	*Orchestrator
	engine    *fakeEngine
	cache     *fakeCache
	playlists *playlist.Store
	recorder  *fakeRecorder
}

func createTestPlayer(t *testing.T) *testPlayer {
	t.Helper()
	return createTestPlayerWith(t, Config{Workers: 2})
}

func createTestPlayerWith(t *testing.T, cfg Config) *testPlayer {
	t.Helper()

	engine := newFakeEngine()
	cache := newFakeCache()
	recorder := &fakeRecorder{}
	store := playlist.NewStore(filepath.Join(t.TempDir(), "playlists.json"), zerolog.Nop())
	session := NewSession(engine, recorder, zerolog.Nop())
	seq := NewSequencer(store, nil)

	o := New(cfg, cache, store, session, seq, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_ = o.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-runDone
	})

	return &testPlayer{Orchestrator: o, engine: engine, cache: cache, playlists: store, recorder: recorder}
}

func track(id, title string) music.Track {
	return music.Track{ID: id, Title: title, SourceURL: "https://www.youtube.com/watch?v=" + id}
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// waitFor polls cond until it holds or the test times out
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitStarted(t *testing.T, c *fakeCache, id string) {
	t.Helper()
	select {
	case got := <-c.started:
		if got != id {
			t.Fatalf("fetch started for %s, want %s", got, id)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("fetch of %s never started", id)
	}
}

var errBoom = errors.New("boom")
