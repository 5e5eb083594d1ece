package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jfmyers9/luna/internal/music"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrNotRunning is returned by Orchestrator methods when Run has exited
var ErrNotRunning = errors.New("player is not running")

// Cache is the subset of cache.Store the player needs
type Cache interface {
	Cached(track music.Track) (string, bool)
	Fetch(ctx context.Context, track music.Track) (string, error)
}

// Config holds orchestrator configuration
type Config struct {
	Workers       int           // Concurrent downloads
	FetchRate     float64       // Download starts per second, 0 for unlimited
	LoadTimeout   time.Duration // Bound on one engine load
	InitialVolume *float64      // Volume applied when Run starts, nil keeps the session volume
}

// Status is a snapshot of the whole player
type Status struct {
	State
	Downloading *music.Track // Track whose download the current request waits on
	PlayAll     bool         // Sequential playback is active
	Items       []music.Track
}

// Event is published to subscribers after every transition
type Event struct {
	Status Status
	Err    error // Failure of a request that was not awaited, e.g. during play-all
}

// playRequest is one PlayTrack target
type playRequest struct {
	ticket  uuid.UUID
	track   music.Track
	pc      *PlaylistContext
	playAll bool
	reply   chan error // nil for requests nobody waits on
}

func (r *playRequest) respond(err error) {
	if r.reply != nil {
		r.reply <- err
	}
}

type fetchJob struct {
	ticket uuid.UUID
	track  music.Track
}

type fetchResult struct {
	fetchJob
	path string
	err  error
}

// Orchestrator owns the Session and Sequencer. All mutations run on the
// goroutine started by Run; downloads run on a bounded worker pool and post
// their results back to it.
type Orchestrator struct {
	cfg       Config
	cache     Cache
	playlists PlaylistStore
	session   *Session
	seq       *Sequencer
	limiter   *rate.Limiter
	logger    zerolog.Logger

	cmds     chan func(ctx context.Context)
	jobs     chan fetchJob
	results  chan fetchResult
	finished chan uint64
	done     chan struct{}
	runOnce  sync.Once

	subMu sync.Mutex
	subs  map[chan Event]struct{}

	// Owned by the loop goroutine
	pending *playRequest
	playAll bool
}

// New creates an Orchestrator. Call Run before using it.
func New(cfg Config, cache Cache, playlists PlaylistStore, session *Session, seq *Sequencer, logger zerolog.Logger) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.FetchRate > 0 {
		limit = rate.Limit(cfg.FetchRate)
	}

	o := &Orchestrator{
		cfg:       cfg,
		cache:     cache,
		playlists: playlists,
		session:   session,
		seq:       seq,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger.With().Str("component", "player").Logger(),
		cmds:      make(chan func(ctx context.Context)),
		jobs:      make(chan fetchJob, 16),
		results:   make(chan fetchResult),
		finished:  make(chan uint64),
		done:      make(chan struct{}),
		subs:      make(map[chan Event]struct{}),
	}
	session.SetFinishHandler(o.onFinish)
	return o
}

// Run starts the workers and the owning loop. It blocks until ctx is
// cancelled, then stops playback.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info().Int("workers", o.cfg.Workers).Msg("Starting player")

	if o.cfg.InitialVolume != nil {
		if _, err := o.session.SetVolume(ctx, *o.cfg.InitialVolume); err != nil {
			o.logger.Debug().Err(err).Msg("Failed to apply initial volume")
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < o.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.worker(ctx)
		}()
	}

	o.loop(ctx)

	o.runOnce.Do(func() { close(o.done) })
	o.session.Stop(context.Background())
	if o.pending != nil {
		o.pending.respond(ErrNotRunning)
		o.pending = nil
	}
	wg.Wait()

	o.subMu.Lock()
	for ch := range o.subs {
		close(ch)
		delete(o.subs, ch)
	}
	o.subMu.Unlock()

	o.logger.Info().Msg("Player stopped")
	return nil
}

func (o *Orchestrator) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-o.cmds:
			cmd(ctx)
		case res := <-o.results:
			o.handleResult(ctx, res)
		case gen := <-o.finished:
			o.handleFinished(ctx, gen)
		}
	}
}

// worker downloads tracks until ctx is cancelled. A download always runs
// to completion so the cache is populated even when its request was
// superseded.
func (o *Orchestrator) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-o.jobs:
			if err := o.limiter.Wait(ctx); err != nil {
				return
			}
			path, err := o.cache.Fetch(ctx, job.track)
			select {
			case o.results <- fetchResult{fetchJob: job, path: path, err: err}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// onFinish is called on the engine's goroutine
func (o *Orchestrator) onFinish(gen uint64) {
	select {
	case o.finished <- gen:
	case <-o.done:
	}
}

// do runs fn on the loop and waits for it to return
func (o *Orchestrator) do(ctx context.Context, fn func(ctx context.Context) error) error {
	errc := make(chan error, 1)
	cmd := func(loopCtx context.Context) { errc <- fn(loopCtx) }

	select {
	case o.cmds <- cmd:
	case <-o.done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-errc:
		return err
	case <-o.done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PlayTrack resolves track through the cache and plays it. It returns once
// playback started, or with music.ErrDownloadFailed, music.ErrPlayback or
// music.ErrSuperseded. pc, when set, moves the sequencer to that position.
func (o *Orchestrator) PlayTrack(ctx context.Context, track music.Track, pc *PlaylistContext) error {
	reply := make(chan error, 1)
	err := o.do(ctx, func(loopCtx context.Context) error {
		o.start(loopCtx, &playRequest{track: track, pc: pc, reply: reply})
		return nil
	})
	if err != nil {
		return err
	}
	return o.await(ctx, reply)
}

// SkipNext plays the following item of the open playlist, wrapping
func (o *Orchestrator) SkipNext(ctx context.Context) error {
	return o.skip(ctx, o.seq.Next)
}

// SkipPrev plays the previous item of the open playlist, wrapping
func (o *Orchestrator) SkipPrev(ctx context.Context) error {
	return o.skip(ctx, o.seq.Prev)
}

func (o *Orchestrator) skip(ctx context.Context, move func() (music.Track, int, error)) error {
	reply := make(chan error, 1)
	err := o.do(ctx, func(loopCtx context.Context) error {
		track, idx, err := move()
		if err != nil {
			return err
		}
		o.start(loopCtx, &playRequest{
			track:   track,
			pc:      &PlaylistContext{Name: o.seq.Playlist(), Index: idx},
			playAll: o.playAll,
			reply:   reply,
		})
		return nil
	})
	if err != nil {
		return err
	}
	return o.await(ctx, reply)
}

// PlayAllFrom plays the open playlist sequentially from index, advancing
// on each track completion and stopping after the last item. It returns
// once the first track started.
func (o *Orchestrator) PlayAllFrom(ctx context.Context, index int) error {
	reply := make(chan error, 1)
	err := o.do(ctx, func(loopCtx context.Context) error {
		track, err := o.seq.PlayFromIndex(index)
		if err != nil {
			return err
		}
		o.start(loopCtx, &playRequest{
			track:   track,
			pc:      &PlaylistContext{Name: o.seq.Playlist(), Index: index},
			playAll: true,
			reply:   reply,
		})
		return nil
	})
	if err != nil {
		return err
	}
	return o.await(ctx, reply)
}

func (o *Orchestrator) await(ctx context.Context, reply <-chan error) error {
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-o.done:
		return ErrNotRunning
	}
}

// start makes req the current target. Runs on the loop.
func (o *Orchestrator) start(ctx context.Context, req *playRequest) {
	req.ticket = uuid.New()
	if prev := o.pending; prev != nil {
		o.logger.Debug().Str("track_id", prev.track.ID).Msg("Request superseded")
		prev.respond(music.ErrSuperseded)
	}
	o.pending = req

	if path, ok := o.cache.Cached(req.track); ok {
		o.load(ctx, req, path)
		return
	}

	job := fetchJob{ticket: req.ticket, track: req.track}
	select {
	case o.jobs <- job:
	default:
		// Queue full; hand off without blocking the loop
		go func() {
			select {
			case o.jobs <- job:
			case <-o.done:
			}
		}()
	}
	o.publish(nil)
}

// handleResult applies a finished download if it is still the target
func (o *Orchestrator) handleResult(ctx context.Context, res fetchResult) {
	req := o.pending
	if req == nil || req.ticket != res.ticket || !music.SameTrack(&req.track, &res.track) {
		o.logger.Debug().Str("track_id", res.track.ID).Err(res.err).Msg("Discarding stale download")
		return
	}

	if res.err != nil {
		o.pending = nil
		err := fmt.Errorf("%w: %w", music.ErrDownloadFailed, res.err)
		o.logger.Warn().Err(res.err).Str("track_id", res.track.ID).Msg("Download failed")
		o.fail(req, err)
		return
	}

	o.load(ctx, req, res.path)
}

func (o *Orchestrator) load(ctx context.Context, req *playRequest, path string) {
	o.pending = nil

	pc := req.pc
	if pc != nil && pc.Name != o.seq.Playlist() {
		if err := o.seq.Open(pc.Name); err != nil {
			o.fail(req, err)
			return
		}
	}
	if pc != nil {
		// The playlist may have been reordered or edited during the download
		idx := locate(o.seq.Items(), &req.track, pc.Index)
		if idx < 0 {
			o.fail(req, fmt.Errorf("track %s in playlist %q: %w", req.track.ID, pc.Name, music.ErrNotFound))
			return
		}
		if _, err := o.seq.PlayFromIndex(idx); err != nil {
			o.fail(req, err)
			return
		}
		pc = &PlaylistContext{Name: pc.Name, Index: idx}
	}

	loadCtx, cancel := context.WithTimeout(ctx, o.cfg.LoadTimeout)
	defer cancel()

	if _, err := o.session.Load(loadCtx, path, req.track, pc); err != nil {
		o.logger.Error().Err(err).Str("path", path).Msg("Failed to load track")
		// The session stopped the previous audio, so nothing is left to advance
		o.playAll = false
		o.fail(req, err)
		return
	}

	o.playAll = req.playAll
	req.respond(nil)
	o.publish(nil)
}

// fail ends req without loading it. A failed play-all step ends the chain.
func (o *Orchestrator) fail(req *playRequest, err error) {
	if req.playAll {
		o.playAll = false
	}
	req.respond(err)
	o.publish(err)
}

// handleFinished advances a sequential session when a track ends
func (o *Orchestrator) handleFinished(ctx context.Context, gen uint64) {
	if gen != o.session.Generation() {
		return
	}
	// A newer request is already on its way
	if !o.playAll || o.pending != nil {
		o.publish(nil)
		return
	}

	track, idx, err := o.seq.AdvanceSequential()
	if err != nil {
		o.logger.Info().Str("playlist", o.seq.Playlist()).Msg("Reached end of playlist")
		o.playAll = false
		o.session.Stop(ctx)
		o.publish(nil)
		return
	}

	o.start(ctx, &playRequest{
		track:   track,
		pc:      &PlaylistContext{Name: o.seq.Playlist(), Index: idx},
		playAll: true,
	})
}

// Pause pauses playback
func (o *Orchestrator) Pause(ctx context.Context) error {
	return o.do(ctx, func(loopCtx context.Context) error {
		err := o.session.Pause(loopCtx)
		o.publish(nil)
		return err
	})
}

// Resume resumes paused playback
func (o *Orchestrator) Resume(ctx context.Context) error {
	return o.do(ctx, func(loopCtx context.Context) error {
		err := o.session.Resume(loopCtx)
		o.publish(nil)
		return err
	})
}

// TogglePause pauses when playing and resumes when paused
func (o *Orchestrator) TogglePause(ctx context.Context) error {
	return o.do(ctx, func(loopCtx context.Context) error {
		var err error
		switch o.session.State().Status {
		case music.StatePlaying:
			err = o.session.Pause(loopCtx)
		case music.StatePaused:
			err = o.session.Resume(loopCtx)
		default:
			err = fmt.Errorf("nothing loaded: %w", music.ErrInvalidState)
		}
		o.publish(nil)
		return err
	})
}

// Stop ends playback, cancels sequential play and supersedes any request
// still waiting on a download
func (o *Orchestrator) Stop(ctx context.Context) error {
	return o.do(ctx, func(loopCtx context.Context) error {
		o.stop(loopCtx)
		return nil
	})
}

func (o *Orchestrator) stop(ctx context.Context) {
	if o.pending != nil {
		o.pending.respond(music.ErrSuperseded)
		o.pending = nil
	}
	o.playAll = false
	o.session.Stop(ctx)
	o.publish(nil)
}

// SetVolume sets the clamped volume and returns the applied value
func (o *Orchestrator) SetVolume(ctx context.Context, v float64) (float64, error) {
	var applied float64
	err := o.do(ctx, func(loopCtx context.Context) error {
		var err error
		applied, err = o.session.SetVolume(loopCtx, v)
		o.publish(nil)
		return err
	})
	return applied, err
}

// OpenPlaylist makes name the playlist that skip and play-all operate on
func (o *Orchestrator) OpenPlaylist(ctx context.Context, name string) error {
	return o.do(ctx, func(loopCtx context.Context) error {
		if err := o.seq.Open(name); err != nil {
			return err
		}
		// Keep the index of a track already playing from this playlist
		if st := o.session.State(); st.Playlist == name && st.Track != nil {
			o.seq.relocate(st.Track, st.Index)
		}
		o.publish(nil)
		return nil
	})
}

// Shuffle permutes the open playlist, keeping the playing track's position
func (o *Orchestrator) Shuffle(ctx context.Context) error {
	return o.do(ctx, func(loopCtx context.Context) error {
		return o.reorder(o.seq.Shuffle)
	})
}

// Sort orders the open playlist by title, keeping the playing track's position
func (o *Orchestrator) Sort(ctx context.Context) error {
	return o.do(ctx, func(loopCtx context.Context) error {
		return o.reorder(o.seq.SortAlphabetical)
	})
}

func (o *Orchestrator) reorder(fn func(playing *music.Track) error) error {
	playing := o.playingFromOpen()
	if err := fn(playing); err != nil {
		return err
	}
	if playing != nil {
		o.session.Reposition(o.seq.Index())
	}
	o.publish(nil)
	return nil
}

// playingFromOpen returns the playing track if it belongs to the open playlist
func (o *Orchestrator) playingFromOpen() *music.Track {
	st := o.session.State()
	if st.Track == nil || st.Playlist == "" || st.Playlist != o.seq.Playlist() {
		return nil
	}
	return st.Track
}

// AddToPlaylist appends a track and refreshes the open playlist
func (o *Orchestrator) AddToPlaylist(ctx context.Context, name string, track music.Track) error {
	return o.do(ctx, func(loopCtx context.Context) error {
		if err := o.playlists.Add(name, track); err != nil {
			return err
		}
		return o.refresh(loopCtx, name)
	})
}

// RemoveFromPlaylist removes items from a playlist. Removing the track that
// is playing from that playlist stops playback.
func (o *Orchestrator) RemoveFromPlaylist(ctx context.Context, name string, indices []int) ([]music.Track, error) {
	var removed []music.Track
	err := o.do(ctx, func(loopCtx context.Context) error {
		var err error
		removed, err = o.playlists.Remove(name, indices)
		if err != nil {
			return err
		}

		st := o.session.State()
		if st.Track != nil && st.Playlist == name {
			for _, idx := range indices {
				if idx == st.Index {
					o.logger.Info().Str("track", st.Track.Title).Msg("Playing track removed, stopping")
					o.stop(loopCtx)
					return o.refresh(loopCtx, name)
				}
			}
		}
		return o.refresh(loopCtx, name)
	})
	return removed, err
}

func (o *Orchestrator) refresh(ctx context.Context, name string) error {
	if name != o.seq.Playlist() {
		o.publish(nil)
		return nil
	}
	playing := o.playingFromOpen()
	if err := o.seq.Refresh(playing); err != nil {
		return err
	}
	if playing != nil {
		if o.seq.Index() < 0 {
			o.stop(ctx)
			return nil
		}
		o.session.Reposition(o.seq.Index())
	}
	o.publish(nil)
	return nil
}

// Status returns a snapshot of the player
func (o *Orchestrator) Status(ctx context.Context) (Status, error) {
	var st Status
	err := o.do(ctx, func(context.Context) error {
		st = o.status()
		return nil
	})
	return st, err
}

// status runs on the loop
func (o *Orchestrator) status() Status {
	st := Status{State: o.session.State(), PlayAll: o.playAll, Items: o.seq.Items()}
	if o.pending != nil {
		t := o.pending.track
		st.Downloading = &t
	}
	return st
}

// State returns the playback session snapshot. Safe to call from any
// goroutine, including before Run.
func (o *Orchestrator) State() State {
	return o.session.State()
}

// Subscribe returns a channel receiving an Event after every transition,
// and a function that cancels the subscription. Slow subscribers miss events.
func (o *Orchestrator) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)

	o.subMu.Lock()
	o.subs[ch] = struct{}{}
	o.subMu.Unlock()

	cancel := func() {
		o.subMu.Lock()
		defer o.subMu.Unlock()
		if _, ok := o.subs[ch]; ok {
			delete(o.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

// publish runs on the loop
func (o *Orchestrator) publish(err error) {
	o.subMu.Lock()
	defer o.subMu.Unlock()
	if len(o.subs) == 0 {
		return
	}

	ev := Event{Status: o.status(), Err: err}
	for ch := range o.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
