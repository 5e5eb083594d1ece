package player

import (
	"context"
	"fmt"
	"sync"

	"github.com/jfmyers9/luna/internal/music"
	"github.com/rs/zerolog"
)

// Recorder receives one call per track that starts playing
type Recorder interface {
	Append(title, url string)
}

// PlaylistContext locates a track inside a playlist
type PlaylistContext struct {
	Name  string
	Index int
}

// State is a snapshot of the playback session
type State struct {
	Status   music.PlayState
	Track    *music.Track // nil when stopped
	Playlist string       // empty when not playing from a playlist
	Index    int          // -1 when Playlist is empty
	Volume   float64
}

// Session is the playback state machine over a music.Engine.
// Every transition is serialized by one mutex.
type Session struct {
	engine   music.Engine
	recorder Recorder
	logger   zerolog.Logger

	mu         sync.Mutex
	state      State
	generation uint64
	onFinish   func(gen uint64)
}

// NewSession creates a stopped session at full volume. recorder may be nil.
func NewSession(engine music.Engine, recorder Recorder, logger zerolog.Logger) *Session {
	return &Session{
		engine:   engine,
		recorder: recorder,
		logger:   logger.With().Str("component", "session").Logger(),
		state:    State{Status: music.StateStopped, Index: -1, Volume: 1.0},
	}
}

// SetFinishHandler registers the function called when a loaded track
// finishes on its own. It receives the generation returned by Load.
func (s *Session) SetFinishHandler(fn func(gen uint64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFinish = fn
}

// Load stops any loaded audio and starts path. On failure the session is
// left stopped and the error matches music.ErrPlayback.
func (s *Session) Load(ctx context.Context, path string, track music.Track, pc *PlaylistContext) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.engine.Stop(ctx); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to stop previous audio")
	}

	s.generation++
	gen := s.generation
	volume := s.state.Volume

	if err := s.engine.SetVolume(ctx, volume); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to preset volume")
	}

	if err := s.engine.LoadAndPlay(ctx, path, func() { s.finished(gen) }); err != nil {
		s.state = State{Status: music.StateStopped, Index: -1, Volume: volume}
		return gen, fmt.Errorf("%w: %s: %w", music.ErrPlayback, track.Title, err)
	}

	t := track
	s.state = State{Status: music.StatePlaying, Track: &t, Index: -1, Volume: volume}
	if pc != nil {
		s.state.Playlist = pc.Name
		s.state.Index = pc.Index
	}

	s.logger.Info().Str("track", track.Title).Str("id", track.ID).Msg("Now playing")
	if s.recorder != nil {
		s.recorder.Append(track.Title, track.SourceURL)
	}
	return gen, nil
}

// finished runs on the engine's goroutine
func (s *Session) finished(gen uint64) {
	s.mu.Lock()
	if gen != s.generation || s.state.Status == music.StateStopped {
		s.mu.Unlock()
		return
	}
	s.state = State{Status: music.StateStopped, Index: -1, Volume: s.state.Volume}
	fn := s.onFinish
	s.mu.Unlock()

	if fn != nil {
		fn(gen)
	}
}

// Pause is valid only while playing
func (s *Session) Pause(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Status != music.StatePlaying {
		return fmt.Errorf("pause while %s: %w", s.state.Status, music.ErrInvalidState)
	}
	if err := s.engine.Pause(ctx); err != nil {
		return fmt.Errorf("failed to pause: %w", err)
	}
	s.state.Status = music.StatePaused
	return nil
}

// Resume is valid only while paused
func (s *Session) Resume(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Status != music.StatePaused {
		return fmt.Errorf("resume while %s: %w", s.state.Status, music.ErrInvalidState)
	}
	if err := s.engine.Resume(ctx); err != nil {
		return fmt.Errorf("failed to resume: %w", err)
	}
	s.state.Status = music.StatePlaying
	return nil
}

// Stop unloads any audio and clears the track and playlist position.
// It always succeeds.
func (s *Session) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.engine.Stop(ctx); err != nil {
		s.logger.Debug().Err(err).Msg("Engine stop failed")
	}
	// Invalidate any completion still in flight for the stopped load
	s.generation++
	s.state = State{Status: music.StateStopped, Index: -1, Volume: s.state.Volume}
}

// SetVolume clamps v to [0,1] and applies it to loaded audio.
// The stored volume is updated even if the engine rejects it.
func (s *Session) SetVolume(ctx context.Context, v float64) (float64, error) {
	v = clamp(v)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Volume = v
	if err := s.engine.SetVolume(ctx, v); err != nil {
		return v, fmt.Errorf("failed to set volume: %w", err)
	}
	return v, nil
}

// Reposition updates the playlist index of the playing track after its
// playlist was reordered
func (s *Session) Reposition(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Playlist == "" {
		return
	}
	s.state.Index = index
}

// State returns a snapshot of the session
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state
	if st.Track != nil {
		t := *st.Track
		st.Track = &t
	}
	return st
}

// Generation identifies the most recent Load or Stop
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func clamp(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
