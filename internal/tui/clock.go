package tui

import (
	"time"

	"github.com/jfmyers9/luna/internal/music"
	"github.com/jfmyers9/luna/internal/player"
)

// elapsedClock tracks play time of the current track, excluding pauses
type elapsedClock struct {
	trackID  string
	started  time.Time     // When playback started or last resumed
	pausedAt time.Time     // Zero unless paused
	played   time.Duration // Accumulated before the last resume
	running  bool
}

// observe updates the clock from a session snapshot taken at now
func (c *elapsedClock) observe(st player.State, now time.Time) {
	if st.Track == nil || st.Status == music.StateStopped {
		*c = elapsedClock{}
		return
	}

	// New track: reset
	if !c.running || st.Track.ID != c.trackID {
		*c = elapsedClock{trackID: st.Track.ID, started: now, running: true}
	}

	switch st.Status {
	case music.StatePaused:
		if c.pausedAt.IsZero() {
			c.pausedAt = now
		}
	case music.StatePlaying:
		if !c.pausedAt.IsZero() {
			c.played += c.pausedAt.Sub(c.started)
			c.started = now
			c.pausedAt = time.Time{}
		}
	}
}

// elapsed returns the play time at now
func (c *elapsedClock) elapsed(now time.Time) time.Duration {
	if !c.running {
		return 0
	}
	if !c.pausedAt.IsZero() {
		return c.played + c.pausedAt.Sub(c.started)
	}
	return c.played + now.Sub(c.started)
}
