package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/jfmyers9/luna/internal/music"
	"github.com/jfmyers9/luna/internal/player"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00"},
		{-5 * time.Second, "00:00"},
		{65 * time.Second, "01:05"},
		{59*time.Minute + 59*time.Second, "59:59"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestElapsedClock(t *testing.T) {
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	song := &music.Track{ID: "a", Title: "A"}
	other := &music.Track{ID: "b", Title: "B"}
	var c elapsedClock

	c.observe(player.State{Status: music.StatePlaying, Track: song}, base)
	if got := c.elapsed(base.Add(10 * time.Second)); got != 10*time.Second {
		t.Errorf("elapsed while playing = %v, want 10s", got)
	}

	c.observe(player.State{Status: music.StatePaused, Track: song}, base.Add(10*time.Second))
	if got := c.elapsed(base.Add(time.Minute)); got != 10*time.Second {
		t.Errorf("elapsed while paused = %v, want 10s", got)
	}

	c.observe(player.State{Status: music.StatePlaying, Track: song}, base.Add(time.Minute))
	if got := c.elapsed(base.Add(time.Minute + 5*time.Second)); got != 15*time.Second {
		t.Errorf("elapsed after resume = %v, want 15s", got)
	}

	c.observe(player.State{Status: music.StatePlaying, Track: other}, base.Add(2*time.Minute))
	if got := c.elapsed(base.Add(2*time.Minute + time.Second)); got != time.Second {
		t.Errorf("elapsed after track change = %v, want 1s", got)
	}

	c.observe(player.State{Status: music.StateStopped}, base.Add(3*time.Minute))
	if got := c.elapsed(base.Add(4 * time.Minute)); got != 0 {
		t.Errorf("elapsed after stop = %v, want 0", got)
	}
}

func TestRenderNowPlaying(t *testing.T) {
	tests := []struct {
		name     string
		status   player.Status
		contains []string
	}{
		{
			name:     "stopped",
			status:   player.Status{State: player.State{Status: music.StateStopped, Index: -1, Volume: 1}},
			contains: []string{"No track playing", "vol 100%"},
		},
		{
			name: "playing from playlist",
			status: player.Status{
				State: player.State{
					Status:   music.StatePlaying,
					Track:    &music.Track{ID: "x", Title: "Song [live]"},
					Playlist: "Road",
					Index:    1,
					Volume:   0.5,
				},
				PlayAll: true,
				Items:   make([]music.Track, 3),
			},
			contains: []string{"Song [live[]", "Road 2/3", "play all", "vol 50%", "▶"},
		},
		{
			name: "paused",
			status: player.Status{
				State: player.State{Status: music.StatePaused, Track: &music.Track{ID: "x", Title: "Quiet"}, Index: -1},
			},
			contains: []string{"Quiet", "⏸"},
		},
		{
			name: "downloading",
			status: player.Status{
				State:       player.State{Status: music.StateStopped, Index: -1},
				Downloading: &music.Track{ID: "d", Title: "Incoming"},
			},
			contains: []string{"Downloading", "Incoming"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := renderNowPlaying(tt.status, 0)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("renderNowPlaying() = %q, missing %q", got, want)
				}
			}
		})
	}
}
