package youtube

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func TestSearchTerm(t *testing.T) {
	if got := searchTerm("lofi beats", 5); got != "ytsearch5:lofi beats" {
		t.Errorf("searchTerm() = %q", got)
	}
}

func TestConvertedPath(t *testing.T) {
	tests := []struct {
		filename string
		format   string
		want     string
	}{
		{"/cache/Song - abc.webm", "mp3", "/cache/Song - abc.mp3"},
		{"/cache/Song - abc.m4a", "mp3", "/cache/Song - abc.mp3"},
		{"/cache/Song v1.2 - abc.mp3", "mp3", "/cache/Song v1.2 - abc.mp3"},
	}

	for _, tt := range tests {
		if got := convertedPath(tt.filename, tt.format); got != tt.want {
			t.Errorf("convertedPath(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}

func TestNewTrack(t *testing.T) {
	tr := newTrack("dQw4w9WgXcQ", "", "")
	if tr.Title != "dQw4w9WgXcQ" {
		t.Errorf("Title = %q, want id fallback", tr.Title)
	}
	if tr.SourceURL != "https://www.youtube.com/watch?v=dQw4w9WgXcQ" {
		t.Errorf("SourceURL = %q", tr.SourceURL)
	}
	if tr.ThumbnailURL != "https://i.ytimg.com/vi/dQw4w9WgXcQ/hqdefault.jpg" {
		t.Errorf("ThumbnailURL = %q", tr.ThumbnailURL)
	}

	tr = newTrack("id", "Title", "https://example.com/t.jpg")
	if tr.Title != "Title" || tr.ThumbnailURL != "https://example.com/t.jpg" {
		t.Errorf("newTrack() = %+v", tr)
	}
}

func TestSearchBlankQuery(t *testing.T) {
	c := New(Config{}, zerolog.Nop())
	got, err := c.Search(context.Background(), "   ", 5)
	if err != nil || got != nil {
		t.Errorf("Search() = %v, %v, want nil, nil", got, err)
	}
}
