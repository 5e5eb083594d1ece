package music

import (
	"errors"
	"fmt"
	"testing"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain title unchanged",
			input: "Song A - abc123.mp3",
			want:  "Song A - abc123.mp3",
		},
		{
			name:  "drops path separators and quotes",
			input: `AC/DC: "Back in Black"`,
			want:  "ACDC Back in Black",
		},
		{
			name:  "keeps brackets and parentheses",
			input: "Track (Live) [Remastered]",
			want:  "Track (Live) [Remastered]",
		},
		{
			name:  "keeps non-latin letters",
			input: "夜に駆ける - x1y2",
			want:  "夜に駆ける - x1y2",
		},
		{
			name:  "trims surrounding whitespace",
			input: "  ?? padded ??  ",
			want:  "padded",
		},
		{
			name:  "drops emoji",
			input: "🎵 Music",
			want:  "Music",
		},
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(tt.input)
			if got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTrackFileName(t *testing.T) {
	track := Track{ID: "abc123", Title: "Song A"}
	if got := track.FileName(); got != "Song A - abc123.mp3" {
		t.Errorf("FileName() = %q, want %q", got, "Song A - abc123.mp3")
	}

	odd := Track{ID: "zz9", Title: "What? / Why!"}
	if got := odd.FileName(); got != "What  Why - zz9.mp3" {
		t.Errorf("FileName() = %q, want %q", got, "What  Why - zz9.mp3")
	}
}

func TestSameTrack(t *testing.T) {
	a := &Track{ID: "1", Title: "One"}
	renamed := &Track{ID: "1", Title: "One (Remix)"}
	b := &Track{ID: "2", Title: "One"}

	if !SameTrack(a, renamed) {
		t.Error("expected tracks with equal ids to match")
	}
	if SameTrack(a, b) {
		t.Error("expected tracks with different ids not to match")
	}
	if SameTrack(a, nil) || SameTrack(nil, nil) {
		t.Error("expected nil tracks never to match")
	}
}

func TestFetchErrorIs(t *testing.T) {
	cause := errors.New("network down")
	err := fmt.Errorf("wrapped: %w", &FetchError{TrackID: "abc", Err: cause})

	if !errors.Is(err, ErrFetch) {
		t.Error("expected errors.Is(err, ErrFetch)")
	}
	if !errors.Is(err, cause) {
		t.Error("expected the cause to be reachable through Unwrap")
	}

	var fe *FetchError
	if !errors.As(err, &fe) || fe.TrackID != "abc" {
		t.Errorf("errors.As failed, got %+v", fe)
	}

	if (&FetchError{TrackID: "x"}).Error() == "" {
		t.Error("expected a message for a FetchError without cause")
	}
}
