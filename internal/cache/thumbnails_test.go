package cache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/jfmyers9/luna/internal/music"
	"github.com/rs/zerolog"
)

func TestThumbnails_DownloadsOnce(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("jpegdata"))
	}))
	defer srv.Close()

	th := NewThumbnails(t.TempDir(), zerolog.Nop())
	track := music.Track{ID: "abc", ThumbnailURL: srv.URL + "/abc.jpg"}

	first := th.Get(context.Background(), track)
	second := th.Get(context.Background(), track)

	if first == "" || first != th.Path("abc") || second != first {
		t.Errorf("Get() = %q, %q, want %q", first, second, th.Path("abc"))
	}
	data, err := os.ReadFile(first)
	if err != nil || string(data) != "jpegdata" {
		t.Errorf("thumbnail content = %q, err = %v", data, err)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("expected 1 HTTP request, got %d", n)
	}
}

func TestThumbnails_FailureIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	th := NewThumbnails(t.TempDir(), zerolog.Nop())

	if got := th.Get(context.Background(), music.Track{ID: "x", ThumbnailURL: srv.URL}); got != "" {
		t.Errorf("Get() = %q, want empty on HTTP error", got)
	}
	if got := th.Get(context.Background(), music.Track{ID: "y"}); got != "" {
		t.Errorf("Get() = %q, want empty without URL", got)
	}
	if _, err := os.Stat(th.Path("x")); !os.IsNotExist(err) {
		t.Errorf("failed download left a file, stat err = %v", err)
	}
}
