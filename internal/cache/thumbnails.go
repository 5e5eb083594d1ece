package cache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/jfmyers9/luna/internal/music"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Thumbnails caches track artwork as <id>.jpg. Artwork is optional: every
// failure yields an empty path.
type Thumbnails struct {
	dir    string
	client *http.Client
	logger zerolog.Logger
	group  singleflight.Group
}

// NewThumbnails returns a thumbnail cache rooted at dir
func NewThumbnails(dir string, logger zerolog.Logger) *Thumbnails {
	return &Thumbnails{
		dir: dir,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger.With().Str("component", "thumbnails").Logger(),
	}
}

// Path returns where the artwork for a track id is stored
func (t *Thumbnails) Path(trackID string) string {
	return filepath.Join(t.dir, music.Sanitize(trackID)+".jpg")
}

// Get returns the local artwork path for a track, downloading it on first use
func (t *Thumbnails) Get(ctx context.Context, track music.Track) string {
	if track.ID == "" || track.ThumbnailURL == "" {
		return ""
	}

	path := t.Path(track.ID)
	if fileExists(path) {
		return path
	}

	v, _, _ := t.group.Do(track.ID, func() (any, error) {
		if err := t.download(ctx, track.ThumbnailURL, path); err != nil {
			t.logger.Debug().Err(err).Str("track_id", track.ID).Msg("Thumbnail unavailable")
			return "", nil
		}
		return path, nil
	})
	return v.(string)
}

func (t *Thumbnails) download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(t.dir, 0755); err != nil {
		return err
	}

	tmp := dest + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	n, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && n == 0 {
		err = fmt.Errorf("empty response body")
	}
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dest)
}
