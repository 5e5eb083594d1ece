// Package youtube searches the YouTube catalog and downloads audio through
// yt-dlp. The ffmpeg location is passed to yt-dlp as configured and is never
// resolved or installed here.
package youtube

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jfmyers9/luna/internal/music"
	"github.com/lrstanley/go-ytdlp"
	"github.com/rs/zerolog"
)

const (
	watchURL     = "https://www.youtube.com/watch?v="
	thumbnailURL = "https://i.ytimg.com/vi/%s/hqdefault.jpg"
)

// Config holds yt-dlp settings
type Config struct {
	Binary         string // yt-dlp executable, empty for PATH lookup
	FFmpegLocation string // Passed to --ffmpeg-location when set
	OutputDir      string // Directory audio files are written to
	AudioFormat    string // Target codec, default mp3
	AudioQuality   string // Target bitrate, default 192K
}

// Client wraps yt-dlp for catalog search and audio download
type Client struct {
	cfg    Config
	logger zerolog.Logger
}

// New creates a Client
func New(cfg Config, logger zerolog.Logger) *Client {
	if cfg.AudioFormat == "" {
		cfg.AudioFormat = "mp3"
	}
	if cfg.AudioQuality == "" {
		cfg.AudioQuality = "192K"
	}
	return &Client{
		cfg:    cfg,
		logger: logger.With().Str("component", "youtube").Logger(),
	}
}

func (c *Client) command() *ytdlp.Command {
	dl := ytdlp.New().NoWarnings()
	if c.cfg.Binary != "" {
		dl.SetExecutable(c.cfg.Binary)
	}
	return dl
}

// Search returns up to maxResults tracks matching query, in catalog order
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]music.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if maxResults <= 0 {
		maxResults = 10
	}

	dl := c.command().
		FlatPlaylist().
		DumpJSON()

	result, err := dl.Run(ctx, searchTerm(query, maxResults))
	if err != nil {
		return nil, fmt.Errorf("failed to search %q: %w", query, err)
	}

	infos, err := result.GetExtractedInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to parse search results: %w", err)
	}

	tracks := make([]music.Track, 0, len(infos))
	for _, info := range infos {
		if info == nil || info.ID == "" {
			continue
		}
		tracks = append(tracks, newTrack(info.ID, deref(info.Title), deref(info.Thumbnail)))
		if len(tracks) == maxResults {
			break
		}
	}

	c.logger.Debug().Str("query", query).Int("results", len(tracks)).Msg("Search complete")
	return tracks, nil
}

// Fetch downloads the audio of sourceURL into OutputDir and converts it.
// The returned path is where the converted file is expected; callers should
// verify it exists.
func (c *Client) Fetch(ctx context.Context, sourceURL string, track music.Track) (string, error) {
	if sourceURL == "" {
		sourceURL = watchURL + track.ID
	}

	dl := c.command().
		NoPlaylist().
		NoMtime().
		ExtractAudio().
		AudioFormat(c.cfg.AudioFormat).
		AudioQuality(c.cfg.AudioQuality).
		PrintJSON().
		Output(filepath.Join(c.cfg.OutputDir, "%(title)s - %(id)s.%(ext)s"))
	if c.cfg.FFmpegLocation != "" {
		dl.FFmpegLocation(c.cfg.FFmpegLocation)
	}

	result, err := dl.Run(ctx, sourceURL)
	if err != nil {
		return "", fmt.Errorf("yt-dlp failed for %s: %w", sourceURL, err)
	}

	infos, err := result.GetExtractedInfo()
	if err != nil || len(infos) == 0 || infos[0].Filename == nil {
		// Let the cache fall back to scanning for the file
		c.logger.Debug().Err(err).Str("track_id", track.ID).Msg("yt-dlp did not report a filename")
		return "", nil
	}
	return convertedPath(*infos[0].Filename, c.cfg.AudioFormat), nil
}

// searchTerm builds yt-dlp's search pseudo-URL
func searchTerm(query string, n int) string {
	return fmt.Sprintf("ytsearch%d:%s", n, query)
}

// convertedPath swaps the container extension reported before
// post-processing for the target audio extension
func convertedPath(filename, format string) string {
	ext := filepath.Ext(filename)
	return strings.TrimSuffix(filename, ext) + "." + format
}

func newTrack(id, title, thumbnail string) music.Track {
	if thumbnail == "" {
		thumbnail = fmt.Sprintf(thumbnailURL, id)
	}
	if title == "" {
		title = id
	}
	return music.Track{
		ID:           id,
		Title:        title,
		SourceURL:    watchURL + id,
		ThumbnailURL: thumbnail,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
