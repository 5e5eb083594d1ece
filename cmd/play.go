package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jfmyers9/luna/internal/music"
	"github.com/jfmyers9/luna/internal/player"
	"github.com/spf13/cobra"
)

// playCmd represents the play command
var playCmd = &cobra.Command{
	Use:   "play [QUERY...]",
	Short: "Play a search result or a playlist",
	Long: `Play audio in the foreground until it ends or ctrl-c is pressed.

With a query, the top search result (or the one chosen by --pick) is played.
With --playlist, the item at --from is played; --all continues through the
rest of the playlist and stops after the last item.

Audio is downloaded into the cache on first play.`,
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().StringP("playlist", "p", "", "Playlist to play from")
	playCmd.Flags().Int("from", 0, "Playlist index to start at")
	playCmd.Flags().Bool("all", false, "Play the playlist sequentially")
	playCmd.Flags().Int("pick", 0, "Search result index to play")
	playCmd.Flags().Float64("volume", -1, "Volume in [0,1] (default from config)")
}

func runPlay(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("playlist")
	if name == "" && len(args) == 0 {
		return errors.New("a query or --playlist is required")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if v, _ := cmd.Flags().GetFloat64("volume"); v >= 0 {
		a.cfg.Volume = v
	}

	ctx, cancel := signalContext(a.logger)
	defer cancel()

	orch := a.newPlayer()
	events, unsubscribe := orch.Subscribe()
	defer unsubscribe()

	runErr := make(chan error, 1)
	go func() { runErr <- orch.Run(ctx) }()

	if err := startPlayback(ctx, cmd, a, orch, name, args); err != nil {
		cancel()
		<-runErr
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	watchPlayback(ctx, cmd, a, events)
	cancel()
	return <-runErr
}

func startPlayback(ctx context.Context, cmd *cobra.Command, a *app, orch *player.Orchestrator, name string, args []string) error {
	if name != "" {
		from, _ := cmd.Flags().GetInt("from")
		all, _ := cmd.Flags().GetBool("all")

		if err := orch.OpenPlaylist(ctx, name); err != nil {
			return fmt.Errorf("failed to open playlist %q: %w", name, err)
		}
		if all {
			return orch.PlayAllFrom(ctx, from)
		}
		items, err := a.playlists.Get(name)
		if err != nil {
			return err
		}
		if from < 0 || from >= len(items) {
			return fmt.Errorf("index %d: %w", from, music.ErrIndexOutOfRange)
		}
		return orch.PlayTrack(ctx, items[from], &player.PlaylistContext{Name: name, Index: from})
	}

	searchCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	pick, _ := cmd.Flags().GetInt("pick")
	tracks, err := a.youtube.Search(searchCtx, strings.Join(args, " "), pick+1)
	if err != nil {
		return err
	}
	if pick < 0 || pick >= len(tracks) {
		return fmt.Errorf("no search result at index %d", pick)
	}

	track := tracks[pick]
	fmt.Fprintf(cmd.OutOrStdout(), "Loading %s\n", track.Title)
	return orch.PlayTrack(ctx, track, nil)
}

// watchPlayback prints track changes until playback stops for good
func watchPlayback(ctx context.Context, cmd *cobra.Command, a *app, events <-chan player.Event) {
	out := cmd.OutOrStdout()
	var current string
	started := false

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Err != nil {
				fmt.Fprintf(out, "Error: %v\n", ev.Err)
			}

			st := ev.Status
			if st.Status != music.StateStopped {
				started = true
			}
			if st.Track != nil && st.Track.ID != current {
				current = st.Track.ID
				fmt.Fprintf(out, "Playing %s\n", st.Track.Title)
				go prefetchThumbnail(ctx, a, *st.Track)
			}
			// Events queued before the first load still show a stopped player
			if started && st.Status == music.StateStopped && st.Downloading == nil {
				return
			}
		}
	}
}

func prefetchThumbnail(ctx context.Context, a *app, track music.Track) {
	if path := a.thumbnails.Get(ctx, track); path != "" {
		a.logger.Debug().Str("path", path).Str("track_id", track.ID).Msg("Thumbnail ready")
	}
}
