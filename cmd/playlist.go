package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jfmyers9/luna/internal/music"
	"github.com/spf13/cobra"
)

// playlistCmd groups the playlist subcommands
var playlistCmd = &cobra.Command{
	Use:     "playlist",
	Aliases: []string{"pl"},
	Short:   "Manage playlists",
	Long: `Create, edit and inspect playlists.

Playlists are stored in playlists.json under the data directory. Tracks in
any playlist are never evicted from the cache.`,
}

var playlistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List playlists",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		for _, name := range a.playlists.List() {
			items, _ := a.playlists.Get(name)
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %d\n", padToWidth(name, 30), len(items))
		}
		return nil
	}),
}

var playlistShowCmd = &cobra.Command{
	Use:   "show NAME",
	Short: "Show the items of a playlist",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		items, err := a.playlists.Get(args[0])
		if err != nil {
			return err
		}
		printTracks(cmd.OutOrStdout(), items)
		return nil
	}),
}

var playlistCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create an empty playlist",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		if err := a.playlists.Create(args[0]); err != nil {
			return fmt.Errorf("failed to create playlist %q: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", args[0])
		return nil
	}),
}

var playlistDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a playlist",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		if err := a.playlists.Delete(args[0]); err != nil {
			return fmt.Errorf("failed to delete playlist %q: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	}),
}

var playlistAddCmd = &cobra.Command{
	Use:   "add NAME QUERY...",
	Short: "Search and append the top result to a playlist",
	Long: `Search YouTube and append one result to the playlist.

The playlist is created if it does not exist. Use --pick to choose a result
other than the first.`,
	Args: cobra.MinimumNArgs(2),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		pick, _ := cmd.Flags().GetInt("pick")
		if pick < 0 {
			return fmt.Errorf("invalid pick %d", pick)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
		defer cancel()

		tracks, err := a.youtube.Search(ctx, strings.Join(args[1:], " "), pick+1)
		if err != nil {
			return err
		}
		if pick >= len(tracks) {
			return fmt.Errorf("no search result at index %d", pick)
		}

		return addTrack(cmd, a, args[0], tracks[pick])
	}),
}

var playlistRemoveCmd = &cobra.Command{
	Use:   "remove NAME INDEX...",
	Short: "Remove items by index",
	Long: `Remove one or more items from a playlist by index.

Indices refer to the playlist before removal; "luna playlist show" prints
them. Nothing is removed if any index is out of range.`,
	Args: cobra.MinimumNArgs(2),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		indices, err := parseIndices(args[1:])
		if err != nil {
			return err
		}
		removed, err := a.playlists.Remove(args[0], indices)
		if err != nil {
			return fmt.Errorf("failed to remove from playlist %q: %w", args[0], err)
		}
		for _, t := range removed {
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", t.Title)
		}
		return nil
	}),
}

var playlistShuffleCmd = &cobra.Command{
	Use:   "shuffle NAME",
	Short: "Randomly reorder a playlist",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		items, err := a.playlists.Shuffle(args[0], nil)
		if err != nil {
			return err
		}
		printTracks(cmd.OutOrStdout(), items)
		return nil
	}),
}

var playlistSortCmd = &cobra.Command{
	Use:   "sort NAME",
	Short: "Sort a playlist by title",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		items, err := a.playlists.SortAlphabetical(args[0])
		if err != nil {
			return err
		}
		printTracks(cmd.OutOrStdout(), items)
		return nil
	}),
}

var playlistFindCmd = &cobra.Command{
	Use:   "find QUERY...",
	Short: "Find tracks across all playlists by title",
	Args:  cobra.MinimumNArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		matches := a.playlists.Find(strings.Join(args, " "), limit)
		if len(matches) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No matches")
			return nil
		}
		for _, m := range matches {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %3d  %s  %.2f\n",
				padToWidth(m.Playlist, 20), m.Index, padToWidth(m.Track.Title, titleWidth), m.Score)
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(playlistCmd)
	playlistCmd.AddCommand(playlistListCmd)
	playlistCmd.AddCommand(playlistShowCmd)
	playlistCmd.AddCommand(playlistCreateCmd)
	playlistCmd.AddCommand(playlistDeleteCmd)
	playlistCmd.AddCommand(playlistAddCmd)
	playlistCmd.AddCommand(playlistRemoveCmd)
	playlistCmd.AddCommand(playlistShuffleCmd)
	playlistCmd.AddCommand(playlistSortCmd)
	playlistCmd.AddCommand(playlistFindCmd)

	playlistAddCmd.Flags().Int("pick", 0, "Search result index to add")
	playlistFindCmd.Flags().IntP("limit", "n", 10, "Maximum number of matches")
}

// withApp opens the application stores around fn
func withApp(fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, a, args)
	}
}

// addTrack appends track to the named playlist, creating it when missing
func addTrack(cmd *cobra.Command, a *app, name string, track music.Track) error {
	err := a.playlists.Add(name, track)
	if errors.Is(err, music.ErrNotFound) {
		if err = a.playlists.Create(name); err == nil {
			err = a.playlists.Add(name, track)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to add to playlist %q: %w", name, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added %q to %s\n", track.Title, name)
	return nil
}

// parseIndices converts command arguments to playlist indices
func parseIndices(args []string) ([]int, error) {
	indices := make([]int, 0, len(args))
	for _, arg := range args {
		i, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid index %q: %w", arg, err)
		}
		indices = append(indices, i)
	}
	return indices, nil
}
