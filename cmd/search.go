package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search QUERY...",
	Short: "Search YouTube for tracks",
	Long: `Search YouTube and print matching tracks with their ids.

With --add, the result selected by --pick is appended to the named playlist.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().IntP("results", "n", 0, "Number of results (default from config)")
	searchCmd.Flags().String("add", "", "Append a result to this playlist")
	searchCmd.Flags().Int("pick", 0, "Result index used by --add")
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	n, _ := cmd.Flags().GetInt("results")
	if n <= 0 {
		n = a.cfg.SearchResults
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
	defer cancel()

	tracks, err := a.youtube.Search(ctx, strings.Join(args, " "), n)
	if err != nil {
		return err
	}
	if len(tracks) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No results")
		return nil
	}

	name, _ := cmd.Flags().GetString("add")
	if name == "" {
		printTracks(cmd.OutOrStdout(), tracks)
		return nil
	}

	pick, _ := cmd.Flags().GetInt("pick")
	if pick < 0 || pick >= len(tracks) {
		return fmt.Errorf("pick %d is outside the %d results", pick, len(tracks))
	}
	return addTrack(cmd, a, name, tracks[pick])
}
