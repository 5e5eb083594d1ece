package cmd

import (
	"fmt"

	"github.com/jfmyers9/luna/internal/history"
	"github.com/spf13/cobra"
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently played tracks",
	Long: `Show the play history, newest first.

The history backend (csv or sqlite) is chosen by history.backend in the
config file.`,
	Args: cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		records, err := a.history.Recent(cmd.Context(), limit)
		if err != nil {
			return fmt.Errorf("failed to read history: %w", err)
		}
		for _, r := range records {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n",
				r.Timestamp.Format(history.TimestampLayout), padToWidth(r.Title, titleWidth), r.URL)
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntP("limit", "n", 20, "Number of records to show")
}
