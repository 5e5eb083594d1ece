package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// cacheCmd groups the cache subcommands
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the audio cache",
	Long: `Inspect and trim the downloaded audio cache.

Files of tracks that appear in a playlist are pinned. At most max_unpinned
other files are kept; the least recently played are removed first.`,
}

var cacheListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List cached files, most recently played first",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		entries, err := a.cache.Entries()
		if err != nil {
			return err
		}
		for _, e := range entries {
			pin := " "
			if e.Pinned {
				pin = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s  %8s  %s\n",
				pin, e.LastAccess.Format("2006-01-02 15:04"), formatSize(e.Size), e.Name)
		}
		return nil
	}),
}

var cacheEvictCmd = &cobra.Command{
	Use:   "evict",
	Short: "Remove unpinned files beyond the configured limit",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		n, err := a.cache.Evict()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Evicted %d file(s)\n", n)
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheEvictCmd)
}

// formatSize renders a byte count with a binary unit
func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
