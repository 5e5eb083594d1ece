package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jfmyers9/luna/internal/config"
	"github.com/spf13/cobra"
)

// configCmd groups the config subcommands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or initialize configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "config dir:       %s\n", config.GetConfigDir())
		fmt.Fprintf(out, "data dir:         %s\n", cfg.DataDir)
		fmt.Fprintf(out, "downloads:        %s\n", cfg.DownloadsDir())
		fmt.Fprintf(out, "playlists:        %s\n", cfg.PlaylistsFile())
		fmt.Fprintf(out, "history:          %s (%s)\n", cfg.HistoryFile(), cfg.History.Backend)
		fmt.Fprintf(out, "max unpinned:     %d\n", cfg.MaxUnpinned)
		fmt.Fprintf(out, "download workers: %d\n", cfg.DownloadWorkers)
		fmt.Fprintf(out, "download rate:    %g/s\n", cfg.DownloadRate)
		fmt.Fprintf(out, "volume:           %g\n", cfg.Volume)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := filepath.Join(config.GetConfigDir(), "config.yaml")
		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("failed to write configuration: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().Bool("force", false, "Overwrite an existing file")
}
