package cmd

import (
	"path/filepath"

	"github.com/jfmyers9/luna/internal/config"
	"github.com/jfmyers9/luna/internal/tui"
	"github.com/spf13/cobra"
)

// tuiCmd represents the tui command
var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Interactive terminal player",
	Long: `Browse playlists, search YouTube and control playback from a terminal UI.

Keys:
  space      pause/resume       n/p  next/previous
  enter      play selection     a    play all from selection
  s          stop               +/-  volume
  x / o      shuffle / sort     d    remove selected item
  /          search             tab  switch pane
  q          quit

Logs go to ~/.config/luna/luna.log unless --log-file is set.`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	// Console logging would draw over the UI
	if logFile == "" {
		logFile = filepath.Join(config.GetConfigDir(), "luna.log")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext(a.logger)
	defer cancel()

	orch := a.newPlayer()
	runErr := make(chan error, 1)
	go func() { runErr <- orch.Run(ctx) }()

	tuiCfg := tui.DefaultConfig()
	tuiCfg.SearchResults = a.cfg.SearchResults

	ui := tui.New(tuiCfg, orch, a.playlists, a.youtube)
	err = ui.Run(ctx)

	cancel()
	if rerr := <-runErr; err == nil {
		err = rerr
	}
	return err
}
