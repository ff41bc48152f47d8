package cmd

import (
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"notehub/internal/config"
	"notehub/internal/tui"
	"notehub/internal/utils"
	"notehub/internal/watcher"
)

// newTUICmd creates the 'tui' subcommand
func newTUICmd(stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Browse, search, create and delete notes interactively",
		Long:  "Launch the terminal interface. Changes to the config file's cache.stale_time and search.debounce apply while it runs.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := loadConfig(cmd, cfg)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, appCfg, true)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			// Log lines would corrupt the alternate screen
			bgLogger, err := utils.NewBackgroundLoggerWithEnabled(appCfg.IsBackgroundLoggingEnabled())
			if err != nil {
				_, _ = fmt.Fprintf(stderr, "Warning: background log unavailable: %v\n", err)
			}
			utils.GetLogger().SetOutput(bgLogger)
			defer func() {
				utils.GetLogger().SetOutput(nil)
				bgLogger.Close()
			}()

			model := tui.New(a.pages, a.coord, tui.Options{
				Context:   a.shutdown.Context(),
				Debounce:  appCfg.GetDebounceDuration(),
				NoConfirm: cfg.NoPrompt,
			})
			p := tea.NewProgram(model, tea.WithAltScreen())

			configPath := resolveConfigPath(cmd, cfg)
			w, err := watcher.New(watcher.DefaultConfig(configPath, func(path string) {
				reloaded, err := config.Load(path)
				if err == nil {
					err = reloaded.Validate()
				}
				if err != nil {
					utils.Warnf("config reload skipped: %v", err)
					return
				}
				utils.Infof("config reloaded from %s", path)
				a.pages.SetStaleTime(cacheStaleTime(reloaded))
				p.Send(tui.SettingsMsg{Debounce: reloaded.GetDebounceDuration()})
			}))
			if err == nil {
				defer w.Stop()
				err = w.Start()
			}
			if err != nil {
				utils.Warnf("config watcher not started: %v", err)
			}

			stopSignals := a.shutdown.HandleSignals()
			defer stopSignals()
			go func() {
				<-a.shutdown.Done()
				p.Quit()
			}()

			_, err = p.Run()
			return err
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}
