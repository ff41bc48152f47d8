package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"notehub/backend/sqlite"
	"notehub/internal/config"
	"notehub/internal/credentials"
	"notehub/internal/notification"
	"notehub/internal/utils"
)

// =============================================================================
// credentials
// =============================================================================

// newCredentialsCmd creates the 'credentials' subcommand for token management
func newCredentialsCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	credentialsCmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage the NoteHub API token",
		Long:  "Store, inspect and remove the API token. The token is kept in the system keyring; " + credentials.EnvToken + " is used when the keyring has none.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	credentialsCmd.AddCommand(newCredentialsSetCmd(stdout, stderr, cfg))
	credentialsCmd.AddCommand(newCredentialsGetCmd(stdout, stderr, cfg))
	credentialsCmd.AddCommand(newCredentialsDeleteCmd(stdout, stderr, cfg))

	return credentialsCmd
}

func accountArg(args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	return credentials.DefaultAccount
}

// newCredentialsSetCmd creates the 'credentials set' subcommand
func newCredentialsSetCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "set [account]",
		Short: "Store the API token in the system keyring",
		Long:  "Prompt for the API token and store it in the system keyring (macOS Keychain, Windows Credential Manager, or Linux Secret Service).",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			handler := credentials.NewCLIHandler(cfg.credentialManager(), cfg.stdin(), stdout, stderr)
			return handler.Set(accountArg(args))
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// newCredentialsGetCmd creates the 'credentials get' subcommand
func newCredentialsGetCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "get [account]",
		Short: "Show where the API token comes from",
		Long:  "Look up the API token (keyring, then " + credentials.EnvToken + ") and show its source. The token itself is never printed.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOutput, _ := cmd.Flags().GetBool("json")
			handler := credentials.NewCLIHandler(cfg.credentialManager(), nil, stdout, stderr)
			return handler.Get(accountArg(args), jsonOutput)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// newCredentialsDeleteCmd creates the 'credentials delete' subcommand
func newCredentialsDeleteCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [account]",
		Short: "Remove the API token from the system keyring",
		Long:  "Remove the stored token from the system keyring. " + credentials.EnvToken + " is not affected.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			handler := credentials.NewCLIHandler(cfg.credentialManager(), nil, stdout, stderr)
			return handler.Delete(accountArg(args))
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// =============================================================================
// config
// =============================================================================

// newConfigCmd creates the 'config' subcommand
func newConfigCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the path of the configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _ = fmt.Fprintln(stdout, resolveConfigPath(cmd, cfg))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration, defaults included",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := config.Load(resolveConfigPath(cmd, cfg))
			if err != nil {
				return err
			}
			if jsonFlag, _ := cmd.Flags().GetBool("json"); jsonFlag {
				values, err := appCfg.Get("")
				if err != nil {
					return err
				}
				return writeJSON(stdout, values)
			}
			data, err := yaml.Marshal(appCfg)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprint(stdout, string(data))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print one configuration value, e.g. api.per_page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := config.Load(resolveConfigPath(cmd, cfg))
			if err != nil {
				return err
			}
			value, err := appCfg.Get(args[0])
			if err != nil {
				return utils.WrapWithSuggestion(err, "Known keys: "+strings.Join(appCfg.Keys(), ", "))
			}
			if jsonFlag, _ := cmd.Flags().GetBool("json"); jsonFlag {
				return writeJSON(stdout, map[string]interface{}{"key": args[0], "value": value})
			}
			if _, nested := value.(map[string]interface{}); nested {
				data, err := yaml.Marshal(value)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprint(stdout, string(data))
				return nil
			}
			_, _ = fmt.Fprintln(stdout, value)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check the configuration file for errors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := resolveConfigPath(cmd, cfg)
			appCfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if err := appCfg.Validate(); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(stdout, "Configuration is valid: %s\n", path)
			printResult(stdout, cfg, ResultInfoOnly)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	return configCmd
}

// =============================================================================
// notification
// =============================================================================

// newNotificationCmd creates the 'notification' subcommand
func newNotificationCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	notificationCmd := &cobra.Command{
		Use:   "notification",
		Short: "Test notifications and read the notification log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	notificationCmd.AddCommand(&cobra.Command{
		Use:   "test",
		Short: "Send a test notification through every enabled channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := loadConfig(cmd, cfg)
			if err != nil {
				return err
			}
			if !appCfg.IsNotificationEnabled() {
				return utils.WrapWithSuggestion(
					fmt.Errorf("notifications are disabled"),
					"Enable notifications.os or notifications.log in "+resolveConfigPath(cmd, cfg))
			}
			notifier, err := newNotifier(appCfg)
			if err != nil {
				return err
			}
			defer func() { _ = notifier.Close() }()

			if err := notifier.Send(notification.Notification{
				Type:      notification.NotifyTest,
				Title:     "NoteHub",
				Message:   "Test notification",
				Timestamp: time.Now(),
			}); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(stdout, "Test notification sent")
			printResult(stdout, cfg, ResultActionCompleted)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	logCmd := &cobra.Command{
		Use:   "log",
		Short: "Print the notification log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := notificationLogPath(cmd, cfg)
			if err != nil {
				return err
			}
			entries, err := notification.ReadLog(path)
			if err != nil {
				return err
			}
			if jsonFlag, _ := cmd.Flags().GetBool("json"); jsonFlag {
				if entries == nil {
					entries = []string{}
				}
				return writeJSON(stdout, map[string]interface{}{"path": path, "entries": entries, "result": ResultInfoOnly})
			}
			if len(entries) == 0 {
				_, _ = fmt.Fprintln(stdout, "No notifications logged")
			}
			for _, e := range entries {
				_, _ = fmt.Fprintln(stdout, e)
			}
			printResult(stdout, cfg, ResultInfoOnly)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	logCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Empty the notification log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := notificationLogPath(cmd, cfg)
			if err != nil {
				return err
			}
			if err := notification.ClearLog(path); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(stdout, "Notification log cleared")
			printResult(stdout, cfg, ResultActionCompleted)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})
	notificationCmd.AddCommand(logCmd)

	return notificationCmd
}

func notificationLogPath(cmd *cobra.Command, cfg *Config) (string, error) {
	appCfg, err := loadConfig(cmd, cfg)
	if err != nil {
		return "", err
	}
	path := appCfg.Notifications.Log.Path
	if path == "" {
		return "", utils.WrapWithSuggestion(
			fmt.Errorf("notifications.log.path is not set"),
			"Set notifications.log.path in "+resolveConfigPath(cmd, cfg))
	}
	return path, nil
}

// =============================================================================
// cache
// =============================================================================

type snapshotPageJSON struct {
	Search    string    `json:"search"`
	Page      int       `json:"page"`
	Notes     int       `json:"notes"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// newCacheCmd creates the 'cache' subcommand for the on-disk page snapshot
func newCacheCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the on-disk page snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "List the pages kept in the snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openSnapshot(cmd, cfg)
			if err != nil || store == nil {
				if err == nil {
					_, _ = fmt.Fprintln(stdout, "Page snapshot is disabled")
				}
				return err
			}
			defer func() { _ = store.Close() }()

			snaps, err := store.LoadPages(cmd.Context())
			if err != nil {
				return err
			}
			pages := make([]snapshotPageJSON, 0, len(snaps))
			for _, s := range snaps {
				pages = append(pages, snapshotPageJSON{Search: s.Search, Page: s.Page, Notes: len(s.Data.Notes), FetchedAt: s.FetchedAt})
			}

			if jsonFlag, _ := cmd.Flags().GetBool("json"); jsonFlag {
				return writeJSON(stdout, map[string]interface{}{"pages": pages, "count": len(pages), "result": ResultInfoOnly})
			}
			if len(pages) == 0 {
				_, _ = fmt.Fprintln(stdout, "Page snapshot is empty")
			}
			for _, p := range pages {
				search := "(all notes)"
				if p.Search != "" {
					search = fmt.Sprintf("%q", p.Search)
				}
				_, _ = fmt.Fprintf(stdout, "  %s page %d: %d note(s), fetched %s\n", search, p.Page, p.Notes, p.FetchedAt.Local().Format(time.DateTime))
			}
			printResult(stdout, cfg, ResultInfoOnly)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete every page from the snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openSnapshot(cmd, cfg)
			if err != nil || store == nil {
				if err == nil {
					_, _ = fmt.Fprintln(stdout, "Page snapshot is disabled")
				}
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.Clear(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(stdout, "Page snapshot cleared")
			printResult(stdout, cfg, ResultActionCompleted)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	return cacheCmd
}

// openSnapshot opens the snapshot database, or returns nil when snapshots are disabled
func openSnapshot(cmd *cobra.Command, cfg *Config) (*sqlite.Store, error) {
	appCfg, err := loadConfig(cmd, cfg)
	if err != nil {
		return nil, err
	}
	if !appCfg.IsSnapshotEnabled() {
		return nil, nil
	}
	return sqlite.New(appCfg.GetSnapshotPath())
}
