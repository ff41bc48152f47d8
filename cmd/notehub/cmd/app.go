package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"notehub/backend/notehub"
	"notehub/backend/sqlite"
	"notehub/internal/cache"
	"notehub/internal/config"
	"notehub/internal/credentials"
	"notehub/internal/mutation"
	"notehub/internal/notification"
	"notehub/internal/ratelimit"
	"notehub/internal/shutdown"
	"notehub/internal/utils"
)

const (
	defaultMaxRetries = 3
	cleanupTimeout    = 5 * time.Second
)

// app is the wired client core shared by the CLI commands and the TUI
type app struct {
	cfg      *config.Config
	client   *notehub.Client
	store    *sqlite.Store // nil when snapshots are disabled or unavailable
	pages    *cache.Cache
	coord    *mutation.Coordinator
	notifier notification.NotificationManager
	shutdown *shutdown.Manager
}

// newApp resolves the token, builds the client and wires the cache, the
// mutation coordinator and notifications around it. Notifications are sent
// asynchronously when async is set.
func newApp(ctx context.Context, cfg *Config, appCfg *config.Config, async bool) (*app, error) {
	if strings.TrimSpace(appCfg.GetBaseURL()) == "" {
		return nil, utils.ErrBaseURLNotConfigured()
	}

	info, err := cfg.credentialManager().Get(ctx, credentials.DefaultAccount)
	if err != nil {
		return nil, err
	}
	if !info.Found {
		return nil, utils.ErrCredentialsNotFound(credentials.ServiceName)
	}
	utils.Debugf("using API token from %s", info.Source)

	rl := ratelimit.Config{
		BaseDelay:    appCfg.GetRateLimitBaseDelay(),
		EnableJitter: true,
		Backend:      "NoteHub",
	}
	if appCfg.API.RateLimit.Enabled {
		rl.MaxRetries = appCfg.API.RateLimit.MaxRetries
		if rl.MaxRetries == 0 {
			rl.MaxRetries = defaultMaxRetries
		}
	}

	client, err := notehub.New(notehub.Config{
		BaseURL:    appCfg.GetBaseURL(),
		Token:      info.Token,
		SearchPath: appCfg.API.SearchPath,
		PerPage:    appCfg.GetPerPage(),
		Timeout:    appCfg.GetTimeoutDuration(),
		RateLimit:  rl,
	})
	if err != nil {
		return nil, err
	}

	a := &app{cfg: appCfg, client: client, shutdown: shutdown.NewManager()}
	a.shutdown.RegisterCleanup("client", func(context.Context) error { return client.Close() })

	opts := cache.Options{StaleTime: cacheStaleTime(appCfg)}
	if appCfg.IsSnapshotEnabled() {
		store, err := sqlite.New(appCfg.GetSnapshotPath())
		if err != nil {
			utils.Warnf("page snapshot disabled: %v", err)
		} else {
			a.store = store
			opts.Persister = store
			maxPages := appCfg.GetSnapshotMaxPages()
			a.shutdown.RegisterCleanup("snapshot", func(ctx context.Context) error {
				_, pruneErr := store.Prune(ctx, maxPages)
				return errors.Join(pruneErr, store.Close())
			})
		}
	}

	a.pages = cache.New(client, opts)
	if n, err := a.pages.Hydrate(ctx); err != nil {
		utils.Warnf("could not read page snapshot: %v", err)
	} else if n > 0 {
		utils.Debugf("restored %d page(s) from snapshot", n)
	}

	a.coord = mutation.New(client, a.pages)

	notifier, err := newNotifier(appCfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.notifier = notifier
	a.shutdown.RegisterCleanup("notifications", func(context.Context) error { return notifier.Close() })
	a.coord.OnSettle(func(m mutation.Mutation) {
		n := notification.FromMutation(m)
		if async {
			notifier.SendAsync(n)
			return
		}
		if err := notifier.Send(n); err != nil {
			utils.Warnf("notification failed: %v", err)
		}
	})
	// Registered last so it runs first, while the notifier is still open
	a.shutdown.RegisterCleanup("mutations", settleMutations(a.coord))

	return a, nil
}

// settleMutations waits for in-flight creates and deletes so their outcome
// reaches the notification channels before those are closed
func settleMutations(coord *mutation.Coordinator) shutdown.CleanupFunc {
	return func(ctx context.Context) error {
		err := coord.Wait(ctx)
		if err != nil {
			for _, m := range coord.Pending() {
				utils.Warnf("delete of note %s still pending at exit", m.Target)
			}
			return fmt.Errorf("mutations did not settle: %w", err)
		}
		return nil
	}
}

// Close runs the registered cleanups, bounded by cleanupTimeout
func (a *app) Close() error {
	a.shutdown.Shutdown()
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	return a.shutdown.Wait(ctx)
}

// cacheStaleTime maps the configured stale time onto cache.Options, where a
// zero duration means the default and a negative one means always refetch
func cacheStaleTime(appCfg *config.Config) time.Duration {
	d := appCfg.GetStaleTimeDuration()
	if d <= 0 {
		return -1
	}
	return d
}

// newNotifier builds the notification manager from the notifications section
func newNotifier(appCfg *config.Config) (notification.NotificationManager, error) {
	n := appCfg.Notifications
	return notification.NewManager(&notification.Config{
		Enabled: appCfg.IsNotificationEnabled(),
		OSNotification: notification.OSNotificationConfig{
			Enabled:   n.OS.Enabled,
			OnSuccess: n.OS.OnSuccess,
			OnFailure: n.OS.OnFailure,
		},
		LogNotification: notification.LogNotificationConfig{
			Enabled: n.Log.Enabled,
			Path:    n.Log.Path,
		},
	})
}
