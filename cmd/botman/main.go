package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/irwan-runtuwene/botman-driver-messagebird/internal/config"
	"github.com/irwan-runtuwene/botman-driver-messagebird/internal/driver"
	"github.com/irwan-runtuwene/botman-driver-messagebird/internal/gateway"
	"github.com/irwan-runtuwene/botman-driver-messagebird/internal/journal"
	"github.com/irwan-runtuwene/botman-driver-messagebird/internal/messagebird"
	"github.com/irwan-runtuwene/botman-driver-messagebird/internal/responder"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "botman",
		Short: "MessageBird WhatsApp bot gateway",
		Long:  "botman receives MessageBird WhatsApp webhooks, answers with reply rules, and dispatches through the Conversations API.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.birdbot/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(journalCmd())
	root.AddCommand(configCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config and rules directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists at %s", cfgPath)
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Join(cfgDir, "rules"), 0o755); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			fmt.Println("Set MESSAGEBIRD_ACCESS_KEY and MESSAGEBIRD_SIGNING_KEY, then run 'botman serve'.")
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("botman v%s\n", version)
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook gateway",
		Long:  "Starts the webhook HTTP server and processes deliveries until interrupted.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err = newLogger(cfg.General)
	if err != nil {
		return err
	}

	if cfg.MessageBird.AccessKey == "" {
		return fmt.Errorf("messagebird.access_key is not set (config or MESSAGEBIRD_ACCESS_KEY)")
	}
	if cfg.MessageBird.SigningKey == "" {
		logger.Warn("messagebird.signing_key is not set, webhook signatures will not be verified")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := messagebird.NewClient(messagebird.ClientConfig{
		AccessKey:         cfg.MessageBird.AccessKey,
		SandboxEnabled:    cfg.MessageBird.SandboxEnabled,
		Timeout:           time.Duration(cfg.MessageBird.Timeout) * time.Second,
		ConnectionTimeout: time.Duration(cfg.MessageBird.ConnectionTimeout) * time.Second,
		Logger:            logger,
	})
	logger.Info("provider endpoint selected", "base_url", client.BaseURL(), "sandbox", cfg.MessageBird.SandboxEnabled)

	drv := driver.New(cfg.MessageBird, client, logger)

	rules, err := responder.LoadRules(cfg.Responder.RulesDir, logger)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	resp := responder.New(rules, cfg.Responder.Echo, logger)

	var store *journal.Store
	if cfg.Journal.Enabled {
		store, err = journal.NewStore(cfg.Journal.DBPath, logger)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer store.Close()
		go pruneLoop(ctx, store, cfg.Journal.RetentionDays)
	}

	srv := gateway.New(cfg, drv, resp, store, logger)
	return srv.Start(ctx)
}

// pruneLoop removes expired journal entries once at startup and then daily.
func pruneLoop(ctx context.Context, store *journal.Store, retentionDays int) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		if n, err := store.Prune(ctx, retentionDays); err != nil {
			logger.Warn("journal prune failed", "err", err)
		} else if n > 0 {
			logger.Info("journal pruned", "removed", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// newLogger builds the process logger from config. Log output goes to the
// configured file when set, stderr otherwise.
func newLogger(cfg config.GeneralConfig) (*slog.Logger, error) {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "", "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var out io.Writer = os.Stderr
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, fmt.Errorf("log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
	}

	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})), nil
}

func journalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the message journal",
	}

	var limit int
	recent := &cobra.Command{
		Use:   "recent",
		Short: "Show the most recent journal entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			store, err := journal.NewStore(cfg.Journal.DBPath, logger)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer store.Close()

			entries, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Printf("%s  %-3s  %s -> %s  [%s]  %s\n",
					e.CreatedAt.Format(time.RFC3339), e.Direction, e.Sender, e.Recipient, e.Type, e.Content)
			}
			return nil
		},
	}
	recent.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show")
	cmd.AddCommand(recent)

	cmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Remove entries older than the configured retention",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			store, err := journal.NewStore(cfg.Journal.DBPath, logger)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer store.Close()

			n, err := store.Prune(cmd.Context(), cfg.Journal.RetentionDays)
			if err != nil {
				return err
			}
			fmt.Printf("removed %d entries\n", n)
			return nil
		},
	})

	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. messagebird.is_sandbox_enabled)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(cfg, args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. webhook.port 9000)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "value", args[1], "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			sanitized := config.Sanitize(cfg)
			data, _ := json.MarshalIndent(sanitized, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}
