package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/irwan-runtuwene/botman-driver-messagebird/internal/config"
	"github.com/irwan-runtuwene/botman-driver-messagebird/internal/messagebird"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your botman installation",
		Long: `Verifies that botman's configuration, credentials, journal database,
and provider endpoint are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("botman doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file exists
			if _, err := os.Stat(cfgPath); err != nil {
				printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				failed++
				fmt.Printf("\nRun 'botman init' to create a default configuration.\n")
				return nil
			}
			printPass("Config file", cfgPath)
			passed++

			// 2. Config loads and validates
			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				failed++
				fmt.Printf("\n%d passed, %d failed\n", passed, failed)
				return nil
			}
			printPass("Config validation", "valid")
			passed++

			// 3. Credentials present
			if cfg.MessageBird.AccessKey == "" {
				printFail("Access key", "not set (config or MESSAGEBIRD_ACCESS_KEY)")
				failed++
			} else {
				printPass("Access key", "configured")
				passed++
			}
			if cfg.MessageBird.SigningKey == "" {
				printWarn("Signing key", "not set, webhook signatures will not be verified")
				warned++
			} else {
				printPass("Signing key", "configured")
				passed++
			}
			if cfg.MessageBird.BusinessNumber == "" {
				printWarn("Business number", "not set, self-message loop guard is inactive")
				warned++
			} else {
				printPass("Business number", cfg.MessageBird.BusinessNumber)
				passed++
			}

			// 4. Provider endpoint resolvable
			endpoint := messagebird.ConversationsEndpoint
			if cfg.MessageBird.SandboxEnabled {
				endpoint = messagebird.ConversationsWhatsAppSandboxEndpoint
			}
			if err := checkEndpoint(endpoint); err != nil {
				printWarn("Provider endpoint", fmt.Sprintf("%s: %v", endpoint, err))
				warned++
			} else {
				printPass("Provider endpoint", endpoint)
				passed++
			}

			// 5. Journal database writable
			if cfg.Journal.Enabled {
				if err := checkDatabase(cfg.Journal.DBPath); err != nil {
					printFail("Journal database", err.Error())
					failed++
				} else {
					printPass("Journal database", cfg.Journal.DBPath)
					passed++
				}
			}

			// 6. Webhook port available
			if err := checkPort(cfg.Webhook.Port); err != nil {
				printWarn("Webhook port", fmt.Sprintf("port %d may be in use: %v", cfg.Webhook.Port, err))
				warned++
			} else {
				printPass("Webhook port", fmt.Sprintf(":%d available", cfg.Webhook.Port))
				passed++
			}

			// 7. Rules directory
			if cfg.Responder.RulesDir != "" {
				if info, err := os.Stat(cfg.Responder.RulesDir); err != nil {
					printWarn("Rules directory", fmt.Sprintf("not found: %s", cfg.Responder.RulesDir))
					warned++
				} else if !info.IsDir() {
					printFail("Rules directory", fmt.Sprintf("not a directory: %s", cfg.Responder.RulesDir))
					failed++
				} else {
					printPass("Rules directory", cfg.Responder.RulesDir)
					passed++
				}
			}

			// 8. Log file writable
			if cfg.General.LogFile != "" {
				if err := os.MkdirAll(filepath.Dir(cfg.General.LogFile), 0o755); err != nil {
					printWarn("Log file", fmt.Sprintf("cannot create log directory: %v", err))
					warned++
				} else {
					printPass("Log file", cfg.General.LogFile)
					passed++
				}
			}

			// Summary
			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running botman.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\nbotman should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed! botman is ready to run.\n")
			}
			return nil
		},
	}
}

// checkEndpoint resolves the endpoint host to verify outward connectivity.
func checkEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = net.DefaultResolver.LookupHost(ctx, u.Hostname())
	return err
}

func checkDatabase(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("cannot create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("cannot open: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("cannot ping: %w", err)
	}

	// Try a write.
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS _doctor_test (id INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	db.ExecContext(ctx, "DROP TABLE IF EXISTS _doctor_test")

	return nil
}

func checkPort(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
