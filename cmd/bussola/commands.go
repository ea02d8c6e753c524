package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/davoli/bussola/internal/config"
)

// --- sweep ---

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete sessions older than the configured TTL",
	Long: `Delete sessions older than the configured TTL.

Opens the configured session store directly, so it works whether or not
the server is running. For the memory backend there is nothing to sweep
outside a running server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		maxAgeHours, _ := cmd.Flags().GetInt("max-age-hours")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if maxAgeHours <= 0 {
			maxAgeHours = cfg.Session.TTLHours
		}

		store, err := openStore(cfg)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		if closer, ok := store.(io.Closer); ok {
			defer closer.Close()
		}

		printStep("Sweeping sessions older than %dh...", maxAgeHours)
		removed, err := store.SweepOlderThan(time.Duration(maxAgeHours) * time.Hour)
		if err != nil {
			return fmt.Errorf("sweeping sessions: %w", err)
		}

		printSuccess("Removed %d expired sessions", removed)
		return nil
	},
}

func init() {
	sweepCmd.Flags().Int("max-age-hours", 0, "override the session TTL in hours (default: configured TTL)")
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show bussola system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			printError("config error: %v", err)
			return nil
		}

		client := &http.Client{Timeout: 2 * time.Second}
		resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port))
		if err != nil {
			printStatus("Server", "stopped")
		} else {
			var health struct {
				Status     string `json:"status"`
				AgentReady bool   `json:"agent_ready"`
			}
			err := json.NewDecoder(resp.Body).Decode(&health)
			resp.Body.Close()
			if err != nil || resp.StatusCode != http.StatusOK {
				printStatus("Server", "error (HTTP %d)", resp.StatusCode)
			} else {
				printStatus("Server", "%s on port %d", health.Status, cfg.Server.Port)
				if !health.AgentReady {
					printWarning("agent is degraded: no Gemini API key configured")
				}
			}
		}

		printStatus("Model", "%s", cfg.Gemini.Model)
		printStatus("Storage", "%s", cfg.Storage.Backend)
		if cfg.Storage.Backend == "sqlite" {
			printStatus("Data dir", "%s", cfg.Storage.DataDir)
		}
		printStatus("Session TTL", "%dh", cfg.Session.TTLHours)
		if cfg.Search.Enabled {
			printStatus("Web search", "enabled")
		} else {
			printStatus("Web search", "disabled")
		}
		return nil
	},
}

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Send a message to the running orientation agent",
	Long: `Send a message to the running orientation agent.

Examples:
  bussola chat "Ciao, vivo a Milano"
  bussola chat --session 4f7c... "Mi piacciono matematica e fisica"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")
		message := args[0]
		for _, a := range args[1:] {
			message += " " + a
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/api/chat", map[string]string{
			"message":    message,
			"session_id": sessionID,
		})
		if err != nil {
			return err
		}

		var result struct {
			Response  string `json:"response"`
			SessionID string `json:"session_id"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result.Response)
		if sessionID == "" && result.SessionID != "" {
			printStatus("Session", "%s", result.SessionID)
		}
		return nil
	},
}

func init() {
	chatCmd.Flags().String("session", "", "existing session id to continue")
}

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile <session-id>",
	Short: "Show a session's profile snapshot as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/profile/"+args[0])
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusNotFound {
			resp.Body.Close()
			return fmt.Errorf("session %q not found (expired or swept?)", args[0])
		}

		var snapshot any
		if err := decodeJSON(resp, &snapshot); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snapshot)
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
