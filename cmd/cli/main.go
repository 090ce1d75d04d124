package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	serverURL   string
	configPath  string
	noAutoStart bool
	rootCmd     = &cobra.Command{
		Use:   "steampack",
		Short: "steampack CLI - queue Steam content downloads and archive them",
		Long: `A command-line interface for the steampack server: queue SteamCMD
downloads, watch their progress, and fetch the resulting 7z archives.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:7860", "Server URL")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file forwarded to an auto-started server")
	rootCmd.PersistentFlags().BoolVar(&noAutoStart, "no-auto-start", false, "Don't auto-start server if not running")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(diskCmd)
	rootCmd.AddCommand(filesCmd)
	rootCmd.AddCommand(logsCmd)
}

// ensureServer checks if server is running and starts it if needed (unless --no-auto-start)
func ensureServer() {
	if noAutoStart {
		return
	}
	if err := ensureServerRunning(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

// taskPayload builds the request body shared by add and run
func taskPayload(cmd *cobra.Command, source string) map[string]interface{} {
	output, _ := cmd.Flags().GetString("output")
	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")
	guardCode, _ := cmd.Flags().GetString("guard-code")
	resume, _ := cmd.Flags().GetBool("resume")

	payload := map[string]interface{}{
		"source": source,
	}
	if output != "" {
		payload["output_path"] = output
	}
	if username != "" {
		payload["username"] = username
		payload["password"] = password
	}
	if guardCode != "" {
		payload["guard_code"] = guardCode
	}
	if resume {
		payload["resume"] = true
	}
	return payload
}

func postJSON(path string, payload interface{}) (*http.Response, []byte, error) {
	data, _ := json.Marshal(payload)
	resp, err := http.Post(serverURL+path, "application/json", bytes.NewBuffer(data))
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, body, nil
}

func getJSON(path string, out interface{}) error {
	resp, err := http.Get(serverURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s", string(body))
	}
	return json.Unmarshal(body, out)
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

var addCmd = &cobra.Command{
	Use:   "add [app-id-or-url]",
	Short: "Queue a download",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		resp, body, err := postJSON("/api/v1/tasks", taskPayload(cmd, args[0]))
		if err != nil {
			fail("Error: %v", err)
		}
		if resp.StatusCode != http.StatusCreated {
			fail("Error: %s", string(body))
		}

		var result map[string]interface{}
		json.Unmarshal(body, &result)
		fmt.Printf("Task queued successfully!\n")
		fmt.Printf("ID:     %s\n", result["id"])
		fmt.Printf("App:    %s\n", result["app_id"])
		fmt.Printf("Output: %s\n", result["output_path"])
	},
}

var runCmd = &cobra.Command{
	Use:   "run [app-id-or-url]",
	Short: "Download immediately, bypassing the queue",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		fmt.Println("Running download (this blocks until the archive is written)...")
		resp, body, err := postJSON("/api/v1/sessions/run", taskPayload(cmd, args[0]))
		if err != nil {
			fail("Error: %v", err)
		}

		var result map[string]interface{}
		json.Unmarshal(body, &result)

		if logLines, ok := result["log"].([]interface{}); ok {
			for _, line := range logLines {
				fmt.Println(line)
			}
		}
		if resp.StatusCode != http.StatusOK {
			fail("Failed: %v", result["message"])
		}
		fmt.Printf("Archive: %v\n", result["archive"])
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify Steam credentials without downloading",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		username, _ := cmd.Flags().GetString("username")
		password, _ := cmd.Flags().GetString("password")
		guardCode, _ := cmd.Flags().GetString("guard-code")

		resp, body, err := postJSON("/api/v1/sessions/verify", map[string]string{
			"username":   username,
			"password":   password,
			"guard_code": guardCode,
		})
		if err != nil {
			fail("Error: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			var result map[string]interface{}
			json.Unmarshal(body, &result)
			fail("Login failed (%v): %v", result["kind"], result["message"])
		}
		fmt.Println("Login verified successfully")
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all tasks",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		status, _ := cmd.Flags().GetString("status")

		path := "/api/v1/tasks"
		if status != "" {
			path += "?status=" + status
		}

		var tasks []map[string]interface{}
		if err := getJSON(path, &tasks); err != nil {
			fail("Error: %v", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tAPP\tSTATUS\tOUTPUT\tCREATED")
		for _, task := range tasks {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				truncate(stringField(task, "id"), 8),
				stringField(task, "app_id"),
				stringField(task, "status"),
				truncate(stringField(task, "output_path"), 40),
				stringField(task, "created_at"))
		}
		w.Flush()
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show task statistics",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		var stats map[string]interface{}
		if err := getJSON("/api/v1/tasks/stats", &stats); err != nil {
			fail("Error: %v", err)
		}

		fmt.Println("Task Statistics:")
		fmt.Printf("  Total:     %v\n", stats["total"])
		fmt.Printf("  Queued:    %v\n", stats["queued"])
		fmt.Printf("  Running:   %v\n", stats["running"])
		fmt.Printf("  Completed: %v\n", stats["completed"])
		fmt.Printf("  Failed:    %v\n", stats["failed"])
	},
}

var getCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Get task details",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		var task map[string]interface{}
		if err := getJSON("/api/v1/tasks/"+args[0], &task); err != nil {
			fail("Error: %v", err)
		}

		fmt.Printf("Task Details:\n")
		fmt.Printf("  ID:      %s\n", stringField(task, "id"))
		fmt.Printf("  App:     %s\n", stringField(task, "app_id"))
		fmt.Printf("  Status:  %s\n", stringField(task, "status"))
		fmt.Printf("  Output:  %s\n", stringField(task, "output_path"))
		fmt.Printf("  Created: %s\n", stringField(task, "created_at"))
		if msg := stringField(task, "error_message"); msg != "" {
			fmt.Printf("  Error:   %s\n", msg)
		}
		if archive := stringField(task, "archive_path"); archive != "" {
			fmt.Printf("  Archive: %s\n", archive)
		}
	},
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Show live queue status",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		var status map[string]interface{}
		if err := getJSON("/api/v1/queue/status", &status); err != nil {
			fail("Error: %v", err)
		}

		fmt.Printf("Queue running: %v\n", status["running"])
		if active := stringField(status, "active_task_id"); active != "" {
			fmt.Printf("Active task:   %s\n", active)
		}
		fmt.Printf("Pending:       %v\n", status["pending_count"])
		if lines, ok := status["status_log"].([]interface{}); ok && len(lines) > 0 {
			fmt.Println("Recent activity:")
			for _, line := range lines {
				fmt.Printf("  %v\n", line)
			}
		}
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the server environment (binaries, directories, disk)",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		var report map[string]interface{}
		if err := getJSON("/api/v1/system/check", &report); err != nil {
			fail("Error: %v", err)
		}

		fmt.Printf("Healthy: %v\n", report["healthy"])
		if items, ok := report["items"].([]interface{}); ok {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CHECK\tSTATUS\tDETAIL")
			for _, raw := range items {
				item, _ := raw.(map[string]interface{})
				fmt.Fprintf(w, "%s\t%s\t%s\n",
					stringField(item, "name"),
					stringField(item, "status"),
					stringField(item, "detail"))
			}
			w.Flush()
		}
	},
}

var diskCmd = &cobra.Command{
	Use:   "disk",
	Short: "Show free disk space for the data directory",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		var report map[string]interface{}
		if err := getJSON("/api/v1/system/disk", &report); err != nil {
			fail("Error: %v", err)
		}

		fmt.Printf("Path:  %s\n", stringField(report, "path"))
		fmt.Printf("Free:  %s\n", stringField(report, "free"))
		fmt.Printf("Total: %s\n", stringField(report, "total"))
		fmt.Printf("Used:  %s\n", stringField(report, "used_percent"))
		if low, ok := report["low"].(bool); ok && low {
			fmt.Println("Warning: free space is below the configured minimum")
		}
	},
}

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List finished archives on the server",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		var listing map[string]interface{}
		if err := getJSON("/api/v1/files", &listing); err != nil {
			fail("Error: %v", err)
		}

		files, _ := listing["files"].([]interface{})
		if len(files) == 0 {
			fmt.Println("No archives yet")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSIZE\tMODIFIED")
		for _, raw := range files {
			file, _ := raw.(map[string]interface{})
			fmt.Fprintf(w, "%s\t%s\t%s\n",
				stringField(file, "name"),
				stringField(file, "size_text"),
				stringField(file, "modified"))
		}
		w.Flush()
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs [category]",
	Short: "View server logs (queue, session, error)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		limit, _ := cmd.Flags().GetInt("limit")

		var result map[string]interface{}
		path := fmt.Sprintf("/api/v1/logs/%s?limit=%d", args[0], limit)
		if err := getJSON(path, &result); err != nil {
			fail("Error: %v", err)
		}

		entries, _ := result["entries"].([]interface{})
		for _, raw := range entries {
			entry, _ := raw.(map[string]interface{})
			fmt.Printf("%s [%s] %s\n",
				stringField(entry, "timestamp"),
				stringField(entry, "level"),
				stringField(entry, "message"))
		}
	},
}

func init() {
	for _, c := range []*cobra.Command{addCmd, runCmd} {
		c.Flags().StringP("output", "o", "", "Output archive path on the server")
		c.Flags().StringP("username", "u", "", "Steam username (omit for anonymous)")
		c.Flags().StringP("password", "p", "", "Steam password")
		c.Flags().StringP("guard-code", "g", "", "Steam Guard code")
		c.Flags().BoolP("resume", "r", false, "Keep partial content from a previous attempt")
	}
	verifyCmd.Flags().StringP("username", "u", "", "Steam username")
	verifyCmd.Flags().StringP("password", "p", "", "Steam password")
	verifyCmd.Flags().StringP("guard-code", "g", "", "Steam Guard code")
	listCmd.Flags().StringP("status", "s", "", "Filter by status")
	logsCmd.Flags().IntP("limit", "n", 100, "Maximum entries to show")
}

func stringField(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
