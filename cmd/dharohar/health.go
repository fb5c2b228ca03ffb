package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"dharohar/api/server"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Query a running node's health summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		node, _ := cmd.Flags().GetString("node")
		health, err := fetchNodeHealth(&http.Client{Timeout: 5 * time.Second}, node)
		if err != nil {
			return err
		}
		m := health.Metrics
		return renderTable(pterm.TableData{
			{"Metric", "Value"},
			{"Node health", health.Status},
			{"Uptime", fmt.Sprintf("%ds", m.UptimeSeconds)},
			{"Block height", fmt.Sprint(m.BlockHeight)},
			{"Pending", fmt.Sprint(m.PendingTransactions)},
			{"Difficulty", fmt.Sprint(m.Difficulty)},
			{"CPU load", fmt.Sprintf("%.2f%%", m.CPULoadPercent)},
			{"Memory", fmt.Sprintf("%.2f MB", m.MemoryMB)},
			{"Disk free", fmt.Sprintf("%.2f MB", m.DiskFreeMB)},
			{"Last block", m.LastBlockTime},
		})
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
	healthCmd.Flags().String("node", "http://localhost:8080", "node base URL")
}

func fetchNodeHealth(client *http.Client, node string) (server.NodeHealthResponse, error) {
	var out server.NodeHealthResponse
	resp, err := client.Get(strings.TrimRight(node, "/") + "/nodehealth")
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return out, fmt.Errorf("node returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode /nodehealth: %w", err)
	}
	return out, nil
}
