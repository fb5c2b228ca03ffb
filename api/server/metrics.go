// metrics.go - Metrics collection for the Dharohar node
package server

import (
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
)

// NodeMetrics holds granular health metrics for the node.
type NodeMetrics struct {
	UptimeSeconds       int64   `json:"uptime_seconds"`
	BlockHeight         int     `json:"block_height"`
	PendingTransactions int     `json:"pending_transactions"`
	Difficulty          int     `json:"difficulty"`
	CPULoadPercent      float64 `json:"cpu_load_percent"`
	MemoryMB            float64 `json:"memory_mb"`
	DiskFreeMB          float64 `json:"disk_free_mb"`
	BlockLagSeconds     int64   `json:"block_lag_seconds"`
	LastBlockTime       string  `json:"last_block_time"`
}

// GetNodeMetrics returns current health metrics for the node.
func (s *Server) GetNodeMetrics() NodeMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	diskFreeMB := 0.0
	if usage, err := disk.Usage(s.DataDir); err == nil {
		diskFreeMB = float64(usage.Free) / (1024 * 1024)
	}

	cpuLoad := 0.0
	if cpuPercents, err := cpu.Percent(0, false); err == nil && len(cpuPercents) > 0 {
		cpuLoad = cpuPercents[0]
	}

	tip := s.ledger.Tip()
	return NodeMetrics{
		UptimeSeconds:       int64(time.Since(s.startTime).Seconds()),
		BlockHeight:         s.ledger.Height(),
		PendingTransactions: len(s.ledger.Pending()),
		Difficulty:          s.ledger.Difficulty(),
		CPULoadPercent:      cpuLoad,
		MemoryMB:            float64(m.Alloc) / (1024 * 1024),
		DiskFreeMB:          diskFreeMB,
		BlockLagSeconds:     int64(time.Since(tip.CreatedAt).Seconds()),
		LastBlockTime:       tip.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// nodeStatus derives a one-word health summary from metrics.
func (s *Server) nodeStatus(metrics NodeMetrics) string {
	switch {
	case !s.ready.Load():
		return "initializing"
	case metrics.BlockHeight <= 1:
		return "genesis"
	default:
		return "healthy"
	}
}
