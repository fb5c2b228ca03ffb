// status_handler.go - HTTP handler for /status
package server

import (
	"net/http"
)

// HandleStatus responds to /status with node status
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	metrics := s.GetNodeMetrics()
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:      s.nodeStatus(metrics),
		Uptime:      metrics.UptimeSeconds,
		BlockHeight: metrics.BlockHeight,
		Version:     NodeVersion(),
		APIVersion:  APIVersion(),
		MinePolicy:  s.registry.Policy().String(),
		LastBlock:   metrics.LastBlockTime,
		Metrics:     metrics,
	})
}
