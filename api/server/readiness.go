// readiness.go - Readiness probe logic for the Dharohar node
package server

// NodeReadiness returns true once the snapshot is restored and the listener is up.
func (s *Server) NodeReadiness() bool {
	return s.ready.Load() && s.NodeLiveness()
}
