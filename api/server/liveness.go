// liveness.go - Liveness probe logic for the Dharohar node
package server

// NodeLiveness returns true while the ledger holds at least the genesis block.
func (s *Server) NodeLiveness() bool {
	return s.ledger.Height() > 0
}
