package server

import (
	"context"
	"net/http"
	"strconv"

	"dharohar/core/block"
	"dharohar/core/ledger"
)

// VerifyResponse is the body of /chain/verify.
type VerifyResponse struct {
	Valid   bool   `json:"valid"`
	Height  int    `json:"height"`
	TipHash string `json:"tipHash"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.Stats())
}

func (s *Server) handleChain(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.Chain())
}

func (s *Server) handleVerifyChain(w http.ResponseWriter, r *http.Request) {
	valid := s.ledger.VerifyChain()
	tip := s.ledger.Tip()
	writeJSON(w, http.StatusOK, VerifyResponse{Valid: valid, Height: s.ledger.Height(), TipHash: tip.Digest})
}

func (s *Server) handleRecentTransactions(w http.ResponseWriter, r *http.Request) {
	limit := ledger.DefaultRecentLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, s.ledger.RecentTransactions(limit))
}

func (s *Server) handleTransactionsByType(w http.ResponseWriter, r *http.Request) {
	kind := block.Kind(r.URL.Query().Get("type"))
	if !kind.Valid() {
		writeError(w, http.StatusBadRequest, "type must be one of "+kindList())
		return
	}
	writeJSON(w, http.StatusOK, s.ledger.TransactionsByType(kind))
}

func (s *Server) handleSearchTransactions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.SearchTransactions(r.URL.Query().Get("q")))
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.Pending())
}

// handleMine mines synchronously. 204 means nothing was pending.
func (s *Server) handleMine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.mineTimeout)
	defer cancel()
	b, err := s.ledger.Mine(ctx)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if b == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func kindList() string {
	out := ""
	for i, k := range block.Kinds() {
		if i > 0 {
			out += ", "
		}
		out += string(k)
	}
	return out
}
