package server

import (
	"net/http"

	"dharohar/core/block"
	"dharohar/core/matching"
	"dharohar/types/medical"
)

// MatchRequest is the body of POST /matches.
type MatchRequest struct {
	Recipient medical.Recipient `json:"recipient"`
	Donors    []medical.Donor   `json:"donors"`
	Record    bool              `json:"record"`
}

type MatchResponse struct {
	Matches     []matching.DonorMatch `json:"matches"`
	Transaction *block.Transaction    `json:"transaction,omitempty"`
}

// MatchStatsRequest is the body of POST /matches/stats.
type MatchStatsRequest struct {
	Donors     []medical.Donor     `json:"donors"`
	Recipients []medical.Recipient `json:"recipients"`
}

func (s *Server) handleRegisterDonor(w http.ResponseWriter, r *http.Request) {
	var d medical.Donor
	if !decodeBody(w, r, &d) {
		return
	}
	tx, err := s.registry.RegisterDonor(r.Context(), d, provenance(r))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleRegisterRecipient(w http.ResponseWriter, r *http.Request) {
	var rec medical.Recipient
	if !decodeBody(w, r, &rec) {
		return
	}
	tx, err := s.registry.RegisterRecipient(r.Context(), rec, provenance(r))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleFindMatches(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Recipient.ID == "" {
		writeError(w, http.StatusBadRequest, "recipient.id is required")
		return
	}
	matches, tx, err := s.registry.FindAndRecordMatches(r.Context(), req.Recipient, req.Donors, req.Record, provenance(r))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MatchResponse{Matches: matches, Transaction: tx})
}

func (s *Server) handleMatchingStats(w http.ResponseWriter, r *http.Request) {
	var req MatchStatsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.registry.MatchingStats(req.Donors, req.Recipients))
}
