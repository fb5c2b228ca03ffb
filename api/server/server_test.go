package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dharohar/core/audit"
	"dharohar/core/block"
	"dharohar/core/ledger"
	"dharohar/core/matching"
	"dharohar/core/registry"
	"dharohar/core/validation"
	"dharohar/types/medical"
)

func init() {
	validation.SetAuditLogger(log.New(io.Discard, "", 0))
}

func newTestServer(t *testing.T) (*Server, *ledger.Ledger) {
	t.Helper()
	quiet := log.New(io.Discard, "", 0)
	mem := audit.NewMemoryAuditLogger(nil)
	now := func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	l := ledger.New(ledger.WithLogger(quiet), ledger.WithAuditLogger(mem), ledger.WithDifficulty(1))
	reg := registry.NewService(l, registry.WithLogger(quiet), registry.WithAuditLogger(mem), registry.WithClock(now))
	s := NewServer(l, reg, ":0", WithLogger(quiet), WithDataDir(t.TempDir()))
	return s, l
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(HeaderHospitalID, "KEM-MUM")
	req.Header.Set(HeaderUserID, "dr-rao")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v), rr.Body.String())
}

func TestHealthEndpoints(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Routes()

	rr := do(t, h, http.MethodGet, "/health/liveness", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var live LivenessResponse
	decode(t, rr, &live)
	assert.True(t, live.Alive)

	rr = do(t, h, http.MethodGet, "/health/readiness", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	s.MarkReady()
	rr = do(t, h, http.MethodGet, "/health/readiness", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, http.MethodGet, "/nodehealth", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var nh NodeHealthResponse
	decode(t, rr, &nh)
	assert.Equal(t, "genesis", nh.Status)
	assert.Equal(t, 1, nh.Metrics.BlockHeight)
	assert.Equal(t, 1, nh.Metrics.Difficulty)

	rr = do(t, h, http.MethodGet, "/status", nil)
	var st StatusResponse
	decode(t, rr, &st)
	assert.Equal(t, "batched", st.MinePolicy)
	assert.Equal(t, NodeVersion(), st.Version)
}

func TestRegisterMineAndQuery(t *testing.T) {
	s, l := newTestServer(t)
	h := s.Routes()
	donors, recipients := medical.DemoRecords()

	rr := do(t, h, http.MethodPost, "/donors", donors[0])
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var tx block.Transaction
	decode(t, rr, &tx)
	assert.Equal(t, block.KindDonorRegistration, tx.Kind)
	assert.Equal(t, "KEM-MUM", tx.HospitalID)
	assert.Equal(t, "dr-rao", tx.UserID)

	rr = do(t, h, http.MethodPost, "/recipients", recipients[0])
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(t, h, http.MethodGet, "/pending", nil)
	var pending []block.Transaction
	decode(t, rr, &pending)
	assert.Len(t, pending, 2)

	rr = do(t, h, http.MethodPost, "/mine", nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	var mined block.Block
	decode(t, rr, &mined)
	assert.Equal(t, 1, mined.Index)
	assert.Len(t, mined.Transactions, 2)
	assert.Equal(t, 2, l.Height())

	rr = do(t, h, http.MethodPost, "/mine", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, h, http.MethodGet, "/stats", nil)
	var stats ledger.Stats
	decode(t, rr, &stats)
	assert.Equal(t, 2, stats.TotalBlocks)
	assert.Equal(t, 2, stats.TotalTransactions)
	assert.Equal(t, ledger.ConsensusAlgorithm, stats.ConsensusAlgorithm)

	rr = do(t, h, http.MethodGet, "/chain/verify", nil)
	var vr VerifyResponse
	decode(t, rr, &vr)
	assert.True(t, vr.Valid)
	assert.Equal(t, mined.Digest, vr.TipHash)

	rr = do(t, h, http.MethodGet, "/chain", nil)
	var chain []block.Block
	decode(t, rr, &chain)
	require.Len(t, chain, 2)
	assert.Equal(t, block.GenesisDigest, chain[0].Digest)

	rr = do(t, h, http.MethodGet, "/transactions?type=recipient_registration", nil)
	var byType []block.Transaction
	decode(t, rr, &byType)
	require.Len(t, byType, 1)
	assert.Equal(t, block.KindRecipientRegistration, byType[0].Kind)

	rr = do(t, h, http.MethodGet, "/transactions/recent?limit=1", nil)
	var recent []block.Transaction
	decode(t, rr, &recent)
	require.Len(t, recent, 1)
	assert.Equal(t, block.KindRecipientRegistration, recent[0].Kind)

	rr = do(t, h, http.MethodGet, "/transactions/search?q="+donors[0].PersonalInfo.City, nil)
	var found []block.Transaction
	decode(t, rr, &found)
	assert.NotEmpty(t, found)
}

func TestMineAbortedRequestKeepsPending(t *testing.T) {
	s, l := newTestServer(t)
	h := s.Routes()
	_, err := l.CreateTransaction(block.KindSystemEvent, block.SystemEvent{Event: "manual"}, "", "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/mine", nil).WithContext(ctx)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Len(t, l.Pending(), 1)
	assert.Equal(t, 1, l.Height())
}

func TestBadRequests(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Routes()
	donors, _ := medical.DemoRecords()

	rr := do(t, h, http.MethodGet, "/transactions?type=transfer", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodGet, "/transactions/recent?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/donors", bytes.NewBufferString("{not json"))
	raw := httptest.NewRecorder()
	h.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)

	d := donors[0]
	d.PersonalInfo.Age = 12
	rr = do(t, h, http.MethodPost, "/donors", d)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	var er ErrorResponse
	decode(t, rr, &er)
	assert.Equal(t, "invalid record", er.Error)
	assert.NotEmpty(t, er.Problems)

	rr = do(t, h, http.MethodDelete, "/chain", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestMatchEndpoints(t *testing.T) {
	s, l := newTestServer(t)
	h := s.Routes()
	donors, recipients := medical.DemoRecords()

	rr := do(t, h, http.MethodPost, "/matches", MatchRequest{Recipient: recipients[0], Donors: donors})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp MatchResponse
	decode(t, rr, &resp)
	require.Len(t, resp.Matches, 1)
	assert.Equal(t, "donor_001", resp.Matches[0].Donor.ID)
	assert.Nil(t, resp.Transaction)
	assert.Empty(t, l.Pending())

	rr = do(t, h, http.MethodPost, "/matches", MatchRequest{Recipient: recipients[0], Donors: donors, Record: true})
	require.Equal(t, http.StatusOK, rr.Code)
	resp = MatchResponse{}
	decode(t, rr, &resp)
	require.NotNil(t, resp.Transaction)
	assert.Equal(t, block.KindMatchCalculation, resp.Transaction.Kind)
	assert.Len(t, l.Pending(), 1)

	rr = do(t, h, http.MethodPost, "/matches", MatchRequest{Donors: donors})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPost, "/matches/stats", MatchStatsRequest{Donors: donors, Recipients: recipients})
	require.Equal(t, http.StatusOK, rr.Code)
	var stats matching.Stats
	decode(t, rr, &stats)
	assert.Equal(t, 3, stats.TotalDonors)
	assert.Equal(t, 3, stats.TotalRecipients)
	assert.Equal(t, matching.OrganCount{Donors: 3, Recipients: 3}, stats.OrganTypeBreakdown[medical.Kidney])
}

func TestRateLimitAppliesToWritesOnly(t *testing.T) {
	s, _ := newTestServer(t)
	WithRateLimit(2)(s)
	h := s.Routes()

	for i := 0; i < 2; i++ {
		rr := do(t, h, http.MethodPost, "/mine", nil)
		assert.Equal(t, http.StatusNoContent, rr.Code)
	}
	rr := do(t, h, http.MethodPost, "/mine", nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	rr = do(t, h, http.MethodGet, "/stats", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRateLimiterWindowSlides(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := newRateLimiter(1)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))

	now = now.Add(rateLimitWindow)
	assert.True(t, rl.Allow("10.0.0.1"))
}

func TestRateLimiterForgetsIdleClients(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := newRateLimiter(5)
	rl.now = func() time.Time { return now }

	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		assert.True(t, rl.Allow(ip))
	}
	assert.Len(t, rl.requests, 3)

	now = now.Add(30 * time.Second)
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.Len(t, rl.requests, 3)

	now = now.Add(rateLimitWindow)
	assert.True(t, rl.Allow("10.0.0.9"))
	assert.Len(t, rl.requests, 1)
	assert.Contains(t, rl.requests, "10.0.0.9")
}
