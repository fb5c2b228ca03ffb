package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"dharohar/core/ledger"
	"dharohar/core/miner"
	"dharohar/core/registry"
	"dharohar/core/validation"
)

// Provenance headers; recorded on transactions, never authenticated.
const (
	HeaderHospitalID = "X-Hospital-ID"
	HeaderUserID     = "X-User-ID"
)

// maxBodyBytes caps request bodies (a match request carries full donor lists).
const maxBodyBytes = 8 << 20

type Server struct {
	ledger       *ledger.Ledger
	registry     *registry.Service
	ListenAddr   string
	DataDir      string // reported as disk_free_mb on /nodehealth
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	mineTimeout time.Duration
	logger      *log.Logger
	startTime   time.Time
	ready       atomic.Bool
	limiter     *rateLimiter
	http        *http.Server
}

type Option func(*Server)

func WithLogger(logger *log.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithDataDir(dir string) Option {
	return func(s *Server) { s.DataDir = dir }
}

func WithTimeouts(read, write time.Duration) Option {
	return func(s *Server) {
		s.ReadTimeout = read
		s.WriteTimeout = write
	}
}

// WithMineTimeout bounds a POST /mine round.
func WithMineTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.mineTimeout = d
		}
	}
}

// WithRateLimit caps POST requests per client IP per minute; 0 disables it.
func WithRateLimit(perMinute int) Option {
	return func(s *Server) {
		s.limiter = nil
		if perMinute > 0 {
			s.limiter = newRateLimiter(perMinute)
		}
	}
}

func NewServer(l *ledger.Ledger, reg *registry.Service, listenAddr string, opts ...Option) *Server {
	s := &Server{
		ledger:       l,
		registry:     reg,
		ListenAddr:   listenAddr,
		DataDir:      ".",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		mineTimeout:  miner.DefaultRoundTimeout,
		logger:       log.Default(),
		startTime:    time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MarkReady flips /health/readiness to true. Start calls it once listening.
func (s *Server) MarkReady() { s.ready.Store(true) }

// Routes returns the node's HTTP handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// Health & status
	mux.HandleFunc("GET /health/liveness", s.HandleLiveness)
	mux.HandleFunc("GET /health/readiness", s.HandleReadiness)
	mux.HandleFunc("GET /nodehealth", s.HandleNodeHealth)
	mux.HandleFunc("GET /status", s.HandleStatus)

	// Ledger
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /chain", s.handleChain)
	mux.HandleFunc("GET /chain/verify", s.handleVerifyChain)
	mux.HandleFunc("GET /transactions/recent", s.handleRecentTransactions)
	mux.HandleFunc("GET /transactions/search", s.handleSearchTransactions)
	mux.HandleFunc("GET /transactions", s.handleTransactionsByType)
	mux.HandleFunc("GET /pending", s.handlePending)
	mux.HandleFunc("POST /mine", s.handleMine)

	// Registry & matching
	mux.HandleFunc("POST /donors", s.handleRegisterDonor)
	mux.HandleFunc("POST /recipients", s.handleRegisterRecipient)
	mux.HandleFunc("POST /matches", s.handleFindMatches)
	mux.HandleFunc("POST /matches/stats", s.handleMatchingStats)

	return s.logRequests(s.limitWrites(mux))
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.http = &http.Server{
		Addr:         s.ListenAddr,
		Handler:      s.Routes(),
		ReadTimeout:  s.ReadTimeout,
		WriteTimeout: s.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("[API] Server listening at %s", s.ListenAddr)
		errCh <- s.http.ListenAndServe()
	}()
	s.MarkReady()

	select {
	case err := <-errCh:
		s.ready.Store(false)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.ready.Store(false)
		s.logger.Println("[API] Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Printf("[API] %s %s -> %d (%s)", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Microsecond))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func provenance(r *http.Request) registry.Provenance {
	return registry.Provenance{
		HospitalID: r.Header.Get(HeaderHospitalID),
		UserID:     r.Header.Get(HeaderUserID),
	}
}

// ErrorResponse is the JSON body of every non-2xx reply.
type ErrorResponse struct {
	Error    string   `json:"error"`
	Problems []string `json:"problems,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API][ERROR] Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeFailure maps domain errors to HTTP statuses.
func writeFailure(w http.ResponseWriter, err error) {
	var rerr *validation.RecordError
	switch {
	case errors.As(err, &rerr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: validation.ErrInvalidRecord.Error(), Problems: rerr.Problems})
	case errors.Is(err, validation.ErrInvalidRecord),
		errors.Is(err, ledger.ErrUnknownKind),
		errors.Is(err, ledger.ErrPayloadKindMismatch):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload: "+err.Error())
		return false
	}
	return true
}
