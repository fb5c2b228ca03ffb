// Package registry is the write path for hospital registrations: it fills in
// record defaults, validates, records ledger transactions and applies the
// configured mining policy.
package registry

import (
	"context"
	"fmt"
	"log"
	"time"

	"dharohar/core/audit"
	"dharohar/core/block"
	"dharohar/core/ledger"
	"dharohar/core/matching"
	"dharohar/core/miner"
	"dharohar/core/validation"
	"dharohar/types/ids"
	"dharohar/types/medical"
)

// MinePolicy decides who calls Ledger.Mine after a registration.
type MinePolicy int

const (
	// MineBatched leaves mining to a scheduler.
	MineBatched MinePolicy = iota
	// MineImmediately mines right after every recorded transaction.
	MineImmediately
)

// ParsePolicy maps the config strings "batched" and "immediate".
func ParsePolicy(s string) (MinePolicy, error) {
	switch s {
	case "batched", "":
		return MineBatched, nil
	case "immediate":
		return MineImmediately, nil
	}
	return MineBatched, fmt.Errorf("unknown mine policy %q", s)
}

func (p MinePolicy) String() string {
	if p == MineImmediately {
		return "immediate"
	}
	return "batched"
}

// Provenance identifies who submitted a request. It is recorded, not verified.
type Provenance struct {
	HospitalID string
	UserID     string
}

// Service records registrations and match computations on a ledger.
type Service struct {
	ledger      *ledger.Ledger
	finder      *matching.Finder
	policy      MinePolicy
	logger      *log.Logger
	auditLogger audit.AuditLogger
	now         func() time.Time
	trigger     func()
	mineTimeout time.Duration
}

type Option func(*Service)

func WithPolicy(p MinePolicy) Option {
	return func(s *Service) { s.policy = p }
}

func WithFinder(f *matching.Finder) Option {
	return func(s *Service) {
		if f != nil {
			s.finder = f
		}
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithAuditLogger(a audit.AuditLogger) Option {
	return func(s *Service) {
		if a != nil {
			s.auditLogger = a
		}
	}
}

// WithMineTrigger hands immediate-policy mining to fn (typically a
// scheduler's Trigger) so registrations return without waiting for the
// proof-of-work search.
func WithMineTrigger(fn func()) Option {
	return func(s *Service) { s.trigger = fn }
}

// WithMineTimeout bounds inline immediate-policy mining when no trigger is
// configured.
func WithMineTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.mineTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires a registry on top of l.
func NewService(l *ledger.Ledger, opts ...Option) *Service {
	s := &Service{
		ledger:      l,
		logger:      log.Default(),
		now:         time.Now,
		mineTimeout: miner.DefaultRoundTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.finder == nil {
		s.finder = matching.NewFinder(&matching.Scorer{Now: s.now})
	}
	if s.auditLogger == nil {
		s.auditLogger = audit.NewLogAuditLogger(s.logger)
	}
	return s
}

// Policy returns the configured mining policy.
func (s *Service) Policy() MinePolicy { return s.policy }

// Finder returns the match finder used by FindAndRecordMatches.
func (s *Service) Finder() *matching.Finder { return s.finder }

func (s *Service) timestamp() string {
	return s.now().UTC().Format(block.TimeLayout)
}

// PrepareDonor fills registration defaults: id, active flag, dates and the
// submitting hospital.
func (s *Service) PrepareDonor(d medical.Donor, prov Provenance) medical.Donor {
	if d.ID == "" {
		d.ID = ids.NewRecordID("donor", s.now())
	}
	d.IsActive = true
	if d.RegistrationDate == "" {
		d.RegistrationDate = s.timestamp()
	}
	if d.ConsentInfo.ConsentGiven && d.ConsentInfo.ConsentDate == "" {
		d.ConsentInfo.ConsentDate = s.timestamp()
	}
	if d.HospitalID == "" {
		d.HospitalID = prov.HospitalID
	}
	return d
}

// PrepareRecipient fills registration defaults like PrepareDonor.
func (s *Service) PrepareRecipient(r medical.Recipient, prov Provenance) medical.Recipient {
	if r.ID == "" {
		r.ID = ids.NewRecordID("recipient", s.now())
	}
	r.IsActive = true
	if r.RegistrationDate == "" {
		r.RegistrationDate = s.timestamp()
	}
	if r.HospitalID == "" {
		r.HospitalID = prov.HospitalID
	}
	return r
}

// RegisterDonor validates the donor and records a donor_registration
// transaction.
func (s *Service) RegisterDonor(ctx context.Context, d medical.Donor, prov Provenance) (block.Transaction, error) {
	d = s.PrepareDonor(d, prov)
	if err := validation.ValidateDonor(d); err != nil {
		s.audit("donor_registration", d.ID, err)
		return block.Transaction{}, err
	}
	return s.record(ctx, block.DonorRegistration{Donor: d}, d.ID, prov)
}

// RegisterRecipient validates the recipient and records a
// recipient_registration transaction.
func (s *Service) RegisterRecipient(ctx context.Context, r medical.Recipient, prov Provenance) (block.Transaction, error) {
	r = s.PrepareRecipient(r, prov)
	if err := validation.ValidateRecipient(r); err != nil {
		s.audit("recipient_registration", r.ID, err)
		return block.Transaction{}, err
	}
	return s.record(ctx, block.RecipientRegistration{Recipient: r}, r.ID, prov)
}

// MatchSummary builds the ledger payload for a computed ranking.
func MatchSummary(recipient medical.Recipient, candidateCount int, matches []matching.DonorMatch) block.MatchCalculation {
	summary := block.MatchCalculation{
		RecipientID:     recipient.ID,
		OrganType:       recipient.MedicalInfo.OrganType,
		CandidateCount:  candidateCount,
		CompatibleCount: len(matches),
		Ranking:         make([]block.RankedDonor, len(matches)),
	}
	for i, m := range matches {
		summary.Ranking[i] = block.RankedDonor{DonorID: m.Donor.ID, TotalScore: m.Score.TotalScore}
	}
	return summary
}

// RecordMatchCalculation records that matches were computed for recipient.
func (s *Service) RecordMatchCalculation(ctx context.Context, recipient medical.Recipient, candidateCount int, matches []matching.DonorMatch, prov Provenance) (block.Transaction, error) {
	return s.record(ctx, MatchSummary(recipient, candidateCount, matches), recipient.ID, prov)
}

// FindAndRecordMatches ranks donors for recipient and, when record is set,
// writes a match_calculation transaction. The transaction is nil otherwise.
func (s *Service) FindAndRecordMatches(ctx context.Context, recipient medical.Recipient, donors []medical.Donor, record bool, prov Provenance) ([]matching.DonorMatch, *block.Transaction, error) {
	matches := s.finder.FindMatches(recipient, donors)
	if !record {
		return matches, nil, nil
	}
	tx, err := s.RecordMatchCalculation(ctx, recipient, len(matching.Candidates(recipient, donors)), matches, prov)
	if err != nil {
		return matches, nil, err
	}
	return matches, &tx, nil
}

// RecordSystemEvent records an operational fact such as node start-up.
func (s *Service) RecordSystemEvent(ctx context.Context, event, message string, details map[string]string, prov Provenance) (block.Transaction, error) {
	return s.record(ctx, block.SystemEvent{Event: event, Message: message, Details: details}, event, prov)
}

// MatchingStats summarises compatibility across the given records.
func (s *Service) MatchingStats(donors []medical.Donor, recipients []medical.Recipient) matching.Stats {
	return s.finder.MatchingStats(donors, recipients)
}

func (s *Service) record(ctx context.Context, payload block.Payload, entityID string, prov Provenance) (block.Transaction, error) {
	tx, err := s.ledger.CreateTransaction(payload.Kind(), payload, prov.HospitalID, prov.UserID)
	if err != nil {
		s.audit(string(payload.Kind()), entityID, err)
		return block.Transaction{}, fmt.Errorf("record %s: %w", payload.Kind(), err)
	}
	s.audit(string(payload.Kind()), entityID, nil)

	if s.policy == MineImmediately {
		s.mineNow(ctx, tx.ID)
	}
	return tx, nil
}

// mineNow applies the immediate policy. The transaction stays pending if
// mining fails or times out; the next round picks it up.
func (s *Service) mineNow(ctx context.Context, txID string) {
	if s.trigger != nil {
		s.trigger()
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.mineTimeout)
	defer cancel()
	if _, err := s.ledger.Mine(ctx); err != nil {
		s.logger.Printf("[REGISTRY][WARN] Immediate mining after %s failed: %v", txID, err)
	}
}

func (s *Service) audit(eventType, entityID string, err error) {
	ev := audit.AuditEvent{EventType: eventType, EntityID: entityID, Result: audit.ResultSuccess}
	if err != nil {
		ev.Result = audit.ResultFailure
		ev.Reason = err.Error()
	}
	s.auditLogger.LogEvent(ev)
}
