package registry

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dharohar/core/audit"
	"dharohar/core/block"
	"dharohar/core/ledger"
	"dharohar/core/matching"
	"dharohar/core/validation"
	"dharohar/types/medical"
)

var clock = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

var prov = Provenance{HospitalID: "AIIMS-001", UserID: "coordinator-7"}

func init() {
	validation.SetAuditLogger(log.New(io.Discard, "", 0))
}

func newService(t *testing.T, policy MinePolicy) (*Service, *ledger.Ledger, *audit.MemoryAuditLogger) {
	t.Helper()
	quiet := log.New(io.Discard, "", 0)
	mem := audit.NewMemoryAuditLogger(nil)
	l := ledger.New(ledger.WithLogger(quiet), ledger.WithAuditLogger(mem))
	s := NewService(l, WithPolicy(policy), WithLogger(quiet), WithAuditLogger(mem), WithClock(clock))
	return s, l, mem
}

func demo() ([]medical.Donor, []medical.Recipient) {
	return medical.DemoRecords()
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("immediate")
	require.NoError(t, err)
	assert.Equal(t, MineImmediately, p)
	p, err = ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, MineBatched, p)
	_, err = ParsePolicy("sometimes")
	assert.Error(t, err)
	assert.Equal(t, "immediate", MineImmediately.String())
}

func TestRegisterDonorBatched(t *testing.T) {
	s, l, mem := newService(t, MineBatched)
	donors, _ := demo()
	d := donors[0]
	d.ID = ""
	d.IsActive = false
	d.RegistrationDate = ""
	d.HospitalID = ""

	tx, err := s.RegisterDonor(context.Background(), d, prov)
	require.NoError(t, err)

	assert.Equal(t, block.KindDonorRegistration, tx.Kind)
	assert.Equal(t, "AIIMS-001", tx.HospitalID)
	assert.Equal(t, "coordinator-7", tx.UserID)
	reg, ok := tx.Payload.(block.DonorRegistration)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(reg.ID, "donor_"))
	assert.True(t, reg.IsActive)
	assert.Equal(t, "2025-06-01T12:00:00.000Z", reg.RegistrationDate)
	assert.Equal(t, "AIIMS-001", reg.HospitalID)

	assert.Len(t, l.Pending(), 1)
	assert.Equal(t, 1, l.Height())
	events := mem.ByType("donor_registration")
	require.Len(t, events, 1)
	assert.Equal(t, audit.ResultSuccess, events[0].Result)
}

func TestRegisterRecipientImmediateMines(t *testing.T) {
	s, l, _ := newService(t, MineImmediately)
	_, recipients := demo()

	tx, err := s.RegisterRecipient(context.Background(), recipients[1], prov)
	require.NoError(t, err)

	assert.Empty(t, l.Pending())
	require.Equal(t, 2, l.Height())
	assert.Equal(t, tx.ID, l.Tip().Transactions[0].ID)
	assert.True(t, l.VerifyChain())
}

func TestImmediateWithTriggerDoesNotMineInline(t *testing.T) {
	quiet := log.New(io.Discard, "", 0)
	l := ledger.New(ledger.WithLogger(quiet))
	triggered := 0
	s := NewService(l, WithPolicy(MineImmediately), WithLogger(quiet), WithClock(clock),
		WithAuditLogger(audit.NewMemoryAuditLogger(nil)),
		WithMineTrigger(func() { triggered++ }))
	donors, _ := demo()

	tx, err := s.RegisterDonor(context.Background(), donors[0], prov)
	require.NoError(t, err)
	assert.Equal(t, 1, triggered)
	require.Len(t, l.Pending(), 1)
	assert.Equal(t, tx.ID, l.Pending()[0].ID)
	assert.Equal(t, 1, l.Height())
}

func TestImmediateMiningTimeoutKeepsTransaction(t *testing.T) {
	s, l, _ := newService(t, MineImmediately)
	_, recipients := demo()
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Millisecond))
	defer cancel()

	tx, err := s.RegisterRecipient(ctx, recipients[2], prov)
	require.NoError(t, err)
	require.Len(t, l.Pending(), 1)
	assert.Equal(t, tx.ID, l.Pending()[0].ID)
	assert.Equal(t, 1, l.Height())
}

func TestRegisterRejectsInvalidRecords(t *testing.T) {
	s, l, mem := newService(t, MineImmediately)
	donors, recipients := demo()

	d := donors[0]
	d.PersonalInfo.Age = 70
	_, err := s.RegisterDonor(context.Background(), d, prov)
	assert.True(t, errors.Is(err, validation.ErrInvalidRecord))

	r := recipients[0]
	r.MedicalInfo.CPRA = 140
	_, err = s.RegisterRecipient(context.Background(), r, prov)
	assert.True(t, errors.Is(err, validation.ErrInvalidRecord))

	assert.Empty(t, l.Pending())
	assert.Equal(t, 1, l.Height())
	require.Len(t, mem.ByType("donor_registration"), 1)
	assert.Equal(t, audit.ResultFailure, mem.ByType("donor_registration")[0].Result)
}

func TestFindAndRecordMatches(t *testing.T) {
	s, l, _ := newService(t, MineBatched)
	donors, recipients := demo()

	matches, tx, err := s.FindAndRecordMatches(context.Background(), recipients[0], donors, false, prov)
	require.NoError(t, err)
	assert.Nil(t, tx)
	assert.Empty(t, l.Pending())
	require.NotEmpty(t, matches)

	// Inactive donors and other organs are not candidates.
	inactive := donors[1]
	inactive.ID = "donor_inactive"
	inactive.IsActive = false
	liver := donors[2]
	liver.ID = "donor_liver"
	liver.MedicalInfo.OrganType = medical.Liver
	pool := append(append([]medical.Donor{}, donors...), inactive, liver)

	matches, tx, err = s.FindAndRecordMatches(context.Background(), recipients[0], pool, true, prov)
	require.NoError(t, err)
	require.NotNil(t, tx)
	summary, ok := tx.Payload.(block.MatchCalculation)
	require.True(t, ok)
	assert.Equal(t, recipients[0].ID, summary.RecipientID)
	assert.Equal(t, medical.Kidney, summary.OrganType)
	assert.Equal(t, len(donors), summary.CandidateCount)
	assert.Equal(t, len(matching.Candidates(recipients[0], pool)), summary.CandidateCount)
	assert.Equal(t, len(matches), summary.CompatibleCount)
	for i, m := range matches {
		assert.Equal(t, m.Donor.ID, summary.Ranking[i].DonorID)
		assert.Equal(t, m.Score.TotalScore, summary.Ranking[i].TotalScore)
	}
	assert.Len(t, l.TransactionsByType(block.KindMatchCalculation), 1)
}

func TestDemoRecipientMatchesOnlyOPositiveDonor(t *testing.T) {
	s, _, _ := newService(t, MineBatched)
	donors, recipients := demo()

	// recipient_001 is O+; only the O+ donor qualifies.
	matches, _, err := s.FindAndRecordMatches(context.Background(), recipients[0], donors, false, prov)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "donor_001", matches[0].Donor.ID)
	assert.Equal(t, 100, matches[0].Score.Breakdown.HLAMatching)
}

func TestRecordSystemEvent(t *testing.T) {
	s, l, _ := newService(t, MineBatched)
	tx, err := s.RecordSystemEvent(context.Background(), "node_started", "node online", map[string]string{"version": "1.0.0"}, Provenance{})
	require.NoError(t, err)
	assert.Equal(t, block.KindSystemEvent, tx.Kind)
	assert.Len(t, l.SearchTransactions("node_started"), 1)
}

func TestMatchingStats(t *testing.T) {
	s, _, _ := newService(t, MineBatched)
	donors, recipients := demo()
	stats := s.MatchingStats(donors, recipients)
	assert.Equal(t, 3, stats.TotalDonors)
	assert.Equal(t, 3, stats.TotalRecipients)
	// O+ -> O+, A+ -> A+, B+ -> B+ (and O+ donor to A+/B+ recipients).
	assert.Equal(t, 5, stats.CompatiblePairs)
	assert.Equal(t, matching.OrganCount{Donors: 3, Recipients: 3}, stats.OrganTypeBreakdown[medical.Kidney])
}
