package block

import (
	"encoding/json"
	"errors"
	"fmt"

	"dharohar/types/medical"
)

// Kind is the closed set of facts the ledger records.
type Kind string

const (
	KindDonorRegistration     Kind = "donor_registration"
	KindRecipientRegistration Kind = "recipient_registration"
	KindMatchCalculation      Kind = "match_calculation"
	KindSystemEvent           Kind = "system_event"
)

// Kinds returns every transaction kind in declaration order.
func Kinds() []Kind {
	return []Kind{KindDonorRegistration, KindRecipientRegistration, KindMatchCalculation, KindSystemEvent}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindDonorRegistration, KindRecipientRegistration, KindMatchCalculation, KindSystemEvent:
		return true
	}
	return false
}

var (
	ErrUnknownKind         = errors.New("unknown transaction kind")
	ErrPayloadKindMismatch = errors.New("payload does not match transaction kind")
)

// Payload is the kind-specific body of a transaction. Each kind has exactly
// one concrete payload type.
type Payload interface {
	Kind() Kind
}

// DonorRegistration records a donor joining the registry. The donor record is
// inlined so the payload serializes as the record itself.
type DonorRegistration struct {
	medical.Donor
}

func (DonorRegistration) Kind() Kind { return KindDonorRegistration }

// RecipientRegistration records a recipient joining the waitlist.
type RecipientRegistration struct {
	medical.Recipient
}

func (RecipientRegistration) Kind() Kind { return KindRecipientRegistration }

// RankedDonor is one line of a match summary.
type RankedDonor struct {
	DonorID    string `json:"donorId"`
	TotalScore int    `json:"totalScore"`
}

// MatchCalculation records that a ranking was computed for a recipient. Only
// the outcome summary is stored; scores are always recomputed on demand.
type MatchCalculation struct {
	RecipientID     string            `json:"recipientId"`
	OrganType       medical.OrganType `json:"organType"`
	CandidateCount  int               `json:"candidateCount"`
	CompatibleCount int               `json:"compatibleCount"`
	Ranking         []RankedDonor     `json:"ranking"`
}

func (MatchCalculation) Kind() Kind { return KindMatchCalculation }

// SystemEvent is a free-form operational fact (startup, restore, integrity alarms).
type SystemEvent struct {
	Event   string            `json:"event"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

func (SystemEvent) Kind() Kind { return KindSystemEvent }

// DecodePayload unmarshals raw into the concrete payload type for kind.
func DecodePayload(kind Kind, raw []byte) (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch kind {
	case KindDonorRegistration:
		var v DonorRegistration
		err = json.Unmarshal(raw, &v)
		p = v
	case KindRecipientRegistration:
		var v RecipientRegistration
		err = json.Unmarshal(raw, &v)
		p = v
	case KindMatchCalculation:
		var v MatchCalculation
		err = json.Unmarshal(raw, &v)
		p = v
	case KindSystemEvent:
		var v SystemEvent
		err = json.Unmarshal(raw, &v)
		p = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", kind, err)
	}
	return p, nil
}
