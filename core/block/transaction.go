package block

import (
	"encoding/json"
	"fmt"
	"time"

	"dharohar/core/digest"
)

// TimeLayout renders ledger timestamps (ISO-8601, UTC, millisecond precision).
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Transaction is a single sealed fact. Once created its Digest never changes.
type Transaction struct {
	ID                  string    `json:"id"`
	Kind                Kind      `json:"type"`
	CreatedAt           time.Time `json:"timestamp"`
	Payload             Payload   `json:"data"`
	Digest              string    `json:"hash"`
	PreviousBlockDigest string    `json:"previousHash"`
	HospitalID          string    `json:"hospitalId"`
	UserID              string    `json:"userId"`
}

// NewTransaction builds and seals a transaction. createdAt is normalised to
// UTC millisecond precision so the digest survives a JSON round trip.
func NewTransaction(id string, payload Payload, createdAt time.Time, prevBlockDigest, hospitalID, userID string, d digest.Digester) (Transaction, error) {
	if payload == nil {
		return Transaction{}, fmt.Errorf("%w: nil payload", ErrPayloadKindMismatch)
	}
	kind := payload.Kind()
	if !kind.Valid() {
		return Transaction{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	tx := Transaction{
		ID:                  id,
		Kind:                kind,
		CreatedAt:           NormalizeTime(createdAt),
		Payload:             payload,
		PreviousBlockDigest: prevBlockDigest,
		HospitalID:          hospitalID,
		UserID:              userID,
	}
	sum, err := tx.ComputeDigest(d)
	if err != nil {
		return Transaction{}, err
	}
	tx.Digest = sum
	return tx, nil
}

// NormalizeTime strips the monotonic reading and truncates t to milliseconds in UTC.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// DigestContent is the preimage id + kind + timestamp + payload JSON.
func (tx Transaction) DigestContent() ([]byte, error) {
	data, err := json.Marshal(tx.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload of %s: %w", tx.ID, err)
	}
	buf := make([]byte, 0, len(tx.ID)+len(tx.Kind)+len(TimeLayout)+len(data))
	buf = append(buf, tx.ID...)
	buf = append(buf, tx.Kind...)
	buf = tx.CreatedAt.UTC().AppendFormat(buf, TimeLayout)
	buf = append(buf, data...)
	return buf, nil
}

// ComputeDigest recomputes the digest from the current field values.
func (tx Transaction) ComputeDigest(d digest.Digester) (string, error) {
	content, err := tx.DigestContent()
	if err != nil {
		return "", err
	}
	return d.Digest(content), nil
}

// UnmarshalJSON decodes the payload into the concrete type named by "type".
func (tx *Transaction) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID                  string          `json:"id"`
		Kind                Kind            `json:"type"`
		CreatedAt           time.Time       `json:"timestamp"`
		Payload             json.RawMessage `json:"data"`
		Digest              string          `json:"hash"`
		PreviousBlockDigest string          `json:"previousHash"`
		HospitalID          string          `json:"hospitalId"`
		UserID              string          `json:"userId"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	payload, err := DecodePayload(wire.Kind, wire.Payload)
	if err != nil {
		return err
	}
	*tx = Transaction{
		ID:                  wire.ID,
		Kind:                wire.Kind,
		CreatedAt:           wire.CreatedAt,
		Payload:             payload,
		Digest:              wire.Digest,
		PreviousBlockDigest: wire.PreviousBlockDigest,
		HospitalID:          wire.HospitalID,
		UserID:              wire.UserID,
	}
	return nil
}
