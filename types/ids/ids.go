package ids

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TxPrefix marks ledger transaction identifiers.
const TxPrefix = "tx_"

// NewTxID returns a fresh transaction id of the form tx_<uuid-without-dashes>.
func NewTxID() string {
	return TxPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewEventID returns a random id for audit and notification events.
func NewEventID() string {
	return uuid.NewString()
}

// NewRecordID returns a registry record id such as donor_1718000000000_3f9a1c,
// millisecond creation time plus a random suffix.
func NewRecordID(prefix string, now time.Time) string {
	return fmt.Sprintf("%s_%d_%s", prefix, now.UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
}

// IsTxID checks that s carries the tx_ prefix followed by a valid UUID body.
func IsTxID(s string) bool {
	if !strings.HasPrefix(s, TxPrefix) {
		return false
	}
	body := strings.TrimPrefix(s, TxPrefix)
	if len(body) != 32 {
		return false
	}
	_, err := uuid.Parse(body)
	return err == nil
}
