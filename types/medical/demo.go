package medical

import (
	_ "embed"
	"encoding/json"
)

//go:embed demo_records.json
var demoRecords []byte

// DemoRecords returns the bundled sample donors and recipients. Each call
// decodes a fresh copy.
func DemoRecords() ([]Donor, []Recipient) {
	var set struct {
		Donors     []Donor     `json:"donors"`
		Recipients []Recipient `json:"recipients"`
	}
	if err := json.Unmarshal(demoRecords, &set); err != nil {
		panic("medical: corrupt demo records: " + err.Error())
	}
	return set.Donors, set.Recipients
}
