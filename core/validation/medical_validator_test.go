package validation

import (
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dharohar/types/medical"
)

func init() {
	SetAuditLogger(log.New(io.Discard, "", 0))
}

func validDonor() medical.Donor {
	donors, _ := medical.DemoRecords()
	return donors[0]
}

func validRecipient() medical.Recipient {
	_, recipients := medical.DemoRecords()
	return recipients[0]
}

func TestDemoRecordsAreValid(t *testing.T) {
	donors, recipients := medical.DemoRecords()
	for _, d := range donors {
		assert.NoError(t, ValidateDonor(d), d.ID)
	}
	for _, r := range recipients {
		assert.NoError(t, ValidateRecipient(r), r.ID)
	}
}

func TestValidateDonorRules(t *testing.T) {
	cases := map[string]func(d *medical.Donor){
		"too young":          func(d *medical.Donor) { d.PersonalInfo.Age = 17 },
		"too old":            func(d *medical.Donor) { d.PersonalInfo.Age = 66 },
		"missing name":       func(d *medical.Donor) { d.PersonalInfo.Name = "" },
		"missing contact":    func(d *medical.Donor) { d.PersonalInfo.ContactNumber = "" },
		"unknown blood type": func(d *medical.Donor) { d.MedicalInfo.BloodType = "C+" },
		"missing hla":        func(d *medical.Donor) { d.MedicalInfo.HLAType = "" },
		"unknown organ":      func(d *medical.Donor) { d.MedicalInfo.OrganType = "spleen" },
		"no consent":         func(d *medical.Donor) { d.ConsentInfo.ConsentGiven = false },
		"no witness":         func(d *medical.Donor) { d.ConsentInfo.WitnessName = "" },
		"no witness contact": func(d *medical.Donor) { d.ConsentInfo.WitnessContact = "" },
		"missing id":         func(d *medical.Donor) { d.ID = "" },
		"unknown state":      func(d *medical.Donor) { d.PersonalInfo.State = "Atlantis" },
		"bad consent date":   func(d *medical.Donor) { d.ConsentInfo.ConsentDate = "15/01/2024" },
		"bad pincode":        func(d *medical.Donor) { d.PersonalInfo.Pincode = "40A001" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			d := validDonor()
			mutate(&d)
			err := ValidateDonor(d)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRecord))
			var rerr *RecordError
			require.True(t, errors.As(err, &rerr))
			assert.Equal(t, DonorSchema, rerr.Schema)
			assert.NotEmpty(t, rerr.Problems)
		})
	}
}

func TestValidateDonorAgeBoundaries(t *testing.T) {
	for _, age := range []int{18, 65} {
		d := validDonor()
		d.PersonalInfo.Age = age
		assert.NoError(t, ValidateDonor(d))
	}
}

func TestValidateRecipientRules(t *testing.T) {
	cases := map[string]func(r *medical.Recipient){
		"age zero":          func(r *medical.Recipient) { r.PersonalInfo.Age = 0 },
		"too old":           func(r *medical.Recipient) { r.PersonalInfo.Age = 81 },
		"no urgency":        func(r *medical.Recipient) { r.MedicalInfo.UrgencyLevel = "" },
		"no waitlist date":  func(r *medical.Recipient) { r.MedicalInfo.WaitlistDate = "" },
		"bad waitlist date": func(r *medical.Recipient) { r.MedicalInfo.WaitlistDate = "last spring" },
		"negative cpra":     func(r *medical.Recipient) { r.MedicalInfo.CPRA = -1 },
		"cpra over 100":     func(r *medical.Recipient) { r.MedicalInfo.CPRA = 100.5 },
		"bad dialysis":      func(r *medical.Recipient) { r.MedicalInfo.DialysisStatus = "daily" },
		"bad blood type":    func(r *medical.Recipient) { r.MedicalInfo.BloodType = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			r := validRecipient()
			mutate(&r)
			err := ValidateRecipient(r)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRecord))
		})
	}
}

func TestValidateRecipientBoundaries(t *testing.T) {
	r := validRecipient()
	r.PersonalInfo.Age = 1
	r.MedicalInfo.CPRA = 0
	r.MedicalInfo.DialysisStatus = ""
	assert.NoError(t, ValidateRecipient(r))

	r.PersonalInfo.Age = 80
	r.MedicalInfo.CPRA = 100
	r.MedicalInfo.WaitlistDate = "2023-06-15T00:00:00.000Z"
	assert.NoError(t, ValidateRecipient(r))
}

func TestValidatePayload(t *testing.T) {
	err := ValidatePayload(DonorSchema, []byte(`{"id": "donor_x"}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRecord))
	assert.True(t, strings.Contains(err.Error(), "personalInfo"))

	err = ValidatePayload(DonorSchema, []byte(`not json`))
	assert.True(t, errors.Is(err, ErrInvalidRecord))

	err = ValidatePayload("organ", []byte(`{}`))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidRecord))
}

func TestEnforceTimestampFormat(t *testing.T) {
	assert.NoError(t, EnforceTimestampFormat("issuedAt", "2025-05-22T18:00:00Z"))
	assert.Error(t, EnforceTimestampFormat("issuedAt", ""))
	assert.Error(t, EnforceTimestampFormat("issuedAt", "not-a-date"))
}
