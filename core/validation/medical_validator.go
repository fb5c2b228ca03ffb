// Package validation checks donor and recipient records before they are
// written to the ledger. Structural rules live in JSON schemas under
// schemas/; cross-field and format rules are checked in Go afterwards.
package validation

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"dharohar/core/matching"
	"dharohar/types/medical"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const (
	DonorSchema     = "donor"
	RecipientSchema = "recipient"
)

// ErrInvalidRecord is wrapped by every validation failure.
var ErrInvalidRecord = errors.New("invalid record")

// RecordError lists every problem found in one record.
type RecordError struct {
	Schema   string
	Problems []string
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s record failed validation: %s", e.Schema, strings.Join(e.Problems, "; "))
}

func (e *RecordError) Unwrap() error { return ErrInvalidRecord }

var (
	schemasOnce sync.Once
	schemas     map[string]*gojsonschema.Schema
	schemasErr  error
)

func loadSchemas() (map[string]*gojsonschema.Schema, error) {
	schemasOnce.Do(func() {
		schemas = make(map[string]*gojsonschema.Schema)
		for _, name := range []string{DonorSchema, RecipientSchema} {
			raw, err := schemaFS.ReadFile("schemas/" + name + ".schema.json")
			if err != nil {
				schemasErr = fmt.Errorf("read %s schema: %w", name, err)
				return
			}
			s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
			if err != nil {
				schemasErr = fmt.Errorf("compile %s schema: %w", name, err)
				return
			}
			schemas[name] = s
		}
	})
	return schemas, schemasErr
}

// ValidatePayload checks raw JSON against the named schema.
func ValidatePayload(schemaName string, payload []byte) error {
	all, err := loadSchemas()
	if err != nil {
		return err
	}
	s, ok := all[schemaName]
	if !ok {
		return fmt.Errorf("unknown schema %q", schemaName)
	}
	result, err := s.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return fmt.Errorf("%w: %s payload is not valid JSON: %v", ErrInvalidRecord, schemaName, err)
	}
	if result.Valid() {
		return nil
	}
	rerr := &RecordError{Schema: schemaName}
	for _, e := range result.Errors() {
		rerr.Problems = append(rerr.Problems, e.String())
	}
	AuditValidationError(schemaName+"_schema", fmt.Sprintf("%d schema violation(s)", len(rerr.Problems)))
	return rerr
}

// ValidateDonor enforces the donor registration rules: adult donor aged
// 18-65, contact details, blood/HLA/organ typing and witnessed consent.
func ValidateDonor(d medical.Donor) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("could not marshal donor to JSON: %w", err)
	}
	if err := ValidatePayload(DonorSchema, payload); err != nil {
		return err
	}

	var problems []string
	problems = appendStateProblem(problems, d.PersonalInfo.State)
	if d.ConsentInfo.ConsentDate != "" {
		if err := EnforceTimestampFormat("consentInfo.consentDate", d.ConsentInfo.ConsentDate); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if d.RegistrationDate != "" {
		if err := EnforceTimestampFormat("registrationDate", d.RegistrationDate); err != nil {
			problems = append(problems, err.Error())
		}
	}
	return finish(DonorSchema, problems)
}

// ValidateRecipient enforces the recipient rules: age 1-80, urgency,
// waitlist date and CPRA between 0 and 100.
func ValidateRecipient(r medical.Recipient) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("could not marshal recipient to JSON: %w", err)
	}
	if err := ValidatePayload(RecipientSchema, payload); err != nil {
		return err
	}

	var problems []string
	problems = appendStateProblem(problems, r.PersonalInfo.State)
	if _, err := matching.ParseRecordDate(r.MedicalInfo.WaitlistDate); err != nil {
		problems = append(problems, "medicalInfo.waitlistDate: "+err.Error())
	}
	if r.RegistrationDate != "" {
		if err := EnforceTimestampFormat("registrationDate", r.RegistrationDate); err != nil {
			problems = append(problems, err.Error())
		}
	}
	return finish(RecipientSchema, problems)
}

func appendStateProblem(problems []string, state string) []string {
	if state != "" && !medical.IsKnownState(state) {
		return append(problems, fmt.Sprintf("personalInfo.state: %q is not a recognised state", state))
	}
	return problems
}

func finish(schema string, problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	for _, p := range problems {
		AuditValidationError(schema+"_rules", p)
	}
	return &RecordError{Schema: schema, Problems: problems}
}

// EnforceTimestampFormat checks that value is RFC3339
func EnforceTimestampFormat(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s is empty", field)
	}
	if _, err := time.Parse(time.RFC3339, value); err != nil {
		return fmt.Errorf("%s must be RFC3339: %w", field, err)
	}
	return nil
}
