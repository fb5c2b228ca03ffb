package medical

import "strings"

// BloodType is an ABO/Rh blood group as written on a registration form.
type BloodType string

const (
	APos  BloodType = "A+"
	ANeg  BloodType = "A-"
	BPos  BloodType = "B+"
	BNeg  BloodType = "B-"
	ABPos BloodType = "AB+"
	ABNeg BloodType = "AB-"
	OPos  BloodType = "O+"
	ONeg  BloodType = "O-"
)

// BloodTypes lists every blood type the matcher understands.
var BloodTypes = []BloodType{APos, ANeg, BPos, BNeg, ABPos, ABNeg, OPos, ONeg}

// Valid reports whether b is one of the eight known blood types.
func (b BloodType) Valid() bool {
	for _, t := range BloodTypes {
		if t == b {
			return true
		}
	}
	return false
}

// OrganType is the organ a donor offers or a recipient needs.
type OrganType string

const (
	Kidney   OrganType = "kidney"
	Liver    OrganType = "liver"
	Heart    OrganType = "heart"
	Lung     OrganType = "lung"
	Pancreas OrganType = "pancreas"
	Cornea   OrganType = "cornea"
)

var OrganTypes = []OrganType{Kidney, Liver, Heart, Lung, Pancreas, Cornea}

// UrgencyLevel is the clinical urgency recorded for a recipient.
type UrgencyLevel string

const (
	UrgencyLow      UrgencyLevel = "low"
	UrgencyMedium   UrgencyLevel = "medium"
	UrgencyHigh     UrgencyLevel = "high"
	UrgencyCritical UrgencyLevel = "critical"
)

var UrgencyLevels = []UrgencyLevel{UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical}

// IndianStates is the region list offered by the registration forms.
var IndianStates = []string{
	"Andhra Pradesh", "Arunachal Pradesh", "Assam", "Bihar", "Chhattisgarh",
	"Goa", "Gujarat", "Haryana", "Himachal Pradesh", "Jharkhand", "Karnataka",
	"Kerala", "Madhya Pradesh", "Maharashtra", "Manipur", "Meghalaya",
	"Mizoram", "Nagaland", "Odisha", "Punjab", "Rajasthan", "Sikkim",
	"Tamil Nadu", "Telangana", "Tripura", "Uttar Pradesh", "Uttarakhand",
	"West Bengal", "Delhi", "Jammu and Kashmir", "Ladakh",
}

// IsKnownState reports whether state is in IndianStates (case-insensitive).
func IsKnownState(state string) bool {
	for _, s := range IndianStates {
		if strings.EqualFold(s, state) {
			return true
		}
	}
	return false
}

// PersonalInfo is shared by donors and recipients.
type PersonalInfo struct {
	Name          string `json:"name"`
	Age           int    `json:"age"`
	Gender        string `json:"gender"`
	ContactNumber string `json:"contactNumber"`
	Email         string `json:"email"`
	Address       string `json:"address"`
	City          string `json:"city"`
	State         string `json:"state"`
	Pincode       string `json:"pincode"`
}

type DonorMedicalInfo struct {
	BloodType          BloodType `json:"bloodType"`
	HLAType            string    `json:"hlaType"`
	OrganType          OrganType `json:"organType"`
	MedicalHistory     string    `json:"medicalHistory"`
	CurrentMedications string    `json:"currentMedications"`
	Allergies          string    `json:"allergies"`
	SmokingStatus      string    `json:"smokingStatus"`
	AlcoholStatus      string    `json:"alcoholStatus"`
}

type ConsentInfo struct {
	ConsentGiven   bool   `json:"consentGiven"`
	ConsentDate    string `json:"consentDate"`
	WitnessName    string `json:"witnessName"`
	WitnessContact string `json:"witnessContact"`
}

// Donor is a registered organ donor as read from the record store.
type Donor struct {
	ID               string           `json:"id"`
	PersonalInfo     PersonalInfo     `json:"personalInfo"`
	MedicalInfo      DonorMedicalInfo `json:"medicalInfo"`
	ConsentInfo      ConsentInfo      `json:"consentInfo"`
	IsActive         bool             `json:"isActive"`
	RegistrationDate string           `json:"registrationDate"`
	HospitalID       string           `json:"hospitalId"`
}

type RecipientMedicalInfo struct {
	BloodType           BloodType    `json:"bloodType"`
	HLAType             string       `json:"hlaType"`
	OrganType           OrganType    `json:"organType"`
	MedicalCondition    string       `json:"medicalCondition"`
	UrgencyLevel        UrgencyLevel `json:"urgencyLevel"`
	WaitlistDate        string       `json:"waitlistDate"`
	CPRA                float64      `json:"cpra"` // 0-100
	CurrentMedications  string       `json:"currentMedications"`
	Allergies           string       `json:"allergies"`
	DialysisStatus      string       `json:"dialysisStatus,omitempty"`
	PreviousTransplants int          `json:"previousTransplants"`
}

// Recipient is a patient on the transplant waitlist.
type Recipient struct {
	ID               string               `json:"id"`
	PersonalInfo     PersonalInfo         `json:"personalInfo"`
	MedicalInfo      RecipientMedicalInfo `json:"medicalInfo"`
	IsActive         bool                 `json:"isActive"`
	RegistrationDate string               `json:"registrationDate"`
	HospitalID       string               `json:"hospitalId"`
}
