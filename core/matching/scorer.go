// Package matching scores donor/recipient pairs and ranks donors for a
// recipient. Scores are derived on demand and never stored; only the fact that
// a ranking was computed goes on the ledger.
package matching

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"dharohar/types/medical"
)

// Factor weights; they sum to 1.
const (
	WeightBlood     = 0.25
	WeightHLA       = 0.30
	WeightCPRA      = 0.15
	WeightWaitlist  = 0.15
	WeightGeography = 0.10
	WeightAge       = 0.05
)

const (
	maxWaitlistScore = 75
	notApplicable    = "N/A - Blood type incompatible"
)

// Breakdown holds the per-factor sub-scores, each rounded to an integer.
type Breakdown struct {
	BloodCompatibility  int `json:"bloodCompatibility"`
	HLAMatching         int `json:"hlaMatching"`
	CPRAScore           int `json:"cpraScore"`
	WaitlistTime        int `json:"waitlistTime"`
	GeographicProximity int `json:"geographicProximity"`
	AgeCompatibility    int `json:"ageCompatibility"`
}

// Explanation names the concrete values behind each sub-score.
type Explanation struct {
	BloodCompatibility  string `json:"bloodCompatibility"`
	HLAMatching         string `json:"hlaMatching"`
	CPRAScore           string `json:"cpraScore"`
	WaitlistTime        string `json:"waitlistTime"`
	GeographicProximity string `json:"geographicProximity"`
	AgeCompatibility    string `json:"ageCompatibility"`
}

type MatchScore struct {
	TotalScore  int         `json:"totalScore"`
	Breakdown   Breakdown   `json:"breakdown"`
	Explanation Explanation `json:"explanation"`
}

// Scorer computes compatibility scores. The zero value uses time.Now.
type Scorer struct {
	Now func() time.Time
}

// NewScorer returns a Scorer on the wall clock.
func NewScorer() *Scorer {
	return &Scorer{Now: time.Now}
}

func (s *Scorer) now() time.Time {
	if s == nil || s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// round matches the half-up rounding used for displayed scores.
func round(x float64) int {
	return int(math.Floor(x + 0.5))
}

// Score rates donor against recipient. Blood incompatibility short-circuits
// to a zero score.
func (s *Scorer) Score(donor medical.Donor, recipient medical.Recipient) MatchScore {
	blood, bloodWhy, ok := scoreBlood(donor.MedicalInfo.BloodType, recipient.MedicalInfo.BloodType)
	if !ok {
		return MatchScore{
			Explanation: Explanation{
				BloodCompatibility:  bloodWhy,
				HLAMatching:         notApplicable,
				CPRAScore:           notApplicable,
				WaitlistTime:        notApplicable,
				GeographicProximity: notApplicable,
				AgeCompatibility:    notApplicable,
			},
		}
	}

	hla, hlaWhy := scoreHLA(donor.MedicalInfo.HLAType, recipient.MedicalInfo.HLAType)
	cpra, cpraWhy := scoreCPRA(recipient.MedicalInfo.CPRA)
	wait, waitWhy := scoreWaitlist(recipient.MedicalInfo.WaitlistDate, s.now())
	geo, geoWhy := scoreGeography(donor.PersonalInfo.State, recipient.PersonalInfo.State)
	age, ageWhy := scoreAge(donor.PersonalInfo.Age, recipient.PersonalInfo.Age)

	total := blood*WeightBlood +
		hla*WeightHLA +
		cpra*WeightCPRA +
		wait*WeightWaitlist +
		geo*WeightGeography +
		age*WeightAge

	return MatchScore{
		TotalScore: round(total),
		Breakdown: Breakdown{
			BloodCompatibility:  round(blood),
			HLAMatching:         round(hla),
			CPRAScore:           round(cpra),
			WaitlistTime:        round(wait),
			GeographicProximity: round(geo),
			AgeCompatibility:    round(age),
		},
		Explanation: Explanation{
			BloodCompatibility:  bloodWhy,
			HLAMatching:         hlaWhy,
			CPRAScore:           cpraWhy,
			WaitlistTime:        waitWhy,
			GeographicProximity: geoWhy,
			AgeCompatibility:    ageWhy,
		},
	}
}

func scoreCPRA(cpra float64) (float64, string) {
	pct := strconv.FormatFloat(cpra, 'f', -1, 64)
	switch {
	case cpra >= 80:
		return cpra, fmt.Sprintf("Very high CPRA (%s%%) - highly sensitized patient with priority", pct)
	case cpra >= 50:
		return cpra, fmt.Sprintf("High CPRA (%s%%) - sensitized patient", pct)
	case cpra >= 20:
		return cpra, fmt.Sprintf("Moderate CPRA (%s%%) - some sensitization", pct)
	default:
		return cpra, fmt.Sprintf("Low CPRA (%s%%) - minimal sensitization", pct)
	}
}

var waitlistLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseRecordDate accepts the date shapes found in registry records. Dates
// without a zone are read as UTC.
func ParseRecordDate(s string) (time.Time, error) {
	for _, layout := range waitlistLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// WaitlistDays is the number of whole days between since and now. Future
// dates count as zero.
func WaitlistDays(since, now time.Time) int {
	days := int(math.Floor(now.Sub(since).Hours() / 24))
	if days < 0 {
		return 0
	}
	return days
}

func scoreWaitlist(waitlistDate string, now time.Time) (float64, string) {
	since, err := ParseRecordDate(waitlistDate)
	if err != nil {
		return 0, fmt.Sprintf("Waitlist date %q not recognised - counted as 0 days", waitlistDate)
	}
	days := WaitlistDays(since, now)
	score := days / 10
	if score > maxWaitlistScore {
		score = maxWaitlistScore
	}

	years, months := days/365, (days%365)/30
	switch {
	case years > 0:
		return float64(score), fmt.Sprintf("On waitlist for %d year(s) and %d month(s) (%d days)", years, months, days)
	case months > 0:
		return float64(score), fmt.Sprintf("On waitlist for %d month(s) (%d days)", months, days)
	default:
		return float64(score), fmt.Sprintf("On waitlist for %d days", days)
	}
}

func scoreAge(donorAge, recipientAge int) (float64, string) {
	diff := donorAge - recipientAge
	if diff < 0 {
		diff = -diff
	}
	score := 100
	if diff > 10 {
		score = 100 - (diff-10)*2
		if score < 50 {
			score = 50
		}
	}

	ages := fmt.Sprintf("(donor: %d, recipient: %d)", donorAge, recipientAge)
	switch {
	case diff <= 5:
		return float64(score), "Excellent age match " + ages
	case diff <= 10:
		return float64(score), "Good age compatibility " + ages
	case diff <= 20:
		return float64(score), "Acceptable age difference " + ages
	default:
		return float64(score), "Significant age difference " + ages
	}
}
