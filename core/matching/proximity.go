package matching

import "fmt"

const distantScore = 25

// stateProximity is directional: a pair listed only from one side scores
// distantScore when looked up from the other.
var stateProximity = map[string]map[string]float64{
	"Delhi":       {"Delhi": 100, "Haryana": 75, "Punjab": 50, "Uttar Pradesh": 50},
	"Maharashtra": {"Maharashtra": 100, "Gujarat": 75, "Karnataka": 50, "Goa": 75},
	"Karnataka":   {"Karnataka": 100, "Tamil Nadu": 75, "Andhra Pradesh": 75, "Kerala": 50},
	"Tamil Nadu":  {"Tamil Nadu": 100, "Karnataka": 75, "Kerala": 75, "Andhra Pradesh": 50},
	"West Bengal": {"West Bengal": 100, "Odisha": 75, "Jharkhand": 50, "Bihar": 50},
}

// ProximityScore returns the transport score for moving an organ from the
// donor's state to the recipient's.
func ProximityScore(donorState, recipientState string) float64 {
	if donorState == "" || recipientState == "" {
		return distantScore
	}
	if donorState == recipientState {
		return 100
	}
	if s, ok := stateProximity[donorState][recipientState]; ok && s > 0 {
		return s
	}
	return distantScore
}

func scoreGeography(donorState, recipientState string) (float64, string) {
	if donorState == "" || recipientState == "" {
		return distantScore, "Geographic information incomplete"
	}
	if donorState == recipientState {
		return 100, fmt.Sprintf("Same state (%s) - optimal for organ transport", donorState)
	}
	score := ProximityScore(donorState, recipientState)
	switch {
	case score >= 75:
		return score, fmt.Sprintf("Neighboring states (%s → %s) - good transport logistics", donorState, recipientState)
	case score >= 50:
		return score, fmt.Sprintf("Regional proximity (%s → %s) - acceptable transport time", donorState, recipientState)
	default:
		return score, fmt.Sprintf("Distant states (%s → %s) - longer transport required", donorState, recipientState)
	}
}
