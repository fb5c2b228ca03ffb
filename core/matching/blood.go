package matching

import (
	"fmt"

	m "dharohar/types/medical"
)

// bloodCompatibility maps a donor blood type to the recipient types it can serve.
var bloodCompatibility = map[m.BloodType][]m.BloodType{
	m.ONeg:  {m.ONeg, m.OPos, m.ANeg, m.APos, m.BNeg, m.BPos, m.ABNeg, m.ABPos},
	m.OPos:  {m.OPos, m.APos, m.BPos, m.ABPos},
	m.ANeg:  {m.ANeg, m.APos, m.ABNeg, m.ABPos},
	m.APos:  {m.APos, m.ABPos},
	m.BNeg:  {m.BNeg, m.BPos, m.ABNeg, m.ABPos},
	m.BPos:  {m.BPos, m.ABPos},
	m.ABNeg: {m.ABNeg, m.ABPos},
	m.ABPos: {m.ABPos},
}

// BloodCompatible reports whether donor blood can be given to recipient.
// Unknown types are never compatible.
func BloodCompatible(donor, recipient m.BloodType) bool {
	for _, bt := range bloodCompatibility[donor] {
		if bt == recipient {
			return true
		}
	}
	return false
}

func scoreBlood(donor, recipient m.BloodType) (float64, string, bool) {
	switch {
	case !BloodCompatible(donor, recipient):
		return 0, fmt.Sprintf("Blood type %s is not compatible with recipient blood type %s", donor, recipient), false
	case donor == recipient:
		return 100, fmt.Sprintf("Perfect blood type match (%s → %s)", donor, recipient), true
	case donor == m.ONeg:
		return 90, fmt.Sprintf("Universal donor O- is compatible with recipient %s", recipient), true
	default:
		return 80, fmt.Sprintf("Blood type %s is compatible with recipient %s", donor, recipient), true
	}
}
