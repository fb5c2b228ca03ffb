package matching

import (
	"fmt"
	"strings"
)

const hlaLoci = 6 // two alleles at each of A, B, DR

type hlaProfile struct {
	A, B, DR []string
}

// parseHLA reads a typing string such as "A1,A2,B5,B8,DR3,DR4".
// Alleles are grouped by prefix; anything else is ignored.
func parseHLA(typing string) hlaProfile {
	var p hlaProfile
	for _, raw := range strings.Split(typing, ",") {
		allele := strings.ToUpper(strings.TrimSpace(raw))
		switch {
		case strings.HasPrefix(allele, "A"):
			p.A = append(p.A, allele)
		case strings.HasPrefix(allele, "B"):
			p.B = append(p.B, allele)
		case strings.HasPrefix(allele, "DR"):
			p.DR = append(p.DR, allele)
		}
	}
	return p
}

func countMismatches(donor, recipient []string) int {
	n := 0
	for _, allele := range recipient {
		if !contains(donor, allele) {
			n++
		}
	}
	return n
}

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// HLAMismatches counts recipient alleles the donor does not carry.
func HLAMismatches(donorTyping, recipientTyping string) int {
	d, r := parseHLA(donorTyping), parseHLA(recipientTyping)
	return countMismatches(d.A, r.A) + countMismatches(d.B, r.B) + countMismatches(d.DR, r.DR)
}

func scoreHLA(donorTyping, recipientTyping string) (float64, string) {
	mm := HLAMismatches(donorTyping, recipientTyping)
	score := float64(hlaLoci-mm) / hlaLoci * 100
	if score < 0 {
		score = 0
	}
	switch {
	case mm == 0:
		return score, "Perfect HLA match - no mismatches detected"
	case mm <= 2:
		return score, fmt.Sprintf("Excellent HLA match - only %d mismatch(es)", mm)
	case mm <= 4:
		return score, fmt.Sprintf("Good HLA match - %d mismatch(es)", mm)
	default:
		return score, fmt.Sprintf("Poor HLA match - %d mismatch(es)", mm)
	}
}
