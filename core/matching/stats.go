package matching

import "dharohar/types/medical"

// OrganCount is the number of active donors and recipients for one organ.
type OrganCount struct {
	Donors     int `json:"donors"`
	Recipients int `json:"recipients"`
}

// Stats is the system-wide matching summary.
type Stats struct {
	TotalDonors        int                              `json:"totalDonors"`
	TotalRecipients    int                              `json:"totalRecipients"`
	CompatiblePairs    int                              `json:"compatiblePairs"`
	AverageScore       int                              `json:"averageScore"`
	OrganTypeBreakdown map[medical.OrganType]OrganCount `json:"organTypeBreakdown"`
}

// MatchingStats runs FindMatches for every active recipient. AverageScore is
// the mean over every match found, not a mean of per-recipient means.
// OrganTypeBreakdown has an entry for every organ type seen in either list,
// counting only active records.
func (f *Finder) MatchingStats(donors []medical.Donor, recipients []medical.Recipient) Stats {
	stats := Stats{OrganTypeBreakdown: make(map[medical.OrganType]OrganCount)}

	for _, d := range donors {
		c := stats.OrganTypeBreakdown[d.MedicalInfo.OrganType]
		if d.IsActive {
			c.Donors++
			stats.TotalDonors++
		}
		stats.OrganTypeBreakdown[d.MedicalInfo.OrganType] = c
	}
	for _, r := range recipients {
		c := stats.OrganTypeBreakdown[r.MedicalInfo.OrganType]
		if r.IsActive {
			c.Recipients++
			stats.TotalRecipients++
		}
		stats.OrganTypeBreakdown[r.MedicalInfo.OrganType] = c
	}

	total := 0
	for _, r := range recipients {
		if !r.IsActive {
			continue
		}
		for _, m := range f.FindMatches(r, donors) {
			stats.CompatiblePairs++
			total += m.Score.TotalScore
		}
	}
	if stats.CompatiblePairs > 0 {
		stats.AverageScore = round(float64(total) / float64(stats.CompatiblePairs))
	}
	return stats
}
