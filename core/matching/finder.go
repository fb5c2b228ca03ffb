package matching

import (
	"runtime"
	"sort"
	"sync"

	"dharohar/types/medical"
)

// DonorMatch is one ranked candidate for a recipient.
type DonorMatch struct {
	Donor        medical.Donor `json:"donor"`
	Score        MatchScore    `json:"score"`
	IsCompatible bool          `json:"isCompatible"`
}

// Finder ranks donors for recipients.
type Finder struct {
	Scorer  *Scorer
	Workers int // concurrent scorers; <= 0 means GOMAXPROCS
}

// NewFinder returns a Finder using scorer (NewScorer() when nil).
func NewFinder(scorer *Scorer) *Finder {
	if scorer == nil {
		scorer = NewScorer()
	}
	return &Finder{Scorer: scorer}
}

// FindMatches returns the active donors of the recipient's organ type whose
// total score is above zero, best first. Ties keep input order.
func (f *Finder) FindMatches(recipient medical.Recipient, donors []medical.Donor) []DonorMatch {
	candidates := Candidates(recipient, donors)
	scores := f.scoreAll(recipient, candidates)

	matches := make([]DonorMatch, 0, len(candidates))
	for i, d := range candidates {
		if scores[i].TotalScore > 0 {
			matches = append(matches, DonorMatch{Donor: d, Score: scores[i], IsCompatible: true})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score.TotalScore > matches[j].Score.TotalScore
	})
	return matches
}

// Candidates returns the active donors offering the recipient's organ, in
// input order. Only these are scored.
func Candidates(recipient medical.Recipient, donors []medical.Donor) []medical.Donor {
	out := make([]medical.Donor, 0, len(donors))
	for _, d := range donors {
		if d.IsActive && d.MedicalInfo.OrganType == recipient.MedicalInfo.OrganType {
			out = append(out, d)
		}
	}
	return out
}

// scoreAll scores candidates on a bounded worker pool. Results are indexed
// like candidates so ordering does not depend on scheduling.
func (f *Finder) scoreAll(recipient medical.Recipient, candidates []medical.Donor) []MatchScore {
	scores := make([]MatchScore, len(candidates))
	workers := f.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(candidates) {
		workers = len(candidates)
	}
	if workers <= 1 {
		for i, d := range candidates {
			scores[i] = f.Scorer.Score(d, recipient)
		}
		return scores
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				scores[i] = f.Scorer.Score(candidates[i], recipient)
			}
		}()
	}
	for i := range candidates {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return scores
}
