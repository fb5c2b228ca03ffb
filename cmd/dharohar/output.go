package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/pterm/pterm"

	"dharohar/core/block"
	"dharohar/core/ledger"
	"dharohar/core/matching"
	"dharohar/types/medical"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func short(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

func chainTableData(chain []block.Block) pterm.TableData {
	data := pterm.TableData{{"Index", "Mined", "Txs", "Nonce", "Hash", "Previous"}}
	for _, b := range chain {
		data = append(data, []string{
			fmt.Sprint(b.Index),
			b.CreatedAt.UTC().Format(block.TimeLayout),
			fmt.Sprint(len(b.Transactions)),
			fmt.Sprint(b.Nonce),
			short(b.Digest, 16),
			short(b.PreviousDigest, 16),
		})
	}
	return data
}

func statsTableData(s ledger.Stats) pterm.TableData {
	return pterm.TableData{
		{"Metric", "Value"},
		{"Total blocks", fmt.Sprint(s.TotalBlocks)},
		{"Total transactions", fmt.Sprint(s.TotalTransactions)},
		{"Pending transactions", fmt.Sprint(s.PendingTransactions)},
		{"Last block", s.LastBlockTime},
		{"Consensus", s.ConsensusAlgorithm},
		{"Difficulty", fmt.Sprint(s.Difficulty)},
	}
}

func matchTableData(matches []matching.DonorMatch) pterm.TableData {
	data := pterm.TableData{{"Rank", "Donor", "Blood", "Total", "ABO", "HLA", "Wait", "CPRA", "Geo", "Age"}}
	for i, m := range matches {
		b := m.Score.Breakdown
		data = append(data, []string{
			fmt.Sprint(i + 1),
			m.Donor.ID,
			string(m.Donor.MedicalInfo.BloodType),
			fmt.Sprint(m.Score.TotalScore),
			fmt.Sprint(b.BloodCompatibility),
			fmt.Sprint(b.HLAMatching),
			fmt.Sprint(b.WaitlistTime),
			fmt.Sprint(b.CPRAScore),
			fmt.Sprint(b.GeographicProximity),
			fmt.Sprint(b.AgeCompatibility),
		})
	}
	return data
}

func matchingStatsTableData(s matching.Stats) pterm.TableData {
	data := pterm.TableData{
		{"Metric", "Value"},
		{"Active donors", fmt.Sprint(s.TotalDonors)},
		{"Active recipients", fmt.Sprint(s.TotalRecipients)},
		{"Compatible pairs", fmt.Sprint(s.CompatiblePairs)},
		{"Average score", fmt.Sprint(s.AverageScore)},
	}
	organs := make([]string, 0, len(s.OrganTypeBreakdown))
	for organ := range s.OrganTypeBreakdown {
		organs = append(organs, string(organ))
	}
	sort.Strings(organs)
	for _, organ := range organs {
		c := s.OrganTypeBreakdown[medical.OrganType(organ)]
		data = append(data, []string{organ, fmt.Sprintf("%d donor(s) / %d recipient(s)", c.Donors, c.Recipients)})
	}
	return data
}

func renderTable(data pterm.TableData) error {
	return pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Render()
}
