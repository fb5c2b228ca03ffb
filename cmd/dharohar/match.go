package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"dharohar/core/matching"
	"dharohar/types/medical"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Rank donors for a recipient offline",
	Long: "Scores donors against a recipient without touching the ledger. " +
		"Without --recipient and --donors the built-in demo records are used.",
	Example: `  dharohar match
  dharohar match --recipient recipient.json --donors donors.json
  dharohar match --recipient-id recipient_003 --output json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		recipientPath, _ := cmd.Flags().GetString("recipient")
		recipientID, _ := cmd.Flags().GetString("recipient-id")
		donorsPath, _ := cmd.Flags().GetString("donors")
		withStats, _ := cmd.Flags().GetBool("stats")

		donors, recipients := medical.DemoRecords()
		if donorsPath != "" {
			if err := readJSONFile(donorsPath, &donors); err != nil {
				return err
			}
		}
		var recipient medical.Recipient
		if recipientPath != "" {
			if err := readJSONFile(recipientPath, &recipient); err != nil {
				return err
			}
			recipients = []medical.Recipient{recipient}
		} else {
			r, err := pickRecipient(recipients, recipientID)
			if err != nil {
				return err
			}
			recipient = r
		}

		finder := matching.NewFinder(nil)
		matches := finder.FindMatches(recipient, donors)
		if output == outputJSON {
			return printJSON(matches)
		}

		pterm.DefaultSection.Printfln("Matches for %s (%s, %s)", recipient.ID, recipient.MedicalInfo.BloodType, recipient.MedicalInfo.OrganType)
		if len(matches) == 0 {
			pterm.Warning.Println("No compatible donors")
		} else if err := renderTable(matchTableData(matches)); err != nil {
			return err
		}
		if withStats {
			pterm.DefaultSection.Println("Matching statistics")
			return renderTable(matchingStatsTableData(finder.MatchingStats(donors, recipients)))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)
	matchCmd.Flags().String("recipient", "", "JSON file with one recipient record")
	matchCmd.Flags().String("recipient-id", "", "demo recipient id (when --recipient is not given)")
	matchCmd.Flags().String("donors", "", "JSON file with an array of donor records")
	matchCmd.Flags().Bool("stats", false, "also print matching statistics")
	matchCmd.Flags().StringP("output", "o", outputTable, "Output format: table|json")
}

func readJSONFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// pickRecipient returns the recipient with id, or the first one when id is empty.
func pickRecipient(recipients []medical.Recipient, id string) (medical.Recipient, error) {
	if len(recipients) == 0 {
		return medical.Recipient{}, fmt.Errorf("no recipients available")
	}
	if id == "" {
		return recipients[0], nil
	}
	for _, r := range recipients {
		if r.ID == id {
			return r, nil
		}
	}
	return medical.Recipient{}, fmt.Errorf("recipient %q not found", id)
}
