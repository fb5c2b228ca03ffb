package main

import (
	"log"

	"github.com/spf13/cobra"
)

var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Print the stored chain",
	Example: `  dharohar chain
  dharohar chain --output json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg, log.Default())
		if err != nil {
			return err
		}
		defer store.Close()

		l, err := openLedger(cfg, store, quietLogger())
		if err != nil {
			return err
		}
		if output == outputJSON {
			return printJSON(l.Chain())
		}
		return renderTable(chainTableData(l.Chain()))
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print ledger statistics from the stored chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg, log.Default())
		if err != nil {
			return err
		}
		defer store.Close()

		l, err := openLedger(cfg, store, quietLogger())
		if err != nil {
			return err
		}
		if output == outputJSON {
			return printJSON(l.Stats())
		}
		return renderTable(statsTableData(l.Stats()))
	},
}

func init() {
	rootCmd.AddCommand(chainCmd)
	rootCmd.AddCommand(statsCmd)
	chainCmd.Flags().StringP("output", "o", outputTable, "Output format: table|json")
	statsCmd.Flags().StringP("output", "o", outputTable, "Output format: table|json")
}
