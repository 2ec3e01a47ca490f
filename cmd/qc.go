package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var qcProfile string

var qcCmd = &cobra.Command{
	Use:   "qc",
	Short: "Show the QC report attached to a profile's committed import",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		report, err := env.Query.GetQCReport(cmd.Context(), qcProfile)
		if err != nil {
			return err
		}

		fmt.Printf("total rows:     %d\n", report.TotalRows)
		fmt.Printf("malformed rows: %d\n", report.MalformedRows)
		fmt.Printf("duplicate rows: %d\n", report.DuplicateRows)
		fmt.Printf("no-calls:       %d\n", report.NoCalls)
		fmt.Printf("call rate:      %.2f%%\n", report.CallRate*100)
		fmt.Printf("x/y check:      %s (data-integrity signal, not a sex determination)\n", report.XYConsistency)
		return nil
	},
}

func init() {
	qcCmd.Flags().StringVar(&qcProfile, "profile", "", "profile id (required)")
	_ = qcCmd.MarkFlagRequired("profile")
	rootCmd.AddCommand(qcCmd)
}
