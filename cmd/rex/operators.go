package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rgehrsitz/expert/internal/admission"
)

var operatorsCmd = &cobra.Command{
	Use:   "operators",
	Short: "List the condition operators and action types rules may use",
	Run: func(cmd *cobra.Command, args []string) {
		ops, acts := admission.Registries()
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Operators:")
		for _, name := range ops.Names() {
			fmt.Fprintf(out, "  %s\n", name)
		}
		fmt.Fprintln(out, "Actions:")
		for _, name := range acts.Names() {
			fmt.Fprintf(out, "  %s\n", name)
		}
	},
}

func init() {
	rootCmd.AddCommand(operatorsCmd)
}
