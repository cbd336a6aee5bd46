package main

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"rgehrsitz/expert/internal/admission"
	"rgehrsitz/expert/internal/preprocessor"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a rule set against the registered operators and actions",
	Long:  `Parses the rules file and reports the first rule that is malformed or references an unknown operator or action type.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(cmd)
	},
}

func init() {
	validateCmd.Flags().String("rules", "", "Rules file (.json, .yaml, .yml, .csv)")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command) error {
	if cfg.Rules == "" {
		return errors.New("--rules is required")
	}
	loadedRules, err := preprocessor.LoadRules(cfg.Rules)
	if err != nil {
		return err
	}
	ops, acts := admission.Registries()
	if err := preprocessor.ValidateRules(loadedRules, ops, acts); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	log.Info().Int("rules", len(loadedRules)).Msg("Rules are valid")
	fmt.Fprintf(cmd.OutOrStdout(), "%d rules are valid\n", len(loadedRules))
	return nil
}
