package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"rgehrsitz/expert/internal/admission"
	"rgehrsitz/expert/internal/preprocessor"
	"rgehrsitz/expert/internal/runtime"
	"rgehrsitz/expert/internal/schema"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate fact records against a rule set",
	Long:  `Loads the rules and every record of the data file, runs one evaluation pass per record and prints one JSON report per record.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEvaluate(cmd)
	},
}

func init() {
	evaluateCmd.Flags().String("rules", "", "Rules file (.json, .yaml, .yml, .csv)")
	evaluateCmd.Flags().String("schema", "", "Fact schema file (.json, .yaml, .yml)")
	evaluateCmd.Flags().String("data", "", "Data file (.json, .yaml, .yml, .csv)")
	evaluateCmd.Flags().Bool("pretty", false, "Indent JSON output")
	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command) error {
	if cfg.Rules == "" || cfg.Data == "" {
		return errors.New("both --rules and --data are required")
	}

	var factSchema *schema.Schema
	if cfg.Schema != "" {
		loaded, err := schema.LoadSchema(cfg.Schema)
		if err != nil {
			return err
		}
		factSchema = loaded
	}

	loadedRules, err := preprocessor.LoadRules(cfg.Rules)
	if err != nil {
		return err
	}
	records, err := schema.LoadBatch(cfg.Data, factSchema)
	if err != nil {
		return err
	}

	ops, acts := admission.Registries()
	engine := runtime.New(ops, acts, runtime.WithResults(admission.NewResults), runtime.WithRecorder(collector))
	if err := preprocessor.ValidateRules(loadedRules, ops, acts); err != nil {
		return fmt.Errorf("rule validation failed: %w", err)
	}
	if err := engine.AddRules(loadedRules...); err != nil {
		return err
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	if cfg.Pretty {
		encoder.SetIndent("", "  ")
	}
	for i, record := range records {
		engine.Reset()
		engine.Facts().Update(record)
		if err := engine.Run(cmd.Context()); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		if err := encoder.Encode(engine.Report()); err != nil {
			return err
		}
	}
	log.Info().Int("records", len(records)).Int("rules", len(loadedRules)).Msg("Evaluation completed successfully.")
	return nil
}
