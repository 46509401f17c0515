package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/replyloop/replyloop/internal/clifmt"
	"github.com/replyloop/replyloop/pipeline"
	"github.com/replyloop/replyloop/policy"
)

func newDispatchCmd() *cobra.Command {
	var (
		triggerPath string
		policyPath  string
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Run one action batch from a trigger JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()

			raw, err := os.ReadFile(triggerPath)
			if err != nil {
				return fmt.Errorf("read trigger file: %w", err)
			}
			var t pipeline.Trigger
			if err := json.Unmarshal(raw, &t); err != nil {
				return fmt.Errorf("parse trigger file: %w", err)
			}

			// A policy file on the command line overrides whatever the
			// trigger carried.
			if strings.TrimSpace(policyPath) != "" {
				auto, err := policy.LoadFile(policyPath)
				if err != nil {
					return fmt.Errorf("load policy file: %w", err)
				}
				t.Automation = auto
			}

			deps, err := depsFromViper(cmd.Context(), log)
			if err != nil {
				return err
			}

			results := deps.Run(cmd.Context(), t)

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}

			fmt.Println(clifmt.Headerf("Dispatch results (%d actions)", len(results)))
			for _, r := range results {
				line := fmt.Sprintf("%-32s %s", r.Type, r.Detail)
				switch r.Status {
				case pipeline.StatusSuccess:
					fmt.Println("  " + clifmt.Success("applied") + "  " + line)
				case pipeline.StatusPendingApproval:
					fmt.Println("  " + clifmt.Warn("pending") + "  " + line)
				default:
					fmt.Println("  " + clifmt.Key("error") + "    " + line + " " + clifmt.Dim(r.Error))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&triggerPath, "trigger", "", "path to trigger JSON file (required)")
	cmd.Flags().StringVar(&policyPath, "policy", "", "path to automation policy YAML (overrides trigger)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON results")
	_ = cmd.MarkFlagRequired("trigger")
	return cmd
}
