package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/replyloop/replyloop/internal/clifmt"
	"github.com/replyloop/replyloop/pipeline"
)

func newDecideCmd() *cobra.Command {
	var req pipeline.DecisionRequest

	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Accept or decline a pending action",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()

			deps, err := depsFromViper(cmd.Context(), log)
			if err != nil {
				return err
			}

			resp, err := deps.Decide(cmd.Context(), req)
			if err != nil {
				return err
			}

			if resp.OK {
				label := clifmt.Success(resp.Decision)
				if resp.AlreadyApplied {
					label = clifmt.Warn("already applied")
				}
				fmt.Printf("%s  %s %s\n", label, resp.Action, resp.Detail)
			} else {
				fmt.Printf("%s  %s %s\n", clifmt.Key("error"), resp.Action, resp.Error)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}

	cmd.Flags().Uint64Var(&req.ActionID, "id", 0, "action record id")
	cmd.Flags().StringVar(&req.UserID, "user", "", "merchant user id (required)")
	cmd.Flags().StringVar(&req.WorkspaceID, "workspace", "", "workspace id")
	cmd.Flags().StringVar(&req.ThreadID, "thread", "", "conversation thread id")
	cmd.Flags().StringVar(&req.ProposalText, "proposal", "", "free-text proposal to locate the record by")
	cmd.Flags().StringVar(&req.Decision, "decision", "", "accepted or declined (required)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("decision")
	return cmd
}
