package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchboard/internal/bulk"
)

func newBulkCmd() *cobra.Command {
	var (
		configPath string
		ids        []string
		action     string
		agentID    string
		reason     string
		priority   string
		tag        string
		force      bool
		transfer   bool
	)

	cmd := &cobra.Command{
		Use:   "bulk",
		Short: "Apply one action to many conversations",
		Long: "Applies an action (assign, close, escalate, set_priority, add_tag) to a batch\n" +
			"of conversations. Each conversation succeeds or fails on its own; the most\n" +
			"urgent conversations are processed first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBulk(cmd, configPath, ids, bulk.Action{
				Kind:     action,
				AgentID:  agentID,
				Reason:   reason,
				Priority: priority,
				Tag:      tag,
				Force:    force,
				Transfer: transfer,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchboard config file")
	cmd.Flags().StringSliceVar(&ids, "id", nil, "conversation ID (repeatable, required)")
	cmd.Flags().StringVar(&action, "action", "", "action kind (required)")
	cmd.Flags().StringVar(&agentID, "agent", "", "assign: target agent (empty auto-routes)")
	cmd.Flags().StringVar(&reason, "reason", "", "escalate or transfer reason")
	cmd.Flags().StringVar(&priority, "priority", "", "set_priority: new priority")
	cmd.Flags().StringVar(&tag, "tag", "", "add_tag: tag to add")
	cmd.Flags().BoolVar(&force, "force", false, "assign: bypass the capacity check")
	cmd.Flags().BoolVar(&transfer, "transfer", false, "assign: re-assign already-assigned conversations")
	cmd.MarkFlagRequired("id")
	cmd.MarkFlagRequired("action")
	return cmd
}

func runBulk(cmd *cobra.Command, configPath string, ids []string, action bulk.Action) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	result, err := bulk.Apply(gormDB, bulk.Opts{
		ConversationIDs: ids,
		Action:          action,
		ActorID:         cfg.Operator,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CONVERSATION\tRESULT")
	for _, item := range result.Items {
		if item.Success {
			fmt.Fprintf(w, "%s\tok\n", item.ConversationID)
		} else {
			fmt.Fprintf(w, "%s\t%s\n", item.ConversationID, item.ErrorKind)
		}
	}
	w.Flush()
	fmt.Fprintf(out, "Attempted %d: %d succeeded, %d failed\n",
		result.Attempted, result.Succeeded, result.Failed)
	return nil
}
