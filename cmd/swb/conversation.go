package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchboard/internal/conversation"
	"github.com/zulandar/switchboard/internal/models"
	"github.com/zulandar/switchboard/internal/query"
	"github.com/zulandar/switchboard/internal/router"
	"gorm.io/gorm"
)

func newConversationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversation",
		Aliases: []string{"conv"},
		Short:   "Conversation routing commands",
	}

	cmd.AddCommand(newConvCreateCmd())
	cmd.AddCommand(newConvListCmd())
	cmd.AddCommand(newConvShowCmd())
	cmd.AddCommand(newConvAssignCmd())
	cmd.AddCommand(newConvEscalateCmd())
	cmd.AddCommand(newConvResolveCmd())
	cmd.AddCommand(newConvReopenCmd())
	cmd.AddCommand(newConvCloseCmd())
	cmd.AddCommand(newConvPriorityCmd())
	cmd.AddCommand(newConvTagCmd())
	cmd.AddCommand(newConvMessageCmd())
	return cmd
}

func newConvCreateCmd() *cobra.Command {
	var (
		configPath string
		org        string
		subject    string
		priority   string
		skills     []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a new conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvCreate(cmd, configPath, conversation.CreateOpts{
				OrgID:          org,
				Subject:        subject,
				Priority:       priority,
				RequiredSkills: skills,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchboard config file")
	cmd.Flags().StringVar(&org, "org", "", "organization ID (required)")
	cmd.Flags().StringVar(&subject, "subject", "", "conversation subject")
	cmd.Flags().StringVar(&priority, "priority", "", "priority (urgent, high, normal, low)")
	cmd.Flags().StringSliceVar(&skills, "skill", nil, "required skill tag (repeatable)")
	cmd.MarkFlagRequired("org")
	return cmd
}

func runConvCreate(cmd *cobra.Command, configPath string, opts conversation.CreateOpts) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	conv, err := conversation.Create(gormDB, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created conversation %s (%s, %s)\n", conv.ID, conv.Status, conv.Priority)
	if skills := conv.RequiredSkillTags(); len(skills) > 0 {
		fmt.Fprintf(out, "Required skills: %s\n", strings.Join(skills, ", "))
	}
	return nil
}

func newConvListCmd() *cobra.Command {
	var (
		configPath string
		org        string
		status     string
		priority   string
		agentID    string
		tag        string
		search     string
		sortField  string
		desc       bool
		limit      int
		offset     int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List conversations",
		Long:  "Lists conversations with optional filters, sorted by most recent activity unless --sort is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := query.Filters{
				OrgID:           org,
				Status:          status,
				Priority:        priority,
				AssignedAgentID: agentID,
				Tag:             tag,
				Search:          search,
			}
			s := query.Sort{Field: sortField, Desc: desc}
			p := query.Page{Offset: offset, Limit: limit}
			return runConvList(cmd, configPath, f, s, p)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchboard config file")
	cmd.Flags().StringVar(&org, "org", "", "filter by organization")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&priority, "priority", "", "filter by priority")
	cmd.Flags().StringVar(&agentID, "agent", "", "filter by assigned agent")
	cmd.Flags().StringVar(&tag, "tag", "", "filter by tag")
	cmd.Flags().StringVar(&search, "search", "", "substring match on subject")
	cmd.Flags().StringVar(&sortField, "sort", "", "sort field (created_at, last_activity, priority)")
	cmd.Flags().BoolVar(&desc, "desc", false, "sort descending")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "page offset")
	return cmd
}

func runConvList(cmd *cobra.Command, configPath string, f query.Filters, s query.Sort, p query.Page) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	result, err := query.ListConversations(gormDB, f, s, p)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(result.Conversations) == 0 {
		fmt.Fprintln(out, "No conversations found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSUBJECT\tSTATUS\tPRIORITY\tAGENT\tORG\tLAST ACTIVITY")
	for _, c := range result.Conversations {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			c.ID, truncate(c.Subject, 32), c.Status, c.Priority,
			dash(c.AgentID), c.OrgID, c.LastActivityAt.Format(time.RFC3339))
	}
	w.Flush()
	fmt.Fprintf(out, "Showing %d of %d conversations\n", len(result.Conversations), result.Total)
	return nil
}

func newConvShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <conversation-id>",
		Short: "Show conversation details and transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvShow(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchboard config file")
	return cmd
}

func runConvShow(cmd *cobra.Command, configPath, id string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	conv, err := conversation.Get(gormDB, id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Conversation:  %s\n", conv.ID)
	fmt.Fprintf(out, "Organization:  %s\n", conv.OrgID)
	fmt.Fprintf(out, "Subject:       %s\n", conv.Subject)
	fmt.Fprintf(out, "Status:        %s\n", conv.Status)
	fmt.Fprintf(out, "Priority:      %s\n", conv.Priority)
	fmt.Fprintf(out, "Agent:         %s\n", dash(conv.AgentID))
	fmt.Fprintf(out, "Skills:        %s\n", joinTags(conv.RequiredSkillTags()))
	fmt.Fprintf(out, "Tags:          %s\n", joinTags(conv.TagList()))
	if conv.EscalationReason != "" {
		fmt.Fprintf(out, "Escalation:    %s\n", conv.EscalationReason)
	}
	fmt.Fprintf(out, "Created:       %s\n", conv.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "Last activity: %s\n", conv.LastActivityAt.Format(time.RFC3339))
	if conv.ResolvedAt != nil {
		fmt.Fprintf(out, "Resolved:      %s\n", conv.ResolvedAt.Format(time.RFC3339))
	}
	if conv.ClosedAt != nil {
		fmt.Fprintf(out, "Closed:        %s\n", conv.ClosedAt.Format(time.RFC3339))
	}

	var messages []models.Message
	if err := gormDB.Where("conversation_id = ?", id).Order("created_at, id").Find(&messages).Error; err != nil {
		return fmt.Errorf("load transcript: %w", err)
	}
	if len(messages) > 0 {
		fmt.Fprintf(out, "\nTranscript (%d messages):\n", len(messages))
		for _, m := range messages {
			fmt.Fprintf(out, "  [%s] %s: %s\n",
				m.CreatedAt.Format("15:04:05"), m.Sender, truncate(m.Body, 80))
		}
	}
	return nil
}

func newConvAssignCmd() *cobra.Command {
	var (
		configPath string
		agentID    string
		force      bool
		transfer   bool
		reason     string
	)

	cmd := &cobra.Command{
		Use:   "assign <conversation-id>",
		Short: "Assign a conversation to an agent",
		Long: "Routes a conversation to the best-scoring eligible agent, or to the agent\n" +
			"given with --agent. --transfer moves an already-assigned conversation and\n" +
			"requires both --agent and --reason; --force bypasses the capacity check.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvAssign(cmd, configPath, router.AssignOpts{
				ConversationID: args[0],
				AgentID:        agentID,
				Force:          force,
				Transfer:       transfer,
				Reason:         reason,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchboard config file")
	cmd.Flags().StringVar(&agentID, "agent", "", "assign to this agent instead of auto-routing")
	cmd.Flags().BoolVar(&force, "force", false, "bypass the capacity check (manual assignment only)")
	cmd.Flags().BoolVar(&transfer, "transfer", false, "re-assign an already-assigned conversation")
	cmd.Flags().StringVar(&reason, "reason", "", "transfer reason (required with --transfer)")
	return cmd
}

func runConvAssign(cmd *cobra.Command, configPath string, opts router.AssignOpts) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	opts.ActorID = cfg.Operator

	out := cmd.OutOrStdout()
	decision, err := router.Assign(gormDB, opts)
	if err != nil {
		if errors.Is(err, router.ErrNoEligibleAgent) && decision != nil {
			fmt.Fprintf(out, "No eligible agent for %s (%s)\n", opts.ConversationID, decision.Reason)
		}
		return err
	}

	fmt.Fprintf(out, "Assigned %s to %s\n", decision.ConversationID, *decision.AgentID)
	fmt.Fprintf(out, "Reason: %s, score: %.3f\n", decision.Reason, decision.Score)
	if decision.Forced {
		fmt.Fprintln(out, "WARNING: capacity check bypassed (--force)")
	}
	return nil
}

func newConvEscalateCmd() *cobra.Command {
	var (
		configPath string
		reason     string
	)

	cmd := &cobra.Command{
		Use:   "escalate <conversation-id>",
		Short: "Escalate an assigned conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := router.Escalate(gormDB, args[0], reason, cfg.Operator); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Escalated %s: %s\n", args[0], reason)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchboard config file")
	cmd.Flags().StringVar(&reason, "reason", "", "escalation reason (required)")
	cmd.MarkFlagRequired("reason")
	return cmd
}

func newConvResolveCmd() *cobra.Command {
	return newTransitionCmd("resolve", "Mark a conversation resolved", "Resolved", router.Resolve)
}

func newConvReopenCmd() *cobra.Command {
	return newTransitionCmd("reopen", "Reopen a resolved conversation", "Reopened", router.Reopen)
}

func newConvCloseCmd() *cobra.Command {
	return newTransitionCmd("close", "Close a conversation and release agent capacity", "Closed", router.Close)
}

func newConvPriorityCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "set-priority <conversation-id> <urgent|high|normal|low>",
		Short: "Change a conversation's priority",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := router.SetPriority(gormDB, args[0], args[1], cfg.Operator); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Priority of %s set to %s\n", args[0], args[1])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchboard config file")
	return cmd
}

func newConvTagCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "tag <conversation-id> <tag>",
		Short: "Add a tag to a conversation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := router.AddTag(gormDB, args[0], args[1], cfg.Operator); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tagged %s with %s\n", args[0], args[1])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchboard config file")
	return cmd
}

func newConvMessageCmd() *cobra.Command {
	var (
		configPath string
		sender     string
		senderID   string
	)

	cmd := &cobra.Command{
		Use:   "message <conversation-id> <body>",
		Short: "Append a message to a conversation transcript",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if _, err := conversation.AddMessage(gormDB, args[0], sender, senderID, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Message added to %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchboard config file")
	cmd.Flags().StringVar(&sender, "sender", models.SenderAgent, "sender kind (customer, agent, bot)")
	cmd.Flags().StringVar(&senderID, "sender-id", "", "sender identifier")
	return cmd
}

// newTransitionCmd builds the resolve/reopen/close commands, which share
// their shape.
func newTransitionCmd(use, short, past string, fn func(db *gorm.DB, id, actor string) error) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   use + " <conversation-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := fn(gormDB, args[0], cfg.Operator); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", past, args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchboard config file")
	return cmd
}
