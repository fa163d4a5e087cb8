package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchboard/internal/agent"
)

func newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Agent management commands",
	}

	cmd.AddCommand(newAgentCreateCmd())
	cmd.AddCommand(newAgentListCmd())
	cmd.AddCommand(newAgentStatusCmd())
	return cmd
}

func newAgentCreateCmd() *cobra.Command {
	var (
		configPath string
		org        string
		name       string
		skills     []string
		maxChats   int
		rating     float64
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a new agent",
		Long:  "Registers an agent in an organization. New agents start offline.",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := agent.CreateOpts{
				OrgID:              org,
				Name:               name,
				Skills:             skills,
				MaxConcurrentChats: maxChats,
			}
			if cmd.Flags().Changed("rating") {
				opts.Rating = &rating
			}
			return runAgentCreate(cmd, configPath, opts)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchboard config file")
	cmd.Flags().StringVar(&org, "org", "", "organization ID (required)")
	cmd.Flags().StringVar(&name, "name", "", "agent display name (required)")
	cmd.Flags().StringSliceVar(&skills, "skill", nil, "skill tag (repeatable)")
	cmd.Flags().IntVar(&maxChats, "max-chats", 3, "max concurrent conversations")
	cmd.Flags().Float64Var(&rating, "rating", 0, "performance rating in [0,5]")
	cmd.MarkFlagRequired("org")
	cmd.MarkFlagRequired("name")
	return cmd
}

func runAgentCreate(cmd *cobra.Command, configPath string, opts agent.CreateOpts) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	a, err := agent.Create(gormDB, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created agent %s (%s)\n", a.ID, a.Name)
	fmt.Fprintf(out, "Capacity: %d concurrent chats, availability: %s\n", a.MaxConcurrentChats, a.Availability)
	if skills := a.SkillTags(); len(skills) > 0 {
		fmt.Fprintf(out, "Skills: %s\n", strings.Join(skills, ", "))
	}
	return nil
}

func newAgentListCmd() *cobra.Command {
	var (
		configPath   string
		org          string
		availability string
		skill        string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgentList(cmd, configPath, agent.ListFilters{
				OrgID:        org,
				Availability: availability,
				Skill:        skill,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchboard config file")
	cmd.Flags().StringVar(&org, "org", "", "filter by organization")
	cmd.Flags().StringVar(&availability, "availability", "", "filter by availability (online, away, offline)")
	cmd.Flags().StringVar(&skill, "skill", "", "filter by skill tag")
	return cmd
}

func runAgentList(cmd *cobra.Command, configPath string, filters agent.ListFilters) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	agents, err := agent.List(gormDB, filters)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(agents) == 0 {
		fmt.Fprintln(out, "No agents found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tORG\tAVAILABILITY\tLOAD\tSKILLS")
	for _, a := range agents {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%s\n",
			a.ID, truncate(a.Name, 24), a.OrgID, a.Availability,
			a.CurrentActiveChats, a.MaxConcurrentChats, joinTags(a.SkillTags()))
	}
	w.Flush()
	return nil
}

func newAgentStatusCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "set-status <agent-id> <online|away|offline>",
		Short: "Change an agent's availability",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgentStatus(cmd, configPath, args[0], args[1])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchboard config file")
	return cmd
}

func runAgentStatus(cmd *cobra.Command, configPath, agentID, availability string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	if err := agent.SetAvailability(gormDB, agentID, availability); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Agent %s is now %s\n", agentID, availability)
	return nil
}
