package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchboard/internal/api"
	"github.com/zulandar/switchboard/internal/authz"
	"github.com/zulandar/switchboard/internal/config"
	"github.com/zulandar/switchboard/internal/events"
	"github.com/zulandar/switchboard/internal/notify"
	"github.com/zulandar/switchboard/internal/sweeper"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
		noSweep    bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Switchboard API server",
		Long: "Launches the HTTP API, the resolved-conversation sweeper, and, when\n" +
			"configured, event publication and chat notifications.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port, noSweep)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchboard config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides config)")
	cmd.Flags().BoolVar(&noSweep, "no-sweep", false, "disable the resolved-conversation sweeper")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int, noSweep bool) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if port <= 0 {
		port = cfg.Server.Port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	pub := buildPublisher(cfg)
	if pub != nil {
		defer pub.Close()
	}
	notifier := buildNotifier(cfg)

	if !noSweep {
		sw := sweeper.New(gormDB, cfg.Sweep.GraceDuration(), pub)
		go func() {
			if err := sw.Run(ctx, cfg.Sweep.Schedule); err != nil {
				log.Printf("serve: sweeper stopped: %v", err)
			}
		}()
	}

	return api.Start(ctx, api.StartOpts{
		DB:         gormDB,
		Port:       port,
		Authorizer: authz.NewMemberships(gormDB),
		Events:     pub,
		Notifier:   notifier,
		Out:        cmd.OutOrStdout(),
	})
}

// buildPublisher connects the event publisher when events are configured.
// A broker outage at startup downgrades to no publishing rather than
// refusing to serve.
func buildPublisher(cfg *config.Config) events.Publisher {
	if cfg.Events.URL == "" {
		return nil
	}
	pub, err := events.New(cfg.Events.URL, cfg.Events.Exchange)
	if err != nil {
		log.Printf("serve: event publisher unavailable: %v", err)
		return nil
	}
	return pub
}

// buildNotifier assembles the configured chat notifiers.
func buildNotifier(cfg *config.Config) notify.Notifier {
	var notifiers []notify.Notifier

	if cfg.Notify.Slack.Token != "" {
		s, err := notify.NewSlack(notify.SlackOpts{
			Token:     cfg.Notify.Slack.Token,
			ChannelID: cfg.Notify.Slack.ChannelID,
		})
		if err != nil {
			log.Printf("serve: slack notifier disabled: %v", err)
		} else {
			notifiers = append(notifiers, s)
		}
	}
	if cfg.Notify.Discord.Token != "" {
		d, err := notify.NewDiscord(notify.DiscordOpts{
			Token:     cfg.Notify.Discord.Token,
			ChannelID: cfg.Notify.Discord.ChannelID,
		})
		if err != nil {
			log.Printf("serve: discord notifier disabled: %v", err)
		} else {
			notifiers = append(notifiers, d)
		}
	}

	if len(notifiers) == 0 {
		return nil
	}
	return notify.NewMulti(notifiers...)
}
