package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gamewatch/internal/app"
	logx "gamewatch/pkg/logx"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := rootOptions{configPath: "./config.json", logLevel: "WARN"}

	root := &cobra.Command{
		Use:           "gamewatch",
		Short:         "Watch a game catalog and announce new entries on Telegram",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBot(cmd.Context(), opts.configPath)
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", opts.configPath, "path to config json or yaml")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", opts.logLevel, "console log level for offline subcommands")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the bot (default)",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runBot(cmd.Context(), opts.configPath)
			},
		},
		newCheckCmd(&opts),
		newStatusCmd(&opts),
		newResetCmd(&opts),
	)
	return root
}

func runBot(parent context.Context, cfgPath string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	a, err := app.NewApp(ctx, cfgPath)
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.Stop(stopCtx, app.StopFatalError)
		stopCancel()
		return fmt.Errorf("start: %w", err)
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)

	reason := app.StopAppStop
	select {
	case sig := <-signals:
		reason = app.ReasonFromSignal(sig)
	case <-a.Done():
		reason = app.StopFatalError
	case <-ctx.Done():
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer stopCancel()
	_ = a.Stop(stopCtx, reason)
	if reason == app.StopFatalError {
		if err := a.Err(); err != nil {
			return err
		}
	}
	return nil
}

func openLocal(cmd *cobra.Command, opts *rootOptions) (*app.Local, error) {
	return app.OpenLocal(cmd.Context(), opts.configPath, logx.NewConsole(opts.logLevel))
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run one check and print new entries (no Telegram)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, err := openLocal(cmd, opts)
			if err != nil {
				return err
			}
			defer func() { _ = l.Close() }()

			res, err := l.Check(cmd.Context(), dryRun)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res.Empty {
				fmt.Fprintln(out, "catalog is empty; known set unchanged")
				return nil
			}
			for _, e := range res.New {
				name := e.Entry.OfficialName
				if name == "" {
					name = e.ID
				}
				fmt.Fprintf(out, "%s\t%s\n", e.ID, name)
			}
			fmt.Fprintf(out, "%d new, %d fetched, %d known\n", len(res.New), res.Fetched, res.Known)
			if res.SaveErr != nil {
				return fmt.Errorf("save state: %w", res.SaveErr)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "do not update the known set")
	return cmd
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the persisted known set size",
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, err := openLocal(cmd, opts)
			if err != nil {
				return err
			}
			defer func() { _ = l.Close() }()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "known: %d\n", l.Tracker.Count())
			fmt.Fprintf(out, "persisted: %t\n", l.Tracker.Persisted(cmd.Context()))
			fmt.Fprintf(out, "catalog: %s\n", l.Fetcher.URL())
			return nil
		},
	}
}

func newResetCmd(opts *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Forget every known entry; the next check announces the whole catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to reset without --yes")
			}
			l, err := openLocal(cmd, opts)
			if err != nil {
				return err
			}
			defer func() { _ = l.Close() }()

			if err := l.Tracker.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "known set cleared")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}
