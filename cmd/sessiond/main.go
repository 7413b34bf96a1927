package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/modvault/session-security/internal/app"
	"github.com/modvault/session-security/internal/tools/loadgen"
	"github.com/modvault/session-security/internal/tools/secwatch"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessiond",
		Short: "Session security service for the marketplace backend",
	}
	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newSweepCommand())
	cmd.AddCommand(newLoadgenCommand())
	cmd.AddCommand(newSecwatchCommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the periodic session sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a, err := app.Bootstrap(ctx)
			if err != nil {
				return err
			}
			return a.Run(ctx)
		},
	}
}

func newSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire stale sessions once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			sweeper, _, err := app.BootstrapSweeper(ctx)
			if err != nil {
				return err
			}
			expired, err := sweeper.RunOnce()
			if err != nil {
				return err
			}
			fmt.Printf("expired %d stale sessions\n", expired)
			return nil
		},
	}
}

func newLoadgenCommand() *cobra.Command {
	cfg := loadgen.Config{}
	cmd := &cobra.Command{
		Use:   "loadgen",
		Short: "Generate synthetic login traffic against a running instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			res, err := loadgen.Run(ctx, cfg)
			if err != nil {
				return err
			}
			fmt.Printf("total=%d failures=%d locked=%d rate_limited=%d\n",
				res.TotalRequests, res.Failures, res.Locked, res.RateLimited)
			return nil
		},
	}
	cmd.Flags().StringVar(&cfg.BaseURL, "base-url", "http://localhost:8080", "API base URL")
	cmd.Flags().StringVar(&cfg.Email, "email", "loadgen@example.com", "account email to log in with")
	cmd.Flags().StringVar(&cfg.Password, "password", "loadgen-password", "account password")
	cmd.Flags().DurationVar(&cfg.Duration, "duration", 10*time.Second, "how long to run")
	cmd.Flags().IntVar(&cfg.RPS, "rps", 10, "target requests per second")
	cmd.Flags().IntVar(&cfg.Concurrency, "concurrency", 4, "concurrent workers")
	cmd.Flags().Float64Var(&cfg.FailureRate, "failure-rate", 0.3, "fraction of attempts with a wrong password")
	cmd.Flags().Int64Var(&cfg.Seed, "seed", 42, "random seed")
	return cmd
}

func newSecwatchCommand() *cobra.Command {
	opts := secwatch.Options{}
	cmd := &cobra.Command{
		Use:   "secwatch",
		Short: "Watch recent suspicious login activity in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Token == "" {
				opts.Token = os.Getenv("SESSIOND_ADMIN_TOKEN")
			}
			if opts.Token == "" {
				return fmt.Errorf("an admin token is required (--token or SESSIOND_ADMIN_TOKEN)")
			}
			return secwatch.Run(opts)
		},
	}
	cmd.Flags().StringVar(&opts.BaseURL, "base-url", "http://localhost:8080", "API base URL")
	cmd.Flags().StringVar(&opts.Token, "token", "", "admin bearer token")
	cmd.Flags().DurationVar(&opts.Window, "window", 24*time.Hour, "suspicious activity lookback window")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 15*time.Second, "refresh interval")
	return cmd
}
