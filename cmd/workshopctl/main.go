// workshopctl is a small operator CLI over the sync engine: check the
// connection, run searches, compute financials and watch the change feed.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	engine "github.com/Mhmod1992/workshop-engine"
	"github.com/Mhmod1992/workshop-engine/internal/config"
	"github.com/Mhmod1992/workshop-engine/internal/model"
)

var (
	debug    bool
	email    string
	password string
)

func main() {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// NewRootCmd constructs the root CLI command; exposed for unit testing.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "workshopctl",
		Short: "Workshop sync-engine operator CLI",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
			log.Logger = log.Output(zerolog.ConsoleWriter{
				Out:        os.Stderr,
				TimeFormat: "2006-01-02 15:04:05",
				NoColor:    true,
			})
			if debug {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}
			// Optional .env for local development; absence is fine.
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				log.Debug().Err(err).Msg("no .env loaded")
			}
		},
	}
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&email, "email", os.Getenv("WORKSHOP_EMAIL"), "sign-in email")
	rootCmd.PersistentFlags().StringVar(&password, "password", os.Getenv("WORKSHOP_PASSWORD"), "sign-in password")

	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newSearchCmd())
	rootCmd.AddCommand(newFinancialsCmd())
	rootCmd.AddCommand(newTrendCmd())
	rootCmd.AddCommand(newWatchCmd())
	return rootCmd
}

// startEngine builds and starts an engine for one command invocation.
func startEngine(ctx context.Context) (*engine.Engine, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}
	cfg.DebugLogging = debug

	e, err := engine.New(cfg)
	if err != nil {
		return nil, err
	}
	if email != "" {
		if err := e.SignIn(ctx, email, password); err != nil {
			_ = e.Close()
			return nil, fmt.Errorf("sign-in: %w", err)
		}
		return e, nil
	}
	if err := e.Start(ctx, os.Getenv("WORKSHOP_ACCESS_TOKEN")); err != nil {
		_ = e.Close()
		return nil, err
	}
	return e, nil
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show lifecycle phase, connection state and cache counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := startEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			fmt.Printf("phase:      %s\n", e.Phase())
			fmt.Printf("connection: %s\n", e.ConnectionState())
			if sess, ok := e.Session(); ok {
				fmt.Printf("user:       %s\n", sess.UserID)
			}
			fmt.Printf("requests:   %d\n", len(e.Requests()))
			fmt.Printf("clients:    %d\n", len(e.Clients()))
			fmt.Printf("cars:       %d\n", len(e.Cars()))
			return nil
		},
	}
}

func newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Run a free-text or numeric search across requests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := startEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			if err := e.SearchByFreeText(cmd.Context(), args[0]); err != nil {
				return err
			}
			results := e.SearchResults()
			if len(results) == 0 {
				fmt.Println("no matches")
				return nil
			}
			for _, r := range results {
				fmt.Printf("%s  %-10s %8.2f  %s\n", r.ID, r.Status, r.Price, r.CreatedAt.Format("2006-01-02"))
			}
			return nil
		},
	}
}

func newFinancialsCmd() *cobra.Command {
	var days int
	var completedOnly bool
	cmd := &cobra.Command{
		Use:   "financials",
		Short: "Compute a financial snapshot for the trailing period",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := startEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			end := time.Now()
			start := end.AddDate(0, 0, -days)
			snap, err := e.ComputeFinancials(cmd.Context(), start, end, completedOnly)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "number of trailing days")
	cmd.Flags().BoolVar(&completedOnly, "completed-only", true, "only count completed requests")
	return cmd
}

func newTrendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trend",
		Short: "Forecast the next week's revenue from the trailing 30 days",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := startEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			fc, err := e.RevenueTrend(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("trend: %s (slope %.2f)\n", fc.Trend, fc.Slope)
			for i, v := range fc.Next {
				fmt.Printf("  day +%d: %.2f\n", i+1, v)
			}
			return nil
		},
	}
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stay connected and print incoming requests until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.New()
			if err != nil {
				return err
			}
			cfg.DebugLogging = debug

			e, err := engine.New(cfg, engine.WithHooks(engine.Hooks{
				IncomingRequest: func(r model.Request) {
					fmt.Printf("incoming request %s (%.2f, %s)\n", r.ID, r.Price, r.PaymentMethod)
				},
			}))
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			if email != "" {
				err = e.SignIn(ctx, email, password)
			} else {
				err = e.Start(ctx, os.Getenv("WORKSHOP_ACCESS_TOKEN"))
			}
			if err != nil {
				return err
			}

			fmt.Println("watching; press Ctrl-C to stop")
			ticker := time.NewTicker(10 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					fmt.Printf("connection: %s, requests cached: %d\n",
						e.ConnectionState(), len(e.Requests()))
				}
			}
		},
	}
}
