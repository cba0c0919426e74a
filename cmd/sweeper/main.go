// Command sweeper runs one pass of a periodic sweep, for cron hosts that do
// not run the API's in-process scheduler.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	_ "time/tzdata"

	"franchise-dispatch-api/config"
	"franchise-dispatch-api/services"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var trigger string

	root := &cobra.Command{
		Use:           "sweeper",
		Short:         "Run dispatch sweeps once",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := godotenv.Load(); err != nil {
				log.Println("No .env file found, using environment variables")
			}
		},
	}
	root.PersistentFlags().StringVar(&trigger, "trigger", "cli", "trigger source label stored in sweep_runs")

	root.AddCommand(
		sweepCmd("transfer", "Dispatch due scheduled redeliveries", services.TransferSweepName, &trigger),
		sweepCmd("abandonment", "Close stalled intake sessions and alert staff", services.AbandonmentSweepName, &trigger),
		runsCmd(),
	)
	return root
}

func openApp() (*services.App, error) {
	settings, err := config.LoadSettings()
	if err != nil {
		return nil, err
	}
	store, err := services.OpenStore(settings)
	if err != nil {
		return nil, err
	}
	return services.NewApp(store, services.AppConfigFromSettings(settings)), nil
}

func sweepCmd(use, short, sweepName string, trigger *string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			summary, err := app.Sweeps.RunByName(context.Background(), sweepName, *trigger)
			app.Notifications.Wait()
			if errors.Is(err, services.ErrSweepAlreadyRunning) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already running, nothing to do\n", sweepName)
				return nil
			}
			if err != nil {
				return fmt.Errorf("%s failed: %w", sweepName, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: scanned %d, processed %d, failed %d\n",
				sweepName, summary.Scanned, summary.Processed, summary.Failed)
			return nil
		},
	}
}

func runsCmd() *cobra.Command {
	var (
		name  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent sweep runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			runs, err := app.Sweeps.Runs().Recent(context.Background(), name, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range runs {
				finished := "-"
				if r.FinishedAt != nil {
					finished = r.FinishedAt.Format("2006-01-02 15:04:05")
				}
				fmt.Fprintf(out, "#%d %-20s %-8s %s -> %s scanned=%d processed=%d failed=%d\n",
					r.ID, r.SweepName, r.Status, r.StartedAt.Format("2006-01-02 15:04:05"), finished,
					r.Scanned, r.Processed, r.Failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "filter by sweep name")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	return cmd
}
