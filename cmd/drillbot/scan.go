package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/vytor/drillbot/internal/logger"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scheduled scan immediately",
}

var scanDueCmd = &cobra.Command{
	Use:   "due",
	Short: "Offer drills to users with due mistakes and expire stale sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) (any, error) {
			return a.machine.ScanDue(cmd.Context())
		})
	},
}

var scanNudgeCmd = &cobra.Command{
	Use:   "nudge",
	Short: "Send inactivity nudges",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) (any, error) {
			intents, err := a.nudger.Scan(cmd.Context(), time.Now())
			if err != nil {
				return nil, err
			}
			return map[string]any{"nudged": len(intents)}, nil
		})
	},
}

var scanOutboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Retry undelivered outbound messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) (any, error) {
			return a.relay.Flush(cmd.Context())
		})
	},
}

func init() {
	scanCmd.AddCommand(scanDueCmd)
	scanCmd.AddCommand(scanNudgeCmd)
	scanCmd.AddCommand(scanOutboxCmd)
}

// withApp builds the shared components, runs fn and prints its result as JSON.
func withApp(cmd *cobra.Command, fn func(*app) (any, error)) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := logger.NewContext(cmd.Context(), logger.Default().WithPrefix(cmd.Name()))
	cmd.SetContext(ctx)

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	res, err := fn(a)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
