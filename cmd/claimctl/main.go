// Command claimctl trains and queries claims forecasting models offline.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"claimcast/claims"
	"claimcast/logging"
	"claimcast/pipeline"
)

var (
	logLevel   string
	dataFormat string
	logger     = zap.NewNop()
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "claimctl",
		Short:         "Train and query county healthcare claims forecasts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			l, err := logging.New(logging.Config{Level: logLevel, Encoding: "console"})
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			_ = logger.Sync()
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&dataFormat, "format", "", "dataset format (csv, parquet); default picks by extension")

	root.AddCommand(trainCmd())
	root.AddCommand(predictCmd())
	root.AddCommand(insightsCmd())
	root.AddCommand(summaryCmd())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadHistory(ctx context.Context, path string) (*claims.History, error) {
	if path == "" {
		return nil, fmt.Errorf("--data is required")
	}
	source := claims.Source{Format: dataFormat, Path: path}
	return pipeline.NewDataIngester(source, nil, logger).Load(ctx)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
