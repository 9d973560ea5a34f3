package main

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"claimcast/claims"
	"claimcast/db"
	"claimcast/ml"
)

func trainCmd() *cobra.Command {
	var (
		dataPath string
		outPath  string
		dbPath   string
		minRows  int
	)
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train every county and claim type segment and save the model store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := loadHistory(cmd.Context(), dataPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			store, report := trainWithProgress(h, minRows, out)
			if err := ml.SaveFile(outPath, store); err != nil {
				return fmt.Errorf("save %s: %w", outPath, err)
			}
			if dbPath != "" {
				if err := recordRun(dbPath, dataPath, store, report); err != nil {
					return err
				}
			}

			fmt.Fprintf(out, "trained %d segments, skipped %d, failed %d from %d records in %s\n",
				len(report.Trained), len(report.Skipped), len(report.Failed), report.Records,
				report.Duration.Round(time.Millisecond))
			for _, f := range report.Failed {
				fmt.Fprintf(out, "  failed %s: %s\n", f.Key, f.Error)
			}
			fmt.Fprintf(out, "models saved to %s\n", outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&dataPath, "data", "data/claims.csv", "historical claims dataset")
	cmd.Flags().StringVar(&outPath, "out", "models/segments.json.gz", "model store output path")
	cmd.Flags().StringVar(&dbPath, "db", "", "optional SQLite database to record the run in")
	cmd.Flags().IntVar(&minRows, "min-rows", ml.MinTrainingRows, "minimum rows for a segment to be trained")
	return cmd
}

func trainWithProgress(h *claims.History, minRows int, w io.Writer) (*ml.Store, *ml.TrainReport) {
	bar := progressbar.NewOptions(ml.SegmentCount(h),
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Training segments...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)

	trainer := ml.NewTrainer(logger)
	trainer.MinRows = minRows
	trainer.OnSegment = func(key claims.SegmentKey, _ error) {
		bar.Describe("[cyan][bold]Training[reset] " + key.String())
		if err := bar.Add(1); err != nil {
			logger.Warn("update progress bar", zap.Error(err))
		}
	}
	store, report := trainer.TrainAll(h)
	_ = bar.Finish()
	return store, report
}

func recordRun(dbPath, source string, store *ml.Store, report *ml.TrainReport) error {
	database, err := db.Open(dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	runID := uuid.NewString()
	blob, err := ml.Save(store)
	if err != nil {
		return err
	}
	if err := database.SaveSnapshot(db.Snapshot{
		RunID:     runID,
		Format:    ml.FormatVersion,
		Segments:  store.Len(),
		Blob:      blob,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return err
	}
	return database.RecordTrainingRun(db.TrainingRun{
		RunID:     runID,
		Source:    source,
		Status:    "ok",
		Records:   report.Records,
		Trained:   len(report.Trained),
		Skipped:   len(report.Skipped),
		Failed:    len(report.Failed),
		Duration:  report.Duration,
		StartedAt: report.StartedAt,
	})
}
