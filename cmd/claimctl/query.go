package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"claimcast/claims"
	"claimcast/ml"
)

func predictCmd() *cobra.Command {
	var (
		dataPath   string
		modelsPath string
		county     string
		claimType  string
		date       string
		days       int
	)
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict claim count and cost for a segment",
		Example: `  claimctl predict --models models/segments.json.gz --county Johnson --type emergency --date 2025-03-01
  claimctl predict --data data/claims.csv --county Sedgwick --type pharmacy --date 2025-03-01 --days 14`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if days < 1 || days > ml.MaxRangeDays {
				return fmt.Errorf("--days must be between 1 and %d, got %d", ml.MaxRangeDays, days)
			}
			store, err := openStore(cmd.Context(), modelsPath, dataPath)
			if err != nil {
				return err
			}
			if days > 1 {
				preds, err := ml.PredictRange(store, county, claimType, date, days)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), preds)
			}
			p, err := ml.Predict(store, county, claimType, date)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}
	cmd.Flags().StringVar(&dataPath, "data", "", "dataset to train from when --models is not given")
	cmd.Flags().StringVar(&modelsPath, "models", "", "saved model store")
	cmd.Flags().StringVar(&county, "county", "", "county name")
	cmd.Flags().StringVar(&claimType, "type", "", "claim type")
	cmd.Flags().StringVar(&date, "date", claims.Today().String(), "target date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&days, "days", 1, "number of consecutive days to predict")
	_ = cmd.MarkFlagRequired("county")
	_ = cmd.MarkFlagRequired("type")
	cmd.MarkFlagsOneRequired("data", "models")
	return cmd
}

// openStore loads a saved store, or trains one from the dataset.
func openStore(ctx context.Context, modelsPath, dataPath string) (*ml.Store, error) {
	if modelsPath != "" {
		return ml.LoadFile(modelsPath)
	}
	h, err := loadHistory(ctx, dataPath)
	if err != nil {
		return nil, err
	}
	trainer := ml.NewTrainer(logger)
	store, _ := trainer.TrainAll(h)
	return store, nil
}

func insightsCmd() *cobra.Command {
	var (
		dataPath  string
		county    string
		claimType string
		minRows   int
	)
	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Show monthly and weekday patterns for a segment",
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := loadHistory(cmd.Context(), dataPath)
			if err != nil {
				return err
			}
			insights, err := claims.InsightAggregator{MinRows: minRows}.Seasonal(h, county, claimType)
			if errors.Is(err, claims.ErrInsufficientHistory) {
				return fmt.Errorf("not enough history for insights: %w", err)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), insights)
		},
	}
	cmd.Flags().StringVar(&dataPath, "data", "data/claims.csv", "historical claims dataset")
	cmd.Flags().StringVar(&county, "county", "", "county name")
	cmd.Flags().StringVar(&claimType, "type", "", "claim type")
	cmd.Flags().IntVar(&minRows, "min-rows", claims.MinInsightRows, "minimum rows for insights")
	_ = cmd.MarkFlagRequired("county")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func summaryCmd() *cobra.Command {
	var (
		dataPath string
		county   string
	)
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show per claim type statistics for a county",
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := loadHistory(cmd.Context(), dataPath)
			if err != nil {
				return err
			}
			if !h.HasCounty(county) {
				return fmt.Errorf("county %q not in dataset", county)
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"county":  county,
				"summary": claims.CountySummary(h, county),
			})
		},
	}
	cmd.Flags().StringVar(&dataPath, "data", "data/claims.csv", "historical claims dataset")
	cmd.Flags().StringVar(&county, "county", "", "county name")
	_ = cmd.MarkFlagRequired("county")
	return cmd
}
