package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/claimrisk/internal/engine"
	"github.com/gyeh/claimrisk/internal/exitcode"
	"github.com/gyeh/claimrisk/internal/logging"
	"github.com/gyeh/claimrisk/internal/ml"
)

var noResampling bool

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a fraud model on every labeled claim and save it",
	RunE:  runTrain,
}

func init() {
	f := trainCmd.Flags()
	f.BoolVar(&noResampling, "no-resampling", false, "Disable SMOTE oversampling of the minority class")
	f.Float64Var(&cfg.Training.TestFraction, "test-fraction", cfg.Training.TestFraction, "Share of labeled claims held out for evaluation")
	f.Int64Var(&cfg.Training.Seed, "seed", cfg.Training.Seed, "Random seed for split, resampling and subsampling")
	f.IntVar(&cfg.Training.Estimators, "estimators", cfg.Training.Estimators, "Number of boosted trees")
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()

	s := openSession(ctx, log, false)
	defer s.Close()

	params := ml.DefaultParams()
	params.Estimators = cfg.Training.Estimators
	params.LearningRate = cfg.Training.LearningRate
	params.MaxDepth = cfg.Training.MaxDepth

	a, err := s.eng.Train(ctx, engine.TrainRequest{
		UseResampling: cfg.Training.UseResampling && !noResampling,
		TestFraction:  cfg.Training.TestFraction,
		Seed:          cfg.Training.Seed,
		Params:        &params,
	})
	if err != nil {
		code := exitcode.TrainingError
		if errors.Is(err, engine.ErrNoData) {
			code = exitcode.LoadError
		}
		log.Error().Err(err).Msg("training failed")
		s.Close()
		os.Exit(code)
	}

	r := a.Report
	fmt.Printf("Model %s (%s) trained on %d claims, %d features (%.1fs)\n",
		a.Name, a.ID, r.TrainSamples, r.NumFeatures, r.Duration)
	fmt.Printf("  test: accuracy=%.4f precision=%.4f recall=%.4f f1=%.4f auc_roc=%.4f\n",
		r.Test.Accuracy, r.Test.Precision, r.Test.Recall, r.Test.F1, r.Test.AUCROC)
	fmt.Printf("  confusion: TN=%d FP=%d FN=%d TP=%d\n",
		r.Confusion[0][0], r.Confusion[0][1], r.Confusion[1][0], r.Confusion[1][1])
	return nil
}
