package ml

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// TrainConfig controls a training run.
type TrainConfig struct {
	TestFraction  float64
	Seed          int64
	UseResampling bool
	Trainer       Trainer // nil means GBMTrainer with DefaultParams and Seed
}

// Report describes a finished training run.
type Report struct {
	TrainedAt      time.Time `json:"trained_at"`
	NumFeatures    int       `json:"num_features"`
	TrainSamples   int       `json:"num_training_samples"`
	TestSamples    int       `json:"num_test_samples"`
	FraudRateTrain float64   `json:"fraud_rate_train"`
	FraudRateTest  float64   `json:"fraud_rate_test"`
	UsedResampling bool      `json:"used_smote"`
	Resampled      int       `json:"num_resampled_samples"`
	Train          Metrics   `json:"train"`
	Test           Metrics   `json:"test"`
	Confusion      Confusion `json:"confusion_matrix"`
	Duration       float64   `json:"duration_seconds"`
}

// Result is a trained scaler and classifier with their report.
type Result struct {
	Scaler     *Scaler
	Classifier Classifier
	Report     Report
}

func fraudRate(y []bool) float64 {
	if len(y) == 0 {
		return 0
	}
	_, pos := classCounts(y)
	return float64(pos) / float64(len(y))
}

// Train splits, standardizes, optionally oversamples, fits and evaluates.
// Data problems are reported as ErrTrainingFailure; the scaler is fitted on
// the training split only and metrics use the un-resampled splits.
func Train(ctx context.Context, X [][]float64, y []bool, cfg TrainConfig, log zerolog.Logger) (*Result, error) {
	start := time.Now()
	if len(X) == 0 {
		return nil, fmt.Errorf("%w: no labeled samples", ErrTrainingFailure)
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("%w: %d samples but %d labels", ErrTrainingFailure, len(X), len(y))
	}
	trainer := cfg.Trainer
	if trainer == nil {
		p := DefaultParams()
		p.Seed = cfg.Seed
		trainer = GBMTrainer{Params: p}
	}

	trainIdx, testIdx, err := StratifiedSplit(y, cfg.TestFraction, cfg.Seed)
	if err != nil {
		return nil, err
	}
	xTrain, yTrain := gather(X, y, trainIdx)
	xTest, yTest := gather(X, y, testIdx)

	scaler := FitScaler(xTrain)
	xTrainS := scaler.Transform(xTrain)
	xTestS := scaler.Transform(xTest)

	fitX, fitY := xTrainS, yTrain
	used := false
	if cfg.UseResampling {
		neg, pos := classCounts(yTrain)
		fitX, fitY, used = SMOTE(xTrainS, yTrain, DefaultSMOTENeighbors, newRand(cfg.Seed))
		log.Info().
			Int("normal_before", neg).
			Int("fraud_before", pos).
			Int("samples_after", len(fitY)).
			Bool("applied", used).
			Msg("class resampling")
	}

	log.Info().
		Int("train", len(yTrain)).
		Int("test", len(yTest)).
		Int("features", len(X[0])).
		Msg("fitting classifier")
	clf, err := trainer.Fit(ctx, fitX, fitY)
	if err != nil {
		return nil, err
	}

	trainM, _ := Evaluate(yTrain, clf.PredictProba(xTrainS))
	testM, cm := Evaluate(yTest, clf.PredictProba(xTestS))

	rep := Report{
		TrainedAt:      time.Now().UTC(),
		NumFeatures:    len(X[0]),
		TrainSamples:   len(yTrain),
		TestSamples:    len(yTest),
		FraudRateTrain: fraudRate(yTrain),
		FraudRateTest:  fraudRate(yTest),
		UsedResampling: used,
		Resampled:      len(fitY),
		Train:          trainM,
		Test:           testM,
		Confusion:      cm,
		Duration:       time.Since(start).Seconds(),
	}
	log.Info().
		Float64("test_accuracy", testM.Accuracy).
		Float64("test_f1", testM.F1).
		Float64("test_auc", testM.AUCROC).
		Dur("duration", time.Since(start)).
		Msg("training complete")
	return &Result{Scaler: scaler, Classifier: clf, Report: rep}, nil
}
