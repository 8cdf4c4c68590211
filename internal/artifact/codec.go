package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/gyeh/claimrisk/internal/features"
	"github.com/gyeh/claimrisk/internal/ml"
)

// FormatVersion is written into every bundle; Decode rejects other values.
const FormatVersion = 1

// bundle is the serialized form of an Artifact. encoding/json writes
// float64 values in their shortest round-tripping form, so decoded models
// reproduce the original predictions bit for bit.
type bundle struct {
	FormatVersion   int              `json:"format_version"`
	ID              uuid.UUID        `json:"id"`
	Name            string           `json:"name"`
	Schema          *features.Schema `json:"schema"`
	Scaler          *ml.Scaler       `json:"scaler"`
	ClassifierKind  string           `json:"classifier_kind"`
	Classifier      json.RawMessage  `json:"classifier"`
	Report          ml.Report        `json:"report"`
	DataFingerprint string           `json:"data_fingerprint,omitempty"`
}

// Encode serializes a to zstd-compressed JSON.
func Encode(a *Artifact) ([]byte, error) {
	if !a.Ready() {
		return nil, ErrModelUnavailable
	}
	clf, err := ml.EncodeClassifier(a.Classifier)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(bundle{
		FormatVersion:   FormatVersion,
		ID:              a.ID,
		Name:            a.Name,
		Schema:          a.Schema,
		Scaler:          a.Scaler,
		ClassifierKind:  a.Classifier.Kind(),
		Classifier:      clf,
		Report:          a.Report,
		DataFingerprint: a.DataFingerprint,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal artifact: %w", err)
	}

	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd writer: %w", err)
	}
	if _, err := zw.Write(raw); err != nil {
		zw.Close()
		return nil, fmt.Errorf("compress artifact: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress artifact: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reverses Encode and checks the bundle is internally consistent.
func Decode(data []byte) (*Artifact, error) {
	zr, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd reader: %w", err)
	}
	defer zr.Close()
	raw, err := zr.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress artifact: %w", err)
	}

	var b bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("unmarshal artifact: %w", err)
	}
	if b.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("unsupported artifact format %d", b.FormatVersion)
	}
	clf, err := ml.DecodeClassifier(b.ClassifierKind, b.Classifier)
	if err != nil {
		return nil, err
	}
	a, err := New(b.Name, b.Schema, &ml.Result{Scaler: b.Scaler, Classifier: clf, Report: b.Report}, b.DataFingerprint)
	if err != nil {
		return nil, err
	}
	a.ID = b.ID
	return a, nil
}
