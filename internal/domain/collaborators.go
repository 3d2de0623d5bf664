package domain

import "context"

// Predictor wraps the external binary classifier. The feature vector passed
// to PredictProbability must follow ExpectedFeatureOrder and already be
// scaled via Scale.
type Predictor interface {
	// Ready reports whether a trained model is loaded. When false the
	// caller uses the deterministic rule-based fallback instead.
	Ready() bool

	// ExpectedFeatureOrder returns the feature schema the model was
	// trained with.
	ExpectedFeatureOrder() []string

	// Scale applies the training-time scaling transform (may be identity).
	Scale(vector []float64) []float64

	// PredictProbability returns the class-1 (approve) probability in [0,1].
	PredictProbability(vector []float64) (float64, error)

	// FeatureImportances returns per-feature weights, aligned with
	// ExpectedFeatureOrder.
	FeatureImportances() []FeatureImportance
}

// FeatureImportance pairs a feature name with its model weight.
type FeatureImportance struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// TextExtractor extracts text from an uploaded file. A failed or
// unsupported extraction yields "" and a nil error; the corresponding
// fraud signals are simply treated as absent.
type TextExtractor interface {
	ExtractText(ctx context.Context, filePath string) (string, error)
}

// PhotoAnalyzer runs face-presence and brightness checks on a photo
// document. It is an optional capability: a nil analyzer, or one whose
// backend is unavailable, yields no flags rather than an error.
type PhotoAnalyzer interface {
	CheckPhotoQuality(ctx context.Context, filePath string) []string
}

// CibilProvider looks up a credit score in [300,900] by applicant identity.
// Used only when the application omits a score.
type CibilProvider interface {
	Score(ctx context.Context, email string) (int, error)
}
