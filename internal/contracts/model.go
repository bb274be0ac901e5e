package contracts

// Regressor is a trained point-prediction model. Implementations must be
// safe for concurrent use; the registry shares them across workers.
type Regressor interface {
	// Predict returns the point prediction for one feature row. The slice
	// is ordered to match the owning Model's FeatureNames after selection.
	Predict(features []float64) float64
}

// Model is the per-item inference bundle loaded from the artifact:
// the ordered feature names the regressor was trained on, plus the
// regressor itself. Immutable after load.
type Model struct {
	ItemID       ItemID
	FeatureNames []string
	Regressor    Regressor
}

// ModelRegistry resolves per-item models. Loaded once at startup,
// read-only afterwards.
type ModelRegistry interface {
	// Resolve returns the model for an item, or false when none is registered.
	Resolve(item ItemID) (*Model, bool)

	// Items returns all item ids with a registered model, ascending.
	Items() []ItemID
}
