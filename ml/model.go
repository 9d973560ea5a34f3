package ml

// Regressor predicts a single numeric target from a feature row.
type Regressor interface {
	Predict(features []float64) (float64, error)
}

var _ Regressor = (*LinearRegression)(nil)

// score evaluates r on x. A nil model, typed or not, is untrained.
func score(r Regressor, x []float64) (float64, error) {
	if r == nil {
		return 0, ErrModelNotTrained
	}
	if lr, ok := r.(*LinearRegression); ok && lr == nil {
		return 0, ErrModelNotTrained
	}
	return r.Predict(x)
}
