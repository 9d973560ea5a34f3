package ml

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// LinearRegression is a fitted ordinary least squares model. Only the
// coefficients are kept so the model serializes as plain JSON.
type LinearRegression struct {
	Target       string    `json:"target"`
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
	R2           float64   `json:"r2"`
	Samples      int       `json:"samples"`
}

// FitLinear fits y ~ X with an intercept. columns names the features in X.
//
// X and y are centred and the least squares problem is solved through the
// SVD pseudo-inverse, so a rank-deficient design (a constant year, a single
// weekday) yields the minimum-norm solution instead of failing. Singular
// values below max(n, p) * eps * s_max are treated as zero.
func FitLinear(target string, columns []string, x [][]float64, y []float64) (*LinearRegression, error) {
	if len(x) == 0 || len(y) == 0 {
		return nil, errors.New("features or targets empty")
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("features and targets size mismatch: %d != %d", len(x), len(y))
	}
	n, p := len(x), len(columns)

	means := make([]float64, p)
	for i, row := range x {
		if len(row) != p {
			return nil, fmt.Errorf("row %d has %d features, want %d: %w", i, len(row), p, ErrFeatureMismatch)
		}
		floats.Add(means, row)
	}
	floats.Scale(1/float64(n), means)
	yMean := stat.Mean(y, nil)

	coef := make([]float64, p)
	if p > 0 {
		centred := mat.NewDense(n, p, nil)
		yc := make([]float64, n)
		for i, row := range x {
			for j, v := range row {
				centred.Set(i, j, v-means[j])
			}
			yc[i] = y[i] - yMean
		}
		var err error
		if coef, err = minNormSolve(centred, yc); err != nil {
			return nil, fmt.Errorf("fit %s: %w", target, err)
		}
	}

	model := &LinearRegression{
		Target:       target,
		Intercept:    yMean - floats.Dot(means, coef),
		Coefficients: coef,
		Samples:      n,
	}
	if !model.finite() {
		return nil, fmt.Errorf("fit %s: %w", target, ErrSingularFit)
	}
	model.R2 = model.rSquared(x, y)
	return model, nil
}

// minNormSolve returns the minimum-norm w minimising |a·w - b|.
func minNormSolve(a *mat.Dense, b []float64) ([]float64, error) {
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return nil, ErrSingularFit
	}
	values := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	rows, cols := a.Dims()
	if len(values) == 0 {
		return make([]float64, cols), nil
	}
	const eps = 0x1p-52
	tol := float64(max(rows, cols)) * eps * values[0]

	bv := mat.NewVecDense(len(b), b)
	w := mat.NewVecDense(cols, nil)
	for k, s := range values {
		if s <= tol {
			break
		}
		scale := mat.Dot(u.ColView(k), bv) / s
		w.AddScaledVec(w, scale, v.ColView(k))
	}
	return w.RawVector().Data, nil
}

// rSquared is the coefficient of determination on the training rows. A
// constant target scores 1 when it is fitted exactly and 0 otherwise.
func (m *LinearRegression) rSquared(x [][]float64, y []float64) float64 {
	fitted := make([]float64, len(y))
	for i, row := range x {
		fitted[i], _ = m.Predict(row)
	}
	if len(y) < 2 || stat.Variance(y, nil) == 0 {
		if floats.EqualApprox(fitted, y, 1e-9) {
			return 1
		}
		return 0
	}
	r2 := stat.RSquaredFrom(fitted, y, nil)
	if math.IsNaN(r2) || math.IsInf(r2, 0) {
		return 0
	}
	return r2
}

// Predict evaluates the model on one feature row.
func (m *LinearRegression) Predict(x []float64) (float64, error) {
	if m == nil || m.Coefficients == nil {
		return 0, ErrModelNotTrained
	}
	if len(x) != len(m.Coefficients) {
		return 0, fmt.Errorf("got %d features, want %d: %w", len(x), len(m.Coefficients), ErrFeatureMismatch)
	}
	out := m.Intercept
	for i, c := range m.Coefficients {
		out += c * x[i]
	}
	return out, nil
}

func (m *LinearRegression) finite() bool {
	if math.IsNaN(m.Intercept) || math.IsInf(m.Intercept, 0) {
		return false
	}
	for _, c := range m.Coefficients {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
