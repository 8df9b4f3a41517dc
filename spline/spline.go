// Package spline implements natural cubic spline interpolation of vector-valued anchors over a shared
// one-dimensional parameter.
//
// A natural cubic spline is linear in its anchor values, so sampling at a fixed set of query parameters
// reduces to a single blending matrix W with query = W * anchors. The same matrix transposed carries
// gradients from the queried path back to the anchors.
package spline

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrInvalidAnchors is returned, wrapped, when anchors cannot define a spline.
var ErrInvalidAnchors = errors.New("invalid spline anchors")

// Weights is the blending matrix between a set of anchor parameters and a set of query parameters.
// Row q holds the contribution of every anchor to query q.
type Weights struct {
	anchorParams []float64
	queryParams  []float64
	w            *mat.Dense
}

// ValidateParams checks that anchor parameters can define a spline.
func ValidateParams(anchorParams []float64) error {
	if len(anchorParams) < 2 {
		return errors.Wrapf(ErrInvalidAnchors, "need at least 2 anchors, got %d", len(anchorParams))
	}
	for i, p := range anchorParams {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return errors.Wrapf(ErrInvalidAnchors, "anchor parameter %d is not finite", i)
		}
		if i > 0 && p <= anchorParams[i-1] {
			return errors.Wrapf(ErrInvalidAnchors,
				"anchor parameters must be strictly increasing, got %v after %v", p, anchorParams[i-1])
		}
	}
	return nil
}

// NewWeights computes the blending matrix for the given anchor and query parameters.
// Query parameters outside the anchor range are clamped to it.
func NewWeights(anchorParams, queryParams []float64) (*Weights, error) {
	if err := ValidateParams(anchorParams); err != nil {
		return nil, err
	}
	if len(queryParams) == 0 {
		return nil, errors.New("need at least one query parameter")
	}
	for i, q := range queryParams {
		if math.IsNaN(q) {
			return nil, errors.Errorf("query parameter %d is NaN", i)
		}
	}
	s, err := secondDerivativeOperator(anchorParams)
	if err != nil {
		return nil, err
	}

	n := len(anchorParams)
	lo, hi := anchorParams[0], anchorParams[n-1]
	w := mat.NewDense(len(queryParams), n, nil)
	for qi, q := range queryParams {
		q = math.Max(lo, math.Min(hi, q))
		// index of the interval [x_i, x_i+1] holding q
		i := sort.SearchFloat64s(anchorParams, q) - 1
		if i < 0 {
			i = 0
		}
		if i > n-2 {
			i = n - 2
		}
		h := anchorParams[i+1] - anchorParams[i]
		a := (anchorParams[i+1] - q) / h
		b := (q - anchorParams[i]) / h
		c := (a*a*a - a) * h * h / 6
		d := (b*b*b - b) * h * h / 6
		for j := 0; j < n; j++ {
			w.Set(qi, j, c*s.At(i, j)+d*s.At(i+1, j))
		}
		w.Set(qi, i, w.At(qi, i)+a)
		w.Set(qi, i+1, w.At(qi, i+1)+b)
	}
	return &Weights{
		anchorParams: append([]float64(nil), anchorParams...),
		queryParams:  append([]float64(nil), queryParams...),
		w:            w,
	}, nil
}

// secondDerivativeOperator returns the n x n matrix S mapping anchor values to the spline's second
// derivatives at the anchors. The first and last rows are zero for a natural spline.
func secondDerivativeOperator(x []float64) (*mat.Dense, error) {
	n := len(x)
	s := mat.NewDense(n, n, nil)
	if n < 3 {
		return s, nil
	}
	m := n - 2
	k := mat.NewDense(m, m, nil)
	rhs := mat.NewDense(m, n, nil)
	for r := 0; r < m; r++ {
		i := r + 1
		hPrev := x[i] - x[i-1]
		hNext := x[i+1] - x[i]
		k.Set(r, r, 2*(hPrev+hNext))
		if r > 0 {
			k.Set(r, r-1, hPrev)
		}
		if r < m-1 {
			k.Set(r, r+1, hNext)
		}
		rhs.Set(r, i-1, 6/hPrev)
		rhs.Set(r, i, -6/hPrev-6/hNext)
		rhs.Set(r, i+1, 6/hNext)
	}
	var interior mat.Dense
	if err := interior.Solve(k, rhs); err != nil {
		return nil, errors.Wrap(err, "solving spline second derivatives")
	}
	s.Slice(1, n-1, 0, n).(*mat.Dense).Copy(&interior)
	return s, nil
}

// NumAnchors returns the number of anchors the weights were built for.
func (w *Weights) NumAnchors() int {
	return len(w.anchorParams)
}

// NumQueries returns the number of query parameters.
func (w *Weights) NumQueries() int {
	return len(w.queryParams)
}

// AnchorParams returns a copy of the anchor parameters.
func (w *Weights) AnchorParams() []float64 {
	return append([]float64(nil), w.anchorParams...)
}

// QueryParams returns a copy of the query parameters.
func (w *Weights) QueryParams() []float64 {
	return append([]float64(nil), w.queryParams...)
}

// Matrix returns the query x anchor blending matrix.
func (w *Weights) Matrix() mat.Matrix {
	return w.w
}

// Apply evaluates the spline through the given anchor values at every query parameter.
func (w *Weights) Apply(anchorValues [][]float64) ([][]float64, error) {
	values, err := toDense(anchorValues, w.NumAnchors())
	if err != nil {
		return nil, err
	}
	var out mat.Dense
	out.Mul(w.w, values)
	return fromDense(&out), nil
}

// Backpropagate maps per-query gradients to per-anchor gradients, returning W^T * G.
func (w *Weights) Backpropagate(queryGrads [][]float64) ([][]float64, error) {
	if len(queryGrads) != w.NumQueries() {
		return nil, errors.Errorf("expected %d query gradients, got %d", w.NumQueries(), len(queryGrads))
	}
	if len(queryGrads[0]) == 0 {
		return nil, errors.New("query gradients must have at least one dimension")
	}
	g, err := toDense(queryGrads, w.NumQueries())
	if err != nil {
		return nil, err
	}
	var out mat.Dense
	out.Mul(w.w.T(), g)
	return fromDense(&out), nil
}

// Sample interpolates anchorValues, given at anchorParams, at every query parameter. Each dimension is
// interpolated independently with a natural cubic spline.
func Sample(anchorParams []float64, anchorValues [][]float64, queryParams []float64) ([][]float64, error) {
	if len(anchorParams) != len(anchorValues) {
		return nil, errors.Wrapf(ErrInvalidAnchors,
			"got %d anchor parameters but %d anchor values", len(anchorParams), len(anchorValues))
	}
	w, err := NewWeights(anchorParams, queryParams)
	if err != nil {
		return nil, err
	}
	return w.Apply(anchorValues)
}

func toDense(rows [][]float64, want int) (*mat.Dense, error) {
	if len(rows) != want {
		return nil, errors.Wrapf(ErrInvalidAnchors, "expected %d rows of values, got %d", want, len(rows))
	}
	dim := len(rows[0])
	if dim == 0 {
		return nil, errors.Wrap(ErrInvalidAnchors, "values must have at least one dimension")
	}
	data := make([]float64, 0, want*dim)
	for i, r := range rows {
		if len(r) != dim {
			return nil, errors.Wrapf(ErrInvalidAnchors, "row %d has dimension %d, expected %d", i, len(r), dim)
		}
		data = append(data, r...)
	}
	return mat.NewDense(want, dim, data), nil
}

func fromDense(m *mat.Dense) [][]float64 {
	r, _ := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = append([]float64(nil), m.RawRowView(i)...)
	}
	return out
}
