// Package sdf defines the signed distance field queries the planner makes against its environment.
// Distances are non-negative in free space and negative inside obstacles.
package sdf

import (
	"context"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// DefaultGradientStep is the central difference step used when an oracle has no analytic gradient.
const DefaultGradientStep = 1e-4

// Oracle evaluates a signed distance field at a batch of points, returning one distance per point.
type Oracle interface {
	Distances(ctx context.Context, points []r3.Vector) ([]float64, error)
}

// GradientOracle is an Oracle that can also return the spatial gradient of the field at every point.
type GradientOracle interface {
	Oracle
	Gradients(ctx context.Context, points []r3.Vector) ([]float64, []r3.Vector, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, points []r3.Vector) ([]float64, error)

// Distances calls f.
func (f OracleFunc) Distances(ctx context.Context, points []r3.Vector) ([]float64, error) {
	return f(ctx, points)
}

// NewIncorrectResultLengthError is returned when an oracle does not return one value per point.
func NewIncorrectResultLengthError(actual, expected int) error {
	return errors.Errorf("sdf oracle returned %d values for %d points", actual, expected)
}

var probeOffsets = []r3.Vector{{X: 1}, {X: -1}, {Y: 1}, {Y: -1}, {Z: 1}, {Z: -1}}

// DistancesAndGradients returns the field value and gradient at every point with a single oracle call.
// A GradientOracle answers directly; any other oracle is queried once with the points followed by six
// central difference probes around each of them.
// Errors from the oracle are returned unchanged.
func DistancesAndGradients(ctx context.Context, oracle Oracle, points []r3.Vector, step float64) ([]float64, []r3.Vector, error) {
	if g, ok := oracle.(GradientOracle); ok {
		dists, grads, err := g.Gradients(ctx, points)
		if err != nil {
			return nil, nil, err
		}
		if len(dists) != len(points) || len(grads) != len(points) {
			return nil, nil, NewIncorrectResultLengthError(len(dists), len(points))
		}
		return dists, grads, nil
	}
	if !(step > 0) {
		return nil, nil, errors.Errorf("gradient step must be positive, got %v", step)
	}

	n := len(points)
	query := make([]r3.Vector, 0, n*(1+len(probeOffsets)))
	query = append(query, points...)
	for _, p := range points {
		for _, o := range probeOffsets {
			query = append(query, p.Add(o.Mul(step)))
		}
	}
	values, err := oracle.Distances(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	if len(values) != len(query) {
		return nil, nil, NewIncorrectResultLengthError(len(values), len(query))
	}

	grads := make([]r3.Vector, n)
	for i := range grads {
		v := values[n+i*len(probeOffsets) : n+(i+1)*len(probeOffsets)]
		grads[i] = r3.Vector{
			X: (v[0] - v[1]) / (2 * step),
			Y: (v[2] - v[3]) / (2 * step),
			Z: (v[4] - v[5]) / (2 * step),
		}
	}
	return values[:n], grads, nil
}
