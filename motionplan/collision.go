package motionplan

import (
	"context"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/floats"

	"github.com/trajopt/splineplan/sdf"
)

// CollisionResult is the collision cost of a batch of sampled points.
type CollisionResult struct {
	// SDF holds one field value per point, indexed like the evaluated points.
	SDF [][]float64
	// Cost is the negated mean field value; it falls as obstacles recede.
	Cost float64
	// MinSDF is the smallest field value in the batch.
	MinSDF float64
	// PointGrads is the gradient of Cost with respect to every point, only set by
	// EvaluateCollisionWithGradient.
	PointGrads [][]r3.Vector
}

// MinSDFFrom returns the smallest field value ignoring the first skip points of every sample.
// It is +Inf when no point is left.
func (cr *CollisionResult) MinSDFFrom(skip int) float64 {
	if skip <= 0 {
		return cr.MinSDF
	}
	minSDF := math.Inf(1)
	for _, row := range cr.SDF {
		if skip < len(row) {
			minSDF = math.Min(minSDF, floats.Min(row[skip:]))
		}
	}
	return minSDF
}

// EvaluateCollision queries the oracle once for every point of the batch.
func EvaluateCollision(ctx context.Context, oracle sdf.Oracle, points [][]r3.Vector) (*CollisionResult, error) {
	flat := flatten(points)
	dists, err := oracle.Distances(ctx, flat)
	if err != nil {
		return nil, err
	}
	if len(dists) != len(flat) {
		return nil, sdf.NewIncorrectResultLengthError(len(dists), len(flat))
	}
	return newCollisionResult(points, dists), nil
}

// EvaluateCollisionWithGradient is EvaluateCollision that also fills PointGrads. Oracles without an
// analytic gradient are differentiated numerically with the given step, within the same single call.
func EvaluateCollisionWithGradient(
	ctx context.Context,
	oracle sdf.Oracle,
	points [][]r3.Vector,
	gradientStep float64,
) (*CollisionResult, error) {
	flat := flatten(points)
	dists, grads, err := sdf.DistancesAndGradients(ctx, oracle, flat, gradientStep)
	if err != nil {
		return nil, err
	}
	cr := newCollisionResult(points, dists)
	if len(flat) == 0 {
		return cr, nil
	}
	scale := -1 / float64(len(flat))
	cr.PointGrads = make([][]r3.Vector, len(points))
	i := 0
	for b, row := range points {
		cr.PointGrads[b] = make([]r3.Vector, len(row))
		for k := range row {
			cr.PointGrads[b][k] = grads[i].Mul(scale)
			i++
		}
	}
	return cr, nil
}

func newCollisionResult(points [][]r3.Vector, dists []float64) *CollisionResult {
	cr := &CollisionResult{SDF: make([][]float64, len(points)), MinSDF: math.Inf(1)}
	i := 0
	for b, row := range points {
		cr.SDF[b] = dists[i : i+len(row)]
		i += len(row)
	}
	if len(dists) > 0 {
		cr.Cost = -floats.Sum(dists) / float64(len(dists))
		cr.MinSDF = floats.Min(dists)
	}
	return cr
}

func flatten(points [][]r3.Vector) []r3.Vector {
	n := 0
	for _, row := range points {
		n += len(row)
	}
	flat := make([]r3.Vector, 0, n)
	for _, row := range points {
		flat = append(flat, row...)
	}
	return flat
}
