package motionplan

import (
	"context"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/trajopt/splineplan/sdf"
)

// offsetOracle is the distance along x shifted by offset, counting its calls.
type offsetOracle struct {
	offset float64
	calls  int
}

func (o *offsetOracle) Distances(_ context.Context, points []r3.Vector) ([]float64, error) {
	o.calls++
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.X + o.offset
	}
	return out, nil
}

var collisionPoints = [][]r3.Vector{
	{{X: 0}, {X: 0.5}, {X: 1}},
	{{X: 1.5}, {X: -0.5}, {X: 2}},
}

func TestEvaluateCollision(t *testing.T) {
	ctx := context.Background()
	oracle := &offsetOracle{}
	res, err := EvaluateCollision(ctx, oracle, collisionPoints)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, oracle.calls, test.ShouldEqual, 1)
	test.That(t, res.SDF, test.ShouldResemble, [][]float64{{0, 0.5, 1}, {1.5, -0.5, 2}})
	test.That(t, res.Cost, test.ShouldAlmostEqual, -4.5/6)
	test.That(t, res.MinSDF, test.ShouldEqual, -0.5)
	test.That(t, res.PointGrads, test.ShouldBeNil)

	test.That(t, res.MinSDFFrom(0), test.ShouldEqual, -0.5)
	test.That(t, res.MinSDFFrom(1), test.ShouldEqual, -0.5)
	test.That(t, res.MinSDFFrom(2), test.ShouldEqual, 1.0)
	test.That(t, math.IsInf(res.MinSDFFrom(3), 1), test.ShouldBeTrue)
}

func TestCollisionCostDecreasesAsObstaclesRecede(t *testing.T) {
	ctx := context.Background()
	prev := math.Inf(1)
	for _, offset := range []float64{-2, -1, -0.1, 0, 0.1, 1, 5} {
		res, err := EvaluateCollision(ctx, &offsetOracle{offset: offset}, collisionPoints)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, res.Cost, test.ShouldBeLessThan, prev)
		prev = res.Cost
	}
}

func TestEvaluateCollisionWithGradient(t *testing.T) {
	ctx := context.Background()
	oracle := &offsetOracle{offset: 0.3}
	res, err := EvaluateCollisionWithGradient(ctx, oracle, collisionPoints, sdf.DefaultGradientStep)
	test.That(t, err, test.ShouldBeNil)
	// finite difference probes share the single oracle call
	test.That(t, oracle.calls, test.ShouldEqual, 1)
	test.That(t, res.MinSDF, test.ShouldAlmostEqual, -0.2)
	for _, row := range res.PointGrads {
		for _, g := range row {
			test.That(t, g.X, test.ShouldAlmostEqual, -1./6, 1e-9)
			test.That(t, g.Y, test.ShouldAlmostEqual, 0.0, 1e-9)
			test.That(t, g.Z, test.ShouldAlmostEqual, 0.0, 1e-9)
		}
	}

	// an analytic oracle gives the same gradient
	sphere, err := sdf.NewSphere(r3.Vector{X: -10}, 1)
	test.That(t, err, test.ShouldBeNil)
	scene := sdf.NewScene(100, sphere)
	points := [][]r3.Vector{{{X: 1, Y: 2}, {Y: -1, Z: 3}}}
	analytic, err := EvaluateCollisionWithGradient(ctx, scene, points, sdf.DefaultGradientStep)
	test.That(t, err, test.ShouldBeNil)
	numeric, err := EvaluateCollisionWithGradient(ctx, sdf.OracleFunc(scene.Distances), points, sdf.DefaultGradientStep)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, numeric.Cost, test.ShouldAlmostEqual, analytic.Cost)
	for k := range points[0] {
		test.That(t, numeric.PointGrads[0][k].X, test.ShouldAlmostEqual, analytic.PointGrads[0][k].X, 1e-7)
		test.That(t, numeric.PointGrads[0][k].Y, test.ShouldAlmostEqual, analytic.PointGrads[0][k].Y, 1e-7)
		test.That(t, numeric.PointGrads[0][k].Z, test.ShouldAlmostEqual, analytic.PointGrads[0][k].Z, 1e-7)
	}
}

func TestEvaluateCollisionOracleErrors(t *testing.T) {
	ctx := context.Background()
	errSim := errors.New("simulator disconnected")
	failing := sdf.OracleFunc(func(context.Context, []r3.Vector) ([]float64, error) { return nil, errSim })

	_, err := EvaluateCollision(ctx, failing, collisionPoints)
	test.That(t, err, test.ShouldEqual, errSim)
	_, err = EvaluateCollisionWithGradient(ctx, failing, collisionPoints, sdf.DefaultGradientStep)
	test.That(t, err, test.ShouldEqual, errSim)

	short := sdf.OracleFunc(func(context.Context, []r3.Vector) ([]float64, error) { return []float64{1}, nil })
	_, err = EvaluateCollision(ctx, short, collisionPoints)
	test.That(t, err, test.ShouldNotBeNil)
}
