package sdf

import (
	"context"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/test"

	"github.com/trajopt/splineplan/spatialmath"
)

func TestPrimitives(t *testing.T) {
	t.Run("sphere", func(t *testing.T) {
		s, err := NewSphere(r3.Vector{X: 1}, 0.5)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, s.Distance(r3.Vector{X: 3}), test.ShouldAlmostEqual, 1.5)
		test.That(t, s.Distance(r3.Vector{X: 1}), test.ShouldAlmostEqual, -0.5)
		test.That(t, s.Gradient(r3.Vector{X: 1, Y: 2}), test.ShouldResemble, r3.Vector{Y: 1})
		test.That(t, s.Gradient(r3.Vector{X: 1}), test.ShouldResemble, r3.Vector{})

		_, err = NewSphere(r3.Vector{}, 0)
		test.That(t, err, test.ShouldNotBeNil)
	})

	t.Run("axis aligned box", func(t *testing.T) {
		b, err := NewBox(spatialmath.NewZeroPose(), r3.Vector{X: 2, Y: 4, Z: 6})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, b.Distance(r3.Vector{X: 3}), test.ShouldAlmostEqual, 2.0)
		test.That(t, b.Distance(r3.Vector{X: 4, Y: 6}), test.ShouldAlmostEqual, 5.0)
		test.That(t, b.Distance(r3.Vector{}), test.ShouldAlmostEqual, -1.0)
		test.That(t, b.Distance(r3.Vector{Z: 2.5}), test.ShouldAlmostEqual, -0.5)
		test.That(t, b.Gradient(r3.Vector{X: 3}), test.ShouldResemble, r3.Vector{X: 1})
		test.That(t, b.Gradient(r3.Vector{Z: 2.5}), test.ShouldResemble, r3.Vector{Z: 1})
		test.That(t, b.Gradient(r3.Vector{X: -0.5}), test.ShouldResemble, r3.Vector{X: -1})

		_, err = NewBox(spatialmath.NewZeroPose(), r3.Vector{X: 1, Y: 0, Z: 1})
		test.That(t, err, test.ShouldNotBeNil)
	})

	t.Run("rotated box", func(t *testing.T) {
		pose := spatialmath.NewPose(r3.Vector{X: 1, Y: 1}, r3.Vector{Z: math.Pi / 2})
		b, err := NewBox(pose, r3.Vector{X: 4, Y: 2, Z: 2})
		test.That(t, err, test.ShouldBeNil)
		// the long side now lies along y
		test.That(t, b.Distance(r3.Vector{X: 1, Y: 4}), test.ShouldAlmostEqual, 1.0)
		test.That(t, b.Distance(r3.Vector{X: 3, Y: 1}), test.ShouldAlmostEqual, 1.0)
	})

	t.Run("plane", func(t *testing.T) {
		p, err := NewPlane(r3.Vector{Z: 0.7}, r3.Vector{Z: 2})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, p.Distance(r3.Vector{X: 5, Z: 1}), test.ShouldAlmostEqual, 0.3)
		test.That(t, p.Distance(r3.Vector{Z: 0.2}), test.ShouldAlmostEqual, -0.5)
		test.That(t, p.Gradient(r3.Vector{}), test.ShouldResemble, r3.Vector{Z: 1})

		_, err = NewPlane(r3.Vector{}, r3.Vector{})
		test.That(t, err, test.ShouldNotBeNil)
	})
}

func TestScene(t *testing.T) {
	ctx := context.Background()

	empty := NewScene(0)
	test.That(t, empty.MaxDistance(), test.ShouldEqual, DefaultMaxDistance)
	d, err := empty.Distances(ctx, []r3.Vector{{}, {X: 100}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d, test.ShouldResemble, []float64{DefaultMaxDistance, DefaultMaxDistance})

	sphere, err := NewSphere(r3.Vector{}, 1)
	test.That(t, err, test.ShouldBeNil)
	floor, err := NewPlane(r3.Vector{Z: -2}, r3.Vector{Z: 1})
	test.That(t, err, test.ShouldBeNil)
	scene := NewScene(5, sphere, floor)

	d, err = scene.Distances(ctx, []r3.Vector{{X: 2}, {Z: -1.5}, {X: 20, Z: 20}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d[0], test.ShouldAlmostEqual, 1.0)
	test.That(t, d[1], test.ShouldAlmostEqual, 0.5)
	test.That(t, d[2], test.ShouldAlmostEqual, 5.0)

	_, grads, err := scene.Gradients(ctx, []r3.Vector{{X: 2}, {X: 20, Z: 20}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, grads[0], test.ShouldResemble, r3.Vector{X: 1})
	test.That(t, grads[1], test.ShouldResemble, r3.Vector{})

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = scene.Distances(cancelled, []r3.Vector{{}})
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
}

func TestDistancesAndGradients(t *testing.T) {
	ctx := context.Background()
	sphere, err := NewSphere(r3.Vector{X: 0.2, Y: -0.1, Z: 0.6}, 0.3)
	test.That(t, err, test.ShouldBeNil)
	box, err := NewBox(spatialmath.NewPose(r3.Vector{X: -1}, r3.Vector{X: 0.3, Y: 0.2}), r3.Vector{X: 0.4, Y: 0.4, Z: 1})
	test.That(t, err, test.ShouldBeNil)
	scene := NewScene(0, sphere, box)
	points := []r3.Vector{{X: 0.7, Y: 0.2, Z: 0.9}, {X: -0.3, Z: 0.2}, {X: 0.1, Y: -0.2, Z: 0.55}, {X: -1.6, Y: 0.3, Z: 0.1}}

	analyticDists, analyticGrads, err := DistancesAndGradients(ctx, scene, points, DefaultGradientStep)
	test.That(t, err, test.ShouldBeNil)

	calls := 0
	queried := 0
	oracle := OracleFunc(func(ctx context.Context, pts []r3.Vector) ([]float64, error) {
		calls++
		queried += len(pts)
		return scene.Distances(ctx, pts)
	})
	fdDists, fdGrads, err := DistancesAndGradients(ctx, oracle, points, DefaultGradientStep)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, calls, test.ShouldEqual, 1)
	test.That(t, queried, test.ShouldEqual, 7*len(points))

	for i := range points {
		test.That(t, fdDists[i], test.ShouldAlmostEqual, analyticDists[i])
		test.That(t, spatialmath.R3VectorAlmostEqual(fdGrads[i], analyticGrads[i], 1e-6), test.ShouldBeTrue)
	}

	t.Run("oracle errors are returned unchanged", func(t *testing.T) {
		errOracle := errors.New("simulator gone")
		failing := OracleFunc(func(context.Context, []r3.Vector) ([]float64, error) { return nil, errOracle })
		_, _, err := DistancesAndGradients(ctx, failing, points, DefaultGradientStep)
		test.That(t, err, test.ShouldEqual, errOracle)
	})

	t.Run("short results", func(t *testing.T) {
		short := OracleFunc(func(context.Context, []r3.Vector) ([]float64, error) { return []float64{1}, nil })
		_, _, err := DistancesAndGradients(ctx, short, points, DefaultGradientStep)
		test.That(t, err, test.ShouldNotBeNil)
	})

	t.Run("bad step", func(t *testing.T) {
		_, _, err := DistancesAndGradients(ctx, oracle, points, 0)
		test.That(t, err, test.ShouldNotBeNil)
	})
}

func TestSceneConfig(t *testing.T) {
	scene, err := UnmarshalSceneJSON([]byte(`{
		"max_distance": 3,
		"spheres": [{"center": [0, 0, 0.6], "radius": 0.3}],
		"boxes": [{"center": [1, 1, 0.5], "rotation_vector": [0, 0, 0.5], "dims": [0.2, 0.2, 1]}],
		"planes": [{"point": [0, 0, 0], "normal": [0, 0, 1]}]
	}`))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, scene.MaxDistance(), test.ShouldEqual, 3.0)
	test.That(t, scene.Distance(r3.Vector{Z: 1.2}), test.ShouldAlmostEqual, 0.3)
	test.That(t, scene.Distance(r3.Vector{X: -2, Y: -2, Z: 0.25}), test.ShouldAlmostEqual, 0.25)

	_, err = UnmarshalSceneJSON([]byte(`{
		"spheres": [{"center": [0, 0, 0], "radius": -1}],
		"planes": [{"point": [0, 0, 0], "normal": [0, 0, 0]}]
	}`))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, len(multierr.Errors(err)), test.ShouldEqual, 2)

	_, err = UnmarshalSceneJSON([]byte(`{"max_distance": -1}`))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = UnmarshalSceneJSON([]byte(`[`))
	test.That(t, err, test.ShouldNotBeNil)
}
