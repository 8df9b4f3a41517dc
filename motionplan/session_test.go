package motionplan

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/trajopt/splineplan/kinematics"
	"github.com/trajopt/splineplan/logging"
	"github.com/trajopt/splineplan/sdf"
	"github.com/trajopt/splineplan/spatialmath"
)

type recordingExecutor struct {
	paths [][][]float64
	err   error
}

func (e *recordingExecutor) Execute(_ context.Context, path [][]float64) error {
	e.paths = append(e.paths, path)
	return e.err
}

func TestSessionPlan(t *testing.T) {
	logger := logging.NewTestLogger(t)
	var ids []string
	vis := VisualizerFunc(func(points [][]r3.Vector, sdfValues [][]float64, id string) error {
		test.That(t, len(points), test.ShouldEqual, len(sdfValues))
		ids = append(ids, id)
		return nil
	})
	opts := NewDroneOptions()
	opts.MaxIterations = 3
	s, err := NewSession(newDrone(t), constantOracle(-1), opts, logger, WithVisualizer(vis))
	test.That(t, err, test.ShouldBeNil)

	res, err := s.Plan(context.Background(), droneStart, droneTarget)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.State, test.ShouldEqual, StateIterationLimitReached)
	test.That(t, ids, test.ShouldResemble, []string{"path_1", "path_2", "path_3"})

	// each plan runs a fresh optimizer
	ids = nil
	res, err = s.Plan(context.Background(), droneStart, droneTarget)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Iterations, test.ShouldEqual, 3)
	test.That(t, len(ids), test.ShouldEqual, 3)
}

func TestSessionVisualizerErrorsAreLogged(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	vis := VisualizerFunc(func([][]r3.Vector, [][]float64, string) error { return errors.New("disk full") })
	s, err := NewSession(newDrone(t), sdf.NewScene(0), nil, logger, WithVisualizer(vis))
	test.That(t, err, test.ShouldBeNil)
	res, err := s.Plan(context.Background(), droneStart, droneTarget)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Converged, test.ShouldBeTrue)
	failures := logs.FilterMessage("visualizer failed").All()
	test.That(t, len(failures), test.ShouldEqual, 1)
	test.That(t, failures[0].ContextMap()["embodiment"], test.ShouldEqual, s.Model().Name())
}

func TestSessionPlanPoses(t *testing.T) {
	logger := logging.NewTestLogger(t)
	s, err := NewSession(newDrone(t), sdf.NewScene(0), nil, logger)
	test.That(t, err, test.ShouldBeNil)
	start, err := spatialmath.NewPoseFromSlice(droneStart)
	test.That(t, err, test.ShouldBeNil)
	target, err := spatialmath.NewPoseFromSlice(droneTarget)
	test.That(t, err, test.ShouldBeNil)
	res, err := s.PlanPoses(context.Background(), start, target)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Converged, test.ShouldBeTrue)

	planar, err := kinematics.NewSimplePlanar(5)
	test.That(t, err, test.ShouldBeNil)
	s, err = NewSession(planar, sdf.NewScene(0), nil, logger)
	test.That(t, err, test.ShouldBeNil)
	_, err = s.PlanPoses(context.Background(), start, target)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSessionPlanAndExecute(t *testing.T) {
	logger := logging.NewTestLogger(t)

	t.Run("converged paths are executed", func(t *testing.T) {
		exec := &recordingExecutor{}
		s, err := NewSession(newDrone(t), sdf.NewScene(0), NewDroneOptions(), logger, WithExecutor(exec))
		test.That(t, err, test.ShouldBeNil)
		res, err := s.PlanAndExecute(context.Background(), droneStart, droneTarget)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, res.Converged, test.ShouldBeTrue)
		test.That(t, len(exec.paths), test.ShouldEqual, 1)
		test.That(t, exec.paths[0], test.ShouldResemble, res.Path)
	})

	t.Run("best effort paths are skipped by default", func(t *testing.T) {
		logger, logs := logging.NewObservedTestLogger(t)
		exec := &recordingExecutor{}
		s, err := NewSession(newDrone(t), constantOracle(-1), NewDroneOptions(), logger, WithExecutor(exec))
		test.That(t, err, test.ShouldBeNil)
		res, err := s.PlanAndExecute(context.Background(), droneStart, droneTarget)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, res.Converged, test.ShouldBeFalse)
		test.That(t, res.Path, test.ShouldNotBeNil)
		test.That(t, len(exec.paths), test.ShouldEqual, 0)
		test.That(t, logs.FilterMessage("not executing path that did not reach clearance").Len(), test.ShouldEqual, 1)
	})

	t.Run("best effort paths are executed when asked", func(t *testing.T) {
		exec := &recordingExecutor{}
		s, err := NewSession(newDrone(t), constantOracle(-1), NewDroneOptions(), logger,
			WithExecutor(exec), WithExecuteBestEffort(true))
		test.That(t, err, test.ShouldBeNil)
		res, err := s.PlanAndExecute(context.Background(), droneStart, droneTarget)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, res.Converged, test.ShouldBeFalse)
		test.That(t, len(exec.paths), test.ShouldEqual, 1)
	})

	t.Run("executor errors", func(t *testing.T) {
		errStall := errors.New("motor stalled")
		exec := &recordingExecutor{err: errStall}
		s, err := NewSession(newDrone(t), sdf.NewScene(0), nil, logger, WithExecutor(exec))
		test.That(t, err, test.ShouldBeNil)
		res, err := s.PlanAndExecute(context.Background(), droneStart, droneTarget)
		test.That(t, errors.Is(err, errStall), test.ShouldBeTrue)
		test.That(t, res, test.ShouldNotBeNil)
	})

	t.Run("no executor", func(t *testing.T) {
		s, err := NewSession(newDrone(t), sdf.NewScene(0), nil, logger)
		test.That(t, err, test.ShouldBeNil)
		_, err = s.PlanAndExecute(context.Background(), droneStart, droneTarget)
		test.That(t, err, test.ShouldNotBeNil)
	})
}

func TestSessionFromConfig(t *testing.T) {
	logger := logging.NewTestLogger(t)
	var cfg SessionConfig
	err := json.Unmarshal([]byte(`{
		"embodiment": {
			"name": "drone",
			"type": "rigid_body",
			"body_points": [[0,0,0],[-0.15,0,-0.15],[-0.15,0,0.15],[0.15,0,-0.15],[0.15,0,0.15]]
		},
		"options": {"clearance": 0.1, "max_iterations": 4},
		"execute_best_effort": true
	}`), &cfg)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Options.Clearance, test.ShouldEqual, 0.1)
	test.That(t, cfg.Options.MaxIterations, test.ShouldEqual, 4)
	// unset options keep their defaults
	test.That(t, cfg.Options.NumSamples, test.ShouldEqual, defaultNumSamples)
	test.That(t, cfg.Options.LearningRate, test.ShouldEqual, defaultLearningRate)
	test.That(t, cfg.Options.GradientStep, test.ShouldEqual, sdf.DefaultGradientStep)

	exec := &recordingExecutor{}
	s, err := NewSessionFromConfig(&cfg, constantOracle(-1), logger, WithExecutor(exec))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Model().Name(), test.ShouldEqual, "drone")
	res, err := s.PlanAndExecute(context.Background(), droneStart, droneTarget)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Iterations, test.ShouldEqual, 4)
	test.That(t, len(exec.paths), test.ShouldEqual, 1)

	_, err = NewSessionFromConfig(&SessionConfig{}, constantOracle(1), logger)
	test.That(t, err, test.ShouldEqual, kinematics.ErrNoModelInformation)

	bad := &SessionConfig{
		Embodiment: &kinematics.ModelConfig{Type: kinematics.RigidBodyType, BodyPoints: [][3]float64{{0, 0, 0}}},
		Options:    &OptimizerOptions{},
	}
	_, err = NewSessionFromConfig(bad, constantOracle(1), logger)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestOptimizerOptions(t *testing.T) {
	test.That(t, NewBasicOptimizerOptions().Validate(), test.ShouldBeNil)
	test.That(t, NewDroneOptions().Validate(), test.ShouldBeNil)

	mico := NewManipulatorOptions()
	test.That(t, mico.Validate(), test.ShouldBeNil)
	test.That(t, mico.LearningRate, test.ShouldEqual, 0.5)
	test.That(t, mico.MaxIterations, test.ShouldEqual, 11)
	test.That(t, mico.IgnoredLeadingPoints, test.ShouldEqual, 2)

	for _, tc := range []struct {
		mutate func(*OptimizerOptions)
		field  string
	}{
		{func(o *OptimizerOptions) { o.NumFreeAnchors = -1 }, "num_free_anchors"},
		{func(o *OptimizerOptions) { o.CollisionWeight = -1 }, "collision_weight"},
		{func(o *OptimizerOptions) { o.IgnoredLeadingPoints = -1 }, "ignored_leading_points"},
		{func(o *OptimizerOptions) { o.LengthEpsilon = 0 }, "length_epsilon"},
		{func(o *OptimizerOptions) { o.GradientStep = -1 }, "fd_step"},
	} {
		t.Run(tc.field, func(t *testing.T) {
			opts := NewBasicOptimizerOptions()
			tc.mutate(opts)
			err := opts.Validate()
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.field)
		})
	}

	// zero free anchors degrade to a straight spline between start and target
	opts := NewBasicOptimizerOptions()
	opts.NumFreeAnchors = 0
	opt, err := NewOptimizer(newDrone(t), sdf.NewScene(0), droneStart, droneTarget, opts, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	res, err := opt.Run(context.Background())
	test.That(t, err, test.ShouldBeNil)
	mid := res.Path[len(res.Path)/2]
	frac := float64(len(res.Path)/2) / float64(len(res.Path)-1)
	for d := range mid {
		test.That(t, mid[d], test.ShouldAlmostEqual, droneStart[d]+frac*(droneTarget[d]-droneStart[d]), 1e-9)
	}
	test.That(t, fmt.Sprint(res.State), test.ShouldEqual, "converged")
}
