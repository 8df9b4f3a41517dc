package motionplan

import (
	"context"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/trajopt/splineplan/kinematics"
	"github.com/trajopt/splineplan/logging"
	"github.com/trajopt/splineplan/sdf"
	"github.com/trajopt/splineplan/spatialmath"
)

// Visualizer receives the points and field values evaluated by every iteration. id names the output.
type Visualizer interface {
	Visualize(points [][]r3.Vector, sdfValues [][]float64, id string) error
}

// VisualizerFunc adapts a function to the Visualizer interface.
type VisualizerFunc func(points [][]r3.Vector, sdfValues [][]float64, id string) error

// Visualize calls f.
func (f VisualizerFunc) Visualize(points [][]r3.Vector, sdfValues [][]float64, id string) error {
	return f(points, sdfValues, id)
}

// Executor drives a robot, real or simulated, along a planned path of configurations.
type Executor interface {
	Execute(ctx context.Context, path [][]float64) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, path [][]float64) error

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, path [][]float64) error {
	return f(ctx, path)
}

// SessionConfig is the JSON description of a planning session.
type SessionConfig struct {
	Embodiment *kinematics.ModelConfig `json:"embodiment"`
	Options    *OptimizerOptions       `json:"options,omitempty"`
	// Hand paths that did not reach the clearance to the executor anyway.
	ExecuteBestEffort bool `json:"execute_best_effort"`
}

// SessionOption configures optional collaborators of a Session.
type SessionOption func(*Session)

// WithVisualizer sets a visualizer called once per iteration.
func WithVisualizer(v Visualizer) SessionOption {
	return func(s *Session) {
		s.visualizer = v
	}
}

// WithExecutor sets the executor used by PlanAndExecute.
func WithExecutor(e Executor) SessionOption {
	return func(s *Session) {
		s.executor = e
	}
}

// WithExecuteBestEffort makes PlanAndExecute execute paths that did not converge.
func WithExecuteBestEffort(bestEffort bool) SessionOption {
	return func(s *Session) {
		s.executeBestEffort = bestEffort
	}
}

// Session plans paths for one embodiment in one environment. Every Plan call runs a fresh optimizer.
type Session struct {
	model             kinematics.Model
	oracle            sdf.Oracle
	opts              *OptimizerOptions
	logger            logging.Logger
	visualizer        Visualizer
	executor          Executor
	executeBestEffort bool
}

// NewSession creates a session.
func NewSession(
	model kinematics.Model,
	oracle sdf.Oracle,
	opts *OptimizerOptions,
	logger logging.Logger,
	options ...SessionOption,
) (*Session, error) {
	if model == nil {
		return nil, errors.New("session needs a kinematic model")
	}
	if oracle == nil {
		return nil, errors.New("session needs an sdf oracle")
	}
	if opts == nil {
		opts = NewBasicOptimizerOptions()
	}
	if err := opts.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid optimizer options")
	}
	if logger == nil {
		logger = logging.NewBlankLogger("session")
	}
	s := &Session{model: model, oracle: oracle, opts: opts, logger: logger.WithFields("embodiment", model.Name())}
	for _, o := range options {
		o(s)
	}
	return s, nil
}

// NewSessionFromConfig builds the embodiment described by cfg and creates a session for it.
func NewSessionFromConfig(
	cfg *SessionConfig,
	oracle sdf.Oracle,
	logger logging.Logger,
	options ...SessionOption,
) (*Session, error) {
	if cfg == nil || cfg.Embodiment == nil {
		return nil, kinematics.ErrNoModelInformation
	}
	model, err := cfg.Embodiment.ParseConfig("")
	if err != nil {
		return nil, err
	}
	options = append([]SessionOption{WithExecuteBestEffort(cfg.ExecuteBestEffort)}, options...)
	return NewSession(model, oracle, cfg.Options, logger, options...)
}

// Model returns the embodiment being planned for.
func (s *Session) Model() kinematics.Model {
	return s.model
}

// Plan optimizes a path from start to target configurations.
func (s *Session) Plan(ctx context.Context, start, target []float64) (*Result, error) {
	opt, err := NewOptimizer(s.model, s.oracle, start, target, s.opts, s.logger.Sublogger("optimizer"))
	if err != nil {
		return nil, err
	}
	for !opt.State().Terminal() {
		it, err := opt.Step(ctx)
		if err != nil {
			return nil, err
		}
		if s.visualizer != nil {
			if err := s.visualizer.Visualize(it.Points, it.SDF, it.ID()); err != nil {
				s.logger.Warnw("visualizer failed", "id", it.ID(), "error", err)
			}
		}
	}
	res, err := opt.Result()
	if err != nil {
		return nil, err
	}
	s.logger.Infow("planning finished",
		"model", s.model.Name(),
		"state", res.State.String(),
		"iterations", res.Iterations,
		"min_sdf", res.MinSDF,
	)
	return res, nil
}

// PlanPoses plans between two poses of a rigid body.
func (s *Session) PlanPoses(ctx context.Context, start, target spatialmath.Pose) (*Result, error) {
	if s.model.DoF() != spatialmath.PoseDoF {
		return nil, kinematics.NewIncorrectDoFError(spatialmath.PoseDoF, s.model.DoF())
	}
	return s.Plan(ctx, start.Slice(), target.Slice())
}

// PlanAndExecute plans a path and hands it to the executor. Paths that did not converge are only executed
// when the session executes best effort paths; either way the result is returned.
func (s *Session) PlanAndExecute(ctx context.Context, start, target []float64) (*Result, error) {
	if s.executor == nil {
		return nil, errors.New("session has no executor")
	}
	res, err := s.Plan(ctx, start, target)
	if err != nil {
		return nil, err
	}
	if !res.Converged && !s.executeBestEffort {
		s.logger.Warnw("not executing path that did not reach clearance",
			"clearance", s.opts.Clearance, "min_sdf", res.MinSDF)
		return res, nil
	}
	if err := s.executor.Execute(ctx, res.Path); err != nil {
		return res, errors.Wrap(err, "executing planned path")
	}
	return res, nil
}
