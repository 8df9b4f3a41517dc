// Package motionplan refines a spline path between a fixed start and target so that it is short and clear
// of obstacles, by gradient descent on the interior spline anchors.
package motionplan

import (
	"context"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/trajopt/splineplan/kinematics"
	"github.com/trajopt/splineplan/logging"
	"github.com/trajopt/splineplan/sdf"
	"github.com/trajopt/splineplan/spline"
	"github.com/trajopt/splineplan/utils"
)

// State is the stage of an Optimizer.
type State int

// Optimizer states. StateConverged and StateIterationLimitReached are terminal.
const (
	StateInitialized State = iota
	StateIterating
	StateConverged
	StateIterationLimitReached
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateIterating:
		return "iterating"
	case StateConverged:
		return "converged"
	case StateIterationLimitReached:
		return "iteration_limit_reached"
	default:
		return fmt.Sprintf("unknown_state_%d", int(s))
	}
}

// Terminal returns whether the optimizer has stopped.
func (s State) Terminal() bool {
	return s == StateConverged || s == StateIterationLimitReached
}

// ErrOptimizerFinished is returned by Step once the optimizer is in a terminal state.
var ErrOptimizerFinished = errors.New("optimizer already reached a terminal state")

// Iteration records the forward pass evaluated by one optimizer step.
type Iteration struct {
	// Index counts iterations from 1.
	Index         int
	Anchors       [][]float64
	Path          [][]float64
	Points        [][]r3.Vector
	SDF           [][]float64
	MinSDF        float64
	LengthCost    float64
	CollisionCost float64
	TotalCost     float64
	GradientNorm  float64
}

// ID names the iteration for visualization output.
func (it *Iteration) ID() string {
	return fmt.Sprintf("path_%d", it.Index)
}

// Result is the outcome of a finished optimization: the last evaluated path and how the run ended.
type Result struct {
	State      State
	Converged  bool
	Iterations int
	*Iteration
	// History holds every iteration when RecordHistory is set.
	History []*Iteration
}

// Optimizer moves the free anchors of a spline path between fixed start and target configurations.
type Optimizer struct {
	model   kinematics.Model
	oracle  sdf.Oracle
	opts    *OptimizerOptions
	logger  logging.Logger
	weights *spline.Weights

	start, target []float64
	free          [][]float64

	state     State
	iteration int
	last      *Iteration
	history   []*Iteration
}

// NewOptimizer creates an optimizer whose free anchors lie evenly spaced on the straight line from start
// to target.
func NewOptimizer(
	model kinematics.Model,
	oracle sdf.Oracle,
	start, target []float64,
	opts *OptimizerOptions,
	logger logging.Logger,
) (*Optimizer, error) {
	if opts == nil {
		opts = NewBasicOptimizerOptions()
	}
	if logger == nil {
		logger = logging.NewBlankLogger("optimizer")
	}
	if err := opts.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid optimizer options")
	}
	if len(start) != model.DoF() {
		return nil, kinematics.NewIncorrectDoFError(len(start), model.DoF())
	}
	if len(target) != model.DoF() {
		return nil, kinematics.NewIncorrectDoFError(len(target), model.DoF())
	}
	for _, v := range append(append([]float64(nil), start...), target...) {
		if !utils.IsFinite(v) {
			return nil, errors.Errorf("start and target must be finite, got %v and %v", start, target)
		}
	}

	numAnchors := opts.NumFreeAnchors + 2
	anchorParams := utils.Linspace(0, 1, numAnchors)
	weights, err := spline.NewWeights(anchorParams, utils.Linspace(0, 1, opts.NumSamples))
	if err != nil {
		return nil, err
	}
	free := make([][]float64, opts.NumFreeAnchors)
	for i := range free {
		free[i] = utils.LerpSlices(start, target, anchorParams[i+1])
	}

	return &Optimizer{
		model:   model,
		oracle:  oracle,
		opts:    opts,
		logger:  logger,
		weights: weights,
		start:   append([]float64(nil), start...),
		target:  append([]float64(nil), target...),
		free:    free,
		state:   StateInitialized,
	}, nil
}

// State returns the current state.
func (o *Optimizer) State() State {
	return o.state
}

// Anchors returns the full anchor sequence: start, free anchors, target.
func (o *Optimizer) Anchors() [][]float64 {
	anchors := make([][]float64, 0, len(o.free)+2)
	anchors = append(anchors, append([]float64(nil), o.start...))
	for _, f := range o.free {
		anchors = append(anchors, append([]float64(nil), f...))
	}
	return append(anchors, append([]float64(nil), o.target...))
}

// Step runs one iteration: it evaluates the path through the current anchors, decides whether the run is
// over, and otherwise takes a gradient descent step on the free anchors.
func (o *Optimizer) Step(ctx context.Context) (*Iteration, error) {
	if o.state.Terminal() {
		return nil, ErrOptimizerFinished
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o.state = StateIterating

	it, anchorGrads, err := o.evaluate(ctx)
	if err != nil {
		return nil, err
	}
	o.iteration++
	it.Index = o.iteration
	o.last = it
	if o.opts.RecordHistory {
		o.history = append(o.history, it)
	}

	o.logger.Debugw("iteration",
		"iteration", it.Index,
		"cost", it.TotalCost,
		"length_cost", it.LengthCost,
		"collision_cost", it.CollisionCost,
		"min_sdf", it.MinSDF,
	)

	switch {
	case it.MinSDF >= o.opts.Clearance:
		o.state = StateConverged
	case o.iteration >= o.opts.MaxIterations:
		o.state = StateIterationLimitReached
	default:
		for i := range o.free {
			floats.AddScaled(o.free[i], -o.opts.LearningRate, anchorGrads[i+1])
		}
	}
	return it, nil
}

// Run steps until the optimizer reaches a terminal state. Reaching the iteration limit is not an error.
func (o *Optimizer) Run(ctx context.Context) (*Result, error) {
	for !o.state.Terminal() {
		if _, err := o.Step(ctx); err != nil {
			return nil, err
		}
	}
	return o.Result()
}

// Result returns the outcome once the optimizer has finished.
func (o *Optimizer) Result() (*Result, error) {
	if !o.state.Terminal() {
		return nil, errors.Errorf("optimizer has not finished, state is %s", o.state)
	}
	return &Result{
		State:      o.state,
		Converged:  o.state == StateConverged,
		Iterations: o.iteration,
		Iteration:  o.last,
		History:    o.history,
	}, nil
}

// evaluate runs the forward pass through the current anchors and backpropagates the total cost to every
// anchor.
func (o *Optimizer) evaluate(ctx context.Context) (*Iteration, [][]float64, error) {
	anchors := o.Anchors()
	path, err := o.weights.Apply(anchors)
	if err != nil {
		return nil, nil, err
	}
	points, err := o.model.Sample(path)
	if err != nil {
		return nil, nil, err
	}

	lengthCost, lengthGrads := PathLength(points, o.opts.LengthEpsilon)
	if o.opts.SumLengthOverPoints {
		k := float64(o.model.NumPoints())
		lengthCost *= k
		for _, row := range lengthGrads {
			for i := range row {
				row[i] = row[i].Mul(k)
			}
		}
	}
	collision, err := EvaluateCollisionWithGradient(ctx, o.oracle, points, o.opts.GradientStep)
	if err != nil {
		return nil, nil, err
	}

	configGrads := make([][]float64, len(path))
	for q := range path {
		pointGrads := make([]r3.Vector, len(points[q]))
		for k := range pointGrads {
			pointGrads[k] = lengthGrads[q][k].Add(collision.PointGrads[q][k].Mul(o.opts.CollisionWeight))
		}
		if configGrads[q], err = o.model.Gradient(path[q], pointGrads); err != nil {
			return nil, nil, err
		}
	}
	anchorGrads, err := o.weights.Backpropagate(configGrads)
	if err != nil {
		return nil, nil, err
	}

	gradNorm := 0.
	for i := 1; i < len(anchorGrads)-1; i++ {
		gradNorm += floats.Dot(anchorGrads[i], anchorGrads[i])
	}

	return &Iteration{
		Anchors:       anchors,
		Path:          path,
		Points:        points,
		SDF:           collision.SDF,
		MinSDF:        collision.MinSDFFrom(o.opts.IgnoredLeadingPoints),
		LengthCost:    lengthCost,
		CollisionCost: collision.Cost,
		TotalCost:     lengthCost + o.opts.CollisionWeight*collision.Cost,
		GradientNorm:  math.Sqrt(gradNorm),
	}, anchorGrads, nil
}
