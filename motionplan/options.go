package motionplan

import (
	"encoding/json"
	"math"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/trajopt/splineplan/sdf"
)

// default values for optimizer options.
const (
	// Interior anchors moved by the optimizer; the start and target anchors are fixed.
	defaultNumFreeAnchors = 3

	// Points at which the spline is evaluated every iteration.
	defaultNumSamples = 100

	defaultLearningRate = 0.05

	// Multiplier of the collision cost in the total cost.
	defaultCollisionWeight = 10.

	// A path is accepted once every evaluated point is at least this far from obstacles.
	defaultClearance = 0.

	defaultMaxIterations = 13

	// Floor of each squared coordinate difference in the length cost.
	defaultLengthEpsilon = 1e-12
)

// NewBasicOptimizerOptions specifies a set of basic options for the optimizer.
func NewBasicOptimizerOptions() *OptimizerOptions {
	return &OptimizerOptions{
		NumFreeAnchors:  defaultNumFreeAnchors,
		NumSamples:      defaultNumSamples,
		LearningRate:    defaultLearningRate,
		CollisionWeight: defaultCollisionWeight,
		Clearance:       defaultClearance,
		MaxIterations:   defaultMaxIterations,
		LengthEpsilon:   defaultLengthEpsilon,
		GradientStep:    sdf.DefaultGradientStep,
	}
}

// NewDroneOptions returns the options tuned for a rigid body flying between obstacles. The length cost
// is summed over the body points.
func NewDroneOptions() *OptimizerOptions {
	opt := NewBasicOptimizerOptions()
	opt.Clearance = 0.1
	opt.SumLengthOverPoints = true
	return opt
}

// NewManipulatorOptions returns the options tuned for an arm mounted on a table. The first two sampled
// points sit on the mount and never clear it, so they are left out of the clearance test.
func NewManipulatorOptions() *OptimizerOptions {
	opt := NewBasicOptimizerOptions()
	opt.LearningRate = 0.5
	opt.Clearance = 0
	opt.MaxIterations = 11
	opt.IgnoredLeadingPoints = 2
	return opt
}

// OptimizerOptions are a set of options to be passed to an Optimizer.
type OptimizerOptions struct {
	// Number of interior spline anchors that are optimized.
	NumFreeAnchors int `json:"num_free_anchors"`

	// Number of evenly spaced parameters at which the path is sampled every iteration.
	NumSamples int `json:"num_samples"`

	// Step size of the gradient descent update.
	LearningRate float64 `json:"learning_rate"`

	// Weight of the collision cost against the length cost.
	CollisionWeight float64 `json:"collision_weight"`

	// The optimizer converges once the minimum field value over the path reaches this.
	Clearance float64 `json:"clearance"`

	// The optimizer stops after this many iterations whether or not it converged.
	MaxIterations int `json:"max_iterations"`

	// Number of leading points of every sample left out of the clearance test.
	IgnoredLeadingPoints int `json:"ignored_leading_points"`

	// Floor of squared coordinate differences in the length cost.
	LengthEpsilon float64 `json:"length_epsilon"`

	// Sum the per-point path lengths instead of averaging them.
	SumLengthOverPoints bool `json:"sum_length_over_points"`

	// Central difference step for oracles without analytic gradients.
	GradientStep float64 `json:"fd_step"`

	// Keep every iteration in the result.
	RecordHistory bool `json:"record_history"`
}

// UnmarshalJSON fills unset fields with their default values.
func (opt *OptimizerOptions) UnmarshalJSON(data []byte) error {
	type optionsAlias OptimizerOptions
	defaults := optionsAlias(*NewBasicOptimizerOptions())
	if err := json.Unmarshal(data, &defaults); err != nil {
		return err
	}
	*opt = OptimizerOptions(defaults)
	return nil
}

// Validate returns every problem with the options.
func (opt *OptimizerOptions) Validate() error {
	var errs error
	if opt.NumFreeAnchors < 0 {
		errs = multierr.Append(errs, errors.Errorf("num_free_anchors can't be negative, got %d", opt.NumFreeAnchors))
	}
	if opt.NumSamples < 2 {
		errs = multierr.Append(errs, errors.Errorf("num_samples must be at least 2, got %d", opt.NumSamples))
	}
	if !(opt.LearningRate > 0) || math.IsInf(opt.LearningRate, 0) {
		errs = multierr.Append(errs, errors.Errorf("learning_rate must be positive, got %v", opt.LearningRate))
	}
	if opt.CollisionWeight < 0 || math.IsNaN(opt.CollisionWeight) {
		errs = multierr.Append(errs, errors.Errorf("collision_weight can't be negative, got %v", opt.CollisionWeight))
	}
	if math.IsNaN(opt.Clearance) {
		errs = multierr.Append(errs, errors.New("clearance can't be NaN"))
	}
	if opt.MaxIterations < 1 {
		errs = multierr.Append(errs, errors.Errorf("max_iterations must be at least 1, got %d", opt.MaxIterations))
	}
	if opt.IgnoredLeadingPoints < 0 {
		errs = multierr.Append(errs, errors.Errorf("ignored_leading_points can't be negative, got %d", opt.IgnoredLeadingPoints))
	}
	if !(opt.LengthEpsilon > 0) {
		errs = multierr.Append(errs, errors.Errorf("length_epsilon must be positive, got %v", opt.LengthEpsilon))
	}
	if !(opt.GradientStep > 0) {
		errs = multierr.Append(errs, errors.Errorf("fd_step must be positive, got %v", opt.GradientStep))
	}
	return errs
}
