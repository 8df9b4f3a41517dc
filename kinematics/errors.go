package kinematics

import "github.com/pkg/errors"

// ErrNoModelInformation is used when there is no model information.
var ErrNoModelInformation = errors.New("no model information")

// NewIncorrectDoFError returns an error indicating that the length of a configuration does not match the
// model's degrees of freedom.
func NewIncorrectDoFError(actual, expected int) error {
	return errors.Errorf("number of inputs does not match degrees of freedom. Expected %d, got %d", expected, actual)
}

// NewIncorrectPointGradientsError is returned when a gradient does not hold one entry per sampled point.
func NewIncorrectPointGradientsError(actual, expected int) error {
	return errors.Errorf("expected %d point gradients, got %d", expected, actual)
}

// NewUnsupportedModelTypeError is returned when a config names an unknown embodiment.
func NewUnsupportedModelTypeError(modelType string) error {
	return errors.Errorf("unsupported model type: %q, supported types are %q and %q", modelType, RigidBodyType, ManipulatorType)
}
