// Package kinematics maps robot configurations to world-frame sample points.
package kinematics

import (
	"github.com/golang/geo/r3"
)

// Model is an embodiment whose configurations can be turned into a fixed number of world-frame points.
type Model interface {
	Name() string
	// DoF is the length of a configuration vector.
	DoF() int
	// NumPoints is the number of points every configuration is sampled into.
	NumPoints() int
	// Sample maps a batch of configurations to a batch of point sets, one per configuration, each of length
	// NumPoints.
	Sample(configs [][]float64) ([][]r3.Vector, error)
	// Gradient returns the vector-Jacobian product J(config)^T g, given one gradient per sampled point.
	Gradient(config []float64, pointGrads []r3.Vector) ([]float64, error)
}

// sampleEach checks every configuration has the model's DoF, then samples each with one.
func sampleEach(m Model, configs [][]float64, one func([]float64) []r3.Vector) ([][]r3.Vector, error) {
	for _, c := range configs {
		if len(c) != m.DoF() {
			return nil, NewIncorrectDoFError(len(c), m.DoF())
		}
	}
	out := make([][]r3.Vector, 0, len(configs))
	for _, c := range configs {
		out = append(out, one(c))
	}
	return out, nil
}
