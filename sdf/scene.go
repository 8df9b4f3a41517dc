package sdf

import (
	"context"
	"encoding/json"
	"math"
	"os"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/trajopt/splineplan/spatialmath"
)

// DefaultMaxDistance truncates the field of a scene; it is also the distance reported by an empty scene.
const DefaultMaxDistance = 10.

// Scene is a field built from primitive obstacles. The distance at a point is the minimum over all
// primitives, truncated at the scene's maximum distance.
type Scene struct {
	primitives  []Primitive
	maxDistance float64
}

// NewScene creates a scene; a non-positive maxDistance selects DefaultMaxDistance.
func NewScene(maxDistance float64, primitives ...Primitive) *Scene {
	if maxDistance <= 0 {
		maxDistance = DefaultMaxDistance
	}
	return &Scene{primitives: primitives, maxDistance: maxDistance}
}

// Add adds obstacles to the scene.
func (s *Scene) Add(primitives ...Primitive) {
	s.primitives = append(s.primitives, primitives...)
}

// MaxDistance returns the truncation distance.
func (s *Scene) MaxDistance() float64 {
	return s.maxDistance
}

// Distance returns the field value at a single point.
func (s *Scene) Distance(pt r3.Vector) float64 {
	d, _ := s.nearest(pt)
	return d
}

func (s *Scene) nearest(pt r3.Vector) (float64, Primitive) {
	best := s.maxDistance
	var nearest Primitive
	for _, p := range s.primitives {
		if d := p.Distance(pt); d < best {
			best, nearest = d, p
		}
	}
	return best, nearest
}

// Distances implements Oracle.
func (s *Scene) Distances(ctx context.Context, points []r3.Vector) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]float64, len(points))
	for i, pt := range points {
		out[i] = s.Distance(pt)
	}
	return out, nil
}

// Gradients implements GradientOracle. Points beyond the truncation distance have a zero gradient.
func (s *Scene) Gradients(ctx context.Context, points []r3.Vector) ([]float64, []r3.Vector, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	dists := make([]float64, len(points))
	grads := make([]r3.Vector, len(points))
	for i, pt := range points {
		d, nearest := s.nearest(pt)
		dists[i] = d
		if nearest != nil {
			grads[i] = nearest.Gradient(pt)
		}
	}
	return dists, grads, nil
}

// SceneConfig is the JSON description of a Scene.
type SceneConfig struct {
	MaxDistance float64        `json:"max_distance,omitempty"`
	Spheres     []SphereConfig `json:"spheres,omitempty"`
	Boxes       []BoxConfig    `json:"boxes,omitempty"`
	Planes      []PlaneConfig  `json:"planes,omitempty"`
}

// SphereConfig describes a sphere.
type SphereConfig struct {
	Center [3]float64 `json:"center"`
	Radius float64    `json:"radius"`
}

// BoxConfig describes a box by its center, orientation as a rotation vector, and side lengths.
type BoxConfig struct {
	Center [3]float64 `json:"center"`
	RotVec [3]float64 `json:"rotation_vector,omitempty"`
	Dims   [3]float64 `json:"dims"`
}

// PlaneConfig describes a half space.
type PlaneConfig struct {
	Point  [3]float64 `json:"point"`
	Normal [3]float64 `json:"normal"`
}

func vec(v [3]float64) r3.Vector {
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}
}

// ParseConfig builds the scene, reporting every invalid obstacle.
func (cfg *SceneConfig) ParseConfig() (*Scene, error) {
	if cfg.MaxDistance < 0 || math.IsNaN(cfg.MaxDistance) {
		return nil, errors.Errorf("max_distance must not be negative, got %v", cfg.MaxDistance)
	}
	scene := NewScene(cfg.MaxDistance)
	var errs error
	for i, sc := range cfg.Spheres {
		sphere, err := NewSphere(vec(sc.Center), sc.Radius)
		if err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "sphere %d", i))
			continue
		}
		scene.Add(sphere)
	}
	for i, bc := range cfg.Boxes {
		box, err := NewBox(spatialmath.NewPose(vec(bc.Center), vec(bc.RotVec)), vec(bc.Dims))
		if err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "box %d", i))
			continue
		}
		scene.Add(box)
	}
	for i, pc := range cfg.Planes {
		plane, err := NewPlane(vec(pc.Point), vec(pc.Normal))
		if err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "plane %d", i))
			continue
		}
		scene.Add(plane)
	}
	if errs != nil {
		return nil, errs
	}
	return scene, nil
}

// UnmarshalSceneJSON parses a scene from JSON data.
func UnmarshalSceneJSON(data []byte) (*Scene, error) {
	cfg := &SceneConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal scene json")
	}
	return cfg.ParseConfig()
}

// ParseSceneJSONFile reads a scene from a JSON file.
func ParseSceneJSONFile(filename string) (*Scene, error) {
	//nolint:gosec
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read scene file")
	}
	return UnmarshalSceneJSON(data)
}
