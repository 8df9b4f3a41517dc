package kinematics

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/trajopt/splineplan/spatialmath"
)

// RigidBody is a free-flying body, such as a drone, described by a set of points fixed in its own frame.
// Its configuration is a pose vector [x, y, z, rx, ry, rz].
type RigidBody struct {
	name   string
	points []r3.Vector
}

// NewRigidBody creates a rigid body from points given relative to its origin.
func NewRigidBody(name string, bodyPoints []r3.Vector) (*RigidBody, error) {
	if len(bodyPoints) == 0 {
		return nil, errors.New("rigid body needs at least one body point")
	}
	return &RigidBody{name: name, points: append([]r3.Vector(nil), bodyPoints...)}, nil
}

// Name returns the name of the body.
func (rb *RigidBody) Name() string {
	return rb.name
}

// DoF returns the pose vector length.
func (rb *RigidBody) DoF() int {
	return spatialmath.PoseDoF
}

// NumPoints returns the number of body points.
func (rb *RigidBody) NumPoints() int {
	return len(rb.points)
}

// BodyPoints returns a copy of the points in the body frame.
func (rb *RigidBody) BodyPoints() []r3.Vector {
	return append([]r3.Vector(nil), rb.points...)
}

// Sample returns R p + t for every body point and every pose.
func (rb *RigidBody) Sample(configs [][]float64) ([][]r3.Vector, error) {
	return sampleEach(rb, configs, func(c []float64) []r3.Vector {
		pose := spatialmath.NewPose(r3.Vector{X: c[0], Y: c[1], Z: c[2]}, r3.Vector{X: c[3], Y: c[4], Z: c[5]})
		return rb.transformPoints(pose.TransformPoint)
	})
}

// SampleTransforms is Sample for poses given as homogeneous transforms.
func (rb *RigidBody) SampleTransforms(transforms []mgl64.Mat4) [][]r3.Vector {
	out := make([][]r3.Vector, 0, len(transforms))
	for _, m := range transforms {
		out = append(out, rb.transformPoints(func(p r3.Vector) r3.Vector {
			v := m.Mul4x1(mgl64.Vec4{p.X, p.Y, p.Z, 1})
			return r3.Vector{X: v[0], Y: v[1], Z: v[2]}
		}))
	}
	return out
}

func (rb *RigidBody) transformPoints(tf func(r3.Vector) r3.Vector) []r3.Vector {
	pts := make([]r3.Vector, 0, len(rb.points))
	for _, p := range rb.points {
		pts = append(pts, tf(p))
	}
	return pts
}

// Gradient returns the gradient with respect to the pose vector of a cost whose gradient with respect to
// every sampled point is given.
func (rb *RigidBody) Gradient(config []float64, pointGrads []r3.Vector) ([]float64, error) {
	if len(pointGrads) != len(rb.points) {
		return nil, NewIncorrectPointGradientsError(len(pointGrads), len(rb.points))
	}
	pose, err := spatialmath.NewPoseFromSlice(config)
	if err != nil {
		return nil, NewIncorrectDoFError(len(config), rb.DoF())
	}
	rm := pose.RotationMatrix()
	var dt, moment r3.Vector
	for i, g := range pointGrads {
		dt = dt.Add(g)
		moment = moment.Add(rb.points[i].Cross(rm.TransposeMul(g)))
	}
	dr := spatialmath.RightJacobianTransposeMul(pose.RotVec, moment)
	return []float64{dt.X, dt.Y, dt.Z, dr.X, dr.Y, dr.Z}, nil
}
