// Package spatialmath defines the pose math shared by the kinematic models.
package spatialmath

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"

	"github.com/trajopt/splineplan/utils"
)

// PoseDoF is the length of the vector form of a Pose: three translation and three rotation vector components.
const PoseDoF = 6

// Pose is a rigid transform: a rotation given as a rotation vector followed by a translation.
type Pose struct {
	Point  r3.Vector
	RotVec r3.Vector
}

// NewZeroPose returns the identity pose.
func NewZeroPose() Pose {
	return Pose{}
}

// NewPose creates a pose from a translation and rotation vector.
func NewPose(point, rotVec r3.Vector) Pose {
	return Pose{Point: point, RotVec: rotVec}
}

// NewPoseFromSlice creates a pose from its vector form [x, y, z, rx, ry, rz].
func NewPoseFromSlice(v []float64) (Pose, error) {
	if len(v) != PoseDoF {
		return Pose{}, errors.Errorf("pose vector must have %d elements, got %d", PoseDoF, len(v))
	}
	return Pose{
		Point:  r3.Vector{X: v[0], Y: v[1], Z: v[2]},
		RotVec: r3.Vector{X: v[3], Y: v[4], Z: v[5]},
	}, nil
}

// NewPoseFromMat4 converts a homogeneous transform into a pose.
func NewPoseFromMat4(m mgl64.Mat4) Pose {
	q := mgl64.Mat4ToQuat(m)
	r4 := QuatToR4AA(quat.Number{Real: q.W, Imag: q.X(), Jmag: q.Y(), Kmag: q.Z()})
	return Pose{
		Point:  r3.Vector{X: m.At(0, 3), Y: m.At(1, 3), Z: m.At(2, 3)},
		RotVec: r4.ToR3(),
	}
}

// Slice returns the vector form [x, y, z, rx, ry, rz].
func (p Pose) Slice() []float64 {
	return []float64{p.Point.X, p.Point.Y, p.Point.Z, p.RotVec.X, p.RotVec.Y, p.RotVec.Z}
}

// RotationMatrix returns the rotation part of the pose.
func (p Pose) RotationMatrix() *RotationMatrix {
	return RotVecToRotationMatrix(p.RotVec)
}

// Quaternion returns the rotation part of the pose as a unit quaternion.
func (p Pose) Quaternion() quat.Number {
	return R3ToR4(p.RotVec).ToQuat()
}

// TransformPoint maps a point from the pose's frame into the parent frame: R pt + t.
func (p Pose) TransformPoint(pt r3.Vector) r3.Vector {
	return RotateByRotVec(p.RotVec, pt).Add(p.Point)
}

// Mat4 returns the pose as a homogeneous transform; its top three rows are the 3x4 rotation and
// translation matrix.
func (p Pose) Mat4() mgl64.Mat4 {
	m := mgl64.Ident4()
	rm := p.RotationMatrix()
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m.Set(r, c, rm.At(r, c))
		}
	}
	m.Set(0, 3, p.Point.X)
	m.Set(1, 3, p.Point.Y)
	m.Set(2, 3, p.Point.Z)
	return m
}

// PoseAlmostEqual returns whether two poses describe the same transform within a small tolerance.
func PoseAlmostEqual(a, b Pose) bool {
	const epsilon = 1e-6
	if !R3VectorAlmostEqual(a.Point, b.Point, epsilon) {
		return false
	}
	ma, mb := a.RotationMatrix(), b.RotationMatrix()
	for i := 0; i < 9; i++ {
		if !utils.Float64AlmostEqual(ma.mat[i], mb.mat[i], epsilon) {
			return false
		}
	}
	return true
}

// R3VectorAlmostEqual compares two r3.Vector objects and returns if the all elementwise differences are less than epsilon.
func R3VectorAlmostEqual(a, b r3.Vector, epsilon float64) bool {
	return utils.Float64AlmostEqual(a.X, b.X, epsilon) &&
		utils.Float64AlmostEqual(a.Y, b.Y, epsilon) &&
		utils.Float64AlmostEqual(a.Z, b.Z, epsilon)
}
