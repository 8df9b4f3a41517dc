package sdf

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/trajopt/splineplan/spatialmath"
)

// Primitive is a solid obstacle with a closed form signed distance.
type Primitive interface {
	Distance(pt r3.Vector) float64
	// Gradient is the unit direction in which Distance grows fastest; zero where it is undefined.
	Gradient(pt r3.Vector) r3.Vector
}

// Sphere is a ball obstacle.
type Sphere struct {
	Center r3.Vector
	Radius float64
}

// NewSphere creates a sphere, which must have a positive radius.
func NewSphere(center r3.Vector, radius float64) (*Sphere, error) {
	if radius <= 0 {
		return nil, errors.Errorf("sphere radius must be positive, got %v", radius)
	}
	return &Sphere{Center: center, Radius: radius}, nil
}

// Distance returns the signed distance from pt to the surface of the sphere.
func (s *Sphere) Distance(pt r3.Vector) float64 {
	return pt.Sub(s.Center).Norm() - s.Radius
}

// Gradient returns the outward radial direction.
func (s *Sphere) Gradient(pt r3.Vector) r3.Vector {
	d := pt.Sub(s.Center)
	if d.Norm2() == 0 {
		return r3.Vector{}
	}
	return d.Normalize()
}

// Box is an oriented box obstacle.
type Box struct {
	center   spatialmath.Pose
	rm       *spatialmath.RotationMatrix
	halfSize [3]float64
}

// NewBox creates a box centered at the pose with the given side lengths.
func NewBox(pose spatialmath.Pose, dims r3.Vector) (*Box, error) {
	if dims.X <= 0 || dims.Y <= 0 || dims.Z <= 0 {
		return nil, errors.Errorf("box dimensions must be positive, got %v", dims)
	}
	return &Box{
		center:   pose,
		rm:       pose.RotationMatrix(),
		halfSize: [3]float64{dims.X / 2, dims.Y / 2, dims.Z / 2},
	}, nil
}

// Pose returns the pose of the box center.
func (b *Box) Pose() spatialmath.Pose {
	return b.center
}

// closestPoint returns the closest point on the box to pt
// Reference: https://github.com/gszauer/GamePhysicsCookbook/blob/a0b8ee0c39fed6d4b90bb6d2195004dfcf5a1115/Code/Geometry3D.cpp#L165
func (b *Box) closestPoint(pt r3.Vector) r3.Vector {
	result := b.center.Point
	direction := pt.Sub(result)
	for i := 0; i < 3; i++ {
		axis := b.rm.Col(i)
		distance := math.Max(-b.halfSize[i], math.Min(b.halfSize[i], direction.Dot(axis)))
		result = result.Add(axis.Mul(distance))
	}
	return result
}

// nearestFace returns the distance from an interior pt to the nearest face, and that face's outward normal.
func (b *Box) nearestFace(pt r3.Vector) (float64, r3.Vector) {
	direction := pt.Sub(b.center.Point)
	depth := math.Inf(1)
	var normal r3.Vector
	for i := 0; i < 3; i++ {
		axis := b.rm.Col(i)
		projection := direction.Dot(axis)
		if d := b.halfSize[i] - projection; d < depth {
			depth, normal = d, axis
		}
		if d := b.halfSize[i] + projection; d < depth {
			depth, normal = d, axis.Mul(-1)
		}
	}
	return depth, normal
}

// Distance returns the distance to the box surface, negative inside by the penetration depth.
func (b *Box) Distance(pt r3.Vector) float64 {
	closest := b.closestPoint(pt)
	if d := pt.Sub(closest).Norm(); d > 0 {
		return d
	}
	depth, _ := b.nearestFace(pt)
	return -depth
}

// Gradient returns the direction away from the nearest point of the surface.
func (b *Box) Gradient(pt r3.Vector) r3.Vector {
	closest := b.closestPoint(pt)
	if d := pt.Sub(closest); d.Norm2() > 0 {
		return d.Normalize()
	}
	_, normal := b.nearestFace(pt)
	return normal
}

// Plane is the half space below a plane: everything on the opposite side of its normal is solid.
type Plane struct {
	Point  r3.Vector
	Normal r3.Vector
}

// NewPlane creates a half space bounded by the plane through pt with the given normal.
func NewPlane(pt, normal r3.Vector) (*Plane, error) {
	if normal.Norm2() == 0 {
		return nil, errors.New("plane normal must be non-zero")
	}
	return &Plane{Point: pt, Normal: normal.Normalize()}, nil
}

// Distance returns the signed height of pt above the plane.
func (p *Plane) Distance(pt r3.Vector) float64 {
	return pt.Sub(p.Point).Dot(p.Normal)
}

// Gradient returns the plane normal.
func (p *Plane) Gradient(pt r3.Vector) r3.Vector {
	return p.Normal
}
