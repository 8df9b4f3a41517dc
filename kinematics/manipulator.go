package kinematics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/trajopt/splineplan/utils"
)

// DefaultSamplesPerMetre is the link sampling density used when none is configured.
const DefaultSamplesPerMetre = 25.

// DHParam holds the Denavit-Hartenberg parameters of one revolute joint and the link that follows it.
// The joint angle fed to the chain is Scale*q + Offset.
type DHParam struct {
	A      float64
	D      float64
	Alpha  float64
	Scale  float64
	Offset float64
}

// Transform returns the homogeneous transform Rz(theta) Tz(d) Tx(a) Rx(alpha) for joint value q.
func (dh DHParam) Transform(q float64) mgl64.Mat4 {
	theta := dh.Scale*q + dh.Offset
	ct, st := math.Cos(theta), math.Sin(theta)
	ca, sa := math.Cos(dh.Alpha), math.Sin(dh.Alpha)

	m := mgl64.Ident4()
	m.Set(0, 0, ct)
	m.Set(0, 1, -st*ca)
	m.Set(0, 2, st*sa)
	m.Set(0, 3, dh.A*ct)

	m.Set(1, 0, st)
	m.Set(1, 1, ct*ca)
	m.Set(1, 2, -ct*sa)
	m.Set(1, 3, dh.A*st)

	m.Set(2, 1, sa)
	m.Set(2, 2, ca)
	m.Set(2, 3, dh.D)
	return m
}

// LinkLength is the distance between the origin of this joint and the next, which does not depend on
// the joint value.
func (dh DHParam) LinkLength() float64 {
	return math.Hypot(dh.A, dh.D)
}

// SerialManipulator is a chain of revolute joints described by DH parameters and sampled into evenly spaced
// points along every link.
type SerialManipulator struct {
	name          string
	params        []DHParam
	base          mgl64.Mat4
	density       float64
	pointsPerLink []int
	numPoints     int
}

// NewSerialManipulator builds a manipulator. The base transform places the first joint in the world.
func NewSerialManipulator(name string, params []DHParam, base mgl64.Mat4, samplesPerMetre float64) (*SerialManipulator, error) {
	if len(params) == 0 {
		return nil, errors.New("manipulator needs at least one joint")
	}
	if !(samplesPerMetre > 0) || math.IsInf(samplesPerMetre, 0) {
		return nil, errors.Errorf("samples per metre must be positive and finite, got %v", samplesPerMetre)
	}
	sm := &SerialManipulator{
		name:          name,
		params:        append([]DHParam(nil), params...),
		base:          base,
		density:       samplesPerMetre,
		pointsPerLink: make([]int, len(params)),
	}
	for i, dh := range params {
		l := dh.LinkLength()
		n := int(math.Round(l * samplesPerMetre))
		if l > 0 {
			n = utils.MaxInt(n, 1)
		}
		sm.pointsPerLink[i] = n
		sm.numPoints += n
	}
	// end effector
	sm.numPoints++
	return sm, nil
}

// Name returns the name of the manipulator.
func (sm *SerialManipulator) Name() string {
	return sm.name
}

// DoF returns the number of joints.
func (sm *SerialManipulator) DoF() int {
	return len(sm.params)
}

// NumPoints returns the number of points sampled along the whole chain.
func (sm *SerialManipulator) NumPoints() int {
	return sm.numPoints
}

// DHParams returns a copy of the joint parameters.
func (sm *SerialManipulator) DHParams() []DHParam {
	return append([]DHParam(nil), sm.params...)
}

// Base returns the base transform.
func (sm *SerialManipulator) Base() mgl64.Mat4 {
	return sm.base
}

// frames returns the transform of every joint frame, from the base to the end effector.
func (sm *SerialManipulator) frames(config []float64) []mgl64.Mat4 {
	out := make([]mgl64.Mat4, 0, len(sm.params)+1)
	cur := sm.base
	out = append(out, cur)
	for i, dh := range sm.params {
		cur = cur.Mul4(dh.Transform(config[i]))
		out = append(out, cur)
	}
	return out
}

func origin(m mgl64.Mat4) r3.Vector {
	return r3.Vector{X: m.At(0, 3), Y: m.At(1, 3), Z: m.At(2, 3)}
}

func zAxis(m mgl64.Mat4) r3.Vector {
	return r3.Vector{X: m.At(0, 2), Y: m.At(1, 2), Z: m.At(2, 2)}
}

// LinkPositions returns the world position of every joint origin followed by the end effector.
func (sm *SerialManipulator) LinkPositions(config []float64) ([]r3.Vector, error) {
	if len(config) != sm.DoF() {
		return nil, NewIncorrectDoFError(len(config), sm.DoF())
	}
	frames := sm.frames(config)
	out := make([]r3.Vector, 0, len(frames))
	for _, f := range frames {
		out = append(out, origin(f))
	}
	return out, nil
}

// EndEffector returns the pose of the last frame as a homogeneous transform.
func (sm *SerialManipulator) EndEffector(config []float64) (mgl64.Mat4, error) {
	if len(config) != sm.DoF() {
		return mgl64.Mat4{}, NewIncorrectDoFError(len(config), sm.DoF())
	}
	frames := sm.frames(config)
	return frames[len(frames)-1], nil
}

// Sample returns, for every configuration, the points sampled along each link followed by the end effector.
func (sm *SerialManipulator) Sample(configs [][]float64) ([][]r3.Vector, error) {
	return sampleEach(sm, configs, func(c []float64) []r3.Vector {
		pts, _ := sm.samplePoints(sm.frames(c))
		return pts
	})
}

// samplePoints also returns the link each point lies on; the end effector belongs to the last link.
func (sm *SerialManipulator) samplePoints(frames []mgl64.Mat4) ([]r3.Vector, []int) {
	pts := make([]r3.Vector, 0, sm.numPoints)
	links := make([]int, 0, sm.numPoints)
	for i, n := range sm.pointsPerLink {
		start, end := origin(frames[i]), origin(frames[i+1])
		for k := 0; k < n; k++ {
			pts = append(pts, start.Add(end.Sub(start).Mul(float64(k)/float64(n))))
			links = append(links, i)
		}
	}
	pts = append(pts, origin(frames[len(frames)-1]))
	links = append(links, len(sm.params)-1)
	return pts, links
}

// Gradient returns the gradient with respect to the joint values of a cost whose gradient with respect
// to every sampled point is given. Joint i moves every point on link i or later by
// scale_i * z_i x (p - o_i).
func (sm *SerialManipulator) Gradient(config []float64, pointGrads []r3.Vector) ([]float64, error) {
	if len(config) != sm.DoF() {
		return nil, NewIncorrectDoFError(len(config), sm.DoF())
	}
	if len(pointGrads) != sm.numPoints {
		return nil, NewIncorrectPointGradientsError(len(pointGrads), sm.numPoints)
	}
	frames := sm.frames(config)
	pts, links := sm.samplePoints(frames)
	grad := make([]float64, sm.DoF())
	for i, dh := range sm.params {
		o := origin(frames[i])
		var moment r3.Vector
		for k, p := range pts {
			if links[k] < i {
				continue
			}
			moment = moment.Add(p.Sub(o).Cross(pointGrads[k]))
		}
		grad[i] = dh.Scale * zAxis(frames[i]).Dot(moment)
	}
	return grad, nil
}
