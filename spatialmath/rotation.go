package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
)

// below this angle the closed-form coefficients are replaced by their Taylor expansions.
const smallAngle = 1e-4

// RotationMatrix is a 3x3 rotation matrix stored in row-major order.
type RotationMatrix struct {
	mat [9]float64
}

// NewRotationMatrix creates a rotation matrix from nine row-major values.
func NewRotationMatrix(m [9]float64) *RotationMatrix {
	return &RotationMatrix{m}
}

// RotVecToRotationMatrix converts a rotation vector (axis scaled by angle) to a rotation matrix with the
// Rodrigues formula.
func RotVecToRotationMatrix(rv r3.Vector) *RotationMatrix {
	rm := &RotationMatrix{}
	for c, e := range []r3.Vector{{X: 1}, {Y: 1}, {Z: 1}} {
		col := RotateByRotVec(rv, e)
		rm.mat[c] = col.X
		rm.mat[3+c] = col.Y
		rm.mat[6+c] = col.Z
	}
	return rm
}

// RotateByRotVec rotates v by the rotation vector rv without building a matrix:
// R v = v + A (r x v) + B r x (r x v), A = sin(t)/t, B = (1-cos(t))/t^2.
func RotateByRotVec(rv, v r3.Vector) r3.Vector {
	theta2 := rv.Norm2()
	theta := math.Sqrt(theta2)
	var a, b float64
	if theta < smallAngle {
		a = 1 - theta2/6
		b = 0.5 - theta2/24
	} else {
		a = math.Sin(theta) / theta
		b = (1 - math.Cos(theta)) / theta2
	}
	rxv := rv.Cross(v)
	return v.Add(rxv.Mul(a)).Add(rv.Cross(rxv).Mul(b))
}

// RightJacobianTransposeMul returns J_r(rv)^T v, where J_r is the right Jacobian of SO(3).
// For a body point p, d(R p)/d(rv) = -R [p]x J_r(rv), so the gradient of a scalar cost with respect to
// the rotation vector is J_r^T (p x R^T g) for a point gradient g.
func RightJacobianTransposeMul(rv, v r3.Vector) r3.Vector {
	theta2 := rv.Norm2()
	theta := math.Sqrt(theta2)
	var a, b float64
	if theta < smallAngle {
		a = 0.5 - theta2/24
		b = 1./6 - theta2/120
	} else {
		a = (1 - math.Cos(theta)) / theta2
		b = (theta - math.Sin(theta)) / (theta2 * theta)
	}
	// J_r = I - a [r]x + b [r]x^2, and [r]x is skew-symmetric
	rxv := rv.Cross(v)
	return v.Add(rxv.Mul(a)).Add(rv.Cross(rxv).Mul(b))
}

// At returns the value at row, col.
func (rm *RotationMatrix) At(row, col int) float64 {
	return rm.mat[row*3+col]
}

// Row returns the row at the given index.
func (rm *RotationMatrix) Row(row int) r3.Vector {
	return r3.Vector{X: rm.mat[row*3], Y: rm.mat[row*3+1], Z: rm.mat[row*3+2]}
}

// Col returns the column at the given index.
func (rm *RotationMatrix) Col(col int) r3.Vector {
	return r3.Vector{X: rm.mat[col], Y: rm.mat[3+col], Z: rm.mat[6+col]}
}

// Mul returns R v.
func (rm *RotationMatrix) Mul(v r3.Vector) r3.Vector {
	return r3.Vector{X: rm.Row(0).Dot(v), Y: rm.Row(1).Dot(v), Z: rm.Row(2).Dot(v)}
}

// TransposeMul returns R^T v, the inverse rotation applied to v.
func (rm *RotationMatrix) TransposeMul(v r3.Vector) r3.Vector {
	return r3.Vector{X: rm.Col(0).Dot(v), Y: rm.Col(1).Dot(v), Z: rm.Col(2).Dot(v)}
}
