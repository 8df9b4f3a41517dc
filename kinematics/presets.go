package kinematics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Kinova Mico link dimensions, in metres.
const (
	micoD1 = 0.2755
	micoD2 = 0.29
	micoD3 = 0.1233
	micoD4 = 0.0741
	micoD5 = 0.0741
	micoD6 = 0.16
	micoE2 = 0.007
)

// MicoDHParams returns the DH table of the six joint Kinova Mico arm.
func MicoDHParams() []DHParam {
	// the wrist joints are tilted by 60 degrees
	aa := math.Pi / 6
	ca := math.Sin(aa) / math.Sin(2*aa)
	d4b := micoD3 + ca*micoD4
	d5b := ca * (micoD4 + micoD5)
	d6b := ca*micoD5 + micoD6

	a := []float64{0, micoD2, 0, 0, 0, 0}
	d := []float64{micoD1, 0, -micoE2, -d4b, -d5b, -d6b}
	alpha := []float64{math.Pi / 2, math.Pi, math.Pi / 2, 2 * aa, 2 * aa, math.Pi}
	scale := []float64{-1, 1, 1, 1, 1, 1}
	offset := []float64{0, -math.Pi / 2, math.Pi / 2, 0, -math.Pi, math.Pi / 2}

	params := make([]DHParam, len(a))
	for i := range params {
		params[i] = DHParam{A: a[i], D: d[i], Alpha: alpha[i], Scale: scale[i], Offset: offset[i]}
	}
	return params
}

// MicoTableBase is the base transform of the Mico mounted on the demo table.
func MicoTableBase() mgl64.Mat4 {
	return mgl64.Translate3D(0.84999895, -0.02500308, 0.70000124)
}

// NewMico returns a Kinova Mico sampled at the default density.
func NewMico(base mgl64.Mat4) (*SerialManipulator, error) {
	return NewSerialManipulator("mico", MicoDHParams(), base, DefaultSamplesPerMetre)
}

// NewSimplePlanar returns a two link planar arm with half metre links, hanging along -y at zero.
func NewSimplePlanar(samplesPerMetre float64) (*SerialManipulator, error) {
	params := []DHParam{
		{A: 0.5, Scale: 1, Offset: -math.Pi / 2},
		{A: 0.5, Scale: 1},
	}
	return NewSerialManipulator("simple_planar", params, mgl64.Ident4(), samplesPerMetre)
}
