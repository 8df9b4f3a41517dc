package motionplan

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/trajopt/splineplan/utils"
)

// PathLength returns the length of the path traced by every body point, averaged over the body points,
// together with its gradient with respect to every point. points is indexed [path sample][body point].
//
// Each squared coordinate difference between consecutive samples is floored at epsilon before the square
// root, so coincident samples contribute a tiny constant length and a zero gradient instead of NaN.
func PathLength(points [][]r3.Vector, epsilon float64) (float64, [][]r3.Vector) {
	grads := make([][]r3.Vector, len(points))
	for i := range points {
		grads[i] = make([]r3.Vector, len(points[i]))
	}
	if len(points) < 2 || len(points[0]) == 0 {
		return 0, grads
	}

	numPoints := len(points[0])
	scale := 1 / float64(numPoints)
	total := 0.
	for s := 0; s+1 < len(points); s++ {
		for k := 0; k < numPoints; k++ {
			delta := points[s+1][k].Sub(points[s][k])
			dx2, dy2, dz2 := utils.Square(delta.X), utils.Square(delta.Y), utils.Square(delta.Z)
			length := math.Sqrt(math.Max(dx2, epsilon) + math.Max(dy2, epsilon) + math.Max(dz2, epsilon))
			total += length

			var g r3.Vector
			if dx2 > epsilon {
				g.X = delta.X / length
			}
			if dy2 > epsilon {
				g.Y = delta.Y / length
			}
			if dz2 > epsilon {
				g.Z = delta.Z / length
			}
			g = g.Mul(scale)
			grads[s+1][k] = grads[s+1][k].Add(g)
			grads[s][k] = grads[s][k].Sub(g)
		}
	}
	return total * scale, grads
}
