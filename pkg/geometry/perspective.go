package geometry

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrSingularPerspective is returned when a perspective matrix cannot be inverted.
var ErrSingularPerspective = errors.New("perspective matrix is singular")

// Perspective is a 3x3 projective transform acting on homogeneous (x, y, 1).
type Perspective [3][3]float64

// IdentityPerspective returns the identity projective transform.
func IdentityPerspective() Perspective {
	return Perspective{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// Apply maps a point through the transform. The second return value is false
// when the point maps to infinity or lies beyond the horizon line, on the
// opposite side from the origin.
func (h Perspective) Apply(p Point2D) (Point2D, bool) {
	x := h[0][0]*p.X + h[0][1]*p.Y + h[0][2]
	y := h[1][0]*p.X + h[1][1]*p.Y + h[1][2]
	w := h[2][0]*p.X + h[2][1]*p.Y + h[2][2]
	side := w
	if h[2][2] < 0 {
		side = -w
	}
	if side < 1e-12 {
		return Point2D{}, false
	}
	return Point2D{X: x / w, Y: y / w}, true
}

// Dense returns the matrix as a gonum dense matrix.
func (h Perspective) Dense() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		h[0][0], h[0][1], h[0][2],
		h[1][0], h[1][1], h[1][2],
		h[2][0], h[2][1], h[2][2],
	})
}

func perspectiveFromDense(m mat.Matrix) Perspective {
	var h Perspective
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			h[i][j] = m.At(i, j)
		}
	}
	return h
}

// Determinant returns the determinant of the matrix.
func (h Perspective) Determinant() float64 {
	return mat.Det(h.Dense())
}

// Inverse returns the inverse transform.
func (h Perspective) Inverse() (Perspective, error) {
	if det := h.Determinant(); det == 0 || math.IsNaN(det) {
		return Perspective{}, ErrSingularPerspective
	}
	var inv mat.Dense
	if err := inv.Inverse(h.Dense()); err != nil {
		return Perspective{}, fmt.Errorf("%w: %v", ErrSingularPerspective, err)
	}
	return perspectiveFromDense(&inv).normalized(), nil
}

// Mul returns h * other (other is applied first).
func (h Perspective) Mul(other Perspective) Perspective {
	var out mat.Dense
	out.Mul(h.Dense(), other.Dense())
	return perspectiveFromDense(&out)
}

// normalized scales the matrix so that its bottom-right element is one.
func (h Perspective) normalized() Perspective {
	s := h[2][2]
	if math.Abs(s) < 1e-12 {
		return h
	}
	for i := range h {
		for j := range h[i] {
			h[i][j] /= s
		}
	}
	return h
}
