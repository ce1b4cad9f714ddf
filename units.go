package safeguards

import "fmt"

// Dimensions specifies the extent of a physical element along the three
// cartesian axes, in metres.
type Dimensions struct {
	DX float64 `yaml:"dx" json:"dx"`
	DY float64 `yaml:"dy" json:"dy"`
	DZ float64 `yaml:"dz" json:"dz"`
}

func (d Dimensions) String() string {
	return fmt.Sprintf("(dx=%v, dy=%v, dz=%v)", d.DX, d.DY, d.DZ)
}

// IsZero reports whether d is the zero value of the type.
func (d Dimensions) IsZero() bool {
	return d == Dimensions{}
}

// Position is a point in cartesian space, relative to the origin of the
// element containing the positioned element.
type Position struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
	Z float64 `yaml:"z" json:"z"`
}

// Add returns the vector sum of p and q.
func (p Position) Add(q Position) Position {
	return Position{X: p.X + q.X, Y: p.Y + q.Y, Z: p.Z + q.Z}
}

// Sub returns the vector difference of p and q.
func (p Position) Sub(q Position) Position {
	return Position{X: p.X - q.X, Y: p.Y - q.Y, Z: p.Z - q.Z}
}

func (p Position) String() string {
	return fmt.Sprintf("(x=%v, y=%v, z=%v)", p.X, p.Y, p.Z)
}
