package geometry2D

// NewGridMesh builds a structured triangulation of the rectangle
// [x0,x1]x[y0,y1] with nx by ny quads, each split into two counter-clockwise
// triangles. Node elevations come from zf when it is non-nil.
func NewGridMesh(x0, y0, x1, y1 float64, nx, ny int, zf func(x, y float64) float64) (m *Mesh) {
	var (
		Nv = (nx + 1) * (ny + 1)
		K  = 2 * nx * ny
		dx = (x1 - x0) / float64(nx)
		dy = (y1 - y0) / float64(ny)
	)
	m = NewMesh(Nv, K)
	id := func(i, j int) int { return j*(nx+1) + i }
	for j := 0; j <= ny; j++ {
		for i := 0; i <= nx; i++ {
			n := id(i, j)
			m.X[n] = x0 + float64(i)*dx
			m.Y[n] = y0 + float64(j)*dy
			if zf != nil {
				m.Z[n] = zf(m.X[n], m.Y[n])
			}
		}
	}
	k := 0
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			m.Elements[k] = Element{id(i, j), id(i+1, j), id(i+1, j+1)}
			m.Elements[k+1] = Element{id(i, j), id(i+1, j+1), id(i, j+1)}
			k += 2
		}
	}
	return
}

// SquarePolyline returns the closed counter-clockwise outline of
// [x0,x1]x[y0,y1].
func SquarePolyline(shapeID int, x0, y0, x1, y1 float64) Polyline {
	return Polyline{
		ShapeID: shapeID,
		Points:  []Point{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}},
	}
}
