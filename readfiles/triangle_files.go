package readfiles

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/notargets/meshrefine/geometry2D"
)

// Triangle's file formats: https://www.cs.cmu.edu/~quake/triangle.html
// Everything after '#' is a comment. Numbering starts at whatever the first
// vertex of the .node or .poly file uses; files written here are 1-based.

type fieldReader struct {
	scanner *bufio.Scanner
	name    string
	line    int
}

func newFieldReader(r io.Reader, name string) *fieldReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	return &fieldReader{scanner: sc, name: name}
}

// next returns the fields of the next non-blank, non-comment line.
func (fr *fieldReader) next() (fields []string, err error) {
	for fr.scanner.Scan() {
		fr.line++
		line := fr.scanner.Text()
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		if fields = strings.Fields(line); len(fields) > 0 {
			return
		}
	}
	if err = fr.scanner.Err(); err == nil {
		err = io.ErrUnexpectedEOF
	}
	return nil, errors.Wrapf(err, "%s: line %d", fr.name, fr.line)
}

func (fr *fieldReader) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("%s: line %d: %s", fr.name, fr.line, fmt.Sprintf(format, args...))
}

func (fr *fieldReader) ints(fields []string, n int) (v []int, err error) {
	if len(fields) < n {
		return nil, fr.errorf("expected %d values, got %d", n, len(fields))
	}
	v = make([]int, n)
	for i := 0; i < n; i++ {
		if v[i], err = strconv.Atoi(fields[i]); err != nil {
			return nil, fr.errorf("invalid integer %q", fields[i])
		}
	}
	return
}

func (fr *fieldReader) floats(fields []string) (v []float64, err error) {
	v = make([]float64, len(fields))
	for i, f := range fields {
		if v[i], err = strconv.ParseFloat(f, 64); err != nil {
			return nil, fr.errorf("invalid number %q", f)
		}
	}
	return
}

func ff(x float64) string { return strconv.FormatFloat(x, 'g', -1, 64) }

// PolyFile is the content of a Triangle .poly file. Vertices may be empty, in
// which case the segments refer to a companion .node file.
type PolyFile struct {
	X, Y, Z  []float64
	HasZ     bool
	Segments []geometry2D.Segment
	Holes    []geometry2D.Point
	Regions  []geometry2D.AreaSeed
	Base     int // Number of the first vertex, 0 or 1
}

// WritePoly writes the PSLG as a 1-based .poly file. Node elevations are
// written as one vertex attribute so the engine interpolates them for new
// vertices.
func WritePoly(w io.Writer, p *geometry2D.PSLG) (err error) {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# vertices\n%d 2 1 0\n", len(p.Nodes))
	for i, nd := range p.Nodes {
		fmt.Fprintf(bw, "%d %s %s %s\n", i+1, ff(nd.X), ff(nd.Y), ff(nd.Z))
	}
	writeSegmentsHoles(bw, p.Segments, p.Holes)
	fmt.Fprintf(bw, "# regional area constraints\n%d\n", len(p.Seeds))
	for i, s := range p.Seeds {
		fmt.Fprintf(bw, "%d %s %s 0 %s\n", i+1, ff(s.X), ff(s.Y), ff(s.MaxArea))
	}
	return bw.Flush()
}

// WriteMeshPoly writes the segments and holes of a mesh as a .poly file whose
// vertices live in the companion .node file.
func WriteMeshPoly(w io.Writer, m *geometry2D.Mesh) (err error) {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "0 2 1 0\n")
	writeSegmentsHoles(bw, m.Segments, m.Holes)
	return bw.Flush()
}

func writeSegmentsHoles(bw *bufio.Writer, segs []geometry2D.Segment, holes []geometry2D.Point) {
	fmt.Fprintf(bw, "# segments\n%d 1\n", len(segs))
	for i, s := range segs {
		fmt.Fprintf(bw, "%d %d %d %d\n", i+1, s.V[0]+1, s.V[1]+1, s.Marker)
	}
	fmt.Fprintf(bw, "# holes\n%d\n", len(holes))
	for i, h := range holes {
		fmt.Fprintf(bw, "%d %s %s\n", i+1, ff(h.X), ff(h.Y))
	}
}

// ReadPoly reads a .poly file. base is the vertex numbering to assume when
// the file carries no vertices of its own; use -1 to default to 1.
func ReadPoly(r io.Reader, name string, base int) (pf *PolyFile, err error) {
	var (
		fr     = newFieldReader(r, name)
		fields []string
		hdr    []int
	)
	pf = &PolyFile{Base: base}
	if pf.Base < 0 {
		pf.Base = 1
	}
	if fields, err = fr.next(); err != nil {
		return nil, err
	}
	if hdr, err = fr.ints(fields, 4); err != nil {
		return nil, err
	}
	nv, nattr := hdr[0], hdr[2]
	if hdr[1] != 2 {
		return nil, fr.errorf("only 2 dimensional files are supported, got %d", hdr[1])
	}
	if nv > 0 {
		if pf.X, pf.Y, pf.Z, pf.Base, err = readVertexBlock(fr, nv, nattr); err != nil {
			return nil, err
		}
		pf.HasZ = nattr > 0
	}
	// Segments
	if fields, err = fr.next(); err != nil {
		return nil, err
	}
	if hdr, err = fr.ints(fields, 1); err != nil {
		return nil, err
	}
	ns := hdr[0]
	pf.Segments = make([]geometry2D.Segment, ns)
	for i := 0; i < ns; i++ {
		if fields, err = fr.next(); err != nil {
			return nil, err
		}
		var v []int
		if v, err = fr.ints(fields, 3); err != nil {
			return nil, err
		}
		pf.Segments[i].V = [2]int{v[1] - pf.Base, v[2] - pf.Base}
		if len(fields) > 3 {
			if pf.Segments[i].Marker, err = strconv.Atoi(fields[3]); err != nil {
				return nil, fr.errorf("invalid segment marker %q", fields[3])
			}
		}
	}
	// Holes
	if fields, err = fr.next(); err != nil {
		return nil, err
	}
	if hdr, err = fr.ints(fields, 1); err != nil {
		return nil, err
	}
	for i := 0; i < hdr[0]; i++ {
		var v []float64
		if fields, err = fr.next(); err != nil {
			return nil, err
		}
		if len(fields) < 3 {
			return nil, fr.errorf("hole needs an id and two coordinates")
		}
		if v, err = fr.floats(fields[1:3]); err != nil {
			return nil, err
		}
		pf.Holes = append(pf.Holes, geometry2D.Point{X: v[0], Y: v[1]})
	}
	// Optional regional attributes and area constraints
	if fields, err = fr.next(); err != nil {
		if errors.Cause(err) == io.ErrUnexpectedEOF {
			return pf, nil
		}
		return nil, err
	}
	if hdr, err = fr.ints(fields, 1); err != nil {
		return nil, err
	}
	for i := 0; i < hdr[0]; i++ {
		var v []float64
		if fields, err = fr.next(); err != nil {
			return nil, err
		}
		if len(fields) < 5 {
			return nil, fr.errorf("region needs an id, two coordinates, an attribute and an area")
		}
		if v, err = fr.floats(fields[1:5]); err != nil {
			return nil, err
		}
		pf.Regions = append(pf.Regions, geometry2D.AreaSeed{Point: geometry2D.Point{X: v[0], Y: v[1]}, MaxArea: v[3]})
	}
	return
}

func readVertexBlock(fr *fieldReader, nv, nattr int) (X, Y, Z []float64, base int, err error) {
	X, Y, Z = make([]float64, nv), make([]float64, nv), make([]float64, nv)
	for i := 0; i < nv; i++ {
		var (
			fields []string
			id     int
			v      []float64
		)
		if fields, err = fr.next(); err != nil {
			return
		}
		if len(fields) < 3+nattr {
			err = fr.errorf("vertex needs an id, two coordinates and %d attributes", nattr)
			return
		}
		if id, err = strconv.Atoi(fields[0]); err != nil {
			err = fr.errorf("invalid vertex id %q", fields[0])
			return
		}
		if i == 0 {
			if id != 0 && id != 1 {
				err = fr.errorf("vertex numbering must start at 0 or 1, got %d", id)
				return
			}
			base = id
		}
		if id != i+base {
			err = fr.errorf("vertex %d out of sequence", id)
			return
		}
		if v, err = fr.floats(fields[1 : 3+nattr]); err != nil {
			return
		}
		X[i], Y[i] = v[0], v[1]
		if nattr > 0 {
			Z[i] = v[2]
		}
	}
	return
}

// ReadNode reads a .node file, returning coordinates, the first attribute as
// elevation, and the numbering base.
func ReadNode(r io.Reader, name string) (X, Y, Z []float64, base int, err error) {
	var (
		fr     = newFieldReader(r, name)
		fields []string
		hdr    []int
	)
	if fields, err = fr.next(); err != nil {
		return
	}
	if hdr, err = fr.ints(fields, 4); err != nil {
		return
	}
	if hdr[1] != 2 {
		err = fr.errorf("only 2 dimensional files are supported, got %d", hdr[1])
		return
	}
	return readVertexBlock(fr, hdr[0], hdr[2])
}

// ReadEle reads a .ele file with numbering base, keeping the three corner
// vertices of each triangle.
func ReadEle(r io.Reader, name string, base int) (els []geometry2D.Element, err error) {
	var (
		fr     = newFieldReader(r, name)
		fields []string
		hdr    []int
	)
	if fields, err = fr.next(); err != nil {
		return
	}
	if hdr, err = fr.ints(fields, 2); err != nil {
		return
	}
	if hdr[1] != 3 && hdr[1] != 6 {
		return nil, fr.errorf("triangles must have 3 or 6 nodes, got %d", hdr[1])
	}
	els = make([]geometry2D.Element, hdr[0])
	for k := range els {
		var v []int
		if fields, err = fr.next(); err != nil {
			return nil, err
		}
		if v, err = fr.ints(fields, 4); err != nil {
			return nil, err
		}
		if v[0] != k+base {
			return nil, fr.errorf("triangle %d out of sequence", v[0])
		}
		els[k] = geometry2D.Element{V0: v[1] - base, V1: v[2] - base, V2: v[3] - base}
	}
	return
}

// WriteNode writes mesh vertices as a 1-based .node file with elevation as
// the single attribute.
func WriteNode(w io.Writer, m *geometry2D.Mesh) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d 2 1 0\n", m.NumNodes())
	for i := range m.X {
		fmt.Fprintf(bw, "%d %s %s %s\n", i+1, ff(m.X[i]), ff(m.Y[i]), ff(m.Z[i]))
	}
	return bw.Flush()
}

// WriteEle writes 1-based triangle connectivity.
func WriteEle(w io.Writer, m *geometry2D.Mesh) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d 3 0\n", m.NumElements())
	for k, el := range m.Elements {
		fmt.Fprintf(bw, "%d %d %d %d\n", k+1, el.V0+1, el.V1+1, el.V2+1)
	}
	return bw.Flush()
}

// ElementArea is the area constraint for one element, 1-based.
type ElementArea struct {
	ID      int
	MaxArea float64
}

// WriteArea writes a .area file: the element count, then one id/area line
// per element.
func WriteArea(w io.Writer, areas []ElementArea) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d\n", len(areas))
	for _, a := range areas {
		fmt.Fprintf(bw, "%d %s\n", a.ID, ff(a.MaxArea))
	}
	return bw.Flush()
}

func ReadArea(r io.Reader, name string) (areas []ElementArea, err error) {
	var (
		fr     = newFieldReader(r, name)
		fields []string
		hdr    []int
	)
	if fields, err = fr.next(); err != nil {
		return
	}
	if hdr, err = fr.ints(fields, 1); err != nil {
		return
	}
	areas = make([]ElementArea, hdr[0])
	for i := range areas {
		var v []float64
		if fields, err = fr.next(); err != nil {
			return nil, err
		}
		if len(fields) < 2 {
			return nil, fr.errorf("area line needs an id and an area")
		}
		if areas[i].ID, err = strconv.Atoi(fields[0]); err != nil {
			return nil, fr.errorf("invalid element id %q", fields[0])
		}
		if v, err = fr.floats(fields[1:2]); err != nil {
			return nil, err
		}
		areas[i].MaxArea = v[0]
	}
	return
}

// ReadTriangleMesh reads base.node and base.ele, plus base.poly when it
// exists, into a 0-based mesh.
func ReadTriangleMesh(base string) (m *geometry2D.Mesh, err error) {
	var (
		file  *os.File
		first int
	)
	m = &geometry2D.Mesh{}
	if file, err = os.Open(base + ".node"); err != nil {
		return nil, errors.Wrap(err, "reading triangle output")
	}
	m.X, m.Y, m.Z, first, err = ReadNode(file, file.Name())
	file.Close()
	if err != nil {
		return nil, err
	}
	if file, err = os.Open(base + ".ele"); err != nil {
		return nil, errors.Wrap(err, "reading triangle output")
	}
	m.Elements, err = ReadEle(file, file.Name(), first)
	file.Close()
	if err != nil {
		return nil, err
	}
	if file, err = os.Open(base + ".poly"); err == nil {
		var pf *PolyFile
		pf, err = ReadPoly(file, file.Name(), first)
		file.Close()
		if err != nil {
			return nil, err
		}
		m.Segments, m.Holes = pf.Segments, pf.Holes
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "reading triangle output")
	}
	if err = m.Validate(); err != nil {
		return nil, errors.Wrapf(err, "triangle output %s", base)
	}
	return m, nil
}

// WriteTriangleMesh writes base.node, base.ele and base.poly.
func WriteTriangleMesh(base string, m *geometry2D.Mesh) (err error) {
	if err = WriteFile(base+".node", func(w io.Writer) error { return WriteNode(w, m) }); err != nil {
		return
	}
	if err = WriteFile(base+".ele", func(w io.Writer) error { return WriteEle(w, m) }); err != nil {
		return
	}
	return WriteFile(base+".poly", func(w io.Writer) error { return WriteMeshPoly(w, m) })
}
