package readfiles

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"github.com/notargets/meshrefine/geometry2D"
)

// ReadAdcirc reads an ADCIRC mesh (.grd, fort.14): a title line, "e n",
// n node lines "id x y z" and e element lines "id 3 a b c", all 1-based.
// Anything after the element table (boundary definitions) is ignored.
func ReadAdcirc(filename string) (m *geometry2D.Mesh, err error) {
	var (
		file *os.File
	)
	if file, err = os.Open(filename); err != nil {
		return nil, errors.Wrapf(err, "unable to open %s", filename)
	}
	defer file.Close()
	return ParseAdcirc(file, filename)
}

func ParseAdcirc(r io.Reader, name string) (m *geometry2D.Mesh, err error) {
	var (
		sc     = bufio.NewScanner(r)
		fields []string
		hdr    []int
	)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	fr := &fieldReader{scanner: sc, name: name}
	// The title may be blank or contain '#', so it is consumed raw
	if !sc.Scan() {
		return nil, fmt.Errorf("%s: missing title line", name)
	}
	fr.line = 1
	if fields, err = fr.next(); err != nil {
		return nil, err
	}
	if hdr, err = fr.ints(fields, 2); err != nil {
		return nil, err
	}
	K, Nv := hdr[0], hdr[1]
	if K < 0 || Nv < 0 {
		return nil, fr.errorf("negative element or node count")
	}
	m = geometry2D.NewMesh(Nv, K)
	for i := 0; i < Nv; i++ {
		var v []float64
		if fields, err = fr.next(); err != nil {
			return nil, err
		}
		if len(fields) < 4 {
			return nil, fr.errorf("node line needs id, x, y and z")
		}
		if id, e := strconv.Atoi(fields[0]); e != nil || id != i+1 {
			return nil, fr.errorf("node %q out of sequence, expected %d", fields[0], i+1)
		}
		if v, err = fr.floats(fields[1:4]); err != nil {
			return nil, err
		}
		m.X[i], m.Y[i], m.Z[i] = v[0], v[1], v[2]
	}
	for k := 0; k < K; k++ {
		var v []int
		if fields, err = fr.next(); err != nil {
			return nil, err
		}
		if v, err = fr.ints(fields, 5); err != nil {
			return nil, err
		}
		if v[0] != k+1 {
			return nil, fr.errorf("element %d out of sequence, expected %d", v[0], k+1)
		}
		if v[1] != 3 {
			return nil, fr.errorf("element %d has %d vertices, only triangles are supported", v[0], v[1])
		}
		m.Elements[k] = geometry2D.Element{V0: v[2] - 1, V1: v[3] - 1, V2: v[4] - 1}
	}
	if err = m.Validate(); err != nil {
		return nil, errors.Wrap(err, name)
	}
	return
}

// WriteAdcirc writes the mesh in ADCIRC format with full float precision.
func WriteAdcirc(w io.Writer, m *geometry2D.Mesh, title string) error {
	bw := bufio.NewWriter(w)
	if title == "" {
		title = "ADCIRC"
	}
	fmt.Fprintf(bw, "%s\n%d %d\n", title, m.NumElements(), m.NumNodes())
	for i := range m.X {
		fmt.Fprintf(bw, "%d %s %s %s\n", i+1, ff(m.X[i]), ff(m.Y[i]), ff(m.Z[i]))
	}
	for k, el := range m.Elements {
		fmt.Fprintf(bw, "%d 3 %d %d %d\n", k+1, el.V0+1, el.V1+1, el.V2+1)
	}
	return bw.Flush()
}
