package readfiles

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/notargets/meshrefine/geometry2D"
)

// From here: https://su2code.github.io/docs_v7/Mesh-File/
type SU2ElementType uint8

const (
	ELType_LINE          SU2ElementType = 3
	ELType_Triangle      SU2ElementType = 5
	ELType_Quadrilateral SU2ElementType = 9
)

// SU2 has no elevation field, so Z is zero on read and dropped on write.
// Segments are written as one marker per segment marker value and read back
// with Marker set to the 1-based position of their MARKER_TAG.

type su2Reader struct {
	fr *fieldReader
}

// next skips '%' comment lines, which SU2 allows between data blocks.
func (sr *su2Reader) next() (fields []string, err error) {
	for {
		if fields, err = sr.fr.next(); err != nil {
			return
		}
		if !strings.HasPrefix(fields[0], "%") {
			return
		}
	}
}

// keyword reads a "KEY= value" line and returns the value.
func (sr *su2Reader) keyword(key string) (value string, err error) {
	var fields []string
	if fields, err = sr.next(); err != nil {
		return
	}
	line := strings.Join(fields, " ")
	ind := strings.Index(line, "=")
	if ind < 0 || strings.TrimSpace(line[:ind]) != key {
		return "", sr.fr.errorf("expected %s=, got [%s]", key, line)
	}
	return strings.TrimSpace(line[ind+1:]), nil
}

func (sr *su2Reader) number(key string) (n int, err error) {
	var value string
	if value, err = sr.keyword(key); err != nil {
		return
	}
	if n, err = strconv.Atoi(value); err != nil || n < 0 {
		return 0, sr.fr.errorf("invalid %s count %q", key, value)
	}
	return
}

func ReadSU2File(filename string) (m *geometry2D.Mesh, tags []string, err error) {
	var (
		file *os.File
	)
	if file, err = os.Open(filename); err != nil {
		return nil, nil, errors.Wrapf(err, "unable to open %s", filename)
	}
	defer file.Close()
	return ReadSU2(file, filename)
}

// ReadSU2 reads a 2D triangular SU2 mesh with 0-based connectivity.
func ReadSU2(r io.Reader, name string) (m *geometry2D.Mesh, tags []string, err error) {
	var (
		sr     = &su2Reader{fr: newFieldReader(r, name)}
		fields []string
		v      []int
		dim    int
	)
	if dim, err = sr.number("NDIME"); err != nil {
		return
	}
	if dim != 2 {
		return nil, nil, sr.fr.errorf("only 2 dimensional meshes are supported, got %d", dim)
	}
	K, err := sr.number("NELEM")
	if err != nil {
		return
	}
	els := make([]geometry2D.Element, K)
	for k := 0; k < K; k++ {
		if fields, err = sr.next(); err != nil {
			return
		}
		if v, err = sr.fr.ints(fields, 1); err != nil {
			return
		}
		if SU2ElementType(v[0]) != ELType_Triangle {
			return nil, nil, sr.fr.errorf("element type %d is not a triangle", v[0])
		}
		if v, err = sr.fr.ints(fields, 4); err != nil {
			return
		}
		els[k] = geometry2D.Element{V0: v[1], V1: v[2], V2: v[3]}
	}
	Nv, err := sr.number("NPOIN")
	if err != nil {
		return
	}
	m = geometry2D.NewMesh(Nv, 0)
	m.Elements = els
	for i := 0; i < Nv; i++ {
		var xy []float64
		if fields, err = sr.next(); err != nil {
			return nil, nil, err
		}
		if len(fields) < 2 {
			return nil, nil, sr.fr.errorf("point line needs x and y")
		}
		if xy, err = sr.fr.floats(fields[:2]); err != nil {
			return nil, nil, err
		}
		m.X[i], m.Y[i] = xy[0], xy[1]
	}
	nMark, err := sr.number("NMARK")
	if err != nil {
		return nil, nil, err
	}
	for n := 0; n < nMark; n++ {
		var (
			tag    string
			nEdges int
		)
		if tag, err = sr.keyword("MARKER_TAG"); err != nil {
			return nil, nil, err
		}
		tags = append(tags, tag)
		if nEdges, err = sr.number("MARKER_ELEMS"); err != nil {
			return nil, nil, err
		}
		for i := 0; i < nEdges; i++ {
			if fields, err = sr.next(); err != nil {
				return nil, nil, err
			}
			if v, err = sr.fr.ints(fields, 3); err != nil {
				return nil, nil, err
			}
			if SU2ElementType(v[0]) != ELType_LINE {
				return nil, nil, sr.fr.errorf("marker %s should only contain line elements", tag)
			}
			m.Segments = append(m.Segments, geometry2D.Segment{V: [2]int{v[1], v[2]}, Marker: n + 1})
		}
	}
	if err = m.Validate(); err != nil {
		return nil, nil, errors.Wrap(err, name)
	}
	return
}

// SU2MarkerTag names the marker written for a segment marker value.
func SU2MarkerTag(marker int) string {
	if marker == 0 {
		return "constraint"
	}
	return fmt.Sprintf("boundary_%d", marker)
}

// WriteSU2 writes the mesh with one MARKER_TAG per distinct segment marker,
// in increasing marker order.
func WriteSU2(w io.Writer, m *geometry2D.Mesh) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "NDIME= 2\nNELEM= %d\n", m.NumElements())
	for k, el := range m.Elements {
		fmt.Fprintf(bw, "%d %d %d %d %d\n", ELType_Triangle, el.V0, el.V1, el.V2, k)
	}
	fmt.Fprintf(bw, "NPOIN= %d\n", m.NumNodes())
	for i := range m.X {
		fmt.Fprintf(bw, "%s %s %d\n", ff(m.X[i]), ff(m.Y[i]), i)
	}
	byMarker := make(map[int][]geometry2D.Segment)
	var markers []int
	for _, s := range m.Segments {
		if _, ok := byMarker[s.Marker]; !ok {
			markers = append(markers, s.Marker)
		}
		byMarker[s.Marker] = append(byMarker[s.Marker], s)
	}
	sort.Ints(markers)
	fmt.Fprintf(bw, "NMARK= %d\n", len(markers))
	for _, mk := range markers {
		fmt.Fprintf(bw, "MARKER_TAG= %s\nMARKER_ELEMS= %d\n", SU2MarkerTag(mk), len(byMarker[mk]))
		for _, s := range byMarker[mk] {
			fmt.Fprintf(bw, "%d %d %d\n", ELType_LINE, s.V[0], s.V[1])
		}
	}
	return bw.Flush()
}
