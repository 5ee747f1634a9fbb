package readfiles

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/pkg/errors"

	"github.com/notargets/meshrefine/geometry2D"
)

type MeshFormat uint8

const (
	FormatAdcirc MeshFormat = iota
	FormatWKT
	FormatVTK
	FormatSU2
)

var MeshFormatNames = map[string]MeshFormat{
	"adcirc": FormatAdcirc,
	"grd":    FormatAdcirc,
	"wkt":    FormatWKT,
	"vtk":    FormatVTK,
	"su2":    FormatSU2,
}

func (mf MeshFormat) String() string {
	return [...]string{"adcirc", "wkt", "vtk", "su2"}[mf]
}

// NewMeshFormat resolves an explicit format name, falling back to the output
// file extension when name is empty.
func NewMeshFormat(name, path string) (mf MeshFormat, err error) {
	var ok bool
	if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
		if mf, ok = MeshFormatNames[name]; !ok {
			err = fmt.Errorf("unknown mesh format %q, use one of adcirc, wkt, vtk, su2", name)
		}
		return
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".grd", ".14", "":
		return FormatAdcirc, nil
	case ".csv", ".wkt":
		return FormatWKT, nil
	case ".vtk":
		return FormatVTK, nil
	case ".su2":
		return FormatSU2, nil
	default:
		return FormatAdcirc, fmt.Errorf("unable to infer mesh format from %s", path)
	}
}

// ElementPolygon returns element k as a closed ring.
func ElementPolygon(m *geometry2D.Mesh, k int) orb.Polygon {
	el := m.Elements[k]
	ring := orb.Ring{
		{m.X[el.V0], m.Y[el.V0]},
		{m.X[el.V1], m.Y[el.V1]},
		{m.X[el.V2], m.Y[el.V2]},
		{m.X[el.V0], m.Y[el.V0]},
	}
	return orb.Polygon{ring}
}

// WriteWKT writes one row per element: the polygon as WKT and its 1-based id.
func WriteWKT(w io.Writer, m *geometry2D.Mesh) error {
	cw := csv.NewWriter(w)
	cw.Write([]string{"WKT", "element"})
	for k := range m.Elements {
		cw.Write([]string{wkt.MarshalString(ElementPolygon(m, k)), strconv.Itoa(k + 1)})
	}
	cw.Flush()
	return cw.Error()
}

// WriteNodeWKT writes one row per node: the point as WKT, its 1-based id and
// elevation.
func WriteNodeWKT(w io.Writer, m *geometry2D.Mesh) error {
	cw := csv.NewWriter(w)
	cw.Write([]string{"WKT", "node", "z"})
	for i := range m.X {
		cw.Write([]string{wkt.MarshalString(orb.Point{m.X[i], m.Y[i]}), strconv.Itoa(i + 1), ff(m.Z[i])})
	}
	cw.Flush()
	return cw.Error()
}

// WriteVTK writes a legacy ASCII unstructured grid with elevation as a point
// scalar.
func WriteVTK(w io.Writer, m *geometry2D.Mesh, title string) error {
	bw := bufio.NewWriter(w)
	if title == "" {
		title = "meshrefine"
	}
	fmt.Fprintf(bw, "# vtk DataFile Version 3.0\n%s\nASCII\n\nDATASET UNSTRUCTURED_GRID\n", title)
	fmt.Fprintf(bw, "POINTS %d double\n", m.NumNodes())
	for i := range m.X {
		fmt.Fprintf(bw, "%s %s 0\n", ff(m.X[i]), ff(m.Y[i]))
	}
	fmt.Fprintf(bw, "CELLS %d %d\n", m.NumElements(), 4*m.NumElements())
	for _, el := range m.Elements {
		fmt.Fprintf(bw, "3 %d %d %d\n", el.V0, el.V1, el.V2)
	}
	fmt.Fprintf(bw, "CELL_TYPES %d\n", m.NumElements())
	for range m.Elements {
		fmt.Fprintf(bw, "5\n")
	}
	fmt.Fprintf(bw, "\nPOINT_DATA %d\nSCALARS elevation double\nLOOKUP_TABLE default\n", m.NumNodes())
	for _, z := range m.Z {
		fmt.Fprintf(bw, "%s\n", ff(z))
	}
	return bw.Flush()
}

func WriteMesh(w io.Writer, m *geometry2D.Mesh, mf MeshFormat, title string) error {
	switch mf {
	case FormatWKT:
		return WriteWKT(w, m)
	case FormatVTK:
		return WriteVTK(w, m, title)
	case FormatSU2:
		return WriteSU2(w, m)
	default:
		return WriteAdcirc(w, m, title)
	}
}

// WriteFileAtomic writes through a temporary file in the destination
// directory and renames it into place, so path never holds a partial file.
func WriteFileAtomic(path string, fn func(w io.Writer) error) (err error) {
	var (
		tmp *os.File
	)
	if tmp, err = os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*"); err != nil {
		return errors.Wrapf(err, "unable to create temporary file for %s", path)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()
	if err = fn(tmp); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "writing %s", path)
	}
	// CreateTemp makes the file owner-only
	if err = tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "setting mode of %s", path)
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return errors.Wrapf(os.Rename(tmp.Name(), path), "renaming into %s", path)
}

// WriteFile creates or truncates path and writes it with fn.
func WriteFile(path string, fn func(w io.Writer) error) (err error) {
	var file *os.File
	if file, err = os.Create(path); err != nil {
		return errors.Wrapf(err, "unable to create %s", path)
	}
	if err = fn(file); err != nil {
		file.Close()
		return errors.Wrapf(err, "writing %s", path)
	}
	return errors.Wrapf(file.Close(), "closing %s", path)
}

// WriteMeshFile writes the mesh to path in the given format.
func WriteMeshFile(path string, m *geometry2D.Mesh, mf MeshFormat, title string) error {
	return WriteFileAtomic(path, func(w io.Writer) error { return WriteMesh(w, m, mf, title) })
}
