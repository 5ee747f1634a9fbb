package readfiles

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/notargets/meshrefine/geometry2D"
	"github.com/notargets/meshrefine/types"
)

// NoneSentinel in place of a path means the optional input is absent.
const NoneSentinel = "none"

func IsNone(path string) bool {
	return strings.EqualFold(strings.TrimSpace(path), NoneSentinel)
}

// readCSV returns the rows of a header-less comma separated file as floats,
// checking that each row has between minCols and maxCols columns.
func readCSV(path string, minCols, maxCols int) (rows [][]float64, err error) {
	var (
		file *os.File
	)
	if file, err = os.Open(path); err != nil {
		return nil, errors.Wrapf(err, "unable to open %s", path)
	}
	defer file.Close()
	return parseCSV(file, path, minCols, maxCols)
}

func parseCSV(r io.Reader, path string, minCols, maxCols int) (rows [][]float64, err error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'
	row := 0
	for {
		var rec []string
		if rec, err = reader.Read(); err == io.EOF {
			return rows, nil
		} else if err != nil {
			return nil, errors.Wrapf(err, "reading %s", path)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if len(rec) < minCols || len(rec) > maxCols {
			return nil, &types.ConfigurationError{Path: path, Index: row,
				Reason: "expected " + colRange(minCols, maxCols) + " columns, got " + strconv.Itoa(len(rec))}
		}
		vals := make([]float64, len(rec))
		for i, s := range rec {
			if vals[i], err = strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
				return nil, &types.ConfigurationError{Path: path, Index: row,
					Reason: "invalid number " + strconv.Quote(s)}
			}
		}
		rows = append(rows, vals)
		row++
	}
}

func colRange(min, max int) string {
	if min == max {
		return strconv.Itoa(min)
	}
	return strconv.Itoa(min) + "-" + strconv.Itoa(max)
}

// ReadNodes reads x,y,z[,size] rows.
func ReadNodes(path string) (nodes []geometry2D.Node, err error) {
	var rows [][]float64
	if rows, err = readCSV(path, 2, 4); err != nil {
		return
	}
	nodes = make([]geometry2D.Node, len(rows))
	for i, r := range rows {
		nodes[i].X, nodes[i].Y = r[0], r[1]
		if len(r) > 2 {
			nodes[i].Z, nodes[i].HasZ = r[2], true
		}
		if len(r) > 3 {
			nodes[i].Size, nodes[i].HasSize = r[3], true
		}
	}
	return
}

// ReadPolylines reads shapeid,x,y rows; consecutive rows with the same shape
// id form one polyline. An input of "none" yields no polylines.
func ReadPolylines(path string) (lines []geometry2D.Polyline, err error) {
	if IsNone(path) {
		return nil, nil
	}
	var rows [][]float64
	if rows, err = readCSV(path, 3, 3); err != nil {
		return
	}
	for i, r := range rows {
		id := int(r[0])
		if float64(id) != r[0] {
			return nil, &types.ConfigurationError{Path: path, Index: i, Reason: "shape id must be an integer"}
		}
		if len(lines) == 0 || lines[len(lines)-1].ShapeID != id {
			lines = append(lines, geometry2D.Polyline{ShapeID: id})
		}
		last := &lines[len(lines)-1]
		last.Points = append(last.Points, geometry2D.Point{X: r[1], Y: r[2]})
	}
	return
}

// ReadHoles reads x,y hole markers. An input of "none" yields no holes.
func ReadHoles(path string) (holes []geometry2D.Point, err error) {
	if IsNone(path) {
		return nil, nil
	}
	var rows [][]float64
	if rows, err = readCSV(path, 2, 2); err != nil {
		return
	}
	holes = make([]geometry2D.Point, len(rows))
	for i, r := range rows {
		holes[i] = geometry2D.Point{X: r[0], Y: r[1]}
	}
	return
}

// ReadAreaSeeds reads x,y,area rows. An input of "none" yields no seeds.
func ReadAreaSeeds(path string) (seeds []geometry2D.AreaSeed, err error) {
	if IsNone(path) {
		return nil, nil
	}
	var rows [][]float64
	if rows, err = readCSV(path, 3, 3); err != nil {
		return
	}
	seeds = make([]geometry2D.AreaSeed, len(rows))
	for i, r := range rows {
		seeds[i] = geometry2D.AreaSeed{Point: geometry2D.Point{X: r[0], Y: r[1]}, MaxArea: r[2]}
	}
	return
}

// ReadTransferTable reads elevation,area rows.
func ReadTransferTable(path string) (elevations, areas []float64, err error) {
	var rows [][]float64
	if rows, err = readCSV(path, 2, 2); err != nil {
		return
	}
	elevations, areas = make([]float64, len(rows)), make([]float64, len(rows))
	for i, r := range rows {
		elevations[i], areas[i] = r[0], r[1]
	}
	return
}
