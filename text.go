package tinsource

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tingold/orb-tinsource/errs"
)

// textLine is a non-blank, non-comment line of a constraint text file.
type textLine struct {
	n      int
	fields []string
}

// readTextConstraints parses delimited constraint text. Two layouts are
// accepted:
//
//   - a bare list of "x,y[,z]" lines forming a single constraint, a polygon
//     when it has more than three vertices and its first and last vertices
//     coincide;
//   - blocks that each start with a line holding only a vertex count,
//     where a block is a polygon when its first and second vertices
//     coincide.
//
// Fields are separated by commas, semicolons or whitespace. Lines starting
// with '#' are ignored.
func readTextConstraints(name string, src io.Reader) ([]*Constraint, error) {
	lines, err := scanText(name, src)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, nil
	}

	if len(lines[0].fields) == 1 {
		return readCountedBlocks(name, lines)
	}

	vertices := make([]Vertex, 0, len(lines))
	for _, l := range lines {
		v, err := parseVertex(name, l)
		if err != nil {
			return nil, err
		}
		vertices = append(vertices, v)
	}

	kind := LinearConstraint
	if len(vertices) > 3 && samePoint(vertices[0], vertices[len(vertices)-1]) {
		kind = PolygonConstraint
	}
	return []*Constraint{NewConstraint(kind, vertices, 1)}, nil
}

func readCountedBlocks(name string, lines []textLine) ([]*Constraint, error) {
	var constraints []*Constraint
	for i := 0; i < len(lines); {
		head := lines[i]
		if len(head.fields) != 1 {
			return nil, errs.Line(name, head.n, errs.ErrMalformedText,
				fmt.Sprintf("expected a vertex count, found %d fields", len(head.fields)))
		}
		count, err := strconv.Atoi(head.fields[0])
		if err != nil || count < 0 {
			return nil, errs.Line(name, head.n, errs.ErrMalformedText,
				fmt.Sprintf("invalid vertex count %q", head.fields[0]))
		}
		i++
		if i+count > len(lines) {
			return nil, errs.Line(name, head.n, errs.ErrMalformedText,
				fmt.Sprintf("block declares %d vertices, %d remain", count, len(lines)-i))
		}

		vertices := make([]Vertex, 0, count)
		for _, l := range lines[i : i+count] {
			v, err := parseVertex(name, l)
			if err != nil {
				return nil, err
			}
			vertices = append(vertices, v)
		}
		i += count

		kind := LinearConstraint
		if len(vertices) >= 2 && samePoint(vertices[0], vertices[1]) {
			kind = PolygonConstraint
		}
		constraints = append(constraints, NewConstraint(kind, vertices, len(constraints)+1))
	}
	return constraints, nil
}

func scanText(name string, src io.Reader) ([]textLine, error) {
	var lines []textLine
	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for n := 1; sc.Scan(); n++ {
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		lines = append(lines, textLine{n: n, fields: splitFields(s)})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return lines, nil
}

func splitFields(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case ',', ';', ' ', '\t', '\r':
			return true
		}
		return false
	})
}

func parseVertex(name string, l textLine) (Vertex, error) {
	if len(l.fields) < 2 || len(l.fields) > 3 {
		return Vertex{}, errs.Line(name, l.n, errs.ErrMalformedText,
			fmt.Sprintf("expected x,y[,z], found %d fields", len(l.fields)))
	}
	var xyz [3]float64
	for i, f := range l.fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return Vertex{}, errs.Line(name, l.n, errs.ErrMalformedText, fmt.Sprintf("invalid coordinate %q", f))
		}
		xyz[i] = v
	}
	return Vertex{X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
}
