// Package tinsource turns LAS point clouds and Shapefile, delimited text or
// FlatGeobuf vector files into the vertices and constraints consumed by a
// constrained triangulation.
//
// Vertices come from LAS files through ReadVertices. Constraints come from
// a Loader, which picks a decoder from the file extension:
//
//	constraints, err := tinsource.LoadConstraints("breaklines.shp")
//	if errors.Is(err, errs.ErrUnsupportedInput) {
//		// not a constraint file
//	}
//
// Both can be written back out as FlatGeobuf with WriteVertices and
// WriteConstraints.
package tinsource

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/tingold/orb-tinsource/errs"
	"github.com/tingold/orb-tinsource/internal/logger"
	"github.com/tingold/orb-tinsource/shapefile"
)

// LoaderOptions configures a Loader.
type LoaderOptions struct {
	// Rescale is applied to every constraint vertex when set.
	Rescale *Rescale
	// Attributes attaches the matching .dbf row to shapefile constraints.
	Attributes bool
	// TagProperty names the FlatGeobuf property that holds the constraint
	// tag. It defaults to "tag".
	TagProperty string
	Logger      logger.Logger
}

// Loader reads constraint files.
type Loader struct {
	opts LoaderOptions
	log  logger.Logger
}

// NewLoader returns a Loader. A nil Logger discards records.
func NewLoader(opts LoaderOptions) *Loader {
	if opts.TagProperty == "" {
		opts.TagProperty = "tag"
	}
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	return &Loader{opts: opts, log: log}
}

// LoadConstraints loads path with default options.
func LoadConstraints(path string) ([]*Constraint, error) {
	return NewLoader(LoaderOptions{}).Load(path)
}

// Load reads the constraints of path, choosing the decoder from its
// extension without regard to case: .shp, .txt, .csv, .txt.gz, .csv.gz and
// .fgb. Any other extension returns a nil slice and errs.ErrUnsupportedInput.
func (l *Loader) Load(path string) ([]*Constraint, error) {
	var (
		constraints []*Constraint
		err         error
	)
	switch inputKind(path) {
	case inputShapefile:
		constraints, err = l.loadShapefile(path)
	case inputText:
		constraints, err = l.loadText(path, false)
	case inputGzipText:
		constraints, err = l.loadText(path, true)
	case inputFlatGeobuf:
		constraints, err = l.loadFlatGeobuf(path)
	default:
		return nil, fmt.Errorf("%w: %s", errs.ErrUnsupportedInput, filepath.Base(path))
	}
	if err != nil {
		return nil, err
	}

	if l.opts.Rescale != nil {
		for _, c := range constraints {
			for i := range c.Vertices {
				v := &c.Vertices[i]
				v.X, v.Y, v.Z = l.opts.Rescale.Apply(v.X, v.Y, v.Z)
			}
		}
	}

	polygons := 0
	for _, c := range constraints {
		if c.IsPolygon() {
			polygons++
		}
	}
	l.log.Debug("loaded constraints", "path", path, "count", len(constraints), "polygons", polygons)

	return constraints, nil
}

type inputType uint8

const (
	inputUnsupported inputType = iota
	inputShapefile
	inputText
	inputGzipText
	inputFlatGeobuf
)

func inputKind(path string) inputType {
	p := strings.ToLower(path)
	switch {
	case strings.HasSuffix(p, ".shp"):
		return inputShapefile
	case strings.HasSuffix(p, ".txt"), strings.HasSuffix(p, ".csv"):
		return inputText
	case strings.HasSuffix(p, ".txt.gz"), strings.HasSuffix(p, ".csv.gz"):
		return inputGzipText
	case strings.HasSuffix(p, ".fgb"):
		return inputFlatGeobuf
	default:
		return inputUnsupported
	}
}

// Supported reports whether Load recognizes the extension of path.
func Supported(path string) bool {
	return inputKind(path) != inputUnsupported
}

func (l *Loader) loadShapefile(path string) ([]*Constraint, error) {
	r, err := shapefile.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	kind := LinearConstraint
	switch t := r.ShapeType(); t {
	case shapefile.PolyLineZ:
	case shapefile.PolygonZ:
		kind = PolygonConstraint
	default:
		return nil, errs.Format(path, errs.ErrUnsupportedShapeType, t.String())
	}

	var attrs *shapefile.DBFReader
	if l.opts.Attributes {
		attrs, err = openAttributes(path)
		if err != nil {
			return nil, err
		}
		if attrs != nil {
			defer attrs.Close()
		}
	}

	var (
		constraints []*Constraint
		rec         shapefile.ShapeRecord
	)
	for {
		err := r.Next(&rec)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if rec.ShapeType == shapefile.NullShape {
			continue
		}
		if rec.ShapeType != r.ShapeType() {
			return nil, errs.Record(path, int64(rec.RecordNumber)-1, errs.ErrUnsupportedShapeType,
				fmt.Sprintf("%s record in a %s file", rec.ShapeType, r.ShapeType()))
		}

		var row map[string]any
		if attrs != nil && int64(rec.RecordNumber) <= attrs.RecordCount() {
			if err := attrs.ReadRecord(int64(rec.RecordNumber) - 1); err != nil {
				return nil, err
			}
			row = attrs.Values()
		}

		for part := 0; part < rec.NParts; part++ {
			vertices := make([]Vertex, 0, rec.PartPoints(part))
			for i := rec.PartStart[part]; i < rec.PartStart[part+1]; i++ {
				x, y, z := rec.Point(i)
				vertices = append(vertices, Vertex{X: x, Y: y, Z: z})
			}
			c := NewConstraint(kind, vertices, rec.RecordNumber)
			c.Attributes = row
			constraints = append(constraints, c)
		}
	}

	return constraints, nil
}

// openAttributes opens the .dbf paired with a .shp, or returns nil when
// there is none.
func openAttributes(shpPath string) (*shapefile.DBFReader, error) {
	base := strings.TrimSuffix(shpPath, filepath.Ext(shpPath))
	for _, ext := range []string{".dbf", ".DBF"} {
		r, err := shapefile.OpenDBF(base + ext)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	return nil, nil
}

func (l *Loader) loadText(path string, compressed bool) ([]*Constraint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var src io.Reader = f
	if compressed {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer zr.Close()
		src = zr
	}

	return readTextConstraints(path, src)
}

func (l *Loader) loadFlatGeobuf(path string) ([]*Constraint, error) {
	r, err := NewReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return r.ReadConstraints(l.opts.TagProperty)
}
