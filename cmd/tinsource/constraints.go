package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
	"github.com/paulmach/orb"
	"github.com/urfave/cli/v3"

	tinsource "github.com/tingold/orb-tinsource"
	"github.com/tingold/orb-tinsource/internal/logger"
)

type constraintSummary struct {
	Path        string     `json:"path"`
	Constraints int        `json:"constraints"`
	Polygons    int        `json:"polygons"`
	Linear      int        `json:"linear"`
	Vertices    int        `json:"vertices"`
	Bound       [4]float64 `json:"bound"`
	Area        float64    `json:"area"`
}

func constraintsCmd() *cli.Command {
	var (
		format      string
		out         string
		tagProperty string
		attributes  bool
	)

	return &cli.Command{
		Name:      "constraints",
		Usage:     "Load constraint files and summarize them or convert them to FlatGeobuf or GeoJSON",
		ArgsUsage: "<file> [file...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "format",
				Aliases:     []string{"f"},
				Usage:       "output format (summary, fgb, geojson)",
				Value:       "summary",
				Destination: &format,
			},
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "output path (default: stdout)",
				Destination: &out,
			},
			&cli.StringFlag{
				Name:        "tag-property",
				Usage:       "FlatGeobuf property holding the constraint tag",
				Value:       "tag",
				Destination: &tagProperty,
			},
			&cli.BoolFlag{
				Name:        "attributes",
				Usage:       "attach shapefile .dbf attributes",
				Destination: &attributes,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			if cmd.NArg() == 0 {
				return errors.New("constraints: at least one input file is required")
			}
			applyConstraintConfig(cmd, cfg, &tagProperty, &attributes)

			loader := tinsource.NewLoader(tinsource.LoaderOptions{
				Attributes:  attributes,
				TagProperty: tagProperty,
				Logger:      log,
			})

			var (
				all       []*tinsource.Constraint
				summaries []constraintSummary
			)
			for _, path := range cmd.Args().Slice() {
				cs, err := loader.Load(path)
				if err != nil {
					return err
				}
				all = append(all, cs...)
				summaries = append(summaries, summarizeConstraints(path, cs))
			}

			write := func(w io.Writer) error {
				switch format {
				case "summary":
					enc := json.NewEncoder(w)
					enc.SetIndent("", "  ")
					return enc.Encode(summaries)
				case "fgb":
					opts := tinsource.DefaultOptions()
					opts.Name = "constraints"
					return tinsource.WriteConstraints(w, all, opts)
				case "geojson":
					data, err := tinsource.FeatureCollection(all).MarshalJSON()
					if err != nil {
						return err
					}
					_, err = w.Write(data)
					return err
				default:
					return fmt.Errorf("constraints: unknown format %q", format)
				}
			}

			if out == "" {
				return write(outWriter(cmd))
			}
			if err := writeFile(out, func(f *os.File) error { return write(f) }); err != nil {
				return err
			}
			log.Info("wrote constraints", "output", filepath.Clean(out), "format", format, "count", len(all))
			return nil
		},
	}
}

func summarizeConstraints(path string, cs []*tinsource.Constraint) constraintSummary {
	s := constraintSummary{Path: path, Constraints: len(cs)}
	var bound *orb.Bound
	for _, c := range cs {
		if c.IsPolygon() {
			s.Polygons++
			s.Area += c.SignedArea()
		} else {
			s.Linear++
		}
		s.Vertices += len(c.Vertices)
		if len(c.Vertices) == 0 {
			continue
		}
		b := c.Bound()
		if bound != nil {
			b = bound.Union(b)
		}
		bound = &b
	}
	if bound != nil {
		s.Bound = [4]float64{bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1]}
	}
	return s
}
