package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	tinsource "github.com/tingold/orb-tinsource"
	"github.com/tingold/orb-tinsource/internal/logger"
	"github.com/tingold/orb-tinsource/las"
)

func verticesCmd() *cli.Command {
	var (
		out          string
		classes      []string
		skipWithheld bool
		limit        int64
		geographic   bool
		noIndex      bool
	)

	return &cli.Command{
		Name:      "vertices",
		Usage:     "Export the points of a LAS file as FlatGeobuf vertices",
		ArgsUsage: "<file.las>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "output .fgb path (default: input name with .fgb)",
				Destination: &out,
			},
			&cli.StringSliceFlag{
				Name:        "class",
				Usage:       "keep only these classification codes (repeatable, comma separated)",
				Destination: &classes,
			},
			&cli.BoolFlag{
				Name:        "skip-withheld",
				Usage:       "drop points flagged as withheld",
				Destination: &skipWithheld,
			},
			&cli.Int64Flag{
				Name:        "limit",
				Usage:       "stop after this many points (0 for all)",
				Destination: &limit,
			},
			&cli.BoolFlag{
				Name:        "geographic",
				Usage:       "rescale longitude/latitude to metres about the file centre",
				Destination: &geographic,
			},
			&cli.BoolFlag{
				Name:        "no-index",
				Usage:       "omit the spatial index",
				Destination: &noIndex,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			if cmd.NArg() != 1 {
				return errors.New("vertices: exactly one input file is required")
			}
			applyVertexConfig(cmd, cfg, &classes, &skipWithheld)

			in := cmd.Args().First()
			if out == "" {
				out = strings.TrimSuffix(in, filepath.Ext(in)) + ".fgb"
			}

			r, err := las.Open(in)
			if err != nil {
				return err
			}
			defer r.Close()

			opts := tinsource.VertexOptions{SkipWithheld: skipWithheld, Limit: int(limit)}
			if opts.Classes, err = parseClasses(classes); err != nil {
				return err
			}
			if geographic || r.UsesGeographicModel() {
				opts.Rescale = tinsource.GeographicRescale(r.Header().Bound())
			}

			vertices, err := tinsource.ReadVertices(r, opts)
			if err != nil {
				return err
			}

			fgbOpts := tinsource.DefaultOptions()
			fgbOpts.Name = filepath.Base(in)
			fgbOpts.IncludeIndex = !noIndex
			if opts.Rescale == nil {
				if fgbOpts.CRS, err = tinsource.CRSFromLAS(r); err != nil {
					return err
				}
			}

			if err := writeFile(out, func(f *os.File) error {
				return tinsource.WriteVertices(f, vertices, fgbOpts)
			}); err != nil {
				return err
			}

			log.Info("wrote vertices", "input", in, "output", out, "count", len(vertices), "points", r.PointCount())
			return nil
		},
	}
}

// parseClasses converts classification codes given as flag values.
func parseClasses(values []string) ([]uint8, error) {
	var classes []uint8
	for _, v := range values {
		for _, f := range strings.Split(v, ",") {
			f = strings.TrimSpace(f)
			if f == "" {
				continue
			}
			c, err := strconv.ParseUint(f, 10, 8)
			if err != nil {
				return nil, fmt.Errorf("vertices: invalid classification %q", f)
			}
			classes = append(classes, uint8(c))
		}
	}
	return classes, nil
}

// writeFile creates path, calls write and closes the file, removing it when
// either step fails.
func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return err
	}
	return nil
}
