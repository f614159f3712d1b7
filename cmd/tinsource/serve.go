package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/paulmach/orb"
	"github.com/urfave/cli/v3"

	tinsource "github.com/tingold/orb-tinsource"
	"github.com/tingold/orb-tinsource/internal/logger"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
		tagProperty string
		attributes  bool
	)

	return &cli.Command{
		Name:      "serve",
		Usage:     "Serve constraint files over HTTP as FlatGeobuf and GeoJSON",
		ArgsUsage: "<file> [file...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read header timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
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
				return errors.New("serve: at least one input file is required")
			}
			applyConstraintConfig(cmd, cfg, &tagProperty, &attributes)
			applyServeConfig(cmd, cfg, &addr)

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

			srv, err := newServer(all, summaries)
			if err != nil {
				return err
			}

			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			srv.register(e)

			log.Info("starting server", "address", addr, "constraints", len(all))
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(s *http.Server) error {
					s.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}

// server holds the encoded constraint payloads. They are built once and
// never modified.
type server struct {
	summaries   []constraintSummary
	fgb         []byte
	fgbETag     string
	geojson     []byte
	geojsonETag string
}

func newServer(constraints []*tinsource.Constraint, summaries []constraintSummary) (*server, error) {
	if len(constraints) == 0 {
		return nil, errors.New("serve: no constraints loaded")
	}

	var buf bytes.Buffer
	opts := tinsource.DefaultOptions()
	opts.Name = "constraints"
	if err := tinsource.WriteConstraints(&buf, constraints, opts); err != nil {
		return nil, err
	}
	gj, err := tinsource.FeatureCollection(constraints).MarshalJSON()
	if err != nil {
		return nil, err
	}

	return &server{
		summaries:   summaries,
		fgb:         buf.Bytes(),
		fgbETag:     etag(buf.Bytes()),
		geojson:     gj,
		geojsonETag: etag(gj),
	}, nil
}

func (s *server) register(e *echo.Echo) {
	e.GET("/health", s.handleHealth)
	e.GET("/constraints", s.handleSummary)
	e.GET("/constraints.fgb", s.handleFlatGeobuf)
	e.GET("/constraints.geojson", s.handleGeoJSON)
}

func (s *server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleSummary(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.summaries)
}

func (s *server) handleFlatGeobuf(c *echo.Context) error {
	return serveBlob(c, "application/flatgeobuf", s.fgb, s.fgbETag)
}

// handleGeoJSON serves every constraint, or with a bbox=minX,minY,maxX,maxY
// query only those whose bounds intersect it.
func (s *server) handleGeoJSON(c *echo.Context) error {
	q := c.QueryParam("bbox")
	if q == "" {
		return serveBlob(c, "application/geo+json", s.geojson, s.geojsonETag)
	}

	bound, err := parseBBox(q)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	r, err := tinsource.NewReaderFromData(s.fgb)
	if err != nil {
		return err
	}
	fc, err := r.Search(bound)
	if err != nil {
		return err
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return err
	}
	return serveBlob(c, "application/geo+json", data, etag(data))
}

func serveBlob(c *echo.Context, contentType string, data []byte, tag string) error {
	h := c.Response().Header()
	h.Set("ETag", tag)
	h.Set("Access-Control-Allow-Origin", "*")
	if match := c.Request().Header.Get("If-None-Match"); match == tag {
		return c.NoContent(http.StatusNotModified)
	}
	return c.Blob(http.StatusOK, contentType, data)
}

func etag(data []byte) string {
	return fmt.Sprintf(`"%016x"`, xxhash.Sum64(data))
}

func parseBBox(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("bbox needs 4 values, got %d", len(parts))
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("bbox value %q is not a number", p)
		}
		v[i] = f
	}
	if v[0] > v[2] || v[1] > v[3] {
		return orb.Bound{}, errors.New("bbox minimum exceeds maximum")
	}
	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}
