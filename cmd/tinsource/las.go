package main

import (
	"context"
	"errors"
	"time"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	tinsource "github.com/tingold/orb-tinsource"
	"github.com/tingold/orb-tinsource/las"
)

type lasSummary struct {
	Path              string         `json:"path"`
	Version           string         `json:"version"`
	SystemIdentifier  string         `json:"system_identifier,omitempty"`
	Software          string         `json:"generating_software,omitempty"`
	CreationDate      *time.Time     `json:"creation_date,omitempty"`
	PointFormat       uint8          `json:"point_format"`
	PointRecordLength uint16         `json:"point_record_length"`
	PointCount        int64          `json:"point_count"`
	Compressed        bool           `json:"compressed"`
	GPSTime           string         `json:"gps_time"`
	CRSMode           string         `json:"crs_mode"`
	Scale             [3]float64     `json:"scale"`
	Offset            [3]float64     `json:"offset"`
	Min               [3]float64     `json:"min"`
	Max               [3]float64     `json:"max"`
	ModelType         string         `json:"model_type"`
	LinearUnits       string         `json:"linear_units"`
	CRS               *tinsource.CRS `json:"crs,omitempty"`
	VLRs              []vlrSummary   `json:"vlrs"`
}

type vlrSummary struct {
	UserID      string `json:"user_id"`
	RecordID    uint16 `json:"record_id"`
	Length      uint64 `json:"length"`
	Description string `json:"description,omitempty"`
	Extended    bool   `json:"extended,omitempty"`
}

func lasCmd() *cli.Command {
	return &cli.Command{
		Name:      "las",
		Usage:     "Print the header, VLRs and georeferencing of LAS files as JSON",
		ArgsUsage: "<file.las> [file.las...]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() == 0 {
				return errors.New("las: at least one input file is required")
			}

			summaries := make([]*lasSummary, 0, cmd.NArg())
			for _, path := range cmd.Args().Slice() {
				s, err := summarizeLAS(path)
				if err != nil {
					return err
				}
				summaries = append(summaries, s)
			}

			enc := json.NewEncoder(outWriter(cmd))
			enc.SetIndent("", "  ")
			if len(summaries) == 1 {
				return enc.Encode(summaries[0])
			}
			return enc.Encode(summaries)
		},
	}
}

func summarizeLAS(path string) (*lasSummary, error) {
	r, err := las.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	h := r.Header()
	s := &lasSummary{
		Path:              path,
		Version:           h.Version(),
		SystemIdentifier:  h.SystemIdentifier,
		Software:          h.GeneratingSoftware,
		PointFormat:       h.PointFormat,
		PointRecordLength: h.PointRecordLength,
		PointCount:        r.PointCount(),
		Compressed:        h.Compressed,
		GPSTime:           h.GPSTimeType.String(),
		CRSMode:           h.CRSMode.String(),
		Scale:             [3]float64{h.XScale, h.YScale, h.ZScale},
		Offset:            [3]float64{h.XOffset, h.YOffset, h.ZOffset},
		Min:               [3]float64{h.MinX, h.MinY, h.MinZ},
		Max:               [3]float64{h.MaxX, h.MaxY, h.MaxZ},
		ModelType:         r.ModelType().String(),
		LinearUnits:       r.LinearUnits().String(),
	}
	if !h.CreationDate.IsZero() {
		d := h.CreationDate
		s.CreationDate = &d
	}

	s.CRS, err = tinsource.CRSFromLAS(r)
	if err != nil {
		return nil, err
	}

	s.VLRs = make([]vlrSummary, 0, len(r.VLRs()))
	for _, v := range r.VLRs() {
		s.VLRs = append(s.VLRs, vlrSummary{
			UserID:      v.UserID,
			RecordID:    v.RecordID,
			Length:      v.Length,
			Description: v.Description,
			Extended:    v.Extended,
		})
	}
	return s, nil
}
