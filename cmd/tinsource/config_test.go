package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	tinsource "github.com/tingold/orb-tinsource"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeTemp(t, "config.yaml", `
log_level: debug
tag_property: id
attributes: true
classes: [2, 9]
skip_withheld: false
server_address: ":9000"
`)
	c, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, "id", c.TagProperty)
	require.NotNil(t, c.Attributes)
	assert.True(t, *c.Attributes)
	assert.Equal(t, []int{2, 9}, c.Classes)
	require.NotNil(t, c.SkipWithheld)
	assert.False(t, *c.SkipWithheld)
	assert.Equal(t, ":9000", c.ServerAddress)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = loadConfig(writeTemp(t, "bad.yaml", "classes: [1, 2\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestApplyConfig(t *testing.T) {
	yes := true
	c := Config{TagProperty: "id", Attributes: &yes, Classes: []int{2}, SkipWithheld: &yes, ServerAddress: ":9000"}

	var (
		tag      = "tag"
		attrs    bool
		classes  []string
		withheld bool
		addr     = "127.0.0.1:8080"
	)
	cmd := &cli.Command{
		Name: "test",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "tag-property", Destination: &tag, Value: "tag"},
			&cli.BoolFlag{Name: "attributes", Destination: &attrs},
			&cli.StringSliceFlag{Name: "class", Destination: &classes},
			&cli.BoolFlag{Name: "skip-withheld", Destination: &withheld},
			&cli.StringFlag{Name: "addr", Destination: &addr, Value: "127.0.0.1:8080"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyConstraintConfig(cmd, c, &tag, &attrs)
			applyVertexConfig(cmd, c, &classes, &withheld)
			applyServeConfig(cmd, c, &addr)
			return nil
		},
	}
	require.NoError(t, cmd.Run(context.Background(), []string{"test", "--tag-property", "name", "--class", "6"}))

	assert.Equal(t, "name", tag, "flag wins over config")
	assert.True(t, attrs)
	assert.Equal(t, []string{"6"}, classes, "flag wins over config")
	assert.True(t, withheld)
	assert.Equal(t, ":9000", addr)
}

func TestParseClasses(t *testing.T) {
	got, err := parseClasses([]string{"2, 6", "9", ""})
	require.NoError(t, err)
	assert.Equal(t, []uint8{2, 6, 9}, got)

	got, err = parseClasses(nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = parseClasses([]string{"256"})
	assert.Error(t, err)
	_, err = parseClasses([]string{"ground"})
	assert.Error(t, err)
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard
	empty := writeTemp(t, "config.yaml", "")
	err := app.Run(context.Background(), append([]string{"tinsource", "--config", empty}, args...))
	return out.String(), err
}

func TestConstraintsCommand(t *testing.T) {
	ring := writeTemp(t, "ring.txt", "0,0,1\n10,0,1\n10,10,1\n0,10,1\n0,0,1\n")

	t.Run("summary", func(t *testing.T) {
		out, err := runApp(t, "constraints", ring)
		require.NoError(t, err)
		var got []constraintSummary
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		require.Len(t, got, 1)
		assert.Equal(t, ring, got[0].Path)
		assert.Equal(t, 1, got[0].Polygons)
		assert.Equal(t, 4, got[0].Vertices)
		assert.Equal(t, [4]float64{0, 0, 10, 10}, got[0].Bound)
		assert.InDelta(t, 100, got[0].Area, 1e-9)
	})

	t.Run("fgb", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.fgb")
		_, err := runApp(t, "constraints", "--format", "fgb", "--out", path, ring)
		require.NoError(t, err)

		r, err := tinsource.NewReader(path)
		require.NoError(t, err)
		defer r.Close()
		cs, err := r.ReadConstraints("tag")
		require.NoError(t, err)
		require.Len(t, cs, 1)
		assert.Equal(t, tinsource.PolygonConstraint, cs[0].Kind)
	})

	t.Run("unknown format", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.bin")
		_, err := runApp(t, "constraints", "--format", "kml", "--out", path, ring)
		require.Error(t, err)
		assert.NoFileExists(t, path)
	})

	t.Run("no input", func(t *testing.T) {
		_, err := runApp(t, "constraints")
		assert.Error(t, err)
	})
}

func TestLASCommand_Missing(t *testing.T) {
	_, err := runApp(t, "las", filepath.Join(t.TempDir(), "missing.las"))
	assert.Error(t, err)
}
