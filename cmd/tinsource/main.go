// Command tinsource inspects LAS point clouds and converts constraint files
// for constrained triangulation.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/tingold/orb-tinsource/internal/logger"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	var (
		configFile string
		logLevel   string
		logFormat  string
	)

	return &cli.Command{
		Name:  "tinsource",
		Usage: "Read triangulation inputs from LAS, Shapefile, text and FlatGeobuf files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Usage:       "path to a YAML config file",
				Destination: &configFile,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error)",
				Value:       "info",
				Destination: &logLevel,
			},
			&cli.StringFlag{
				Name:        "log-format",
				Usage:       "log format (text, json)",
				Value:       "text",
				Destination: &logFormat,
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			c, err := loadConfig(configFile)
			if err != nil {
				return ctx, err
			}
			if c.LogLevel != "" && !cmd.IsSet("log-level") {
				logLevel = c.LogLevel
			}
			if c.LogFormat != "" && !cmd.IsSet("log-format") {
				logFormat = c.LogFormat
			}
			cfg = c
			log := logger.Configure(errWriter(cmd), logLevel, logFormat)
			return logger.WithContext(ctx, log), nil
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			lasCmd(),
			verticesCmd(),
			constraintsCmd(),
			serveCmd(),
		},
	}
}
