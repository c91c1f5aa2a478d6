// Command mockctl publishes fixture events into a running relay and queries
// it back.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/Hubmakerlabs/mockrelay/pkg/slog"
	"github.com/urfave/cli/v2"
)

var log, chk = slog.New(os.Stderr)

// out receives the command results; logs go to stderr.
var out io.Writer = os.Stdout

func newApp() *cli.App {
	return &cli.App{
		Name:  "mockctl",
		Usage: "publish fixtures into and query a mock nostr relay",
		Commands: []*cli.Command{
			publish,
			req,
			info,
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "silent",
				Usage:   "do not print logs to stderr",
				Aliases: []string{"s"},
				Action: func(ctx *cli.Context, b bool) error {
					if b {
						slog.SetLogLevel(slog.Off)
					}
					return nil
				},
			},
			&cli.StringFlag{
				Name:  "loglevel",
				Value: "warn",
				Usage: "log level [off,fatal,error,warn,info,debug,trace]",
				Action: func(ctx *cli.Context, s string) error {
					if !slog.SetLogLevelString(s) {
						return fmt.Errorf("unknown log level '%s'", s)
					}
					return nil
				},
			},
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
