package main

import (
	"errors"
	"fmt"

	"github.com/Hubmakerlabs/mockrelay/app"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/client"
	"github.com/urfave/cli/v2"
)

var publish = &cli.Command{
	Name:  "publish",
	Usage: "sends every event of preload files to a relay and reports the OK answers",
	Description: `the files are read the same way the relay reads --preload files (.json,
.yaml, .yml or .jsonl). events go through the relay's validation, so fixtures
that are not signed need --sec to be signed on the way.

example:
		mockctl publish ws://127.0.0.1:8080 fixtures.json`,
	ArgsUsage: "<relay-url> <file>...",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "sec",
			Usage: "hex secret key to sign every event with before sending",
		},
	},
	Action: func(c *cli.Context) (err error) {
		if c.NArg() < 2 {
			return fmt.Errorf("specify the <relay-url> and at least one file")
		}
		evs := app.LoadPreloads(c.Args().Tail())
		if len(evs) == 0 {
			return fmt.Errorf("no events found in %v", c.Args().Tail())
		}
		var r *client.T
		if r, err = client.Connect(c.Context, c.Args().First()); err != nil {
			return
		}
		defer r.Close()
		sec := c.String("sec")
		var accepted, rejected int
		for _, ev := range evs {
			if sec != "" {
				if err = ev.Sign(sec); err != nil {
					return
				}
			}
			err = r.Publish(c.Context, ev)
			var rej *client.Rejected
			switch {
			case err == nil:
				accepted++
				fmt.Fprintf(out, "ok %s\n", ev.ID)
			case errors.As(err, &rej):
				rejected++
				fmt.Fprintf(out, "rejected %s: %s\n", ev.ID, rej.Reason)
			default:
				return fmt.Errorf("publishing %s: %w", ev.ID, err)
			}
		}
		log.I.F("%d accepted, %d rejected by %s", accepted, rejected, r.URL())
		return nil
	},
}
