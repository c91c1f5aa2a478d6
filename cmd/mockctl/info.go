package main

import (
	"encoding/json"
	"fmt"

	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/relayinfo"
	"github.com/urfave/cli/v2"
)

var info = &cli.Command{
	Name:  "info",
	Usage: "gets the relay information document of a relay, as JSON",
	Description: `example:
		mockctl info ws://127.0.0.1:8080`,
	ArgsUsage: "<relay-url>",
	Action: func(c *cli.Context) error {
		url := c.Args().First()
		if url == "" {
			return fmt.Errorf("specify the <relay-url>")
		}
		inf, err := relayinfo.Fetch(c.Context, url)
		if err != nil {
			return fmt.Errorf("failed to fetch '%s' information document: %w",
				url, err)
		}
		pretty, _ := json.MarshalIndent(inf, "", "  ")
		fmt.Fprintln(out, string(pretty))
		return nil
	},
}
