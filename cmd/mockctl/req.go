package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/client"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/envelopes"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/filter"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/filters"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/kinds"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/timestamp"
	"github.com/urfave/cli/v2"
)

const CategoryFilterAttributes = "FILTER ATTRIBUTES"

var req = &cli.Command{
	Name:  "req",
	Usage: "queries relays with a filter and prints the events as JSON lines",
	Description: `without relays the REQ message is printed instead.

example:
		mockctl req -k 4 -p 3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d ws://127.0.0.1:8080`,
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:     "author",
			Aliases:  []string{"a"},
			Usage:    "only accept events from these authors (hex or npub)",
			Category: CategoryFilterAttributes,
		},
		&cli.StringSliceFlag{
			Name:     "id",
			Aliases:  []string{"i"},
			Usage:    "only accept events with these ids",
			Category: CategoryFilterAttributes,
		},
		&cli.IntSliceFlag{
			Name:     "kind",
			Aliases:  []string{"k"},
			Usage:    "only accept events with these kind numbers",
			Category: CategoryFilterAttributes,
		},
		&cli.StringSliceFlag{
			Name:     "p",
			Usage:    "only accept events with a p tag for one of these identities",
			Category: CategoryFilterAttributes,
		},
		&cli.StringFlag{
			Name:     "since",
			Usage:    "only accept events at or after this unix timestamp, or now",
			Category: CategoryFilterAttributes,
		},
		&cli.StringFlag{
			Name:     "until",
			Usage:    "only accept events at or before this unix timestamp, or now",
			Category: CategoryFilterAttributes,
		},
		&cli.IntFlag{
			Name:     "limit",
			Aliases:  []string{"l"},
			Usage:    "only accept up to this number of events",
			Value:    -1,
			Category: CategoryFilterAttributes,
		},
		&cli.BoolFlag{
			Name:        "stream",
			Usage:       "keep the subscription open, printing events as they arrive",
			DefaultText: "false, will close on EOSE",
		},
		&cli.BoolFlag{
			Name:  "verify",
			Usage: "drop events whose signature does not verify",
		},
	},
	ArgsUsage: "[relay...]",
	Action: func(c *cli.Context) (err error) {
		var f *filter.T
		if f, err = buildFilter(c); err != nil {
			return
		}
		ff := filters.T{f}
		if c.NArg() == 0 {
			fmt.Fprintln(out, string(envelopes.Bytes(
				&envelopes.Req{SubscriptionID: "mockctl", Filters: ff})))
			return
		}
		var opts []client.Option
		if !c.Bool("verify") {
			opts = append(opts, client.WithAssumeValid())
		}
		for _, url := range c.Args().Slice() {
			if err = query(c, url, ff, opts); err != nil {
				return
			}
		}
		return
	},
}

func query(c *cli.Context, url string, ff filters.T,
	opts []client.Option) (err error) {

	var r *client.T
	if r, err = client.Connect(c.Context, url, opts...); err != nil {
		return
	}
	defer r.Close()
	var s *client.Subscription
	if s, err = r.Subscribe(c.Context, "mockctl", ff,
		c.Bool("stream")); err != nil {
		return
	}
	enc := json.NewEncoder(out)
	for ev := range s.Events {
		if err = enc.Encode(ev); err != nil {
			return
		}
	}
	return
}

func parseTime(s string) (ts *timestamp.T, err error) {
	if s == "now" {
		return timestamp.Now().Ptr(), nil
	}
	var i int64
	if i, err = strconv.ParseInt(s, 10, 64); err != nil {
		return nil, fmt.Errorf("parse error: invalid numeric literal %q", s)
	}
	return timestamp.T(i).Ptr(), nil
}

func buildFilter(c *cli.Context) (f *filter.T, err error) {
	f = &filter.T{}
	if authors := c.StringSlice("author"); len(authors) > 0 {
		f.Authors = authors
	}
	if ids := c.StringSlice("id"); len(ids) > 0 {
		f.IDs = ids
	}
	if k := kinds.FromIntSlice(c.IntSlice("kind")); len(k) > 0 {
		f.Kinds = k
	}
	if p := c.StringSlice("p"); len(p) > 0 {
		f.P = p
	}
	if since := c.String("since"); since != "" {
		if f.Since, err = parseTime(since); err != nil {
			return
		}
	}
	if until := c.String("until"); until != "" {
		if f.Until, err = parseTime(until); err != nil {
			return
		}
	}
	if limit := c.Int("limit"); limit >= 0 {
		f.Limit = &limit
	}
	return
}
