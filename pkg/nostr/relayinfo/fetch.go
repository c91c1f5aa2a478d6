package relayinfo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Fetch fetches the NIP-11 document of the relay at u, which may be given
// with a ws, wss, http or https scheme.
func Fetch(c context.Context, u string) (info *T, err error) {
	if _, ok := c.Deadline(); !ok {
		// if no timeout is set, force it to 7 seconds
		var cancel context.CancelFunc
		c, cancel = context.WithTimeout(c, 7*time.Second)
		defer cancel()
	}
	if !strings.HasPrefix(u, "http") && !strings.HasPrefix(u, "ws") {
		u = "wss://" + u
	}
	var p *url.URL
	if p, err = url.Parse(u); chk.D(err) {
		return nil, fmt.Errorf("cannot parse url: %s", u)
	}
	switch p.Scheme {
	case "ws":
		p.Scheme = "http"
	case "wss":
		p.Scheme = "https"
	}
	p.Path = strings.TrimRight(p.Path, "/")
	var req *http.Request
	if req, err = http.NewRequestWithContext(c, http.MethodGet, p.String(),
		nil); chk.E(err) {
		return
	}
	req.Header.Add("Accept", "application/nostr+json")
	var resp *http.Response
	if resp, err = http.DefaultClient.Do(req); err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("relay info: unexpected status %s", resp.Status)
	}
	var b []byte
	if b, err = io.ReadAll(resp.Body); chk.E(err) {
		return
	}
	info = &T{}
	if err = json.Unmarshal(b, info); chk.E(err) {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	return
}
