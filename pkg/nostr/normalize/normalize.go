package normalize

import (
	"encoding/hex"
	"net/url"
	"strings"

	"github.com/nbd-wtf/go-nostr/nip19"
)

// URL normalizes the url and replaces http://, https:// schemes by
// ws://, wss://.
func URL(u string) string {
	if u == "" {
		return ""
	}
	u = strings.TrimSpace(u)
	u = strings.ToLower(u)
	// if prefix isn't specified as http/s or websocket, assume secure
	// websocket and add wss prefix (this is the most common).
	if !(strings.HasPrefix(u, "http://") ||
		strings.HasPrefix(u, "https://") ||
		strings.HasPrefix(u, "ws://") ||
		strings.HasPrefix(u, "wss://")) {
		u = "wss://" + u
	}
	var e error
	var p *url.URL
	p, e = url.Parse(u)
	if e != nil {
		return ""
	}
	// convert http/s to ws/s
	switch p.Scheme {
	case "https":
		p.Scheme = "wss"
	case "http":
		p.Scheme = "ws"
	}
	// remove trailing path slash
	p.Path = strings.TrimRight(p.Path, "/")
	return p.String()
}

// PubKeyLen is the length of a public key in its canonical hex form.
const PubKeyLen = 64

// PubKey converts an identity in any accepted encoding (hex of either case,
// or bech32 npub) into lowercase hex. Strings that cannot be interpreted are
// returned trimmed but otherwise untouched so that they still compare and
// index consistently.
func PubKey(pk string) string {
	pk = strings.TrimSpace(pk)
	if strings.HasPrefix(pk, "npub1") {
		if prefix, v, err := nip19.Decode(pk); err == nil && prefix == "npub" {
			if s, ok := v.(string); ok {
				return s
			}
		}
		return pk
	}
	if len(pk) == PubKeyLen {
		lower := strings.ToLower(pk)
		if _, err := hex.DecodeString(lower); err == nil {
			return lower
		}
	}
	return pk
}

// PubKeys normalizes every element of a list into a new slice.
func PubKeys(pks []string) (out []string) {
	if pks == nil {
		return
	}
	out = make([]string, len(pks))
	for i := range pks {
		out[i] = PubKey(pks[i])
	}
	return
}

// Npub renders a public key as bech32 for logs, falling back to the input.
func Npub(pk string) string {
	hx := PubKey(pk)
	if len(hx) != PubKeyLen {
		return pk
	}
	if npub, err := nip19.EncodePublicKey(hx); err == nil {
		return npub
	}
	return pk
}
