package normalize

import (
	"strings"
	"testing"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURL(t *testing.T) {
	for in, want := range map[string]string{
		"":                  "",
		"wss://x.com/y":     "wss://x.com/y",
		"wss://x.com/y/":    "wss://x.com/y",
		"http://x.com/y":    "ws://x.com/y",
		"https://x.com":     "wss://x.com",
		"x.com////":         "wss://x.com",
		"x.com/?x=23":       "wss://x.com?x=23",
		"ws://127.0.0.1:80": "ws://127.0.0.1:80",
	} {
		assert.Equal(t, want, URL(in), in)
	}
	assert.Equal(t, "ws://x.com/y", URL(URL("http://x.com/y")))
}

func TestPubKey(t *testing.T) {
	pub, err := nostr.GetPublicKey(nostr.GeneratePrivateKey())
	require.NoError(t, err)
	npub := Npub(pub)
	require.True(t, strings.HasPrefix(npub, "npub1"))
	assert.Equal(t, pub, PubKey(npub))
	assert.Equal(t, pub, PubKey(strings.ToUpper(pub)))
	assert.Equal(t, pub, PubKey(" "+pub+" "))
	// placeholders survive untouched so that they still index consistently
	assert.Equal(t, "test_pubkey", PubKey("test_pubkey"))
	assert.Equal(t, "npub1garbage", PubKey("npub1garbage"))
	assert.Equal(t, PubKey("test_pubkey"), PubKey(PubKey("test_pubkey")))
	assert.Nil(t, PubKeys(nil))
	assert.Equal(t, []string{pub, "x"}, PubKeys([]string{npub, "x"}))
}
