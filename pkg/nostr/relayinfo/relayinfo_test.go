package relayinfo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddNIPsSortedUnique(t *testing.T) {
	ri := NewInfo(nil)
	ri.AddNIPs(42, 1, 11, 1)
	ri.AddNIPs(4)
	assert.Equal(t, []int{1, 4, 11, 42}, ri.Nips)
	assert.True(t, ri.HasNIP(11))
	assert.False(t, ri.HasNIP(2))
}

func TestSaveLoad(t *testing.T) {
	ri := NewInfo(&T{Name: "mock", Description: "test relay"})
	ri.AddNIPs(11, 1)
	fn := filepath.Join(t.TempDir(), "info.json")
	require.NoError(t, ri.Save(fn))
	back := NewInfo(nil)
	require.NoError(t, back.Load(fn))
	assert.Equal(t, "mock", back.Name)
	assert.Equal(t, []int{1, 11}, back.Nips)
}

func TestFetch(t *testing.T) {
	ri := NewInfo(&T{Name: "mock"})
	ri.AddNIPs(1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter,
		r *http.Request) {
		if r.Header.Get("Accept") != "application/nostr+json" {
			http.NotFound(w, r)
			return
		}
		b, _ := ri.Bytes()
		_, _ = w.Write(b)
	}))
	defer srv.Close()
	u := "ws" + srv.URL[len("http"):] + "/"
	got, err := Fetch(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, "mock", got.Name)
	assert.Equal(t, []int{1}, got.Nips)
}
