package app

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/eventstore"
	"gopkg.in/yaml.v3"
)

// WritePreload writes a fixture file in the format its extension selects, the
// same way LoadPreload reads them.
func WritePreload(filename string, p *Preload) (err error) {
	var b []byte
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		if b, err = yaml.Marshal(p); chk.E(err) {
			return
		}
	case ".jsonl":
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		for _, ev := range p.Events {
			if err = enc.Encode(ev); chk.E(err) {
				return
			}
		}
		b = buf.Bytes()
	default:
		if b, err = json.MarshalIndent(p, "", "  "); chk.E(err) {
			return
		}
	}
	if err = os.WriteFile(filename, b, 0644); chk.E(err) {
		return
	}
	log.I.F("wrote %d events to %s", len(p.Events), filename)
	return
}

// Export writes every event in the store to a fixture file, listing the given
// relay URLs.
func Export(store eventstore.I, filename string, relays []string) (err error) {
	return WritePreload(filename, &Preload{Events: store.All(), Relays: relays})
}
