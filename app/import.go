package app

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/event"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/eventstore"
	"gopkg.in/yaml.v3"
)

// Profile is a fixture identity. Only the events are loaded into relays; the
// keys are carried so fixture files survive an export round trip.
type Profile struct {
	PubKey     string `json:"pubkey" yaml:"pubkey"`
	PrivateKey string `json:"private_key" yaml:"private_key"`
	Name       string `json:"name,omitempty" yaml:"name,omitempty"`
}

// Preload is the fixture file format.
type Preload struct {
	Profiles []Profile `json:"profiles,omitempty" yaml:"profiles,omitempty"`
	Events   event.Ts  `json:"events" yaml:"events"`
	Relays   []string  `json:"relays,omitempty" yaml:"relays,omitempty"`
}

// LoadPreload reads a fixture file. The extension selects the format: .yaml
// and .yml are YAML, .jsonl is one event JSON per line, anything else is the
// JSON object form.
func LoadPreload(filename string) (p *Preload, err error) {
	var fh *os.File
	if fh, err = os.Open(filename); chk.D(err) {
		return
	}
	defer fh.Close()
	p = &Preload{}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		if err = yaml.NewDecoder(fh).Decode(p); err != nil && err != io.EOF {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
		err = nil
	case ".jsonl":
		if p.Events, err = ReadJSONL(fh, MaxMessageSize); err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
	default:
		if err = json.NewDecoder(fh).Decode(p); err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
	}
	log.D.F("loaded %d events and %d profiles from %s", len(p.Events),
		len(p.Profiles), filename)
	return
}

// ReadJSONL reads line structured JSON events. Blank lines are skipped and a
// line that does not decode is logged and skipped.
func ReadJSONL(r io.Reader, maxLine int) (evs event.Ts, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	var line int
	for scanner.Scan() {
		line++
		b := scanner.Bytes()
		if len(strings.TrimSpace(string(b))) == 0 {
			continue
		}
		ev := &event.T{}
		if err = json.Unmarshal(b, ev); chk.D(err) {
			log.W.F("skipping line %d: %v", line, err)
			continue
		}
		evs = append(evs, ev)
	}
	err = scanner.Err()
	return
}

// LoadPreloads reads every file, logging and skipping the ones that fail.
func LoadPreloads(files []string) (evs event.Ts) {
	for _, fn := range files {
		p, err := LoadPreload(fn)
		if err != nil {
			log.W.F("failed to load preload events: %v", err)
			continue
		}
		evs = append(evs, p.Events...)
	}
	return
}

// SeedStore adds events straight to a store, without validation, the way
// fixtures are seeded out of band. Events without an id are skipped.
func SeedStore(store eventstore.I, evs event.Ts) (n int) {
	for _, ev := range evs {
		if ev == nil || ev.ID == "" {
			continue
		}
		store.AddEvent(ev)
		n++
	}
	return
}
