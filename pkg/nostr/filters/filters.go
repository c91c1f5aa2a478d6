package filters

import (
	"encoding/json"

	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/event"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/filter"
)

// T is a list of filters combined with OR. An empty list matches everything.
type T []*filter.T

func (eff T) String() string {
	b, _ := json.Marshal(eff)
	return string(b)
}

// Match reports whether any filter accepts the event.
func (eff T) Match(ev *event.T) bool {
	if len(eff) == 0 {
		return ev != nil
	}
	for _, f := range eff {
		if f.Matches(ev) {
			return true
		}
	}
	return false
}

// Limit is the limit of the first filter, which governs the whole query.
func (eff T) Limit() (limit int, ok bool) {
	if len(eff) == 0 {
		return
	}
	return eff[0].GetLimit()
}

func (eff T) Clone() (c T) {
	if eff == nil {
		return
	}
	c = make(T, len(eff))
	for i := range eff {
		c[i] = eff[i].Clone()
	}
	return
}

// Normalized returns a copy with every filter's identities in canonical form.
func (eff T) Normalized() (c T) {
	if eff == nil {
		return
	}
	c = make(T, len(eff))
	for i := range eff {
		c[i] = eff[i].Normalized()
	}
	return
}
