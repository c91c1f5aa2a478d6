package filter

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/event"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/kinds"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/normalize"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/timestamp"
	"github.com/Hubmakerlabs/mockrelay/pkg/slog"
)

var log, chk = slog.New(os.Stderr)

// T is a query where one or all elements can be filled in.
//
// A nil slice means the clause is absent and imposes no constraint. A non-nil
// empty slice is a present clause that nothing can satisfy, which is what a
// client sending `"kinds":[]` asked for. The JSON codec preserves the
// difference in both directions.
type T struct {
	IDs     []string     `json:"ids,omitempty"`
	Kinds   kinds.T      `json:"kinds,omitempty"`
	Authors []string     `json:"authors,omitempty"`
	P       []string     `json:"#p,omitempty"`
	Since   *timestamp.T `json:"since,omitempty"`
	Until   *timestamp.T `json:"until,omitempty"`
	Limit   *int         `json:"limit,omitempty"`
}

// wire is T without its methods so the default codec can be reused.
type wire T

// UnmarshalJSON decodes a filter object. Unknown keys, including tag clauses
// other than #p, are ignored.
func (f *T) UnmarshalJSON(b []byte) (err error) {
	if f == nil {
		return fmt.Errorf("cannot unmarshal into nil filter")
	}
	var w wire
	if err = json.Unmarshal(b, &w); chk.T(err) {
		return
	}
	if w.Limit != nil && *w.Limit < 0 {
		return fmt.Errorf("negative limit %d", *w.Limit)
	}
	*f = T(w)
	return
}

// MarshalJSON writes only the present clauses, keeping present-but-empty
// lists as `[]`.
func (f *T) MarshalJSON() (b []byte, err error) {
	o := make(map[string]any, 7)
	if f.IDs != nil {
		o["ids"] = f.IDs
	}
	if f.Kinds != nil {
		o["kinds"] = f.Kinds
	}
	if f.Authors != nil {
		o["authors"] = f.Authors
	}
	if f.P != nil {
		o["#p"] = f.P
	}
	if f.Since != nil {
		o["since"] = *f.Since
	}
	if f.Until != nil {
		o["until"] = *f.Until
	}
	if f.Limit != nil {
		o["limit"] = *f.Limit
	}
	return json.Marshal(o)
}

func (f *T) String() string {
	j, err := json.Marshal(f)
	if chk.D(err) {
		return fmt.Sprintf("%#v", *f)
	}
	return string(j)
}

// Matches reports whether the event satisfies every clause that is present.
// Authors and #p references are compared in their normalized form on both
// sides.
func (f *T) Matches(ev *event.T) bool {
	if ev == nil {
		return false
	}
	if f.IDs != nil && !slices.Contains(f.IDs, ev.ID) {
		return false
	}
	if f.Authors != nil && !containsNormalized(f.Authors, ev.PubKey) {
		return false
	}
	if f.Kinds != nil && !f.Kinds.Contains(ev.Kind) {
		return false
	}
	if f.P != nil {
		var found bool
		for _, ref := range ev.PTags() {
			if containsNormalized(f.P, ref) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Since != nil && ev.CreatedAt < *f.Since {
		return false
	}
	if f.Until != nil && ev.CreatedAt > *f.Until {
		return false
	}
	return true
}

func containsNormalized(list []string, pk string) bool {
	pk = normalize.PubKey(pk)
	for i := range list {
		if normalize.PubKey(list[i]) == pk {
			return true
		}
	}
	return false
}

// GetLimit returns the limit and whether one was given.
func (f *T) GetLimit() (limit int, ok bool) {
	if f == nil || f.Limit == nil {
		return
	}
	return *f.Limit, true
}

// Clone makes a deep copy that preserves absent and empty clauses.
func (f *T) Clone() (clone *T) {
	clone = &T{
		IDs:     slices.Clone(f.IDs),
		Kinds:   f.Kinds.Clone(),
		Authors: slices.Clone(f.Authors),
		P:       slices.Clone(f.P),
	}
	if f.Since != nil {
		clone.Since = f.Since.Ptr()
	}
	if f.Until != nil {
		clone.Until = f.Until.Ptr()
	}
	if f.Limit != nil {
		l := *f.Limit
		clone.Limit = &l
	}
	return
}

// Normalized returns a copy whose authors and #p references are already in
// canonical form.
func (f *T) Normalized() (n *T) {
	n = f.Clone()
	n.Authors = normalize.PubKeys(n.Authors)
	n.P = normalize.PubKeys(n.P)
	return
}
