package tags

import (
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/tag"
)

// T is a list of T - which are lists of string elements with ordering and no
// uniqueness constraint (not a set).
type T []tag.T

// GetAll gets all the tags whose key is exactly the given key and that carry
// a value.
func (t T) GetAll(key string) T {
	result := make(T, 0, len(t))
	for _, v := range t {
		if len(v) > tag.Value && v[tag.Key] == key {
			result = append(result, v)
		}
	}
	return result
}

// Values returns the second element of every tag with the given key.
func (t T) Values(key string) (vals []string) {
	for _, v := range t.GetAll(key) {
		vals = append(vals, v[tag.Value])
	}
	return
}

// Clone makes a deep copy of all the tags.
func (t T) Clone() (c T) {
	if t == nil {
		return
	}
	c = make(T, len(t))
	for i := range t {
		c[i] = t[i].Clone()
	}
	return
}
