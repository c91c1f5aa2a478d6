package kinds

import (
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/kind"
)

// T is a list of kinds, as used in the kinds clause of a filter.
type T []kind.T

func FromIntSlice(is []int) (k T) {
	if is == nil {
		return
	}
	k = make(T, 0, len(is))
	for i := range is {
		k = append(k, kind.T(is[i]))
	}
	return
}

// Clone makes a new kinds.T with the same members. A nil list stays nil, as
// it means the clause is absent.
func (ar T) Clone() (c T) {
	if ar == nil {
		return
	}
	c = make(T, len(ar))
	copy(c, ar)
	return
}

// Contains returns true if the provided element is found in the kinds.T.
func (ar T) Contains(s kind.T) bool {
	for i := range ar {
		if ar[i] == s {
			return true
		}
	}
	return false
}

// Equals checks that the provided kinds.T has the same members in the same
// order.
func (ar T) Equals(t1 T) bool {
	if len(ar) != len(t1) {
		return false
	}
	for i := range ar {
		if ar[i] != t1[i] {
			return false
		}
	}
	return true
}
