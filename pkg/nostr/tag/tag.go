package tag

// The tag position meanings so they are clear when reading.
const (
	Key = iota
	Value
	Relay
)

// T marks a nostr tag, an ordered list of strings whose first element names
// its meaning.
type T []string

// Key returns the first element of the tag.
func (t T) Key() string {
	if len(t) > Key {
		return t[Key]
	}
	return ""
}

// Value returns the second element of the tag.
func (t T) Value() string {
	if len(t) > Value {
		return t[Value]
	}
	return ""
}

// Clone makes a new tag.T with the same members.
func (t T) Clone() (c T) {
	if t == nil {
		return
	}
	c = make(T, len(t))
	copy(c, t)
	return
}
