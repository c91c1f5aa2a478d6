package kind

import (
	"fmt"
)

// T - which will be externally referenced as kind.T is the event type in the
// nostr protocol.
type T uint16

func (ki T) ToInt() int       { return int(ki) }
func (ki T) ToUint16() uint16 { return uint16(ki) }

const (
	// ProfileMetadata is an event type that stores user profile data, pet
	// names, bio, lightning address, etc.
	ProfileMetadata T = 0
	// TextNote is a standard short text note of plain text.
	TextNote T = 1
	// FollowList an event containing a list of pubkeys of users that should be
	// shown as follows in a timeline.
	FollowList T = 3
	// EncryptedDirectMessage carries NIP-04 ciphertext addressed with a p tag.
	EncryptedDirectMessage T = 4
	// Deletion requests the removal of events it references.
	Deletion T = 5
	// ClientAuthentication is the NIP-42 AUTH response event.
	ClientAuthentication T = 22242
)

var Map = map[T]string{
	ProfileMetadata:        "ProfileMetadata",
	TextNote:               "TextNote",
	FollowList:             "FollowList",
	EncryptedDirectMessage: "EncryptedDirectMessage",
	Deletion:               "Deletion",
	ClientAuthentication:   "ClientAuthentication",
}

// GetString returns a readable name for the kind, or its number.
func GetString(t T) string {
	if s, ok := Map[t]; ok {
		return s
	}
	return fmt.Sprintf("Kind%d", t)
}

func (ki T) String() string { return GetString(ki) }
