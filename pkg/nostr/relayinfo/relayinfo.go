// Package relayinfo is the NIP-11 relay information document.
package relayinfo

import (
	"encoding/json"
	"errors"
	"os"
	"slices"
	"sync"

	"github.com/Hubmakerlabs/mockrelay/pkg/slog"
)

var log, chk = slog.New(os.Stderr)

type NIP struct {
	Description string
	Number      int
}

// the NIPs a mock relay has something to say about.
var (
	BasicProtocol            = NIP{"Basic protocol flow description", 1}
	NIP1                     = BasicProtocol
	EncryptedDirectMessage   = NIP{"Encrypted Direct Message", 4}
	NIP4                     = EncryptedDirectMessage
	RelayInformationDocument = NIP{"Relay Information Document", 11}
	NIP11                    = RelayInformationDocument
	Bech32EncodedEntities    = NIP{"bech32-encoded entities", 19}
	NIP19                    = Bech32EncodedEntities
	Authentication           = NIP{"Authentication of clients to relays", 42}
	NIP42                    = Authentication
)

var NIPMap = map[int]NIP{
	1:  NIP1,
	4:  NIP4,
	11: NIP11,
	19: NIP19,
	42: NIP42,
}

// Limits specifies the various restrictions and limitations that apply to
// interactions with a given relay.
type Limits struct {
	// MaxMessageLength is the maximum number of bytes for incoming JSON
	// that the relay will attempt to decode and act upon.
	MaxMessageLength int  `json:"max_message_length,omitempty"`
	MaxSubscriptions int  `json:"max_subscriptions,omitempty"`
	MaxFilters       int  `json:"max_filters,omitempty"`
	MaxLimit         int  `json:"max_limit,omitempty"`
	MaxSubidLength   int  `json:"max_subid_length,omitempty"`
	AuthRequired     bool `json:"auth_required"`
	PaymentRequired  bool `json:"payment_required"`
	RestrictedWrites bool `json:"restricted_writes"`
}

// T provides the information for a relay on the network as regards to
// versions, NIP support, contact and limitations.
type T struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	PubKey        string   `json:"pubkey"`
	Contact       string   `json:"contact"`
	Nips          []int    `json:"supported_nips"`
	Software      string   `json:"software"`
	Version       string   `json:"version"`
	Limitation    Limits   `json:"limitation"`
	Tags          []string `json:"tags,omitempty"`
	PostingPolicy string   `json:"posting_policy,omitempty"`
	Icon          string   `json:"icon,omitempty"`
	mx            sync.Mutex
}

// NewInfo uses the given document, or a fresh one when inf is nil.
func NewInfo(inf *T) (info *T) {
	if inf != nil {
		return inf
	}
	return &T{Nips: []int{}}
}

// AddNIPs adds NIP numbers keeping the list sorted and free of repeats.
func (ri *T) AddNIPs(n ...int) {
	ri.mx.Lock()
	defer ri.mx.Unlock()
	for _, num := range n {
		if i, found := slices.BinarySearch(ri.Nips, num); !found {
			ri.Nips = slices.Insert(ri.Nips, i, num)
		}
	}
}

func (ri *T) HasNIP(n int) (ok bool) {
	ri.mx.Lock()
	defer ri.mx.Unlock()
	_, ok = slices.BinarySearch(ri.Nips, n)
	return
}

// Bytes returns the document as JSON.
func (ri *T) Bytes() (b []byte, err error) {
	ri.mx.Lock()
	defer ri.mx.Unlock()
	return json.Marshal(ri)
}

func (ri *T) Save(filename string) (err error) {
	if ri == nil {
		err = errors.New("cannot save nil relay info document")
		log.E.Ln(err)
		return
	}
	var b []byte
	ri.mx.Lock()
	b, err = json.MarshalIndent(ri, "", "    ")
	ri.mx.Unlock()
	if chk.E(err) {
		return
	}
	if err = os.WriteFile(filename, b, 0600); chk.E(err) {
		return
	}
	return
}

func (ri *T) Load(filename string) (err error) {
	if ri == nil {
		err = errors.New("cannot load into nil relay info document")
		log.E.Ln(err)
		return
	}
	var b []byte
	if b, err = os.ReadFile(filename); chk.E(err) {
		return
	}
	ri.mx.Lock()
	defer ri.mx.Unlock()
	if err = json.Unmarshal(b, ri); chk.E(err) {
		return
	}
	slices.Sort(ri.Nips)
	return
}
