package envelopes

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/event"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/filter"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/filters"
	"github.com/tidwall/gjson"
)

var (
	ErrNotJSON    = errors.New("message is not valid JSON")
	ErrNotArray   = errors.New("message is not an array")
	ErrEmpty      = errors.New("message array is empty")
	ErrNoLabel    = errors.New("message label is not a string")
	ErrUnknown    = errors.New("unknown message type")
	ErrArity      = errors.New("wrong number of elements")
	ErrFieldTypes = errors.New("bad field type")
)

// peek checks the outer shape of a message and returns its label and
// elements without decoding any of them.
func peek(b []byte) (label string, arr []gjson.Result, err error) {
	if !gjson.ValidBytes(b) {
		return "", nil, ErrNotJSON
	}
	r := gjson.ParseBytes(b)
	if !r.IsArray() {
		return "", nil, ErrNotArray
	}
	if arr = r.Array(); len(arr) == 0 {
		return "", nil, ErrEmpty
	}
	if arr[0].Type != gjson.String {
		return "", nil, ErrNoLabel
	}
	return arr[0].Str, arr, nil
}

func minArity(label string, arr []gjson.Result, n int) error {
	if len(arr) < n {
		return fmt.Errorf("%w: %s needs at least %d, got %d", ErrArity,
			label, n, len(arr))
	}
	return nil
}

func str(label, field string, r gjson.Result) (s string, err error) {
	if r.Type != gjson.String {
		return "", fmt.Errorf("%w: %s %s must be a string", ErrFieldTypes,
			label, field)
	}
	return r.Str, nil
}

func decodeEvent(label string, r gjson.Result) (ev *event.T, err error) {
	if !r.IsObject() {
		return nil, fmt.Errorf("%w: %s event must be an object", ErrFieldTypes,
			label)
	}
	ev = &event.T{}
	if err = json.Unmarshal([]byte(r.Raw), ev); chk.T(err) {
		return nil, fmt.Errorf("%w: %s event: %s", ErrFieldTypes, label, err)
	}
	return
}

func decodeFilters(arr []gjson.Result) (ff filters.T, err error) {
	ff = make(filters.T, 0, len(arr))
	for i := range arr {
		if !arr[i].IsObject() {
			return nil, fmt.Errorf("%w: REQ filter %d must be an object",
				ErrFieldTypes, i)
		}
		f := &filter.T{}
		if err = json.Unmarshal([]byte(arr[i].Raw), f); chk.T(err) {
			return nil, fmt.Errorf("%w: REQ filter %d: %s", ErrFieldTypes, i,
				err)
		}
		ff = append(ff, f)
	}
	return
}

// Decode parses a message sent by a client to a relay: REQ, EVENT, CLOSE or
// AUTH. Anything else, including relay-to-client messages, is an error.
func Decode(b []byte) (env I, err error) {
	var label string
	var arr []gjson.Result
	if label, arr, err = peek(b); err != nil {
		return
	}
	switch label {
	case LabelReq:
		if err = minArity(label, arr, 3); err != nil {
			return
		}
		req := &Req{}
		if req.SubscriptionID, err = str(label, "subscription id", arr[1]); err != nil {
			return
		}
		if req.Filters, err = decodeFilters(arr[2:]); err != nil {
			return
		}
		return req, nil
	case LabelEvent:
		if err = minArity(label, arr, 2); err != nil {
			return
		}
		ev := &Event{}
		if ev.Event, err = decodeEvent(label, arr[1]); err != nil {
			return
		}
		return ev, nil
	case LabelClose:
		if err = minArity(label, arr, 2); err != nil {
			return
		}
		c := &Close{}
		if c.SubscriptionID, err = str(label, "subscription id", arr[1]); err != nil {
			return
		}
		return c, nil
	case LabelAuth:
		if err = minArity(label, arr, 2); err != nil {
			return
		}
		a := &AuthResponse{}
		if a.Event, err = decodeEvent(label, arr[1]); err != nil {
			return
		}
		return a, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknown, label)
}

// DecodeRelay parses a message sent by a relay to a client: EVENT with a
// subscription id, EOSE, OK, NOTICE or an AUTH challenge.
func DecodeRelay(b []byte) (env I, err error) {
	var label string
	var arr []gjson.Result
	if label, arr, err = peek(b); err != nil {
		return
	}
	switch label {
	case LabelEvent:
		if err = minArity(label, arr, 3); err != nil {
			return
		}
		ev := &Event{}
		if ev.SubscriptionID, err = str(label, "subscription id", arr[1]); err != nil {
			return
		}
		if ev.Event, err = decodeEvent(label, arr[2]); err != nil {
			return
		}
		return ev, nil
	case LabelEOSE:
		if err = minArity(label, arr, 2); err != nil {
			return
		}
		e := &EOSE{}
		if e.SubscriptionID, err = str(label, "subscription id", arr[1]); err != nil {
			return
		}
		return e, nil
	case LabelOK:
		if err = minArity(label, arr, 3); err != nil {
			return
		}
		ok := &OK{}
		if ok.EventID, err = str(label, "event id", arr[1]); err != nil {
			return
		}
		if arr[2].Type != gjson.True && arr[2].Type != gjson.False {
			return nil, fmt.Errorf("%w: OK accepted must be a boolean",
				ErrFieldTypes)
		}
		ok.OK = arr[2].Bool()
		if len(arr) > 3 {
			ok.Reason = arr[3].String()
		}
		return ok, nil
	case LabelNotice:
		if err = minArity(label, arr, 2); err != nil {
			return
		}
		return &Notice{Message: arr[1].String()}, nil
	case LabelAuth:
		if err = minArity(label, arr, 2); err != nil {
			return
		}
		a := &AuthChallenge{}
		if a.Challenge, err = str(label, "challenge", arr[1]); err != nil {
			return
		}
		return a, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknown, label)
}
