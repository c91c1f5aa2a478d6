// Package memory is an eventstore.I held entirely in memory, with secondary
// indices by kind and by author.
package memory

import (
	"cmp"
	"os"
	"sync"

	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/event"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/eventstore"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/filter"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/filters"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/kind"
	"github.com/Hubmakerlabs/mockrelay/pkg/nostr/normalize"
	"github.com/Hubmakerlabs/mockrelay/pkg/slog"
	"golang.org/x/exp/slices"
)

var log, chk = slog.New(os.Stderr)

var _ eventstore.I = (*Store)(nil)

// Store keeps events by id. The kind and author indices are append-only
// lists of ids and may hold stale or repeated entries after an id is
// re-added; they only ever narrow the candidates a query considers, the
// filter predicate decides the result.
type Store struct {
	mx       sync.RWMutex
	events   map[string]*event.T
	byKind   map[kind.T][]string
	byAuthor map[string][]string
	serial   eventstore.Serial
}

func New() *Store {
	return &Store{
		events:   make(map[string]*event.T),
		byKind:   make(map[kind.T][]string),
		byAuthor: make(map[string][]string),
	}
}

func (s *Store) AddEvent(ev *event.T) eventstore.Serial {
	ev = ev.Clone()
	ev.PubKey = normalize.PubKey(ev.PubKey)
	s.mx.Lock()
	defer s.mx.Unlock()
	if _, ok := s.events[ev.ID]; ok {
		log.D.F("replacing event %s", ev.ID)
	}
	s.events[ev.ID] = ev
	s.byKind[ev.Kind] = append(s.byKind[ev.Kind], ev.ID)
	s.byAuthor[ev.PubKey] = append(s.byAuthor[ev.PubKey], ev.ID)
	s.serial++
	log.T.F("stored event %s kind %d serial %d", ev.ID, ev.Kind, s.serial)
	return s.serial
}

func (s *Store) Query(f filters.T) event.Ts {
	evs, _ := s.QueryWithSerial(f)
	return evs
}

func (s *Store) QueryWithSerial(f filters.T) (evs event.Ts, last eventstore.Serial) {
	s.mx.RLock()
	defer s.mx.RUnlock()
	last = s.serial
	found := make(map[string]*event.T)
	if len(f) == 0 {
		for id, ev := range s.events {
			found[id] = ev
		}
	}
	for _, fl := range f {
		if cand, all := s.candidates(fl); all {
			for id, ev := range s.events {
				if fl.Matches(ev) {
					found[id] = ev
				}
			}
		} else {
			for id := range cand {
				if ev, ok := s.events[id]; ok && fl.Matches(ev) {
					found[id] = ev
				}
			}
		}
	}
	evs = make(event.Ts, 0, len(found))
	for _, ev := range found {
		evs = append(evs, ev)
	}
	sortEvents(evs)
	if limit, ok := f.Limit(); ok && limit < len(evs) {
		evs = evs[:limit]
	}
	return
}

// candidates intersects the id sets selected by the ids, kinds and authors
// clauses of the filter. all is true when none of those clauses is present.
func (s *Store) candidates(f *filter.T) (cand map[string]struct{}, all bool) {
	var sets []map[string]struct{}
	if f.IDs != nil {
		set := make(map[string]struct{}, len(f.IDs))
		for _, id := range f.IDs {
			if _, ok := s.events[id]; ok {
				set[id] = struct{}{}
			}
		}
		sets = append(sets, set)
	}
	if f.Kinds != nil {
		set := make(map[string]struct{})
		for _, k := range f.Kinds {
			for _, id := range s.byKind[k] {
				set[id] = struct{}{}
			}
		}
		sets = append(sets, set)
	}
	if f.Authors != nil {
		set := make(map[string]struct{})
		for _, a := range f.Authors {
			for _, id := range s.byAuthor[normalize.PubKey(a)] {
				set[id] = struct{}{}
			}
		}
		sets = append(sets, set)
	}
	if len(sets) == 0 {
		return nil, true
	}
	slices.SortFunc(sets, func(a, b map[string]struct{}) int {
		return cmp.Compare(len(a), len(b))
	})
	cand = sets[0]
next:
	for id := range cand {
		for _, set := range sets[1:] {
			if _, ok := set[id]; !ok {
				delete(cand, id)
				continue next
			}
		}
	}
	return
}

// sortEvents orders newest first, breaking ties by ascending id so the order
// is the same on every query.
func sortEvents(evs event.Ts) {
	slices.SortFunc(evs, func(a, b *event.T) int {
		if c := cmp.Compare(b.CreatedAt, a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func (s *Store) GetByID(id string) (ev *event.T, ok bool) {
	s.mx.RLock()
	defer s.mx.RUnlock()
	ev, ok = s.events[id]
	return
}

func (s *Store) All() (evs event.Ts) {
	s.mx.RLock()
	evs = make(event.Ts, 0, len(s.events))
	for _, ev := range s.events {
		evs = append(evs, ev)
	}
	s.mx.RUnlock()
	sortEvents(evs)
	return
}

func (s *Store) Count() int {
	s.mx.RLock()
	defer s.mx.RUnlock()
	return len(s.events)
}

func (s *Store) Clear() {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.events = make(map[string]*event.T)
	s.byKind = make(map[kind.T][]string)
	s.byAuthor = make(map[string][]string)
	log.D.Ln("store cleared")
}
