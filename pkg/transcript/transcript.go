// Package transcript maintains the ordered, mutable log of conversation
// items for a realtime interview session. The store has no knowledge of
// the network; the event interpreter and outbound intent handlers are
// its only writers.
package transcript

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vango-go/mensetsu/pkg/core"
)

// ItemKind classifies a transcript item.
type ItemKind string

const (
	KindMessage    ItemKind = "MESSAGE"
	KindBreadcrumb ItemKind = "BREADCRUMB"
	// KindUnknown is the fallback for item payloads the client does not
	// recognize; such items are kept but never rendered as dialogue.
	KindUnknown ItemKind = "UNKNOWN"
)

// Role identifies the author of a MESSAGE item.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Status is the lifecycle state of an item. DONE is terminal.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
)

// Item is one entry in the transcript. Once DONE it is immutable
// except for the Hidden flag.
type Item struct {
	ItemID    string
	Kind      ItemKind
	Role      Role
	Title     string
	Status    Status
	CreatedAt time.Time
	Hidden    bool

	// Data carries breadcrumb payloads for diagnostic display.
	Data map[string]any
}

// Observer is notified synchronously after every mutation with a copy
// of the mutated item, so control logic and rendering see a consistent
// snapshot immediately.
type Observer func(Item)

// Store is the ordered transcript log. Lookups are by item ID;
// insertion order is the canonical display order.
type Store struct {
	now func() time.Time

	mu        sync.Mutex
	items     []*Item
	index     map[string]*Item
	observers []Observer
}

// Option configures a Store.
type Option func(*Store)

// WithNow overrides the wall clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty transcript store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		now:   time.Now,
		items: make([]*Item, 0, 32),
		index: make(map[string]*Item),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers an observer for subsequent mutations.
func (s *Store) Subscribe(fn Observer) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// Append inserts item at the end of the log. The item ID must be
// unique across the store; duplicates are rejected without mutation.
func (s *Store) Append(item Item) error {
	s.mu.Lock()
	if _, exists := s.index[item.ItemID]; exists {
		s.mu.Unlock()
		return core.NewDuplicateIDError(item.ItemID)
	}
	if item.Status == "" {
		item.Status = StatusInProgress
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.now()
	}
	stored := item
	s.items = append(s.items, &stored)
	s.index[stored.ItemID] = &stored
	snapshot := stored
	s.mu.Unlock()

	s.notify(snapshot)
	return nil
}

// AppendMessage appends an IN_PROGRESS MESSAGE item.
func (s *Store) AppendMessage(itemID string, role Role, text string) error {
	return s.Append(Item{ItemID: itemID, Kind: KindMessage, Role: role, Title: text})
}

// AppendBreadcrumb appends a breadcrumb recording internal system
// activity. Breadcrumbs are born DONE; hidden controls whether the
// entry is suppressed from user-facing rendering.
func (s *Store) AppendBreadcrumb(title string, hidden bool, data map[string]any) error {
	return s.Append(Item{
		ItemID: "breadcrumb-" + uuid.NewString(),
		Kind:   KindBreadcrumb,
		Title:  title,
		Status: StatusDone,
		Hidden: hidden,
		Data:   data,
	})
}

// PatchText appends delta to the item's title. A late empty delta on a
// DONE item is tolerated as a guard; any other mutation of a DONE item
// is rejected.
func (s *Store) PatchText(itemID, delta string) error {
	s.mu.Lock()
	item, ok := s.index[itemID]
	if !ok {
		s.mu.Unlock()
		return core.NewNotFoundError(itemID)
	}
	if item.Status == StatusDone {
		s.mu.Unlock()
		if delta == "" {
			return nil
		}
		return core.NewInvalidRequestError("transcript item " + itemID + " is done")
	}
	item.Title += delta
	snapshot := *item
	s.mu.Unlock()

	s.notify(snapshot)
	return nil
}

// MarkDone sets the item's status to DONE. Marking twice is not an
// error; DONE never reverts to IN_PROGRESS.
func (s *Store) MarkDone(itemID string) error {
	s.mu.Lock()
	item, ok := s.index[itemID]
	if !ok {
		s.mu.Unlock()
		return core.NewNotFoundError(itemID)
	}
	if item.Status == StatusDone {
		s.mu.Unlock()
		return nil
	}
	item.Status = StatusDone
	snapshot := *item
	s.mu.Unlock()

	s.notify(snapshot)
	return nil
}

// SetHidden toggles user-facing suppression. Allowed on DONE items.
func (s *Store) SetHidden(itemID string, hidden bool) error {
	s.mu.Lock()
	item, ok := s.index[itemID]
	if !ok {
		s.mu.Unlock()
		return core.NewNotFoundError(itemID)
	}
	item.Hidden = hidden
	snapshot := *item
	s.mu.Unlock()

	s.notify(snapshot)
	return nil
}

// Get returns a copy of the item with the given ID.
func (s *Store) Get(itemID string) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.index[itemID]
	if !ok {
		return Item{}, false
	}
	return *item, true
}

// FindLast returns the most recent item (by insertion order)
// satisfying pred.
func (s *Store) FindLast(pred func(Item) bool) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.items) - 1; i >= 0; i-- {
		if pred(*s.items[i]) {
			return *s.items[i], true
		}
	}
	return Item{}, false
}

// Items returns a snapshot of the log in insertion order.
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Item, len(s.items))
	for i, item := range s.items {
		out[i] = *item
	}
	return out
}

// Len returns the number of items in the log.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Store) notify(item Item) {
	s.mu.Lock()
	observers := s.observers
	s.mu.Unlock()
	for _, fn := range observers {
		fn(item)
	}
}
