// Package history owns the set of conversations, the current-conversation
// pointer, and their write-through persistence to a key-value store.
package history

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/soyeahso/geminichat/internal/domain"
	"github.com/soyeahso/geminichat/internal/kv"
	"github.com/soyeahso/geminichat/internal/logging"
)

// ErrNotFound is returned for operations on an unknown conversation id.
var ErrNotFound = errors.New("conversation not found")

// Snapshot is what subscribers observe after every change.
type Snapshot struct {
	Conversations []domain.Conversation // updatedAt descending
	CurrentID     string                // "" when no conversation is selected
}

// Store holds conversations in memory and mirrors each mutation to kv.
// In-memory state is authoritative; persistence failures are logged and
// remembered, never returned from mutating calls.
type Store struct {
	mu        sync.Mutex
	kv        kv.Store
	key       string
	log       *logging.Logger
	now       func() time.Time
	convs     []domain.Conversation // insertion order
	currentID string
	lastErr   error

	subMu  sync.Mutex
	subs   map[int]func(Snapshot)
	nextID int
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store that persists under key in backend. Call Load to
// restore a previous snapshot.
func New(backend kv.Store, key string, log *logging.Logger, opts ...Option) *Store {
	s := &Store{
		kv:   backend,
		key:  key,
		log:  log.Sub("history"),
		now:  func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		subs: make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces in-memory state with the persisted snapshot. Missing or
// unreadable data yields an empty collection.
func (s *Store) Load() {
	s.mu.Lock()
	s.convs = s.readSnapshot()
	s.currentID = ""
	s.log.Debug().Int("conversations", len(s.convs)).Msg("history loaded")
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

func (s *Store) readSnapshot() []domain.Conversation {
	raw, ok, err := s.kv.Get(s.key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", s.key).Msg("reading history failed, starting empty")
		return nil
	}
	if !ok {
		return nil
	}
	convs, err := Decode(raw)
	if err != nil {
		s.log.Warn().Err(err).Str("key", s.key).Msg("stored history is malformed, starting empty")
		return nil
	}
	return convs
}

// List returns copies of all conversations, most recently updated first.
func (s *Store) List() []domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked()
}

// Get returns a copy of the conversation with the given id.
func (s *Store) Get(id string) (domain.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.convs[i].Clone(), true
	}
	return domain.Conversation{}, false
}

// Current returns the selected conversation, if any.
func (s *Store) Current() (domain.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(s.currentID); i >= 0 {
		return s.convs[i].Clone(), true
	}
	return domain.Conversation{}, false
}

// CurrentID returns the selected conversation id, "" for the draft state.
func (s *Store) CurrentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentID
}

// Select moves the current pointer. "" selects the draft state.
func (s *Store) Select(id string) error {
	s.mu.Lock()
	if id != "" && s.indexLocked(id) < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	s.currentID = id
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// Append adds msg to a conversation and bumps its updatedAt. A non-empty
// newTitle renames it.
func (s *Store) Append(conversationID string, msg domain.Message, newTitle string) error {
	s.mu.Lock()
	i := s.indexLocked(conversationID)
	if i < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}

	c := &s.convs[i]
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = s.now()
	if newTitle != "" {
		c.Title = newTitle
	}
	s.persistLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// CreateWithFirstExchange creates a conversation holding user and, when
// non-nil, assistant. It becomes current. An empty title uses the default.
func (s *Store) CreateWithFirstExchange(user domain.Message, assistant *domain.Message, title string) domain.Conversation {
	if title == "" {
		title = domain.DefaultTitle
	}
	msgs := []domain.Message{user}
	if assistant != nil {
		msgs = append(msgs, *assistant)
	}

	s.mu.Lock()
	now := s.now()
	c := domain.Conversation{
		ID:        s.freshIDLocked(),
		Title:     title,
		Messages:  msgs,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.convs = append(s.convs, c)
	s.currentID = c.ID
	s.persistLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.log.Debug().Str("conversation", c.ID).Str("title", title).Msg("conversation created")
	s.notify(snap)
	return c.Clone()
}

// Remove deletes a conversation. Removing the current one resets the
// pointer to the draft state. Unknown ids are ignored.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.convs = slices.Delete(s.convs, i, i+1)
	if s.currentID == id {
		s.currentID = ""
	}
	s.persistLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.log.Debug().Str("conversation", id).Msg("conversation removed")
	s.notify(snap)
	return true
}

// Snapshot returns the current state as subscribers would see it.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn to receive a snapshot after every change.
// The returned func unregisters it.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// PersistErr returns the error from the most recent write, nil if it succeeded.
func (s *Store) PersistErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Store) notify(snap Snapshot) {
	s.subMu.Lock()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(Snapshot), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func (s *Store) persistLocked() {
	data, err := Encode(s.convs)
	if err == nil {
		err = s.kv.Set(s.key, data)
	}
	s.lastErr = err
	if err != nil {
		s.log.Warn().Err(err).Str("key", s.key).Msg("persisting history failed")
	}
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{Conversations: s.sortedLocked(), CurrentID: s.currentID}
}

func (s *Store) sortedLocked() []domain.Conversation {
	out := make([]domain.Conversation, len(s.convs))
	for i, c := range s.convs {
		out[i] = c.Clone()
	}
	slices.SortStableFunc(out, func(a, b domain.Conversation) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	return out
}

func (s *Store) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(s.convs, func(c domain.Conversation) bool { return c.ID == id })
}

func (s *Store) freshIDLocked() string {
	for {
		id := domain.NewConversationID()
		if s.indexLocked(id) < 0 {
			return id
		}
	}
}
