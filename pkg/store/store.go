package store

import (
	"sync"
	"time"

	"github.com/go-go-golems/chatsync/pkg/chat"
	"github.com/go-go-golems/chatsync/pkg/events"
	"github.com/rs/zerolog/log"
)

// Store owns the in-memory chats and presets and the current selection.
//
// Every change goes through a Mutation. After a mutation is applied (or
// reverted) the store bumps its version and publishes an events.Change to its
// sink. Publishing happens after the lock is released, so a sink may read the
// store from the same goroutine.
//
// Readers hand out deep copies.
type Store struct {
	mu      sync.RWMutex
	state   *State
	version int64
	sink    events.Sink
	now     func() time.Time
}

type Option func(*Store)

func WithSink(sink events.Sink) Option {
	return func(s *Store) {
		s.sink = sink
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func New(options ...Option) *Store {
	ret := &Store{
		sink: events.NullSink{},
		now:  time.Now,
	}
	for _, o := range options {
		o(ret)
	}
	ret.state = newState(ret.now)
	return ret
}

// SetSink replaces the sink. It is used to attach a renderer after the
// store has been built.
func (s *Store) SetSink(sink events.Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sink == nil {
		sink = events.NullSink{}
	}
	s.sink = sink
}

// Apply applies m and publishes the resulting change. When m fails the store
// is left unchanged.
func (s *Store) Apply(m Mutation) error {
	return s.run(m, false)
}

// Revert undoes a mutation previously passed to Apply.
func (s *Store) Revert(m Mutation) error {
	return s.run(m, true)
}

func (s *Store) run(m Mutation, revert bool) error {
	s.mu.Lock()
	var (
		change events.Change
		err    error
	)
	if revert {
		change, err = m.Revert(s.state)
	} else {
		change, err = m.Apply(s.state)
	}
	if err != nil {
		s.mu.Unlock()
		log.Debug().Err(err).Str("mutation", m.Name()).Bool("revert", revert).Msg("mutation rejected")
		return err
	}
	s.version++
	change.Version = s.version
	change.Reverted = revert
	sink := s.sink
	s.mu.Unlock()

	log.Trace().Str("mutation", m.Name()).Str("change", change.String()).Int64("version", change.Version).Msg("store changed")
	events.PublishBlind(sink, change)
	return nil
}

func (s *Store) Version() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *Store) Load(chats []*chat.Chat, presets []*chat.Preset) error {
	return s.Apply(MutateLoad(chats, presets))
}

func (s *Store) AddChat(c *chat.Chat) error {
	return s.Apply(MutateAddChat(c))
}

func (s *Store) RemoveChat(id string) error {
	return s.Apply(MutateRemoveChat(id))
}

func (s *Store) SetCurrentChat(id string) error {
	return s.Apply(MutateSelectChat(id))
}

func (s *Store) AppendMessage(chatID string, message chat.Message) error {
	return s.Apply(MutateAppendMessage(chatID, message))
}

func (s *Store) ClearMessages(chatID string) error {
	return s.Apply(MutateClearMessages(chatID))
}

func (s *Store) SetSystemMessage(chatID string, text string) error {
	return s.Apply(MutateSetSystemMessage(chatID, text))
}

func (s *Store) SetTitle(chatID string, title string) error {
	return s.Apply(MutateSetTitle(chatID, title))
}

func (s *Store) AddPreset(p *chat.Preset) error {
	return s.Apply(MutateAddPreset(p))
}

func (s *Store) RemovePreset(id string) error {
	return s.Apply(MutateRemovePreset(id))
}

func (s *Store) Chat(id string) (*chat.Chat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.state.chats[id]
	if !ok {
		return nil, false
	}
	return e.chat.Clone(), true
}

func (s *Store) CurrentChatID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.currentChatID
}

// CurrentChat returns nil when no chat is selected.
func (s *Store) CurrentChat() *chat.Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.state.chats[s.state.currentChatID]
	if !ok {
		return nil
	}
	return e.chat.Clone()
}

// Chats returns all chats in display order, most recently updated first.
func (s *Store) Chats() []*chat.Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ordered := s.state.orderedChats()
	ret := make([]*chat.Chat, 0, len(ordered))
	for _, c := range ordered {
		ret = append(ret, c.Clone())
	}
	return ret
}

func (s *Store) ChatCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.chats)
}

// Presets returns the presets in insertion order.
func (s *Store) Presets() []*chat.Preset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ordered := s.state.orderedPresets()
	ret := make([]*chat.Preset, 0, len(ordered))
	for _, p := range ordered {
		ret = append(ret, p.Clone())
	}
	return ret
}

func (s *Store) PresetCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.presets)
}

// FirstPreset returns the earliest inserted preset.
func (s *Store) FirstPreset() (*chat.Preset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ordered := s.state.orderedPresets()
	if len(ordered) == 0 {
		return nil, false
	}
	return ordered[0].Clone(), true
}

func (s *Store) Preset(id string) (*chat.Preset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.state.presets[id]
	if !ok {
		return nil, false
	}
	return e.preset.Clone(), true
}

// PresetByName returns the first preset, in insertion order, with the given name.
func (s *Store) PresetByName(name string) (*chat.Preset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.state.orderedPresets() {
		if p.Name == name {
			return p.Clone(), true
		}
	}
	return nil, false
}
