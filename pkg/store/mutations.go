package store

import (
	"github.com/go-go-golems/chatsync/pkg/chat"
	"github.com/go-go-golems/chatsync/pkg/events"
	"github.com/rs/zerolog/log"
)

// Mutation is a reversible change to the store. Apply records whatever it
// needs to undo itself, so a Mutation value must be applied at most once and
// can only be reverted after a successful Apply.
type Mutation interface {
	Apply(s *State) (events.Change, error)
	Revert(s *State) (events.Change, error)
	Name() string
}

type addChatMutation struct {
	chat       *chat.Chat
	selectChat bool

	applied       bool
	prevSelection string
}

// MutateAddChat inserts a copy of c in front of the chats already present.
func MutateAddChat(c *chat.Chat) Mutation {
	return &addChatMutation{chat: c.Clone()}
}

// MutateAddAndSelectChat inserts a copy of c and makes it the current chat.
func MutateAddAndSelectChat(c *chat.Chat) Mutation {
	return &addChatMutation{chat: c.Clone(), selectChat: true}
}

func (m *addChatMutation) Name() string { return "add_chat" }

func (m *addChatMutation) Apply(s *State) (events.Change, error) {
	if _, ok := s.chats[m.chat.ID]; ok {
		return events.Change{}, &DuplicateIDError{Kind: "chat", ID: m.chat.ID}
	}
	if m.chat.Messages == nil {
		m.chat.Messages = []chat.Message{}
	}
	s.chats[m.chat.ID] = &chatEntry{chat: m.chat.Clone(), pos: s.headPos()}
	m.prevSelection = s.currentChatID
	if m.selectChat {
		s.currentChatID = m.chat.ID
	}
	m.applied = true
	return events.Change{Kind: events.ChangeChatAdded, ChatID: m.chat.ID}, nil
}

func (m *addChatMutation) Revert(s *State) (events.Change, error) {
	if !m.applied {
		return events.Change{}, ErrNotApplied
	}
	if _, ok := s.chats[m.chat.ID]; !ok {
		return events.Change{}, chatNotFound(m.chat.ID)
	}
	delete(s.chats, m.chat.ID)
	if s.currentChatID == m.chat.ID {
		s.currentChatID = m.prevSelection
		if _, ok := s.chats[s.currentChatID]; !ok {
			s.currentChatID = ""
		}
	}
	m.applied = false
	return events.Change{Kind: events.ChangeChatRemoved, ChatID: m.chat.ID}, nil
}

type removeChatMutation struct {
	id string

	removed       *chatEntry
	prevSelection string
}

// MutateRemoveChat deletes a chat. When it was the current chat, the most
// recently updated remaining chat becomes current.
func MutateRemoveChat(id string) Mutation {
	return &removeChatMutation{id: id}
}

func (m *removeChatMutation) Name() string { return "remove_chat" }

func (m *removeChatMutation) Apply(s *State) (events.Change, error) {
	e, ok := s.chats[m.id]
	if !ok {
		return events.Change{}, chatNotFound(m.id)
	}
	m.removed = e
	m.prevSelection = s.currentChatID
	delete(s.chats, m.id)
	if s.currentChatID == m.id {
		s.currentChatID = s.mostRecentChatID()
	}
	return events.Change{Kind: events.ChangeChatRemoved, ChatID: m.id}, nil
}

func (m *removeChatMutation) Revert(s *State) (events.Change, error) {
	if m.removed == nil {
		return events.Change{}, ErrNotApplied
	}
	if _, ok := s.chats[m.id]; ok {
		return events.Change{}, &DuplicateIDError{Kind: "chat", ID: m.id}
	}
	s.chats[m.id] = m.removed
	if _, ok := s.chats[m.prevSelection]; ok || m.prevSelection == "" {
		s.currentChatID = m.prevSelection
	}
	m.removed = nil
	return events.Change{Kind: events.ChangeChatAdded, ChatID: m.id}, nil
}

type selectChatMutation struct {
	id string

	applied bool
	prev    string
}

// MutateSelectChat changes the current chat. An empty id clears the selection.
func MutateSelectChat(id string) Mutation {
	return &selectChatMutation{id: id}
}

func (m *selectChatMutation) Name() string { return "select_chat" }

func (m *selectChatMutation) Apply(s *State) (events.Change, error) {
	if m.id != "" {
		if _, ok := s.chats[m.id]; !ok {
			return events.Change{}, chatNotFound(m.id)
		}
	}
	m.prev = s.currentChatID
	s.currentChatID = m.id
	m.applied = true
	return events.Change{Kind: events.ChangeSelectionChanged, ChatID: m.id}, nil
}

func (m *selectChatMutation) Revert(s *State) (events.Change, error) {
	if !m.applied {
		return events.Change{}, ErrNotApplied
	}
	if _, ok := s.chats[m.prev]; ok || m.prev == "" {
		s.currentChatID = m.prev
	} else {
		log.Warn().Str("chat_id", m.prev).Msg("previous selection no longer exists, clearing")
		s.currentChatID = ""
	}
	m.applied = false
	return events.Change{Kind: events.ChangeSelectionChanged, ChatID: s.currentChatID}, nil
}

// chatEdit is the common part of the mutations that modify a single chat
// in place. It remembers the previous UpdatedAt.
type chatEdit struct {
	chatID string

	applied       bool
	prevUpdatedAt chat.Timestamp
}

func (e *chatEdit) begin(s *State) (*chat.Chat, error) {
	c, err := s.chat(e.chatID)
	if err != nil {
		return nil, err
	}
	e.prevUpdatedAt = c.UpdatedAt
	return c, nil
}

func (e *chatEdit) undo(s *State) (*chat.Chat, error) {
	if !e.applied {
		return nil, ErrNotApplied
	}
	c, err := s.chat(e.chatID)
	if err != nil {
		return nil, err
	}
	c.UpdatedAt = e.prevUpdatedAt
	e.applied = false
	return c, nil
}

type appendMessageMutation struct {
	chatEdit
	message chat.Message
	index   int
}

func MutateAppendMessage(chatID string, message chat.Message) Mutation {
	return &appendMessageMutation{chatEdit: chatEdit{chatID: chatID}, message: message}
}

func (m *appendMessageMutation) Name() string { return "append_message" }

func (m *appendMessageMutation) Apply(s *State) (events.Change, error) {
	if err := m.message.Role.Validate(); err != nil {
		return events.Change{}, err
	}
	c, err := m.begin(s)
	if err != nil {
		return events.Change{}, err
	}
	m.index = len(c.Messages)
	c.Messages = append(c.Messages, m.message)
	s.touch(c)
	m.applied = true
	return events.Change{Kind: events.ChangeMessageAppended, ChatID: m.chatID}, nil
}

func (m *appendMessageMutation) Revert(s *State) (events.Change, error) {
	c, err := m.undo(s)
	if err != nil {
		return events.Change{}, err
	}
	if m.index < len(c.Messages) {
		c.Messages = append(c.Messages[:m.index:m.index], c.Messages[m.index+1:]...)
	}
	return events.Change{Kind: events.ChangeChatUpdated, ChatID: m.chatID}, nil
}

type clearMessagesMutation struct {
	chatEdit
	prevMessages []chat.Message
}

func MutateClearMessages(chatID string) Mutation {
	return &clearMessagesMutation{chatEdit: chatEdit{chatID: chatID}}
}

func (m *clearMessagesMutation) Name() string { return "clear_messages" }

func (m *clearMessagesMutation) Apply(s *State) (events.Change, error) {
	c, err := m.begin(s)
	if err != nil {
		return events.Change{}, err
	}
	m.prevMessages = c.Messages
	c.Messages = []chat.Message{}
	s.touch(c)
	m.applied = true
	return events.Change{Kind: events.ChangeMessagesCleared, ChatID: m.chatID}, nil
}

func (m *clearMessagesMutation) Revert(s *State) (events.Change, error) {
	c, err := m.undo(s)
	if err != nil {
		return events.Change{}, err
	}
	// anything appended after the clear is kept behind the restored history
	c.Messages = append(m.prevMessages, c.Messages...)
	m.prevMessages = nil
	return events.Change{Kind: events.ChangeChatUpdated, ChatID: m.chatID}, nil
}

type setSystemMessageMutation struct {
	chatEdit
	text string
	prev string
}

func MutateSetSystemMessage(chatID string, text string) Mutation {
	return &setSystemMessageMutation{chatEdit: chatEdit{chatID: chatID}, text: text}
}

func (m *setSystemMessageMutation) Name() string { return "set_system_message" }

func (m *setSystemMessageMutation) Apply(s *State) (events.Change, error) {
	c, err := m.begin(s)
	if err != nil {
		return events.Change{}, err
	}
	m.prev = c.SystemMessage
	c.SystemMessage = m.text
	s.touch(c)
	m.applied = true
	return events.Change{Kind: events.ChangeChatUpdated, ChatID: m.chatID}, nil
}

func (m *setSystemMessageMutation) Revert(s *State) (events.Change, error) {
	c, err := m.undo(s)
	if err != nil {
		return events.Change{}, err
	}
	c.SystemMessage = m.prev
	return events.Change{Kind: events.ChangeChatUpdated, ChatID: m.chatID}, nil
}

type setTitleMutation struct {
	chatEdit
	title string
	prev  string
}

// MutateSetTitle renames a chat. An empty title becomes chat.DefaultTitle.
func MutateSetTitle(chatID string, title string) Mutation {
	return &setTitleMutation{chatEdit: chatEdit{chatID: chatID}, title: chat.NormalizeTitle(title)}
}

func (m *setTitleMutation) Name() string { return "set_title" }

func (m *setTitleMutation) Apply(s *State) (events.Change, error) {
	c, err := m.begin(s)
	if err != nil {
		return events.Change{}, err
	}
	m.prev = c.Title
	c.Title = m.title
	s.touch(c)
	m.applied = true
	return events.Change{Kind: events.ChangeChatUpdated, ChatID: m.chatID}, nil
}

func (m *setTitleMutation) Revert(s *State) (events.Change, error) {
	c, err := m.undo(s)
	if err != nil {
		return events.Change{}, err
	}
	c.Title = m.prev
	return events.Change{Kind: events.ChangeChatUpdated, ChatID: m.chatID}, nil
}

type addPresetMutation struct {
	preset  *chat.Preset
	applied bool
}

func MutateAddPreset(p *chat.Preset) Mutation {
	return &addPresetMutation{preset: p.Clone()}
}

func (m *addPresetMutation) Name() string { return "add_preset" }

func (m *addPresetMutation) Apply(s *State) (events.Change, error) {
	if _, ok := s.presets[m.preset.ID]; ok {
		return events.Change{}, &DuplicateIDError{Kind: "preset", ID: m.preset.ID}
	}
	s.presets[m.preset.ID] = &presetEntry{preset: m.preset.Clone(), seq: s.seq()}
	m.applied = true
	return events.Change{Kind: events.ChangePresetAdded, PresetID: m.preset.ID}, nil
}

func (m *addPresetMutation) Revert(s *State) (events.Change, error) {
	if !m.applied {
		return events.Change{}, ErrNotApplied
	}
	if _, ok := s.presets[m.preset.ID]; !ok {
		return events.Change{}, presetNotFound(m.preset.ID)
	}
	// the revert of an add is allowed to empty the collection, it restores
	// the state from before the add
	delete(s.presets, m.preset.ID)
	m.applied = false
	return events.Change{Kind: events.ChangePresetRemoved, PresetID: m.preset.ID}, nil
}

type removePresetMutation struct {
	id      string
	removed *presetEntry
}

// MutateRemovePreset deletes a preset. Removing the only remaining preset
// fails with ErrLastPresetProtected.
func MutateRemovePreset(id string) Mutation {
	return &removePresetMutation{id: id}
}

func (m *removePresetMutation) Name() string { return "remove_preset" }

func (m *removePresetMutation) Apply(s *State) (events.Change, error) {
	e, ok := s.presets[m.id]
	if !ok {
		return events.Change{}, presetNotFound(m.id)
	}
	if len(s.presets) <= 1 {
		return events.Change{}, ErrLastPresetProtected
	}
	m.removed = e
	delete(s.presets, m.id)
	return events.Change{Kind: events.ChangePresetRemoved, PresetID: m.id}, nil
}

func (m *removePresetMutation) Revert(s *State) (events.Change, error) {
	if m.removed == nil {
		return events.Change{}, ErrNotApplied
	}
	if _, ok := s.presets[m.id]; ok {
		return events.Change{}, &DuplicateIDError{Kind: "preset", ID: m.id}
	}
	s.presets[m.id] = m.removed
	m.removed = nil
	return events.Change{Kind: events.ChangePresetAdded, PresetID: m.id}, nil
}

type loadMutation struct {
	chats   []*chat.Chat
	presets []*chat.Preset

	applied       bool
	prevChats     map[string]*chatEntry
	prevPresets   map[string]*presetEntry
	prevSelection string
}

// MutateLoad replaces both collections, typically with what the server
// returned at startup, and selects the most recently updated chat.
// Duplicate ids keep their first occurrence.
func MutateLoad(chats []*chat.Chat, presets []*chat.Preset) Mutation {
	return &loadMutation{chats: chats, presets: presets}
}

func (m *loadMutation) Name() string { return "load" }

func (m *loadMutation) Apply(s *State) (events.Change, error) {
	m.prevChats = s.chats
	m.prevPresets = s.presets
	m.prevSelection = s.currentChatID

	s.chats = make(map[string]*chatEntry, len(m.chats))
	pos := s.head
	for _, c := range m.chats {
		if c == nil {
			continue
		}
		if _, ok := s.chats[c.ID]; ok {
			log.Warn().Str("chat_id", c.ID).Msg("skipping duplicate chat id")
			continue
		}
		cp := c.Clone()
		if cp.Messages == nil {
			cp.Messages = []chat.Message{}
		}
		pos++
		s.chats[cp.ID] = &chatEntry{chat: cp, pos: pos}
	}

	s.presets = make(map[string]*presetEntry, len(m.presets))
	for _, p := range m.presets {
		if p == nil {
			continue
		}
		if _, ok := s.presets[p.ID]; ok {
			log.Warn().Str("preset_id", p.ID).Msg("skipping duplicate preset id")
			continue
		}
		s.presets[p.ID] = &presetEntry{preset: p.Clone(), seq: s.seq()}
	}

	s.currentChatID = s.mostRecentChatID()
	m.applied = true
	return events.Change{Kind: events.ChangeLoaded, ChatID: s.currentChatID}, nil
}

func (m *loadMutation) Revert(s *State) (events.Change, error) {
	if !m.applied {
		return events.Change{}, ErrNotApplied
	}
	s.chats = m.prevChats
	s.presets = m.prevPresets
	s.currentChatID = m.prevSelection
	m.applied = false
	return events.Change{Kind: events.ChangeLoaded, ChatID: s.currentChatID}, nil
}
