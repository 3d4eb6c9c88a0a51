package store

import (
	"sort"
	"time"

	"github.com/go-go-golems/chatsync/pkg/chat"
)

// chatEntry.pos breaks UpdatedAt ties. Added chats take positions below
// every existing chat, loaded chats keep the order they were loaded in.
type chatEntry struct {
	chat *chat.Chat
	pos  int64
}

type presetEntry struct {
	preset *chat.Preset
	seq    uint64
}

// State is the data a Mutation operates on. It is only reachable through
// Store.Apply and Store.Revert, which hold the store lock.
type State struct {
	chats         map[string]*chatEntry
	presets       map[string]*presetEntry
	currentChatID string
	nextSeq       uint64
	head          int64
	now           func() time.Time
}

func newState(now func() time.Time) *State {
	return &State{
		chats:   map[string]*chatEntry{},
		presets: map[string]*presetEntry{},
		now:     now,
	}
}

func (s *State) seq() uint64 {
	s.nextSeq++
	return s.nextSeq
}

// headPos returns a position in front of every chat in the store.
func (s *State) headPos() int64 {
	s.head--
	return s.head
}

// touch refreshes UpdatedAt. The value never moves backwards, even if the
// clock does.
func (s *State) touch(c *chat.Chat) {
	now := chat.NewTimestamp(s.now())
	if now.Before(c.UpdatedAt.Time) {
		return
	}
	c.UpdatedAt = now
}

func (s *State) chat(id string) (*chat.Chat, error) {
	e, ok := s.chats[id]
	if !ok {
		return nil, chatNotFound(id)
	}
	return e.chat, nil
}

// orderedChats returns the live chat pointers in display order.
func (s *State) orderedChats() []*chat.Chat {
	entries := make([]*chatEntry, 0, len(s.chats))
	for _, e := range s.chats {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].pos < entries[j].pos })

	ret := make([]*chat.Chat, 0, len(entries))
	for _, e := range entries {
		ret = append(ret, e.chat)
	}
	SortChats(ret)
	return ret
}

func (s *State) orderedPresets() []*chat.Preset {
	entries := make([]*presetEntry, 0, len(s.presets))
	for _, e := range s.presets {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	ret := make([]*chat.Preset, 0, len(entries))
	for _, e := range entries {
		ret = append(ret, e.preset)
	}
	return ret
}

// mostRecentChatID is the id of the chat with the largest UpdatedAt, or "".
func (s *State) mostRecentChatID() string {
	ordered := s.orderedChats()
	if len(ordered) == 0 {
		return ""
	}
	return ordered[0].ID
}

// SortChats orders chats by UpdatedAt, most recent first. Chats with equal
// timestamps keep their relative order.
func SortChats(chats []*chat.Chat) {
	sort.SliceStable(chats, func(i, j int) bool {
		return chats[i].UpdatedAt.After(chats[j].UpdatedAt.Time)
	})
}
