package events

import (
	"encoding/json"
	"fmt"
)

// ChangeKind names the store mutation that produced a Change.
type ChangeKind string

const (
	ChangeLoaded           ChangeKind = "loaded"
	ChangeChatAdded        ChangeKind = "chat_added"
	ChangeChatRemoved      ChangeKind = "chat_removed"
	ChangeChatUpdated      ChangeKind = "chat_updated"
	ChangeMessageAppended  ChangeKind = "message_appended"
	ChangeMessagesCleared  ChangeKind = "messages_cleared"
	ChangeSelectionChanged ChangeKind = "selection_changed"
	ChangePresetAdded      ChangeKind = "preset_added"
	ChangePresetRemoved    ChangeKind = "preset_removed"
)

// Change is published after every store mutation. It only carries ids;
// subscribers read the store to get the new state.
type Change struct {
	Kind     ChangeKind `json:"kind"`
	ChatID   string     `json:"chat_id,omitempty"`
	PresetID string     `json:"preset_id,omitempty"`
	Version  int64      `json:"version"`
	// Reverted is set when the change undoes an earlier optimistic mutation.
	Reverted bool `json:"reverted,omitempty"`
}

func (c Change) String() string {
	s := string(c.Kind)
	if c.ChatID != "" {
		s += fmt.Sprintf(" chat=%s", c.ChatID)
	}
	if c.PresetID != "" {
		s += fmt.Sprintf(" preset=%s", c.PresetID)
	}
	if c.Reverted {
		s += " (reverted)"
	}
	return s
}

// AffectsChatList reports whether a chat list view needs to be redrawn.
func (c Change) AffectsChatList() bool {
	switch c.Kind {
	case ChangeLoaded, ChangeChatAdded, ChangeChatRemoved, ChangeChatUpdated,
		ChangeMessageAppended, ChangeMessagesCleared, ChangeSelectionChanged:
		return true
	case ChangePresetAdded, ChangePresetRemoved:
		return false
	}
	return true
}

func NewChangeFromJSON(b []byte) (Change, error) {
	var c Change
	if err := json.Unmarshal(b, &c); err != nil {
		return Change{}, err
	}
	if c.Kind == "" {
		return Change{}, fmt.Errorf("change without kind: %s", string(b))
	}
	return c, nil
}
