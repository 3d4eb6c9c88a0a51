package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-go-golems/chatsync/pkg/chat"
	"github.com/go-go-golems/chatsync/pkg/store"
	"github.com/rs/zerolog/log"
)

// CreatePreset adds a named system message. Name and content are trimmed
// and both are required.
func (s *Service) CreatePreset(ctx context.Context, name string, content string) (*chat.Preset, error) {
	name = strings.TrimSpace(name)
	content = strings.TrimSpace(content)
	if name == "" {
		return nil, &ValidationError{Field: "name", Reason: "a preset needs a name"}
	}
	if content == "" {
		return nil, &ValidationError{Field: "content", Reason: "a preset needs content"}
	}

	p := chat.NewPreset(name, content,
		chat.WithPresetID(s.newID()),
		chat.WithPresetCreatedAt(s.now()),
	)
	err := s.applyAndPersist(ctx, "create_preset",
		store.MutateAddPreset(p),
		func(ctx context.Context) bool { return s.persistence.CreatePreset(ctx, p) },
		"Failed to save system prompt",
	)
	if err != nil {
		return nil, err
	}
	s.notify(LevelSuccess, fmt.Sprintf("System prompt \"%s\" created", p.Name))
	return p.Clone(), nil
}

// DeletePreset removes a preset after asking for confirmation. The last
// preset cannot be deleted. It returns false when the user declined.
func (s *Service) DeletePreset(ctx context.Context, id string) (bool, error) {
	p, ok := s.store.Preset(id)
	if !ok {
		return false, &store.NotFoundError{Kind: "preset", ID: id}
	}
	if s.store.PresetCount() <= 1 {
		s.notify(LevelWarning, "Cannot delete the last system prompt. At least one prompt must exist.")
		return false, store.ErrLastPresetProtected
	}

	ok, err := s.confirm(ctx, fmt.Sprintf("Are you sure you want to delete the system prompt \"%s\"?", p.Name))
	if err != nil || !ok {
		return false, err
	}

	err = s.applyAndPersist(ctx, "delete_preset",
		store.MutateRemovePreset(id),
		func(ctx context.Context) bool { return s.persistence.DeletePreset(ctx, id) },
		"Failed to delete system prompt",
	)
	if err != nil {
		return false, err
	}
	s.notify(LevelSuccess, "System prompt deleted")
	return true, nil
}

// ResolveSystemMessage turns a preset id, a preset name or free text into
// the system message text to use.
func (s *Service) ResolveSystemMessage(presetIDOrText string) (string, *chat.Preset) {
	if p, ok := s.store.Preset(presetIDOrText); ok {
		return p.Content, p
	}
	if p, ok := s.store.PresetByName(presetIDOrText); ok {
		return p.Content, p
	}
	return presetIDOrText, nil
}

// SwitchSystemPreset changes the system message of a chat. presetIDOrText is
// looked up as a preset id, then as a preset name, and otherwise used as the
// system message itself. An empty chatID means the current chat.
func (s *Service) SwitchSystemPreset(ctx context.Context, chatID string, presetIDOrText string) error {
	if strings.TrimSpace(presetIDOrText) == "" {
		return nil
	}
	c, err := s.lookupChat(chatID)
	if err != nil {
		return err
	}

	text, preset := s.ResolveSystemMessage(presetIDOrText)
	err = s.applyAndPersist(ctx, "switch_system_message",
		store.MutateSetSystemMessage(c.ID, text),
		s.replaceChat(c.ID),
		"Failed to update chat",
	)
	if err != nil {
		return err
	}
	if preset != nil {
		s.notify(LevelSuccess, fmt.Sprintf("System prompt \"%s\" applied to chat", preset.Name))
	} else {
		s.notify(LevelSuccess, "System prompt updated")
	}
	return nil
}

// EnsureDefaultPreset creates the default preset when there is none. A
// failed save is reported but the preset is kept, the store must never be
// without a preset.
func (s *Service) EnsureDefaultPreset(ctx context.Context) (*chat.Preset, error) {
	if s.store.PresetCount() > 0 {
		return nil, nil
	}

	p := chat.NewDefaultPreset(
		chat.WithPresetID(s.newID()),
		chat.WithPresetCreatedAt(s.now()),
	)
	if err := s.store.AddPreset(p); err != nil {
		return nil, err
	}
	if !s.persistence.CreatePreset(ctx, p) {
		log.Warn().Str("preset_id", p.ID).Msg("default preset only exists locally")
		s.notify(LevelWarning, "The default system prompt could not be saved to the server.")
	}
	return p.Clone(), nil
}
