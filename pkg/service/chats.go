package service

import (
	"context"
	"fmt"

	"github.com/go-go-golems/chatsync/pkg/chat"
	"github.com/go-go-golems/chatsync/pkg/store"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// CreateChat inserts a new empty chat, selects it and persists it. When the
// server refuses the chat, it is removed again and the previous selection is
// restored.
func (s *Service) CreateChat(ctx context.Context, title string, systemMessage string) (*chat.Chat, error) {
	c := chat.NewChat(title, systemMessage,
		chat.WithChatID(s.newID()),
		chat.WithCreatedAt(s.now()),
	)

	err := s.applyAndPersist(ctx, "create_chat",
		store.MutateAddAndSelectChat(c),
		s.createChat(c),
		"Failed to create chat",
	)
	if err != nil {
		return nil, err
	}

	s.notify(LevelSuccess, "New chat created")
	log.Info().Str("chat_id", c.ID).Str("title", c.Title).Msg("created chat")
	return c.Clone(), nil
}

// SelectChat makes id the current chat. It never talks to the server.
func (s *Service) SelectChat(id string) error {
	return s.store.SetCurrentChat(id)
}

func (s *Service) resolveChatID(chatID string) (string, error) {
	if chatID != "" {
		return chatID, nil
	}
	if current := s.store.CurrentChatID(); current != "" {
		return current, nil
	}
	return "", ErrNoCurrentChat
}

func (s *Service) lookupChat(chatID string) (*chat.Chat, error) {
	id, err := s.resolveChatID(chatID)
	if err != nil {
		return nil, err
	}
	c, ok := s.store.Chat(id)
	if !ok {
		return nil, &store.NotFoundError{Kind: "chat", ID: id}
	}
	return c, nil
}

// ClearChat removes all messages of a chat after asking for confirmation.
// An empty chatID means the current chat. It returns false when the user
// declined.
func (s *Service) ClearChat(ctx context.Context, chatID string) (bool, error) {
	c, err := s.lookupChat(chatID)
	if err != nil {
		return false, err
	}

	ok, err := s.confirm(ctx, fmt.Sprintf("Are you sure you want to clear all messages in \"%s\"?", c.Title))
	if err != nil || !ok {
		return false, err
	}

	err = s.applyAndPersist(ctx, "clear_chat",
		store.MutateClearMessages(c.ID),
		s.replaceChat(c.ID),
		"Failed to clear chat",
	)
	if err != nil {
		return false, err
	}
	s.notify(LevelSuccess, "Chat cleared")
	return true, nil
}

// RenameChat sets the title of a chat. An empty title becomes chat.DefaultTitle.
func (s *Service) RenameChat(ctx context.Context, chatID string, title string) error {
	c, err := s.lookupChat(chatID)
	if err != nil {
		return err
	}
	err = s.applyAndPersist(ctx, "rename_chat",
		store.MutateSetTitle(c.ID, title),
		s.replaceChat(c.ID),
		"Failed to rename chat",
	)
	if err != nil {
		return err
	}
	s.notify(LevelSuccess, "Chat renamed")
	return nil
}

// DeleteChat removes a chat after asking for confirmation. It returns false
// when the user declined.
//
// When the server fails to delete the chat it stays deleted locally. The
// returned error wraps ErrStateDiverged: the chat will show up again on the
// next load.
func (s *Service) DeleteChat(ctx context.Context, chatID string) (bool, error) {
	c, err := s.lookupChat(chatID)
	if err != nil {
		return false, err
	}

	ok, err := s.confirm(ctx, fmt.Sprintf("Are you sure you want to delete \"%s\"?", c.Title))
	if err != nil || !ok {
		return false, err
	}

	if err := s.store.RemoveChat(c.ID); err != nil {
		return false, err
	}

	if !s.persistence.DeleteChat(ctx, c.ID) {
		// TODO(chatsync): restore the chat here once the server reports whether
		// the delete was applied, a blind revert can resurrect a deleted chat
		log.Error().Str("chat_id", c.ID).Msg("server delete failed, chat only removed locally")
		s.notify(LevelError, "Failed to delete chat on the server. It was removed locally and will reappear on the next load.")
		return true, errors.Wrapf(ErrStateDiverged, "deleting chat %s", c.ID)
	}

	s.notify(LevelSuccess, "Chat deleted")
	return true, nil
}

// ImportChat adds a chat that was created elsewhere, keeping its id, title
// and messages. It is persisted like a new chat but does not change the
// selection.
func (s *Service) ImportChat(ctx context.Context, c *chat.Chat) (*chat.Chat, error) {
	if c == nil || c.ID == "" {
		return nil, &ValidationError{Field: "id", Reason: "an imported chat needs an id"}
	}
	for _, m := range c.Messages {
		if err := m.Role.Validate(); err != nil {
			return nil, &ValidationError{Field: "messages", Reason: err.Error()}
		}
	}
	imported := c.Clone()
	imported.Title = chat.NormalizeTitle(imported.Title)
	if imported.CreatedAt.IsZero() {
		imported.CreatedAt = chat.NewTimestamp(s.now())
	}
	if imported.UpdatedAt.Before(imported.CreatedAt.Time) {
		imported.UpdatedAt = imported.CreatedAt
	}

	err := s.applyAndPersist(ctx, "import_chat",
		store.MutateAddChat(imported),
		s.createChat(imported),
		"Failed to import chat",
	)
	if err != nil {
		return nil, err
	}
	log.Info().Str("chat_id", imported.ID).Int("messages", len(imported.Messages)).Msg("imported chat")
	return imported.Clone(), nil
}
