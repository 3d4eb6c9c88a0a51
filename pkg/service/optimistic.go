package service

import (
	"context"

	"github.com/go-go-golems/chatsync/pkg/chat"
	"github.com/go-go-golems/chatsync/pkg/store"
	"github.com/rs/zerolog/log"
)

// applyAndPersist applies m, runs persist and reverts m when persist reports
// failure. failureMessage is shown to the user after the revert.
func (s *Service) applyAndPersist(
	ctx context.Context,
	op string,
	m store.Mutation,
	persist func(ctx context.Context) bool,
	failureMessage string,
) error {
	if err := s.store.Apply(m); err != nil {
		return err
	}

	if persist(ctx) {
		log.Debug().Str("op", op).Str("mutation", m.Name()).Msg("persisted")
		return nil
	}

	log.Warn().Str("op", op).Str("mutation", m.Name()).Msg("persisting failed, reverting")
	ret := &PersistenceFailedError{Op: op}
	if err := s.store.Revert(m); err != nil {
		log.Error().Err(err).Str("op", op).Msg("could not revert optimistic change")
		ret.Err = err
	}
	s.notify(LevelError, failureMessage)
	return ret
}

// replaceChat persists the store's current version of a chat, minus the
// messages that only exist locally.
func (s *Service) replaceChat(chatID string) func(ctx context.Context) bool {
	return func(ctx context.Context) bool {
		c, ok := s.store.Chat(chatID)
		if !ok {
			return false
		}
		return s.persistence.ReplaceChat(ctx, c.WithoutLocalMessages())
	}
}

func (s *Service) createChat(c *chat.Chat) func(ctx context.Context) bool {
	return func(ctx context.Context) bool {
		return s.persistence.CreateChat(ctx, c.WithoutLocalMessages())
	}
}
