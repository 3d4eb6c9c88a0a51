package service

import (
	"context"

	"github.com/go-go-golems/chatsync/pkg/chat"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Load fills the store from persistence. Settings, presets and chats are
// fetched concurrently. Afterwards the default preset is created if needed
// and the model info is fetched. Persistence failures leave the
// corresponding collection empty, they do not fail Load.
func (s *Service) Load(ctx context.Context) error {
	var (
		chats    []*chat.Chat
		presets  []*chat.Preset
		settings *chat.Settings
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		settings, _ = s.persistence.LoadSettings(egCtx)
		return nil
	})
	eg.Go(func() error {
		presets = s.persistence.ListPresets(egCtx)
		return nil
	})
	eg.Go(func() error {
		chats = s.persistence.ListChats(egCtx)
		return nil
	})
	if err := eg.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mergeLoadedSettings(settings)
	if err := s.store.Load(chats, presets); err != nil {
		s.notify(LevelError, "Error loading application data. Some features may not work correctly.")
		return err
	}

	if _, err := s.EnsureDefaultPreset(ctx); err != nil {
		return err
	}

	if _, ok := s.RefreshModelInfo(ctx); !ok {
		log.Debug().Msg("model info not available")
	}

	log.Info().
		Int("chats", s.store.ChatCount()).
		Int("presets", s.store.PresetCount()).
		Str("current_chat", s.store.CurrentChatID()).
		Msg("loaded conversation state")
	return nil
}
