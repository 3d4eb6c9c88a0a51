package service

import (
	"context"

	"github.com/go-go-golems/chatsync/pkg/chat"
	"github.com/rs/zerolog/log"
)

// Settings returns a copy of the current settings.
func (s *Service) Settings() *chat.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.Clone()
}

// UpdateSettings merges partial into the settings and saves it. The merge is
// undone when the save fails.
func (s *Service) UpdateSettings(ctx context.Context, partial *chat.Settings) error {
	if partial.IsEmpty() {
		return nil
	}
	if err := partial.Validate(); err != nil {
		return &ValidationError{Field: "settings", Reason: err.Error()}
	}

	s.mu.Lock()
	previous := s.settings.Clone()
	s.settings.Merge(partial)
	s.mu.Unlock()

	if s.persistence.SaveSettings(ctx, partial) {
		log.Debug().Interface("settings", partial).Msg("saved settings")
		return nil
	}

	s.mu.Lock()
	s.settings = previous
	s.mu.Unlock()
	s.notify(LevelError, "Failed to save settings")
	return &PersistenceFailedError{Op: "save_settings"}
}

func (s *Service) mergeLoadedSettings(loaded *chat.Settings) {
	if loaded.IsEmpty() {
		return
	}
	if err := loaded.Validate(); err != nil {
		log.Warn().Err(err).Msg("ignoring invalid settings from server")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.Merge(loaded)
}
