package localstore

import (
	"context"

	"github.com/go-go-golems/chatsync/pkg/chat"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Mirror replaces the local chats and presets with the given ones in a single
// transaction. Settings are merged, not replaced.
func (s *Store) Mirror(ctx context.Context, chats []*chat.Chat, presets []*chat.Preset, settings *chat.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "starting mirror transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chats`); err != nil {
		return errors.Wrap(err, "clearing chats")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM system_messages`); err != nil {
		return errors.Wrap(err, "clearing presets")
	}
	for _, c := range chats {
		if err := upsertChat(ctx, tx, c); err != nil {
			return errors.Wrapf(err, "mirroring chat %s", c.ID)
		}
	}
	for _, p := range presets {
		if err := insertPreset(ctx, tx, p); err != nil {
			return errors.Wrapf(err, "mirroring preset %s", p.ID)
		}
	}
	if !settings.IsEmpty() {
		if err := mergeSettings(ctx, tx, settings); err != nil {
			return errors.Wrap(err, "mirroring settings")
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "committing mirror")
	}

	log.Debug().Int("chats", len(chats)).Int("presets", len(presets)).Str("dsn", s.dsn).Msg("mirrored state to local store")
	return nil
}
