package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"

	"github.com/go-go-golems/chatsync/pkg/chat"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const schemaV1 = `
CREATE TABLE IF NOT EXISTS chats (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    payload_json TEXT NOT NULL,
    updated_at_ms INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS system_messages (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    payload_json TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS settings (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    payload_json TEXT NOT NULL
);
`

var ErrClosed = errors.New("local store is closed")

// Store keeps chats, presets and settings in a SQLite file. It offers the
// same operations as the REST client, with the same failure policy, so it
// can stand in for the server when working offline.
//
// Each row holds the JSON payload of one entity, the columns next to it are
// only used for ordering and lookups.
type Store struct {
	mu     sync.Mutex
	dsn    string
	db     *sql.DB
	closed bool
}

func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("local store: empty dsn")
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "opening local store")
	}
	// sqlite3 serializes writers, a single connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	s := &Store{dsn: dsn, db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) DSN() string {
	return s.dsn
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(schemaV1); err != nil {
		return errors.Wrap(err, "migrating local store")
	}
	return nil
}

func (s *Store) ensureOpen() error {
	if s.closed {
		return ErrClosed
	}
	return nil
}

// exec runs a write and reports success the way the REST client does.
func (s *Store) exec(ctx context.Context, op string, fn func(ctx context.Context) error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		log.Warn().Err(err).Str("op", op).Msg("local persistence call failed")
		return false
	}
	if err := fn(ctx); err != nil {
		log.Warn().Err(err).Str("op", op).Msg("local persistence call failed")
		return false
	}
	return true
}

func (s *Store) ListChats(ctx context.Context) []*chat.Chat {
	ret := []*chat.Chat{}
	s.exec(ctx, "list_chats", func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, `SELECT payload_json FROM chats ORDER BY seq ASC`)
		if err != nil {
			return err
		}
		defer func() {
			_ = rows.Close()
		}()
		for rows.Next() {
			var payload string
			if err := rows.Scan(&payload); err != nil {
				return err
			}
			var c chat.Chat
			if err := json.Unmarshal([]byte(payload), &c); err != nil {
				log.Warn().Err(err).Msg("skipping unreadable chat row")
				continue
			}
			if c.Messages == nil {
				c.Messages = []chat.Message{}
			}
			ret = append(ret, &c)
		}
		return rows.Err()
	})
	return ret
}

func (s *Store) CreateChat(ctx context.Context, c *chat.Chat) bool {
	return s.exec(ctx, "create_chat", func(ctx context.Context) error {
		payload, err := json.Marshal(c)
		if err != nil {
			return err
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO chats (id, payload_json, updated_at_ms) VALUES (?, ?, ?)`,
			c.ID, string(payload), c.UpdatedAt.Millis())
		return err
	})
}

// ReplaceChat overwrites a stored chat, inserting it when it is missing.
func (s *Store) ReplaceChat(ctx context.Context, c *chat.Chat) bool {
	return s.exec(ctx, "replace_chat", func(ctx context.Context) error {
		return upsertChat(ctx, s.db, c)
	})
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func upsertChat(ctx context.Context, db execer, c *chat.Chat) error {
	payload, err := json.Marshal(c.WithoutLocalMessages())
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
INSERT INTO chats (id, payload_json, updated_at_ms) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    payload_json = excluded.payload_json,
    updated_at_ms = excluded.updated_at_ms
`, c.ID, string(payload), c.UpdatedAt.Millis())
	return err
}

func (s *Store) DeleteChat(ctx context.Context, id string) bool {
	return s.exec(ctx, "delete_chat", func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, id)
		if err != nil {
			return err
		}
		return requireRow(res, "chat", id)
	})
}

func (s *Store) ListPresets(ctx context.Context) []*chat.Preset {
	ret := []*chat.Preset{}
	s.exec(ctx, "list_presets", func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, `SELECT payload_json FROM system_messages ORDER BY seq ASC`)
		if err != nil {
			return err
		}
		defer func() {
			_ = rows.Close()
		}()
		for rows.Next() {
			var payload string
			if err := rows.Scan(&payload); err != nil {
				return err
			}
			var p chat.Preset
			if err := json.Unmarshal([]byte(payload), &p); err != nil {
				log.Warn().Err(err).Msg("skipping unreadable preset row")
				continue
			}
			ret = append(ret, &p)
		}
		return rows.Err()
	})
	return ret
}

func (s *Store) CreatePreset(ctx context.Context, p *chat.Preset) bool {
	return s.exec(ctx, "create_preset", func(ctx context.Context) error {
		return insertPreset(ctx, s.db, p)
	})
}

func insertPreset(ctx context.Context, db execer, p *chat.Preset) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO system_messages (id, payload_json) VALUES (?, ?)`,
		p.ID, string(payload))
	return err
}

func (s *Store) DeletePreset(ctx context.Context, id string) bool {
	return s.exec(ctx, "delete_preset", func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM system_messages WHERE id = ?`, id)
		if err != nil {
			return err
		}
		return requireRow(res, "preset", id)
	})
}

func (s *Store) LoadSettings(ctx context.Context) (*chat.Settings, bool) {
	var settings *chat.Settings
	ok := s.exec(ctx, "load_settings", func(ctx context.Context) error {
		var err error
		settings, err = loadSettings(ctx, s.db)
		return err
	})
	if !ok || settings.IsEmpty() {
		return nil, false
	}
	return settings, true
}

// SaveSettings merges partial into the stored settings.
func (s *Store) SaveSettings(ctx context.Context, partial *chat.Settings) bool {
	return s.exec(ctx, "save_settings", func(ctx context.Context) error {
		return mergeSettings(ctx, s.db, partial)
	})
}

type querier interface {
	execer
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func loadSettings(ctx context.Context, db querier) (*chat.Settings, error) {
	var payload string
	err := db.QueryRowContext(ctx, `SELECT payload_json FROM settings WHERE id = 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	settings := &chat.Settings{}
	if err := json.Unmarshal([]byte(payload), settings); err != nil {
		return nil, err
	}
	return settings, nil
}

func mergeSettings(ctx context.Context, db querier, partial *chat.Settings) error {
	current, err := loadSettings(ctx, db)
	if err != nil {
		return err
	}
	if current == nil {
		current = &chat.Settings{}
	}
	current.Merge(partial)
	payload, err := json.Marshal(current)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
INSERT INTO settings (id, payload_json) VALUES (1, ?)
ON CONFLICT(id) DO UPDATE SET payload_json = excluded.payload_json
`, string(payload))
	return err
}

// ModelInfo is never available locally.
func (s *Store) ModelInfo(ctx context.Context) (*chat.ModelInfo, bool) {
	return nil, false
}

func requireRow(res sql.Result, kind string, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Errorf("%s %q not found", kind, id)
	}
	return nil
}
