package cmds

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-go-golems/chatsync/pkg/chat"
	"github.com/go-go-golems/chatsync/pkg/render"
	"github.com/go-go-golems/chatsync/pkg/service"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tickingClock advances one second per call, so every change has its own
// timestamp.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	now := time.UnixMilli(1700000000000)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func newOfflineApp(t *testing.T) (*App, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	settings := &AppSettings{
		Server:            DefaultServer,
		Timeout:           time.Second,
		CompletionTimeout: time.Second,
		Offline:           true,
		DB:                filepath.Join(dir, "chatsync.db"),
		Yes:               true,
	}
	out := &bytes.Buffer{}
	ctx := context.Background()
	app, err := NewApp(ctx, settings, WithOutput(out), WithClock(tickingClock()))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = app.Close()
	})
	require.NoError(t, app.Load(ctx))
	return app, out
}

func TestOfflineAppLoadsDefaultPreset(t *testing.T) {
	app, _ := newOfflineApp(t)

	presets := app.Store.Presets()
	require.Len(t, presets, 1)
	assert.Equal(t, chat.DefaultPresetName, presets[0].Name)
	assert.Equal(t, 0, app.Store.ChatCount())
}

func TestReplCommands(t *testing.T) {
	app, out := newOfflineApp(t)
	repl := NewRepl(app, strings.NewReader(""), out)
	ctx := context.Background()

	quit, err := repl.HandleLine(ctx, "/new First")
	require.NoError(t, err)
	assert.False(t, quit)
	first := app.Store.CurrentChat()
	require.NotNil(t, first)
	assert.Equal(t, "First", first.Title)

	_, err = repl.HandleLine(ctx, "/new Second")
	require.NoError(t, err)
	assert.Equal(t, 2, app.Store.ChatCount())

	_, err = repl.HandleLine(ctx, "/rename Renamed")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", app.Store.CurrentChat().Title)

	out.Reset()
	_, err = repl.HandleLine(ctx, "/chats")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "1. Renamed")
	assert.Contains(t, out.String(), "2. First")

	_, err = repl.HandleLine(ctx, "/switch 2")
	require.NoError(t, err)
	assert.Equal(t, first.ID, app.Store.CurrentChatID())

	_, err = repl.HandleLine(ctx, "/switch 9")
	assert.Error(t, err)

	_, err = repl.HandleLine(ctx, "/system You answer in haiku.")
	require.NoError(t, err)
	assert.Equal(t, "You answer in haiku.", app.Store.CurrentChat().SystemMessage)

	_, err = repl.HandleLine(ctx, "/delete")
	require.NoError(t, err)
	assert.Equal(t, 1, app.Store.ChatCount())

	_, err = repl.HandleLine(ctx, "/bogus")
	assert.Error(t, err)

	quit, err = repl.HandleLine(ctx, "/quit")
	require.NoError(t, err)
	assert.True(t, quit)
}

func TestReplMessageWithoutCompletionBackend(t *testing.T) {
	app, out := newOfflineApp(t)
	repl := NewRepl(app, strings.NewReader(""), out)

	_, err := repl.HandleLine(context.Background(), "hello")
	assert.ErrorIs(t, err, service.ErrCompletionUnavailable)
}

func TestLiveAppDrawsChanges(t *testing.T) {
	app, out := newOfflineApp(t)
	app.SetLive(true)
	repl := NewRepl(app, strings.NewReader(""), out)

	_, err := repl.HandleLine(context.Background(), "/new Fresh")
	require.NoError(t, err)
	assert.Contains(t, out.String(), render.EmptyChatText)
}

func TestReplRunStopsOnQuit(t *testing.T) {
	app, _ := newOfflineApp(t)
	out := &bytes.Buffer{}
	repl := NewRepl(app, strings.NewReader("/new Chat\n/quit\n/new Never\n"), out)

	require.NoError(t, repl.Run(context.Background()))
	assert.Equal(t, 1, app.Store.ChatCount())
}

func TestOfflineStatePersistsAcrossApps(t *testing.T) {
	dir := t.TempDir()
	settings := &AppSettings{
		Offline:           true,
		DB:                filepath.Join(dir, "chatsync.db"),
		Yes:               true,
		CompletionTimeout: time.Second,
	}
	ctx := context.Background()

	app, err := NewApp(ctx, settings, WithOutput(&bytes.Buffer{}))
	require.NoError(t, err)
	require.NoError(t, app.Load(ctx))
	c, err := app.Service.CreateChat(ctx, "Kept", "")
	require.NoError(t, err)
	require.NoError(t, app.Close())

	app, err = NewApp(ctx, settings, WithOutput(&bytes.Buffer{}))
	require.NoError(t, err)
	defer func() {
		_ = app.Close()
	}()
	require.NoError(t, app.Load(ctx))
	loaded, ok := app.Store.Chat(c.ID)
	require.True(t, ok)
	assert.Equal(t, "Kept", loaded.Title)
	assert.Equal(t, c.ID, app.Store.CurrentChatID())
}

func TestMirrorCopiesLoadedState(t *testing.T) {
	dir := t.TempDir()
	settings := &AppSettings{
		Offline:           true,
		DB:                filepath.Join(dir, "chatsync.db"),
		Mirror:            filepath.Join(dir, "mirror.db"),
		Yes:               true,
		CompletionTimeout: time.Second,
	}
	ctx := context.Background()

	app, err := NewApp(ctx, settings, WithOutput(&bytes.Buffer{}))
	require.NoError(t, err)
	require.NoError(t, app.Load(ctx))
	_, err = app.Service.CreateChat(ctx, "Mirrored", "")
	require.NoError(t, err)
	require.NoError(t, app.Close())

	// the second load sees the chat and mirrors it
	app, err = NewApp(ctx, settings, WithOutput(&bytes.Buffer{}))
	require.NoError(t, err)
	require.NoError(t, app.Load(ctx))
	require.NoError(t, app.Close())

	mirrorSettings := *settings
	mirrorSettings.DB = settings.Mirror
	mirrorSettings.Mirror = ""
	app, err = NewApp(ctx, &mirrorSettings, WithOutput(&bytes.Buffer{}))
	require.NoError(t, err)
	defer func() {
		_ = app.Close()
	}()
	require.NoError(t, app.Load(ctx))
	chats := app.Store.Chats()
	require.Len(t, chats, 1)
	assert.Equal(t, "Mirrored", chats[0].Title)
}

func TestWriteStructuredUsesWireNames(t *testing.T) {
	c := chat.NewChat("Export", "", chat.WithCreatedAt(time.UnixMilli(1700000000000)))

	buf := &bytes.Buffer{}
	require.NoError(t, writeStructured(buf, FormatYAML, c))
	assert.Contains(t, buf.String(), "title: Export")
	assert.Contains(t, buf.String(), "createdAt: 1700000000000")
	assert.Contains(t, buf.String(), "systemMessage:")

	buf.Reset()
	require.NoError(t, writeStructured(buf, FormatJSON, c))
	assert.Contains(t, buf.String(), `"createdAt": 1700000000000`)

	assert.Error(t, writeStructured(buf, "toml", c))
}

func TestSettingsFromFlagsOnlyUsesChangedFlags(t *testing.T) {
	cmd := newSettingsCommand()
	setCmd, _, err := cmd.Find([]string{"set"})
	require.NoError(t, err)
	require.NoError(t, setCmd.Flags().Parse([]string{"--max-tokens", "64", "--theme", "dark"}))

	partial, err := settingsFromFlags(setCmd.Flags())
	require.NoError(t, err)
	assert.Nil(t, partial.Temperature)
	assert.Nil(t, partial.IsDarkMode)
	require.NotNil(t, partial.MaxTokens)
	assert.Equal(t, 64, *partial.MaxTokens)
	require.NotNil(t, partial.Theme)
	assert.Equal(t, chat.ThemeDark, *partial.Theme)
}

func TestConfirmerReadsAnswer(t *testing.T) {
	for answer, expected := range map[string]bool{"y\n": true, "yes\n": true, "n\n": false} {
		c := NewConfirmer(strings.NewReader(answer), &bytes.Buffer{})
		ok, err := c.Confirm(context.Background(), "Delete?")
		require.NoError(t, err)
		assert.Equal(t, expected, ok, "answer %q", answer)
	}
}

func TestCommandTree(t *testing.T) {
	root := &cobra.Command{Use: "chatsync"}
	AddPersistentFlags(root)
	AddCommands(root)

	for _, path := range [][]string{
		{"chats", "list"}, {"chats", "export"}, {"send"}, {"repl"},
		{"presets", "use"}, {"settings", "set"}, {"info"}, {"schema"}, {"config", "show"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, "%v", path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}
