package cmds

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-go-golems/chatsync/pkg/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testChats() []*chat.Chat {
	return []*chat.Chat{
		chat.NewChat("work notes", "", chat.WithChatID("aaaaaaaa-1111"), chat.WithCreatedAt(time.UnixMilli(3000)),
			chat.WithMessages(chat.NewUserMessage("standup", chat.WithTimestamp(time.UnixMilli(3001))))),
		chat.NewChat("My First Chat", "", chat.WithChatID("bbbbbbbb-2222"), chat.WithCreatedAt(time.UnixMilli(2000))),
		chat.NewChat("workout plan", "", chat.WithChatID("cccccccc-3333"), chat.WithCreatedAt(time.UnixMilli(1000))),
	}
}

func TestFilterChatsByTitleGlob(t *testing.T) {
	chats, err := filterChats(testChats(), "work*")
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, "work notes", chats[0].Title)
	assert.Equal(t, "workout plan", chats[1].Title)

	chats, err = filterChats(testChats(), "")
	require.NoError(t, err)
	assert.Len(t, chats, 3)
}

func TestWriteTemplateUsesSprig(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, writeTemplate(buf, `{{ .Title | upper }} {{ len .Messages }}`, testChats()[:2]))
	assert.Equal(t, "WORK NOTES 1\nMY FIRST CHAT 0\n", buf.String())

	assert.Error(t, writeTemplate(buf, `{{ .Title`, testChats()))
}

func TestExportFileName(t *testing.T) {
	assert.Equal(t, "my-first-chat-bbbbbbbb.yaml", exportFileName(testChats()[1], FormatYAML))
	assert.Equal(t, "chat-x.json", exportFileName(&chat.Chat{ID: "x"}, FormatJSON))
}

func TestExportThenImportRoundTrips(t *testing.T) {
	dir := t.TempDir()
	paths, err := exportToDir(dir, FormatYAML, testChats())
	require.NoError(t, err)
	require.Len(t, paths, 3)

	f, err := os.Open(paths[0])
	require.NoError(t, err)
	defer func() {
		_ = f.Close()
	}()
	chats, err := readChats(f)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "aaaaaaaa-1111", chats[0].ID)
	assert.Equal(t, int64(3000), chats[0].CreatedAt.Millis())
	require.Len(t, chats[0].Messages, 1)
	assert.Equal(t, chat.RoleUser, chats[0].Messages[0].Role)
}

func TestReadChatsAcceptsJSONList(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, writeStructured(buf, FormatJSON, testChats()))

	chats, err := readChats(buf)
	require.NoError(t, err)
	require.Len(t, chats, 3)
	assert.Equal(t, "workout plan", chats[2].Title)
}

func TestReadChatsRejectsInvalidChats(t *testing.T) {
	_, err := readChats(strings.NewReader(`{"id": "x", "title": ["not", "a", "string"]}`))
	assert.ErrorIs(t, err, chat.ErrInvalidDocument)

	_, err = readChats(strings.NewReader(`42`))
	assert.Error(t, err)

	chats, err := readChats(strings.NewReader(``))
	require.NoError(t, err)
	assert.Empty(t, chats)
}
