package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/go-go-golems/chatsync/pkg/chat"
	"github.com/go-go-golems/chatsync/pkg/service"
	"github.com/go-go-golems/chatsync/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTerminal(t *testing.T, options ...TerminalOption) (*Terminal, *store.Store, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	st := store.New()
	options = append([]TerminalOption{WithMarkdown(false)}, options...)
	term := NewTerminal(buf, st, options...)
	st.SetSink(term)
	return term, st, buf
}

func TestEmptyChatShowsWelcomeText(t *testing.T) {
	_, st, buf := newTestTerminal(t)
	require.NoError(t, st.Apply(store.MutateAddAndSelectChat(chat.NewChat("Fresh", ""))))
	require.NoError(t, st.SetCurrentChat(st.CurrentChatID()))

	assert.Contains(t, buf.String(), EmptyChatText)
	assert.Contains(t, buf.String(), "Fresh")
}

func TestAppendedMessagesArePrintedForCurrentChat(t *testing.T) {
	_, st, buf := newTestTerminal(t)
	current := chat.NewChat("current", "")
	other := chat.NewChat("other", "")
	require.NoError(t, st.AddChat(other))
	require.NoError(t, st.Apply(store.MutateAddAndSelectChat(current)))
	buf.Reset()

	require.NoError(t, st.AppendMessage(current.ID, chat.NewUserMessage("hello from the current chat")))
	require.NoError(t, st.AppendMessage(other.ID, chat.NewUserMessage("hidden")))

	out := buf.String()
	assert.Contains(t, out, "You")
	assert.Contains(t, out, "hello from the current chat")
	assert.NotContains(t, out, "hidden")
}

func TestFullRedrawDrawsChatList(t *testing.T) {
	_, st, buf := newTestTerminal(t, WithFullRedraw(true))
	a := chat.NewChat("Alpha", "", chat.WithCreatedAt(time.UnixMilli(10)))
	b := chat.NewChat("Beta", "", chat.WithCreatedAt(time.UnixMilli(20)))
	require.NoError(t, st.Load([]*chat.Chat{a, b}, nil))

	out := buf.String()
	assert.Contains(t, out, "* Beta")
	assert.Contains(t, out, "  Alpha")
	assert.Less(t, strings.Index(out, "Beta"), strings.Index(out, "Alpha"))

	buf.Reset()
	require.NoError(t, st.AddPreset(chat.NewDefaultPreset()))
	assert.Empty(t, buf.String(), "preset changes do not redraw the chat list")
}

func TestRenderChatListEmpty(t *testing.T) {
	assert.Contains(t, RenderChatList(nil, ""), "no chats yet")
}

func TestRenderMessageRoles(t *testing.T) {
	term, _, _ := newTestTerminal(t, WithWidth(60))
	assert.Contains(t, term.RenderMessage(chat.NewSystemMessage("Error: boom. Please try again.")), "System")
	assert.Contains(t, term.RenderMessage(chat.NewAssistantMessage("**hi**")), "**hi**")
}

func TestMarkdownRenderingKeepsText(t *testing.T) {
	term, _, _ := newTestTerminal(t, WithMarkdown(true), WithStyle("notty"))
	out := term.RenderMessage(chat.NewAssistantMessage("# Title\n\nsome text"))
	assert.Contains(t, out, "Title")
	assert.Contains(t, out, "some text")
}

func TestNotifyDrawsBox(t *testing.T) {
	term, _, buf := newTestTerminal(t)
	term.Notify(service.LevelError, "Failed to delete chat")
	out := buf.String()
	assert.Contains(t, out, "Failed to delete chat")
	assert.Contains(t, out, "╭")
}

func TestPlainTextStripsMarkdown(t *testing.T) {
	assert.Equal(t, "Bold and code item", PlainText("**Bold** and `code`\n\n- item"))
	assert.Equal(t, "Title see the docs", PlainText("# Title\n\nsee [the docs](https://example.com)"))
	assert.Equal(t, "", PlainText(""))
}

func TestChatListPreviewIsPlainText(t *testing.T) {
	c := chat.NewChat("Notes", "", chat.WithMessages(chat.NewUserMessage("## What is *Go*?")))
	out := RenderChatList([]*chat.Chat{c}, "")
	assert.Contains(t, out, "What is Go?")
	assert.NotContains(t, out, "##")
}
