package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-go-golems/chatsync/pkg/api"
	"github.com/go-go-golems/chatsync/pkg/chat"
	"github.com/go-go-golems/chatsync/pkg/store"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstMessageCreatesChatWithPreset(t *testing.T) {
	f := newFixture(t, replyWith("Hello!"))
	ctx := context.Background()
	require.NoError(t, f.store.AddPreset(chat.NewPreset("Pirate", "Talk like a pirate.")))

	reply, err := f.service.SendMessage(ctx, "  Hi ")
	require.NoError(t, err)
	assert.Equal(t, "Hello!", reply.Content)

	chats := f.store.Chats()
	require.Len(t, chats, 1)
	c := chats[0]
	assert.Equal(t, c.ID, f.store.CurrentChatID())
	assert.Equal(t, chat.DefaultTitle, c.Title)
	assert.Equal(t, "Talk like a pirate.", c.SystemMessage)
	require.Len(t, c.Messages, 2)
	assert.Equal(t, chat.RoleUser, c.Messages[0].Role)
	assert.Equal(t, "Hi", c.Messages[0].Content)
	assert.Equal(t, chat.RoleAssistant, c.Messages[1].Role)
	assert.Equal(t, "Hello!", c.Messages[1].Content)

	stored, ok := f.persistence.storedChat(c.ID)
	require.True(t, ok)
	assert.Len(t, stored.Messages, 2)
	assert.Equal(t, SendIdle, f.service.SendState(c.ID))
}

func TestSendMessageSendsSystemMessageAndHistory(t *testing.T) {
	var got []chat.Message
	var gotOpts api.CompletionOptions
	completer := completerFunc(func(_ context.Context, messages []chat.Message, opts api.CompletionOptions) (*api.Completion, error) {
		got = messages
		gotOpts = opts
		return &api.Completion{Text: "ok"}, nil
	})
	maxTokens := 32
	f := newFixture(t, completer, WithCompletionOptions(api.CompletionOptions{MaxTokens: &maxTokens}))
	ctx := context.Background()

	_, err := f.service.CreateChat(ctx, "t", "be brief")
	require.NoError(t, err)
	_, err = f.service.SendMessage(ctx, "one")
	require.NoError(t, err)
	_, err = f.service.SendMessage(ctx, "two")
	require.NoError(t, err)

	require.Len(t, got, 4)
	assert.Equal(t, chat.RoleSystem, got[0].Role)
	assert.Equal(t, "be brief", got[0].Content)
	assert.Equal(t, "one", got[1].Content)
	assert.Equal(t, "ok", got[2].Content)
	assert.Equal(t, "two", got[3].Content)

	require.NotNil(t, gotOpts.Temperature)
	assert.Equal(t, chat.DefaultTemperature, *gotOpts.Temperature)
	require.NotNil(t, gotOpts.MaxTokens)
	assert.Equal(t, 32, *gotOpts.MaxTokens)
}

func TestCompletionFailureKeepsUserMessage(t *testing.T) {
	failing := completerFunc(func(context.Context, []chat.Message, api.CompletionOptions) (*api.Completion, error) {
		return nil, &api.RequestError{Method: "POST", Path: "/v1/chat/completions", StatusCode: 500}
	})
	f := newFixture(t, failing)
	ctx := context.Background()

	c, err := f.service.CreateChat(ctx, "t", "s")
	require.NoError(t, err)

	_, err = f.service.SendMessage(ctx, "Hi")
	require.Error(t, err)
	assert.True(t, errors.Is(err, api.ErrRequest))

	assert.Equal(t, c.ID, f.store.CurrentChatID())
	got, _ := f.store.Chat(c.ID)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, chat.RoleUser, got.Messages[0].Role)
	assert.Equal(t, "Hi", got.Messages[0].Content)
	assert.Equal(t, chat.RoleSystem, got.Messages[1].Role)
	assert.Equal(t, "Error: POST /v1/chat/completions: server returned 500. Please try again.", got.Messages[1].Content)

	stored, _ := f.persistence.storedChat(c.ID)
	require.Len(t, stored.Messages, 1, "the inline error is not persisted")
	assert.Equal(t, LevelError, f.notes.last().Level)
	assert.Equal(t, SendIdle, f.service.SendState(c.ID))
}

func TestCompletionErrorIsNeitherPromptedNorSaved(t *testing.T) {
	calls := 0
	var prompt []chat.Message
	flaky := completerFunc(func(_ context.Context, messages []chat.Message, _ api.CompletionOptions) (*api.Completion, error) {
		calls++
		if calls == 1 {
			return nil, &api.RequestError{Method: "POST", Path: "/v1/chat/completions", StatusCode: 503}
		}
		prompt = messages
		return &api.Completion{Text: "ok"}, nil
	})
	f := newFixture(t, flaky)
	ctx := context.Background()
	c, err := f.service.CreateChat(ctx, "t", "sys")
	require.NoError(t, err)

	_, err = f.service.SendMessage(ctx, "one")
	require.Error(t, err)
	_, err = f.service.SendMessage(ctx, "two")
	require.NoError(t, err)

	contents := func(messages []chat.Message) []string {
		ret := []string{}
		for _, m := range messages {
			ret = append(ret, string(m.Role)+":"+m.Content)
		}
		return ret
	}
	assert.Equal(t, []string{"system:sys", "user:one", "user:two"}, contents(prompt))

	stored, ok := f.persistence.storedChat(c.ID)
	require.True(t, ok)
	assert.Equal(t, []string{"user:one", "user:two", "assistant:ok"}, contents(stored.Messages))

	got, _ := f.store.Chat(c.ID)
	require.Len(t, got.Messages, 4)
	assert.True(t, got.Messages[1].LocalOnly, "the error is still shown in the chat")
	assert.Contains(t, got.Messages[1].Content, "503")
}

func TestCompletionTimeoutIsReportedAsTimedOut(t *testing.T) {
	slow := completerFunc(func(ctx context.Context, _ []chat.Message, _ api.CompletionOptions) (*api.Completion, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	f := newFixture(t, slow, WithCompletionTimeout(20*time.Millisecond))

	_, err := f.service.SendMessage(context.Background(), "Hi")
	require.Error(t, err)
	assert.True(t, errors.Is(err, api.ErrTimedOut))

	c := f.store.CurrentChat()
	require.NotNil(t, c)
	require.Len(t, c.Messages, 2)
	assert.Equal(t, chat.RoleSystem, c.Messages[1].Role)
}

func TestUserMessageSaveFailureIsOnlyAWarning(t *testing.T) {
	f := newFixture(t, replyWith("hey"))
	ctx := context.Background()
	_, err := f.service.CreateChat(ctx, "t", "s")
	require.NoError(t, err)
	f.persistence.fail["replace_chat"] = true

	reply, err := f.service.SendMessage(ctx, "Hi")
	require.NoError(t, err)
	assert.Equal(t, "hey", reply.Content)
	assert.Len(t, f.store.CurrentChat().Messages, 2)
	assert.Contains(t, f.notes.levels(), LevelWarning)
}

func TestConcurrentSendIsRejected(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	blocking := completerFunc(func(context.Context, []chat.Message, api.CompletionOptions) (*api.Completion, error) {
		close(started)
		<-release
		return &api.Completion{Text: "done"}, nil
	})
	f := newFixture(t, blocking)
	ctx := context.Background()
	c, err := f.service.CreateChat(ctx, "t", "s")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := f.service.SendMessage(ctx, "first")
		done <- err
	}()

	<-started
	assert.Equal(t, SendAwaitingCompletion, f.service.SendState(c.ID))
	_, err = f.service.SendMessage(ctx, "second")
	assert.ErrorIs(t, err, ErrSendInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, SendIdle, f.service.SendState(c.ID))
	assert.Len(t, f.store.CurrentChat().Messages, 2)
}

func TestSendMessageValidation(t *testing.T) {
	f := newFixture(t, replyWith("x"))
	_, err := f.service.SendMessage(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Equal(t, 0, f.store.ChatCount())

	offline := newFixture(t, nil)
	_, err = offline.service.SendMessage(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrCompletionUnavailable)
	assert.Equal(t, 0, offline.store.ChatCount())

	_, err = f.service.SendMessageTo(context.Background(), "missing", "hi")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateChatRevertsOnPersistenceFailure(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	first, err := f.service.CreateChat(ctx, "first", "")
	require.NoError(t, err)
	assert.Equal(t, chat.DefaultSystemMessage, first.SystemMessage)

	f.persistence.fail["create_chat"] = true
	_, err = f.service.CreateChat(ctx, "second", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPersistenceFailed))

	var pfe *PersistenceFailedError
	require.True(t, errors.As(err, &pfe))
	assert.Equal(t, "create_chat", pfe.Op)

	assert.Equal(t, 1, f.store.ChatCount())
	assert.Equal(t, first.ID, f.store.CurrentChatID())
	assert.Equal(t, notification{Level: LevelError, Message: "Failed to create chat"}, f.notes.last())
}

func TestCreateChatRoundTripsThroughPersistence(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	c, err := f.service.CreateChat(ctx, "title", "system")
	require.NoError(t, err)

	chats := f.persistence.ListChats(ctx)
	require.Len(t, chats, 1)
	assert.Equal(t, c.ID, chats[0].ID)
	assert.Equal(t, "title", chats[0].Title)
	assert.Equal(t, "system", chats[0].SystemMessage)
	assert.Empty(t, chats[0].Messages)
}

func TestDeleteChatAsksForConfirmation(t *testing.T) {
	var asked []string
	answer := false
	confirmer := ConfirmerFunc(func(_ context.Context, message string) (bool, error) {
		asked = append(asked, message)
		return answer, nil
	})
	f := newFixture(t, nil, WithConfirmer(confirmer))
	ctx := context.Background()
	c, err := f.service.CreateChat(ctx, "Doomed", "")
	require.NoError(t, err)

	deleted, err := f.service.DeleteChat(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Equal(t, 1, f.store.ChatCount())
	assert.Equal(t, []string{`Are you sure you want to delete "Doomed"?`}, asked)
	assert.Equal(t, 0, f.persistence.count("delete_chat"))

	answer = true
	deleted, err = f.service.DeleteChat(ctx, "")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, 0, f.store.ChatCount())
	assert.Equal(t, "", f.store.CurrentChatID())
}

func TestDeleteChatServerFailureDivergesWithoutRevert(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	older, err := f.service.CreateChat(ctx, "older", "")
	require.NoError(t, err)
	newer, err := f.service.CreateChat(ctx, "newer", "")
	require.NoError(t, err)
	f.persistence.fail["delete_chat"] = true

	deleted, err := f.service.DeleteChat(ctx, newer.ID)
	assert.True(t, deleted)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStateDiverged))

	_, ok := f.store.Chat(newer.ID)
	assert.False(t, ok, "the chat stays removed locally")
	assert.Equal(t, older.ID, f.store.CurrentChatID())
	assert.Equal(t, LevelError, f.notes.last().Level)
}

func TestClearChat(t *testing.T) {
	f := newFixture(t, replyWith("hello"))
	ctx := context.Background()
	_, err := f.service.SendMessage(ctx, "hi")
	require.NoError(t, err)
	id := f.store.CurrentChatID()

	f.persistence.fail["replace_chat"] = true
	cleared, err := f.service.ClearChat(ctx, "")
	assert.False(t, cleared)
	assert.ErrorIs(t, err, ErrPersistenceFailed)
	assert.Len(t, f.store.CurrentChat().Messages, 2, "messages are restored")

	delete(f.persistence.fail, "replace_chat")
	cleared, err = f.service.ClearChat(ctx, id)
	require.NoError(t, err)
	assert.True(t, cleared)
	assert.Empty(t, f.store.CurrentChat().Messages)
	stored, _ := f.persistence.storedChat(id)
	assert.Empty(t, stored.Messages)
}

func TestClearChatWithoutSelection(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.service.ClearChat(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoCurrentChat)
}

func TestRenameChat(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	c, err := f.service.CreateChat(ctx, "old", "")
	require.NoError(t, err)

	require.NoError(t, f.service.RenameChat(ctx, c.ID, "new"))
	got, _ := f.store.Chat(c.ID)
	assert.Equal(t, "new", got.Title)

	f.persistence.fail["replace_chat"] = true
	assert.ErrorIs(t, f.service.RenameChat(ctx, c.ID, "newer"), ErrPersistenceFailed)
	got, _ = f.store.Chat(c.ID)
	assert.Equal(t, "new", got.Title)
}

func TestSelectChatIsLocal(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a, err := f.service.CreateChat(ctx, "a", "")
	require.NoError(t, err)
	_, err = f.service.CreateChat(ctx, "b", "")
	require.NoError(t, err)
	calls := len(f.persistence.calls)

	require.NoError(t, f.service.SelectChat(a.ID))
	assert.Equal(t, a.ID, f.store.CurrentChatID())
	assert.Len(t, f.persistence.calls, calls)
	assert.ErrorIs(t, f.service.SelectChat("missing"), store.ErrNotFound)
}

func TestLoadSelectsMostRecentAndEnsuresPreset(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.persistence.chats["a"] = chat.NewChat("a", "", chat.WithChatID("a"), chat.WithCreatedAt(time.UnixMilli(10)))
	f.persistence.chats["b"] = chat.NewChat("b", "", chat.WithChatID("b"), chat.WithCreatedAt(time.UnixMilli(30)))
	f.persistence.chats["c"] = chat.NewChat("c", "", chat.WithChatID("c"), chat.WithCreatedAt(time.UnixMilli(20)))
	f.persistence.order = []string{"a", "b", "c"}
	temp := 1.5
	f.persistence.settings = &chat.Settings{Temperature: &temp}
	f.persistence.info = &chat.ModelInfo{Status: "ok", Model: "m.gguf"}

	require.NoError(t, f.service.Load(ctx))

	var ids []string
	for _, c := range f.store.Chats() {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"b", "c", "a"}, ids)
	assert.Equal(t, "b", f.store.CurrentChatID())

	presets := f.store.Presets()
	require.Len(t, presets, 1)
	assert.Equal(t, chat.DefaultPresetName, presets[0].Name)
	assert.Len(t, f.persistence.presets, 1)

	assert.Equal(t, 1.5, *f.service.CompletionOptions().Temperature)
	info, ok := f.service.ModelInfo()
	require.True(t, ok)
	assert.Equal(t, "m.gguf", info.Model)
}

func TestLoadToleratesPersistenceFailures(t *testing.T) {
	f := newFixture(t, nil)
	f.persistence.fail["list_chats"] = true
	f.persistence.fail["list_presets"] = true
	f.persistence.fail["create_preset"] = true

	require.NoError(t, f.service.Load(context.Background()))
	assert.Equal(t, 0, f.store.ChatCount())
	assert.Equal(t, 1, f.store.PresetCount(), "the default preset is kept even when it could not be saved")
	assert.Equal(t, LevelWarning, f.notes.last().Level)
}
