package service

import (
	"context"
	"sync"
	"testing"

	"github.com/go-go-golems/chatsync/pkg/api"
	"github.com/go-go-golems/chatsync/pkg/chat"
	"github.com/go-go-golems/chatsync/pkg/store"
)

// fakePersistence records calls and lets tests make single operations fail.
type fakePersistence struct {
	mu       sync.Mutex
	chats    map[string]*chat.Chat
	order    []string
	presets  []*chat.Preset
	settings *chat.Settings
	info     *chat.ModelInfo
	fail     map[string]bool
	calls    []string
}

func newFakePersistence() *fakePersistence {
	return &fakePersistence{
		chats: map[string]*chat.Chat{},
		fail:  map[string]bool{},
	}
}

func (f *fakePersistence) record(op string) bool {
	f.calls = append(f.calls, op)
	return !f.fail[op]
}

func (f *fakePersistence) ListChats(context.Context) []*chat.Chat {
	f.mu.Lock()
	defer f.mu.Unlock()
	ret := []*chat.Chat{}
	if !f.record("list_chats") {
		return ret
	}
	for _, id := range f.order {
		if c, ok := f.chats[id]; ok {
			ret = append(ret, c.Clone())
		}
	}
	return ret
}

func (f *fakePersistence) CreateChat(_ context.Context, c *chat.Chat) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.record("create_chat") {
		return false
	}
	f.chats[c.ID] = c.Clone()
	f.order = append(f.order, c.ID)
	return true
}

func (f *fakePersistence) ReplaceChat(_ context.Context, c *chat.Chat) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.record("replace_chat") {
		return false
	}
	if _, ok := f.chats[c.ID]; !ok {
		f.order = append(f.order, c.ID)
	}
	f.chats[c.ID] = c.Clone()
	return true
}

func (f *fakePersistence) DeleteChat(_ context.Context, id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.record("delete_chat") {
		return false
	}
	delete(f.chats, id)
	return true
}

func (f *fakePersistence) ListPresets(context.Context) []*chat.Preset {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.record("list_presets") {
		return []*chat.Preset{}
	}
	ret := make([]*chat.Preset, 0, len(f.presets))
	for _, p := range f.presets {
		ret = append(ret, p.Clone())
	}
	return ret
}

func (f *fakePersistence) CreatePreset(_ context.Context, p *chat.Preset) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.record("create_preset") {
		return false
	}
	f.presets = append(f.presets, p.Clone())
	return true
}

func (f *fakePersistence) DeletePreset(_ context.Context, id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.record("delete_preset") {
		return false
	}
	for i, p := range f.presets {
		if p.ID == id {
			f.presets = append(f.presets[:i], f.presets[i+1:]...)
			return true
		}
	}
	return false
}

func (f *fakePersistence) LoadSettings(context.Context) (*chat.Settings, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.record("load_settings") || f.settings.IsEmpty() {
		return nil, false
	}
	return f.settings.Clone(), true
}

func (f *fakePersistence) SaveSettings(_ context.Context, partial *chat.Settings) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.record("save_settings") {
		return false
	}
	if f.settings == nil {
		f.settings = &chat.Settings{}
	}
	f.settings.Merge(partial)
	return true
}

func (f *fakePersistence) ModelInfo(context.Context) (*chat.ModelInfo, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.record("model_info") || f.info == nil {
		return nil, false
	}
	info := *f.info
	return &info, true
}

func (f *fakePersistence) storedChat(id string) (*chat.Chat, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.chats[id]
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

func (f *fakePersistence) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

type completerFunc func(ctx context.Context, messages []chat.Message, opts api.CompletionOptions) (*api.Completion, error)

func (f completerFunc) CompleteChat(ctx context.Context, messages []chat.Message, opts api.CompletionOptions) (*api.Completion, error) {
	return f(ctx, messages, opts)
}

func replyWith(text string) completerFunc {
	return func(context.Context, []chat.Message, api.CompletionOptions) (*api.Completion, error) {
		return &api.Completion{Text: text}, nil
	}
}

type notification struct {
	Level   Level
	Message string
}

type recorder struct {
	mu            sync.Mutex
	notifications []notification
}

func (r *recorder) Notify(level Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, notification{Level: level, Message: message})
}

func (r *recorder) levels() []Level {
	r.mu.Lock()
	defer r.mu.Unlock()
	ret := make([]Level, 0, len(r.notifications))
	for _, n := range r.notifications {
		ret = append(ret, n.Level)
	}
	return ret
}

func (r *recorder) last() notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notifications) == 0 {
		return notification{}
	}
	return r.notifications[len(r.notifications)-1]
}

type fixture struct {
	store       *store.Store
	persistence *fakePersistence
	notes       *recorder
	service     *Service
}

func newFixture(t *testing.T, completer Completer, options ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:       store.New(),
		persistence: newFakePersistence(),
		notes:       &recorder{},
	}
	options = append([]Option{WithNotifier(f.notes)}, options...)
	f.service = New(f.store, f.persistence, completer, options...)
	return f
}
