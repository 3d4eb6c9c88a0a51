package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-go-golems/chatsync/pkg/chat"
)

func (c *Client) ListChats(ctx context.Context) []*chat.Chat {
	var chats []*chat.Chat
	if !c.fetch(ctx, "list_chats", chatsPath, &chats) {
		return []*chat.Chat{}
	}
	return compactChats(chats)
}

func (c *Client) CreateChat(ctx context.Context, ch *chat.Chat) bool {
	return c.send(ctx, "create_chat", http.MethodPost, chatsPath, nil, ch)
}

func (c *Client) ReplaceChat(ctx context.Context, ch *chat.Chat) bool {
	return c.send(ctx, "replace_chat", http.MethodPut, chatPath, map[string]string{"id": ch.ID}, ch)
}

func (c *Client) DeleteChat(ctx context.Context, id string) bool {
	return c.send(ctx, "delete_chat", http.MethodDelete, chatPath, map[string]string{"id": id}, nil)
}

func (c *Client) ListPresets(ctx context.Context) []*chat.Preset {
	var presets []*chat.Preset
	if !c.fetch(ctx, "list_presets", presetsPath, &presets) {
		return []*chat.Preset{}
	}
	ret := make([]*chat.Preset, 0, len(presets))
	for _, p := range presets {
		if p != nil {
			ret = append(ret, p)
		}
	}
	return ret
}

func (c *Client) CreatePreset(ctx context.Context, p *chat.Preset) bool {
	return c.send(ctx, "create_preset", http.MethodPost, presetsPath, nil, p)
}

func (c *Client) DeletePreset(ctx context.Context, id string) bool {
	return c.send(ctx, "delete_preset", http.MethodDelete, presetPath, map[string]string{"id": id}, nil)
}

// LoadSettings returns false when the server failed or sent no settings.
func (c *Client) LoadSettings(ctx context.Context) (*chat.Settings, bool) {
	var settings *chat.Settings
	if !c.fetch(ctx, "load_settings", settingsPath, &settings) {
		return nil, false
	}
	if settings.IsEmpty() {
		return nil, false
	}
	return settings, true
}

func (c *Client) SaveSettings(ctx context.Context, partial *chat.Settings) bool {
	if partial == nil {
		partial = &chat.Settings{}
	}
	return c.send(ctx, "save_settings", http.MethodPost, settingsPath, nil, partial)
}

func (c *Client) ModelInfo(ctx context.Context) (*chat.ModelInfo, bool) {
	var info *chat.ModelInfo
	if !c.fetch(ctx, "model_info", infoPath, &info) {
		return nil, false
	}
	if info == nil || strings.TrimSpace(info.Model) == "" {
		return nil, false
	}
	return info, true
}

func compactChats(chats []*chat.Chat) []*chat.Chat {
	ret := make([]*chat.Chat, 0, len(chats))
	for _, ch := range chats {
		if ch == nil {
			continue
		}
		if ch.Messages == nil {
			ch.Messages = []chat.Message{}
		}
		ret = append(ret, ch)
	}
	return ret
}
