package chat

import (
	"time"

	"github.com/google/uuid"
	"github.com/huandu/go-clone"
)

const (
	DefaultTitle         = "New Chat"
	DefaultSystemMessage = "You are a helpful assistant."
	DefaultPresetName    = "Default Assistant"
)

// NewID returns an opaque identifier for chats and presets.
func NewID() string {
	return uuid.NewString()
}

// Chat is one conversation thread together with the system message that is
// sent in front of its history.
type Chat struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	SystemMessage string    `json:"systemMessage"`
	Messages      []Message `json:"messages"`
	CreatedAt     Timestamp `json:"createdAt"`
	UpdatedAt     Timestamp `json:"updatedAt"`
}

type ChatOption func(*Chat)

func WithChatID(id string) ChatOption {
	return func(c *Chat) {
		c.ID = id
	}
}

func WithCreatedAt(t time.Time) ChatOption {
	return func(c *Chat) {
		c.CreatedAt = NewTimestamp(t)
		c.UpdatedAt = c.CreatedAt
	}
}

func WithMessages(messages ...Message) ChatOption {
	return func(c *Chat) {
		c.Messages = append(c.Messages, messages...)
	}
}

// NewChat builds an empty chat. An empty title becomes DefaultTitle and an
// empty system message becomes DefaultSystemMessage.
func NewChat(title string, systemMessage string, options ...ChatOption) *Chat {
	now := Now()
	ret := &Chat{
		ID:            NewID(),
		Title:         NormalizeTitle(title),
		SystemMessage: systemMessage,
		Messages:      []Message{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if ret.SystemMessage == "" {
		ret.SystemMessage = DefaultSystemMessage
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

func NormalizeTitle(title string) string {
	if title == "" {
		return DefaultTitle
	}
	return title
}

func (c *Chat) Clone() *Chat {
	if c == nil {
		return nil
	}
	return clone.Clone(c).(*Chat)
}

// Preview is the truncated first message, used by chat lists.
func (c *Chat) Preview(maxLength int) string {
	if len(c.Messages) == 0 {
		return "No messages yet"
	}
	return TruncateText(c.Messages[0].Content, maxLength)
}

func (c *Chat) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// CompletionMessages returns the system message followed by the history,
// which is what the completion endpoint expects. LocalOnly messages are left
// out.
func (c *Chat) CompletionMessages() []Message {
	ret := make([]Message, 0, len(c.Messages)+1)
	ret = append(ret, Message{
		Role:      RoleSystem,
		Content:   c.SystemMessage,
		Timestamp: c.CreatedAt,
	})
	for _, m := range c.Messages {
		if !m.LocalOnly {
			ret = append(ret, m)
		}
	}
	return ret
}

// WithoutLocalMessages returns a copy of c without its LocalOnly messages.
// This is the form in which chats are saved and exported.
func (c *Chat) WithoutLocalMessages() *Chat {
	ret := c.Clone()
	if ret == nil {
		return nil
	}
	ret.Messages = make([]Message, 0, len(c.Messages))
	for _, m := range c.Messages {
		if !m.LocalOnly {
			ret.Messages = append(ret.Messages, m)
		}
	}
	return ret
}

// Preset is a named, reusable system message.
type Preset struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	CreatedAt Timestamp `json:"createdAt"`
}

type PresetOption func(*Preset)

func WithPresetID(id string) PresetOption {
	return func(p *Preset) {
		p.ID = id
	}
}

func WithPresetCreatedAt(t time.Time) PresetOption {
	return func(p *Preset) {
		p.CreatedAt = NewTimestamp(t)
	}
}

func NewPreset(name string, content string, options ...PresetOption) *Preset {
	ret := &Preset{
		ID:        NewID(),
		Name:      name,
		Content:   content,
		CreatedAt: Now(),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

func NewDefaultPreset(options ...PresetOption) *Preset {
	return NewPreset(DefaultPresetName, DefaultSystemMessage, options...)
}

func (p *Preset) Clone() *Preset {
	if p == nil {
		return nil
	}
	ret := *p
	return &ret
}
