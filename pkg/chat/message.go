package chat

import (
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Validate() error {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return nil
	default:
		return fmt.Errorf("unknown message role %q", string(r))
	}
}

func (r Role) String() string {
	return string(r)
}

// Message is a single entry in a chat. Messages are never edited once they
// have been appended to a Chat.
//
// LocalOnly messages are shown to the user but never sent to the model or
// saved.
type Message struct {
	Role      Role      `json:"role" jsonschema:"enum=system,enum=user,enum=assistant"`
	Content   string    `json:"content"`
	Timestamp Timestamp `json:"timestamp"`
	LocalOnly bool      `json:"-" yaml:"-"`
}

type MessageOption func(*Message)

func WithTimestamp(t time.Time) MessageOption {
	return func(m *Message) {
		m.Timestamp = NewTimestamp(t)
	}
}

func WithLocalOnly() MessageOption {
	return func(m *Message) {
		m.LocalOnly = true
	}
}

func NewMessage(role Role, content string, options ...MessageOption) Message {
	ret := Message{
		Role:      role,
		Content:   content,
		Timestamp: Now(),
	}
	for _, option := range options {
		option(&ret)
	}
	return ret
}

func NewUserMessage(content string, options ...MessageOption) Message {
	return NewMessage(RoleUser, content, options...)
}

func NewAssistantMessage(content string, options ...MessageOption) Message {
	return NewMessage(RoleAssistant, content, options...)
}

func NewSystemMessage(content string, options ...MessageOption) Message {
	return NewMessage(RoleSystem, content, options...)
}

func (m Message) View() string {
	return fmt.Sprintf("[%s]: %s", m.Role, strings.TrimRight(m.Content, "\n"))
}

// TruncateText cuts text to maxLength runes and appends "..." when it had to cut.
func TruncateText(text string, maxLength int) string {
	if text == "" {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= maxLength {
		return text
	}
	return string(runes[:maxLength]) + "..."
}
