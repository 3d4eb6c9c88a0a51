package render

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/chatsync/pkg/chat"
	"github.com/go-go-golems/chatsync/pkg/events"
	"github.com/go-go-golems/chatsync/pkg/service"
	"github.com/go-go-golems/chatsync/pkg/store"
	"github.com/mattn/go-isatty"
	"github.com/muesli/reflow/wordwrap"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

const (
	DefaultWidth  = 80
	EmptyChatText = "This is the start of your conversation. Type a message below to begin."
	previewLength = 40
)

// Terminal draws the store to a writer. It is both the sink the store
// publishes changes to and the notifier of the service.
type Terminal struct {
	mu         sync.Mutex
	out        io.Writer
	store      *store.Store
	width      int
	markdown   bool
	fullRedraw bool
	style      string
	isTTY      bool
}

var (
	_ events.Sink      = (*Terminal)(nil)
	_ service.Notifier = (*Terminal)(nil)
)

type TerminalOption func(*Terminal)

func WithWidth(width int) TerminalOption {
	return func(t *Terminal) {
		t.width = width
	}
}

// WithMarkdown toggles rendering assistant messages as markdown.
func WithMarkdown(markdown bool) TerminalOption {
	return func(t *Terminal) {
		t.markdown = markdown
	}
}

// WithFullRedraw makes every change redraw the chat list and the current
// chat. Without it only new messages and selection changes are printed.
func WithFullRedraw(fullRedraw bool) TerminalOption {
	return func(t *Terminal) {
		t.fullRedraw = fullRedraw
	}
}

// WithStyle sets the glamour style, "dark", "light" or "notty".
func WithStyle(style string) TerminalOption {
	return func(t *Terminal) {
		t.style = style
	}
}

func NewTerminal(out io.Writer, st *store.Store, options ...TerminalOption) *Terminal {
	ret := &Terminal{
		out:      out,
		store:    st,
		markdown: true,
		style:    "dark",
	}

	if f, ok := out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		ret.isTTY = true
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			ret.width = w
		}
	}
	if !ret.isTTY {
		ret.style = "notty"
	}
	if ret.width <= 0 {
		ret.width = DefaultWidth
	}

	for _, o := range options {
		o(ret)
	}
	return ret
}

func (t *Terminal) PublishChange(change events.Change) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.fullRedraw {
		if !change.AffectsChatList() {
			return nil
		}
		_, err := io.WriteString(t.out, t.drawAll())
		return err
	}

	var out string
	switch change.Kind {
	case events.ChangeMessageAppended:
		c, ok := t.store.Chat(change.ChatID)
		if !ok || change.ChatID != t.store.CurrentChatID() {
			return nil
		}
		if m, ok := c.LastMessage(); ok {
			out = t.RenderMessage(m)
		}
	case events.ChangeSelectionChanged, events.ChangeLoaded:
		if c := t.store.CurrentChat(); c != nil {
			out = t.RenderChat(c)
		}
	case events.ChangeMessagesCleared:
		if change.ChatID == t.store.CurrentChatID() {
			out = mutedStyle.Render(EmptyChatText) + "\n"
		}
	case events.ChangeChatAdded,
		events.ChangeChatRemoved,
		events.ChangeChatUpdated,
		events.ChangePresetAdded,
		events.ChangePresetRemoved:
	}
	if out == "" {
		return nil
	}
	_, err := io.WriteString(t.out, out)
	return err
}

// Draw writes the chat list followed by the current chat.
func (t *Terminal) Draw() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := io.WriteString(t.out, t.drawAll())
	return err
}

func (t *Terminal) drawAll() string {
	var b strings.Builder
	b.WriteString(RenderChatList(t.store.Chats(), t.store.CurrentChatID()))
	b.WriteString("\n")
	if c := t.store.CurrentChat(); c != nil {
		b.WriteString(t.RenderChat(c))
	}
	return b.String()
}

func (t *Terminal) Notify(level service.Level, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := io.WriteString(t.out, t.drawNotification(level, message)+"\n"); err != nil {
		log.Warn().Err(err).Msg("could not draw notification")
	}
}

var (
	titleStyle     = lipgloss.NewStyle().Bold(true)
	mutedStyle     = lipgloss.NewStyle().Faint(true)
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	systemStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))

	levelColors = map[service.Level]lipgloss.Color{
		service.LevelInfo:    lipgloss.Color("12"),
		service.LevelSuccess: lipgloss.Color("10"),
		service.LevelWarning: lipgloss.Color("11"),
		service.LevelError:   lipgloss.Color("9"),
	}
)

func (t *Terminal) drawNotification(level service.Level, message string) string {
	width := t.width / 2
	if width < 20 {
		width = t.width
	}

	style := lipgloss.NewStyle().
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(levelColors[level]).
		Width(width - 4)

	w := wordwrap.NewWriter(width - 4)
	_, _ = fmt.Fprint(w, message)
	_ = w.Close()
	return style.Render(w.String())
}

// RenderChatList draws one line per chat: a marker for the current chat,
// the title and a preview of the first message.
func RenderChatList(chats []*chat.Chat, currentID string) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Chats"))
	b.WriteString("\n")
	if len(chats) == 0 {
		b.WriteString(mutedStyle.Render("  no chats yet"))
		b.WriteString("\n")
		return b.String()
	}
	for _, c := range chats {
		marker := "  "
		if c.ID == currentID {
			marker = "* "
		}
		fmt.Fprintf(&b, "%s%s %s\n", marker, c.Title, mutedStyle.Render(preview(c, previewLength)))
	}
	return b.String()
}

func (t *Terminal) RenderChat(c *chat.Chat) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(c.Title))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(chat.TruncateText(c.SystemMessage, t.width-4)))
	b.WriteString("\n\n")
	if len(c.Messages) == 0 {
		b.WriteString(mutedStyle.Render(EmptyChatText))
		b.WriteString("\n")
		return b.String()
	}
	for _, m := range c.Messages {
		b.WriteString(t.RenderMessage(m))
	}
	return b.String()
}

func (t *Terminal) RenderMessage(m chat.Message) string {
	var header string
	switch m.Role {
	case chat.RoleUser:
		header = userStyle.Render("You")
	case chat.RoleAssistant:
		header = assistantStyle.Render("Assistant")
	case chat.RoleSystem:
		header = systemStyle.Render("System")
	default:
		header = string(m.Role)
	}
	if !m.Timestamp.IsZero() {
		header += " " + mutedStyle.Render(m.Timestamp.Format("15:04"))
	}

	var body string
	if m.Role == chat.RoleAssistant && t.markdown {
		body = t.renderMarkdown(m.Content)
	} else {
		body = wordwrap.String(m.Content, t.width)
	}
	return header + "\n" + strings.TrimRight(body, "\n") + "\n\n"
}

func (t *Terminal) renderMarkdown(text string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(t.style),
		glamour.WithWordWrap(t.width),
	)
	if err != nil {
		log.Debug().Err(err).Msg("markdown renderer unavailable, using raw text")
		return wordwrap.String(text, t.width)
	}
	out, err := r.Render(text)
	if err != nil {
		log.Debug().Err(err).Msg("could not render markdown, using raw text")
		return wordwrap.String(text, t.width)
	}
	return out
}
