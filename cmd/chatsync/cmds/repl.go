package cmds

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-go-golems/chatsync/pkg/render"
	"github.com/go-go-golems/chatsync/pkg/service"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const replHelp = `Commands:
  /new [title]             start a new chat
  /chats                   list chats
  /switch <n|id>           switch to the chat with that number or id
  /rename <title>          rename the current chat
  /system <preset|text>    change the system message of the current chat
  /presets                 list system message presets
  /clear                   remove all messages of the current chat
  /delete                  delete the current chat
  /quit                    leave
Anything else is sent as a message.
`

// Repl reads lines and turns them into service calls. Lines starting with a
// slash are commands, everything else is a message for the current chat.
type Repl struct {
	app *App
	in  io.Reader
	out io.Writer
}

func NewRepl(app *App, in io.Reader, out io.Writer) *Repl {
	return &Repl{app: app, in: in, out: out}
}

func (r *Repl) Run(ctx context.Context) error {
	if err := r.app.Terminal.Draw(); err != nil {
		return err
	}

	scanner := bufio.NewScanner(r.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		_, _ = fmt.Fprint(r.out, "> ")
		if !scanner.Scan() {
			break
		}
		quit, err := r.HandleLine(ctx, scanner.Text())
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.app.Terminal.Notify(service.LevelWarning, err.Error())
		}
		if quit {
			return nil
		}
	}
	return scanner.Err()
}

// HandleLine runs one line. It reports whether the loop should stop.
func (r *Repl) HandleLine(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		_, err := r.app.Service.SendMessage(ctx, line)
		return false, err
	}

	command, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	svc := r.app.Service

	switch command {
	case "/quit", "/exit", "/q":
		return true, nil
	case "/help", "/?":
		_, err := fmt.Fprint(r.out, replHelp)
		return false, err
	case "/new":
		_, err := svc.CreateChat(ctx, arg, "")
		if err != nil {
			return false, err
		}
		// a new chat has no messages yet, show the welcome text
		return false, svc.SelectChat(svc.Store().CurrentChatID())
	case "/chats":
		_, err := fmt.Fprint(r.out, r.numberedChatList())
		return false, err
	case "/switch":
		id, err := r.resolveChat(arg)
		if err != nil {
			return false, err
		}
		return false, svc.SelectChat(id)
	case "/rename":
		return false, svc.RenameChat(ctx, "", arg)
	case "/system":
		return false, svc.SwitchSystemPreset(ctx, "", arg)
	case "/presets":
		for _, p := range svc.Store().Presets() {
			if _, err := fmt.Fprintf(r.out, "  %s  %s: %s\n", p.ID, p.Name, p.Content); err != nil {
				return false, err
			}
		}
		return false, nil
	case "/clear":
		_, err := svc.ClearChat(ctx, "")
		return false, err
	case "/delete":
		_, err := svc.DeleteChat(ctx, "")
		return false, err
	default:
		return false, errors.Errorf("unknown command %s, try /help", command)
	}
}

func (r *Repl) numberedChatList() string {
	chats := r.app.Store.Chats()
	if len(chats) == 0 {
		return render.RenderChatList(nil, "")
	}
	current := r.app.Store.CurrentChatID()
	var b strings.Builder
	for i, c := range chats {
		marker := " "
		if c.ID == current {
			marker = "*"
		}
		fmt.Fprintf(&b, "%s %2d. %s (%s)\n", marker, i+1, c.Title, c.ID)
	}
	return b.String()
}

// resolveChat accepts a 1-based position in the chat list or a chat id.
func (r *Repl) resolveChat(arg string) (string, error) {
	if arg == "" {
		return "", errors.New("usage: /switch <n|id>")
	}
	chats := r.app.Store.Chats()
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(chats) {
			return "", errors.Errorf("no chat number %d", n)
		}
		return chats[n-1].ID, nil
	}
	return arg, nil
}

func newReplCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Chat interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, true, func(ctx context.Context, app *App) error {
				return NewRepl(app, cmd.InOrStdin(), cmd.OutOrStdout()).Run(ctx)
			})
		},
	}
}
