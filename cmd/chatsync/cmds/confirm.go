package cmds

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-go-golems/chatsync/pkg/render"
	"github.com/go-go-golems/chatsync/pkg/service"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/tcnksm/go-input"
)

// TTYConfirmer asks yes/no questions on the terminal. When stdin is not a
// terminal it opens the controlling terminal instead, so piping a message
// into chatsync still lets it ask.
type TTYConfirmer struct {
	reader io.Reader
	writer io.Writer
}

var _ service.Confirmer = (*TTYConfirmer)(nil)

func NewTTYConfirmer() *TTYConfirmer {
	return &TTYConfirmer{}
}

// NewConfirmer asks on the given reader and writer.
func NewConfirmer(reader io.Reader, writer io.Writer) *TTYConfirmer {
	return &TTYConfirmer{reader: reader, writer: writer}
}

func (c *TTYConfirmer) Confirm(ctx context.Context, message string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	reader, writer := c.reader, c.writer
	if reader == nil {
		if isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()) {
			reader, writer = os.Stdin, os.Stderr
		} else {
			tty_, err := render.OpenTTY()
			if err != nil {
				return false, errors.Wrap(err, "no terminal to ask for confirmation, use --yes")
			}
			defer func() {
				_ = tty_.Close()
			}()
			reader, writer = tty_, tty_
		}
	}

	ui := &input.UI{
		Writer: writer,
		Reader: reader,
	}

	answer, err := ui.Ask(message+" [y/n]", &input.Options{
		Default:  "n",
		Required: true,
		Loop:     true,
		ValidateFunc: func(answer string) error {
			switch strings.ToLower(answer) {
			case "y", "yes", "n", "no":
				return nil
			default:
				return fmt.Errorf("please enter 'y' or 'n'")
			}
		},
	})
	if err != nil {
		return false, errors.Wrap(err, "reading confirmation")
	}

	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
