package cmds

import (
	"context"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newSendCommand() *cobra.Command {
	sendCmd := &cobra.Command{
		Use:   "send [text...]",
		Short: "Send one message and print the reply",
		Long: "Send one message to a chat and print the reply. Without a chat id the most " +
			"recently updated chat is used, and a new one is created when there are none. " +
			"Without text the message is read from stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			chatID, _ := cmd.Flags().GetString("chat")
			newChat, _ := cmd.Flags().GetBool("new")

			text := strings.Join(args, " ")
			if text == "" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return errors.Wrap(err, "reading message from stdin")
				}
				text = string(b)
			}

			return withApp(cmd, true, func(ctx context.Context, app *App) error {
				if newChat {
					c, err := app.Service.CreateChat(ctx, "", "")
					if err != nil {
						return err
					}
					chatID = c.ID
				}
				if chatID == "" {
					_, err := app.Service.SendMessage(ctx, text)
					return err
				}
				if err := app.Service.SelectChat(chatID); err != nil {
					return err
				}
				_, err := app.Service.SendMessageTo(ctx, chatID, text)
				return err
			})
		},
	}
	sendCmd.Flags().String("chat", "", "Id of the chat to send to")
	sendCmd.Flags().Bool("new", false, "Start a new chat")

	return sendCmd
}
