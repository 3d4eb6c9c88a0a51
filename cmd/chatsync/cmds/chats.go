package cmds

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-go-golems/chatsync/pkg/chat"
	"github.com/go-go-golems/chatsync/pkg/render"
	"github.com/go-go-golems/chatsync/pkg/store"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newChatsCommand() *cobra.Command {
	chatsCmd := &cobra.Command{
		Use:   "chats",
		Short: "List and manage chats",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List chats, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			titleGlob, _ := cmd.Flags().GetString("title")
			tmpl, _ := cmd.Flags().GetString("template")
			return withApp(cmd, false, func(ctx context.Context, app *App) error {
				chats, err := filterChats(app.Store.Chats(), titleGlob)
				if err != nil {
					return err
				}
				if tmpl != "" {
					return writeTemplate(cmd.OutOrStdout(), tmpl, chats)
				}
				_, err = fmt.Fprint(cmd.OutOrStdout(), render.RenderChatList(chats, app.Store.CurrentChatID()))
				return err
			})
		},
	}
	listCmd.Flags().String("title", "", "Only list chats whose title matches this glob")
	listCmd.Flags().String("template", "", "Go template applied to each chat, with sprig functions")

	showCmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show a chat, the most recent one by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, false, func(ctx context.Context, app *App) error {
				if len(args) == 1 {
					if err := app.Service.SelectChat(args[0]); err != nil {
						return err
					}
				}
				c := app.Store.CurrentChat()
				if c == nil {
					_, err := fmt.Fprintln(cmd.OutOrStdout(), "no chats yet")
					return err
				}
				if _, err := fmt.Fprint(cmd.OutOrStdout(), app.Terminal.RenderChat(c)); err != nil {
					return err
				}
				if n, err := chat.CountTokens(c.CompletionMessages()); err == nil {
					_, err = fmt.Fprintf(cmd.OutOrStdout(), "~%d tokens\n", n)
					return err
				}
				return nil
			})
		},
	}

	newCmd := &cobra.Command{
		Use:   "new",
		Short: "Create a chat and select it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			title, _ := cmd.Flags().GetString("title")
			system, _ := cmd.Flags().GetString("system")
			return withApp(cmd, false, func(ctx context.Context, app *App) error {
				text, _ := app.Service.ResolveSystemMessage(system)
				c, err := app.Service.CreateChat(ctx, title, text)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), c.ID)
				return err
			})
		},
	}
	newCmd.Flags().String("title", "", "Title of the chat")
	newCmd.Flags().String("system", "", "Preset id, preset name or system message text")

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, false, func(ctx context.Context, app *App) error {
				_, err := app.Service.DeleteChat(ctx, args[0])
				return err
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear [id]",
		Short: "Remove all messages of a chat, the most recent one by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, false, func(ctx context.Context, app *App) error {
				id := ""
				if len(args) == 1 {
					id = args[0]
				}
				_, err := app.Service.ClearChat(ctx, id)
				return err
			})
		},
	}

	renameCmd := &cobra.Command{
		Use:   "rename <id> <title...>",
		Short: "Change the title of a chat",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, false, func(ctx context.Context, app *App) error {
				return app.Service.RenameChat(ctx, args[0], strings.Join(args[1:], " "))
			})
		},
	}

	exportCmd := &cobra.Command{
		Use:   "export [id]",
		Short: "Print a chat, or all chats, as YAML or JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			outputDir, _ := cmd.Flags().GetString("output-dir")
			return withApp(cmd, false, func(ctx context.Context, app *App) error {
				chats := app.Store.Chats()
				if len(args) == 1 {
					c, ok := app.Store.Chat(args[0])
					if !ok {
						return &store.NotFoundError{Kind: "chat", ID: args[0]}
					}
					chats = []*chat.Chat{c}
				}
				for i, c := range chats {
					chats[i] = c.WithoutLocalMessages()
				}
				if outputDir != "" {
					paths, err := exportToDir(outputDir, format, chats)
					for _, p := range paths {
						_, _ = fmt.Fprintln(cmd.OutOrStdout(), p)
					}
					return err
				}
				if len(args) == 1 {
					return writeStructured(cmd.OutOrStdout(), format, chats[0])
				}
				return writeStructured(cmd.OutOrStdout(), format, chats)
			})
		},
	}
	exportCmd.Flags().String("format", FormatYAML, "Output format (yaml, json)")
	exportCmd.Flags().String("output-dir", "", "Write one file per chat into this directory")

	importCmd := &cobra.Command{
		Use:   "import <file...>",
		Short: "Import chats written by export",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var chats []*chat.Chat
			for _, path := range args {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				read, err := readChats(f)
				_ = f.Close()
				if err != nil {
					return errors.Wrapf(err, "reading %s", path)
				}
				chats = append(chats, read...)
			}
			return withApp(cmd, false, func(ctx context.Context, app *App) error {
				for _, c := range chats {
					if _, err := app.Service.ImportChat(ctx, c); err != nil {
						return errors.Wrapf(err, "importing chat %s", c.ID)
					}
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "imported %d chats\n", len(chats))
				return err
			})
		},
	}

	chatsCmd.AddCommand(listCmd, showCmd, newCmd, deleteCmd, clearCmd, renameCmd, exportCmd, importCmd)
	return chatsCmd
}
