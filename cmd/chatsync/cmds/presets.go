package cmds

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newPresetsCommand() *cobra.Command {
	presetsCmd := &cobra.Command{
		Use:     "presets",
		Aliases: []string{"system-messages"},
		Short:   "Manage system message presets",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List presets in the order they were added",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			return withApp(cmd, false, func(ctx context.Context, app *App) error {
				presets := app.Store.Presets()
				if format != "" {
					return writeStructured(cmd.OutOrStdout(), format, presets)
				}
				for _, p := range presets {
					if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n    %s\n", p.ID, p.Name, p.Content); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	listCmd.Flags().String("format", "", "Output format (yaml, json), plain text when empty")

	addCmd := &cobra.Command{
		Use:   "add <name> <content...>",
		Short: "Add a preset",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, false, func(ctx context.Context, app *App) error {
				p, err := app.Service.CreatePreset(ctx, args[0], strings.Join(args[1:], " "))
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), p.ID)
				return err
			})
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a preset, the last one cannot be deleted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, false, func(ctx context.Context, app *App) error {
				_, err := app.Service.DeletePreset(ctx, args[0])
				return err
			})
		},
	}

	useCmd := &cobra.Command{
		Use:   "use <preset|text...>",
		Short: "Set the system message of a chat from a preset id, a preset name or free text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chatID, _ := cmd.Flags().GetString("chat")
			return withApp(cmd, false, func(ctx context.Context, app *App) error {
				return app.Service.SwitchSystemPreset(ctx, chatID, strings.Join(args, " "))
			})
		},
	}
	useCmd.Flags().String("chat", "", "Id of the chat, the most recent one by default")

	presetsCmd.AddCommand(listCmd, addCmd, deleteCmd, useCmd)
	return presetsCmd
}
