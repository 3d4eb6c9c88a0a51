package cmds

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-go-golems/chatsync/pkg/chat"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func newInfoCommand() *cobra.Command {
	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Show the model behind the chat server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			return withApp(cmd, false, func(ctx context.Context, app *App) error {
				info, ok := app.Service.ModelInfo()
				if !ok {
					return errors.New("the server did not report a model")
				}
				return writeStructured(cmd.OutOrStdout(), format, info)
			})
		},
	}
	infoCmd.Flags().String("format", FormatYAML, "Output format (yaml, json)")
	return infoCmd
}

func newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema [type]",
		Short: "Print the JSON schema of chat, message, preset or settings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schemas := chat.Schemas()
			if len(args) == 1 {
				s, ok := schemas[args[0]]
				if !ok {
					names := make([]string, 0, len(schemas))
					for name := range schemas {
						names = append(names, name)
					}
					sort.Strings(names)
					return errors.Errorf("unknown type %q, expected one of %v", args[0], names)
				}
				return writeStructured(cmd.OutOrStdout(), FormatJSON, s)
			}
			return writeStructured(cmd.OutOrStdout(), FormatJSON, schemas)
		},
	}
}

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f := viper.ConfigFileUsed(); f != "" {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", f); err != nil {
					return err
				}
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(NewAppSettingsFromViper()); err != nil {
				return err
			}
			return enc.Close()
		},
	}
	configCmd.AddCommand(showCmd)
	return configCmd
}

func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(
		newChatsCommand(),
		newSendCommand(),
		newReplCommand(),
		newPresetsCommand(),
		newSettingsCommand(),
		newInfoCommand(),
		newSchemaCommand(),
		newConfigCommand(),
	)
}
