package cmds

import (
	"context"

	"github.com/go-go-golems/chatsync/pkg/chat"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func newSettingsCommand() *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Show and change the settings stored on the server",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			return withApp(cmd, false, func(ctx context.Context, app *App) error {
				return writeStructured(cmd.OutOrStdout(), format, app.Service.Settings())
			})
		},
	}
	showCmd.Flags().String("format", FormatYAML, "Output format (yaml, json)")

	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Change settings, only the given flags are sent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			partial, err := settingsFromFlags(cmd.Flags())
			if err != nil {
				return err
			}
			if partial.IsEmpty() {
				return errors.New("nothing to set, pass at least one of --temperature, --max-tokens, --theme, --dark-mode")
			}
			return withApp(cmd, false, func(ctx context.Context, app *App) error {
				if err := app.Service.UpdateSettings(ctx, partial); err != nil {
					return err
				}
				return writeStructured(cmd.OutOrStdout(), FormatYAML, app.Service.Settings())
			})
		},
	}
	setCmd.Flags().Float64("temperature", chat.DefaultTemperature, "Sampling temperature, between 0 and 2")
	setCmd.Flags().Int("max-tokens", chat.DefaultMaxTokens, "Maximum number of tokens in a reply")
	setCmd.Flags().String("theme", string(chat.ThemeAuto), "Theme (auto, light, dark)")
	setCmd.Flags().Bool("dark-mode", false, "Dark mode")

	settingsCmd.AddCommand(showCmd, setCmd)
	return settingsCmd
}

// settingsFromFlags builds a partial Settings from the flags that were set
// explicitly.
func settingsFromFlags(flags *pflag.FlagSet) (*chat.Settings, error) {
	ret := &chat.Settings{}
	if flags.Changed("temperature") {
		v, err := flags.GetFloat64("temperature")
		if err != nil {
			return nil, err
		}
		ret.Temperature = &v
	}
	if flags.Changed("max-tokens") {
		v, err := flags.GetInt("max-tokens")
		if err != nil {
			return nil, err
		}
		ret.MaxTokens = &v
	}
	if flags.Changed("theme") {
		v, err := flags.GetString("theme")
		if err != nil {
			return nil, err
		}
		theme := chat.Theme(v)
		ret.Theme = &theme
	}
	if flags.Changed("dark-mode") {
		v, err := flags.GetBool("dark-mode")
		if err != nil {
			return nil, err
		}
		ret.IsDarkMode = &v
	}
	return ret, nil
}
