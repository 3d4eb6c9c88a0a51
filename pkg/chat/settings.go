package chat

import (
	"fmt"

	"github.com/huandu/go-clone"
)

type Theme string

const (
	ThemeAuto  Theme = "auto"
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

func (t Theme) Validate() error {
	switch t {
	case ThemeAuto, ThemeLight, ThemeDark:
		return nil
	default:
		return fmt.Errorf("unknown theme %q", string(t))
	}
}

const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 512
)

// Settings holds the user preferences the server persists. Every key is
// optional: a nil field means "not set" and is left alone by Merge.
type Settings struct {
	IsDarkMode  *bool    `json:"isDarkMode,omitempty" yaml:"is_dark_mode,omitempty"`
	Theme       *Theme   `json:"theme,omitempty" yaml:"theme,omitempty" jsonschema:"enum=auto,enum=light,enum=dark"`
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   *int     `json:"maxTokens,omitempty" yaml:"max_tokens,omitempty"`
}

func DefaultSettings() *Settings {
	darkMode := false
	theme := ThemeAuto
	temperature := DefaultTemperature
	maxTokens := DefaultMaxTokens
	return &Settings{
		IsDarkMode:  &darkMode,
		Theme:       &theme,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	}
}

func (s *Settings) Clone() *Settings {
	if s == nil {
		return nil
	}
	return clone.Clone(s).(*Settings)
}

func (s *Settings) IsEmpty() bool {
	return s == nil || (s.IsDarkMode == nil && s.Theme == nil && s.Temperature == nil && s.MaxTokens == nil)
}

// Merge copies every key that is present in partial over s.
func (s *Settings) Merge(partial *Settings) {
	if partial == nil {
		return
	}
	if partial.IsDarkMode != nil {
		v := *partial.IsDarkMode
		s.IsDarkMode = &v
	}
	if partial.Theme != nil {
		v := *partial.Theme
		s.Theme = &v
	}
	if partial.Temperature != nil {
		v := *partial.Temperature
		s.Temperature = &v
	}
	if partial.MaxTokens != nil {
		v := *partial.MaxTokens
		s.MaxTokens = &v
	}
}

func (s *Settings) Validate() error {
	if s == nil {
		return nil
	}
	if s.Theme != nil {
		if err := s.Theme.Validate(); err != nil {
			return err
		}
	}
	if s.Temperature != nil && (*s.Temperature < 0 || *s.Temperature > 2) {
		return fmt.Errorf("temperature %v out of range [0, 2]", *s.Temperature)
	}
	if s.MaxTokens != nil && *s.MaxTokens <= 0 {
		return fmt.Errorf("maxTokens must be positive, got %d", *s.MaxTokens)
	}
	return nil
}

func (s *Settings) TemperatureOr(def float64) float64 {
	if s == nil || s.Temperature == nil {
		return def
	}
	return *s.Temperature
}

func (s *Settings) MaxTokensOr(def int) int {
	if s == nil || s.MaxTokens == nil {
		return def
	}
	return *s.MaxTokens
}
