package service

import (
	"context"

	"github.com/rs/zerolog/log"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notifier shows short, dismissable messages to the user.
type Notifier interface {
	Notify(level Level, message string)
}

type NotifierFunc func(level Level, message string)

func (f NotifierFunc) Notify(level Level, message string) {
	f(level, message)
}

// LogNotifier writes notifications to the global logger.
type LogNotifier struct{}

func (LogNotifier) Notify(level Level, message string) {
	switch level {
	case LevelError:
		log.Error().Msg(message)
	case LevelWarning:
		log.Warn().Msg(message)
	case LevelInfo, LevelSuccess:
		log.Info().Str("level", string(level)).Msg(message)
	}
}

// Confirmer asks the user a yes/no question. A non-nil error aborts the
// operation that asked.
type Confirmer interface {
	Confirm(ctx context.Context, message string) (bool, error)
}

type ConfirmerFunc func(ctx context.Context, message string) (bool, error)

func (f ConfirmerFunc) Confirm(ctx context.Context, message string) (bool, error) {
	return f(ctx, message)
}

// AlwaysConfirm answers yes without asking, for non-interactive use.
type AlwaysConfirm struct{}

func (AlwaysConfirm) Confirm(context.Context, string) (bool, error) { return true, nil }
