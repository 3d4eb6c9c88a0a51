package events

import (
	"github.com/rs/zerolog/log"
)

// Sink receives store changes. Implementations must not call back into the
// store synchronously while holding their own locks.
type Sink interface {
	PublishChange(change Change) error
}

type NullSink struct{}

func (NullSink) PublishChange(Change) error { return nil }

var _ Sink = NullSink{}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(change Change) error

func (f SinkFunc) PublishChange(change Change) error {
	return f(change)
}

// MultiSink fans a change out to several sinks. Errors from individual sinks
// are logged and do not stop delivery to the others.
type MultiSink []Sink

func (m MultiSink) PublishChange(change Change) error {
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.PublishChange(change); err != nil {
			log.Warn().Err(err).Str("change", change.String()).Msg("sink failed to handle change")
		}
	}
	return nil
}

// PublishBlind publishes to sink and logs instead of returning errors.
func PublishBlind(sink Sink, change Change) {
	if sink == nil {
		return
	}
	if err := sink.PublishChange(change); err != nil {
		log.Warn().Err(err).Str("change", change.String()).Msg("failed to publish change")
	}
}
