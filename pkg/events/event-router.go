package events

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog/log"
)

// ChangeHandler is called by the router for every decoded change.
type ChangeHandler func(ctx context.Context, change Change) error

// EventRouter connects a store sink to any number of change handlers over an
// in-process watermill pub/sub.
type EventRouter struct {
	logger     watermill.LoggerAdapter
	Publisher  message.Publisher
	Subscriber message.Subscriber
	router     *message.Router
	topic      string
	verbose    bool
}

type EventRouterOption func(*EventRouter)

func WithLogger(logger watermill.LoggerAdapter) EventRouterOption {
	return func(r *EventRouter) {
		r.logger = logger
	}
}

func WithTopic(topic string) EventRouterOption {
	return func(r *EventRouter) {
		r.topic = topic
	}
}

func WithVerbose(verbose bool) EventRouterOption {
	return func(r *EventRouter) {
		r.verbose = verbose
		if verbose {
			r.logger = NewWatermillLogger(log.Logger)
		}
	}
}

func NewEventRouter(options ...EventRouterOption) (*EventRouter, error) {
	ret := &EventRouter{
		logger: watermill.NopLogger{},
		topic:  ChangesTopic,
	}

	for _, o := range options {
		o(ret)
	}

	goPubSub := gochannel.NewGoChannel(gochannel.Config{
		BlockPublishUntilSubscriberAck: true,
	}, ret.logger)
	ret.Publisher = goPubSub
	ret.Subscriber = goPubSub

	router, err := message.NewRouter(message.RouterConfig{}, ret.logger)
	if err != nil {
		return nil, err
	}

	ret.router = router

	return ret, nil
}

// Sink returns a Sink that publishes into this router.
func (e *EventRouter) Sink() *WatermillSink {
	return NewWatermillSink(e.Publisher, e.topic)
}

// AddChangeHandler registers a handler that receives every change published
// on the router's topic. Handlers must be added before Run.
func (e *EventRouter) AddChangeHandler(name string, handler ChangeHandler) {
	e.router.AddNoPublisherHandler(name, e.topic, e.Subscriber, func(msg *message.Message) error {
		change, err := NewChangeFromJSON(msg.Payload)
		if err != nil {
			// a malformed payload is dropped so that the handler keeps running
			log.Error().Err(err).Str("message_id", msg.UUID).Msg("failed to decode change")
			return nil
		}
		if e.verbose {
			log.Debug().
				Str("handler", name).
				Str("sequence_number", msg.Metadata.Get(SequenceNumberMetadataKey)).
				Str("change", change.String()).
				Msg("dispatching change")
		}
		return handler(msg.Context(), change)
	})
}

func (e *EventRouter) Close() error {
	log.Debug().Msg("Closing publisher")
	err := e.Publisher.Close()
	if err != nil {
		log.Error().Err(err).Msg("Failed to close pubsub")
	}

	log.Debug().Msg("Closing router")
	err = e.router.Close()
	if err != nil {
		log.Error().Err(err).Msg("Failed to close router")
	}

	return nil
}

func (e *EventRouter) Running() chan struct{} {
	return e.router.Running()
}

func (e *EventRouter) IsRunning() bool {
	return e.router.IsRunning()
}

func (e *EventRouter) Run(ctx context.Context) error {
	return e.router.Run(ctx)
}
