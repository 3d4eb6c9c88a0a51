package events

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog/log"
)

const (
	// ChangesTopic is the default topic store changes are published on.
	ChangesTopic = "chatsync.changes"

	SequenceNumberMetadataKey = "sequence_number"
	ChangeKindMetadataKey     = "change_kind"
)

// PublisherManager distributes changes to a set of watermill Publishers.
// Each publisher is registered together with the topic it should receive
// changes on.
//
// The manager keeps a sequence number for each outgoing message, in the order
// they are handled by Publish.
type PublisherManager struct {
	Publishers     map[string][]message.Publisher
	sequenceNumber uint64
	mutex          sync.Mutex
}

var _ Sink = (*PublisherManager)(nil)

func NewPublisherManager() *PublisherManager {
	return &PublisherManager{
		Publishers: make(map[string][]message.Publisher),
	}
}

func (s *PublisherManager) SubscribePublisher(topic string, pub message.Publisher) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.Publishers[topic] = append(s.Publishers[topic], pub)
}

// Publish serializes payload to JSON and hands it to every registered
// publisher. Failures of single publishers are logged, not returned.
func (s *PublisherManager) Publish(payload interface{}, metadata map[string]string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), b)
	for k, v := range metadata {
		msg.Metadata.Set(k, v)
	}
	msg.Metadata.Set(SequenceNumberMetadataKey, fmt.Sprintf("%d", s.sequenceNumber))
	s.sequenceNumber++

	for topic, pubs := range s.Publishers {
		for _, pub := range pubs {
			// each publisher gets its own copy, gochannel acks are per message
			err = pub.Publish(topic, msg.Copy())
			if err != nil {
				log.Warn().Err(err).Str("topic", topic).Msg("failed to publish")
			}
		}
	}

	return nil
}

func (s *PublisherManager) PublishChange(change Change) error {
	return s.Publish(change, map[string]string{
		ChangeKindMetadataKey: string(change.Kind),
	})
}

func (s *PublisherManager) PublishBlind(payload interface{}) {
	err := s.Publish(payload, nil)
	if err != nil {
		log.Warn().Err(err).Msg("failed to publish")
	}
}

// WatermillSink publishes changes to a single topic of a single publisher.
type WatermillSink struct {
	publisher message.Publisher
	topic     string
	manager   *PublisherManager
}

var _ Sink = (*WatermillSink)(nil)

func NewWatermillSink(publisher message.Publisher, topic string) *WatermillSink {
	if topic == "" {
		topic = ChangesTopic
	}
	manager := NewPublisherManager()
	manager.SubscribePublisher(topic, publisher)
	return &WatermillSink{
		publisher: publisher,
		topic:     topic,
		manager:   manager,
	}
}

func (w *WatermillSink) Topic() string {
	return w.topic
}

func (w *WatermillSink) PublishChange(change Change) error {
	return w.manager.PublishChange(change)
}
