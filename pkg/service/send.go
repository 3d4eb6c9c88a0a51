package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-go-golems/chatsync/pkg/api"
	"github.com/go-go-golems/chatsync/pkg/chat"
	"github.com/go-go-golems/chatsync/pkg/store"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// SendState is the progress of the message currently being sent in a chat.
type SendState string

const (
	SendIdle                     SendState = "idle"
	SendUserMessageAppended      SendState = "user_message_appended"
	SendAwaitingCompletion       SendState = "awaiting_completion"
	SendAssistantMessageAppended SendState = "assistant_message_appended"
	SendCompletionFailed         SendState = "completion_failed"
)

// SendState reports where a send in chatID currently is. Chats without a
// send in flight are SendIdle.
func (s *Service) SendState(chatID string) SendState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.sendStates[chatID]; ok {
		return state
	}
	return SendIdle
}

// beginSend marks chatID as busy. Only one message per chat can be in flight.
func (s *Service) beginSend(chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.sendStates[chatID]; busy {
		return ErrSendInProgress
	}
	s.sendStates[chatID] = SendUserMessageAppended
	return nil
}

func (s *Service) setSendState(chatID string, state SendState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendStates[chatID] = state
}

func (s *Service) endSend(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sendStates, chatID)
}

// CompletionOptions are the options sent with the next completion: the
// loaded settings overlaid with the options given to WithCompletionOptions.
func (s *Service) CompletionOptions() api.CompletionOptions {
	s.mu.Lock()
	ret := api.CompletionOptionsFromSettings(s.settings)
	s.mu.Unlock()

	if s.completionOverrides.Temperature != nil {
		v := *s.completionOverrides.Temperature
		ret.Temperature = &v
	}
	if s.completionOverrides.MaxTokens != nil {
		v := *s.completionOverrides.MaxTokens
		ret.MaxTokens = &v
	}
	return ret
}

// newChatSystemMessage is the system message of chats created implicitly by
// SendMessage: the first preset, or the default text.
func (s *Service) newChatSystemMessage() string {
	if p, ok := s.store.FirstPreset(); ok {
		return p.Content
	}
	return chat.DefaultSystemMessage
}

// SendMessage appends text as a user message to the current chat, creating
// a chat first when none is selected, and asks the server for a reply.
//
// The user message is kept whatever happens next. When the completion fails
// a single LocalOnly system message describing the error is appended to the
// chat and the completion error is returned. That message is neither sent
// with later completions nor persisted.
func (s *Service) SendMessage(ctx context.Context, text string) (*chat.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if s.completer == nil {
		return nil, ErrCompletionUnavailable
	}

	chatID := s.store.CurrentChatID()
	if chatID == "" {
		c, err := s.CreateChat(ctx, chat.DefaultTitle, s.newChatSystemMessage())
		if err != nil {
			return nil, err
		}
		chatID = c.ID
	}

	return s.sendToChat(ctx, chatID, text)
}

// SendMessageTo is SendMessage for a chat other than the current one.
func (s *Service) SendMessageTo(ctx context.Context, chatID string, text string) (*chat.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if s.completer == nil {
		return nil, ErrCompletionUnavailable
	}
	if _, ok := s.store.Chat(chatID); !ok {
		return nil, &store.NotFoundError{Kind: "chat", ID: chatID}
	}
	return s.sendToChat(ctx, chatID, text)
}

func (s *Service) sendToChat(ctx context.Context, chatID string, text string) (*chat.Message, error) {
	if err := s.beginSend(chatID); err != nil {
		return nil, err
	}
	defer s.endSend(chatID)

	userMessage := chat.NewUserMessage(text, chat.WithTimestamp(s.now()))
	if err := s.store.AppendMessage(chatID, userMessage); err != nil {
		return nil, err
	}
	// the message was sent, a failed save is reported but not rolled back
	if !s.replaceChat(chatID)(ctx) {
		s.notify(LevelWarning, "Your message could not be saved to the server.")
	}

	c, ok := s.store.Chat(chatID)
	if !ok {
		return nil, errors.Errorf("chat %s disappeared while sending", chatID)
	}

	s.setSendState(chatID, SendAwaitingCompletion)
	completion, err := s.complete(ctx, c.CompletionMessages())
	if err != nil {
		s.setSendState(chatID, SendCompletionFailed)
		s.appendCompletionError(chatID, err)
		return nil, err
	}

	reply := chat.NewAssistantMessage(completion.Text, chat.WithTimestamp(s.now()))
	if err := s.store.AppendMessage(chatID, reply); err != nil {
		return nil, err
	}
	s.setSendState(chatID, SendAssistantMessageAppended)
	if !s.replaceChat(chatID)(ctx) {
		s.notify(LevelWarning, "The reply could not be saved to the server.")
	}

	return &reply, nil
}

func (s *Service) complete(ctx context.Context, messages []chat.Message) (*api.Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, s.completionTimeout)
	defer cancel()

	if e := log.Debug(); e.Enabled() {
		e = e.Int("messages", len(messages))
		if n, err := chat.CountTokens(messages); err == nil {
			e = e.Int("prompt_tokens_estimate", n)
		}
		e.Msg("requesting completion")
	}
	completion, err := s.completer.CompleteChat(ctx, messages, s.CompletionOptions())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, api.ErrTimedOut) {
			err = errors.Wrap(api.ErrTimedOut, err.Error())
		}
		return nil, err
	}
	if completion == nil {
		return nil, errors.Wrap(api.ErrInvalidResponse, "empty completion")
	}
	return completion, nil
}

// CompletionErrorText is the chat message shown in place of a reply.
func CompletionErrorText(err error) string {
	return fmt.Sprintf("Error: %s. Please try again.", err.Error())
}

func (s *Service) appendCompletionError(chatID string, err error) {
	log.Error().Err(err).Str("chat_id", chatID).Msg("completion failed")
	message := chat.NewSystemMessage(CompletionErrorText(err), chat.WithTimestamp(s.now()), chat.WithLocalOnly())
	if appendErr := s.store.AppendMessage(chatID, message); appendErr != nil {
		log.Warn().Err(appendErr).Str("chat_id", chatID).Msg("could not show completion error in chat")
	}
	s.notify(LevelError, fmt.Sprintf("Error: %s", err.Error()))
}
