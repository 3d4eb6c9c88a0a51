package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-go-golems/chatsync/pkg/chat"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// CompletionOptions override the server-side sampling defaults. Nil fields
// keep DefaultTemperature and DefaultMaxTokens.
type CompletionOptions struct {
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// CompletionOptionsFromSettings maps the persisted settings to request options.
func CompletionOptionsFromSettings(s *chat.Settings) CompletionOptions {
	if s == nil {
		return CompletionOptions{}
	}
	ret := CompletionOptions{}
	if s.Temperature != nil {
		v := *s.Temperature
		ret.Temperature = &v
	}
	if s.MaxTokens != nil {
		v := *s.MaxTokens
		ret.MaxTokens = &v
	}
	return ret
}

type completionMessage struct {
	Role    chat.Role `json:"role"`
	Content string    `json:"content"`
}

type completionRequest struct {
	Messages    []completionMessage `json:"messages"`
	Temperature float64             `json:"temperature"`
	MaxTokens   int                 `json:"max_tokens"`
}

type Usage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	TimeTaken        float64 `json:"time_taken"`
}

type Completion struct {
	Text  string `json:"text"`
	Usage *Usage `json:"usage,omitempty"`
}

func newCompletionRequest(messages []chat.Message, opts CompletionOptions) completionRequest {
	req := completionRequest{
		Messages:    make([]completionMessage, 0, len(messages)),
		Temperature: chat.DefaultTemperature,
		MaxTokens:   chat.DefaultMaxTokens,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, completionMessage{Role: m.Role, Content: m.Content})
	}
	if opts.Temperature != nil {
		req.Temperature = *opts.Temperature
	}
	if opts.MaxTokens != nil {
		req.MaxTokens = *opts.MaxTokens
	}
	return req
}

// CompleteChat asks the server for the next assistant message. Unlike the
// persistence calls it returns its error: a *RequestError for non-2xx
// answers, a *TransportError for connectivity problems and ErrTimedOut once
// the completion timeout expires.
func (c *Client) CompleteChat(ctx context.Context, messages []chat.Message, opts CompletionOptions) (*Completion, error) {
	ctx, cancel := withTimeout(ctx, c.completionTimeout)
	defer cancel()

	req := newCompletionRequest(messages, opts)
	log.Debug().
		Int("messages", len(req.Messages)).
		Float64("temperature", req.Temperature).
		Int("max_tokens", req.MaxTokens).
		Msg("requesting completion")

	resp, err := c.do(ctx, http.MethodPost, completionsPath, nil, req)
	if err != nil {
		return nil, err
	}

	var completion Completion
	if err := json.Unmarshal(resp.Body(), &completion); err != nil {
		return nil, errors.Wrap(ErrInvalidResponse, err.Error())
	}
	if completion.Usage != nil {
		log.Debug().
			Int("prompt_tokens", completion.Usage.PromptTokens).
			Int("completion_tokens", completion.Usage.CompletionTokens).
			Float64("time_taken", completion.Usage.TimeTaken).
			Msg("completion finished")
	}
	return &completion, nil
}
