package chat

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/tiktoken-go/tokenizer"
)

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
	codecErr  error
)

func tokenCodec() (tokenizer.Codec, error) {
	codecOnce.Do(func() {
		codec, codecErr = tokenizer.Get(tokenizer.Cl100kBase)
		if codecErr != nil {
			codecErr = errors.Wrap(codecErr, "loading cl100k_base tokenizer")
		}
	})
	return codec, codecErr
}

// CountTokens estimates the number of tokens in the content of messages,
// using the cl100k_base encoding. The real count depends on the model behind
// the server and on the framing of each message, so this is a lower bound.
func CountTokens(messages []Message) (int, error) {
	c, err := tokenCodec()
	if err != nil {
		return 0, err
	}
	total := 0
	for _, m := range messages {
		ids, _, err := c.Encode(m.Content)
		if err != nil {
			return 0, errors.Wrap(err, "encoding message")
		}
		total += len(ids)
	}
	return total, nil
}
