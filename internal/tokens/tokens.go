// Package tokens provides token counting for outgoing questions and
// prompts, plus the hard length budgets enforced before dispatch.
package tokens

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Length budgets for langchain-derived requests. Requests beyond these are
// rejected before any transport call.
const (
	MaxPromptLength   = 256_000
	MaxQuestionLength = 1_000_000
)

// Counter counts tokens with tiktoken, caching codecs per encoding. Unknown
// models fall back to the cl100k_base encoding.
type Counter struct {
	mu    sync.RWMutex
	cache map[tokenizer.Encoding]tokenizer.Codec
}

// NewCounter creates a token counter.
func NewCounter() *Counter {
	return &Counter{cache: make(map[tokenizer.Encoding]tokenizer.Codec)}
}

// Count returns the token count of text for the given model.
func (c *Counter) Count(model, text string) (int, error) {
	codec, err := c.codecFor(model)
	if err != nil {
		return 0, err
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return 0, fmt.Errorf("failed to encode text: %w", err)
	}
	return len(ids), nil
}

func (c *Counter) codecFor(model string) (tokenizer.Codec, error) {
	if codec, err := tokenizer.ForModel(tokenizer.Model(strings.ToLower(model))); err == nil {
		return codec, nil
	}

	encoding := encodingFor(model)

	c.mu.RLock()
	if cached, ok := c.cache[encoding]; ok {
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokenizer encoding: %w", err)
	}

	c.mu.Lock()
	c.cache[encoding] = codec
	c.mu.Unlock()
	return codec, nil
}

func encodingFor(model string) tokenizer.Encoding {
	model = strings.ToLower(model)
	switch {
	case strings.HasPrefix(model, "gpt-4o"), strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"):
		return tokenizer.O200kBase
	default:
		return tokenizer.Cl100kBase
	}
}
