// Package tokens budgets rendered conversation history against a token
// limit so prompts stay inside the reasoning service's context window.
package tokens

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Budgeter counts tokens with the encoding matching a model and trims
// history blocks to a budget. It is safe for concurrent use.
type Budgeter struct {
	model string

	mu    sync.RWMutex
	cache map[tokenizer.Encoding]tokenizer.Codec
}

// NewBudgeter creates a budgeter for the given model name.
func NewBudgeter(model string) *Budgeter {
	return &Budgeter{
		model: model,
		cache: make(map[tokenizer.Encoding]tokenizer.Codec),
	}
}

// Count returns the token count of text under the model's encoding.
func (b *Budgeter) Count(text string) (int, error) {
	codec, err := b.getCodec()
	if err != nil {
		return 0, err
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// TrimToBudget drops the oldest history blocks until the joined total fits
// the budget. The newest block always survives even when it alone exceeds
// the budget: sending some history beats sending none. A budget <= 0 means
// unlimited.
func (b *Budgeter) TrimToBudget(blocks []string, budget int) []string {
	if budget <= 0 || len(blocks) == 0 {
		return blocks
	}

	for len(blocks) > 1 {
		total, err := b.Count(strings.Join(blocks, "\n"))
		if err != nil {
			// Without a usable codec, pass history through unchanged.
			return blocks
		}
		if total <= budget {
			return blocks
		}
		blocks = blocks[1:]
	}
	return blocks
}

func (b *Budgeter) getCodec() (tokenizer.Codec, error) {
	codec, err := tokenizer.ForModel(tokenizer.Model(b.model))
	if err == nil {
		return codec, nil
	}

	encoding := modelEncoding(b.model)

	b.mu.RLock()
	if cached, ok := b.cache[encoding]; ok {
		b.mu.RUnlock()
		return cached, nil
	}
	b.mu.RUnlock()

	codec, err = tokenizer.Get(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokenizer encoding: %w", err)
	}

	b.mu.Lock()
	b.cache[encoding] = codec
	b.mu.Unlock()

	return codec, nil
}

// modelEncoding maps model names to a fallback encoding. Newer GPT-4o/4.1
// and o-series models use o200k_base; everything else gets cl100k_base.
func modelEncoding(model string) tokenizer.Encoding {
	model = strings.ToLower(model)
	switch {
	case strings.HasPrefix(model, "gpt-4o"),
		strings.HasPrefix(model, "gpt-4.1"),
		strings.HasPrefix(model, "gpt-5"),
		strings.HasPrefix(model, "o1"),
		strings.HasPrefix(model, "o3"),
		strings.HasPrefix(model, "o4"):
		return tokenizer.O200kBase
	default:
		return tokenizer.Cl100kBase
	}
}
