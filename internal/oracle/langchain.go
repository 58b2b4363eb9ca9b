package oracle

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
)

// LangChain adapts a langchaingo model, and optionally an embedder, to Backend.
type LangChain struct {
	llm      llms.Model
	embedder embeddings.Embedder
}

func NewLangChain(llm llms.Model, embedder embeddings.Embedder) *LangChain {
	return &LangChain{llm: llm, embedder: embedder}
}

// NewAnthropic builds a LangChain backend on Anthropic's messages API.
// Anthropic offers no embeddings, so Embed reports ErrUnsupported.
func NewAnthropic(apiKey, model string) (*LangChain, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key required")
	}
	llm, err := anthropic.New(
		anthropic.WithToken(apiKey),
		anthropic.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create anthropic model: %w", err)
	}
	return NewLangChain(llm, nil), nil
}

func (l *LangChain) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := l.llm.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("generate: no response choices")
	}
	return resp.Choices[0].Content, nil
}

func (l *LangChain) Embed(ctx context.Context, text string) ([]float32, error) {
	if l.embedder == nil {
		return nil, ErrUnsupported
	}
	v, err := l.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	return v, nil
}
