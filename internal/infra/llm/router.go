package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/yanqian/evaluator-ai/internal/domain/evalconfig"
	"github.com/yanqian/evaluator-ai/internal/domain/evaluator"
	"github.com/yanqian/evaluator-ai/internal/infra/llm/chatgpt"
)

// ChatGPTLLM adapts the chat completions client to the evaluator.
type ChatGPTLLM struct {
	client      *chatgpt.Client
	model       string
	temperature float32
}

// NewChatGPTLLM constructs the adapter.
func NewChatGPTLLM(client *chatgpt.Client, model string, temperature float32) *ChatGPTLLM {
	return &ChatGPTLLM{client: client, model: model, temperature: temperature}
}

// Chat sends a chat completion request.
func (l *ChatGPTLLM) Chat(ctx context.Context, messages []evaluator.Message) (string, error) {
	req := chatgpt.ChatCompletionRequest{
		Model:       l.model,
		Temperature: l.temperature,
		Messages:    make([]chatgpt.Message, 0, len(messages)),
	}
	for _, msg := range messages {
		req.Messages = append(req.Messages, chatgpt.Message{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	resp, err := l.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

var _ evaluator.LLM = (*ChatGPTLLM)(nil)

// EchoLLM returns a lightweight fallback without external calls.
type EchoLLM struct{}

// Chat echoes the last message back.
func (EchoLLM) Chat(_ context.Context, messages []evaluator.Message) (string, error) {
	if len(messages) == 0 {
		return "", nil
	}
	return "Answer: " + messages[len(messages)-1].Content, nil
}

var _ evaluator.LLM = (*EchoLLM)(nil)

// Router resolves the model picked in the form to a configured client.
type Router struct {
	models   map[evalconfig.Model]evaluator.LLM
	fallback evaluator.LLM
}

// NewRouter constructs a router. fallback may be nil, in which case unknown
// models are an error.
func NewRouter(models map[evalconfig.Model]evaluator.LLM, fallback evaluator.LLM) *Router {
	copied := make(map[evalconfig.Model]evaluator.LLM, len(models))
	for k, v := range models {
		copied[k] = v
	}
	return &Router{models: copied, fallback: fallback}
}

// ForModel returns the client for model.
func (r *Router) ForModel(model evalconfig.Model) (evaluator.LLM, error) {
	if llm, ok := r.models[model]; ok {
		return llm, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, fmt.Errorf("model %q is not configured", model)
}

var _ evaluator.LLMProvider = (*Router)(nil)
