package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"

	chatv1 "bankassist/contracts/chat/v1"
)

// Degradation messages surfaced to the customer when the upstream model
// is unavailable. Classified from the API status so the conversation
// fails soft instead of erroring out.
const (
	msgRateLimited = "I'm receiving a lot of requests right now. Please try again in a moment."
	msgUnavailable = "I'm having trouble reaching my systems right now. Please try again shortly."
)

// OpenAI is a Provider backed by the OpenAI chat completions API.
type OpenAI struct {
	log    *slog.Logger
	client openai.Client
	model  string
}

// NewOpenAI constructs the provider. Temperature is pinned to zero:
// banking conversations need deterministic, non-creative replies.
func NewOpenAI(log *slog.Logger, apiKey, model string) *OpenAI {
	if log == nil {
		log = slog.Default()
	}
	return &OpenAI{
		log:    log,
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Complete runs one model turn. Rate-limit and availability failures
// degrade to a canned customer-facing reply rather than an error; auth
// and request-shape failures propagate so the operator sees them.
func (p *OpenAI) Complete(ctx context.Context, messages []chatv1.Message, tools []chatv1.Tool) (Reply, error) {
	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(p.model),
		Messages:    toOpenAIMessages(messages),
		Temperature: openai.Float(0),
	}
	if len(tools) > 0 {
		params.Tools = toOpenAITools(tools)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return p.degrade(err)
	}
	if len(resp.Choices) == 0 {
		return Reply{}, ErrNoChoices
	}

	msg := resp.Choices[0].Message
	reply := Reply{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		reply.ToolCalls = append(reply.ToolCalls, chatv1.ToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: chatv1.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return reply, nil
}

func (p *OpenAI) degrade(err error) (Reply, error) {
	var apierr *openai.Error
	if !errors.As(err, &apierr) {
		p.log.Error("llm.request_fail", "err", err)
		return Reply{Content: msgUnavailable}, nil
	}

	switch apierr.StatusCode {
	case http.StatusTooManyRequests:
		p.log.Warn("llm.rate_limited")
		return Reply{Content: msgRateLimited}, nil
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		p.log.Error("llm.upstream_fail", "status", apierr.StatusCode)
		return Reply{Content: msgUnavailable}, nil
	default:
		// Auth and request-shape failures are operator problems.
		return Reply{}, fmt.Errorf("llm: completion failed: %w", err)
	}
}

func toOpenAIMessages(messages []chatv1.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case chatv1.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case chatv1.RoleUser:
			out = append(out, openai.UserMessage(m.Content))
		case chatv1.RoleAssistant:
			out = append(out, assistantMessage(m))
		case chatv1.RoleTool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		}
	}
	return out
}

func assistantMessage(m chatv1.Message) openai.ChatCompletionMessageParamUnion {
	if len(m.ToolCalls) == 0 {
		return openai.AssistantMessage(m.Content)
	}
	assistant := openai.ChatCompletionAssistantMessageParam{}
	if m.Content != "" {
		assistant.Content.OfString = openai.String(m.Content)
	}
	for _, tc := range m.ToolCalls {
		assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
			OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
				ID: tc.ID,
				Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			},
		})
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant}
}

func toOpenAITools(tools []chatv1.Tool) []openai.ChatCompletionToolUnionParam {
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(tools))
	for _, t := range tools {
		var params shared.FunctionParameters
		if len(t.Function.Parameters) > 0 {
			// Definitions are authored in-repo; a malformed schema is a
			// programming error and the tool is advertised without one.
			_ = json.Unmarshal(t.Function.Parameters, &params)
		}
		out = append(out, openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        t.Function.Name,
			Description: openai.String(t.Function.Description),
			Parameters:  params,
		}))
	}
	return out
}
