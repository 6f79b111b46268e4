package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/joshsymonds/labelsweep/internal/mailbox"
	"github.com/joshsymonds/labelsweep/internal/secrets"
)

const defaultModel = openai.ChatModelGPT4oMini

// OpenAILabeler asks a chat-completion model for one label per message.
type OpenAILabeler struct {
	client openai.Client
	model  openai.ChatModel
}

// NewOpenAILabeler builds a labeler from the oracle secret set.
func NewOpenAILabeler(cfg secrets.Oracle) *OpenAILabeler {
	model := openai.ChatModel(cfg.Model)
	if cfg.Model == "" {
		model = defaultModel
	}
	return &OpenAILabeler{
		client: openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  model,
	}
}

// GenerateLabel implements Labeler.
func (l *OpenAILabeler) GenerateLabel(ctx context.Context, msg mailbox.MessageSummary, knownLabels []string) (string, error) {
	completion, err := l.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: l.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt(msg, knownLabels)),
		},
		Temperature: openai.Float(0.3),
		TopP:        openai.Float(0.95),
	})
	if err != nil {
		return "", fmt.Errorf("labeling oracle: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("labeling oracle returned no choices")
	}
	label := sanitizeLabel(completion.Choices[0].Message.Content)
	if label == "" {
		return "", errors.New("labeling oracle returned an empty label")
	}
	return label, nil
}

var _ Labeler = (*OpenAILabeler)(nil)
