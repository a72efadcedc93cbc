package engine

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"

	"github.com/MeKo-Tech/scanocr/internal/imageio"
	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultOpenAIModel     = openai.GPT4oMini
	defaultOpenAIMaxTokens = 2048
)

const transcribePrompt = "Transcribe every piece of text visible in this image. " +
	"Reply with the text only, one line of output per line of text, in reading order. " +
	"Do not translate, explain or add formatting. Reply with nothing if the image has no text."

// OpenAI transcribes images with an OpenAI-compatible vision chat model.
type OpenAI struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewOpenAI builds the engine. BaseURL may point at any OpenAI-compatible
// endpoint; an API key is required unless a BaseURL is set.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: openai engine needs an api key or base url", ErrUnavailable)
	}
	c := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultOpenAIMaxTokens
	}
	return &OpenAI{
		client:    openai.NewClientWithConfig(c),
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

func (o *OpenAI) Name() string { return NameOpenAI }

// Recognize sends the image as a PNG data URL and splits the reply by line.
func (o *OpenAI) Recognize(ctx context.Context, img image.Image, languages []string) ([]string, error) {
	data, err := imageio.EncodePNG(img)
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)

	prompt := transcribePrompt
	if len(languages) > 0 {
		prompt += " Expected languages: " + LanguageNames(languages) + "."
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.model,
		MaxTokens: o.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}
	choice := resp.Choices[0]
	switch choice.FinishReason {
	case openai.FinishReasonContentFilter, openai.FinishReasonLength:
		return nil, fmt.Errorf("chat completion stopped early: finish reason %s", choice.FinishReason)
	}
	return splitLines(choice.Message.Content), nil
}
