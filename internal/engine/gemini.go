package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/MeKo-Tech/scanocr/internal/imageio"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-1.5-flash"

// Gemini transcribes images with a Gemini multimodal model.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini connects to the Gemini API with an API key.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini engine needs an api key", ErrUnavailable)
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	name := cfg.Model
	if name == "" {
		name = defaultGeminiModel
	}
	model := client.GenerativeModel(name)
	model.SetTemperature(0)
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Name() string { return NameGemini }

// Recognize sends the image inline and splits the text parts by line.
func (g *Gemini) Recognize(ctx context.Context, img image.Image, languages []string) ([]string, error) {
	data, err := imageio.EncodePNG(img)
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	prompt := transcribePrompt
	if len(languages) > 0 {
		prompt += " Expected languages: " + LanguageNames(languages) + "."
	}

	resp, err := g.model.GenerateContent(ctx, genai.ImageData("png", data), genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	text, err := geminiText(resp)
	if err != nil {
		return nil, err
	}
	return splitLines(text), nil
}

// Close releases the underlying client connection.
func (g *Gemini) Close() error { return g.client.Close() }

// geminiText joins the text parts of the first candidate. Blocked prompts
// and candidates that stopped for any reason other than STOP are errors.
func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errors.New("gemini returned no response")
	}
	if pf := resp.PromptFeedback; pf != nil && pf.BlockReason != genai.BlockReasonUnspecified {
		return "", fmt.Errorf("gemini blocked the prompt: %s", pf.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", errors.New("gemini returned no candidates")
	}
	c := resp.Candidates[0]
	if c.FinishReason != genai.FinishReasonStop {
		return "", fmt.Errorf("gemini stopped early: finish reason %s", c.FinishReason)
	}
	if c.Content == nil {
		return "", nil
	}
	var b strings.Builder
	for _, part := range c.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}
