package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const (
	DefaultModelName = "gemini-2.5-flash"

	titleSystemInstruction = "You are a helpful assistant that generates concise titles for study sessions. " +
		"The title should be 3-5 words maximum. Just return the title itself, nothing else."
)

var (
	ErrGeneratorUnavailable = errors.New("generation service is not configured")
	ErrEmptyGeneration      = errors.New("generation service returned no text")
)

// GenerateRequest is one single-turn generation call. Zero MaxTokens and
// Temperature leave the model defaults.
type GenerateRequest struct {
	System      string
	Prompt      string
	MaxTokens   int32
	Temperature float32
}

type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// UnavailableGenerator fails every call. It stands in when no API key is set
// so the fallback paths still answer.
type UnavailableGenerator struct{}

func (UnavailableGenerator) Generate(context.Context, GenerateRequest) (string, error) {
	return "", ErrGeneratorUnavailable
}

type GeminiGenerator struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

func NewGeminiGenerator(ctx context.Context, apiKey, model string, logger *zap.Logger) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiGenerator{client: client, model: model, logger: logger}, nil
}

func (g *GeminiGenerator) Close() {
	if g.client != nil {
		if err := g.client.Close(); err != nil {
			g.logger.Warn("error closing GenAI client", zap.Error(err))
		} else {
			g.logger.Info("GenAI client closed")
		}
	}
}

func (g *GeminiGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	model := g.client.GenerativeModel(g.model)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}
	if req.MaxTokens > 0 {
		maxTokens := req.MaxTokens
		model.GenerationConfig.MaxOutputTokens = &maxTokens
	}
	if req.Temperature > 0 {
		temp := req.Temperature
		model.GenerationConfig.Temperature = &temp
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyGeneration
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		} else {
			g.logger.Debug("gemini response part was not text", zap.String("type", fmt.Sprintf("%T", part)))
		}
	}
	out := strings.TrimSpace(text.String())
	if out == "" {
		return "", ErrEmptyGeneration
	}
	return out, nil
}

// GenerateTitle asks gen for a short thread title based on the opening message.
func GenerateTitle(ctx context.Context, gen Generator, basis string) (string, error) {
	prompt := fmt.Sprintf("Generate a very concise title (3-5 words maximum) for a study session that starts with or is about: %q.", basis)
	title, err := gen.Generate(ctx, GenerateRequest{
		System:      titleSystemInstruction,
		Prompt:      prompt,
		MaxTokens:   20,
		Temperature: 0.3,
	})
	if err != nil {
		return "", err
	}
	title = strings.Trim(title, "\"'\n\r\t .")
	if title == "" {
		return "", errors.New("generated an empty title")
	}
	return title, nil
}
