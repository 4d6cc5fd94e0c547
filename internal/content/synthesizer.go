package content

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/postersnap/postersnap/internal/config"
	"github.com/postersnap/postersnap/internal/logging"
	"github.com/postersnap/postersnap/internal/metrics"
	"github.com/postersnap/postersnap/pkg/models"
)

// Params describes one synthesis request. Variation and TotalVariations let
// multi-page posters ask for distinct content per page instead of N copies
// of the same text.
type Params struct {
	Input           string
	InputMode       models.InputMode
	Style           models.PosterStyle
	ContentType     models.ContentType
	Metadata        *models.Metadata
	Variation       int
	TotalVariations int
}

// Synthesizer produces poster copy from a keyword or URL metadata. With an
// API key it asks the model for JSON-structured copy; without one, or when
// the model call fails, it falls back to deterministic templates so a job
// never dies on the text step.
type Synthesizer struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	logger      *logging.Logger
}

// New creates a synthesizer. An empty API key yields a template-only
// synthesizer.
func New(cfg config.OpenAIConfig, logger *logging.Logger) *Synthesizer {
	var client *openai.Client
	if cfg.APIKey != "" {
		client = openai.NewClient(cfg.APIKey)
	}
	return &Synthesizer{
		client:      client,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      logger,
	}
}

// Synthesize produces one page worth of poster content.
func (s *Synthesizer) Synthesize(ctx context.Context, params Params) (*models.PosterContent, error) {
	if s.client != nil {
		content, err := s.synthesizeOpenAI(ctx, params)
		if err == nil {
			metrics.SynthesisTotal.WithLabelValues("openai").Inc()
			return content, nil
		}
		s.logger.ErrorWithErr("Model synthesis failed, using templates", err)
	}

	metrics.SynthesisTotal.WithLabelValues("fallback").Inc()
	return s.fallback(params), nil
}

func (s *Synthesizer) synthesizeOpenAI(ctx context.Context, params Params) (*models.PosterContent, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		MaxTokens:   s.maxTokens,
		Temperature: float32(s.temperature),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt(params.Style, params.ContentType),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: userPrompt(params),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	var content models.PosterContent
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &content); err != nil {
		return nil, fmt.Errorf("failed to parse model response: %w", err)
	}
	if content.Headline == "" || len(content.BulletPoints) == 0 {
		return nil, fmt.Errorf("model response missing required fields")
	}

	content.Clamp()
	return &content, nil
}

func systemPrompt(style models.PosterStyle, contentType models.ContentType) string {
	var styleHint string
	switch style {
	case models.StyleQuote:
		styleHint = "Write an inspirational, quotable headline and supporting lines."
	case models.StylePointers:
		styleHint = "Write an actionable checklist: imperative headline, concrete tips as bullets."
	default:
		styleHint = "Write an engaging narrative: hook headline, story-driven subtitle and bullets."
	}

	var toneHint string
	switch contentType {
	case models.ContentTrending:
		toneHint = "The tone is urgent and attention-grabbing."
	case models.ContentAwareness:
		toneHint = "The tone raises awareness and invites reflection."
	default:
		toneHint = "The tone is educational and informative."
	}

	return fmt.Sprintf(`You are a social media poster copywriter. %s %s
Respond with a JSON object: {"headline": string (max %d chars), "subtitle": string (max %d chars), "bulletPoints": array of %d-%d strings (max %d chars each)}.`,
		styleHint, toneHint,
		models.MaxHeadlineLen, models.MaxSubtitleLen,
		models.MinBulletPoints, models.MaxBulletPoints, models.MaxBulletLen)
}

func userPrompt(params Params) string {
	var sb strings.Builder

	if params.InputMode == models.InputURL && params.Metadata != nil {
		fmt.Fprintf(&sb, "Create poster copy about this content:\nTitle: %s\n", params.Metadata.Title)
		if params.Metadata.Description != "" {
			fmt.Fprintf(&sb, "Description: %s\n", params.Metadata.Description)
		}
		if params.Metadata.Author != "" {
			fmt.Fprintf(&sb, "Author: %s\n", params.Metadata.Author)
		}
	} else {
		fmt.Fprintf(&sb, "Create poster copy about the topic: %s\n", params.Input)
	}

	if params.TotalVariations > 1 {
		fmt.Fprintf(&sb, "This is page %d of %d in a series; focus on %s.\n",
			params.Variation+1, params.TotalVariations, variationFocus(params.Variation))
	}

	return sb.String()
}
