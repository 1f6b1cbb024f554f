package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Completion failure taxonomy. The controller translates these into
// conversational messages; no failure here is fatal to the session.
var (
	ErrUpstream        = errors.New("completion service unavailable")
	ErrRateLimited     = errors.New("completion service rate limited")
	ErrInvalidResponse = errors.New("invalid completion response")
)

const (
	completionModelName = "gemini-1.5-flash-latest"

	completionSystemInstruction = "You are a helpful financial assistant for Meridian Bank. " +
		"Answer questions using the provided context when it is relevant. " +
		"If the answer is not in the context, clearly state that you don't have the information. " +
		"Do not make up account details or figures."

	completionTemperature     = 0.4
	completionMaxOutputTokens = 500
)

// LLMService wraps the hosted model behind a single text-in/text-out call.
type LLMService struct {
	client  *genai.Client
	timeout time.Duration
}

func NewLLMService(ctx context.Context, apiKey string, timeout time.Duration) (*LLMService, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &LLMService{client: client, timeout: timeout}, nil
}

func (s *LLMService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing GenAI client")
		}
	}
}

// Complete sends a single question, optionally grounded in contextText, and
// returns the model's completion. Each call runs under the configured
// timeout so a slow upstream cannot hang a session. No automatic retry.
func (s *LLMService) Complete(ctx context.Context, question, contextText string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	model := s.client.GenerativeModel(completionModelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(completionSystemInstruction)},
	}

	temp := float32(completionTemperature)
	maxTokens := int32(completionMaxOutputTokens)
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:     &temp,
		MaxOutputTokens: &maxTokens,
	}

	prompt := question
	if contextText != "" {
		prompt = fmt.Sprintf("Context:\n%s\n\nQuestion:\n%s", contextText, question)
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == 429 {
			return "", fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: empty candidates", ErrInvalidResponse)
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			out.WriteString(string(txt))
		}
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("%w: no text parts", ErrInvalidResponse)
	}

	return strings.TrimSpace(out.String()), nil
}
