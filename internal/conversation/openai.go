package conversation

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/oppmatch/engine/internal/models"
)

const analysisSystemPrompt = "You analyze conversations about events and opportunities. " +
	"Extract the user's interest level and key statements. " +
	"Respond with a JSON object: {\"interest_level\": 0-10, \"aspects_liked\": [...], " +
	"\"objections\": [...], \"questions\": [...]}."

// OpenAIAnalyzer implements Analyzer using a chat model in JSON mode.
type OpenAIAnalyzer struct {
	client *openai.Client
	model  string
}

var _ Analyzer = (*OpenAIAnalyzer)(nil)

// NewOpenAIAnalyzer creates an analyzer backed by the given chat model.
func NewOpenAIAnalyzer(apiKey, model string) (*OpenAIAnalyzer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("conversation: OpenAI API key cannot be empty")
	}

	if model == "" {
		model = openai.GPT4oMini
	}

	return &OpenAIAnalyzer{client: openai.NewClient(apiKey), model: model}, nil
}

// Analyze extracts structured analysis from a transcript. The caller decides
// how to degrade on error; this method never fabricates a result.
func (a *OpenAIAnalyzer) Analyze(ctx context.Context, transcript, itemID string) (*models.ConversationAnalysis, error) {
	prompt := fmt.Sprintf("Analyze this conversation about opportunity %s.\n\nConversation:\n%s", itemID, transcript)

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: analysisSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("analyze conversation: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("analyze conversation: no choices returned")
	}

	var analysis models.ConversationAnalysis
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &analysis); err != nil {
		return nil, fmt.Errorf("parse conversation analysis: %w", err)
	}

	if analysis.InterestLevel < 0 {
		analysis.InterestLevel = 0
	} else if analysis.InterestLevel > 10 {
		analysis.InterestLevel = 10
	}

	return &analysis, nil
}

// MockAnalyzer implements Analyzer with a fixed result, for tests.
type MockAnalyzer struct {
	Result *models.ConversationAnalysis
	Err    error
}

var _ Analyzer = (*MockAnalyzer)(nil)

// Analyze returns the configured result or error.
func (a *MockAnalyzer) Analyze(_ context.Context, _, _ string) (*models.ConversationAnalysis, error) {
	if a.Err != nil {
		return nil, a.Err
	}

	if a.Result != nil {
		return a.Result, nil
	}

	return NeutralAnalysis(), nil
}
