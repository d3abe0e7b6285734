package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/example/vocabbot/pkg/models"
)

// ChatGPT is a client for the OpenAI chat completions API, used to
// generate example sentences for reminder messages
type ChatGPT struct {
	apiKey      string
	apiURL      string
	model       string
	maxTokens   int
	temperature float64
	client      *http.Client
}

// New creates a new ChatGPT client
func New(apiKey string) (*ChatGPT, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is empty")
	}
	return &ChatGPT{
		apiKey:      apiKey,
		apiURL:      "https://api.openai.com/v1/chat/completions",
		model:       "gpt-3.5-turbo",
		maxTokens:   100,
		temperature: 0.7,
		client:      &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// Message represents a message in the ChatGPT conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest represents a request to the ChatGPT API
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

// ChatResponse represents a response from the ChatGPT API
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// GenerateExample generates an example sentence for the given word
func (c *ChatGPT) GenerateExample(ctx context.Context, word models.Word) (string, error) {
	prompt := fmt.Sprintf(
		"Generate a short, practical example sentence that naturally includes the word '%s' (meaning: '%s').",
		word.Word, word.Translation,
	)

	request := ChatRequest{
		Model: c.model,
		Messages: []Message{
			{Role: "system", Content: "You are a vocabulary learning assistant. Produce one short, natural example sentence and nothing else."},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	requestData, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(requestData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %v", err)
	}
	defer resp.Body.Close()

	var response ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response: %v", err)
	}
	if response.Error != nil {
		return "", fmt.Errorf("API error: %s", response.Error.Message)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response choices returned")
	}

	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}
