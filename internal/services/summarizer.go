package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/desertthunder/scribe/internal/shared"
)

// chatRequest and chatResponse follow the common chat-completions wire shape
// the summarization and translation backends speak.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// completeChat posts a chat request and returns the first choice's content.
func completeChat(ctx context.Context, client *http.Client, config shared.ServiceConfig, system, user string) (string, error) {
	reqBody, err := json.Marshal(chatRequest{
		Model: config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		config.BaseURL+"/v1/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+config.APIKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d, body: %s", shared.ErrAPIRequest, resp.StatusCode, payload)
	}

	var parsed chatResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion", shared.ErrAPIRequest)
	}
	return parsed.Choices[0].Message.Content, nil
}

// HTTPSummarizer optimizes and summarizes transcripts through a
// chat-completions backend.
type HTTPSummarizer struct {
	config     shared.ServiceConfig
	httpClient *http.Client
}

// NewHTTPSummarizer creates a summarizer client. A nil http client falls back
// to [http.DefaultClient].
func NewHTTPSummarizer(config shared.ServiceConfig, client *http.Client) *HTTPSummarizer {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSummarizer{config: config, httpClient: client}
}

// OptimizeTranscript fixes transcription mistakes and paragraphs the raw text.
func (s *HTTPSummarizer) OptimizeTranscript(ctx context.Context, raw string) (string, error) {
	system := "你是一名转录文本编辑。修正语音识别产生的错别字，按含义分段，保留原文语言，不要增删内容。"
	return completeChat(ctx, s.httpClient, s.config, system, raw)
}

// Summarize produces a summary of the script in the target language.
func (s *HTTPSummarizer) Summarize(ctx context.Context, script, language, title string) (string, error) {
	system := fmt.Sprintf("你是一名内容摘要助手。用语言代码 %s 为《%s》生成结构化Markdown摘要。", language, title)
	return completeChat(ctx, s.httpClient, s.config, system, script)
}
