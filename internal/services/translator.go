package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/desertthunder/scribe/internal/shared"
)

// HTTPTranslator renders scripts into the requested output language through a
// chat-completions backend.
type HTTPTranslator struct {
	config     shared.ServiceConfig
	httpClient *http.Client
}

// NewHTTPTranslator creates a translator client. A nil http client falls back
// to [http.DefaultClient].
func NewHTTPTranslator(config shared.ServiceConfig, client *http.Client) *HTTPTranslator {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTranslator{config: config, httpClient: client}
}

// ShouldTranslate reports whether the detected source language differs from
// the target after normalizing both to their primary subtag. Unknown detected
// languages never translate.
func (t *HTTPTranslator) ShouldTranslate(detected, target string) bool {
	detected = NormalizeLanguage(detected)
	target = NormalizeLanguage(target)
	return detected != "" && target != "" && detected != target
}

// Translate renders text into the target language.
func (t *HTTPTranslator) Translate(ctx context.Context, text, target, source string) (string, error) {
	system := fmt.Sprintf("你是一名翻译。把以下 %s 文本翻译为语言代码 %s，保持Markdown段落结构。", source, target)
	return completeChat(ctx, t.httpClient, t.config, system, text)
}
