package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/desertthunder/scribe/internal/shared"
)

// HTTPTranscriber talks to a speech-to-text endpoint that accepts multipart
// audio uploads and answers with the transcript and detected language.
type HTTPTranscriber struct {
	config     shared.ServiceConfig
	httpClient *http.Client
}

// NewHTTPTranscriber creates a transcriber client. A nil http client falls
// back to [http.DefaultClient].
func NewHTTPTranscriber(config shared.ServiceConfig, client *http.Client) *HTTPTranscriber {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTranscriber{config: config, httpClient: client}
}

// Transcribe uploads the audio file and returns the engine's transcript.
func (t *HTTPTranscriber) Transcribe(ctx context.Context, audioPath string) (Transcript, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return Transcript{}, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return Transcript{}, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return Transcript{}, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	if t.config.Model != "" {
		if err := writer.WriteField("model", t.config.Model); err != nil {
			return Transcript{}, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}
	}
	if err := writer.Close(); err != nil {
		return Transcript{}, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.config.BaseURL+"/v1/audio/transcriptions", &body)
	if err != nil {
		return Transcript{}, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if t.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.config.APIKey)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return Transcript{}, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Transcript{}, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Transcript{}, fmt.Errorf("%w: status %d, body: %s", shared.ErrAPIRequest, resp.StatusCode, payload)
	}

	var transcript Transcript
	if err := json.Unmarshal(payload, &transcript); err != nil {
		return Transcript{}, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	return transcript, nil
}
