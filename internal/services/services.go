// Package services defines the pipeline's external collaborators: speech to
// text, text optimization/summarization, and translation.
//
// Each collaborator is an interface with an HTTP-backed implementation; the
// orchestrator depends only on the interfaces so tests can substitute
// deterministic fakes.
package services

import (
	"context"
	"strings"
)

// Transcript is a speech-to-text result: the raw text plus the language the
// engine detected.
type Transcript struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// Transcriber converts an audio file into text.
type Transcriber interface {
	// Transcribe runs speech-to-text over the audio file at the given path.
	Transcribe(ctx context.Context, audioPath string) (Transcript, error)
}

// Summarizer rewrites and condenses transcripts.
type Summarizer interface {
	// OptimizeTranscript fixes transcription mistakes and paragraphs the raw text by meaning.
	OptimizeTranscript(ctx context.Context, raw string) (string, error)

	// Summarize produces a summary of the script in the target language.
	Summarize(ctx context.Context, script, language, title string) (string, error)
}

// Translator decides whether translation is needed and performs it.
type Translator interface {
	// ShouldTranslate reports whether text in the detected language needs translating into the target language.
	ShouldTranslate(detected, target string) bool

	// Translate renders the text into the target language.
	Translate(ctx context.Context, text, target, source string) (string, error)
}

// NormalizeLanguage lowers a language code to its primary subtag, so zh-CN
// and zh-Hans both compare as zh.
func NormalizeLanguage(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if i := strings.IndexAny(code, "-_"); i >= 0 {
		code = code[:i]
	}
	return code
}
