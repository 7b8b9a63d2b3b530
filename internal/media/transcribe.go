package media

import (
	"context"
	"fmt"
	"log/slog"
)

const transcribePrompt = `Transcribe this audio verbatim. Output only the
spoken words, in the language they were spoken. If nothing intelligible is
spoken, output an empty response.`

// Transcriber turns voice messages into text.
type Transcriber struct {
	gen           Generator
	fallbackModel string
	logger        *slog.Logger
}

// NewTranscriber creates a Transcriber. fallbackModel may be empty.
func NewTranscriber(gen Generator, fallbackModel string, logger *slog.Logger) (*Transcriber, error) {
	if gen == nil {
		return nil, fmt.Errorf("generator is nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}
	return &Transcriber{gen: gen, fallbackModel: fallbackModel, logger: logger}, nil
}

// Transcribe returns the spoken words in the audio bytes. An empty
// transcript with a nil error means nothing intelligible was spoken;
// the caller decides whether that is an error.
func (t *Transcriber) Transcribe(ctx context.Context, data []byte, mimeType string) (string, error) {
	part, err := mediaPart(data, mimeType)
	if err != nil {
		return "", fmt.Errorf("preparing audio: %w", err)
	}

	out, err := generateWithFallback(ctx, t.gen, t.fallbackModel, t.logger, transcribePrompt, part)
	if err != nil {
		return "", fmt.Errorf("transcribing audio: %w", err)
	}
	return out, nil
}
