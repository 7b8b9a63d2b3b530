package media

import (
	"context"
	"fmt"
	"log/slog"
)

const describePrompt = `Describe this image for a personal memory archive.
Name the objects, any visible text (transcribe it exactly), people, places
and anything a person might later search for. One short paragraph, no
preamble.`

const describeVideoPrompt = `Describe this video for a personal memory archive.
Summarize what happens, name the objects, any visible or spoken text, people
and places. One short paragraph, no preamble.`

// Describer turns images and videos into searchable text.
type Describer struct {
	gen           Generator
	fallbackModel string
	logger        *slog.Logger
}

// NewDescriber creates a Describer. fallbackModel may be empty.
func NewDescriber(gen Generator, fallbackModel string, logger *slog.Logger) (*Describer, error) {
	if gen == nil {
		return nil, fmt.Errorf("generator is nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}
	return &Describer{gen: gen, fallbackModel: fallbackModel, logger: logger}, nil
}

// DescribeImage returns a textual description of the image bytes.
func (d *Describer) DescribeImage(ctx context.Context, data []byte, mimeType string) (string, error) {
	part, err := mediaPart(data, mimeType)
	if err != nil {
		return "", fmt.Errorf("preparing image: %w", err)
	}
	out, err := generateWithFallback(ctx, d.gen, d.fallbackModel, d.logger, describePrompt, part)
	if err != nil {
		return "", fmt.Errorf("describing image: %w", err)
	}
	if out == "" {
		return "", fmt.Errorf("describing image: empty model response")
	}
	return out, nil
}

// DescribeVideo returns a textual description of the video bytes.
func (d *Describer) DescribeVideo(ctx context.Context, data []byte, mimeType string) (string, error) {
	part, err := mediaPart(data, mimeType)
	if err != nil {
		return "", fmt.Errorf("preparing video: %w", err)
	}
	out, err := generateWithFallback(ctx, d.gen, d.fallbackModel, d.logger, describeVideoPrompt, part)
	if err != nil {
		return "", fmt.Errorf("describing video: %w", err)
	}
	if out == "" {
		return "", fmt.Errorf("describing video: empty model response")
	}
	return out, nil
}
