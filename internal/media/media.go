// Package media turns non-text content into text: image and video
// description, voice transcription, QR payload decoding and web page
// extraction. All of it feeds the normalizer.
package media

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
)

// GenerateTimeout bounds one multimodal generation call.
const GenerateTimeout = 30 * time.Second

// MaxFileSize is the largest media payload accepted (20 MB).
const MaxFileSize = 20 * 1024 * 1024

// Generator is the LLM dependency, satisfied by *llm.Client. The model
// argument selects a non-default model ("" uses the client default).
type Generator interface {
	GenerateMessages(ctx context.Context, model string, msgs ...*ai.Message) (string, error)
}

// mediaPart wraps raw bytes as a data-URL media part for Genkit.
// Content type is detected from magic bytes, not trusted from the sender.
func mediaPart(data []byte, declaredMime string) (*ai.Part, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty media payload")
	}
	if len(data) > MaxFileSize {
		return nil, fmt.Errorf("media payload %d bytes exceeds maximum %d", len(data), MaxFileSize)
	}

	mediaType := http.DetectContentType(data)
	// DetectContentType has no audio/video coverage for some containers;
	// fall back to the transport's declared type.
	if mediaType == "application/octet-stream" && declaredMime != "" {
		mediaType = declaredMime
	}

	encoded := base64.StdEncoding.EncodeToString(data)
	return ai.NewMediaPart(mediaType, "data:"+mediaType+";base64,"+encoded), nil
}

// generateWithFallback runs the prompt against the default model, then the
// fallback model when the first attempt fails. Used by both the describer
// and the transcriber: provider vision outages are the common failure here.
// An empty response is not an error; the caller decides what it means.
func generateWithFallback(ctx context.Context, gen Generator, fallbackModel string,
	logger *slog.Logger, prompt string, part *ai.Part) (string, error) {

	ctx, cancel := context.WithTimeout(ctx, GenerateTimeout)
	defer cancel()

	msg := ai.NewUserMessage(part, ai.NewTextPart(prompt))

	out, err := gen.GenerateMessages(ctx, "", msg)
	if err == nil {
		return strings.TrimSpace(out), nil
	}
	if fallbackModel == "" {
		return "", err
	}

	logger.Warn("primary model failed, trying fallback", "fallback", fallbackModel, "error", err)

	out, fbErr := gen.GenerateMessages(ctx, fallbackModel, msg)
	if fbErr != nil {
		return "", fmt.Errorf("fallback model: %w", fbErr)
	}
	return strings.TrimSpace(out), nil
}
