// Package normalize turns heterogeneous message content into the canonical
// text stored and searched by the memory layer. Every incoming kind maps to
// a single text representation; content that yields no text is rejected
// with ErrUnsupportedContent.
package normalize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/recallhq/recall/internal/memory"
)

// ErrUnsupportedContent marks content that cannot be reduced to text.
// Items carrying it are not saved.
var ErrUnsupportedContent = errors.New("unsupported content")

// maxDocumentExcerpt caps inlined text from a document body.
const maxDocumentExcerpt = 4000

var urlPattern = regexp.MustCompile(`https?://[^\s<>"]+`)

// Transcriber turns voice audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, data []byte, mimeType string) (string, error)
}

// Describer turns images and videos into text.
type Describer interface {
	DescribeImage(ctx context.Context, data []byte, mimeType string) (string, error)
	DescribeVideo(ctx context.Context, data []byte, mimeType string) (string, error)
}

// QRDecoder extracts QR payloads from an image. No payloads is not an error.
type QRDecoder interface {
	Decode(data []byte) ([]string, error)
}

// Geocoder resolves coordinates to a place name.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (string, error)
}

// LinkExtractor fetches a page and returns its title and readable text.
type LinkExtractor interface {
	Extract(ctx context.Context, link string) (title, text string, err error)
}

// Content is one piece of incoming message content, transport-agnostic.
type Content struct {
	Kind     memory.Kind
	Text     string // message text, or the caption for media kinds
	Data     []byte // raw media bytes
	MimeType string
	FileName string // documents only

	Latitude  float64
	Longitude float64
}

// Normalizer reduces Content to canonical text.
type Normalizer struct {
	transcriber Transcriber
	describer   Describer
	qr          QRDecoder
	geocoder    Geocoder
	links       LinkExtractor
	logger      *slog.Logger
}

// New creates a Normalizer. All collaborators are required.
func New(transcriber Transcriber, describer Describer, qr QRDecoder,
	geocoder Geocoder, links LinkExtractor, logger *slog.Logger) (*Normalizer, error) {

	switch {
	case transcriber == nil:
		return nil, fmt.Errorf("transcriber is nil")
	case describer == nil:
		return nil, fmt.Errorf("describer is nil")
	case qr == nil:
		return nil, fmt.Errorf("qr decoder is nil")
	case geocoder == nil:
		return nil, fmt.Errorf("geocoder is nil")
	case links == nil:
		return nil, fmt.Errorf("link extractor is nil")
	case logger == nil:
		return nil, fmt.Errorf("logger is nil")
	}
	return &Normalizer{
		transcriber: transcriber,
		describer:   describer,
		qr:          qr,
		geocoder:    geocoder,
		links:       links,
		logger:      logger,
	}, nil
}

// Normalize returns the canonical text for the content. Enrichment
// failures degrade to the best text available; only content with no
// usable text at all returns ErrUnsupportedContent.
func (n *Normalizer) Normalize(ctx context.Context, c Content) (string, error) {
	var (
		text string
		err  error
	)

	switch c.Kind {
	case memory.KindText:
		text, err = n.normalizeText(ctx, c)
	case memory.KindVoice:
		text, err = n.normalizeVoice(ctx, c)
	case memory.KindPhoto:
		text, err = n.normalizePhoto(ctx, c)
	case memory.KindVideo:
		text, err = n.normalizeVideo(ctx, c)
	case memory.KindDocument:
		text, err = n.normalizeDocument(c)
	case memory.KindLocation:
		text, err = n.normalizeLocation(ctx, c)
	default:
		return "", fmt.Errorf("%w: kind %q", ErrUnsupportedContent, c.Kind)
	}
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: no text produced for %s", ErrUnsupportedContent, c.Kind)
	}
	return clamp(text, memory.MaxContentLength), nil
}

// normalizeText enriches text containing a link with the page's readable
// content. Extraction failure degrades to the raw text.
func (n *Normalizer) normalizeText(ctx context.Context, c Content) (string, error) {
	text := strings.TrimSpace(c.Text)
	if text == "" {
		return "", fmt.Errorf("%w: empty text", ErrUnsupportedContent)
	}

	link := urlPattern.FindString(text)
	if link == "" {
		return text, nil
	}

	title, body, err := n.links.Extract(ctx, link)
	if err != nil {
		n.logger.Warn("link extraction failed, keeping raw text", "url", link, "error", err)
		return text, nil
	}

	var sb strings.Builder
	sb.WriteString(text)
	if title != "" {
		sb.WriteString("\n\n")
		sb.WriteString(title)
	}
	if body != "" {
		sb.WriteString("\n")
		sb.WriteString(body)
	}
	return sb.String(), nil
}

func (n *Normalizer) normalizeVoice(ctx context.Context, c Content) (string, error) {
	transcript, err := n.transcriber.Transcribe(ctx, c.Data, c.MimeType)
	if err != nil {
		return "", fmt.Errorf("transcribing voice: %w", err)
	}
	if strings.TrimSpace(transcript) == "" {
		return "", fmt.Errorf("%w: nothing intelligible in the audio", ErrUnsupportedContent)
	}
	return withCaption(c.Text, transcript), nil
}

// normalizePhoto describes the image and appends any QR payloads it
// carries, so codes become searchable verbatim.
func (n *Normalizer) normalizePhoto(ctx context.Context, c Content) (string, error) {
	description, err := n.describer.DescribeImage(ctx, c.Data, c.MimeType)
	if err != nil {
		return "", fmt.Errorf("describing photo: %w", err)
	}

	text := withCaption(c.Text, description)

	payloads, err := n.qr.Decode(c.Data)
	if err != nil {
		n.logger.Warn("QR decoding failed", "error", err)
		return text, nil
	}
	for _, p := range payloads {
		text += "\nQR: " + p
	}
	return text, nil
}

func (n *Normalizer) normalizeVideo(ctx context.Context, c Content) (string, error) {
	description, err := n.describer.DescribeVideo(ctx, c.Data, c.MimeType)
	if err != nil {
		return "", fmt.Errorf("describing video: %w", err)
	}
	return withCaption(c.Text, description), nil
}

// normalizeDocument inlines plain-text document bodies and falls back to
// filename plus caption for binary formats.
func (n *Normalizer) normalizeDocument(c Content) (string, error) {
	var sb strings.Builder
	if c.FileName != "" {
		sb.WriteString("Document: ")
		sb.WriteString(c.FileName)
	}
	if caption := strings.TrimSpace(c.Text); caption != "" {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(caption)
	}
	if textualDocument(c.MimeType) && utf8.Valid(c.Data) {
		body := strings.TrimSpace(string(c.Data))
		if body != "" {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(clamp(body, maxDocumentExcerpt))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: document with no name, caption or readable body", ErrUnsupportedContent)
	}
	return sb.String(), nil
}

// normalizeLocation resolves the place name. Geocoding failure degrades
// to bare coordinates, which are still a valid item.
func (n *Normalizer) normalizeLocation(ctx context.Context, c Content) (string, error) {
	coords := strconv.FormatFloat(c.Latitude, 'f', 6, 64) + ", " + strconv.FormatFloat(c.Longitude, 'f', 6, 64)

	name, err := n.geocoder.Reverse(ctx, c.Latitude, c.Longitude)
	if err != nil {
		n.logger.Warn("reverse geocoding failed, keeping coordinates", "error", err)
		return withCaption(c.Text, "Location: "+coords), nil
	}
	return withCaption(c.Text, "Location: "+name+" ("+coords+")"), nil
}

// withCaption prepends the user's caption to derived text.
func withCaption(caption, text string) string {
	caption = strings.TrimSpace(caption)
	if caption == "" {
		return text
	}
	return caption + "\n" + text
}

// textualDocument reports whether the MIME type carries plain text.
func textualDocument(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if strings.HasPrefix(mimeType, "text/") {
		return true
	}
	switch mimeType {
	case "application/json", "application/xml", "application/x-yaml":
		return true
	}
	return false
}

// clamp truncates s to at most max bytes without splitting a rune.
func clamp(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	for !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}
