package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// fetchTimeout bounds one page fetch plus extraction.
const fetchTimeout = 15 * time.Second

// maxPageBytes caps how much HTML is read from a page (2 MB).
const maxPageBytes = 2 * 1024 * 1024

// maxArticleChars caps the extracted article text.
const maxArticleChars = 8000

// LinkExtractor fetches a web page and extracts its readable content.
type LinkExtractor struct {
	client *http.Client
	logger *slog.Logger
}

// NewLinkExtractor creates a LinkExtractor with its own HTTP client.
func NewLinkExtractor(logger *slog.Logger) (*LinkExtractor, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}
	return &LinkExtractor{
		client: &http.Client{Timeout: fetchTimeout},
		logger: logger,
	}, nil
}

// Extract fetches link and returns its title and main text content.
func (e *LinkExtractor) Extract(ctx context.Context, link string) (title, text string, err error) {
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", "", fmt.Errorf("invalid url %q", link)
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", "recall/1.0")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("fetching page: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", "", fmt.Errorf("reading page: %w", err)
	}

	article, err := readability.FromReader(strings.NewReader(string(body)), u)
	if err != nil {
		return "", "", fmt.Errorf("extracting article: %w", err)
	}

	text = strings.TrimSpace(article.TextContent)
	if len(text) > maxArticleChars {
		text = text[:maxArticleChars]
	}
	return strings.TrimSpace(article.Title), text, nil
}
