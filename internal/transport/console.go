package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/recallhq/recall/internal/memory"
	"github.com/recallhq/recall/internal/normalize"
)

// consoleChatID is the single chat a console session represents.
const consoleChatID = "console"

// Console is a line-oriented Transport over a reader/writer pair. Each
// input line is one text message. Originals are kept in memory so Forward
// can replay them, standing in for a messenger's native forwarding.
type Console struct {
	out    io.Writer
	lines  chan string
	errc   chan error
	nextID int64

	mu   sync.Mutex
	sent map[int64]string
}

// NewConsole creates a Console reading messages from in and writing
// replies to out. A reader goroutine owns the scanner so Receive can
// abandon a blocked read when its context is canceled; the goroutine
// exits when in reaches EOF or errors.
func NewConsole(in io.Reader, out io.Writer) *Console {
	c := &Console{
		out:   out,
		lines: make(chan string),
		errc:  make(chan error, 1),
		sent:  make(map[int64]string),
	}

	go func() {
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 64*1024), 1024*1024)
		for sc.Scan() {
			c.lines <- sc.Text()
		}
		if err := sc.Err(); err != nil {
			c.errc <- fmt.Errorf("reading input: %w", err)
		}
		close(c.lines)
	}()

	return c
}

// Receive returns the next non-empty line as a text message, or the
// context's error once it is canceled.
func (c *Console) Receive(ctx context.Context) (Message, error) {
	for {
		var line string
		var ok bool
		select {
		case <-ctx.Done():
			return Message{}, ctx.Err()
		case line, ok = <-c.lines:
			if !ok {
				select {
				case err := <-c.errc:
					return Message{}, err
				default:
					return Message{}, ErrClosed
				}
			}
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		c.nextID++
		id := c.nextID

		c.mu.Lock()
		c.sent[id] = line
		c.mu.Unlock()

		return Message{
			ChatID:    consoleChatID,
			MessageID: id,
			Content:   normalize.Content{Kind: memory.KindText, Text: line},
		}, nil
	}
}

// Reply writes the text to the console.
func (c *Console) Reply(_ context.Context, _ string, text string) error {
	_, err := fmt.Fprintf(c.out, "%s\n", text)
	return err
}

// Forward replays the original message the ref points at.
func (c *Console) Forward(_ context.Context, _ string, ref memory.MessageRef) error {
	c.mu.Lock()
	original, ok := c.sent[ref.MessageID]
	c.mu.Unlock()

	if !ok {
		return fmt.Errorf("no original for message %d", ref.MessageID)
	}
	_, err := fmt.Fprintf(c.out, ">> forwarded (message %d): %s\n", ref.MessageID, original)
	return err
}
