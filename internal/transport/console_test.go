package transport

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/recallhq/recall/internal/memory"
)

func TestConsole_Receive(t *testing.T) {
	in := strings.NewReader("first note\n\n   \nsecond note\n")
	c := NewConsole(in, &strings.Builder{})
	ctx := context.Background()

	msg1, err := c.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive() error: %v", err)
	}
	if msg1.Content.Text != "first note" || msg1.Content.Kind != memory.KindText {
		t.Errorf("first message = %+v", msg1.Content)
	}
	if msg1.MessageID == 0 {
		t.Error("message ID not assigned")
	}

	// Blank lines are skipped.
	msg2, err := c.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive() error: %v", err)
	}
	if msg2.Content.Text != "second note" {
		t.Errorf("second message = %q", msg2.Content.Text)
	}
	if msg2.MessageID == msg1.MessageID {
		t.Error("message IDs must be distinct")
	}

	if _, err := c.Receive(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Receive at EOF = %v, want ErrClosed", err)
	}
}

func TestConsole_ReceiveUnblocksOnCancel(t *testing.T) {
	// A pipe with no writer activity keeps the underlying read blocked, the
	// way an idle stdin does. Cancellation must still end Receive.
	r, w := io.Pipe()
	defer w.Close()

	c := NewConsole(r, &strings.Builder{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := c.Receive(ctx)
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Receive() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Receive still blocked after cancellation")
	}
}

func TestConsole_ReceiveReportsReadError(t *testing.T) {
	r, w := io.Pipe()
	c := NewConsole(r, &strings.Builder{})

	readErr := errors.New("tty went away")
	if err := w.CloseWithError(readErr); err != nil {
		t.Fatal(err)
	}

	_, err := c.Receive(context.Background())
	if err == nil || !strings.Contains(err.Error(), readErr.Error()) {
		t.Errorf("Receive() = %v, want wrapped %q", err, readErr)
	}
}

func TestConsole_ReplyAndForward(t *testing.T) {
	var out strings.Builder
	c := NewConsole(strings.NewReader("remember the wifi password\n"), &out)
	ctx := context.Background()

	msg, err := c.Receive(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Reply(ctx, msg.ChatID, "Saved."); err != nil {
		t.Fatalf("Reply() error: %v", err)
	}
	if err := c.Forward(ctx, msg.ChatID, msg.Ref()); err != nil {
		t.Fatalf("Forward() error: %v", err)
	}

	if !strings.Contains(out.String(), "Saved.") {
		t.Errorf("reply missing from output:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "remember the wifi password") {
		t.Errorf("forwarded original missing from output:\n%s", out.String())
	}
}

func TestConsole_ForwardUnknownMessage(t *testing.T) {
	c := NewConsole(strings.NewReader(""), &strings.Builder{})

	err := c.Forward(context.Background(), "console", memory.MessageRef{ChatID: "console", MessageID: 42})
	if err == nil {
		t.Error("expected error forwarding an unknown message")
	}
}
