package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/recallhq/recall/internal/log"
)

func TestReverse(t *testing.T) {
	t.Run("returns display name", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/reverse" {
				t.Errorf("path = %q", r.URL.Path)
			}
			if got := r.URL.Query().Get("format"); got != "jsonv2" {
				t.Errorf("format = %q", got)
			}
			if got := r.Header.Get("User-Agent"); got == "" {
				t.Error("missing User-Agent")
			}
			_, _ = w.Write([]byte(`{"display_name": "Nevsky Prospekt 28, St Petersburg"}`))
		}))
		defer srv.Close()

		g, err := New(srv.URL, log.NewNop())
		if err != nil {
			t.Fatal(err)
		}

		got, err := g.Reverse(context.Background(), 59.935, 30.325)
		if err != nil {
			t.Fatalf("Reverse() error: %v", err)
		}
		if got != "Nevsky Prospekt 28, St Petersburg" {
			t.Errorf("Reverse() = %q", got)
		}
	})

	t.Run("error field in body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"error": "Unable to geocode"}`))
		}))
		defer srv.Close()

		g, _ := New(srv.URL, log.NewNop())
		if _, err := g.Reverse(context.Background(), 0, 0); err == nil {
			t.Error("expected error for geocoder failure")
		}
	})

	t.Run("non-200 status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
		}))
		defer srv.Close()

		g, _ := New(srv.URL, log.NewNop())
		if _, err := g.Reverse(context.Background(), 10, 10); err == nil {
			t.Error("expected error for 429")
		}
	})

	t.Run("rejects out-of-range coordinates", func(t *testing.T) {
		g, _ := New("http://localhost:1", log.NewNop())
		if _, err := g.Reverse(context.Background(), 91, 0); err == nil {
			t.Error("expected error for latitude 91")
		}
		if _, err := g.Reverse(context.Background(), 0, -181); err == nil {
			t.Error("expected error for longitude -181")
		}
	})
}

func TestNew(t *testing.T) {
	if _, err := New("", log.NewNop()); err == nil {
		t.Error("expected error for empty base URL")
	}
	if _, err := New("https://example.com", nil); err == nil {
		t.Error("expected error for nil logger")
	}
}
