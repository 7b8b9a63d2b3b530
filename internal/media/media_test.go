package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"

	"github.com/recallhq/recall/internal/log"
)

// fakeGenerator scripts one response per call, in order.
type fakeGenerator struct {
	responses []string
	errs      []error
	models    []string
	calls     int
}

func (f *fakeGenerator) GenerateMessages(_ context.Context, model string, _ ...*ai.Message) (string, error) {
	i := f.calls
	f.calls++
	f.models = append(f.models, model)
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	var out string
	if i < len(f.responses) {
		out = f.responses[i]
	}
	return out, err
}

// blankPNG returns a valid all-white PNG.
func blankPNG(t *testing.T, size int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func TestDescribeImage(t *testing.T) {
	img := blankPNG(t, 8)

	t.Run("primary model succeeds", func(t *testing.T) {
		gen := &fakeGenerator{responses: []string{"  a whiteboard with wifi credentials  "}}
		d, err := NewDescriber(gen, "fallback-model", log.NewNop())
		if err != nil {
			t.Fatal(err)
		}

		got, err := d.DescribeImage(context.Background(), img, "image/png")
		if err != nil {
			t.Fatalf("DescribeImage() error: %v", err)
		}
		if got != "a whiteboard with wifi credentials" {
			t.Errorf("DescribeImage() = %q", got)
		}
		if gen.calls != 1 {
			t.Errorf("calls = %d, want 1", gen.calls)
		}
		if gen.models[0] != "" {
			t.Errorf("first call used model %q, want default", gen.models[0])
		}
	})

	t.Run("falls back on primary failure", func(t *testing.T) {
		gen := &fakeGenerator{
			responses: []string{"", "a receipt"},
			errs:      []error{errors.New("503 service unavailable"), nil},
		}
		d, _ := NewDescriber(gen, "fallback-model", log.NewNop())

		got, err := d.DescribeImage(context.Background(), img, "image/png")
		if err != nil {
			t.Fatalf("DescribeImage() error: %v", err)
		}
		if got != "a receipt" {
			t.Errorf("DescribeImage() = %q", got)
		}
		if gen.models[1] != "fallback-model" {
			t.Errorf("fallback call used model %q", gen.models[1])
		}
	})

	t.Run("no fallback configured", func(t *testing.T) {
		gen := &fakeGenerator{errs: []error{errors.New("boom")}}
		d, _ := NewDescriber(gen, "", log.NewNop())

		if _, err := d.DescribeImage(context.Background(), img, "image/png"); err == nil {
			t.Error("expected error without fallback")
		}
		if gen.calls != 1 {
			t.Errorf("calls = %d, want 1", gen.calls)
		}
	})

	t.Run("empty description is an error", func(t *testing.T) {
		gen := &fakeGenerator{responses: []string{"   "}}
		d, _ := NewDescriber(gen, "fallback-model", log.NewNop())

		if _, err := d.DescribeImage(context.Background(), img, "image/png"); err == nil {
			t.Error("expected error for empty description")
		}
	})

	t.Run("rejects empty payload", func(t *testing.T) {
		gen := &fakeGenerator{}
		d, _ := NewDescriber(gen, "", log.NewNop())

		if _, err := d.DescribeImage(context.Background(), nil, "image/png"); err == nil {
			t.Error("expected error for empty payload")
		}
		if gen.calls != 0 {
			t.Error("generator called for empty payload")
		}
	})
}

func TestTranscribe(t *testing.T) {
	// Audio bytes are opaque to DetectContentType; the declared type wins.
	audio := []byte{0x4f, 0x67, 0x67, 0x53, 0x00, 0x02, 0x00, 0x00}

	t.Run("returns transcript", func(t *testing.T) {
		gen := &fakeGenerator{responses: []string{"remind me to call the plumber"}}
		tr, err := NewTranscriber(gen, "", log.NewNop())
		if err != nil {
			t.Fatal(err)
		}

		got, err := tr.Transcribe(context.Background(), audio, "audio/ogg")
		if err != nil {
			t.Fatalf("Transcribe() error: %v", err)
		}
		if got != "remind me to call the plumber" {
			t.Errorf("Transcribe() = %q", got)
		}
	})

	t.Run("empty transcript is not an error", func(t *testing.T) {
		gen := &fakeGenerator{responses: []string{"  "}}
		tr, _ := NewTranscriber(gen, "", log.NewNop())

		got, err := tr.Transcribe(context.Background(), audio, "audio/ogg")
		if err != nil {
			t.Fatalf("Transcribe() error: %v", err)
		}
		if got != "" {
			t.Errorf("Transcribe() = %q, want empty", got)
		}
	})
}

func TestQRDecoder(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		enc, err := qrcode.NewQRCodeWriter().Encode(
			"https://example.com/ticket/42", gozxing.BarcodeFormat_QR_CODE, 256, 256, nil)
		if err != nil {
			t.Fatalf("encoding QR: %v", err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, enc); err != nil {
			t.Fatalf("png encode: %v", err)
		}

		got, err := NewQRDecoder().Decode(buf.Bytes())
		if err != nil {
			t.Fatalf("Decode() error: %v", err)
		}
		if len(got) != 1 || got[0] != "https://example.com/ticket/42" {
			t.Errorf("Decode() = %v", got)
		}
	})

	t.Run("no code yields empty slice", func(t *testing.T) {
		got, err := NewQRDecoder().Decode(blankPNG(t, 64))
		if err != nil {
			t.Fatalf("Decode() error: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("Decode() = %v, want empty", got)
		}
	})

	t.Run("garbage bytes are an error", func(t *testing.T) {
		if _, err := NewQRDecoder().Decode([]byte("not an image")); err == nil {
			t.Error("expected error for undecodable image")
		}
	})
}

func TestLinkExtractor(t *testing.T) {
	page := `<!DOCTYPE html><html><head><title>Garage door code</title></head>
<body><article><h1>Garage door code</h1>
<p>` + strings.Repeat("The code for the side garage door is 4821. ", 20) + `</p>
</article></body></html>`

	t.Run("extracts title and text", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(page))
		}))
		defer srv.Close()

		e, err := NewLinkExtractor(log.NewNop())
		if err != nil {
			t.Fatal(err)
		}

		title, text, err := e.Extract(context.Background(), srv.URL)
		if err != nil {
			t.Fatalf("Extract() error: %v", err)
		}
		if title != "Garage door code" {
			t.Errorf("title = %q", title)
		}
		if !strings.Contains(text, "4821") {
			t.Errorf("text missing article content: %q", text)
		}
	})

	t.Run("non-200 is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "gone", http.StatusNotFound)
		}))
		defer srv.Close()

		e, _ := NewLinkExtractor(log.NewNop())
		if _, _, err := e.Extract(context.Background(), srv.URL); err == nil {
			t.Error("expected error for 404")
		}
	})

	t.Run("rejects non-http schemes", func(t *testing.T) {
		e, _ := NewLinkExtractor(log.NewNop())
		if _, _, err := e.Extract(context.Background(), "ftp://example.com/x"); err == nil {
			t.Error("expected error for ftp scheme")
		}
	})
}
