package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/multi"
	"github.com/makiuchi-d/gozxing/multi/qrcode"
)

// QRDecoder extracts QR code payloads from images. The absence of a QR
// code is not an error: Decode returns an empty slice.
type QRDecoder struct {
	reader multi.MultipleBarcodeReader
}

// NewQRDecoder creates a QRDecoder.
func NewQRDecoder() *QRDecoder {
	return &QRDecoder{reader: qrcode.NewQRCodeMultiReader()}
}

// Decode returns the text payloads of all QR codes found in the image.
// An image with no QR code yields (nil, nil). An undecodable image is
// an error.
func (d *QRDecoder) Decode(data []byte) ([]string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("preparing bitmap: %w", err)
	}

	results, err := d.reader.DecodeMultiple(bmp, nil)
	if err != nil {
		// gozxing reports "no code in this image" as a NotFoundException.
		// Anything it cannot read is treated the same: no payloads.
		return nil, nil
	}

	payloads := make([]string, 0, len(results))
	for _, r := range results {
		if text := strings.TrimSpace(r.GetText()); text != "" {
			payloads = append(payloads, text)
		}
	}
	return payloads, nil
}
