// Package qr turns a validated target URL into QR image bytes.
//
// The actual QR encoding (Reed-Solomon, masking, version selection) is
// delegated to github.com/skip2/go-qrcode. That library renders PNG
// natively; for SVG we take its module bitmap and emit the rectangles
// ourselves, since the bitmap already includes the quiet zone.
package qr

import (
	"bytes"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/sakif/qr-genius/internal/model"
)

// defaultModuleSize is how many pixels (PNG) or user units (SVG) each QR
// module occupies. Matches the product's original rendering defaults.
const defaultModuleSize = 10

// Encoder produces QR images at a fixed rendering scale.
// Error correction is always Highest (~30% of codewords recoverable), so a
// partially damaged or obscured print still scans.
type Encoder struct {
	moduleSize int
}

// NewEncoder creates an Encoder with the default module size.
func NewEncoder() *Encoder {
	return &Encoder{moduleSize: defaultModuleSize}
}

// Encode renders the given content as a QR image in the requested format.
// The caller validates content and format beforehand; Encode fails only on
// encoder-level problems (e.g. content too long for any QR version).
func (e *Encoder) Encode(content string, format model.ImageFormat) ([]byte, error) {
	code, err := qrcode.New(content, qrcode.Highest)
	if err != nil {
		return nil, fmt.Errorf("qr: encoding content: %w", err)
	}

	switch format {
	case model.FormatPNG:
		// A negative size tells the library "pixels per module" instead of
		// a fixed output size.
		data, err := code.PNG(-e.moduleSize)
		if err != nil {
			return nil, fmt.Errorf("qr: rendering png: %w", err)
		}
		return data, nil
	case model.FormatSVG:
		return e.renderSVG(code.Bitmap()), nil
	default:
		return nil, fmt.Errorf("qr: unsupported format %q", format)
	}
}

// renderSVG emits a minimal standalone SVG for the module bitmap. Dark
// modules in each row are merged into horizontal runs to keep the output
// small; the bitmap from the library already carries the quiet zone.
func (e *Encoder) renderSVG(bitmap [][]bool) []byte {
	n := len(bitmap)
	side := n * e.moduleSize

	var buf bytes.Buffer
	fmt.Fprintf(&buf,
		`<?xml version="1.0" encoding="UTF-8"?>`+"\n"+
			`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" shape-rendering="crispEdges">`+"\n",
		side, side, n, n)
	fmt.Fprintf(&buf, `<rect width="%d" height="%d" fill="#ffffff"/>`+"\n", n, n)

	for y, row := range bitmap {
		for x := 0; x < len(row); {
			if !row[x] {
				x++
				continue
			}
			run := 0
			for x+run < len(row) && row[x+run] {
				run++
			}
			fmt.Fprintf(&buf, `<rect x="%d" y="%d" width="%d" height="1" fill="#000000"/>`+"\n", x, y, run)
			x += run
		}
	}

	buf.WriteString("</svg>\n")
	return buf.Bytes()
}
