// Package jbig2 decodes JBIG2 (ITU-T T.88) bi-level images, both
// self-contained files and the embedded form used inside PDF.
package jbig2

import (
	"errors"
	"image"
	"image/color"

	"github.com/inkbound/jbig2/internal/jbig2"
)

// ErrUnsupported is returned for files using features this decoder
// deliberately refuses (color extensions, intermediate regions, profiles,
// extended templates, retained coding contexts).
var ErrUnsupported = jbig2.ErrUnsupported

// Sniff reports whether data starts with the JBIG2 file signature.
func Sniff(data []byte) bool {
	return jbig2.Sniff(data)
}

// Options configures decoding.
type Options struct {
	// Data is a self-contained JBIG2 file, beginning with the signature.
	Data []byte
	// Embedded carries an embedded (PDF JBIG2Decode) stream as one or
	// more chunks, typically the globals stream followed by the page
	// stream. Set either Data or Embedded, not both.
	Embedded [][]byte
}

// Decoder decodes the pages of one JBIG2 input.
type Decoder struct {
	doc *jbig2.Document
}

// NewDecoder parses the input's segment headers and page structure.
func NewDecoder(opts Options) (*Decoder, error) {
	switch {
	case opts.Data != nil && opts.Embedded != nil:
		return nil, errors.New("jbig2: both Data and Embedded set")
	case opts.Data != nil:
		doc, err := jbig2.NewDocument(opts.Data)
		if err != nil {
			return nil, err
		}
		return &Decoder{doc: doc}, nil
	case opts.Embedded != nil:
		doc, err := jbig2.NewEmbeddedDocument(opts.Embedded)
		if err != nil {
			return nil, err
		}
		return &Decoder{doc: doc}, nil
	default:
		return nil, errors.New("jbig2: no input data")
	}
}

// Pages returns the page numbers present, in file order.
func (d *Decoder) Pages() []uint32 {
	return d.doc.Pages()
}

// Comments returns the key/value pairs collected from comment extension
// segments during page decodes.
func (d *Decoder) Comments() map[string]string {
	out := make(map[string]string)
	for _, c := range d.doc.Comments() {
		out[c.Key] = c.Value
	}
	return out
}

// Warnings returns non-fatal notes collected during page decodes.
func (d *Decoder) Warnings() []string {
	return d.doc.Warnings()
}

// DecodePage decodes one page into a frame. Page numbers start at 1.
func (d *Decoder) DecodePage(pageNumber uint32) (*Frame, error) {
	img, err := d.doc.DecodePage(pageNumber)
	if err != nil {
		return nil, err
	}
	return &Frame{img: img}, nil
}

// Frame is one decoded page: a bitmap with one bit per pixel, where a set
// bit is black.
type Frame struct {
	img *jbig2.Image
}

// Width returns the frame width in pixels.
func (f *Frame) Width() int { return f.img.Width() }

// Height returns the frame height in pixels.
func (f *Frame) Height() int { return f.img.Height() }

// Stride returns the number of bytes per packed row.
func (f *Frame) Stride() int { return f.img.Stride() }

// Data returns the packed rows, MSB-first.
func (f *Frame) Data() []byte { return f.img.Data() }

// BlackAt reports whether the pixel at (x, y) is black.
func (f *Frame) BlackAt(x, y int) bool { return f.img.GetPixel(x, y) != 0 }

// Image renders the frame as a grayscale image, black on white.
func (f *Frame) Image() *image.Gray {
	gray := image.NewGray(image.Rect(0, 0, f.Width(), f.Height()))
	for y := 0; y < f.Height(); y++ {
		for x := 0; x < f.Width(); x++ {
			v := uint8(255)
			if f.img.GetPixel(x, y) != 0 {
				v = 0
			}
			gray.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return gray
}
