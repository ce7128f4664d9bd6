package jbig2

import "errors"

// refinementContextSize returns the context count for a refinement
// template: 13-bit for template 0, 10-bit for template 1.
func refinementContextSize(template uint8) int {
	if template == 0 {
		return 1 << 13
	}
	return 1 << 10
}

// GRRDProc holds the parameters of the 6.3 generic refinement region
// decoding procedure: a reference bitmap, its offset into the output, and
// one of two context templates.
type GRRDProc struct {
	Template    uint8
	TPGRON      bool
	Width       int
	Height      int
	ReferenceDX int
	ReferenceDY int
	Reference   *Image
	At          [2]AdaptivePixel
}

// NewGRRDProc constructs an empty refinement region configuration.
func NewGRRDProc() *GRRDProc { return &GRRDProc{} }

// context0 concatenates the 13-pixel template of Figure 12: the 3x3
// reference neighbourhood (with its top-left cell replaced by the second
// adaptive pixel), then the first adaptive pixel and the three causal
// output cells.
func (p *GRRDProc) context0(img *Image, x, y, rx, ry int) uint32 {
	ref := p.Reference
	var ctx uint32
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dy == -1 && dx == -1 {
				ctx = ctx<<1 | uint32(ref.GetPixel(rx+p.At[1].X, ry+p.At[1].Y))
			} else {
				ctx = ctx<<1 | uint32(ref.GetPixel(rx+dx, ry+dy))
			}
		}
	}
	ctx = ctx<<1 | uint32(img.GetPixel(x+p.At[0].X, y+p.At[0].Y))
	for i := 0; i < 2; i++ {
		ctx = ctx<<1 | uint32(img.GetPixel(x+i, y-1))
	}
	ctx = ctx<<1 | uint32(img.GetPixel(x-1, y))
	return ctx
}

// context1 concatenates the 10-pixel template of Figure 13: the reference
// cross around the projected pixel, then the row above and the cell to the
// left in the output. Template 1 has no adaptive pixels.
func (p *GRRDProc) context1(img *Image, x, y, rx, ry int) uint32 {
	ref := p.Reference
	var ctx uint32
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if (dy == -1 && (dx == -1 || dx == 1)) || (dy == 1 && dx == -1) {
				continue
			}
			ctx = ctx<<1 | uint32(ref.GetPixel(rx+dx, ry+dy))
		}
	}
	for i := 0; i < 3; i++ {
		ctx = ctx<<1 | uint32(img.GetPixel(x-1+i, y-1))
	}
	ctx = ctx<<1 | uint32(img.GetPixel(x-1, y))
	return ctx
}

// Decode runs the refinement procedure.
func (p *GRRDProc) Decode(decoder *ArithDecoder, contexts []ArithContext) (*Image, error) {
	if decoder == nil {
		return nil, errors.New("jbig2: refinement region requires an arithmetic decoder")
	}
	if p.Reference == nil {
		return nil, errors.New("jbig2: refinement region missing reference bitmap")
	}
	if p.TPGRON {
		return nil, unsupportedf("refinement typical prediction (TPGRON)")
	}
	if p.Template > 1 {
		return nil, errors.New("jbig2: invalid refinement template")
	}
	if p.Template == 0 {
		// Only the first adaptive pixel is constrained; the second one
		// addresses the reference bitmap and may point anywhere.
		if err := checkAdaptivePixel(p.At[0].X, p.At[0].Y); err != nil {
			return nil, err
		}
	}
	if !IsValidImageSize(int64(p.Width), int64(p.Height)) {
		return nil, errors.New("jbig2: invalid refinement region dimensions")
	}
	if want := refinementContextSize(p.Template); len(contexts) != want {
		return nil, errors.New("jbig2: refinement context array size mismatch")
	}

	img := NewImage(p.Width, p.Height)
	if !img.Valid() {
		return nil, errors.New("jbig2: failed to allocate refinement image")
	}

	computeContext := p.context0
	if p.Template == 1 {
		computeContext = p.context1
	}
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			ctx := computeContext(img, x, y, x-p.ReferenceDX, y-p.ReferenceDY)
			bit, err := decoder.Decode(&contexts[ctx])
			if err != nil {
				return nil, err
			}
			img.SetPixel(x, y, bit)
		}
	}
	return img, nil
}
