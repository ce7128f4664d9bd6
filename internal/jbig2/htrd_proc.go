package jbig2

import (
	"errors"
	"fmt"
)

// HTRDProc holds the parameters of the 6.6 halftone region decoding
// procedure: a gray-scale image selects patterns that are composited onto
// the region along a sheared grid.
type HTRDProc struct {
	Width      int // HBW
	Height     int // HBH
	MMR        bool
	Template   uint8
	Patterns   []*Image
	DefPixel   bool
	CombOp     ComposeOp
	EnableSkip bool
	GridWidth  int // HGW
	GridHeight int // HGH
	GridX      int32
	GridY      int32
	VectorX    uint16 // HRX
	VectorY    uint16 // HRY
}

// NewHTRDProc constructs an empty halftone region configuration.
func NewHTRDProc() *HTRDProc { return &HTRDProc{} }

// cellOrigin returns the top-left placement of the grid cell in row mg,
// column ng.
func (p *HTRDProc) cellOrigin(mg, ng int) (int, int) {
	x := (int64(p.GridX) + int64(mg)*int64(p.VectorY) + int64(ng)*int64(p.VectorX)) >> 8
	y := (int64(p.GridY) + int64(mg)*int64(p.VectorX) - int64(ng)*int64(p.VectorY)) >> 8
	return int(x), int(y)
}

// Decode runs the halftone region procedure. For the arithmetic variant the
// caller provides the decoder and a context array sized for the template;
// the MMR variant is rejected by the grayscale decoder.
func (p *HTRDProc) Decode(decoder *ArithDecoder, contexts []ArithContext) (*Image, error) {
	if len(p.Patterns) == 0 {
		return nil, errors.New("jbig2: halftone region without patterns")
	}
	if !IsValidImageSize(int64(p.Width), int64(p.Height)) ||
		!IsValidImageSize(int64(p.GridWidth), int64(p.GridHeight)) {
		return nil, errors.New("jbig2: invalid halftone dimensions")
	}
	patW := p.Patterns[0].Width()
	patH := p.Patterns[0].Height()

	region := NewImage(p.Width, p.Height)
	if !region.Valid() {
		return nil, errors.New("jbig2: failed to allocate halftone region")
	}
	region.Fill(p.DefPixel)

	var skip *Image
	if p.EnableSkip {
		skip = NewImage(p.GridWidth, p.GridHeight)
		if !skip.Valid() {
			return nil, errors.New("jbig2: failed to allocate halftone skip bitmap")
		}
		for mg := 0; mg < p.GridHeight; mg++ {
			for ng := 0; ng < p.GridWidth; ng++ {
				x, y := p.cellOrigin(mg, ng)
				if x+patW <= 0 || x >= p.Width || y+patH <= 0 || y >= p.Height {
					skip.SetPixel(ng, mg, 1)
				}
			}
		}
	}

	gray := &GrayscaleProc{
		MMR:      p.MMR,
		Template: p.Template,
		BPP:      symCodeLenFor(uint32(len(p.Patterns))),
		UseSkip:  p.EnableSkip,
		Skip:     skip,
		Width:    p.GridWidth,
		Height:   p.GridHeight,
	}
	if gray.BPP == 0 {
		gray.BPP = 1
	}
	values, err := gray.Decode(decoder, contexts)
	if err != nil {
		return nil, err
	}

	for mg := 0; mg < p.GridHeight; mg++ {
		for ng := 0; ng < p.GridWidth; ng++ {
			if skip != nil && skip.GetPixel(ng, mg) != 0 {
				continue
			}
			v := values[mg*p.GridWidth+ng]
			if v >= uint64(len(p.Patterns)) {
				return nil, fmt.Errorf("jbig2: gray value %d exceeds pattern count %d", v, len(p.Patterns))
			}
			x, y := p.cellOrigin(mg, ng)
			if !p.Patterns[v].ComposeTo(region, x, y, p.CombOp) {
				return nil, errors.New("jbig2: failed to compose halftone cell")
			}
		}
	}
	return region, nil
}
