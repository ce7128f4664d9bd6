package jbig2

import (
	"errors"
	"fmt"
)

// PDDProc holds the parameters of the 6.7 pattern dictionary decoding
// procedure.
type PDDProc struct {
	MMR      bool
	Template uint8
	Width    uint8 // HDPW
	Height   uint8 // HDPH
	GrayMax  uint32
}

// NewPDDProc constructs an empty pattern dictionary configuration.
func NewPDDProc() *PDDProc { return &PDDProc{} }

// collectiveSize returns the dimensions of the single collective bitmap
// the dictionary is coded as.
func (p *PDDProc) collectiveSize() (int, int, error) {
	if p.Width == 0 || p.Height == 0 {
		return 0, 0, errors.New("jbig2: pattern dimensions must be non-zero")
	}
	width := (int64(p.GrayMax) + 1) * int64(p.Width)
	if !IsValidImageSize(width, int64(p.Height)) {
		return 0, 0, fmt.Errorf("jbig2: pattern dictionary collective bitmap %dx%d too large", width, p.Height)
	}
	return int(width), int(p.Height), nil
}

func (p *PDDProc) grdProc(w, h int) *GRDProc {
	grd := NewGRDProc()
	grd.MMR = p.MMR
	grd.Template = p.Template
	grd.Width = w
	grd.Height = h
	grd.At = [4]AdaptivePixel{
		{-int(p.Width), 0},
		{-3, -1},
		{2, -2},
		{-2, -2},
	}
	return grd
}

// DecodeArith decodes the dictionary with arithmetic coding and slices the
// collective bitmap into GrayMax+1 patterns, left to right.
func (p *PDDProc) DecodeArith(decoder *ArithDecoder, contexts []ArithContext) ([]*Image, error) {
	w, h, err := p.collectiveSize()
	if err != nil {
		return nil, err
	}
	collective, err := p.grdProc(w, h).DecodeArith(decoder, contexts)
	if err != nil {
		return nil, err
	}
	return p.slicePatterns(collective)
}

// DecodeMMR decodes the dictionary with MMR coding.
func (p *PDDProc) DecodeMMR(bs *BitStream) ([]*Image, error) {
	w, h, err := p.collectiveSize()
	if err != nil {
		return nil, err
	}
	collective, err := p.grdProc(w, h).DecodeMMR(bs)
	if err != nil {
		return nil, err
	}
	return p.slicePatterns(collective)
}

func (p *PDDProc) slicePatterns(collective *Image) ([]*Image, error) {
	count := int(p.GrayMax) + 1
	patterns := make([]*Image, count)
	for gray := 0; gray < count; gray++ {
		pattern, err := collective.SubImage(gray*int(p.Width), 0, int(p.Width), int(p.Height))
		if err != nil {
			return nil, err
		}
		patterns[gray] = pattern
	}
	return patterns, nil
}
