package jbig2

import "errors"

// GrayscaleProc holds the parameters of the Annex C gray-scale image
// decoding procedure: a stack of Gray-coded generic-region bitplanes.
type GrayscaleProc struct {
	MMR      bool
	Template uint8
	BPP      uint8 // GSBPP
	UseSkip  bool
	Skip     *Image
	Width    int
	Height   int
}

// Decode returns Width*Height gray values in row-major order. Bitplanes are
// decoded most significant first; each plane is XORed with the one above it
// to undo the Gray coding before the planes are summed.
func (p *GrayscaleProc) Decode(decoder *ArithDecoder, contexts []ArithContext) ([]uint64, error) {
	if p.MMR {
		// The stream does not record per-plane byte lengths, so the MMR
		// variant cannot locate the later planes.
		return nil, unsupportedf("MMR-coded grayscale images")
	}
	if p.BPP == 0 || p.BPP > 63 {
		return nil, errors.New("jbig2: invalid grayscale bit depth")
	}
	if !IsValidImageSize(int64(p.Width), int64(p.Height)) {
		return nil, errors.New("jbig2: invalid grayscale image dimensions")
	}

	grd := NewGRDProc()
	grd.Template = p.Template
	grd.TPGDON = false
	grd.UseSkip = p.UseSkip
	grd.Skip = p.Skip
	grd.Width = p.Width
	grd.Height = p.Height
	firstX := 2
	if p.Template <= 1 {
		firstX = 3
	}
	grd.At = [4]AdaptivePixel{
		{firstX, -1},
		{-3, -1},
		{2, -2},
		{-2, -2},
	}

	planes := make([]*Image, p.BPP)
	for j := int(p.BPP) - 1; j >= 0; j-- {
		plane, err := grd.DecodeArith(decoder, contexts)
		if err != nil {
			return nil, err
		}
		if j < int(p.BPP)-1 {
			if !plane.ComposeFrom(0, 0, planes[j+1], ComposeXOR) {
				return nil, errors.New("jbig2: failed to combine grayscale bitplanes")
			}
		}
		planes[j] = plane
	}

	values := make([]uint64, p.Width*p.Height)
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			var v uint64
			for j := 0; j < int(p.BPP); j++ {
				v |= uint64(planes[j].GetPixel(x, y)) << j
			}
			values[y*p.Width+x] = v
		}
	}
	return values, nil
}
