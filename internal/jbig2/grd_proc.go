package jbig2

import (
	"errors"
	"fmt"
)

// AdaptivePixel is a signed adaptive template pixel offset.
type AdaptivePixel struct {
	X, Y int
}

// contextSizeForTemplate returns the number of arithmetic contexts a
// generic region template addresses.
func contextSizeForTemplate(template uint8) int {
	switch template {
	case 0:
		return 1 << 16
	case 1:
		return 1 << 13
	default:
		return 1 << 10
	}
}

// sltpContexts are the per-template context values for the SLTP
// typical-prediction escape bit (Figures 8 to 11).
var sltpContexts = [4]uint32{0x9b25, 0x0795, 0x00e5, 0x0195}

// GRDProc holds the parameters of the 6.2 generic region decoding
// procedure. The same procedure serves top-level generic regions, symbol
// bitmaps, pattern dictionaries and grayscale bitplanes.
type GRDProc struct {
	MMR      bool
	TPGDON   bool
	UseSkip  bool
	Template uint8
	Width    int
	Height   int
	Skip     *Image
	At       [4]AdaptivePixel
}

// NewGRDProc constructs an empty generic region configuration.
func NewGRDProc() *GRDProc { return &GRDProc{} }

// templatePixelCount returns how many adaptive pixels the template uses.
func (p *GRDProc) templatePixelCount() int {
	if p.Template == 0 {
		return 4
	}
	return 1
}

func (p *GRDProc) validate(contexts []ArithContext) error {
	if p.Template > 3 {
		return fmt.Errorf("jbig2: invalid generic region template %d", p.Template)
	}
	for i := 0; i < p.templatePixelCount(); i++ {
		if err := checkAdaptivePixel(p.At[i].X, p.At[i].Y); err != nil {
			return err
		}
	}
	if p.UseSkip {
		if p.Skip == nil || p.Skip.Width() != p.Width || p.Skip.Height() != p.Height {
			return errors.New("jbig2: skip bitmap dimensions do not match region")
		}
	}
	if want := contextSizeForTemplate(p.Template); len(contexts) != want {
		return fmt.Errorf("jbig2: generic region context array size %d, want %d", len(contexts), want)
	}
	return nil
}

// The context of a pixel concatenates its neighbourhood MSB-first in the
// order the corresponding figure lays out: the adaptive pixels, then the
// fixed template cells row by row.

func (p *GRDProc) context0(img *Image, x, y int) uint32 {
	var ctx uint32
	for i := 0; i < 4; i++ {
		ctx = ctx<<1 | uint32(img.GetPixel(x+p.At[i].X, y+p.At[i].Y))
	}
	for i := 0; i < 3; i++ {
		ctx = ctx<<1 | uint32(img.GetPixel(x-1+i, y-2))
	}
	for i := 0; i < 5; i++ {
		ctx = ctx<<1 | uint32(img.GetPixel(x-2+i, y-1))
	}
	for i := 0; i < 4; i++ {
		ctx = ctx<<1 | uint32(img.GetPixel(x-4+i, y))
	}
	return ctx
}

func (p *GRDProc) context1(img *Image, x, y int) uint32 {
	ctx := uint32(img.GetPixel(x+p.At[0].X, y+p.At[0].Y))
	for i := 0; i < 4; i++ {
		ctx = ctx<<1 | uint32(img.GetPixel(x-1+i, y-2))
	}
	for i := 0; i < 5; i++ {
		ctx = ctx<<1 | uint32(img.GetPixel(x-2+i, y-1))
	}
	for i := 0; i < 3; i++ {
		ctx = ctx<<1 | uint32(img.GetPixel(x-3+i, y))
	}
	return ctx
}

func (p *GRDProc) context2(img *Image, x, y int) uint32 {
	ctx := uint32(img.GetPixel(x+p.At[0].X, y+p.At[0].Y))
	for i := 0; i < 3; i++ {
		ctx = ctx<<1 | uint32(img.GetPixel(x-1+i, y-2))
	}
	for i := 0; i < 4; i++ {
		ctx = ctx<<1 | uint32(img.GetPixel(x-2+i, y-1))
	}
	for i := 0; i < 2; i++ {
		ctx = ctx<<1 | uint32(img.GetPixel(x-2+i, y))
	}
	return ctx
}

func (p *GRDProc) context3(img *Image, x, y int) uint32 {
	ctx := uint32(img.GetPixel(x+p.At[0].X, y+p.At[0].Y))
	for i := 0; i < 5; i++ {
		ctx = ctx<<1 | uint32(img.GetPixel(x-3+i, y-1))
	}
	for i := 0; i < 4; i++ {
		ctx = ctx<<1 | uint32(img.GetPixel(x-4+i, y))
	}
	return ctx
}

func (p *GRDProc) contextFunc() func(*Image, int, int) uint32 {
	switch p.Template {
	case 0:
		return p.context0
	case 1:
		return p.context1
	case 2:
		return p.context2
	default:
		return p.context3
	}
}

// DecodeMMR decodes the region with the external MMR decoder.
func (p *GRDProc) DecodeMMR(bs *BitStream) (*Image, error) {
	if !IsValidImageSize(int64(p.Width), int64(p.Height)) {
		return nil, errors.New("jbig2: invalid generic region dimensions")
	}
	return decodeMMR(bs, p.Width, p.Height)
}

// DecodeArith decodes the region with template-based arithmetic coding.
// The context array must be sized for the template; passing a fresh zeroed
// array gives the required reset-at-region-start behaviour.
func (p *GRDProc) DecodeArith(decoder *ArithDecoder, contexts []ArithContext) (*Image, error) {
	if decoder == nil {
		return nil, errors.New("jbig2: generic region requires an arithmetic decoder")
	}
	if !IsValidImageSize(int64(p.Width), int64(p.Height)) {
		return nil, errors.New("jbig2: invalid generic region dimensions")
	}
	if err := p.validate(contexts); err != nil {
		return nil, err
	}

	img := NewImage(p.Width, p.Height)
	if !img.Valid() {
		return nil, errors.New("jbig2: failed to allocate generic region image")
	}

	computeContext := p.contextFunc()
	useSkip := p.UseSkip && p.Skip != nil
	ltp := 0

	for y := 0; y < p.Height; y++ {
		if p.TPGDON {
			bit, err := decoder.Decode(&contexts[sltpContexts[p.Template]])
			if err != nil {
				return nil, err
			}
			ltp ^= bit
			if ltp != 0 {
				img.CopyLine(y, y-1)
				continue
			}
		}

		for x := 0; x < p.Width; x++ {
			if useSkip && p.Skip.GetPixel(x, y) != 0 {
				continue
			}
			bit, err := decoder.Decode(&contexts[computeContext(img, x, y)])
			if err != nil {
				return nil, err
			}
			if bit != 0 {
				img.SetPixel(x, y, bit)
			}
		}
	}
	return img, nil
}
