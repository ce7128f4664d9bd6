package jbig2

import (
	"errors"
	"fmt"
)

// ErrUnsupported marks features T.88 defines but this decoder deliberately
// refuses: EXTTEMPLATE, colored segments, intermediate regions, Huffman
// refinement, aggregate text coding, retained arithmetic contexts, profiles.
// Callers can separate "broken file" from "out of scope" with errors.Is.
var ErrUnsupported = errors.New("jbig2: unsupported feature")

func unsupportedf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrUnsupported}, args...)...)
}

const (
	// maxImageSize bounds every region, symbol and pattern dimension.
	maxImageSize = 65535

	// maxExportSymbols and maxNewSymbols bound symbol dictionary output.
	maxExportSymbols = 65535
	maxNewSymbols    = 65535

	// maxPatternIndex bounds GRAYMAX in a pattern dictionary.
	maxPatternIndex = 65535

	// maxReferredSegments bounds the long-form referred-to segment count.
	maxReferredSegments = 1 << 16
)

// RegionInfo is the 17-byte region segment information field shared by every
// region segment type.
type RegionInfo struct {
	Width  uint32
	Height uint32
	X      uint32
	Y      uint32
	Flags  uint8
}

// CombinationOperator returns the external combination operator for the
// region. parseRegionInfo guarantees the value is in range.
func (ri RegionInfo) CombinationOperator() ComposeOp {
	return ComposeOp(ri.Flags & 0x07)
}

// IsColorBitmap reports the COLEXTFLAG bit.
func (ri RegionInfo) IsColorBitmap() bool {
	return ri.Flags&0x08 != 0
}

// parseRegionInfo reads and validates a region segment information field.
func parseRegionInfo(bs *BitStream) (RegionInfo, error) {
	var ri RegionInfo
	var err error
	if ri.Width, err = bs.ReadUint32(); err != nil {
		return ri, err
	}
	if ri.Height, err = bs.ReadUint32(); err != nil {
		return ri, err
	}
	if ri.X, err = bs.ReadUint32(); err != nil {
		return ri, err
	}
	if ri.Y, err = bs.ReadUint32(); err != nil {
		return ri, err
	}
	if ri.Flags, err = bs.ReadByte(); err != nil {
		return ri, err
	}
	if ri.Flags&0xf0 != 0 {
		return ri, errors.New("jbig2: reserved region info flag bits set")
	}
	if ri.Flags&0x07 > uint8(ComposeReplace) {
		return ri, errors.New("jbig2: invalid region combination operator")
	}
	if ri.IsColorBitmap() {
		if ri.CombinationOperator() != ComposeReplace {
			return ri, errors.New("jbig2: colored region requires Replace operator")
		}
		return ri, unsupportedf("colored region segments")
	}
	if !IsValidImageSize(int64(ri.Width), int64(ri.Height)) {
		return ri, errors.New("jbig2: invalid region dimensions")
	}
	return ri, nil
}

// checkAdaptivePixel enforces the restricted adaptive-template-pixel field:
// a template pixel must address an already decoded location, so dy < 0, or
// dy == 0 with dx < 0.
func checkAdaptivePixel(dx, dy int) error {
	if dy < 0 || (dy == 0 && dx < 0) {
		return nil
	}
	return fmt.Errorf("jbig2: adaptive template pixel (%d,%d) outside restricted field", dx, dy)
}
